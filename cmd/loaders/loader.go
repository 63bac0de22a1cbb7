// Package loaders turn files, S3 objects and SQL queries into datasets.
//
// Every loader guarantees ordered columns, no ragged rows and cells limited
// to the scalar kinds of the dataset package. With AsText set, every cell is
// converted to its display text and nulls become empty text.
package loaders

import (
	"context"
	"errors"
	"fmt"

	"github.com/airframesio/data-comparer/cmd/dataset"
)

var (
	ErrEmptyPath         = errors.New("file path is required")
	ErrEmptyQuery        = errors.New("SQL query is required")
	ErrUnsupportedScheme = errors.New("unsupported connection string scheme")
	ErrInvalidS3URI      = errors.New("invalid S3 URI, expected s3://bucket/key")
)

// Loader produces one side of a comparison
type Loader interface {
	// Load reads the whole source into memory
	Load(ctx context.Context) (*dataset.Dataset, error)

	// Describe names the source for logs and reports, without secrets
	Describe() string
}

// finish validates a freshly loaded dataset and applies the text mode
func finish(d *dataset.Dataset, asText bool) (*dataset.Dataset, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("loaded dataset is malformed: %w", err)
	}
	if asText {
		return d.AsText(), nil
	}
	return d, nil
}
