// Package formatters reads tabular inputs into datasets and writes sample
// rows back out for export.
package formatters

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/airframesio/data-comparer/cmd/dataset"
)

// Format type constants
const (
	FormatCSV     = "csv"
	FormatJSONL   = "jsonl"
	FormatParquet = "parquet"
)

var (
	// ErrUnsupportedFormat is returned for unknown format names or file extensions
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrEmptyInput is returned when an input has no header or no records at all
	ErrEmptyInput = errors.New("input is empty")
)

// Formatter defines the interface for export format handlers
type Formatter interface {
	// Format encodes rows, writing the given columns in order
	Format(columns []string, rows []dataset.Row) ([]byte, error)

	// Extension returns the file extension for this format (e.g., ".jsonl", ".csv", ".parquet")
	Extension() string

	// MIMEType returns the MIME type for this format
	MIMEType() string
}

// GetFormatter returns the export formatter for a format name
func GetFormatter(format string) (Formatter, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return NewCSVFormatter(), nil
	case FormatJSONL:
		return NewJSONLFormatter(), nil
	case FormatParquet:
		return NewParquetFormatter(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// DetectFormat maps a file name (without compression suffix) to a format
func DetectFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt":
		return FormatCSV, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".parquet", ".pq":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("%w: cannot infer format of %q", ErrUnsupportedFormat, path)
	}
}
