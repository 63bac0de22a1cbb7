package loaders

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/airframesio/data-comparer/cmd/compressors"
	"github.com/airframesio/data-comparer/cmd/dataset"
	"github.com/airframesio/data-comparer/cmd/formatters"
)

// FileOptions configures how a file is decoded
type FileOptions struct {
	Path string
	// Format is csv, jsonl or parquet; empty means detect from the extension
	Format string
	// Compression is zstd, lz4, gzip or none; empty means detect from the suffix
	Compression string
	Delimiter   rune
	// NullValues overrides the CSV null markers
	NullValues []string
	AsText     bool
}

// FileLoader reads a local file
type FileLoader struct {
	opts   FileOptions
	logger *slog.Logger
}

// NewFileLoader creates a loader for a local file
func NewFileLoader(opts FileOptions, logger *slog.Logger) *FileLoader {
	return &FileLoader{opts: opts, logger: logger}
}

// Describe returns the file path
func (l *FileLoader) Describe() string {
	return l.opts.Path
}

// Load opens and decodes the file
func (l *FileLoader) Load(ctx context.Context) (*dataset.Dataset, error) {
	if l.opts.Path == "" {
		return nil, ErrEmptyPath
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(l.opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", l.opts.Path, err)
	}
	defer file.Close()

	l.logger.Debug(fmt.Sprintf("Reading file %s", l.opts.Path))
	d, err := decode(file, l.opts.Path, l.opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", l.opts.Path, err)
	}
	l.logger.Debug(fmt.Sprintf("Loaded %d rows, %d columns from %s", d.Len(), len(d.Columns), l.opts.Path))
	return d, nil
}

// decode picks the codec and format for name and reads r into a dataset
func decode(r io.Reader, name string, opts FileOptions) (*dataset.Dataset, error) {
	codec, stripped := compressors.Detect(name)
	if opts.Compression != "" {
		var err error
		if codec, err = compressors.Get(opts.Compression); err != nil {
			return nil, err
		}
	}

	format := opts.Format
	if format == "" {
		var err error
		if format, err = formatters.DetectFormat(stripped); err != nil {
			return nil, err
		}
	}

	reader, err := newReader(format, opts)
	if err != nil {
		return nil, err
	}

	in, err := codec.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	d, err := reader.Read(in)
	if err != nil {
		return nil, err
	}
	return finish(d, opts.AsText)
}

type datasetReader interface {
	Read(r io.Reader) (*dataset.Dataset, error)
}

func newReader(format string, opts FileOptions) (datasetReader, error) {
	switch format {
	case formatters.FormatCSV:
		return formatters.NewCSVReader(opts.Delimiter, opts.NullValues), nil
	case formatters.FormatJSONL:
		return formatters.NewJSONLReader(), nil
	case formatters.FormatParquet:
		return formatters.NewParquetReader(), nil
	default:
		return nil, fmt.Errorf("%w: %s", formatters.ErrUnsupportedFormat, format)
	}
}
