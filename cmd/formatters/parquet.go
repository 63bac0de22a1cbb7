package formatters

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/airframesio/data-comparer/cmd/dataset"
)

// ParquetFormatter handles Parquet format output. Every column is written
// as an optional string holding the cell's display text.
type ParquetFormatter struct {
	compression string
}

// NewParquetFormatter creates a new Parquet formatter
func NewParquetFormatter() *ParquetFormatter {
	return &ParquetFormatter{
		compression: "snappy", // Default Parquet compression
	}
}

// NewParquetFormatterWithCompression creates a Parquet formatter with the
// given page compression: snappy, zstd, gzip, lz4 or none
func NewParquetFormatterWithCompression(compression string) *ParquetFormatter {
	return &ParquetFormatter{
		compression: compression,
	}
}

// Format converts rows to Parquet format
func (f *ParquetFormatter) Format(columns []string, rows []dataset.Row) ([]byte, error) {
	var buffer bytes.Buffer

	writer := parquet.NewGenericWriter[map[string]any](&buffer, textSchema(columns), f.compressionOption())

	records := make([]map[string]any, len(rows))
	for i, row := range rows {
		record := make(map[string]any, len(columns))
		for _, col := range columns {
			if v := row[col]; v.IsNull() {
				record[col] = nil
			} else {
				record[col] = v.String()
			}
		}
		records[i] = record
	}

	if _, err := writer.Write(records); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close parquet writer: %w", err)
	}

	return buffer.Bytes(), nil
}

func (f *ParquetFormatter) compressionOption() parquet.WriterOption {
	switch f.compression {
	case "zstd":
		return parquet.Compression(&parquet.Zstd)
	case "gzip":
		return parquet.Compression(&parquet.Gzip)
	case "lz4":
		return parquet.Compression(&parquet.Lz4Raw)
	case "none":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Snappy)
	}
}

// textSchema builds a flat schema of optional string columns. Parquet
// groups order their fields by name.
func textSchema(columns []string) *parquet.Schema {
	fields := make(parquet.Group, len(columns))
	for _, col := range columns {
		fields[col] = parquet.Optional(parquet.String())
	}
	return parquet.NewSchema("comparison_sample", fields)
}

// Extension returns the file extension for Parquet files
func (f *ParquetFormatter) Extension() string {
	return ".parquet"
}

// MIMEType returns the MIME type for Parquet
func (f *ParquetFormatter) MIMEType() string {
	return "application/vnd.apache.parquet"
}
