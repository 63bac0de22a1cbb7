package formatters

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/parquet-go/parquet-go"

	"github.com/airframesio/data-comparer/cmd/dataset"
)

const parquetBatchSize = 1000

// ParquetReader reads flat Parquet files. Columns follow the schema order.
type ParquetReader struct{}

// NewParquetReader creates a new Parquet reader
func NewParquetReader() *ParquetReader {
	return &ParquetReader{}
}

// Read decodes the whole input.
// Parquet requires io.ReaderAt, so the input is read into memory first.
func (r *ParquetReader) Read(in io.Reader) (*dataset.Dataset, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet data: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	columnPaths := file.Schema().Columns()
	columns := make([]string, len(columnPaths))
	for i, path := range columnPaths {
		if len(path) > 0 {
			columns[i] = path[len(path)-1]
		}
	}
	d := dataset.New(columns...)
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("unsupported parquet schema: %w", err)
	}

	for _, rowGroup := range file.RowGroups() {
		if err := readRowGroup(rowGroup, d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func readRowGroup(rowGroup parquet.RowGroup, d *dataset.Dataset) error {
	rows := rowGroup.Rows()
	defer rows.Close()

	batch := make([]parquet.Row, parquetBatchSize)
	for {
		n, err := rows.ReadRows(batch)
		for i := 0; i < n; i++ {
			row, convErr := convertParquetRow(batch[i], d.Columns)
			if convErr != nil {
				return convErr
			}
			d.Rows = append(d.Rows, row)
		}
		if errors.Is(err, io.EOF) || (err == nil && n == 0) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}
}

func convertParquetRow(values parquet.Row, columns []string) (dataset.Row, error) {
	row := make(dataset.Row, len(columns))
	for _, val := range values {
		idx := val.Column()
		if idx < 0 || idx >= len(columns) {
			continue
		}
		name := columns[idx]
		if _, seen := row[name]; seen {
			return nil, fmt.Errorf("%w: repeated parquet column %q", dataset.ErrNonScalarValue, name)
		}
		row[name] = parquetValue(val)
	}
	if len(row) != len(columns) {
		return nil, fmt.Errorf("%w: parquet row has %d of %d columns", dataset.ErrRaggedRow, len(row), len(columns))
	}
	return row, nil
}

func parquetValue(val parquet.Value) dataset.Value {
	if val.IsNull() {
		return dataset.Null()
	}
	switch val.Kind() {
	case parquet.Boolean:
		return dataset.Bool(val.Boolean())
	case parquet.Int32:
		return dataset.Int(int64(val.Int32()))
	case parquet.Int64:
		return dataset.Int(val.Int64())
	case parquet.Float:
		return dataset.Float(float64(val.Float()))
	case parquet.Double:
		if math.IsNaN(val.Double()) {
			return dataset.Null()
		}
		return dataset.Float(val.Double())
	default:
		return dataset.Text(string(val.ByteArray()))
	}
}
