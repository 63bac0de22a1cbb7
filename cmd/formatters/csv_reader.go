package formatters

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/airframesio/data-comparer/cmd/dataset"
)

// DefaultNullValues are the cell texts read as missing values, the same
// set dataframe libraries use by default
var DefaultNullValues = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
	"n/a", "nan", "null",
}

// CSVReader reads a CSV input with a header row. Every cell is read as text
// unless it matches one of the null markers.
type CSVReader struct {
	delimiter rune
	nulls     map[string]struct{}
}

// NewCSVReader creates a CSV reader. A zero delimiter means ','; nil
// nullValues means DefaultNullValues.
func NewCSVReader(delimiter rune, nullValues []string) *CSVReader {
	if delimiter == 0 {
		delimiter = ','
	}
	if nullValues == nil {
		nullValues = DefaultNullValues
	}
	nulls := make(map[string]struct{}, len(nullValues))
	for _, v := range nullValues {
		nulls[v] = struct{}{}
	}
	return &CSVReader{delimiter: delimiter, nulls: nulls}
}

// Read decodes the whole input. Records with a different number of fields
// than the header are an error.
func (r *CSVReader) Read(in io.Reader) (*dataset.Dataset, error) {
	reader := csv.NewReader(in)
	reader.Comma = r.delimiter
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make([]string, len(header))
	copy(columns, header)
	if len(columns) > 0 {
		columns[0] = strings.TrimPrefix(columns[0], "\ufeff")
	}

	d := dataset.New(columns...)
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid CSV header: %w", err)
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(err, csv.ErrFieldCount) {
				return nil, fmt.Errorf("%w: %v", dataset.ErrRaggedRow, err)
			}
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		row := make(dataset.Row, len(columns))
		for i, value := range record {
			row[columns[i]] = r.convertValue(value)
		}
		d.Rows = append(d.Rows, row)
	}

	return d, nil
}

func (r *CSVReader) convertValue(value string) dataset.Value {
	if _, isNull := r.nulls[value]; isNull {
		return dataset.Null()
	}
	return dataset.Text(value)
}

// ParseDelimiter accepts a single character or the escape "\t"
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return ',', nil
	case `\t`, "\t", "tab", "TAB":
		return '\t', nil
	}
	runes := []rune(s)
	if len(runes) != 1 || runes[0] == '"' || runes[0] == '\r' || runes[0] == '\n' {
		return 0, fmt.Errorf("invalid CSV delimiter %q", s)
	}
	return runes[0], nil
}
