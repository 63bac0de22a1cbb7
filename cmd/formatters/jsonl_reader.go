package formatters

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/airframesio/data-comparer/cmd/dataset"
)

const maxJSONLLineSize = 16 * 1024 * 1024

// ErrNotAnObject is returned for JSONL lines that are not JSON objects
var ErrNotAnObject = errors.New("JSONL line is not an object")

// JSONLReader reads JSONL format (one JSON object per line). The first
// object's key order defines the columns; every later object must carry
// the same keys.
type JSONLReader struct{}

// NewJSONLReader creates a new JSONL reader
func NewJSONLReader() *JSONLReader {
	return &JSONLReader{}
}

// Read decodes the whole input
func (r *JSONLReader) Read(in io.Reader) (*dataset.Dataset, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxJSONLLineSize)

	var d *dataset.Dataset
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		keys, values, err := decodeObject(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if d == nil {
			d = dataset.New(keys...)
		}

		row := make(dataset.Row, len(keys))
		for i, key := range keys {
			if !d.HasColumn(key) {
				return nil, fmt.Errorf("line %d: %w: unexpected key %q", lineNo, dataset.ErrRaggedRow, key)
			}
			v, err := dataset.FromNative(values[i])
			if err != nil {
				return nil, fmt.Errorf("line %d, key %q: %w", lineNo, key, err)
			}
			row[key] = v
		}
		if len(row) != len(keys) {
			return nil, fmt.Errorf("line %d: %w", lineNo, dataset.ErrDuplicateColumnName)
		}
		if len(row) != len(d.Columns) {
			return nil, fmt.Errorf("line %d: %w: %d keys, expected %d", lineNo, dataset.ErrRaggedRow, len(row), len(d.Columns))
		}
		d.Rows = append(d.Rows, row)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}
	if d == nil {
		return nil, ErrEmptyInput
	}
	return d, nil
}

// decodeObject returns the keys of a JSON object in document order along with their values
func decodeObject(line []byte) ([]string, []interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse JSON line: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, ErrNotAnObject
	}

	var keys []string
	var values []interface{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse JSON line: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, ErrNotAnObject
		}
		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return nil, nil, fmt.Errorf("failed to parse value of %q: %w", key, err)
		}
		keys = append(keys, key)
		values = append(values, value)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, fmt.Errorf("failed to parse JSON line: %w", err)
	}
	return keys, values, nil
}
