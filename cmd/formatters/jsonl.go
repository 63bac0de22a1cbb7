package formatters

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/airframesio/data-comparer/cmd/dataset"
)

// JSONLFormatter handles JSONL (JSON Lines) format output
type JSONLFormatter struct{}

// NewJSONLFormatter creates a new JSONL formatter
func NewJSONLFormatter() *JSONLFormatter {
	return &JSONLFormatter{}
}

// Format writes one JSON object per row with keys in column order
func (f *JSONLFormatter) Format(columns []string, rows []dataset.Row) ([]byte, error) {
	var buffer bytes.Buffer

	for _, row := range rows {
		buffer.WriteByte('{')
		for i, col := range columns {
			if i > 0 {
				buffer.WriteByte(',')
			}
			key, err := json.Marshal(col)
			if err != nil {
				return nil, err
			}
			value, err := json.Marshal(row[col])
			if err != nil {
				return nil, fmt.Errorf("failed to encode column %q: %w", col, err)
			}
			buffer.Write(key)
			buffer.WriteByte(':')
			buffer.Write(value)
		}
		buffer.WriteString("}\n")
	}

	return buffer.Bytes(), nil
}

// Extension returns the file extension for JSONL files
func (f *JSONLFormatter) Extension() string {
	return ".jsonl"
}

// MIMEType returns the MIME type for JSONL
func (f *JSONLFormatter) MIMEType() string {
	return "application/x-ndjson"
}
