// Package dataset holds the in-memory tabular structure shared by the loaders
// and the comparison engine: ordered named columns and rows of scalar cells.
package dataset

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyColumnName     = errors.New("column name is empty")
	ErrDuplicateColumnName = errors.New("duplicate column name")
	ErrRaggedRow           = errors.New("row does not match the dataset columns")
)

// Row maps column name to cell value
type Row map[string]Value

// Dataset is an ordered set of columns and the rows that carry them
type Dataset struct {
	Columns []string
	Rows    []Row
}

// New creates an empty dataset with the given columns
func New(columns ...string) *Dataset {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Dataset{Columns: cols, Rows: []Row{}}
}

// Append adds a row built from positional values. It panics when the number
// of values differs from the number of columns, which is a programming error.
func (d *Dataset) Append(values ...Value) *Dataset {
	if len(values) != len(d.Columns) {
		panic(fmt.Sprintf("dataset: %d values for %d columns", len(values), len(d.Columns)))
	}
	row := make(Row, len(values))
	for i, col := range d.Columns {
		row[col] = values[i]
	}
	d.Rows = append(d.Rows, row)
	return d
}

// Len returns the number of rows
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// HasColumn reports whether name is one of the dataset's columns
func (d *Dataset) HasColumn(name string) bool {
	for _, col := range d.Columns {
		if col == name {
			return true
		}
	}
	return false
}

// Validate checks the header and that every row carries exactly the header's columns
func (d *Dataset) Validate() error {
	seen := make(map[string]struct{}, len(d.Columns))
	for _, col := range d.Columns {
		if col == "" {
			return ErrEmptyColumnName
		}
		if _, dup := seen[col]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateColumnName, col)
		}
		seen[col] = struct{}{}
	}

	for i, row := range d.Rows {
		if len(row) != len(d.Columns) {
			return fmt.Errorf("%w: row %d has %d cells, expected %d", ErrRaggedRow, i, len(row), len(d.Columns))
		}
		for col := range row {
			if _, ok := seen[col]; !ok {
				return fmt.Errorf("%w: row %d has unknown column %q", ErrRaggedRow, i, col)
			}
		}
	}
	return nil
}

// Clone returns a deep copy. Values are immutable so copying the maps is enough.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		Columns: make([]string, len(d.Columns)),
		Rows:    make([]Row, len(d.Rows)),
	}
	copy(out.Columns, d.Columns)
	for i, row := range d.Rows {
		out.Rows[i] = row.Clone()
	}
	return out
}

// Clone copies the row
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Project returns a new row restricted to the given columns
func (r Row) Project(columns []string) Row {
	out := make(Row, len(columns))
	for _, col := range columns {
		out[col] = r[col]
	}
	return out
}

// ColumnKind reports the kind shared by all non-null cells of a column.
// All-null (or empty) columns report KindNull, columns mixing kinds KindMixed.
func (d *Dataset) ColumnKind(name string) Kind {
	kind := KindNull
	for _, row := range d.Rows {
		v := row[name]
		if v.IsNull() {
			continue
		}
		switch kind {
		case KindNull:
			kind = v.Kind()
		case v.Kind():
		default:
			return KindMixed
		}
	}
	return kind
}

// AsText converts every cell to its display text. Nulls become empty text,
// the same way a force-to-string load renders missing values.
func (d *Dataset) AsText() *Dataset {
	out := &Dataset{
		Columns: make([]string, len(d.Columns)),
		Rows:    make([]Row, len(d.Rows)),
	}
	copy(out.Columns, d.Columns)
	for i, row := range d.Rows {
		converted := make(Row, len(row))
		for col, v := range row {
			converted[col] = Text(v.String())
		}
		out.Rows[i] = converted
	}
	return out
}

// Head returns at most n rows
func (d *Dataset) Head(n int) []Row {
	if n < 0 {
		n = 0
	}
	if n > len(d.Rows) {
		n = len(d.Rows)
	}
	return d.Rows[:n]
}
