package comparator

import (
	"github.com/airframesio/data-comparer/cmd/dataset"
)

// Mode is the comparison algorithm a report was produced with
type Mode string

const (
	ModeUnkeyed Mode = "unkeyed"
	ModeKeyed   Mode = "keyed"
)

// Report is the result of comparing two datasets
type Report struct {
	LeftCount     int         `json:"left_count"`
	RightCount    int         `json:"right_count"`
	RowCountEqual bool        `json:"row_count_equal"`
	LeftColumns   []string    `json:"left_columns"`
	RightColumns  []string    `json:"right_columns"`
	ColumnsEqual  bool        `json:"columns_equal"`
	DataEqual     bool        `json:"data_equal"`
	Mode          Mode        `json:"mode"`
	Differences   Differences `json:"differences"`
}

// Differences holds the mode-dependent details of a report. Only the parts
// that apply to the comparison are set.
type Differences struct {
	*ColumnDiff
	MissingKey string `json:"missing_key,omitempty"`
	*RowSetDiff
	*KeyedDiff
}

// ColumnDiff lists column names present on one side only
type ColumnDiff struct {
	MissingInLeft  []string `json:"missing_in_left"`
	MissingInRight []string `json:"missing_in_right"`
}

// RowSetDiff is the multiset difference of an unkeyed comparison
type RowSetDiff struct {
	Columns           []string      `json:"columns"`
	OnlyInLeftCount   int           `json:"only_in_left_count"`
	OnlyInRightCount  int           `json:"only_in_right_count"`
	OnlyInLeftSample  []dataset.Row `json:"only_in_left_sample"`
	OnlyInRightSample []dataset.Row `json:"only_in_right_sample"`
}

// KeyedDiff is the row-level difference of a keyed comparison
type KeyedDiff struct {
	KeyColumns              []string      `json:"key_columns"`
	ComparedColumns         []string      `json:"compared_columns"`
	LeftOnlyKeysCount       int           `json:"left_only_keys_count"`
	RightOnlyKeysCount      int           `json:"right_only_keys_count"`
	LeftOnlyKeysSample      []dataset.Row `json:"left_only_keys_sample"`
	RightOnlyKeysSample     []dataset.Row `json:"right_only_keys_sample"`
	LeftDuplicateKeysCount  int           `json:"left_duplicate_keys_count"`
	RightDuplicateKeysCount int           `json:"right_duplicate_keys_count"`
	MismatchedRowsCount     int           `json:"mismatched_rows_count"`
	MismatchedRowsSample    []Mismatch    `json:"mismatched_rows_sample"`
}

// Mismatch is a common-key row whose non-key columns differ. Values are
// reported before float rounding, for the differing columns only.
type Mismatch struct {
	Keys        dataset.Row `json:"keys"`
	Columns     []string    `json:"columns"`
	LeftValues  dataset.Row `json:"left_values"`
	RightValues dataset.Row `json:"right_values"`
}

// HasDifferences reports whether anything in the report differs, including row counts
func (r *Report) HasDifferences() bool {
	return !r.DataEqual || !r.RowCountEqual || !r.ColumnsEqual
}
