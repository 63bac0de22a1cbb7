// Package comparator diffs two tabular datasets, either as multisets of rows
// (unkeyed) or row by row matched on key columns (keyed).
//
// Compare is synchronous and stateless. Both datasets must be fully loaded
// in memory; the sample size is the only bound on the report size.
package comparator

import (
	"fmt"
	"sort"

	"github.com/airframesio/data-comparer/cmd/dataset"
	"github.com/airframesio/data-comparer/cmd/normalize"
)

// Compare produces the diff report of left against right. Inputs are never
// modified. Schema problems are reported in the returned Report; only
// contract violations (nil or malformed datasets, invalid options) are errors.
func Compare(left, right *dataset.Dataset, opts Options) (*Report, error) {
	if left == nil || right == nil {
		return nil, ErrNilDataset
	}
	if err := left.Validate(); err != nil {
		return nil, fmt.Errorf("left dataset: %w", err)
	}
	if err := right.Validate(); err != nil {
		return nil, fmt.Errorf("right dataset: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	report := &Report{
		LeftCount:    left.Len(),
		RightCount:   right.Len(),
		LeftColumns:  copyStrings(left.Columns),
		RightColumns: copyStrings(right.Columns),
		Mode:         ModeUnkeyed,
	}
	report.RowCountEqual = report.LeftCount == report.RightCount
	report.ColumnsEqual = sameColumnSet(left.Columns, right.Columns)

	leftN, err := normalize.NormalizeColumns(left)
	if err != nil {
		return nil, err
	}
	rightN, err := normalize.NormalizeColumns(right)
	if err != nil {
		return nil, err
	}

	if opts.Keyed() {
		report.Mode = ModeKeyed
		compareKeyed(report, leftN, rightN, opts)
	} else {
		compareUnkeyed(report, leftN, rightN, opts)
	}
	return report, nil
}

func sameColumnSet(a, b []string) bool {
	setA := stringSet(a)
	setB := stringSet(b)
	if len(setA) != len(setB) {
		return false
	}
	for k := range setA {
		if _, ok := setB[k]; !ok {
			return false
		}
	}
	return true
}

// difference returns the sorted names of a that are not in b
func difference(a, b []string) []string {
	setB := stringSet(b)
	out := []string{}
	for _, name := range a {
		if _, ok := setB[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func stringSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func capped(n, limit int) int {
	if n < limit {
		return n
	}
	return limit
}
