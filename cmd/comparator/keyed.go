package comparator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/airframesio/data-comparer/cmd/dataset"
	"github.com/airframesio/data-comparer/cmd/normalize"
)

// keyIndex maps key tuples to the rows carrying them, duplicates included
type keyIndex struct {
	rows map[normalize.Fingerprint][]int
	keys map[normalize.Fingerprint]normalize.Tuple
}

func compareKeyed(report *Report, left, right *dataset.Dataset, opts Options) {
	for _, k := range opts.Keys {
		if !left.HasColumn(k) || !right.HasColumn(k) {
			report.Differences.MissingKey = fmt.Sprintf("missing key column: %s", k)
			return
		}
	}

	for _, k := range opts.Keys {
		if left.ColumnKind(k) != right.ColumnKind(k) {
			harmonizeKey(left, k)
			harmonizeKey(right, k)
		}
	}

	keySet := stringSet(opts.Keys)
	rightCols := stringSet(right.Columns)
	compared := []string{}
	for _, col := range left.Columns {
		if _, isKey := keySet[col]; isKey {
			continue
		}
		if _, ok := rightCols[col]; ok {
			compared = append(compared, col)
		}
	}

	leftIdx := buildIndex(left, opts.Keys)
	rightIdx := buildIndex(right, opts.Keys)

	leftOnly := leftIdx.missingFrom(rightIdx)
	rightOnly := rightIdx.missingFrom(leftIdx)

	diff := &KeyedDiff{
		KeyColumns:           copyStrings(opts.Keys),
		ComparedColumns:      compared,
		LeftOnlyKeysCount:    len(leftOnly),
		RightOnlyKeysCount:   len(rightOnly),
		LeftOnlyKeysSample:   keySample(leftIdx, leftOnly, opts.Keys, opts.SampleSize),
		RightOnlyKeysSample:  keySample(rightIdx, rightOnly, opts.Keys, opts.SampleSize),
		MismatchedRowsSample: []Mismatch{},
	}

	places := normalize.DecimalPlaces(opts.FloatTol)
	for _, fp := range leftIdx.common(rightIdx) {
		lRows, rRows := leftIdx.rows[fp], rightIdx.rows[fp]
		pairs := len(lRows)
		if len(rRows) < pairs {
			pairs = len(rRows)
		}
		diff.LeftDuplicateKeysCount += len(lRows) - pairs
		diff.RightDuplicateKeysCount += len(rRows) - pairs

		for i := 0; i < pairs; i++ {
			lRow, rRow := left.Rows[lRows[i]], right.Rows[rRows[i]]
			m, differs := diffRow(lRow, rRow, opts.Keys, compared, places)
			if !differs {
				continue
			}
			diff.MismatchedRowsCount++
			if len(diff.MismatchedRowsSample) < opts.SampleSize {
				diff.MismatchedRowsSample = append(diff.MismatchedRowsSample, m)
			}
		}
	}

	report.Differences.KeyedDiff = diff
	report.DataEqual = report.ColumnsEqual &&
		diff.LeftOnlyKeysCount == 0 &&
		diff.RightOnlyKeysCount == 0 &&
		diff.MismatchedRowsCount == 0
}

// harmonizeKey turns a key column into trimmed text so that sides loaded
// with different native types can still be joined
func harmonizeKey(d *dataset.Dataset, col string) {
	for _, row := range d.Rows {
		v := row[col]
		if v.IsNull() {
			continue
		}
		row[col] = dataset.Text(strings.TrimSpace(v.String()))
	}
}

func buildIndex(d *dataset.Dataset, keys []string) *keyIndex {
	idx := &keyIndex{
		rows: make(map[normalize.Fingerprint][]int),
		keys: make(map[normalize.Fingerprint]normalize.Tuple),
	}
	for i, row := range d.Rows {
		tuple := make(normalize.Tuple, len(keys))
		for j, k := range keys {
			tuple[j] = row[k]
		}
		fp := tuple.Fingerprint()
		if _, ok := idx.keys[fp]; !ok {
			idx.keys[fp] = tuple
		}
		idx.rows[fp] = append(idx.rows[fp], i)
	}
	return idx
}

// missingFrom returns the distinct keys of idx absent from other, sorted
func (idx *keyIndex) missingFrom(other *keyIndex) []normalize.Fingerprint {
	out := []normalize.Fingerprint{}
	for fp := range idx.keys {
		if _, ok := other.keys[fp]; !ok {
			out = append(out, fp)
		}
	}
	idx.sort(out)
	return out
}

// common returns the distinct keys present in both indexes, sorted
func (idx *keyIndex) common(other *keyIndex) []normalize.Fingerprint {
	out := []normalize.Fingerprint{}
	for fp := range idx.keys {
		if _, ok := other.keys[fp]; ok {
			out = append(out, fp)
		}
	}
	idx.sort(out)
	return out
}

func (idx *keyIndex) sort(fps []normalize.Fingerprint) {
	sort.Slice(fps, func(i, j int) bool {
		if c := normalize.CompareTuples(idx.keys[fps[i]], idx.keys[fps[j]]); c != 0 {
			return c < 0
		}
		return fps[i] < fps[j]
	})
}

func keySample(idx *keyIndex, fps []normalize.Fingerprint, keys []string, limit int) []dataset.Row {
	sample := make([]dataset.Row, 0, capped(len(fps), limit))
	for _, fp := range fps[:capped(len(fps), limit)] {
		sample = append(sample, tupleRow(keys, idx.keys[fp]))
	}
	return sample
}

func tupleRow(keys []string, tuple normalize.Tuple) dataset.Row {
	row := make(dataset.Row, len(keys))
	for i, k := range keys {
		row[k] = tuple[i]
	}
	return row
}

func diffRow(left, right dataset.Row, keys, compared []string, places int) (Mismatch, bool) {
	var cols []string
	for _, col := range compared {
		if !cellsEqual(left[col], right[col], places) {
			cols = append(cols, col)
		}
	}
	if len(cols) == 0 {
		return Mismatch{}, false
	}

	return Mismatch{
		Keys:        left.Project(keys),
		Columns:     cols,
		LeftValues:  left.Project(cols),
		RightValues: right.Project(cols),
	}, true
}

// cellsEqual treats null as equal to null and compares floats after rounding
func cellsEqual(a, b dataset.Value, places int) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	return normalize.Equal(roundFloat(a, places), roundFloat(b, places))
}

func roundFloat(v dataset.Value, places int) dataset.Value {
	if v.Kind() != dataset.KindFloat {
		return v
	}
	return dataset.Float(normalize.Round(v.AsFloat(), places))
}
