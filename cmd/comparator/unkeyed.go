package comparator

import (
	"github.com/airframesio/data-comparer/cmd/dataset"
	"github.com/airframesio/data-comparer/cmd/normalize"
)

// multiset counts occurrences of row fingerprints
type multiset map[normalize.Fingerprint]int

func compareUnkeyed(report *Report, left, right *dataset.Dataset, opts Options) {
	if !report.ColumnsEqual {
		report.Differences.ColumnDiff = &ColumnDiff{
			MissingInLeft:  difference(right.Columns, left.Columns),
			MissingInRight: difference(left.Columns, right.Columns),
		}
		return
	}

	cols := normalize.OrderColumns(left.Columns, opts.IgnoreColumnOrder)
	leftFps := fingerprints(left, cols, opts.FloatTol)
	rightFps := fingerprints(right, cols, opts.FloatTol)

	leftSet := count(leftFps)
	rightSet := count(rightFps)
	onlyLeft := subtract(leftSet, rightSet)
	onlyRight := subtract(rightSet, leftSet)

	diff := &RowSetDiff{
		Columns:           cols,
		OnlyInLeftCount:   total(onlyLeft),
		OnlyInRightCount:  total(onlyRight),
		OnlyInLeftSample:  sampleSurplus(left, leftFps, onlyLeft, cols, opts.SampleSize),
		OnlyInRightSample: sampleSurplus(right, rightFps, onlyRight, cols, opts.SampleSize),
	}
	report.Differences.RowSetDiff = diff
	report.DataEqual = diff.OnlyInLeftCount == 0 && diff.OnlyInRightCount == 0
}

func fingerprints(d *dataset.Dataset, cols []string, tol float64) []normalize.Fingerprint {
	fps := make([]normalize.Fingerprint, len(d.Rows))
	for i, row := range d.Rows {
		fps[i] = normalize.CanonicalizeRow(row, cols, tol, false).Fingerprint()
	}
	return fps
}

func count(fps []normalize.Fingerprint) multiset {
	m := make(multiset, len(fps))
	for _, fp := range fps {
		m[fp]++
	}
	return m
}

// subtract returns the occurrences of a in excess of b
func subtract(a, b multiset) multiset {
	out := make(multiset)
	for fp, n := range a {
		if extra := n - b[fp]; extra > 0 {
			out[fp] = extra
		}
	}
	return out
}

func total(m multiset) int {
	n := 0
	for _, c := range m {
		n += c
	}
	return n
}

// sampleSurplus walks rows in input order and picks each row whose
// fingerprint still has surplus occurrences, so the sample is always a
// subset of what the counts describe.
func sampleSurplus(d *dataset.Dataset, fps []normalize.Fingerprint, surplus multiset, cols []string, limit int) []dataset.Row {
	sample := make([]dataset.Row, 0, capped(total(surplus), limit))
	if limit == 0 || len(surplus) == 0 {
		return sample
	}

	remaining := make(multiset, len(surplus))
	for fp, n := range surplus {
		remaining[fp] = n
	}
	for i, fp := range fps {
		if remaining[fp] == 0 {
			continue
		}
		remaining[fp]--
		sample = append(sample, d.Rows[i].Project(cols))
		if len(sample) == limit {
			break
		}
	}
	return sample
}
