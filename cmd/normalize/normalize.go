// Package normalize maps cells coming from heterogeneous sources onto a
// canonical form so that logically identical values compare equal no matter
// which driver produced them.
//
// A database returning int64(42), a CSV returning "42" and a spreadsheet
// returning 42.0 all canonicalize to the same fingerprint. Identifiers with
// leading zeros ("007") are kept as text.
package normalize

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/airframesio/data-comparer/cmd/dataset"
)

// ErrNilDataset is returned when no dataset is given
var ErrNilDataset = errors.New("dataset is nil")

// DefaultDecimalPlaces is used when the float tolerance is not positive
const DefaultDecimalPlaces = 9

// NormalizeColumns returns a copy of d where every cell of a textual column
// is stripped of surrounding whitespace. Other cells are copied as is.
func NormalizeColumns(d *dataset.Dataset) (*dataset.Dataset, error) {
	if d == nil {
		return nil, ErrNilDataset
	}

	out := d.Clone()
	for _, col := range out.Columns {
		kind := out.ColumnKind(col)
		if kind != dataset.KindText && kind != dataset.KindMixed {
			continue
		}
		for _, row := range out.Rows {
			if v := row[col]; v.Kind() == dataset.KindText {
				row[col] = dataset.Text(strings.TrimSpace(v.AsText()))
			}
		}
	}
	return out, nil
}

// DecimalPlaces converts a float tolerance to the number of decimal places
// floats are rounded to: 9 for tol <= 0, 0 for tol >= 1, floor(-log10(tol))
// otherwise.
func DecimalPlaces(tol float64) int {
	switch {
	case math.IsNaN(tol) || tol <= 0:
		return DefaultDecimalPlaces
	case tol >= 1:
		return 0
	}
	// log10 of exact powers of ten is not always exact in binary
	places := int(math.Floor(-math.Log10(tol) + 1e-9))
	if places < 0 {
		return 0
	}
	return places
}

// Round rounds f to the given number of decimal places using the exact
// decimal expansion of f, ties to even.
func Round(f float64, places int) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(f, 'f', places, 64), 64)
	if err != nil {
		return f
	}
	return rounded
}

// CanonicalizeCell maps v to its canonical form. The result is one of
// Null, Bool, Int, Float (rounded) or Text; timestamps become ISO-8601 text.
// The mapping is pure and idempotent.
func CanonicalizeCell(v dataset.Value, tol float64) dataset.Value {
	switch v.Kind() {
	case dataset.KindNull:
		return dataset.Null()
	case dataset.KindBool:
		return v
	case dataset.KindInt:
		return v
	case dataset.KindFloat:
		return dataset.Float(Round(v.AsFloat(), DecimalPlaces(tol)))
	case dataset.KindTimestamp:
		return dataset.Text(v.AsTimestamp().Format(time.RFC3339Nano))
	default:
		return canonicalizeText(v.AsText(), tol)
	}
}

func canonicalizeText(raw string, tol float64) dataset.Value {
	s := strings.TrimSpace(raw)
	if s == "" || hasLeadingZero(s) {
		return dataset.Text(s)
	}

	if strings.ContainsAny(s, ".eE") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return dataset.Float(Round(f, DecimalPlaces(tol)))
		}
		return dataset.Text(s)
	}

	if isDigits(strings.TrimLeft(s, "-")) {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return dataset.Int(i)
		}
	}
	return dataset.Text(s)
}

// hasLeadingZero matches codes such as "007" that must stay text
func hasLeadingZero(s string) bool {
	return len(s) > 1 && s[0] == '0' && isDigits(s[1:])
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// CanonicalizeRow canonicalizes the named cells of row into a tuple. With
// ignoreColumnOrder the tuple follows the lexicographic order of the names.
func CanonicalizeRow(row dataset.Row, columns []string, tol float64, ignoreColumnOrder bool) Tuple {
	cols := OrderColumns(columns, ignoreColumnOrder)
	tuple := make(Tuple, len(cols))
	for i, col := range cols {
		tuple[i] = CanonicalizeCell(row[col], tol)
	}
	return tuple
}

// OrderColumns returns a copy of columns, sorted when ignoreColumnOrder is set
func OrderColumns(columns []string, ignoreColumnOrder bool) []string {
	cols := make([]string, len(columns))
	copy(cols, columns)
	if ignoreColumnOrder {
		sort.Strings(cols)
	}
	return cols
}
