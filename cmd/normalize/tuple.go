package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/airframesio/data-comparer/cmd/dataset"
)

// Tuple is an ordered list of cells, typically the canonical cells of a row
// or the values of a row's key columns.
type Tuple []dataset.Value

// Fingerprint is a hashable encoding of a Tuple. Two tuples have the same
// fingerprint exactly when Equal holds for every position.
type Fingerprint string

// Fingerprint encodes t. Each cell is written as <length>:<tag><payload>,
// which keeps the encoding injective whatever the text contains.
func (t Tuple) Fingerprint() Fingerprint {
	var sb strings.Builder
	for _, v := range t {
		enc := encodeValue(v)
		sb.WriteString(strconv.Itoa(len(enc)))
		sb.WriteByte(':')
		sb.WriteString(enc)
	}
	return Fingerprint(sb.String())
}

func encodeValue(v dataset.Value) string {
	switch v.Kind() {
	case dataset.KindNull:
		return "n"
	case dataset.KindBool:
		if v.AsBool() {
			return "b1"
		}
		return "b0"
	case dataset.KindInt:
		return "i" + strconv.FormatInt(v.AsInt(), 10)
	case dataset.KindFloat:
		if i, ok := integralFloat(v.AsFloat()); ok {
			return "i" + strconv.FormatInt(i, 10)
		}
		return "f" + strconv.FormatFloat(v.AsFloat(), 'g', -1, 64)
	case dataset.KindTimestamp:
		return "t" + v.AsTimestamp().UTC().Format(time.RFC3339Nano)
	default:
		return "s" + v.AsText()
	}
}

// integralFloat reports whether f holds a whole number representable as int64
func integralFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// Equal reports whether two values are the same. Integers and floats compare
// numerically, Null only equals Null and booleans never equal numbers.
func Equal(a, b dataset.Value) bool {
	if isNumber(a) && isNumber(b) {
		return compareNumbers(a, b) == 0
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case dataset.KindNull:
		return true
	case dataset.KindBool:
		return a.AsBool() == b.AsBool()
	case dataset.KindTimestamp:
		return a.AsTimestamp().Equal(b.AsTimestamp())
	default:
		return a.AsText() == b.AsText()
	}
}

// Compare orders values: Null < Bool < numbers < Timestamp < Text.
// It returns -1, 0 or +1.
func Compare(a, b dataset.Value) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch a.Kind() {
	case dataset.KindNull:
		return 0
	case dataset.KindBool:
		switch {
		case a.AsBool() == b.AsBool():
			return 0
		case !a.AsBool():
			return -1
		default:
			return 1
		}
	case dataset.KindInt, dataset.KindFloat:
		return compareNumbers(a, b)
	case dataset.KindTimestamp:
		return a.AsTimestamp().Compare(b.AsTimestamp())
	default:
		return strings.Compare(a.AsText(), b.AsText())
	}
}

// CompareTuples orders tuples position by position, shorter first on a tie
func CompareTuples(a, b Tuple) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func rank(v dataset.Value) int {
	switch v.Kind() {
	case dataset.KindNull:
		return 0
	case dataset.KindBool:
		return 1
	case dataset.KindInt, dataset.KindFloat:
		return 2
	case dataset.KindTimestamp:
		return 3
	default:
		return 4
	}
}

func isNumber(v dataset.Value) bool {
	return v.Kind() == dataset.KindInt || v.Kind() == dataset.KindFloat
}

func compareNumbers(a, b dataset.Value) int {
	if a.Kind() == dataset.KindInt && b.Kind() == dataset.KindInt {
		switch {
		case a.AsInt() < b.AsInt():
			return -1
		case a.AsInt() > b.AsInt():
			return 1
		default:
			return 0
		}
	}

	fa, fb := asFloat(a), asFloat(b)
	// NaN sorts first and equals itself so the ordering stays total
	switch {
	case math.IsNaN(fa) && math.IsNaN(fb):
		return 0
	case math.IsNaN(fa):
		return -1
	case math.IsNaN(fb):
		return 1
	case fa < fb:
		return -1
	case fa > fb:
		return 1
	}

	// equal as floats: settle int/float pairs exactly
	if a.Kind() != b.Kind() {
		fi, ok := integralFloat(fa)
		if a.Kind() == dataset.KindInt {
			fi, ok = integralFloat(fb)
			if !ok {
				return 0
			}
			return cmpInt(a.AsInt(), fi)
		}
		if !ok {
			return 0
		}
		return cmpInt(fi, b.AsInt())
	}
	return 0
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func asFloat(v dataset.Value) float64 {
	if v.Kind() == dataset.KindInt {
		return float64(v.AsInt())
	}
	return v.AsFloat()
}
