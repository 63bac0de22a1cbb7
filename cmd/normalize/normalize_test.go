package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/airframesio/data-comparer/cmd/dataset"
)

func TestDecimalPlaces(t *testing.T) {
	for _, tc := range []struct {
		tol      float64
		expected int
	}{
		{tol: 0, expected: 9},
		{tol: -1, expected: 9},
		{tol: 1e-9, expected: 9},
		{tol: 1e-6, expected: 6},
		{tol: 0.001, expected: 3},
		{tol: 0.05, expected: 1},
		{tol: 0.5, expected: 0},
		{tol: 1, expected: 0},
		{tol: 10, expected: 0},
	} {
		require.Equal(t, tc.expected, DecimalPlaces(tc.tol), "tol=%g", tc.tol)
	}
}

func TestCanonicalizeCell(t *testing.T) {
	ts := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	for _, tc := range []struct {
		desc     string
		in       dataset.Value
		expected dataset.Value
	}{
		{desc: "null", in: dataset.Null(), expected: dataset.Null()},
		{desc: "bool", in: dataset.Bool(true), expected: dataset.Bool(true)},
		{desc: "int", in: dataset.Int(42), expected: dataset.Int(42)},
		{desc: "float rounded", in: dataset.Float(0.1 + 0.2), expected: dataset.Float(0.3)},
		{desc: "timestamp to text", in: dataset.Timestamp(ts), expected: dataset.Text("2024-03-15T10:30:00Z")},
		{desc: "empty text", in: dataset.Text("   "), expected: dataset.Text("")},
		{desc: "leading zero stays text", in: dataset.Text("007"), expected: dataset.Text("007")},
		{desc: "single zero is int", in: dataset.Text("0"), expected: dataset.Int(0)},
		{desc: "integer text", in: dataset.Text(" 42 "), expected: dataset.Int(42)},
		{desc: "negative integer text", in: dataset.Text("-17"), expected: dataset.Int(-17)},
		{desc: "double minus stays text", in: dataset.Text("--5"), expected: dataset.Text("--5")},
		{desc: "decimal text", in: dataset.Text("20.500000"), expected: dataset.Float(20.5)},
		{desc: "exponent text", in: dataset.Text("1e3"), expected: dataset.Float(1000)},
		{desc: "dotted word stays text", in: dataset.Text("a.b"), expected: dataset.Text("a.b")},
		{desc: "int overflow stays text", in: dataset.Text("99999999999999999999"), expected: dataset.Text("99999999999999999999")},
		{desc: "plain word", in: dataset.Text("hello"), expected: dataset.Text("hello")},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			require.Equal(t, tc.expected, CanonicalizeCell(tc.in, 1e-9))
		})
	}
}

func TestCanonicalizeCellIdempotent(t *testing.T) {
	inputs := []dataset.Value{
		dataset.Null(),
		dataset.Bool(false),
		dataset.Int(-3),
		dataset.Float(1.23456789012),
		dataset.Timestamp(time.Date(2023, 12, 31, 23, 59, 59, 500, time.UTC)),
		dataset.Text(" 007 "),
		dataset.Text("3.14159"),
		dataset.Text("12"),
		dataset.Text("x"),
	}
	for _, tol := range []float64{0, 1e-9, 0.01, 1} {
		for _, in := range inputs {
			once := CanonicalizeCell(in, tol)
			require.Equal(t, once, CanonicalizeCell(once, tol), "input %v tol %g", in, tol)
		}
	}
}

func TestFingerprintEquivalence(t *testing.T) {
	row := func(v dataset.Value) Tuple {
		return Tuple{CanonicalizeCell(v, 1e-9)}
	}

	require.Equal(t, row(dataset.Float(123.0)).Fingerprint(), row(dataset.Int(123)).Fingerprint())
	require.Equal(t, row(dataset.Text("42")).Fingerprint(), row(dataset.Int(42)).Fingerprint())
	require.Equal(t, row(dataset.Text("20.500000")).Fingerprint(), row(dataset.Float(20.5)).Fingerprint())
	require.NotEqual(t, row(dataset.Text("007")).Fingerprint(), row(dataset.Int(7)).Fingerprint())
	require.NotEqual(t, row(dataset.Null()).Fingerprint(), row(dataset.Text("")).Fingerprint())
	require.NotEqual(t, row(dataset.Bool(true)).Fingerprint(), row(dataset.Int(1)).Fingerprint())

	// text containing the separator cannot collide with a split tuple
	joined := Tuple{dataset.Text("a1:sb")}
	split := Tuple{dataset.Text("a"), dataset.Text("b")}
	require.NotEqual(t, joined.Fingerprint(), split.Fingerprint())
}

func TestEqual(t *testing.T) {
	require.True(t, Equal(dataset.Int(3), dataset.Float(3)))
	require.True(t, Equal(dataset.Null(), dataset.Null()))
	require.False(t, Equal(dataset.Null(), dataset.Text("")))
	require.False(t, Equal(dataset.Bool(true), dataset.Int(1)))
	require.False(t, Equal(dataset.Float(3.5), dataset.Int(3)))
	require.True(t, Equal(dataset.Text("a"), dataset.Text("a")))

	utc := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.True(t, Equal(dataset.Timestamp(utc), dataset.Timestamp(utc.In(time.FixedZone("X", 3600)))))
}

func TestCompare(t *testing.T) {
	ordered := []dataset.Value{
		dataset.Null(),
		dataset.Bool(false),
		dataset.Bool(true),
		dataset.Int(-5),
		dataset.Float(1.5),
		dataset.Int(2),
		dataset.Timestamp(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)),
		dataset.Text("a"),
		dataset.Text("b"),
	}
	for i := range ordered {
		for j := range ordered {
			got := Compare(ordered[i], ordered[j])
			switch {
			case i < j:
				require.Equal(t, -1, got, "%v < %v", ordered[i], ordered[j])
			case i > j:
				require.Equal(t, 1, got, "%v > %v", ordered[i], ordered[j])
			default:
				require.Equal(t, 0, got)
			}
		}
	}

	require.Equal(t, -1, CompareTuples(Tuple{dataset.Int(1)}, Tuple{dataset.Int(1), dataset.Int(0)}))
	require.Equal(t, 0, CompareTuples(Tuple{dataset.Int(2)}, Tuple{dataset.Float(2)}))
}

func TestNormalizeColumns(t *testing.T) {
	_, err := NormalizeColumns(nil)
	require.ErrorIs(t, err, ErrNilDataset)

	d := dataset.New("s", "n").
		Append(dataset.Text("  padded "), dataset.Int(1)).
		Append(dataset.Null(), dataset.Int(2))

	out, err := NormalizeColumns(d)
	require.NoError(t, err)
	require.Equal(t, "padded", out.Rows[0]["s"].AsText())
	require.True(t, out.Rows[1]["s"].IsNull())
	require.Equal(t, int64(2), out.Rows[1]["n"].AsInt())

	// input is left as is
	require.Equal(t, "  padded ", d.Rows[0]["s"].AsText())
}

func TestCanonicalizeRowColumnOrder(t *testing.T) {
	row := dataset.Row{"b": dataset.Int(2), "a": dataset.Int(1)}

	sorted := CanonicalizeRow(row, []string{"b", "a"}, 1e-9, true)
	require.Equal(t, Tuple{dataset.Int(1), dataset.Int(2)}, sorted)

	positional := CanonicalizeRow(row, []string{"b", "a"}, 1e-9, false)
	require.Equal(t, Tuple{dataset.Int(2), dataset.Int(1)}, positional)
}
