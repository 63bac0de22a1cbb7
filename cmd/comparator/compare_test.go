package comparator

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/airframesio/data-comparer/cmd/dataset"
)

var (
	i64  = dataset.Int
	flt  = dataset.Float
	txt  = dataset.Text
	null = dataset.Null
)

func keyed(keys ...string) Options {
	opts := DefaultOptions()
	opts.Keys = keys
	return opts
}

func TestCompareBoundary(t *testing.T) {
	d := dataset.New("a")

	for _, tc := range []struct {
		desc        string
		left, right *dataset.Dataset
		opts        Options
		expected    error
	}{
		{desc: "nil left", left: nil, right: d, opts: DefaultOptions(), expected: ErrNilDataset},
		{desc: "nil right", left: d, right: nil, opts: DefaultOptions(), expected: ErrNilDataset},
		{desc: "nan tolerance", left: d, right: d, opts: Options{FloatTol: math.NaN()}, expected: ErrFloatTolInvalid},
		{desc: "inf tolerance", left: d, right: d, opts: Options{FloatTol: math.Inf(1)}, expected: ErrFloatTolInvalid},
		{desc: "negative sample", left: d, right: d, opts: Options{SampleSize: -1}, expected: ErrSampleSizeInvalid},
		{desc: "empty key", left: d, right: d, opts: keyed(""), expected: ErrKeyInvalid},
		{desc: "duplicate key", left: d, right: d, opts: keyed("a", "a"), expected: ErrKeyInvalid},
		{
			desc:     "ragged row",
			left:     &dataset.Dataset{Columns: []string{"a", "b"}, Rows: []dataset.Row{{"a": i64(1)}}},
			right:    d,
			opts:     DefaultOptions(),
			expected: dataset.ErrRaggedRow,
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := Compare(tc.left, tc.right, tc.opts)
			require.ErrorIs(t, err, tc.expected)
		})
	}
}

func TestUnkeyedSelfCompare(t *testing.T) {
	d := dataset.New("id", "name", "score").
		Append(i64(1), txt("alice"), flt(1.5)).
		Append(i64(2), txt("bob"), null()).
		Append(i64(2), txt("bob"), null())

	report, err := Compare(d, d, DefaultOptions())
	require.NoError(t, err)
	require.True(t, report.DataEqual)
	require.True(t, report.RowCountEqual)
	require.True(t, report.ColumnsEqual)
	require.Equal(t, ModeUnkeyed, report.Mode)
	require.Equal(t, 0, report.Differences.OnlyInLeftCount)
	require.Equal(t, 0, report.Differences.OnlyInRightCount)
	require.Empty(t, report.Differences.OnlyInLeftSample)
	require.Equal(t, []string{"id", "name", "score"}, report.Differences.Columns)
}

func TestUnkeyedDuplicateRows(t *testing.T) {
	left := dataset.New("a", "b").Append(i64(1), txt("r")).Append(i64(1), txt("r"))
	right := dataset.New("a", "b").Append(i64(1), txt("r"))

	report, err := Compare(left, right, DefaultOptions())
	require.NoError(t, err)
	require.False(t, report.DataEqual)
	require.Equal(t, 1, report.Differences.OnlyInLeftCount)
	require.Equal(t, 0, report.Differences.OnlyInRightCount)
	require.Equal(t, []dataset.Row{{"a": i64(1), "b": txt("r")}}, report.Differences.OnlyInLeftSample)
	require.Empty(t, report.Differences.OnlyInRightSample)
}

func TestUnkeyedCrossSourceTypes(t *testing.T) {
	// a database side with native types against a text-only CSV side
	left := dataset.New("id", "amount", "code", "label").
		Append(i64(42), flt(20.5), txt("007"), txt(" x "))
	right := dataset.New("label", "code", "amount", "id").
		Append(txt("x"), txt("007"), txt("20.500000"), txt("42"))

	report, err := Compare(left, right, DefaultOptions())
	require.NoError(t, err)
	require.True(t, report.DataEqual)

	t.Run("column order matters when not ignored", func(t *testing.T) {
		opts := DefaultOptions()
		opts.IgnoreColumnOrder = false
		report, err := Compare(left, right, opts)
		require.NoError(t, err)
		// the tuple follows left's order for both sides
		require.True(t, report.DataEqual)
		require.Equal(t, []string{"id", "amount", "code", "label"}, report.Differences.Columns)
	})

	t.Run("leading zero is not a number", func(t *testing.T) {
		other := dataset.New("id", "amount", "code", "label").
			Append(i64(42), flt(20.5), i64(7), txt("x"))
		report, err := Compare(left, other, DefaultOptions())
		require.NoError(t, err)
		require.False(t, report.DataEqual)
		require.Equal(t, 1, report.Differences.OnlyInLeftCount)
		require.Equal(t, 1, report.Differences.OnlyInRightCount)
	})
}

func TestUnkeyedColumnMismatch(t *testing.T) {
	left := dataset.New("id", "x").Append(i64(1), txt("a"))
	right := dataset.New("id").Append(i64(1))

	report, err := Compare(left, right, DefaultOptions())
	require.NoError(t, err)
	require.False(t, report.ColumnsEqual)
	require.False(t, report.DataEqual)
	require.NotNil(t, report.Differences.ColumnDiff)
	require.Equal(t, []string{"x"}, report.Differences.MissingInRight)
	require.Empty(t, report.Differences.MissingInLeft)
	require.Nil(t, report.Differences.RowSetDiff)
	require.Nil(t, report.Differences.KeyedDiff)

	out, err := json.Marshal(report)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	diffs := decoded["differences"].(map[string]interface{})
	require.Contains(t, diffs, "missing_in_left")
	require.Contains(t, diffs, "missing_in_right")
	require.NotContains(t, diffs, "only_in_left_count")
}

func TestUnkeyedSampleSize(t *testing.T) {
	left := dataset.New("v")
	right := dataset.New("v")
	for i := 0; i < 10; i++ {
		left.Append(i64(int64(i)))
		right.Append(i64(int64(100 + i)))
	}

	t.Run("zero", func(t *testing.T) {
		opts := DefaultOptions()
		opts.SampleSize = 0
		report, err := Compare(left, right, opts)
		require.NoError(t, err)
		require.Equal(t, 10, report.Differences.OnlyInLeftCount)
		require.Equal(t, 10, report.Differences.OnlyInRightCount)
		require.NotNil(t, report.Differences.OnlyInLeftSample)
		require.Empty(t, report.Differences.OnlyInLeftSample)
		require.Empty(t, report.Differences.OnlyInRightSample)
	})

	t.Run("capped in input order", func(t *testing.T) {
		opts := DefaultOptions()
		opts.SampleSize = 3
		report, err := Compare(left, right, opts)
		require.NoError(t, err)
		require.Len(t, report.Differences.OnlyInLeftSample, 3)
		require.Equal(t, i64(0), report.Differences.OnlyInLeftSample[0]["v"])
		require.Equal(t, i64(102), report.Differences.OnlyInRightSample[2]["v"])
	})
}

func TestEmptyDatasets(t *testing.T) {
	empty := dataset.New("a")
	one := dataset.New("a").Append(i64(1))

	report, err := Compare(empty, empty, DefaultOptions())
	require.NoError(t, err)
	require.True(t, report.DataEqual)

	report, err = Compare(empty, one, DefaultOptions())
	require.NoError(t, err)
	require.False(t, report.DataEqual)
	require.Equal(t, 1, report.Differences.OnlyInRightCount)

	report, err = Compare(&dataset.Dataset{}, &dataset.Dataset{}, DefaultOptions())
	require.NoError(t, err)
	require.True(t, report.DataEqual)
	require.True(t, report.ColumnsEqual)

	report, err = Compare(empty, one, keyed("a"))
	require.NoError(t, err)
	require.Equal(t, 1, report.Differences.RightOnlyKeysCount)
}

func TestKeyedMismatch(t *testing.T) {
	left := dataset.New("id", "v").Append(i64(1), txt("a"))
	right := dataset.New("id", "v").Append(i64(1), txt("b"))

	report, err := Compare(left, right, keyed("id"))
	require.NoError(t, err)
	require.Equal(t, ModeKeyed, report.Mode)
	require.False(t, report.DataEqual)

	diff := report.Differences.KeyedDiff
	require.NotNil(t, diff)
	require.Equal(t, 1, diff.MismatchedRowsCount)
	require.Len(t, diff.MismatchedRowsSample, 1)

	m := diff.MismatchedRowsSample[0]
	require.Equal(t, dataset.Row{"id": i64(1)}, m.Keys)
	require.Equal(t, []string{"v"}, m.Columns)
	require.Equal(t, dataset.Row{"v": txt("a")}, m.LeftValues)
	require.Equal(t, dataset.Row{"v": txt("b")}, m.RightValues)
}

func TestKeyedOnlyKeys(t *testing.T) {
	left := dataset.New("id", "v").Append(i64(1), txt("a")).Append(i64(2), txt("b"))
	right := dataset.New("id", "v").Append(i64(1), txt("a"))

	report, err := Compare(left, right, keyed("id"))
	require.NoError(t, err)
	require.False(t, report.DataEqual)
	require.Equal(t, 1, report.Differences.LeftOnlyKeysCount)
	require.Equal(t, 0, report.Differences.RightOnlyKeysCount)
	require.Equal(t, []dataset.Row{{"id": i64(2)}}, report.Differences.LeftOnlyKeysSample)
	require.Equal(t, 0, report.Differences.MismatchedRowsCount)
}

func TestKeyedMissingKey(t *testing.T) {
	left := dataset.New("id", "v").Append(i64(1), txt("a"))
	right := dataset.New("ident", "v").Append(i64(1), txt("a"))

	report, err := Compare(left, right, keyed("id"))
	require.NoError(t, err)
	require.False(t, report.DataEqual)
	require.Equal(t, "missing key column: id", report.Differences.MissingKey)
	require.Nil(t, report.Differences.KeyedDiff)
}

func TestKeyedHarmonizesKeyTypes(t *testing.T) {
	left := dataset.New("id", "v").Append(i64(7), flt(1.0000000001))
	right := dataset.New("id", "v").Append(txt(" 7 "), flt(1.0))

	report, err := Compare(left, right, keyed("id"))
	require.NoError(t, err)
	require.Equal(t, 0, report.Differences.LeftOnlyKeysCount)
	require.Equal(t, 0, report.Differences.RightOnlyKeysCount)
	require.Equal(t, 0, report.Differences.MismatchedRowsCount)
	require.True(t, report.DataEqual)
}

func TestKeyedFloatToleranceAndNulls(t *testing.T) {
	left := dataset.New("id", "f", "n", "m").
		Append(i64(1), flt(1.004), null(), null()).
		Append(i64(2), flt(3.0), i64(3), txt("x"))
	right := dataset.New("id", "f", "n", "m").
		Append(i64(1), flt(1.001), null(), txt("")).
		Append(i64(2), i64(3), flt(3), txt("x"))

	opts := keyed("id")
	opts.FloatTol = 0.01
	report, err := Compare(left, right, opts)
	require.NoError(t, err)

	diff := report.Differences.KeyedDiff
	require.Equal(t, 1, diff.MismatchedRowsCount)
	require.Equal(t, []string{"m"}, diff.MismatchedRowsSample[0].Columns)
	require.True(t, diff.MismatchedRowsSample[0].LeftValues["m"].IsNull())

	opts.FloatTol = 1e-9
	report, err = Compare(left, right, opts)
	require.NoError(t, err)
	require.Equal(t, []string{"f", "m"}, report.Differences.MismatchedRowsSample[0].Columns)
	// values are reported before rounding
	require.Equal(t, flt(1.004), report.Differences.MismatchedRowsSample[0].LeftValues["f"])
}

func TestKeyedDuplicatesAndOrdering(t *testing.T) {
	left := dataset.New("k1", "k2", "v").
		Append(txt("b"), i64(1), txt("x")).
		Append(txt("a"), i64(2), txt("x")).
		Append(txt("a"), i64(2), txt("y")).
		Append(txt("a"), i64(1), txt("x"))
	right := dataset.New("v", "k2", "k1").
		Append(txt("z"), i64(1), txt("b")).
		Append(txt("z"), i64(2), txt("a")).
		Append(txt("z"), i64(1), txt("a"))

	report, err := Compare(left, right, keyed("k1", "k2"))
	require.NoError(t, err)

	diff := report.Differences.KeyedDiff
	require.Equal(t, []string{"v"}, diff.ComparedColumns)
	require.Equal(t, 1, diff.LeftDuplicateKeysCount)
	require.Equal(t, 0, diff.RightDuplicateKeysCount)
	require.Equal(t, 0, diff.LeftOnlyKeysCount)
	require.Equal(t, 3, diff.MismatchedRowsCount)

	var order []dataset.Row
	for _, m := range diff.MismatchedRowsSample {
		order = append(order, m.Keys)
	}
	require.Equal(t, []dataset.Row{
		{"k1": txt("a"), "k2": i64(1)},
		{"k1": txt("a"), "k2": i64(2)},
		{"k1": txt("b"), "k2": i64(1)},
	}, order)

	// the first duplicate is the one paired
	require.Equal(t, txt("x"), diff.MismatchedRowsSample[1].LeftValues["v"])
}

func TestKeyedSampleSizeZero(t *testing.T) {
	left := dataset.New("id", "v").Append(i64(1), txt("a")).Append(i64(2), txt("a"))
	right := dataset.New("id", "v").Append(i64(1), txt("b")).Append(i64(3), txt("a"))

	opts := keyed("id")
	opts.SampleSize = 0
	report, err := Compare(left, right, opts)
	require.NoError(t, err)

	diff := report.Differences.KeyedDiff
	require.Equal(t, 1, diff.LeftOnlyKeysCount)
	require.Equal(t, 1, diff.RightOnlyKeysCount)
	require.Equal(t, 1, diff.MismatchedRowsCount)
	require.Empty(t, diff.LeftOnlyKeysSample)
	require.Empty(t, diff.RightOnlyKeysSample)
	require.Empty(t, diff.MismatchedRowsSample)

	out, err := json.Marshal(report)
	require.NoError(t, err)
	require.Contains(t, string(out), `"mismatched_rows_sample":[]`)
	require.Contains(t, string(out), `"left_only_keys_sample":[]`)
}

func TestCompareDoesNotMutateInputs(t *testing.T) {
	left := dataset.New("id", "v").Append(i64(1), txt("  a "))
	right := dataset.New("id", "v").Append(txt("1"), txt("a"))

	_, err := Compare(left, right, keyed("id"))
	require.NoError(t, err)
	require.Equal(t, i64(1), left.Rows[0]["id"])
	require.Equal(t, txt("  a "), left.Rows[0]["v"])
}
