package dataset

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrNonScalarValue is returned when a loader hands over a cell that cannot be
// represented as one of the scalar kinds.
var ErrNonScalarValue = errors.New("non-scalar cell value")

// Kind identifies the variant held by a Value
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindTimestamp
	KindText
	// KindMixed is only reported by Dataset.ColumnKind, never held by a Value.
	KindMixed
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindTimestamp:
		return "timestamp"
	case KindText:
		return "text"
	case KindMixed:
		return "mixed"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a single cell. The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	t    time.Time
	s    string
}

func Null() Value                 { return Value{} }
func Bool(b bool) Value           { return Value{kind: KindBool, b: b} }
func Int(i int64) Value           { return Value{kind: KindInt, i: i} }
func Float(f float64) Value       { return Value{kind: KindFloat, f: f} }
func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, t: t} }
func Text(s string) Value         { return Value{kind: KindText, s: s} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() bool           { return v.b }
func (v Value) AsInt() int64           { return v.i }
func (v Value) AsFloat() float64       { return v.f }
func (v Value) AsTimestamp() time.Time { return v.t }
func (v Value) AsText() string         { return v.s }

// String renders the value for display and for force-to-text loading.
// Integral floats drop their fractional part and other floats use the
// shortest exact decimal form, so 123.0 renders "123" and 20.500000 "20.5".
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return FormatFloat(v.f)
	case KindTimestamp:
		return v.t.Format(time.RFC3339Nano)
	case KindText:
		return strings.TrimSpace(v.s)
	default:
		return ""
	}
}

// FormatFloat formats f without exponent and without a trailing ".0".
func FormatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Native returns the Go value held by v, nil for Null.
func (v Value) Native() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindTimestamp:
		return v.t
	case KindText:
		return v.s
	default:
		return nil
	}
}

// MarshalJSON encodes the value as a JSON scalar
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return json.Marshal(FormatFloat(v.f))
		}
		return []byte(strconv.FormatFloat(v.f, 'g', -1, 64)), nil
	case KindTimestamp:
		return json.Marshal(v.t.Format(time.RFC3339Nano))
	default:
		return json.Marshal(v.Native())
	}
}

// FromNative maps a value produced by a driver or decoder onto a Value.
// It is the loader boundary: anything that is not a scalar is rejected.
//
//nolint:gocyclo // flat type switch
func FromNative(raw interface{}) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return fromUint(uint64(x)), nil
	case uint8:
		return Int(int64(x)), nil
	case uint16:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case uint64:
		return fromUint(x), nil
	case float32:
		return fromFloat(float64(x)), nil
	case float64:
		return fromFloat(x), nil
	case time.Time:
		return Timestamp(x), nil
	case string:
		return Text(x), nil
	case []byte:
		return Text(string(x)), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return Int(i), nil
		}
		if f, err := x.Float64(); err == nil {
			return fromFloat(f), nil
		}
		return Text(x.String()), nil
	case driver.Valuer:
		inner, err := x.Value()
		if err != nil {
			return Null(), fmt.Errorf("failed to unwrap %T: %w", raw, err)
		}
		if _, nested := inner.(driver.Valuer); nested {
			return Null(), fmt.Errorf("%w: %T", ErrNonScalarValue, raw)
		}
		return FromNative(inner)
	default:
		return Null(), fmt.Errorf("%w: %T", ErrNonScalarValue, raw)
	}
}

func fromUint(u uint64) Value {
	if u > math.MaxInt64 {
		return Text(strconv.FormatUint(u, 10))
	}
	return Int(int64(u))
}

// NaN is how dataframe-style sources spell a missing number.
func fromFloat(f float64) Value {
	if math.IsNaN(f) {
		return Null()
	}
	return Float(f)
}
