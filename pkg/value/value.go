// Package value models the dynamically typed scalars that travel between HTTP request bodies,
// SQL parameters and result rows.
package value

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindText
	// KindRaw holds the JSON text of a nested object or array.
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindRaw:
		return "raw"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a tagged union over the scalar shapes a column can take. The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
}

func Null() Value            { return Value{} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Int(i int64) Value      { return Value{kind: KindInt, i: i} }
func Float(f float64) Value  { return Value{kind: KindFloat, f: f} }
func Text(s string) Value    { return Value{kind: KindText, s: s} }
func Raw(text string) Value  { return Value{kind: KindRaw, s: text} }
func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool reports the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt reports the integer held by v.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat reports the float held by v. Integers are widened.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// AsText reports the string held by a Text or Raw value.
func (v Value) AsText() (string, bool) {
	return v.s, v.kind == KindText || v.kind == KindRaw
}

// Arg returns the value in a form every supported database driver binds natively:
// nil, bool, int64, float64 or string.
func (v Value) Arg() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindText, KindRaw:
		return v.s
	default:
		return nil
	}
}

// Equal reports whether v and o hold the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	default:
		return v.s == o.s
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	default:
		return v.s
	}
}

// GoString helps testify print readable diffs.
func (v Value) GoString() string {
	return fmt.Sprintf("value.%s(%s)", v.kind, v.String())
}

// MarshalJSON implements json.Marshaler. Non-finite floats have no JSON form and are encoded
// as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return strconv.AppendBool(nil, v.b), nil
	case KindInt:
		return strconv.AppendInt(nil, v.i, 10), nil
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return json.Marshal(strconv.FormatFloat(v.f, 'g', -1, 64))
		}
		return json.Marshal(v.f)
	case KindRaw:
		if json.Valid([]byte(v.s)) {
			return []byte(v.s), nil
		}
		return json.Marshal(v.s)
	default:
		return json.Marshal(v.s)
	}
}

// UnmarshalJSON implements json.Unmarshaler using the numeric widening rules of Parse.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
