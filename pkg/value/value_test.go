package value

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Value
	}{
		{name: "null", input: "null", want: Null()},
		{name: "true", input: "true", want: Bool(true)},
		{name: "false", input: " false ", want: Bool(false)},
		{name: "int32", input: "42", want: Int(42)},
		{name: "negative", input: "-7", want: Int(-7)},
		{name: "int64", input: "9007199254740993", want: Int(9007199254740993)},
		{name: "float", input: "1.5", want: Float(1.5)},
		{name: "whole float", input: "1.0", want: Float(1)},
		{name: "exponent", input: "1e2", want: Float(100)},
		{name: "beyond int64", input: "18446744073709551616", want: Float(18446744073709551616)},
		{name: "beyond float64", input: "1e400", want: Text("1e400")},
		{name: "huge exponent", input: "1e100000000", want: Text("1e100000000")},
		{name: "negative huge exponent", input: "-25e999999999", want: Text("-25e999999999")},
		{name: "string", input: `"Widget"`, want: Text("Widget")},
		{name: "escaped string", input: `"a\"b"`, want: Text(`a"b`)},
		{name: "object", input: `{"a": 1}`, want: Raw(`{"a": 1}`)},
		{name: "array", input: `[1,2]`, want: Raw(`[1,2]`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.input))
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %#v, got %#v", tt.want, got)
		})
	}
}

func TestParseHugeExponentIsCheap(t *testing.T) {
	start := time.Now()
	f, err := DecodeFields([]byte(`{"n":1e100000000}`))
	require.NoError(t, err)
	assert.True(t, Text("1e100000000").Equal(f["n"]), "got %#v", f["n"])
	assert.Less(t, time.Since(start), time.Second)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(nil)
	assert.ErrorIs(t, err, ErrEmptyBody)

	_, err = Parse([]byte("{"))
	assert.Error(t, err)

	_, err = Parse([]byte("nul"))
	assert.Error(t, err)
}

func TestDecodeFields(t *testing.T) {
	t.Run("object", func(t *testing.T) {
		f, err := DecodeFields([]byte(`{"Name":"Widget","Qty":5,"Meta":{"k":[1]},"Gone":null}`))
		require.NoError(t, err)
		assert.Len(t, f, 4)
		assert.Equal(t, Text("Widget"), f["Name"])
		assert.Equal(t, Int(5), f["Qty"])
		assert.Equal(t, KindRaw, f["Meta"].Kind())
		assert.True(t, f["Gone"].IsNull())
	})

	t.Run("empty body", func(t *testing.T) {
		_, err := DecodeFields([]byte("  \n"))
		assert.ErrorIs(t, err, ErrEmptyBody)
	})

	t.Run("not an object", func(t *testing.T) {
		for _, body := range []string{`[1]`, `"x"`, `3`, `null`} {
			_, err := DecodeFields([]byte(body))
			assert.ErrorIs(t, err, ErrNotObject, body)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := DecodeFields([]byte(`{"a":`))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotObject)
		assert.ErrorIs(t, err, ErrInvalidJSON)
	})

	t.Run("empty object", func(t *testing.T) {
		f, err := DecodeFields([]byte(`{}`))
		require.NoError(t, err)
		assert.Empty(t, f)
	})
}

func TestFieldsLookup(t *testing.T) {
	f := Fields{"name": Text("lower"), "Qty": Int(1)}

	v, ok := f.Lookup("Name")
	require.True(t, ok)
	assert.Equal(t, Text("lower"), v)

	v, ok = f.Lookup("qty")
	require.True(t, ok)
	assert.Equal(t, Int(1), v)

	_, ok = f.Lookup("price")
	assert.False(t, ok)

	exact := Fields{"NAME": Text("upper"), "Name": Text("exact")}
	v, _ = exact.Lookup("Name")
	assert.Equal(t, Text("exact"), v)
}

func TestArg(t *testing.T) {
	assert.Nil(t, Null().Arg())
	assert.Equal(t, true, Bool(true).Arg())
	assert.Equal(t, int64(3), Int(3).Arg())
	assert.Equal(t, 2.5, Float(2.5).Arg())
	assert.Equal(t, "s", Text("s").Arg())
	assert.Equal(t, `{"a":1}`, Raw(`{"a":1}`).Arg())
}

func TestMarshalJSON(t *testing.T) {
	row := Row{
		Columns: []string{"Id", "Name", "Price", "Meta", "Note", "Ok"},
		Values:  []Value{Int(1), Text("Widget"), Float(9.99), Raw(`{"a":1}`), Null(), Bool(true)},
	}
	b, err := json.Marshal([]Row{row})
	require.NoError(t, err)
	assert.Equal(t, `[{"Id":1,"Name":"Widget","Price":9.99,"Meta":{"a":1},"Note":null,"Ok":true}]`, string(b))

	b, err = json.Marshal(Float(math.Inf(1)))
	require.NoError(t, err)
	assert.Equal(t, `"+Inf"`, string(b))

	b, err = json.Marshal(Raw("not json"))
	require.NoError(t, err)
	assert.Equal(t, `"not json"`, string(b))
}

func TestFromDB(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	id := uuid.MustParse("0e4b3a5c-2d1f-4c9a-8f00-6b1d2c3e4f50")

	tests := []struct {
		name   string
		in     any
		dbType string
		want   Value
	}{
		{name: "nil", in: nil, want: Null()},
		{name: "bool", in: true, want: Bool(true)},
		{name: "int32", in: int32(7), want: Int(7)},
		{name: "uint64 overflow", in: uint64(math.MaxUint64), want: Text("18446744073709551615")},
		{name: "float32", in: float32(0.5), want: Float(0.5)},
		{name: "string", in: "x", want: Text("x")},
		{name: "text bytes", in: []byte("hello"), dbType: "TEXT", want: Text("hello")},
		{name: "blob", in: []byte{0x01, 0x02}, dbType: "BLOB", want: Text("AQI=")},
		{name: "invalid utf8", in: []byte{0xff}, want: Text("/w==")},
		{name: "time", in: ts, want: Text("2024-03-01T12:30:00Z")},
		{name: "uuid", in: [16]byte(id), want: Text(id.String())},
		{name: "json object", in: map[string]any{"a": float64(1)}, want: Raw(`{"a":1}`)},
		{name: "raw message", in: json.RawMessage(`[1,2]`), want: Raw(`[1,2]`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromDB(tt.in, tt.dbType)
			assert.True(t, tt.want.Equal(got), "want %#v, got %#v", tt.want, got)
		})
	}
}
