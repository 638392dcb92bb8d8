package value

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
)

// Fields is an untyped column-name to value map, typically decoded from a request body.
type Fields map[string]Value

// Lookup finds name in f. An exact key match wins; otherwise the first key in sorted order
// that matches case-insensitively is used.
func (f Fields) Lookup(name string) (Value, bool) {
	if v, ok := f[name]; ok {
		return v, true
	}
	for _, k := range f.Keys() {
		if strings.EqualFold(k, name) {
			return f[k], true
		}
	}
	return Value{}, false
}

// Keys returns the keys of f in sorted order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Row is a single result row. Columns keep the order the store returned them in.
type Row struct {
	Columns []string
	Values  []Value
}

// Get returns the value of the named column, matched case-insensitively.
func (r Row) Get(name string) (Value, bool) {
	for i, c := range r.Columns {
		if strings.EqualFold(c, name) {
			return r.Values[i], true
		}
	}
	return Value{}, false
}

// Fields converts r into a map.
func (r Row) Fields() Fields {
	f := make(Fields, len(r.Columns))
	for i, c := range r.Columns {
		f[c] = r.Values[i]
	}
	return f
}

// MarshalJSON encodes r as an object whose keys follow column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := r.Values[i].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
