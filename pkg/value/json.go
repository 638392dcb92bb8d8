package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyBody   = errors.New("request body is empty")
	ErrNotObject   = errors.New("request body must be a JSON object")
	ErrInvalidJSON = errors.New("invalid JSON")
)

// Parse converts a single JSON literal into a Value.
//
// Numbers are widened in a fixed order: 64-bit integer (which covers every 32-bit literal),
// then finite float64, then a decimal of at most 96 bits of coefficient and a scale within
// ±28 bound as canonical text, and finally the literal text itself. Objects and arrays become Raw values holding their JSON text.
func Parse(data []byte) (Value, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Value{}, ErrEmptyBody
	}
	if !json.Valid(data) {
		return Value{}, fmt.Errorf("%w value %q", ErrInvalidJSON, truncate(data))
	}

	switch data[0] {
	case 'n':
		return Null(), nil
	case 't':
		return Bool(true), nil
	case 'f':
		return Bool(false), nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return Value{}, err
		}
		return Text(s), nil
	case '{', '[':
		return Raw(string(data)), nil
	default:
		return parseNumber(string(data)), nil
	}
}

func parseNumber(lit string) Value {
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return Int(i)
	}
	if f, err := strconv.ParseFloat(lit, 64); err == nil && !math.IsInf(f, 0) {
		return Float(f)
	}
	if d, err := decimal.NewFromString(lit); err == nil && decimalInRange(d) {
		return Text(d.String())
	}
	return Text(lit)
}

const (
	maxDecimalScale = 28
	maxDecimalBits  = 96
)

// decimalInRange bounds d like a 28-digit decimal. d.String expands the exponent in full.
func decimalInRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	return exp >= -maxDecimalScale && exp <= maxDecimalScale &&
		d.Coefficient().BitLen() <= maxDecimalBits
}

// DecodeFields parses a JSON object into Fields. Empty input yields ErrEmptyBody and any
// well-formed non-object yields ErrNotObject.
func DecodeFields(data []byte) (Fields, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyBody
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		if json.Valid(data) {
			return nil, ErrNotObject
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if raw == nil {
		return nil, ErrNotObject
	}

	fields := make(Fields, len(raw))
	for k, msg := range raw {
		v, err := Parse(msg)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		fields[k] = v
	}
	return fields, nil
}

func truncate(b []byte) string {
	const limit = 32
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
