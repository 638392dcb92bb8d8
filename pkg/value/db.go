package value

import (
	"database/sql/driver"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// FromDB converts a value produced by a database driver into a Value. dbType is the column's
// database type name as reported by the driver and may be empty.
func FromDB(v any, dbType string) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(x)
	case int64:
		return Int(x)
	case int32:
		return Int(int64(x))
	case int16:
		return Int(int64(x))
	case int8:
		return Int(int64(x))
	case int:
		return Int(int64(x))
	case uint8:
		return Int(int64(x))
	case uint16:
		return Int(int64(x))
	case uint32:
		return Int(int64(x))
	case uint64:
		if x > math.MaxInt64 {
			return Text(strconv.FormatUint(x, 10))
		}
		return Int(int64(x))
	case float64:
		return Float(x)
	case float32:
		return Float(float64(x))
	case string:
		return Text(x)
	case []byte:
		if isBinaryType(dbType) || !utf8.Valid(x) {
			return Text(base64.StdEncoding.EncodeToString(x))
		}
		return Text(string(x))
	case time.Time:
		return Text(x.Format(time.RFC3339Nano))
	case [16]byte:
		// pgx decodes uuid columns into a bare array
		return Text(uuid.UUID(x).String())
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return Text(fmt.Sprint(x))
		}
		if _, again := dv.(driver.Valuer); again {
			return Text(fmt.Sprint(dv))
		}
		return FromDB(dv, dbType)
	case map[string]any, []any, json.Marshaler:
		b, err := json.Marshal(x)
		if err != nil {
			return Text(fmt.Sprint(x))
		}
		return Raw(string(b))
	default:
		return Text(fmt.Sprint(x))
	}
}

func isBinaryType(dbType string) bool {
	t := strings.ToUpper(dbType)
	return strings.Contains(t, "BLOB") ||
		strings.Contains(t, "BINARY") ||
		strings.Contains(t, "BYTEA") ||
		t == "IMAGE"
}
