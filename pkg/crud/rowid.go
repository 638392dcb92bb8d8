package crud

import (
	"strconv"

	"github.com/edgeflare/dbapi/pkg/schema"
	"github.com/edgeflare/dbapi/pkg/value"
)

// ParseRowID converts a row identifier taken from a URL path into a value typed after the
// identity column. Text that does not parse as the column's family is kept as a string and
// left for the store to compare.
func ParseRowID(raw, dataType string) value.Value {
	switch schema.Family(dataType) {
	case schema.FamilyInteger:
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return value.Int(i)
		}
	case schema.FamilyReal:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return value.Float(f)
		}
	}
	return value.Text(raw)
}
