package schema

import (
	"errors"
	"strings"
)

var (
	// ErrNoIdentity means no column could be chosen to address individual rows.
	ErrNoIdentity = errors.New("no identity column")
	// ErrCompositeKey means the primary key spans several columns, which row addressing
	// does not support.
	ErrCompositeKey = errors.New("composite primary key")
)

// Identity is the column used to address a single row.
type Identity struct {
	Name     string
	DataType string
}

// ResolveIdentity picks the identity column of a table. The first rule that matches wins:
//
//  1. the column flagged as primary key
//  2. a column named "id", ignoring case
//  3. the first column whose name ends with "id", ignoring case
//
// The result depends only on cols, so repeated calls agree.
func ResolveIdentity(cols []Column) (Identity, error) {
	var pks []Column
	for _, c := range cols {
		if c.IsPrimaryKey {
			pks = append(pks, c)
		}
	}
	switch len(pks) {
	case 0:
	case 1:
		return identityOf(pks[0]), nil
	default:
		return Identity{}, ErrCompositeKey
	}

	for _, c := range cols {
		if strings.EqualFold(c.Name, "id") {
			return identityOf(c), nil
		}
	}
	for _, c := range cols {
		if strings.HasSuffix(strings.ToLower(c.Name), "id") {
			return identityOf(c), nil
		}
	}
	return Identity{}, ErrNoIdentity
}

func identityOf(c Column) Identity {
	return Identity{Name: c.Name, DataType: c.DataType}
}

// TypeFamily groups column types by how row identifiers are parsed for them.
type TypeFamily int

const (
	FamilyText TypeFamily = iota
	FamilyInteger
	FamilyReal
)

func (f TypeFamily) String() string {
	switch f {
	case FamilyInteger:
		return "integer"
	case FamilyReal:
		return "real"
	default:
		return "text"
	}
}

// Family classifies a catalog type name by substring, the way SQLite assigns column
// affinity: anything containing INT is an integer, REAL/FLOA/DOUB/NUMERIC/DECIMAL is real,
// everything else is text.
func Family(dataType string) TypeFamily {
	t := strings.ToUpper(dataType)
	if strings.Contains(t, "INT") {
		return FamilyInteger
	}
	for _, s := range []string{"REAL", "FLOA", "DOUB", "NUMERIC", "DECIMAL"} {
		if strings.Contains(t, s) {
			return FamilyReal
		}
	}
	return FamilyText
}
