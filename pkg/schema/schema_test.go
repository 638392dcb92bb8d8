package schema

import (
	"context"
	"testing"

	"github.com/edgeflare/dbapi/internal/testutil/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveIdentity(t *testing.T) {
	tests := []struct {
		name    string
		cols    []Column
		want    Identity
		wantErr error
	}{
		{
			name: "declared primary key wins",
			cols: []Column{
				{Name: "Id", DataType: "INTEGER"},
				{Name: "Code", DataType: "TEXT", IsPrimaryKey: true},
			},
			want: Identity{Name: "Code", DataType: "TEXT"},
		},
		{
			name: "column named id",
			cols: []Column{
				{Name: "CustomerId", DataType: "INTEGER"},
				{Name: "ID", DataType: "INTEGER"},
			},
			want: Identity{Name: "ID", DataType: "INTEGER"},
		},
		{
			name: "first column ending in id",
			cols: []Column{
				{Name: "Name", DataType: "TEXT"},
				{Name: "OrderId", DataType: "INTEGER"},
				{Name: "CustomerID", DataType: "INTEGER"},
			},
			want: Identity{Name: "OrderId", DataType: "INTEGER"},
		},
		{
			name:    "no candidate",
			cols:    []Column{{Name: "Name", DataType: "TEXT"}, {Name: "Qty", DataType: "INTEGER"}},
			wantErr: ErrNoIdentity,
		},
		{
			name:    "no columns",
			wantErr: ErrNoIdentity,
		},
		{
			name: "composite key",
			cols: []Column{
				{Name: "A", DataType: "INTEGER", IsPrimaryKey: true},
				{Name: "B", DataType: "INTEGER", IsPrimaryKey: true},
				{Name: "Id", DataType: "INTEGER"},
			},
			wantErr: ErrCompositeKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveIdentity(tt.cols)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := ResolveIdentity(tt.cols)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestFamily(t *testing.T) {
	tests := map[string]TypeFamily{
		"INTEGER":          FamilyInteger,
		"bigint":           FamilyInteger,
		"int(11)":          FamilyInteger,
		"REAL":             FamilyReal,
		"double precision": FamilyReal,
		"FLOAT":            FamilyReal,
		"numeric":          FamilyReal,
		"decimal(10,2)":    FamilyReal,
		"TEXT":             FamilyText,
		"uuid":             FamilyText,
		"":                 FamilyText,
	}
	for in, want := range tests {
		assert.Equal(t, want, Family(in), in)
	}
}

func TestInspectSQLite(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t,
		`CREATE TABLE "Items" ("Id" INTEGER PRIMARY KEY, "Name" TEXT, "Price" REAL)`,
		`CREATE TABLE logs (message TEXT, level TEXT)`,
		`CREATE TABLE pairs (a INTEGER, b INTEGER, note TEXT, PRIMARY KEY (a, b))`,
		`CREATE TABLE "we""ird" (x TEXT)`,
	)

	conn, err := db.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	t.Run("list tables", func(t *testing.T) {
		names, err := ListTables(ctx, conn, db.Dialect())
		require.NoError(t, err)
		assert.Equal(t, []string{"Items", "logs", "pairs", `we"ird`}, names)

		canonical, ok := FindTable(names, "items")
		assert.True(t, ok)
		assert.Equal(t, "Items", canonical)

		_, ok = FindTable(names, "missing")
		assert.False(t, ok)
	})

	t.Run("describe table", func(t *testing.T) {
		cols, err := DescribeTable(ctx, conn, db.Dialect(), "Items")
		require.NoError(t, err)
		assert.Equal(t, []Column{
			{Name: "Id", DataType: "INTEGER", IsPrimaryKey: true},
			{Name: "Name", DataType: "TEXT"},
			{Name: "Price", DataType: "REAL"},
		}, cols)

		c, ok := Lookup(cols, "price")
		assert.True(t, ok)
		assert.Equal(t, "Price", c.Name)
	})

	t.Run("composite key columns are all flagged", func(t *testing.T) {
		cols, err := DescribeTable(ctx, conn, db.Dialect(), "pairs")
		require.NoError(t, err)
		require.Len(t, cols, 3)
		assert.True(t, cols[0].IsPrimaryKey)
		assert.True(t, cols[1].IsPrimaryKey)

		_, err = ResolveIdentity(cols)
		assert.ErrorIs(t, err, ErrCompositeKey)
	})

	t.Run("hostile names are bound, not spliced", func(t *testing.T) {
		cols, err := DescribeTable(ctx, conn, db.Dialect(), `Items'); DROP TABLE logs; --`)
		require.NoError(t, err)
		assert.Empty(t, cols)

		cols, err = DescribeTable(ctx, conn, db.Dialect(), `we"ird`)
		require.NoError(t, err)
		assert.Len(t, cols, 1)

		names, err := ListTables(ctx, conn, db.Dialect())
		require.NoError(t, err)
		assert.Contains(t, names, "logs")
	})

	t.Run("unknown table", func(t *testing.T) {
		cols, err := DescribeTable(ctx, conn, db.Dialect(), "nope")
		require.NoError(t, err)
		assert.Empty(t, cols)
	})
}
