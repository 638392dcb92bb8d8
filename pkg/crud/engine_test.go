package crud

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/edgeflare/dbapi/internal/testutil/dbtest"
	"github.com/edgeflare/dbapi/pkg/metrics"
	"github.com/edgeflare/dbapi/pkg/sqldb"
	"github.com/edgeflare/dbapi/pkg/value"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"
)

const itemsDDL = `CREATE TABLE "Items" ("Id" INTEGER PRIMARY KEY, "Name" TEXT, "Price" REAL)`

func newTestEngine(t *testing.T, ddl ...string) (*Engine, sqldb.DB) {
	t.Helper()
	db := dbtest.Open(t, ddl...)
	return NewEngine(db), db
}

func TestItemsScenario(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, itemsDDL)

	res, err := e.Insert(ctx, "Items", value.Fields{"Name": value.Text("Widget"), "Price": value.Float(9.99)})
	require.NoError(t, err)
	assert.Equal(t, "Id", res.Identity)
	assert.True(t, res.Generated)
	assert.Equal(t, value.Int(1), res.Value)

	rows, err := e.List(ctx, "Items")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Id", "Name", "Price"}, rows[0].Columns)
	assert.Equal(t, value.Fields{"Id": value.Int(1), "Name": value.Text("Widget"), "Price": value.Float(9.99)}, rows[0].Fields())

	require.NoError(t, e.UpdateByID(ctx, "Items", "1", value.Fields{"Price": value.Float(12.5)}))
	rows, err = e.List(ctx, "Items")
	require.NoError(t, err)
	price, _ := rows[0].Get("Price")
	assert.Equal(t, value.Float(12.5), price)

	err = e.DeleteByID(ctx, "Items", "999")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, e.DeleteByID(ctx, "Items", "1"))
	rows, err = e.List(ctx, "Items")
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestTables(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	names, err := e.Tables(ctx)
	require.NoError(t, err)
	assert.NotNil(t, names)
	assert.Empty(t, names)

	e, _ = newTestEngine(t, itemsDDL, `CREATE TABLE notes (body TEXT)`)
	names, err = e.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Items", "notes"}, names)

	info, err := e.Describe(ctx, "Items")
	require.NoError(t, err)
	assert.Equal(t, "Id", info.Identity)
	assert.Len(t, info.Columns, 3)

	info, err = e.Describe(ctx, "notes")
	require.NoError(t, err)
	assert.Empty(t, info.Identity)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, itemsDDL)

	_, err := e.List(ctx, "Missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.Insert(ctx, "Items", value.Fields{"Name": value.Text("a")})
	require.NoError(t, err)

	rows, err := e.List(ctx, "items")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestInsert(t *testing.T) {
	ctx := context.Background()

	t.Run("caller supplied identity is kept", func(t *testing.T) {
		e, _ := newTestEngine(t, itemsDDL)
		res, err := e.Insert(ctx, "Items", value.Fields{"id": value.Int(40), "Name": value.Text("x")})
		require.NoError(t, err)
		assert.False(t, res.Generated)
		assert.Equal(t, value.Int(40), res.Value)

		res, err = e.Insert(ctx, "Items", value.Fields{"Name": value.Text("y")})
		require.NoError(t, err)
		assert.Equal(t, value.Int(41), res.Value)
	})

	t.Run("unknown keys are ignored", func(t *testing.T) {
		e, db := newTestEngine(t, itemsDDL)
		_, err := e.Insert(ctx, "Items", value.Fields{"Name": value.Text("x"), "Colour": value.Text("red")})
		require.NoError(t, err)
		assert.Equal(t, int64(1), dbtest.Count(t, db, `SELECT COUNT(*) FROM "Items"`))
	})

	t.Run("partial columns leave the rest null", func(t *testing.T) {
		e, _ := newTestEngine(t, itemsDDL)
		_, err := e.Insert(ctx, "Items", value.Fields{"Name": value.Text("only name")})
		require.NoError(t, err)

		rows, err := e.List(ctx, "Items")
		require.NoError(t, err)
		price, ok := rows[0].Get("Price")
		require.True(t, ok)
		assert.True(t, price.IsNull())
	})

	t.Run("nothing to insert", func(t *testing.T) {
		e, _ := newTestEngine(t, `CREATE TABLE notes (body TEXT)`)
		_, err := e.Insert(ctx, "notes", value.Fields{"other": value.Int(1)})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("unknown table", func(t *testing.T) {
		e, _ := newTestEngine(t)
		_, err := e.Insert(ctx, "Missing", value.Fields{"a": value.Int(1)})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("text identity is not generated", func(t *testing.T) {
		e, _ := newTestEngine(t, `CREATE TABLE codes (code TEXT PRIMARY KEY, label TEXT)`)
		res, err := e.Insert(ctx, "codes", value.Fields{"label": value.Text("x")})
		require.NoError(t, err)
		assert.Equal(t, "code", res.Identity)
		assert.False(t, res.Generated)
		assert.True(t, res.Value.IsNull())
	})

	t.Run("composite key skips generation", func(t *testing.T) {
		e, _ := newTestEngine(t, `CREATE TABLE pairs (a INTEGER, b INTEGER, PRIMARY KEY (a, b))`)
		res, err := e.Insert(ctx, "pairs", value.Fields{"a": value.Int(1), "b": value.Int(2)})
		require.NoError(t, err)
		assert.Empty(t, res.Identity)
	})

	t.Run("inferred identity without declared key", func(t *testing.T) {
		e, _ := newTestEngine(t, `CREATE TABLE events (EventId INTEGER, title TEXT)`)
		for range 3 {
			_, err := e.Insert(ctx, "events", value.Fields{"title": value.Text("t")})
			require.NoError(t, err)
		}
		rows, err := e.List(ctx, "events")
		require.NoError(t, err)
		var ids []int64
		for _, r := range rows {
			v, _ := r.Get("EventId")
			id, ok := v.AsInt()
			require.True(t, ok)
			ids = append(ids, id)
		}
		assert.Equal(t, []int64{1, 2, 3}, ids)
	})
}

func TestConcurrentInsertUniqueness(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, `CREATE TABLE counters (CounterId INTEGER, label TEXT)`)

	const n = 20
	var (
		mu  sync.Mutex
		ids []int64
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := range n {
		g.Go(func() error {
			res, err := e.Insert(gctx, "counters", value.Fields{"label": value.Int(int64(i))})
			if err != nil {
				return err
			}
			id, ok := res.Value.AsInt()
			if !ok {
				return errors.New("identity was not generated")
			}
			mu.Lock()
			ids = append(ids, id)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	slices.Sort(ids)
	want := make([]int64, n)
	for i := range want {
		want[i] = int64(i + 1)
	}
	assert.Equal(t, want, ids)

	rows, err := e.List(ctx, "counters")
	require.NoError(t, err)
	stored := make(map[int64]bool, n)
	for _, r := range rows {
		v, _ := r.Get("CounterId")
		id, _ := v.AsInt()
		stored[id] = true
	}
	assert.Len(t, stored, n)
}

func TestRoundTripFidelity(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, `CREATE TABLE things (
		id INTEGER PRIMARY KEY,
		label TEXT,
		qty INTEGER,
		ratio REAL,
		active BOOLEAN,
		meta TEXT,
		big TEXT,
		note TEXT
	)`)

	body := []byte(`{"label":"Widget","qty":3000000000,"ratio":0.25,"active":true,"meta":{"tags":["a","b"]},"big":1e400,"note":null}`)
	fields, err := value.DecodeFields(body)
	require.NoError(t, err)

	_, err = e.Insert(ctx, "things", fields)
	require.NoError(t, err)

	rows, err := e.List(ctx, "things")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	got := rows[0]

	for name, want := range map[string]value.Value{
		"label":  value.Text("Widget"),
		"qty":    value.Int(3000000000),
		"ratio":  value.Float(0.25),
		"active": value.Bool(true),
		"meta":   value.Text(`{"tags":["a","b"]}`),
		"big":    value.Text("1e400"),
		"note":   value.Null(),
	} {
		v, ok := got.Get(name)
		require.True(t, ok, name)
		assert.True(t, want.Equal(v), "%s: want %#v, got %#v", name, want, v)
	}
}

func TestUpdateByID(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, itemsDDL)
	_, err := e.Insert(ctx, "Items", value.Fields{"Name": value.Text("a"), "Price": value.Float(1)})
	require.NoError(t, err)

	tests := []struct {
		name    string
		table   string
		rowID   string
		fields  value.Fields
		wantErr error
	}{
		{name: "updates", table: "Items", rowID: "1", fields: value.Fields{"name": value.Text("b")}},
		{name: "identity in body is skipped", table: "Items", rowID: "1", fields: value.Fields{"ID": value.Int(5), "Price": value.Float(2)}},
		{name: "only identity", table: "Items", rowID: "1", fields: value.Fields{"Id": value.Int(5)}, wantErr: ErrInvalidInput},
		{name: "empty", table: "Items", rowID: "1", fields: value.Fields{}, wantErr: ErrInvalidInput},
		{name: "unknown column", table: "Items", rowID: "1", fields: value.Fields{"Colour": value.Text("red")}, wantErr: ErrInvalidInput},
		{name: "missing row", table: "Items", rowID: "2", fields: value.Fields{"Name": value.Text("c")}, wantErr: ErrNotFound},
		{name: "unparsable id", table: "Items", rowID: "abc", fields: value.Fields{"Name": value.Text("c")}, wantErr: ErrNotFound},
		{name: "missing table", table: "Nope", rowID: "1", fields: value.Fields{"Name": value.Text("c")}, wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.UpdateByID(ctx, tt.table, tt.rowID, tt.fields)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}

	rows, err := e.List(ctx, "Items")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, value.Fields{"Id": value.Int(1), "Name": value.Text("b"), "Price": value.Float(2)}, rows[0].Fields())
}

func TestUnresolvableIdentity(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t,
		`CREATE TABLE logs (message TEXT, level TEXT)`,
		`CREATE TABLE pairs (a INTEGER, b INTEGER, PRIMARY KEY (a, b))`,
	)

	err := e.UpdateByID(ctx, "logs", "1", value.Fields{"message": value.Text("x")})
	assert.ErrorIs(t, err, ErrUnresolvableIdentity)

	err = e.DeleteByID(ctx, "logs", "1")
	assert.ErrorIs(t, err, ErrUnresolvableIdentity)

	err = e.DeleteByID(ctx, "pairs", "1")
	assert.ErrorIs(t, err, ErrUnresolvableIdentity)

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindUnresolvableIdentity, ce.Kind)
}

func TestByFields(t *testing.T) {
	ctx := context.Background()
	e, db := newTestEngine(t, itemsDDL)
	for _, name := range []string{"a", "a", "b"} {
		_, err := e.Insert(ctx, "Items", value.Fields{"Name": value.Text(name), "Price": value.Float(1)})
		require.NoError(t, err)
	}

	t.Run("update matches every equal row", func(t *testing.T) {
		n, err := e.UpdateByFields(ctx, "Items",
			value.Fields{"name": value.Text("a"), "junk": value.Int(1)},
			value.Fields{"Price": value.Float(5)},
		)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		assert.Equal(t, int64(2), dbtest.Count(t, db, `SELECT COUNT(*) FROM "Items" WHERE "Price" = 5`))
	})

	t.Run("update with no match is not an error", func(t *testing.T) {
		n, err := e.UpdateByFields(ctx, "Items", value.Fields{"Name": value.Text("zzz")}, value.Fields{"Price": value.Float(1)})
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("update with null original matches nothing", func(t *testing.T) {
		n, err := e.UpdateByFields(ctx, "Items", value.Fields{"Name": value.Null()}, value.Fields{"Price": value.Float(1)})
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("update needs columns on both sides", func(t *testing.T) {
		_, err := e.UpdateByFields(ctx, "Items", value.Fields{"junk": value.Int(1)}, value.Fields{"Price": value.Float(1)})
		assert.ErrorIs(t, err, ErrInvalidInput)
		_, err = e.UpdateByFields(ctx, "Items", value.Fields{"Name": value.Text("a")}, value.Fields{})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("delete", func(t *testing.T) {
		n, err := e.DeleteByFields(ctx, "Items", value.Fields{"Name": value.Text("b"), "ignored": value.Int(1)})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = e.DeleteByFields(ctx, "Items", value.Fields{"Name": value.Text("b")})
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("delete refuses to match everything", func(t *testing.T) {
		_, err := e.DeleteByFields(ctx, "Items", value.Fields{})
		assert.ErrorIs(t, err, ErrInvalidInput)
		_, err = e.DeleteByFields(ctx, "Items", value.Fields{"junk": value.Int(1)})
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Equal(t, int64(2), dbtest.Count(t, db, `SELECT COUNT(*) FROM "Items"`))
	})

	t.Run("missing table", func(t *testing.T) {
		_, err := e.DeleteByFields(ctx, "Nope", value.Fields{"a": value.Int(1)})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestInjectionSafety(t *testing.T) {
	ctx := context.Background()
	e, db := newTestEngine(t, itemsDDL, `CREATE TABLE users (name TEXT)`, `INSERT INTO users VALUES ('root')`)

	_, err := e.List(ctx, `Items"; DROP TABLE users; --`)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.Insert(ctx, `Items"; DROP TABLE users; --`, value.Fields{"Name": value.Text("x")})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.Insert(ctx, "Items", value.Fields{"Name": value.Text(`'); DROP TABLE users; --`)})
	require.NoError(t, err)

	err = e.DeleteByID(ctx, "Items", "1 OR 1=1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, int64(1), dbtest.Count(t, db, `SELECT COUNT(*) FROM users`))
	assert.Equal(t, int64(1), dbtest.Count(t, db, `SELECT COUNT(*) FROM "Items"`))
}

func TestObservability(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	db := dbtest.Open(t, `CREATE TABLE strict (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`)
	e := NewEngine(db, WithLogger(zap.New(core)))

	missing := metrics.DBOperations.WithLabelValues("delete_by_id", "not_found")
	failed := metrics.DBOperations.WithLabelValues("insert", "error")
	beforeMissing := testutil.ToFloat64(missing)
	beforeFailed := testutil.ToFloat64(failed)

	err := e.DeleteByID(ctx, "strict", "1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, logs.Len(), "caller errors are not logged as store failures")

	_, err = e.Insert(ctx, "strict", value.Fields{"name": value.Null()})
	require.Error(t, err)
	var ce *Error
	assert.False(t, errors.As(err, &ce), "store errors pass through untranslated")

	assert.Equal(t, beforeMissing+1, testutil.ToFloat64(missing))
	assert.Equal(t, beforeFailed+1, testutil.ToFloat64(failed))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "store operation failed", logs.All()[0].Message)
	assert.Equal(t, "insert", logs.All()[0].ContextMap()["op"])
}

func TestErrorIs(t *testing.T) {
	err := invalidInput("bad %s", "thing")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "bad thing", err.Error())

	wrapped := unresolvableIdentity("logs", errors.New("no identity column"))
	assert.ErrorIs(t, wrapped, ErrUnresolvableIdentity)
	assert.Contains(t, wrapped.Error(), "no identity column")
}
