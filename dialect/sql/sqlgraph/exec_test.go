package sqlgraph

import (
	"context"
	stdsql "database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/relplan"
	"github.com/syssam/relplan/dialect"
	"github.com/syssam/relplan/dialect/sql"
	"github.com/syssam/relplan/schema/field"
)

func mockDriver(t *testing.T) (*sql.Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sql.OpenDB(dialect.SQLite, db), mock
}

func TestCreate(t *testing.T) {
	drv, mock := mockDriver(t)
	p := plan(t, sql.OpCreate, "books", bookFields()...)
	queries, err := p.Render()
	require.NoError(t, err)
	for _, q := range queries {
		mock.ExpectExec(q).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, Create(context.Background(), drv, p))
	require.NoError(t, mock.ExpectationsWereMet())

	err = Create(context.Background(), drv, plan(t, sql.OpInsert, "books", bookFields()...))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errPlanKind))
}

func TestInsert(t *testing.T) {
	t.Run("reference", func(t *testing.T) {
		drv, mock := mockDriver(t)
		p := plan(t, sql.OpInsert, "books", bookFields()...)
		mock.ExpectExec(`INSERT INTO "authors" ("id", "name") VALUES (?, ?)`).
			WithArgs(int64(7), "Ann").
			WillReturnResult(sqlmock.NewResult(7, 1))
		mock.ExpectExec(`INSERT INTO "books" ("id", "author") VALUES (?, ?)`).
			WithArgs(int64(1), int64(7)).
			WillReturnResult(sqlmock.NewResult(1, 1))
		n, err := Insert(context.Background(), drv, p, map[string]any{
			"id":     1,
			"author": map[string]any{"id": 7, "name": "Ann"},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("dependent", func(t *testing.T) {
		drv, mock := mockDriver(t)
		p := plan(t, sql.OpInsert, "docs", docFields()...)
		id := uuid.New()
		mock.ExpectExec(`INSERT INTO "docs" ("id", "name") VALUES (?, ?)`).
			WithArgs(id.String(), "a").
			WillReturnResult(sqlmock.NewResult(0, 1))
		prep := mock.ExpectPrepare(`INSERT INTO "docs_tags" ("_tags_index_0", "tags", "docs_id") VALUES (?, ?, ?)`)
		prep.ExpectExec().WithArgs(int64(0), "x", id.String()).WillReturnResult(sqlmock.NewResult(0, 1))
		prep.ExpectExec().WithArgs(int64(1), "y", id.String()).WillReturnResult(sqlmock.NewResult(0, 1))
		n, err := Insert(context.Background(), drv, p, map[string]any{"id": id, "name": "a", "tags": []string{"x", "y"}})
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty_dependent", func(t *testing.T) {
		drv, mock := mockDriver(t)
		p := plan(t, sql.OpInsert, "docs", docFields()...)
		mock.ExpectExec(`INSERT INTO "docs" ("id", "name") VALUES (?, ?)`).
			WithArgs(sqlmock.AnyArg(), "a").
			WillReturnResult(sqlmock.NewResult(0, 1))
		n, err := Insert(context.Background(), drv, p, map[string]any{"name": "a"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("constraint", func(t *testing.T) {
		drv, mock := mockDriver(t)
		p := plan(t, sql.OpInsert, "flags", flagFields()...)
		mock.ExpectExec(`INSERT INTO "flags" ("flag") VALUES (?)`).
			WithArgs(true).
			WillReturnError(&pq.Error{Code: "23505"})
		_, err := Insert(context.Background(), drv, p, map[string]any{"flag": true})
		require.Error(t, err)
		assert.True(t, relplan.IsExecError(err))
		assert.True(t, relplan.IsConstraintError(err))
		assert.True(t, IsUniqueConstraintError(err))
	})

	t.Run("binding", func(t *testing.T) {
		drv, mock := mockDriver(t)
		p := plan(t, sql.OpInsert, "flags", flagFields()...)
		_, err := Insert(context.Background(), drv, p, map[string]any{"flag": 1})
		require.Error(t, err)
		assert.True(t, relplan.IsBindingError(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestQuery(t *testing.T) {
	drv, mock := mockDriver(t)
	p := plan(t, sql.OpSelect, "books", bookFields()...)
	mock.ExpectQuery(`SELECT "id", "name" FROM "authors"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(7), "Ann"))
	mock.ExpectQuery(`SELECT "id", "author" FROM "books"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "author"}).
			AddRow(int64(1), int64(7)).
			AddRow(int64(2), nil))
	got, err := Query(context.Background(), drv, p)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"id": int64(1), "author": map[string]any{"id": int64(7), "name": "Ann"}},
		{"id": int64(2), "author": nil},
	}, got)
	require.NoError(t, mock.ExpectationsWereMet())

	t.Run("error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT "id", "name" FROM "authors"`).WillReturnError(errors.New("no such table"))
		_, err := Query(context.Background(), drv, p)
		require.Error(t, err)
		assert.True(t, relplan.IsExecError(err))
	})
}

// openSQLite opens a private in-memory database. One connection keeps
// every statement on the same database.
func openSQLite(t *testing.T) *sql.Driver {
	t.Helper()
	db, err := stdsql.Open("sqlite", "file::memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return sql.OpenDB(dialect.SQLite, db)
}

func TestSQLite_RoundTrip(t *testing.T) {
	docID := uuid.New()
	tests := []struct {
		name   string
		table  string
		fields func() []field.Field
		objs   []map[string]any
		want   []map[string]any
	}{
		{
			name:   "primitive",
			table:  "flags",
			fields: flagFields,
			objs:   []map[string]any{{"flag": true}, {"flag": false}},
			want:   []map[string]any{{"flag": true}, {"flag": false}},
		},
		{
			name:   "embedded_list",
			table:  "scores",
			fields: listFields,
			objs:   []map[string]any{{"list": []int32{1, 2, 3, 4, 5}}},
			want:   []map[string]any{{"list": []any{int32(1), int32(2), int32(3), int32(4), int32(5)}}},
		},
		{
			name:   "nested_list",
			table:  "grids",
			fields: gridFields,
			objs:   []map[string]any{{"grid": [][]int64{{1, 2, 3, 4, 5}, {100, 200, 300, 400}}}},
			want: []map[string]any{{"grid": []any{
				[]any{int64(1), int64(2), int64(3), int64(4), int64(5)},
				[]any{int64(100), int64(200), int64(300), int64(400)},
			}}},
		},
		{
			name:   "dependent",
			table:  "docs",
			fields: docFields,
			objs:   []map[string]any{{"id": docID, "name": "a", "tags": []string{"x", "y", "z"}}},
			want:   []map[string]any{{"id": docID, "name": "a", "tags": []any{"x", "y", "z"}}},
		},
		{
			name:   "reference",
			table:  "books",
			fields: bookFields,
			objs: []map[string]any{
				{"id": 1, "author": map[string]any{"id": 7, "name": "Ann"}},
				{"id": 2},
			},
			want: []map[string]any{
				{"id": int64(1), "author": map[string]any{"id": int64(7), "name": "Ann"}},
				{"id": int64(2), "author": nil},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			drv := openSQLite(t)
			require.NoError(t, Create(ctx, drv, plan(t, sql.OpCreate, tt.table, tt.fields()...)))
			ins := plan(t, sql.OpInsert, tt.table, tt.fields()...)
			for _, obj := range tt.objs {
				_, err := Insert(ctx, drv, ins, obj)
				require.NoError(t, err)
			}
			got, err := Query(ctx, drv, plan(t, sql.OpSelect, tt.table, tt.fields()...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSQLite_Constraints(t *testing.T) {
	ctx := context.Background()
	drv := openSQLite(t)
	require.NoError(t, Create(ctx, drv, plan(t, sql.OpCreate, "books", bookFields()...)))
	ins := plan(t, sql.OpInsert, "books", bookFields()...)
	obj := map[string]any{"id": 1, "author": map[string]any{"id": 7, "name": "Ann"}}
	_, err := Insert(ctx, drv, ins, obj)
	require.NoError(t, err)

	_, err = Insert(ctx, drv, ins, obj)
	require.Error(t, err)
	assert.True(t, relplan.IsExecError(err))
	assert.True(t, IsUniqueConstraintError(err), "unexpected error: %v", err)

	// The referenced row is missing.
	bound := []*Bound{{Stmt: ins.Statements[1], Table: "books", Rows: [][]any{{int64(2), int64(99)}}}}
	_, err = Exec(ctx, drv, dialect.SQLite, bound)
	require.Error(t, err)
	assert.True(t, IsForeignKeyConstraintError(err), "unexpected error: %v", err)
}
