package sql

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relplan/dialect"
)

func TestKindOf(t *testing.T) {
	tests := map[string]Op{
		`CREATE TABLE IF NOT EXISTS "t" ("a" integer)`: OpCreate,
		`  insert into "t" ("a") VALUES (?)`:           OpInsert,
		`SELECT "a" FROM "t"`:                          OpSelect,
		`PRAGMA foreign_keys = ON`:                     0,
		`SEL`:                                          0,
		``:                                             0,
	}
	for query, want := range tests {
		assert.Equal(t, want, kindOf(query), query)
	}
}

func TestStatsDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var slow []SlowStatement
	drv := NewStatsDriver(OpenDB(dialect.SQLite, db),
		WithSlowThreshold(time.Hour),
		WithSlowHook(func(_ context.Context, s SlowStatement) {
			slow = append(slow, s)
		}),
	)
	assert.Equal(t, time.Hour, drv.SlowThreshold())

	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, drv.Exec(context.Background(), `CREATE TABLE "t" ("a" integer)`, []any{}, nil))

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"a"}).AddRow(1))
	rows := &Rows{}
	require.NoError(t, drv.Query(context.Background(), `SELECT "a" FROM "t"`, []any{}, rows))
	require.NoError(t, rows.Close())

	mock.ExpectExec("INSERT").WillReturnError(errors.New("boom"))
	require.Error(t, drv.Exec(context.Background(), `INSERT INTO "t" ("a") VALUES (1)`, []any{}, nil))

	prep := mock.ExpectPrepare("INSERT")
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	n, err := drv.ExecBatch(context.Background(), `INSERT INTO "t" ("a") VALUES (?)`, [][]any{{1}, {2}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())

	s := drv.Stats().Snapshot()
	assert.Equal(t, int64(1), s.Creates)
	assert.Equal(t, int64(2), s.Inserts)
	assert.Equal(t, int64(1), s.Selects)
	assert.Equal(t, int64(4), s.Statements())
	assert.Equal(t, int64(1), s.Batches)
	assert.Equal(t, int64(2), s.Rows)
	assert.Equal(t, int64(1), s.Errors)
	assert.Zero(t, s.Slow)
	assert.Empty(t, slow)
	assert.Contains(t, s.String(), "create=1 insert=2 select=1 other=0 batches=1 rows=2")

	drv.SetSlowThreshold(-1)
	mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(0, 1))
	_, err = drv.ExecBatch(context.Background(), `INSERT INTO "t" ("a") VALUES (?)`, [][]any{{3}})
	require.NoError(t, err)
	require.Len(t, slow, 1)
	assert.Equal(t, `INSERT INTO "t" ("a") VALUES (?)`, slow[0].Query)
	assert.Equal(t, 1, slow[0].Rows)
	assert.Equal(t, int64(1), drv.Stats().Snapshot().Slow)

	drv.Stats().Reset()
	assert.Equal(t, StatsSnapshot{}, drv.Stats().Snapshot())
}

func TestStatsTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := NewStatsDriver(OpenDB(dialect.Postgres, db))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	_, err = tx.(Batcher).ExecBatch(context.Background(), `INSERT INTO "t" ("a") VALUES ($1)`, [][]any{{1}})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	mock.ExpectBegin()
	mock.ExpectRollback()
	tx, err = drv.Tx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())

	s := drv.Stats().Snapshot()
	assert.Equal(t, int64(1), s.Inserts)
	assert.Equal(t, int64(1), s.Rows)
	assert.Equal(t, int64(1), s.Commits)
	assert.Equal(t, int64(1), s.Rollbacks)
}

func TestSlowLog(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var buf bytes.Buffer
	drv := NewStatsDriver(OpenDB(dialect.SQLite, db), WithSlowThreshold(-1), WithSlowLog(slog.New(slog.NewTextHandler(&buf, nil))))
	mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, drv.Exec(context.Background(), `CREATE TABLE "t" ("a" integer)`, []any{}, nil))
	assert.Contains(t, buf.String(), `level=WARN msg="slow statement" sql="CREATE TABLE \"t\" (\"a\" integer)" rows=0`)
}

func TestDebugDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	drv := NewDebugDriver(OpenDB(dialect.SQLite, db), DebugWithLogger(logger))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()
	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Exec(context.Background(), "INSERT INTO t VALUES (?)", []any{1}, nil))
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())

	out := buf.String()
	assert.Contains(t, out, "begin transaction")
	assert.Contains(t, out, `msg="tx exec" sql="INSERT INTO t VALUES (?)"`)
	assert.Contains(t, out, "rollback transaction")
}
