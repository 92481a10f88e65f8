// Package sql provides the database/sql backed driver and the statement
// renderer used by the planner.
//
// # Statements
//
// The planner hands structured statements to Render, never raw strings:
//
//	s := &sql.Statement{
//	    Op:      sql.OpInsert,
//	    Table:   "users",
//	    Columns: []sql.ColumnDef{{Name: "id"}, {Name: "name"}},
//	}
//	query, err := sql.Render(dialect.Postgres, s)
//	// INSERT INTO "users" ("id", "name") VALUES ($1, $2)
//
// Identifiers are quoted with backticks in MySQL and double quotes
// elsewhere. Postgres placeholders are numbered.
//
// # Drivers
//
// Open and OpenDB wrap a *sql.DB in a dialect.Driver. Every Conn also
// implements Batcher, which prepares a statement once and executes it for
// each bound row:
//
//	drv, err := sql.Open(dialect.SQLite, "file:app.db?_pragma=foreign_keys(1)")
//	n, err := drv.ExecBatch(ctx, query, rows)
//
// StatsDriver and DebugDriver decorate a Driver with query statistics and
// slog based statement logging.
package sql
