// Package dialect defines the driver boundary of the relplan engine.
//
// The engine plans and binds statements but never talks to a database
// directly. Everything it executes goes through the Driver interface defined
// here, which allows the same plan to run against PostgreSQL, MySQL or SQLite.
//
// # Dialect Constants
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # Driver boundary
//
// Plans are executed through ExecQuerier, so a Driver and an open Tx are
// interchangeable. A driver that also implements ExecBatch (see
// dialect/sql.Batcher) receives every row of a statement at once:
//
//	tx, err := drv.Tx(ctx)
//	if err != nil {
//	    return err
//	}
//	n, err := sqlgraph.Exec(ctx, tx, drv.Dialect(), bound)
//
// # Usage
//
//	import (
//	    "github.com/syssam/relplan/dialect"
//	    "github.com/syssam/relplan/dialect/sql"
//	)
//
//	drv, err := sql.Open(dialect.SQLite, "file:app.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
// # Sub-packages
//
//   - dialect/sql: database/sql driver, statement objects and rendering
//   - dialect/sql/schema: table decomposition and foreign-key propagation
//   - dialect/sql/sqlgraph: statement planning, binding and decoding
package dialect
