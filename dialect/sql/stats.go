package sql

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/syssam/relplan/dialect"
)

// Stats counts the statements executed through a StatsDriver and its
// transactions. It is safe for concurrent use.
type Stats struct {
	stmts     [OpSelect + 1]atomic.Int64 // Index 0 counts statements of no planned kind.
	batches   atomic.Int64
	rows      atomic.Int64
	commits   atomic.Int64
	rollbacks atomic.Int64
	errors    atomic.Int64
	slow      atomic.Int64
	elapsed   atomic.Int64
}

// Snapshot returns the current values of the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Creates:   s.stmts[OpCreate].Load(),
		Inserts:   s.stmts[OpInsert].Load(),
		Selects:   s.stmts[OpSelect].Load(),
		Other:     s.stmts[0].Load(),
		Batches:   s.batches.Load(),
		Rows:      s.rows.Load(),
		Commits:   s.commits.Load(),
		Rollbacks: s.rollbacks.Load(),
		Errors:    s.errors.Load(),
		Slow:      s.slow.Load(),
		Elapsed:   time.Duration(s.elapsed.Load()),
	}
}

// Reset sets every counter to zero.
func (s *Stats) Reset() {
	for i := range s.stmts {
		s.stmts[i].Store(0)
	}
	for _, c := range []*atomic.Int64{&s.batches, &s.rows, &s.commits, &s.rollbacks, &s.errors, &s.slow, &s.elapsed} {
		c.Store(0)
	}
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Creates, Inserts, Selects, Other int64
	// Batches counts ExecBatch calls, Rows the rows they wrote.
	Batches, Rows      int64
	Commits, Rollbacks int64
	Errors, Slow       int64
	Elapsed            time.Duration
}

// Statements returns the number of executed statements. A batch counts
// once.
func (s StatsSnapshot) Statements() int64 {
	return s.Creates + s.Inserts + s.Selects + s.Other
}

// String returns a one-line summary of the snapshot.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf("create=%d insert=%d select=%d other=%d batches=%d rows=%d commits=%d rollbacks=%d errors=%d slow=%d elapsed=%s",
		s.Creates, s.Inserts, s.Selects, s.Other, s.Batches, s.Rows, s.Commits, s.Rollbacks, s.Errors, s.Slow, s.Elapsed)
}

// kindOf returns the statement kind of a rendered statement, or 0 if the
// statement is not one the planner renders.
func kindOf(query string) Op {
	q := strings.TrimSpace(query)
	for _, op := range []Op{OpCreate, OpInsert, OpSelect} {
		if len(q) >= len(op.String()) && strings.EqualFold(q[:len(op.String())], op.String()) {
			return op
		}
	}
	return 0
}

// SlowStatement describes a statement that ran longer than the threshold
// of a StatsDriver.
type SlowStatement struct {
	Query   string
	Rows    int // Rows of a batch, 0 for single statements.
	Elapsed time.Duration
}

// SlowHook is called for every slow statement.
type SlowHook func(context.Context, SlowStatement)

// StatsDriver wraps a Driver and counts the statements executed through it.
type StatsDriver struct {
	*Driver
	stats     *Stats
	threshold atomic.Int64
	hook      SlowHook
}

// StatsOption configures a StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the duration above which a statement is slow.
// The default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.threshold.Store(int64(d))
	}
}

// WithSlowHook sets the function called for slow statements.
func WithSlowHook(hook SlowHook) StatsOption {
	return func(s *StatsDriver) {
		s.hook = hook
	}
}

// WithSlowLog logs slow statements at warn level.
func WithSlowLog(l *slog.Logger) StatsOption {
	return WithSlowHook(func(ctx context.Context, s SlowStatement) {
		l.WarnContext(ctx, "slow statement", "sql", s.Query, "rows", s.Rows, "elapsed", s.Elapsed)
	})
}

// NewStatsDriver wraps a Driver with statement statistics.
//
//	drv := sql.NewStatsDriver(base, sql.WithSlowLog(slog.Default()))
//	client, err := engine.NewClient(engine.Driver(drv))
//	...
//	fmt.Println(drv.Stats().Snapshot())
func NewStatsDriver(drv *Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{Driver: drv, stats: &Stats{}}
	s.threshold.Store(int64(100 * time.Millisecond))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenStats opens a database of the dialect and wraps it with statistics.
func OpenStats(dialectName, source string, opts ...StatsOption) (*StatsDriver, error) {
	drv, err := Open(dialectName, source)
	if err != nil {
		return nil, err
	}
	return NewStatsDriver(drv, opts...), nil
}

// Stats returns the counters of the driver.
func (d *StatsDriver) Stats() *Stats { return d.stats }

// SlowThreshold returns the slow statement threshold.
func (d *StatsDriver) SlowThreshold() time.Duration {
	return time.Duration(d.threshold.Load())
}

// SetSlowThreshold changes the slow statement threshold.
func (d *StatsDriver) SetSlowThreshold(threshold time.Duration) {
	d.threshold.Store(int64(threshold))
}

// Query executes a query and counts it.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Query(ctx, query, args, v)
	d.record(ctx, query, -1, start, err)
	return err
}

// Exec executes a statement and counts it.
func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Exec(ctx, query, args, v)
	d.record(ctx, query, -1, start, err)
	return err
}

// ExecBatch executes a statement for every row and counts it as one
// statement and one batch.
func (d *StatsDriver) ExecBatch(ctx context.Context, query string, rows [][]any) (int64, error) {
	start := time.Now()
	n, err := d.Driver.ExecBatch(ctx, query, rows)
	d.stats.rows.Add(n)
	d.record(ctx, query, len(rows), start, err)
	return n, err
}

// Tx starts a transaction whose statements are counted by the driver.
func (d *StatsDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		d.stats.errors.Add(1)
		return nil, err
	}
	return &StatsTx{Tx: tx, driver: d}, nil
}

// record counts one statement. A negative rows marks a single statement.
func (d *StatsDriver) record(ctx context.Context, query string, rows int, start time.Time, err error) {
	elapsed := time.Since(start)
	d.stats.stmts[kindOf(query)].Add(1)
	d.stats.elapsed.Add(int64(elapsed))
	if rows >= 0 {
		d.stats.batches.Add(1)
	}
	if err != nil {
		d.stats.errors.Add(1)
	}
	if elapsed <= d.SlowThreshold() {
		return
	}
	d.stats.slow.Add(1)
	if d.hook != nil {
		d.hook(ctx, SlowStatement{Query: query, Rows: max(rows, 0), Elapsed: elapsed})
	}
}

// StatsTx is a transaction of a StatsDriver.
type StatsTx struct {
	dialect.Tx
	driver *StatsDriver
}

// Query executes a query within the transaction and counts it.
func (tx *StatsTx) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Query(ctx, query, args, v)
	tx.driver.record(ctx, query, -1, start, err)
	return err
}

// Exec executes a statement within the transaction and counts it.
func (tx *StatsTx) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Exec(ctx, query, args, v)
	tx.driver.record(ctx, query, -1, start, err)
	return err
}

// ExecBatch executes a batch within the transaction and counts it.
func (tx *StatsTx) ExecBatch(ctx context.Context, query string, rows [][]any) (int64, error) {
	b, ok := tx.Tx.(Batcher)
	if !ok {
		return 0, fmt.Errorf("dialect/sql: transaction %T does not support batches", tx.Tx)
	}
	start := time.Now()
	n, err := b.ExecBatch(ctx, query, rows)
	tx.driver.stats.rows.Add(n)
	tx.driver.record(ctx, query, len(rows), start, err)
	return n, err
}

// Commit commits the transaction and counts it.
func (tx *StatsTx) Commit() error {
	if err := tx.Tx.Commit(); err != nil {
		tx.driver.stats.errors.Add(1)
		return err
	}
	tx.driver.stats.commits.Add(1)
	return nil
}

// Rollback rolls back the transaction and counts it.
func (tx *StatsTx) Rollback() error {
	tx.driver.stats.rollbacks.Add(1)
	return tx.Tx.Rollback()
}

// DebugDriver logs every statement executed through it at debug level.
type DebugDriver struct {
	*Driver
	log *slog.Logger
}

// DebugOption configures a DebugDriver.
type DebugOption func(*DebugDriver)

// DebugWithLogger sets the logger of the statements.
func DebugWithLogger(l *slog.Logger) DebugOption {
	return func(d *DebugDriver) {
		d.log = l
	}
}

// NewDebugDriver wraps a Driver with statement logging. The engine client
// installs one when created with engine.Debug().
func NewDebugDriver(drv *Driver, opts ...DebugOption) *DebugDriver {
	d := &DebugDriver{Driver: drv, log: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Query logs and executes a query.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	d.log.DebugContext(ctx, "query", "sql", query, "args", args)
	return d.Driver.Query(ctx, query, args, v)
}

// Exec logs and executes a statement.
func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	d.log.DebugContext(ctx, "exec", "sql", query, "args", args)
	return d.Driver.Exec(ctx, query, args, v)
}

// ExecBatch logs and executes a batch.
func (d *DebugDriver) ExecBatch(ctx context.Context, query string, rows [][]any) (int64, error) {
	d.log.DebugContext(ctx, "exec batch", "sql", query, "rows", len(rows))
	return d.Driver.ExecBatch(ctx, query, rows)
}

// Tx starts a transaction whose statements are logged.
func (d *DebugDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	d.log.DebugContext(ctx, "begin transaction")
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &DebugTx{Tx: tx, log: d.log}, nil
}

// DebugTx is a transaction of a DebugDriver.
type DebugTx struct {
	dialect.Tx
	log *slog.Logger
}

// Query logs and executes a query within the transaction.
func (tx *DebugTx) Query(ctx context.Context, query string, args, v any) error {
	tx.log.DebugContext(ctx, "tx query", "sql", query, "args", args)
	return tx.Tx.Query(ctx, query, args, v)
}

// Exec logs and executes a statement within the transaction.
func (tx *DebugTx) Exec(ctx context.Context, query string, args, v any) error {
	tx.log.DebugContext(ctx, "tx exec", "sql", query, "args", args)
	return tx.Tx.Exec(ctx, query, args, v)
}

// ExecBatch logs and executes a batch within the transaction.
func (tx *DebugTx) ExecBatch(ctx context.Context, query string, rows [][]any) (int64, error) {
	tx.log.DebugContext(ctx, "tx exec batch", "sql", query, "rows", len(rows))
	b, ok := tx.Tx.(Batcher)
	if !ok {
		return 0, fmt.Errorf("dialect/sql: transaction %T does not support batches", tx.Tx)
	}
	return b.ExecBatch(ctx, query, rows)
}

// Commit logs and commits the transaction.
func (tx *DebugTx) Commit() error {
	tx.log.Debug("commit transaction")
	return tx.Tx.Commit()
}

// Rollback logs and rolls back the transaction.
func (tx *DebugTx) Rollback() error {
	tx.log.Debug("rollback transaction")
	return tx.Tx.Rollback()
}

var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Tx     = (*StatsTx)(nil)
	_ dialect.Driver = (*DebugDriver)(nil)
	_ dialect.Tx     = (*DebugTx)(nil)
	_ Batcher        = (*StatsDriver)(nil)
	_ Batcher        = (*StatsTx)(nil)
	_ Batcher        = (*DebugDriver)(nil)
	_ Batcher        = (*DebugTx)(nil)
)
