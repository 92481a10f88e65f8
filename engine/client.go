// Package engine binds value types to their relational statement plans and
// executes them on a database driver.
//
//	drv, err := sql.Open(dialect.SQLite, "file:app.db?_pragma=foreign_keys(1)")
//	if err != nil {
//		return err
//	}
//	client, err := engine.NewClient(engine.Driver(drv))
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//	if err := client.Create(ctx, book); err != nil {
//		return err
//	}
//	n, err := client.Insert(ctx, book, map[string]any{"title": "Dune"})
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/syssam/relplan"
	"github.com/syssam/relplan/dialect"
	"github.com/syssam/relplan/dialect/sql"
	"github.com/syssam/relplan/dialect/sql/sqlgraph"
	"github.com/syssam/relplan/schema"
)

// Client executes the statement plans of types on one driver.
type Client struct {
	config
}

// config is the configuration of the client.
type config struct {
	driver  dialect.Driver
	dialect string
	debug   bool
	log     *slog.Logger
	cache   *PlanCache
}

// Option function to configure the client.
type Option func(*config)

// Driver sets the driver for the client.
func Driver(driver dialect.Driver) Option {
	return func(c *config) {
		c.driver = driver
	}
}

// Dialect overrides the dialect reported by the driver.
func Dialect(name string) Option {
	return func(c *config) {
		c.dialect = name
	}
}

// Debug enables debug logging of the statements executed by the client.
func Debug() Option {
	return func(c *config) {
		c.debug = true
	}
}

// Log sets the logger of the client.
func Log(l *slog.Logger) Option {
	return func(c *config) {
		c.log = l
	}
}

// WithCache shares a plan cache between clients.
func WithCache(cache *PlanCache) Option {
	return func(c *config) {
		c.cache = cache
	}
}

// NewClient creates a new client configured with the given options.
func NewClient(opts ...Option) (*Client, error) {
	cfg := config{log: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.driver == nil {
		return nil, errors.New("engine: missing driver")
	}
	if cfg.dialect == "" {
		cfg.dialect = cfg.driver.Dialect()
	}
	if !dialect.Valid(cfg.dialect) {
		return nil, fmt.Errorf("engine: unsupported dialect %q", cfg.dialect)
	}
	if cfg.cache == nil {
		cfg.cache = NewPlanCache(CacheLog(cfg.log))
	}
	if drv, ok := cfg.driver.(*sql.Driver); ok && cfg.debug {
		cfg.driver = sql.NewDebugDriver(drv, sql.DebugWithLogger(cfg.log))
	}
	return &Client{config: cfg}, nil
}

// Cache returns the plan cache of the client.
func (c *Client) Cache() *PlanCache { return c.cache }

// Dialect returns the dialect of the statements of the client.
func (c *Client) Dialect() string { return c.dialect }

// Close closes the database connection of the client.
func (c *Client) Close() error { return c.driver.Close() }

// Plan returns the cached plan of a type for the given statement kind.
func (c *Client) Plan(t *schema.Type, op sql.Op) (*sqlgraph.Plan, error) {
	return c.cache.Get(t, op, c.dialect)
}

// Create creates the tables of the given types, referenced tables first.
func (c *Client) Create(ctx context.Context, types ...*schema.Type) error {
	for _, t := range types {
		p, err := c.Plan(t, sql.OpCreate)
		if err != nil {
			return err
		}
		if err := sqlgraph.Create(ctx, c.driver, p); err != nil {
			return err
		}
		c.log.DebugContext(ctx, "tables created", "type", t.Name, "tables", len(p.Tables))
	}
	return nil
}

// Insert writes the given objects of a type in one transaction. Each
// object is bound completely before any of its statements is executed.
// It returns the number of inserted rows.
func (c *Client) Insert(ctx context.Context, t *schema.Type, objs ...map[string]any) (int64, error) {
	p, err := c.Plan(t, sql.OpInsert)
	if err != nil {
		return 0, err
	}
	batches := make([][]*sqlgraph.Bound, len(objs))
	for i, obj := range objs {
		b, err := sqlgraph.Bind(p, obj)
		if err != nil {
			return 0, err
		}
		if batches[i], err = b.Materialize(); err != nil {
			return 0, err
		}
	}
	tx, err := c.driver.Tx(ctx)
	if err != nil {
		return 0, relplan.NewExecError("begin", t.TableName(), err)
	}
	var total int64
	for _, bound := range batches {
		n, err := sqlgraph.Exec(ctx, tx, c.dialect, bound)
		if err != nil {
			return 0, rollback(tx, err)
		}
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, relplan.NewExecError("commit", t.TableName(), err)
	}
	c.log.DebugContext(ctx, "objects inserted", "type", t.Name, "objects", len(objs), "rows", total)
	return total, nil
}

// Query reads every object of a type.
func (c *Client) Query(ctx context.Context, t *schema.Type) ([]map[string]any, error) {
	p, err := c.Plan(t, sql.OpSelect)
	if err != nil {
		return nil, err
	}
	objs, err := sqlgraph.Query(ctx, c.driver, p)
	if err != nil {
		return nil, err
	}
	c.log.DebugContext(ctx, "objects loaded", "type", t.Name, "objects", len(objs))
	return objs, nil
}

// rollback calls tx.Rollback and wraps the given error with the rollback
// error if occurred.
func rollback(tx dialect.Tx, err error) error {
	if rerr := tx.Rollback(); rerr != nil {
		return errors.Join(err, &relplan.RollbackError{Err: rerr})
	}
	return err
}
