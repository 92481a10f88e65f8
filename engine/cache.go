package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/syssam/relplan/dialect/sql"
	"github.com/syssam/relplan/dialect/sql/sqlgraph"
	"github.com/syssam/relplan/schema"
)

// PlanKey identifies a cached plan.
type PlanKey struct {
	Fingerprint string // schema.Fingerprint of the type.
	Op          sql.Op
	Dialect     string
}

// String returns the string representation of the plan key.
func (k PlanKey) String() string {
	return k.Fingerprint + ":" + k.Op.String() + ":" + k.Dialect
}

// PlanCache holds the statement plans of types, one per type, statement
// kind and dialect. A plan is computed at most once: concurrent requests
// for the same key wait for the first computation. Failed computations are
// not cached. A PlanCache is safe for concurrent use.
type PlanCache struct {
	plans   sync.Map // PlanKey => *sqlgraph.Plan
	group   singleflight.Group
	log     *slog.Logger
	workers int
	builds  atomic.Int64
}

// CacheOption configures a PlanCache.
type CacheOption func(*PlanCache)

// CacheLog sets the logger of the cache.
func CacheLog(l *slog.Logger) CacheOption {
	return func(c *PlanCache) {
		c.log = l
	}
}

// CacheWorkers bounds the number of plans built concurrently by Warm.
func CacheWorkers(n int) CacheOption {
	return func(c *PlanCache) {
		if n > 0 {
			c.workers = n
		}
	}
}

// NewPlanCache returns an empty plan cache.
func NewPlanCache(opts ...CacheOption) *PlanCache {
	c := &PlanCache{log: slog.Default(), workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the cache key of a type plan.
func Key(t *schema.Type, op sql.Op, dialectName string) (PlanKey, error) {
	fp, err := schema.Fingerprint(t)
	if err != nil {
		return PlanKey{}, err
	}
	return PlanKey{Fingerprint: fp, Op: op, Dialect: dialectName}, nil
}

// Get returns the plan of the type for the given statement kind and
// dialect, building it on first use.
func (c *PlanCache) Get(t *schema.Type, op sql.Op, dialectName string) (*sqlgraph.Plan, error) {
	if err := t.Err(); err != nil {
		return nil, err
	}
	key, err := Key(t, op, dialectName)
	if err != nil {
		return nil, err
	}
	if p, ok := c.plans.Load(key); ok {
		return p.(*sqlgraph.Plan), nil
	}
	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		if p, ok := c.plans.Load(key); ok {
			return p, nil
		}
		p, err := sqlgraph.NewPlan(op, t.Fields, t.TableName(), dialectName, sqlgraph.WithLogger(c.log))
		if err != nil {
			return nil, fmt.Errorf("engine: planning %s of type %q: %w", op, t.Name, err)
		}
		c.plans.Store(key, p)
		c.builds.Add(1)
		c.log.Debug("plan cached", "type", t.Name, "op", op.String(), "dialect", dialectName, "statements", len(p.Statements))
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sqlgraph.Plan), nil
}

// Warm builds the plans of the given types for every statement kind
// concurrently. The first failure cancels the remaining work.
func (c *PlanCache) Warm(ctx context.Context, dialectName string, types ...*schema.Type) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(c.workers)
	for _, t := range types {
		for _, op := range []sql.Op{sql.OpCreate, sql.OpInsert, sql.OpSelect} {
			eg.Go(func() error {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
					_, err := c.Get(t, op, dialectName)
					return err
				}
			})
		}
	}
	return eg.Wait()
}

// Len returns the number of cached plans.
func (c *PlanCache) Len() int {
	var n int
	c.plans.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

// Builds returns the number of plans computed since the cache was created.
func (c *PlanCache) Builds() int64 { return c.builds.Load() }

// Delete removes the plans of a type for every statement kind and dialect.
func (c *PlanCache) Delete(t *schema.Type) error {
	fp, err := schema.Fingerprint(t)
	if err != nil {
		return err
	}
	c.plans.Range(func(k, _ any) bool {
		if k.(PlanKey).Fingerprint == fp {
			c.plans.Delete(k)
		}
		return true
	})
	return nil
}

// Clear removes every cached plan.
func (c *PlanCache) Clear() { c.plans.Clear() }
