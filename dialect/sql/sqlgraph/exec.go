package sqlgraph

import (
	"context"
	"errors"

	"github.com/syssam/relplan"
	"github.com/syssam/relplan/dialect"
	"github.com/syssam/relplan/dialect/sql"
)

// Create executes the CREATE statements of the plan in plan order.
func Create(ctx context.Context, drv dialect.ExecQuerier, p *Plan) error {
	if err := checkKind(p, sql.OpCreate); err != nil {
		return err
	}
	queries, err := p.Render()
	if err != nil {
		return err
	}
	for i, q := range queries {
		if err := drv.Exec(ctx, q, []any{}, nil); err != nil {
			return execError(sql.OpCreate.String(), p.Statements[i].Table, err)
		}
	}
	return nil
}

// Insert binds the object into the INSERT plan and executes the bound
// statements in plan order. It returns the number of inserted rows.
func Insert(ctx context.Context, drv dialect.ExecQuerier, p *Plan, obj map[string]any) (int64, error) {
	if err := checkKind(p, sql.OpInsert); err != nil {
		return 0, err
	}
	b, err := Bind(p, obj)
	if err != nil {
		return 0, err
	}
	bound, err := b.Materialize()
	if err != nil {
		return 0, err
	}
	return Exec(ctx, drv, p.Dialect, bound)
}

// Exec executes bound statements in order. Drivers implementing
// sql.Batcher execute the rows of a statement as one batch.
func Exec(ctx context.Context, drv dialect.ExecQuerier, dialectName string, bound []*Bound) (int64, error) {
	var total int64
	for _, bs := range bound {
		if len(bs.Rows) == 0 {
			continue
		}
		q, err := sql.Render(dialectName, bs.Stmt)
		if err != nil {
			return total, relplan.NewAssemblyError(bs.Table, "", err)
		}
		op := bs.Stmt.Op.String()
		if batcher, ok := drv.(sql.Batcher); ok {
			n, err := batcher.ExecBatch(ctx, q, bs.Rows)
			total += n
			if err != nil {
				return total, execError(op, bs.Table, err)
			}
			continue
		}
		for _, args := range bs.Rows {
			if err := drv.Exec(ctx, q, args, nil); err != nil {
				return total, execError(op, bs.Table, err)
			}
			total++
		}
	}
	return total, nil
}

// Query executes the SELECT statements of the plan in plan order and
// decodes the objects of the root table. The result of each statement is
// read and closed before the next one is executed.
func Query(ctx context.Context, drv dialect.ExecQuerier, p *Plan) ([]map[string]any, error) {
	if err := checkKind(p, sql.OpSelect); err != nil {
		return nil, err
	}
	queries, err := p.Render()
	if err != nil {
		return nil, err
	}
	tables := make([][][]any, len(queries))
	for i, q := range queries {
		table := p.Statements[i].Table
		rows := &sql.Rows{}
		if err := drv.Query(ctx, q, []any{}, rows); err != nil {
			return nil, execError(sql.OpSelect.String(), table, err)
		}
		c, err := NewRowsCursor(rows)
		if err != nil {
			return nil, errors.Join(execError(sql.OpSelect.String(), table, err), rows.Close())
		}
		tables[i], err = read(c, p.Tables[i])
		if cerr := c.Close(); err == nil && cerr != nil {
			err = execError(sql.OpSelect.String(), table, cerr)
		}
		if err != nil {
			return nil, err
		}
	}
	return rebuild(p, tables)
}
