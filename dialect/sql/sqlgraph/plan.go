package sqlgraph

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/syssam/relplan"
	"github.com/syssam/relplan/dialect"
	"github.com/syssam/relplan/dialect/sql"
	"github.com/syssam/relplan/dialect/sql/schema"
	"github.com/syssam/relplan/schema/field"
)

// Position locates one parameter of a planned statement.
type Position struct {
	Stmt  int // Index of the statement in plan order.
	Param int // Index of the parameter (and column) in the statement.
}

// Plan is the ordered set of statements of one type and statement kind,
// plus the routing of every global column to its statement parameters.
// A Plan holds no row data and is safe for concurrent use once built.
type Plan struct {
	Op         sql.Op
	Dialect    string
	Root       *schema.Table
	Fields     []*field.Descriptor
	Tables     []*schema.Table  // Tables in statement order.
	Statements []*sql.Statement // One statement per table.
	Groups     []*schema.Group  // Field groups in binding order.

	positions [][]Position
	columns   []*schema.Column // Source declaration of each global column.
	owners    []int            // Statement declaring each global column.
	params    []map[int]int    // Per statement, global column to parameter.
	affected  [][]int          // Per group, statements having columns in its range.
	keys      map[string]int   // Referenced table to the group writing its rows.
	refKeys   map[string]int   // Referenced table to the global column of its key.
}

// PlanOption configures NewPlan.
type PlanOption func(*planConfig)

type planConfig struct {
	log *slog.Logger
}

// WithLogger sets the logger used while building the plan.
func WithLogger(l *slog.Logger) PlanOption {
	return func(c *planConfig) {
		c.log = l
	}
}

// NewPlan decomposes the given fields into a table tree rooted at table,
// propagates the keys of owner tables and orders one statement of the
// given kind per table: referenced tables before their owner, dependent
// tables after it.
func NewPlan(op sql.Op, fields []*field.Descriptor, table, dialectName string, opts ...PlanOption) (*Plan, error) {
	cfg := &planConfig{log: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}
	if !dialect.Valid(dialectName) {
		return nil, relplan.NewAssemblyError(table, "", fmt.Errorf("unsupported dialect %q", dialectName))
	}
	if op < sql.OpCreate || op > sql.OpSelect {
		return nil, relplan.NewAssemblyError(table, "", fmt.Errorf("unknown statement kind %s", op))
	}
	root, err := schema.NewBuilder(schema.WithLogger(cfg.log)).Build(fields, table, 0)
	if err != nil {
		return nil, err
	}
	if err := schema.Propagate(root); err != nil {
		return nil, err
	}
	p := &Plan{
		Op:      op,
		Dialect: dialectName,
		Root:    root,
		Fields:  fields,
		Tables:  schema.Ordered(root),
		Groups:  root.Groups,
	}
	if err := p.route(); err != nil {
		return nil, err
	}
	for _, t := range p.Tables {
		p.Statements = append(p.Statements, p.statement(t))
	}
	p.scopes()
	cfg.log.Debug("statement plan built", "table", table, "op", op.String(), "statements", len(p.Statements), "columns", len(p.columns))
	return p, nil
}

// route records the statement parameters of every global column and checks
// that every column declared in the tree has a statement parameter.
func (p *Plan) route() error {
	var (
		total   int
		entries int
		n       = p.Root.NumColumns()
	)
	p.positions = make([][]Position, n)
	p.columns = make([]*schema.Column, n)
	p.owners = make([]int, n)
	p.params = make([]map[int]int, len(p.Tables))
	for _, t := range p.Root.Tables() {
		total += len(t.Columns)
	}
	for i, t := range p.Tables {
		p.params[i] = make(map[int]int, len(t.Columns))
		for j, d := range t.Columns {
			if d.Index < 0 || d.Index >= n {
				return relplan.NewAssemblyError(t.Name, d.Field, fmt.Errorf("column %q has index %d out of range [0, %d)", d.Name, d.Index, n))
			}
			p.positions[d.Index] = append(p.positions[d.Index], Position{Stmt: i, Param: j})
			p.params[i][d.Index] = j
			entries++
			if !d.Propagated {
				p.columns[d.Index] = d.Column
				p.owners[d.Index] = i
			}
		}
	}
	if entries != total {
		return relplan.NewAssemblyError(p.Root.Name, "", fmt.Errorf("recorded %d parameter positions for %d declared columns", entries, total))
	}
	for idx, ps := range p.positions {
		if len(ps) == 0 || p.columns[idx] == nil {
			return relplan.NewAssemblyError(p.Root.Name, "", fmt.Errorf("unaccounted column %d", idx))
		}
	}
	return nil
}

func (p *Plan) statement(t *schema.Table) *sql.Statement {
	s := &sql.Statement{Op: p.Op, Table: t.Name}
	for _, d := range t.Columns {
		c := sql.ColumnDef{Name: d.Name}
		if p.Op == sql.OpCreate {
			c.Type = d.SQLType(p.Dialect)
			c.PrimaryKey = d.PrimaryKey
			c.Unique = d.Unique
			c.NotNull = d.NotNull
			c.Check = d.Check
		}
		if p.Op == sql.OpSelect && (d.Propagated || d.Synthetic) {
			s.OrderBy = append(s.OrderBy, d.Name)
		}
		s.Columns = append(s.Columns, c)
	}
	if p.Op == sql.OpCreate {
		for _, fk := range schema.ForeignKeys(t) {
			s.ForeignKeys = append(s.ForeignKeys, sql.ForeignKeyDef{
				Symbol:     fk.Symbol,
				Columns:    fk.Columns,
				RefTable:   fk.RefTable,
				RefColumns: fk.RefColumns,
			})
		}
	}
	return s
}

// scopes computes the statements touched by every group and the groups
// that write the rows of referenced tables.
func (p *Plan) scopes() {
	p.affected = make([][]int, len(p.Groups))
	p.keys = make(map[string]int)
	p.refKeys = make(map[string]int)
	for i, g := range p.Groups {
		seen := make(map[int]bool)
		for idx := g.Start; idx < g.End; idx++ {
			for _, pos := range p.positions[idx] {
				if !seen[pos.Stmt] {
					seen[pos.Stmt] = true
					p.affected[i] = append(p.affected[i], pos.Stmt)
				}
			}
		}
		if g.Kind == schema.GroupReference && g.Owner {
			p.keys[g.Desc.Ref] = i
			if s, ok := p.Statement(g.Desc.Ref); ok {
				if d, ok := p.Tables[s].Column(g.Key); ok {
					p.refKeys[g.Desc.Ref] = d.Index
				}
			}
		}
	}
}

// NumColumns returns the number of global columns of the plan.
func (p *Plan) NumColumns() int { return len(p.positions) }

// Positions returns the statement parameters bound to the given global column.
func (p *Plan) Positions(col int) []Position {
	if col < 0 || col >= len(p.positions) {
		return nil
	}
	return p.positions[col]
}

// Column returns the source declaration of the given global column.
func (p *Plan) Column(col int) *schema.Column {
	if col < 0 || col >= len(p.columns) {
		return nil
	}
	return p.columns[col]
}

// Statement returns the index of the statement of the given table.
func (p *Plan) Statement(table string) (int, bool) {
	for i, t := range p.Tables {
		if t.Name == table {
			return i, true
		}
	}
	return 0, false
}

// Param returns the parameter of the given global column in a statement.
func (p *Plan) Param(stmt, col int) (int, bool) {
	if stmt < 0 || stmt >= len(p.params) {
		return 0, false
	}
	j, ok := p.params[stmt][col]
	return j, ok
}

// KeyColumn returns the global column of the key of a referenced table.
func (p *Plan) KeyColumn(table string) (int, bool) {
	col, ok := p.refKeys[table]
	return col, ok
}

// Render returns the SQL text of every statement in plan order.
func (p *Plan) Render() ([]string, error) {
	queries := make([]string, len(p.Statements))
	for i, s := range p.Statements {
		q, err := sql.Render(p.Dialect, s)
		if err != nil {
			return nil, relplan.NewAssemblyError(s.Table, "", err)
		}
		queries[i] = q
	}
	return queries, nil
}

var errPlanKind = errors.New("plan statement kind does not match the operation")

func checkKind(p *Plan, op sql.Op) error {
	if p.Op != op {
		return relplan.NewAssemblyError(p.Root.Name, "", fmt.Errorf("%w: %s plan used for %s", errPlanKind, p.Op, op))
	}
	return nil
}
