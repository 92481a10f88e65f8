package sqlgraph

import (
	"errors"
	"fmt"

	"github.com/syssam/relplan"
	"github.com/syssam/relplan/dialect/sql"
	"github.com/syssam/relplan/dialect/sql/schema"
)

// Bound is a planned statement with its rows of parameters.
type Bound struct {
	Stmt  *sql.Statement
	Table string
	Rows  [][]any
}

// row is one row of parameters of a statement. Rows produced by a fan-out
// keep a pointer to the row they were cloned from.
type row struct {
	vals   []any
	set    []bool
	parent *row
	elem   int
}

func (r *row) clone(elem int) *row {
	c := &row{
		vals:   make([]any, len(r.vals)),
		set:    make([]bool, len(r.set)),
		parent: r,
		elem:   elem,
	}
	copy(c.vals, r.vals)
	copy(c.set, r.set)
	return c
}

// from reports if the row or one of the rows it was cloned from is in base.
func (r *row) from(base map[*row]bool) bool {
	for x := r; x != nil; x = x.parent {
		if base[x] {
			return true
		}
	}
	return false
}

// fan is the row fan-out of one collection.
type fan struct {
	stmts   map[int]bool
	clones  map[int]map[*row]bool // clones of every statement, all elements.
	elems   map[int][][]*row      // clones of every statement, per element.
	current int                   // selected element, -1 for all.
}

// base returns the rows in scope for the given statement.
func (f *fan) base(stmt int) map[*row]bool {
	if f.current < 0 {
		return f.clones[stmt]
	}
	base := make(map[*row]bool)
	if es := f.elems[stmt]; f.current < len(es) {
		for _, r := range es[f.current] {
			base[r] = true
		}
	}
	return base
}

// Batch collects the parameters of the statements of one plan for one
// write. Column groups are consumed from a queue in plan order; nested
// collections rewind the queue with Mark and Reset. A Batch is not safe for
// concurrent use and is discarded after Materialize.
type Batch struct {
	plan  *Plan
	rows  [][]*row
	head  int
	marks []int
	fans  []*fan
}

// NewBatch returns an empty batch holding one unbound row per statement.
func NewBatch(p *Plan) *Batch {
	b := &Batch{plan: p, rows: make([][]*row, len(p.Statements))}
	for i, s := range p.Statements {
		n := len(s.Columns)
		b.rows[i] = []*row{{vals: make([]any, n), set: make([]bool, n)}}
	}
	return b
}

// Plan returns the plan of the batch.
func (b *Batch) Plan() *Plan { return b.plan }

// Current returns the group at the head of the queue.
func (b *Batch) Current() (*schema.Group, bool) {
	if b.head >= len(b.plan.Groups) {
		return nil, false
	}
	return b.plan.Groups[b.head], true
}

// Advance moves the head into the first child of the current group.
func (b *Batch) Advance() {
	if b.head < len(b.plan.Groups) {
		b.head++
	}
}

// PopGroup drops the current group and all of its descendants from the
// head of the queue.
func (b *Batch) PopGroup() {
	if g, ok := b.Current(); ok {
		b.head += 1 + g.Children
	}
}

// Mark pushes a checkpoint at the head of the queue.
func (b *Batch) Mark() {
	b.marks = append(b.marks, b.head)
}

// Reset rewinds the queue to the last checkpoint and drops it.
func (b *Batch) Reset() error {
	if len(b.marks) == 0 {
		return relplan.NewBindingError("", errors.New("reset without mark"))
	}
	b.head = b.marks[len(b.marks)-1]
	b.marks = b.marks[:len(b.marks)-1]
	return nil
}

// Pending reports if column groups are left in the queue.
func (b *Batch) Pending() bool {
	return b.head < len(b.plan.Groups) || len(b.marks) > 0
}

// scope returns the live rows of a statement written by the current
// position: the rows of the innermost fan-out that touches the statement.
func (b *Batch) scope(stmt int) []*row {
	for i := len(b.fans) - 1; i >= 0; i-- {
		f := b.fans[i]
		if !f.stmts[stmt] {
			continue
		}
		base := f.base(stmt)
		var rows []*row
		for _, r := range b.rows[stmt] {
			if r.from(base) {
				rows = append(rows, r)
			}
		}
		return rows
	}
	return b.rows[stmt]
}

// SetColumn writes v into every parameter bound to the global column, in
// the rows in scope of each statement.
func (b *Batch) SetColumn(col int, v any) error {
	ps := b.plan.Positions(col)
	if len(ps) == 0 {
		return relplan.NewBindingError("", fmt.Errorf("unknown column %d", col))
	}
	for _, pos := range ps {
		for _, r := range b.scope(pos.Stmt) {
			r.vals[pos.Param] = v
			r.set[pos.Param] = true
		}
	}
	return nil
}

// MultiplyRows replaces every row in scope of the statements touched by the
// current group with n copies, one per element of a collection. Until
// EndMultiply, SelectRow restricts writes to the copies of one element.
func (b *Batch) MultiplyRows(n int) error {
	g, ok := b.Current()
	if !ok {
		return relplan.NewBindingError("", errors.New("multiply rows without a pending group"))
	}
	if n < 1 {
		return relplan.NewBindingError(g.Path, fmt.Errorf("cannot multiply rows by %d", n))
	}
	f := &fan{
		stmts:   make(map[int]bool),
		clones:  make(map[int]map[*row]bool),
		elems:   make(map[int][][]*row),
		current: -1,
	}
	for _, s := range b.plan.affected[b.head] {
		f.stmts[s] = true
		f.clones[s] = make(map[*row]bool)
		f.elems[s] = make([][]*row, n)
		in := make(map[*row]bool)
		for _, r := range b.scope(s) {
			in[r] = true
		}
		live := make([]*row, 0, len(b.rows[s])+len(in)*(n-1))
		for _, r := range b.rows[s] {
			if !in[r] {
				live = append(live, r)
				continue
			}
			for e := range n {
				c := r.clone(e)
				live = append(live, c)
				f.clones[s][c] = true
				f.elems[s][e] = append(f.elems[s][e], c)
			}
		}
		b.rows[s] = live
	}
	b.fans = append(b.fans, f)
	return nil
}

// SelectRow restricts writes to the rows of element e of the innermost
// fan-out. A negative e selects every element.
func (b *Batch) SelectRow(e int) error {
	if len(b.fans) == 0 {
		return relplan.NewBindingError("", errors.New("select row without multiplied rows"))
	}
	b.fans[len(b.fans)-1].current = e
	return nil
}

// EndMultiply closes the innermost fan-out. Writes apply again to all the
// rows of the enclosing scope.
func (b *Batch) EndMultiply() error {
	if len(b.fans) == 0 {
		return relplan.NewBindingError("", errors.New("end multiply without multiplied rows"))
	}
	b.fans = b.fans[:len(b.fans)-1]
	return nil
}

// Null binds an absent composite value to the current group. Columns of the
// table owning the group are written as NULL, rows of the other tables in
// the group are dropped. The group is not consumed.
func (b *Batch) Null() error {
	g, ok := b.Current()
	if !ok {
		return relplan.NewBindingError("", errors.New("null without a pending group"))
	}
	for _, s := range b.plan.affected[b.head] {
		if b.plan.Tables[s].Name != g.Table {
			drop := make(map[*row]bool)
			for _, r := range b.scope(s) {
				drop[r] = true
			}
			live := b.rows[s][:0:0]
			for _, r := range b.rows[s] {
				if !drop[r] {
					live = append(live, r)
				}
			}
			b.rows[s] = live
			continue
		}
		rows := b.scope(s)
		for idx := g.Start; idx < g.End; idx++ {
			j, ok := b.plan.Param(s, idx)
			if !ok {
				continue
			}
			for _, r := range rows {
				r.vals[j] = nil
				r.set[j] = true
			}
		}
	}
	return nil
}

// Rows returns the number of live rows of a statement.
func (b *Batch) Rows(stmt int) int {
	if stmt < 0 || stmt >= len(b.rows) {
		return 0
	}
	return len(b.rows[stmt])
}

// Materialize returns the bound statements in plan order. It fails if
// column groups are pending or a parameter of a live row is unbound.
func (b *Batch) Materialize() ([]*Bound, error) {
	if b.Pending() || len(b.fans) > 0 {
		var path string
		if g, ok := b.Current(); ok {
			path = g.Path
		}
		return nil, relplan.NewBindingError(path, relplan.ErrPendingColumns)
	}
	bound := make([]*Bound, len(b.rows))
	for i, rows := range b.rows {
		s := b.plan.Statements[i]
		bs := &Bound{Stmt: s, Table: s.Table, Rows: make([][]any, 0, len(rows))}
		for _, r := range rows {
			for j, ok := range r.set {
				if !ok {
					return nil, relplan.NewBindingError(b.plan.Tables[i].Columns[j].Field,
						fmt.Errorf("column %q of table %q: %w", s.Columns[j].Name, s.Table, relplan.ErrPendingColumns))
				}
			}
			bs.Rows = append(bs.Rows, r.vals)
		}
		bound[i] = bs
	}
	return bound, nil
}
