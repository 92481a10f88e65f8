package sqlgraph

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"strings"

	"github.com/syssam/relplan"
	"github.com/syssam/relplan/dialect/sql/schema"
	"github.com/syssam/relplan/schema/field"
)

// Decode reads the results of the statements of the plan, one cursor per
// statement in plan order, and rebuilds the objects stored in the root
// table. Collections are restored in the order of their index columns and
// dependent rows are matched to their owner by the propagated key. Cursors
// are read to the end but not closed.
func Decode(p *Plan, cursors []Cursor) ([]map[string]any, error) {
	if len(cursors) != len(p.Statements) {
		return nil, relplan.NewBindingError("", fmt.Errorf("decode expects %d cursors, got %d", len(p.Statements), len(cursors)))
	}
	rows := make([][][]any, len(cursors))
	for i, c := range cursors {
		r, err := read(c, p.Tables[i])
		if err != nil {
			return nil, err
		}
		rows[i] = r
	}
	return rebuild(p, rows)
}

// rebuild rebuilds the root objects from the typed rows of every statement.
func rebuild(p *Plan, rows [][][]any) ([]map[string]any, error) {
	d := &decoder{plan: p, rows: rows}
	root, ok := p.Statement(p.Root.Name)
	if !ok {
		return nil, relplan.NewAssemblyError(p.Root.Name, "", errors.New("no statement for the root table"))
	}
	key, _ := p.Root.PrimaryKey()
	var objs []map[string]any
	for _, rows := range partition(d.rows[root], params(key, p.Tables[root])) {
		ctx := d.context(nil, root, rows[0])
		obj, err := d.fields(0, len(p.Groups), root, rows, ctx)
		if err != nil {
			return nil, err
		}
		objs = append(objs, obj)
	}
	return objs, nil
}

// read loads every row of a cursor as typed values of the table columns.
func read(c Cursor, t *schema.Table) ([][]any, error) {
	var rows [][]any
	for c.Next() {
		row := make([]any, len(t.Columns))
		for j, d := range t.Columns {
			if err := c.Seek(j); err != nil {
				return nil, relplan.NewConversionError(d.Name, nil, err)
			}
			if c.WasNull() {
				continue
			}
			v, err := get(c, d.Type)
			if err != nil {
				return nil, relplan.NewConversionError(d.Name, c.Value(), err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	if err := c.Err(); err != nil {
		return nil, relplan.NewExecError("select", t.Name, err)
	}
	return rows, nil
}

func get(c Cursor, t field.Type) (any, error) {
	switch t {
	case field.TypeBool:
		return c.Bool()
	case field.TypeInt8:
		return c.Int8()
	case field.TypeInt16:
		return c.Int16()
	case field.TypeInt32:
		return c.Int32()
	case field.TypeInt64:
		return c.Int64()
	case field.TypeBigInt:
		return c.BigInt()
	case field.TypeFloat32:
		return c.Float32()
	case field.TypeFloat64:
		return c.Float64()
	case field.TypeChar:
		return c.Char()
	case field.TypeString:
		return c.Text()
	case field.TypeBytes16:
		return c.Bytes16()
	case field.TypeBytes32:
		return c.Bytes32()
	case field.TypeBytes, field.TypeStream:
		return c.Bytes()
	case field.TypeUUID:
		return c.UUID()
	default:
		return nil, fmt.Errorf("unsupported column type %s", t)
	}
}

type decoder struct {
	plan *Plan
	rows [][][]any // Per statement, typed rows.
}

// context returns the values of the owner columns visible to the dependent
// tables of a row, keyed by global column.
func (d *decoder) context(parent map[int]any, stmt int, row []any) map[int]any {
	ctx := make(map[int]any, len(parent))
	for k, v := range parent {
		ctx[k] = v
	}
	for j, c := range d.plan.Tables[stmt].Columns {
		if !c.Repeated {
			ctx[c.Index] = row[j]
		}
	}
	return ctx
}

// fields decodes the sibling groups in [from, to) from the rows of one
// entity or element.
func (d *decoder) fields(from, to, stmt int, rows [][]any, ctx map[int]any) (map[string]any, error) {
	obj := make(map[string]any)
	for i := from; i < to; i += 1 + d.plan.Groups[i].Children {
		g := d.plan.Groups[i]
		if g.Skip {
			continue
		}
		v, err := d.group(i, stmt, rows, ctx)
		if err != nil {
			return nil, err
		}
		obj[g.Desc.Name] = v
	}
	return obj, nil
}

func (d *decoder) group(i, stmt int, rows [][]any, ctx map[int]any) (any, error) {
	g := d.plan.Groups[i]
	if len(rows) == 0 {
		return nil, nil
	}
	switch g.Kind {
	case schema.GroupColumn:
		j, ok := d.plan.Param(stmt, g.Column)
		if !ok {
			return nil, relplan.NewAssemblyError(d.plan.Tables[stmt].Name, g.Path, fmt.Errorf("column %d is not selected", g.Column))
		}
		return rows[0][j], nil
	case schema.GroupObject:
		if d.null(g, stmt, rows) {
			return nil, nil
		}
		return d.fields(i+1, i+1+g.Children, stmt, rows, ctx)
	case schema.GroupReference:
		return d.reference(i, stmt, rows, ctx)
	case schema.GroupCollection:
		return d.collection(i, stmt, rows, ctx)
	default:
		return nil, relplan.NewAssemblyError(d.plan.Tables[stmt].Name, g.Path, fmt.Errorf("unknown group kind %d", g.Kind))
	}
}

// null reports if every column of the group stored in the statement is
// NULL in every row. Groups without such columns are never null.
func (d *decoder) null(g *schema.Group, stmt int, rows [][]any) bool {
	var own int
	for idx := g.Start; idx < g.End; idx++ {
		j, ok := d.plan.Param(stmt, idx)
		if !ok {
			continue
		}
		own++
		for _, r := range rows {
			if r[j] != nil {
				return false
			}
		}
	}
	return own > 0
}

func (d *decoder) reference(i, stmt int, rows [][]any, ctx map[int]any) (any, error) {
	g := d.plan.Groups[i]
	j, ok := d.plan.Param(stmt, g.Column)
	if !ok || rows[0][j] == nil {
		return nil, nil
	}
	fk := keyOf(rows[0][j])
	rs, ok := d.plan.Statement(g.Desc.Ref)
	if !ok {
		return nil, relplan.NewAssemblyError(g.Table, g.Path, fmt.Errorf("no statement for table %q", g.Desc.Ref))
	}
	kcol, ok := d.plan.KeyColumn(g.Desc.Ref)
	if !ok {
		return nil, nil
	}
	kj, _ := d.plan.Param(rs, kcol)
	var match [][]any
	for _, r := range d.rows[rs] {
		if keyOf(r[kj]) == fk {
			match = append(match, r)
		}
	}
	if len(match) == 0 {
		return nil, nil
	}
	owner := i
	if !g.Owner {
		owner = d.plan.keys[g.Desc.Ref]
	}
	og := d.plan.Groups[owner]
	return d.fields(owner+1, owner+1+og.Children, rs, match, d.context(ctx, rs, match[0]))
}

func (d *decoder) collection(i, stmt int, rows [][]any, ctx map[int]any) (any, error) {
	g := d.plan.Groups[i]
	ds := d.plan.owners[g.Column]
	if ds != stmt {
		rows = d.linked(ds, ctx)
	}
	j, _ := d.plan.Param(ds, g.Column)
	var (
		order []int64
		parts = make(map[int64][][]any)
	)
	for _, r := range rows {
		e, ok := index(r[j])
		if !ok {
			continue
		}
		if _, seen := parts[e]; !seen {
			order = append(order, e)
		}
		parts[e] = append(parts[e], r)
	}
	slices.Sort(order)
	items := make([]any, 0, len(order))
	for _, e := range order {
		sub := parts[e]
		ectx := ctx
		if ds != stmt {
			ectx = d.context(ctx, ds, sub[0])
		}
		v, err := d.group(i+1, ds, sub, ectx)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	if g.Desc.Shape != field.ShapeMap {
		return items, nil
	}
	m := make(map[string]any, len(items))
	for _, it := range items {
		entry, ok := it.(map[string]any)
		if !ok {
			continue
		}
		if k, ok := entry[field.EntryKey].(string); ok {
			m[k] = entry[field.EntryValue]
		}
	}
	return m, nil
}

// linked returns the rows of a dependent statement whose propagated
// columns match the owner values of ctx.
func (d *decoder) linked(stmt int, ctx map[int]any) [][]any {
	t := d.plan.Tables[stmt]
	var rows [][]any
next:
	for _, r := range d.rows[stmt] {
		for j, c := range t.Columns {
			if !c.Propagated {
				continue
			}
			if want, ok := ctx[c.Index]; ok && keyOf(want) != keyOf(r[j]) {
				continue next
			}
		}
		rows = append(rows, r)
	}
	return rows
}

func index(v any) (int64, bool) {
	switch v := v.(type) {
	case int32:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

// partition groups rows by the values of the given parameters, in order of
// first appearance.
func partition(rows [][]any, key []int) [][][]any {
	var (
		order []string
		parts = make(map[string][][]any)
	)
	for _, r := range rows {
		var sb strings.Builder
		for _, j := range key {
			sb.WriteString(keyOf(r[j]))
			sb.WriteByte(0)
		}
		k := sb.String()
		if _, ok := parts[k]; !ok {
			order = append(order, k)
		}
		parts[k] = append(parts[k], r)
	}
	groups := make([][][]any, len(order))
	for i, k := range order {
		groups[i] = parts[k]
	}
	return groups
}

func params(key []schema.Declaration, t *schema.Table) []int {
	js := make([]int, 0, len(key))
	for _, k := range key {
		for j, c := range t.Columns {
			if c.Index == k.Index {
				js = append(js, j)
				break
			}
		}
	}
	return js
}

// keyOf returns a comparable representation of a decoded value.
func keyOf(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case []byte:
		return "b:" + hex.EncodeToString(v)
	case *big.Int:
		return "n:" + v.String()
	default:
		return fmt.Sprintf("%T:%v", v, v)
	}
}
