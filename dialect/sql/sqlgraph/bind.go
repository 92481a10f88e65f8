package sqlgraph

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/syssam/relplan"
	"github.com/syssam/relplan/dialect/sql/schema"
	"github.com/syssam/relplan/schema/field"
)

// Bind binds the value of one object into a new batch of the plan.
//
// Objects are map[string]any keyed by field name. Collections are slices or
// arrays, maps are maps with string keys bound in key order. Absent fields
// are bound as NULL, or as their default or generated value.
func Bind(p *Plan, obj map[string]any) (*Batch, error) {
	b := NewBatch(p)
	bd := &binder{batch: b, collect: NewCollector(b), values: make(map[int]any)}
	if err := bd.fields(p.Fields, obj); err != nil {
		return nil, err
	}
	if b.Pending() {
		return nil, relplan.NewBindingError("", relplan.ErrPendingColumns)
	}
	return b, nil
}

type binder struct {
	batch   *Batch
	collect *Collector
	values  map[int]any // Go values bound per global column, before conversion.
}

func (bd *binder) fields(fs []*field.Descriptor, obj map[string]any) error {
	for _, f := range fs {
		if err := bd.value(obj[f.Name]); err != nil {
			return err
		}
	}
	return nil
}

// value binds v to the group at the head of the queue and consumes it.
func (bd *binder) value(v any) error {
	g, ok := bd.batch.Current()
	if !ok {
		return relplan.NewBindingError("", errors.New("no pending column group"))
	}
	switch g.Kind {
	case schema.GroupColumn:
		bound, err := bd.collect.Set(g.Column, v)
		if err != nil {
			return wrapBinding(g, err)
		}
		bd.values[g.Column] = bound
		bd.batch.PopGroup()
		return nil
	case schema.GroupObject:
		if isNil(v) {
			return bd.null()
		}
		obj, err := object(g, v)
		if err != nil {
			return err
		}
		bd.batch.Advance()
		return bd.fields(g.Desc.Fields, obj)
	case schema.GroupReference:
		return bd.reference(g, v)
	case schema.GroupCollection:
		return bd.collection(g, v)
	default:
		return relplan.NewBindingError(g.Path, fmt.Errorf("unknown group kind %d", g.Kind))
	}
}

func (bd *binder) null() error {
	if err := bd.batch.Null(); err != nil {
		return err
	}
	bd.batch.PopGroup()
	return nil
}

func (bd *binder) reference(g *schema.Group, v any) error {
	if g.Skip {
		bd.batch.PopGroup()
		return nil
	}
	if isNil(v) {
		return bd.null()
	}
	obj, err := object(g, v)
	if err != nil {
		return err
	}
	key, ok := obj[g.Key]
	if g.Owner {
		bd.batch.Advance()
		if err := bd.fields(g.Desc.Fields, obj); err != nil {
			return err
		}
		// The key may have been generated while binding the referenced row.
		if col, found := bd.batch.plan.KeyColumn(g.Desc.Ref); found {
			key, ok = bd.values[col], true
		}
	} else {
		bd.batch.PopGroup()
	}
	if !ok || isNil(key) {
		return relplan.NewBindingError(g.Path, fmt.Errorf("reference key %q is missing", g.Key))
	}
	bound, err := bd.collect.Set(g.Column, key)
	if err != nil {
		return wrapBinding(g, err)
	}
	bd.values[g.Column] = bound
	return nil
}

func (bd *binder) collection(g *schema.Group, v any) error {
	items, err := elements(g, v)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return bd.null()
	}
	b := bd.batch
	if err := b.MultiplyRows(len(items)); err != nil {
		return err
	}
	b.Advance()
	for e, item := range items {
		last := e == len(items)-1
		if err := b.SelectRow(e); err != nil {
			return err
		}
		if err := b.SetColumn(g.Column, int64(e)); err != nil {
			return err
		}
		if !last {
			b.Mark()
		}
		if err := bd.value(item); err != nil {
			return err
		}
		if !last {
			if err := b.Reset(); err != nil {
				return err
			}
		}
	}
	return b.EndMultiply()
}

// object returns the fields of an object value.
func object(g *schema.Group, v any) (map[string]any, error) {
	if obj, ok := v.(map[string]any); ok {
		return obj, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, relplan.NewBindingError(g.Path, fmt.Errorf("expected an object, got %T", v))
	}
	obj := make(map[string]any, rv.Len())
	for it := rv.MapRange(); it.Next(); {
		obj[it.Key().String()] = it.Value().Interface()
	}
	return obj, nil
}

// elements returns the elements of a collection value. Map entries are
// returned as key and value objects ordered by key.
func elements(g *schema.Group, v any) ([]any, error) {
	if isNil(v) {
		return nil, nil
	}
	if g.Desc.Shape == field.ShapeMap {
		m, err := object(g, v)
		if err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make([]any, len(keys))
		for i, k := range keys {
			items[i] = map[string]any{field.EntryKey: k, field.EntryValue: m[k]}
		}
		return items, nil
	}
	if items, ok := v.([]any); ok {
		return items, nil
	}
	rv := reflect.ValueOf(v)
	if k := rv.Kind(); k != reflect.Slice && k != reflect.Array {
		return nil, relplan.NewBindingError(g.Path, fmt.Errorf("expected a collection, got %T", v))
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, nil
}

func wrapBinding(g *schema.Group, err error) error {
	if relplan.IsConversionError(err) || relplan.IsBindingError(err) {
		return err
	}
	return relplan.NewBindingError(g.Path, err)
}
