package schema

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/syssam/relplan"
	"github.com/syssam/relplan/schema/field"
)

// Builder declares the columns of a type, and of the tables it references
// or owns, in one tree. Global column indices are assigned in depth-first
// field order. A Builder is not safe for concurrent use.
type Builder struct {
	next   int
	tables map[string]*Table
	groups []*Group
	log    *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the logger used to report skipped fields.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) {
		b.log = l
	}
}

// NewBuilder returns a new table builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{log: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// scope is the position of a field in the table tree.
type scope struct {
	table    *Table
	prefix   string // column name prefix of embedded objects.
	path     string // dotted path of the enclosing field.
	depth    int    // collection nesting level inside the table.
	repeated bool   // inside an embedded collection.
	own      bool   // the field is one of the own fields of the table.
}

func (s scope) join(name string) string {
	if s.path == "" {
		return name
	}
	return s.path + "." + name
}

// nest returns the scope of the fields of an embedded object.
func (s scope) nest(name, path string) scope {
	s.prefix += name + "_"
	s.path = path
	s.own = false
	return s
}

// Build declares the columns of the given fields in a new table tree rooted
// at the given table, with global column indices starting at start. Keys
// are not propagated to dependent tables: see Propagate.
func (b *Builder) Build(fields []*field.Descriptor, table string, start int) (*Table, error) {
	if table == "" {
		return nil, relplan.NewAssemblyError("", "", errors.New("table name is required"))
	}
	b.next, b.groups = start, nil
	root := &Table{Name: table, kind: kindRoot}
	b.tables = map[string]*Table{table: root}
	sc := scope{table: root, own: true}
	for _, f := range fields {
		if f == nil {
			return nil, relplan.NewAssemblyError(table, "", errors.New("nil field"))
		}
		if err := b.node(sc, f, f.Name, f.Name); err != nil {
			return nil, err
		}
	}
	root.Groups = b.groups
	if r := ValidateTree(root); r.HasErrors() {
		return nil, relplan.NewAssemblyError(table, "", r.Err())
	}
	return root, nil
}

// node declares the columns of one field under the given column name.
func (b *Builder) node(sc scope, f *field.Descriptor, name, path string) error {
	if f.Err != nil {
		return relplan.NewAssemblyError(sc.table.Name, path, f.Err)
	}
	if name == "" {
		return relplan.NewAssemblyError(sc.table.Name, sc.path, errors.New("field name is required"))
	}
	var (
		err    error
		before = len(sc.table.Columns)
		g      = b.open(sc, f, path)
	)
	switch {
	case f.Shape == field.ShapePrimitive:
		g.Kind = GroupColumn
		g.Column, err = b.primitive(sc, f, sc.prefix+name, path)
	case f.Shape == field.ShapeObject && f.ForeignKey:
		g.Kind = GroupReference
		err = b.reference(sc, f, name, g)
	case f.Shape == field.ShapeObject && f.Embedded:
		g.Kind = GroupObject
		err = b.object(sc.nest(name, path), f.Fields)
	case f.IsRepeated() && f.Embedded:
		g.Kind, g.Embedded = GroupCollection, true
		inner := sc
		inner.repeated = true
		err = b.collection(inner, f, name, g)
	case f.IsRepeated():
		g.Kind = GroupCollection
		err = b.dependent(sc, f, name, g)
	default:
		err = fmt.Errorf("%s field must be embedded or a foreign key", f.Shape)
	}
	if err != nil {
		if relplan.IsAssemblyError(err) {
			return err
		}
		return relplan.NewAssemblyError(sc.table.Name, path, err)
	}
	b.close(g)
	if sc.own {
		sc.table.Counts = append(sc.table.Counts, len(sc.table.Columns)-before)
	}
	return nil
}

func (b *Builder) open(sc scope, f *field.Descriptor, path string) *Group {
	g := &Group{
		Path:  path,
		Table: sc.table.Name,
		Start: b.next,
		Depth: sc.depth,
		Desc:  f,
		pos:   len(b.groups),
	}
	b.groups = append(b.groups, g)
	return g
}

func (b *Builder) close(g *Group) {
	g.End = b.next
	g.Children = len(b.groups) - g.pos - 1
}

// add appends a column to the table and returns its global index.
func (b *Builder) add(t *Table, c *Column) int {
	idx := b.next
	b.next++
	t.AddColumn(c, idx)
	return idx
}

func (b *Builder) primitive(sc scope, f *field.Descriptor, name, path string) (int, error) {
	if f.PrimaryKey && (sc.repeated || sc.depth > 0) {
		return 0, fmt.Errorf("primary key %q inside a collection", path)
	}
	return b.add(sc.table, &Column{
		Name:       name,
		Type:       f.Type,
		Size:       f.Size,
		PrimaryKey: f.PrimaryKey,
		Unique:     f.Unique,
		NotNull:    f.NotNull || f.PrimaryKey,
		Default:    f.Default,
		Generated:  f.Generated,
		Check:      f.Checks.Expr(name),
		Repeated:   sc.repeated,
		Field:      path,
	}), nil
}

func (b *Builder) object(sc scope, fields []*field.Descriptor) error {
	for _, f := range fields {
		if f == nil {
			return errors.New("nil field")
		}
		if err := b.node(sc, f, f.Name, sc.join(f.Name)); err != nil {
			return err
		}
	}
	return nil
}

// collection declares the index column of a repeated field and the
// columns of its element.
func (b *Builder) collection(sc scope, f *field.Descriptor, name string, g *Group) error {
	elem := f.Element()
	if elem == nil {
		return errors.New("collection element is missing")
	}
	g.Column = b.add(sc.table, &Column{
		Name:      IndexColumn(sc.prefix+name, sc.depth),
		Type:      field.TypeInt32,
		NotNull:   !sc.repeated && sc.depth == 0,
		Synthetic: true,
		Repeated:  sc.repeated,
		Field:     g.Path,
	})
	inner := sc
	inner.depth++
	inner.own = false
	path := g.Path + "[]"
	e := *elem
	e.Name = name
	if e.IsRepeated() {
		// Directly nested collections add an index level to the same table.
		ng := b.open(inner, &e, path)
		ng.Kind, ng.Embedded = GroupCollection, g.Embedded
		if err := b.collection(inner, &e, name, ng); err != nil {
			return err
		}
		b.close(ng)
		return nil
	}
	if e.Shape == field.ShapeObject && !e.ForeignKey {
		e.Embedded = true
	}
	return b.node(inner, &e, name, path)
}

// dependent declares a new dependent table holding one row per element.
func (b *Builder) dependent(sc scope, f *field.Descriptor, name string, g *Group) error {
	if sc.repeated {
		return errors.New("dependent collection inside an embedded collection")
	}
	table := sc.table.Name + "_" + sc.prefix + name
	if _, ok := b.tables[table]; ok {
		return fmt.Errorf("table %q is declared twice", table)
	}
	dt := &Table{Name: table, kind: kindDependent}
	b.tables[table] = dt
	sc.table.AddDependent(dt)
	if err := b.collection(scope{table: dt}, f, name, g); err != nil {
		return err
	}
	dt.Counts = append(dt.Counts, len(dt.Columns))
	return nil
}

// reference declares the referenced table, if it was not declared before,
// and the foreign-key column of the owner table.
func (b *Builder) reference(sc scope, f *field.Descriptor, name string, g *Group) error {
	if f.Ref == sc.table.Name {
		g.Skip = true
		b.log.Debug("skipping self reference", "table", sc.table.Name, "field", g.Path)
		return nil
	}
	key, err := referenceKey(f)
	if err != nil {
		return err
	}
	g.Key = key.Name
	rt, ok := b.tables[f.Ref]
	switch {
	case !ok:
		rt = &Table{Name: f.Ref, kind: kindReferenced}
		b.tables[f.Ref] = rt
		g.Owner = true
		if err := b.object(scope{table: rt, path: g.Path, own: true}, f.Fields); err != nil {
			return err
		}
	case rt.kind != kindReferenced:
		return fmt.Errorf("reference to table %q creates a cycle", f.Ref)
	case !rt.HasColumn(key.Name):
		return fmt.Errorf("table %q is referenced with a different key %q", f.Ref, key.Name)
	}
	sc.table.AddReferenced(rt)
	g.Column = b.add(sc.table, &Column{
		Name:       sc.prefix + name,
		Type:       key.Type,
		Size:       key.Size,
		NotNull:    f.NotNull,
		References: &Reference{Table: f.Ref, Column: key.Name, Enforced: true},
		Repeated:   sc.repeated,
		Field:      g.Path,
	})
	return nil
}

// referenceKey returns the primary-key field of a referenced type.
func referenceKey(f *field.Descriptor) (*field.Descriptor, error) {
	var key *field.Descriptor
	for _, sub := range f.Fields {
		if sub == nil || !sub.PrimaryKey {
			continue
		}
		if key != nil {
			return nil, fmt.Errorf("referenced type %q has a composite primary key", f.Ref)
		}
		key = sub
	}
	if key == nil || key.Shape != field.ShapePrimitive {
		return nil, fmt.Errorf("referenced type %q must declare one primitive primary key", f.Ref)
	}
	return key, nil
}

// IndexColumn returns the name of the synthetic index column of a repeated
// field at the given nesting level.
func IndexColumn(name string, depth int) string {
	return "_" + name + "_index_" + strconv.Itoa(depth)
}
