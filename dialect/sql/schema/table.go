package schema

import (
	"github.com/syssam/relplan/schema/field"
)

// Reference is the target of a foreign-key column.
type Reference struct {
	Table  string // Referenced table.
	Column string // Referenced column.
	// Enforced is true when the referenced column is part of a declared
	// primary key, so the reference can be rendered as a constraint.
	Enforced bool
}

// Column is a column declaration. Columns are never mutated after the
// builder created them.
type Column struct {
	Name       string     // Qualified column name.
	Type       field.Type // Primitive kind stored in the column.
	Size       int        // Size of bounded strings.
	PrimaryKey bool       // Part of the declared primary key.
	Unique     bool       // Unique constraint.
	NotNull    bool       // NOT NULL constraint.
	Default    any        // Default value.
	Generated  bool       // Generated on bind when absent.
	Check      string     // Folded CHECK expression.
	References *Reference // Foreign-key target, if any.
	Synthetic  bool       // Synthetic element index column.
	Repeated   bool       // Varies between the rows of one entity (embedded collection).
	Propagated bool       // Copied from the key of an owner table.
	Field      string     // Dotted path of the source field.
}

// SQLType returns the column type in the given dialect.
func (c *Column) SQLType(dialect string) string {
	return SQLType(c.Type, c.Size, dialect)
}

// Declaration pairs a column with its global column index.
type Declaration struct {
	*Column
	Index int
}

// Table is a node of the table tree built from one root type. A table owns
// its referenced and dependent tables. There are no back pointers: links
// between tables are addressed by table name.
type Table struct {
	Name    string
	Columns []Declaration
	// Counts holds the number of columns added to this table by each of its
	// own fields, followed by one entry of size 1 per propagated column.
	// It is kept for inspection; binding walks Groups.
	Counts []int
	// Groups holds the field groups of the whole tree in depth-first order.
	// It is set on the table returned by Builder.Build.
	Groups []*Group

	kind       tableKind
	referenced []*Table
	dependent  []*Table
}

type tableKind uint8

const (
	kindRoot tableKind = iota
	kindReferenced
	kindDependent
)

// NewTable returns a new empty table.
func NewTable(name string) *Table {
	return &Table{Name: name}
}

// Referenced returns the referenced tables in insertion order.
func (t *Table) Referenced() []*Table { return t.referenced }

// Dependents returns the dependent tables in insertion order.
func (t *Table) Dependents() []*Table { return t.dependent }

// ReferencedTable returns the referenced table with the given name.
func (t *Table) ReferencedTable(name string) (*Table, bool) {
	return lookup(t.referenced, name)
}

// DependentTable returns the dependent table with the given name.
func (t *Table) DependentTable(name string) (*Table, bool) {
	return lookup(t.dependent, name)
}

// AddReferenced registers a referenced table. Registering the same name twice is a no-op.
func (t *Table) AddReferenced(r *Table) *Table {
	if _, ok := t.ReferencedTable(r.Name); !ok {
		t.referenced = append(t.referenced, r)
	}
	return t
}

// AddDependent registers a dependent table. Registering the same name twice is a no-op.
func (t *Table) AddDependent(d *Table) *Table {
	if _, ok := t.DependentTable(d.Name); !ok {
		t.dependent = append(t.dependent, d)
	}
	return t
}

// AddColumn appends a column declaration with the given global index.
func (t *Table) AddColumn(c *Column, index int) *Table {
	t.Columns = append(t.Columns, Declaration{Column: c, Index: index})
	return t
}

// Column returns the declaration with the given column name.
func (t *Table) Column(name string) (Declaration, bool) {
	for _, d := range t.Columns {
		if d.Name == name {
			return d, true
		}
	}
	return Declaration{}, false
}

// HasColumn reports if the table has a column with the given name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// PrimaryKey returns the key of the table: the columns flagged as primary
// key, or every own column of the table when none is flagged. Columns of
// embedded collections and propagated columns are never part of a
// fallback key. The second value reports if the key was declared.
func (t *Table) PrimaryKey() ([]Declaration, bool) {
	var pk []Declaration
	for _, d := range t.Columns {
		if d.PrimaryKey {
			pk = append(pk, d)
		}
	}
	if len(pk) > 0 {
		return pk, true
	}
	for _, d := range t.Columns {
		if !d.Repeated && !d.Propagated {
			pk = append(pk, d)
		}
	}
	return pk, false
}

// ElementKey returns the index columns that identify one element of the
// collection stored in a dependent table.
func (t *Table) ElementKey() []Declaration {
	var key []Declaration
	for _, d := range t.Columns {
		if d.Synthetic && !d.Repeated && !d.Propagated {
			key = append(key, d)
		}
	}
	return key
}

// Tables returns the table and every table reachable from it, in
// depth-first order and without duplicates.
func (t *Table) Tables() []*Table {
	var (
		all  []*Table
		seen = make(map[string]bool)
		walk func(*Table)
	)
	walk = func(t *Table) {
		if seen[t.Name] {
			return
		}
		seen[t.Name] = true
		all = append(all, t)
		for _, r := range t.referenced {
			walk(r)
		}
		for _, d := range t.dependent {
			walk(d)
		}
	}
	walk(t)
	return all
}

// NumColumns returns the number of distinct global column indices of the tree.
func (t *Table) NumColumns() int {
	seen := make(map[int]bool)
	for _, tt := range t.Tables() {
		for _, d := range tt.Columns {
			seen[d.Index] = true
		}
	}
	return len(seen)
}

func lookup(ts []*Table, name string) (*Table, bool) {
	for _, t := range ts {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// GroupKind tells how the binder walks a field group.
type GroupKind uint8

// List of group kinds.
const (
	GroupColumn     GroupKind = iota // one primitive column.
	GroupObject                      // embedded object, children are its fields.
	GroupReference                   // foreign-key object.
	GroupCollection                  // repeated field, rows fan out per element.
)

// Group is the set of consecutive global columns produced by one field.
type Group struct {
	Path     string     // Dotted field path.
	Kind     GroupKind  // How the group is bound.
	Table    string     // Table owning the field.
	Start    int        // First global column.
	End      int        // One past the last global column.
	Children int        // Number of descendant groups following this one.
	Column   int        // Column of a GroupColumn, index column of a GroupCollection, key column of a GroupReference.
	Embedded bool       // Collection flattened into the owner table.
	Owner    bool       // Reference that writes the referenced row.
	Skip     bool       // Self reference, nothing is bound.
	Key      string     // Name of the referenced key field of a GroupReference.
	Depth    int        // Collection nesting level inside its table.
	Desc     *field.Descriptor

	pos int
}

// Size returns the number of global columns of the group.
func (g *Group) Size() int { return g.End - g.Start }
