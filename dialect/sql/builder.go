package sql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/relplan/dialect"
)

// Op is the kind of a statement.
type Op uint8

// List of statement kinds.
const (
	OpCreate Op = iota + 1
	OpInsert
	OpSelect
)

// String returns the SQL verb of the operation.
func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpInsert:
		return "insert"
	case OpSelect:
		return "select"
	default:
		return "op" + strconv.Itoa(int(o))
	}
}

// ParseOp returns the operation with the given name.
func ParseOp(name string) (Op, error) {
	for _, o := range []Op{OpCreate, OpInsert, OpSelect} {
		if strings.EqualFold(o.String(), name) {
			return o, nil
		}
	}
	return 0, fmt.Errorf("dialect/sql: unknown statement kind %q", name)
}

// ColumnDef is a column of a statement. Only CREATE statements read the
// type and the constraints.
type ColumnDef struct {
	Name       string
	Type       string
	PrimaryKey bool
	Unique     bool
	NotNull    bool
	Check      string
}

// ForeignKeyDef is a foreign-key constraint of a CREATE statement.
type ForeignKeyDef struct {
	Symbol     string
	Columns    []string
	RefTable   string
	RefColumns []string
}

// Statement is a structured per-table statement. It holds no values:
// INSERT statements take one parameter per column, SELECT statements one
// parameter per Where column.
type Statement struct {
	Op          Op
	Table       string
	Columns     []ColumnDef
	ForeignKeys []ForeignKeyDef
	Where       []string // Columns compared for equality with parameters.
	OrderBy     []string
}

// NumParams returns the number of parameters of the statement.
func (s *Statement) NumParams() int {
	switch s.Op {
	case OpInsert:
		return len(s.Columns)
	case OpSelect:
		return len(s.Where)
	default:
		return 0
	}
}

// ColumnNames returns the names of the columns of the statement.
func (s *Statement) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Builder is a SQL string builder aware of the identifier quoting and the
// parameter placeholders of a dialect.
type Builder struct {
	sb      strings.Builder
	dialect string
	total   int
}

// Dialect returns a new Builder for the given dialect.
func Dialect(name string) *Builder {
	return &Builder{dialect: name}
}

// WriteString appends s to the builder.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// Ident appends a quoted identifier.
func (b *Builder) Ident(name string) *Builder {
	q := `"`
	if b.dialect == dialect.MySQL {
		q = "`"
	}
	b.sb.WriteString(q)
	b.sb.WriteString(strings.ReplaceAll(name, q, q+q))
	b.sb.WriteString(q)
	return b
}

// IdentComma appends a comma-separated list of quoted identifiers.
func (b *Builder) IdentComma(names ...string) *Builder {
	for i, n := range names {
		if i > 0 {
			b.Comma()
		}
		b.Ident(n)
	}
	return b
}

// Param appends the next parameter placeholder.
func (b *Builder) Param() *Builder {
	b.total++
	if b.dialect == dialect.Postgres {
		b.sb.WriteString("$" + strconv.Itoa(b.total))
	} else {
		b.sb.WriteString("?")
	}
	return b
}

// Comma appends ", ".
func (b *Builder) Comma() *Builder { return b.WriteString(", ") }

// Pad appends a space.
func (b *Builder) Pad() *Builder { return b.WriteString(" ") }

// Wrap wraps the output of f with parentheses.
func (b *Builder) Wrap(f func(*Builder)) *Builder {
	b.sb.WriteByte('(')
	f(b)
	b.sb.WriteByte(')')
	return b
}

// String returns the accumulated string.
func (b *Builder) String() string { return b.sb.String() }

// Total returns the number of placeholders written.
func (b *Builder) Total() int { return b.total }

// Render renders the statement to SQL text in the given dialect.
func Render(name string, s *Statement) (string, error) {
	if !dialect.Valid(name) {
		return "", fmt.Errorf("dialect/sql: unsupported dialect %q", name)
	}
	if s.Table == "" || len(s.Columns) == 0 {
		return "", fmt.Errorf("dialect/sql: %s statement requires a table and columns", s.Op)
	}
	b := Dialect(name)
	switch s.Op {
	case OpCreate:
		b.create(s)
	case OpInsert:
		b.WriteString("INSERT INTO ").Ident(s.Table).Pad().
			Wrap(func(b *Builder) { b.IdentComma(s.ColumnNames()...) }).
			WriteString(" VALUES ").
			Wrap(func(b *Builder) {
				for i := range s.Columns {
					if i > 0 {
						b.Comma()
					}
					b.Param()
				}
			})
	case OpSelect:
		b.WriteString("SELECT ").IdentComma(s.ColumnNames()...).WriteString(" FROM ").Ident(s.Table)
		for i, w := range s.Where {
			if i == 0 {
				b.WriteString(" WHERE ")
			} else {
				b.WriteString(" AND ")
			}
			b.Ident(w).WriteString(" = ").Param()
		}
		if len(s.OrderBy) > 0 {
			b.WriteString(" ORDER BY ").IdentComma(s.OrderBy...)
		}
	default:
		return "", fmt.Errorf("dialect/sql: unknown statement kind %s", s.Op)
	}
	return b.String(), nil
}

func (b *Builder) create(s *Statement) {
	b.WriteString("CREATE TABLE IF NOT EXISTS ").Ident(s.Table).Pad()
	b.Wrap(func(b *Builder) {
		var pk []string
		for i, c := range s.Columns {
			if i > 0 {
				b.Comma()
			}
			b.Ident(c.Name)
			if c.Type != "" {
				b.Pad().WriteString(c.Type)
			}
			if c.NotNull {
				b.WriteString(" NOT NULL")
			}
			if c.Unique {
				b.WriteString(" UNIQUE")
			}
			if c.Check != "" {
				b.WriteString(" CHECK ").Wrap(func(b *Builder) { b.WriteString(c.Check) })
			}
			if c.PrimaryKey {
				pk = append(pk, c.Name)
			}
		}
		if len(pk) > 0 {
			b.WriteString(", PRIMARY KEY ").Wrap(func(b *Builder) { b.IdentComma(pk...) })
		}
		for _, fk := range s.ForeignKeys {
			b.Comma()
			if fk.Symbol != "" {
				b.WriteString("CONSTRAINT ").Ident(fk.Symbol).Pad()
			}
			b.WriteString("FOREIGN KEY ").Wrap(func(b *Builder) { b.IdentComma(fk.Columns...) }).
				WriteString(" REFERENCES ").Ident(fk.RefTable).Pad().
				Wrap(func(b *Builder) { b.IdentComma(fk.RefColumns...) })
		}
	})
}
