package schema

import (
	"context"
	"fmt"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	atlas "ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"

	"github.com/syssam/relplan/dialect"
	"github.com/syssam/relplan/schema/field"
)

// Ordered returns the tables of the tree in creation order: referenced
// tables before their owner and dependent tables after it. A table that is
// reachable twice appears once, at its first position.
func Ordered(root *Table) []*Table {
	var (
		order []*Table
		seen  = make(map[string]bool)
		visit func(*Table)
	)
	visit = func(t *Table) {
		if seen[t.Name] {
			return
		}
		seen[t.Name] = true
		for _, r := range t.referenced {
			visit(r)
		}
		order = append(order, t)
		for _, d := range t.dependent {
			visit(d)
		}
	}
	visit(root)
	return order
}

// Realm returns the atlas representation of the tables of the tree, in
// creation order, inside one schema with the given name.
func Realm(root *Table, name, dialectName string) (*atlas.Realm, error) {
	if !dialect.Valid(dialectName) {
		return nil, fmt.Errorf("relplan/schema: unsupported dialect %q", dialectName)
	}
	var (
		tables = Ordered(root)
		byName = make(map[string]*atlas.Table, len(tables))
		s      = atlas.New(name)
	)
	for _, t := range tables {
		at := atlas.NewTable(t.Name)
		var pk []*atlas.Column
		for _, c := range t.Columns {
			ac := &atlas.Column{
				Name: c.Name,
				Type: &atlas.ColumnType{
					Type: atlasType(c.Column, dialectName),
					Raw:  c.SQLType(dialectName),
					Null: !c.NotNull,
				},
			}
			at.AddColumns(ac)
			if c.PrimaryKey {
				pk = append(pk, ac)
			}
			if c.Unique {
				at.AddIndexes(atlas.NewUniqueIndex(t.Name + "_" + c.Name + "_key").AddColumns(ac))
			}
			if c.Check != "" {
				at.AddChecks(atlas.NewCheck().SetName(t.Name + "_" + c.Name + "_check").SetExpr(c.Check))
			}
		}
		if len(pk) > 0 {
			at.SetPrimaryKey(atlas.NewPrimaryKey(pk...))
		}
		byName[t.Name] = at
		s.AddTables(at)
	}
	for _, t := range tables {
		at := byName[t.Name]
		for _, fk := range ForeignKeys(t) {
			rt, ok := byName[fk.RefTable]
			if !ok {
				return nil, fmt.Errorf("relplan/schema: table %q references unknown table %q", t.Name, fk.RefTable)
			}
			afk := atlas.NewForeignKey(fk.Symbol).SetTable(at).SetRefTable(rt)
			for i := range fk.Columns {
				c, ok1 := at.Column(fk.Columns[i])
				rc, ok2 := rt.Column(fk.RefColumns[i])
				if !ok1 || !ok2 {
					return nil, fmt.Errorf("relplan/schema: invalid foreign key %q", fk.Symbol)
				}
				afk.AddColumns(c).AddRefColumns(rc)
			}
			at.AddForeignKeys(afk)
		}
	}
	return atlas.NewRealm(s), nil
}

// DDL returns the statements creating the tables of the tree, planned by
// the atlas migration planner of the dialect.
func DDL(ctx context.Context, root *Table, dialectName string) ([]string, error) {
	planners := map[string]migrate.PlanApplier{
		dialect.MySQL:    mysql.DefaultPlan,
		dialect.Postgres: postgres.DefaultPlan,
		dialect.SQLite:   sqlite.DefaultPlan,
	}
	realm, err := Realm(root, "main", dialectName)
	if err != nil {
		return nil, err
	}
	var changes []atlas.Change
	for _, t := range realm.Schemas[0].Tables {
		changes = append(changes, &atlas.AddTable{T: t})
	}
	unqualified := func(o *migrate.PlanOptions) {
		q := ""
		o.SchemaQualifier = &q
	}
	plan, err := planners[dialectName].PlanChanges(ctx, root.Name, changes, unqualified)
	if err != nil {
		return nil, fmt.Errorf("relplan/schema: planning %q: %w", root.Name, err)
	}
	stmts := make([]string, 0, len(plan.Changes))
	for _, c := range plan.Changes {
		stmts = append(stmts, c.Cmd)
	}
	return stmts, nil
}

// ForeignKey is an enforced foreign-key constraint of a table.
type ForeignKey struct {
	Symbol     string
	RefTable   string
	Columns    []string
	RefColumns []string
}

// ForeignKeys returns the enforced foreign keys of a table. Object
// references produce one constraint per column, propagated keys one
// constraint per referenced table.
func ForeignKeys(t *Table) []*ForeignKey {
	var (
		fks        []*ForeignKey
		propagated = make(map[string]*ForeignKey)
	)
	for _, c := range t.Columns {
		ref := c.References
		if ref == nil || !ref.Enforced {
			continue
		}
		if !c.Propagated {
			fks = append(fks, &ForeignKey{
				Symbol:     t.Name + "_" + c.Name + "_fkey",
				RefTable:   ref.Table,
				Columns:    []string{c.Name},
				RefColumns: []string{ref.Column},
			})
			continue
		}
		fk, ok := propagated[ref.Table]
		if !ok {
			fk = &ForeignKey{Symbol: t.Name + "_" + ref.Table + "_fkey", RefTable: ref.Table}
			propagated[ref.Table] = fk
			fks = append(fks, fk)
		}
		fk.Columns = append(fk.Columns, c.Name)
		fk.RefColumns = append(fk.RefColumns, ref.Column)
	}
	return fks
}

func atlasType(c *Column, name string) atlas.Type {
	switch name {
	case dialect.Postgres:
		return postgresType(c)
	case dialect.MySQL:
		return mysqlType(c)
	default:
		return sqliteType(c)
	}
}

func postgresType(c *Column) atlas.Type {
	switch c.Type {
	case field.TypeBool:
		return &atlas.BoolType{T: "boolean"}
	case field.TypeInt8, field.TypeInt16:
		return &atlas.IntegerType{T: "smallint"}
	case field.TypeInt32:
		return &atlas.IntegerType{T: "integer"}
	case field.TypeInt64:
		return &atlas.IntegerType{T: "bigint"}
	case field.TypeBigInt:
		return &atlas.DecimalType{T: "numeric"}
	case field.TypeFloat32:
		return &atlas.FloatType{T: "real"}
	case field.TypeFloat64:
		return &atlas.FloatType{T: "double precision"}
	case field.TypeChar:
		return &atlas.StringType{T: "character", Size: 1}
	case field.TypeString:
		if c.Size > 0 {
			return &atlas.StringType{T: "character varying", Size: c.Size}
		}
		return &atlas.StringType{T: "text"}
	case field.TypeUUID:
		return &atlas.UUIDType{T: "uuid"}
	default:
		return &atlas.BinaryType{T: "bytea"}
	}
}

func mysqlType(c *Column) atlas.Type {
	switch c.Type {
	case field.TypeBool:
		return &atlas.BoolType{T: "boolean"}
	case field.TypeInt8:
		return &atlas.IntegerType{T: "tinyint"}
	case field.TypeInt16:
		return &atlas.IntegerType{T: "smallint"}
	case field.TypeInt32:
		return &atlas.IntegerType{T: "int"}
	case field.TypeInt64:
		return &atlas.IntegerType{T: "bigint"}
	case field.TypeBigInt:
		return &atlas.DecimalType{T: "decimal", Precision: 65}
	case field.TypeFloat32:
		return &atlas.FloatType{T: "float"}
	case field.TypeFloat64:
		return &atlas.FloatType{T: "double"}
	case field.TypeChar:
		return &atlas.StringType{T: "char", Size: 1}
	case field.TypeString:
		if c.Size > 0 {
			return &atlas.StringType{T: "varchar", Size: c.Size}
		}
		return &atlas.StringType{T: "longtext"}
	case field.TypeBytes16, field.TypeBytes32:
		size := 16
		if c.Type == field.TypeBytes32 {
			size = 32
		}
		return &atlas.BinaryType{T: "binary", Size: &size}
	case field.TypeUUID:
		return &atlas.StringType{T: "char", Size: 36}
	default:
		return &atlas.BinaryType{T: "longblob"}
	}
}

func sqliteType(c *Column) atlas.Type {
	switch c.Type {
	case field.TypeBool:
		return &atlas.BoolType{T: "boolean"}
	case field.TypeInt8, field.TypeInt16, field.TypeInt32, field.TypeInt64:
		return &atlas.IntegerType{T: "integer"}
	case field.TypeFloat32, field.TypeFloat64:
		return &atlas.FloatType{T: "real"}
	case field.TypeString:
		if c.Size > 0 {
			return &atlas.StringType{T: "varchar", Size: c.Size}
		}
		return &atlas.StringType{T: "text"}
	case field.TypeBigInt, field.TypeChar, field.TypeUUID:
		return &atlas.StringType{T: "text"}
	default:
		return &atlas.BinaryType{T: "blob"}
	}
}
