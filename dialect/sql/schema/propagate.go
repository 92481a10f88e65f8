package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/relplan"
)

// link is a key column copied into dependent tables.
type link struct {
	table    string
	decl     Declaration
	enforced bool
}

// Propagate copies the key of every table that owns dependent tables into
// them, as foreign-key columns sharing the global index of their source.
// Dependents of a dependent also receive its element index columns.
// Referenced tables propagate their own key. Propagate is idempotent.
func Propagate(root *Table) error {
	return propagate(root, make(map[string]bool))
}

func propagate(t *Table, seen map[string]bool) error {
	if seen[t.Name] {
		return nil
	}
	seen[t.Name] = true
	if len(t.dependent) > 0 {
		key, declared := t.PrimaryKey()
		if len(key) == 0 {
			return relplan.NewAssemblyError(t.Name, "", errors.New("table with dependent tables has no key columns"))
		}
		links := make([]link, len(key))
		for i, d := range key {
			links[i] = link{table: t.Name, decl: d, enforced: declared}
		}
		for _, d := range t.dependent {
			if err := inherit(d, links, seen); err != nil {
				return err
			}
		}
	}
	for _, r := range t.referenced {
		if err := propagate(r, seen); err != nil {
			return err
		}
	}
	return nil
}

func inherit(t *Table, links []link, seen map[string]bool) error {
	seen[t.Name] = true
	for _, l := range links {
		name := PropagatedColumn(l.table, l.decl.Name)
		if d, ok := t.Column(name); ok {
			if !d.Propagated {
				return relplan.NewAssemblyError(t.Name, d.Field, fmt.Errorf("column %q conflicts with the key of table %q", name, l.table))
			}
			continue
		}
		t.AddColumn(&Column{
			Name:       name,
			Type:       l.decl.Type,
			Size:       l.decl.Size,
			NotNull:    true,
			References: &Reference{Table: l.table, Column: l.decl.Name, Enforced: l.enforced},
			Propagated: true,
			Field:      l.decl.Field,
		}, l.decl.Index)
		t.Counts = append(t.Counts, 1)
	}
	if len(t.dependent) > 0 {
		next := append([]link(nil), links...)
		for _, d := range t.ElementKey() {
			next = append(next, link{table: t.Name, decl: d})
		}
		for _, d := range t.dependent {
			if err := inherit(d, next, seen); err != nil {
				return err
			}
		}
	}
	for _, r := range t.referenced {
		if err := propagate(r, seen); err != nil {
			return err
		}
	}
	return nil
}

// PropagatedColumn returns the name of the column holding a copy of the
// given key column in a dependent table.
func PropagatedColumn(table, column string) string {
	return table + "_" + strings.TrimLeft(column, "_")
}
