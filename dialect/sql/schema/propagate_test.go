package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relplan"
	"github.com/syssam/relplan/schema/field"
)

func TestPropagate(t *testing.T) {
	root := build(t, "things",
		field.UUID("id").PrimaryKey().Generated(),
		field.String("name"),
		field.List("tags", field.String("")),
	)
	require.NoError(t, Propagate(root))
	dep, ok := root.DependentTable("things_tags")
	require.True(t, ok)
	assert.Equal(t, []string{"_tags_index_0", "tags", "things_id"}, columnNames(dep))
	fk := dep.Columns[2]
	assert.Equal(t, 0, fk.Index, "propagated column shares the global index of its source")
	assert.Equal(t, field.TypeUUID, fk.Type)
	assert.True(t, fk.Propagated)
	assert.False(t, fk.PrimaryKey)
	assert.Equal(t, Reference{Table: "things", Column: "id", Enforced: true}, *fk.References)
	assert.Equal(t, []int{2, 1}, dep.Counts)

	// Idempotent.
	require.NoError(t, Propagate(root))
	assert.Equal(t, []string{"_tags_index_0", "tags", "things_id"}, columnNames(dep))
	assert.Equal(t, []int{2, 1}, dep.Counts)
	assert.Equal(t, 4, root.NumColumns())
}

func TestPropagate_FallbackKey(t *testing.T) {
	root := build(t, "events",
		field.String("name"),
		field.Int64("at"),
		field.List("scores", field.Int32("")).Embedded(),
		field.List("tags", field.String("")),
	)
	require.NoError(t, Propagate(root))
	key, declared := root.PrimaryKey()
	assert.False(t, declared)
	require.Len(t, key, 2)
	dep, _ := root.DependentTable("events_tags")
	assert.Equal(t, []string{"_tags_index_0", "tags", "events_name", "events_at"}, columnNames(dep))
	assert.False(t, dep.Columns[2].References.Enforced)
}

func TestPropagate_Nested(t *testing.T) {
	root := build(t, "orders",
		field.Int64("id").PrimaryKey(),
		field.List("items", field.Object("",
			field.String("sku"),
			field.List("notes", field.String("")),
		)),
	)
	require.NoError(t, Propagate(root))
	items, _ := root.DependentTable("orders_items")
	assert.Equal(t, []string{"_items_index_0", "items_sku", "orders_id"}, columnNames(items))
	notes, _ := items.DependentTable("orders_items_items_notes")
	assert.Equal(t, []string{"_notes_index_0", "notes", "orders_id", "orders_items_items_index_0"}, columnNames(notes))
	link := notes.Columns[3]
	assert.Equal(t, items.Columns[0].Index, link.Index)
	assert.Equal(t, Reference{Table: "orders_items", Column: "_items_index_0"}, *link.References)
}

func TestPropagate_Referenced(t *testing.T) {
	root := build(t, "pets",
		field.Int64("id").PrimaryKey(),
		field.Object("owner",
			field.Int64("id").PrimaryKey(),
			field.List("phones", field.String("")),
		).ForeignKey("owners"),
	)
	require.NoError(t, Propagate(root))
	owners, _ := root.ReferencedTable("owners")
	phones, ok := owners.DependentTable("owners_phones")
	require.True(t, ok)
	assert.Equal(t, []string{"_phones_index_0", "phones", "owners_id"}, columnNames(phones))
}

func TestPropagate_Errors(t *testing.T) {
	root := build(t, "empty", field.List("scores", field.Int32("")).Embedded(), field.List("tags", field.String("")))
	err := Propagate(root)
	require.Error(t, err)
	assert.True(t, relplan.IsAssemblyError(err))

	root = build(t, "users",
		field.Int64("id").PrimaryKey(),
		field.List("tags", field.Object("", field.String("users_id"))),
	)
	// The element field "users_id" is prefixed with the field name, so no conflict.
	require.NoError(t, Propagate(root))

	dep := NewTable("users_x")
	dep.AddColumn(&Column{Name: "users_id", Type: field.TypeInt64}, 5)
	owner := NewTable("users")
	owner.AddColumn(&Column{Name: "id", Type: field.TypeInt64, PrimaryKey: true}, 0)
	owner.AddDependent(dep)
	err = Propagate(owner)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `conflicts with the key of table "users"`)
}
