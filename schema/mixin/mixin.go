// Package mixin provides reusable field sets for relplan types.
//
// A mixin is a set of fields prepended to the fields of every type it is
// mixed into:
//
//	t := schema.From("User", User{}, mixin.ID{})
//
// Creating Custom Mixins:
//
//	type Audit struct {
//	    mixin.Schema
//	}
//
//	func (Audit) Fields() []field.Field {
//	    return []field.Field{
//	        field.String("created_by"),
//	        field.String("updated_by"),
//	    }
//	}
package mixin

import (
	"github.com/syssam/relplan/schema"
	"github.com/syssam/relplan/schema/field"
)

// Schema is the default implementation for the schema.Mixin interface.
// It should be embedded in all custom mixin definitions.
type Schema struct{}

// Fields returns the fields of the mixin.
// Override this method to add custom fields.
func (Schema) Fields() []field.Field { return nil }

// schema mixin must implement `Mixin` interface.
var _ schema.Mixin = (*Schema)(nil)

// ID adds a generated uuid primary key named "id".
type ID struct {
	Schema
	// Name overrides the column name of the key.
	Name string
}

// Fields of the ID mixin.
func (m ID) Fields() []field.Field {
	name := m.Name
	if name == "" {
		name = "id"
	}
	return []field.Field{
		field.UUID(name).PrimaryKey().Generated().NotNull(),
	}
}

// SerialID adds an int64 primary key named "id" that the caller must set.
type SerialID struct {
	Schema
}

// Fields of the SerialID mixin.
func (SerialID) Fields() []field.Field {
	return []field.Field{
		field.Int64("id").PrimaryKey().NotNull(),
	}
}
