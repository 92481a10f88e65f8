// Package schema describes the value types that the engine decomposes into
// relational tables.
//
// A Type is a name plus an ordered list of field descriptors built with the
// [field] package. Types can be declared inline, derived from any provider
// implementing Interface, or loaded from YAML with the [load] package:
//
//	user := schema.New("User",
//	    field.UUID("id").PrimaryKey().Generated(),
//	    field.String("email").Unique(),
//	    field.List("tags", field.String("")),
//	)
//	user.TableName() // "users"
//
// Providers and mixins:
//
//	type User struct{}
//
//	func (User) Fields() []field.Field {
//	    return []field.Field{field.String("email")}
//	}
//
//	t := schema.From("User", User{}, mixin.ID{})
//
// Fingerprint returns a digest of the field tree which the engine uses as
// the key of its plan cache.
package schema
