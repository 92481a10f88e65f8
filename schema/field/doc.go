// Package field provides fluent builders for describing the fields of a
// value type that the engine decomposes into tables.
//
// A field has a name, a shape (primitive, object, collection or map) and a
// set of attributes. The engine consumes the resulting Descriptor tree and
// never inspects Go types itself.
//
// # Primitive Fields
//
//	field.Bool("active")
//	field.Int8("level")
//	field.Int32("count")
//	field.Int64("id").PrimaryKey()
//	field.BigInt("balance")
//	field.Float64("price").Positive()
//	field.Char("grade")
//	field.String("code").Size(10)
//	field.String("bio")              // unbounded
//	field.Bytes16("digest")
//	field.Bytes("payload")
//	field.Stream("blob")             // read from an io.Reader on bind
//	field.UUID("id").PrimaryKey().Generated()
//
// # Composite Fields
//
// Objects, collections and maps must be resolved by an attribute:
//
//	// Flattened into the owner table with a name prefix.
//	field.Object("address",
//	    field.String("city"),
//	    field.String("zip"),
//	).Embedded()
//
//	// Stored in its own table and referenced by key.
//	field.Object("owner",
//	    field.Int64("id").PrimaryKey(),
//	    field.String("name"),
//	).ForeignKey("owners")
//
//	// One row per element, with a synthetic index column.
//	field.List("scores", field.Int32("")).Embedded()
//
//	// One row per element in a dependent table "<owner>_tags".
//	field.List("tags", field.String(""))
//
//	// One row per entry, ordered by key.
//	field.Map("labels", field.String(""), field.String(""))
//
// # Checks
//
// Numeric checks are folded into one CHECK expression joined with AND:
//
//	field.Int32("age").NonNegative().Max(150).MultipleOf(1)
//	// (age >= 0) AND (age <= 150) AND (age % 1 = 0)
//
// # Errors
//
// Builders never panic. Invalid combinations are recorded in Descriptor.Err
// and reported by Validate or by the table builder.
package field
