package schema

import (
	"strconv"

	"github.com/syssam/relplan/dialect"
	"github.com/syssam/relplan/schema/field"
)

// sqlTypes maps primitive kinds to their column type per dialect.
// Bounded strings are handled by SQLType.
var sqlTypes = map[string][]string{
	dialect.Postgres: {
		field.TypeBool:    "boolean",
		field.TypeInt8:    "smallint",
		field.TypeInt16:   "smallint",
		field.TypeInt32:   "integer",
		field.TypeInt64:   "bigint",
		field.TypeBigInt:  "numeric",
		field.TypeFloat32: "real",
		field.TypeFloat64: "double precision",
		field.TypeChar:    "char(1)",
		field.TypeString:  "text",
		field.TypeBytes16: "bytea",
		field.TypeBytes32: "bytea",
		field.TypeBytes:   "bytea",
		field.TypeStream:  "bytea",
		field.TypeUUID:    "uuid",
	},
	dialect.MySQL: {
		field.TypeBool:    "boolean",
		field.TypeInt8:    "tinyint",
		field.TypeInt16:   "smallint",
		field.TypeInt32:   "int",
		field.TypeInt64:   "bigint",
		field.TypeBigInt:  "decimal(65,0)",
		field.TypeFloat32: "float",
		field.TypeFloat64: "double",
		field.TypeChar:    "char(1)",
		field.TypeString:  "longtext",
		field.TypeBytes16: "binary(16)",
		field.TypeBytes32: "binary(32)",
		field.TypeBytes:   "longblob",
		field.TypeStream:  "longblob",
		field.TypeUUID:    "char(36)",
	},
	dialect.SQLite: {
		field.TypeBool:    "boolean",
		field.TypeInt8:    "integer",
		field.TypeInt16:   "integer",
		field.TypeInt32:   "integer",
		field.TypeInt64:   "integer",
		field.TypeBigInt:  "text",
		field.TypeFloat32: "real",
		field.TypeFloat64: "real",
		field.TypeChar:    "text",
		field.TypeString:  "text",
		field.TypeBytes16: "blob",
		field.TypeBytes32: "blob",
		field.TypeBytes:   "blob",
		field.TypeStream:  "blob",
		field.TypeUUID:    "text",
	},
}

// SQLType returns the column type of a primitive kind in the given dialect.
// Strings with a positive size are rendered as varchar(size). An empty
// string is returned for unknown kinds or dialects.
func SQLType(t field.Type, size int, name string) string {
	types, ok := sqlTypes[name]
	if !ok || !t.Valid() {
		return ""
	}
	if t == field.TypeString && size > 0 {
		return "varchar(" + strconv.Itoa(size) + ")"
	}
	return types[t]
}
