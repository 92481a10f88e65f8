package field

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Type is the primitive kind of a leaf field.
type Type uint8

// List of primitive kinds.
const (
	TypeInvalid Type = iota
	TypeBool
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeBigInt
	TypeFloat32
	TypeFloat64
	TypeChar
	TypeString
	TypeBytes16
	TypeBytes32
	TypeBytes
	TypeStream
	TypeUUID
	endTypes
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeBool:    "bool",
	TypeInt8:    "int8",
	TypeInt16:   "int16",
	TypeInt32:   "int32",
	TypeInt64:   "int64",
	TypeBigInt:  "bigint",
	TypeFloat32: "float32",
	TypeFloat64: "float64",
	TypeChar:    "char",
	TypeString:  "string",
	TypeBytes16: "bytes16",
	TypeBytes32: "bytes32",
	TypeBytes:   "bytes",
	TypeStream:  "stream",
	TypeUUID:    "uuid",
}

// String returns the name of the type.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return "type" + strconv.Itoa(int(t))
}

// Valid reports if the given type is a known primitive kind.
func (t Type) Valid() bool {
	return t > TypeInvalid && t < endTypes
}

// Numeric reports if the given type is a numeric type.
func (t Type) Numeric() bool {
	switch t {
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64, TypeBigInt, TypeFloat32, TypeFloat64:
		return true
	}
	return false
}

// Integer reports if the given type is an integer type.
func (t Type) Integer() bool {
	return t.Numeric() && t != TypeFloat32 && t != TypeFloat64
}

// ParseType returns the Type registered under the given name.
func ParseType(name string) (Type, error) {
	for t := TypeBool; t < endTypes; t++ {
		if typeNames[t] == name {
			return t, nil
		}
	}
	return TypeInvalid, fmt.Errorf("field: unknown type %q", name)
}

// Shape is the structural tag of a field.
type Shape uint8

// List of field shapes.
const (
	ShapePrimitive Shape = iota
	ShapeObject
	ShapeCollection
	ShapeMap
)

// String returns the name of the shape.
func (s Shape) String() string {
	switch s {
	case ShapePrimitive:
		return "primitive"
	case ShapeObject:
		return "object"
	case ShapeCollection:
		return "collection"
	case ShapeMap:
		return "map"
	default:
		return "shape" + strconv.Itoa(int(s))
	}
}

// Names of the synthetic fields of a map entry.
const (
	EntryKey   = "key"
	EntryValue = "value"
)

// A Descriptor for field configuration.
type Descriptor struct {
	Name       string        // field name.
	Shape      Shape         // structural tag.
	Type       Type          // primitive kind, ShapePrimitive only.
	Size       int           // max size of bounded strings, 0 is unbounded.
	Fields     []*Descriptor // nested fields, ShapeObject only.
	Elem       *Descriptor   // element of a collection, value of a map.
	Key        *Descriptor   // key of a map.
	Ref        string        // referenced table of a foreign-key object.
	PrimaryKey bool          // part of the table key.
	ForeignKey bool          // object stored in its own table and referenced by key.
	Embedded   bool          // composite flattened into the owner table.
	Unique     bool          // unique column.
	NotNull    bool          // non-nullable column.
	Generated  bool          // value generated on bind when absent.
	Default    any           // value bound when absent.
	Checks     Checks        // column checks.
	Comment    string        // column comment.
	Err        error
}

// IsComposite reports if the field is not a primitive.
func (d *Descriptor) IsComposite() bool {
	return d.Shape != ShapePrimitive
}

// IsRepeated reports if the field is a collection or a map.
func (d *Descriptor) IsRepeated() bool {
	return d.Shape == ShapeCollection || d.Shape == ShapeMap
}

// Element returns the descriptor of one element of a repeated field. For
// maps, the element is an object holding the key and the value.
func (d *Descriptor) Element() *Descriptor {
	switch d.Shape {
	case ShapeCollection:
		return d.Elem
	case ShapeMap:
		key, value := *d.Key, *d.Elem
		key.Name, value.Name = EntryKey, EntryValue
		return &Descriptor{
			Name:     d.Name,
			Shape:    ShapeObject,
			Embedded: true,
			Fields:   []*Descriptor{&key, &value},
		}
	default:
		return nil
	}
}

// err walks the descriptor tree and returns the first error recorded by a builder.
func (d *Descriptor) err() error {
	if d.Err != nil {
		return d.Err
	}
	for _, f := range d.Fields {
		if err := f.err(); err != nil {
			return err
		}
	}
	for _, f := range []*Descriptor{d.Elem, d.Key} {
		if f == nil {
			continue
		}
		if err := f.err(); err != nil {
			return err
		}
	}
	return nil
}

// Validate returns the errors recorded by the builders of the given fields,
// including the ones of nested fields.
func Validate(fields ...*Descriptor) error {
	var errs []error
	for _, f := range fields {
		if err := f.err(); err != nil {
			errs = append(errs, fmt.Errorf("field %q: %w", f.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Field is the interface implemented by all field builders.
type Field interface {
	Descriptor() *Descriptor
}

// Descriptors returns the descriptors of the given fields.
func Descriptors(fields ...Field) []*Descriptor {
	ds := make([]*Descriptor, len(fields))
	for i, f := range fields {
		ds[i] = f.Descriptor()
	}
	return ds
}

// Builder is the builder shared by all field shapes.
type Builder struct {
	desc *Descriptor
}

func primitive(name string, t Type) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Shape: ShapePrimitive, Type: t}}
}

// Bool returns a new Field with type bool.
func Bool(name string) *Builder { return primitive(name, TypeBool) }

// Int8 returns a new Field with type int8.
func Int8(name string) *Builder { return primitive(name, TypeInt8) }

// Int16 returns a new Field with type int16.
func Int16(name string) *Builder { return primitive(name, TypeInt16) }

// Int32 returns a new Field with type int32.
func Int32(name string) *Builder { return primitive(name, TypeInt32) }

// Int64 returns a new Field with type int64.
func Int64(name string) *Builder { return primitive(name, TypeInt64) }

// BigInt returns a new Field holding an arbitrary-precision integer (*big.Int).
func BigInt(name string) *Builder { return primitive(name, TypeBigInt) }

// Float32 returns a new Field with type float32.
func Float32(name string) *Builder { return primitive(name, TypeFloat32) }

// Float64 returns a new Field with type float64.
func Float64(name string) *Builder { return primitive(name, TypeFloat64) }

// Char returns a new Field holding a single character.
func Char(name string) *Builder { return primitive(name, TypeChar) }

// String returns a new Field with type string. Use Size to bound it.
func String(name string) *Builder { return primitive(name, TypeString) }

// Bytes16 returns a new Field holding a fixed [16]byte value.
func Bytes16(name string) *Builder { return primitive(name, TypeBytes16) }

// Bytes32 returns a new Field holding a fixed [32]byte value.
func Bytes32(name string) *Builder { return primitive(name, TypeBytes32) }

// Bytes returns a new Field with type []byte.
func Bytes(name string) *Builder { return primitive(name, TypeBytes) }

// Stream returns a new Field whose value is read from an io.Reader on bind.
func Stream(name string) *Builder { return primitive(name, TypeStream) }

// UUID returns a new Field with type uuid.UUID.
func UUID(name string) *Builder { return primitive(name, TypeUUID) }

// Object returns a new composite Field made of the given fields. It must be
// marked as Embedded or ForeignKey before it can be decomposed.
func Object(name string, fields ...Field) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Shape: ShapeObject, Fields: Descriptors(fields...)}}
}

// List returns a new collection Field. The name of the element field is ignored.
func List(name string, elem Field) *Builder {
	b := &Builder{desc: &Descriptor{Name: name, Shape: ShapeCollection}}
	if elem == nil {
		b.desc.Err = errors.New("list element is missing")
		return b
	}
	b.desc.Elem = elem.Descriptor()
	return b
}

// Map returns a new map Field. Keys must be strings.
func Map(name string, key, value Field) *Builder {
	b := &Builder{desc: &Descriptor{Name: name, Shape: ShapeMap}}
	if key == nil || value == nil {
		b.desc.Err = errors.New("map key and value are required")
		return b
	}
	b.desc.Key, b.desc.Elem = key.Descriptor(), value.Descriptor()
	if b.desc.Key.Shape != ShapePrimitive || b.desc.Key.Type != TypeString {
		b.desc.Err = fmt.Errorf("map key must be a string, got %s", b.desc.Key.Type)
	}
	return b
}

func (b *Builder) fail(format string, args ...any) *Builder {
	if b.desc.Err == nil {
		b.desc.Err = fmt.Errorf(format, args...)
	}
	return b
}

// PrimaryKey marks the field as part of the table key.
func (b *Builder) PrimaryKey() *Builder {
	if b.desc.IsComposite() {
		return b.fail("primary key %q must be a primitive field", b.desc.Name)
	}
	b.desc.PrimaryKey = true
	return b
}

// Unique makes the field unique.
func (b *Builder) Unique() *Builder {
	if b.desc.IsComposite() {
		return b.fail("unique %q must be a primitive field", b.desc.Name)
	}
	b.desc.Unique = true
	return b
}

// NotNull makes the column non-nullable.
func (b *Builder) NotNull() *Builder {
	b.desc.NotNull = true
	return b
}

// Embedded flattens an object or a repeated field into the owner table.
func (b *Builder) Embedded() *Builder {
	if !b.desc.IsComposite() {
		return b.fail("embedded %q must be a composite field", b.desc.Name)
	}
	if b.desc.ForeignKey {
		return b.fail("field %q cannot be both embedded and a foreign key", b.desc.Name)
	}
	b.desc.Embedded = true
	return b
}

// ForeignKey stores the object in the given table and keeps its key in the
// owner table.
func (b *Builder) ForeignKey(table string) *Builder {
	if b.desc.Shape != ShapeObject {
		return b.fail("foreign key %q must be an object field", b.desc.Name)
	}
	if b.desc.Embedded {
		return b.fail("field %q cannot be both embedded and a foreign key", b.desc.Name)
	}
	if table == "" {
		return b.fail("foreign key %q requires a table name", b.desc.Name)
	}
	b.desc.ForeignKey = true
	b.desc.Ref = table
	return b
}

// Generated generates a new value on bind when the field is absent.
func (b *Builder) Generated() *Builder {
	if b.desc.Shape != ShapePrimitive || b.desc.Type != TypeUUID {
		return b.fail("generated %q must be a uuid field", b.desc.Name)
	}
	b.desc.Generated = true
	return b
}

// Default sets the value bound when the field is absent.
func (b *Builder) Default(v any) *Builder {
	if b.desc.IsComposite() {
		return b.fail("default of %q requires a primitive field", b.desc.Name)
	}
	b.desc.Default = v
	return b
}

// Size bounds the length of a string field.
func (b *Builder) Size(n int) *Builder {
	if b.desc.Shape != ShapePrimitive || b.desc.Type != TypeString {
		return b.fail("size of %q requires a string field", b.desc.Name)
	}
	if n <= 0 {
		return b.fail("size of %q must be positive", b.desc.Name)
	}
	b.desc.Size = n
	return b
}

func (b *Builder) numeric(op string) bool {
	if b.desc.Shape != ShapePrimitive || !b.desc.Type.Numeric() {
		b.fail("%s of %q requires a numeric field", op, b.desc.Name)
		return false
	}
	return true
}

// Positive adds a check that the value is greater than zero.
func (b *Builder) Positive() *Builder {
	if b.numeric("positive") {
		b.desc.Checks.Positive = true
	}
	return b
}

// Negative adds a check that the value is lower than zero.
func (b *Builder) Negative() *Builder {
	if b.numeric("negative") {
		b.desc.Checks.Negative = true
	}
	return b
}

// NonNegative adds a check that the value is zero or greater.
func (b *Builder) NonNegative() *Builder {
	if b.numeric("non-negative") {
		b.desc.Checks.NonNegative = true
	}
	return b
}

// Min adds a lower bound check.
func (b *Builder) Min(v float64) *Builder {
	if b.numeric("min") {
		b.desc.Checks.Min = &v
	}
	return b
}

// Max adds an upper bound check.
func (b *Builder) Max(v float64) *Builder {
	if b.numeric("max") {
		b.desc.Checks.Max = &v
	}
	return b
}

// Range adds both bound checks.
func (b *Builder) Range(lo, hi float64) *Builder {
	return b.Min(lo).Max(hi)
}

// MultipleOf adds a check that the value is a multiple of n.
func (b *Builder) MultipleOf(n int64) *Builder {
	if !b.numeric("multiple-of") {
		return b
	}
	if !b.desc.Type.Integer() || n <= 0 {
		return b.fail("multiple-of %q requires an integer field and a positive divisor", b.desc.Name)
	}
	b.desc.Checks.MultipleOf = n
	return b
}

// Check adds a raw boolean expression on the column.
func (b *Builder) Check(expr string) *Builder {
	if strings.TrimSpace(expr) == "" {
		return b.fail("empty check on %q", b.desc.Name)
	}
	b.desc.Checks.Exprs = append(b.desc.Checks.Exprs, expr)
	return b
}

// Comment sets the comment of the field.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the Field interface by returning its descriptor.
func (b *Builder) Descriptor() *Descriptor {
	return b.desc
}
