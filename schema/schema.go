package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/go-openapi/inflect"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/relplan/schema/field"
)

// Interface is the field-metadata provider consumed by the engine: any value
// that can describe the ordered fields of a type.
type Interface interface {
	Fields() []field.Field
}

// Mixin is a reusable set of fields prepended to the fields of a type.
type Mixin interface {
	Fields() []field.Field
}

// Type describes one value type: its name, the table it is stored in and
// its ordered fields.
type Type struct {
	Name   string
	Table  string
	Fields []*field.Descriptor
}

// New returns a new Type with the given fields.
func New(name string, fields ...field.Field) *Type {
	return &Type{Name: name, Fields: field.Descriptors(fields...)}
}

// From returns a new Type from a field-metadata provider. Fields of the
// given mixins come first.
func From(name string, s Interface, mixins ...Mixin) *Type {
	t := &Type{Name: name}
	for _, m := range mixins {
		t.Fields = append(t.Fields, field.Descriptors(m.Fields()...)...)
	}
	t.Fields = append(t.Fields, field.Descriptors(s.Fields()...)...)
	return t
}

// SetTable overrides the table name of the type.
func (t *Type) SetTable(name string) *Type {
	t.Table = name
	return t
}

// TableName returns the root table name of the type. If no table was set,
// the name is the snake-cased plural of the type name ("OrderItem" is
// stored in "order_items").
func (t *Type) TableName() string {
	if t.Table != "" {
		return t.Table
	}
	return TableName(t.Name)
}

// Err returns the errors recorded by the field builders of the type.
func (t *Type) Err() error {
	if t.Name == "" {
		return fmt.Errorf("schema: type name is required")
	}
	if err := field.Validate(t.Fields...); err != nil {
		return fmt.Errorf("schema: type %q: %w", t.Name, err)
	}
	return nil
}

// TableName returns the conventional table name of a type name.
func TableName(name string) string {
	return inflect.Underscore(inflect.Pluralize(name))
}

// node is the stable encoding of a descriptor used for fingerprints.
type node struct {
	Name       string  `msgpack:"n"`
	Shape      uint8   `msgpack:"s"`
	Type       uint8   `msgpack:"t"`
	Size       int     `msgpack:"z,omitempty"`
	Ref        string  `msgpack:"r,omitempty"`
	Flags      uint8   `msgpack:"f,omitempty"`
	Default    string  `msgpack:"d,omitempty"`
	Check      string  `msgpack:"c,omitempty"`
	Fields     []*node `msgpack:"fs,omitempty"`
	Elem, Key  *node   `msgpack:",omitempty"`
	HasDefault bool    `msgpack:"hd,omitempty"`
}

const (
	flagPrimaryKey uint8 = 1 << iota
	flagForeignKey
	flagEmbedded
	flagUnique
	flagNotNull
	flagGenerated
)

func encode(d *field.Descriptor) *node {
	if d == nil {
		return nil
	}
	n := &node{
		Name:  d.Name,
		Shape: uint8(d.Shape),
		Type:  uint8(d.Type),
		Size:  d.Size,
		Ref:   d.Ref,
		Check: d.Checks.Expr("?"),
		Elem:  encode(d.Elem),
		Key:   encode(d.Key),
	}
	for flag, ok := range map[uint8]bool{
		flagPrimaryKey: d.PrimaryKey,
		flagForeignKey: d.ForeignKey,
		flagEmbedded:   d.Embedded,
		flagUnique:     d.Unique,
		flagNotNull:    d.NotNull,
		flagGenerated:  d.Generated,
	} {
		if ok {
			n.Flags |= flag
		}
	}
	if d.Default != nil {
		n.HasDefault = true
		n.Default = fmt.Sprintf("%T:%v", d.Default, d.Default)
	}
	for _, f := range d.Fields {
		n.Fields = append(n.Fields, encode(f))
	}
	return n
}

// Fingerprint returns a stable digest of the table name and the field tree
// of the type. Two types with the same fingerprint decompose into the same
// tables, so their plans are interchangeable.
func Fingerprint(t *Type) (string, error) {
	fields := make([]*node, len(t.Fields))
	for i, f := range t.Fields {
		fields[i] = encode(f)
	}
	b, err := msgpack.Marshal(struct {
		Table  string  `msgpack:"table"`
		Fields []*node `msgpack:"fields"`
	}{
		Table:  t.TableName(),
		Fields: fields,
	})
	if err != nil {
		return "", fmt.Errorf("schema: encoding type %q: %w", t.Name, err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
