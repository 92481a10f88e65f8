// Package load reads type descriptions from YAML (or JSON) documents and
// turns them into schema types.
package load

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/syssam/relplan/schema"
	"github.com/syssam/relplan/schema/field"
)

// Document is the root of a type description file.
type Document struct {
	Types []*Schema `yaml:"types"`
}

// Schema represents a schema.Type that was loaded from a description file.
type Schema struct {
	Name   string   `yaml:"name"`
	Table  string   `yaml:"table,omitempty"`
	Fields []*Field `yaml:"fields"`
}

// Field represents a field.Descriptor that was loaded from a description file.
type Field struct {
	Name        string   `yaml:"name,omitempty"`
	Shape       string   `yaml:"shape,omitempty"`
	Type        string   `yaml:"type,omitempty"`
	Size        int      `yaml:"size,omitempty"`
	Fields      []*Field `yaml:"fields,omitempty"`
	Elem        *Field   `yaml:"elem,omitempty"`
	Key         *Field   `yaml:"key,omitempty"`
	ForeignKey  string   `yaml:"foreign_key,omitempty"`
	PrimaryKey  bool     `yaml:"primary_key,omitempty"`
	Embedded    bool     `yaml:"embedded,omitempty"`
	Unique      bool     `yaml:"unique,omitempty"`
	NotNull     bool     `yaml:"not_null,omitempty"`
	Generated   bool     `yaml:"generated,omitempty"`
	Default     any      `yaml:"default,omitempty"`
	Positive    bool     `yaml:"positive,omitempty"`
	Negative    bool     `yaml:"negative,omitempty"`
	NonNegative bool     `yaml:"non_negative,omitempty"`
	Min         *float64 `yaml:"min,omitempty"`
	Max         *float64 `yaml:"max,omitempty"`
	MultipleOf  int64    `yaml:"multiple_of,omitempty"`
	Checks      []string `yaml:"checks,omitempty"`
	Comment     string   `yaml:"comment,omitempty"`
}

// Names of the field shapes in description files. The primitive shape is
// implied by a field with a type.
const (
	shapeObject = "object"
	shapeList   = "list"
	shapeMap    = "map"
)

// Parse decodes a description document and returns its types. Unknown keys
// are rejected.
func Parse(data []byte) ([]*schema.Type, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads a description document from r and returns its types.
func Decode(r io.Reader) ([]*schema.Type, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	doc := &Document{}
	if err := dec.Decode(doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("load: empty document")
		}
		return nil, fmt.Errorf("load: decoding document: %w", err)
	}
	if len(doc.Types) == 0 {
		return nil, errors.New("load: document declares no types")
	}
	types := make([]*schema.Type, 0, len(doc.Types))
	seen := make(map[string]bool, len(doc.Types))
	for _, s := range doc.Types {
		t, err := s.Type()
		if err != nil {
			return nil, err
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("load: type %q is declared twice", t.Name)
		}
		seen[t.Name] = true
		types = append(types, t)
	}
	return types, nil
}

// File reads the description document at the given path.
func File(path string) ([]*schema.Type, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	defer f.Close()
	types, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return types, nil
}

// Type returns the schema type of the loaded schema.
func (s *Schema) Type() (*schema.Type, error) {
	if s == nil || s.Name == "" {
		return nil, errors.New("load: type name is required")
	}
	fields := make([]field.Field, 0, len(s.Fields))
	for _, f := range s.Fields {
		b, err := f.builder()
		if err != nil {
			return nil, fmt.Errorf("load: type %q: %w", s.Name, err)
		}
		fields = append(fields, b)
	}
	t := schema.New(s.Name, fields...).SetTable(s.Table)
	if err := t.Err(); err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return t, nil
}

// builder returns the field builder of a loaded field. Errors of the
// attributes are recorded on the descriptor by the builder itself.
func (f *Field) builder() (*field.Builder, error) {
	if f == nil {
		return nil, errors.New("empty field")
	}
	var b *field.Builder
	switch f.Shape {
	case "", "primitive":
		t, err := field.ParseType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		b = primitive(f.Name, t)
	case shapeObject:
		fields := make([]field.Field, 0, len(f.Fields))
		for _, sub := range f.Fields {
			sb, err := sub.builder()
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			fields = append(fields, sb)
		}
		b = field.Object(f.Name, fields...)
	case shapeList:
		if f.Elem == nil {
			return nil, fmt.Errorf("field %q: list element is missing", f.Name)
		}
		elem, err := f.Elem.builder()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		b = field.List(f.Name, elem)
	case shapeMap:
		if f.Key == nil || f.Elem == nil {
			return nil, fmt.Errorf("field %q: map key and elem are required", f.Name)
		}
		key, err := f.Key.builder()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		elem, err := f.Elem.builder()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		b = field.Map(f.Name, key, elem)
	default:
		return nil, fmt.Errorf("field %q: unknown shape %q", f.Name, f.Shape)
	}
	f.attributes(b)
	return b, nil
}

func primitive(name string, t field.Type) *field.Builder {
	switch t {
	case field.TypeBool:
		return field.Bool(name)
	case field.TypeInt8:
		return field.Int8(name)
	case field.TypeInt16:
		return field.Int16(name)
	case field.TypeInt32:
		return field.Int32(name)
	case field.TypeInt64:
		return field.Int64(name)
	case field.TypeBigInt:
		return field.BigInt(name)
	case field.TypeFloat32:
		return field.Float32(name)
	case field.TypeFloat64:
		return field.Float64(name)
	case field.TypeChar:
		return field.Char(name)
	case field.TypeBytes16:
		return field.Bytes16(name)
	case field.TypeBytes32:
		return field.Bytes32(name)
	case field.TypeBytes:
		return field.Bytes(name)
	case field.TypeStream:
		return field.Stream(name)
	case field.TypeUUID:
		return field.UUID(name)
	default:
		return field.String(name)
	}
}

func (f *Field) attributes(b *field.Builder) {
	if f.PrimaryKey {
		b.PrimaryKey()
	}
	if f.Unique {
		b.Unique()
	}
	if f.NotNull {
		b.NotNull()
	}
	if f.Embedded {
		b.Embedded()
	}
	if f.ForeignKey != "" {
		b.ForeignKey(f.ForeignKey)
	}
	if f.Generated {
		b.Generated()
	}
	if f.Default != nil {
		b.Default(f.Default)
	}
	if f.Size != 0 {
		b.Size(f.Size)
	}
	if f.Positive {
		b.Positive()
	}
	if f.Negative {
		b.Negative()
	}
	if f.NonNegative {
		b.NonNegative()
	}
	if f.Min != nil {
		b.Min(*f.Min)
	}
	if f.Max != nil {
		b.Max(*f.Max)
	}
	if f.MultipleOf != 0 {
		b.MultipleOf(f.MultipleOf)
	}
	for _, expr := range f.Checks {
		b.Check(expr)
	}
	if f.Comment != "" {
		b.Comment(f.Comment)
	}
}

// NewField creates a loaded field from a field descriptor.
func NewField(fd *field.Descriptor) (*Field, error) {
	if fd.Err != nil {
		return nil, fmt.Errorf("field %q: %v", fd.Name, fd.Err)
	}
	f := &Field{
		Name:        fd.Name,
		Size:        fd.Size,
		ForeignKey:  fd.Ref,
		PrimaryKey:  fd.PrimaryKey,
		Embedded:    fd.Embedded,
		Unique:      fd.Unique,
		NotNull:     fd.NotNull,
		Generated:   fd.Generated,
		Default:     fd.Default,
		Positive:    fd.Checks.Positive,
		Negative:    fd.Checks.Negative,
		NonNegative: fd.Checks.NonNegative,
		Min:         fd.Checks.Min,
		Max:         fd.Checks.Max,
		MultipleOf:  fd.Checks.MultipleOf,
		Checks:      fd.Checks.Exprs,
		Comment:     fd.Comment,
	}
	var err error
	switch fd.Shape {
	case field.ShapePrimitive:
		f.Type = fd.Type.String()
	case field.ShapeObject:
		f.Shape = shapeObject
		for _, sub := range fd.Fields {
			sf, err := NewField(sub)
			if err != nil {
				return nil, err
			}
			f.Fields = append(f.Fields, sf)
		}
	case field.ShapeCollection:
		f.Shape = shapeList
		f.Elem, err = NewField(fd.Elem)
	case field.ShapeMap:
		f.Shape = shapeMap
		if f.Key, err = NewField(fd.Key); err == nil {
			f.Elem, err = NewField(fd.Elem)
		}
	default:
		err = fmt.Errorf("field %q: unknown shape %s", fd.Name, fd.Shape)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Marshal encodes the given types into a description document.
func Marshal(types ...*schema.Type) ([]byte, error) {
	doc := &Document{Types: make([]*Schema, 0, len(types))}
	for _, t := range types {
		s := &Schema{Name: t.Name, Table: t.Table}
		for _, fd := range t.Fields {
			f, err := NewField(fd)
			if err != nil {
				return nil, fmt.Errorf("load: type %q: %w", t.Name, err)
			}
			s.Fields = append(s.Fields, f)
		}
		doc.Types = append(doc.Types, s)
	}
	return yaml.Marshal(doc)
}
