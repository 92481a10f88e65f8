package sqlgraph

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"reflect"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/syssam/relplan"
	"github.com/syssam/relplan/dialect/sql/schema"
	"github.com/syssam/relplan/schema/field"
)

// Collector binds typed values into the global columns of a batch. Every
// setter checks the value against the declared column and converts it to
// the representation handed to the driver.
type Collector struct {
	b *Batch
}

// NewCollector returns a collector writing into the given batch.
func NewCollector(b *Batch) *Collector {
	return &Collector{b: b}
}

func (c *Collector) column(col int, t field.Type) (*schema.Column, error) {
	sc := c.b.plan.Column(col)
	if sc == nil {
		return nil, relplan.NewBindingError("", fmt.Errorf("unknown column %d", col))
	}
	if sc.Type != t {
		return nil, relplan.NewBindingError(sc.Field, fmt.Errorf("column %q holds %s values, got %s", sc.Name, sc.Type, t))
	}
	return sc, nil
}

func (c *Collector) set(col int, t field.Type, v any) error {
	sc, err := c.column(col, t)
	if err != nil {
		return err
	}
	sv, err := Convert(sc, v)
	if err != nil {
		return err
	}
	return c.b.SetColumn(col, sv)
}

// SetBool binds a boolean.
func (c *Collector) SetBool(col int, v bool) error { return c.set(col, field.TypeBool, v) }

// SetInt8 binds an 8-bit integer.
func (c *Collector) SetInt8(col int, v int8) error { return c.set(col, field.TypeInt8, v) }

// SetInt16 binds a 16-bit integer.
func (c *Collector) SetInt16(col int, v int16) error { return c.set(col, field.TypeInt16, v) }

// SetInt32 binds a 32-bit integer.
func (c *Collector) SetInt32(col int, v int32) error { return c.set(col, field.TypeInt32, v) }

// SetInt64 binds a 64-bit integer.
func (c *Collector) SetInt64(col int, v int64) error { return c.set(col, field.TypeInt64, v) }

// SetBigInt binds an arbitrary-precision integer.
func (c *Collector) SetBigInt(col int, v *big.Int) error { return c.set(col, field.TypeBigInt, v) }

// SetFloat32 binds a 32-bit float.
func (c *Collector) SetFloat32(col int, v float32) error { return c.set(col, field.TypeFloat32, v) }

// SetFloat64 binds a 64-bit float.
func (c *Collector) SetFloat64(col int, v float64) error { return c.set(col, field.TypeFloat64, v) }

// SetChar binds a single character.
func (c *Collector) SetChar(col int, v rune) error { return c.set(col, field.TypeChar, v) }

// SetString binds a string, bounded by the size of the column.
func (c *Collector) SetString(col int, v string) error { return c.set(col, field.TypeString, v) }

// SetBytes16 binds a fixed 16-byte value.
func (c *Collector) SetBytes16(col int, v [16]byte) error { return c.set(col, field.TypeBytes16, v) }

// SetBytes32 binds a fixed 32-byte value.
func (c *Collector) SetBytes32(col int, v [32]byte) error { return c.set(col, field.TypeBytes32, v) }

// SetBytes binds a byte slice.
func (c *Collector) SetBytes(col int, v []byte) error { return c.set(col, field.TypeBytes, v) }

// SetStream binds the content of a reader.
func (c *Collector) SetStream(col int, r io.Reader) error { return c.set(col, field.TypeStream, r) }

// SetUUID binds a UUID.
func (c *Collector) SetUUID(col int, v uuid.UUID) error { return c.set(col, field.TypeUUID, v) }

// SetNull binds an explicit NULL. Non-nullable columns take their default
// or generated value instead.
func (c *Collector) SetNull(col int) error {
	_, err := c.Set(col, nil)
	return err
}

// Set binds a value of any supported Go type to a global column and
// returns the value that was bound before conversion, which differs from
// v when a default or generated value replaced an absent one.
func (c *Collector) Set(col int, v any) (any, error) {
	sc := c.b.plan.Column(col)
	if sc == nil {
		return nil, relplan.NewBindingError("", fmt.Errorf("unknown column %d", col))
	}
	v = Resolve(sc, v)
	sv, err := Convert(sc, v)
	if err != nil {
		return nil, err
	}
	return v, c.b.SetColumn(col, sv)
}

// Resolve returns the value bound for v: the column default or a generated
// key when v is absent.
func Resolve(c *schema.Column, v any) any {
	if !isNil(v) {
		return v
	}
	switch {
	case c.Default != nil:
		return c.Default
	case c.Generated && c.Type == field.TypeUUID:
		return uuid.New()
	default:
		return nil
	}
}

var errNull = errors.New("null value in a non-nullable column")

// Convert converts a Go value to the representation of the column handed
// to the driver.
func Convert(c *schema.Column, v any) (any, error) {
	if isNil(v) {
		if c.NotNull {
			return nil, relplan.NewConversionError(c.Name, v, errNull)
		}
		return nil, nil
	}
	fail := func(format string, args ...any) error {
		return relplan.NewConversionError(c.Name, v, fmt.Errorf(format, args...))
	}
	switch c.Type {
	case field.TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case field.TypeInt8:
		return integer(c, v, math.MinInt8, math.MaxInt8)
	case field.TypeInt16:
		return integer(c, v, math.MinInt16, math.MaxInt16)
	case field.TypeInt32:
		return integer(c, v, math.MinInt32, math.MaxInt32)
	case field.TypeInt64:
		return integer(c, v, math.MinInt64, math.MaxInt64)
	case field.TypeBigInt:
		switch n := v.(type) {
		case *big.Int:
			return n.String(), nil
		case big.Int:
			return n.String(), nil
		}
		if i, err := integer(c, v, math.MinInt64, math.MaxInt64); err == nil {
			return big.NewInt(i.(int64)).String(), nil
		}
	case field.TypeFloat32:
		switch f := v.(type) {
		case float32:
			return float64(f), nil
		case float64:
			if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
				return nil, fail("value %v overflows float32", f)
			}
			return float64(float32(f)), nil
		}
	case field.TypeFloat64:
		switch f := v.(type) {
		case float32:
			return float64(f), nil
		case float64:
			return f, nil
		}
	case field.TypeChar:
		var s string
		switch r := v.(type) {
		case rune:
			s = string(r)
		case string:
			s = r
		default:
			return nil, mismatch(c, v)
		}
		s = norm.NFC.String(s)
		if utf8.RuneCountInString(s) != 1 {
			return nil, fail("expected one character, got %d", utf8.RuneCountInString(s))
		}
		return s, nil
	case field.TypeString:
		s, ok := v.(string)
		if !ok {
			break
		}
		if c.Size > 0 && utf8.RuneCountInString(s) > c.Size {
			return nil, fail("string of %d characters exceeds size %d", utf8.RuneCountInString(s), c.Size)
		}
		return s, nil
	case field.TypeBytes16:
		switch b := v.(type) {
		case [16]byte:
			return b[:], nil
		case []byte:
			if len(b) != 16 {
				return nil, fail("expected 16 bytes, got %d", len(b))
			}
			return b, nil
		}
	case field.TypeBytes32:
		switch b := v.(type) {
		case [32]byte:
			return b[:], nil
		case []byte:
			if len(b) != 32 {
				return nil, fail("expected 32 bytes, got %d", len(b))
			}
			return b, nil
		}
	case field.TypeBytes:
		if b, ok := v.([]byte); ok {
			return b, nil
		}
	case field.TypeStream:
		switch r := v.(type) {
		case io.Reader:
			b, err := io.ReadAll(r)
			if err != nil {
				return nil, relplan.NewConversionError(c.Name, v, err)
			}
			return b, nil
		case []byte:
			return r, nil
		}
	case field.TypeUUID:
		switch u := v.(type) {
		case uuid.UUID:
			return u.String(), nil
		case string:
			id, err := uuid.Parse(u)
			if err != nil {
				return nil, relplan.NewConversionError(c.Name, v, err)
			}
			return id.String(), nil
		}
	default:
		return nil, fail("unsupported column type %s", c.Type)
	}
	return nil, mismatch(c, v)
}

// mismatch returns the error of a value whose Go type does not match the
// column type.
func mismatch(c *schema.Column, v any) error {
	return relplan.NewBindingError(c.Field, fmt.Errorf("column %q expects %s, got %T", c.Name, c.Type, v))
}

// integer converts any Go integer within [lo, hi] to int64.
func integer(c *schema.Column, v any, lo, hi int64) (any, error) {
	var (
		i   int64
		err error
	)
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i = rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			err = fmt.Errorf("value %d overflows %s", u, c.Type)
		}
		i = int64(u)
	default:
		return nil, mismatch(c, v)
	}
	if err == nil && (i < lo || i > hi) {
		err = fmt.Errorf("value %d overflows %s", i, c.Type)
	}
	if err != nil {
		return nil, relplan.NewConversionError(c.Name, v, err)
	}
	return i, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
