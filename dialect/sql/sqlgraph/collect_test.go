package sqlgraph

import (
	"math"
	"math/big"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relplan"
	"github.com/syssam/relplan/dialect/sql"
	"github.com/syssam/relplan/dialect/sql/schema"
	"github.com/syssam/relplan/schema/field"
)

func TestConvert(t *testing.T) {
	id := uuid.MustParse("8c6e1f3a-8c44-4a40-9d6b-3b6a4b7f0c11")
	tests := []struct {
		name  string
		col   *schema.Column
		value any
		want  any
	}{
		{name: "bool", col: &schema.Column{Type: field.TypeBool}, value: true, want: true},
		{name: "int8", col: &schema.Column{Type: field.TypeInt8}, value: int8(-3), want: int64(-3)},
		{name: "int16_from_int", col: &schema.Column{Type: field.TypeInt16}, value: 300, want: int64(300)},
		{name: "int32_from_uint", col: &schema.Column{Type: field.TypeInt32}, value: uint16(7), want: int64(7)},
		{name: "int64", col: &schema.Column{Type: field.TypeInt64}, value: int64(math.MaxInt64), want: int64(math.MaxInt64)},
		{name: "bigint", col: &schema.Column{Type: field.TypeBigInt}, value: new(big.Int).Lsh(big.NewInt(1), 70), want: "1180591620717411303424"},
		{name: "bigint_from_int", col: &schema.Column{Type: field.TypeBigInt}, value: 42, want: "42"},
		{name: "float32", col: &schema.Column{Type: field.TypeFloat32}, value: float32(1.5), want: float64(1.5)},
		{name: "float64", col: &schema.Column{Type: field.TypeFloat64}, value: 2.25, want: 2.25},
		{name: "char", col: &schema.Column{Type: field.TypeChar}, value: 'x', want: "x"},
		{name: "char_normalized", col: &schema.Column{Type: field.TypeChar}, value: "é", want: "é"},
		{name: "string", col: &schema.Column{Type: field.TypeString, Size: 3}, value: "héé", want: "héé"},
		{name: "bytes16", col: &schema.Column{Type: field.TypeBytes16}, value: [16]byte{1}, want: append([]byte{1}, make([]byte, 15)...)},
		{name: "bytes32", col: &schema.Column{Type: field.TypeBytes32}, value: make([]byte, 32), want: make([]byte, 32)},
		{name: "bytes", col: &schema.Column{Type: field.TypeBytes}, value: []byte("raw"), want: []byte("raw")},
		{name: "stream", col: &schema.Column{Type: field.TypeStream}, value: strings.NewReader("data"), want: []byte("data")},
		{name: "uuid", col: &schema.Column{Type: field.TypeUUID}, value: id, want: id.String()},
		{name: "uuid_from_string", col: &schema.Column{Type: field.TypeUUID}, value: strings.ToUpper(id.String()), want: id.String()},
		{name: "null", col: &schema.Column{Type: field.TypeString}, value: nil, want: nil},
		{name: "nil_pointer", col: &schema.Column{Type: field.TypeBigInt}, value: (*big.Int)(nil), want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.col, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvert_Errors(t *testing.T) {
	tests := []struct {
		name       string
		col        *schema.Column
		value      any
		conversion bool
	}{
		{name: "int8_overflow", col: &schema.Column{Type: field.TypeInt8}, value: 300, conversion: true},
		{name: "int64_overflow", col: &schema.Column{Type: field.TypeInt64}, value: uint64(math.MaxUint64), conversion: true},
		{name: "float32_overflow", col: &schema.Column{Type: field.TypeFloat32}, value: math.MaxFloat64, conversion: true},
		{name: "string_size", col: &schema.Column{Type: field.TypeString, Size: 3}, value: "abcd", conversion: true},
		{name: "char_length", col: &schema.Column{Type: field.TypeChar}, value: "ab", conversion: true},
		{name: "bytes16_length", col: &schema.Column{Type: field.TypeBytes16}, value: []byte{1, 2}, conversion: true},
		{name: "uuid_invalid", col: &schema.Column{Type: field.TypeUUID}, value: "not-a-uuid", conversion: true},
		{name: "not_null", col: &schema.Column{Type: field.TypeString, NotNull: true}, value: nil, conversion: true},
		{name: "bool_mismatch", col: &schema.Column{Type: field.TypeBool}, value: "yes"},
		{name: "int_mismatch", col: &schema.Column{Type: field.TypeInt32}, value: 1.5},
		{name: "string_mismatch", col: &schema.Column{Type: field.TypeString}, value: 12},
		{name: "float_mismatch", col: &schema.Column{Type: field.TypeFloat64}, value: "1.0"},
		{name: "char_mismatch", col: &schema.Column{Type: field.TypeChar}, value: 1.0},
		{name: "bytes_mismatch", col: &schema.Column{Type: field.TypeBytes}, value: "raw"},
		{name: "uuid_mismatch", col: &schema.Column{Type: field.TypeUUID}, value: 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Convert(tt.col, tt.value)
			require.Error(t, err)
			if tt.conversion {
				assert.True(t, relplan.IsConversionError(err), "unexpected error: %v", err)
			} else {
				assert.True(t, relplan.IsBindingError(err), "unexpected error: %v", err)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	c := &schema.Column{Type: field.TypeInt32, Default: int32(5)}
	assert.Equal(t, int32(5), Resolve(c, nil))
	assert.Equal(t, 9, Resolve(c, 9))

	g := &schema.Column{Type: field.TypeUUID, Generated: true}
	v, ok := Resolve(g, nil).(uuid.UUID)
	require.True(t, ok)
	assert.NotEqual(t, uuid.Nil, v)
	assert.NotEqual(t, v, Resolve(g, nil))

	assert.Nil(t, Resolve(&schema.Column{Type: field.TypeString}, nil))
}

func TestCollector(t *testing.T) {
	p := plan(t, sql.OpInsert, "values",
		field.Bool("b"),
		field.Int8("i8"),
		field.Int16("i16"),
		field.Int32("i32"),
		field.Int64("i64"),
		field.BigInt("big"),
		field.Float32("f32"),
		field.Float64("f64"),
		field.Char("c"),
		field.String("s").Size(8),
		field.Bytes16("b16"),
		field.Bytes32("b32"),
		field.Bytes("raw"),
		field.Stream("blob"),
		field.UUID("id"),
		field.String("d").NotNull().Default("x"),
	)
	id := uuid.New()
	b := NewBatch(p)
	c := NewCollector(b)
	require.NoError(t, c.SetBool(0, true))
	require.NoError(t, c.SetInt8(1, -8))
	require.NoError(t, c.SetInt16(2, 16))
	require.NoError(t, c.SetInt32(3, 32))
	require.NoError(t, c.SetInt64(4, 64))
	require.NoError(t, c.SetBigInt(5, big.NewInt(128)))
	require.NoError(t, c.SetFloat32(6, 0.5))
	require.NoError(t, c.SetFloat64(7, 0.25))
	require.NoError(t, c.SetChar(8, 'z'))
	require.NoError(t, c.SetString(9, "text"))
	require.NoError(t, c.SetBytes16(10, [16]byte{}))
	require.NoError(t, c.SetBytes32(11, [32]byte{}))
	require.NoError(t, c.SetBytes(12, []byte{1}))
	require.NoError(t, c.SetStream(13, strings.NewReader("s")))
	require.NoError(t, c.SetUUID(14, id))
	require.NoError(t, c.SetNull(15))
	for range p.Groups {
		b.PopGroup()
	}
	bound, err := b.Materialize()
	require.NoError(t, err)
	require.Len(t, bound[0].Rows, 1)
	assert.Equal(t, []any{
		true, int64(-8), int64(16), int64(32), int64(64), "128", float64(0.5), 0.25, "z", "text",
		make([]byte, 16), make([]byte, 32), []byte{1}, []byte("s"), id.String(), "x",
	}, bound[0].Rows[0])

	t.Run("mismatch", func(t *testing.T) {
		err := c.SetBool(1, true)
		require.Error(t, err)
		assert.True(t, relplan.IsBindingError(err))
		err = c.SetString(99, "")
		require.Error(t, err)
		assert.True(t, relplan.IsBindingError(err))
		_, err = c.Set(99, nil)
		require.Error(t, err)
	})
	t.Run("size", func(t *testing.T) {
		err := c.SetString(9, "too long text")
		require.Error(t, err)
		assert.True(t, relplan.IsConversionError(err))
	})
	t.Run("set_returns_resolved", func(t *testing.T) {
		v, err := c.Set(15, nil)
		require.NoError(t, err)
		assert.Equal(t, "x", v)
		v, err = c.Set(14, nil)
		require.NoError(t, err)
		assert.Nil(t, v)
	})
}
