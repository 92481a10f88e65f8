package sqlgraph

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/syssam/relplan/dialect/sql"
)

// Cursor reads the rows of one statement result. It exposes one getter per
// primitive kind, symmetric to the setters of Collector (Text reads what
// SetString writes). Getters read the column selected by Seek in the
// current row.
type Cursor interface {
	Next() bool
	Seek(col int) error
	WasNull() bool
	Value() any
	Bool() (bool, error)
	Int8() (int8, error)
	Int16() (int16, error)
	Int32() (int32, error)
	Int64() (int64, error)
	BigInt() (*big.Int, error)
	Float32() (float32, error)
	Float64() (float64, error)
	Char() (rune, error)
	Text() (string, error)
	Bytes16() ([16]byte, error)
	Bytes32() ([32]byte, error)
	Bytes() ([]byte, error)
	UUID() (uuid.UUID, error)
	Err() error
	Close() error
}

// values implements the getters of a Cursor over the current row.
type values struct {
	row []any
	col int
}

// Seek selects the column read by the getters.
func (c *values) Seek(col int) error {
	if c.row == nil {
		return errors.New("sqlgraph: cursor is not positioned on a row")
	}
	if col < 0 || col >= len(c.row) {
		return fmt.Errorf("sqlgraph: column %d out of range [0, %d)", col, len(c.row))
	}
	c.col = col
	return nil
}

// Value returns the raw value of the selected column.
func (c *values) Value() any {
	if c.row == nil || c.col >= len(c.row) {
		return nil
	}
	return c.row[c.col]
}

// WasNull reports if the selected column is NULL.
func (c *values) WasNull() bool { return c.Value() == nil }

func (c *values) Bool() (bool, error) {
	switch v := c.Value().(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case []byte, string:
		s := text(v)
		if s == "t" || s == "f" {
			return s == "t", nil
		}
		return strconv.ParseBool(s)
	}
	return false, c.mismatch("bool")
}

func (c *values) Int8() (int8, error) {
	v, err := c.integer(math.MinInt8, math.MaxInt8)
	return int8(v), err
}

func (c *values) Int16() (int16, error) {
	v, err := c.integer(math.MinInt16, math.MaxInt16)
	return int16(v), err
}

func (c *values) Int32() (int32, error) {
	v, err := c.integer(math.MinInt32, math.MaxInt32)
	return int32(v), err
}

func (c *values) Int64() (int64, error) {
	return c.integer(math.MinInt64, math.MaxInt64)
}

func (c *values) integer(lo, hi int64) (int64, error) {
	var i int64
	switch v := c.Value().(type) {
	case int64:
		i = v
	case int32:
		i = int64(v)
	case int:
		i = int64(v)
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("sqlgraph: %v is not an integer", v)
		}
		i = int64(v)
	case []byte, string:
		n, err := strconv.ParseInt(text(v), 10, 64)
		if err != nil {
			return 0, err
		}
		i = n
	default:
		return 0, c.mismatch("integer")
	}
	if i < lo || i > hi {
		return 0, fmt.Errorf("sqlgraph: value %d out of range [%d, %d]", i, lo, hi)
	}
	return i, nil
}

func (c *values) BigInt() (*big.Int, error) {
	switch v := c.Value().(type) {
	case int64:
		return big.NewInt(v), nil
	case []byte, string:
		n, ok := new(big.Int).SetString(text(v), 10)
		if !ok {
			return nil, fmt.Errorf("sqlgraph: invalid integer %q", text(v))
		}
		return n, nil
	}
	return nil, c.mismatch("bigint")
}

func (c *values) Float32() (float32, error) {
	f, err := c.Float64()
	return float32(f), err
}

func (c *values) Float64() (float64, error) {
	switch v := c.Value().(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case []byte, string:
		return strconv.ParseFloat(text(v), 64)
	}
	return 0, c.mismatch("float")
}

func (c *values) Char() (rune, error) {
	s, err := c.Text()
	if err != nil {
		return 0, err
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("sqlgraph: expected one character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

func (c *values) Text() (string, error) {
	switch v := c.Value().(type) {
	case string, []byte:
		return text(v), nil
	}
	return "", c.mismatch("string")
}

func (c *values) Bytes16() ([16]byte, error) {
	var a [16]byte
	b, err := c.Bytes()
	if err == nil && len(b) != len(a) {
		err = fmt.Errorf("sqlgraph: expected 16 bytes, got %d", len(b))
	}
	copy(a[:], b)
	return a, err
}

func (c *values) Bytes32() ([32]byte, error) {
	var a [32]byte
	b, err := c.Bytes()
	if err == nil && len(b) != len(a) {
		err = fmt.Errorf("sqlgraph: expected 32 bytes, got %d", len(b))
	}
	copy(a[:], b)
	return a, err
}

func (c *values) Bytes() ([]byte, error) {
	switch v := c.Value().(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, c.mismatch("bytes")
}

func (c *values) UUID() (uuid.UUID, error) {
	switch v := c.Value().(type) {
	case [16]byte:
		return uuid.UUID(v), nil
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return uuid.ParseBytes(v)
	case string:
		return uuid.Parse(v)
	}
	return uuid.Nil, c.mismatch("uuid")
}

func (c *values) mismatch(kind string) error {
	return fmt.Errorf("sqlgraph: cannot read %T as %s", c.Value(), kind)
}

func text(v any) string {
	switch v := v.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	}
	return fmt.Sprint(v)
}

// SliceCursor is a Cursor over rows held in memory.
type SliceCursor struct {
	values
	rows [][]any
	next int
}

// NewSliceCursor returns a cursor over the given rows.
func NewSliceCursor(rows [][]any) *SliceCursor {
	return &SliceCursor{rows: rows}
}

// Next moves to the next row.
func (c *SliceCursor) Next() bool {
	if c.next >= len(c.rows) {
		c.row = nil
		return false
	}
	c.row, c.col = c.rows[c.next], 0
	c.next++
	return true
}

// Err always returns nil.
func (*SliceCursor) Err() error { return nil }

// Close always returns nil.
func (*SliceCursor) Close() error { return nil }

// RowsCursor is a Cursor over the rows of a query.
type RowsCursor struct {
	values
	rows sql.ColumnScanner
	dest []any
	err  error
}

// NewRowsCursor returns a cursor reading the given rows. Every row is
// scanned as a whole on Next.
func NewRowsCursor(rows sql.ColumnScanner) (*RowsCursor, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	c := &RowsCursor{rows: rows, dest: make([]any, len(columns))}
	return c, nil
}

// Next scans the next row.
func (c *RowsCursor) Next() bool {
	c.row = nil
	if c.err != nil || !c.rows.Next() {
		return false
	}
	row := make([]any, len(c.dest))
	for i := range row {
		c.dest[i] = &row[i]
	}
	if err := c.rows.Scan(c.dest...); err != nil {
		c.err = err
		return false
	}
	c.row, c.col = row, 0
	return true
}

// Err returns the error of the last Next call or of the underlying rows.
func (c *RowsCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err()
}

// Close closes the underlying rows.
func (c *RowsCursor) Close() error { return c.rows.Close() }

var (
	_ Cursor = (*SliceCursor)(nil)
	_ Cursor = (*RowsCursor)(nil)
)
