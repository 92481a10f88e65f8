package sqlgraph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relplan"
	"github.com/syssam/relplan/dialect/sql"
	"github.com/syssam/relplan/dialect/sql/schema"
)

func TestBatch_Queue(t *testing.T) {
	p := plan(t, sql.OpInsert, "scores", listFields()...)
	b := NewBatch(p)
	assert.Equal(t, p, b.Plan())
	assert.True(t, b.Pending())
	assert.Equal(t, 1, b.Rows(0))
	assert.Equal(t, 0, b.Rows(1))

	g, ok := b.Current()
	require.True(t, ok)
	assert.Equal(t, schema.GroupCollection, g.Kind)
	b.Advance()
	g, ok = b.Current()
	require.True(t, ok)
	assert.Equal(t, schema.GroupColumn, g.Kind)

	b.Mark()
	b.PopGroup()
	_, ok = b.Current()
	assert.False(t, ok)
	assert.True(t, b.Pending(), "open marks keep the batch pending")
	require.NoError(t, b.Reset())
	_, ok = b.Current()
	assert.True(t, ok)
	b.PopGroup()
	assert.False(t, b.Pending())

	err := b.Reset()
	require.Error(t, err)
	assert.True(t, relplan.IsBindingError(err))
}

func TestBatch_MultiplyRows(t *testing.T) {
	p := plan(t, sql.OpInsert, "scores", listFields()...)
	b := NewBatch(p)
	err := b.MultiplyRows(0)
	require.Error(t, err)
	assert.True(t, relplan.IsBindingError(err))

	require.NoError(t, b.MultiplyRows(3))
	assert.Equal(t, 3, b.Rows(0))
	b.Advance()
	for e := range 3 {
		require.NoError(t, b.SelectRow(e))
		require.NoError(t, b.SetColumn(0, int64(e)))
		require.NoError(t, b.SetColumn(1, int64(10*e)))
	}
	require.NoError(t, b.EndMultiply())
	b.PopGroup()

	bound, err := b.Materialize()
	require.NoError(t, err)
	require.Len(t, bound, 1)
	assert.Equal(t, "scores", bound[0].Table)
	assert.Equal(t, [][]any{{int64(0), int64(0)}, {int64(1), int64(10)}, {int64(2), int64(20)}}, bound[0].Rows)
}

func TestBatch_SelectAll(t *testing.T) {
	p := plan(t, sql.OpInsert, "scores", listFields()...)
	b := NewBatch(p)
	require.NoError(t, b.MultiplyRows(2))
	require.NoError(t, b.SelectRow(-1))
	require.NoError(t, b.SetColumn(1, int64(7)))
	require.NoError(t, b.SelectRow(1))
	require.NoError(t, b.SetColumn(0, int64(1)))
	require.NoError(t, b.SelectRow(0))
	require.NoError(t, b.SetColumn(0, int64(0)))
	require.NoError(t, b.EndMultiply())
	b.PopGroup()
	bound, err := b.Materialize()
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(0), int64(7)}, {int64(1), int64(7)}}, bound[0].Rows)
}

func TestBatch_Nested(t *testing.T) {
	p := plan(t, sql.OpInsert, "grids", gridFields()...)
	b := NewBatch(p)
	require.NoError(t, b.MultiplyRows(2))
	b.Advance()
	require.NoError(t, b.SelectRow(1))
	require.NoError(t, b.SetColumn(0, int64(1)))
	require.NoError(t, b.MultiplyRows(3))
	assert.Equal(t, 4, b.Rows(0), "only the rows of the selected element are multiplied")
	require.NoError(t, b.EndMultiply())
	// Writes apply to every row of the selected outer element.
	require.NoError(t, b.SetColumn(2, int64(5)))
	require.NoError(t, b.SelectRow(0))
	require.NoError(t, b.SetColumn(0, int64(0)))
	require.NoError(t, b.EndMultiply())
	assert.Error(t, b.EndMultiply())
	assert.Error(t, b.SelectRow(0))
}

func TestBatch_Null(t *testing.T) {
	t.Run("same_table", func(t *testing.T) {
		p := plan(t, sql.OpInsert, "scores", listFields()...)
		b := NewBatch(p)
		require.NoError(t, b.Null())
		b.PopGroup()
		bound, err := b.Materialize()
		require.NoError(t, err)
		assert.Equal(t, [][]any{{nil, nil}}, bound[0].Rows)
	})
	t.Run("dependent_table", func(t *testing.T) {
		p := plan(t, sql.OpInsert, "docs", docFields()...)
		b := NewBatch(p)
		c := NewCollector(b)
		_, err := c.Set(0, nil)
		require.NoError(t, err)
		b.PopGroup()
		require.NoError(t, c.SetString(1, "a"))
		b.PopGroup()
		require.NoError(t, b.Null())
		b.PopGroup()
		bound, err := b.Materialize()
		require.NoError(t, err)
		require.Len(t, bound, 2)
		assert.Len(t, bound[0].Rows, 1)
		assert.Empty(t, bound[1].Rows)
	})
}

func TestBatch_Materialize(t *testing.T) {
	p := plan(t, sql.OpInsert, "flags", flagFields()...)
	b := NewBatch(p)
	_, err := b.Materialize()
	require.Error(t, err)
	assert.True(t, errors.Is(err, relplan.ErrPendingColumns))
	assert.True(t, relplan.IsBindingError(err))

	// The queue is drained but the column was never written.
	b.PopGroup()
	_, err = b.Materialize()
	require.Error(t, err)
	assert.True(t, errors.Is(err, relplan.ErrPendingColumns))

	err = b.SetColumn(5, true)
	require.Error(t, err)
	assert.True(t, relplan.IsBindingError(err))
}
