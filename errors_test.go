package relplan_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relplan"
)

func TestAssemblyError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := relplan.NewAssemblyError("users", "tags", errors.New("unsupported shape"))
		assert.Equal(t, `relplan: assembly: table "users" field "tags": unsupported shape`, err.Error())
		err = relplan.NewAssemblyError("users", "", errors.New("no key"))
		assert.Equal(t, `relplan: assembly: table "users": no key`, err.Error())
		err = relplan.NewAssemblyError("", "", errors.New("unaccounted column 3"))
		assert.Equal(t, `relplan: assembly: unaccounted column 3`, err.Error())
	})

	t.Run("Is", func(t *testing.T) {
		err := relplan.NewAssemblyError("users", "", errors.New("x"))
		assert.True(t, errors.Is(err, relplan.ErrAssembly))
		assert.False(t, errors.Is(err, relplan.ErrBinding))
	})

	t.Run("IsAssemblyError", func(t *testing.T) {
		err := relplan.NewAssemblyError("users", "", errors.New("x"))
		assert.True(t, relplan.IsAssemblyError(fmt.Errorf("wrapper: %w", err)))
		assert.False(t, relplan.IsAssemblyError(errors.New("other error")))
		assert.False(t, relplan.IsAssemblyError(nil))
	})
}

func TestBindingError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := relplan.NewBindingError("owner.name", errors.New("expected string, got int"))
		assert.Equal(t, `relplan: binding field "owner.name": expected string, got int`, err.Error())
		err = relplan.NewBindingError("", relplan.ErrPendingColumns)
		assert.Equal(t, `relplan: binding: pending column groups`, err.Error())
	})

	t.Run("Is", func(t *testing.T) {
		err := relplan.NewBindingError("", relplan.ErrPendingColumns)
		assert.True(t, errors.Is(err, relplan.ErrBinding))
		assert.True(t, errors.Is(err, relplan.ErrPendingColumns))
		assert.True(t, relplan.IsBindingError(err))
		assert.False(t, relplan.IsBindingError(nil))
	})
}

func TestConversionError(t *testing.T) {
	underlying := errors.New("value out of range")
	err := relplan.NewConversionError("age", int64(300), underlying)
	assert.Equal(t, `relplan: converting int64 for column "age": value out of range`, err.Error())
	assert.True(t, errors.Is(err, relplan.ErrConversion))
	assert.True(t, errors.Is(err, underlying))
	assert.True(t, relplan.IsConversionError(fmt.Errorf("wrapper: %w", err)))
	assert.False(t, relplan.IsConversionError(errors.New("other error")))
}

func TestExecError(t *testing.T) {
	underlying := errors.New("connection reset")
	err := relplan.NewExecError("insert", "users", underlying)
	assert.Equal(t, "relplan: insert users: connection reset", err.Error())
	assert.True(t, errors.Is(err, relplan.ErrDriver))
	assert.True(t, errors.Is(err, underlying))
	assert.True(t, relplan.IsExecError(err))
	assert.False(t, relplan.IsAssemblyError(err))
}

func TestConstraintError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := relplan.NewConstraintError("UNIQUE constraint failed", nil)
		assert.Equal(t, "relplan: constraint failed: UNIQUE constraint failed", err.Error())
	})

	t.Run("Unwrap", func(t *testing.T) {
		underlying := errors.New("db error")
		err := relplan.NewConstraintError("constraint violated", underlying)
		assert.True(t, errors.Is(err, underlying))
	})

	t.Run("IsConstraintError", func(t *testing.T) {
		err := relplan.NewConstraintError("check failed", nil)
		assert.True(t, relplan.IsConstraintError(err))

		// Wrapped inside a driver failure.
		wrapped := relplan.NewExecError("insert", "users", err)
		assert.True(t, relplan.IsConstraintError(wrapped))

		assert.False(t, relplan.IsConstraintError(errors.New("other error")))
		assert.False(t, relplan.IsConstraintError(nil))
	})
}

func TestRollbackError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := &relplan.RollbackError{Err: errors.New("connection lost")}
		assert.Equal(t, "relplan: rollback failed: connection lost", err.Error())
	})

	t.Run("Unwrap", func(t *testing.T) {
		underlying := errors.New("timeout")
		err := &relplan.RollbackError{Err: underlying}
		assert.True(t, errors.Is(err, underlying))
	})
}

func TestAggregateError(t *testing.T) {
	t.Run("NoErrors", func(t *testing.T) {
		assert.Nil(t, relplan.NewAggregateError())
		assert.Nil(t, relplan.NewAggregateError(nil, nil, nil))
	})

	t.Run("SingleError", func(t *testing.T) {
		single := errors.New("single error")
		assert.Equal(t, single, relplan.NewAggregateError(nil, single, nil))
	})

	t.Run("MultipleErrors", func(t *testing.T) {
		err1 := relplan.NewAssemblyError("a", "", errors.New("error 1"))
		err2 := errors.New("error 2")
		err := relplan.NewAggregateError(err1, err2)

		require.NotNil(t, err)
		assert.Contains(t, err.Error(), "multiple errors")
		assert.Contains(t, err.Error(), "error 1")
		assert.Contains(t, err.Error(), "error 2")
		assert.True(t, errors.Is(err, relplan.ErrAssembly))
		assert.True(t, errors.Is(err, err2))
	})
}

func BenchmarkErrors(b *testing.B) {
	b.Run("NewAssemblyError", func(b *testing.B) {
		underlying := errors.New("invalid")
		for i := 0; i < b.N; i++ {
			_ = relplan.NewAssemblyError("t", "f", underlying)
		}
	})

	b.Run("IsAssemblyError", func(b *testing.B) {
		err := fmt.Errorf("wrap: %w", relplan.NewAssemblyError("t", "f", nil))
		for i := 0; i < b.N; i++ {
			_ = relplan.IsAssemblyError(err)
		}
	})

	b.Run("NewAggregateError_multiple", func(b *testing.B) {
		err1 := errors.New("err1")
		err2 := errors.New("err2")
		err3 := errors.New("err3")
		for i := 0; i < b.N; i++ {
			_ = relplan.NewAggregateError(err1, err2, err3)
		}
	})
}
