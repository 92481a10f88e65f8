package relplan

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for the failure kinds of the engine.
var (
	// ErrAssembly is matched by every AssemblyError. It marks a malformed
	// type description detected while decomposing or planning.
	ErrAssembly = errors.New("relplan: assembly defect")

	// ErrBinding is matched by every BindingError. It marks a caller error
	// detected while binding values into an execution batch.
	ErrBinding = errors.New("relplan: binding defect")

	// ErrConversion is matched by every ConversionError.
	ErrConversion = errors.New("relplan: value conversion failed")

	// ErrDriver is matched by every ExecError, meaning the database (or the
	// driver in front of it) rejected an operation the engine constructed.
	ErrDriver = errors.New("relplan: database rejected the operation")

	// ErrPendingColumns is wrapped by the BindingError returned when a batch
	// is materialized before every column group was bound.
	ErrPendingColumns = errors.New("pending column groups")
)

// AssemblyError is returned when a field description cannot be decomposed
// into tables or when a plan fails its post-condition checks.
type AssemblyError struct {
	Table string // Table being built, if known.
	Field string // Field being processed, if known.
	Err   error  // Underlying error.
}

// Error returns the error string.
func (e *AssemblyError) Error() string {
	switch {
	case e.Table != "" && e.Field != "":
		return fmt.Sprintf("relplan: assembly: table %q field %q: %v", e.Table, e.Field, e.Err)
	case e.Table != "":
		return fmt.Sprintf("relplan: assembly: table %q: %v", e.Table, e.Err)
	default:
		return fmt.Sprintf("relplan: assembly: %v", e.Err)
	}
}

// Unwrap returns the underlying error.
func (e *AssemblyError) Unwrap() error { return e.Err }

// Is reports whether the target error matches ErrAssembly.
func (e *AssemblyError) Is(err error) bool { return err == ErrAssembly }

// NewAssemblyError returns a new AssemblyError.
func NewAssemblyError(table, field string, err error) *AssemblyError {
	return &AssemblyError{Table: table, Field: field, Err: err}
}

// IsAssemblyError returns true if the error is an AssemblyError.
func IsAssemblyError(err error) bool {
	if err == nil {
		return false
	}
	var e *AssemblyError
	return errors.As(err, &e)
}

// BindingError is returned when a value does not match the plan it is bound
// to, or when a batch is used against its contract.
type BindingError struct {
	Field string // Dotted field path, if known.
	Err   error  // Underlying error.
}

// Error returns the error string.
func (e *BindingError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("relplan: binding field %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("relplan: binding: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *BindingError) Unwrap() error { return e.Err }

// Is reports whether the target error matches ErrBinding.
func (e *BindingError) Is(err error) bool { return err == ErrBinding }

// NewBindingError returns a new BindingError.
func NewBindingError(field string, err error) *BindingError {
	return &BindingError{Field: field, Err: err}
}

// IsBindingError returns true if the error is a BindingError.
func IsBindingError(err error) bool {
	if err == nil {
		return false
	}
	var e *BindingError
	return errors.As(err, &e)
}

// ConversionError reports a single value that could not be converted to or
// from its SQL representation.
type ConversionError struct {
	Column string // Column name.
	Value  any    // Offending value.
	Err    error  // Underlying error.
}

// Error returns the error string.
func (e *ConversionError) Error() string {
	return fmt.Sprintf("relplan: converting %T for column %q: %v", e.Value, e.Column, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConversionError) Unwrap() error { return e.Err }

// Is reports whether the target error matches ErrConversion.
func (e *ConversionError) Is(err error) bool { return err == ErrConversion }

// NewConversionError returns a new ConversionError.
func NewConversionError(column string, value any, err error) *ConversionError {
	return &ConversionError{Column: column, Value: value, Err: err}
}

// IsConversionError returns true if the error is a ConversionError.
func IsConversionError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConversionError
	return errors.As(err, &e)
}

// ExecError wraps an error reported by the driver boundary. The engine does
// not interpret it beyond classifying constraint violations.
type ExecError struct {
	Op    string // Statement kind, e.g. "insert".
	Table string // Target table.
	Err   error  // Underlying driver error.
}

// Error returns the error string.
func (e *ExecError) Error() string {
	return fmt.Sprintf("relplan: %s %s: %v", e.Op, e.Table, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecError) Unwrap() error { return e.Err }

// Is reports whether the target error matches ErrDriver.
func (e *ExecError) Is(err error) bool { return err == ErrDriver }

// NewExecError returns a new ExecError.
func NewExecError(op, table string, err error) *ExecError {
	return &ExecError{Op: op, Table: table, Err: err}
}

// IsExecError returns true if the error is an ExecError.
func IsExecError(err error) bool {
	if err == nil {
		return false
	}
	var e *ExecError
	return errors.As(err, &e)
}

// ConstraintError represents a database constraint violation error.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("relplan: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("relplan: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "relplan: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("relplan: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors, so errors.Is and errors.As look
// through every one of them.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
