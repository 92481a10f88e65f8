package sqlgraph

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/syssam/relplan"
)

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	return relplan.IsConstraintError(err) ||
		IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err) ||
		IsNotNullConstraintError(err)
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgNotNullViolation    = "23502"
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlBadNull                = 1048
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// violation is a driver independent view of a constraint error.
type violation struct {
	pg     string
	mysql  []uint16
	sqlite []int
	text   []string
}

var (
	uniqueViolation = violation{
		pg:     pgUniqueViolation,
		mysql:  []uint16{mysqlDuplicateEntry},
		sqlite: []int{sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY},
		text: []string{
			"Error 1062",                 // MySQL (string fallback)
			"violates unique constraint", // Postgres (string fallback)
			"UNIQUE constraint failed",   // SQLite
		},
	}
	foreignKeyViolation = violation{
		pg:     pgForeignKeyViolation,
		mysql:  []uint16{mysqlForeignKeyParent, mysqlForeignKeyChild},
		sqlite: []int{sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY},
		text: []string{
			"Error 1451",                      // MySQL (Cannot delete or update a parent row)
			"Error 1452",                      // MySQL (Cannot add or update a child row)
			"violates foreign key constraint", // Postgres
			"FOREIGN KEY constraint failed",   // SQLite
		},
	}
	checkViolation = violation{
		pg:     pgCheckViolation,
		mysql:  []uint16{mysqlCheckConstraintViolate},
		sqlite: []int{sqlite3.SQLITE_CONSTRAINT_CHECK},
		text: []string{
			"Error 3819",                // MySQL
			"violates check constraint", // Postgres
			"CHECK constraint failed",   // SQLite
		},
	}
	notNullViolation = violation{
		pg:     pgNotNullViolation,
		mysql:  []uint16{mysqlBadNull},
		sqlite: []int{sqlite3.SQLITE_CONSTRAINT_NOTNULL},
		text: []string{
			"Error 1048",                   // MySQL
			"violates not-null constraint", // Postgres
			"NOT NULL constraint failed",   // SQLite
		},
	}
)

func (v violation) match(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := asError[*pq.Error](err); ok {
		return string(e.Code) == v.pg
	}
	if e, ok := asError[*mysql.MySQLError](err); ok {
		for _, n := range v.mysql {
			if e.Number == n {
				return true
			}
		}
		return false
	}
	if e, ok := asError[*sqlite.Error](err); ok {
		for _, c := range v.sqlite {
			if e.Code() == c {
				return true
			}
		}
	}
	// Fallback to string matching for drivers without a known error type.
	return containsAny(err.Error(), v.text...)
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
// e.g. duplicate value in unique index.
func IsUniqueConstraintError(err error) bool {
	return uniqueViolation.match(err)
}

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
// e.g. parent row does not exist.
func IsForeignKeyConstraintError(err error) bool {
	return foreignKeyViolation.match(err)
}

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
// e.g. a value does not satisfy a check condition.
func IsCheckConstraintError(err error) bool {
	return checkViolation.match(err)
}

// IsNotNullConstraintError reports if the error resulted from writing NULL
// into a non-nullable column.
func IsNotNullConstraintError(err error) bool {
	return notNullViolation.match(err)
}

// execError wraps an error returned by the driver for the given statement.
// Constraint violations are also marked with relplan.ConstraintError.
func execError(op, table string, err error) error {
	if err == nil {
		return nil
	}
	if relplan.IsExecError(err) {
		return err
	}
	if !relplan.IsConstraintError(err) && IsConstraintError(err) {
		err = relplan.NewConstraintError(err.Error(), err)
	}
	return relplan.NewExecError(op, table, err)
}

// asError attempts to extract an error of type T from the error chain.
func asError[T error](err error) (T, bool) {
	var target T
	if errors.As(err, &target) {
		return target, true
	}
	return target, false
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
