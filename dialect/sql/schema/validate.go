package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/relplan"
)

// ValidationError is one finding of a validation.
type ValidationError struct {
	Table   string
	Column  string
	Message string
	// Breaking marks changes that lose data or reject existing rows.
	Breaking bool
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the findings of a validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors reports whether the validation failed.
func (r *ValidationResult) HasErrors() bool { return len(r.Errors) > 0 }

// HasWarnings reports whether the validation produced warnings.
func (r *ValidationResult) HasWarnings() bool { return len(r.Warnings) > 0 }

// HasBreakingChanges reports whether any finding is breaking, including
// the ones that were allowed.
func (r *ValidationResult) HasBreakingChanges() bool {
	breaking := func(e *ValidationError) bool { return e.Breaking }
	return slices.ContainsFunc(r.Errors, breaking) || slices.ContainsFunc(r.Warnings, breaking)
}

// Err returns the errors of the result as one error, or nil.
func (r *ValidationResult) Err() error {
	if !r.HasErrors() {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return relplan.NewAggregateError(errs...)
}

// String returns the findings, one per line.
func (r *ValidationResult) String() string {
	if !r.HasErrors() && !r.HasWarnings() {
		return "No issues found"
	}
	var sb strings.Builder
	for _, section := range []struct {
		title string
		list  []*ValidationError
	}{
		{"Errors", r.Errors},
		{"Warnings", r.Warnings},
	} {
		if len(section.list) == 0 {
			continue
		}
		sb.WriteString(section.title + ":\n")
		for _, e := range section.list {
			sb.WriteString("  - " + e.Error())
			if e.Breaking {
				sb.WriteString(" [BREAKING]")
			}
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func (r *ValidationResult) warn(table, column, format string, args ...any) {
	r.Warnings = append(r.Warnings, &ValidationError{Table: table, Column: column, Message: fmt.Sprintf(format, args...)})
}

// breaking records a breaking change as an error, or as a warning if the
// change was allowed.
func (r *ValidationResult) breaking(allowed bool, table, column, format string, args ...any) {
	e := &ValidationError{Table: table, Column: column, Message: fmt.Sprintf(format, args...), Breaking: true}
	if allowed {
		r.Warnings = append(r.Warnings, e)
	} else {
		r.Errors = append(r.Errors, e)
	}
}

// ValidateOption configures ValidateDiff.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	dropColumn    bool
	dropTable     bool
	nullToNotNull bool
}

// AllowDropColumn reports dropped columns as warnings.
func AllowDropColumn() ValidateOption {
	return func(c *validateConfig) { c.dropColumn = true }
}

// AllowDropTable reports dropped tables as warnings.
func AllowDropTable() ValidateOption {
	return func(c *validateConfig) { c.dropTable = true }
}

// AllowNullToNotNull reports nullable columns becoming NOT NULL as warnings.
func AllowNullToNotNull() ValidateOption {
	return func(c *validateConfig) { c.nullToNotNull = true }
}

// ValidateDiff checks the change from the planned tables of one version of
// a type to the tables of the next one:
//
//	before, _ := sqlgraph.NewPlan(sql.OpCreate, v1.Fields, "books", dialect.SQLite)
//	after, _ := sqlgraph.NewPlan(sql.OpCreate, v2.Fields, "books", dialect.SQLite)
//	if r := schema.ValidateDiff(before.Tables, after.Tables); r.HasErrors() {
//		return r.Err()
//	}
//
// New tables and new nullable columns are accepted silently.
func ValidateDiff(current, desired []*Table, opts ...ValidateOption) *ValidationResult {
	cfg := &validateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	r := &ValidationResult{}
	for _, ct := range current {
		dt, ok := lookup(desired, ct.Name)
		if !ok {
			r.breaking(cfg.dropTable, ct.Name, "", "table will be dropped")
			continue
		}
		diffTable(r, cfg, ct, dt)
	}
	return r
}

func diffTable(r *ValidationResult, cfg *validateConfig, current, desired *Table) {
	for _, cd := range current.Columns {
		if !desired.HasColumn(cd.Name) {
			r.breaking(cfg.dropColumn, current.Name, cd.Name, "column will be dropped")
		}
	}
	for _, dd := range desired.Columns {
		cd, ok := current.Column(dd.Name)
		if !ok {
			if dd.NotNull && dd.Default == nil {
				r.warn(current.Name, dd.Name, "new NOT NULL column without default value may fail if table has data")
			}
			continue
		}
		diffColumn(r, cfg, current.Name, cd.Column, dd.Column)
	}
	// Fallback keys follow the columns and are not compared.
	before, declared := current.PrimaryKey()
	after, declared2 := desired.PrimaryKey()
	if (declared || declared2) && !slices.Equal(names(before), names(after)) {
		r.breaking(false, current.Name, "", "primary key changing from (%s) to (%s)",
			strings.Join(names(before), ", "), strings.Join(names(after), ", "))
	}
}

func diffColumn(r *ValidationResult, cfg *validateConfig, table string, current, desired *Column) {
	name := desired.Name
	switch {
	case current.Type != desired.Type, current.Size != desired.Size && (current.Size == 0 || desired.Size == 0):
		r.warn(table, name, "column type changing from %s to %s", columnType(current), columnType(desired))
	case desired.Size > 0 && desired.Size < current.Size:
		r.warn(table, name, "column size reducing from %d to %d may truncate data", current.Size, desired.Size)
	}
	if !current.NotNull && desired.NotNull {
		r.breaking(cfg.nullToNotNull, table, name, "column changing from NULL to NOT NULL may fail if column has NULL values")
	}
	if !current.Unique && desired.Unique {
		r.warn(table, name, "adding UNIQUE constraint may fail if duplicate values exist")
	}
	if desired.Check != "" && desired.Check != current.Check {
		r.warn(table, name, "CHECK constraint changing to %s may fail for existing rows", desired.Check)
	}
	if before, after := refString(current.References), refString(desired.References); before != after {
		r.breaking(false, table, name, "reference changing from %s to %s", before, after)
	}
}

func names(ds []Declaration) []string {
	s := make([]string, len(ds))
	for i, d := range ds {
		s[i] = d.Name
	}
	return s
}

func refString(ref *Reference) string {
	if ref == nil {
		return "none"
	}
	return fmt.Sprintf("%q.%q", ref.Table, ref.Column)
}

// ValidateTable checks a single table declaration.
func ValidateTable(t *Table) *ValidationResult {
	r := &ValidationResult{}
	if len(t.Columns) == 0 {
		r.Errors = append(r.Errors, &ValidationError{Table: t.Name, Message: "table has no columns"})
	}
	if _, declared := t.PrimaryKey(); !declared && t.kind != kindDependent {
		r.warn(t.Name, "", "table has no primary key")
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if seen[c.Name] {
			r.Errors = append(r.Errors, &ValidationError{Table: t.Name, Column: c.Name, Message: "duplicate column name"})
		}
		seen[c.Name] = true
	}
	return r
}

// ValidateTree checks every table reachable from root and the foreign-key
// columns between them.
func ValidateTree(root *Table) *ValidationResult {
	r := &ValidationResult{}
	tables := root.Tables()
	for _, t := range tables {
		tr := ValidateTable(t)
		r.Errors = append(r.Errors, tr.Errors...)
		r.Warnings = append(r.Warnings, tr.Warnings...)
	}
	for _, t := range tables {
		for _, c := range t.Columns {
			ref := c.References
			if ref == nil {
				continue
			}
			rt, ok := lookup(tables, ref.Table)
			switch {
			case !ok:
				r.Errors = append(r.Errors, &ValidationError{Table: t.Name, Column: c.Name,
					Message: fmt.Sprintf("foreign key references non-existent table %q", ref.Table)})
			case !rt.HasColumn(ref.Column):
				r.Errors = append(r.Errors, &ValidationError{Table: t.Name, Column: c.Name,
					Message: fmt.Sprintf("foreign key references non-existent column %q.%q", ref.Table, ref.Column)})
			case !ref.Enforced:
				r.warn(t.Name, c.Name, "reference to %q.%q is not enforced", ref.Table, ref.Column)
			}
		}
	}
	return r
}

func columnType(c *Column) string {
	if c.Size > 0 {
		return fmt.Sprintf("%s(%d)", c.Type, c.Size)
	}
	return c.Type.String()
}
