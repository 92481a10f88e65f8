package field

import (
	"strconv"
	"strings"
)

// Checks holds the boolean constraints attached to a numeric or raw column.
type Checks struct {
	Positive    bool
	Negative    bool
	NonNegative bool
	Min         *float64
	Max         *float64
	MultipleOf  int64
	Exprs       []string
}

// Empty reports if no check is set.
func (c Checks) Empty() bool {
	return !c.Positive && !c.Negative && !c.NonNegative &&
		c.Min == nil && c.Max == nil && c.MultipleOf == 0 && len(c.Exprs) == 0
}

// Expr folds every present check on the given column into one expression
// joined with AND. It returns an empty string if no check is set.
func (c Checks) Expr(column string) string {
	var parts []string
	if c.Positive {
		parts = append(parts, column+" > 0")
	}
	if c.Negative {
		parts = append(parts, column+" < 0")
	}
	if c.NonNegative {
		parts = append(parts, column+" >= 0")
	}
	if c.Min != nil {
		parts = append(parts, column+" >= "+formatFloat(*c.Min))
	}
	if c.Max != nil {
		parts = append(parts, column+" <= "+formatFloat(*c.Max))
	}
	if c.MultipleOf > 0 {
		parts = append(parts, column+" % "+strconv.FormatInt(c.MultipleOf, 10)+" = 0")
	}
	for _, e := range c.Exprs {
		parts = append(parts, strings.TrimSpace(e))
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	for i := range parts {
		parts[i] = "(" + parts[i] + ")"
	}
	return strings.Join(parts, " AND ")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
