// Package filter builds OData $filter expressions from structured conditions,
// so that literal values never need hand quoting.
package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 32

// Expression is a structured filter with must/should/must_not boolean semantics.
// Groups are combined with "and"; should conditions are or'ed among themselves.
type Expression struct {
	must    []Condition
	should  []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, should, mustNot []Condition) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(should) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many should conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(mustNot) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must_not conditions (max %d)", MaxConditionsPerGroup)
	}
	return Expression{must: must, should: should, mustNot: mustNot}, nil
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// Should returns the should conditions.
func (e Expression) Should() []Condition { return e.should }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.should) == 0 && len(e.mustNot) == 0
}

// String renders the OData expression. An empty expression renders as "".
func (e Expression) String() string {
	parts := make([]string, 0, len(e.must)+len(e.mustNot)+1)
	for _, c := range e.must {
		parts = append(parts, c.render(len(e.must) > 1 || len(e.should) > 0 || len(e.mustNot) > 0))
	}
	switch len(e.should) {
	case 0:
	case 1:
		parts = append(parts, e.should[0].render(len(parts) > 0 || len(e.mustNot) > 0))
	default:
		alts := make([]string, len(e.should))
		for i, c := range e.should {
			alts[i] = c.render(true)
		}
		or := strings.Join(alts, " or ")
		if len(parts) > 0 || len(e.mustNot) > 0 {
			or = "(" + or + ")"
		}
		parts = append(parts, or)
	}
	for _, c := range e.mustNot {
		parts = append(parts, "not ("+c.render(false)+")")
	}
	return strings.Join(parts, " and ")
}

// Condition is a single filter clause: either an equality match or a range.
type Condition struct {
	key       string
	match     any
	rangeExpr *Range
}

// NewMatch creates an equality condition. value may be a string, bool,
// integer, float or time.Time.
func NewMatch(key string, value any) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if value == nil {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	if _, err := literal(value); err != nil {
		return Condition{}, fmt.Errorf("key %q: %w", key, err)
	}
	return Condition{key: key, match: value}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, rangeExpr: &r}, nil
}

// Key returns the field path.
func (c Condition) Key() string { return c.key }

// Match returns the equality value.
func (c Condition) Match() any { return c.match }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a match condition.
func (c Condition) IsMatch() bool { return c.match != nil }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// String renders the condition on its own.
func (c Condition) String() string { return c.render(false) }

// render emits the clause; grouped wraps multi-term clauses in parentheses.
func (c Condition) render(grouped bool) string {
	if c.rangeExpr == nil {
		lit, _ := literal(c.match)
		return c.key + " eq " + lit
	}
	r := c.rangeExpr
	var terms []string
	add := func(op string, v *float64) {
		if v != nil {
			terms = append(terms, c.key+" "+op+" "+formatFloat(*v))
		}
	}
	add("gt", r.gt)
	add("ge", r.gte)
	add("lt", r.lt)
	add("le", r.lte)
	out := strings.Join(terms, " and ")
	if grouped && len(terms) > 1 {
		out = "(" + out + ")"
	}
	return out
}

// literal renders an OData literal. Strings are single-quoted with quotes doubled.
func literal(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'", nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float32:
		return formatFloat(float64(x)), nil
	case float64:
		return formatFloat(x), nil
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), nil
	default:
		return "", fmt.Errorf("unsupported match value type %T", v)
	}
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gt != nil && gte != nil {
		return Range{}, fmt.Errorf("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, fmt.Errorf("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }
