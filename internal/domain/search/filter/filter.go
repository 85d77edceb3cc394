package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 32

// Expression is a structured filter with must/should/must_not boolean semantics.
// Conditions in must are ANDed, should is an OR group, must_not excludes.
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

// Satisfiable reports whether some document could match the expression.
// It returns false when a must range has its lower bound above its upper bound,
// or when every should condition is such a range.
func (e Expression) Satisfiable() bool {
	for _, c := range e.must {
		if !c.satisfiable() {
			return false
		}
	}
	if len(e.should) == 0 {
		return true
	}
	for _, c := range e.should {
		if c.satisfiable() {
			return true
		}
	}
	return false
}

// Matches evaluates the expression against a document in memory.
// Range conditions on a missing numeric field do not match.
func (e Expression) Matches(doc Document) bool {
	for _, c := range e.must {
		if !c.matches(doc) {
			return false
		}
	}
	if len(e.should) > 0 {
		matched := false
		for _, c := range e.should {
			if c.matches(doc) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, c := range e.mustNot {
		if c.matches(doc) {
			return false
		}
	}
	return true
}

// String returns a deterministic textual encoding of the expression.
func (e Expression) String() string {
	var b strings.Builder
	writeGroup(&b, "must", e.must)
	writeGroup(&b, "should", e.should)
	writeGroup(&b, "must_not", e.mustNot)
	return b.String()
}

func writeGroup(b *strings.Builder, name string, conds []Condition) {
	b.WriteString(name)
	b.WriteByte('[')
	for i, c := range conds {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(c.String())
	}
	b.WriteByte(']')
}

// Document exposes the metadata needed for in-memory filter evaluation.
type Document interface {
	TagValues(key string) []string
	Number(key string) (float64, bool)
}

// Condition is a single filter clause: a tag match, a tag set membership, or a numeric range.
type Condition struct {
	key       string
	match     string
	anyOf     []string
	rangeExpr *Range
}

// NewMatch creates an exact tag match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// NewAnyOf creates a condition matching documents whose tag equals any of values.
func NewAnyOf(key string, values []string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if len(values) == 0 {
		return Condition{}, fmt.Errorf("at least one value is required for key %q", key)
	}
	for _, v := range values {
		if v == "" {
			return Condition{}, fmt.Errorf("empty value in set for key %q", key)
		}
	}
	cp := make([]string, len(values))
	copy(cp, values)
	return Condition{key: key, anyOf: cp}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, rangeExpr: &r}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// AnyOf returns the accepted tag values of a set condition.
func (c Condition) AnyOf() []string { return c.anyOf }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a match condition.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsAnyOf reports whether this is a tag set condition.
func (c Condition) IsAnyOf() bool { return len(c.anyOf) > 0 }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// String returns a deterministic textual encoding of the condition.
func (c Condition) String() string {
	switch {
	case c.IsMatch():
		return c.key + ":eq=" + c.match
	case c.IsAnyOf():
		return c.key + ":any=" + strings.Join(c.anyOf, "|")
	case c.IsRange():
		return c.key + ":" + c.rangeExpr.String()
	}
	return c.key
}

func (c Condition) satisfiable() bool {
	if c.rangeExpr == nil {
		return true
	}
	return c.rangeExpr.Satisfiable()
}

func (c Condition) matches(doc Document) bool {
	switch {
	case c.IsMatch():
		for _, t := range doc.TagValues(c.key) {
			if t == c.match {
				return true
			}
		}
		return false
	case c.IsAnyOf():
		for _, t := range doc.TagValues(c.key) {
			for _, v := range c.anyOf {
				if t == v {
					return true
				}
			}
		}
		return false
	case c.IsRange():
		v, ok := doc.Number(c.key)
		return ok && c.rangeExpr.Contains(v)
	}
	return false
}

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
// Inverted bounds are accepted; such a range is simply unsatisfiable.
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

// Contains reports whether v lies within the range.
func (r Range) Contains(v float64) bool {
	if r.gt != nil && v <= *r.gt {
		return false
	}
	if r.gte != nil && v < *r.gte {
		return false
	}
	if r.lt != nil && v >= *r.lt {
		return false
	}
	if r.lte != nil && v > *r.lte {
		return false
	}
	return true
}

// Satisfiable reports whether at least one value lies within the range.
func (r Range) Satisfiable() bool {
	lo, loIncl, hasLo := r.lower()
	hi, hiIncl, hasHi := r.upper()
	if !hasLo || !hasHi {
		return true
	}
	if loIncl && hiIncl {
		return lo <= hi
	}
	return lo < hi
}

func (r Range) lower() (float64, bool, bool) {
	switch {
	case r.gte != nil:
		return *r.gte, true, true
	case r.gt != nil:
		return *r.gt, false, true
	}
	return 0, false, false
}

func (r Range) upper() (float64, bool, bool) {
	switch {
	case r.lte != nil:
		return *r.lte, true, true
	case r.lt != nil:
		return *r.lt, false, true
	}
	return 0, false, false
}

// String returns a deterministic encoding such as "gte=4e+06,lte=6e+06".
func (r Range) String() string {
	parts := make([]string, 0, 2)
	if r.gt != nil {
		parts = append(parts, "gt="+formatBound(*r.gt))
	}
	if r.gte != nil {
		parts = append(parts, "gte="+formatBound(*r.gte))
	}
	if r.lt != nil {
		parts = append(parts, "lt="+formatBound(*r.lt))
	}
	if r.lte != nil {
		parts = append(parts, "lte="+formatBound(*r.lte))
	}
	return strings.Join(parts, ",")
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
