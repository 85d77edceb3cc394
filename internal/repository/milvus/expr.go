package milvus

import (
	"strconv"
	"strings"

	"github.com/kailas-cloud/dealscout/internal/domain/candidate"
	"github.com/kailas-cloud/dealscout/internal/domain/search/filter"
)

// compileExpr renders a filter expression as a Milvus boolean expression over metadata keys.
// An empty expression compiles to "".
func compileExpr(e filter.Expression) string {
	parts := make([]string, 0, len(e.Must())+2)
	for _, c := range e.Must() {
		parts = append(parts, compileCondition(c))
	}
	if should := e.Should(); len(should) > 0 {
		ors := make([]string, 0, len(should))
		for _, c := range should {
			ors = append(ors, compileCondition(c))
		}
		parts = append(parts, "("+strings.Join(ors, " || ")+")")
	}
	for _, c := range e.MustNot() {
		parts = append(parts, "not ("+compileCondition(c)+")")
	}
	return strings.Join(parts, " && ")
}

func compileCondition(c filter.Condition) string {
	field := jsonPath(c.Key())
	switch {
	case c.IsMatch():
		if c.Key() == candidate.FieldTags {
			return "json_contains(" + field + ", " + quote(c.Match()) + ")"
		}
		return field + " == " + quote(c.Match())
	case c.IsAnyOf():
		values := make([]string, len(c.AnyOf()))
		for i, v := range c.AnyOf() {
			values[i] = quote(v)
		}
		list := "[" + strings.Join(values, ", ") + "]"
		if c.Key() == candidate.FieldTags {
			return "json_contains_any(" + field + ", " + list + ")"
		}
		return field + " in " + list
	case c.IsRange():
		return compileRange(field, c.Range())
	}
	return "true"
}

func compileRange(field string, r *filter.Range) string {
	bounds := make([]string, 0, 2)
	if v := r.GT(); v != nil {
		bounds = append(bounds, field+" > "+formatNumber(*v))
	}
	if v := r.GTE(); v != nil {
		bounds = append(bounds, field+" >= "+formatNumber(*v))
	}
	if v := r.LT(); v != nil {
		bounds = append(bounds, field+" < "+formatNumber(*v))
	}
	if v := r.LTE(); v != nil {
		bounds = append(bounds, field+" <= "+formatNumber(*v))
	}
	if len(bounds) == 1 {
		return bounds[0]
	}
	return "(" + strings.Join(bounds, " && ") + ")"
}

func jsonPath(key string) string {
	return fieldMetadata + "[" + quote(key) + "]"
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func quote(s string) string {
	return `"` + quoteEscaper.Replace(s) + `"`
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
