package rollup

import (
	"strings"

	"github.com/kailas-cloud/dealscout/internal/domain/candidate"
	"github.com/kailas-cloud/dealscout/internal/domain/search/filter"
	"github.com/kailas-cloud/dealscout/internal/domain/search/query"
)

// Normalize turns criteria into query text plus a metadata predicate.
// It is pure: equal criteria always give queries with identical Canonical encodings.
// Criteria must be validated beforehand.
func Normalize(c candidate.Criteria) query.Query {
	return query.New(queryText(c), predicate(c))
}

func queryText(c candidate.Criteria) string {
	parts := make([]string, 0, 2)
	if v := trimmed(c.Industry); v != "" {
		parts = append(parts, "Industry: "+v)
	}
	if v := trimmed(c.Location); v != "" {
		parts = append(parts, "Location: "+v)
	}
	return strings.Join(parts, "; ")
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func predicate(c candidate.Criteria) filter.Expression {
	must := make([]filter.Condition, 0, 3)

	if cond, ok := boundsCondition(candidate.FieldRevenue, c.RevenueMin, c.RevenueMax); ok {
		must = append(must, cond)
	}
	if cond, ok := boundsCondition(candidate.FieldEBITDAMargin, c.EBITDAMarginMin, c.EBITDAMarginMax); ok {
		must = append(must, cond)
	}
	if values := uniqueStrategies(c.BusinessStrategy); len(values) > 0 {
		if cond, err := filter.NewAnyOf(candidate.FieldBusinessStrategy, values); err == nil {
			must = append(must, cond)
		}
	}

	if len(must) == 0 {
		return filter.Expression{}
	}
	// at most three conditions, well under the group limit
	expr, _ := filter.NewExpression(must, nil, nil)
	return expr
}

// boundsCondition builds one inclusive range so that min > max stays detectable as unsatisfiable.
func boundsCondition(key string, lower, upper *float64) (filter.Condition, bool) {
	if lower == nil && upper == nil {
		return filter.Condition{}, false
	}
	r, err := filter.NewRangeFilter(nil, copyFloat(lower), nil, copyFloat(upper))
	if err != nil {
		return filter.Condition{}, false
	}
	cond, err := filter.NewRange(key, r)
	if err != nil {
		return filter.Condition{}, false
	}
	return cond, true
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func uniqueStrategies(in []candidate.Strategy) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[candidate.Strategy]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, string(s))
	}
	return out
}
