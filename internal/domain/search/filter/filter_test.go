package filter

import (
	"strings"
	"testing"
)

func floatPtr(f float64) *float64 { return &f }

type testDoc struct {
	tags    map[string][]string
	numbers map[string]float64
}

func (d testDoc) TagValues(key string) []string { return d.tags[key] }

func (d testDoc) Number(key string) (float64, bool) {
	v, ok := d.numbers[key]
	return v, ok
}

func mustRange(t *testing.T, key string, gt, gte, lt, lte *float64) Condition {
	t.Helper()
	r, err := NewRangeFilter(gt, gte, lt, lte)
	if err != nil {
		t.Fatalf("NewRangeFilter: %v", err)
	}
	c, err := NewRange(key, r)
	if err != nil {
		t.Fatalf("NewRange: %v", err)
	}
	return c
}

// --- Range ---

func TestNewRangeFilter_Errors(t *testing.T) {
	tests := []struct {
		name             string
		gt, gte, lt, lte *float64
		want             string
	}{
		{"no boundary", nil, nil, nil, nil, "at least one"},
		{"gt and gte", floatPtr(1), floatPtr(1), nil, nil, "gt and gte"},
		{"lt and lte", nil, nil, floatPtr(1), floatPtr(1), "lt and lte"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRangeFilter(tt.gt, tt.gte, tt.lt, tt.lte)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestNewRangeFilter_InvertedBoundsAccepted(t *testing.T) {
	r, err := NewRangeFilter(nil, floatPtr(10), nil, floatPtr(1))
	if err != nil {
		t.Fatalf("inverted bounds must not be rejected: %v", err)
	}
	if r.Satisfiable() {
		t.Error("gte=10,lte=1 should be unsatisfiable")
	}
}

func TestRange_Satisfiable(t *testing.T) {
	tests := []struct {
		name             string
		gt, gte, lt, lte *float64
		want             bool
	}{
		{"lower only", nil, floatPtr(5), nil, nil, true},
		{"upper only", nil, nil, nil, floatPtr(5), true},
		{"inclusive equal", nil, floatPtr(5), nil, floatPtr(5), true},
		{"exclusive equal", floatPtr(5), nil, floatPtr(5), nil, false},
		{"half open equal", nil, floatPtr(5), floatPtr(5), nil, false},
		{"ordered", nil, floatPtr(4e6), nil, floatPtr(6e6), true},
		{"inverted", nil, floatPtr(6e6), nil, floatPtr(4e6), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := NewRangeFilter(tt.gt, tt.gte, tt.lt, tt.lte)
			if got := r.Satisfiable(); got != tt.want {
				t.Errorf("Satisfiable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRange_ContainsBoundaries(t *testing.T) {
	incl, _ := NewRangeFilter(nil, floatPtr(10), nil, floatPtr(20))
	excl, _ := NewRangeFilter(floatPtr(10), nil, floatPtr(20), nil)

	for _, v := range []float64{10, 15, 20} {
		if !incl.Contains(v) {
			t.Errorf("inclusive range should contain %v", v)
		}
	}
	for _, v := range []float64{10, 20} {
		if excl.Contains(v) {
			t.Errorf("exclusive range should not contain %v", v)
		}
	}
	if !excl.Contains(15) {
		t.Error("exclusive range should contain 15")
	}
}

// --- Condition ---

func TestNewMatch_Validation(t *testing.T) {
	if _, err := NewMatch("", "x"); err == nil || !strings.Contains(err.Error(), "key is required") {
		t.Errorf("empty key: %v", err)
	}
	if _, err := NewMatch("deal_type", ""); err == nil || !strings.Contains(err.Error(), "match value") {
		t.Errorf("empty value: %v", err)
	}
	c, err := NewMatch("deal_type", "SCRAPED")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsMatch() || c.IsRange() || c.IsAnyOf() {
		t.Errorf("unexpected kind for %v", c)
	}
}

func TestNewAnyOf(t *testing.T) {
	values := []string{"platform", "add_on"}
	c, err := NewAnyOf("business_strategy", values)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsAnyOf() || c.IsMatch() || c.IsRange() {
		t.Error("expected a set condition")
	}

	values[0] = "mutated"
	if c.AnyOf()[0] != "platform" {
		t.Error("condition must not alias the caller slice")
	}

	if _, err := NewAnyOf("business_strategy", nil); err == nil {
		t.Error("expected error for empty set")
	}
	if _, err := NewAnyOf("business_strategy", []string{"platform", ""}); err == nil {
		t.Error("expected error for empty member")
	}
	if _, err := NewAnyOf("", []string{"platform"}); err == nil {
		t.Error("expected error for empty key")
	}
}

// --- Expression ---

func TestNewExpression_GroupLimits(t *testing.T) {
	conds := make([]Condition, MaxConditionsPerGroup+1)
	for i := range conds {
		conds[i] = Condition{key: "k", match: "v"}
	}

	if _, err := NewExpression(conds, nil, nil); err == nil || !strings.Contains(err.Error(), "too many must") {
		t.Errorf("must: %v", err)
	}
	if _, err := NewExpression(nil, conds, nil); err == nil || !strings.Contains(err.Error(), "too many should") {
		t.Errorf("should: %v", err)
	}
	if _, err := NewExpression(nil, nil, conds); err == nil || !strings.Contains(err.Error(), "too many must_not") {
		t.Errorf("must_not: %v", err)
	}
	if _, err := NewExpression(conds[:MaxConditionsPerGroup], nil, nil); err != nil {
		t.Errorf("exactly max conditions should pass: %v", err)
	}
}

func TestExpression_EmptyIsSatisfiableAndMatchesAll(t *testing.T) {
	var expr Expression
	if !expr.IsEmpty() || !expr.Satisfiable() {
		t.Fatal("zero expression should be empty and satisfiable")
	}
	if !expr.Matches(testDoc{}) {
		t.Error("empty expression should match any document")
	}
}

func TestExpression_Satisfiable(t *testing.T) {
	ok := mustRange(t, "revenue", nil, floatPtr(1), nil, floatPtr(2))
	bad := mustRange(t, "revenue", nil, floatPtr(2), nil, floatPtr(1))

	expr, _ := NewExpression([]Condition{ok, bad}, nil, nil)
	if expr.Satisfiable() {
		t.Error("must with an inverted range should be unsatisfiable")
	}

	expr, _ = NewExpression(nil, []Condition{bad, ok}, nil)
	if !expr.Satisfiable() {
		t.Error("should group with one satisfiable member is satisfiable")
	}

	expr, _ = NewExpression(nil, []Condition{bad}, nil)
	if expr.Satisfiable() {
		t.Error("should group with only inverted ranges is unsatisfiable")
	}
}

func TestExpression_Matches(t *testing.T) {
	revenue := mustRange(t, "revenue", nil, floatPtr(4e6), nil, floatPtr(6e6))
	strategy, _ := NewAnyOf("business_strategy", []string{"platform", "add_on"})
	scraped, _ := NewMatch("deal_type", "SCRAPED")

	expr, _ := NewExpression([]Condition{revenue, strategy}, nil, []Condition{scraped})

	tests := []struct {
		name string
		doc  testDoc
		want bool
	}{
		{
			name: "all conditions hold",
			doc: testDoc{
				tags:    map[string][]string{"business_strategy": {"add_on"}},
				numbers: map[string]float64{"revenue": 5e6},
			},
			want: true,
		},
		{
			name: "revenue on lower boundary",
			doc: testDoc{
				tags:    map[string][]string{"business_strategy": {"platform"}},
				numbers: map[string]float64{"revenue": 4e6},
			},
			want: true,
		},
		{
			name: "missing revenue",
			doc:  testDoc{tags: map[string][]string{"business_strategy": {"platform"}}},
			want: false,
		},
		{
			name: "strategy not in set",
			doc: testDoc{
				tags:    map[string][]string{"business_strategy": {"turnaround"}},
				numbers: map[string]float64{"revenue": 5e6},
			},
			want: false,
		},
		{
			name: "excluded by must_not",
			doc: testDoc{
				tags: map[string][]string{
					"business_strategy": {"platform"},
					"deal_type":         {"SCRAPED"},
				},
				numbers: map[string]float64{"revenue": 5e6},
			},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expr.Matches(tt.doc); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpression_String(t *testing.T) {
	revenue := mustRange(t, "revenue", nil, floatPtr(4e6), nil, floatPtr(6e6))
	strategy, _ := NewAnyOf("business_strategy", []string{"platform", "add_on"})
	expr, _ := NewExpression([]Condition{revenue, strategy}, nil, nil)

	want := "must[revenue:gte=4e+06,lte=6e+06;business_strategy:any=platform|add_on]should[]must_not[]"
	if got := expr.String(); got != want {
		t.Errorf("String() = %q\nwant       %q", got, want)
	}
}
