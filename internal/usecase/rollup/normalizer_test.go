package rollup

import (
	"bytes"
	"testing"

	"github.com/kailas-cloud/dealscout/internal/domain/candidate"
)

func TestNormalize_EmptyCriteria(t *testing.T) {
	q := Normalize(candidate.Criteria{})
	if q.Text() != "" {
		t.Errorf("text = %q, want empty", q.Text())
	}
	if !q.Filters().IsEmpty() {
		t.Errorf("predicate should be empty, got %s", q.Filters())
	}
}

func TestNormalize_QueryText(t *testing.T) {
	tests := []struct {
		name string
		c    candidate.Criteria
		want string
	}{
		{"industry only", candidate.Criteria{Industry: str("HVAC")}, "Industry: HVAC"},
		{"location only", candidate.Criteria{Location: str("Ohio")}, "Location: Ohio"},
		{"both trimmed", candidate.Criteria{Industry: str(" SaaS "), Location: str("Austin, TX ")}, "Industry: SaaS; Location: Austin, TX"},
		{"blank ignored", candidate.Criteria{Industry: str("   "), Location: str("Ohio")}, "Location: Ohio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.c).Text(); got != tt.want {
				t.Errorf("text = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalize_Predicate(t *testing.T) {
	c := candidate.Criteria{
		RevenueMin:       f64(4e6),
		RevenueMax:       f64(6e6),
		EBITDAMarginMin:  f64(15),
		BusinessStrategy: []candidate.Strategy{candidate.StrategyAddOn, candidate.StrategyPlatform, candidate.StrategyAddOn},
	}
	got := Normalize(c).Filters().String()
	want := "must[revenue:gte=4e+06,lte=6e+06;ebitda_margin:gte=15;business_strategy:any=add_on|platform]should[]must_not[]"
	if got != want {
		t.Errorf("predicate = %q\nwant        %q", got, want)
	}
}

func TestNormalize_ContradictoryBoundsUnsatisfiable(t *testing.T) {
	q := Normalize(candidate.Criteria{RevenueMin: f64(6e6), RevenueMax: f64(4e6)})
	if q.Filters().Satisfiable() {
		t.Error("min > max should produce an unsatisfiable predicate")
	}
	q = Normalize(candidate.Criteria{EBITDAMarginMin: f64(10), EBITDAMarginMax: f64(10)})
	if !q.Filters().Satisfiable() {
		t.Error("min == max should stay satisfiable")
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	c := candidate.Criteria{
		Industry:         str("Dental practices"),
		Location:         str("Florida"),
		RevenueMin:       f64(1e6),
		EBITDAMarginMax:  f64(40),
		BusinessStrategy: []candidate.Strategy{candidate.StrategyConsolidation},
	}
	a := Normalize(c).Canonical()
	b := Normalize(c).Canonical()
	if !bytes.Equal(a, b) {
		t.Fatalf("normalizer not idempotent:\n%s\n%s", a, b)
	}
}

func TestNormalize_DoesNotAliasCriteria(t *testing.T) {
	lower := 1e6
	c := candidate.Criteria{RevenueMin: &lower}
	q := Normalize(c)
	lower = 9e9
	if got := *q.Filters().Must()[0].Range().GTE(); got != 1e6 {
		t.Errorf("query changed after criteria mutation: %v", got)
	}
}
