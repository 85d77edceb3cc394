package candidate

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/kailas-cloud/dealscout/internal/domain"
)

// Criteria bounds.
const (
	MaxCriteriaTextLen = 256
	MaxMarginPercent   = 1000.0
)

// Criteria is a rollup search request. Every field is optional.
// Contradictory bounds are allowed and simply match nothing.
type Criteria struct {
	Industry         *string    `json:"industry,omitempty"`
	Location         *string    `json:"location,omitempty"`
	RevenueMin       *float64   `json:"revenueMin,omitempty"`
	RevenueMax       *float64   `json:"revenueMax,omitempty"`
	EBITDAMarginMin  *float64   `json:"ebitdaMarginMin,omitempty"`
	EBITDAMarginMax  *float64   `json:"ebitdaMarginMax,omitempty"`
	BusinessStrategy []Strategy `json:"businessStrategy,omitempty"`
}

// Validate checks boundary constraints and returns a *domain.ValidationError naming the field.
func (c Criteria) Validate() error {
	if err := checkText("industry", c.Industry); err != nil {
		return err
	}
	if err := checkText("location", c.Location); err != nil {
		return err
	}
	for _, b := range []struct {
		field string
		v     *float64
	}{
		{"revenueMin", c.RevenueMin},
		{"revenueMax", c.RevenueMax},
	} {
		if err := checkFinite(b.field, b.v); err != nil {
			return err
		}
		if b.v != nil && *b.v < 0 {
			return domain.NewValidationError(b.field, "must not be negative")
		}
	}
	for _, b := range []struct {
		field string
		v     *float64
	}{
		{"ebitdaMarginMin", c.EBITDAMarginMin},
		{"ebitdaMarginMax", c.EBITDAMarginMax},
	} {
		if err := checkFinite(b.field, b.v); err != nil {
			return err
		}
		if b.v != nil && (*b.v < -MaxMarginPercent || *b.v > MaxMarginPercent) {
			return domain.NewValidationError(b.field,
				fmt.Sprintf("must be within [%g, %g]", -MaxMarginPercent, MaxMarginPercent))
		}
	}
	for i, s := range c.BusinessStrategy {
		if !s.Valid() {
			return domain.NewValidationError(
				fmt.Sprintf("businessStrategy[%d]", i),
				fmt.Sprintf("unknown strategy %q", s))
		}
	}
	return nil
}

func checkText(field string, v *string) error {
	if v != nil && utf8.RuneCountInString(*v) > MaxCriteriaTextLen {
		return domain.NewValidationError(field,
			fmt.Sprintf("must be at most %d characters", MaxCriteriaTextLen))
	}
	return nil
}

func checkFinite(field string, v *float64) error {
	if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
		return domain.NewValidationError(field, "must be a finite number")
	}
	return nil
}
