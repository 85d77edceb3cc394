package candidate

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Indexed metadata field names. Every index provider stores filterable metadata under these keys.
const (
	FieldRevenue          = "revenue"
	FieldEBITDA           = "ebitda"
	FieldEBITDAMargin     = "ebitda_margin"
	FieldGrossRevenue     = "gross_revenue"
	FieldAskingPrice      = "asking_price"
	FieldBusinessStrategy = "business_strategy"
	FieldGrowthStage      = "growth_stage"
	FieldDealType         = "deal_type"
	FieldTags             = "tags"
	FieldIndustry         = "industry"
)

// Record is one embedded deal in the vector index. All metadata is optional.
type Record struct {
	ID     string    `json:"id"`
	Vector []float32 `json:"-"`

	Brokerage   string `json:"brokerage,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	LinkedInURL string `json:"linkedinUrl,omitempty"`
	WorkPhone   string `json:"workPhone,omitempty"`
	Email       string `json:"email,omitempty"`

	Title           string `json:"title,omitempty"`
	Description     string `json:"description,omitempty"`
	Industry        string `json:"industry,omitempty"`
	DealCaption     string `json:"dealCaption,omitempty"`
	DealTeaser      string `json:"dealTeaser,omitempty"`
	SourceWebsite   string `json:"sourceWebsite,omitempty"`
	CompanyLocation string `json:"companyLocation,omitempty"`

	Revenue      *float64 `json:"revenue,omitempty"`
	EBITDA       *float64 `json:"ebitda,omitempty"`
	EBITDAMargin *float64 `json:"ebitdaMargin,omitempty"`
	GrossRevenue *float64 `json:"grossRevenue,omitempty"`
	AskingPrice  *float64 `json:"askingPrice,omitempty"`

	DealType    DealType   `json:"dealType,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
	IsPublished bool       `json:"isPublished"`
	IsReviewed  bool       `json:"isReviewed"`
	Seen        bool       `json:"seen"`
	Tags        []string   `json:"tags,omitempty"`

	BusinessStrategy           *Strategy    `json:"businessStrategy,omitempty"`
	BusinessStrategyConfidence *float64     `json:"businessStrategyConfidence,omitempty"`
	GrowthStage                *GrowthStage `json:"growthStage,omitempty"`
	GrowthStageConfidence      *float64     `json:"growthStageConfidence,omitempty"`
}

// ChunkText is the text that gets embedded: description, location and industry, one per line.
func (r *Record) ChunkText() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.Description, r.CompanyLocation, r.Industry} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n")
}

// Validate checks record invariants before it is written to the index.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("record id is required")
	}
	if !r.DealType.Valid() {
		return fmt.Errorf("record %s: unknown deal type %q", r.ID, r.DealType)
	}
	if r.BusinessStrategy != nil && !r.BusinessStrategy.Valid() {
		return fmt.Errorf("record %s: unknown business strategy %q", r.ID, *r.BusinessStrategy)
	}
	if r.GrowthStage != nil && !r.GrowthStage.Valid() {
		return fmt.Errorf("record %s: unknown growth stage %q", r.ID, *r.GrowthStage)
	}
	if !validConfidence(r.BusinessStrategyConfidence) || !validConfidence(r.GrowthStageConfidence) {
		return fmt.Errorf("record %s: confidence must be within [0,1]", r.ID)
	}
	return nil
}

func validConfidence(c *float64) bool {
	return c == nil || (*c >= 0 && *c <= 1)
}

// TagValues returns tag values of a metadata field, for in-memory filter evaluation.
func (r *Record) TagValues(key string) []string {
	switch key {
	case FieldBusinessStrategy:
		if r.BusinessStrategy != nil {
			return []string{string(*r.BusinessStrategy)}
		}
	case FieldGrowthStage:
		if r.GrowthStage != nil {
			return []string{string(*r.GrowthStage)}
		}
	case FieldDealType:
		if r.DealType != "" {
			return []string{string(r.DealType)}
		}
	case FieldIndustry:
		if r.Industry != "" {
			return []string{r.Industry}
		}
	case FieldTags:
		return r.Tags
	}
	return nil
}

// Number returns a numeric metadata field, for in-memory filter evaluation.
func (r *Record) Number(key string) (float64, bool) {
	var p *float64
	switch key {
	case FieldRevenue:
		p = r.Revenue
	case FieldEBITDA:
		p = r.EBITDA
	case FieldEBITDAMargin:
		p = r.EBITDAMargin
	case FieldGrossRevenue:
		p = r.GrossRevenue
	case FieldAskingPrice:
		p = r.AskingPrice
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Result is a single retrieval hit. Score is provider-scaled: higher means more similar.
type Result struct {
	ID     string  `json:"id"`
	Score  float64 `json:"score"`
	Record Record  `json:"metadata"`
}
