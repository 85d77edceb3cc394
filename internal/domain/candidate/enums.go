package candidate

// Strategy is the inferred acquisition strategy of a deal.
type Strategy string

// Known strategies.
const (
	StrategyPlatform              Strategy = "platform"
	StrategyAddOn                 Strategy = "add_on"
	StrategyVerticalIntegration   Strategy = "vertical_integration"
	StrategyHorizontalIntegration Strategy = "horizontal_integration"
	StrategyGeographicExpansion   Strategy = "geographic_expansion"
	StrategyTurnaround            Strategy = "turnaround"
	StrategyConsolidation         Strategy = "consolidation"
)

var strategies = []Strategy{
	StrategyPlatform,
	StrategyAddOn,
	StrategyVerticalIntegration,
	StrategyHorizontalIntegration,
	StrategyGeographicExpansion,
	StrategyTurnaround,
	StrategyConsolidation,
}

// Strategies returns every known strategy in declaration order.
func Strategies() []Strategy {
	out := make([]Strategy, len(strategies))
	copy(out, strategies)
	return out
}

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	for _, v := range strategies {
		if s == v {
			return true
		}
	}
	return false
}

// GrowthStage is the inferred lifecycle stage of the target company.
type GrowthStage string

// Known growth stages.
const (
	GrowthEarly     GrowthStage = "early"
	GrowthGrowth    GrowthStage = "growth"
	GrowthMature    GrowthStage = "mature"
	GrowthDeclining GrowthStage = "declining"
)

// Valid reports whether g is a known growth stage.
func (g GrowthStage) Valid() bool {
	switch g {
	case GrowthEarly, GrowthGrowth, GrowthMature, GrowthDeclining:
		return true
	}
	return false
}

// DealType records how a deal entered the corpus.
type DealType string

// Known deal types.
const (
	DealManual     DealType = "MANUAL"
	DealScraped    DealType = "SCRAPED"
	DealAIInferred DealType = "AI_INFERRED"
)

// Valid reports whether d is a known deal type. The empty value is allowed.
func (d DealType) Valid() bool {
	switch d {
	case "", DealManual, DealScraped, DealAIInferred:
		return true
	}
	return false
}
