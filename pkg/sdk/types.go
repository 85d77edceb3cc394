package dealscout

import "github.com/kailas-cloud/dealscout/internal/domain/candidate"

// Criteria is a rollup search request. Every field is optional.
type Criteria = candidate.Criteria

// Record is one deal in the vector index.
type Record = candidate.Record

// Result is a single retrieval hit. Higher Score means more similar.
type Result = candidate.Result

// Strategy is the business strategy classification of a deal.
type Strategy = candidate.Strategy

// GrowthStage is the growth stage classification of a deal.
type GrowthStage = candidate.GrowthStage

// DealType distinguishes listing kinds.
type DealType = candidate.DealType

// Outcome is the result of FindCandidates.
type Outcome struct {
	Candidates []Result
	// Summary is empty when not requested, when no generator is configured or when synthesis failed.
	Summary string
	// QueryText is the normalized text the query vector was built from.
	QueryText string
}

// UpsertResult reports how many records were written and skipped.
type UpsertResult struct {
	Upserted int
	Skipped  int
	Tokens   int
}
