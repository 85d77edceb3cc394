package candidate

import (
	"github.com/kailas-cloud/dealscout/internal/db"
	domcand "github.com/kailas-cloud/dealscout/internal/domain/candidate"
)

// buildIndex describes the candidate FT index over HASH documents under keyPrefix.
func buildIndex(name, keyPrefix string, cfg Config) (*db.IndexDefinition, error) {
	b := db.NewIndex(name).
		Prefix(keyPrefix).
		Numerics(
			domcand.FieldRevenue,
			domcand.FieldEBITDA,
			domcand.FieldEBITDAMargin,
			domcand.FieldGrossRevenue,
			domcand.FieldAskingPrice,
			fieldCreated,
			fieldUpdated,
		).
		Tag(domcand.FieldDealType).
		Tag(domcand.FieldBusinessStrategy).
		Tag(domcand.FieldGrowthStage).
		TagWithOpts(domcand.FieldTags, tagSeparator, false).
		TagWithOpts(domcand.FieldIndustry, tagSeparator, false)

	if cfg.Algorithm == db.VectorFlat {
		b = b.VectorFlat(fieldVector, cfg.Dimensions, db.DistanceCosine, 0)
	} else {
		b = b.VectorHNSW(fieldVector, cfg.Dimensions, db.DistanceCosine, cfg.M, cfg.EFConstruct)
	}
	return b.Build()
}
