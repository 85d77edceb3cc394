package milvus

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/dealscout/internal/domain/candidate"
)

// recordKey holds the full record inside the metadata JSON.
const recordKey = "record"

var numericFields = []string{
	candidate.FieldRevenue,
	candidate.FieldEBITDA,
	candidate.FieldEBITDAMargin,
	candidate.FieldGrossRevenue,
	candidate.FieldAskingPrice,
}

var scalarTagFields = []string{
	candidate.FieldBusinessStrategy,
	candidate.FieldGrowthStage,
	candidate.FieldDealType,
	candidate.FieldIndustry,
}

// buildMetadata flattens filterable fields to top-level JSON keys and nests the record itself.
// Absent values are omitted so that comparisons on them evaluate to false.
func buildMetadata(rec *candidate.Record) ([]byte, error) {
	m := make(map[string]any, 12)
	for _, k := range numericFields {
		if v, ok := rec.Number(k); ok {
			m[k] = v
		}
	}
	for _, k := range scalarTagFields {
		if tags := rec.TagValues(k); len(tags) > 0 {
			m[k] = tags[0]
		}
	}
	if len(rec.Tags) > 0 {
		m[candidate.FieldTags] = rec.Tags
	}
	m[recordKey] = rec

	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata %s: %w", rec.ID, err)
	}
	return b, nil
}

func parseMetadata(id string, raw []byte) (candidate.Record, error) {
	var m struct {
		Record candidate.Record `json:"record"`
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return candidate.Record{}, fmt.Errorf("unmarshal metadata %s: %w", id, err)
	}
	if m.Record.ID == "" {
		m.Record.ID = id
	}
	return m.Record, nil
}
