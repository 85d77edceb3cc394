package candidate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/dealscout/internal/db"
	domcand "github.com/kailas-cloud/dealscout/internal/domain/candidate"
)

// Hash field names that are not filterable metadata.
const (
	fieldID      = "id"
	fieldVector  = "vector"
	fieldPayload = "payload"
	fieldCreated = "created_at"
	fieldUpdated = "updated_at"
)

// tagSeparator splits multi-valued TAG fields. Industry names may contain commas.
const tagSeparator = "|"

// buildHashFields flattens a record into HSET fields: indexed metadata, the raw vector,
// and the full JSON payload used to rebuild the record on read.
func buildHashFields(rec *domcand.Record) (map[string]string, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal payload %s: %w", rec.ID, err)
	}

	m := make(map[string]string, 16)
	m[fieldID] = rec.ID
	m[fieldVector] = db.EncodeVector(rec.Vector)
	m[fieldPayload] = string(payload)

	for _, key := range []string{
		domcand.FieldRevenue,
		domcand.FieldEBITDA,
		domcand.FieldEBITDAMargin,
		domcand.FieldGrossRevenue,
		domcand.FieldAskingPrice,
	} {
		if v, ok := rec.Number(key); ok {
			m[key] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	for _, key := range []string{
		domcand.FieldBusinessStrategy,
		domcand.FieldGrowthStage,
		domcand.FieldDealType,
		domcand.FieldIndustry,
		domcand.FieldTags,
	} {
		if tags := cleanTags(rec.TagValues(key)); len(tags) > 0 {
			m[key] = strings.Join(tags, tagSeparator)
		}
	}
	if rec.CreatedAt != nil {
		m[fieldCreated] = strconv.FormatInt(rec.CreatedAt.Unix(), 10)
	}
	if rec.UpdatedAt != nil {
		m[fieldUpdated] = strconv.FormatInt(rec.UpdatedAt.Unix(), 10)
	}
	return m, nil
}

func cleanTags(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(strings.ReplaceAll(t, tagSeparator, " "))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parsePayload rebuilds a record from its stored JSON payload. The vector is not restored.
func parsePayload(id string, fields map[string]string) (domcand.Record, error) {
	raw, ok := fields[fieldPayload]
	if !ok {
		return domcand.Record{}, fmt.Errorf("document %s has no payload", id)
	}
	var rec domcand.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return domcand.Record{}, fmt.Errorf("unmarshal payload %s: %w", id, err)
	}
	if rec.ID == "" {
		rec.ID = id
	}
	return rec, nil
}
