// Package memindex is a brute-force in-process vector index for local runs and tests.
package memindex

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/kailas-cloud/dealscout/internal/domain"
	"github.com/kailas-cloud/dealscout/internal/domain/candidate"
	"github.com/kailas-cloud/dealscout/internal/domain/search/filter"
)

// Index keeps records in insertion order and scores them by cosine similarity.
type Index struct {
	dim int

	mu    sync.RWMutex
	order []string
	docs  map[string]candidate.Record
}

// New creates an empty index for vectors of the given dimension.
func New(dim int) *Index {
	return &Index{dim: dim, docs: make(map[string]candidate.Record)}
}

// EnsureIndex is a no-op: the index always exists.
func (x *Index) EnsureIndex(_ context.Context) error { return nil }

// Ping always succeeds.
func (x *Index) Ping(_ context.Context) error { return nil }

// Upsert replaces records by id. Re-upserting an id keeps its original position.
func (x *Index) Upsert(_ context.Context, records []candidate.Record) error {
	for i := range records {
		if len(records[i].Vector) != x.dim {
			return fmt.Errorf("record %s: %w: got %d, want %d",
				records[i].ID, domain.ErrVectorDimMismatch, len(records[i].Vector), x.dim)
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for _, r := range records {
		if _, ok := x.docs[r.ID]; !ok {
			x.order = append(x.order, r.ID)
		}
		r = cloneRecord(r)
		r.Vector = slices.Clone(r.Vector)
		x.docs[r.ID] = r
	}
	return nil
}

// Len returns the number of stored records.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

// Search returns the topK records matching filters, most similar first.
func (x *Index) Search(
	ctx context.Context, filters filter.Expression, vector []float32, topK int,
) ([]candidate.Result, error) {
	if len(vector) != x.dim {
		return nil, fmt.Errorf("search: %w: got %d, want %d", domain.ErrVectorDimMismatch, len(vector), x.dim)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if topK <= 0 {
		return []candidate.Result{}, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	results := make([]candidate.Result, 0, min(topK, len(x.order)))
	for _, id := range x.order {
		rec := x.docs[id]
		if !filters.Matches(&rec) {
			continue
		}
		out := cloneRecord(rec)
		out.Vector = nil
		results = insertRanked(results, candidate.Result{
			ID:     id,
			Score:  cosine(vector, rec.Vector),
			Record: out,
		}, topK)
	}
	return results, nil
}

// insertRanked keeps results sorted by descending score with at most limit entries.
// Equal scores keep insertion order.
func insertRanked(results []candidate.Result, r candidate.Result, limit int) []candidate.Result {
	pos := len(results)
	for pos > 0 && results[pos-1].Score < r.Score {
		pos--
	}
	if pos >= limit {
		return results
	}
	if len(results) < limit {
		results = append(results, candidate.Result{})
	}
	copy(results[pos+1:], results[pos:len(results)-1])
	results[pos] = r
	return results
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// cloneRecord detaches tags and optional metadata from the caller's memory.
func cloneRecord(r candidate.Record) candidate.Record {
	r.Tags = slices.Clone(r.Tags)
	r.Revenue = clonePtr(r.Revenue)
	r.EBITDA = clonePtr(r.EBITDA)
	r.EBITDAMargin = clonePtr(r.EBITDAMargin)
	r.GrossRevenue = clonePtr(r.GrossRevenue)
	r.AskingPrice = clonePtr(r.AskingPrice)
	r.CreatedAt = clonePtr(r.CreatedAt)
	r.UpdatedAt = clonePtr(r.UpdatedAt)
	r.BusinessStrategy = clonePtr(r.BusinessStrategy)
	r.BusinessStrategyConfidence = clonePtr(r.BusinessStrategyConfidence)
	r.GrowthStage = clonePtr(r.GrowthStage)
	r.GrowthStageConfidence = clonePtr(r.GrowthStageConfidence)
	return r
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
