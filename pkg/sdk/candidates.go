package dealscout

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/dealscout/internal/domain"
	"github.com/kailas-cloud/dealscout/internal/domain/candidate"
	"github.com/kailas-cloud/dealscout/internal/usecase/rollup"
)

// FindCandidates validates the criteria and returns candidates most similar first.
// Invalid criteria return a *ValidationError; index or embedding failures wrap ErrRetrieval.
func (c *Client) FindCandidates(ctx context.Context, criteria Criteria, opts ...SearchOption) (_ Outcome, err error) {
	start := time.Now()
	var found int
	defer func() { c.obs.observeSearch(start, found, err) }()

	var sc searchConfig
	for _, o := range opts {
		o(&sc)
	}

	out, err := c.rollupSvc.FindCandidates(ctx, criteria, rollup.Options{K: sc.k, Summary: sc.summary})
	if err != nil {
		return Outcome{}, fmt.Errorf("find candidates: %w", err)
	}
	found = len(out.Candidates)

	candidates := out.Candidates
	if candidates == nil {
		candidates = []Result{}
	}
	return Outcome{
		Candidates: candidates,
		Summary:    out.Summary,
		QueryText:  out.QueryText,
	}, nil
}

// Upsert writes records to the index, replacing existing ids.
// Records without a vector are embedded from their description, location and industry;
// records with nothing to embed are skipped. An invalid record fails the whole call.
func (c *Client) Upsert(ctx context.Context, records []Record) (_ UpsertResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("candidate.upsert", start, err) }()

	var res UpsertResult
	ready := make([]candidate.Record, 0, len(records))
	var (
		texts   []string
		pending []int
	)
	for i := range records {
		rec := records[i]
		if err = rec.Validate(); err != nil {
			return UpsertResult{}, fmt.Errorf("upsert: %w", err)
		}
		if len(rec.Vector) == 0 {
			text := rec.ChunkText()
			if text == "" {
				res.Skipped++
				continue
			}
			texts = append(texts, text)
			pending = append(pending, len(ready))
		}
		ready = append(ready, rec)
	}

	if len(texts) > 0 {
		emb, embErr := domain.BatchEmbed(ctx, c.embedder, texts)
		if embErr != nil {
			return UpsertResult{}, fmt.Errorf("upsert: %w", embErr)
		}
		if len(emb.Embeddings) != len(texts) {
			return UpsertResult{}, fmt.Errorf("upsert: got %d vectors for %d records", len(emb.Embeddings), len(texts))
		}
		for i, idx := range pending {
			ready[idx].Vector = emb.Embeddings[i]
		}
		res.Tokens = emb.TotalTokens
	}

	if len(ready) == 0 {
		return res, nil
	}
	if err = c.index.Upsert(ctx, ready); err != nil {
		return UpsertResult{}, fmt.Errorf("upsert: %w", err)
	}
	res.Upserted = len(ready)
	return res, nil
}
