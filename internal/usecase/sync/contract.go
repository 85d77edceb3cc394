package sync

import (
	"context"

	"github.com/kailas-cloud/dealscout/internal/domain/candidate"
)

// Source pages through deals in id order.
type Source interface {
	Page(ctx context.Context, afterID string, limit int) ([]candidate.Record, error)
}

// Index receives embedded records.
type Index interface {
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, records []candidate.Record) error
}

// Enricher fills inferred attributes in place and reports how many records changed.
type Enricher interface {
	Enrich(ctx context.Context, records []candidate.Record) (int, error)
}
