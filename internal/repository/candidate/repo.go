package candidate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/dealscout/internal/db"
	"github.com/kailas-cloud/dealscout/internal/domain"
	domcand "github.com/kailas-cloud/dealscout/internal/domain/candidate"
	"github.com/kailas-cloud/dealscout/internal/domain/search/filter"
)

// DefaultUpsertBatch bounds the number of records per pipelined write.
const DefaultUpsertBatch = 256

// store is the consumer interface for candidate storage (ISP).
type store interface {
	db.Pinger
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Config describes the candidate index.
type Config struct {
	Dimensions  int
	Algorithm   db.VectorAlgorithm
	M           int
	EFConstruct int
	// Namespace prefixes every key. Defaults to domain.KeyPrefix.
	Namespace   string
	UpsertBatch int
}

// Repo stores candidate records as HASH documents indexed for KNN search.
type Repo struct {
	store     store
	cfg       Config
	keyPrefix string
	indexName string
}

// New creates a candidate repository.
func New(s store, cfg Config) *Repo {
	if cfg.Namespace == "" {
		cfg.Namespace = domain.KeyPrefix
	}
	if cfg.UpsertBatch <= 0 {
		cfg.UpsertBatch = DefaultUpsertBatch
	}
	return &Repo{
		store:     s,
		cfg:       cfg,
		keyPrefix: cfg.Namespace + "candidate:",
		indexName: cfg.Namespace + "candidate:idx",
	}
}

// IndexName returns the FT index name.
func (r *Repo) IndexName() string { return r.indexName }

// Ping checks the backing store.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
	return nil
}

// EnsureIndex creates the FT index unless it already exists.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName)
	if err != nil {
		return fmt.Errorf("check index %s: %w", r.indexName, err)
	}
	if exists {
		return nil
	}

	def, err := buildIndex(r.indexName, r.keyPrefix, r.cfg)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", r.indexName, err)
	}
	return nil
}

// Upsert writes records by id, replacing any previous version in full.
func (r *Repo) Upsert(ctx context.Context, records []domcand.Record) error {
	items := make([]db.HashSetItem, 0, min(len(records), r.cfg.UpsertBatch))
	for i := range records {
		rec := &records[i]
		if len(rec.Vector) != r.cfg.Dimensions {
			return fmt.Errorf("record %s: %w: got %d, want %d",
				rec.ID, domain.ErrVectorDimMismatch, len(rec.Vector), r.cfg.Dimensions)
		}
		fields, err := buildHashFields(rec)
		if err != nil {
			return err
		}
		items = append(items, db.HashSetItem{Key: r.keyPrefix + rec.ID, Fields: fields})

		if len(items) == r.cfg.UpsertBatch {
			if err := r.store.HSetMulti(ctx, items); err != nil {
				return fmt.Errorf("upsert candidates: %w", err)
			}
			items = items[:0]
		}
	}
	if len(items) > 0 {
		if err := r.store.HSetMulti(ctx, items); err != nil {
			return fmt.Errorf("upsert candidates: %w", err)
		}
	}
	return nil
}

// Search runs a filtered KNN query. Scores are 1 - cosine distance.
func (r *Repo) Search(
	ctx context.Context, filters filter.Expression, vector []float32, topK int,
) ([]domcand.Result, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName,
		VectorField:  fieldVector,
		Filters:      filters,
		Vector:       vector,
		K:            topK,
		ReturnFields: []string{fieldID, fieldPayload},
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
		}
		return nil, fmt.Errorf("search candidates: %w", err)
	}

	results := make([]domcand.Result, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		id := e.Fields[fieldID]
		if id == "" {
			id = strings.TrimPrefix(e.Key, r.keyPrefix)
		}
		rec, err := parsePayload(id, e.Fields)
		if err != nil {
			return nil, fmt.Errorf("search candidates: %w", err)
		}
		results = append(results, domcand.Result{ID: id, Score: e.Score, Record: rec})
	}
	return results, nil
}
