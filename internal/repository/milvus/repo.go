package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kailas-cloud/dealscout/internal/domain"
	"github.com/kailas-cloud/dealscout/internal/domain/candidate"
	"github.com/kailas-cloud/dealscout/internal/domain/search/filter"
)

// Repo is a candidate index backed by a Milvus collection.
type Repo struct {
	client api
	cfg    Config
}

func newRepo(c api, cfg Config) *Repo {
	cfg.applyDefaults()
	return &Repo{client: c, cfg: cfg}
}

// Close releases the Milvus connection.
func (r *Repo) Close() error {
	return r.client.Close()
}

// Ping checks that Milvus answers.
func (r *Repo) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "milvus.Ping")
	defer span.End()

	if _, err := r.client.HasCollection(ctx, r.cfg.Collection); err != nil {
		fail(span, err)
		return fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
	return nil
}

// EnsureIndex creates the collection and its HNSW index if missing, then loads it.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "milvus.EnsureIndex",
		trace.WithAttributes(attribute.String("collection", r.cfg.Collection)))
	defer span.End()

	has, err := r.client.HasCollection(ctx, r.cfg.Collection)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("check collection %s: %w", r.cfg.Collection, err)
	}
	if !has {
		schema := collectionSchema(r.cfg.Collection, r.cfg.Dimensions)
		if err := r.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			fail(span, err)
			return fmt.Errorf("create collection %s: %w", r.cfg.Collection, err)
		}

		idx, err := entity.NewIndexHNSW(entity.COSINE, r.cfg.M, r.cfg.EFConstruct)
		if err != nil {
			fail(span, err)
			return fmt.Errorf("build index: %w", err)
		}
		if err := r.client.CreateIndex(ctx, r.cfg.Collection, fieldVector, idx, false); err != nil {
			fail(span, err)
			return fmt.Errorf("create index: %w", err)
		}
	}

	if err := r.client.LoadCollection(ctx, r.cfg.Collection, false); err != nil {
		fail(span, err)
		return fmt.Errorf("load collection %s: %w", r.cfg.Collection, err)
	}
	return nil
}

// Upsert writes records by primary key.
func (r *Repo) Upsert(ctx context.Context, records []candidate.Record) error {
	if len(records) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "milvus.Upsert",
		trace.WithAttributes(
			attribute.String("collection", r.cfg.Collection),
			attribute.Int("count", len(records)),
		))
	defer span.End()

	ids := make([]string, len(records))
	vectors := make([][]float32, len(records))
	metas := make([][]byte, len(records))
	for i := range records {
		rec := &records[i]
		if len(rec.Vector) != r.cfg.Dimensions {
			return fmt.Errorf("record %s: %w: got %d, want %d",
				rec.ID, domain.ErrVectorDimMismatch, len(rec.Vector), r.cfg.Dimensions)
		}
		if len(rec.ID) > maxIDLength {
			return fmt.Errorf("record id %q exceeds %d bytes", rec.ID, maxIDLength)
		}
		meta, err := buildMetadata(rec)
		if err != nil {
			return err
		}
		ids[i] = rec.ID
		vectors[i] = rec.Vector
		metas[i] = meta
	}

	_, err := r.client.Upsert(ctx, r.cfg.Collection, "",
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnFloatVector(fieldVector, r.cfg.Dimensions, vectors),
		entity.NewColumnJSONBytes(fieldMetadata, metas),
	)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("upsert candidates: %w", err)
	}
	return nil
}

// Search runs a filtered ANN query. Milvus COSINE scores are similarities: higher is closer.
func (r *Repo) Search(
	ctx context.Context, filters filter.Expression, vector []float32, topK int,
) ([]candidate.Result, error) {
	if topK <= 0 {
		return []candidate.Result{}, nil
	}
	expr := compileExpr(filters)

	ctx, span := tracer.Start(ctx, "milvus.Search",
		trace.WithAttributes(
			attribute.String("collection", r.cfg.Collection),
			attribute.Int("top_k", topK),
			attribute.String("expr", expr),
		))
	defer span.End()

	sp, err := entity.NewIndexHNSWSearchParam(max(r.cfg.EFSearch, topK))
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("search param: %w", err)
	}

	res, err := r.client.Search(ctx,
		r.cfg.Collection,
		nil,
		expr,
		[]string{fieldID, fieldMetadata},
		[]entity.Vector{entity.FloatVector(vector)},
		fieldVector,
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("%w: search candidates: %w", domain.ErrIndexUnavailable, err)
	}

	results := make([]candidate.Result, 0, topK)
	for _, sr := range res {
		// пустой результат приходит без колонок
		if sr.ResultCount == 0 {
			continue
		}
		if sr.Err != nil {
			fail(span, sr.Err)
			return nil, fmt.Errorf("search candidates: %w", sr.Err)
		}
		idCol, ok := sr.Fields.GetColumn(fieldID).(*entity.ColumnVarChar)
		if !ok {
			return nil, fmt.Errorf("search candidates: missing %s column", fieldID)
		}
		metaCol, ok := sr.Fields.GetColumn(fieldMetadata).(*entity.ColumnJSONBytes)
		if !ok {
			return nil, fmt.Errorf("search candidates: missing %s column", fieldMetadata)
		}
		for i := 0; i < sr.ResultCount; i++ {
			id := idCol.Data()[i]
			rec, err := parseMetadata(id, metaCol.Data()[i])
			if err != nil {
				return nil, fmt.Errorf("search candidates: %w", err)
			}
			results = append(results, candidate.Result{
				ID:     id,
				Score:  float64(sr.Scores[i]),
				Record: rec,
			})
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(results)))
	return results, nil
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
