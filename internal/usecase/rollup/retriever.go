package rollup

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dealscout/internal/domain"
	"github.com/kailas-cloud/dealscout/internal/domain/candidate"
	"github.com/kailas-cloud/dealscout/internal/domain/search/query"
	"github.com/kailas-cloud/dealscout/internal/metrics"
)

var tracer = otel.Tracer("rollup")

// Retrieval defaults.
const (
	DefaultK             = 5
	DefaultMaxK          = 50
	DefaultEmbedTimeout  = 10 * time.Second
	DefaultSearchTimeout = 5 * time.Second
)

// RetrieverConfig tunes the retriever. Zero values fall back to defaults.
type RetrieverConfig struct {
	DefaultK      int
	MaxK          int
	Dimensions    int
	EmbedTimeout  time.Duration
	SearchTimeout time.Duration
}

func (c *RetrieverConfig) applyDefaults() {
	if c.DefaultK <= 0 {
		c.DefaultK = DefaultK
	}
	if c.MaxK <= 0 {
		c.MaxK = DefaultMaxK
	}
	if c.DefaultK > c.MaxK {
		c.DefaultK = c.MaxK
	}
	if c.Dimensions <= 0 {
		c.Dimensions = domain.DefaultVectorConfig().Dimensions
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = DefaultEmbedTimeout
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = DefaultSearchTimeout
	}
}

// Retriever runs KNN similarity search constrained by a metadata predicate.
// It holds no per-request state and is safe for concurrent use.
type Retriever struct {
	index  Index
	embed  Embedder
	cfg    RetrieverConfig
	logger *zap.Logger
}

// NewRetriever creates a retriever.
func NewRetriever(index Index, embed Embedder, cfg RetrieverConfig, logger *zap.Logger) *Retriever {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{index: index, embed: embed, cfg: cfg, logger: logger}
}

// ResolveK applies the default and the upper cap to a caller-supplied K.
func (r *Retriever) ResolveK(k int) int {
	if k <= 0 {
		return r.cfg.DefaultK
	}
	if k > r.cfg.MaxK {
		return r.cfg.MaxK
	}
	return k
}

// Retrieve returns at most k candidates sorted by descending score.
// An unsatisfiable predicate yields an empty list without touching any provider.
func (r *Retriever) Retrieve(ctx context.Context, q query.Query, k int) (_ []candidate.Result, err error) {
	k = r.ResolveK(k)

	ctx, span := tracer.Start(ctx, "rollup.Retrieve", trace.WithAttributes(
		attribute.Int("rollup.k", k),
		attribute.Bool("rollup.has_text", q.HasText()),
		attribute.String("rollup.filter", q.Filters().String()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if !q.Filters().Satisfiable() {
		span.SetAttributes(attribute.Bool("rollup.short_circuit", true))
		metrics.RollupResultCount.Observe(0)
		return []candidate.Result{}, nil
	}

	vector, err := r.queryVector(ctx, q)
	if err != nil {
		return nil, err
	}

	results, err := r.search(ctx, q, vector, k)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}

	span.SetAttributes(attribute.Int("rollup.results", len(results)))
	metrics.RollupResultCount.Observe(float64(len(results)))
	return results, nil
}

func (r *Retriever) queryVector(ctx context.Context, q query.Query) ([]float32, error) {
	if !q.HasText() {
		return NeutralVector(r.cfg.Dimensions), nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, r.cfg.EmbedTimeout)
	defer cancel()

	start := time.Now()
	res, err := r.embed.Embed(embedCtx, q.Text())
	metrics.ObserveStage(metrics.StageEmbed, time.Since(start).Seconds(), err)
	if err != nil {
		r.logger.Warn("Query embedding failed", zap.Error(err))
		return nil, domain.NewRetrievalError(domain.StageEmbed, err)
	}
	if len(res.Embedding) != r.cfg.Dimensions {
		return nil, domain.NewRetrievalError(domain.StageEmbed, fmt.Errorf(
			"%w: got %d, want %d", domain.ErrVectorDimMismatch, len(res.Embedding), r.cfg.Dimensions))
	}
	return res.Embedding, nil
}

func (r *Retriever) search(
	ctx context.Context, q query.Query, vector []float32, k int,
) ([]candidate.Result, error) {
	searchCtx, cancel := context.WithTimeout(ctx, r.cfg.SearchTimeout)
	defer cancel()

	start := time.Now()
	results, err := r.index.Search(searchCtx, q.Filters(), vector, k)
	metrics.ObserveStage(metrics.StageSearch, time.Since(start).Seconds(), err)
	if err != nil {
		lvl := zap.ErrorLevel
		if errors.Is(err, context.DeadlineExceeded) {
			lvl = zap.WarnLevel
		}
		r.logger.Log(lvl, "Index search failed", zap.Int("k", k), zap.Error(err))
		return nil, domain.NewRetrievalError(domain.StageSearch, err)
	}
	return results, nil
}

// NeutralVector is the unit vector with equal components, used when the query has no text.
func NeutralVector(dim int) []float32 {
	if dim <= 0 {
		return nil
	}
	v := make([]float32, dim)
	c := float32(1 / math.Sqrt(float64(dim)))
	for i := range v {
		v[i] = c
	}
	return v
}
