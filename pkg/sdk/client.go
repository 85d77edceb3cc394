package dealscout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dealscout/internal/db"
	dbValkey "github.com/kailas-cloud/dealscout/internal/db/valkey"
	"github.com/kailas-cloud/dealscout/internal/domain"
	"github.com/kailas-cloud/dealscout/internal/domain/candidate"
	"github.com/kailas-cloud/dealscout/internal/domain/search/filter"
	candidaterepo "github.com/kailas-cloud/dealscout/internal/repository/candidate"
	"github.com/kailas-cloud/dealscout/internal/repository/memindex"
	milvusrepo "github.com/kailas-cloud/dealscout/internal/repository/milvus"
	healthuc "github.com/kailas-cloud/dealscout/internal/usecase/health"
	"github.com/kailas-cloud/dealscout/internal/usecase/rollup"
)

const defaultReadinessTimeout = 10 * time.Second

// Внутренние интерфейсы для подмены в тестах.
type candidateIndex interface {
	Search(ctx context.Context, filters filter.Expression, vector []float32, topK int) ([]candidate.Result, error)
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, records []candidate.Record) error
	Ping(ctx context.Context) error
}

type rollupUseCase interface {
	FindCandidates(ctx context.Context, c candidate.Criteria, opts rollup.Options) (rollup.Outcome, error)
}

// Client is the dealscout SDK entry point.
type Client struct {
	index     candidateIndex
	embedder  domain.Embedder
	dim       int
	rollupSvc rollupUseCase
	healthSvc healthUseCase
	closers   []func()
	obs       *observer
}

// New creates a Client and connects to the vector index.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		vectorDimensions: domain.DefaultVectorConfig().Dimensions,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.driver == "" {
		return nil, errors.New("dealscout: index required (use WithValkey, WithRedis, WithMilvus or WithMemoryIndex)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	c := &Client{obs: obs, dim: cfg.vectorDimensions}
	if err := c.openIndex(ctx, cfg); err != nil {
		c.Close()
		return nil, err
	}
	c.wire(cfg)
	return c, nil
}

func (c *Client) openIndex(ctx context.Context, cfg *clientConfig) error {
	switch cfg.driver {
	case driverValkey, driverRedis:
		if len(cfg.addrs) == 0 || cfg.addrs[0] == "" {
			return errors.New("dealscout: database address required")
		}
		store, err := dbValkey.NewStore(dbValkey.Config{
			Flavor:   dbValkey.Flavor(cfg.driver),
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return fmt.Errorf("dealscout: create %s store: %w", cfg.driver, err)
		}
		c.closers = append(c.closers, store.Close)

		if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			return fmt.Errorf("dealscout: database not ready: %w", err)
		}
		c.index = candidaterepo.New(store, candidaterepo.Config{
			Dimensions:  cfg.vectorDimensions,
			Algorithm:   db.VectorHNSW,
			M:           cfg.hnswM,
			EFConstruct: cfg.hnswEFConstruct,
			Namespace:   cfg.keyPrefix,
		})

	case driverMilvus:
		repo, err := milvusrepo.Dial(ctx, milvusrepo.Config{
			Address:     cfg.milvusAddr,
			Collection:  cfg.milvusCollection,
			Dimensions:  cfg.vectorDimensions,
			M:           cfg.hnswM,
			EFConstruct: cfg.hnswEFConstruct,
		})
		if err != nil {
			return fmt.Errorf("dealscout: dial milvus: %w", err)
		}
		c.closers = append(c.closers, func() { _ = repo.Close() })
		c.index = repo

	case driverMemory:
		c.index = memindex.New(cfg.vectorDimensions)

	default:
		return fmt.Errorf("dealscout: unknown index driver %q", cfg.driver)
	}
	return nil
}

func (c *Client) wire(cfg *clientConfig) {
	c.embedder = adaptEmbedder(cfg.embedder)

	retriever := rollup.NewRetriever(c.index, c.embedder, rollup.RetrieverConfig{
		DefaultK:      cfg.defaultK,
		MaxK:          cfg.maxK,
		Dimensions:    cfg.vectorDimensions,
		SearchTimeout: cfg.searchTimeout,
	}, zap.NewNop())

	// nil interfaces, не typed nil
	var (
		synth *rollup.Synthesizer
		gen   healthuc.ProviderChecker
	)
	if cfg.generator != nil {
		ga := &generatorAdapter{inner: cfg.generator}
		synth = rollup.NewSynthesizer(ga, rollup.SynthesizerConfig{}, zap.NewNop())
		gen = ga
	}
	var emb healthuc.ProviderChecker
	if hc, ok := c.embedder.(healthuc.ProviderChecker); ok && cfg.embedder != nil {
		emb = hc
	}

	c.rollupSvc = rollup.New(retriever, synth, zap.NewNop())
	c.healthSvc = healthuc.New(c.index, emb, gen)
}

// Close releases all resources.
func (c *Client) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Ping checks index connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.index.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// EnsureIndex creates the vector index if it does not exist yet.
func (c *Client) EnsureIndex(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("index.ensure", start, err) }()

	if err = c.index.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}
	return nil
}
