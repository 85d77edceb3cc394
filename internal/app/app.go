// Package app is the composition root shared by the API server and the operator CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dealscout/internal/config"
	"github.com/kailas-cloud/dealscout/internal/db"
	dbValkey "github.com/kailas-cloud/dealscout/internal/db/valkey"
	"github.com/kailas-cloud/dealscout/internal/domain"
	"github.com/kailas-cloud/dealscout/internal/domain/candidate"
	"github.com/kailas-cloud/dealscout/internal/domain/search/filter"
	"github.com/kailas-cloud/dealscout/internal/metrics"
	candidaterepo "github.com/kailas-cloud/dealscout/internal/repository/candidate"
	"github.com/kailas-cloud/dealscout/internal/repository/deals"
	"github.com/kailas-cloud/dealscout/internal/repository/embcache"
	"github.com/kailas-cloud/dealscout/internal/repository/memindex"
	milvusrepo "github.com/kailas-cloud/dealscout/internal/repository/milvus"
	openaiT "github.com/kailas-cloud/dealscout/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/dealscout/internal/usecase/embedding"
	"github.com/kailas-cloud/dealscout/internal/usecase/enrichment"
	healthuc "github.com/kailas-cloud/dealscout/internal/usecase/health"
	"github.com/kailas-cloud/dealscout/internal/usecase/rollup"
	syncuc "github.com/kailas-cloud/dealscout/internal/usecase/sync"
)

// Index is the full contract every vector index driver satisfies.
type Index interface {
	Search(ctx context.Context, filters filter.Expression, vector []float32, topK int) ([]candidate.Result, error)
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, records []candidate.Record) error
	Ping(ctx context.Context) error
}

var (
	_ Index = (*candidaterepo.Repo)(nil)
	_ Index = (*milvusrepo.Repo)(nil)
	_ Index = (*memindex.Index)(nil)
)

// App holds the wired components.
type App struct {
	Config config.Config
	Logger *zap.Logger

	Index Index
	// KV is the Valkey/Redis store. Nil for the milvus and memory drivers.
	KV db.Store

	DocEmbedder   domain.Embedder
	QueryEmbedder domain.Embedder
	// Generator is nil when no generation model is configured.
	Generator *openaiT.Generator

	closers []func()
}

// New connects the index and builds the provider chain.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	metrics.RegisterProviderMetrics()
	metrics.RegisterRollupMetrics()

	a := &App{Config: cfg, Logger: logger}
	if err := a.openIndex(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.DocEmbedder = a.buildEmbedder(cfg.Embedding.DocumentInstruction)
	a.QueryEmbedder = a.buildEmbedder(cfg.Embedding.QueryInstruction)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cache", a.KV != nil && cfg.Embedding.Cache.Enabled),
	)

	if cfg.GenerationEnabled() {
		a.Generator = openaiT.NewGenerator(&openaiT.Config{
			APIKey:   cfg.Generation.APIKey,
			BaseURL:  cfg.Generation.BaseURL,
			Model:    cfg.Generation.Model,
			Provider: cfg.Generation.Provider,
			Logger:   logger,
		})
		logger.Info("Generator created", zap.String("model", cfg.Generation.Model))
	}

	return a, nil
}

// Close releases connections in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) openIndex(ctx context.Context) error {
	cfg := a.Config.Index
	dim := a.Config.Embedding.Dimensions

	switch cfg.Driver {
	case config.DriverValkey, config.DriverRedis:
		store, err := dbValkey.NewStore(dbValkey.Config{
			Flavor:   dbValkey.Flavor(cfg.Driver),
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
		})
		if err != nil {
			return fmt.Errorf("create %s store: %w", cfg.Driver, err)
		}
		a.closers = append(a.closers, store.Close)

		if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
			return fmt.Errorf("%s not ready: %w", cfg.Driver, err)
		}
		a.KV = store
		a.Index = candidaterepo.New(store, candidaterepo.Config{
			Dimensions:  dim,
			Algorithm:   vectorAlgorithm(cfg.Algorithm),
			M:           cfg.HNSWM,
			EFConstruct: cfg.HNSWEFConstruct,
			Namespace:   cfg.KeyPrefix,
		})

	case config.DriverMilvus:
		repo, err := milvusrepo.Dial(ctx, milvusrepo.Config{
			Address:     cfg.Milvus.Address,
			Username:    cfg.Milvus.Username,
			Password:    cfg.Milvus.Password,
			DBName:      cfg.Milvus.DBName,
			Collection:  cfg.Milvus.Collection,
			Dimensions:  dim,
			M:           cfg.HNSWM,
			EFConstruct: cfg.HNSWEFConstruct,
			EFSearch:    cfg.HNSWEFSearch,
		})
		if err != nil {
			return fmt.Errorf("dial milvus: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := repo.Close(); err != nil {
				a.Logger.Warn("Failed to close milvus client", zap.Error(err))
			}
		})
		a.Index = repo

	case config.DriverMemory:
		a.Index = memindex.New(dim)

	default:
		return fmt.Errorf("unknown index driver %q", cfg.Driver)
	}

	a.Logger.Info("Vector index ready", zap.String("driver", cfg.Driver))
	return nil
}

func vectorAlgorithm(name string) db.VectorAlgorithm {
	if name == "flat" {
		return db.VectorFlat
	}
	return db.VectorHNSW
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction.
func (a *App) buildEmbedder(instruction string) domain.Embedder {
	cfg := a.Config.Embedding

	var embedder domain.Embedder = openaiT.NewEmbedder(&openaiT.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
		Logger:     a.Logger,
	})

	if a.KV != nil && cfg.Cache.Enabled {
		embedder = embcache.New(embedder, a.KV, embcache.Options{
			Model: cfg.Model,
			TTL:   cfg.Cache.TTL(),
		}, metrics.EmbeddingCacheTotal, a.Logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, cfg.Model, cfg.BatchSize, a.Logger)

	// Instruction prefix is outermost so the cache key includes it.
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}

// RollupService wires normalizer, retriever and the optional synthesizer.
func (a *App) RollupService() *rollup.Service {
	cfg := a.Config
	retriever := rollup.NewRetriever(a.Index, a.QueryEmbedder, rollup.RetrieverConfig{
		DefaultK:      cfg.Rollup.DefaultK,
		MaxK:          cfg.Rollup.MaxK,
		Dimensions:    cfg.Embedding.Dimensions,
		EmbedTimeout:  cfg.Rollup.EmbedTimeout(),
		SearchTimeout: cfg.Rollup.SearchTimeout(),
	}, a.Logger)

	var synth *rollup.Synthesizer
	if a.Generator != nil {
		temperature := float32(cfg.Synthesis.TemperatureValue())
		synth = rollup.NewSynthesizer(a.Generator, rollup.SynthesizerConfig{
			MaxTokens:     cfg.Synthesis.MaxTokens,
			Temperature:   &temperature,
			MaxCandidates: cfg.Synthesis.MaxCandidates,
			Timeout:       cfg.Synthesis.Timeout(),
		}, a.Logger)
	}

	return rollup.New(retriever, synth, a.Logger)
}

// HealthService checks the index and both providers.
func (a *App) HealthService() *healthuc.Service {
	// Pass nil interfaces, not typed nil pointers.
	var gen healthuc.ProviderChecker
	if a.Generator != nil {
		gen = a.Generator
	}
	return healthuc.New(a.Index, embeddingHealthChecker{a.DocEmbedder}, gen)
}

// Enricher builds the enrichment stage, or returns nil when generation is disabled.
// Closing the App releases its worker pool.
func (a *App) Enricher() (*enrichment.Service, error) {
	if a.Generator == nil {
		return nil, nil
	}
	cfg := a.Config.Enrichment
	svc, err := enrichment.New(a.Generator, enrichment.Config{
		Workers:       cfg.Workers,
		MinConfidence: cfg.MinConfidence,
		Timeout:       cfg.Timeout(),
		MaxTokens:     cfg.MaxTokens,
		Overwrite:     cfg.Overwrite,
	}, a.Logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, svc.Close)
	return svc, nil
}

// SyncService opens the deal source and wires the sync job. Closing the App closes the source.
func (a *App) SyncService(ctx context.Context) (*syncuc.Service, error) {
	cfg := a.Config.Sync
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sync.dsn is required")
	}

	source, err := deals.Open(ctx, cfg.DSN, deals.Config{
		Table:         cfg.Table,
		PublishedOnly: cfg.PublishedOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("open deal source: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := source.Close(); err != nil {
			a.Logger.Warn("Failed to close deal source", zap.Error(err))
		}
	})

	var enricher syncuc.Enricher
	if cfg.Enrich {
		e, err := a.Enricher()
		if err != nil {
			return nil, err
		}
		if e != nil {
			enricher = e
		} else {
			a.Logger.Warn("sync.enrich is set but no generation model is configured, skipping enrichment")
		}
	}

	return syncuc.New(source, a.Index, a.DocEmbedder, enricher, syncuc.Config{
		PageSize:    cfg.PageSize,
		Concurrency: cfg.Concurrency,
		MaxRecords:  cfg.MaxRecords,
	}, a.Logger), nil
}

// embeddingHealthChecker adapts domain.Embedder to health.ProviderChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func (h embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
