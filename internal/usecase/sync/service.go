// Package sync rebuilds the candidate index from the deal source.
package sync

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/dealscout/internal/domain"
	"github.com/kailas-cloud/dealscout/internal/domain/candidate"
	"github.com/kailas-cloud/dealscout/internal/metrics"
)

// Defaults.
const (
	DefaultPageSize    = 200
	DefaultConcurrency = 2
)

// Config controls a sync run.
type Config struct {
	PageSize    int
	Concurrency int
	// MaxRecords stops reading after this many rows. Zero reads everything.
	MaxRecords int
}

// Report summarizes a sync run.
type Report struct {
	RunID    string        `json:"runId"`
	Read     int           `json:"read"`
	Upserted int           `json:"upserted"`
	Skipped  int           `json:"skipped"`
	Enriched int           `json:"enriched"`
	Tokens   int           `json:"tokens"`
	Duration time.Duration `json:"duration"`
}

// Service embeds deals from the source and upserts them into the index.
type Service struct {
	source   Source
	index    Index
	embedder domain.Embedder
	enricher Enricher
	cfg      Config
	logger   *zap.Logger
}

// New creates a sync service. enricher can be nil.
func New(source Source, index Index, embedder domain.Embedder, enricher Enricher, cfg Config, logger *zap.Logger) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Service{
		source:   source,
		index:    index,
		embedder: embedder,
		enricher: enricher,
		cfg:      cfg,
		logger:   logger,
	}
}

type counters struct {
	upserted atomic.Int64
	skipped  atomic.Int64
	enriched atomic.Int64
	tokens   atomic.Int64
}

// Run reads every page, embeds it and writes it to the index. Pages are processed
// concurrently up to Concurrency; the first error cancels the run.
func (s *Service) Run(ctx context.Context) (Report, error) {
	rep := Report{RunID: uuid.NewString()}
	start := time.Now()
	log := s.logger.With(zap.String("run_id", rep.RunID))

	err := s.run(ctx, log, &rep)
	rep.Duration = time.Since(start)

	if err != nil {
		metrics.SyncRunsTotal.WithLabelValues("error").Inc()
		log.Error("Sync run failed", zap.Int("read", rep.Read), zap.Error(err))
		return rep, err
	}

	metrics.SyncRunsTotal.WithLabelValues("ok").Inc()
	log.Info("Sync run completed",
		zap.Int("read", rep.Read),
		zap.Int("upserted", rep.Upserted),
		zap.Int("skipped", rep.Skipped),
		zap.Int("enriched", rep.Enriched),
		zap.Int("tokens", rep.Tokens),
		zap.Duration("duration", rep.Duration),
	)
	return rep, nil
}

func (s *Service) run(ctx context.Context, log *zap.Logger, rep *Report) error {
	if err := s.index.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}

	var c counters
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	fetchErr := func() error {
		after := ""
		for {
			limit := s.cfg.PageSize
			if s.cfg.MaxRecords > 0 {
				limit = min(limit, s.cfg.MaxRecords-rep.Read)
				if limit <= 0 {
					return nil
				}
			}

			page, err := s.source.Page(gctx, after, limit)
			if err != nil {
				return fmt.Errorf("read deals after %q: %w", after, err)
			}
			if len(page) == 0 {
				return nil
			}
			rep.Read += len(page)
			after = page[len(page)-1].ID

			log.Debug("Page fetched", zap.Int("size", len(page)), zap.String("last_id", after))
			g.Go(func() error { return s.processPage(gctx, page, &c) })

			if len(page) < limit {
				return nil
			}
		}
	}()

	waitErr := g.Wait()

	rep.Upserted = int(c.upserted.Load())
	rep.Skipped = int(c.skipped.Load())
	rep.Enriched = int(c.enriched.Load())
	rep.Tokens = int(c.tokens.Load())

	// Ошибка обработчика первична: чтение могло упасть из-за отменённого gctx.
	if waitErr != nil {
		return waitErr
	}
	return fetchErr
}

func (s *Service) processPage(ctx context.Context, page []candidate.Record, c *counters) error {
	if s.enricher != nil {
		n, err := s.enricher.Enrich(ctx, page)
		if err != nil {
			return fmt.Errorf("enrich page: %w", err)
		}
		c.enriched.Add(int64(n))
	}

	ready := make([]candidate.Record, 0, len(page))
	texts := make([]string, 0, len(page))
	for i := range page {
		rec := page[i]
		text := rec.ChunkText()
		if text == "" {
			c.skipped.Add(1)
			metrics.SyncRecordsTotal.WithLabelValues("skipped").Inc()
			continue
		}
		if err := rec.Validate(); err != nil {
			s.logger.Warn("Skipping invalid deal", zap.String("deal_id", rec.ID), zap.Error(err))
			c.skipped.Add(1)
			metrics.SyncRecordsTotal.WithLabelValues("skipped").Inc()
			continue
		}
		ready = append(ready, rec)
		texts = append(texts, text)
	}
	if len(ready) == 0 {
		return nil
	}

	res, err := domain.BatchEmbed(ctx, s.embedder, texts)
	if err != nil {
		return fmt.Errorf("embed page: %w", err)
	}
	if len(res.Embeddings) != len(ready) {
		return fmt.Errorf("embed page: got %d vectors for %d deals", len(res.Embeddings), len(ready))
	}
	for i := range ready {
		ready[i].Vector = res.Embeddings[i]
	}
	c.tokens.Add(int64(res.TotalTokens))

	if err := s.index.Upsert(ctx, ready); err != nil {
		return fmt.Errorf("upsert page: %w", err)
	}
	c.upserted.Add(int64(len(ready)))
	metrics.SyncRecordsTotal.WithLabelValues("upserted").Add(float64(len(ready)))
	return nil
}
