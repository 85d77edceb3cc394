package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dealscout/internal/domain"
	"github.com/kailas-cloud/dealscout/internal/domain/candidate"
	"github.com/kailas-cloud/dealscout/internal/metrics"
)

// Defaults.
const (
	DefaultWorkers       = 4
	DefaultMinConfidence = 0.6
	DefaultTimeout       = 30 * time.Second
	DefaultMaxTokens     = 200
)

// Enrichment outcome labels.
const (
	resultEnriched      = "enriched"
	resultLowConfidence = "low_confidence"
	resultFailed        = "failed"
)

// Config controls the enrichment stage.
type Config struct {
	Workers       int
	MinConfidence float64
	Timeout       time.Duration
	MaxTokens     int
	// Overwrite re-classifies records that already carry both attributes.
	Overwrite bool
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = DefaultMinConfidence
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
}

// Service infers business strategy and growth stage for deals with a text-generation model.
type Service struct {
	gen    Generator
	cfg    Config
	pool   *ants.Pool
	logger *zap.Logger
}

// New creates an enrichment service with its worker pool. Call Close to release the pool.
func New(gen Generator, cfg Config, logger *zap.Logger) (*Service, error) {
	cfg.applyDefaults()
	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create enrichment pool: %w", err)
	}
	return &Service{gen: gen, cfg: cfg, pool: pool, logger: logger}, nil
}

// Close releases the worker pool. The service must not be used afterwards.
func (s *Service) Close() {
	s.pool.Release()
}

// Enrich classifies records in place on a bounded worker pool and returns how many gained
// at least one attribute. Per-record failures are logged and never fail the stage.
func (s *Service) Enrich(ctx context.Context, records []candidate.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	var (
		wg       sync.WaitGroup
		enriched atomic.Int64
	)
	for i := range records {
		rec := &records[i]
		if !s.needsEnrichment(rec) {
			continue
		}
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return int(enriched.Load()), err
		}

		wg.Add(1)
		if err := s.pool.Submit(func() {
			defer wg.Done()
			if s.enrichOne(ctx, rec) {
				enriched.Add(1)
			}
		}); err != nil {
			wg.Done()
			wg.Wait()
			return int(enriched.Load()), fmt.Errorf("submit enrichment: %w", err)
		}
	}
	wg.Wait()

	return int(enriched.Load()), nil
}

func (s *Service) needsEnrichment(rec *candidate.Record) bool {
	if rec.ChunkText() == "" && strings.TrimSpace(rec.Title) == "" {
		return false
	}
	if s.cfg.Overwrite {
		return true
	}
	return rec.BusinessStrategy == nil || rec.GrowthStage == nil
}

func (s *Service) enrichOne(ctx context.Context, rec *candidate.Record) bool {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	res, err := s.gen.Generate(ctx, domain.GenerationRequest{
		System:    systemPrompt,
		Prompt:    buildPrompt(rec),
		MaxTokens: s.cfg.MaxTokens,
		JSON:      true,
	})
	if err != nil {
		metrics.EnrichmentTotal.WithLabelValues(resultFailed).Inc()
		s.logger.Warn("Enrichment request failed", zap.String("deal_id", rec.ID), zap.Error(err))
		return false
	}

	c, err := parseClassification(res.Text)
	if err != nil {
		metrics.EnrichmentTotal.WithLabelValues(resultFailed).Inc()
		s.logger.Warn("Malformed enrichment response", zap.String("deal_id", rec.ID), zap.Error(err))
		return false
	}

	changed := s.apply(rec, c)
	if changed {
		metrics.EnrichmentTotal.WithLabelValues(resultEnriched).Inc()
	} else {
		metrics.EnrichmentTotal.WithLabelValues(resultLowConfidence).Inc()
	}
	return changed
}

type classification struct {
	BusinessStrategy           *string  `json:"business_strategy"`
	BusinessStrategyConfidence *float64 `json:"business_strategy_confidence"`
	GrowthStage                *string  `json:"growth_stage"`
	GrowthStageConfidence      *float64 `json:"growth_stage_confidence"`
}

// parseClassification tolerates prose or code fences around the JSON object.
func parseClassification(text string) (classification, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return classification{}, errors.New("no JSON object in response")
	}
	var c classification
	if err := json.Unmarshal([]byte(text[start:end+1]), &c); err != nil {
		return classification{}, fmt.Errorf("decode classification: %w", err)
	}
	return c, nil
}

func (s *Service) apply(rec *candidate.Record, c classification) bool {
	changed := false
	if c.BusinessStrategy != nil && (s.cfg.Overwrite || rec.BusinessStrategy == nil) {
		st := candidate.Strategy(normalize(*c.BusinessStrategy))
		if st.Valid() && s.confident(c.BusinessStrategyConfidence) {
			conf := *c.BusinessStrategyConfidence
			rec.BusinessStrategy = &st
			rec.BusinessStrategyConfidence = &conf
			changed = true
		}
	}
	if c.GrowthStage != nil && (s.cfg.Overwrite || rec.GrowthStage == nil) {
		g := candidate.GrowthStage(normalize(*c.GrowthStage))
		if g.Valid() && s.confident(c.GrowthStageConfidence) {
			conf := *c.GrowthStageConfidence
			rec.GrowthStage = &g
			rec.GrowthStageConfidence = &conf
			changed = true
		}
	}
	return changed
}

func (s *Service) confident(c *float64) bool {
	return c != nil && *c >= s.cfg.MinConfidence && *c <= 1
}

func normalize(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	return strings.NewReplacer("-", "_", " ", "_").Replace(v)
}
