package rollup

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dealscout/internal/domain"
	"github.com/kailas-cloud/dealscout/internal/domain/candidate"
	"github.com/kailas-cloud/dealscout/internal/logger"
	"github.com/kailas-cloud/dealscout/internal/metrics"
)

// Options control a single FindCandidates call.
type Options struct {
	// K is the number of candidates to return. Zero or negative means the configured default.
	K int
	// Summary requests a narrative over the results.
	Summary bool
}

// Outcome is the result of a rollup search.
type Outcome struct {
	Candidates []candidate.Result
	// Summary is empty when not requested or when synthesis failed.
	Summary   string
	QueryText string
}

// Service orchestrates validation, normalization, retrieval and optional synthesis.
type Service struct {
	retriever *Retriever
	synth     *Synthesizer
	logger    *zap.Logger
}

// New creates a rollup service. synth may be nil when no generator is configured.
func New(retriever *Retriever, synth *Synthesizer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{retriever: retriever, synth: synth, logger: logger}
}

// FindCandidates validates the criteria and returns ranked candidates.
// Synthesis failures never fail the call: the outcome then has an empty summary.
func (s *Service) FindCandidates(
	ctx context.Context, c candidate.Criteria, opts Options,
) (Outcome, error) {
	if err := c.Validate(); err != nil {
		return Outcome{}, err
	}

	q := Normalize(c)

	results, err := s.retriever.Retrieve(ctx, q, opts.K)
	if err != nil {
		return Outcome{}, fmt.Errorf("retrieve: %w", err)
	}

	out := Outcome{Candidates: results, QueryText: q.Text()}

	switch {
	case !opts.Summary:
		metrics.RollupSynthesisTotal.WithLabelValues(metrics.SynthesisNotRequest).Inc()
	case s.synth == nil:
		metrics.RollupSynthesisTotal.WithLabelValues(metrics.SynthesisDisabled).Inc()
	default:
		out.Summary, err = s.summarize(ctx, c, results)
		if err != nil {
			return Outcome{}, err
		}
	}

	return out, nil
}

func (s *Service) summarize(ctx context.Context, c candidate.Criteria, results []candidate.Result) (string, error) {
	summary, err := s.synth.Synthesize(ctx, c, results)
	if err == nil {
		outcome := metrics.SynthesisOK
		if len(results) == 0 {
			outcome = metrics.SynthesisNoResults
		}
		metrics.RollupSynthesisTotal.WithLabelValues(outcome).Inc()
		return summary, nil
	}

	var se *domain.SynthesisError
	if !errors.As(err, &se) {
		return "", fmt.Errorf("synthesize: %w", err)
	}

	metrics.RollupSynthesisTotal.WithLabelValues(metrics.SynthesisFailed).Inc()
	logger.FromContextOr(ctx, s.logger).Warn("Synthesis failed, returning candidates without summary",
		zap.Int("candidates", len(results)),
		zap.Error(err),
	)
	return "", nil
}
