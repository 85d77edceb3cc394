package rollup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dealscout/internal/domain"
	"github.com/kailas-cloud/dealscout/internal/domain/candidate"
	"github.com/kailas-cloud/dealscout/internal/metrics"
)

// NoCandidatesNarrative is returned for an empty result list. The generator is not called.
const NoCandidatesNarrative = "No rollup candidates matched the given criteria. " +
	"Consider widening the revenue or EBITDA margin ranges, or removing the strategy filter."

// Synthesis defaults.
const (
	DefaultSynthesisMaxTokens     = 500
	DefaultSynthesisTemperature   = 0.3
	DefaultSynthesisMaxCandidates = 5
	DefaultSynthesisTimeout       = 20 * time.Second
)

const synthesisSystemPrompt = "You are an M&A analyst specializing in roll-up strategies. " +
	"Given acquisition criteria and a ranked list of candidate businesses, write a short narrative " +
	"explaining how well the candidates fit the criteria and which ones stand out. " +
	"Only use the facts provided. Do not invent figures."

const notAvailable = "n/a"

// SynthesizerConfig tunes narrative generation. Zero values fall back to defaults.
type SynthesizerConfig struct {
	MaxTokens     int
	Temperature   *float32 // nil means DefaultSynthesisTemperature, zero is deterministic
	MaxCandidates int
	Timeout       time.Duration
}

func (c *SynthesizerConfig) applyDefaults() {
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultSynthesisMaxTokens
	}
	t := float32(DefaultSynthesisTemperature)
	if c.Temperature != nil {
		t = *c.Temperature
	}
	c.Temperature = &t
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = DefaultSynthesisMaxCandidates
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultSynthesisTimeout
	}
}

// Synthesizer writes a narrative summary over retrieved candidates. Results are never cached.
type Synthesizer struct {
	gen    Generator
	cfg    SynthesizerConfig
	logger *zap.Logger
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(gen Generator, cfg SynthesizerConfig, logger *zap.Logger) *Synthesizer {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{gen: gen, cfg: cfg, logger: logger}
}

// Synthesize returns a narrative for the results. Any generator failure or an empty
// completion is reported as *domain.SynthesisError.
func (s *Synthesizer) Synthesize(
	ctx context.Context, c candidate.Criteria, results []candidate.Result,
) (_ string, err error) {
	if len(results) == 0 {
		return NoCandidatesNarrative, nil
	}

	ctx, span := tracer.Start(ctx, "rollup.Synthesize", trace.WithAttributes(
		attribute.Int("rollup.candidates", len(results)),
		attribute.Int("rollup.max_tokens", s.cfg.MaxTokens),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	res, err := s.gen.Generate(genCtx, domain.GenerationRequest{
		System:      synthesisSystemPrompt,
		Prompt:      BuildPrompt(c, results, s.cfg.MaxCandidates),
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: *s.cfg.Temperature,
	})
	metrics.ObserveStage(metrics.StageSynthesize, time.Since(start).Seconds(), err)
	if err != nil {
		return "", domain.NewSynthesisError(err)
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		return "", domain.NewSynthesisError(errors.New("empty completion"))
	}

	s.logger.Debug("Synthesis completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("prompt_tokens", res.PromptTokens),
		zap.Int("completion_tokens", res.CompletionTokens),
	)
	return text, nil
}

// BuildPrompt renders the criteria and up to limit candidates as a deterministic user prompt.
func BuildPrompt(c candidate.Criteria, results []candidate.Result, limit int) string {
	var b strings.Builder

	b.WriteString("Acquisition criteria:\n")
	fmt.Fprintf(&b, "- Industry: %s\n", textOr(c.Industry))
	fmt.Fprintf(&b, "- Location: %s\n", textOr(c.Location))
	fmt.Fprintf(&b, "- Revenue: %s\n", bounds(c.RevenueMin, c.RevenueMax, ""))
	fmt.Fprintf(&b, "- EBITDA margin: %s\n", bounds(c.EBITDAMarginMin, c.EBITDAMarginMax, "%"))
	fmt.Fprintf(&b, "- Strategy: %s\n", strategies(c.BusinessStrategy))

	n := len(results)
	if limit > 0 && n > limit {
		n = limit
	}
	fmt.Fprintf(&b, "\nTop %d of %d candidates (most similar first):\n", n, len(results))
	for i := 0; i < n; i++ {
		r := results[i]
		rec := r.Record
		fmt.Fprintf(&b, "%d. id=%s score=%s\n", i+1, r.ID, strconv.FormatFloat(r.Score, 'f', 4, 64))
		fmt.Fprintf(&b, "   title: %s\n", orNA(rec.Title))
		fmt.Fprintf(&b, "   industry: %s\n", orNA(rec.Industry))
		fmt.Fprintf(&b, "   location: %s\n", orNA(rec.CompanyLocation))
		fmt.Fprintf(&b, "   revenue: %s\n", number(rec.Revenue, ""))
		fmt.Fprintf(&b, "   ebitdaMargin: %s\n", number(rec.EBITDAMargin, "%"))
		fmt.Fprintf(&b, "   askingPrice: %s\n", number(rec.AskingPrice, ""))
		fmt.Fprintf(&b, "   businessStrategy: %s\n", strategyOf(rec.BusinessStrategy))
		fmt.Fprintf(&b, "   growthStage: %s\n", stageOf(rec.GrowthStage))
		fmt.Fprintf(&b, "   caption: %s\n", orNA(rec.DealCaption))
	}

	b.WriteString("\nSummarize the fit of these candidates for a roll-up in at most three short paragraphs.")
	return b.String()
}

func orNA(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return notAvailable
	}
	return s
}

func textOr(s *string) string {
	if s == nil {
		return notAvailable
	}
	return orNA(*s)
}

func number(v *float64, unit string) string {
	if v == nil {
		return notAvailable
	}
	return strconv.FormatFloat(*v, 'f', -1, 64) + unit
}

func bounds(lower, upper *float64, unit string) string {
	switch {
	case lower == nil && upper == nil:
		return "any"
	case upper == nil:
		return "at least " + number(lower, unit)
	case lower == nil:
		return "at most " + number(upper, unit)
	}
	return number(lower, unit) + " to " + number(upper, unit)
}

func strategies(in []candidate.Strategy) string {
	if len(in) == 0 {
		return "any"
	}
	return strings.Join(uniqueStrategies(in), ", ")
}

func strategyOf(s *candidate.Strategy) string {
	if s == nil {
		return notAvailable
	}
	return string(*s)
}

func stageOf(g *candidate.GrowthStage) string {
	if g == nil {
		return notAvailable
	}
	return string(*g)
}
