package enrichment

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dealscout/internal/domain"
	"github.com/kailas-cloud/dealscout/internal/domain/candidate"
	"github.com/kailas-cloud/dealscout/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterRollupMetrics()
	os.Exit(m.Run())
}

// fakeGenerator answers per deal title.
type fakeGenerator struct {
	mu       sync.Mutex
	byTitle  map[string]string
	errTitle string
	prompts  []domain.GenerationRequest
}

func (f *fakeGenerator) Generate(_ context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, req)
	f.mu.Unlock()

	for title, reply := range f.byTitle {
		if strings.Contains(req.Prompt, "Title: "+title+"\n") {
			if title == f.errTitle {
				return domain.GenerationResult{}, errors.New("provider down")
			}
			return domain.GenerationResult{Text: reply}, nil
		}
	}
	return domain.GenerationResult{Text: "{}"}, nil
}

func newService(t *testing.T, gen Generator, cfg Config) *Service {
	t.Helper()
	svc, err := New(gen, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

func deal(id, title string) candidate.Record {
	return candidate.Record{ID: id, Title: title, Description: title + " business"}
}

func TestEnrich(t *testing.T) {
	gen := &fakeGenerator{
		byTitle: map[string]string{
			"Dental":   `{"business_strategy":"platform","business_strategy_confidence":0.9,"growth_stage":"mature","growth_stage_confidence":0.8}`,
			"HVAC":     "```json\n{\"business_strategy\":\"Add-On\",\"business_strategy_confidence\":0.75,\"growth_stage\":null}\n```",
			"Plumbing": `{"business_strategy":"platform","business_strategy_confidence":0.3,"growth_stage":"growth","growth_stage_confidence":0.2}`,
			"Landscap": `{"business_strategy":"moonshot","business_strategy_confidence":0.99}`,
			"Broken":   `not json`,
			"Failing":  `{}`,
		},
		errTitle: "Failing",
	}
	svc := newService(t, gen, Config{Workers: 3, MinConfidence: 0.6})

	records := []candidate.Record{
		deal("1", "Dental"),
		deal("2", "HVAC"),
		deal("3", "Plumbing"),
		deal("4", "Landscap"),
		deal("5", "Broken"),
		deal("6", "Failing"),
	}

	n, err := svc.Enrich(context.Background(), records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("enriched = %d, want 2", n)
	}

	if s := records[0].BusinessStrategy; s == nil || *s != candidate.StrategyPlatform {
		t.Errorf("dental strategy = %v", s)
	}
	if g := records[0].GrowthStage; g == nil || *g != candidate.GrowthMature || *records[0].GrowthStageConfidence != 0.8 {
		t.Errorf("dental stage = %v", g)
	}
	if s := records[1].BusinessStrategy; s == nil || *s != candidate.StrategyAddOn {
		t.Errorf("hvac strategy = %v", s)
	}
	if records[1].GrowthStage != nil {
		t.Error("null growth stage must stay absent")
	}
	for _, i := range []int{2, 3, 4, 5} {
		if records[i].BusinessStrategy != nil || records[i].GrowthStage != nil {
			t.Errorf("record %s should stay unclassified: %+v", records[i].ID, records[i])
		}
	}
	if len(gen.prompts) != 6 {
		t.Errorf("expected 6 generator calls, got %d", len(gen.prompts))
	}
	if !gen.prompts[0].JSON || gen.prompts[0].System == "" {
		t.Error("classification must request JSON with a system prompt")
	}
}

func TestEnrich_SkipsClassifiedAndEmpty(t *testing.T) {
	gen := &fakeGenerator{}
	svc := newService(t, gen, Config{})

	s := candidate.StrategyTurnaround
	g := candidate.GrowthDeclining
	records := []candidate.Record{
		{ID: "done", Title: "Print shop", BusinessStrategy: &s, GrowthStage: &g},
		{ID: "empty"},
	}
	n, err := svc.Enrich(context.Background(), records)
	if err != nil || n != 0 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if len(gen.prompts) != 0 {
		t.Errorf("expected no generator calls, got %d", len(gen.prompts))
	}
}

func TestEnrich_OverwriteReclassifies(t *testing.T) {
	gen := &fakeGenerator{byTitle: map[string]string{
		"Print": `{"business_strategy":"consolidation","business_strategy_confidence":0.95}`,
	}}
	svc := newService(t, gen, Config{Overwrite: true})

	s := candidate.StrategyTurnaround
	records := []candidate.Record{{ID: "1", Title: "Print", BusinessStrategy: &s}}
	n, err := svc.Enrich(context.Background(), records)
	if err != nil || n != 1 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if *records[0].BusinessStrategy != candidate.StrategyConsolidation {
		t.Errorf("strategy = %v", *records[0].BusinessStrategy)
	}
}

func TestEnrich_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newService(t, &fakeGenerator{}, Config{})
	_, err := svc.Enrich(ctx, []candidate.Record{deal("1", "Dental")})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestEnrich_PoolSharedAcrossPages(t *testing.T) {
	gen := &fakeGenerator{byTitle: map[string]string{
		"Dental": `{"business_strategy":"platform","business_strategy_confidence":0.9}`,
	}}
	svc := newService(t, gen, Config{Workers: 2})
	pool := svc.pool

	for page := 0; page < 3; page++ {
		records := []candidate.Record{deal("1", "Dental"), deal("2", "Dental")}
		n, err := svc.Enrich(context.Background(), records)
		if err != nil || n != 2 {
			t.Fatalf("page %d: n=%d err=%v", page, n, err)
		}
	}
	if svc.pool != pool || pool.IsClosed() {
		t.Error("pool must outlive Enrich calls")
	}
	if pool.Cap() != 2 {
		t.Errorf("pool cap = %d, want 2", pool.Cap())
	}
}

func TestClose_ReleasesPool(t *testing.T) {
	svc, err := New(&fakeGenerator{}, Config{}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	svc.Close()
	svc.Close()

	if !svc.pool.IsClosed() {
		t.Fatal("pool should be closed")
	}
	_, err = svc.Enrich(context.Background(), []candidate.Record{deal("1", "Dental")})
	if !errors.Is(err, ants.ErrPoolClosed) {
		t.Errorf("expected ants.ErrPoolClosed, got %v", err)
	}
}

func TestBuildPrompt(t *testing.T) {
	rev := 2.5e6
	rec := candidate.Record{Title: "Dental", Industry: "Healthcare", Revenue: &rev}
	p := buildPrompt(&rec)

	for _, want := range []string{
		"Allowed business_strategy values: platform, add_on,",
		"Allowed growth_stage values: early, growth, mature, declining",
		"- Title: Dental\n",
		"- Revenue: 2500000\n",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
	if strings.Contains(p, "Location") {
		t.Error("empty fields must be omitted")
	}
}

func TestParseClassification(t *testing.T) {
	if _, err := parseClassification("no braces"); err == nil {
		t.Error("expected error without JSON object")
	}
	c, err := parseClassification(`Sure! {"growth_stage":"early","growth_stage_confidence":1}`)
	if err != nil {
		t.Fatal(err)
	}
	if c.GrowthStage == nil || *c.GrowthStage != "early" {
		t.Errorf("growth stage = %v", c.GrowthStage)
	}
}
