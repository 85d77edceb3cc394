package rollup

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/kailas-cloud/dealscout/internal/domain"
	"github.com/kailas-cloud/dealscout/internal/domain/candidate"
	"github.com/kailas-cloud/dealscout/internal/domain/search/query"
)

func newTestRetriever(idx Index, emb Embedder) *Retriever {
	return NewRetriever(idx, emb, RetrieverConfig{Dimensions: testDim}, nil)
}

func TestRetriever_ResolveK(t *testing.T) {
	r := NewRetriever(nil, nil, RetrieverConfig{DefaultK: 5, MaxK: 20}, nil)
	tests := []struct{ in, want int }{
		{0, 5}, {-3, 5}, {7, 7}, {20, 20}, {21, 20},
	}
	for _, tt := range tests {
		if got := r.ResolveK(tt.in); got != tt.want {
			t.Errorf("ResolveK(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestRetriever_UnsatisfiableSkipsProviders(t *testing.T) {
	idx := &fakeIndex{results: []candidate.Result{{ID: "x", Score: 1}}}
	emb := &hashEmbedder{}
	r := newTestRetriever(idx, emb)

	q := Normalize(candidate.Criteria{Industry: str("SaaS"), RevenueMin: f64(6e6), RevenueMax: f64(4e6)})
	got, err := r.Retrieve(context.Background(), q, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
	if idx.calls != 0 || emb.calls != 0 {
		t.Errorf("providers called: index=%d embed=%d", idx.calls, emb.calls)
	}
}

func TestRetriever_SortsDescendingAndTruncates(t *testing.T) {
	idx := &fakeIndex{results: []candidate.Result{
		{ID: "c", Score: 0.2},
		{ID: "a", Score: 0.9},
		{ID: "tie1", Score: 0.5},
		{ID: "b", Score: 0.7},
		{ID: "tie2", Score: 0.5},
		{ID: "neg", Score: -0.1},
	}}
	r := newTestRetriever(idx, &hashEmbedder{})

	got, err := r.Retrieve(context.Background(), Normalize(candidate.Criteria{Industry: str("SaaS")}), 5)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "b", "tie1", "tie2", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("position %d = %s, want %s", i, got[i].ID, want[i])
		}
		if i > 0 && got[i].Score > got[i-1].Score {
			t.Errorf("not sorted at %d", i)
		}
	}
	if idx.gotK != 5 {
		t.Errorf("index asked for k=%d", idx.gotK)
	}
}

func TestRetriever_DefaultK(t *testing.T) {
	idx := &fakeIndex{}
	r := newTestRetriever(idx, &hashEmbedder{})
	if _, err := r.Retrieve(context.Background(), query.Query{}, 0); err != nil {
		t.Fatal(err)
	}
	if idx.gotK != DefaultK {
		t.Errorf("k = %d, want %d", idx.gotK, DefaultK)
	}
}

func TestRetriever_EmptyTextUsesNeutralVector(t *testing.T) {
	idx := &fakeIndex{}
	emb := &hashEmbedder{}
	r := newTestRetriever(idx, emb)

	if _, err := r.Retrieve(context.Background(), Normalize(candidate.Criteria{RevenueMin: f64(1)}), 3); err != nil {
		t.Fatal(err)
	}
	if emb.calls != 0 {
		t.Error("embedder must not be called for empty text")
	}
	if len(idx.gotVec) != testDim {
		t.Fatalf("vector dim = %d", len(idx.gotVec))
	}
	var norm float64
	for _, v := range idx.gotVec {
		norm += float64(v) * float64(v)
		if v != idx.gotVec[0] {
			t.Fatal("neutral vector components must be equal")
		}
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("neutral vector norm = %v, want 1", norm)
	}
}

func TestRetriever_EmbedErrorIsRetrievalError(t *testing.T) {
	idx := &fakeIndex{}
	r := newTestRetriever(idx, &hashEmbedder{err: domain.ErrEmbeddingProviderError})

	_, err := r.Retrieve(context.Background(), Normalize(candidate.Criteria{Industry: str("SaaS")}), 5)
	var re *domain.RetrievalError
	if !errors.As(err, &re) || re.Stage != domain.StageEmbed {
		t.Fatalf("expected embed RetrievalError, got %v", err)
	}
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Error("cause should be preserved")
	}
	if idx.calls != 0 {
		t.Error("index must not be searched after an embed failure")
	}
}

func TestRetriever_DimensionMismatch(t *testing.T) {
	r := newTestRetriever(&fakeIndex{}, &hashEmbedder{dim: testDim + 1})
	_, err := r.Retrieve(context.Background(), Normalize(candidate.Criteria{Industry: str("SaaS")}), 5)
	if !errors.Is(err, domain.ErrRetrieval) || !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected retrieval dim mismatch, got %v", err)
	}
}

func TestRetriever_SearchErrorIsRetrievalError(t *testing.T) {
	r := newTestRetriever(&fakeIndex{err: domain.ErrIndexUnavailable}, &hashEmbedder{})
	_, err := r.Retrieve(context.Background(), query.Query{}, 5)

	var re *domain.RetrievalError
	if !errors.As(err, &re) || re.Stage != domain.StageSearch {
		t.Fatalf("expected search RetrievalError, got %v", err)
	}
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Error("cause should be preserved")
	}
}

type slowEmbedder struct{}

func (slowEmbedder) Embed(ctx context.Context, _ string) (domain.EmbeddingResult, error) {
	<-ctx.Done()
	return domain.EmbeddingResult{}, ctx.Err()
}

func TestRetriever_EmbedTimeout(t *testing.T) {
	r := NewRetriever(&fakeIndex{}, slowEmbedder{}, RetrieverConfig{
		Dimensions:   testDim,
		EmbedTimeout: 10 * time.Millisecond,
	}, nil)

	_, err := r.Retrieve(context.Background(), Normalize(candidate.Criteria{Industry: str("SaaS")}), 5)
	if !errors.Is(err, domain.ErrRetrieval) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected retrieval timeout, got %v", err)
	}
}

func TestNeutralVector(t *testing.T) {
	if NeutralVector(0) != nil {
		t.Error("dim 0 should give nil")
	}
	v := NeutralVector(4)
	for _, c := range v {
		if c != 0.5 {
			t.Errorf("component = %v, want 0.5", c)
		}
	}
}
