package rollup

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/kailas-cloud/dealscout/internal/domain"
	"github.com/kailas-cloud/dealscout/internal/domain/candidate"
	"github.com/kailas-cloud/dealscout/internal/domain/search/filter"
)

const testDim = 16

func f64(v float64) *float64 { return &v }
func str(v string) *string   { return &v }

// hashEmbedder is a deterministic bag-of-words embedder: each lowercase token increments one bucket.
type hashEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
	dim   int
}

func (e *hashEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	dim := e.dim
	if dim == 0 {
		dim = testDim
	}
	return domain.EmbeddingResult{Embedding: bagOfWords(text, dim), TotalTokens: 1}, nil
}

func bagOfWords(text string, dim int) []float32 {
	v := make([]float32, dim)
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		v[h.Sum32()%uint32(dim)]++
	}
	return v
}

type fakeIndex struct {
	results []candidate.Result
	err     error
	calls   int
	gotK    int
	gotVec  []float32
	gotExpr filter.Expression
}

func (f *fakeIndex) Search(
	ctx context.Context, filters filter.Expression, vector []float32, topK int,
) ([]candidate.Result, error) {
	f.calls++
	f.gotK = topK
	f.gotVec = vector
	f.gotExpr = filters
	if f.err != nil {
		return nil, f.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]candidate.Result, len(f.results))
	copy(out, f.results)
	return out, nil
}

type fakeGenerator struct {
	text  string
	err   error
	calls int
	last  domain.GenerationRequest
}

func (g *fakeGenerator) Generate(_ context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	g.calls++
	g.last = req
	if g.err != nil {
		return domain.GenerationResult{}, g.err
	}
	return domain.GenerationResult{Text: g.text, PromptTokens: 100, CompletionTokens: 40}, nil
}
