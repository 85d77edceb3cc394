package milvus

import (
	"context"
	"errors"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/kailas-cloud/dealscout/internal/domain"
	"github.com/kailas-cloud/dealscout/internal/domain/candidate"
	"github.com/kailas-cloud/dealscout/internal/domain/search/filter"
)

type fakeAPI struct {
	has        bool
	hasErr     error
	created    *entity.Schema
	indexField string
	loaded     string
	upserted   []entity.Column
	searchExpr string
	searchTopK int
	results    []client.SearchResult
	searchErr  error
}

func (f *fakeAPI) HasCollection(context.Context, string) (bool, error) { return f.has, f.hasErr }

func (f *fakeAPI) CreateCollection(_ context.Context, s *entity.Schema, _ int32, _ ...client.CreateCollectionOption) error {
	f.created = s
	return nil
}

func (f *fakeAPI) CreateIndex(_ context.Context, _, field string, _ entity.Index, _ bool, _ ...client.IndexOption) error {
	f.indexField = field
	return nil
}

func (f *fakeAPI) LoadCollection(_ context.Context, name string, _ bool, _ ...client.LoadCollectionOption) error {
	f.loaded = name
	return nil
}

func (f *fakeAPI) Upsert(_ context.Context, _, _ string, cols ...entity.Column) (entity.Column, error) {
	f.upserted = cols
	return nil, nil
}

func (f *fakeAPI) Search(_ context.Context, _ string, _ []string, expr string, _ []string,
	_ []entity.Vector, _ string, _ entity.MetricType, topK int,
	_ entity.SearchParam, _ ...client.SearchQueryOptionFunc,
) ([]client.SearchResult, error) {
	f.searchExpr = expr
	f.searchTopK = topK
	return f.results, f.searchErr
}

func (f *fakeAPI) Close() error { return nil }

func record(id string, revenue float64) candidate.Record {
	s := candidate.StrategyPlatform
	return candidate.Record{
		ID:               id,
		Vector:           []float32{0, 1},
		Title:            "Dental group",
		Revenue:          f64(revenue),
		BusinessStrategy: &s,
		Tags:             []string{"healthcare"},
	}
}

func TestEnsureIndex_CreatesMissingCollection(t *testing.T) {
	f := &fakeAPI{}
	r := newRepo(f, Config{Dimensions: 2})
	if err := r.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.created == nil || f.created.CollectionName != DefaultCollection {
		t.Fatalf("collection not created: %+v", f.created)
	}
	if len(f.created.Fields) != 3 || f.created.Fields[1].TypeParams["dim"] != "2" {
		t.Errorf("schema fields = %+v", f.created.Fields)
	}
	if f.indexField != "vector" || f.loaded != DefaultCollection {
		t.Errorf("index=%q loaded=%q", f.indexField, f.loaded)
	}
}

func TestEnsureIndex_ExistingCollectionOnlyLoads(t *testing.T) {
	f := &fakeAPI{has: true}
	r := newRepo(f, Config{Dimensions: 2, Collection: "deals"})
	if err := r.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.created != nil {
		t.Error("existing collection must not be recreated")
	}
	if f.loaded != "deals" {
		t.Errorf("loaded = %q", f.loaded)
	}
}

func TestUpsert(t *testing.T) {
	f := &fakeAPI{}
	r := newRepo(f, Config{Dimensions: 2})
	if err := r.Upsert(context.Background(), []candidate.Record{record("a", 1e6), record("b", 2e6)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.upserted) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(f.upserted))
	}
	ids, ok := f.upserted[0].(*entity.ColumnVarChar)
	if !ok || len(ids.Data()) != 2 || ids.Data()[1] != "b" {
		t.Errorf("id column = %+v", f.upserted[0])
	}

	err := r.Upsert(context.Background(), []candidate.Record{{ID: "c", Vector: []float32{1}}})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	rec := record("a", 5e6)
	meta, err := buildMetadata(&rec)
	if err != nil {
		t.Fatal(err)
	}
	f := &fakeAPI{results: []client.SearchResult{{
		ResultCount: 1,
		Scores:      []float32{0.75},
		Fields: client.ResultSet{
			entity.NewColumnVarChar("id", []string{"a"}),
			entity.NewColumnJSONBytes("metadata", [][]byte{meta}),
		},
	}}}
	r := newRepo(f, Config{Dimensions: 2})

	strategy, _ := filter.NewAnyOf("business_strategy", []string{"platform"})
	expr, _ := filter.NewExpression([]filter.Condition{strategy}, nil, nil)

	results, err := r.Search(context.Background(), expr, []float32{0, 1}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.searchExpr != `metadata["business_strategy"] in ["platform"]` || f.searchTopK != 3 {
		t.Errorf("expr=%q topK=%d", f.searchExpr, f.searchTopK)
	}
	if len(results) != 1 || results[0].ID != "a" || results[0].Score != 0.75 {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Record.Title != "Dental group" || *results[0].Record.Revenue != 5e6 {
		t.Errorf("record = %+v", results[0].Record)
	}
}

func TestSearch_ZeroHits(t *testing.T) {
	tests := []struct {
		name   string
		result client.SearchResult
	}{
		{"no columns", client.SearchResult{ResultCount: 0, Scores: []float32{}}},
		{"dynamic field error", client.SearchResult{
			ResultCount: 0,
			Err:         errors.New("extra output fields [metadata] found and result does not dynamic field"),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRepo(&fakeAPI{results: []client.SearchResult{tt.result}}, Config{Dimensions: 2})
			res, err := r.Search(context.Background(), filter.Expression{}, []float32{0, 1}, 5)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res == nil || len(res) != 0 {
				t.Errorf("res = %#v, want empty slice", res)
			}
		})
	}
}

func TestSearch_ResultError(t *testing.T) {
	r := newRepo(&fakeAPI{results: []client.SearchResult{{ResultCount: 1, Err: errors.New("bad shard")}}}, Config{Dimensions: 2})
	if _, err := r.Search(context.Background(), filter.Expression{}, []float32{0, 1}, 5); err == nil {
		t.Fatal("expected error for failed result with hits")
	}
}

func TestSearch_Errors(t *testing.T) {
	r := newRepo(&fakeAPI{searchErr: errors.New("rpc unavailable")}, Config{Dimensions: 2})
	if _, err := r.Search(context.Background(), filter.Expression{}, []float32{0, 1}, 3); !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Errorf("expected ErrIndexUnavailable, got %v", err)
	}

	res, err := r.Search(context.Background(), filter.Expression{}, []float32{0, 1}, 0)
	if err != nil || len(res) != 0 {
		t.Errorf("topK=0: res=%v err=%v", res, err)
	}
}

func TestBuildMetadata_OmitsAbsent(t *testing.T) {
	rec := candidate.Record{ID: "x", Industry: "Dental"}
	meta, err := buildMetadata(&rec)
	if err != nil {
		t.Fatal(err)
	}
	got := string(meta)
	want := `{"industry":"Dental","record":{"id":"x","industry":"Dental","isPublished":false,"isReviewed":false,"seen":false}}`
	if got != want {
		t.Errorf("metadata =\n%s\nwant\n%s", got, want)
	}
}
