package db

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestIndexBuilder_CandidateShape(t *testing.T) {
	idx, err := NewIndex("dealscout:candidate:idx").
		Prefix("dealscout:candidate:").
		Numerics("revenue", "ebitda_margin").
		TagWithOpts("tags", ",", false).
		Tag("business_strategy").
		VectorHNSW("vector", 1536, DistanceCosine, 16, 200).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if idx.StorageType != StorageHash {
		t.Errorf("storage = %q, want HASH", idx.StorageType)
	}
	if len(idx.Fields) != 5 {
		t.Fatalf("fields count = %d, want 5", len(idx.Fields))
	}
	if idx.Fields[0].Name != "revenue" || idx.Fields[0].Type != IndexFieldNumeric {
		t.Errorf("field[0] = %+v, want revenue NUMERIC", idx.Fields[0])
	}
	if idx.Fields[2].TagSeparator != "," || idx.Fields[2].TagCaseSensitive {
		t.Errorf("tags options = %+v", idx.Fields[2])
	}
	v := idx.Fields[4]
	if v.VectorAlgo != VectorHNSW || v.VectorDim != 1536 || v.VectorM != 16 || v.VectorEFConstruct != 200 {
		t.Errorf("vector field = %+v", v)
	}
}

func TestIndexBuilder_VectorFlat(t *testing.T) {
	idx, err := NewIndex("flat-idx").
		VectorFlat("vector", 8, DistanceCosine, 1024).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	f := idx.Fields[0]
	if f.VectorAlgo != VectorFlat || f.VectorBlockSize != 1024 {
		t.Errorf("field = %+v", f)
	}
}

func TestIndexBuilder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder func() (*IndexDefinition, error)
		wantErr string
	}{
		{
			name:    "empty name",
			builder: func() (*IndexDefinition, error) { return NewIndex("").Tag("x").Build() },
			wantErr: "index name is required",
		},
		{
			name:    "no fields",
			builder: func() (*IndexDefinition, error) { return NewIndex("idx").Build() },
			wantErr: "at least one field",
		},
		{
			name: "vector without dim",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx").VectorFlat("v", 0, DistanceCosine, 0).Build()
			},
			wantErr: "positive DIM",
		},
		{
			name: "two vector fields",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx").
					VectorFlat("a", 4, DistanceCosine, 0).
					VectorHNSW("b", 4, DistanceCosine, 16, 200).
					Build()
			},
			wantErr: "at most one vector",
		},
		{
			name:    "invalid characters",
			builder: func() (*IndexDefinition, error) { return NewIndex("idx with spaces").Tag("x").Build() },
			wantErr: "invalid characters",
		},
		{
			name:    "duplicate field",
			builder: func() (*IndexDefinition, error) { return NewIndex("idx").Tag("x").Numeric("x").Build() },
			wantErr: "duplicate field name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got error %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestIndexDefinition_String(t *testing.T) {
	idx, err := NewIndex("cand-idx").
		Prefix("cand:").
		Tag("industry_tag").
		VectorHNSW("vector", 512, DistanceCosine, 16, 200).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := "FT.CREATE cand-idx ON HASH PREFIX cand: SCHEMA industry_tag TAG vector VECTOR HNSW 512 COSINE"
	if got := idx.String(); got != want {
		t.Errorf("String() = %q\nwant       %q", got, want)
	}
}

func TestIsValidIdentifier(t *testing.T) {
	for _, ok := range []string{"dealscout:candidate:idx", "a-b_c", "X1"} {
		if !IsValidIdentifier(ok) {
			t.Errorf("%q should be valid", ok)
		}
	}
	for _, bad := range []string{"", "a b", "idx*", "ключ"} {
		if IsValidIdentifier(bad) {
			t.Errorf("%q should be invalid", bad)
		}
	}
}

func TestError_Unwrap(t *testing.T) {
	err := &Error{Op: OpSearch, Err: ErrIndexNotFound}
	if !errors.Is(err, ErrIndexNotFound) {
		t.Error("expected unwrap to sentinel")
	}
	if err.Error() != "FT.SEARCH: db: index not found" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestEncodeVector_LittleEndian(t *testing.T) {
	b := EncodeVector([]float32{1.5, -2})
	if len(b) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(b))
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32([]byte(b[:4]))); got != 1.5 {
		t.Errorf("first component = %v", got)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32([]byte(b[4:]))); got != -2 {
		t.Errorf("second component = %v", got)
	}
	if EncodeVector(nil) != "" {
		t.Error("nil vector should encode to empty string")
	}
}
