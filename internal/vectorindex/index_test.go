package vectorindex

import (
	"math"
	"testing"
)

func TestCosine01(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.5},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		if got := Cosine01(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: Cosine01 = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIndex_Search(t *testing.T) {
	idx := New()
	idx.Rebuild([]Entry{
		{ID: "n1", Vector: []float32{1, 0}},
		{ID: "n2", Vector: []float32{0, 1}},
		{ID: "n3", Vector: []float32{0.9, 0.1}},
	})

	hits := idx.Search([]float32{1, 0}, 2)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != "n1" {
		t.Errorf("expected n1 first, got %s", hits[0].ID)
	}
	if hits[1].ID != "n3" {
		t.Errorf("expected n3 second, got %s", hits[1].ID)
	}
	if hits[0].Score < hits[1].Score {
		t.Error("hits not sorted descending")
	}
}

func TestIndex_Search_TieBreaksOnID(t *testing.T) {
	idx := New()
	idx.Rebuild([]Entry{
		{ID: "b", Vector: []float32{1, 0}},
		{ID: "a", Vector: []float32{1, 0}},
	})

	hits := idx.Search([]float32{1, 0}, 2)
	if hits[0].ID != "a" || hits[1].ID != "b" {
		t.Fatalf("expected deterministic id order, got %s then %s", hits[0].ID, hits[1].ID)
	}
}

func TestIndex_Search_Empty(t *testing.T) {
	idx := New()
	if hits := idx.Search([]float32{1, 0}, 5); hits != nil {
		t.Fatalf("expected nil for empty index, got %v", hits)
	}
	idx.Rebuild([]Entry{{ID: "n1", Vector: []float32{1, 0}}})
	if hits := idx.Search([]float32{1, 0}, 0); hits != nil {
		t.Fatalf("expected nil for k=0, got %v", hits)
	}
}

func TestIndex_MaxSimilarity(t *testing.T) {
	idx := New()
	if got := idx.MaxSimilarity([]float32{1, 0}); got != 0 {
		t.Fatalf("empty index should score 0, got %v", got)
	}

	idx.Rebuild([]Entry{
		{ID: "n1", Vector: []float32{0, 1}},
		{ID: "n2", Vector: []float32{1, 0}},
	})
	if got := idx.MaxSimilarity([]float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Fatalf("expected max similarity 1, got %v", got)
	}
}

func TestIndex_RebuildSwaps(t *testing.T) {
	idx := New()
	idx.Rebuild([]Entry{{ID: "old", Vector: []float32{1, 0}}})
	idx.Rebuild([]Entry{{ID: "new", Vector: []float32{1, 0}}})

	hits := idx.Search([]float32{1, 0}, 10)
	if len(hits) != 1 || hits[0].ID != "new" {
		t.Fatalf("rebuild should replace contents, got %v", hits)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if r.Has("hlc-2024") {
		t.Fatal("empty registry should not report a namespace")
	}

	idx := r.Get("hlc-2024")
	if idx == nil {
		t.Fatal("Get should lazily create an index")
	}
	if r.Has("hlc-2024") {
		t.Fatal("empty index should not count as present")
	}

	idx.Rebuild([]Entry{{ID: "n1", Vector: []float32{1}}})
	if !r.Has("hlc-2024") {
		t.Fatal("populated index should be reported")
	}
	if r.Get("hlc-2024") != idx {
		t.Fatal("Get should return the same index")
	}
}
