package vectorindex

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
)

// Hit is one nearest-neighbor result
type Hit struct {
	ID    string
	Score float64 // Cosine similarity normalized to [0,1]
}

// Searcher is the retrieval contract EvidenceMapper depends on, so the
// backend can be swapped (brute force in-process today, an ANN service
// later) without touching mapper logic.
type Searcher interface {
	Search(vector []float32, k int) []Hit
}

// Entry is one indexed vector
type Entry struct {
	ID     string
	Vector []float32
}

// Index is a brute-force cosine index. Rebuilds stage a new snapshot and
// swap it atomically, so readers never see a partially-built index.
type Index struct {
	snapshot atomic.Pointer[[]Entry]
}

// New creates an empty index
func New() *Index {
	idx := &Index{}
	empty := []Entry{}
	idx.snapshot.Store(&empty)
	return idx
}

// Rebuild replaces the index contents in one swap
func (idx *Index) Rebuild(entries []Entry) {
	staged := make([]Entry, len(entries))
	copy(staged, entries)
	idx.snapshot.Store(&staged)
}

// Len returns the number of indexed vectors
func (idx *Index) Len() int {
	return len(*idx.snapshot.Load())
}

// Search returns the k nearest entries by cosine similarity, best first.
// Ties break on id so results are deterministic.
func (idx *Index) Search(vector []float32, k int) []Hit {
	entries := *idx.snapshot.Load()
	if k <= 0 || len(entries) == 0 {
		return nil
	}

	hits := make([]Hit, 0, len(entries))
	for _, e := range entries {
		hits = append(hits, Hit{ID: e.ID, Score: Cosine01(vector, e.Vector)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// MaxSimilarity returns the best cosine score against the index, or 0 for
// an empty index. Used for redundancy scoring.
func (idx *Index) MaxSimilarity(vector []float32) float64 {
	best := 0.0
	for _, e := range *idx.snapshot.Load() {
		if s := Cosine01(vector, e.Vector); s > best {
			best = s
		}
	}
	return best
}

// Cosine01 is cosine similarity mapped from [-1,1] to [0,1]. Mismatched
// or zero vectors score 0.
func Cosine01(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return (cos + 1) / 2
}

// Registry maps a standard set (or other namespace) to its index
type Registry struct {
	mu      sync.RWMutex
	indexes map[string]*Index
}

// NewRegistry creates an empty index registry
func NewRegistry() *Registry {
	return &Registry{indexes: make(map[string]*Index)}
}

// Get returns the index for a namespace, creating it if needed
func (r *Registry) Get(namespace string) *Index {
	r.mu.RLock()
	idx, ok := r.indexes[namespace]
	r.mu.RUnlock()
	if ok {
		return idx
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if idx, ok := r.indexes[namespace]; ok {
		return idx
	}
	idx = New()
	r.indexes[namespace] = idx
	return idx
}

// Has reports whether a namespace holds any vectors
func (r *Registry) Has(namespace string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.indexes[namespace]
	return ok && idx.Len() > 0
}
