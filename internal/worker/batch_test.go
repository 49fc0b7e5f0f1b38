package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// fakeReindexer records the artifacts it was asked to retry
type fakeReindexer struct {
	mu      sync.Mutex
	seen    []string
	failing map[string]bool
}

func (f *fakeReindexer) Reindex(ctx context.Context, artifactID string) error {
	f.mu.Lock()
	f.seen = append(f.seen, artifactID)
	f.mu.Unlock()
	if f.failing[artifactID] {
		return errors.New("still down")
	}
	return nil
}

func TestReindexBatch(t *testing.T) {
	f := &fakeReindexer{failing: map[string]bool{"a2": true}}
	results := ReindexBatch(f, 2, []string{"a1", "a2", "a3"})

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	failed := 0
	for _, r := range results {
		if r.GetError() != nil {
			if r.ArtifactID != "a2" {
				t.Errorf("unexpected failure for %s", r.ArtifactID)
			}
			failed++
		}
	}
	if failed != 1 {
		t.Fatalf("expected 1 failure, got %d", failed)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.seen) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(f.seen))
	}
}

func TestReindexBatch_Empty(t *testing.T) {
	results := ReindexBatch(&fakeReindexer{}, 4, nil)
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}
