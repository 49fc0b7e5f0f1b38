package embed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/veridexhq/veridex/internal/model"
)

func noSleep(t *testing.T) {
	t.Helper()
	orig := sleepFunc
	sleepFunc = func(time.Duration) {}
	t.Cleanup(func() { sleepFunc = orig })
}

type embeddingsPayload struct {
	Input []string `json:"input"`
}

func embeddingsServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func testEmbedder(t *testing.T, baseURL string) *OpenAIEmbedder {
	t.Helper()
	e, err := NewOpenAIEmbedder(model.EmbeddingConfig{
		Provider:   "openai",
		Model:      "text-embedding-3-small",
		APIKey:     "test-key",
		BaseURL:    baseURL + "/v1",
		Dimensions: 3,
		Timeout:    5,
		BatchSize:  2,
	})
	if err != nil {
		t.Fatalf("build embedder: %v", err)
	}
	return e
}

func TestOpenAIEmbedder_EmbedBatch(t *testing.T) {
	var calls int32
	ts := embeddingsServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)

		var payload embeddingsPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}

		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, len(payload.Input))
		for i := range payload.Input {
			data[i] = item{Embedding: []float32{float32(i), 1, 0}, Index: i}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data":   data,
			"model":  "text-embedding-3-small",
		})
	})

	e := testEmbedder(t, ts.URL)
	vectors, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vectors))
	}
	// Batch size 2 means two API calls for three texts
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 API calls, got %d", got)
	}
}

func TestOpenAIEmbedder_RetryThenSuccess(t *testing.T) {
	noSleep(t)
	var calls int32
	ts := embeddingsServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data": []map[string]interface{}{
				{"embedding": []float32{1, 0, 0}, "index": 0},
			},
			"model": "text-embedding-3-small",
		})
	})

	e := testEmbedder(t, ts.URL)
	vectors, err := e.EmbedBatch(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("EmbedBatch after retry: %v", err)
	}
	if len(vectors) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(vectors))
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestOpenAIEmbedder_UnavailableAfterRetries(t *testing.T) {
	noSleep(t)
	ts := embeddingsServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	e := testEmbedder(t, ts.URL)
	_, err := e.EmbedBatch(context.Background(), []string{"a"})
	if !errors.Is(err, model.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestOpenAIEmbedder_EmptyInput(t *testing.T) {
	e := testEmbedder(t, "http://localhost:1")
	vectors, err := e.EmbedBatch(context.Background(), nil)
	if err != nil || vectors != nil {
		t.Fatalf("empty input should be a no-op, got %v / %v", vectors, err)
	}
}

func TestNewOpenAIEmbedder_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIEmbedder(model.EmbeddingConfig{}); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestNewEmbedder_Disabled(t *testing.T) {
	e, err := NewEmbedder(model.EmbeddingConfig{Provider: ""})
	if err != nil {
		t.Fatalf("disabled provider should not error: %v", err)
	}
	if e != nil {
		t.Fatal("disabled provider should yield nil embedder")
	}
}
