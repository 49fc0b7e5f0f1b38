package crosswalk

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/veridexhq/veridex/internal/graph"
	"github.com/veridexhq/veridex/internal/llm"
	"github.com/veridexhq/veridex/internal/logger"
	"github.com/veridexhq/veridex/internal/model"
	"github.com/veridexhq/veridex/internal/store"
)

// scriptedProvider returns one canned completion per call
type scriptedProvider struct {
	responses []string
	calls     int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) IsAvailable(ctx context.Context) bool { return true }

func (p *scriptedProvider) Complete(ctx context.Context, req llm.CompleteRequest) (*llm.CompleteResponse, error) {
	i := p.calls
	p.calls++
	if i >= len(p.responses) {
		return nil, errors.New("no more responses")
	}
	return &llm.CompleteResponse{Text: p.responses[i], Model: "scripted-1"}, nil
}

func testRegistry(t *testing.T) *graph.Registry {
	t.Helper()
	hlc := graph.NewGraph(model.StandardSet{ID: "hlc-2024", Framework: "HLC", Version: "2024"})
	hlc.AddNode(model.StandardNode{ID: "hlc-2024:1", SetID: "hlc-2024", Code: "1", Title: "Assessment of student learning outcomes", Level: model.LevelStandard})
	hlc.AddNode(model.StandardNode{ID: "hlc-2024:2", SetID: "hlc-2024", Code: "2", Title: "Financial resources and planning", Level: model.LevelStandard})

	sacs := graph.NewGraph(model.StandardSet{ID: "sacs-2024", Framework: "SACSCOC", Version: "2024"})
	sacs.AddNode(model.StandardNode{ID: "sacs-2024:8.1", SetID: "sacs-2024", Code: "8.1", Title: "Student learning assessment processes", Level: model.LevelStandard})
	sacs.AddNode(model.StandardNode{ID: "sacs-2024:9.1", SetID: "sacs-2024", Code: "9.1", Title: "Budget and financial planning capacity", Level: model.LevelStandard})

	r := graph.NewRegistry()
	r.Publish(hlc)
	r.Publish(sacs)
	return r
}

func testBuilder(t *testing.T, st *store.Store, client *llm.Client) *Builder {
	t.Helper()
	cfg := model.CrosswalkConfig{MinOverlap: 0.18, LowConfidence: 0.55, PairBlockSize: 12, Workers: 2}
	return NewBuilder(st, testRegistry(t), client, logger.Nop(), cfg)
}

func TestBuilder_Batch_OverlapFallback(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	b := testBuilder(t, st, nil)
	res, err := b.Build(context.Background(), "hlc-2024", "sacs-2024", model.CrosswalkBatch)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.Method != model.CrosswalkBatch {
		t.Fatalf("unexpected method %s", res.Method)
	}
	// Only the two on-topic pairs share enough vocabulary
	if res.Admitted != 2 || len(res.Edges) != 2 {
		t.Fatalf("expected 2 admitted edges, got %d (%+v)", res.Admitted, res.Edges)
	}
	for _, e := range res.Edges {
		// Without a model the lexical overlap is the confidence
		if math.Abs(e.Confidence-e.Overlap) > 1e-9 {
			t.Errorf("fallback edge confidence %v should equal overlap %v", e.Confidence, e.Overlap)
		}
	}

	live, err := st.LiveCrosswalk("hlc-2024", "sacs-2024")
	if err != nil {
		t.Fatalf("live crosswalk: %v", err)
	}
	if len(live) != 2 {
		t.Fatalf("expected 2 persisted edges, got %d", len(live))
	}
}

func TestBuilder_Batch_ModelProposals(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	// One sound pair, one hallucinated code, one pair with no lexical support
	p := &scriptedProvider{responses: []string{
		`{"pairs": [
			{"from_code": "1", "to_code": "8.1", "confidence": 0.9, "rationale": "both cover learning assessment"},
			{"from_code": "99", "to_code": "8.1", "confidence": 0.95, "rationale": "invented"},
			{"from_code": "2", "to_code": "8.1", "confidence": 0.9, "rationale": "unrelated topics"}
		]}`,
	}}
	client, err := llm.NewClientWithProvider(p, llm.Config{MaxTokens: 400})
	if err != nil {
		t.Fatalf("build client: %v", err)
	}

	b := testBuilder(t, st, client)
	res, err := b.Build(context.Background(), "hlc-2024", "sacs-2024", model.CrosswalkBatch)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.Proposed != 3 {
		t.Fatalf("expected 3 proposals, got %d", res.Proposed)
	}
	if res.Admitted != 1 || res.Rejected != 2 {
		t.Fatalf("expected 1 admitted / 2 rejected, got %d / %d", res.Admitted, res.Rejected)
	}
	edge := res.Edges[0]
	if edge.FromNode != "hlc-2024:1" || edge.ToNode != "sacs-2024:8.1" {
		t.Fatalf("unexpected edge %+v", edge)
	}
	// Model confidence carries through once the overlap floor is cleared
	if edge.Confidence != 0.9 || edge.Rationale == "" {
		t.Fatalf("model metadata lost: %+v", edge)
	}
}

func TestBuilder_Build_UnknownSet(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	b := testBuilder(t, st, nil)
	_, err = b.Build(context.Background(), "hlc-2024", "nope", model.CrosswalkBatch)
	var incompatible *model.IncompatibleGraphsError
	if !errors.As(err, &incompatible) {
		t.Fatalf("expected IncompatibleGraphsError, got %v", err)
	}
}

func TestBuilder_Build_SameSet(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	b := testBuilder(t, st, nil)
	if _, err := b.Build(context.Background(), "hlc-2024", "hlc-2024", model.CrosswalkBatch); err == nil {
		t.Fatal("expected error for identical sets")
	}
}

func TestBuilder_Refine_KeepsAcceptedEdges(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	seed := []model.CrosswalkEdge{
		{ID: "e-high", FromSet: "hlc-2024", ToSet: "sacs-2024", FromNode: "hlc-2024:1", ToNode: "sacs-2024:8.1", Confidence: 0.9},
		{ID: "e-low", FromSet: "hlc-2024", ToSet: "sacs-2024", FromNode: "hlc-2024:2", ToNode: "sacs-2024:9.1", Confidence: 0.3},
	}
	if err := st.SupersedePairEdges(seed); err != nil {
		t.Fatalf("seed edges: %v", err)
	}

	p := &scriptedProvider{responses: []string{
		`{"pairs": [{"from_code": "2", "to_code": "9.1", "confidence": 0.8, "rationale": "both govern financial planning"}]}`,
	}}
	client, err := llm.NewClientWithProvider(p, llm.Config{MaxTokens: 400})
	if err != nil {
		t.Fatalf("build client: %v", err)
	}

	b := testBuilder(t, st, client)
	res, err := b.Build(context.Background(), "hlc-2024", "sacs-2024", model.CrosswalkRefine)
	if err != nil {
		t.Fatalf("Build refine: %v", err)
	}
	if res.Method != model.CrosswalkRefine || res.Admitted != 1 {
		t.Fatalf("expected one refined edge, got %+v", res)
	}

	live, err := st.LiveCrosswalk("hlc-2024", "sacs-2024")
	if err != nil {
		t.Fatalf("live crosswalk: %v", err)
	}
	if len(live) != 2 {
		t.Fatalf("expected 2 live edges, got %d", len(live))
	}
	for _, e := range live {
		switch e.FromNode {
		case "hlc-2024:1":
			if e.ID != "e-high" {
				t.Errorf("accepted edge must survive refine, got %s", e.ID)
			}
		case "hlc-2024:2":
			if e.Confidence != 0.8 {
				t.Errorf("weak edge should be re-proposed at 0.8, got %v", e.Confidence)
			}
		}
	}
}

func TestBuilder_Refine_NoModelIsNoOp(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	seed := []model.CrosswalkEdge{
		{ID: "e-low", FromSet: "hlc-2024", ToSet: "sacs-2024", FromNode: "hlc-2024:2", ToNode: "sacs-2024:9.1", Confidence: 0.3},
	}
	if err := st.SupersedePairEdges(seed); err != nil {
		t.Fatalf("seed edges: %v", err)
	}

	b := testBuilder(t, st, nil)
	res, err := b.Build(context.Background(), "hlc-2024", "sacs-2024", model.CrosswalkRefine)
	if err != nil {
		t.Fatalf("Build refine: %v", err)
	}
	if res.Admitted != 0 {
		t.Fatalf("refine without a model should admit nothing, got %d", res.Admitted)
	}

	live, _ := st.LiveCrosswalk("hlc-2024", "sacs-2024")
	if len(live) != 1 || live[0].ID != "e-low" {
		t.Fatalf("existing edges must be untouched, got %+v", live)
	}
}

func TestTokenizeAndJaccard(t *testing.T) {
	a := tokenize("Assessment of student learning outcomes")
	if a["of"] {
		t.Fatal("stopwords must be dropped")
	}
	b := tokenize("Student learning assessment processes")
	// 3 shared tokens over 5 distinct
	if got := jaccard(a, b); math.Abs(got-0.6) > 1e-9 {
		t.Fatalf("jaccard = %v, want 0.6", got)
	}
	if jaccard(a, tokenize("")) != 0 {
		t.Fatal("empty set overlap must be 0")
	}
}

func TestDedupeEdges(t *testing.T) {
	edges := []model.CrosswalkEdge{
		{ID: "e1", FromNode: "a", ToNode: "b", Confidence: 0.4},
		{ID: "e2", FromNode: "a", ToNode: "b", Confidence: 0.7},
		{ID: "e3", FromNode: "a", ToNode: "c", Confidence: 0.5},
	}
	out := dedupeEdges(edges)
	if len(out) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(out))
	}
	if out[0].ID != "e2" {
		t.Fatalf("highest confidence should win per pair, got %s", out[0].ID)
	}
}
