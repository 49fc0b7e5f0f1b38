package crosswalk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veridexhq/veridex/internal/graph"
	"github.com/veridexhq/veridex/internal/llm"
	"github.com/veridexhq/veridex/internal/logger"
	"github.com/veridexhq/veridex/internal/model"
	"github.com/veridexhq/veridex/internal/store"
	"github.com/veridexhq/veridex/internal/worker"
)

// Builder proposes and persists cross-framework equivalence edges.
// Proposals may come from a model, but admission is always deterministic:
// an edge enters the store only if its lexical overlap clears the floor.
type Builder struct {
	store  *store.Store
	graphs *graph.Registry
	llm    *llm.Client // nil falls back to overlap-only proposals
	log    *logger.Logger
	cfg    model.CrosswalkConfig
}

// NewBuilder creates a crosswalk builder
func NewBuilder(st *store.Store, graphs *graph.Registry, llmClient *llm.Client, log *logger.Logger, cfg model.CrosswalkConfig) *Builder {
	return &Builder{store: st, graphs: graphs, llm: llmClient, log: log, cfg: cfg}
}

// BuildResult summarizes one crosswalk run
type BuildResult struct {
	Edges    []model.CrosswalkEdge `json:"edges"`
	Proposed int                   `json:"proposed"`
	Admitted int                   `json:"admitted"`
	Rejected int                   `json:"rejected"`
	Method   model.CrosswalkMethod `json:"method"`
}

// Build runs a crosswalk between two standard sets. Batch evaluates
// every cross-set node block; refine re-evaluates only live edges whose
// confidence sits below the configured floor, leaving accepted edges
// untouched.
func (b *Builder) Build(ctx context.Context, fromSet, toSet string, method model.CrosswalkMethod) (*BuildResult, error) {
	fromGraph, okFrom := b.graphs.Get(fromSet)
	toGraph, okTo := b.graphs.Get(toSet)
	if !okFrom || !okTo {
		return nil, &model.IncompatibleGraphsError{FromSet: fromSet, ToSet: toSet}
	}
	if fromSet == toSet {
		return nil, fmt.Errorf("crosswalk requires two distinct standard sets")
	}

	switch method {
	case model.CrosswalkRefine:
		return b.refine(ctx, fromGraph, toGraph)
	case model.CrosswalkBatch, "":
		return b.batch(ctx, fromGraph, toGraph)
	default:
		return nil, fmt.Errorf("unknown crosswalk method %q", method)
	}
}

type blockResult struct {
	edges    []model.CrosswalkEdge
	proposed int
	err      error
}

func (r *blockResult) GetError() error { return r.err }

type blockJob struct {
	builder   *Builder
	fromGraph *graph.Graph
	toGraph   *graph.Graph
	fromBlock []model.StandardNode
	toBlock   []model.StandardNode
}

func (j *blockJob) Execute(ctx context.Context) worker.Result {
	edges, proposed, err := j.builder.evaluateBlock(ctx, j.fromGraph, j.toGraph, j.fromBlock, j.toBlock)
	return &blockResult{edges: edges, proposed: proposed, err: err}
}

// batch fans every cross-set block pair out over the worker pool
func (b *Builder) batch(ctx context.Context, fromGraph, toGraph *graph.Graph) (*BuildResult, error) {
	fromBlocks := partition(fromGraph.Nodes(), b.cfg.PairBlockSize)
	toBlocks := partition(toGraph.Nodes(), b.cfg.PairBlockSize)

	pool := worker.NewPool(b.cfg.Workers)
	pool.Start()
	for _, fb := range fromBlocks {
		for _, tb := range toBlocks {
			pool.Submit(&blockJob{builder: b, fromGraph: fromGraph, toGraph: toGraph, fromBlock: fb, toBlock: tb})
		}
	}

	result := &BuildResult{Method: model.CrosswalkBatch}
	var edges []model.CrosswalkEdge
	for _, r := range pool.Wait() {
		br := r.(*blockResult)
		if br.err != nil {
			// A failed block degrades that block, not the whole build
			b.log.Warn("crosswalk block failed", "error", br.err)
			continue
		}
		edges = append(edges, br.edges...)
		result.Proposed += br.proposed
	}

	edges = dedupeEdges(edges)
	result.Edges = edges
	result.Admitted = len(edges)
	result.Rejected = result.Proposed - result.Admitted

	if err := b.store.SupersedePairEdges(edges); err != nil {
		return nil, fmt.Errorf("persist crosswalk: %w", err)
	}
	return result, nil
}

// refine re-proposes only the live edges below the confidence floor
func (b *Builder) refine(ctx context.Context, fromGraph, toGraph *graph.Graph) (*BuildResult, error) {
	live, err := b.store.LiveCrosswalk(fromGraph.Set.ID, toGraph.Set.ID)
	if err != nil {
		return nil, fmt.Errorf("load crosswalk: %w", err)
	}

	result := &BuildResult{Method: model.CrosswalkRefine}
	if b.llm == nil {
		// Nothing sharper than the deterministic pass is available
		return result, nil
	}

	var fromBlock, toBlock []model.StandardNode
	for _, edge := range live {
		if edge.Confidence >= b.cfg.LowConfidence {
			continue
		}
		if n, ok := fromGraph.Node(edge.FromNode); ok {
			fromBlock = append(fromBlock, n)
		}
		if n, ok := toGraph.Node(edge.ToNode); ok {
			toBlock = append(toBlock, n)
		}
	}
	if len(fromBlock) == 0 || len(toBlock) == 0 {
		return result, nil
	}

	edges, proposed, err := b.evaluateBlock(ctx, fromGraph, toGraph, fromBlock, toBlock)
	if err != nil {
		return nil, err
	}
	edges = dedupeEdges(edges)

	result.Edges = edges
	result.Proposed = proposed
	result.Admitted = len(edges)
	result.Rejected = proposed - len(edges)

	if err := b.store.SupersedePairEdges(edges); err != nil {
		return nil, fmt.Errorf("persist crosswalk: %w", err)
	}
	return result, nil
}

// evaluateBlock proposes pairs for one block and admits those clearing
// the overlap floor. Model outage degrades to overlap-only proposals.
func (b *Builder) evaluateBlock(ctx context.Context, fromGraph, toGraph *graph.Graph, fromBlock, toBlock []model.StandardNode) ([]model.CrosswalkEdge, int, error) {
	now := time.Now().UTC()

	if b.llm != nil {
		edges, proposed, err := b.proposeWithModel(ctx, fromGraph, toGraph, fromBlock, toBlock, now)
		if err == nil {
			return edges, proposed, nil
		}
		b.log.Warn("model proposal failed, falling back to lexical overlap", "error", err)
	}

	var edges []model.CrosswalkEdge
	proposed := 0
	for _, fn := range fromBlock {
		fromTokens := tokenize(fn.Title + " " + fn.Description)
		for _, tn := range toBlock {
			proposed++
			overlap := jaccard(fromTokens, tokenize(tn.Title+" "+tn.Description))
			if overlap < b.cfg.MinOverlap {
				continue
			}
			edges = append(edges, model.CrosswalkEdge{
				ID:         uuid.NewString(),
				FromSet:    fromGraph.Set.ID,
				ToSet:      toGraph.Set.ID,
				FromNode:   fn.ID,
				ToNode:     tn.ID,
				Confidence: overlap,
				Overlap:    overlap,
				ComputedAt: now,
			})
		}
	}
	return edges, proposed, nil
}

func (b *Builder) proposeWithModel(ctx context.Context, fromGraph, toGraph *graph.Graph, fromBlock, toBlock []model.StandardNode, now time.Time) ([]model.CrosswalkEdge, int, error) {
	fromLines := make([]string, len(fromBlock))
	fromByCode := make(map[string]model.StandardNode, len(fromBlock))
	for i, n := range fromBlock {
		fromLines[i] = n.Code + ": " + n.Title
		fromByCode[n.Code] = n
	}
	toLines := make([]string, len(toBlock))
	toByCode := make(map[string]model.StandardNode, len(toBlock))
	for i, n := range toBlock {
		toLines[i] = n.Code + ": " + n.Title
		toByCode[n.Code] = n
	}

	var out llm.CrosswalkPairsOutput
	err := b.llm.CompleteJSON(ctx, llm.SchemaCrosswalkPairs, llm.SystemPrompt(),
		llm.BuildCrosswalkPrompt(fromGraph.Set.Framework, toGraph.Set.Framework, fromLines, toLines), &out)
	if err != nil {
		return nil, 0, err
	}

	var edges []model.CrosswalkEdge
	for _, pair := range out.Pairs {
		fn, okFrom := fromByCode[pair.FromCode]
		tn, okTo := toByCode[pair.ToCode]
		if !okFrom || !okTo {
			// Hallucinated code; the model never gets to invent standards
			b.log.Warn("proposed pair references unknown code",
				"from_code", pair.FromCode, "to_code", pair.ToCode)
			continue
		}
		overlap := jaccard(tokenize(fn.Title+" "+fn.Description), tokenize(tn.Title+" "+tn.Description))
		if overlap < b.cfg.MinOverlap {
			continue
		}
		edges = append(edges, model.CrosswalkEdge{
			ID:         uuid.NewString(),
			FromSet:    fromGraph.Set.ID,
			ToSet:      toGraph.Set.ID,
			FromNode:   fn.ID,
			ToNode:     tn.ID,
			Confidence: pair.Confidence,
			Overlap:    overlap,
			Rationale:  pair.Rationale,
			ComputedAt: now,
		})
	}
	return edges, len(out.Pairs), nil
}

// dedupeEdges keeps the highest-confidence edge per (from,to) pair
func dedupeEdges(edges []model.CrosswalkEdge) []model.CrosswalkEdge {
	best := make(map[string]model.CrosswalkEdge, len(edges))
	var order []string
	for _, e := range edges {
		key := e.FromNode + "|" + e.ToNode
		if prev, ok := best[key]; ok {
			if e.Confidence > prev.Confidence {
				best[key] = e
			}
			continue
		}
		best[key] = e
		order = append(order, key)
	}
	out := make([]model.CrosswalkEdge, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

func partition(nodes []model.StandardNode, size int) [][]model.StandardNode {
	if size <= 0 {
		size = 12
	}
	var out [][]model.StandardNode
	for start := 0; start < len(nodes); start += size {
		end := start + size
		if end > len(nodes) {
			end = len(nodes)
		}
		out = append(out, nodes[start:end])
	}
	return out
}

// stopwords excluded from overlap scoring; generic framework boilerplate
// would otherwise make every pair look related.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "have": true,
	"in": true, "is": true, "it": true, "its": true, "must": true, "of": true,
	"on": true, "or": true, "shall": true, "should": true, "that": true,
	"the": true, "their": true, "to": true, "which": true, "will": true,
	"with": true,
}

func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, field := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		if len(field) < 2 || stopwords[field] {
			continue
		}
		tokens[field] = true
	}
	return tokens
}

// jaccard is intersection over union of two token sets
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
