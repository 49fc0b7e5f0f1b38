package mapper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/veridexhq/veridex/internal/chunk"
	"github.com/veridexhq/veridex/internal/embed"
	"github.com/veridexhq/veridex/internal/graph"
	"github.com/veridexhq/veridex/internal/llm"
	"github.com/veridexhq/veridex/internal/logger"
	"github.com/veridexhq/veridex/internal/model"
	"github.com/veridexhq/veridex/internal/store"
	"github.com/veridexhq/veridex/internal/vectorindex"
)

// embedBatchSize bounds how many chunk texts go to the gateway per call,
// so one failing batch does not sink the whole artifact.
const embedBatchSize = 64

// Mapper links artifact chunks to standard nodes. Concurrent Map calls
// for the same (artifact, set) pair collapse into one execution via
// singleflight, so link writes are never interleaved.
type Mapper struct {
	store    *store.Store
	chunker  *chunk.Chunker
	embedder embed.Embedder
	graphs   *graph.Registry
	indexes  *vectorindex.Registry
	llm      *llm.Client // nil disables rationale enrichment
	log      *logger.Logger
	cfg      model.MappingConfig

	group singleflight.Group
}

// New creates a mapper
func New(st *store.Store, embedder embed.Embedder, graphs *graph.Registry, indexes *vectorindex.Registry, llmClient *llm.Client, log *logger.Logger, cfg model.MappingConfig) *Mapper {
	return &Mapper{
		store:    st,
		chunker:  chunk.NewChunker(cfg.ChunkRunes, cfg.MaxChunkRunes),
		embedder: embedder,
		graphs:   graphs,
		indexes:  indexes,
		llm:      llmClient,
		log:      log,
		cfg:      cfg,
	}
}

// Params selects what one Map run does. Zero TopK/Threshold fall back to
// configuration.
type Params struct {
	ArtifactID string
	SetID      string
	TopK       int
	Threshold  float64
	Explain    bool
}

// Match is one standard node the artifact supports
type Match struct {
	NodeID    string       `json:"standard_id"`
	Score     float64      `json:"score"`
	Spans     []model.Span `json:"evidence_spans"`
	Rationale string       `json:"rationale,omitempty"`
}

// Result is the outcome of one Map run
type Result struct {
	Matches    []Match   `json:"matches"`
	Queued     bool      `json:"queued"` // Embedding capability down; retried by scheduler
	ComputedAt time.Time `json:"computed_at"`
}

// Map executes the alignment pipeline for one artifact against one
// standard set. Callers racing on the same pair share a single execution.
func (m *Mapper) Map(ctx context.Context, p Params) (*Result, error) {
	key := p.ArtifactID + "|" + p.SetID
	v, err, _ := m.group.Do(key, func() (interface{}, error) {
		return m.mapOnce(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (m *Mapper) mapOnce(ctx context.Context, p Params) (*Result, error) {
	g, ok := m.graphs.Get(p.SetID)
	if !ok {
		return nil, fmt.Errorf("standard set %s is not ingested", p.SetID)
	}

	artifact, err := m.store.GetArtifact(p.ArtifactID)
	if err != nil {
		return nil, fmt.Errorf("load artifact: %w", err)
	}

	topK := p.TopK
	if topK <= 0 {
		topK = m.cfg.TopK
	}
	threshold := p.Threshold
	if threshold <= 0 {
		threshold = m.cfg.Threshold
	}

	chunks, err := m.ensureIndexed(ctx, artifact)
	if err != nil {
		if errors.Is(err, model.ErrEmbeddingUnavailable) {
			// Queued for indexing, never a hard error to the end user
			return &Result{Queued: true, ComputedAt: time.Now().UTC()}, nil
		}
		return nil, err
	}
	if len(chunks) == 0 {
		m.log.Warn("no extractable text in artifact",
			"artifact_id", artifact.ID, "warning", "NoContentWarning")
		return &Result{Matches: []Match{}, ComputedAt: time.Now().UTC()}, nil
	}

	if err := m.ensureNodeIndex(ctx, g); err != nil {
		if errors.Is(err, model.ErrEmbeddingUnavailable) {
			return &Result{Queued: true, ComputedAt: time.Now().UTC()}, nil
		}
		return nil, err
	}
	nodeIndex := m.indexes.Get(p.SetID)

	// Per-node aggregate: the maximum chunk score, so one strong match is
	// not diluted by weak chunks.
	type agg struct {
		score     float64
		spans     []model.Span
		bestChunk string
	}
	byNode := make(map[string]*agg)
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			continue
		}
		for _, hit := range nodeIndex.Search(c.Embedding, topK) {
			a, ok := byNode[hit.ID]
			if !ok {
				a = &agg{}
				byNode[hit.ID] = a
			}
			if hit.Score > a.score {
				a.score = hit.Score
				a.bestChunk = c.Text
			}
			a.spans = append(a.spans, c.Span())
		}
	}

	var matches []Match
	for nodeID, a := range byNode {
		if a.score < threshold { // Boundary inclusive: score >= threshold survives
			continue
		}
		matches = append(matches, Match{NodeID: nodeID, Score: a.score, Spans: dedupeSpans(a.spans)})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].NodeID < matches[j].NodeID
	})

	if p.Explain && m.llm != nil {
		for i := range matches {
			node, _ := g.Node(matches[i].NodeID)
			a := byNode[matches[i].NodeID]
			var out llm.RationaleOutput
			err := m.llm.CompleteJSON(ctx, llm.SchemaRationale, llm.SystemPrompt(),
				llm.BuildRationalePrompt(node.Code, node.Title, a.bestChunk), &out)
			if err != nil {
				// Enrichment degrades; the deterministic result stands
				m.log.Warn("rationale generation failed", "node_id", node.ID, "error", err)
				continue
			}
			matches[i].Rationale = out.Rationale
		}
	}

	now := time.Now().UTC()
	links := make([]model.EvidenceLink, 0, len(matches))
	for _, match := range matches {
		links = append(links, model.EvidenceLink{
			ID:         uuid.NewString(),
			ArtifactID: artifact.ID,
			SetID:      p.SetID,
			NodeID:     match.NodeID,
			Confidence: match.Score,
			Rationale:  match.Rationale,
			Spans:      match.Spans,
			ComputedAt: now,
		})
	}
	if err := m.store.SupersedeEvidenceLinks(artifact.ID, p.SetID, links); err != nil {
		return nil, fmt.Errorf("persist links: %w", err)
	}

	if matches == nil {
		matches = []Match{}
	}
	return &Result{Matches: matches, ComputedAt: now}, nil
}

// Reindex retries chunking and embedding for a queued artifact. Used by
// the background scheduler; a still-down embedding capability leaves the
// artifact queued.
func (m *Mapper) Reindex(ctx context.Context, artifactID string) error {
	artifact, err := m.store.GetArtifact(artifactID)
	if err != nil {
		return fmt.Errorf("load artifact: %w", err)
	}
	if artifact.IndexState == model.IndexReady {
		return nil
	}
	_, err = m.ensureIndexed(ctx, artifact)
	return err
}

// ensureIndexed chunks and embeds the artifact if that has not happened
// yet. A subset of failing embed batches is tolerated; losing every batch
// queues the artifact for a background retry.
func (m *Mapper) ensureIndexed(ctx context.Context, artifact *model.Artifact) ([]model.ArtifactChunk, error) {
	if artifact.IndexState == model.IndexReady {
		chunks, err := m.store.Chunks(artifact.ID)
		if err != nil {
			return nil, err
		}
		return chunks, nil
	}

	pieces := m.chunker.Split(artifact.Text)
	if len(pieces) == 0 {
		if err := m.store.SetIndexState(artifact.ID, model.IndexReady); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if m.embedder == nil {
		if err := m.store.SetIndexState(artifact.ID, model.IndexQueued); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: no embedding provider configured", model.ErrEmbeddingUnavailable)
	}

	chunks := make([]model.ArtifactChunk, 0, len(pieces))
	now := time.Now().UTC()
	embedded := 0
	failed := 0
	for start := 0; start < len(pieces); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(pieces) {
			end = len(pieces)
		}
		batch := pieces[start:end]
		texts := make([]string, len(batch))
		for i, piece := range batch {
			texts[i] = piece.Text
		}
		vectors, err := m.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			failed += len(batch)
			m.log.Warn("embed batch failed, continuing with remaining chunks",
				"artifact_id", artifact.ID, "batch_start", start, "error", err)
			continue
		}
		for i, piece := range batch {
			chunks = append(chunks, model.ArtifactChunk{
				ID:         uuid.NewString(),
				ArtifactID: artifact.ID,
				Ordinal:    piece.Ordinal,
				Text:       piece.Text,
				Page:       piece.Page,
				Start:      piece.Start,
				End:        piece.End,
				Citations:  piece.Citations,
				Embedding:  vectors[i],
				CreatedAt:  now,
			})
		}
		embedded += len(batch)
	}

	if embedded == 0 && failed > 0 {
		if err := m.store.SetIndexState(artifact.ID, model.IndexQueued); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: all %d chunks failed to embed", model.ErrEmbeddingUnavailable, failed)
	}

	if err := m.store.ReplaceChunks(artifact.ID, chunks); err != nil {
		return nil, err
	}
	if err := m.store.SetIndexState(artifact.ID, model.IndexReady); err != nil {
		return nil, err
	}
	return chunks, nil
}

// ensureNodeIndex builds the set's node-description index on first use
func (m *Mapper) ensureNodeIndex(ctx context.Context, g *graph.Graph) error {
	if m.indexes.Has(g.Set.ID) {
		return nil
	}
	if m.embedder == nil {
		return fmt.Errorf("%w: no embedding provider configured", model.ErrEmbeddingUnavailable)
	}

	nodes := g.Nodes()
	texts := make([]string, len(nodes))
	for i, n := range nodes {
		texts[i] = n.Code + " " + n.Title
		if n.Description != "" {
			texts[i] += "\n" + n.Description
		}
	}
	vectors, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	entries := make([]vectorindex.Entry, len(nodes))
	for i, n := range nodes {
		entries[i] = vectorindex.Entry{ID: n.ID, Vector: vectors[i]}
	}
	m.indexes.Get(g.Set.ID).Rebuild(entries)
	return nil
}

// dedupeSpans collapses duplicate provenance ranges, keeping order
func dedupeSpans(spans []model.Span) []model.Span {
	seen := make(map[model.Span]bool, len(spans))
	out := spans[:0]
	for _, s := range spans {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
