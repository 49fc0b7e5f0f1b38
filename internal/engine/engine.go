package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veridexhq/veridex/internal/cache"
	"github.com/veridexhq/veridex/internal/citecheck"
	"github.com/veridexhq/veridex/internal/crosswalk"
	"github.com/veridexhq/veridex/internal/embed"
	"github.com/veridexhq/veridex/internal/gaprisk"
	"github.com/veridexhq/veridex/internal/graph"
	"github.com/veridexhq/veridex/internal/llm"
	"github.com/veridexhq/veridex/internal/logger"
	"github.com/veridexhq/veridex/internal/mapper"
	"github.com/veridexhq/veridex/internal/model"
	"github.com/veridexhq/veridex/internal/store"
	"github.com/veridexhq/veridex/internal/trust"
	"github.com/veridexhq/veridex/internal/vectorindex"
	"github.com/veridexhq/veridex/internal/worker"
)

// Engine wires every component behind one facade. Each operation checks
// its feature flag first; a disabled operation returns ErrNotEnabled
// without touching the store.
type Engine struct {
	cfg *model.Config
	log *logger.Logger

	store     *store.Store
	graphs    *graph.Registry
	indexes   *vectorindex.Registry
	mapper    *mapper.Mapper
	trust     *trust.Scorer
	crosswalk *crosswalk.Builder
	gaps      *gaprisk.Predictor
	citations *citecheck.Validator
	limiter   *worker.AccountLimiter

	sched *Scheduler
}

// New builds an engine from configuration. Published standard sets are
// reloaded from the store so ingested graphs survive restarts.
func New(cfg *model.Config, log *logger.Logger) (*Engine, error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	embedder, err := embed.NewEmbedder(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	if embedder != nil && cfg.Cache.Enabled {
		var c cache.Cache
		if cfg.Cache.Dir != "" {
			c = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
		} else {
			c = cache.NewMemoryCache(cfg.Cache.MemoryTTL, cfg.Cache.MemoryTTL)
		}
		embedder = embed.NewCachedEmbedder(embedder, c, cfg.Embedding.Model)
	}

	llmClient, err := llm.NewClient(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	if llmClient == nil {
		log.Info("model enrichment disabled, running deterministic paths only")
	}

	graphs := graph.NewRegistry()
	indexes := vectorindex.NewRegistry()

	e := &Engine{
		cfg:       cfg,
		log:       log,
		store:     st,
		graphs:    graphs,
		indexes:   indexes,
		mapper:    mapper.New(st, embedder, graphs, indexes, llmClient, log, cfg.Mapping),
		trust:     trust.NewScorer(st, log, cfg.Trust),
		crosswalk: crosswalk.NewBuilder(st, graphs, llmClient, log, cfg.Crosswalk),
		gaps:      gaprisk.NewPredictor(st, graphs, log, cfg.Gap),
		citations: citecheck.NewValidator(st, llmClient, log, cfg.Citation),
		limiter:   worker.NewAccountLimiter(cfg.Limits.MapPerMinute, cfg.Limits.MapBurst),
	}

	if err := e.reloadGraphs(); err != nil {
		return nil, err
	}

	if cfg.Scheduler.Enabled {
		e.sched = NewScheduler(e, log, cfg.Scheduler)
		if err := e.sched.Start(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Close stops background work and releases the store
func (e *Engine) Close() error {
	if e.sched != nil {
		e.sched.Stop()
	}
	return e.store.Close()
}

// reloadGraphs rebuilds the in-memory registry from persisted sets
func (e *Engine) reloadGraphs() error {
	sets, err := e.store.LoadSets()
	if err != nil {
		return fmt.Errorf("load standard sets: %w", err)
	}
	for _, set := range sets {
		if !set.Published {
			continue
		}
		_, nodes, edges, err := e.store.LoadGraph(set.ID)
		if err != nil {
			return fmt.Errorf("load graph %s: %w", set.ID, err)
		}
		g := graph.NewGraph(set)
		for _, n := range nodes {
			g.AddNode(n)
		}
		for _, edge := range edges {
			if err := g.AddEdge(edge); err != nil {
				return fmt.Errorf("restore graph %s: %w", set.ID, err)
			}
		}
		e.graphs.Publish(g)
	}
	return nil
}

// IngestRequest describes one standards source to ingest
type IngestRequest struct {
	SetID     string          `json:"set_id"`
	Framework string          `json:"framework"`
	Version   string          `json:"version"`
	Source    []byte          `json:"-"`
	Mode      graph.ParseMode `json:"mode"`
}

// IngestResult summarizes a completed ingestion
type IngestResult struct {
	SetID string `json:"set_id"`
	Nodes int    `json:"nodes"`
	Edges int    `json:"edges"`
}

// IngestStandards parses a standards source, persists the graph, and
// publishes it. A failed parse leaves any previous version authoritative.
func (e *Engine) IngestStandards(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if !e.cfg.Flags.GraphIngest {
		return nil, model.ErrNotEnabled
	}

	set := model.StandardSet{ID: req.SetID, Framework: req.Framework, Version: req.Version}
	g, err := graph.Ingest(set, req.Source, req.Mode)
	if err != nil {
		return nil, err
	}

	nodes := g.Nodes()
	edges := g.Edges()
	g.Set.Published = true
	if err := e.store.SaveGraph(g.Set, nodes, edges); err != nil {
		return nil, fmt.Errorf("persist graph: %w", err)
	}
	e.graphs.Publish(g)

	e.log.Info("standard set published",
		"set_id", req.SetID, "nodes", len(nodes), "edges", len(edges))
	return &IngestResult{SetID: req.SetID, Nodes: len(nodes), Edges: len(edges)}, nil
}

// GraphQueryResult is a read-only view of one published set
type GraphQueryResult struct {
	Set       model.StandardSet    `json:"set"`
	Nodes     []model.StandardNode `json:"nodes"`
	Edges     []model.GraphEdge    `json:"edges"`
	Ancestors []string             `json:"ancestors,omitempty"` // For a NodeID query
}

// QueryGraph returns the published graph for a set, optionally with the
// subsumption chain of one node
func (e *Engine) QueryGraph(setID, nodeID string) (*GraphQueryResult, error) {
	if !e.cfg.Flags.GraphQuery {
		return nil, model.ErrNotEnabled
	}
	g, ok := e.graphs.Get(setID)
	if !ok {
		return nil, fmt.Errorf("standard set %s is not ingested", setID)
	}

	result := &GraphQueryResult{Set: g.Set, Nodes: g.Nodes(), Edges: g.Edges()}
	if nodeID != "" {
		if _, ok := g.Node(nodeID); !ok {
			return nil, fmt.Errorf("node %s not found in set %s", nodeID, setID)
		}
		result.Ancestors = g.Ancestors(nodeID)
	}
	return result, nil
}

// RegisterArtifactRequest describes one uploaded evidence document
type RegisterArtifactRequest struct {
	AccountID     string
	Filename      string
	MimeType      string
	Text          string
	AccreditorTag string
	Author        string
	SignedBy      string
	EffectiveDate *time.Time
}

// RegisterArtifact stores a new artifact. Re-uploading identical content
// for the same account returns the existing artifact instead of a copy.
func (e *Engine) RegisterArtifact(ctx context.Context, req RegisterArtifactRequest) (*model.Artifact, error) {
	sum := sha256.Sum256([]byte(req.Text))
	checksum := hex.EncodeToString(sum[:])

	if existing, err := e.store.FindArtifactByChecksum(req.AccountID, checksum); err != nil {
		return nil, err
	} else if existing != nil {
		e.log.Info("duplicate artifact upload deduplicated",
			"artifact_id", existing.ID, "checksum", checksum)
		return existing, nil
	}

	artifact := &model.Artifact{
		ID:            uuid.NewString(),
		AccountID:     req.AccountID,
		Filename:      req.Filename,
		MimeType:      req.MimeType,
		Checksum:      checksum,
		AccreditorTag: req.AccreditorTag,
		Author:        req.Author,
		SignedBy:      req.SignedBy,
		EffectiveDate: req.EffectiveDate,
		UploadedAt:    time.Now().UTC(),
		IndexState:    model.IndexPending,
		Text:          req.Text,
	}
	if err := e.store.CreateArtifact(artifact); err != nil {
		return nil, fmt.Errorf("persist artifact: %w", err)
	}
	return artifact, nil
}

// MapRequest asks for evidence alignment of one artifact against one set
type MapRequest struct {
	AccountID  string
	ArtifactID string
	SetID      string
	TopK       int
	Threshold  float64
	Explain    bool
}

// MapMatch is one aligned standard node, joined with the artifact's
// stored trust score and open citation issues
type MapMatch struct {
	NodeID    string                `json:"standard_id"`
	Score     float64               `json:"score"`
	Spans     []model.Span          `json:"evidence_spans"`
	Rationale string                `json:"rationale,omitempty"`
	Trust     float64               `json:"trust"`
	Citations []model.CitationIssue `json:"citations"`
}

// MapResult is the facade-level outcome of one Map run
type MapResult struct {
	Matches    []MapMatch `json:"matches"`
	Queued     bool       `json:"queued"`
	ComputedAt time.Time  `json:"computed_at"`
}

// MapArtifact aligns an artifact's chunks with a standard set, subject
// to the account's rate ceiling. Matches carry the artifact's trust and
// citation findings so callers get the full picture in one response.
func (e *Engine) MapArtifact(ctx context.Context, req MapRequest) (*MapResult, error) {
	if !e.cfg.Flags.Map {
		return nil, model.ErrNotEnabled
	}
	if err := e.limiter.Check(req.AccountID); err != nil {
		return nil, err
	}

	res, err := e.mapper.Map(ctx, mapper.Params{
		ArtifactID: req.ArtifactID,
		SetID:      req.SetID,
		TopK:       req.TopK,
		Threshold:  req.Threshold,
		Explain:    req.Explain,
	})
	if err != nil {
		return nil, err
	}
	return e.joinMatches(req.ArtifactID, res), nil
}

// joinMatches folds the artifact's trust signal and citation issues into
// each match. Both are per-artifact values repeated on every match.
func (e *Engine) joinMatches(artifactID string, res *mapper.Result) *MapResult {
	out := &MapResult{
		Matches:    make([]MapMatch, 0, len(res.Matches)),
		Queued:     res.Queued,
		ComputedAt: res.ComputedAt,
	}
	if len(res.Matches) == 0 {
		return out
	}

	trustScore := e.artifactTrust(artifactID)
	citations := []model.CitationIssue{}
	if report, err := e.store.GetCitationReport(artifactID); err == nil && report.Issues != nil {
		citations = report.Issues
	}

	for _, m := range res.Matches {
		out.Matches = append(out.Matches, MapMatch{
			NodeID:    m.NodeID,
			Score:     m.Score,
			Spans:     m.Spans,
			Rationale: m.Rationale,
			Trust:     trustScore,
			Citations: citations,
		})
	}
	return out
}

// artifactTrust returns the stored composite trust, computing it once
// when no signal exists yet and scoring is enabled. An unscored artifact
// reports zero rather than blocking the Map response.
func (e *Engine) artifactTrust(artifactID string) float64 {
	if ts, err := e.store.GetTrust(artifactID); err == nil {
		return ts.Trust
	}
	if !e.cfg.Flags.TrustScore {
		return 0
	}
	ts, err := e.trust.Score(artifactID)
	if err != nil {
		e.log.Warn("trust join failed", "artifact_id", artifactID, "error", err)
		return 0
	}
	return ts.Trust
}

// ScoreTrust computes the deterministic trust signal for an artifact
func (e *Engine) ScoreTrust(ctx context.Context, artifactID string) (*model.TrustSignal, error) {
	if !e.cfg.Flags.TrustScore {
		return nil, model.ErrNotEnabled
	}
	return e.trust.Score(artifactID)
}

// Coverage computes the gap snapshot for a standard set
func (e *Engine) Coverage(ctx context.Context, setID string) (*gaprisk.Snapshot, error) {
	if !e.cfg.Flags.Coverage {
		return nil, model.ErrNotEnabled
	}
	return e.gaps.Compute(setID)
}

// BuildCrosswalk maps one standard set onto another
func (e *Engine) BuildCrosswalk(ctx context.Context, fromSet, toSet string, method model.CrosswalkMethod) (*crosswalk.BuildResult, error) {
	if !e.cfg.Flags.CrosswalkBuild {
		return nil, model.ErrNotEnabled
	}
	return e.crosswalk.Build(ctx, fromSet, toSet, method)
}

// ValidateCitations runs CiteGuard checks on an artifact
func (e *Engine) ValidateCitations(ctx context.Context, artifactID, style string) (*model.CitationReport, error) {
	if !e.cfg.Flags.CitationValidate {
		return nil, model.ErrNotEnabled
	}
	return e.citations.Validate(ctx, artifactID, style)
}

// EvidenceLinks returns the live links for one artifact against one set
func (e *Engine) EvidenceLinks(artifactID, setID string) ([]model.EvidenceLink, error) {
	return e.store.LiveLinksForArtifact(artifactID, setID)
}

// GapHistory returns the snapshot history for one node, newest first
func (e *Engine) GapHistory(nodeID string) ([]model.GapRecord, error) {
	return e.store.GapHistory(nodeID)
}

// Store exposes the underlying store for read paths the facade does not
// wrap
func (e *Engine) Store() *store.Store {
	return e.store
}
