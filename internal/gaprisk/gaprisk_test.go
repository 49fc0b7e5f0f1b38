package gaprisk

import (
	"math"
	"testing"
	"time"

	"github.com/veridexhq/veridex/internal/graph"
	"github.com/veridexhq/veridex/internal/logger"
	"github.com/veridexhq/veridex/internal/model"
	"github.com/veridexhq/veridex/internal/store"
)

func fixNow(t *testing.T, now time.Time) {
	t.Helper()
	orig := timeNow
	timeNow = func() time.Time { return now }
	t.Cleanup(func() { timeNow = orig })
}

func testConfig() model.GapConfig {
	return model.GapConfig{
		CrosswalkCredit:    0.5,
		RecencyWindowDays:  540,
		MinLinkConfidence:  0.5,
		WeightContribution: 0.6,
		WeightRecency:      0.2,
		WeightCrosswalk:    0.2,
	}
}

func testRegistry(t *testing.T) *graph.Registry {
	t.Helper()
	hlc := graph.NewGraph(model.StandardSet{ID: "hlc-2024", Framework: "HLC", Version: "2024"})
	hlc.AddNode(model.StandardNode{ID: "hlc-2024:1", SetID: "hlc-2024", Code: "1", Title: "Assessment", Level: model.LevelStandard})
	hlc.AddNode(model.StandardNode{ID: "hlc-2024:2", SetID: "hlc-2024", Code: "2", Title: "Governance", Level: model.LevelStandard})
	hlc.AddNode(model.StandardNode{ID: "hlc-2024:3", SetID: "hlc-2024", Code: "3", Title: "Resources", Level: model.LevelStandard})

	sacs := graph.NewGraph(model.StandardSet{ID: "sacs-2024", Framework: "SACSCOC", Version: "2024"})
	sacs.AddNode(model.StandardNode{ID: "sacs-2024:7.1", SetID: "sacs-2024", Code: "7.1", Title: "Institutional governance", Level: model.LevelStandard})

	r := graph.NewRegistry()
	r.Publish(hlc)
	r.Publish(sacs)
	return r
}

func seedArtifact(t *testing.T, st *store.Store, id string, uploaded time.Time) {
	t.Helper()
	a := &model.Artifact{
		ID:         id,
		AccountID:  "acme-u",
		Filename:   id + ".txt",
		Checksum:   "sum-" + id,
		UploadedAt: uploaded,
		IndexState: model.IndexReady,
	}
	if err := st.CreateArtifact(a); err != nil {
		t.Fatalf("create artifact %s: %v", id, err)
	}
}

func TestPredictor_Compute(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	fixNow(t, now)

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	// Node 1 has fresh direct evidence
	seedArtifact(t, st, "a1", now)
	links := []model.EvidenceLink{
		{ID: "l1", ArtifactID: "a1", SetID: "hlc-2024", NodeID: "hlc-2024:1", Confidence: 0.9},
	}
	if err := st.SupersedeEvidenceLinks("a1", "hlc-2024", links); err != nil {
		t.Fatalf("links: %v", err)
	}

	// Node 2 is covered only via a crosswalk edge to a node that itself
	// has direct evidence in the other set
	seedArtifact(t, st, "a2", now)
	remote := []model.EvidenceLink{
		{ID: "l2", ArtifactID: "a2", SetID: "sacs-2024", NodeID: "sacs-2024:7.1", Confidence: 0.8},
	}
	if err := st.SupersedeEvidenceLinks("a2", "sacs-2024", remote); err != nil {
		t.Fatalf("remote links: %v", err)
	}
	edges := []model.CrosswalkEdge{
		{ID: "e1", FromSet: "hlc-2024", ToSet: "sacs-2024", FromNode: "hlc-2024:2", ToNode: "sacs-2024:7.1", Confidence: 0.8},
	}
	if err := st.SupersedePairEdges(edges); err != nil {
		t.Fatalf("edges: %v", err)
	}

	// Node 3 has nothing

	p := NewPredictor(st, testRegistry(t), logger.Nop(), testConfig())
	snap, err := p.Compute("hlc-2024")
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(snap.Records) != 3 {
		t.Fatalf("expected one record per node, got %d", len(snap.Records))
	}

	byNode := make(map[string]model.GapRecord, len(snap.Records))
	for _, r := range snap.Records {
		byNode[r.NodeID] = r
	}

	// Direct fresh evidence: gap = 1 - (0.6*1 + 0.2*1 + 0.2*0) = 0.2
	direct := byNode["hlc-2024:1"]
	if direct.Contribution != 1 || math.Abs(direct.GapScore-0.2) > 1e-9 {
		t.Fatalf("direct node: %+v", direct)
	}
	if !containsDriver(direct.Drivers, model.DriverWeakCrosswalk) {
		t.Fatalf("direct node without crosswalk should name it: %v", direct.Drivers)
	}

	// Crosswalk-only: gap = 1 - (0.6*0.5 + 0 + 0.2*0.8) = 0.54
	bridged := byNode["hlc-2024:2"]
	if bridged.Contribution != 0.5 || math.Abs(bridged.GapScore-0.54) > 1e-9 {
		t.Fatalf("crosswalk-only node: %+v", bridged)
	}
	if !containsDriver(bridged.Drivers, model.DriverCrosswalkOnly) {
		t.Fatalf("crosswalk-only driver missing: %v", bridged.Drivers)
	}

	// No evidence at all: gap = 1
	bare := byNode["hlc-2024:3"]
	if bare.Contribution != 0 || bare.GapScore != 1 {
		t.Fatalf("bare node: %+v", bare)
	}
	if !containsDriver(bare.Drivers, model.DriverNoEvidence) {
		t.Fatalf("no-evidence driver missing: %v", bare.Drivers)
	}

	// Mean of 0.2, 0.54, 1
	if math.Abs(snap.RiskIndex-0.58) > 1e-9 {
		t.Fatalf("risk index = %v, want 0.58", snap.RiskIndex)
	}
	// Mean contribution of 1, 0.5, 0
	if math.Abs(snap.Coverage-0.5) > 1e-9 {
		t.Fatalf("coverage = %v, want 0.5", snap.Coverage)
	}

	// Ranked gap list: worst node first
	for i := 1; i < len(snap.Records); i++ {
		if snap.Records[i].GapScore > snap.Records[i-1].GapScore {
			t.Fatalf("records not sorted by gap score: %v before %v",
				snap.Records[i-1].GapScore, snap.Records[i].GapScore)
		}
	}
	if snap.Records[0].NodeID != "hlc-2024:3" || snap.Records[2].NodeID != "hlc-2024:1" {
		t.Fatalf("unexpected ranking: %s first, %s last",
			snap.Records[0].NodeID, snap.Records[2].NodeID)
	}

	// Advice is templated from each top driver, worst gap first
	if len(snap.Recommendations) != 3 {
		t.Fatalf("expected 3 recommendations, got %v", snap.Recommendations)
	}
	if snap.Recommendations[0] != "hlc-2024:3: collect and map evidence; nothing is linked" {
		t.Fatalf("unexpected top recommendation: %q", snap.Recommendations[0])
	}

	live, err := st.LiveGapRecords("hlc-2024")
	if err != nil {
		t.Fatalf("live records: %v", err)
	}
	if len(live) != 3 {
		t.Fatalf("snapshot not persisted, got %d records", len(live))
	}
}

func TestPredictor_Compute_LinksBelowConfidenceFloor(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	fixNow(t, now)

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	// A weak link exists but sits under the 0.5 confidence floor
	seedArtifact(t, st, "a1", now)
	links := []model.EvidenceLink{
		{ID: "l1", ArtifactID: "a1", SetID: "hlc-2024", NodeID: "hlc-2024:1", Confidence: 0.3},
	}
	if err := st.SupersedeEvidenceLinks("a1", "hlc-2024", links); err != nil {
		t.Fatalf("links: %v", err)
	}

	p := NewPredictor(st, testRegistry(t), logger.Nop(), testConfig())
	snap, err := p.Compute("hlc-2024")
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	for _, r := range snap.Records {
		if r.NodeID != "hlc-2024:1" {
			continue
		}
		if r.Contribution != 0 || r.GapScore != 1 {
			t.Fatalf("weak link must not count as coverage: %+v", r)
		}
		if !containsDriver(r.Drivers, model.DriverBelowThreshold) {
			t.Fatalf("below-threshold driver missing: %v", r.Drivers)
		}
		if containsDriver(r.Drivers, model.DriverNoEvidence) {
			t.Fatalf("a linked node is not evidence-free: %v", r.Drivers)
		}
		return
	}
	t.Fatal("node record missing")
}

func TestPredictor_Compute_UnknownSet(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	p := NewPredictor(st, testRegistry(t), logger.Nop(), testConfig())
	if _, err := p.Compute("nope"); err == nil {
		t.Fatal("expected error for unknown set")
	}
}

func TestScoreNode_StaleEvidence(t *testing.T) {
	p := NewPredictor(nil, nil, logger.Nop(), testConfig())

	// Direct evidence older than the recency window
	contribution, gap, drivers := p.scoreNode(&nodeEvidence{
		hasDirect:     true,
		bestConf:      0.9,
		newestAgeDays: 600,
	})
	if contribution != 1 {
		t.Fatalf("contribution = %v, want 1", contribution)
	}
	if math.Abs(gap-0.4) > 1e-9 {
		t.Fatalf("gap = %v, want 0.4", gap)
	}
	if !containsDriver(drivers, model.DriverStaleEvidence) {
		t.Fatalf("stale driver missing: %v", drivers)
	}
}

func containsDriver(drivers []string, want string) bool {
	for _, d := range drivers {
		if d == want {
			return true
		}
	}
	return false
}
