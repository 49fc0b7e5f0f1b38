package trust

import (
	"math"
	"testing"
	"time"

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

func testConfig() model.TrustConfig {
	return model.TrustConfig{
		WeightFreshness:        0.3,
		WeightAuthenticity:     0.3,
		WeightRedundancy:       0.2,
		WeightCitations:        0.2,
		FreshnessHalfLifeDays:  365,
		CitationCapPerKiloRune: 2,
	}
}

func TestScoreFreshness_HalfLife(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	fixNow(t, now)
	s := NewScorer(nil, logger.Nop(), testConfig())

	effective := now.AddDate(0, 0, -365)
	score, sig := s.scoreFreshness(&model.Artifact{
		UploadedAt:    now.AddDate(0, 0, -10),
		EffectiveDate: &effective,
	})
	// One half-life elapsed against the effective date
	if math.Abs(score-0.5) > 1e-9 {
		t.Fatalf("expected 0.5, got %v", score)
	}
	if sig.Data["date_source"] != "effective_date" {
		t.Fatalf("effective date must win over upload time: %v", sig.Data["date_source"])
	}
}

func TestScoreFreshness_FutureDateClamped(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	fixNow(t, now)
	s := NewScorer(nil, logger.Nop(), testConfig())

	score, _ := s.scoreFreshness(&model.Artifact{UploadedAt: now.AddDate(0, 0, 7)})
	if score != 1 {
		t.Fatalf("future dates clamp to age zero, got %v", score)
	}
}

func TestScoreAuthenticity(t *testing.T) {
	tests := []struct {
		name     string
		artifact model.Artifact
		want     float64
		warn     bool
	}{
		{"bare upload", model.Artifact{}, 0.3, true},
		{"author only", model.Artifact{Author: "J. Rivera"}, 0.55, false},
		{"signed", model.Artifact{SignedBy: "Provost Office"}, 0.65, false},
		{"full provenance", model.Artifact{Author: "J. Rivera", SignedBy: "Provost Office", AccreditorTag: "HLC"}, 1, false},
	}
	for _, tt := range tests {
		score, sig := scoreAuthenticity(&tt.artifact)
		if math.Abs(score-tt.want) > 1e-9 {
			t.Errorf("%s: score = %v, want %v", tt.name, score, tt.want)
		}
		if warned := sig.Severity == model.SeverityWarning; warned != tt.warn {
			t.Errorf("%s: warning = %v, want %v", tt.name, warned, tt.warn)
		}
	}
}

func TestScoreRedundancy_Duplicate(t *testing.T) {
	chunks := []model.ArtifactChunk{{ID: "c1", Embedding: []float32{1, 0}}}
	corpus := []model.ArtifactChunk{{ID: "x1", Embedding: []float32{1, 0}}}

	score, sig := scoreRedundancy(chunks, corpus)
	if math.Abs(score) > 1e-9 {
		t.Fatalf("identical content should score 0, got %v", score)
	}
	if sig.Severity != model.SeverityCritical {
		t.Fatalf("near-duplicate must be critical, got %s", sig.Severity)
	}
}

func TestScoreRedundancy_EmptyCorpus(t *testing.T) {
	chunks := []model.ArtifactChunk{{ID: "c1", Embedding: []float32{1, 0}}}
	score, sig := scoreRedundancy(chunks, nil)
	if score != 1 || sig.Severity != model.SeverityInfo {
		t.Fatalf("nothing to compare against should score 1, got %v / %s", score, sig.Severity)
	}
}

func TestScoreCitationDensity(t *testing.T) {
	s := NewScorer(nil, logger.Nop(), testConfig())

	// 2 markers in 1000 runes is 2 per kilo-rune, exactly the cap
	text := make([]rune, 1000)
	for i := range text {
		text[i] = 'a'
	}
	chunks := []model.ArtifactChunk{{Text: string(text), Citations: 2}}
	score, _ := s.scoreCitationDensity(chunks)
	if math.Abs(score-1) > 1e-9 {
		t.Fatalf("density at the cap should score 1, got %v", score)
	}

	// Stuffing beyond the cap buys nothing
	chunks[0].Citations = 40
	score, _ = s.scoreCitationDensity(chunks)
	if score != 1 {
		t.Fatalf("capped score expected, got %v", score)
	}

	// No markers at all is a warning
	chunks[0].Citations = 0
	score, sig := s.scoreCitationDensity(chunks)
	if score != 0 || sig.Severity != model.SeverityWarning {
		t.Fatalf("uncited text should warn at 0, got %v / %s", score, sig.Severity)
	}
}

func TestScorer_Score_PersistsSignal(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	fixNow(t, now)

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	a := &model.Artifact{
		ID:         "a1",
		AccountID:  "acme-u",
		Filename:   "report.txt",
		Checksum:   "sum-a1",
		Author:     "J. Rivera",
		SignedBy:   "Provost Office",
		UploadedAt: now,
		IndexState: model.IndexReady,
	}
	if err := st.CreateArtifact(a); err != nil {
		t.Fatalf("create: %v", err)
	}
	chunks := []model.ArtifactChunk{
		{ID: "c1", ArtifactID: "a1", Text: "Assessment results [1] are reviewed.", Citations: 1, Embedding: []float32{1, 0}},
	}
	if err := st.ReplaceChunks("a1", chunks); err != nil {
		t.Fatalf("chunks: %v", err)
	}

	s := NewScorer(st, logger.Nop(), testConfig())
	ts, err := s.Score("a1")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if len(ts.Signals) != 4 {
		t.Fatalf("expected 4 signals, got %d", len(ts.Signals))
	}
	if ts.Trust <= 0 || ts.Trust > 1 {
		t.Fatalf("trust out of range: %v", ts.Trust)
	}
	if ts.Explanation == "" {
		t.Fatal("explanation missing")
	}

	saved, err := st.GetTrust("a1")
	if err != nil {
		t.Fatalf("GetTrust: %v", err)
	}
	if saved.Trust != ts.Trust {
		t.Fatalf("persisted trust %v differs from returned %v", saved.Trust, ts.Trust)
	}
}
