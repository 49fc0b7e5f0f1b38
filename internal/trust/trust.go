package trust

import (
	"fmt"
	"math"
	"time"

	"github.com/veridexhq/veridex/internal/logger"
	"github.com/veridexhq/veridex/internal/model"
	"github.com/veridexhq/veridex/internal/store"
	"github.com/veridexhq/veridex/internal/vectorindex"
)

// timeNow is the clock (injectable for tests)
var timeNow = time.Now

// Scorer computes the four deterministic trust sub-scores for an
// artifact. No model calls anywhere in this package; every number is
// reproducible from stored data and carries its formula in a Signal.
type Scorer struct {
	store *store.Store
	log   *logger.Logger
	cfg   model.TrustConfig
}

// NewScorer creates a trust scorer
func NewScorer(st *store.Store, log *logger.Logger, cfg model.TrustConfig) *Scorer {
	return &Scorer{store: st, log: log, cfg: cfg}
}

// Score computes and persists the trust signal for one artifact
func (s *Scorer) Score(artifactID string) (*model.TrustSignal, error) {
	artifact, err := s.store.GetArtifact(artifactID)
	if err != nil {
		return nil, fmt.Errorf("load artifact: %w", err)
	}
	chunks, err := s.store.Chunks(artifactID)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	corpus, err := s.store.CorpusChunks(artifactID)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}

	var signals []model.Signal

	freshness, sig := s.scoreFreshness(artifact)
	signals = append(signals, sig)

	authenticity, sig := scoreAuthenticity(artifact)
	signals = append(signals, sig)

	redundancy, sig := scoreRedundancy(chunks, corpus)
	signals = append(signals, sig)

	density, sig := s.scoreCitationDensity(chunks)
	signals = append(signals, sig)

	trust := s.cfg.WeightFreshness*freshness +
		s.cfg.WeightAuthenticity*authenticity +
		s.cfg.WeightRedundancy*redundancy +
		s.cfg.WeightCitations*density

	ts := &model.TrustSignal{
		ArtifactID:      artifact.ID,
		Freshness:       round3(freshness),
		Authenticity:    round3(authenticity),
		Redundancy:      round3(redundancy),
		CitationDensity: round3(density),
		Trust:           round3(trust),
		Explanation: fmt.Sprintf("trust = %.2f*freshness + %.2f*authenticity + %.2f*redundancy + %.2f*citation_density",
			s.cfg.WeightFreshness, s.cfg.WeightAuthenticity, s.cfg.WeightRedundancy, s.cfg.WeightCitations),
		Signals:    signals,
		ComputedAt: timeNow().UTC(),
	}
	if err := s.store.SaveTrust(ts); err != nil {
		return nil, fmt.Errorf("persist trust: %w", err)
	}
	return ts, nil
}

// scoreFreshness decays with document age by a half-life curve. The
// institution-supplied effective date wins over the upload timestamp.
func (s *Scorer) scoreFreshness(a *model.Artifact) (float64, model.Signal) {
	ref := a.UploadedAt
	dateSource := "uploaded_at"
	if a.EffectiveDate != nil {
		ref = *a.EffectiveDate
		dateSource = "effective_date"
	}
	ageDays := timeNow().UTC().Sub(ref).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	halfLife := float64(s.cfg.FreshnessHalfLifeDays)
	score := math.Pow(0.5, ageDays/halfLife)

	severity := model.SeverityInfo
	if score < 0.4 {
		severity = model.SeverityWarning
	}
	return score, model.Signal{
		Type:        model.SignalFreshness,
		Severity:    severity,
		Description: fmt.Sprintf("document is %.0f days old", ageDays),
		Data: map[string]interface{}{
			"formula":        "0.5^(age_days/half_life_days)",
			"age_days":       round3(ageDays),
			"half_life_days": s.cfg.FreshnessHalfLifeDays,
			"date_source":    dateSource,
			"score":          round3(score),
		},
	}
}

// scoreAuthenticity rewards authorship metadata. A bare upload still
// scores above zero; unverified provenance is a caution, not a verdict.
func scoreAuthenticity(a *model.Artifact) (float64, model.Signal) {
	score := 0.3
	if a.Author != "" {
		score += 0.25
	}
	if a.SignedBy != "" {
		score += 0.35
	}
	if a.AccreditorTag != "" {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}

	severity := model.SeverityInfo
	desc := "authorship metadata present"
	if a.Author == "" && a.SignedBy == "" {
		severity = model.SeverityWarning
		desc = "no author or signer metadata"
	}
	return score, model.Signal{
		Type:        model.SignalAuthenticity,
		Severity:    severity,
		Description: desc,
		Data: map[string]interface{}{
			"formula":        "0.3 + 0.25*has_author + 0.35*has_signer + 0.1*has_accreditor_tag",
			"has_author":     a.Author != "",
			"has_signer":     a.SignedBy != "",
			"has_accreditor": a.AccreditorTag != "",
			"score":          round3(score),
		},
	}
}

// scoreRedundancy penalizes near-duplicate content elsewhere in the
// account corpus. The worst duplicate drives the score: one copied
// section marks the whole artifact.
func scoreRedundancy(chunks, corpus []model.ArtifactChunk) (float64, model.Signal) {
	if len(corpus) == 0 || len(chunks) == 0 {
		return 1, model.Signal{
			Type:        model.SignalRedundancy,
			Severity:    model.SeverityInfo,
			Description: "no other indexed artifacts to compare against",
			Data: map[string]interface{}{
				"formula": "1 - max_duplicate_similarity",
				"score":   1.0,
			},
		}
	}

	idx := vectorindex.New()
	entries := make([]vectorindex.Entry, 0, len(corpus))
	for _, c := range corpus {
		if len(c.Embedding) > 0 {
			entries = append(entries, vectorindex.Entry{ID: c.ID, Vector: c.Embedding})
		}
	}
	idx.Rebuild(entries)

	maxDup := 0.0
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			continue
		}
		if sim := idx.MaxSimilarity(c.Embedding); sim > maxDup {
			maxDup = sim
		}
	}
	score := 1 - maxDup

	severity := model.SeverityInfo
	desc := fmt.Sprintf("highest similarity to other artifacts: %.2f", maxDup)
	if maxDup > 0.95 {
		severity = model.SeverityCritical
		desc = "near-duplicate content found in another artifact"
	} else if maxDup > 0.85 {
		severity = model.SeverityWarning
	}
	return score, model.Signal{
		Type:        model.SignalRedundancy,
		Severity:    severity,
		Description: desc,
		Data: map[string]interface{}{
			"formula":                  "1 - max_duplicate_similarity",
			"max_duplicate_similarity": round3(maxDup),
			"corpus_chunks":            len(entries),
			"score":                    round3(score),
		},
	}
}

// scoreCitationDensity measures citation markers per thousand runes,
// capped so citation-stuffing cannot buy trust.
func (s *Scorer) scoreCitationDensity(chunks []model.ArtifactChunk) (float64, model.Signal) {
	totalCitations := 0
	totalRunes := 0
	for _, c := range chunks {
		totalCitations += c.Citations
		totalRunes += len([]rune(c.Text))
	}

	density := 0.0
	if totalRunes > 0 {
		density = float64(totalCitations) / (float64(totalRunes) / 1000)
	}
	score := density / s.cfg.CitationCapPerKiloRune
	if score > 1 {
		score = 1
	}

	severity := model.SeverityInfo
	if totalCitations == 0 && totalRunes > 0 {
		severity = model.SeverityWarning
	}
	return score, model.Signal{
		Type:        model.SignalCitationDensity,
		Severity:    severity,
		Description: fmt.Sprintf("%d citation markers in %d runes", totalCitations, totalRunes),
		Data: map[string]interface{}{
			"formula":           "min(1, markers_per_kilo_rune / cap)",
			"markers":           totalCitations,
			"runes":             totalRunes,
			"cap_per_kilo_rune": s.cfg.CitationCapPerKiloRune,
			"markers_per_kilo":  round3(density),
			"score":             round3(score),
		},
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
