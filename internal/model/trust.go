package model

import "time"

// TrustSignal is the per-artifact record of the four deterministic
// sub-scores plus the combined trust score. Recomputed nightly and
// on-demand; the previous value is overwritten with a new timestamp.
type TrustSignal struct {
	ArtifactID      string    `json:"artifact_id" gorm:"primaryKey"`
	Freshness       float64   `json:"freshness"`        // [0,1], decays with document age
	Authenticity    float64   `json:"authenticity"`     // [0,1], authorship/signer metadata
	Redundancy      float64   `json:"redundancy"`       // [0,1], 1 = no near-duplicates elsewhere
	CitationDensity float64   `json:"citation_density"` // [0,1], capped marker ratio
	Trust           float64   `json:"trust"`            // Weighted average of the four
	Explanation     string    `json:"explanation,omitempty"`
	Signals         []Signal  `json:"signals,omitempty" gorm:"serializer:json"`
	ComputedAt      time.Time `json:"computed_at"`
}
