package model

import "time"

// EvidenceLink is a scored association between an artifact chunk and a
// StandardNode. Links are append-only: a Map rerun inserts a new version
// for the (artifact, standard_set) pair and marks prior links superseded,
// so the engine can show what was true at a point in time.
type EvidenceLink struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	ArtifactID string    `json:"artifact_id" gorm:"index:idx_link_artifact_set"`
	SetID      string    `json:"set_id" gorm:"index:idx_link_artifact_set"`
	NodeID     string    `json:"node_id" gorm:"index"`
	Confidence float64   `json:"confidence"`         // Cosine score normalized to [0,1]
	Rationale  string    `json:"rationale,omitempty"`
	Spans      []Span    `json:"spans" gorm:"serializer:json"`
	Version    int64     `json:"version"`
	Superseded bool      `json:"superseded" gorm:"index"`
	ComputedAt time.Time `json:"computed_at"`
}
