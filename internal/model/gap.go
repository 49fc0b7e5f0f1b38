package model

import "time"

// Gap drivers are fixed template strings, not free-generated text, so the
// output stays deterministic and testable.
const (
	DriverNoEvidence     = "no evidence linked"
	DriverBelowThreshold = "no link above confidence threshold"
	DriverStaleEvidence  = "no recent artifacts"
	DriverWeakCrosswalk  = "weak crosswalk support"
	DriverCrosswalkOnly  = "covered only via crosswalk"
)

// GapRecord is a per-node snapshot of coverage and risk. Recomputed
// nightly; only the latest version is authoritative, but superseded
// snapshots are retained for trend display.
type GapRecord struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	SetID        string    `json:"set_id" gorm:"index"`
	NodeID       string    `json:"node_id" gorm:"index"`
	Contribution float64   `json:"coverage_contribution"` // 1, partial crosswalk credit, or 0
	GapScore     float64   `json:"gap_score"`             // [0,1], higher = more at risk
	Drivers      []string  `json:"drivers" gorm:"serializer:json"`
	Version      int64     `json:"version"`
	Superseded   bool      `json:"superseded" gorm:"index"`
	ComputedAt   time.Time `json:"computed_at"`
}
