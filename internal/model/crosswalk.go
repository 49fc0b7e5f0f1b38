package model

import "time"

// CrosswalkMethod selects how a crosswalk build runs
type CrosswalkMethod string

const (
	CrosswalkBatch  CrosswalkMethod = "batch"  // Evaluate every cross-set node pair
	CrosswalkRefine CrosswalkMethod = "refine" // Re-evaluate only low-confidence edges
)

// CrosswalkEdge maps a node in one StandardSet to an equivalent node in
// another. Edges are append-only with a superseding version per (from,to)
// pair; rejected candidates are discarded, never stored.
type CrosswalkEdge struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	FromSet    string    `json:"from_set" gorm:"index:idx_xwalk_sets"`
	ToSet      string    `json:"to_set" gorm:"index:idx_xwalk_sets"`
	FromNode   string    `json:"from_node" gorm:"index"`
	ToNode     string    `json:"to_node" gorm:"index"`
	Confidence float64   `json:"confidence"` // [0,1]
	Overlap    float64   `json:"overlap"`    // Deterministic lexical overlap that admitted the edge
	Rationale  string    `json:"rationale,omitempty"`
	Version    int64     `json:"version"`
	Superseded bool      `json:"superseded" gorm:"index"`
	ComputedAt time.Time `json:"computed_at"`
}
