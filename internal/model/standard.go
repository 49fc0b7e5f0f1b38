package model

import "time"

// StandardSet identifies one versioned framework of published standards.
// A set is immutable once ingested; a new framework version is a new set.
type StandardSet struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	Framework  string    `json:"framework"`            // e.g. "HLC", "SACSCOC"
	Version    string    `json:"version"`              // e.g. "2024"
	IngestedAt time.Time `json:"ingested_at"`
	Published  bool      `json:"published"`            // true once stage-then-swap completed
}

// NodeLevel indicates where a node sits in a framework's hierarchy
type NodeLevel string

const (
	LevelStandard  NodeLevel = "standard"  // Top-level published standard
	LevelClause    NodeLevel = "clause"    // Sub-clause of a standard
	LevelIndicator NodeLevel = "indicator" // Measurable indicator under a clause
)

// StandardNode is one standard, clause, or indicator within a StandardSet.
// Nodes are created during ingestion and read-only afterward.
type StandardNode struct {
	ID          string    `json:"id" gorm:"primaryKey"`      // Stable: "<set>:<code>"
	SetID       string    `json:"set_id" gorm:"index"`
	Code        string    `json:"code"`                      // Human code, e.g. "3.A.2"
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Level       NodeLevel `json:"level"`
}

// EdgeType classifies a graph edge
type EdgeType string

const (
	EdgeSubsumes  EdgeType = "subsumes"   // Parent clause subsumes child; must form a forest
	EdgeRelatesTo EdgeType = "relates-to" // Cross-reference; no acyclicity requirement
)

// GraphEdge is a directed edge between two StandardNodes of the same set
type GraphEdge struct {
	SetID string   `json:"set_id" gorm:"index"`
	From  string   `json:"from" gorm:"primaryKey"`
	To    string   `json:"to" gorm:"primaryKey"`
	Type  EdgeType `json:"type" gorm:"primaryKey"`
}

// NodeID derives the stable node id from a set id and human code.
// Re-ingesting the same source yields the same ids (idempotence).
func NodeID(setID, code string) string {
	return setID + ":" + code
}
