package model

import "time"

// CitationStatus is the overall result of citation validation
type CitationStatus string

const (
	CitationPass   CitationStatus = "pass"
	CitationWarn   CitationStatus = "warn"   // Only the advisory model check flagged issues
	CitationFail   CitationStatus = "fail"   // A structural check failed
	CitationQueued CitationStatus = "queued" // Large document; validated asynchronously
)

// Citation issue codes. Structural codes can fail a document; advisory
// codes from the model check can only warn.
const (
	IssueMissingCitation    = "MISSING_CITATION"
	IssueUnresolvedMarker   = "UNRESOLVED_MARKER"
	IssueOrphanReference    = "ORPHAN_REFERENCE"
	IssueMalformedReference = "MALFORMED_REFERENCE"
	IssueDeadReferenceURL   = "DEAD_REFERENCE_URL"
	IssuePossibleUncited    = "POSSIBLE_UNCITED_CLAIM" // Advisory only
)

// CitationIssue is one problem found in an artifact's citations
type CitationIssue struct {
	Code     string `json:"code"`
	Where    string `json:"where"`              // Location hint, e.g. "page 3" or a marker
	Hint     string `json:"hint,omitempty"`
	Advisory bool   `json:"advisory,omitempty"` // From the model-based check
}

// CitationReport is the per-artifact validation result. Only the latest
// result is kept.
type CitationReport struct {
	ArtifactID string          `json:"artifact_id" gorm:"primaryKey"`
	Style      string          `json:"style"`
	Status     CitationStatus  `json:"status"`
	Issues     []CitationIssue `json:"issues" gorm:"serializer:json"`
	ComputedAt time.Time       `json:"computed_at"`
}
