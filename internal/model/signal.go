package model

// Signal is a diagnostic scoring signal with transparent data. Every number
// that feeds a compliance-facing score carries its formula and inputs here,
// so a reviewer can recompute the score by hand.
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"` // Formula and inputs
}

// SignalType classifies the diagnostic signal
type SignalType string

const (
	SignalFreshness       SignalType = "freshness"        // Age since effective date
	SignalAuthenticity    SignalType = "authenticity"     // Authorship/signer metadata
	SignalRedundancy      SignalType = "redundancy"       // Near-duplicate chunks in corpus
	SignalCitationDensity SignalType = "citation_density" // Citation markers per text volume
	SignalCoverage        SignalType = "coverage"         // Evidence link coverage of a node
	SignalRecency         SignalType = "recency"          // Age of newest supporting link
	SignalCrosswalk       SignalType = "crosswalk"        // Cross-framework support
)

// SignalSeverity indicates how much attention a signal deserves
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
