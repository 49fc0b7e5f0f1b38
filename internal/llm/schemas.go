package llm

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema names the client accepts
const (
	SchemaRationale        = "evidence_rationale"
	SchemaCrosswalkPairs   = "crosswalk_pairs"
	SchemaCitationAdvisory = "citation_advisory"
)

// Raw JSON Schemas for every structured output the engine consumes. A
// response that fails its schema is rejected; it never reaches the caller.
var schemaSources = map[string]string{
	SchemaRationale: `{
		"type": "object",
		"required": ["rationale"],
		"additionalProperties": false,
		"properties": {
			"rationale": {"type": "string", "minLength": 1, "maxLength": 2000}
		}
	}`,
	SchemaCrosswalkPairs: `{
		"type": "object",
		"required": ["pairs"],
		"additionalProperties": false,
		"properties": {
			"pairs": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["from_code", "to_code", "confidence"],
					"additionalProperties": false,
					"properties": {
						"from_code": {"type": "string", "minLength": 1},
						"to_code": {"type": "string", "minLength": 1},
						"confidence": {"type": "number", "minimum": 0, "maximum": 1},
						"rationale": {"type": "string", "maxLength": 2000}
					}
				}
			}
		}
	}`,
	SchemaCitationAdvisory: `{
		"type": "object",
		"required": ["issues"],
		"additionalProperties": false,
		"properties": {
			"issues": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["where"],
					"additionalProperties": false,
					"properties": {
						"where": {"type": "string", "minLength": 1},
						"hint": {"type": "string", "maxLength": 500}
					}
				}
			}
		}
	}`,
}

// compileSchemas compiles every registered schema once at client build
func compileSchemas() (map[string]*jsonschema.Schema, error) {
	out := make(map[string]*jsonschema.Schema, len(schemaSources))
	for name, src := range schemaSources {
		schema, err := jsonschema.CompileString(name+".json", src)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		out[name] = schema
	}
	return out, nil
}

// RationaleOutput mirrors the evidence_rationale schema
type RationaleOutput struct {
	Rationale string `json:"rationale"`
}

// CrosswalkPairsOutput mirrors the crosswalk_pairs schema
type CrosswalkPairsOutput struct {
	Pairs []CrosswalkPair `json:"pairs"`
}

// CrosswalkPair is one proposed cross-framework equivalence
type CrosswalkPair struct {
	FromCode   string  `json:"from_code"`
	ToCode     string  `json:"to_code"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale,omitempty"`
}

// CitationAdvisoryOutput mirrors the citation_advisory schema
type CitationAdvisoryOutput struct {
	Issues []CitationAdvisoryIssue `json:"issues"`
}

// CitationAdvisoryIssue is one possibly-uncited passage flagged by the model
type CitationAdvisoryIssue struct {
	Where string `json:"where"`
	Hint  string `json:"hint,omitempty"`
}
