package llm

import (
	"fmt"
	"strings"
)

const systemPrompt = "You are a compliance analysis assistant. You respond with a single JSON object matching the requested shape, and nothing else. You never invent standards, codes, or evidence beyond what the prompt provides."

// BuildRationalePrompt asks why a matched chunk supports a standard node.
// Only the matched chunk text and the node's code/title are passed, never
// unrelated content.
func BuildRationalePrompt(nodeCode, nodeTitle, chunkText string) string {
	return fmt.Sprintf(`An evidence document excerpt was matched to a compliance standard by semantic similarity.

Standard %s: %s

Excerpt:
%s

In 1-3 sentences, explain what in the excerpt supports this standard. Describe only what the excerpt states; if the connection is weak, say so.

Respond with JSON: {"rationale": "<explanation>"}`, nodeCode, nodeTitle, chunkText)
}

// BuildCrosswalkPrompt asks for equivalences between two blocks of
// standards, one block per framework. Codes outside the two lists are
// rejected downstream by the deterministic filter.
func BuildCrosswalkPrompt(fromFramework, toFramework string, fromBlock, toBlock []string) string {
	return fmt.Sprintf(`Two accreditation frameworks are being cross-mapped.

Framework A (%s):
%s

Framework B (%s):
%s

Propose pairs of requirements that are equivalent in substance (not merely similar topic). Use ONLY the codes listed above. Omit pairs you are not confident about rather than guessing.

Respond with JSON: {"pairs": [{"from_code": "<A code>", "to_code": "<B code>", "confidence": <0..1>, "rationale": "<1 sentence>"}]}`,
		fromFramework, strings.Join(fromBlock, "\n"), toFramework, strings.Join(toBlock, "\n"))
}

// BuildCitationAdvisoryPrompt asks for passages that assert facts without
// a citation. The result is advisory only; it can never fail a document.
func BuildCitationAdvisoryPrompt(style string, text string) string {
	return fmt.Sprintf(`The following document is expected to follow %s citation style. List passages that assert specific facts, figures, or quotations without any citation marker. Quote at most the first eight words of each passage as its location. If nothing is missing, return an empty list.

Document:
%s

Respond with JSON: {"issues": [{"where": "<first words of passage>", "hint": "<why a citation is expected>"}]}`, style, text)
}

// SystemPrompt returns the shared system prompt for structured calls
func SystemPrompt() string {
	return systemPrompt
}
