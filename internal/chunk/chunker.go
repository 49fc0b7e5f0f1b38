package chunk

import (
	"regexp"
	"strings"
)

// Chunker splits artifact text into ordered spans with page/offset
// provenance. Pages are delimited by form-feed characters, the convention
// used by upstream format parsers when they flatten a document to text.
type Chunker struct {
	targetRunes int
	maxRunes    int
}

// Piece is one chunk of artifact text before embedding
type Piece struct {
	Ordinal   int
	Text      string
	Page      int // 1-based
	Start     int // Rune offset within the page
	End       int
	Citations int // Citation markers found in the text
}

// Citation markers: bracketed numerics [12], parenthetical author-year
// (Smith, 2021), and footnote carets.
var citationMarkerRe = regexp.MustCompile(`\[\d{1,3}\]|\([A-Z][A-Za-z&.\- ]{1,40},\s*\d{4}[a-z]?\)|\^\d{1,3}`)

// NewChunker creates a chunker with the given rune budgets
func NewChunker(targetRunes, maxRunes int) *Chunker {
	if targetRunes <= 0 {
		targetRunes = 900
	}
	if maxRunes < targetRunes {
		maxRunes = targetRunes * 3 / 2
	}
	return &Chunker{targetRunes: targetRunes, maxRunes: maxRunes}
}

// Split chunks the artifact text. Zero extractable text yields an empty
// slice, not an error; the caller decides how to report that.
func (c *Chunker) Split(text string) []Piece {
	var pieces []Piece
	ordinal := 0

	for pageIdx, page := range strings.Split(text, "\f") {
		for _, para := range splitParagraphs(page) {
			for _, seg := range c.splitLong(para.text) {
				trimmed := strings.TrimSpace(seg.text)
				if trimmed == "" {
					continue
				}
				start := para.start + seg.start
				pieces = append(pieces, Piece{
					Ordinal:   ordinal,
					Text:      trimmed,
					Page:      pageIdx + 1,
					Start:     start,
					End:       start + len([]rune(seg.text)),
					Citations: len(citationMarkerRe.FindAllString(seg.text, -1)),
				})
				ordinal++
			}
		}
	}
	return pieces
}

type segment struct {
	text  string
	start int // Rune offset relative to the enclosing unit
}

// splitParagraphs returns paragraphs with their rune offsets in the page
func splitParagraphs(page string) []segment {
	var out []segment
	runes := []rune(page)
	start := 0
	i := 0
	flush := func(end int) {
		text := string(runes[start:end])
		if strings.TrimSpace(text) != "" {
			out = append(out, segment{text: text, start: start})
		}
	}
	for i < len(runes) {
		// A blank line ends a paragraph
		if runes[i] == '\n' && i+1 < len(runes) && isBlankThrough(runes, i+1) {
			flush(i)
			for i < len(runes) && (runes[i] == '\n' || runes[i] == ' ' || runes[i] == '\t' || runes[i] == '\r') {
				i++
			}
			start = i
			continue
		}
		i++
	}
	flush(len(runes))
	return out
}

func isBlankThrough(runes []rune, from int) bool {
	for i := from; i < len(runes); i++ {
		switch runes[i] {
		case '\n':
			return true
		case ' ', '\t', '\r':
		default:
			return false
		}
	}
	return true
}

// splitLong breaks an over-budget paragraph on sentence boundaries,
// falling back to a hard split at maxRunes.
func (c *Chunker) splitLong(para string) []segment {
	runes := []rune(para)
	if len(runes) <= c.maxRunes {
		return []segment{{text: para, start: 0}}
	}

	var out []segment
	start := 0
	for start < len(runes) {
		if len(runes)-start <= c.maxRunes {
			out = append(out, segment{text: string(runes[start:]), start: start})
			break
		}
		cut := start + c.targetRunes
		// Look ahead for a sentence end within budget
		best := -1
		for i := cut; i < start+c.maxRunes && i < len(runes); i++ {
			if isSentenceEnd(runes, i) {
				best = i + 1
				break
			}
		}
		if best == -1 {
			best = start + c.maxRunes
		}
		out = append(out, segment{text: string(runes[start:best]), start: start})
		start = best
	}
	return out
}

func isSentenceEnd(runes []rune, i int) bool {
	switch runes[i] {
	case '.', '!', '?':
	default:
		return false
	}
	return i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n'
}

// CountCitations counts citation markers in a whole text; used by the
// trust scorer and CiteGuard without re-chunking.
func CountCitations(text string) int {
	return len(citationMarkerRe.FindAllString(text, -1))
}
