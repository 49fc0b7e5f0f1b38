package chunk

import (
	"strings"
	"testing"
)

func TestChunker_Split_Empty(t *testing.T) {
	c := NewChunker(900, 1400)

	for _, text := range []string{"", "   \n\t\n  "} {
		if pieces := c.Split(text); len(pieces) != 0 {
			t.Errorf("expected no pieces for %q, got %d", text, len(pieces))
		}
	}
}

func TestChunker_Split_Paragraphs(t *testing.T) {
	c := NewChunker(900, 1400)

	text := "First paragraph about assessment.\n\nSecond paragraph about outcomes.\n\n\nThird."
	pieces := c.Split(text)
	if len(pieces) != 3 {
		t.Fatalf("expected 3 pieces, got %d", len(pieces))
	}
	for i, p := range pieces {
		if p.Ordinal != i {
			t.Errorf("piece %d has ordinal %d", i, p.Ordinal)
		}
		if p.Page != 1 {
			t.Errorf("piece %d on page %d, expected 1", i, p.Page)
		}
	}
	if pieces[1].Text != "Second paragraph about outcomes." {
		t.Errorf("unexpected second piece: %q", pieces[1].Text)
	}
}

func TestChunker_Split_Pages(t *testing.T) {
	c := NewChunker(900, 1400)

	text := "Page one content.\fPage two content."
	pieces := c.Split(text)
	if len(pieces) != 2 {
		t.Fatalf("expected 2 pieces, got %d", len(pieces))
	}
	if pieces[0].Page != 1 || pieces[1].Page != 2 {
		t.Fatalf("expected pages 1 and 2, got %d and %d", pieces[0].Page, pieces[1].Page)
	}
	// Offsets restart per page
	if pieces[1].Start != 0 {
		t.Errorf("expected page-relative start 0, got %d", pieces[1].Start)
	}
}

func TestChunker_Split_LongParagraph(t *testing.T) {
	c := NewChunker(50, 80)

	sentence := "The institution maintains assessment records. "
	text := strings.Repeat(sentence, 10)
	pieces := c.Split(text)
	if len(pieces) < 2 {
		t.Fatalf("expected the paragraph to split, got %d pieces", len(pieces))
	}
	for i, p := range pieces {
		if n := len([]rune(p.Text)); n > 80 {
			t.Errorf("piece %d exceeds max runes: %d", i, n)
		}
		// Sentence-boundary splitting should not cut words
		if strings.HasPrefix(p.Text, "nstitution") {
			t.Errorf("piece %d starts mid-word: %q", i, p.Text)
		}
	}
}

func TestChunker_CitationCounting(t *testing.T) {
	c := NewChunker(900, 1400)

	tests := []struct {
		text string
		want int
	}{
		{"Enrollment grew by 4% [1] and retention improved [23].", 2},
		{"As shown earlier (Smith, 2021), outcomes improved.", 1},
		{"Multiple authors agree (Garcia & Lee, 2019a).", 1},
		{"A footnote marker^3 appears here.", 1},
		{"No citations at all.", 0},
	}
	for _, tt := range tests {
		pieces := c.Split(tt.text)
		if len(pieces) != 1 {
			t.Fatalf("expected 1 piece for %q", tt.text)
		}
		if pieces[0].Citations != tt.want {
			t.Errorf("%q: expected %d citations, got %d", tt.text, tt.want, pieces[0].Citations)
		}
		if got := CountCitations(tt.text); got != tt.want {
			t.Errorf("CountCitations(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestNewChunker_Defaults(t *testing.T) {
	c := NewChunker(0, 0)
	if c.targetRunes != 900 {
		t.Errorf("expected default target 900, got %d", c.targetRunes)
	}
	if c.maxRunes < c.targetRunes {
		t.Errorf("max runes %d below target %d", c.maxRunes, c.targetRunes)
	}
}
