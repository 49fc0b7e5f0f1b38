package graph

import (
	"errors"
	"testing"

	"github.com/veridexhq/veridex/internal/model"
)

const outlineSource = `# HLC criteria excerpt
1 Mission :: The institution's mission is clear.
	1.A Mission articulation :: The mission is articulated publicly.
		1.A.1 Mission documents
2 Integrity :: The institution acts with integrity.
@relates 1.A 2
`

func TestIngest_Outline(t *testing.T) {
	g, err := Ingest(testSet(), []byte(outlineSource), ParseOutline)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if g.Len() != 4 {
		t.Fatalf("expected 4 nodes, got %d", g.Len())
	}

	n, ok := g.Node("hlc-2024:1.A")
	if !ok {
		t.Fatal("node 1.A missing")
	}
	if n.Level != model.LevelClause {
		t.Fatalf("expected clause level, got %s", n.Level)
	}
	if n.Title != "Mission articulation" || n.Description != "The mission is articulated publicly." {
		t.Fatalf("unexpected title/description: %q / %q", n.Title, n.Description)
	}

	if p, _ := g.Parent("hlc-2024:1.A.1"); p != "hlc-2024:1.A" {
		t.Fatalf("expected 1.A to subsume 1.A.1, got parent %q", p)
	}

	// Nesting implies two subsumes edges; @relates adds one more
	subsumes, relates := 0, 0
	for _, e := range g.Edges() {
		switch e.Type {
		case model.EdgeSubsumes:
			subsumes++
		case model.EdgeRelatesTo:
			relates++
		}
	}
	if subsumes != 2 || relates != 1 {
		t.Fatalf("expected 2 subsumes + 1 relates, got %d + %d", subsumes, relates)
	}
}

func TestIngest_Outline_Idempotent(t *testing.T) {
	g1, err := Ingest(testSet(), []byte(outlineSource), ParseOutline)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	g2, err := Ingest(testSet(), []byte(outlineSource), ParseOutline)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	n1 := g1.Nodes()
	n2 := g2.Nodes()
	if len(n1) != len(n2) {
		t.Fatalf("node counts differ: %d vs %d", len(n1), len(n2))
	}
	for i := range n1 {
		if n1[i].ID != n2[i].ID {
			t.Fatalf("node ids differ at %d: %s vs %s", i, n1[i].ID, n2[i].ID)
		}
	}
}

func TestIngest_Outline_IndentationSkip(t *testing.T) {
	src := "1 Mission\n\t\t1.A.1 Too deep\n"
	_, err := Ingest(testSet(), []byte(src), ParseOutline)
	var pe *model.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError for skipped level, got %v", err)
	}
}

func TestIngest_EmptySource(t *testing.T) {
	_, err := Ingest(testSet(), []byte("# only a comment\n"), ParseOutline)
	var pe *model.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError for zero nodes, got %v", err)
	}
}

func TestIngest_JSON(t *testing.T) {
	src := `{
		"nodes": [
			{"code": "1", "title": "Mission", "level": "standard"},
			{"code": "1.A", "title": "Articulation", "level": "clause", "parent": "1"},
			{"code": "2", "title": "Integrity", "level": "standard"}
		],
		"relations": [{"from": "1.A", "to": "2"}]
	}`
	g, err := Ingest(testSet(), []byte(src), ParseJSON)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if g.Len() != 3 {
		t.Fatalf("expected 3 nodes, got %d", g.Len())
	}
	if p, _ := g.Parent("hlc-2024:1.A"); p != "hlc-2024:1" {
		t.Fatalf("expected parent 1, got %q", p)
	}
}

func TestIngest_JSON_UnknownLevel(t *testing.T) {
	src := `{"nodes": [{"code": "1", "title": "Mission", "level": "chapter"}]}`
	_, err := Ingest(testSet(), []byte(src), ParseJSON)
	var pe *model.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError for unknown level, got %v", err)
	}
}

func TestIngest_HTML(t *testing.T) {
	src := `<html><body>
		<h1>1 Mission</h1>
		<p>The institution's mission is clear.</p>
		<h2>1.A Mission articulation</h2>
		<p>Articulated publicly.</p>
		<h2>Overview of integrity matters</h2>
	</body></html>`

	g, err := Ingest(testSet(), []byte(src), ParseHTML)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if g.Len() != 3 {
		t.Fatalf("expected 3 nodes, got %d", g.Len())
	}

	n, ok := g.Node("hlc-2024:1")
	if !ok {
		t.Fatal("node 1 missing")
	}
	if n.Description != "The institution's mission is clear." {
		t.Fatalf("unexpected description: %q", n.Description)
	}

	// A heading without a code token gets a positional one
	if _, ok := g.Node("hlc-2024:S3"); !ok {
		t.Fatal("expected positional code S3 for codeless heading")
	}
	if p, _ := g.Parent("hlc-2024:1.A"); p != "hlc-2024:1" {
		t.Fatalf("expected h1 to subsume h2, got parent %q", p)
	}
}

func TestIngest_UnknownMode(t *testing.T) {
	_, err := Ingest(testSet(), []byte("x"), ParseMode("xml"))
	var pe *model.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError for unknown mode, got %v", err)
	}
}
