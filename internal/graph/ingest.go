package graph

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/net/html"

	"github.com/veridexhq/veridex/internal/model"
)

// ParseMode selects how a standards source document is decomposed
type ParseMode string

const (
	ParseOutline ParseMode = "outline" // Indented "CODE Title :: description" lines
	ParseJSON    ParseMode = "json"    // Structured export format
	ParseHTML    ParseMode = "html"    // Published standards page; headings become nodes
)

// Ingest parses a standards source into a staged graph. The returned graph
// is not visible to readers until Registry.Publish swaps it in. Node ids
// are derived from the set id and each node's human code, so ingesting the
// same source twice yields identical ids and edges.
func Ingest(set model.StandardSet, source []byte, mode ParseMode) (*Graph, error) {
	set.IngestedAt = time.Now().UTC()
	g := NewGraph(set)

	var err error
	switch mode {
	case ParseOutline, "":
		err = parseOutline(g, string(source))
	case ParseJSON:
		err = parseJSON(g, source)
	case ParseHTML:
		err = parseHTML(g, string(source))
	default:
		return nil, &model.ParseError{SetID: set.ID, Reason: "unknown parse mode " + string(mode)}
	}
	if err != nil {
		return nil, err
	}

	if g.Len() == 0 {
		return nil, &model.ParseError{SetID: set.ID, Reason: "source decomposed into zero nodes"}
	}
	return g, nil
}

// levelForDepth maps outline nesting depth to a node level
func levelForDepth(depth int) model.NodeLevel {
	switch depth {
	case 0:
		return model.LevelStandard
	case 1:
		return model.LevelClause
	default:
		return model.LevelIndicator
	}
}

// parseOutline reads an indented outline. One node per line:
//
//	CODE Title text :: optional description
//
// Depth comes from leading tabs (or two-space units). Nesting implies
// subsumes edges. A "@relates CODE1 CODE2" line adds a relates-to edge.
func parseOutline(g *Graph, source string) error {
	// Stack of node ids by depth for parent resolution
	var stack []string

	var relates [][2]string

	for lineNo, raw := range strings.Split(source, "\n") {
		line := strings.TrimRight(raw, " \t\r")
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if strings.HasPrefix(trimmed, "@relates ") {
			fields := strings.Fields(trimmed)
			if len(fields) != 3 {
				return &model.ParseError{SetID: g.Set.ID, Reason: fmt.Sprintf("line %d: @relates wants two codes", lineNo+1)}
			}
			relates = append(relates, [2]string{fields[1], fields[2]})
			continue
		}

		depth := outlineDepth(line)
		if depth > len(stack) {
			return &model.ParseError{SetID: g.Set.ID, Reason: fmt.Sprintf("line %d: indentation skips a level", lineNo+1)}
		}

		code, rest, ok := strings.Cut(trimmed, " ")
		if !ok || code == "" {
			return &model.ParseError{SetID: g.Set.ID, Reason: fmt.Sprintf("line %d: missing code or title", lineNo+1)}
		}
		title, desc, _ := strings.Cut(rest, " :: ")

		node := model.StandardNode{
			ID:          model.NodeID(g.Set.ID, code),
			SetID:       g.Set.ID,
			Code:        code,
			Title:       strings.TrimSpace(title),
			Description: strings.TrimSpace(desc),
			Level:       levelForDepth(depth),
		}
		g.AddNode(node)

		stack = append(stack[:depth], node.ID)
		if depth > 0 {
			edge := model.GraphEdge{SetID: g.Set.ID, From: stack[depth-1], To: node.ID, Type: model.EdgeSubsumes}
			if err := g.AddEdge(edge); err != nil {
				return err
			}
		}
	}

	for _, pair := range relates {
		edge := model.GraphEdge{
			SetID: g.Set.ID,
			From:  model.NodeID(g.Set.ID, pair[0]),
			To:    model.NodeID(g.Set.ID, pair[1]),
			Type:  model.EdgeRelatesTo,
		}
		if err := g.AddEdge(edge); err != nil {
			return err
		}
	}
	return nil
}

// outlineDepth counts leading indentation: one tab or two spaces per level
func outlineDepth(line string) int {
	depth := 0
	spaces := 0
	for _, r := range line {
		switch r {
		case '\t':
			depth++
		case ' ':
			spaces++
			if spaces == 2 {
				depth++
				spaces = 0
			}
		default:
			return depth
		}
	}
	return depth
}

// jsonSource is the structured export format for a standards document
type jsonSource struct {
	Nodes []struct {
		Code        string `json:"code"`
		Title       string `json:"title"`
		Description string `json:"description,omitempty"`
		Level       string `json:"level"`
		Parent      string `json:"parent,omitempty"` // Parent code, not id
	} `json:"nodes"`
	Relations []struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"relations,omitempty"`
}

func parseJSON(g *Graph, source []byte) error {
	var doc jsonSource
	if err := json.Unmarshal(source, &doc); err != nil {
		return &model.ParseError{SetID: g.Set.ID, Reason: "invalid JSON: " + err.Error()}
	}

	for _, n := range doc.Nodes {
		if n.Code == "" {
			return &model.ParseError{SetID: g.Set.ID, Reason: "node with empty code"}
		}
		level := model.NodeLevel(n.Level)
		switch level {
		case model.LevelStandard, model.LevelClause, model.LevelIndicator:
		default:
			return &model.ParseError{SetID: g.Set.ID, Reason: "node " + n.Code + ": unknown level " + n.Level}
		}
		g.AddNode(model.StandardNode{
			ID:          model.NodeID(g.Set.ID, n.Code),
			SetID:       g.Set.ID,
			Code:        n.Code,
			Title:       n.Title,
			Description: n.Description,
			Level:       level,
		})
	}

	// Edges after nodes so forward parent references work
	for _, n := range doc.Nodes {
		if n.Parent == "" {
			continue
		}
		edge := model.GraphEdge{
			SetID: g.Set.ID,
			From:  model.NodeID(g.Set.ID, n.Parent),
			To:    model.NodeID(g.Set.ID, n.Code),
			Type:  model.EdgeSubsumes,
		}
		if err := g.AddEdge(edge); err != nil {
			return err
		}
	}
	for _, rel := range doc.Relations {
		edge := model.GraphEdge{
			SetID: g.Set.ID,
			From:  model.NodeID(g.Set.ID, rel.From),
			To:    model.NodeID(g.Set.ID, rel.To),
			Type:  model.EdgeRelatesTo,
		}
		if err := g.AddEdge(edge); err != nil {
			return err
		}
	}
	return nil
}

// parseHTML walks a published standards page. h1/h2/h3 headings become
// standard/clause/indicator nodes; paragraph text following a heading
// becomes its description. The heading's leading token is used as the
// code when it looks like one (contains a digit or dot).
func parseHTML(g *Graph, source string) error {
	doc, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return &model.ParseError{SetID: g.Set.ID, Reason: "invalid HTML: " + err.Error()}
	}

	type pending struct {
		node  model.StandardNode
		depth int
	}
	var stack []string
	var last *pending
	var flushErr error

	flush := func() {
		if last == nil || flushErr != nil {
			return
		}
		g.AddNode(last.node)
		stack = append(stack[:last.depth], last.node.ID)
		if last.depth > 0 {
			edge := model.GraphEdge{SetID: g.Set.ID, From: stack[last.depth-1], To: last.node.ID, Type: model.EdgeSubsumes}
			flushErr = g.AddEdge(edge)
		}
		last = nil
	}

	seq := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if flushErr != nil {
			return
		}
		if n.Type == html.ElementNode {
			var depth int
			switch n.Data {
			case "h1":
				depth = 0
			case "h2":
				depth = 1
			case "h3":
				depth = 2
			case "p":
				if last != nil {
					text := strings.TrimSpace(nodeText(n))
					if last.node.Description == "" {
						last.node.Description = text
					} else {
						last.node.Description += " " + text
					}
				}
				return
			default:
				goto children
			}
			if depth > len(stack) {
				flushErr = &model.ParseError{SetID: g.Set.ID, Reason: "heading " + n.Data + " skips a level"}
				return
			}
			flush()
			seq++
			title := strings.TrimSpace(nodeText(n))
			code, rest := headingCode(title, seq)
			last = &pending{
				node: model.StandardNode{
					ID:    model.NodeID(g.Set.ID, code),
					SetID: g.Set.ID,
					Code:  code,
					Title: rest,
					Level: levelForDepth(depth),
				},
				depth: depth,
			}
			return
		}
	children:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	flush()
	return flushErr
}

// headingCode splits "3.A.2 Academic Records" into code and title. When
// the first token does not look like a code, a positional one is made up
// so ids stay stable across re-ingestion.
func headingCode(title string, seq int) (code, rest string) {
	first, remainder, ok := strings.Cut(title, " ")
	if ok && looksLikeCode(first) {
		return strings.TrimSuffix(first, "."), strings.TrimSpace(remainder)
	}
	return fmt.Sprintf("S%d", seq), title
}

func looksLikeCode(token string) bool {
	hasDigit := false
	for _, r := range token {
		if unicode.IsDigit(r) {
			hasDigit = true
		}
		if !unicode.IsDigit(r) && !unicode.IsUpper(r) && r != '.' && r != '-' {
			return false
		}
	}
	return hasDigit
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
