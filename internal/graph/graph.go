package graph

import (
	"sort"
	"sync"

	"github.com/veridexhq/veridex/internal/model"
)

// Graph is one StandardSet's node hierarchy. Subsumption is kept as a
// parent-pointer map so ancestry checks are O(depth) and the forest
// invariant is trivial to enforce; relates-to edges live in a separate
// adjacency list since they need not be acyclic.
type Graph struct {
	Set     model.StandardSet
	nodes   map[string]model.StandardNode
	order   []string            // Node ids in ingestion order
	parent  map[string]string   // child id -> subsuming parent id
	related map[string][]string // relates-to adjacency
}

// NewGraph creates an empty graph for a set
func NewGraph(set model.StandardSet) *Graph {
	return &Graph{
		Set:     set,
		nodes:   make(map[string]model.StandardNode),
		parent:  make(map[string]string),
		related: make(map[string][]string),
	}
}

// AddNode inserts or updates a node. Re-adding the same id updates text
// only, keeping ingestion idempotent.
func (g *Graph) AddNode(n model.StandardNode) {
	if _, exists := g.nodes[n.ID]; !exists {
		g.order = append(g.order, n.ID)
	}
	g.nodes[n.ID] = n
}

// Node returns a node by id
func (g *Graph) Node(id string) (model.StandardNode, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Parent returns the subsuming parent of a node, if any
func (g *Graph) Parent(id string) (string, bool) {
	p, ok := g.parent[id]
	return p, ok
}

// AddEdge inserts an edge, enforcing the subsumption forest invariant.
// A subsumes edge runs parent -> child.
func (g *Graph) AddEdge(e model.GraphEdge) error {
	if e.From == e.To {
		return &model.CycleError{SetID: g.Set.ID, NodeID: e.From, Reason: "self-loop"}
	}
	if _, ok := g.nodes[e.From]; !ok {
		return &model.ParseError{SetID: g.Set.ID, Reason: "edge references unknown node " + e.From}
	}
	if _, ok := g.nodes[e.To]; !ok {
		return &model.ParseError{SetID: g.Set.ID, Reason: "edge references unknown node " + e.To}
	}

	switch e.Type {
	case model.EdgeSubsumes:
		if existing, ok := g.parent[e.To]; ok && existing != e.From {
			return &model.CycleError{SetID: g.Set.ID, NodeID: e.To, Reason: "node already subsumed by " + existing}
		}
		// Walk the prospective parent's ancestry; finding the child there
		// means this edge would close a cycle.
		for cur := e.From; ; {
			p, ok := g.parent[cur]
			if !ok {
				break
			}
			if p == e.To {
				return &model.CycleError{SetID: g.Set.ID, NodeID: e.To, Reason: "subsumption cycle via " + cur}
			}
			cur = p
		}
		g.parent[e.To] = e.From
	case model.EdgeRelatesTo:
		for _, to := range g.related[e.From] {
			if to == e.To {
				return nil // Already present
			}
		}
		g.related[e.From] = append(g.related[e.From], e.To)
	default:
		return &model.ParseError{SetID: g.Set.ID, Reason: "unknown edge type " + string(e.Type)}
	}
	return nil
}

// Nodes returns all nodes in ingestion order
func (g *Graph) Nodes() []model.StandardNode {
	out := make([]model.StandardNode, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Edges returns all edges, subsumes first, in deterministic order
func (g *Graph) Edges() []model.GraphEdge {
	var out []model.GraphEdge
	for _, id := range g.order {
		if p, ok := g.parent[id]; ok {
			out = append(out, model.GraphEdge{SetID: g.Set.ID, From: p, To: id, Type: model.EdgeSubsumes})
		}
	}
	for _, from := range g.order {
		tos := append([]string(nil), g.related[from]...)
		sort.Strings(tos)
		for _, to := range tos {
			out = append(out, model.GraphEdge{SetID: g.Set.ID, From: from, To: to, Type: model.EdgeRelatesTo})
		}
	}
	return out
}

// Ancestors returns the subsumption chain from a node up to its root
func (g *Graph) Ancestors(id string) []string {
	var chain []string
	for cur := id; ; {
		p, ok := g.parent[cur]
		if !ok {
			break
		}
		chain = append(chain, p)
		cur = p
	}
	return chain
}

// Registry holds published graphs keyed by set id. Ingestion builds a
// complete staged graph and swaps it in under the lock, so readers never
// observe a partially-ingested set.
type Registry struct {
	mu     sync.RWMutex
	graphs map[string]*Graph
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{graphs: make(map[string]*Graph)}
}

// Publish swaps in a fully-built graph for its set
func (r *Registry) Publish(g *Graph) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g.Set.Published = true
	r.graphs[g.Set.ID] = g
}

// Get returns the published graph for a set, if any
func (r *Registry) Get(setID string) (*Graph, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.graphs[setID]
	return g, ok
}

// SetIDs returns the ids of all published sets
func (r *Registry) SetIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.graphs))
	for id := range r.graphs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
