// Package graph accumulates typed nodes and directed edges into a single
// description with an open/closed lifecycle.
package graph

import (
	"fmt"
	"sync"

	"github.com/phobologic/cloudgraph/internal/model"
)

// Graph is the shared node/edge buffer. It is open until Close is called;
// inserting into a closed graph panics. Safe for concurrent producers.
type Graph struct {
	mu     sync.Mutex
	nodes  []model.Node
	index  map[string]int
	edges  []model.Edge
	seen   map[edgeKey]struct{}
	closed bool
	snap   *Snapshot
}

type edgeKey struct {
	src, srcPort, tgt, tgtPort string
}

// Snapshot is the immutable content of a closed graph, in insertion order.
type Snapshot struct {
	Nodes []model.Node
	Edges []model.Edge
}

// New returns an empty open graph.
func New() *Graph {
	return &Graph{
		index: make(map[string]int),
		seen:  make(map[edgeKey]struct{}),
	}
}

// AddNode inserts a node with the given label and kind. Inserting a label that
// already exists is a no-op.
func (g *Graph) AddNode(label string, kind model.NodeKind) {
	g.Insert(model.Node{Label: label, Kind: kind})
}

// Insert adds a fully described node. The first insertion of a label wins,
// except that a plain placeholder is replaced by a typed node.
func (g *Graph) Insert(n model.Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustBeOpen("Insert")
	g.insert(n)
}

func (g *Graph) insert(n model.Node) {
	if i, ok := g.index[n.Label]; ok {
		if g.nodes[i].Kind == model.Plain && n.Kind != model.Plain {
			g.nodes[i] = n
		}
		return
	}
	g.index[n.Label] = len(g.nodes)
	g.nodes = append(g.nodes, n)
}

// AddEdge appends a directed edge between two node labels.
func (g *Graph) AddEdge(src, dst string) {
	g.Link(model.Edge{Source: model.Endpoint{Label: src}, Target: model.Endpoint{Label: dst}})
}

// Link appends a directed edge. Duplicate edges are dropped; cycles are allowed.
func (g *Graph) Link(e model.Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustBeOpen("Link")
	g.link(e)
}

func (g *Graph) link(e model.Edge) {
	key := edgeKey{e.Source.Label, e.Source.Port, e.Target.Label, e.Target.Port}
	if _, dup := g.seen[key]; dup {
		return
	}
	g.seen[key] = struct{}{}
	g.edges = append(g.edges, e)
}

// Merge appends every node and edge of other, in other's insertion order,
// and closes other.
func (g *Graph) Merge(other *Graph) {
	snap := other.Close()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustBeOpen("Merge")
	for _, n := range snap.Nodes {
		g.insert(n)
	}
	for _, e := range snap.Edges {
		g.link(e)
	}
}

// Len reports the number of nodes and edges.
func (g *Graph) Len() (nodes, edges int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes), len(g.edges)
}

// Close stops accepting insertions and returns the graph content. Edge
// endpoints that were never inserted as nodes are added as plain nodes, so
// no edge dangles. Repeated calls return the same snapshot.
func (g *Graph) Close() *Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return g.snap
	}
	for _, e := range g.edges {
		for _, label := range []string{e.Source.Label, e.Target.Label} {
			if _, ok := g.index[label]; !ok {
				g.insert(model.Node{Label: label, Kind: model.Plain})
			}
		}
	}
	g.closed = true
	g.snap = &Snapshot{
		Nodes: append([]model.Node(nil), g.nodes...),
		Edges: append([]model.Edge(nil), g.edges...),
	}
	return g.snap
}

// Closed reports whether Close has been called.
func (g *Graph) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

func (g *Graph) mustBeOpen(op string) {
	if g.closed {
		panic(fmt.Sprintf("graph: %s on closed graph", op))
	}
}

// Node returns the node with the given label.
func (s *Snapshot) Node(label string) (model.Node, bool) {
	for _, n := range s.Nodes {
		if n.Label == label {
			return n, true
		}
	}
	return model.Node{}, false
}

// Subgraph returns the nodes whose label is in keep and the edges between them.
func (s *Snapshot) Subgraph(keep map[string]struct{}) *Snapshot {
	out := &Snapshot{}
	for _, n := range s.Nodes {
		if _, ok := keep[n.Label]; ok {
			out.Nodes = append(out.Nodes, n)
		}
	}
	for _, e := range s.Edges {
		_, srcOK := keep[e.Source.Label]
		_, tgtOK := keep[e.Target.Label]
		if srcOK && tgtOK {
			out.Edges = append(out.Edges, e)
		}
	}
	return out
}
