// Package ranking computes node centrality and selects subgraphs of a closed
// graph snapshot.
package ranking

import (
	"math"
	"sort"
	"strings"

	"github.com/phobologic/cloudgraph/internal/graph"
)

const (
	damping = 0.85
	maxIter = 100
	tol     = 1e-6
)

// PageRank returns the PageRank of every node. An edge from a to b passes
// rank from a to b; parallel edges through different ports count once each.
func PageRank(snap *graph.Snapshot) map[string]float64 {
	n := len(snap.Nodes)
	if n == 0 {
		return nil
	}

	nodes := make([]string, 0, n)
	for _, node := range snap.Nodes {
		nodes = append(nodes, node.Label)
	}

	outEdges := make(map[string][]string)
	for _, e := range snap.Edges {
		outEdges[e.Source.Label] = append(outEdges[e.Source.Label], e.Target.Label)
	}

	rank := make(map[string]float64, n)
	initial := 1.0 / float64(n)
	for _, node := range nodes {
		rank[node] = initial
	}
	if len(snap.Edges) == 0 {
		return rank
	}

	teleport := (1.0 - damping) / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		// Nodes without outgoing edges spread their rank uniformly.
		var danglingSum float64
		for _, node := range nodes {
			if len(outEdges[node]) == 0 {
				danglingSum += rank[node]
			}
		}
		base := teleport + damping*danglingSum/float64(n)

		next := make(map[string]float64, n)
		for _, node := range nodes {
			next[node] = base
		}
		for src, targets := range outEdges {
			contrib := damping * rank[src] / float64(len(targets))
			for _, tgt := range targets {
				next[tgt] += contrib
			}
		}

		var diff float64
		for _, node := range nodes {
			diff += math.Abs(next[node] - rank[node])
		}
		rank = next
		if diff < tol {
			break
		}
	}
	return rank
}

// Top keeps the n highest-ranked nodes and the edges between them. Ties are
// broken by insertion order. If n is <= 0 or >= the node count, snap is
// returned unchanged.
func Top(snap *graph.Snapshot, ranks map[string]float64, n int) *graph.Snapshot {
	if n <= 0 || n >= len(snap.Nodes) {
		return snap
	}

	order := make([]int, len(snap.Nodes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return ranks[snap.Nodes[order[i]].Label] > ranks[snap.Nodes[order[j]].Label]
	})

	keep := make(map[string]struct{}, n)
	for _, i := range order[:n] {
		keep[snap.Nodes[i].Label] = struct{}{}
	}
	return snap.Subgraph(keep)
}

// Focus keeps the nodes whose label contains substr (case-insensitive), their
// direct neighbours in either direction, and the edges between kept nodes.
// An empty substr returns snap unchanged.
func Focus(snap *graph.Snapshot, substr string) *graph.Snapshot {
	if substr == "" {
		return snap
	}
	lower := strings.ToLower(substr)

	matched := make(map[string]struct{})
	for _, n := range snap.Nodes {
		if strings.Contains(strings.ToLower(n.Label), lower) {
			matched[n.Label] = struct{}{}
		}
	}

	keep := make(map[string]struct{}, len(matched))
	for label := range matched {
		keep[label] = struct{}{}
	}
	for _, e := range snap.Edges {
		if _, ok := matched[e.Source.Label]; ok {
			keep[e.Target.Label] = struct{}{}
		}
		if _, ok := matched[e.Target.Label]; ok {
			keep[e.Source.Label] = struct{}{}
		}
	}
	return snap.Subgraph(keep)
}
