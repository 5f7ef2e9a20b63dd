// directed_graph.go: Directed graph with topological ordering
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

// DirectedGraph is a directed graph of plugin ids.
//
// Vertices and each vertex's neighbors keep insertion order so traversals
// are reproducible for the same input. The graph is not safe for concurrent
// mutation; the resolver builds a fresh graph per resolution pass.
type DirectedGraph struct {
	order []string
	adj   map[string][]string
}

// NewDirectedGraph creates an empty graph.
func NewDirectedGraph() *DirectedGraph {
	return &DirectedGraph{adj: make(map[string][]string)}
}

// AddVertex adds v if not already present.
func (g *DirectedGraph) AddVertex(v string) {
	if _, exists := g.adj[v]; exists {
		return
	}
	g.adj[v] = nil
	g.order = append(g.order, v)
}

// AddEdge adds the edge from -> to, creating missing vertices.
// Duplicate edges are ignored.
func (g *DirectedGraph) AddEdge(from, to string) {
	g.AddVertex(from)
	g.AddVertex(to)
	for _, existing := range g.adj[from] {
		if existing == to {
			return
		}
	}
	g.adj[from] = append(g.adj[from], to)
}

// HasVertex reports whether v is in the graph.
func (g *DirectedGraph) HasVertex(v string) bool {
	_, exists := g.adj[v]
	return exists
}

// Vertices returns a copy of the vertex list in insertion order.
func (g *DirectedGraph) Vertices() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Neighbors returns a copy of the out-neighbors of v.
func (g *DirectedGraph) Neighbors(v string) []string {
	out := make([]string, len(g.adj[v]))
	copy(out, g.adj[v])
	return out
}

// InDegrees returns the number of incoming edges per vertex.
func (g *DirectedGraph) InDegrees() map[string]int {
	inDegree := make(map[string]int, len(g.order))
	for _, v := range g.order {
		inDegree[v] += 0
		for _, to := range g.adj[v] {
			inDegree[to]++
		}
	}
	return inDegree
}

// TopologicalSort orders vertices so every vertex precedes its neighbors.
// It returns false when a cycle prevents completing the order.
func (g *DirectedGraph) TopologicalSort() ([]string, bool) {
	inDegree := g.InDegrees()

	stack := make([]string, 0, len(g.order))
	for _, v := range g.order {
		if inDegree[v] == 0 {
			stack = append(stack, v)
		}
	}

	result := make([]string, 0, len(g.order))
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		result = append(result, v)

		for _, to := range g.adj[v] {
			inDegree[to]--
			if inDegree[to] == 0 {
				stack = append(stack, to)
			}
		}
	}

	if len(result) != len(g.order) {
		return nil, false
	}
	return result, true
}

// ReverseTopologicalSort orders vertices so every vertex follows its neighbors.
// With edges pointing from dependent to dependency this is an activation order.
func (g *DirectedGraph) ReverseTopologicalSort() ([]string, bool) {
	sorted, ok := g.TopologicalSort()
	if !ok {
		return nil, false
	}
	for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
		sorted[i], sorted[j] = sorted[j], sorted[i]
	}
	return sorted, true
}

// Transpose returns a new graph with every edge reversed.
func (g *DirectedGraph) Transpose() *DirectedGraph {
	t := NewDirectedGraph()
	for _, v := range g.order {
		t.AddVertex(v)
	}
	for _, v := range g.order {
		for _, to := range g.adj[v] {
			t.AddEdge(to, v)
		}
	}
	return t
}

// CycleMembers returns the vertices that remain once every vertex outside a
// cycle has been peeled off. It is empty for an acyclic graph.
func (g *DirectedGraph) CycleMembers() []string {
	inDegree := g.InDegrees()
	removed := make(map[string]bool, len(g.order))
	queue := make([]string, 0, len(g.order))
	for _, v := range g.order {
		if inDegree[v] == 0 {
			queue = append(queue, v)
		}
	}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		removed[v] = true
		for _, to := range g.adj[v] {
			inDegree[to]--
			if inDegree[to] == 0 {
				queue = append(queue, to)
			}
		}
	}

	// peel vertices left behind only because a cycle points at them
	outDegree := make(map[string]int)
	preds := make(map[string][]string)
	for _, v := range g.order {
		if removed[v] {
			continue
		}
		outDegree[v] += 0
		for _, to := range g.adj[v] {
			if !removed[to] {
				outDegree[v]++
				preds[to] = append(preds[to], v)
			}
		}
	}
	for _, v := range g.order {
		if !removed[v] && outDegree[v] == 0 {
			queue = append(queue, v)
		}
	}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		removed[v] = true
		for _, p := range preds[v] {
			outDegree[p]--
			if outDegree[p] == 0 {
				queue = append(queue, p)
			}
		}
	}

	var members []string
	for _, v := range g.order {
		if !removed[v] {
			members = append(members, v)
		}
	}
	return members
}
