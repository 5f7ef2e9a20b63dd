// directed_graph_test.go: tests for the directed graph
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectedGraph_VerticesAndEdges(t *testing.T) {
	g := NewDirectedGraph()
	g.AddVertex("a")
	g.AddEdge("a", "b")
	g.AddEdge("a", "b")
	g.AddEdge("a", "c")
	g.AddVertex("a")

	assert.Equal(t, []string{"a", "b", "c"}, g.Vertices())
	assert.Equal(t, []string{"b", "c"}, g.Neighbors("a"))
	assert.Empty(t, g.Neighbors("b"))
	assert.Empty(t, g.Neighbors("missing"))
	assert.True(t, g.HasVertex("c"))
	assert.False(t, g.HasVertex("d"))
	assert.Equal(t, map[string]int{"a": 0, "b": 1, "c": 1}, g.InDegrees())

	neighbors := g.Neighbors("a")
	neighbors[0] = "mutated"
	assert.Equal(t, []string{"b", "c"}, g.Neighbors("a"))
}

func TestDirectedGraph_TopologicalSort(t *testing.T) {
	g := NewDirectedGraph()
	g.AddEdge("app", "web")
	g.AddEdge("app", "db")
	g.AddEdge("web", "core")
	g.AddEdge("db", "core")
	g.AddVertex("island")

	sorted, ok := g.TopologicalSort()
	require.True(t, ok)
	require.Len(t, sorted, 5)
	pos := positions(sorted)
	for _, from := range g.Vertices() {
		for _, to := range g.Neighbors(from) {
			assert.Less(t, pos[from], pos[to], "%s must precede %s", from, to)
		}
	}

	reversed, ok := g.ReverseTopologicalSort()
	require.True(t, ok)
	rpos := positions(reversed)
	assert.Less(t, rpos["core"], rpos["web"])
	assert.Less(t, rpos["core"], rpos["db"])
	assert.Less(t, rpos["web"], rpos["app"])
}

func TestDirectedGraph_Cycle(t *testing.T) {
	g := NewDirectedGraph()
	g.AddEdge("entry", "a")
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("c", "a")
	g.AddEdge("b", "leaf")

	_, ok := g.TopologicalSort()
	assert.False(t, ok)
	_, ok = g.ReverseTopologicalSort()
	assert.False(t, ok)

	assert.Equal(t, []string{"a", "b", "c"}, g.CycleMembers())
}

func TestDirectedGraph_CycleMembersEmptyWhenAcyclic(t *testing.T) {
	g := NewDirectedGraph()
	g.AddEdge("a", "b")
	assert.Empty(t, g.CycleMembers())
}

func TestDirectedGraph_Transpose(t *testing.T) {
	g := NewDirectedGraph()
	g.AddEdge("a", "b")
	g.AddEdge("c", "b")
	g.AddVertex("d")

	tr := g.Transpose()
	assert.Equal(t, g.Vertices(), tr.Vertices())
	assert.Equal(t, []string{"a", "c"}, tr.Neighbors("b"))
	assert.Empty(t, tr.Neighbors("a"))
	assert.True(t, tr.HasVertex("d"))
}
