// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graph is the core package of scalargrad: it builds computation graphs of scalar operations and
// back-propagates gradients through them (reverse-mode automatic differentiation).
//
// The main elements in the package are:
//
//   - Graph: an arena holding every Node created for it. Nodes are addressed by their NodeId, which is
//     simply their position in the arena. Since a Node can only be created after its operands, the
//     NodeId order is always a valid topological order and the graph can never have cycles.
//
//   - Node: one scalar value, either a leaf (created with Scalar or Const) or the result of an operation
//     (Add, Mul, Pow, Relu and the ops derived from them). Each Node carries its value, its accumulated
//     gradient, and a NodeInputs describing the operation that created it (its NodeType and operand ids).
//
//   - Backward: seeds the gradient of a chosen root node with 1 and propagates it, in reverse topological
//     order, to every node the root depends on. The propagation rule of each operation is looked up in
//     VJPRegistration by the NodeType of the node.
//
// ## Gradient accumulation
//
// Gradients are always accumulated, never overwritten: if a node feeds two consumers, its gradient is the
// sum of both contributions. This also means that calling Backward twice on the same graph without
// resetting gradients (Node.ZeroGrad or Graph.ZeroGrad) doubles every gradient. That is intentional: it
// allows accumulating gradients over several examples, but it is a common source of bugs.
//
// ## Error Handling
//
// As with the rest of GoMLX, errors while building a graph (nil nodes, mixing nodes of different graphs,
// using released nodes, unsupported exponents) are reported by panicking with an error that includes a
// stack-trace. Use exceptions.TryCatch[error] to convert them back to errors.
//
// ## Ephemeral nodes
//
// A Graph is expected to hold long-lived nodes (e.g. the learnable parameters of a model) followed by the
// nodes of the current forward pass. Use Graph.Mark before building a forward pass and Graph.Release after
// using its gradients to drop the ephemeral nodes:
//
//	mark := g.Mark()
//	loss := buildLoss(g, params)
//	loss.Backward()
//	update(params)
//	g.Release(mark)
package graph

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Graph holds the nodes of a computation. See package documentation for details.
//
// A Graph is not safe for concurrent use.
type Graph struct {
	graphId GraphId
	name    string
	nodes   []*Node

	// releaseGeneration is incremented at every Release. releases holds, for the releases since
	// each generation, the lowest position released: it is ordered by generation and by numNodes.
	releaseGeneration uint64
	releases          []releaseRecord

	finalized bool
}

type releaseRecord struct {
	generation uint64
	numNodes   int
}

// GraphId is a unique Graph id within the process.
type GraphId int

// NodeId is the unique id of a Node within a Graph: it is also its position in the Graph arena.
type NodeId int

// InvalidNodeId indicates a node that failed to be created or was released.
const InvalidNodeId = NodeId(-1)

var graphIdCounter atomic.Int64

// NewGraph creates an empty Graph with the given name. If name is empty, a unique name is created.
func NewGraph(name string) *Graph {
	graphId := GraphId(graphIdCounter.Add(1) - 1)
	if name == "" {
		name = fmt.Sprintf("graph_#%d", graphId)
	}
	return &Graph{
		graphId: graphId,
		name:    name,
	}
}

// Name of the Graph, set during its construction.
func (g *Graph) Name() string { return g.name }

// GraphId is a unique id of the graph within the process. It's a counter that starts with 0.
func (g *Graph) GraphId() GraphId { return g.graphId }

// NumNodes returns the number of nodes currently in the Graph arena.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// Nodes returns the nodes of the Graph, ordered by NodeId (which is a topological order).
//
// The returned slice is owned by the Graph and must not be modified.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Node returns the node with the given id. It panics if the id is not valid.
func (g *Graph) Node(id NodeId) *Node {
	g.AssertValid()
	if id < 0 || int(id) >= len(g.nodes) {
		exceptions.Panicf("Graph %q has no node with id #%d (it has %d nodes)", g.name, id, len(g.nodes))
	}
	return g.nodes[id]
}

// IsValid returns whether the Graph is in a valid state: not nil and not finalized.
func (g *Graph) IsValid() bool {
	return g != nil && !g.finalized
}

var finalizedGraphError = errors.New("Graph has been freed (Graph.Finalize)")

// AssertValid panics if the Graph is nil or was finalized.
func (g *Graph) AssertValid() {
	if g == nil {
		exceptions.Panicf("the Graph is nil")
	}
	if g.finalized {
		panic(errors.WithStack(finalizedGraphError))
	}
}

// Finalize releases all the nodes of the Graph. The graph is left in an unusable state.
func (g *Graph) Finalize() {
	if g == nil || g.finalized {
		return
	}
	g.invalidateFrom(0)
	g.nodes = nil
	g.finalized = true
}

// Mark is a position in the Graph arena, returned by Graph.Mark and used by Graph.Release.
type Mark struct {
	graphId    GraphId
	numNodes   int
	generation uint64
}

// NumNodes in the Graph when the Mark was taken.
func (m Mark) NumNodes() int { return m.numNodes }

// Mark returns the current position of the Graph arena: every Node created after the Mark can later be
// dropped with Graph.Release.
//
// A Mark becomes stale if a Release of an earlier Mark drops the nodes it points after: Graph.Release
// panics if given a stale Mark, since the nodes after it are no longer the ones it was taken for.
func (g *Graph) Mark() Mark {
	g.AssertValid()
	return Mark{graphId: g.graphId, numNodes: len(g.nodes), generation: g.releaseGeneration}
}

// Release drops every node created after the given mark. Their handles become invalid, and using them
// panics.
//
// Nodes created before the mark are never affected, since they can't depend on later nodes.
func (g *Graph) Release(mark Mark) {
	g.AssertValid()
	if mark.graphId != g.graphId {
		exceptions.Panicf("Graph.Release(): mark was created for graph #%d, but graph %q is #%d",
			mark.graphId, g.name, g.graphId)
	}
	if g.isStale(mark) || mark.numNodes > len(g.nodes) {
		exceptions.Panicf("Graph.Release(): mark at %d nodes of graph %q is stale: the nodes after it were "+
			"released by an earlier mark", mark.numNodes, g.name)
	}
	g.invalidateFrom(mark.numNodes)
	clear(g.nodes[mark.numNodes:])
	g.nodes = g.nodes[:mark.numNodes]

	g.releaseGeneration++
	for len(g.releases) > 0 && g.releases[len(g.releases)-1].numNodes >= mark.numNodes {
		g.releases = g.releases[:len(g.releases)-1]
	}
	g.releases = append(g.releases, releaseRecord{generation: g.releaseGeneration, numNodes: mark.numNodes})
}

// isStale returns whether any Release since the mark was taken dropped nodes before it.
func (g *Graph) isStale(mark Mark) bool {
	// The first release after the mark generation is also the one that released the lowest position.
	idx, _ := slices.BinarySearchFunc(g.releases, mark.generation+1, func(r releaseRecord, generation uint64) int {
		return cmp.Compare(r.generation, generation)
	})
	return idx < len(g.releases) && g.releases[idx].numNodes < mark.numNodes
}

// invalidateFrom marks every node starting at position start as released.
func (g *Graph) invalidateFrom(start int) {
	for _, node := range g.nodes[start:] {
		if node == nil {
			continue
		}
		node.inputs = nil
		node.inputIds = nil
		node.id = InvalidNodeId
	}
}

// ZeroGrad resets the gradient of every node in the Graph.
func (g *Graph) ZeroGrad() {
	g.AssertValid()
	for _, node := range g.nodes {
		node.grad = 0
	}
}

// registerNode appends the node to the arena, assigning its NodeId.
func (g *Graph) registerNode(node *Node) {
	node.graph = g
	node.id = NodeId(len(g.nodes))
	g.nodes = append(g.nodes, node)
}

// String converts the Graph to a multi-line string with a description of each node.
func (g *Graph) String() string {
	if g == nil {
		return "Graph(nil)"
	}
	if g.finalized {
		return fmt.Sprintf("Graph %q (#%d): finalized", g.name, g.graphId)
	}
	parts := make([]string, 0, len(g.nodes)+1)
	parts = append(parts, fmt.Sprintf("Graph %q (#%d): %s nodes", g.name, g.graphId,
		humanize.Comma(int64(len(g.nodes)))))
	for _, node := range g.nodes {
		parts = append(parts, "\t"+node.String())
	}
	return strings.Join(parts, "\n")
}
