// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
)

// Node represents one scalar value in the computation graph, and can be used as input to further operations.
//
// A Node is either a leaf (see Scalar and Const) or the result of an operation on previously created nodes,
// its operands. It keeps track of its operands and of the operation type (NodeType), which Backward later
// uses to propagate gradients.
//
// The value of a Node can be overwritten with SetValue (e.g. when updating parameters), but its operands and
// operation never change. The gradient is accumulated by Backward and can be reset with ZeroGrad.
//
// Node.String allows for a pretty-printing of node. To see the full graph with all nodes, use Graph.String.
type Node struct {
	graph *Graph
	id    NodeId // id within graph.

	value, grad float64

	// inputIds are the edges of the computation graph: the de-duplicated set of operands, in order of
	// first appearance. So Mul(x, x) has only one operand.
	inputIds []NodeId

	// inputs describe the operation that created the node, with all the operands (duplicates included)
	// and static parameters needed by its VJP.
	inputs NodeInputs
}

// Graph that holds this Node.
func (n *Node) Graph() *Graph {
	if n == nil {
		return nil
	}
	return n.graph
}

// Id is the unique id of this node within the Graph.
func (n *Node) Id() NodeId {
	return n.id
}

// Type identifies the operation performed by the node.
func (n *Node) Type() NodeType {
	if n == nil || n.inputs == nil {
		return NodeTypeInvalid
	}
	return n.inputs.Type()
}

// IsLeaf returns whether the node was created directly from a value, as opposed to by an operation.
func (n *Node) IsLeaf() bool {
	return n.Type() == NodeTypeLeaf
}

// Value returns the current value of the node.
func (n *Node) Value() float64 {
	n.AssertValid()
	return n.value
}

// SetValue overwrites the value of the node: typically used to update the parameters of a model after
// gradients were calculated.
//
// Nodes already computed from this node are not recomputed: build a new forward pass instead.
func (n *Node) SetValue(value float64) {
	n.AssertValid()
	n.value = value
}

// Grad returns the gradient accumulated by Backward calls, of the root of each call with respect to this node.
func (n *Node) Grad() float64 {
	n.AssertValid()
	return n.grad
}

// SetGrad overwrites the accumulated gradient of the node.
func (n *Node) SetGrad(grad float64) {
	n.AssertValid()
	n.grad = grad
}

// ZeroGrad resets the accumulated gradient of the node to 0.
func (n *Node) ZeroGrad() {
	n.SetGrad(0)
}

// Inputs are the other nodes that are operands to this node. Each operand is listed only once.
//
// Leaf nodes have no inputs.
func (n *Node) Inputs() []*Node {
	n.AssertValid()
	inputs := make([]*Node, len(n.inputIds))
	for ii, id := range n.inputIds {
		inputs[ii] = n.graph.nodes[id]
	}
	return inputs
}

// OpLabel is a short description of the operation that created the node, e.g.: "+", "*", "**2", "ReLU".
// It is empty for leaf nodes.
//
// Used only for pretty-printing.
func (n *Node) OpLabel() string {
	n.AssertValid()
	return n.inputs.Label()
}

// AssertValid panics if `n` is nil, if it was released, or if its graph is invalid.
func (n *Node) AssertValid() {
	if n == nil {
		exceptions.Panicf("Node is nil")
	}
	if n.inputs == nil {
		exceptions.Panicf("Node in an invalid state: it was released (Graph.Release) or its graph finalized")
	}
	n.graph.AssertValid()
}

// String implements the `fmt.Stringer` interface.
func (n *Node) String() string {
	if n == nil {
		return "Node(nil)"
	}
	if n.inputs == nil || !n.graph.IsValid() {
		return "Node(released)"
	}
	if n.IsLeaf() {
		return fmt.Sprintf("#%d Leaf: value=%g grad=%g", n.id, n.value, n.grad)
	}
	return fmt.Sprintf("#%d %s: value=%g grad=%g", n.id, n.inputs, n.value, n.grad)
}

// Describe returns a description of the node in terms of the values of its operands,
// e.g.: "Node(value=6, grad=1, op=*(2, 3))".
func (n *Node) Describe() string {
	n.AssertValid()
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "Node(value=%g, grad=%g", n.value, n.grad)
	if len(n.inputIds) > 0 {
		operands := make([]string, len(n.inputIds))
		for ii, id := range n.inputIds {
			operands[ii] = fmt.Sprintf("%g", n.graph.nodes[id].value)
		}
		_, _ = fmt.Fprintf(&sb, ", op=%s(%s)", n.inputs.Label(), strings.Join(operands, ", "))
	}
	sb.WriteString(")")
	return sb.String()
}
