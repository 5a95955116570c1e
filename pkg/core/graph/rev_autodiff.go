// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"math"

	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"
)

// This file implements reverse-mode automatic differentiation, accumulating on each node the VJP
// (Vector Jacobian Product, here simply the product of scalar derivatives) of the root node.
//
// Conventions used in this file:
//
// * root node: the output whose gradient we are calculating, with respect to every node it depends on.
// * adjoint: the gradient of the root with respect to a node, for the current Backward call only. It is the
//      sum of the adjoints pushed by all the consumers of the node, and it is complete only after all its
//      consumers have been processed -- hence the reverse topological order.
//
// Adjoints are kept in a scratch slice indexed by NodeId, and only added to Node.grad at the end of the pass.
// So gradients left by previous calls are never propagated again.

// VJP pushes the adjoint of node, adjoints[node.Id()], to each of its operands, accumulating it into their
// adjoints scaled by the local derivative of the operation.
//
// It is called only after all consumers of node have pushed their contributions.
type VJP func(node *Node, adjoints []float64)

// VJPRegistration maps each node type to its implementation of VJP. If implementing a new op, or
// for experimentation, one can dynamically change this.
var VJPRegistration = map[NodeType]VJP{
	NodeTypeLeaf: nilVJP,
	NodeTypeAdd:  addVJP,
	NodeTypeMul:  mulVJP,
	NodeTypePow:  powVJP,
	NodeTypeRelu: reluVJP,
}

// TopologicalOrder returns the nodes the root depends on (including itself) in post-order: every node comes
// after all of its operands, and root is the last one.
//
// It is a depth-first traversal using an explicit stack, so very deep graphs don't exhaust the call stack.
// Shared operands are visited only once.
func TopologicalOrder(root *Node) []*Node {
	g := validateBuildingGraphFromInputs(root)
	type frame struct {
		node      *Node
		nextInput int
	}
	visited := make([]bool, root.id+1) // Operands always have a lower NodeId.
	visited[root.id] = true
	order := make([]*Node, 0, root.id+1)
	stack := []frame{{node: root}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.nextInput < len(top.node.inputIds) {
			inputId := top.node.inputIds[top.nextInput]
			top.nextInput++
			if !visited[inputId] {
				visited[inputId] = true
				stack = append(stack, frame{node: g.nodes[inputId]})
			}
			continue
		}
		order = append(order, top.node)
		stack = stack[:len(stack)-1]
	}
	return order
}

// Backward calculates the gradient of root with respect to every node it depends on.
//
// It seeds the adjoint of root with 1 and calls the VJP of each node, in reverse topological order, which
// accumulates the adjoints of each node's operands. At the end, the adjoints are added to the gradients of
// the visited nodes, and root's gradient is set to 1.
//
// Gradients are accumulated, never reset: calling Backward twice without calling ZeroGrad (on the nodes,
// or Graph.ZeroGrad) in between doubles the gradients of every node, except the root's own, which is
// always set to 1. This is intentional, it allows accumulating gradients over different roots.
func Backward(root *Node) {
	order := TopologicalOrder(root)
	if klog.V(2).Enabled() {
		klog.Infof("Backward(#%d) in graph %q: propagating gradients through %d nodes",
			root.id, root.graph.name, len(order))
	}
	adjoints := make([]float64, root.id+1) // Operands always have a lower NodeId.
	adjoints[root.id] = 1
	for ii := len(order) - 1; ii >= 0; ii-- {
		node := order[ii]
		vjpFn, found := VJPRegistration[node.Type()]
		if !found {
			exceptions.Panicf("graph has node %s, for which no gradient is defined, cannot back-propagate", node)
		}
		vjpFn(node, adjoints)
	}
	for _, node := range order {
		node.grad += adjoints[node.id]
	}
	root.grad = 1
}

// Backward calculates the gradient of n with respect to every node it depends on. See package function
// Backward for details.
//
// Notice gradients are accumulated: call ZeroGrad before a new Backward, if that is not what you want.
func (n *Node) Backward() {
	Backward(n)
}

// Gradient runs Backward on root and returns the gradients of each of the given nodes.
//
// Nodes that root doesn't depend on get whatever gradient they had before, usually 0. As with
// Backward, gradients are accumulated.
func Gradient(root *Node, nodes ...*Node) []float64 {
	validateBuildingGraphFromInputs(append([]*Node{root}, nodes...)...)
	Backward(root)
	gradients := make([]float64, len(nodes))
	for ii, node := range nodes {
		gradients[ii] = node.grad
	}
	return gradients
}

func nilVJP(_ *Node, _ []float64) {}

func addVJP(node *Node, adjoints []float64) {
	inputs := node.inputs.(*nodeInputsAdd)
	adjoints[inputs.x] += adjoints[node.id]
	adjoints[inputs.y] += adjoints[node.id]
}

func mulVJP(node *Node, adjoints []float64) {
	inputs := node.inputs.(*nodeInputsMul)
	x, y := node.graph.nodes[inputs.x], node.graph.nodes[inputs.y]
	// If x and y are the same node, both contributions are accumulated.
	adjoints[inputs.x] += y.value * adjoints[node.id]
	adjoints[inputs.y] += x.value * adjoints[node.id]
}

func powVJP(node *Node, adjoints []float64) {
	inputs := node.inputs.(*nodeInputsPow)
	x := node.graph.nodes[inputs.x]
	adjoints[inputs.x] += inputs.exponent * math.Pow(x.value, inputs.exponent-1) * adjoints[node.id]
}

func reluVJP(node *Node, adjoints []float64) {
	if !(node.value > 0) {
		return
	}
	inputs := node.inputs.(*nodeInputsRelu)
	adjoints[inputs.x] += adjoints[node.id]
}
