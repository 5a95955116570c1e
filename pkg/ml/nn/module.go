// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package nn implements the trainable units built on top of the graph package: Neuron, Layer and MLP.
//
// All of them implement Module: they create their parameters (weights and biases) as leaf nodes of a
// Graph when constructed, and build new computation nodes every time they are called.
//
// Typical use, with one forward pass per training step:
//
//	g := graph.NewGraph("xor")
//	model := nn.NewMLP(ctx, g, 2, 4, 4, 1)
//	for step := range numSteps {
//		mark := g.Mark()
//		loss := lossFn(model, examples)
//		model.ZeroGrad()
//		loss.Backward()
//		update(model.Parameters())
//		g.Release(mark)
//	}
package nn

import (
	"fmt"

	. "github.com/gomlx/scalargrad/pkg/core/graph"
)

// Module is implemented by every trainable unit.
type Module interface {
	// Call evaluates the module on the given inputs, one node per expected input, and returns its outputs.
	// It panics if the number of inputs is not the expected one.
	Call(inputs []*Node) []*Node

	// Parameters returns every leaf node owned by the module as a learnable weight or bias, in a stable order.
	Parameters() []*Node

	// ZeroGrad sets the gradient of every parameter to zero.
	//
	// Gradients accumulate across calls to Backward, so it must be called before each new backward pass.
	ZeroGrad()

	fmt.Stringer
}

// NumParameters returns the number of parameters of the module m.
func NumParameters(m Module) int {
	return len(m.Parameters())
}

func zeroGrad(params []*Node) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// Constants converts a slice of values to leaf nodes in g: used to feed examples to a Module.
func Constants(g *Graph, values []float64) []*Node {
	nodes := make([]*Node, len(values))
	for ii, v := range values {
		nodes[ii] = Scalar(g, v)
	}
	return nodes
}
