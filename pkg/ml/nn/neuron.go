// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package nn

import (
	"fmt"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/gomlx/scalargrad/pkg/ml/initializer"
	"github.com/gomlx/scalargrad/pkg/ml/layers/activations"
)

// Neuron computes `activation(bias + Σ weights[i] * inputs[i])`.
type Neuron struct {
	weights    []*Node
	bias       *Node
	activation activations.Type
}

var _ Module = (*Neuron)(nil)

// NewNeuron creates a Neuron with numInputs weights initialized with init, and a bias initialized to zero.
//
// If init is nil, weights are initialized to zero.
func NewNeuron(g *Graph, numInputs int, activation activations.Type, init initializer.Initializer) *Neuron {
	if numInputs <= 0 {
		exceptions.Panicf("nn.NewNeuron: numInputs must be > 0, got %d", numInputs)
	}
	if init == nil {
		init = initializer.Zero
	}
	n := &Neuron{
		weights:    make([]*Node, numInputs),
		activation: activation,
	}
	for ii := range n.weights {
		n.weights[ii] = init(g, numInputs, 1)
	}
	n.bias = initializer.Zero(g, numInputs, 1)
	return n
}

// NumInputs expected by the neuron.
func (n *Neuron) NumInputs() int { return len(n.weights) }

// Activation used by the neuron.
func (n *Neuron) Activation() activations.Type { return n.activation }

// Weights returns the weight parameters, one per input.
func (n *Neuron) Weights() []*Node { return n.weights }

// Bias returns the bias parameter.
func (n *Neuron) Bias() *Node { return n.bias }

// Apply evaluates the neuron and returns its only output.
func (n *Neuron) Apply(inputs []*Node) *Node {
	if len(inputs) != len(n.weights) {
		exceptions.Panicf("%s: expected %d inputs, got %d", n, len(n.weights), len(inputs))
	}
	sum := n.bias
	for ii, x := range inputs {
		sum = Add(sum, Mul(n.weights[ii], x))
	}
	return activations.Apply(n.activation, sum)
}

// Call implements Module, it returns one output.
func (n *Neuron) Call(inputs []*Node) []*Node {
	return []*Node{n.Apply(inputs)}
}

// Predict evaluates the neuron on plain values, without creating any node.
func (n *Neuron) Predict(inputs []float64) float64 {
	if len(inputs) != len(n.weights) {
		exceptions.Panicf("%s: expected %d inputs, got %d", n, len(n.weights), len(inputs))
	}
	sum := n.bias.Value()
	for ii, x := range inputs {
		sum += n.weights[ii].Value() * x
	}
	return activations.ApplyValue(n.activation, sum)
}

// Parameters implements Module: the weights followed by the bias.
func (n *Neuron) Parameters() []*Node {
	params := make([]*Node, 0, len(n.weights)+1)
	params = append(params, n.weights...)
	return append(params, n.bias)
}

// ZeroGrad implements Module.
func (n *Neuron) ZeroGrad() {
	zeroGrad(n.Parameters())
}

// String implements fmt.Stringer. E.g.: "ReLUNeuron(3)".
func (n *Neuron) String() string {
	return fmt.Sprintf("%sNeuron(%d)", n.activation.NeuronPrefix(), len(n.weights))
}
