// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package nn

import (
	"strings"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/gomlx/scalargrad/pkg/ml/initializer"
	"github.com/gomlx/scalargrad/pkg/ml/layers/activations"
)

// Layer is a group of neurons side by side over the same inputs: one output per neuron.
type Layer struct {
	neurons []*Neuron
}

var _ Module = (*Layer)(nil)

// NewLayer creates a Layer of numOutputs neurons, each one with numInputs inputs.
func NewLayer(g *Graph, numInputs, numOutputs int, activation activations.Type, init initializer.Initializer) *Layer {
	if numOutputs <= 0 {
		exceptions.Panicf("nn.NewLayer: numOutputs must be > 0, got %d", numOutputs)
	}
	l := &Layer{neurons: make([]*Neuron, numOutputs)}
	for ii := range l.neurons {
		l.neurons[ii] = NewNeuron(g, numInputs, activation, init)
	}
	return l
}

// Neurons of the layer.
func (l *Layer) Neurons() []*Neuron { return l.neurons }

// NumInputs expected by the layer.
func (l *Layer) NumInputs() int { return l.neurons[0].NumInputs() }

// NumOutputs of the layer, the number of neurons.
func (l *Layer) NumOutputs() int { return len(l.neurons) }

// Call implements Module.
func (l *Layer) Call(inputs []*Node) []*Node {
	outputs := make([]*Node, len(l.neurons))
	for ii, n := range l.neurons {
		outputs[ii] = n.Apply(inputs)
	}
	return outputs
}

// Predict evaluates the layer on plain values, without creating any node.
func (l *Layer) Predict(inputs []float64) []float64 {
	outputs := make([]float64, len(l.neurons))
	for ii, n := range l.neurons {
		outputs[ii] = n.Predict(inputs)
	}
	return outputs
}

// Parameters implements Module: the parameters of each neuron, in order.
func (l *Layer) Parameters() []*Node {
	params := make([]*Node, 0, len(l.neurons)*(l.NumInputs()+1))
	for _, n := range l.neurons {
		params = append(params, n.Parameters()...)
	}
	return params
}

// ZeroGrad implements Module.
func (l *Layer) ZeroGrad() {
	zeroGrad(l.Parameters())
}

// String implements fmt.Stringer. E.g.: "Layer of [ReLUNeuron(2), ReLUNeuron(2)]".
func (l *Layer) String() string {
	var sb strings.Builder
	sb.WriteString("Layer of [")
	for ii, n := range l.neurons {
		if ii > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(n.String())
	}
	sb.WriteString("]")
	return sb.String()
}
