// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package nn

import (
	"strings"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/gomlx/scalargrad/pkg/ml/context"
	"github.com/gomlx/scalargrad/pkg/ml/initializer"
	"github.com/gomlx/scalargrad/pkg/ml/layers/activations"
)

// MLP (multilayer perceptron) is a stack of layers, each one fed with the outputs of the previous one.
//
// Every layer uses an activation (relu by default) except the last one, which is linear.
type MLP struct {
	layers []*Layer
}

var _ Module = (*MLP)(nil)

// NewMLP creates an MLP with numInputs inputs and one layer per value in layerSizes, the last one being the
// number of outputs.
//
// The hidden layers use the activation given by the hyperparameter activations.ParamActivation (default "relu")
// and the weights are initialized with initializer.FromContext: both are read from the scope "layer_<i>" of ctx,
// so they can be configured per layer. If ctx is nil, a fresh context.Context is used.
func NewMLP(ctx *context.Context, g *Graph, numInputs int, layerSizes ...int) *MLP {
	if len(layerSizes) == 0 {
		exceptions.Panicf("nn.NewMLP: at least one layer size must be given")
	}
	if ctx == nil {
		ctx = context.New()
	}
	m := &MLP{layers: make([]*Layer, len(layerSizes))}
	for ii, size := range layerSizes {
		layerCtx := ctx.Inf("layer_%d", ii)
		activation := activations.TypeNone
		if ii < len(layerSizes)-1 {
			activation = activations.FromName(context.GetParamOr(layerCtx, activations.ParamActivation, "relu"))
		}
		m.layers[ii] = NewLayer(g, numInputs, size, activation, initializer.FromContext(layerCtx))
		numInputs = size
	}
	return m
}

// Layers of the MLP.
func (m *MLP) Layers() []*Layer { return m.layers }

// NumInputs expected by the MLP.
func (m *MLP) NumInputs() int { return m.layers[0].NumInputs() }

// NumOutputs of the MLP, the size of the last layer.
func (m *MLP) NumOutputs() int { return m.layers[len(m.layers)-1].NumOutputs() }

// Call implements Module.
func (m *MLP) Call(inputs []*Node) []*Node {
	x := inputs
	for _, l := range m.layers {
		x = l.Call(x)
	}
	return x
}

// Apply1 evaluates an MLP with only one output, and returns it.
func (m *MLP) Apply1(inputs []*Node) *Node {
	if m.NumOutputs() != 1 {
		exceptions.Panicf("%s: Apply1 requires exactly one output, MLP has %d", m, m.NumOutputs())
	}
	return m.Call(inputs)[0]
}

// Predict evaluates the MLP on plain values, without creating any node.
func (m *MLP) Predict(inputs []float64) []float64 {
	x := inputs
	for _, l := range m.layers {
		x = l.Predict(x)
	}
	return x
}

// Parameters implements Module: the parameters of each layer, in order.
func (m *MLP) Parameters() []*Node {
	var params []*Node
	for _, l := range m.layers {
		params = append(params, l.Parameters()...)
	}
	return params
}

// ZeroGrad implements Module.
func (m *MLP) ZeroGrad() {
	zeroGrad(m.Parameters())
}

// String implements fmt.Stringer. E.g.: "MLP of [Layer of [ReLUNeuron(2)], Layer of [LinearNeuron(1)]]".
func (m *MLP) String() string {
	var sb strings.Builder
	sb.WriteString("MLP of [")
	for ii, l := range m.layers {
		if ii > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(l.String())
	}
	sb.WriteString("]")
	return sb.String()
}
