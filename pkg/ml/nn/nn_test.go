// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package nn_test

import (
	"testing"

	"github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/gomlx/scalargrad/pkg/ml/context"
	"github.com/gomlx/scalargrad/pkg/ml/initializer"
	"github.com/gomlx/scalargrad/pkg/ml/layers/activations"
	"github.com/gomlx/scalargrad/pkg/ml/nn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeuron(t *testing.T) {
	g := graph.NewGraph("neuron")
	n := nn.NewNeuron(g, 2, activations.TypeRelu, initializer.Constant(0.5))
	assert.Equal(t, "ReLUNeuron(2)", n.String())
	require.Len(t, n.Parameters(), 3)
	assert.Same(t, n.Bias(), n.Parameters()[2])
	assert.Equal(t, 0.0, n.Bias().Value())

	x := nn.Constants(g, []float64{2, 4})
	y := n.Apply(x)
	assert.Equal(t, 3.0, y.Value())
	assert.Equal(t, 3.0, n.Predict([]float64{2, 4}))
	y.Backward()
	assert.Equal(t, []float64{2, 4, 1}, graphGrads(n.Parameters()))
	assert.Equal(t, 0.5, x[0].Grad())

	n.ZeroGrad()
	assert.Equal(t, []float64{0, 0, 0}, graphGrads(n.Parameters()))

	// Inactive relu: no gradient flows.
	y = n.Apply(nn.Constants(g, []float64{-2, -4}))
	assert.Equal(t, 0.0, y.Value())
	y.Backward()
	assert.Equal(t, []float64{0, 0, 0}, graphGrads(n.Parameters()))

	linear := nn.NewNeuron(g, 3, activations.TypeNone, nil)
	assert.Equal(t, "LinearNeuron(3)", linear.String())
	require.Panics(t, func() { linear.Apply(x) }, "wrong number of inputs")
	require.Panics(t, func() { nn.NewNeuron(g, 0, activations.TypeNone, nil) })
}

func TestLayer(t *testing.T) {
	g := graph.NewGraph("layer")
	l := nn.NewLayer(g, 3, 4, activations.TypeRelu, initializer.Uniform(context.New().RandomSource(), -1, 1))
	assert.Equal(t, "Layer of [ReLUNeuron(3), ReLUNeuron(3), ReLUNeuron(3), ReLUNeuron(3)]", l.String())
	params := l.Parameters()
	require.Len(t, params, 3*4+4)
	assert.Equal(t, nn.NumParameters(l), len(params))
	for _, p := range params {
		assert.True(t, p.IsLeaf())
		assert.GreaterOrEqual(t, p.Value(), -1.0)
		assert.Less(t, p.Value(), 1.0)
	}
	outputs := l.Call(nn.Constants(g, []float64{1, 2, 3}))
	require.Len(t, outputs, 4)
	predictions := l.Predict([]float64{1, 2, 3})
	for ii, output := range outputs {
		assert.InDelta(t, predictions[ii], output.Value(), 1e-12)
	}
	require.Panics(t, func() { l.Call(nn.Constants(g, []float64{1, 2})) })
}

func TestMLP(t *testing.T) {
	g := graph.NewGraph("mlp")
	ctx := context.New()
	ctx.SetParam(context.ParamInitSeed, 42)
	m := nn.NewMLP(ctx, g, 3, 4, 4, 1)
	assert.Equal(t, "MLP of [Layer of [ReLUNeuron(3), ReLUNeuron(3), ReLUNeuron(3), ReLUNeuron(3)], "+
		"Layer of [ReLUNeuron(4), ReLUNeuron(4), ReLUNeuron(4), ReLUNeuron(4)], "+
		"Layer of [LinearNeuron(4)]]", m.String())
	assert.Equal(t, (3*4+4)+(4*4+4)+(4*1+1), nn.NumParameters(m))
	assert.Equal(t, 3, m.NumInputs())
	assert.Equal(t, 1, m.NumOutputs())

	inputs := []float64{2, 3, -1}
	mark := g.Mark()
	y := m.Apply1(nn.Constants(g, inputs))
	assert.InDelta(t, m.Predict(inputs)[0], y.Value(), 1e-12)
	y.Backward()
	var nonZero int
	for _, p := range m.Parameters() {
		if p.Grad() != 0 {
			nonZero++
		}
	}
	assert.Positive(t, nonZero)
	m.ZeroGrad()
	for _, p := range m.Parameters() {
		require.Equal(t, 0.0, p.Grad())
	}
	g.Release(mark)
	assert.Equal(t, nn.NumParameters(m), g.NumNodes(), "only the parameters should be left after Release")

	// Same seed, same parameters.
	ctx2 := context.New()
	ctx2.SetParam(context.ParamInitSeed, 42)
	m2 := nn.NewMLP(ctx2, graph.NewGraph("mlp2"), 3, 4, 4, 1)
	assert.Equal(t, graphValues(m.Parameters()), graphValues(m2.Parameters()))

	// Linear hidden layers configured through the context.
	ctx.In("layer_0").SetParam(activations.ParamActivation, "none")
	m3 := nn.NewMLP(ctx, g, 2, 2, 1)
	assert.Equal(t, "MLP of [Layer of [LinearNeuron(2), LinearNeuron(2)], Layer of [LinearNeuron(2)]]", m3.String())

	require.Panics(t, func() { nn.NewMLP(nil, g, 2) })
	require.Panics(t, func() { nn.NewMLP(nil, g, 2, 3).Apply1(nn.Constants(g, []float64{1, 2})) })
}

func graphGrads(nodes []*graph.Node) []float64 {
	grads := make([]float64, len(nodes))
	for ii, node := range nodes {
		grads[ii] = node.Grad()
	}
	return grads
}

func graphValues(nodes []*graph.Node) []float64 {
	values := make([]float64, len(nodes))
	for ii, node := range nodes {
		values[ii] = node.Value()
	}
	return values
}
