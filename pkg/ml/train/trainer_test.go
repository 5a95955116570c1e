// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package train_test

import (
	"math/rand/v2"
	"testing"

	"github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/gomlx/scalargrad/pkg/ml/context"
	"github.com/gomlx/scalargrad/pkg/ml/datasets"
	"github.com/gomlx/scalargrad/pkg/ml/initializer"
	"github.com/gomlx/scalargrad/pkg/ml/layers/activations"
	"github.com/gomlx/scalargrad/pkg/ml/nn"
	"github.com/gomlx/scalargrad/pkg/ml/train"
	"github.com/gomlx/scalargrad/pkg/ml/train/losses"
	"github.com/gomlx/scalargrad/pkg/ml/train/metrics"
	"github.com/gomlx/scalargrad/pkg/ml/train/optimizers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainStep(t *testing.T) {
	g := graph.NewGraph("train_step")
	neuron := nn.NewNeuron(g, 2, activations.TypeNone, initializer.Constant(0.5))
	ctx := context.New()
	ctx.SetParam(optimizers.ParamLearningRate, 0.1)
	trainer := train.NewTrainer(ctx, neuron, losses.MeanSquaredError, optimizers.StochasticGradientDescent(), nil, nil)
	numNodes := g.NumNodes()

	// prediction=3, loss=(1-3)²=4, dLoss/dPrediction=4.
	metricsValues, err := trainer.TrainStep([][]float64{{2, 4}}, [][]float64{{1}})
	require.NoError(t, err)
	require.Len(t, metricsValues, 1)
	assert.Equal(t, 4.0, metricsValues[0])
	assert.Equal(t, 1, trainer.GlobalStep())
	assert.Equal(t, numNodes, g.NumNodes(), "nodes of the step should have been released")

	params := neuron.Parameters()
	assert.InDelta(t, 0.5-0.1*8, params[0].Value(), 1e-12)
	assert.InDelta(t, 0.5-0.1*16, params[1].Value(), 1e-12)
	assert.InDelta(t, 0.0-0.1*4, params[2].Value(), 1e-12)

	// Errors are returned, not panicked.
	_, err = trainer.TrainStep([][]float64{{1, 2, 3}}, [][]float64{{1}})
	require.Error(t, err)
	assert.Equal(t, numNodes, g.NumNodes(), "nodes should be released also on failures")
	_, err = trainer.TrainStep([][]float64{{1, 2}}, nil)
	require.Error(t, err)
	assert.Equal(t, 1, trainer.GlobalStep())

	require.Panics(t, func() {
		train.NewTrainer(ctx, &emptyModule{}, losses.MeanSquaredError, optimizers.StochasticGradientDescent(), nil, nil)
	})
}

type emptyModule struct{}

func (emptyModule) Call(inputs []*graph.Node) []*graph.Node { return inputs }
func (emptyModule) Parameters() []*graph.Node                { return nil }
func (emptyModule) ZeroGrad()                                {}
func (emptyModule) String() string                           { return "Empty" }

func TestL2Regularization(t *testing.T) {
	g := graph.NewGraph("l2")
	neuron := nn.NewNeuron(g, 1, activations.TypeNone, initializer.Constant(1))
	ctx := context.New()
	ctx.SetParams(map[string]any{
		optimizers.ParamLearningRate: 0.5,
		losses.ParamL2Regularization: 0.25,
	})
	trainer := train.NewTrainer(ctx, neuron, losses.MeanSquaredError, optimizers.StochasticGradientDescent(), nil, nil)

	// Prediction is 1, equal to the label: the only gradient is the one of the regularization, 2*0.25*w = 0.5.
	metricsValues, err := trainer.TrainStep([][]float64{{1}}, [][]float64{{1}})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, metricsValues[0], 1e-12, "loss includes the regularization term")
	assert.InDelta(t, 1-0.5*0.5, neuron.Weights()[0].Value(), 1e-12)
	assert.InDelta(t, 0.0, neuron.Bias().Value(), 1e-12)
}

func TestEval(t *testing.T) {
	g := graph.NewGraph("eval")
	neuron := nn.NewNeuron(g, 1, activations.TypeNone, initializer.Constant(2))
	trainer := train.NewTrainer(context.New(), neuron, losses.MeanAbsoluteError, optimizers.StochasticGradientDescent(),
		nil, []metrics.Interface{metrics.NewMeanSignAccuracy("Mean Accuracy", "#acc")})
	require.Len(t, trainer.EvalMetrics(), 2)
	assert.Equal(t, "Mean Loss", trainer.EvalMetrics()[0].Name())

	// Predictions are 2*x: 2, -2, 6, -6.
	ds, err := datasets.InMemoryFromData("eval",
		[][]float64{{1}, {-1}, {3}, {-3}},
		[][]float64{{1}, {1}, {1}, {-1}})
	require.NoError(t, err)
	ds.BatchSize(3, false)
	numNodes := g.NumNodes()
	values, err := trainer.Eval(ds)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.InDelta(t, (1.0+3.0+5.0+5.0)/4, values[0], 1e-12)
	assert.InDelta(t, 0.75, values[1], 1e-12)
	assert.Equal(t, numNodes, g.NumNodes())
	assert.Equal(t, 2.0, neuron.Weights()[0].Value(), "evaluation should not change parameters")
	assert.Equal(t, 0, trainer.GlobalStep())

	// Eval resets the dataset and the metrics: evaluating again yields the same result.
	values2, err := trainer.Eval(ds)
	require.NoError(t, err)
	assert.Equal(t, values, values2)

	// A dataset that is already exhausted yields no batches.
	_, _, _ = ds.Yield()
	_, _, _ = ds.Yield()
	_, err = trainer.Eval(ds)
	require.Error(t, err)
}

// trainSynthetic trains an MLP on the synthetic dataset and returns the mean loss and accuracy before
// and after training.
func trainSynthetic(t *testing.T, ds *datasets.InMemoryDataset, numSteps int, layers ...int) (before, after []float64) {
	ctx := context.New()
	ctx.SetParams(map[string]any{
		context.ParamInitSeed:             int64(42),
		optimizers.ParamLearningRate:      0.5,
		optimizers.ParamLearningRateDecay: true,
		losses.ParamL2Regularization:      1e-4,
	})
	g := graph.NewGraph(ds.Name())
	model := nn.NewMLP(ctx.In("mlp"), g, 2, layers...)
	trainer := train.NewTrainer(ctx, model, losses.Hinge, optimizers.FromContext(ctx),
		[]metrics.Interface{metrics.NewMovingAverageSignAccuracy("Moving Average Accuracy", "~acc", 0.1)},
		[]metrics.Interface{metrics.NewMeanSignAccuracy("Mean Accuracy", "#acc")})
	evalDS := ds.Copy().BatchSize(25, false)

	var err error
	before, err = trainer.Eval(evalDS)
	require.NoError(t, err)

	trainDS := ds.Copy().BatchSize(ds.NumExamples(), false).Infinite(true)
	loop := train.NewLoop(trainer)
	_, err = loop.RunSteps(trainDS, numSteps)
	require.NoError(t, err)
	assert.Equal(t, numSteps, trainer.GlobalStep())

	after, err = trainer.Eval(evalDS)
	require.NoError(t, err)
	return
}

func TestTrainBlobs(t *testing.T) {
	ds := datasets.Blobs(40, 0, rand.New(rand.NewPCG(1, 1)))
	before, after := trainSynthetic(t, ds, 30, 4, 1)
	t.Logf("blobs: loss %.3f -> %.3f, accuracy %.1f%% -> %.1f%%", before[0], after[0], 100*before[1], 100*after[1])
	assert.Less(t, after[0], before[0])
	assert.GreaterOrEqual(t, after[1], 0.9)
}

func TestTrainMoons(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping moons training in short mode")
	}
	ds := datasets.Moons(60, 0.1, rand.New(rand.NewPCG(2, 2)))
	before, after := trainSynthetic(t, ds, 60, 16, 16, 1)
	t.Logf("moons: loss %.3f -> %.3f, accuracy %.1f%% -> %.1f%%", before[0], after[0], 100*before[1], 100*after[1])
	assert.Less(t, after[0], before[0])
	assert.GreaterOrEqual(t, after[1], 0.8)
}

func TestTrainXOR(t *testing.T) {
	ds := datasets.XOR(40, 0, rand.New(rand.NewPCG(3, 3)))
	before, after := trainSynthetic(t, ds, 40, 8, 1)
	t.Logf("xor: loss %.3f -> %.3f, accuracy %.1f%% -> %.1f%%", before[0], after[0], 100*before[1], 100*after[1])
	assert.Less(t, after[0], before[0])
}
