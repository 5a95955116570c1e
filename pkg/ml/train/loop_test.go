// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package train_test

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/gomlx/scalargrad/pkg/ml/context"
	"github.com/gomlx/scalargrad/pkg/ml/datasets"
	"github.com/gomlx/scalargrad/pkg/ml/initializer"
	"github.com/gomlx/scalargrad/pkg/ml/layers/activations"
	"github.com/gomlx/scalargrad/pkg/ml/nn"
	"github.com/gomlx/scalargrad/pkg/ml/train"
	"github.com/gomlx/scalargrad/pkg/ml/train/losses"
	"github.com/gomlx/scalargrad/pkg/ml/train/optimizers"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newLinearLoop creates a loop training a linear neuron to learn y=2x+1, and a dataset with 10 examples.
func newLinearLoop(t *testing.T) (*train.Loop, *datasets.InMemoryDataset) {
	g := graph.NewGraph("linear")
	neuron := nn.NewNeuron(g, 1, activations.TypeNone, initializer.Zero)
	ctx := context.New()
	ctx.SetParam(optimizers.ParamLearningRate, 0.1)
	trainer := train.NewTrainer(ctx, neuron, losses.MeanSquaredError, optimizers.StochasticGradientDescent(), nil, nil)
	inputs := make([][]float64, 10)
	labels := make([][]float64, 10)
	for ii := range inputs {
		x := float64(ii)/5 - 1
		inputs[ii] = []float64{x}
		labels[ii] = []float64{2*x + 1}
	}
	ds, err := datasets.InMemoryFromData("linear", inputs, labels)
	require.NoError(t, err)
	return train.NewLoop(trainer), ds
}

func TestLoopHooks(t *testing.T) {
	loop, ds := newLinearLoop(t)
	ds.BatchSize(5, false).Infinite(true)
	var calls []string
	loop.OnStart("start", 0, func(loop *train.Loop, ds train.Dataset) error {
		calls = append(calls, fmt.Sprintf("start(%s,%d,%d)", ds.Name(), loop.StartStep, loop.EndStep))
		return nil
	})
	for _, hook := range []struct {
		name     string
		priority train.Priority
	}{{"b", 10}, {"a", -1}, {"c", 10}} {
		loop.OnStep(hook.name, hook.priority, func(loop *train.Loop, metrics []float64) error {
			calls = append(calls, fmt.Sprintf("%s%d", hook.name, loop.LoopStep))
			return nil
		})
	}
	loop.OnEnd("end", 0, func(loop *train.Loop, metrics []float64) error {
		calls = append(calls, "end")
		return nil
	})

	metrics, err := loop.RunSteps(ds, 2)
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, []string{"start(linear,0,2)", "a0", "b0", "c0", "a1", "b1", "c1", "end"}, calls)
	assert.Len(t, loop.TrainStepDurations, 2)
	assert.Greater(t, loop.MedianTrainStepDuration(), time.Duration(0))

	// Continue where it left of.
	calls = nil
	_, err = loop.RunSteps(ds, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"start(linear,2,3)", "a2", "b2", "c2", "end"}, calls)
	assert.Equal(t, 3, loop.Trainer.GlobalStep())

	// Errors in hooks interrupt the loop.
	loop.OnStep("failing", 0, func(loop *train.Loop, metrics []float64) error {
		return errors.New("stop here")
	})
	_, err = loop.RunSteps(ds, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop here")
}

func TestLoopRunStepsAndEpochs(t *testing.T) {
	loop, ds := newLinearLoop(t)
	ds.BatchSize(4, false)

	// Finite dataset is not enough for the number of steps.
	_, err := loop.RunSteps(ds, 10)
	require.Error(t, err)

	ds.Reset()
	loop, _ = newLinearLoop(t)
	var endSteps []int
	loop.OnStep("endSteps", 0, func(loop *train.Loop, metrics []float64) error {
		endSteps = append(endSteps, loop.EndStep)
		return nil
	})
	var firstLoss float64
	loop.OnStep("firstLoss", 0, func(loop *train.Loop, metrics []float64) error {
		if loop.LoopStep == 0 {
			firstLoss = metrics[0]
		}
		return nil
	})
	metrics, err := loop.RunEpochs(ds, 20)
	require.NoError(t, err)
	assert.Equal(t, 60, loop.LoopStep, "3 batches per epoch")
	assert.Equal(t, 20, loop.Epoch)
	assert.Equal(t, -1, endSteps[0], "number of steps is unknown during the first epoch")
	assert.Equal(t, 60, endSteps[len(endSteps)-1])
	assert.Less(t, metrics[0], firstLoss)

	// Learned y=2x+1 approximately.
	params := loop.Trainer.Model().Parameters()
	assert.InDelta(t, 2.0, params[0].Value(), 0.3)
	assert.InDelta(t, 1.0, params[1].Value(), 0.1)
}

func TestLoopNaN(t *testing.T) {
	for _, label := range []float64{math.Inf(1), math.NaN()} {
		t.Run(fmt.Sprintf("label=%g", label), func(t *testing.T) {
			loop, _ := newLinearLoop(t)
			ds, err := datasets.InMemoryFromData("bad", [][]float64{{1}}, [][]float64{{label}})
			require.NoError(t, err)
			_, err = loop.RunSteps(ds.Infinite(true), 3)
			require.Error(t, err)
			assert.Equal(t, 1, loop.Trainer.GlobalStep(), "loop should stop at the first bad step")
		})
	}
}

func TestLoopCallbacks(t *testing.T) {
	loop, ds := newLinearLoop(t)
	ds.Infinite(true)
	var nTimesSteps, everyNSteps, exponentialSteps []int
	train.NTimesDuringLoop(loop, 4, "nTimes", 0, func(loop *train.Loop, metrics []float64) error {
		nTimesSteps = append(nTimesSteps, loop.LoopStep)
		return nil
	})
	train.EveryNSteps(loop, 3, "everyN", 0, func(loop *train.Loop, metrics []float64) error {
		everyNSteps = append(everyNSteps, loop.LoopStep)
		return nil
	})
	train.ExponentialCallback(loop, 5, 2, true, "exponential", 0, func(loop *train.Loop, metrics []float64) error {
		exponentialSteps = append(exponentialSteps, loop.LoopStep)
		return nil
	})
	var periodicCalls int
	train.PeriodicCallback(loop, time.Hour, true, "periodic", 0, func(loop *train.Loop, metrics []float64) error {
		periodicCalls++
		return nil
	})
	_, err := loop.RunSteps(ds, 20)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 9, 14, 19}, nTimesSteps)
	assert.Equal(t, []int{2, 5, 8, 11, 14, 17}, everyNSteps)
	assert.Equal(t, []int{5, 15, 20}, exponentialSteps, "includes the call at the end")
	assert.Equal(t, 1, periodicCalls, "only called at the end")

	require.Panics(t, func() { train.EveryNSteps(loop, 0, "invalid", 0, nil) })
	require.Panics(t, func() { train.ExponentialCallback(loop, 5, 1, false, "invalid", 0, nil) })
}

func TestNTimesDuringLoop(t *testing.T) {
	for _, tc := range []struct {
		n, numSteps int
		want        []int
	}{
		{5, 20, []int{3, 7, 11, 15, 19}},
		{3, 10, []int{3, 6, 9}},
		{1, 7, []int{6}},
		{10, 4, []int{0, 1, 2, 3}},
	} {
		t.Run(fmt.Sprintf("n=%d,steps=%d", tc.n, tc.numSteps), func(t *testing.T) {
			loop, ds := newLinearLoop(t)
			var steps []int
			train.NTimesDuringLoop(loop, tc.n, "nTimes", 0, func(loop *train.Loop, metrics []float64) error {
				steps = append(steps, loop.LoopStep)
				return nil
			})
			_, err := loop.RunSteps(ds.Infinite(true), tc.numSteps)
			require.NoError(t, err)
			assert.Equal(t, tc.want, steps)
			assert.LessOrEqual(t, len(steps), tc.n)
		})
	}
}
