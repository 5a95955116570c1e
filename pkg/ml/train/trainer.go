// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package train holds tools to help run a training loop: the Trainer, that executes one training step at a
// time, and the Loop, that runs the Trainer for many steps over a Dataset and calls registered hooks.
package train

import (
	"io"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/gomlx/scalargrad/pkg/ml/context"
	"github.com/gomlx/scalargrad/pkg/ml/nn"
	"github.com/gomlx/scalargrad/pkg/ml/train/losses"
	"github.com/gomlx/scalargrad/pkg/ml/train/metrics"
	"github.com/gomlx/scalargrad/pkg/ml/train/optimizers"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Trainer trains a model (an nn.Module) with a loss function and an optimizer, one batch at a time.
//
// Each training step builds the forward graph of the batch on top of the model's graph, computes
// the gradients of the mean loss, updates the parameters and then releases all the nodes created
// for the step: only the parameters survive from one step to the next.
type Trainer struct {
	ctx       *context.Context
	graph     *Graph
	model     nn.Module
	lossFn    losses.LossFn
	optimizer optimizers.Interface

	// trainMetrics and evalMetrics include the loss metrics, at position 0.
	trainMetrics, evalMetrics []metrics.Interface

	globalStep, numSteps int
}

// NewTrainer creates a Trainer for the given model.
//
// ctx holds the hyperparameters, e.g.: losses.ParamL2Regularization and those used by the optimizer.
// trainMetrics are updated at each TrainStep, and evalMetrics during Eval: the Trainer prepends
// to them a loss metric, so the first metric is always the loss.
func NewTrainer(ctx *context.Context, model nn.Module, lossFn losses.LossFn, optimizer optimizers.Interface,
	trainMetrics, evalMetrics []metrics.Interface) *Trainer {
	params := model.Parameters()
	if len(params) == 0 {
		exceptions.Panicf("train.NewTrainer: model %s has no parameters to train", model)
	}
	r := &Trainer{
		ctx:       ctx,
		graph:     params[0].Graph(),
		model:     model,
		lossFn:    lossFn,
		optimizer: optimizer,
	}
	r.trainMetrics = append([]metrics.Interface{
		metrics.NewBaseMetric("Batch Loss", "batch", metrics.LossMetricType, metrics.LossFn, nil),
	}, trainMetrics...)
	r.evalMetrics = append([]metrics.Interface{
		metrics.NewMeanLoss("Mean Loss", "#loss"),
	}, evalMetrics...)
	return r
}

// Context returns the context holding the hyperparameters used by the Trainer.
func (r *Trainer) Context() *context.Context { return r.ctx }

// Graph where the model parameters live, and where each step builds its nodes.
func (r *Trainer) Graph() *Graph { return r.graph }

// Model being trained.
func (r *Trainer) Model() nn.Module { return r.model }

// TrainMetrics returns the metrics updated by TrainStep. The first one is always the batch loss.
func (r *Trainer) TrainMetrics() []metrics.Interface { return r.trainMetrics }

// EvalMetrics returns the metrics updated by Eval. The first one is always the mean loss.
func (r *Trainer) EvalMetrics() []metrics.Interface { return r.evalMetrics }

// GlobalStep returns the number of training steps executed so far.
func (r *Trainer) GlobalStep() int { return r.globalStep }

// SetNumSteps sets the total number of training steps planned, used by learning rate schedules.
// Set it to 0 if unknown. train.Loop sets it automatically.
func (r *Trainer) SetNumSteps(numSteps int) { r.numSteps = numSteps }

// ResetTrainMetrics resets the state of all the training metrics.
func (r *Trainer) ResetTrainMetrics() {
	for _, m := range r.trainMetrics {
		m.Reset()
	}
}

// forward builds the graph for the batch and returns the mean loss over the examples, along with
// the values of the batch.
func (r *Trainer) forward(inputs, labels [][]float64) (loss *Node, batch *metrics.Batch) {
	if len(inputs) == 0 || len(inputs) != len(labels) {
		exceptions.Panicf("batch must have the same non-zero number of inputs and labels, got %d inputs and %d labels",
			len(inputs), len(labels))
	}
	batch = &metrics.Batch{
		Labels:      labels,
		Predictions: make([][]float64, len(inputs)),
	}
	exampleLosses := make([]*Node, len(inputs))
	for ii, example := range inputs {
		predictions := r.model.Call(nn.Constants(r.graph, example))
		exampleLosses[ii] = r.lossFn(nn.Constants(r.graph, labels[ii]), predictions)
		batch.Predictions[ii] = make([]float64, len(predictions))
		for jj, p := range predictions {
			batch.Predictions[ii][jj] = p.Value()
		}
	}
	loss = Mean(exampleLosses...)
	return
}

// TrainStep runs one training step with the given batch: forward pass, backward pass and parameters update.
//
// It returns the values of the TrainMetrics after the step, the first being the batch loss.
// Errors (including panics while building the graph) are returned as errors.
func (r *Trainer) TrainStep(inputs, labels [][]float64) (metricsValues []float64, err error) {
	err = exceptions.TryCatch[error](func() {
		metricsValues = r.trainStep(inputs, labels)
	})
	if err != nil {
		err = errors.WithMessagef(err, "Trainer.TrainStep(GlobalStep=%d)", r.globalStep)
	}
	return
}

func (r *Trainer) trainStep(inputs, labels [][]float64) []float64 {
	mark := r.graph.Mark()
	defer r.graph.Release(mark)

	loss, batch := r.forward(inputs, labels)
	params := r.model.Parameters()
	if l2 := context.GetParamOr(r.ctx, losses.ParamL2Regularization, 0.0); l2 > 0 {
		loss = Add(loss, losses.L2Regularization(l2, params))
	}
	batch.Loss = loss.Value()

	r.model.ZeroGrad()
	loss.Backward()
	r.optimizer.UpdateParameters(r.ctx, params, r.globalStep, r.numSteps)
	if klog.V(2).Enabled() {
		klog.Infof("train step %d: loss=%g, %d nodes built", r.globalStep, batch.Loss, r.graph.NumNodes()-mark.NumNodes())
	}
	r.globalStep++

	values := make([]float64, len(r.trainMetrics))
	for ii, m := range r.trainMetrics {
		values[ii] = m.Update(batch)
	}
	return values
}

// EvalStep evaluates the model on one batch and updates the EvalMetrics, returning their current values.
// It doesn't change the parameters of the model.
func (r *Trainer) EvalStep(inputs, labels [][]float64) (metricsValues []float64, err error) {
	err = exceptions.TryCatch[error](func() {
		mark := r.graph.Mark()
		defer r.graph.Release(mark)
		loss, batch := r.forward(inputs, labels)
		batch.Loss = loss.Value()
		metricsValues = make([]float64, len(r.evalMetrics))
		for ii, m := range r.evalMetrics {
			metricsValues[ii] = m.Update(batch)
		}
	})
	if err != nil {
		err = errors.WithMessage(err, "Trainer.EvalStep")
	}
	return
}

// Eval resets the EvalMetrics and evaluates the model over the whole dataset, until it returns io.EOF.
// The dataset is reset at the end.
//
// It returns the final values of the EvalMetrics, the first being the mean loss.
func (r *Trainer) Eval(ds Dataset) (metricsValues []float64, err error) {
	for _, m := range r.evalMetrics {
		m.Reset()
	}
	defer ds.Reset()
	for count := 0; ; count++ {
		inputs, labels, yieldErr := ds.Yield()
		if yieldErr == io.EOF {
			if count == 0 {
				return nil, errors.Errorf("evaluation dataset %q yielded no batches", ds.Name())
			}
			return metricsValues, nil
		}
		if yieldErr != nil {
			return nil, errors.WithMessagef(yieldErr, "Trainer.Eval(%q): failed reading from Dataset", ds.Name())
		}
		metricsValues, err = r.EvalStep(inputs, labels)
		if err != nil {
			return nil, errors.WithMessagef(err, "Trainer.Eval(%q): batch #%d", ds.Name(), count)
		}
	}
}
