// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package optimizers implements the parameter update rules used by train.Trainer after each backward pass.
//
// Optimizers overwrite the values of the parameters (with graph.Node.SetValue) using their accumulated gradients.
package optimizers

import (
	"maps"
	"slices"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/gomlx/scalargrad/pkg/ml/context"
)

// Interface implemented by optimizer implementations.
type Interface interface {
	// UpdateParameters applies one training step to params, using their current gradients.
	//
	// globalStep is the number of the step being applied, starting from 0, and numSteps the total number of
	// steps planned for the training (or 0 if unknown), used by learning rate schedules.
	//
	// ctx holds the hyperparameters used by the optimizer.
	UpdateParameters(ctx *context.Context, params []*Node, globalStep, numSteps int)

	// Clear deletes any state kept by the optimizer about the parameters (e.g.: moments).
	// It may be used if the training should be reset for some reason.
	Clear()
}

var (
	// KnownOptimizers is a map of known optimizers by name to their default constructors.
	KnownOptimizers = map[string]func(ctx *context.Context) Interface{
		"sgd":  func(ctx *context.Context) Interface { return StochasticGradientDescent() },
		"adam": func(ctx *context.Context) Interface { return Adam().FromContext(ctx).Done() },
	}

	// ParamOptimizer is the context parameter with the name of the optimizer.
	// The default value is "sgd", and the valid values are "sgd" and "adam".
	ParamOptimizer = "optimizer"

	// ParamLearningRate is the context parameter name for the default value of learning rate.
	// It is used by all optimizers.
	ParamLearningRate = "learning_rate"

	// ParamLearningRateDecay enables a linear decay of the learning rate, from its initial value down to
	// 10% of it at the last step of training. Defaults to false.
	ParamLearningRateDecay = "lr_decay"

	// ParamClipStepByValue is a clip scalar value for each individual value of the gradient step, after
	// being scaled by the learning rate and optimizer.
	// The step applied will be `Clip(step, -clip_step_by_value, +clip_step_by_value)`.
	// Defaults to no clipping, and values are expected to be float64.
	ParamClipStepByValue = "clip_step_by_value"
)

// FromContext creates an optimizer from context hyperparameters.
// See [ParamOptimizer]. The default is "sgd".
func FromContext(ctx *context.Context) Interface {
	optName := context.GetParamOr(ctx, ParamOptimizer, "sgd")
	return ByName(ctx, optName)
}

// ByName returns an optimizer given the name, or panics if one does not exist.
// It uses KnownOptimizers.
func ByName(ctx *context.Context, optName string) Interface {
	optBuilder, found := KnownOptimizers[optName]
	if !found {
		exceptions.Panicf("Unknown optimizer %q, valid values are %v.", optName, slices.Sorted(maps.Keys(KnownOptimizers)))
	}
	return optBuilder(ctx)
}

// LearningRate returns the learning rate for the given step.
//
// The base value is read from the ParamLearningRate hyperparameter, or defaultValue if not set. If
// ParamLearningRateDecay is set and numSteps > 0, it decays linearly from the base value at step 0
// to 10% of it at step numSteps.
func LearningRate(ctx *context.Context, defaultValue float64, globalStep, numSteps int) float64 {
	lr := context.GetParamOr(ctx, ParamLearningRate, defaultValue)
	if numSteps > 0 && context.GetParamOr(ctx, ParamLearningRateDecay, false) {
		lr *= 1.0 - 0.9*float64(globalStep)/float64(numSteps)
	}
	return lr
}

// ClipStepByValue applies the [ParamClipStepByValue] hyperparameter if it is not 0.0 (the default).
func ClipStepByValue(ctx *context.Context, step float64) float64 {
	clipByValue := context.GetParamOr(ctx, ParamClipStepByValue, 0.0)
	if clipByValue == 0 {
		return step
	}
	return min(max(step, -clipByValue), clipByValue)
}

// sgd is an empty struct that implements Interface for SGD.
type sgd struct{}

// SgdDefaultLearningRate is the default learning rate used by the StochasticGradientDescent optimizer.
const SgdDefaultLearningRate = 0.1

// StochasticGradientDescent creates an optimizer that performs SGD:
//
//	param.value -= learning_rate * param.grad
//
// It looks for "learning_rate" in the context for the learning rate, otherwise it defaults
// to SgdDefaultLearningRate. See LearningRate for the optional decay.
func StochasticGradientDescent() Interface {
	return &sgd{}
}

// UpdateParameters implements optimizers.Interface.
func (sgd *sgd) UpdateParameters(ctx *context.Context, params []*Node, globalStep, numSteps int) {
	learningRate := LearningRate(ctx, SgdDefaultLearningRate, globalStep, numSteps)
	for _, p := range params {
		step := ClipStepByValue(ctx, learningRate*p.Grad())
		p.SetValue(p.Value() - step)
	}
}

// Clear all optimizer state.
// There is none for SGD, so this is a non-op.
func (sgd *sgd) Clear() {}
