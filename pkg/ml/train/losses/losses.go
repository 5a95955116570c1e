// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package losses have several standard losses that implement the LossFn interface. They can also
// be called separately by custom losses.
//
// They all have the same signature that can be used by train.Trainer.
package losses

import (
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/gomlx/scalargrad/pkg/ml/context"
)

// LossFn is the interface used by train.Trainer to train models.
//
// It takes as inputs the labels and predictions of one example, one node per model output:
//   - labels comes from the dataset.
//   - predictions comes from the model.
//   - the returned loss is the loss of that example: train.Trainer takes the mean over the examples of a batch,
//     before running the backward pass.
type LossFn func(labels, predictions []*Node) (loss *Node)

const (
	// ParamLoss is the context hyperparameter with the name of the loss to use, see FromName.
	// The default is "mse".
	ParamLoss = "loss"

	// ParamL2Regularization is the context hyperparameter with the L2 regularization coefficient, see
	// L2Regularization. The default is 0, which disables it.
	ParamL2Regularization = "l2_regularization"
)

func checkLabelsAndPredictions(name string, labels, predictions []*Node) {
	if len(labels) == 0 || len(labels) != len(predictions) {
		exceptions.Panicf("%s: labels (%d) and predictions (%d) must have the same non-zero length",
			name, len(labels), len(predictions))
	}
}

// MeanSquaredError returns the mean squared error between labels and predictions.
func MeanSquaredError(labels, predictions []*Node) (loss *Node) {
	checkLabelsAndPredictions("MeanSquaredError", labels, predictions)
	diffs := make([]*Node, len(labels))
	for ii := range labels {
		diffs[ii] = Square(Sub(labels[ii], predictions[ii]))
	}
	return Mean(diffs...)
}

// MeanAbsoluteError returns the mean absolute error between labels and predictions.
//
// The absolute value is computed as `Relu(x) + Relu(-x)`, so the gradient at 0 is 0.
func MeanAbsoluteError(labels, predictions []*Node) (loss *Node) {
	checkLabelsAndPredictions("MeanAbsoluteError", labels, predictions)
	diffs := make([]*Node, len(labels))
	for ii := range labels {
		diff := Sub(labels[ii], predictions[ii])
		diffs[ii] = Add(Relu(diff), Relu(Neg(diff)))
	}
	return Mean(diffs...)
}

// Hinge returns the "max-margin" loss `Relu(1 - label * prediction)`, averaged over the outputs.
//
// Labels are expected to be -1 or +1, and the prediction's sign is the predicted class.
func Hinge(labels, predictions []*Node) (loss *Node) {
	checkLabelsAndPredictions("Hinge", labels, predictions)
	margins := make([]*Node, len(labels))
	for ii := range labels {
		margins[ii] = Relu(ScalarSub(1, Mul(labels[ii], predictions[ii])))
	}
	return Mean(margins...)
}

// L2Regularization returns `alpha * Σ p²` over the given parameters.
func L2Regularization(alpha float64, params []*Node) *Node {
	if len(params) == 0 {
		exceptions.Panicf("L2Regularization requires at least one parameter")
	}
	squares := make([]*Node, len(params))
	for ii, p := range params {
		squares[ii] = Square(p)
	}
	return MulScalar(Sum(squares...), alpha)
}

// FromName returns the loss with the given name: "mse", "mae" or "hinge".
// It panics with a helpful message for unknown names.
func FromName(name string) LossFn {
	switch name {
	case "", "mse":
		return MeanSquaredError
	case "mae":
		return MeanAbsoluteError
	case "hinge":
		return Hinge
	default:
		exceptions.Panicf("unknown loss %q: options are mse, mae or hinge", name)
	}
	return nil
}

// FromContext returns the loss configured with ParamLoss in ctx.
func FromContext(ctx *context.Context) LossFn {
	return FromName(context.GetParamOr(ctx, ParamLoss, "mse"))
}
