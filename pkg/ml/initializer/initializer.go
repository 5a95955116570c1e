// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package initializer implements the initializers for the learnable parameters of the nn units.
//
// Each initializer creates a new leaf node in the given graph, with the initial value of one parameter.
// The fan-in and fan-out of the unit owning the parameter are given, for initializers that scale
// their values accordingly.
package initializer

import (
	"math"
	"math/rand/v2"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/gomlx/scalargrad/pkg/ml/context"
)

// Initializer creates a leaf node with the initial value of a parameter.
//
// fanIn is the number of inputs of the unit owning the parameter, and fanOut its number of outputs.
type Initializer func(g *Graph, fanIn, fanOut int) *Node

// ParamInitializer context hyperparameter defines the initializer used for weights, see FromName.
// Available values are: `uniform` (the default, in [-1, 1)), `normal` (stddev 1), `xavier_uniform`, `he` and `zero`.
const ParamInitializer = "initializer"

var (
	// Zero initializes parameters with zero.
	Zero Initializer = func(g *Graph, _, _ int) *Node {
		return Scalar(g, 0)
	}

	// One initializes parameters with one.
	One Initializer = func(g *Graph, _, _ int) *Node {
		return Scalar(g, 1)
	}
)

// Constant returns an initializer that sets every parameter to value.
func Constant(value float64) Initializer {
	return func(g *Graph, _, _ int) *Node {
		return Scalar(g, value)
	}
}

// Uniform returns an initializer that generates random uniform values from [minValue, maxValue).
func Uniform(rng *rand.Rand, minValue, maxValue float64) Initializer {
	return func(g *Graph, _, _ int) *Node {
		return Scalar(g, minValue+rng.Float64()*(maxValue-minValue))
	}
}

// Normal returns an initializer that generates random normal values with the given standard deviation
// and mean set to 0.
func Normal(rng *rand.Rand, stddev float64) Initializer {
	return func(g *Graph, _, _ int) *Node {
		return Scalar(g, rng.NormFloat64()*stddev)
	}
}

// XavierUniform returns an initializer that generates random values with a uniform distribution with a range
// defined by +/- sqrt(6 / (fanIn+fanOut)).
// See paper and reasoning in https://paperswithcode.com/method/xavier-initialization
func XavierUniform(rng *rand.Rand) Initializer {
	return func(g *Graph, fanIn, fanOut int) *Node {
		scale := max(1.0, float64(fanIn+fanOut))
		limit := math.Sqrt(6.0 / scale)
		return Scalar(g, (2*rng.Float64()-1)*limit)
	}
}

// He returns the initializer that tries to preserve the variance of 1, calculated for the Relu activation functions.
//
// [1] https://arxiv.org/pdf/1502.01852
func He(rng *rand.Rand) Initializer {
	return func(g *Graph, fanIn, _ int) *Node {
		scale := max(1.0, float64(fanIn))
		return Scalar(g, rng.NormFloat64()*math.Sqrt(2.0/scale))
	}
}

// FromName returns the initializer with the given name, using rng for the random ones.
// It panics with a helpful message if the name is unknown.
func FromName(name string, rng *rand.Rand) Initializer {
	switch name {
	case "", "uniform":
		return Uniform(rng, -1, 1)
	case "normal":
		return Normal(rng, 1)
	case "xavier_uniform":
		return XavierUniform(rng)
	case "he":
		return He(rng)
	case "zero":
		return Zero
	default:
		exceptions.Panicf("unknown initializer %q: options are uniform, normal, xavier_uniform, he or zero", name)
	}
	return nil
}

// FromContext returns the weights initializer configured with ParamInitializer in ctx, drawing random
// numbers from the context random source (see context.ParamInitSeed).
func FromContext(ctx *context.Context) Initializer {
	return FromName(context.GetParamOr(ctx, ParamInitializer, "uniform"), ctx.RandomSource())
}
