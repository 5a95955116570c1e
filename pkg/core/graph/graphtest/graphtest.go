// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graphtest holds test utilities for packages that depend on the graph package.
package graphtest

import (
	"fmt"
	"testing"

	"github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/stretchr/testify/require"
)

// TestGraphFn builds the expression being tested, from the given leaf inputs, and returns its output.
type TestGraphFn func(g *graph.Graph, inputs []*graph.Node) (output *graph.Node)

// FiniteDifferenceStep is the default step used by NumericalGradient.
const FiniteDifferenceStep = 1e-6

// Eval builds graphFn on a new graph, with leaves set to the given values, and returns the output value.
func Eval(graphFn TestGraphFn, values []float64) float64 {
	g := graph.NewGraph("graphtest.Eval")
	defer g.Finalize()
	return graphFn(g, leaves(g, values)).Value()
}

// AnalyticGradient builds graphFn on a new graph, with leaves set to the given values, runs Backward and
// returns the output value and the gradients of the output with respect to each input.
func AnalyticGradient(graphFn TestGraphFn, values []float64) (output float64, gradients []float64) {
	g := graph.NewGraph("graphtest.AnalyticGradient")
	defer g.Finalize()
	inputs := leaves(g, values)
	root := graphFn(g, inputs)
	gradients = graph.Gradient(root, inputs...)
	return root.Value(), gradients
}

// NumericalGradient estimates the gradients of graphFn with respect to each of its inputs using central
// finite differences with the given step.
func NumericalGradient(graphFn TestGraphFn, values []float64, step float64) []float64 {
	gradients := make([]float64, len(values))
	shifted := make([]float64, len(values))
	for ii := range values {
		copy(shifted, values)
		shifted[ii] = values[ii] + step
		plus := Eval(graphFn, shifted)
		shifted[ii] = values[ii] - step
		minus := Eval(graphFn, shifted)
		gradients[ii] = (plus - minus) / (2 * step)
	}
	return gradients
}

// RunGradientCheck runs graphFn and compares its analytic gradients (calculated with Backward) with the ones
// estimated by NumericalGradient, requiring them to be within delta.
func RunGradientCheck(t *testing.T, testName string, graphFn TestGraphFn, values []float64, delta float64) {
	t.Run(testName, func(t *testing.T) {
		output, analytic := AnalyticGradient(graphFn, values)
		numerical := NumericalGradient(graphFn, values, FiniteDifferenceStep)
		fmt.Printf("\n%s:\n\tinputs=%v\n\toutput=%g\n\tgradients=%v\n\tnumerical=%v\n",
			testName, values, output, analytic, numerical)
		require.InDeltaSlicef(t, numerical, analytic, delta, "%s: analytic gradients don't match numerical ones", testName)
	})
}

func leaves(g *graph.Graph, values []float64) []*graph.Node {
	inputs := make([]*graph.Node, len(values))
	for ii, value := range values {
		inputs[ii] = graph.Scalar(g, value)
	}
	return inputs
}
