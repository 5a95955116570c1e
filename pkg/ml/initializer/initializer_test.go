// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package initializer_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/gomlx/scalargrad/pkg/ml/context"
	"github.com/gomlx/scalargrad/pkg/ml/initializer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstants(t *testing.T) {
	g := graph.NewGraph("init")
	assert.Equal(t, 0.0, initializer.Zero(g, 3, 1).Value())
	assert.Equal(t, 1.0, initializer.One(g, 3, 1).Value())
	v := initializer.Constant(0.25)(g, 3, 1)
	assert.Equal(t, 0.25, v.Value())
	assert.True(t, v.IsLeaf())
	assert.Equal(t, 0.0, v.Grad())
}

func TestRandomInitializers(t *testing.T) {
	g := graph.NewGraph("init")
	rng := rand.New(rand.NewPCG(1, 2))
	uniform := initializer.Uniform(rng, -1, 1)
	xavier := initializer.XavierUniform(rng)
	limit := math.Sqrt(6.0 / 4.0)
	var sum float64
	const n = 1000
	for range n {
		v := uniform(g, 2, 2).Value()
		require.GreaterOrEqual(t, v, -1.0)
		require.Less(t, v, 1.0)
		sum += v
		x := xavier(g, 2, 2).Value()
		require.LessOrEqual(t, math.Abs(x), limit)
	}
	assert.InDelta(t, 0.0, sum/n, 0.1, "uniform [-1, 1) mean should be close to 0")

	// Same seed, same values.
	a := initializer.He(rand.New(rand.NewPCG(3, 4)))
	b := initializer.He(rand.New(rand.NewPCG(3, 4)))
	for range 10 {
		assert.Equal(t, a(g, 5, 1).Value(), b(g, 5, 1).Value())
	}
}

func TestFromContext(t *testing.T) {
	g := graph.NewGraph("init")
	ctx := context.New()
	ctx.SetParam(initializer.ParamInitializer, "zero")
	assert.Equal(t, 0.0, initializer.FromContext(ctx)(g, 3, 1).Value())

	ctx.SetParam(initializer.ParamInitializer, "he")
	require.NotNil(t, initializer.FromContext(ctx))
	require.Panics(t, func() { initializer.FromName("glorot", nil) })
}

func TestNormal(t *testing.T) {
	g := graph.NewGraph("init")
	normal := initializer.FromName("normal", rand.New(rand.NewPCG(5, 6)))
	const n = 2000
	var sum, sumSquares float64
	for range n {
		v := normal(g, 3, 1).Value()
		sum += v
		sumSquares += v * v
	}
	mean := sum / n
	assert.InDelta(t, 0.0, mean, 0.1)
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares/n-mean*mean), 0.1)

	// Scaled by stddev.
	scaled := initializer.Normal(rand.New(rand.NewPCG(5, 6)), 0.5)
	sumSquares = 0
	for range n {
		v := scaled(g, 3, 1).Value()
		sumSquares += v * v
	}
	assert.InDelta(t, 0.5, math.Sqrt(sumSquares/n), 0.05)
}
