// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package context

import (
	"math/rand/v2"

	"k8s.io/klog/v2"
)

var (
	// ParamInitSeed is the key for the hyperparameter to use for initial seed (int64). The default is 0,
	// which makes it non-deterministic. Set it to a value different from 0 for a deterministic (as long
	// as the model doesn't change) initialization.
	ParamInitSeed = "init_seed"
)

type randomSource struct {
	seed uint64
	rng  *rand.Rand
}

// RandomSource returns the random number generator of the Context, shared by all its references.
//
// It is created on first use, seeded with the hyperparameter ParamInitSeed, or non-deterministically if
// that is 0 or not set.
func (ctx *Context) RandomSource() *rand.Rand {
	if ctx.data.rng == nil {
		seed := uint64(GetParamOr(ctx.InAbsPath(RootScope), ParamInitSeed, int64(0)))
		ctx.RngStateFromSeed(seed)
	}
	return ctx.data.rng.rng
}

// RngStateFromSeed resets the random number generator of the Context using the given seed.
// A seed of 0 creates a non-deterministic generator.
func (ctx *Context) RngStateFromSeed(seed uint64) {
	if seed == 0 {
		seed = rand.Uint64()
		klog.V(1).Infof("context: random number generator seeded non-deterministically with %d", seed)
	}
	ctx.data.rng = &randomSource{
		seed: seed,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// RandomUniform returns a random value uniformly sampled from [minValue, maxValue).
func (ctx *Context) RandomUniform(minValue, maxValue float64) float64 {
	return minValue + ctx.RandomSource().Float64()*(maxValue-minValue)
}
