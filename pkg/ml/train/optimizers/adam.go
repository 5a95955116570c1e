// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package optimizers

import (
	"math"

	. "github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/gomlx/scalargrad/pkg/ml/context"
)

const (
	// AdamDefaultLearningRate is used by Adam if no learning rate is set.
	AdamDefaultLearningRate = 0.001

	// ParamAdamBeta1 is the context hyperparameter for Adam's exponential decay of the first moment. Defaults to 0.9.
	ParamAdamBeta1 = "adam_beta1"

	// ParamAdamBeta2 is the context hyperparameter for Adam's exponential decay of the second moment. Defaults to 0.999.
	ParamAdamBeta2 = "adam_beta2"
)

// Adam optimization is a stochastic gradient descent method that is based on adaptive estimation of first-order and
// second-order moments. See [Kingma et al., 2014](http://arxiv.org/abs/1412.6980).
//
// It returns a configuration object that can be used to set its parameters. Once configured call Done, and it
// will return an optimizers.Interface.
func Adam() *AdamConfig {
	return &AdamConfig{
		learningRate: -1, // < 0 means use the default.
		beta1:        0.9,
		beta2:        0.999,
		epsilon:      1e-7,
	}
}

// AdamConfig holds the configuration for an Adam configuration, create using Adam(), and once configured
// call Done to create an Adam based optimizers.Interface.
type AdamConfig struct {
	learningRate float64
	beta1, beta2 float64
	epsilon      float64
}

// LearningRate sets the base learning rate.
//
// Default is either the value of ParamLearningRate ("learning_rate") in the context, or AdamDefaultLearningRate.
func (c *AdamConfig) LearningRate(value float64) *AdamConfig {
	c.learningRate = value
	return c
}

// Betas sets the two moving averages constants (default to 0.9 and 0.999).
func (c *AdamConfig) Betas(beta1, beta2 float64) *AdamConfig {
	c.beta1 = beta1
	c.beta2 = beta2
	return c
}

// Epsilon used on the denominator as a small constant for stability (default 1e-7).
func (c *AdamConfig) Epsilon(epsilon float64) *AdamConfig {
	c.epsilon = epsilon
	return c
}

// FromContext will configure Adam with hyperparameters set in the given context.
// E.g.: "adam_beta1" (ParamAdamBeta1) and "adam_beta2" (ParamAdamBeta2).
func (c *AdamConfig) FromContext(ctx *context.Context) *AdamConfig {
	c.beta1 = context.GetParamOr(ctx, ParamAdamBeta1, c.beta1)
	c.beta2 = context.GetParamOr(ctx, ParamAdamBeta2, c.beta2)
	return c
}

// Done will finish the configuration and construct an optimizers.Interface that implements Adam.
func (c *AdamConfig) Done() Interface {
	return &adam{config: *c, moments: make(map[*Node]*adamMoments)}
}

type adamMoments struct {
	first, second float64
	numUpdates    int
}

// adam implements the Adam algorithm, keeping the moments of each parameter.
type adam struct {
	config  AdamConfig
	moments map[*Node]*adamMoments
}

// UpdateParameters implements optimizers.Interface.
func (o *adam) UpdateParameters(ctx *context.Context, params []*Node, globalStep, numSteps int) {
	defaultLR := AdamDefaultLearningRate
	if o.config.learningRate >= 0 {
		defaultLR = o.config.learningRate
	}
	learningRate := LearningRate(ctx, defaultLR, globalStep, numSteps)
	beta1, beta2 := o.config.beta1, o.config.beta2
	for _, p := range params {
		m := o.moments[p]
		if m == nil {
			m = &adamMoments{}
			o.moments[p] = m
		}
		m.numUpdates++
		grad := p.Grad()
		m.first = beta1*m.first + (1-beta1)*grad
		m.second = beta2*m.second + (1-beta2)*grad*grad
		firstUnbiased := m.first / (1 - math.Pow(beta1, float64(m.numUpdates)))
		secondUnbiased := m.second / (1 - math.Pow(beta2, float64(m.numUpdates)))
		step := learningRate * firstUnbiased / (math.Sqrt(secondUnbiased) + o.config.epsilon)
		p.SetValue(p.Value() - ClipStepByValue(ctx, step))
	}
}

// Clear the moments of all parameters.
func (o *adam) Clear() {
	clear(o.moments)
}
