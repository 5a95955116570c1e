// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package activations

import (
	"testing"

	. "github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/gomlx/scalargrad/pkg/ml/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	g := NewGraph("activations")
	for _, tc := range []struct {
		activation Type
		input      float64
		want       float64
	}{
		{TypeNone, -3, -3},
		{TypeNone, 2, 2},
		{TypeRelu, -3, 0},
		{TypeRelu, 0, 0},
		{TypeRelu, 2.5, 2.5},
	} {
		x := Scalar(g, tc.input)
		y := Apply(tc.activation, x)
		assert.Equalf(t, tc.want, y.Value(), "%s(%g)", tc.activation, tc.input)
		assert.Equalf(t, tc.want, ApplyValue(tc.activation, tc.input), "ApplyValue %s(%g)", tc.activation, tc.input)
	}

	x := Scalar(g, 1)
	assert.Same(t, x, Apply(TypeNone, x), "TypeNone should not create new nodes")
	require.Panics(t, func() { Apply(Type(17), x) })
}

func TestFromName(t *testing.T) {
	assert.Equal(t, TypeRelu, FromName("relu"))
	assert.Equal(t, TypeRelu, FromName("ReLU"))
	assert.Equal(t, TypeNone, FromName("none"))
	assert.Equal(t, TypeNone, FromName(""))
	require.Panics(t, func() { FromName("sigmoid") })
	assert.Equal(t, []string{"none", "relu"}, TypeStrings())
	assert.Equal(t, "ReLU", TypeRelu.NeuronPrefix())
	assert.Equal(t, "Linear", TypeNone.NeuronPrefix())
}

func TestApplyFromContext(t *testing.T) {
	g := NewGraph("activations")
	ctx := context.New()
	x := Scalar(g, -2)
	assert.Equal(t, 0.0, ApplyFromContext(ctx, x).Value(), "default activation should be relu")

	ctx.In("linear").SetParam(ParamActivation, "none")
	assert.Equal(t, -2.0, ApplyFromContext(ctx.In("linear"), x).Value())

	// Parameters can also be read directly as a Type, using its text unmarshaler.
	assert.Equal(t, TypeNone, context.GetParamOr(ctx.In("linear"), ParamActivation, TypeRelu))
}
