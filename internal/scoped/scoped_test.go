// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package scoped_test

import (
	"fmt"
	"testing"

	"github.com/gomlx/scalargrad/internal/scoped"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsGet(t *testing.T) {
	p := scoped.New("/")
	p.Set("/", "learning_rate", 0.1)
	p.Set("/", "activation", "relu")
	p.Set("/mlp", "l2_regularization", 1e-4)
	p.Set("/mlp/layer_1", "activation", "none")

	value, found := p.Get("/mlp/layer_1", "activation")
	require.True(t, found)
	assert.Equal(t, "none", value)

	value, found = p.Get("/mlp/layer_0", "activation")
	require.True(t, found)
	assert.Equal(t, "relu", value)

	value, found = p.Get("/mlp/layer_1", "l2_regularization")
	require.True(t, found)
	assert.Equal(t, 1e-4, value)

	value, found = p.Get("/other/deep/scope", "learning_rate")
	require.True(t, found)
	assert.Equal(t, 0.1, value)

	_, found = p.Get("/mlp/layer_1", "unknown")
	assert.False(t, found)
	_, found = p.Get("/", "l2_regularization")
	assert.False(t, found, "parameters of a sub-scope are not visible in the parent")
}

func TestParamsEnumerateAndClone(t *testing.T) {
	p := scoped.New("/")
	p.Set("/b", "y", 2)
	p.Set("/", "z", 3)
	p.Set("/", "x", 1)

	var got []string
	p.Enumerate(func(scope, key string, value any) {
		got = append(got, fmt.Sprintf("%s:%s=%v", scope, key, value))
	})
	assert.Equal(t, []string{"/:x=1", "/:z=3", "/b:y=2"}, got)

	clone := p.Clone()
	clone.Set("/", "x", 10)
	value, _ := p.Get("/", "x")
	assert.Equal(t, 1, value, "changing the clone should not change the original")
	value, _ = clone.Get("/b", "x")
	assert.Equal(t, 10, value)
}
