// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gomlx/scalargrad/pkg/ml/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestContext() *context.Context {
	ctx := context.New()
	ctx.SetParam("x", 11.0)
	ctx.SetParam("y", 7)
	ctx.SetParam("seed", int64(0))
	ctx.SetParam("z", false)
	ctx.SetParam("s", "foo")
	ctx.SetParam("list_int", []int{})
	ctx.SetParam("list_float", []float64{})
	ctx.SetParam("list_str", []string{})
	return ctx
}

func TestParseContextSettings(t *testing.T) {
	ctx := createTestContext()

	paramsSet, err := ParseContextSettings(ctx,
		"x=13;/a/z=true;/a/b/y=3;s=bar;seed=1_000;list_int=1,3,7;list_float=0.1,1.2,3e3;list_str=a,b;")
	require.NoError(t, err)
	require.Equal(t, []string{"x", "/a/z", "/a/b/y", "s", "seed", "list_int", "list_float", "list_str"}, paramsSet)
	x, found := ctx.GetParam("x")
	assert.True(t, found)
	assert.Equal(t, 13.0, x.(float64))

	y, found := ctx.GetParam("y")
	assert.True(t, found)
	assert.Equal(t, 7, y)
	y, _ = ctx.In("a").GetParam("y")
	assert.Equal(t, 7, y)
	y, _ = ctx.In("a").In("b").GetParam("y")
	assert.Equal(t, 3, y)

	z, found := ctx.GetParam("z")
	assert.True(t, found)
	assert.False(t, z.(bool))
	z, _ = ctx.In("a").GetParam("z")
	assert.True(t, z.(bool))

	s, found := ctx.GetParam("s")
	assert.True(t, found)
	assert.Equal(t, "bar", s.(string))
	assert.Equal(t, int64(1000), context.GetParamOr(ctx, "seed", int64(0)))

	assert.Equal(t, []int{1, 3, 7}, context.GetParamOr(ctx, "list_int", []int{}))
	assert.Equal(t, []float64{0.1, 1.2, 3e3}, context.GetParamOr(ctx, "list_float", []float64{}))
	assert.Equal(t, []string{"a", "b"}, context.GetParamOr(ctx, "list_str", []string{}))

	// Parameter "q" is unknown.
	_, err = ParseContextSettings(ctx, "q=3")
	require.Error(t, err)

	// Parameter "q" is still unknown in root.
	ctx.In("c").SetParam("q", 13)
	_, err = ParseContextSettings(ctx, "q=3")
	require.Error(t, err)

	// Cannot set the wrong type of value.
	_, err = ParseContextSettings(ctx, "y=3.14")
	require.Error(t, err)
	_, err = ParseContextSettings(ctx, "list_int=1,a")
	require.Error(t, err)

	// Cannot parse setting with scope not absolute.
	_, err = ParseContextSettings(ctx, "a/abc=3.14")
	require.Error(t, err)

	// Malformed settings.
	_, err = ParseContextSettings(ctx, "x")
	require.Error(t, err)
	_, err = ParseContextSettings(ctx, "x=1=2")
	require.Error(t, err)

	modified := SprintModifiedContextSettings(ctx, []string{"x", "/a/z", "x"})
	assert.Equal(t, "\t\"/a/z\": (bool) true\n\t\"x\": (float64) 13", modified)
}

func TestSprintContextSettings(t *testing.T) {
	ctx := context.New()
	ctx.SetParams(map[string]any{"lr": 0.1, "activation": "relu"})
	ctx.In("mlp").SetParam("activation", "none")
	assert.Equal(t,
		"\t\"/activation\": (string) relu\n\t\"/lr\": (float64) 0.1\n\t\"/mlp/activation\": (string) none",
		SprintContextSettings(ctx))
	assert.Empty(t, SprintContextSettings(context.New()))
}

func TestParseContextSettingsFile(t *testing.T) {
	ctx := createTestContext()
	settingsPath := filepath.Join(t.TempDir(), "settings.txt")
	contents := "# Training settings.\nx=0.5\n\n/mlp/s=baz;y=2\n"
	require.NoError(t, os.WriteFile(settingsPath, []byte(contents), 0o600))

	paramsSet, err := ParseContextSettings(ctx, "z=true;file:"+settingsPath+";y=5")
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "x", "/mlp/s", "y", "y"}, paramsSet)
	assert.Equal(t, 0.5, context.GetParamOr(ctx, "x", 0.0))
	assert.Equal(t, "baz", context.GetParamOr(ctx.In("mlp"), "s", ""))
	assert.Equal(t, "foo", context.GetParamOr(ctx, "s", ""))
	assert.Equal(t, 5, context.GetParamOr(ctx, "y", 0))

	_, err = ParseContextSettings(ctx, "file:"+filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)

	home, err := os.UserHomeDir()
	if err == nil {
		expanded, err := replaceTildeInDir("~/settings.txt")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "settings.txt"), expanded)
	}
	notExpanded, err := replaceTildeInDir("/tmp/~settings.txt")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/~settings.txt", notExpanded)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1.23s", FormatDuration(1234567*time.Microsecond))
	assert.Equal(t, "12.35ms", FormatDuration(12345678*time.Nanosecond))
	assert.Equal(t, "0.00s", FormatDuration(0))
	assert.Equal(t, "1m30s", FormatDuration(90400*time.Millisecond))
}

func TestHumanizeSteps(t *testing.T) {
	assert.Equal(t, "1,234,567", humanizeSteps(1234567))
	assert.Equal(t, "12", humanizeSteps(12))
	assert.Equal(t, "?", humanizeSteps(-1))
}
