// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

package visualizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylus-tools/stylus-trace/internal/errors"
	"github.com/stylus-tools/stylus-trace/internal/profile"
)

func ink(v uint64) *uint64 { return &v }

func renderFixture() *profile.Profile {
	inner := &profile.Node{
		Label: "storage_heavy", SelfGas: 40000, CumulativeGas: 40000,
		SelfInk: ink(400000000), CumulativeInk: ink(400000000),
		HostIOCount: 5, CallCount: 2,
	}
	outer := &profile.Node{
		Label: "give_cupcake_to", SelfGas: 20000, CumulativeGas: 60000,
		SelfInk: ink(200000000), CumulativeInk: ink(600000000),
		HostIOCount: 7, CallCount: 1, Children: []*profile.Node{inner},
	}
	root := &profile.Node{
		Label: profile.RootLabel, CumulativeGas: 60000,
		SelfInk: ink(0), CumulativeInk: ink(600000000),
		HostIOCount: 7, CallCount: 1, Children: []*profile.Node{outer},
	}
	return &profile.Profile{
		SchemaVersion:    profile.SchemaVersion,
		TransactionHash:  "0xbeef",
		TracerName:       "stylusTracer",
		TotalGas:         60000,
		TotalInk:         ink(600000000),
		TotalHostIOCalls: 7,
		Root:             root,
	}
}

func TestRender_BasicStructure(t *testing.T) {
	svg, err := Render(renderFixture(), FlamegraphConfig{})
	require.NoError(t, err)

	out := string(svg)
	assert.True(t, strings.HasPrefix(out, "<svg "))
	assert.True(t, strings.HasSuffix(out, "</svg>\n"))
	assert.Contains(t, out, "stylus-trace 0xbeef")
	assert.Contains(t, out, "give_cupcake_to")
	assert.Contains(t, out, "storage_heavy (x2)", "collapsed call counts surface in the label")
	assert.Contains(t, out, "total gas: 60000")
	assert.Contains(t, out, "prefers-color-scheme", "dark mode styles are embedded")
}

func TestRender_Deterministic(t *testing.T) {
	first, err := Render(renderFixture(), FlamegraphConfig{})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Render(renderFixture(), FlamegraphConfig{})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRender_InkUnits(t *testing.T) {
	svg, err := Render(renderFixture(), FlamegraphConfig{Ink: true})
	require.NoError(t, err)
	assert.Contains(t, string(svg), "total ink: 600000000")
}

func TestRender_InkWithoutAccountingFails(t *testing.T) {
	p := renderFixture()
	p.TotalInk = nil
	_, err := Render(p, FlamegraphConfig{Ink: true})
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestRender_ZeroCostFails(t *testing.T) {
	p := &profile.Profile{
		SchemaVersion: profile.SchemaVersion,
		Root:          &profile.Node{Label: profile.RootLabel, CallCount: 1},
	}
	_, err := Render(p, FlamegraphConfig{})
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestRender_NilProfileFails(t *testing.T) {
	_, err := Render(nil, FlamegraphConfig{})
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestRender_CustomTitleAndWidth(t *testing.T) {
	svg, err := Render(renderFixture(), FlamegraphConfig{Title: "cupcake hot paths", Width: 800})
	require.NoError(t, err)
	out := string(svg)
	assert.Contains(t, out, "cupcake hot paths")
	assert.Contains(t, out, `width="800"`)
}

func TestRender_EscapesLabels(t *testing.T) {
	p := renderFixture()
	p.Root.Children[0].Label = `call<"evil" & boring>`
	svg, err := Render(p, FlamegraphConfig{})
	require.NoError(t, err)
	out := string(svg)
	assert.NotContains(t, out, `call<"evil"`)
	assert.Contains(t, out, "&lt;&quot;evil&quot;")
}

func TestInjectDarkMode(t *testing.T) {
	svg := `<svg xmlns="http://www.w3.org/2000/svg"><rect/></svg>`

	injected := InjectDarkMode(svg)
	assert.Contains(t, injected, "prefers-color-scheme")
	assert.True(t, strings.HasPrefix(injected, `<svg xmlns="http://www.w3.org/2000/svg">`))

	// Idempotent: a second pass must not stack style blocks.
	again := InjectDarkMode(injected)
	assert.Equal(t, injected, again)
	assert.Equal(t, 1, strings.Count(again, "<style"))
}

func TestInjectDarkMode_NonSVGUnchanged(t *testing.T) {
	assert.Equal(t, "", InjectDarkMode(""))
	assert.Equal(t, "plain text", InjectDarkMode("plain text"))
	assert.Equal(t, "<html><body></body></html>", InjectDarkMode("<html><body></body></html>"))
}

func TestRenderDiff_ColorsMovement(t *testing.T) {
	baseline := renderFixture()
	target := renderFixture()
	// Shift cost from the leaf into its parent's self cost: the leaf
	// halves while the outer frames keep their cumulative totals.
	target.Root.Children[0].Children[0].SelfGas = 20000
	target.Root.Children[0].Children[0].CumulativeGas = 20000
	target.Root.Children[0].SelfGas = 40000

	svg, err := RenderDiff(baseline, target, FlamegraphConfig{})
	require.NoError(t, err)
	out := string(svg)
	assert.Contains(t, out, "-50.0% vs baseline")
	assert.Contains(t, out, "unchanged")
	assert.Contains(t, out, "stylus-trace diff 0xbeef vs 0xbeef")
}

func TestRenderDiff_NewPathIsMarked(t *testing.T) {
	baseline := renderFixture()
	target := renderFixture()
	target.Root.Children = append(target.Root.Children, &profile.Node{
		Label: "fresh_path", SelfGas: 30000, CumulativeGas: 30000, CallCount: 1,
	})
	target.Root.CumulativeGas += 30000
	target.TotalGas += 30000

	svg, err := RenderDiff(baseline, target, FlamegraphConfig{})
	require.NoError(t, err)
	assert.Contains(t, string(svg), "new in target")
}

func TestRenderDiff_InkRequiresBothSides(t *testing.T) {
	baseline := renderFixture()
	target := renderFixture()
	baseline.TotalInk = nil

	_, err := RenderDiff(baseline, target, FlamegraphConfig{Ink: true})
	assert.ErrorIs(t, err, errors.ErrValidation)
}
