// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

// Package visualizer renders profiles as SVG flamegraphs. Layout is fully
// deterministic: width encodes cumulative cost, depth encodes nesting, and
// child order is the profile's first-seen order.
package visualizer

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/stylus-tools/stylus-trace/internal/errors"
	"github.com/stylus-tools/stylus-trace/internal/profile"
)

// FlamegraphConfig is the rendering bundle recognized by the capture and
// diff commands.
type FlamegraphConfig struct {
	// Ink renders widths from Ink units instead of gas.
	Ink bool
	// Title is the headline; empty means a default derived from the
	// transaction hash.
	Title string
	// Width is the SVG width in pixels; zero means DefaultWidth.
	Width int
}

const (
	DefaultWidth = 1200

	rowHeight   = 18
	topPadding  = 42
	sidePadding = 10
	minFrameW   = 0.5 // px; narrower frames are dropped, they are invisible anyway
	minLabelW   = 42.0
	fontSize    = 11
)

// Render lays out a profile's call tree as a flamegraph SVG.
func Render(p *profile.Profile, cfg FlamegraphConfig) ([]byte, error) {
	if p == nil || p.Root == nil {
		return nil, errors.WrapValidationError("profile has no call tree")
	}
	if cfg.Ink && p.TotalInk == nil {
		return nil, errors.WrapValidationError("profile was captured without Ink accounting; cannot render in ink units")
	}
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}

	total := nodeValue(p.Root, cfg.Ink)
	if total == 0 {
		return nil, errors.WrapValidationError("profile has zero total cost; nothing to render")
	}

	title := cfg.Title
	if title == "" {
		title = fmt.Sprintf("stylus-trace %s", p.TransactionHash)
	}

	depth := treeDepth(p.Root)
	height := topPadding + depth*rowHeight + rowHeight

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" font-family="Verdana, sans-serif">`+"\n",
		cfg.Width, height)
	fmt.Fprintf(&b, `<rect class="background" x="0" y="0" width="%d" height="%d" fill="#ffffff"/>`+"\n", cfg.Width, height)
	fmt.Fprintf(&b, `<text class="title" x="%d" y="24" font-size="15" font-weight="bold">%s</text>`+"\n",
		sidePadding, escapeXML(title))

	usable := float64(cfg.Width - 2*sidePadding)
	scale := usable / float64(total)
	renderNode(&b, p.Root, cfg.Ink, float64(sidePadding), 0, scale)

	unit := "gas"
	if cfg.Ink {
		unit = "ink"
	}
	fmt.Fprintf(&b, `<text x="%d" y="%d" font-size="%d" fill="#666666">total %s: %d, hostio calls: %d</text>`+"\n",
		sidePadding, height-4, fontSize, unit, total, p.TotalHostIOCalls)
	b.WriteString("</svg>\n")

	return []byte(InjectDarkMode(b.String())), nil
}

// renderNode emits one frame rectangle and recurses into children, packing
// them left to right in first-seen order. Gaps appear where the parent's
// self cost lives.
func renderNode(b *strings.Builder, n *profile.Node, ink bool, x float64, depth int, scale float64) {
	value := nodeValue(n, ink)
	w := float64(value) * scale
	if w < minFrameW {
		return
	}
	y := topPadding + depth*rowHeight

	fmt.Fprintf(b, `<rect x="%.2f" y="%d" width="%.2f" height="%d" fill="%s" rx="1"><title>%s</title></rect>`+"\n",
		x, y, w, rowHeight-1, frameColor(n.Label), escapeXML(frameTooltip(n, ink)))

	if w >= minLabelW {
		label := n.Label
		if n.CallCount > 1 {
			label = fmt.Sprintf("%s (x%d)", label, n.CallCount)
		}
		maxChars := int(w / 7)
		if len(label) > maxChars && maxChars > 2 {
			label = label[:maxChars-2] + ".."
		}
		fmt.Fprintf(b, `<text x="%.2f" y="%d" font-size="%d">%s</text>`+"\n",
			x+3, y+rowHeight-6, fontSize, escapeXML(label))
	}

	childX := x
	for _, child := range n.Children {
		renderNode(b, child, ink, childX, depth+1, scale)
		childX += float64(nodeValue(child, ink)) * scale
	}
}

func frameTooltip(n *profile.Node, ink bool) string {
	unit := "gas"
	if ink {
		unit = "ink"
	}
	return fmt.Sprintf("%s: %d %s cumulative, %d self, %d hostio call(s), called x%d",
		n.Label, nodeValue(n, ink), unit, selfValue(n, ink), n.HostIOCount, n.CallCount)
}

func nodeValue(n *profile.Node, ink bool) uint64 {
	if ink {
		if n.CumulativeInk == nil {
			return 0
		}
		return *n.CumulativeInk
	}
	return n.CumulativeGas
}

func selfValue(n *profile.Node, ink bool) uint64 {
	if ink {
		if n.SelfInk == nil {
			return 0
		}
		return *n.SelfInk
	}
	return n.SelfGas
}

func treeDepth(n *profile.Node) int {
	max := 0
	for _, child := range n.Children {
		if d := treeDepth(child); d > max {
			max = d
		}
	}
	return max + 1
}

// frameColor picks a deterministic warm-palette color from the label hash,
// so the same function keeps its color across captures.
func frameColor(label string) string {
	h := fnv.New32a()
	h.Write([]byte(label))
	v := h.Sum32()
	r := 200 + v%55
	g := 60 + (v>>8)%130
	bl := (v >> 16) % 55
	return fmt.Sprintf("rgb(%d,%d,%d)", r, g, bl)
}

func escapeXML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
	return r.Replace(s)
}
