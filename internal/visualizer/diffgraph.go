// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

package visualizer

import (
	"fmt"
	"strings"

	"github.com/stylus-tools/stylus-trace/internal/errors"
	"github.com/stylus-tools/stylus-trace/internal/profile"
)

// RenderDiff lays out the target profile's tree with frames colored by how
// their cumulative cost moved against the baseline: red for increases,
// green for decreases, gray for unchanged or baseline-only-unknown paths.
func RenderDiff(baseline, target *profile.Profile, cfg FlamegraphConfig) ([]byte, error) {
	if baseline == nil || baseline.Root == nil || target == nil || target.Root == nil {
		return nil, errors.WrapValidationError("both profiles need a call tree for a diff flamegraph")
	}
	if cfg.Ink && (baseline.TotalInk == nil || target.TotalInk == nil) {
		return nil, errors.WrapValidationError("both profiles need Ink accounting for an ink diff flamegraph")
	}
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}

	total := nodeValue(target.Root, cfg.Ink)
	if total == 0 {
		return nil, errors.WrapValidationError("target profile has zero total cost; nothing to render")
	}

	baseCosts := make(map[string]uint64)
	baseline.Root.Walk(func(path []string, node *profile.Node) {
		baseCosts[profile.PathKey(path)] = nodeValue(node, cfg.Ink)
	})

	title := cfg.Title
	if title == "" {
		title = fmt.Sprintf("stylus-trace diff %s vs %s", baseline.TransactionHash, target.TransactionHash)
	}

	depth := treeDepth(target.Root)
	height := topPadding + depth*rowHeight + rowHeight

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" font-family="Verdana, sans-serif">`+"\n",
		cfg.Width, height)
	fmt.Fprintf(&b, `<rect class="background" x="0" y="0" width="%d" height="%d" fill="#ffffff"/>`+"\n", cfg.Width, height)
	fmt.Fprintf(&b, `<text class="title" x="%d" y="24" font-size="15" font-weight="bold">%s</text>`+"\n",
		sidePadding, escapeXML(title))

	usable := float64(cfg.Width - 2*sidePadding)
	scale := usable / float64(total)
	renderDiffNode(&b, target.Root, nil, baseCosts, cfg.Ink, float64(sidePadding), 0, scale)
	b.WriteString("</svg>\n")

	return []byte(InjectDarkMode(b.String())), nil
}

func renderDiffNode(b *strings.Builder, n *profile.Node, prefix []string, baseCosts map[string]uint64, ink bool, x float64, depth int, scale float64) {
	path := append(append([]string{}, prefix...), n.Label)
	value := nodeValue(n, ink)
	w := float64(value) * scale
	if w < minFrameW {
		return
	}
	y := topPadding + depth*rowHeight

	fill, note := diffColor(baseCosts, profile.PathKey(path), value)
	fmt.Fprintf(b, `<rect x="%.2f" y="%d" width="%.2f" height="%d" fill="%s" rx="1"><title>%s</title></rect>`+"\n",
		x, y, w, rowHeight-1, fill, escapeXML(fmt.Sprintf("%s: %d (%s)", n.Label, value, note)))

	if w >= minLabelW {
		label := n.Label
		maxChars := int(w / 7)
		if len(label) > maxChars && maxChars > 2 {
			label = label[:maxChars-2] + ".."
		}
		fmt.Fprintf(b, `<text x="%.2f" y="%d" font-size="%d">%s</text>`+"\n",
			x+3, y+rowHeight-6, fontSize, escapeXML(label))
	}

	childX := x
	for _, child := range n.Children {
		renderDiffNode(b, child, path, baseCosts, ink, childX, depth+1, scale)
		childX += float64(nodeValue(child, ink)) * scale
	}
}

// diffColor shades a frame by cost movement. Intensity tracks the relative
// change, saturating at doubled (or halved) cost.
func diffColor(baseCosts map[string]uint64, key string, value uint64) (fill, note string) {
	base, ok := baseCosts[key]
	if !ok {
		return "rgb(220,40,40)", "new in target"
	}
	if base == value {
		return "rgb(190,190,190)", "unchanged"
	}

	var ratio float64
	if base == 0 {
		ratio = 1
	} else {
		ratio = (float64(value) - float64(base)) / float64(base)
	}
	if ratio > 1 {
		ratio = 1
	}
	if ratio < -1 {
		ratio = -1
	}

	if ratio > 0 {
		shade := 190 - int(ratio*150)
		return fmt.Sprintf("rgb(220,%d,%d)", shade, shade), fmt.Sprintf("+%.1f%% vs baseline", ratio*100)
	}
	shade := 190 - int(-ratio*150)
	return fmt.Sprintf("rgb(%d,200,%d)", shade, shade), fmt.Sprintf("%.1f%% vs baseline", ratio*100)
}
