// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

package visualizer

import "strings"

// darkModeCSS adapts flamegraph colors when the viewer's system is set to
// dark mode.
const darkModeCSS = `
/* Dark mode support for flamegraph SVGs */
@media (prefers-color-scheme: dark) {
  svg { background-color: #1e1e2e; }

  /* Function names and labels */
  text { fill: #cdd6f4 !important; }
  text.title { fill: #cdd6f4 !important; }

  rect.background { fill: #1e1e2e !important; }

  /* Desaturate the flame rectangles for contrast on a dark surface */
  rect[fill] { opacity: 0.92; }
}
`

// InjectDarkMode returns the SVG with an embedded <style> block of dark-mode
// media queries, inserted right after the opening <svg> tag. Already-injected
// or non-SVG input comes back unchanged.
func InjectDarkMode(svg string) string {
	if svg == "" {
		return svg
	}
	if strings.Contains(svg, "prefers-color-scheme") {
		return svg
	}

	idx := strings.Index(svg, ">")
	if idx < 0 {
		return svg
	}
	if !strings.Contains(strings.ToLower(svg[:idx]), "<svg") {
		return svg
	}

	styleBlock := "\n<style type=\"text/css\">" + darkModeCSS + "</style>\n"
	return svg[:idx+1] + styleBlock + svg[idx+1:]
}
