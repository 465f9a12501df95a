// Package ui styles CLI output.
package ui

import "fmt"

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent    = 74  // blue
	colorMuted     = 245 // medium gray
	colorChannel   = 114 // green
	colorStructure = 179 // amber
	colorSingle    = 176 // violet
	colorError     = 203 // red
)

var (
	noColor       = !ShouldUseColor()
	noColorStderr = !ShouldUseColorStderr()
)

func render(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string {
	return render(colorAccent, s)
}

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string {
	return render(colorMuted, s)
}

// RenderError returns s in red for printing to stderr.
func RenderError(s string) string {
	if noColorStderr {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorError, s)
}

// RenderSectionType colors a section type name; unknown types are muted.
func RenderSectionType(t string) string {
	switch t {
	case "channel":
		return render(colorChannel, t)
	case "structure":
		return render(colorStructure, t)
	case "single":
		return render(colorSingle, t)
	}
	return RenderMuted(t)
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
	noColorStderr = true
}
