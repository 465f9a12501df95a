package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether stdout should get ANSI colors.
func ShouldUseColor() bool {
	return colorFor(os.Stdout)
}

// ShouldUseColorStderr is ShouldUseColor for stderr, where errors go.
func ShouldUseColorStderr() bool {
	return colorFor(os.Stderr)
}

// colorFor applies NO_COLOR (https://no-color.org), then CLICOLOR_FORCE=1,
// then CLICOLOR=0, and finally falls back to whether f is a terminal.
func colorFor(f *os.File) bool {
	switch {
	case os.Getenv("NO_COLOR") != "":
		return false
	case strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1":
		return true
	case strings.TrimSpace(os.Getenv("CLICOLOR")) == "0":
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
