package ui

import (
	"strings"
	"testing"
)

func TestRenderNoColor(t *testing.T) {
	ForceNoColor()
	for _, s := range []string{RenderAccent("a"), RenderMuted("a"), RenderError("a"), RenderSectionType("a")} {
		if s != "a" {
			t.Errorf("got %q, want plain text", s)
		}
	}
}

func TestRenderSectionType(t *testing.T) {
	noColor = false
	defer func() { noColor = true }()

	channel := RenderSectionType("channel")
	single := RenderSectionType("single")
	if !strings.Contains(channel, "channel") || !strings.HasPrefix(channel, "\x1b[") {
		t.Errorf("channel = %q", channel)
	}
	if channel[:12] == single[:12] {
		t.Error("section types should use different colors")
	}
}

func TestShouldUseColor_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if ShouldUseColor() {
		t.Error("NO_COLOR should disable color")
	}
}

func TestShouldUseColor_Force(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("CLICOLOR_FORCE", "1")
	if !ShouldUseColor() {
		t.Error("CLICOLOR_FORCE should enable color")
	}
}
