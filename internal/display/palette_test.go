package display

import (
	"strings"
	"testing"
)

// forceEnabled returns a palette that renders ANSI codes regardless of
// the test terminal.
func forceEnabled() *Palette {
	p := NewPalette(false)
	p.enabled = true
	for _, c := range p.codes {
		c.EnableColor()
	}
	return p
}

func TestPaletteDisabledLeavesTextAlone(t *testing.T) {
	p := NewPalette(true)

	if p.Enabled() {
		t.Error("noColor palette should be disabled")
	}
	if got := p.Paint(ColorRed, "plain"); got != "plain" {
		t.Errorf("disabled palette should not paint, got %q", got)
	}
}

func TestPaletteAppliesAnsiCodes(t *testing.T) {
	p := forceEnabled()

	got := p.Paint(ColorRed, "alert")
	if !strings.Contains(got, "\x1b[") {
		t.Errorf("enabled palette should emit ANSI codes, got %q", got)
	}
	if !strings.Contains(got, "alert") {
		t.Errorf("painted text should keep its content, got %q", got)
	}
}

func TestPaletteColorNonePassthrough(t *testing.T) {
	p := forceEnabled()

	if got := p.Paint(ColorNone, "text"); got != "text" {
		t.Errorf("ColorNone should never paint, got %q", got)
	}
	if got := p.Paint(Color(99), "text"); got != "text" {
		t.Errorf("unknown colors should never paint, got %q", got)
	}
}

func TestPaintf(t *testing.T) {
	p := NewPalette(true)

	if got := p.Paintf(ColorGreen, "done in %d ms", 42); got != "done in 42 ms" {
		t.Errorf("Paintf formatting wrong: %q", got)
	}
}

func TestThemeByName(t *testing.T) {
	if ThemeByName("light").Primary != ColorBlue {
		t.Error("light theme should use plain blue as primary")
	}
	if ThemeByName("dark").Primary != ColorBrightBlue {
		t.Error("dark theme should use bright blue as primary")
	}
	if ThemeByName("plain").Primary != ColorNone {
		t.Error("plain theme should carry no colors")
	}
	if ThemeByName("").Primary != DarkColorTheme().Primary {
		t.Error("empty theme name should fall back to dark")
	}
	if ThemeByName("high-contrast").Highlight != ColorBrightWhite {
		t.Error("high-contrast theme should highlight in bright white")
	}
}
