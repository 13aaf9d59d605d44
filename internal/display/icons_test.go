package display

import "testing"

func TestIconUnicodeAndASCII(t *testing.T) {
	icons := NewIconSet()

	icons.SetUnicode(true)
	if got := icons.Render("success"); got != "✓" {
		t.Errorf("unicode success icon = %q, want ✓", got)
	}

	icons.SetUnicode(false)
	if got := icons.Render("success"); got != "[OK]" {
		t.Errorf("ascii success icon = %q, want [OK]", got)
	}
}

func TestIconUnknownName(t *testing.T) {
	icons := NewIconSet()
	icons.SetUnicode(true)

	if got := icons.Render("no-such-icon"); got != "?" {
		t.Errorf("unknown icon = %q, want ?", got)
	}
}

func TestIconColors(t *testing.T) {
	icons := NewIconSet()

	tests := []struct {
		name string
		want Color
	}{
		{"success", ColorGreen},
		{"error", ColorRed},
		{"warning", ColorYellow},
		{"failed", ColorRed},
		{"done", ColorGreen},
	}

	for _, tt := range tests {
		if got := icons.Get(tt.name).Color; got != tt.want {
			t.Errorf("icon %q color = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestIconRenderColoredWithDisabledPalette(t *testing.T) {
	icons := NewIconSet()
	icons.SetUnicode(false)

	got := icons.RenderColored("error", NewPalette(true))
	if got != "[ERR]" {
		t.Errorf("disabled palette should render the bare icon, got %q", got)
	}
}
