package display

import (
	"os"
	"unicode/utf8"
)

// Icon is a visual marker with a Unicode glyph and an ASCII fallback.
type Icon struct {
	Unicode string
	ASCII   string
	Color   Color
}

// IconSet renders named icons, falling back to ASCII when the terminal
// cannot display Unicode.
type IconSet struct {
	unicode bool
	icons   map[string]Icon
}

// NewIconSet creates an icon set with Unicode detection.
func NewIconSet() *IconSet {
	s := &IconSet{unicode: unicodeSupported()}
	s.icons = map[string]Icon{
		// Status messages
		"success": {Unicode: "✓", ASCII: "[OK]", Color: ColorGreen},
		"error":   {Unicode: "✗", ASCII: "[ERR]", Color: ColorRed},
		"warning": {Unicode: "⚠", ASCII: "[WARN]", Color: ColorYellow},
		"info":    {Unicode: "ℹ", ASCII: "[INFO]", Color: ColorBlue},

		// Job states
		"pending": {Unicode: "○", ASCII: "[..]", Color: ColorWhite},
		"running": {Unicode: "◐", ASCII: "[>>]", Color: ColorBlue},
		"done":    {Unicode: "●", ASCII: "[OK]", Color: ColorGreen},
		"failed":  {Unicode: "✗", ASCII: "[XX]", Color: ColorRed},

		// Domain objects
		"backup":   {Unicode: "▣", ASCII: "[B]", Color: ColorCyan},
		"database": {Unicode: "◇", ASCII: "[DB]", Color: ColorMagenta},
		"files":    {Unicode: "▤", ASCII: "[F]", Color: ColorCyan},
		"upload":   {Unicode: "↑", ASCII: "[UP]", Color: ColorBlue},
		"schedule": {Unicode: "◷", ASCII: "[AT]", Color: ColorYellow},

		// Punctuation
		"arrow":  {Unicode: "→", ASCII: "->", Color: ColorBlue},
		"bullet": {Unicode: "•", ASCII: "*", Color: ColorWhite},
	}
	return s
}

// unicodeSupported checks whether the terminal can display Unicode
// glyphs. FORCE_UNICODE and NO_UNICODE take precedence.
func unicodeSupported() bool {
	if os.Getenv("FORCE_UNICODE") != "" {
		return true
	}
	if os.Getenv("NO_UNICODE") != "" {
		return false
	}
	if os.Getenv("LANG") == "C" || os.Getenv("LC_ALL") == "C" {
		return false
	}
	switch os.Getenv("TERM") {
	case "dumb", "vt100":
		return false
	}
	return stdoutIsTerminal()
}

// SetUnicode overrides Unicode detection.
func (s *IconSet) SetUnicode(enabled bool) {
	s.unicode = enabled
}

// Get returns the icon registered under name.
func (s *IconSet) Get(name string) Icon {
	if icon, ok := s.icons[name]; ok {
		return icon
	}
	return Icon{Unicode: "?", ASCII: "?", Color: ColorWhite}
}

// Render returns the Unicode glyph or its ASCII fallback.
func (s *IconSet) Render(name string) string {
	icon := s.Get(name)
	if s.unicode && utf8.ValidString(icon.Unicode) {
		return icon.Unicode
	}
	return icon.ASCII
}

// RenderColored returns the icon with its color applied.
func (s *IconSet) RenderColored(name string, palette *Palette) string {
	return palette.Paint(s.Get(name).Color, s.Render(name))
}
