package display

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/muesli/termenv"
)

// Color identifies an entry in the palette.
type Color int

const (
	ColorNone Color = iota
	ColorRed
	ColorGreen
	ColorYellow
	ColorBlue
	ColorMagenta
	ColorCyan
	ColorWhite
	ColorBrightRed
	ColorBrightGreen
	ColorBrightYellow
	ColorBrightBlue
	ColorBrightMagenta
	ColorBrightCyan
	ColorBrightWhite
)

// ColorTheme assigns palette colors to message roles.
type ColorTheme struct {
	Primary   Color
	Success   Color
	Warning   Color
	Error     Color
	Info      Color
	Muted     Color
	Highlight Color
}

// DarkColorTheme returns a theme tuned for dark terminals.
func DarkColorTheme() ColorTheme {
	return ColorTheme{
		Primary:   ColorBrightBlue,
		Success:   ColorBrightGreen,
		Warning:   ColorBrightYellow,
		Error:     ColorBrightRed,
		Info:      ColorCyan,
		Muted:     ColorWhite,
		Highlight: ColorBrightBlue,
	}
}

// LightColorTheme returns a theme tuned for light terminals.
func LightColorTheme() ColorTheme {
	return ColorTheme{
		Primary:   ColorBlue,
		Success:   ColorGreen,
		Warning:   ColorYellow,
		Error:     ColorRed,
		Info:      ColorCyan,
		Muted:     ColorMagenta,
		Highlight: ColorBlue,
	}
}

// HighContrastColorTheme returns a high-contrast theme for accessibility.
func HighContrastColorTheme() ColorTheme {
	return ColorTheme{
		Primary:   ColorBrightBlue,
		Success:   ColorBrightGreen,
		Warning:   ColorBrightYellow,
		Error:     ColorBrightRed,
		Info:      ColorBrightCyan,
		Muted:     ColorWhite,
		Highlight: ColorBrightWhite,
	}
}

// PlainTheme returns a theme with no colors assigned.
func PlainTheme() ColorTheme {
	return ColorTheme{}
}

// ThemeByName returns a theme by its configuration name.
func ThemeByName(name string) ColorTheme {
	switch name {
	case "light":
		return LightColorTheme()
	case "high-contrast":
		return HighContrastColorTheme()
	case "plain", "none":
		return PlainTheme()
	default:
		return DarkColorTheme()
	}
}

// Palette applies colors to text when the terminal supports them.
type Palette struct {
	enabled bool
	codes   map[Color]*color.Color
}

// NewPalette creates a palette with terminal color detection. noColor
// forces colors off regardless of what the terminal supports.
func NewPalette(noColor bool) *Palette {
	p := &Palette{enabled: !noColor && colorSupported()}
	p.codes = map[Color]*color.Color{
		ColorRed:           color.New(color.FgRed),
		ColorGreen:         color.New(color.FgGreen),
		ColorYellow:        color.New(color.FgYellow),
		ColorBlue:          color.New(color.FgBlue),
		ColorMagenta:       color.New(color.FgMagenta),
		ColorCyan:          color.New(color.FgCyan),
		ColorWhite:         color.New(color.FgWhite),
		ColorBrightRed:     color.New(color.FgHiRed),
		ColorBrightGreen:   color.New(color.FgHiGreen),
		ColorBrightYellow:  color.New(color.FgHiYellow),
		ColorBrightBlue:    color.New(color.FgHiBlue),
		ColorBrightMagenta: color.New(color.FgHiMagenta),
		ColorBrightCyan:    color.New(color.FgHiCyan),
		ColorBrightWhite:   color.New(color.FgHiWhite),
	}

	// Pin each code so rendering does not depend on the package-global
	// color.NoColor autodetection.
	for _, c := range p.codes {
		if p.enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// colorSupported checks whether stdout can render colors. NO_COLOR and
// FORCE_COLOR take precedence over terminal detection.
func colorSupported() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	if !stdoutIsTerminal() {
		return false
	}
	return termenv.EnvColorProfile() != termenv.Ascii
}

// Enabled reports whether colors are being rendered.
func (p *Palette) Enabled() bool {
	return p.enabled
}

// Paint colors text when the palette is enabled.
func (p *Palette) Paint(clr Color, text string) string {
	if !p.enabled || clr == ColorNone {
		return text
	}
	if code, ok := p.codes[clr]; ok {
		return code.Sprint(text)
	}
	return text
}

// Paintf formats and colors text when the palette is enabled.
func (p *Palette) Paintf(clr Color, format string, args ...interface{}) string {
	return p.Paint(clr, fmt.Sprintf(format, args...))
}
