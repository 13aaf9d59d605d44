package display

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"
)

// Format selects how command output is rendered.
type Format string

const (
	// FormatText renders human-readable terminal output
	FormatText Format = "text"
	// FormatJSON renders a single JSON document for scripting
	FormatJSON Format = "json"
	// FormatYAML renders a single YAML document for scripting
	FormatYAML Format = "yaml"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(FormatText):
		return FormatText, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format '%s', must be one of: text, json, yaml", s)
	}
}

// Options configures a display Service.
type Options struct {
	// Writer receives all output. Defaults to os.Stdout.
	Writer io.Writer
	// Format selects text, json or yaml rendering.
	Format Format
	// Theme names the color theme (dark, light, high-contrast, plain).
	Theme string
	// Quiet suppresses informational output.
	Quiet bool
	// Verbose enables additional detail lines.
	Verbose bool
	// NoColor disables color regardless of terminal support.
	NoColor bool
}

// Service is the terminal output hub for the CLI: status messages,
// aligned tables, progress bars and structured documents for scripting.
//
// In json/yaml mode all decorative output is suppressed so that the
// only bytes written are a single Emit document a script can parse.
type Service struct {
	writer      io.Writer
	format      Format
	quiet       bool
	verbose     bool
	interactive bool
	palette     *Palette
	icons       *IconSet
	theme       ColorTheme
}

// NewService creates a display service with terminal detection applied.
func NewService(opts Options) *Service {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	if opts.Format == "" {
		opts.Format = FormatText
	}

	return &Service{
		writer:      opts.Writer,
		format:      opts.Format,
		quiet:       opts.Quiet,
		verbose:     opts.Verbose && !opts.Quiet,
		interactive: stdoutIsTerminal(),
		palette:     NewPalette(opts.NoColor),
		icons:       NewIconSet(),
		theme:       ThemeByName(opts.Theme),
	}
}

func stdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// Structured reports whether output is in a machine-readable format.
func (s *Service) Structured() bool {
	return s.format != FormatText
}

// Quiet reports whether non-essential output is suppressed.
func (s *Service) Quiet() bool {
	return s.quiet
}

// Writer returns the underlying output writer.
func (s *Service) Writer() io.Writer {
	return s.writer
}

// Palette returns the color palette in use.
func (s *Service) Palette() *Palette {
	return s.palette
}

// Theme returns the active color theme.
func (s *Service) Theme() ColorTheme {
	return s.theme
}

// Icon renders a named icon with its theme color applied.
func (s *Service) Icon(name string) string {
	return s.icons.RenderColored(name, s.palette)
}

// Header prints a underlined section title.
func (s *Service) Header(title string) {
	if s.quiet || s.Structured() {
		return
	}
	fmt.Fprintln(s.writer)
	fmt.Fprintln(s.writer, s.palette.Paint(s.theme.Primary, title))
	fmt.Fprintln(s.writer, s.palette.Paint(s.theme.Primary, strings.Repeat("=", displayWidth(title))))
}

// Info prints an informational line. Suppressed when quiet.
func (s *Service) Info(message string) {
	if s.quiet || s.Structured() {
		return
	}
	s.statusLine("info", s.theme.Info, message)
}

// Success prints a success line.
func (s *Service) Success(message string) {
	if s.Structured() {
		return
	}
	s.statusLine("success", s.theme.Success, message)
}

// Warning prints a warning line.
func (s *Service) Warning(message string) {
	if s.Structured() {
		return
	}
	s.statusLine("warning", s.theme.Warning, message)
}

// Error prints an error line.
func (s *Service) Error(message string) {
	if s.Structured() {
		return
	}
	s.statusLine("error", s.theme.Error, message)
}

// Verbose prints a detail line shown only with --verbose.
func (s *Service) Verbose(message string) {
	if !s.verbose || s.Structured() {
		return
	}
	fmt.Fprintln(s.writer, s.palette.Paint(s.theme.Muted, message))
}

// Printf writes free-form text output. Suppressed in json/yaml mode.
func (s *Service) Printf(format string, args ...interface{}) {
	if s.Structured() {
		return
	}
	fmt.Fprintf(s.writer, format, args...)
}

func (s *Service) statusLine(icon string, clr Color, message string) {
	fmt.Fprintf(s.writer, "%s %s\n", s.icons.RenderColored(icon, s.palette), s.palette.Paint(clr, message))
}

// Emit writes a structured document in the configured format. Text mode
// falls back to YAML so Emit is always safe to call.
func (s *Service) Emit(v interface{}) error {
	switch s.format {
	case FormatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output to JSON: %w", err)
		}
		fmt.Fprintln(s.writer, string(data))
	default:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal output to YAML: %w", err)
		}
		fmt.Fprint(s.writer, string(data))
	}
	return nil
}

// NewTable creates a table renderer bound to this service's palette.
func (s *Service) NewTable(headers ...string) *Table {
	return NewTable(s.palette, s.theme, headers...)
}

// StartProgress creates a count-based progress bar for a long operation.
// The bar stays silent when output is quiet, structured or redirected.
func (s *Service) StartProgress(total int64, label string) *ProgressBar {
	bar := NewProgressBar(total, label, s.writer, s.palette, s.theme)
	if s.quiet || s.Structured() || !s.interactive {
		bar.silence()
	}
	return bar
}

// StartByteProgress creates a progress bar that reports sizes instead of
// plain counts, for dump, archive and upload phases.
func (s *Service) StartByteProgress(total int64, label string) *ProgressBar {
	bar := s.StartProgress(total, label)
	bar.SetShowBytes(true)
	return bar
}

// FormatBytes renders a byte count in human-readable form.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
