package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

const defaultBarWidth = 40

// ProgressBar renders a single-line progress bar for long operations
// such as dumps, archive runs and uploads.
type ProgressBar struct {
	mu        sync.Mutex
	writer    io.Writer
	palette   *Palette
	theme     ColorTheme
	label     string
	total     int64
	current   int64
	width     int
	showBytes bool
	silent    bool
	finished  bool
}

// NewProgressBar creates a progress bar writing to w. The bar adapts its
// width to the terminal when stdout is one.
func NewProgressBar(total int64, label string, w io.Writer, palette *Palette, theme ColorTheme) *ProgressBar {
	width := defaultBarWidth
	if cols, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && cols > 0 && cols < 100 {
		// Leave room for the percentage, counts and label.
		width = cols / 3
		if width < 10 {
			width = 10
		}
	}
	return &ProgressBar{
		writer:  w,
		palette: palette,
		theme:   theme,
		label:   label,
		total:   total,
		width:   width,
	}
}

// silence turns the bar into a no-op renderer.
func (pb *ProgressBar) silence() {
	pb.mu.Lock()
	pb.silent = true
	pb.mu.Unlock()
}

// SetShowBytes switches the counters to human-readable sizes.
func (pb *ProgressBar) SetShowBytes(show bool) {
	pb.mu.Lock()
	pb.showBytes = show
	pb.mu.Unlock()
}

// SetWidth overrides the bar width.
func (pb *ProgressBar) SetWidth(width int) {
	pb.mu.Lock()
	pb.width = width
	pb.mu.Unlock()
}

// Set moves the bar to an absolute position and redraws it.
func (pb *ProgressBar) Set(current int64) {
	pb.mu.Lock()
	pb.current = current
	pb.mu.Unlock()
	pb.render()
}

// Add advances the bar by delta and redraws it.
func (pb *ProgressBar) Add(delta int64) {
	pb.mu.Lock()
	pb.current += delta
	pb.mu.Unlock()
	pb.render()
}

// SetLabel replaces the trailing label and redraws the bar.
func (pb *ProgressBar) SetLabel(label string) {
	pb.mu.Lock()
	pb.label = label
	pb.mu.Unlock()
	pb.render()
}

// Finish completes the bar and moves to the next line. An optional final
// message replaces the label.
func (pb *ProgressBar) Finish(finalMessage string) {
	pb.mu.Lock()
	if pb.finished {
		pb.mu.Unlock()
		return
	}
	pb.finished = true
	pb.current = pb.total
	if finalMessage != "" {
		pb.label = finalMessage
	}
	silent := pb.silent
	pb.mu.Unlock()

	if silent {
		return
	}
	pb.render()
	fmt.Fprintln(pb.writer)
}

func (pb *ProgressBar) render() {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if pb.silent || pb.total <= 0 {
		return
	}

	current := pb.current
	if current > pb.total {
		current = pb.total
	}
	percent := float64(current) / float64(pb.total) * 100

	filledWidth := int(float64(pb.width) * float64(current) / float64(pb.total))
	if filledWidth > pb.width {
		filledWidth = pb.width
	}
	filled := strings.Repeat("█", filledWidth)
	empty := strings.Repeat("░", pb.width-filledWidth)

	bar := fmt.Sprintf("[%s%s]",
		pb.palette.Paint(pb.theme.Success, filled),
		pb.palette.Paint(pb.theme.Muted, empty))

	var counts string
	if pb.showBytes {
		counts = fmt.Sprintf("(%s/%s)", FormatBytes(current), FormatBytes(pb.total))
	} else {
		counts = fmt.Sprintf("(%d/%d)", current, pb.total)
	}

	fmt.Fprintf(pb.writer, "\r\033[K%s %5.1f%% %s %s", bar, percent, counts, pb.label)
}
