package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// Alignment controls how a column's cells are padded.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
	AlignCenter
)

// Table renders rows as an aligned, bordered table capped to the
// terminal width.
type Table struct {
	headers  []string
	rows     [][]string
	aligns   map[int]Alignment
	palette  *Palette
	theme    ColorTheme
	maxWidth int
	padding  int
}

// NewTable creates a table with the given column headers.
func NewTable(palette *Palette, theme ColorTheme, headers ...string) *Table {
	maxWidth := 120
	if cols, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && cols > 0 {
		maxWidth = cols
	}
	return &Table{
		headers:  headers,
		aligns:   make(map[int]Alignment),
		palette:  palette,
		theme:    theme,
		maxWidth: maxWidth,
		padding:  1,
	}
}

// Append adds a row. Missing cells render empty, extra cells are kept
// and widen the table.
func (t *Table) Append(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Align sets the alignment of a column.
func (t *Table) Align(column int, alignment Alignment) {
	t.aligns[column] = alignment
}

// SetMaxWidth overrides the detected terminal width.
func (t *Table) SetMaxWidth(width int) {
	t.maxWidth = width
}

// Render returns the formatted table.
func (t *Table) Render() string {
	columns := t.columnCount()
	if columns == 0 {
		return ""
	}

	widths := t.columnWidths(columns)
	border := t.borderLine(widths)

	var b strings.Builder
	b.WriteString(border)
	b.WriteByte('\n')
	if len(t.headers) > 0 {
		b.WriteString(t.renderRow(t.headers, widths, true))
		b.WriteByte('\n')
		b.WriteString(border)
		b.WriteByte('\n')
	}
	for _, row := range t.rows {
		b.WriteString(t.renderRow(row, widths, false))
		b.WriteByte('\n')
	}
	b.WriteString(border)
	b.WriteByte('\n')
	return b.String()
}

// RenderTo writes the formatted table to w.
func (t *Table) RenderTo(w io.Writer) {
	fmt.Fprint(w, t.Render())
}

func (t *Table) columnCount() int {
	columns := len(t.headers)
	for _, row := range t.rows {
		if len(row) > columns {
			columns = len(row)
		}
	}
	return columns
}

func (t *Table) columnWidths(columns int) []int {
	widths := make([]int, columns)
	for i, h := range t.headers {
		widths[i] = displayWidth(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if w := displayWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	return t.fitToMaxWidth(widths)
}

// fitToMaxWidth shrinks the widest columns until the table fits the
// terminal. Columns never shrink below a readable minimum.
func (t *Table) fitToMaxWidth(widths []int) []int {
	const minColumnWidth = 8

	for t.totalWidth(widths) > t.maxWidth {
		widest, at := 0, -1
		for i, w := range widths {
			if w > widest && w > minColumnWidth {
				widest, at = w, i
			}
		}
		if at < 0 {
			break
		}
		widths[at]--
	}
	return widths
}

func (t *Table) totalWidth(widths []int) int {
	// Each column adds padding on both sides plus its separator; one
	// extra separator closes the row.
	total := 1
	for _, w := range widths {
		total += w + 2*t.padding + 1
	}
	return total
}

func (t *Table) borderLine(widths []int) string {
	var b strings.Builder
	b.WriteByte('+')
	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w+2*t.padding))
		b.WriteByte('+')
	}
	return b.String()
}

func (t *Table) renderRow(cells []string, widths []int, isHeader bool) string {
	pad := strings.Repeat(" ", t.padding)

	var b strings.Builder
	b.WriteByte('|')
	for i, width := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		cell = truncate(cell, width)

		aligned := t.alignCell(cell, width, t.aligns[i])
		if isHeader {
			aligned = t.palette.Paint(t.theme.Highlight, aligned)
		}
		b.WriteString(pad)
		b.WriteString(aligned)
		b.WriteString(pad)
		b.WriteByte('|')
	}
	return b.String()
}

func (t *Table) alignCell(cell string, width int, alignment Alignment) string {
	gap := width - displayWidth(cell)
	if gap <= 0 {
		return cell
	}
	switch alignment {
	case AlignRight:
		return strings.Repeat(" ", gap) + cell
	case AlignCenter:
		left := gap / 2
		return strings.Repeat(" ", left) + cell + strings.Repeat(" ", gap-left)
	default:
		return cell + strings.Repeat(" ", gap)
	}
}

// displayWidth counts runes, not bytes, so multibyte cells align.
func displayWidth(s string) int {
	return utf8.RuneCountInString(s)
}

// truncate shortens s to fit width, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	if displayWidth(s) <= width {
		return s
	}
	if width <= 3 {
		runes := []rune(s)
		return string(runes[:width])
	}
	runes := []rune(s)
	return string(runes[:width-3]) + "..."
}
