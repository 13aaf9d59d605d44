// Package confirmation guards destructive operations behind an explicit
// prompt: restoring over a live site, rewriting table contents, deleting
// backups. Non-interactive sessions are refused unless --force is set.
package confirmation

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/mattn/go-isatty"

	"sitevault/internal/display"
	"sitevault/internal/errors"
)

// Request describes a destructive operation awaiting approval.
type Request struct {
	// Action is a short verb phrase, e.g. "Restore backup".
	Action string
	// Target names what the operation touches, e.g. a site root or a
	// database name.
	Target string
	// Details are bullet lines shown under the summary.
	Details []string
	// Warnings call out consequences such as overwritten tables.
	Warnings []string
}

// Prompter asks for explicit approval before a destructive operation
// runs.
type Prompter struct {
	display     *display.Service
	in          *bufio.Reader
	force       bool
	interactive bool
}

// New creates a prompter reading answers from stdin. force skips the
// prompt entirely; it is also the only way to approve an operation when
// stdin is not a terminal.
func New(disp *display.Service, force bool) *Prompter {
	return &Prompter{
		display:     disp,
		in:          bufio.NewReader(os.Stdin),
		force:       force,
		interactive: isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()),
	}
}

// Confirm renders the operation summary and waits for a yes/no answer.
// It returns false with a nil error when the user declines or
// interrupts, and an error when no answer can be collected at all.
func (p *Prompter) Confirm(req Request) (bool, error) {
	p.summarize(req)

	w := p.display.Writer()
	pal := p.display.Palette()
	theme := p.display.Theme()

	if p.force {
		fmt.Fprintf(w, "%s %s\n", p.display.Icon("done"),
			pal.Paint(theme.Success, "Approved automatically (--force)"))
		return true, nil
	}

	if !p.interactive {
		return false, errors.NewValidationError(
			"standard input is not a terminal; re-run with --force to skip confirmation", nil)
	}

	interrupted := make(chan os.Signal, 1)
	signal.Notify(interrupted, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupted)

	answers := make(chan bool, 1)
	readErrs := make(chan error, 1)

	go func() {
		for {
			fmt.Fprint(w, pal.Paint(theme.Primary, "Proceed? [y/N]: "))

			line, err := p.in.ReadString('\n')
			if err != nil {
				readErrs <- err
				return
			}

			switch strings.ToLower(strings.TrimSpace(line)) {
			case "y", "yes":
				answers <- true
				return
			case "n", "no", "":
				answers <- false
				return
			default:
				fmt.Fprintln(w, "Please answer 'y' or 'n'.")
			}
		}
	}()

	select {
	case <-interrupted:
		fmt.Fprintf(w, "\n%s %s\n", p.display.Icon("warning"),
			pal.Paint(theme.Warning, "Cancelled"))
		return false, nil
	case err := <-readErrs:
		return false, errors.NewIOError("failed to read confirmation answer", err)
	case approved := <-answers:
		return approved, nil
	}
}

// summarize writes the operation summary. It bypasses the display
// service's quiet and format gating: the user must always see what they
// are approving.
func (p *Prompter) summarize(req Request) {
	w := p.display.Writer()
	pal := p.display.Palette()
	theme := p.display.Theme()

	fmt.Fprintln(w)
	fmt.Fprintln(w, pal.Paint(theme.Highlight, req.Action))
	fmt.Fprintln(w, strings.Repeat("-", utf8.RuneCountInString(req.Action)))

	if req.Target != "" {
		fmt.Fprintf(w, "Target: %s\n", req.Target)
	}
	for _, line := range req.Details {
		fmt.Fprintf(w, "  %s %s\n", p.display.Icon("bullet"), line)
	}

	if len(req.Warnings) > 0 {
		fmt.Fprintln(w)
		for _, warning := range req.Warnings {
			fmt.Fprintf(w, "%s %s\n", p.display.Icon("warning"), pal.Paint(theme.Warning, warning))
		}
	}
	fmt.Fprintln(w)
}
