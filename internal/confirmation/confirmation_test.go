package confirmation

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"sitevault/internal/display"
)

func newTestPrompter(input string, force, interactive bool) (*Prompter, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	disp := display.NewService(display.Options{Writer: buf, NoColor: true})
	p := &Prompter{
		display:     disp,
		in:          bufio.NewReader(strings.NewReader(input)),
		force:       force,
		interactive: interactive,
	}
	return p, buf
}

func TestConfirmAnswers(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		approved bool
	}{
		{"yes", "y\n", true},
		{"yes word", "yes\n", true},
		{"uppercase yes", "Y\n", true},
		{"no", "n\n", false},
		{"no word", "no\n", false},
		{"empty defaults to no", "\n", false},
		{"invalid then yes", "maybe\ny\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPrompter(tt.input, false, true)

			approved, err := p.Confirm(Request{Action: "Restore backup"})
			if err != nil {
				t.Fatalf("Confirm failed: %v", err)
			}
			if approved != tt.approved {
				t.Errorf("Confirm(%q) = %v, want %v", tt.input, approved, tt.approved)
			}
		})
	}
}

func TestConfirmShowsOperationSummary(t *testing.T) {
	p, buf := newTestPrompter("y\n", false, true)

	req := Request{
		Action:  "Restore backup",
		Target:  "/var/www/demo",
		Details: []string{"container: nightly-a.zip", "database + files"},
		Warnings: []string{
			"existing tables will be dropped and recreated",
		},
	}
	if _, err := p.Confirm(req); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Restore backup",
		"Target: /var/www/demo",
		"container: nightly-a.zip",
		"database + files",
		"existing tables will be dropped and recreated",
		"Proceed? [y/N]:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("confirmation output missing %q:\n%s", want, out)
		}
	}
}

func TestConfirmRepromptsOnInvalidInput(t *testing.T) {
	p, buf := newTestPrompter("definitely\nn\n", false, true)

	approved, err := p.Confirm(Request{Action: "Delete backup"})
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if approved {
		t.Error("declined prompt should not approve")
	}
	if !strings.Contains(buf.String(), "Please answer") {
		t.Errorf("invalid input should be called out:\n%s", buf.String())
	}
}

func TestForceSkipsPrompt(t *testing.T) {
	p, buf := newTestPrompter("", true, true)

	approved, err := p.Confirm(Request{Action: "Search and replace"})
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if !approved {
		t.Error("force should approve without prompting")
	}

	out := buf.String()
	if !strings.Contains(out, "--force") {
		t.Errorf("force approval should be called out:\n%s", out)
	}
	if strings.Contains(out, "Proceed?") {
		t.Errorf("force should not prompt:\n%s", out)
	}
}

func TestNonInteractiveRequiresForce(t *testing.T) {
	p, _ := newTestPrompter("y\n", false, false)

	approved, err := p.Confirm(Request{Action: "Restore backup"})
	if err == nil {
		t.Fatal("non-interactive session without --force should error")
	}
	if approved {
		t.Error("non-interactive session should never approve implicitly")
	}
	if !strings.Contains(err.Error(), "--force") {
		t.Errorf("error should point at --force, got: %v", err)
	}
}

func TestNonInteractiveWithForceApproves(t *testing.T) {
	p, _ := newTestPrompter("", true, false)

	approved, err := p.Confirm(Request{Action: "Restore backup"})
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if !approved {
		t.Error("force should approve in non-interactive sessions")
	}
}

func TestConfirmSurfacesReadFailure(t *testing.T) {
	// An empty reader hits EOF before any answer arrives.
	p, _ := newTestPrompter("", false, true)

	approved, err := p.Confirm(Request{Action: "Restore backup"})
	if err == nil {
		t.Fatal("EOF on stdin should surface as an error")
	}
	if approved {
		t.Error("failed read should never approve")
	}
}

func TestNewDetectsTerminal(t *testing.T) {
	p := New(display.NewService(display.Options{Writer: &bytes.Buffer{}, NoColor: true}), false)
	if p == nil {
		t.Fatal("New returned nil")
	}
	if p.in == nil {
		t.Fatal("prompter should read from stdin by default")
	}
}
