package main

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/unbound-force/gencheck/internal/diagnostic"
	"github.com/unbound-force/gencheck/internal/failure"
	"github.com/unbound-force/gencheck/internal/report"
)

// TestRenderRunContent_EmptyResults verifies that an empty slice
// produces a zero summary.
func TestRenderRunContent_EmptyResults(t *testing.T) {
	output := renderRunContent([]report.RunResult{})

	if !strings.Contains(output, "0 scenario(s), 0 passed, 0 failed") {
		t.Errorf("expected zero summary, got:\n%s", output)
	}
}

func TestRenderRunContent_WithDiagnostics(t *testing.T) {
	results := []report.RunResult{
		{
			Scenario:    "stringer",
			Path:        "testdata/scenarios/stringer.txtar",
			Description: "Stringer output compiles.",
			Passed:      true,
			Diagnostics: []diagnostic.Diagnostic{
				{Kind: diagnostic.Warning, Message: "Empty: no constants found", Source: "a/a.go", Line: 12},
			},
		},
	}

	output := renderRunContent(results)

	for _, want := range []string{
		"=== stringer ===",
		"PASS",
		"testdata/scenarios/stringer.txtar",
		"Stringer output compiles.",
		"warning",
		"a/a.go:12",
		"Empty: no constants found",
		"1 scenario(s), 1 passed, 0 failed",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}
}

func TestRenderRunContent_Failure(t *testing.T) {
	results := []report.RunResult{
		{
			Scenario: "register",
			Class:    failure.ClassAssertion,
			Failure:  "artifact missing\nproduced artifacts:\n  (none)",
		},
	}

	output := renderRunContent(results)

	for _, want := range []string{"FAIL", "assertion", "    artifact missing", "    produced artifacts:", "No diagnostics."} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}
}

// TestRenderRunContent_MessageTruncation verifies that messages longer
// than 50 characters are cut to 47 characters plus "...".
func TestRenderRunContent_MessageTruncation(t *testing.T) {
	long := "this is a very long message that exceeds fifty characters by a lot"
	results := []report.RunResult{
		{
			Scenario:    "long",
			Passed:      true,
			Diagnostics: []diagnostic.Diagnostic{{Kind: diagnostic.Note, Message: long}},
		},
	}

	output := renderRunContent(results)

	if strings.Contains(output, long) {
		t.Error("expected long message to be truncated")
	}
	if !strings.Contains(output, long[:47]+"...") {
		t.Errorf("expected truncated message %q, got:\n%s", long[:47]+"...", output)
	}
}

func TestRunModel_QuitAndResize(t *testing.T) {
	m := newRunModel(nil)
	if got := m.View(); got != "Initializing..." {
		t.Errorf("View before resize = %q", got)
	}

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = updated.(runModel)
	if !m.ready {
		t.Fatal("model not ready after WindowSizeMsg")
	}
	if m.viewport.Height != 22 {
		t.Errorf("viewport height = %d, want 22", m.viewport.Height)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}
