package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// TextOptions controls optional parts of the text report.
type TextOptions struct {
	// Verbose lists the diagnostics and artifacts of every scenario,
	// passed ones included.
	Verbose bool
}

// WriteText writes run results as human-readable styled text to the
// writer. Output uses lipgloss for color and formatting when the
// output is a TTY; degrades gracefully for pipes and CI.
func WriteText(w io.Writer, results []RunResult) error {
	return WriteTextOptions(w, results, TextOptions{})
}

// WriteTextOptions is WriteText with options.
func WriteTextOptions(w io.Writer, results []RunResult, opts TextOptions) error {
	s := DefaultStyles()

	if len(results) > 0 {
		fmt.Fprintln(w, resultTable(results, s))
	}

	for _, r := range results {
		if r.Passed && !opts.Verbose {
			continue
		}
		fmt.Fprintln(w)
		writeDetail(w, r, s)
	}

	sum := Summarize(results)
	line := fmt.Sprintf("%d scenario(s) run, %d passed, %d failed", sum.Total, sum.Passed, sum.Failed)
	style := s.Pass
	if sum.Failed > 0 {
		style = s.Fail
	}
	fmt.Fprintf(w, "\n%s\n", style.Render(line))
	return nil
}

func resultTable(results []RunResult, s Styles) *table.Table {
	// Budget: 80 cols. SCENARIO=40, STATUS=6, CLASS=13, TIME=10.
	const maxName = 40
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		name := r.Scenario
		if len(name) > maxName {
			name = name[:maxName-3] + "..."
		}
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		rows = append(rows, []string{
			name,
			status,
			string(r.Class),
			fmt.Sprintf("%.0fms", r.DurationMS),
		})
	}

	return table.New().
		Width(76).
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.TableHeader
			}
			if row < 0 || row >= len(results) {
				return s.TableCell
			}
			switch col {
			case 1:
				if results[row].Passed {
					return s.Pass
				}
				return s.Fail
			case 2:
				return s.ClassStyle(results[row].Class)
			}
			return s.TableCell
		}).
		Headers("SCENARIO", "STATUS", "CLASS", "TIME").
		Rows(rows...)
}

func writeDetail(w io.Writer, r RunResult, s Styles) {
	fmt.Fprintln(w, s.Header.Render(fmt.Sprintf("=== %s ===", r.Scenario)))
	if r.Path != "" {
		fmt.Fprintln(w, s.SubHeader.Render("    "+r.Path))
	}
	if r.Description != "" {
		fmt.Fprintln(w, s.SubHeader.Render("    "+r.Description))
	}
	if r.Failure != "" {
		fmt.Fprintln(w, s.ClassStyle(r.Class).Render(fmt.Sprintf("    %s failure:", r.Class)))
		fmt.Fprintln(w, indent(r.Failure, "      "))
	}
	if len(r.Diagnostics) > 0 {
		fmt.Fprintln(w, "    Diagnostics:")
		for _, d := range r.Diagnostics {
			fmt.Fprintf(w, "      %s\n", s.KindStyle(d.Kind).Render(d.String()))
		}
	}
	if len(r.Artifacts) > 0 {
		fmt.Fprintln(w, "    Artifacts:")
		for _, id := range r.Artifacts {
			fmt.Fprintf(w, "      %s\n", s.Muted.Render(id.String()))
		}
	}
}

func indent(text, prefix string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
