package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/unbound-force/gencheck/internal/report"
)

// keyMap defines keybindings for the interactive TUI.
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Quit     key.Binding
	Help     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Quit, k.Help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Quit, k.Help},
	}
}

var defaultKeyMap = keyMap{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("^/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("v/j", "down")),
	PageUp:   key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up")),
	PageDown: key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

var (
	styles = report.DefaultStyles()

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")).
			MarginBottom(1)
)

// runModel is the Bubble Tea model for browsing scenario results.
type runModel struct {
	results  []report.RunResult
	viewport viewport.Model
	help     help.Model
	keys     keyMap
	ready    bool
	content  string
}

func newRunModel(results []report.RunResult) runModel {
	return runModel{
		results: results,
		help:    help.New(),
		keys:    defaultKeyMap,
		content: renderRunContent(results),
	}
}

func renderRunContent(results []report.RunResult) string {
	var sb strings.Builder

	sum := report.Summarize(results)
	sb.WriteString(titleStyle.Render(
		fmt.Sprintf("gencheck: %d scenario(s), %d passed, %d failed",
			sum.Total, sum.Passed, sum.Failed)))
	sb.WriteString("\n\n")

	for _, r := range results {
		status := styles.Pass.Render("PASS")
		if !r.Passed {
			status = styles.Fail.Render("FAIL") + " " + styles.ClassStyle(r.Class).Render(string(r.Class))
		}
		sb.WriteString(styles.Header.Render(fmt.Sprintf("=== %s ===", r.Scenario)))
		sb.WriteString(" " + status + "\n")
		if r.Path != "" {
			sb.WriteString(styles.SubHeader.Render("    " + r.Path))
			sb.WriteString("\n")
		}
		if r.Description != "" {
			sb.WriteString(styles.SubHeader.Render("    " + r.Description))
			sb.WriteString("\n")
		}
		if r.Failure != "" {
			for _, line := range strings.Split(strings.TrimRight(r.Failure, "\n"), "\n") {
				sb.WriteString("    " + line + "\n")
			}
		}

		if len(r.Diagnostics) == 0 {
			sb.WriteString(styles.Muted.Render("    No diagnostics."))
			sb.WriteString("\n\n")
			continue
		}

		rows := make([][]string, 0, len(r.Diagnostics))
		for _, d := range r.Diagnostics {
			loc := d.Source
			if loc != "" && d.Line > 0 {
				loc += ":" + strconv.Itoa(d.Line)
			}
			msg := d.Message
			if len(msg) > 50 {
				msg = msg[:47] + "..."
			}
			rows = append(rows, []string{string(d.Kind), loc, msg})
		}

		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(styles.Border).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return styles.TableHeader
				}
				if col == 0 && row >= 0 && row < len(r.Diagnostics) {
					return styles.KindStyle(r.Diagnostics[row].Kind)
				}
				return lipgloss.NewStyle()
			}).
			Headers("KIND", "LOCATION", "MESSAGE").
			Rows(rows...)

		sb.WriteString(t.String())
		sb.WriteString("\n\n")
	}

	return sb.String()
}

func (m runModel) Init() tea.Cmd {
	return nil
}

func (m runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		footerHeight := 2

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-footerHeight)
			m.viewport.SetContent(m.content)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - footerHeight
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m runModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	footer := styles.Muted.Render(
		fmt.Sprintf(" %3.f%% ", m.viewport.ScrollPercent()*100)) +
		" " + m.help.View(m.keys)

	return m.viewport.View() + "\n" + footer
}

// runInteractive launches the Bubble Tea TUI for browsing scenario
// results.
func runInteractive(results []report.RunResult) error {
	model := newRunModel(results)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
