package report

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/unbound-force/gencheck/internal/diagnostic"
	"github.com/unbound-force/gencheck/internal/failure"
)

// Styles defines the visual theme for terminal report output.
// Lipgloss automatically degrades to no-color when output is not a TTY.
type Styles struct {
	// Header is used for section headers (e.g. "=== scenario ===").
	Header lipgloss.Style

	// SubHeader is used for secondary information lines.
	SubHeader lipgloss.Style

	// TableHeader styles the header row of tables.
	TableHeader lipgloss.Style

	// TableCell styles regular table cells.
	TableCell lipgloss.Style

	// Assertion, Config and Technical color-code failure classes.
	Assertion lipgloss.Style
	Config    lipgloss.Style
	Technical lipgloss.Style

	// Error, Warning and Note color-code diagnostic kinds.
	Error   lipgloss.Style
	Warning lipgloss.Style
	Note    lipgloss.Style

	// Pass styles PASS indicators.
	Pass lipgloss.Style

	// Fail styles FAIL indicators.
	Fail lipgloss.Style

	// Border is used for table borders.
	Border lipgloss.Style

	// Muted is used for de-emphasized text.
	Muted lipgloss.Style
}

// DefaultStyles returns the default color scheme for terminal reports.
func DefaultStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		SubHeader: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),

		TableHeader: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		TableCell:   lipgloss.NewStyle().PaddingRight(1),

		Assertion: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Config:    lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		Technical: lipgloss.NewStyle().Foreground(lipgloss.Color("220")),

		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		Note:    lipgloss.NewStyle().Foreground(lipgloss.Color("75")),

		Pass: lipgloss.NewStyle().Foreground(lipgloss.Color("40")).Bold(true),
		Fail: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),

		Border: lipgloss.NewStyle().Foreground(lipgloss.Color("63")),

		Muted: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// ClassStyle returns the style for a failure class.
func (s Styles) ClassStyle(c failure.Class) lipgloss.Style {
	switch c {
	case failure.ClassAssertion:
		return s.Assertion
	case failure.ClassConfig:
		return s.Config
	case failure.ClassTechnical:
		return s.Technical
	default:
		return s.Muted
	}
}

// KindStyle returns the style for a diagnostic kind.
func (s Styles) KindStyle(k diagnostic.Kind) lipgloss.Style {
	switch k {
	case diagnostic.Error:
		return s.Error
	case diagnostic.Warning, diagnostic.MandatoryWarning:
		return s.Warning
	case diagnostic.Note:
		return s.Note
	default:
		return s.Muted
	}
}
