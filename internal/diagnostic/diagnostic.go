// Package diagnostic defines the severity-tagged messages a
// compilation pass emits and an index that groups them by severity
// for verification.
package diagnostic

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Kind is the severity of a diagnostic.
type Kind string

// Diagnostic kinds.
const (
	Error            Kind = "error"
	Warning          Kind = "warning"
	MandatoryWarning Kind = "mandatory-warning"
	Note             Kind = "note"
)

// Kinds lists every kind in descending severity.
var Kinds = []Kind{Error, MandatoryWarning, Warning, Note}

// ParseKind converts the text form of a kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Error, Warning, MandatoryWarning, Note:
		return k, nil
	}
	return "", fmt.Errorf("unknown diagnostic kind %q", s)
}

// Diagnostic is one message captured during a pass.
type Diagnostic struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`

	// Source is the module-relative file the diagnostic refers to.
	// Empty when the diagnostic has no position.
	Source string `json:"source,omitempty"`

	// Line and Column are 1-based; zero means absent.
	Line   int `json:"line,omitempty"`
	Column int `json:"column,omitempty"`

	// Lang is the language the message is written in.
	Lang language.Tag `json:"-"`
}

func (d Diagnostic) String() string {
	var b strings.Builder
	if d.Source != "" {
		b.WriteString(d.Source)
		if d.Line > 0 {
			fmt.Fprintf(&b, ":%d", d.Line)
			if d.Column > 0 {
				fmt.Fprintf(&b, ":%d", d.Column)
			}
		}
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "%s: %s", d.Kind, d.Message)
	return b.String()
}

// Language returns the message language, English when unset.
func (d Diagnostic) Language() language.Tag {
	if d.Lang == language.Und {
		return language.English
	}
	return d.Lang
}

// Sink receives diagnostics while a pass runs.
type Sink interface {
	Report(d Diagnostic)
}

// Collector is a Sink that keeps diagnostics in emission order.
type Collector struct {
	items []Diagnostic
}

// Report appends d.
func (c *Collector) Report(d Diagnostic) {
	c.items = append(c.items, d)
}

// Diagnostics returns the collected diagnostics.
func (c *Collector) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	return out
}

// HasErrors reports whether an error diagnostic was collected.
func (c *Collector) HasErrors() bool {
	for _, d := range c.items {
		if d.Kind == Error {
			return true
		}
	}
	return false
}

// Format renders diagnostics one per line, sorted by source, line,
// column and severity, for stable failure messages.
func Format(diags []Diagnostic) string {
	sorted := make([]Diagnostic, len(diags))
	copy(sorted, diags)
	sort.SliceStable(sorted, func(i, j int) bool {
		di, dj := sorted[i], sorted[j]
		if di.Source != dj.Source {
			return di.Source < dj.Source
		}
		if di.Line != dj.Line {
			return di.Line < dj.Line
		}
		if di.Column != dj.Column {
			return di.Column < dj.Column
		}
		return rank(di.Kind) < rank(dj.Kind)
	})
	lines := make([]string, len(sorted))
	for i, d := range sorted {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}

func rank(k Kind) int {
	for i, kk := range Kinds {
		if kk == k {
			return i
		}
	}
	return len(Kinds)
}
