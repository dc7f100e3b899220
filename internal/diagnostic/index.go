package diagnostic

import "strings"

// Index groups diagnostics by kind. Each group keeps emission order.
type Index struct {
	byKind map[Kind][]Diagnostic
	all    []Diagnostic
}

// NewIndex builds an index over diags.
func NewIndex(diags []Diagnostic) *Index {
	idx := &Index{byKind: make(map[Kind][]Diagnostic, len(Kinds)), all: diags}
	for _, d := range diags {
		idx.byKind[d.Kind] = append(idx.byKind[d.Kind], d)
	}
	return idx
}

// Of returns the diagnostics of kind k.
func (idx *Index) Of(k Kind) []Diagnostic {
	return idx.byKind[k]
}

// Messages returns the message texts of kind k.
func (idx *Index) Messages(k Kind) []string {
	ds := idx.byKind[k]
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Message
	}
	return out
}

// Contains reports whether a diagnostic of kind k has exactly msg as
// its text.
func (idx *Index) Contains(k Kind, msg string) bool {
	for _, d := range idx.byKind[k] {
		if d.Message == msg {
			return true
		}
	}
	return false
}

// Count returns the number of diagnostics of kind k.
func (idx *Index) Count(k Kind) int {
	return len(idx.byKind[k])
}

// All returns every diagnostic in emission order.
func (idx *Index) All() []Diagnostic {
	return idx.all
}

// ErrorText renders all error diagnostics for failure messages.
func (idx *Index) ErrorText() string {
	errs := idx.byKind[Error]
	if len(errs) == 0 {
		return "(no error diagnostics)"
	}
	lines := make([]string, len(errs))
	for i, d := range errs {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}
