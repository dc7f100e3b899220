package harness

import (
	"fmt"
	"strings"

	"github.com/unbound-force/gencheck/internal/artifact"
	"github.com/unbound-force/gencheck/internal/diagnostic"
	"github.com/unbound-force/gencheck/internal/instrument"
	"github.com/unbound-force/gencheck/internal/modules"
)

// Result is the outcome of one pass. The store stays readable until
// Close.
type Result struct {
	Success     bool
	Diagnostics []diagnostic.Diagnostic
	Store       *artifact.Store
	Modules     []modules.Module
	Processors  []*instrument.Wrapped

	resolution *modules.Resolution
}

// Index groups the diagnostics by kind.
func (r *Result) Index() *diagnostic.Index {
	return diagnostic.NewIndex(r.Diagnostics)
}

// Artifact looks up a produced artifact.
func (r *Result) Artifact(id artifact.ID) (artifact.Artifact, bool) {
	if r.Store == nil {
		return nil, false
	}
	return r.Store.Get(id)
}

// DebugDump lists every produced artifact and, when modules were
// resolved, where each module came from.
func (r *Result) DebugDump() string {
	var b strings.Builder
	b.WriteString("produced artifacts:\n")
	var ids []artifact.ID
	if r.Store != nil {
		ids = r.Store.List()
	}
	if len(ids) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, id := range ids {
		fmt.Fprintf(&b, "  %s\n", id)
	}

	if len(r.Modules) > 0 {
		b.WriteString("modules:\n")
		for _, m := range r.Modules {
			suffix := ""
			if m.AutoNamed {
				suffix = " (auto-named)"
			}
			fmt.Fprintf(&b, "  %s => %s%s\n", m.Name, m.Origin, suffix)
		}
	}
	return b.String()
}

// Close releases the artifact store and extracted modules.
func (r *Result) Close() error {
	var err error
	if r.Store != nil {
		err = r.Store.Close()
	}
	if cerr := r.resolution.Close(); err == nil {
		err = cerr
	}
	return err
}
