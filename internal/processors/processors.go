// Package processors holds the built-in code-generation processors.
// They serve as ready-made subjects for scenarios and the CLI and as
// examples of processors written against the processor package.
package processors

import (
	"errors"
	"fmt"
	"sort"

	"github.com/unbound-force/gencheck/internal/processor"
)

// ErrUnknown is returned by Lookup for unregistered names.
var ErrUnknown = errors.New("unknown processor")

var builtins = map[string]struct {
	doc string
	new func() processor.Processor
}{
	"stringer": {"generates String methods for //gen:stringer integer types", func() processor.Processor { return &Stringer{} }},
	"register": {"writes registry.xml resources listing //gen:register types", func() processor.Processor { return &Register{} }},
	"crap":     {"warns about functions with a high CRAP score", func() processor.Processor { return &CRAP{} }},
	"purity":   {"reports mutations inside //gen:pure functions", func() processor.Processor { return &Purity{} }},
	"vet":      {"runs go/analysis passes and reports their findings", func() processor.Processor { return &Vet{} }},
}

// Lookup returns a new instance of the named processor.
func Lookup(name string) (processor.Processor, error) {
	b, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknown, name)
	}
	return b.new(), nil
}

// Names returns the built-in processor names, sorted.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Describe returns the one-line description of name.
func Describe(name string) string {
	return builtins[name].doc
}
