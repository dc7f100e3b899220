package processors

import (
	"context"
	"encoding/xml"
	"sort"

	"github.com/unbound-force/gencheck/internal/processor"
)

// RegisterDirective marks a type for the package registry. Its
// argument, when given, overrides the registered name.
const RegisterDirective = "gen:register"

// RegistryFile is the resource written per package.
const RegistryFile = "registry.xml"

// Register collects marked types over all rounds and writes one
// registry.xml resource per package in the final round.
type Register struct {
	env     processor.Environment
	entries map[string][]registryEntry
}

type registry struct {
	XMLName xml.Name        `xml:"registry"`
	Package string          `xml:"package,attr"`
	Entries []registryEntry `xml:"type"`
}

type registryEntry struct {
	Name string `xml:"name,attr"`
	Type string `xml:"qualified,attr"`
	Kind string `xml:"kind,attr"`
}

// Init resets the collected registry entries.
func (p *Register) Init(env processor.Environment) error {
	p.env = env
	p.entries = make(map[string][]registryEntry)
	return nil
}

// SupportedDirectives returns the register directive.
func (p *Register) SupportedDirectives() []string { return []string{RegisterDirective} }

// Process collects marked types and writes the registries in the final round.
func (p *Register) Process(_ context.Context, r processor.Round) (bool, error) {
	if r.ProcessingOver() {
		return false, p.write()
	}
	marked := r.ElementsWithDirective(RegisterDirective)
	for _, el := range marked {
		d, _ := el.Directive(RegisterDirective)
		name := d.Args
		if name == "" {
			name = el.Name
		}
		pkg := el.Package.PkgPath
		p.entries[pkg] = append(p.entries[pkg], registryEntry{
			Name: name,
			Type: el.QualifiedName(),
			Kind: string(el.Kind),
		})
	}
	return len(marked) > 0, nil
}

func (p *Register) write() error {
	pkgs := make([]string, 0, len(p.entries))
	for pkg := range p.entries {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)

	for _, pkg := range pkgs {
		entries := p.entries[pkg]
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

		w, err := p.env.Filer().CreateResource(pkg, RegistryFile)
		if err != nil {
			return err
		}
		if _, err := w.Write([]byte(xml.Header)); err != nil {
			w.Close()
			return err
		}
		enc := xml.NewEncoder(w)
		enc.Indent("", "  ")
		if err := enc.Encode(registry{Package: pkg, Entries: entries}); err != nil {
			w.Close()
			return err
		}
		if _, err := w.Write([]byte("\n")); err != nil {
			w.Close()
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
	}
	return nil
}
