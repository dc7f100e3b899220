package harness

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/unbound-force/gencheck/internal/artifact"
	"github.com/unbound-force/gencheck/internal/failure"
	"github.com/unbound-force/gencheck/internal/processor"
)

// DefaultMarker is the directive that designates the element handed
// to element callbacks.
const DefaultMarker = "gencheck:passin"

// UnitTest is one of BareCallback, ElementCallback or
// ProcessorUnderTest. The harness turns it into the single processor
// of the pass.
type UnitTest interface {
	validate() error
	marker() string
	synthesize() (processor.Processor, error)
}

// BareCallback runs Fn once, in the first round.
type BareCallback struct {
	Fn func(env processor.Environment, round processor.Round) error
}

// ElementCallback runs Fn once with the unique element carrying
// Marker, in the first round.
type ElementCallback struct {
	// Marker defaults to DefaultMarker.
	Marker string

	// Source restricts the lookup to one source file.
	Source string

	Fn func(env processor.Environment, el processor.Element) error
}

// ProcessorUnderTest initializes Processor with the pass environment
// and runs Fn once with it and the unique element carrying Marker.
type ProcessorUnderTest struct {
	Processor ProcessorSpec
	Marker    string
	Source    string

	Fn func(env processor.Environment, p processor.Processor, el processor.Element) error
}

func (u BareCallback) validate() error {
	if u.Fn == nil {
		return failure.Configf("bare callback unit test without callback")
	}
	return nil
}

func (u BareCallback) marker() string { return DefaultMarker }

func (u BareCallback) synthesize() (processor.Processor, error) {
	return &unitProcessor{
		run: func(env processor.Environment, r processor.Round) error {
			return u.Fn(env, r)
		},
	}, nil
}

func (u ElementCallback) validate() error {
	if u.Fn == nil {
		return failure.Configf("element unit test without callback")
	}
	return nil
}

func (u ElementCallback) marker() string { return markerOr(u.Marker) }

func (u ElementCallback) synthesize() (processor.Processor, error) {
	lookup := elementLookup{marker: u.marker(), source: u.Source}
	return &unitProcessor{
		run: func(env processor.Environment, r processor.Round) error {
			el, err := lookup.find(r)
			if err != nil {
				return err
			}
			return u.Fn(env, el)
		},
	}, nil
}

func (u ProcessorUnderTest) validate() error {
	if u.Fn == nil {
		return failure.Configf("processor unit test without callback")
	}
	n := 0
	for _, set := range []bool{u.Processor.Instance != nil, u.Processor.Type != nil, u.Processor.Factory != nil} {
		if set {
			n++
		}
	}
	if n != 1 {
		return failure.Configf("processor unit test: exactly one of instance, type or factory must be set")
	}
	return nil
}

func (u ProcessorUnderTest) marker() string { return markerOr(u.Marker) }

func (u ProcessorUnderTest) synthesize() (processor.Processor, error) {
	p, err := u.Processor.Resolve()
	if err != nil {
		return nil, err
	}
	lookup := elementLookup{marker: u.marker(), source: u.Source}
	return &unitProcessor{
		init: p.Init,
		run: func(env processor.Environment, r processor.Round) error {
			el, err := lookup.find(r)
			if err != nil {
				return err
			}
			return u.Fn(env, p, el)
		},
	}, nil
}

func markerOr(m string) string {
	if m == "" {
		return DefaultMarker
	}
	return strings.TrimPrefix(m, "//")
}

// unitProcessor sees every round and runs its callback in the first
// one.
type unitProcessor struct {
	init func(processor.Environment) error
	run  func(processor.Environment, processor.Round) error

	env  processor.Environment
	done bool
}

func (u *unitProcessor) Init(env processor.Environment) error {
	u.env = env
	if u.init != nil {
		return u.init(env)
	}
	return nil
}

func (u *unitProcessor) SupportedDirectives() []string {
	return []string{processor.AllDirectives}
}

func (u *unitProcessor) Process(_ context.Context, r processor.Round) (bool, error) {
	if u.done || r.ProcessingOver() {
		return false, nil
	}
	u.done = true
	return false, u.run(u.env, r)
}

// elementLookup finds the designated element of a round.
type elementLookup struct {
	marker string
	source string
}

func (l elementLookup) find(r processor.Round) (processor.Element, error) {
	var found []processor.Element
	for _, el := range r.ElementsWithDirective(l.marker) {
		if l.source != "" && !sameSource(el.File, l.source) {
			continue
		}
		found = append(found, el)
	}

	where := ""
	if l.source != "" {
		where = " in " + l.source
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return processor.Element{}, failure.Configf("no element carrying //%s found%s", l.marker, where)
	default:
		names := make([]string, len(found))
		for i, el := range found {
			names[i] = el.QualifiedName()
		}
		return processor.Element{}, failure.Configf("%d elements carry //%s%s, expected exactly one: %s",
			len(found), l.marker, where, strings.Join(names, ", "))
	}
}

// sameSource reports whether the absolute file path ends with the
// module-relative source name.
func sameSource(file, source string) bool {
	file = strings.ReplaceAll(file, "\\", "/")
	source = path.Clean(source)
	return file == source || strings.HasSuffix(file, "/"+source)
}

// defaultSource is compiled by unit tests that declare no source. Its
// only type carries the marker.
func defaultSource(marker string) artifact.Source {
	return artifact.Source{
		Name: "gencheck/passin.go",
		Content: []byte(fmt.Sprintf(
			"package gencheck\n\n// PassIn is handed to element unit tests.\n//\n//%s\ntype PassIn struct{}\n", marker)),
	}
}
