// Package scenario reads declarative compilation tests from txtar
// archives. An archive holds one scenario document (scenario.yaml or
// scenario.toml) naming the processors to run and the expectations to
// verify, reference content under expected/, and the sources to
// compile. The archive comment is the scenario description.
package scenario

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/tools/txtar"
	"gopkg.in/yaml.v3"

	"github.com/unbound-force/gencheck/internal/artifact"
	"github.com/unbound-force/gencheck/internal/diagnostic"
	"github.com/unbound-force/gencheck/internal/failure"
	"github.com/unbound-force/gencheck/internal/harness"
	"github.com/unbound-force/gencheck/internal/matcher"
	"github.com/unbound-force/gencheck/internal/processor"
	"github.com/unbound-force/gencheck/internal/processors"
)

// Ext is the file extension of scenario archives.
const Ext = ".txtar"

// ExpectedDir prefixes archive files holding artifact reference
// content, addressed by the package-qualified artifact name.
const ExpectedDir = "expected/"

// Document names accepted inside an archive.
const (
	YAMLDocument = "scenario.yaml"
	TOMLDocument = "scenario.toml"
)

// Document is the decoded scenario document.
type Document struct {
	Description   string          `yaml:"description" toml:"description" json:"description,omitempty"`
	Processors    []string        `yaml:"processors" toml:"processors" json:"processors" validate:"required,min=1,dive,processor"`
	Options       []string        `yaml:"options" toml:"options" json:"options,omitempty"`
	Modules       []string        `yaml:"modules" toml:"modules" json:"modules,omitempty" validate:"dive,required"`
	Success       string          `yaml:"success" toml:"success" json:"success,omitempty" validate:"omitempty,oneof=succeed fail unchecked"`
	Diagnostics   []DiagnosticDoc `yaml:"diagnostics" toml:"diagnostics" json:"diagnostics,omitempty" validate:"dive"`
	Artifacts     []ArtifactDoc   `yaml:"artifacts" toml:"artifacts" json:"artifacts,omitempty" validate:"dive"`
	ExpectedError *ErrorDoc       `yaml:"expected_error" toml:"expected_error" json:"expected_error,omitempty"`
}

// DiagnosticDoc expects one diagnostic. Message requires equality,
// Contains requires every token.
type DiagnosticDoc struct {
	Kind     string   `yaml:"kind" toml:"kind" json:"kind" validate:"required"`
	Message  string   `yaml:"message" toml:"message" json:"message,omitempty" validate:"required_without=Contains,excluded_with=Contains"`
	Contains []string `yaml:"contains" toml:"contains" json:"contains,omitempty" validate:"omitempty,dive,required"`
	Source   string   `yaml:"source" toml:"source" json:"source,omitempty"`
	Line     int      `yaml:"line" toml:"line" json:"line,omitempty" validate:"gte=0"`
	Column   int      `yaml:"column" toml:"column" json:"column,omitempty" validate:"gte=0"`
	Locale   string   `yaml:"locale" toml:"locale" json:"locale,omitempty" validate:"omitempty,bcp47_language_tag"`
}

// ArtifactDoc expects one generated source or resource. Exists
// defaults to true. Match compares against the expected/ file of the
// artifact; it defaults to text when such a file exists.
type ArtifactDoc struct {
	Source   string   `yaml:"source" toml:"source" json:"source,omitempty" validate:"required_without=Resource,excluded_with=Resource"`
	Resource string   `yaml:"resource" toml:"resource" json:"resource,omitempty"`
	Exists   *bool    `yaml:"exists" toml:"exists" json:"exists,omitempty"`
	Match    string   `yaml:"match" toml:"match" json:"match,omitempty" validate:"omitempty,oneof=binary text"`
	Contains []string `yaml:"contains" toml:"contains" json:"contains,omitempty"`
	Regex    string   `yaml:"regex" toml:"regex" json:"regex,omitempty" validate:"omitempty,regexp"`
	XML      bool     `yaml:"xml" toml:"xml" json:"xml,omitempty"`
}

// ErrorDoc declares the error every processor must fail with.
type ErrorDoc struct {
	Panic    bool   `yaml:"panic" toml:"panic" json:"panic,omitempty"`
	Contains string `yaml:"contains" toml:"contains" json:"contains,omitempty" validate:"required_without=Panic,excluded_with=Panic"`
}

// Scenario is a parsed archive.
type Scenario struct {
	Name        string
	Description string
	Doc         Document
	Sources     []artifact.Source

	// Expected maps package-qualified artifact names to reference
	// content.
	Expected map[string][]byte
}

// Load parses the archive at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, failure.Technical("reading scenario", err)
	}
	return Parse(strings.TrimSuffix(filepath.Base(path), Ext), data)
}

// Parse parses archive data. Every problem with the archive content
// is a *failure.ConfigError.
func Parse(name string, data []byte) (*Scenario, error) {
	ar := txtar.Parse(data)
	sc := &Scenario{
		Name:        name,
		Description: describe(ar.Comment),
		Expected:    make(map[string][]byte),
	}

	var docName string
	var docData []byte
	seen := make(map[string]bool)
	for _, f := range ar.Files {
		if seen[f.Name] {
			return nil, invalid(name, "duplicate file %s", f.Name)
		}
		seen[f.Name] = true

		switch {
		case f.Name == YAMLDocument || f.Name == TOMLDocument:
			if docName != "" {
				return nil, invalid(name, "both %s and %s present", docName, f.Name)
			}
			docName, docData = f.Name, f.Data
		case strings.HasPrefix(f.Name, ExpectedDir):
			sc.Expected[strings.TrimPrefix(f.Name, ExpectedDir)] = f.Data
		default:
			sc.Sources = append(sc.Sources, artifact.Source{Name: f.Name, Content: f.Data})
		}
	}
	if docName == "" {
		return nil, invalid(name, "no %s or %s found", YAMLDocument, TOMLDocument)
	}

	doc, err := decode(docName, docData)
	if err != nil {
		return nil, &failure.ConfigError{Message: "scenario " + name, Cause: err}
	}
	sc.Doc = doc
	if sc.Description == "" {
		sc.Description = doc.Description
	}

	for q := range sc.Expected {
		if !sc.references(q) {
			return nil, invalid(name, "%s%s is not referenced by any artifact", ExpectedDir, q)
		}
	}
	return sc, nil
}

// describe joins the comment lines of an archive, skipping lines
// starting with '#'.
func describe(comment []byte) string {
	var lines []string
	for _, l := range strings.Split(string(comment), "\n") {
		if strings.HasPrefix(l, "#") {
			continue
		}
		lines = append(lines, l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func invalid(name, format string, args ...any) error {
	return failure.Configf("scenario %s: %s", name, fmt.Sprintf(format, args...))
}

func (s *Scenario) references(qualified string) bool {
	for _, a := range s.Doc.Artifacts {
		if a.Source == qualified || a.Resource == qualified {
			return true
		}
	}
	return false
}

// decode checks the document against Schema, decodes it strictly and
// applies the struct rules.
func decode(name string, data []byte) (Document, error) {
	var raw any
	var doc Document
	switch name {
	case YAMLDocument:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return doc, fmt.Errorf("%s: %w", name, err)
		}
	case TOMLDocument:
		m := make(map[string]any)
		if _, err := toml.Decode(string(data), &m); err != nil {
			return doc, fmt.Errorf("%s: %w", name, err)
		}
		raw = m
	}

	if err := validateSchema(raw); err != nil {
		return doc, fmt.Errorf("%s: %w", name, err)
	}

	switch name {
	case YAMLDocument:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return doc, fmt.Errorf("%s: %w", name, err)
		}
	case TOMLDocument:
		md, err := toml.Decode(string(data), &doc)
		if err != nil {
			return doc, fmt.Errorf("%s: %w", name, err)
		}
		if keys := md.Undecoded(); len(keys) > 0 {
			return doc, fmt.Errorf("%s: unknown keys %v", name, keys)
		}
	}

	if err := validate().Struct(doc); err != nil {
		return doc, fmt.Errorf("%s: %w", name, describeValidation(err))
	}
	return doc, nil
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	sch, err := jsonschema.UnmarshalJSON(strings.NewReader(Schema))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("scenario.schema.json", sch); err != nil {
		return nil, err
	}
	return c.Compile("scenario.schema.json")
})

// validateSchema round-trips raw through JSON so YAML and TOML values
// reach the validator as plain JSON values.
func validateSchema(raw any) error {
	sch, err := compiledSchema()
	if err != nil {
		return failure.Technical("compiling scenario schema", err)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return err
	}
	return sch.Validate(inst)
}

var validate = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("processor", func(fl validator.FieldLevel) bool {
		_, err := processors.Lookup(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("regexp", func(fl validator.FieldLevel) bool {
		_, err := regexp.Compile(fl.Field().String())
		return err == nil
	})
	return v
})

func describeValidation(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Document.")
		switch fe.Tag() {
		case "processor":
			msgs = append(msgs, fmt.Sprintf("%s: unknown processor %q (known: %s)",
				field, fe.Value(), strings.Join(processors.Names(), ", ")))
		case "required_without":
			msgs = append(msgs, fmt.Sprintf("%s: required unless %s is set", field, fe.Param()))
		case "excluded_with":
			msgs = append(msgs, fmt.Sprintf("%s: cannot be combined with %s", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s: fails %q", field, fe.Tag()))
		}
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

// Request translates the scenario into a harness request. Built-in
// processors are instantiated per run.
func (s *Scenario) Request() (*harness.Request, error) {
	req := &harness.Request{
		Sources: s.Sources,
		Options: s.Doc.Options,
		Modules: s.Doc.Modules,
	}

	for _, name := range s.Doc.Processors {
		req.Processors = append(req.Processors, harness.Factory(func() (processor.Processor, error) {
			return processors.Lookup(name)
		}))
	}

	switch s.Doc.Success {
	case "succeed":
		req.Success = harness.MustSucceed
	case "fail":
		req.Success = harness.MustFail
	default:
		req.Success = harness.Unchecked
	}

	for _, d := range s.Doc.Diagnostics {
		exp, err := s.diagnostic(d)
		if err != nil {
			return nil, err
		}
		req.Diagnostics = append(req.Diagnostics, exp)
	}

	for _, a := range s.Doc.Artifacts {
		exp, err := s.artifact(a)
		if err != nil {
			return nil, err
		}
		req.Artifacts = append(req.Artifacts, exp)
	}

	if e := s.Doc.ExpectedError; e != nil {
		if e.Panic {
			req.ExpectedError = processor.Panics()
		} else {
			sub := e.Contains
			req.ExpectedError = processor.NewErrorKind(fmt.Sprintf("error containing %q", sub), func(err error) bool {
				return strings.Contains(err.Error(), sub)
			})
		}
	}
	return req, nil
}

func (s *Scenario) diagnostic(d DiagnosticDoc) (harness.DiagnosticExpectation, error) {
	kind, err := diagnostic.ParseKind(d.Kind)
	if err != nil {
		return harness.DiagnosticExpectation{}, invalid(s.Name, "%v", err)
	}
	var exp harness.DiagnosticExpectation
	if d.Message != "" {
		exp = harness.DiagnosticEquals(kind, d.Message)
	} else {
		exp = harness.DiagnosticContains(kind, d.Contains...)
	}
	if d.Source != "" || d.Line > 0 || d.Column > 0 {
		exp = exp.At(d.Source, d.Line, d.Column)
	}
	if d.Locale != "" {
		tag, err := language.Parse(d.Locale)
		if err != nil {
			return exp, invalid(s.Name, "locale %q: %v", d.Locale, err)
		}
		exp = exp.In(tag)
	}
	return exp, nil
}

func (s *Scenario) artifact(a ArtifactDoc) (harness.ArtifactExpectation, error) {
	loc, kind, qualified := artifact.SourceOutput, artifact.KindSource, a.Source
	if a.Resource != "" {
		loc, kind, qualified = artifact.ResourceOutput, artifact.KindResource, a.Resource
	}
	id, err := artifact.ParseQualified(loc, qualified, kind)
	if err != nil {
		return harness.ArtifactExpectation{}, invalid(s.Name, "artifact %q: %v", qualified, err)
	}
	if a.Exists != nil && !*a.Exists {
		if a.Match != "" || len(a.Contains) > 0 || a.Regex != "" || a.XML {
			return harness.ArtifactExpectation{}, invalid(s.Name, "artifact %s: matchers on an artifact that must not exist", qualified)
		}
		return harness.ExpectNoArtifact(id), nil
	}

	var ms []matcher.Matcher
	expected, hasExpected := s.Expected[qualified]
	match := a.Match
	if match == "" && hasExpected {
		match = "text"
	}
	switch match {
	case "binary", "text":
		if !hasExpected {
			return harness.ArtifactExpectation{}, invalid(s.Name, "artifact %s: match %s needs %s%s", qualified, match, ExpectedDir, qualified)
		}
		if match == "binary" {
			ms = append(ms, matcher.Binary(expected))
		} else {
			ms = append(ms, matcher.Text(string(expected)))
		}
	}
	if len(a.Contains) > 0 {
		ms = append(ms, matcher.ContainsSubstrings(a.Contains...))
	}
	if a.Regex != "" {
		m, err := matcher.Regex(a.Regex)
		if err != nil {
			return harness.ArtifactExpectation{}, invalid(s.Name, "artifact %s: %v", qualified, err)
		}
		ms = append(ms, m)
	}
	if a.XML {
		ms = append(ms, matcher.WellFormedXML())
	}
	return harness.ExpectArtifact(id, ms...), nil
}

// Run executes the scenario on engine.
func (s *Scenario) Run(ctx context.Context, engine *harness.Engine) (*harness.Result, error) {
	req, err := s.Request()
	if err != nil {
		return nil, err
	}
	return engine.Run(ctx, req)
}

// Discover expands paths into scenario archives: files are taken as
// they are, directories are walked for *.txtar. The result is sorted
// and free of duplicates.
func Discover(paths ...string) ([]string, error) {
	set := make(map[string]bool)
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			set[filepath.Clean(p)] = true
			continue
		}
		err = filepath.WalkDir(p, func(fp string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && path.Ext(d.Name()) == Ext {
				set[fp] = true
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}
