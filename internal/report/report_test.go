package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/unbound-force/gencheck/internal/artifact"
	"github.com/unbound-force/gencheck/internal/diagnostic"
	"github.com/unbound-force/gencheck/internal/failure"
	"github.com/unbound-force/gencheck/internal/harness"
)

func sampleResults() []RunResult {
	return []RunResult{
		{
			Scenario:    "stringer",
			Path:        "testdata/scenarios/stringer.txtar",
			Description: "Stringer output compiles in the following round.",
			Passed:      true,
			Diagnostics: []diagnostic.Diagnostic{
				{Kind: diagnostic.Warning, Message: "Empty: no constants found", Source: "a/a.go", Line: 12, Column: 6},
			},
			Artifacts: []artifact.ID{
				artifact.SourceID("gencheck.test/a", "color_string.go"),
			},
			DurationMS: 812.7,
		},
		{
			Scenario:    "register",
			Passed:      false,
			Class:       failure.ClassAssertion,
			Failure:     "artifact RESOURCE_OUTPUT gencheck.test/a/registry.xml doesn't exist\n\nproduced artifacts:\n  (none)\n",
			Diagnostics: []diagnostic.Diagnostic{},
			Artifacts:   []artifact.ID{},
			DurationMS:  640,
		},
	}
}

func compileSchema(t *testing.T) *jsonschema.Schema {
	t.Helper()
	sch, err := jsonschema.UnmarshalJSON(strings.NewReader(Schema))
	if err != nil {
		t.Fatalf("failed to parse schema JSON: %v", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", sch); err != nil {
		t.Fatalf("failed to add schema resource: %v", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		t.Fatalf("failed to compile schema: %v", err)
	}
	return compiled
}

func validateJSON(t *testing.T, data []byte) {
	t.Helper()
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}
	if err := compileSchema(t).Validate(inst); err != nil {
		t.Errorf("JSON output does not conform to schema:\n%v", err)
	}
}

func TestWriteJSON_ValidAgainstSchema(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleResults(), "0.1.0"); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	validateJSON(t, buf.Bytes())
}

func TestWriteJSON_EmptyResults_ValidAgainstSchema(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, nil, "0.1.0"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"results": []`) {
		t.Errorf("empty results should encode as an empty array:\n%s", buf.String())
	}
	validateJSON(t, buf.Bytes())
}

func TestWriteJSON_Summary(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleResults(), "0.1.0"); err != nil {
		t.Fatal(err)
	}

	var report JSONReport
	if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	want := Summary{Total: 2, Passed: 1, Failed: 1}
	if report.Summary != want {
		t.Errorf("summary = %+v, want %+v", report.Summary, want)
	}
	if report.Version != "0.1.0" {
		t.Errorf("version = %q", report.Version)
	}
}

func TestWriteJSON_ContainsAllFields(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleResults(), "0.1.0"); err != nil {
		t.Fatal(err)
	}

	output := buf.String()
	requiredFields := []string{
		`"version"`, `"summary"`, `"results"`, `"scenario"`,
		`"passed"`, `"class"`, `"failure"`, `"diagnostics"`,
		`"artifacts"`, `"duration_ms"`, `"location"`, `"kind"`,
	}
	for _, field := range requiredFields {
		if !strings.Contains(output, field) {
			t.Errorf("JSON output missing field %s", field)
		}
	}
}

func TestNewRunResult(t *testing.T) {
	res := &harness.Result{
		Diagnostics: []diagnostic.Diagnostic{{Kind: diagnostic.Note, Message: "hi"}},
	}
	r := NewRunResult("ok", res, nil, 1500*time.Microsecond)
	if !r.Passed || r.Class != failure.ClassNone || r.Failure != "" {
		t.Errorf("unexpected passed result: %+v", r)
	}
	if r.DurationMS != 1.5 {
		t.Errorf("DurationMS = %v, want 1.5", r.DurationMS)
	}
	if len(r.Diagnostics) != 1 || r.Artifacts == nil {
		t.Errorf("diagnostics/artifacts not carried over: %+v", r)
	}

	r = NewRunResult("bad", nil, &failure.ConfigError{Message: "nope"}, 0)
	if r.Passed || r.Class != failure.ClassConfig {
		t.Errorf("unexpected failed result: %+v", r)
	}
	if !strings.Contains(r.Failure, "nope") {
		t.Errorf("failure text = %q", r.Failure)
	}

	r = NewRunResult("broken", nil, errors.New("disk full"), 0)
	if r.Class != failure.ClassTechnical {
		t.Errorf("class = %q, want technical", r.Class)
	}
}

func TestWriteText_Table(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, sampleResults()); err != nil {
		t.Fatal(err)
	}

	output := buf.String()
	for _, want := range []string{"SCENARIO", "stringer", "PASS", "register", "FAIL", "assertion", "813ms"} {
		if !strings.Contains(output, want) {
			t.Errorf("text output missing %q", want)
		}
	}
}

func TestWriteText_FailureDetailOnly(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, sampleResults()); err != nil {
		t.Fatal(err)
	}

	output := buf.String()
	if !strings.Contains(output, "=== register ===") {
		t.Error("text output missing detail for failed scenario")
	}
	if !strings.Contains(output, "      produced artifacts:") {
		t.Error("failure text should be indented")
	}
	if strings.Contains(output, "=== stringer ===") {
		t.Error("passed scenario should not get a detail section without verbose")
	}
	if !strings.Contains(output, "2 scenario(s) run, 1 passed, 1 failed") {
		t.Error("text output missing summary")
	}
}

func TestWriteTextOptions_Verbose(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTextOptions(&buf, sampleResults(), TextOptions{Verbose: true}); err != nil {
		t.Fatal(err)
	}

	output := buf.String()
	for _, want := range []string{
		"=== stringer ===",
		"a/a.go:12:6: warning: Empty: no constants found",
		"SOURCE_OUTPUT gencheck.test/a/color_string.go",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("verbose output missing %q", want)
		}
	}
}

func TestWriteText_EmptyResults(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "0 scenario(s) run") {
		t.Error("text output should show 0 scenarios for empty results")
	}
}

// stripANSI removes ANSI escape sequences from text for width measurement.
var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func stripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

func TestWriteText_TableFitsIn80Columns(t *testing.T) {
	results := sampleResults()
	results[0].Scenario = strings.Repeat("long-scenario-name-", 5)

	var buf bytes.Buffer
	if err := WriteText(&buf, results); err != nil {
		t.Fatal(err)
	}

	const maxWidth = 80
	for i, line := range strings.Split(buf.String(), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "===") {
			break
		}
		plain := stripANSI(line)
		if w := utf8.RuneCountInString(plain); w > maxWidth {
			t.Errorf("line %d is %d columns wide (max %d): %q", i+1, w, maxWidth, plain)
		}
	}
}

func TestWriteHTML(t *testing.T) {
	results := sampleResults()
	results[1].Failure = "<script>alert(1)</script>"

	var buf bytes.Buffer
	if err := WriteHTML(&buf, results, "0.1.0"); err != nil {
		t.Fatal(err)
	}

	output := buf.String()
	if !strings.Contains(output, "2 scenario(s) run, 1 passed, 1 failed") {
		t.Error("html output missing summary")
	}
	if !strings.Contains(output, `<td class="fail">FAIL</td>`) {
		t.Error("html output missing failed row")
	}
	if strings.Contains(output, "<script>") {
		t.Error("failure text must be escaped")
	}
}
