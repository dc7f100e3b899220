// Package report provides output formatters for scenario runs in
// JSON, HTML and human-readable text formats.
package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/unbound-force/gencheck/internal/artifact"
	"github.com/unbound-force/gencheck/internal/diagnostic"
	"github.com/unbound-force/gencheck/internal/failure"
	"github.com/unbound-force/gencheck/internal/harness"
)

// RunResult is the outcome of one scenario.
type RunResult struct {
	Scenario    string                  `json:"scenario"`
	Path        string                  `json:"path,omitempty"`
	Description string                  `json:"description,omitempty"`
	Passed      bool                    `json:"passed"`
	Class       failure.Class           `json:"class,omitempty"`
	Failure     string                  `json:"failure,omitempty"`
	Diagnostics []diagnostic.Diagnostic `json:"diagnostics"`
	Artifacts   []artifact.ID           `json:"artifacts"`
	DurationMS  float64                 `json:"duration_ms"`
}

// NewRunResult records the outcome of a harness run. res may be nil,
// which is the case for every failed run.
func NewRunResult(name string, res *harness.Result, err error, elapsed time.Duration) RunResult {
	r := RunResult{
		Scenario:    name,
		Passed:      err == nil,
		Class:       failure.ClassOf(err),
		Diagnostics: []diagnostic.Diagnostic{},
		Artifacts:   []artifact.ID{},
		DurationMS:  float64(elapsed.Microseconds()) / 1000,
	}
	if err != nil {
		r.Failure = err.Error()
	}
	if res != nil {
		r.Diagnostics = append(r.Diagnostics, res.Diagnostics...)
		if res.Store != nil {
			r.Artifacts = append(r.Artifacts, res.Store.List()...)
		}
	}
	return r
}

// Summary counts passed and failed scenarios.
type Summary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// Summarize counts results.
func Summarize(results []RunResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Passed {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	return s
}

// JSONReport is the top-level JSON output structure.
type JSONReport struct {
	Version string      `json:"version"`
	Summary Summary     `json:"summary"`
	Results []RunResult `json:"results"`
}

// WriteJSON writes run results as formatted JSON to the writer.
func WriteJSON(w io.Writer, results []RunResult, version string) error {
	if results == nil {
		results = []RunResult{}
	}
	report := JSONReport{
		Version: version,
		Summary: Summarize(results),
		Results: results,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
