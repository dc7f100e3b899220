// Package compiler runs compilation passes: it materialises the
// sources of a task as a Go module, type-checks it with go/packages
// and drives the attached processors through their rounds.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/unbound-force/gencheck/internal/artifact"
	"github.com/unbound-force/gencheck/internal/diagnostic"
	"github.com/unbound-force/gencheck/internal/processor"
)

// Service runs one compilation pass per call.
type Service interface {
	// Compile runs the pass described by task. The boolean reports
	// whether the pass produced no error diagnostic. A non-nil error
	// means the pass could not be completed; it wraps the processor
	// error when a processor failed.
	Compile(ctx context.Context, task Task) (bool, error)
}

// Task is the input of one pass.
type Task struct {
	Sources    []artifact.Source
	Processors []processor.Processor

	// Options are normalized option tokens.
	Options []string

	// Modules maps module paths to their origin: a module directory
	// or module zip archive. Each one is required by the module under
	// compilation and replaced with its origin.
	Modules map[string]string

	Sink  diagnostic.Sink
	Store *artifact.Store
}

// PackagesService is the go/packages-backed Service.
type PackagesService struct {
	logger *log.Logger
	env    []string
}

// Option configures a PackagesService.
type Option func(*PackagesService)

// WithLogger sets the logger round progress is reported to.
func WithLogger(l *log.Logger) Option {
	return func(s *PackagesService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEnv appends environment variables to every go command the
// service runs.
func WithEnv(env ...string) Option {
	return func(s *PackagesService) {
		s.env = append(s.env, env...)
	}
}

// New returns the default compilation service.
func New(opts ...Option) *PackagesService {
	s := &PackagesService{
		logger: log.New(io.Discard),
		env:    []string{"GOFLAGS=-mod=mod", "GOWORK=off", "GOPROXY=off"},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Compile implements Service.
func (s *PackagesService) Compile(ctx context.Context, task Task) (bool, error) {
	if task.Sink == nil {
		return false, errors.New("compile: no diagnostic sink")
	}
	if task.Store == nil {
		return false, errors.New("compile: no artifact store")
	}

	sink := &trackingSink{sink: task.Sink}
	opts, invalid := ParseOptions(task.Options)
	if len(invalid) > 0 {
		for _, msg := range invalid {
			sink.Report(diagnostic.Diagnostic{Kind: diagnostic.Error, Message: msg})
		}
		return false, nil
	}

	work, err := os.MkdirTemp("", "gencheck-src-*")
	if err != nil {
		return false, fmt.Errorf("creating work directory: %w", err)
	}
	defer os.RemoveAll(work)

	// go list reports resolved paths; generated files are matched
	// against them.
	if resolved, err := filepath.EvalSymlinks(work); err == nil {
		work = resolved
	}

	if err := writeWorkspace(work, opts, task.Sources, task.Modules); err != nil {
		return false, err
	}

	p := &pass{
		service: s,
		dir:     work,
		opts:    opts,
		procs:   task.Processors,
		sink:    sink,
		store:   task.Store,
	}
	return p.run(ctx)
}

// trackingSink forwards diagnostics and counts errors.
type trackingSink struct {
	sink   diagnostic.Sink
	errors int
}

func (t *trackingSink) Report(d diagnostic.Diagnostic) {
	if d.Kind == diagnostic.Error {
		t.errors++
	}
	t.sink.Report(d)
}
