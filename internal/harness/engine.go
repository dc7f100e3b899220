package harness

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/log"

	"github.com/unbound-force/gencheck/internal/artifact"
	"github.com/unbound-force/gencheck/internal/compiler"
	"github.com/unbound-force/gencheck/internal/diagnostic"
	"github.com/unbound-force/gencheck/internal/failure"
	"github.com/unbound-force/gencheck/internal/instrument"
	"github.com/unbound-force/gencheck/internal/modules"
	"github.com/unbound-force/gencheck/internal/processor"
	"github.com/unbound-force/gencheck/internal/reporter"
)

// Engine runs compilation tests. Its collaborators are fixed at
// construction; every Run builds fresh wrappers, store and result.
type Engine struct {
	reporter reporter.Reporter
	modules  modules.Support
	service  compiler.Service
	logger   *log.Logger

	modulesSet bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithReporter sets the reporter assertion failures are raised
// through. The default is reporter.Locate().
func WithReporter(r reporter.Reporter) Option {
	return func(e *Engine) { e.reporter = r }
}

// WithModuleSupport sets the module resolver. A nil Support disables
// module resolution. The default is modules.Detect().
func WithModuleSupport(s modules.Support) Option {
	return func(e *Engine) {
		e.modules = s
		e.modulesSet = true
	}
}

// WithService sets the compilation service. The default is
// compiler.New().
func WithService(s compiler.Service) Option {
	return func(e *Engine) { e.service = s }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New returns an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, o := range opts {
		o(e)
	}
	if e.logger == nil {
		e.logger = log.New(io.Discard)
	}
	if e.reporter == nil {
		e.reporter = reporter.Locate()
	}
	if !e.modulesSet {
		e.modules = modules.Detect()
	}
	if e.service == nil {
		e.service = compiler.New(compiler.WithLogger(e.logger))
	}
	return e
}

// Run executes req and verifies the outcome. On success the caller
// owns the result and must Close it. Errors are a
// *failure.ConfigError, a *failure.TechnicalError or the assertion
// error returned by the reporter.
func (e *Engine) Run(ctx context.Context, req *Request) (*Result, error) {
	res, err := e.compile(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := e.verify(req, res); err != nil {
		res.Close()
		return nil, err
	}
	return res, nil
}

// Compile runs the pass of req without verifying it. The returned
// result must be closed.
func (e *Engine) Compile(ctx context.Context, req *Request) (*Result, error) {
	return e.compile(ctx, req)
}

func (e *Engine) compile(ctx context.Context, req *Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	wrapped, err := e.wrapProcessors(req)
	if err != nil {
		return nil, err
	}

	sources := req.Sources
	if req.UnitTest != nil && len(sources) == 0 {
		sources = []artifact.Source{defaultSource(req.UnitTest.marker())}
	}

	res := &Result{Processors: wrapped}
	res.Store, err = artifact.NewStore()
	if err != nil {
		return nil, failure.Technical("creating artifact store", err)
	}
	for _, w := range wrapped {
		w.SetDebugDump(res.DebugDump)
	}

	var moduleDirs map[string]string
	if len(req.Modules) > 0 {
		if e.modules == nil {
			e.logger.Warn("module support unavailable, ignoring modules", "modules", req.Modules)
		} else {
			resolution, err := e.modules.Resolve(req.Modules)
			if err != nil {
				res.Close()
				if failure.ClassOf(err) == failure.ClassConfig {
					return nil, err
				}
				var te *failure.TechnicalError
				if errors.As(err, &te) {
					return nil, err
				}
				return nil, failure.Technical("resolving modules", err)
			}
			res.resolution = resolution
			res.Modules = resolution.Modules
			moduleDirs = resolution.Dirs()
		}
	}

	procs := make([]processor.Processor, len(wrapped))
	for i, w := range wrapped {
		procs[i] = w
	}

	var sink diagnostic.Collector
	e.logger.Debug("compiling", "sources", len(sources), "processors", len(procs), "modules", len(moduleDirs))
	ok, err := e.service.Compile(ctx, compiler.Task{
		Sources:    sources,
		Processors: procs,
		Options:    compiler.NormalizeOptions(req.Options),
		Modules:    moduleDirs,
		Sink:       &sink,
		Store:      res.Store,
	})
	res.Success = ok
	res.Diagnostics = sink.Diagnostics()
	if err != nil {
		res.Close()
		return nil, passThrough(err)
	}
	e.logger.Debug("compiled", "success", ok, "diagnostics", len(res.Diagnostics), "artifacts", len(res.Store.List()))
	return res, nil
}

// passThrough returns the assertion or configuration failure inside
// err unchanged; anything else is technical.
func passThrough(err error) error {
	var ae *failure.AssertionError
	if errors.As(err, &ae) {
		return ae
	}
	var ce *failure.ConfigError
	if errors.As(err, &ce) {
		return ce
	}
	return failure.Technical("compilation", err)
}

func (e *Engine) wrapProcessors(req *Request) ([]*instrument.Wrapped, error) {
	if req.UnitTest != nil {
		p, err := req.UnitTest.synthesize()
		if err != nil {
			return nil, err
		}
		return []*instrument.Wrapped{instrument.Wrap(p, req.ExpectedError, e.reporter)}, nil
	}

	wrapped := make([]*instrument.Wrapped, 0, len(req.Processors))
	for _, spec := range req.Processors {
		p, err := spec.Resolve()
		if err != nil {
			return nil, err
		}
		expected := spec.Expected
		if expected == nil {
			expected = req.ExpectedError
		}
		wrapped = append(wrapped, instrument.Wrap(p, expected, e.reporter))
	}
	return wrapped, nil
}
