package compiler

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/unbound-force/gencheck/internal/artifact"
	"github.com/unbound-force/gencheck/internal/diagnostic"
	"github.com/unbound-force/gencheck/internal/loader"
	"github.com/unbound-force/gencheck/internal/processor"
)

// pass is the state of one Compile call.
type pass struct {
	service *PackagesService
	dir     string
	opts    Options
	procs   []processor.Processor
	sink    *trackingSink
	store   *artifact.Store

	env   *environment
	filer *filer
}

func (p *pass) run(ctx context.Context) (bool, error) {
	logger := p.service.logger
	p.filer = &filer{dir: p.dir, modulePath: p.opts.ModulePath, store: p.store}
	p.env = &environment{pass: p}

	for _, proc := range p.procs {
		if err := processor.Call(func() error { return proc.Init(p.env) }); err != nil {
			return false, fmt.Errorf("initializing processor %s: %w", processor.TypeName(proc), err)
		}
	}

	invoked := make([]bool, len(p.procs))
	var files map[string]bool
	var last *loader.Result
	n := 0

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		n++

		res, err := p.load()
		if err != nil {
			return false, err
		}
		last = res
		p.env.fset = res.Fset

		var elements []processor.Element
		for _, pkg := range res.Pkgs {
			elements = append(elements, processor.CollectElements(pkg, files)...)
		}
		processor.SortElements(elements)

		r := &round{
			number:      n,
			pkgs:        res.Pkgs,
			elements:    elements,
			errorRaised: p.sink.errors > 0,
		}
		logger.Debug("round", "number", n, "elements", len(elements))

		p.filer.generated = nil
		for i, proc := range p.procs {
			if !invoked[i] && !processor.Scope(proc.SupportedDirectives(), elements) {
				continue
			}
			invoked[i] = true
			if err := callProcess(ctx, proc, r); err != nil {
				return false, err
			}
		}

		if len(p.filer.generated) == 0 {
			break
		}
		files = make(map[string]bool, len(p.filer.generated))
		for _, f := range p.filer.generated {
			files[f] = true
		}
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}
	n++
	final := &round{
		number:      n,
		over:        true,
		pkgs:        last.Pkgs,
		errorRaised: p.sink.errors > 0,
	}
	logger.Debug("final round", "number", n)

	p.filer.generated = nil
	for i, proc := range p.procs {
		if !invoked[i] {
			continue
		}
		if err := callProcess(ctx, proc, final); err != nil {
			return false, err
		}
	}

	if len(p.filer.generated) > 0 {
		for _, f := range p.filer.generated {
			p.sink.Report(diagnostic.Diagnostic{
				Kind:    diagnostic.Warning,
				Message: fmt.Sprintf("file %s was generated in the last round and will not be processed", p.rel(f)),
			})
		}
		res, err := p.load()
		if err != nil {
			return false, err
		}
		last = res
	}

	for _, e := range last.Errors() {
		p.sink.Report(p.packageError(e))
	}

	logger.Debug("pass done", "rounds", n, "errors", p.sink.errors)
	return p.sink.errors == 0, nil
}

// callProcess runs one round of proc. A panic is returned as a
// *processor.PanicError.
func callProcess(ctx context.Context, proc processor.Processor, r processor.Round) error {
	err := processor.Call(func() error {
		_, err := proc.Process(ctx, r)
		return err
	})
	if err != nil {
		return fmt.Errorf("processor %s: %w", processor.TypeName(proc), err)
	}
	return nil
}

func (p *pass) load() (*loader.Result, error) {
	return loader.Load(loader.Config{
		Dir:  p.dir,
		Tags: p.opts.Tags,
		Env:  p.service.env,
	})
}

// rel makes file paths relative to the module root for diagnostics.
func (p *pass) rel(file string) string {
	if file == "" {
		return ""
	}
	r, err := filepath.Rel(p.dir, file)
	if err != nil || strings.HasPrefix(r, "..") {
		return file
	}
	return filepath.ToSlash(r)
}

// packageError converts a go/packages error, whose Pos has the form
// "file:line:col", "file:line", "file" or "-".
func (p *pass) packageError(e packages.Error) diagnostic.Diagnostic {
	d := diagnostic.Diagnostic{Kind: diagnostic.Error, Message: e.Msg}
	pos := e.Pos
	if pos == "" || pos == "-" {
		return d
	}

	var nums []int
	for len(nums) < 2 {
		i := strings.LastIndexByte(pos, ':')
		if i < 0 {
			break
		}
		v, err := strconv.Atoi(pos[i+1:])
		if err != nil {
			break
		}
		nums = append([]int{v}, nums...)
		pos = pos[:i]
	}
	d.Source = p.rel(pos)
	if len(nums) > 0 {
		d.Line = nums[0]
	}
	if len(nums) > 1 {
		d.Column = nums[1]
	}
	return d
}
