package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/unbound-force/gencheck/internal/config"
	"github.com/unbound-force/gencheck/internal/failure"
	"github.com/unbound-force/gencheck/internal/harness"
	"github.com/unbound-force/gencheck/internal/modules"
	"github.com/unbound-force/gencheck/internal/processors"
	"github.com/unbound-force/gencheck/internal/report"
	"github.com/unbound-force/gencheck/internal/scaffold"
	"github.com/unbound-force/gencheck/internal/scenario"
)

// logger is the application-wide structured logger (writes to stderr).
var logger = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
	ReportTimestamp: false,
})

// Set by build flags.
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "gencheck",
		Short: "gencheck: compilation tests for Go code-generation processors",
		Long: `gencheck compiles Go sources with code-generation processors
attached and checks the outcome against declared expectations:
success or failure, diagnostics, and generated files.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newSchemaCmd())
	root.AddCommand(newProcessorsCmd())
	root.AddCommand(newInitCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runParams holds the parsed flags for the run command.
type runParams struct {
	paths       []string
	format      string
	jobs        int
	timeout     time.Duration
	options     []string
	modulePath  []string
	verbose     bool
	interactive bool
	stdout      io.Writer
	stderr      io.Writer

	// engineOpts are appended to the engine options; tests use it to
	// replace collaborators.
	engineOpts []harness.Option
}

// loadConfig reads the configuration file and applies flag overrides.
// Zero flag values leave the file values in place.
func loadConfig(path, format string, jobs int, timeout time.Duration) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if format != "" {
		cfg.Format = format
	}
	if jobs != 0 {
		cfg.Jobs = jobs
	}
	if timeout != 0 {
		cfg.Timeout = timeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (p runParams) engine() *harness.Engine {
	opts := []harness.Option{harness.WithLogger(logger)}
	if len(p.modulePath) > 0 {
		opts = append(opts, harness.WithModuleSupport(modules.NewResolver(p.modulePath...)))
	}
	opts = append(opts, p.engineOpts...)
	return harness.New(opts...)
}

// runScenarios discovers, loads and runs every scenario below
// p.paths. Results keep discovery order regardless of p.jobs.
func runScenarios(ctx context.Context, p runParams) ([]report.RunResult, error) {
	paths, err := scenario.Discover(p.paths...)
	if err != nil {
		return nil, err
	}
	logger.Info("running scenarios", "count", len(paths), "jobs", p.jobs)

	engine := p.engine()
	results := make([]report.RunResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.jobs)
	for i, path := range paths {
		g.Go(func() error {
			results[i] = runOne(gctx, engine, path, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func runOne(ctx context.Context, engine *harness.Engine, path string, p runParams) report.RunResult {
	start := time.Now()
	sc, err := scenario.Load(path)
	if err != nil {
		r := report.NewRunResult(path, nil, err, time.Since(start))
		r.Path = path
		logResult(r)
		return r
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var res *harness.Result
	req, err := sc.Request()
	if err == nil {
		req.Options = append(req.Options, p.options...)
		res, err = engine.Run(ctx, req)
	}
	r := report.NewRunResult(sc.Name, res, err, time.Since(start))
	r.Path, r.Description = path, sc.Description
	if res != nil {
		res.Close()
	}
	logResult(r)
	return r
}

func logResult(r report.RunResult) {
	if r.Passed {
		logger.Debug("scenario passed", "scenario", r.Scenario, "ms", r.DurationMS)
		return
	}
	logger.Debug("scenario failed", "scenario", r.Scenario, "class", r.Class)
}

// runRun is the extracted, testable body of the run command.
func runRun(ctx context.Context, p runParams) error {
	if p.format != "text" && p.format != "json" && p.format != "html" {
		return fmt.Errorf("invalid format %q: must be 'text', 'json', or 'html'", p.format)
	}

	results, err := runScenarios(ctx, p)
	if err != nil {
		return err
	}

	if p.interactive {
		return runInteractive(results)
	}
	if err := writeReport(p.stdout, p.format, results, p.verbose); err != nil {
		return err
	}
	return checkResults(results)
}

// writeReport outputs the run report in the requested format.
func writeReport(w io.Writer, format string, results []report.RunResult, verbose bool) error {
	switch format {
	case "json":
		return report.WriteJSON(w, results, version)
	case "html":
		return report.WriteHTML(w, results, version)
	default:
		return report.WriteTextOptions(w, results, report.TextOptions{Verbose: verbose})
	}
}

// checkResults returns an error if any scenario failed. Technical
// failures are named separately because they do not indicate a
// broken processor.
func checkResults(results []report.RunResult) error {
	sum := report.Summarize(results)
	if sum.Failed == 0 {
		return nil
	}
	technical := 0
	for _, r := range results {
		if r.Class == failure.ClassTechnical {
			technical++
		}
	}
	if technical > 0 {
		return fmt.Errorf("%d of %d scenario(s) failed (%d technical)", sum.Failed, sum.Total, technical)
	}
	return fmt.Errorf("%d of %d scenario(s) failed", sum.Failed, sum.Total)
}

func newRunCmd() *cobra.Command {
	var (
		configPath  string
		format      string
		jobs        int
		timeout     time.Duration
		options     []string
		verbose     bool
		interactive bool
		watch       bool
	)

	cmd := &cobra.Command{
		Use:   "run [paths...]",
		Short: "Run scenario archives",
		Long: `Run every *.txtar scenario found below the given files and
directories (default: the scenarios listed in .gencheck.yaml) and
report which passed.

Exits non-zero when any scenario fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, format, jobs, timeout)
			if err != nil {
				return err
			}
			logger.SetLevel(cfg.Level())
			if len(args) == 0 {
				args = cfg.Scenarios
			}
			p := runParams{
				paths:       args,
				format:      cfg.Format,
				jobs:        cfg.Jobs,
				timeout:     cfg.Timeout,
				options:     append(append([]string(nil), cfg.Options...), options...),
				modulePath:  cfg.ModulePath,
				verbose:     verbose,
				interactive: interactive,
				stdout:      cmd.OutOrStdout(),
				stderr:      cmd.ErrOrStderr(),
			}
			if watch {
				return runWatch(cmd.Context(), p)
			}
			return runRun(cmd.Context(), p)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "",
		"configuration file (default: "+config.FileName+" when present)")
	cmd.Flags().StringVar(&format, "format", "",
		"output format: text, json, or html (default from config: text)")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0,
		"scenarios run in parallel (default from config: 4)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0,
		"timeout per scenario (default from config: 2m)")
	cmd.Flags().StringArrayVarP(&options, "option", "A", nil,
		"processor option key=value passed to every scenario, repeatable")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false,
		"list diagnostics and artifacts of passed scenarios too")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false,
		"launch interactive TUI for browsing results")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false,
		"re-run when scenario files change")
	cmd.MarkFlagsMutuallyExclusive("interactive", "watch")

	return cmd
}

func newSchemaCmd() *cobra.Command {
	var scenarioSchema bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for gencheck run output",
		Long: `Print the JSON Schema (Draft 2020-12) that documents the
structure of gencheck run --format=json output. With --scenario,
print the schema scenario documents are validated against.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema := report.Schema
			if scenarioSchema {
				schema = scenario.Schema
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), schema)
			return err
		},
	}
	cmd.Flags().BoolVar(&scenarioSchema, "scenario", false,
		"print the scenario document schema instead")
	return cmd
}

func newProcessorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "processors",
		Short: "List the built-in processors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeProcessors(cmd.OutOrStdout())
		},
	}
}

func writeProcessors(w io.Writer) error {
	for _, name := range processors.Names() {
		if _, err := fmt.Fprintf(w, "%-10s %s\n", name, processors.Describe(name)); err != nil {
			return err
		}
	}
	return nil
}

func newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration and example scenarios",
		Long: `Write .gencheck.yaml and example scenarios under
testdata/scenarios into the current directory. Existing files are
kept unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := scaffold.Run(scaffold.Options{
				Force:   force,
				Version: version,
				Stdout:  cmd.OutOrStdout(),
			})
			return err
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	return cmd
}
