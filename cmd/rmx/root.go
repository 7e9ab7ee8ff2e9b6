package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"rmx/internal/cleanup"
	"rmx/internal/config"
	"rmx/internal/exitcodes"
	"rmx/internal/logging"
	"rmx/internal/metrics"
	"rmx/internal/report"
	"rmx/internal/safety"
)

type options struct {
	recursive      bool
	recursiveAlias bool
	force          bool
	threads        int
	dryRun         bool
	verbose        int
	stats          bool
	noPreserveRoot bool
	killProcesses  bool
	unlock         bool

	configPath  string
	logLevel    string
	logFile     string
	metricsAddr string
}

// exitError carries the process exit code out of RunE. A nil err means the
// details were already printed.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "rmx [flags] PATH...",
		Short: "Remove files and directory trees in parallel",
		Long: `rmx removes files and directories using a pool of workers.

Directory trees are scanned first, then deleted leaf-first: a directory is
removed only after everything beneath it is gone. Entries held open by other
processes are retried, and with --kill-processes the holders are terminated.`,
		Example: `  rmx file.txt
  rmx -rf ./node_modules
  rmx -rn --stats ./target
  rmx --unlock ./build`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts, args)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.BoolVarP(&opts.recursive, "recursive", "r", false, "remove directories and their contents recursively")
	f.BoolVarP(&opts.recursiveAlias, "recursive-alias", "R", false, "same as -r")
	_ = f.MarkHidden("recursive-alias")
	f.BoolVarP(&opts.force, "force", "f", false, "ignore nonexistent files and keep quiet about failures")
	f.IntVarP(&opts.threads, "threads", "t", 0, "number of worker threads (default: number of CPUs)")
	f.BoolVarP(&opts.dryRun, "dry-run", "n", false, "show what would be removed without removing anything")
	f.CountVarP(&opts.verbose, "verbose", "v", "log every removed entry; repeat for debug logging")
	f.BoolVar(&opts.stats, "stats", false, "print a summary when done")
	f.BoolVar(&opts.noPreserveRoot, "no-preserve-root", false, "do not refuse system directories")
	f.BoolVar(&opts.killProcesses, "kill-processes", false, "terminate processes that keep entries locked")
	f.BoolVar(&opts.unlock, "unlock", false, "terminate lock holders without removing anything")
	f.StringVar(&opts.configPath, "config", "", "path to a YAML configuration file")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.StringVar(&opts.logFile, "log-file", "", "also write JSON logs to this file")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")

	return cmd
}

// run executes the command line and maps the outcome to an exit code
func run(args []string, stdout, stderr io.Writer) int {
	if args == nil {
		// cobra falls back to os.Args on nil
		args = []string{}
	}
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		return exitcodes.Success
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "rmx: %v\n", ee.err)
		}
		return ee.code
	}

	// flag and argument errors from cobra
	fmt.Fprintf(stderr, "rmx: %v\n", err)
	fmt.Fprintln(stderr, "Try 'rmx --help' for more information.")
	return exitcodes.InvalidUsage
}

func execute(cmd *cobra.Command, opts *options, args []string) error {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return &exitError{code: exitcodes.InvalidUsage, err: err}
	}
	wcfg, err := applyFlags(cmd.Flags(), opts, cfg)
	if err != nil {
		return &exitError{code: exitcodes.InvalidUsage, err: err}
	}

	log, closer, err := logging.New(cfg.Logging, stderr)
	if err != nil {
		return &exitError{code: exitcodes.RuntimeError, err: err}
	}
	defer closer.Close()

	roots, skipped, err := selectRoots(opts, cfg, args, stderr)
	if err != nil {
		return err
	}

	cleaner := cleanup.NewCleaner(wcfg, log)
	if cfg.Metrics.Addr != "" {
		if err := metrics.StartServer(cfg.Metrics.Addr, log); err != nil {
			return &exitError{code: exitcodes.RuntimeError, err: err}
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metrics.Shutdown(ctx, log)
		}()

		cleaner.SetSink(metrics.NewSink())
		cleaner.SetHooks(cleanup.Hooks{
			OnFanOut: func(string, int) { metrics.RecordFanOut() },
		})
		metrics.SetRunMode(runMode(wcfg))
		metrics.SetActiveWorkers(wcfg.ThreadCount())
		for range skipped {
			metrics.RecordError(report.KindOther)
		}
	}

	var rep *report.Report
	if len(roots) > 0 {
		rep = cleaner.Run(context.Background(), roots)
	} else {
		rep = &report.Report{DryRun: wcfg.DryRun, UnlockOnly: wcfg.UnlockOnly}
	}

	if cfg.Metrics.Addr != "" {
		metrics.SetActiveWorkers(0)
		metrics.RecordRun(rep.Stats.Elapsed)
	}

	for _, rec := range rep.Errors {
		fmt.Fprintf(stderr, "rmx: cannot remove '%s': %s\n", rec.Path, describe(rec))
	}
	if opts.stats {
		fmt.Fprintln(stdout)
		fmt.Fprint(stdout, rep.Summary())
	}

	if rep.Failed() || skipped > 0 {
		return &exitError{code: exitcodes.PartialFailure}
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(afero.NewOsFs(), path)
}

// applyFlags lays the command line over the file configuration
func applyFlags(flags *pflag.FlagSet, opts *options, cfg *config.Config) (config.WorkerConfig, error) {
	if flags.Changed("threads") {
		if opts.threads < 0 {
			return config.WorkerConfig{}, fmt.Errorf("invalid thread count: %d", opts.threads)
		}
		cfg.Threads = opts.threads
	}
	if opts.killProcesses {
		cfg.KillProcesses = true
	}
	if opts.force {
		cfg.IgnoreErrors = true
	}

	switch {
	case opts.logLevel != "":
		if _, err := zerolog.ParseLevel(opts.logLevel); err != nil {
			return config.WorkerConfig{}, fmt.Errorf("invalid log level %q", opts.logLevel)
		}
		cfg.Logging.Level = opts.logLevel
	case opts.verbose > 1:
		cfg.Logging.Level = "debug"
	}
	if opts.logFile != "" {
		abs, err := filepath.Abs(opts.logFile)
		if err != nil {
			return config.WorkerConfig{}, fmt.Errorf("log file: %w", err)
		}
		cfg.Logging.File = abs
	}
	if opts.metricsAddr != "" {
		cfg.Metrics.Addr = opts.metricsAddr
	}

	w := cfg.Worker()
	w.Verbose = opts.verbose > 0
	w.DryRun = opts.dryRun
	w.UnlockOnly = opts.unlock
	// sizes cost one lstat per file on Unix
	w.CollectSizes = opts.stats || cfg.Metrics.Addr != ""
	return w, nil
}

// selectRoots applies the safety policy and the -r rule to the operands.
// A protected root aborts the whole run before anything is scanned; a
// directory given without -r is reported and skipped.
func selectRoots(opts *options, cfg *config.Config, args []string, stderr io.Writer) ([]string, int, error) {
	recursive := opts.recursive || opts.recursiveAlias
	validator := safety.NewValidator(cfg.ProtectedPaths)

	roots := make([]string, 0, len(args))
	skipped := 0
	for _, path := range args {
		info, statErr := os.Lstat(path)
		isDir := statErr == nil && info.IsDir()

		if !opts.unlock && !opts.noPreserveRoot {
			if err := validator.ValidateRoot(path); err != nil {
				switch {
				case errors.Is(err, safety.ErrContainsCwd):
					if !opts.force {
						fmt.Fprintf(stderr, "rmx: warning: %v\n", err)
					}
				case errors.Is(err, safety.ErrProtectedPath):
					return nil, 0, &exitError{
						code: exitcodes.SafetyViolation,
						err:  fmt.Errorf("refusing to remove '%s': %w (use --no-preserve-root to override)", path, err),
					}
				default:
					return nil, 0, &exitError{code: exitcodes.InvalidUsage, err: err}
				}
			}
		}

		if isDir && !recursive && !opts.unlock {
			fmt.Fprintf(stderr, "rmx: cannot remove '%s': Is a directory (use -r to remove)\n", path)
			skipped++
			continue
		}
		roots = append(roots, path)
	}
	return roots, skipped, nil
}

func runMode(w config.WorkerConfig) string {
	switch {
	case w.UnlockOnly:
		return "unlock"
	case w.DryRun:
		return "dry_run"
	default:
		return "delete"
	}
}

func describe(rec report.ErrorRecord) string {
	msg := rec.Kind.String()
	if rec.Message != "" {
		msg = rec.Message
	}
	if rec.Exhausted {
		msg += " (still locked after retries)"
	}
	return msg
}
