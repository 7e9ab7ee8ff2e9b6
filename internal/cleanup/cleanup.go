// Package cleanup wires the scanner, broker, lock resolver and worker pool
// into one run over a set of roots.
package cleanup

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rmx/internal/broker"
	"rmx/internal/config"
	"rmx/internal/fsops"
	"rmx/internal/locks"
	"rmx/internal/report"
	"rmx/internal/tree"
	"rmx/internal/worker"
)

// Hooks observe scheduling decisions; both are optional
type Hooks struct {
	OnReady  func(broker.Task)
	OnFanOut func(dir string, chunks int)
}

// Cleaner performs removal runs with structured logging
type Cleaner struct {
	cfg     config.WorkerConfig
	log     zerolog.Logger
	deleter fsops.Deleter
	lister  fsops.Lister
	procs   locks.ProcessManager
	hooks   Hooks
	sink    broker.Sink
	sleep   func(time.Duration)
}

// NewCleaner creates a Cleaner using the OS primitives
func NewCleaner(cfg config.WorkerConfig, log zerolog.Logger) *Cleaner {
	c := &Cleaner{
		cfg:     cfg,
		log:     log,
		deleter: fsops.OSDeleter{},
		lister:  fsops.OSLister{Sizes: cfg.CollectSizes},
	}
	if cfg.KillProcesses || cfg.UnlockOnly {
		c.procs = locks.NewProcessManager()
	}
	return c
}

// SetDeleter replaces the deletion primitive. It is ignored in dry-run mode.
func (c *Cleaner) SetDeleter(d fsops.Deleter) {
	c.deleter = d
}

// SetLister replaces the directory enumerator
func (c *Cleaner) SetLister(l fsops.Lister) {
	c.lister = l
}

// SetProcessManager replaces lock-holder discovery and termination
func (c *Cleaner) SetProcessManager(p locks.ProcessManager) {
	c.procs = p
}

// SetHooks installs scheduling observers
func (c *Cleaner) SetHooks(h Hooks) {
	c.hooks = h
}

// SetSink installs a live result observer, e.g. the metrics sink
func (c *Cleaner) SetSink(s broker.Sink) {
	c.sink = s
}

// SetRetrySleep replaces the pause between lock retries
func (c *Cleaner) SetRetrySleep(sleep func(time.Duration)) {
	c.sleep = sleep
}

// Run scans roots and removes them leaf-first. It always returns a complete
// report; failures are recorded per entry and never abort the run.
func (c *Cleaner) Run(ctx context.Context, roots []string) *report.Report {
	start := time.Now()
	runID := uuid.NewString()
	log := c.log.With().Str("run_id", runID).Logger()
	ctx = log.WithContext(ctx)

	workers := c.cfg.ThreadCount()
	deleter := c.deleter
	if c.cfg.DryRun {
		// dry-run contract: the same protocol, zero destructive calls
		deleter = fsops.NopDeleter{}
	}

	log.Debug().
		Strs("roots", roots).
		Int("workers", workers).
		Bool("dry_run", c.cfg.DryRun).
		Bool("unlock", c.cfg.UnlockOnly).
		Msg("run started")

	tr := tree.NewScanner(c.lister, tree.Options{
		Workers:       workers,
		IgnoreMissing: c.cfg.IgnoreErrors,
	}, log).Scan(roots)

	log.Debug().
		Int("dirs", len(tr.Nodes)).
		Int64("files", tr.Files).
		Int64("bytes", tr.Bytes).
		Dur("elapsed", time.Since(start)).
		Msg("scan complete")

	q := broker.NewQueue()
	b := broker.New(tr, q, broker.Options{OnReady: c.hooks.OnReady, Sink: c.sink})

	resolver := locks.NewResolver(c.procs, locks.Options{
		Policy:        c.cfg.Retry.Policy(),
		KillProcesses: c.cfg.KillProcesses && !c.cfg.DryRun,
		DryRun:        c.cfg.DryRun,
		Sleep:         c.sleep,
	}, log)

	pool := worker.NewPool(b, q, deleter, resolver, worker.Options{
		Size:         workers,
		OnFanOut:     c.hooks.OnFanOut,
		DryRun:       c.cfg.DryRun,
		UnlockOnly:   c.cfg.UnlockOnly,
		Verbose:      c.cfg.Verbose,
		IgnoreErrors: c.cfg.IgnoreErrors,
	})

	b.Seed()
	pool.Run(ctx)
	b.Wait()

	rep := b.Report(time.Since(start))
	rep.RunID = runID
	rep.Roots = roots
	rep.DryRun = c.cfg.DryRun
	rep.UnlockOnly = c.cfg.UnlockOnly

	log.Debug().
		Int64("removed", rep.Stats.Removed()).
		Int("errors", len(rep.Errors)).
		Dur("elapsed", rep.Stats.Elapsed).
		Msg("run complete")
	return rep
}
