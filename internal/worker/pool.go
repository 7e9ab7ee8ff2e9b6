// Package worker runs the fixed goroutine pool that drains the broker queue.
package worker

import (
	"context"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"rmx/internal/broker"
	"rmx/internal/fsops"
	"rmx/internal/locks"
	"rmx/internal/report"
	"rmx/internal/tree"
)

// Options configures a Pool
type Options struct {
	// Size is the number of workers, runtime.NumCPU() when zero
	Size int
	// FanOutThreshold overrides the batch split size derived from Size
	FanOutThreshold int
	// OnFanOut is told every time a batch is split
	OnFanOut func(dir string, chunks int)

	DryRun       bool
	UnlockOnly   bool
	Verbose      bool
	IgnoreErrors bool
}

// Pool pops tasks, runs them through the lock resolver and reports every
// outcome to the broker exactly once
type Pool struct {
	broker   *broker.Broker
	queue    *broker.Queue
	deleter  fsops.Deleter
	resolver *locks.Resolver
	opts     Options
}

// FanOutThreshold is the batch size above which a directory's files are
// removed concurrently. Larger pools split smaller batches.
func FanOutThreshold(workers int) int {
	switch {
	case workers >= 32:
		return 8
	case workers >= 16:
		return 12
	case workers >= 8:
		return 16
	case workers >= 4:
		return 20
	default:
		return 24
	}
}

// NewPool creates a pool over q whose results go to b
func NewPool(b *broker.Broker, q *broker.Queue, d fsops.Deleter, r *locks.Resolver, opts Options) *Pool {
	if opts.Size <= 0 {
		opts.Size = runtime.NumCPU()
	}
	if opts.FanOutThreshold <= 0 {
		opts.FanOutThreshold = FanOutThreshold(opts.Size)
	}
	return &Pool{broker: b, queue: q, deleter: d, resolver: r, opts: opts}
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.opts.Size
}

// Run starts the workers and blocks until the queue is closed and empty.
// ctx supplies the logger; tasks already popped are never abandoned.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.opts.Size; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.work(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) work(ctx context.Context, id int) {
	log := zerolog.Ctx(ctx).With().Int("worker", id).Logger()
	for {
		task, ok := p.queue.Pop()
		if !ok {
			return
		}
		p.broker.Complete(task, p.execute(&log, task))
	}
}

func (p *Pool) execute(log *zerolog.Logger, task broker.Task) broker.Result {
	switch task.Kind {
	case broker.RemoveBatch:
		return p.batch(log, task.Node.Path, task.Entries)
	case broker.RemoveEntry:
		return p.entry(log, task.Entry)
	case broker.RemoveDir:
		return p.dir(log, task.Node.Path)
	}
	log.Error().Str("kind", task.Kind.String()).Msg("unknown task kind")
	return broker.Result{}
}

func (p *Pool) batch(log *zerolog.Logger, dir string, entries []tree.Entry) broker.Result {
	// only a batch larger than the threshold splits into two or more chunks
	if len(entries) <= p.opts.FanOutThreshold {
		var res broker.Result
		for _, e := range entries {
			res.Merge(p.entry(log, e))
		}
		return res
	}

	chunks := chunk(entries, p.opts.FanOutThreshold)
	if p.opts.OnFanOut != nil {
		p.opts.OnFanOut(dir, len(chunks))
	}
	log.Debug().Str("path", dir).Int("entries", len(entries)).Int("chunks", len(chunks)).Msg("splitting batch")

	var (
		mu  sync.Mutex
		res broker.Result
		g   errgroup.Group
	)
	g.SetLimit(p.opts.Size)
	for _, c := range chunks {
		c := c
		g.Go(func() error {
			var part broker.Result
			for _, e := range c {
				part.Merge(p.entry(log, e))
			}
			mu.Lock()
			res.Merge(part)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return res
}

func (p *Pool) entry(log *zerolog.Logger, e tree.Entry) broker.Result {
	if p.opts.UnlockOnly {
		if e.Link {
			// a link holds nothing of its own; its target is outside the run
			return broker.Result{Unlocked: 1}
		}
		return p.unlock(log, e.Path, false)
	}

	remove := p.resolver.Remove
	if e.Link {
		remove = p.resolver.RemoveLink
	}
	out := remove(e.Path, p.deleter.RemoveFile)
	res := outcomeResult(out)
	switch {
	case out.OK():
		if e.Link {
			res.LinksRemoved++
		} else {
			res.FilesRemoved++
			res.Bytes += e.Size
		}
		p.removed(log, e.Path, e.Size)
	case out.Kind == report.KindNotFound:
		res.AlreadyGone++
		log.Debug().Str("path", e.Path).Msg("already gone")
	default:
		res.Failures = append(res.Failures, p.failed(log, out.Record(e.Path, false)))
	}
	return res
}

func (p *Pool) dir(log *zerolog.Logger, path string) broker.Result {
	if p.opts.UnlockOnly {
		return p.unlock(log, path, true)
	}

	out := p.resolver.Remove(path, p.deleter.RemoveDir)
	res := outcomeResult(out)
	switch {
	case out.OK():
		res.DirsRemoved++
		p.removed(log, path, -1)
	case out.Kind == report.KindNotFound:
		res.AlreadyGone++
		log.Debug().Str("path", path).Msg("directory already gone")
	default:
		res.Failures = append(res.Failures, p.failed(log, out.Record(path, true)))
	}
	return res
}

func (p *Pool) unlock(log *zerolog.Logger, path string, isDir bool) broker.Result {
	out := p.resolver.Unlock(path)
	res := outcomeResult(out)
	for i := range res.Failures {
		res.Failures[i].IsDir = isDir
		p.failed(log, res.Failures[i])
	}
	if len(out.TermFailures) == 0 {
		res.Unlocked++
	}
	if out.Killed > 0 {
		log.Info().Str("path", path).Int("terminated", out.Killed).Msg("unlocked")
	}
	return res
}

func outcomeResult(out locks.Outcome) broker.Result {
	return broker.Result{
		Retries:  int64(out.Retries),
		Killed:   int64(out.Killed),
		Failures: out.TermFailures,
	}
}

func (p *Pool) removed(log *zerolog.Logger, path string, size int64) {
	ev := log.Debug()
	if p.opts.Verbose {
		ev = log.Info()
	}
	if size >= 0 {
		ev = ev.Int64("size", size)
	}
	msg := "removed"
	if p.opts.DryRun {
		msg = "would remove"
	}
	ev.Str("path", path).Msg(msg)
}

func (p *Pool) failed(log *zerolog.Logger, rec report.ErrorRecord) report.ErrorRecord {
	ev := log.Warn()
	if p.opts.IgnoreErrors {
		ev = log.Debug()
	}
	ev.Str("path", rec.Path).
		Str("kind", rec.Kind.String()).
		Int("code", rec.Code).
		Bool("exhausted", rec.Exhausted).
		Msg(rec.Message)
	return rec
}

func chunk(entries []tree.Entry, size int) [][]tree.Entry {
	out := make([][]tree.Entry, 0, (len(entries)+size-1)/size)
	for len(entries) > size {
		out = append(out, entries[:size])
		entries = entries[size:]
	}
	if len(entries) > 0 {
		out = append(out, entries)
	}
	return out
}
