// Package broker schedules bottom-up removal of a scanned forest.
//
// Every directory node carries a two-condition gate: its own files and
// links must be drained, and its pending-children counter must reach zero.
// Whichever condition is satisfied last enqueues the directory's removal,
// so no global lock orders the pool. A count of outstanding items (nodes
// plus standalone roots) reaching zero closes the queue and ends the run.
package broker

import (
	"sync"
	"sync/atomic"
	"time"

	"rmx/internal/report"
	"rmx/internal/tree"
)

// Sink receives every result as it is accounted, e.g. for live metrics
type Sink interface {
	Observe(res Result)
}

// Options carries optional observers
type Options struct {
	// OnReady sees every task as it is enqueued
	OnReady func(Task)
	Sink    Sink
}

// Broker owns the dependency state, the error list and the run counters
type Broker struct {
	tree  *tree.Tree
	queue *Queue
	opts  Options

	nodes       sync.Map // node ID -> *tree.Node, removed once terminal
	gates       []atomic.Int32
	outstanding atomic.Int64
	done        chan struct{}
	finishOnce  sync.Once

	filesRemoved atomic.Int64
	linksRemoved atomic.Int64
	dirsRemoved  atomic.Int64
	bytes        atomic.Int64
	retries      atomic.Int64
	killed       atomic.Int64
	alreadyGone  atomic.Int64
	unlocked     atomic.Int64

	errMu sync.Mutex
	errs  []report.ErrorRecord
}

// New creates a broker for t that feeds q
func New(t *tree.Tree, q *Queue, opts Options) *Broker {
	b := &Broker{
		tree:  t,
		queue: q,
		opts:  opts,
		gates: make([]atomic.Int32, len(t.Nodes)),
		done:  make(chan struct{}),
	}
	for _, n := range t.Nodes {
		b.nodes.Store(n.ID, n)
		b.gates[n.ID].Store(2)
	}
	return b
}

// Seed enqueues everything that has no ordering dependency: the file and
// link batches of every node, standalone roots, and the removal of every
// directory that is already empty of both entries and subdirectories.
func (b *Broker) Seed() {
	for _, rec := range b.tree.Failures {
		b.fail(rec)
	}

	b.outstanding.Store(int64(b.tree.Len()))
	if b.tree.Len() == 0 {
		b.finish()
		return
	}

	for _, e := range b.tree.Singles {
		b.push(Task{Kind: RemoveEntry, Entry: e})
	}
	for _, n := range b.tree.Nodes {
		if entries := n.Entries(); len(entries) > 0 {
			b.push(Task{Kind: RemoveBatch, Node: n, Entries: entries})
		} else {
			b.release(n)
		}
		if n.Subdirs == 0 {
			b.release(n)
		}
	}
}

// Complete accounts res and advances the dependency state for task.
// Workers call it exactly once per popped task, whatever the outcome.
func (b *Broker) Complete(task Task, res Result) {
	b.account(res)

	switch task.Kind {
	case RemoveBatch:
		b.release(task.Node)
	case RemoveDir:
		// removed or permanently failed: either way the parent stops waiting
		b.nodes.Delete(task.Node.ID)
		if task.Node.Parent != tree.NoParent {
			if v, ok := b.nodes.Load(task.Node.Parent); ok {
				parent := v.(*tree.Node)
				if parent.ChildDone() {
					b.release(parent)
				}
			}
		}
		b.settle()
	case RemoveEntry:
		b.settle()
	}
}

// Done is closed when every item reached a terminal state
func (b *Broker) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the run is complete
func (b *Broker) Wait() {
	<-b.done
}

// Outstanding returns the number of nodes and roots not yet terminal
func (b *Broker) Outstanding() int64 {
	return b.outstanding.Load()
}

// Stats snapshots the counters
func (b *Broker) Stats() report.RunStats {
	return report.RunStats{
		FilesRemoved:        b.filesRemoved.Load(),
		LinksRemoved:        b.linksRemoved.Load(),
		DirsRemoved:         b.dirsRemoved.Load(),
		Bytes:               b.bytes.Load(),
		Retries:             b.retries.Load(),
		ProcessesTerminated: b.killed.Load(),
		AlreadyGone:         b.alreadyGone.Load(),
		Unlocked:            b.unlocked.Load(),
	}
}

// Report hands the accumulated stats and errors over to the caller
func (b *Broker) Report(elapsed time.Duration) *report.Report {
	stats := b.Stats()
	stats.Elapsed = elapsed

	b.errMu.Lock()
	errs := b.errs
	b.errs = nil
	b.errMu.Unlock()

	r := &report.Report{Stats: stats, Errors: errs}
	r.SortErrors()
	return r
}

func (b *Broker) release(n *tree.Node) {
	if b.gates[n.ID].Add(-1) == 0 {
		b.push(Task{Kind: RemoveDir, Node: n})
	}
}

func (b *Broker) push(t Task) {
	if b.opts.OnReady != nil {
		b.opts.OnReady(t)
	}
	b.queue.Push(t)
}

func (b *Broker) settle() {
	if b.outstanding.Add(-1) == 0 {
		b.finish()
	}
}

func (b *Broker) finish() {
	b.finishOnce.Do(func() {
		b.queue.Close()
		close(b.done)
	})
}

func (b *Broker) account(res Result) {
	b.filesRemoved.Add(res.FilesRemoved)
	b.linksRemoved.Add(res.LinksRemoved)
	b.dirsRemoved.Add(res.DirsRemoved)
	b.bytes.Add(res.Bytes)
	b.retries.Add(res.Retries)
	b.killed.Add(res.Killed)
	b.alreadyGone.Add(res.AlreadyGone)
	b.unlocked.Add(res.Unlocked)
	for _, rec := range res.Failures {
		b.fail(rec)
	}
	if b.opts.Sink != nil {
		b.opts.Sink.Observe(res)
	}
}

func (b *Broker) fail(rec report.ErrorRecord) {
	b.errMu.Lock()
	b.errs = append(b.errs, rec)
	b.errMu.Unlock()
}
