package broker

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rmx/internal/report"
	"rmx/internal/tree"
)

func files(dir string, n int) []tree.Entry {
	out := make([]tree.Entry, n)
	for i := range out {
		out[i] = tree.Entry{Path: fmt.Sprintf("%s/f%d", dir, i), Size: 10}
	}
	return out
}

// drain pops and completes tasks on one goroutine, returning them in order
func drain(t *testing.T, b *Broker, q *Queue, resultFor func(Task) Result) []Task {
	t.Helper()
	var done []Task
	for {
		task, ok := q.Pop()
		if !ok {
			return done
		}
		done = append(done, task)
		res := Result{}
		if resultFor != nil {
			res = resultFor(task)
		}
		b.Complete(task, res)
	}
}

func indexOf(tasks []Task, kind TaskKind, path string) int {
	for i, task := range tasks {
		if task.Kind == kind && task.Path() == path {
			return i
		}
	}
	return -1
}

func TestQueue(t *testing.T) {
	q := NewQueue()
	assert.True(t, q.Push(Task{Kind: RemoveEntry, Entry: tree.Entry{Path: "a"}}))
	assert.True(t, q.Push(Task{Kind: RemoveEntry, Entry: tree.Entry{Path: "b"}}))
	assert.Equal(t, 2, q.Len())

	got, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", got.Path())

	q.Close()
	assert.False(t, q.Push(Task{Kind: RemoveEntry}))

	got, ok = q.Pop()
	require.True(t, ok, "queued tasks survive Close")
	assert.Equal(t, "b", got.Path())

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := NewQueue()
	popped := make(chan Task, 1)
	go func() {
		task, _ := q.Pop()
		popped <- task
	}()

	select {
	case <-popped:
		t.Fatal("Pop returned on an empty open queue")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push(Task{Kind: RemoveEntry, Entry: tree.Entry{Path: "late"}})
	select {
	case task := <-popped:
		assert.Equal(t, "late", task.Path())
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake up")
	}
}

func TestTwoLeafDirectoriesRemovedBeforeRoot(t *testing.T) {
	tr := &tree.Tree{}
	r := tr.Add("/r", tree.NoParent)
	tr.Add("/r/a", r.ID, files("/r/a", 3)...)
	tr.Add("/r/b", r.ID, files("/r/b", 3)...)

	q := NewQueue()
	b := New(tr, q, Options{})
	b.Seed()

	tasks := drain(t, b, q, func(task Task) Result {
		if task.Kind == RemoveBatch {
			return Result{FilesRemoved: int64(len(task.Entries)), Bytes: 30}
		}
		return Result{DirsRemoved: 1}
	})

	require.Len(t, tasks, 5)
	for _, dir := range []string{"/r/a", "/r/b"} {
		batch := indexOf(tasks, RemoveBatch, dir)
		rm := indexOf(tasks, RemoveDir, dir)
		require.NotEqual(t, -1, batch)
		require.NotEqual(t, -1, rm)
		assert.Less(t, batch, rm, "%s removed before its files", dir)
	}
	assert.Equal(t, len(tasks)-1, indexOf(tasks, RemoveDir, "/r"), "root must be last")

	stats := b.Stats()
	assert.Equal(t, int64(6), stats.FilesRemoved)
	assert.Equal(t, int64(3), stats.DirsRemoved)
	assert.Equal(t, int64(60), stats.Bytes)
	assert.Zero(t, b.Outstanding())

	select {
	case <-b.Done():
	default:
		t.Fatal("broker not finished")
	}
}

func TestEmptyTreeFinishesImmediately(t *testing.T) {
	q := NewQueue()
	b := New(&tree.Tree{}, q, Options{})
	b.Seed()
	b.Wait()
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestSinglesAndScanFailures(t *testing.T) {
	tr := &tree.Tree{
		Singles:  []tree.Entry{{Path: "/x.txt", Size: 4}, {Path: "/lnk", Link: true}},
		Failures: []report.ErrorRecord{{Path: "/missing", Kind: report.KindNotFound}},
	}
	q := NewQueue()
	b := New(tr, q, Options{})
	b.Seed()

	tasks := drain(t, b, q, func(task Task) Result {
		if task.Entry.Link {
			return Result{LinksRemoved: 1}
		}
		return Result{FilesRemoved: 1, Bytes: task.Entry.Size}
	})
	require.Len(t, tasks, 2)
	for _, task := range tasks {
		assert.Equal(t, RemoveEntry, task.Kind)
	}

	rep := b.Report(time.Second)
	assert.Equal(t, int64(1), rep.Stats.FilesRemoved)
	assert.Equal(t, int64(1), rep.Stats.LinksRemoved)
	assert.Equal(t, time.Second, rep.Stats.Elapsed)
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, "/missing", rep.Errors[0].Path)
}

func TestFailedChildStillReleasesParent(t *testing.T) {
	tr := &tree.Tree{}
	r := tr.Add("/r", tree.NoParent)
	tr.Add("/r/stuck", r.ID, files("/r/stuck", 1)...)

	q := NewQueue()
	b := New(tr, q, Options{})
	b.Seed()

	tasks := drain(t, b, q, func(task Task) Result {
		if task.Path() == "/r/stuck" && task.Kind == RemoveBatch {
			return Result{Failures: []report.ErrorRecord{{
				Path: "/r/stuck/f0", Kind: report.KindTransientLock, Exhausted: true,
			}}}
		}
		if task.Path() == "/r/stuck" {
			return Result{Failures: []report.ErrorRecord{{
				Path: "/r/stuck", Kind: report.KindNotEmpty, IsDir: true,
			}}}
		}
		if task.Path() == "/r" {
			return Result{Failures: []report.ErrorRecord{{
				Path: "/r", Kind: report.KindNotEmpty, IsDir: true,
			}}}
		}
		return Result{}
	})

	assert.Equal(t, len(tasks)-1, indexOf(tasks, RemoveDir, "/r"))
	rep := b.Report(0)
	require.Len(t, rep.Errors, 3)
	assert.Equal(t, []string{"/r", "/r/stuck", "/r/stuck/f0"},
		[]string{rep.Errors[0].Path, rep.Errors[1].Path, rep.Errors[2].Path})
}

type countingSink struct {
	mu    sync.Mutex
	files int64
	calls int
}

func (s *countingSink) Observe(res Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files += res.FilesRemoved
	s.calls++
}

func TestDeepTreeConcurrentWorkers(t *testing.T) {
	tr := &tree.Tree{}
	var build func(path string, parent, level int)
	build = func(path string, parent, level int) {
		n := tr.Add(path, parent, files(path, 2)...)
		if level == 4 {
			return
		}
		for i := 0; i < 3; i++ {
			build(fmt.Sprintf("%s/d%d", path, i), n.ID, level+1)
		}
	}
	build("/root", tree.NoParent, 0)

	var (
		orderMu sync.Mutex
		removed = make(map[string]bool)
		ready   []Task
	)
	sink := &countingSink{}
	q := NewQueue()
	b := New(tr, q, Options{
		Sink: sink,
		OnReady: func(task Task) {
			orderMu.Lock()
			ready = append(ready, task)
			orderMu.Unlock()
		},
	})
	b.Seed()

	var wg sync.WaitGroup
	var violations []string
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				task, ok := q.Pop()
				if !ok {
					return
				}
				res := Result{}
				switch task.Kind {
				case RemoveBatch:
					res.FilesRemoved = int64(len(task.Entries))
				case RemoveDir:
					orderMu.Lock()
					for _, n := range tr.Nodes {
						if n.Parent == task.Node.ID && !removed[n.Path] {
							violations = append(violations, task.Node.Path)
						}
					}
					removed[task.Node.Path] = true
					orderMu.Unlock()
					res.DirsRemoved = 1
				}
				b.Complete(task, res)
			}
		}()
	}

	select {
	case <-b.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("broker never finished")
	}
	wg.Wait()

	assert.Empty(t, violations, "directories removed before their children")
	assert.Len(t, removed, len(tr.Nodes))
	assert.Equal(t, int64(len(tr.Nodes)), b.Stats().DirsRemoved)
	assert.Equal(t, tr.Files, b.Stats().FilesRemoved)
	assert.Equal(t, tr.Files, sink.files)
	assert.Len(t, ready, 2*len(tr.Nodes))
}
