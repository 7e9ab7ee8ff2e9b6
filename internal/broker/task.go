package broker

import (
	"rmx/internal/report"
	"rmx/internal/tree"
)

// TaskKind says what a worker must do with a Task
type TaskKind int

const (
	// RemoveDir removes Node's directory; every child is already terminal
	RemoveDir TaskKind = iota
	// RemoveEntry removes a single file or link given as a root
	RemoveEntry
	// RemoveBatch removes Node's direct files and links
	RemoveBatch
)

func (k TaskKind) String() string {
	switch k {
	case RemoveDir:
		return "dir"
	case RemoveEntry:
		return "entry"
	case RemoveBatch:
		return "batch"
	}
	return "unknown"
}

// Task is an immutable unit of work
type Task struct {
	Kind    TaskKind
	Node    *tree.Node
	Entry   tree.Entry
	Entries []tree.Entry
}

// Path names the filesystem object the task targets
func (t Task) Path() string {
	if t.Kind == RemoveEntry {
		return t.Entry.Path
	}
	return t.Node.Path
}

// Result is what a worker reports for one task
type Result struct {
	FilesRemoved int64
	LinksRemoved int64
	DirsRemoved  int64
	Bytes        int64
	Retries      int64
	Killed       int64
	AlreadyGone  int64
	Unlocked     int64
	Failures     []report.ErrorRecord
}

// Merge folds o into r
func (r *Result) Merge(o Result) {
	r.FilesRemoved += o.FilesRemoved
	r.LinksRemoved += o.LinksRemoved
	r.DirsRemoved += o.DirsRemoved
	r.Bytes += o.Bytes
	r.Retries += o.Retries
	r.Killed += o.Killed
	r.AlreadyGone += o.AlreadyGone
	r.Unlocked += o.Unlocked
	r.Failures = append(r.Failures, o.Failures...)
}
