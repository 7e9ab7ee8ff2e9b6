package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Kind classifies why a single entry could not be processed
type Kind int

const (
	KindOther Kind = iota
	KindTransientLock
	KindPermissionDenied
	KindNotFound
	KindEnumerationFailure
	KindProcessTerminationFailure
	KindNotEmpty
	KindMountPoint
)

var kindNames = map[Kind]string{
	KindOther:                     "other",
	KindTransientLock:             "transient_lock",
	KindPermissionDenied:          "permission_denied",
	KindNotFound:                  "not_found",
	KindEnumerationFailure:        "enumeration_failure",
	KindProcessTerminationFailure: "process_termination_failure",
	KindNotEmpty:                  "not_empty",
	KindMountPoint:                "mount_point",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Kinds lists every kind, used to pre-populate labelled metrics
func Kinds() []Kind {
	return []Kind{
		KindOther,
		KindTransientLock,
		KindPermissionDenied,
		KindNotFound,
		KindEnumerationFailure,
		KindProcessTerminationFailure,
		KindNotEmpty,
		KindMountPoint,
	}
}

// ErrorRecord describes one permanent failure
type ErrorRecord struct {
	Path      string
	Kind      Kind
	Code      int  // OS status code, 0 when unknown
	Exhausted bool // retries were used up before giving up
	IsDir     bool
	Message   string
}

func (e ErrorRecord) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Path, e.Kind)
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Exhausted {
		b.WriteString(" (retries exhausted)")
	}
	return b.String()
}

// RunStats holds the counters accumulated over one run
type RunStats struct {
	FilesRemoved        int64
	DirsRemoved         int64
	LinksRemoved        int64
	Bytes               int64
	Retries             int64
	ProcessesTerminated int64
	AlreadyGone         int64 // vanished before we got to them
	Unlocked            int64 // entries visited in unlock-only mode
	Elapsed             time.Duration
}

// Removed is the number of namespace entries removed
func (s RunStats) Removed() int64 {
	return s.FilesRemoved + s.DirsRemoved + s.LinksRemoved
}

// Report is handed back to the caller once every node is terminal
type Report struct {
	RunID      string
	Roots      []string
	DryRun     bool
	UnlockOnly bool
	Stats      RunStats
	Errors     []ErrorRecord
}

// Failed reports whether any permanent failure was recorded
func (r *Report) Failed() bool {
	return len(r.Errors) > 0
}

// SortErrors orders the error list by path, then kind
func (r *Report) SortErrors() {
	sort.SliceStable(r.Errors, func(i, j int) bool {
		if r.Errors[i].Path != r.Errors[j].Path {
			return r.Errors[i].Path < r.Errors[j].Path
		}
		return r.Errors[i].Kind < r.Errors[j].Kind
	})
}

// CountByKind tallies errors per kind
func (r *Report) CountByKind() map[Kind]int {
	out := make(map[Kind]int)
	for _, e := range r.Errors {
		out[e.Kind]++
	}
	return out
}

// Summary renders the --stats block
func (r *Report) Summary() string {
	s := r.Stats
	var b strings.Builder

	verb := "Removed"
	switch {
	case r.UnlockOnly:
		verb = "Unlocked"
	case r.DryRun:
		verb = "Would remove"
	}

	fmt.Fprintf(&b, "%s:\n", verb)
	if r.UnlockOnly {
		fmt.Fprintf(&b, "  Entries:     %s\n", humanize.Comma(s.Unlocked))
	} else {
		fmt.Fprintf(&b, "  Directories: %s\n", humanize.Comma(s.DirsRemoved))
		fmt.Fprintf(&b, "  Files:       %s\n", humanize.Comma(s.FilesRemoved))
		if s.LinksRemoved > 0 {
			fmt.Fprintf(&b, "  Links:       %s\n", humanize.Comma(s.LinksRemoved))
		}
		fmt.Fprintf(&b, "  Total:       %s\n", humanize.Comma(s.Removed()))
		if s.Bytes > 0 {
			fmt.Fprintf(&b, "  Size:        %s\n", humanize.IBytes(uint64(s.Bytes)))
		}
	}
	fmt.Fprintf(&b, "  Time:        %s\n", s.Elapsed.Round(time.Millisecond))
	if secs := s.Elapsed.Seconds(); secs > 0 && s.Removed() > 0 {
		fmt.Fprintf(&b, "  Throughput:  %s items/s\n", humanize.CommafWithDigits(float64(s.Removed())/secs, 0))
	}
	if s.Retries > 0 {
		fmt.Fprintf(&b, "  Retries:     %s\n", humanize.Comma(s.Retries))
	}
	if s.ProcessesTerminated > 0 {
		fmt.Fprintf(&b, "  Killed:      %d process(es)\n", s.ProcessesTerminated)
	}
	if s.AlreadyGone > 0 {
		fmt.Fprintf(&b, "  Vanished:    %s\n", humanize.Comma(s.AlreadyGone))
	}
	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "  Failed:      %s\n", humanize.Comma(int64(len(r.Errors))))
	}
	return b.String()
}
