// Package locks retries deletions that fail because another process holds
// the entry open, and can terminate those processes as a last resort.
package locks

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"rmx/internal/fsops"
	"rmx/internal/report"
)

// DefaultSettleDelay is the pause between killing holders and the final attempt
const DefaultSettleDelay = 50 * time.Millisecond

// Op is one deletion attempt, normally Deleter.RemoveFile or RemoveDir
type Op func(path string) error

// Options configures a Resolver
type Options struct {
	Policy Policy
	// KillProcesses terminates lock holders once retries are exhausted
	KillProcesses bool
	// DryRun makes Unlock only list holders
	DryRun      bool
	SettleDelay time.Duration
	// Sleep replaces time.Sleep in tests
	Sleep func(time.Duration)
}

// Outcome is what happened to one path. Err is nil on success.
type Outcome struct {
	Err       error
	Kind      report.Kind
	Code      int
	Retries   int
	Killed    int
	Exhausted bool
	// TermFailures holds one record per holder that could not be ended
	TermFailures []report.ErrorRecord
}

// OK reports whether the operation succeeded
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Record converts a failed outcome into an ErrorRecord for path
func (o Outcome) Record(path string, isDir bool) report.ErrorRecord {
	rec := report.ErrorRecord{
		Path:      path,
		Kind:      o.Kind,
		Code:      o.Code,
		Exhausted: o.Exhausted,
		IsDir:     isDir,
	}
	if o.Err != nil {
		rec.Message = o.Err.Error()
	}
	return rec
}

// Resolver drives the retry policy around a deletion primitive
type Resolver struct {
	procs ProcessManager
	opts  Options
	log   zerolog.Logger
}

// NewResolver creates a Resolver. procs may be nil when killing is off.
func NewResolver(procs ProcessManager, opts Options, log zerolog.Logger) *Resolver {
	if opts.Policy.Delays == nil {
		opts.Policy = DefaultPolicy()
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	return &Resolver{procs: procs, opts: opts, log: log}
}

// Remove runs op on path, retrying only lock-class failures. Once the table
// is used up and killing is enabled, the holders are terminated and op gets
// one final attempt.
func (r *Resolver) Remove(path string, op Op) Outcome {
	return r.remove(path, op, r.opts.KillProcesses)
}

// RemoveLink is Remove for link and reparse records. Their holders are the
// target's holders, so nothing is ever terminated on their behalf.
func (r *Resolver) RemoveLink(path string, op Op) Outcome {
	return r.remove(path, op, false)
}

func (r *Resolver) remove(path string, op Op, kill bool) Outcome {
	var out Outcome
	attempts := r.opts.Policy.Attempts()

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			r.opts.Sleep(r.opts.Policy.Delays[attempt-2])
			out.Retries++
		}
		if err = op(path); err == nil {
			return out
		}
		out.Kind, out.Code = fsops.Classify(err)
		if out.Kind != report.KindTransientLock {
			out.Err = err
			return out
		}
		r.log.Debug().Err(err).Str("path", path).Int("attempt", attempt).Msg("entry locked")
	}

	out.Err = err
	out.Exhausted = true
	if !kill || r.procs == nil {
		return out
	}

	out.Killed, out.TermFailures = r.terminateHolders(path, false)
	if out.Killed > 0 {
		r.opts.Sleep(r.opts.SettleDelay)
	}
	out.Retries++
	if err = op(path); err == nil {
		out.Err = nil
		out.Kind = report.KindOther
		out.Code = 0
		out.Exhausted = false
		return out
	}
	out.Err = err
	out.Kind, out.Code = fsops.Classify(err)
	return out
}

// Unlock terminates every process holding path without deleting anything
func (r *Resolver) Unlock(path string) Outcome {
	var out Outcome
	if r.procs == nil {
		return out
	}
	out.Killed, out.TermFailures = r.terminateHolders(path, r.opts.DryRun)
	return out
}

func (r *Resolver) terminateHolders(path string, listOnly bool) (int, []report.ErrorRecord) {
	holders, err := r.procs.Holders(path)
	if err != nil {
		r.log.Warn().Err(err).Str("path", path).Msg("cannot enumerate lock holders")
		return 0, []report.ErrorRecord{{
			Path:    path,
			Kind:    report.KindProcessTerminationFailure,
			Message: fmt.Sprintf("enumerate holders: %v", err),
		}}
	}

	killed := 0
	var failures []report.ErrorRecord
	for _, p := range holders {
		if protected(p.PID) {
			r.log.Debug().Int("pid", p.PID).Str("process", p.Name).Msg("not terminating protected process")
			continue
		}
		if listOnly {
			r.log.Info().Int("pid", p.PID).Str("process", p.Name).Str("path", path).Msg("would terminate lock holder")
			continue
		}
		if err := r.procs.Terminate(p); err != nil {
			r.log.Warn().Err(err).Int("pid", p.PID).Str("process", p.Name).Msg("cannot terminate lock holder")
			failures = append(failures, report.ErrorRecord{
				Path:    path,
				Kind:    report.KindProcessTerminationFailure,
				Message: fmt.Sprintf("pid %d (%s): %v", p.PID, p.Name, err),
			})
			continue
		}
		r.log.Info().Int("pid", p.PID).Str("process", p.Name).Str("path", path).Msg("terminated lock holder")
		killed++
	}
	return killed, failures
}
