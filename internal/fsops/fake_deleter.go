package fsops

import "sync"

// FakeDeleter implements Deleter for testing.
// Records every call; scripted errors are returned in order per path, and
// calls are forwarded to Next (when set) once a path's script runs out.
type FakeDeleter struct {
	Next Deleter
	// Errs holds queued failures keyed by path
	Errs map[string][]error

	mu    sync.Mutex
	calls []string
}

func (f *FakeDeleter) RemoveFile(path string) error {
	if err := f.record("rm:", path); err != nil {
		return err
	}
	if f.Next != nil {
		return f.Next.RemoveFile(path)
	}
	return nil
}

func (f *FakeDeleter) RemoveDir(path string) error {
	if err := f.record("rmdir:", path); err != nil {
		return err
	}
	if f.Next != nil {
		return f.Next.RemoveDir(path)
	}
	return nil
}

// Fail queues errs to be returned by the next calls on path
func (f *FakeDeleter) Fail(path string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Errs == nil {
		f.Errs = make(map[string][]error)
	}
	f.Errs[path] = append(f.Errs[path], errs...)
}

// Calls returns a copy of the recorded calls in invocation order
func (f *FakeDeleter) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount returns how many calls targeted path
func (f *FakeDeleter) CallCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == "rm:"+path || c == "rmdir:"+path {
			n++
		}
	}
	return n
}

func (f *FakeDeleter) record(prefix, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, prefix+path)
	if queued := f.Errs[path]; len(queued) > 0 {
		f.Errs[path] = queued[1:]
		return queued[0]
	}
	return nil
}
