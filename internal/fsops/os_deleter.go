package fsops

// OSDeleter implements Deleter with namespace-immediate OS calls
type OSDeleter struct{}

func (OSDeleter) RemoveFile(path string) error {
	return removeEntry(path, false)
}

func (OSDeleter) RemoveDir(path string) error {
	return removeEntry(path, true)
}

// NopDeleter is the dry-run primitive: every call succeeds and touches nothing
type NopDeleter struct{}

func (NopDeleter) RemoveFile(string) error { return nil }

func (NopDeleter) RemoveDir(string) error { return nil }
