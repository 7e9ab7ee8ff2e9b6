package cleanup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"rmx/internal/config"
	"rmx/internal/fsops"
	"rmx/internal/locks"
)

// buildTree creates root/{a,b,c}/{0..4}.dat plus a nested level under a
func buildTree(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "victim")
	for _, dir := range []string{"a", "b", "c", filepath.Join("a", "deep")} {
		for i := 0; i < 5; i++ {
			path := filepath.Join(root, dir, fmt.Sprintf("%d.dat", i))
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				t.Fatalf("Failed to create dir: %v", err)
			}
			if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
				t.Fatalf("Failed to create test file: %v", err)
			}
		}
	}
	return root
}

// TestDryRunNeverDeletes proves the dry-run contract:
// When DryRun=true, ZERO delete calls must occur
func TestDryRunNeverDeletes(t *testing.T) {
	root := buildTree(t)

	fakeDeleter := &fsops.FakeDeleter{}

	cleaner := NewCleaner(config.WorkerConfig{DryRun: true, Threads: 4, CollectSizes: true}, zerolog.Nop())
	cleaner.SetDeleter(fakeDeleter)

	rep := cleaner.Run(context.Background(), []string{root})

	// DRY-RUN CONTRACT: Assert ZERO delete calls occurred
	if calls := fakeDeleter.Calls(); len(calls) != 0 {
		t.Errorf("DRY-RUN VIOLATION: Expected 0 delete calls, got %d: %v", len(calls), calls)
	}
	if _, err := os.Stat(filepath.Join(root, "a", "deep", "0.dat")); err != nil {
		t.Errorf("DRY-RUN VIOLATION: file missing after dry run: %v", err)
	}
	if rep.Failed() {
		t.Errorf("Unexpected dry-run errors: %v", rep.Errors)
	}
	if !rep.DryRun {
		t.Error("Report should be marked as dry run")
	}
}

// TestDryRunMatchesRealRun proves a dry run predicts the real counters
func TestDryRunMatchesRealRun(t *testing.T) {
	root := buildTree(t)
	cfg := config.WorkerConfig{Threads: 4, CollectSizes: true}

	dryCfg := cfg
	dryCfg.DryRun = true
	dry := NewCleaner(dryCfg, zerolog.Nop()).Run(context.Background(), []string{root})

	actual := NewCleaner(cfg, zerolog.Nop()).Run(context.Background(), []string{root})

	if dry.Stats.FilesRemoved != actual.Stats.FilesRemoved {
		t.Errorf("files: dry run %d, real %d", dry.Stats.FilesRemoved, actual.Stats.FilesRemoved)
	}
	if dry.Stats.DirsRemoved != actual.Stats.DirsRemoved {
		t.Errorf("dirs: dry run %d, real %d", dry.Stats.DirsRemoved, actual.Stats.DirsRemoved)
	}
	if dry.Stats.Bytes != actual.Stats.Bytes {
		t.Errorf("bytes: dry run %d, real %d", dry.Stats.Bytes, actual.Stats.Bytes)
	}
	if actual.Stats.FilesRemoved != 20 || actual.Stats.DirsRemoved != 5 {
		t.Errorf("Expected 20 files and 5 dirs, got %d and %d", actual.Stats.FilesRemoved, actual.Stats.DirsRemoved)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Error("root should have been removed by the real run")
	}
}

// TestRealModeCallsDeleter proves that non-dry-run mode DOES call the deleter
func TestRealModeCallsDeleter(t *testing.T) {
	tmpDir := t.TempDir()
	file1 := filepath.Join(tmpDir, "file1.txt")
	if err := os.WriteFile(file1, []byte("test"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	fakeDeleter := &fsops.FakeDeleter{}
	cleaner := NewCleaner(config.WorkerConfig{Threads: 2, CollectSizes: true}, zerolog.Nop())
	cleaner.SetDeleter(fakeDeleter)

	rep := cleaner.Run(context.Background(), []string{file1})

	calls := fakeDeleter.Calls()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 delete call, got %d: %v", len(calls), calls)
	}
	if expected := "rm:" + file1; calls[0] != expected {
		t.Errorf("Expected call %s, got %s", expected, calls[0])
	}
	if rep.Stats.FilesRemoved != 1 || rep.Stats.Bytes != 4 {
		t.Errorf("Expected 1 file and 4 bytes, got %d and %d", rep.Stats.FilesRemoved, rep.Stats.Bytes)
	}
}

// TestDryRunUnlockNeverKills proves dry-run unlock only lists holders
func TestDryRunUnlockNeverKills(t *testing.T) {
	root := buildTree(t)
	procs := &recordingProcs{holders: map[string][]locks.Process{
		filepath.Join(root, "a", "0.dat"): {{PID: 31337, Name: "editor"}},
	}}

	cleaner := NewCleaner(config.WorkerConfig{DryRun: true, UnlockOnly: true, Threads: 2}, zerolog.Nop())
	cleaner.SetProcessManager(procs)
	rep := cleaner.Run(context.Background(), []string{root})

	if len(procs.terminated()) != 0 {
		t.Errorf("DRY-RUN VIOLATION: processes terminated: %v", procs.terminated())
	}
	if rep.Stats.ProcessesTerminated != 0 {
		t.Errorf("Expected 0 terminated, got %d", rep.Stats.ProcessesTerminated)
	}
}
