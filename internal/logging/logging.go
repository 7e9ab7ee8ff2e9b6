package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"rmx/internal/config"
)

// New builds the run logger: a human console writer on console plus, when
// cfg.File is set, a JSON log file rotated by age. The returned closer
// releases the file and is never nil.
func New(cfg config.LoggingCfg, console io.Writer) (zerolog.Logger, io.Closer, error) {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var out io.Writer = zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: "15:04:05",
	}
	var closer io.Closer = nopCloser{}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("ensure log directory: %w", err)
		}

		rotateDays := 30 // default
		if cfg.RotationDays > 0 {
			rotateDays = cfg.RotationDays
		}
		rotateLogsIfNeeded(cfg.File, rotateDays, time.Now())

		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("open log file: %w", err)
		}
		out = zerolog.MultiLevelWriter(out, f)
		closer = f
	}

	logger := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// rotateLogsIfNeeded renames logPath aside once it is older than rotationDays
func rotateLogsIfNeeded(logPath string, rotationDays int, now time.Time) {
	info, err := os.Stat(logPath)
	if err != nil {
		// Log file doesn't exist yet, nothing to rotate
		return
	}

	cutoffTime := now.AddDate(0, 0, -rotationDays)
	if !info.ModTime().Before(cutoffTime) {
		return
	}

	rotated := logPath + "." + info.ModTime().Format("20060102-150405")
	if err := os.Rename(logPath, rotated); err != nil {
		fmt.Fprintf(os.Stderr, "rmx: failed to rotate log file: %v\n", err)
		return
	}
	cleanupOldLogs(logPath, rotated, cutoffTime)
}

// cleanupOldLogs removes rotated copies of logPath last written before
// cutoff, except keep
func cleanupOldLogs(logPath, keep string, cutoff time.Time) {
	dir := filepath.Dir(logPath)
	prefix := filepath.Base(logPath) + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) || entry.Name() == filepath.Base(keep) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, entry.Name()))
		}
	}
}
