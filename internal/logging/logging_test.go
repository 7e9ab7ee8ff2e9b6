package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rmx/internal/config"
)

func TestNewConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := New(config.LoggingCfg{Level: "warn"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, zerolog.WarnLevel, log.GetLevel())
	log.Info().Msg("hidden")
	log.Warn().Str("path", "/x").Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewUnknownLevelFallsBackToInfo(t *testing.T) {
	log, closer, err := New(config.LoggingCfg{Level: "loud"}, &bytes.Buffer{})
	require.NoError(t, err)
	defer closer.Close()
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "rmx.log")
	log, closer, err := New(config.LoggingCfg{Level: "debug", File: path}, &bytes.Buffer{})
	require.NoError(t, err)

	log.Debug().Str("path", "/a").Msg("removed")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"removed"`)
	assert.Contains(t, string(data), `"path":"/a"`)
}

func TestRotateLogsIfNeeded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rmx.log")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	stale := filepath.Join(dir, "rmx.log.20000101-000000")
	require.NoError(t, os.WriteFile(stale, []byte("ancient\n"), 0o644))

	now := time.Now()
	old := now.AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(path, old, old))
	require.NoError(t, os.Chtimes(stale, old.AddDate(-1, 0, 0), old.AddDate(-1, 0, 0)))

	rotateLogsIfNeeded(path, 7, now)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "current log should be renamed")
	_, err = os.Stat(path + "." + old.Format("20060102-150405"))
	assert.NoError(t, err)
	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "stale rotated log should be removed")
}

func TestRotateKeepsFreshLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rmx.log")
	require.NoError(t, os.WriteFile(path, []byte("fresh\n"), 0o644))
	rotateLogsIfNeeded(path, 7, time.Now())
	_, err := os.Stat(path)
	assert.NoError(t, err)
}
