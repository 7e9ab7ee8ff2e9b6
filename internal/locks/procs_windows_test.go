package locks

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestartManagerAcceptsDeepPaths(t *testing.T) {
	dir := t.TempDir()
	for len(dir) < 300 {
		dir = filepath.Join(dir, strings.Repeat("d", 40))
	}
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "held.txt")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = NewProcessManager().Holders(path)
	assert.NoError(t, err, "lookup for a %d character path", len(path))
}
