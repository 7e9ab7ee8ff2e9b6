package fsops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemMountsStopAtProc(t *testing.T) {
	if !SystemMounts().IsMountPoint("/proc") {
		t.Skip("/proc is not a separate mount here")
	}

	entries, err := OSLister{}.ReadDir("/")
	require.NoError(t, err)
	for _, e := range entries {
		if e.Name == "proc" {
			assert.Equal(t, TypeMount, e.Type)
			return
		}
	}
	t.Fatal("/proc not listed")
}

func TestUnescapeMountPath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"/mnt/data", "/mnt/data"},
		{`/mnt/my\040disk`, "/mnt/my disk"},
		{`/mnt/tab\011x`, "/mnt/tab\tx"},
		{`/mnt/back\134slash`, `/mnt/back\slash`},
		{`/mnt/odd\x`, `/mnt/odd\x`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, unescapeMountPath(tt.in))
	}
}
