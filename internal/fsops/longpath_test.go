package fsops

import (
	"strings"
	"testing"
)

func TestLongPath(t *testing.T) {
	longTail := strings.Repeat(`segment\`, 40) + "leaf.txt"

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short drive path unchanged", `C:\temp\file.txt`, `C:\temp\file.txt`},
		{"relative unchanged", strings.Repeat("a", 300), strings.Repeat("a", 300)},
		{"long drive path", `C:\` + longTail, `\\?\C:\` + longTail},
		{"long forward slashes", "D:/" + strings.ReplaceAll(longTail, `\`, "/"), `\\?\D:\` + longTail},
		{"long unc path", `\\server\share\` + longTail, `\\?\UNC\server\share\` + longTail},
		{"already prefixed", `\\?\C:\` + longTail, `\\?\C:\` + longTail},
		{"device path", `\\.\` + longTail, `\\.\` + longTail},
		{"dot segments resolved", `C:\` + longTail[:len(longTail)-len("leaf.txt")] + `.\x\..\leaf.txt`, `\\?\C:\` + longTail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LongPath(tt.in); got != tt.want {
				t.Errorf("LongPath(%q)\n got %q\nwant %q", tt.in, got, tt.want)
			}
		})
	}
}
