package fsops

import "strings"

// maxShortPath is MAX_PATH (260) minus room for an 8.3 name and NUL,
// the point at which CreateDirectory already starts failing.
const maxShortPath = 248

const (
	extendedPrefix    = `\\?\`
	extendedUNCPrefix = `\\?\UNC\`
)

// LongPath rewrites an absolute Windows path that reaches the legacy length
// ceiling into its extended-length form. Relative, already-prefixed and
// short paths are returned unchanged (apart from slash normalization of
// long ones, which the extended form requires).
func LongPath(path string) string {
	if len(path) < maxShortPath {
		return path
	}
	if strings.HasPrefix(path, extendedPrefix) || strings.HasPrefix(path, `\\.\`) {
		return path
	}

	p := strings.ReplaceAll(path, "/", `\`)
	switch {
	case strings.HasPrefix(p, `\\`):
		// \\server\share\... -> \\?\UNC\server\share\...
		return extendedUNCPrefix + cleanSegments(p[2:])
	case len(p) >= 3 && isDriveLetter(p[0]) && p[1] == ':' && p[2] == '\\':
		return extendedPrefix + p[:3] + cleanSegments(p[3:])
	default:
		return path
	}
}

// cleanSegments drops "." and empty segments and resolves ".." because the
// extended form bypasses the Win32 path normalizer.
func cleanSegments(rest string) string {
	parts := strings.Split(rest, `\`)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
			continue
		}
		out = append(out, part)
	}
	return strings.Join(out, `\`)
}

func isDriveLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
