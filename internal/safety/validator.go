package safety

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var (
	ErrInvalidPath   = errors.New("invalid path")
	ErrProtectedPath = errors.New("protected path")
	ErrContainsCwd   = errors.New("contains the current working directory")
)

// Validator guards roots before any scan starts. Protected paths match
// exactly (after cleaning and symlink resolution): their contents may be
// removed, the directories themselves may not.
type Validator struct {
	ProtectedPaths []string
	// Cwd is compared against roots; empty disables the check
	Cwd string
}

// NewValidator creates a validator with the platform's system directories,
// the user's home and any additional protected paths
func NewValidator(extraProtected []string) *Validator {
	cwd, _ := os.Getwd()
	return &Validator{
		ProtectedPaths: defaultProtected(extraProtected),
		Cwd:            cwd,
	}
}

// ValidateRoot is the single-source-of-truth for root authorization.
// ErrProtectedPath can only be bypassed with --no-preserve-root;
// ErrContainsCwd is a warning the caller may override.
func (v *Validator) ValidateRoot(path string) error {
	p, err := NormalizePath(path)
	if err != nil {
		return err
	}

	if IsProtectedPath(p, v.ProtectedPaths) {
		return fmt.Errorf("%w: '%s' is a system directory", ErrProtectedPath, p)
	}
	if resolved, err := filepath.EvalSymlinks(p); err == nil && IsProtectedPath(resolved, v.ProtectedPaths) {
		return fmt.Errorf("%w: '%s' resolves to system directory '%s'", ErrProtectedPath, p, resolved)
	}

	if v.Cwd != "" && hasPathPrefix(filepath.Clean(v.Cwd), p) {
		return fmt.Errorf("%w: '%s'", ErrContainsCwd, p)
	}
	return nil
}

// NormalizePath converts path to absolute, cleaned form
func NormalizePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrInvalidPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", ErrInvalidPath
	}
	return filepath.Clean(abs), nil
}

// IsProtectedPath checks if path is one of the protected paths or a
// filesystem/drive root
func IsProtectedPath(path string, protected []string) bool {
	p := filepath.Clean(path)

	// Hard block: "/" or a bare volume such as "C:\"
	if isVolumeRoot(p) {
		return true
	}

	for _, prot := range protected {
		if samePath(p, filepath.Clean(prot)) {
			return true
		}
	}
	return false
}

func isVolumeRoot(p string) bool {
	vol := filepath.VolumeName(p)
	rest := p[len(vol):]
	return rest == string(os.PathSeparator) || (vol != "" && rest == "")
}

func samePath(a, b string) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// hasPathPrefix checks if path is prefix or lies below it
func hasPathPrefix(path, prefix string) bool {
	path = filepath.Clean(path)
	prefix = filepath.Clean(prefix)

	if samePath(path, prefix) {
		return true
	}
	if !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}
	if runtime.GOOS == "windows" {
		return strings.HasPrefix(strings.ToLower(path), strings.ToLower(prefix))
	}
	return strings.HasPrefix(path, prefix)
}

// defaultProtected returns the base set of protected paths plus any extras
func defaultProtected(extra []string) []string {
	var base []string
	if runtime.GOOS == "windows" {
		base = []string{
			`C:\Windows`,
			`C:\Windows\System32`,
			`C:\Program Files`,
			`C:\Program Files (x86)`,
			`C:\ProgramData`,
			`C:\Users`,
		}
		if sys := os.Getenv("SystemRoot"); sys != "" {
			base = append(base, sys)
		}
	} else {
		base = []string{
			"/bin",
			"/boot",
			"/dev",
			"/etc",
			"/lib",
			"/lib64",
			"/proc",
			"/root",
			"/sbin",
			"/sys",
			"/usr",
			"/var",
		}
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		base = append(base, home)
	}
	return append(base, extra...)
}
