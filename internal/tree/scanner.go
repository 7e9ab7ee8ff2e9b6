package tree

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"rmx/internal/fsops"
	"rmx/internal/report"
)

// Options controls one Scanner
type Options struct {
	// Workers bounds concurrent directory enumeration and picks the fan-out threshold
	Workers int
	// IgnoreMissing drops roots that do not exist instead of reporting them
	IgnoreMissing bool
}

// Scanner discovers directory forests. It never follows links: a link or
// reparse point is recorded as a leaf of its parent directory.
type Scanner struct {
	lister fsops.Lister
	opts   Options
	log    zerolog.Logger
}

// NewScanner creates a Scanner reading through lister
func NewScanner(lister fsops.Lister, opts Options, log zerolog.Logger) *Scanner {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Scanner{lister: lister, opts: opts, log: log}
}

// FanOutThreshold is the subdirectory count at which a directory's children
// are scanned concurrently. Wide pools can afford to split earlier.
func FanOutThreshold(workers int) int {
	if workers >= 8 {
		return 2
	}
	return 3
}

type scan struct {
	*Scanner
	threshold int
	group     *errgroup.Group

	mu   sync.Mutex // guards tree.Nodes, tree.Singles, tree.Failures
	tree *Tree

	files atomic.Int64
	bytes atomic.Int64
}

// Scan builds the forest for roots. It always returns a tree; paths that
// could not be looked up or enumerated are listed in Tree.Failures.
func (s *Scanner) Scan(roots []string) *Tree {
	sc := &scan{
		Scanner:   s,
		threshold: FanOutThreshold(s.opts.Workers),
		group:     new(errgroup.Group),
		tree:      &Tree{},
	}
	sc.group.SetLimit(s.opts.Workers)

	for _, root := range s.normalizeRoots(roots) {
		sc.root(root)
	}
	_ = sc.group.Wait()

	sc.tree.Files = sc.files.Load()
	sc.tree.Bytes = sc.bytes.Load()
	return sc.tree
}

func (sc *scan) root(path string) {
	typ, size, err := sc.lister.Lstat(path)
	if err != nil {
		kind, code := fsops.Classify(err)
		if kind == report.KindNotFound && sc.opts.IgnoreMissing {
			sc.log.Debug().Str("path", path).Msg("root does not exist, skipping")
			return
		}
		sc.fail(report.ErrorRecord{Path: path, Kind: kind, Code: code, Message: err.Error()})
		return
	}

	switch typ {
	case fsops.TypeDir:
		sc.dir(sc.addNode(path, NoParent))
	case fsops.TypeLink:
		sc.addSingle(Entry{Path: path, Link: true})
	default:
		sc.files.Add(1)
		sc.bytes.Add(size)
		sc.addSingle(Entry{Path: path, Size: size})
	}
}

func (sc *scan) dir(node *Node) {
	entries, err := sc.lister.ReadDir(node.Path)
	if err != nil {
		kind, code := fsops.Classify(err)
		if kind == report.KindNotFound {
			// gone already; its own removal will be tolerated as NotFound
			sc.log.Debug().Str("path", node.Path).Msg("directory vanished during scan")
			return
		}
		sc.log.Warn().Err(err).Str("path", node.Path).Msg("cannot enumerate directory")
		sc.fail(report.ErrorRecord{
			Path:    node.Path,
			Kind:    report.KindEnumerationFailure,
			Code:    code,
			IsDir:   true,
			Message: err.Error(),
		})
		return
	}

	var subdirs []string
	var bytes int64
	for _, e := range entries {
		path := filepath.Join(node.Path, e.Name)
		switch e.Type {
		case fsops.TypeDir:
			subdirs = append(subdirs, path)
		case fsops.TypeLink:
			node.Leaves = append(node.Leaves, Entry{Path: path, Link: true})
		case fsops.TypeMount:
			// another filesystem: left alone, so the parent stays non-empty
			sc.log.Warn().Str("path", path).Msg("not crossing into mounted filesystem")
			sc.fail(report.ErrorRecord{
				Path:    path,
				Kind:    report.KindMountPoint,
				IsDir:   true,
				Message: "mount point of another filesystem",
			})
		default:
			node.Files = append(node.Files, Entry{Path: path, Size: e.Size})
			bytes += e.Size
		}
	}
	sc.files.Add(int64(len(node.Files)))
	sc.bytes.Add(bytes)

	node.Subdirs = len(subdirs)
	node.pending.Store(int64(len(subdirs)))

	children := make([]*Node, len(subdirs))
	for i, path := range subdirs {
		children[i] = sc.addNode(path, node.ID)
	}

	if len(children) < sc.threshold {
		for _, child := range children {
			sc.dir(child)
		}
		return
	}
	for _, child := range children {
		child := child
		if !sc.group.TryGo(func() error {
			sc.dir(child)
			return nil
		}) {
			// pool saturated: keep going on this goroutine
			sc.dir(child)
		}
	}
}

func (sc *scan) addNode(path string, parent int) *Node {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	n := &Node{ID: len(sc.tree.Nodes), Path: path, Parent: parent}
	sc.tree.Nodes = append(sc.tree.Nodes, n)
	return n
}

func (sc *scan) addSingle(e Entry) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.tree.Singles = append(sc.tree.Singles, e)
}

func (sc *scan) fail(rec report.ErrorRecord) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.tree.Failures = append(sc.tree.Failures, rec)
}

// normalizeRoots makes roots absolute and drops duplicates and roots nested
// inside another root, which would otherwise be scheduled twice.
func (s *Scanner) normalizeRoots(roots []string) []string {
	cleaned := make([]string, 0, len(roots))
	for _, r := range roots {
		if strings.TrimSpace(r) == "" {
			continue
		}
		abs, err := filepath.Abs(r)
		if err != nil {
			abs = r
		}
		cleaned = append(cleaned, filepath.Clean(abs))
	}

	out := make([]string, 0, len(cleaned))
	for i, r := range cleaned {
		dup := false
		for j, other := range cleaned {
			if i == j {
				continue
			}
			if (r == other && j < i) || (r != other && hasPathPrefix(r, other)) {
				dup = true
				break
			}
		}
		if dup {
			s.log.Debug().Str("path", r).Msg("root already covered by another root")
			continue
		}
		out = append(out, r)
	}
	return out
}

func hasPathPrefix(path, root string) bool {
	if path == root {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return !startsWithDotDot(rel)
}

func startsWithDotDot(rel string) bool {
	if rel == ".." {
		return true
	}
	return strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}
