// Package tree discovers the directory forest under a set of roots and
// builds the flat, index-linked node arena the broker schedules from.
package tree

import (
	"fmt"
	"sync/atomic"

	"rmx/internal/report"
)

// NoParent marks a root node
const NoParent = -1

// Entry is a non-directory child: a regular file or an opaque link record
type Entry struct {
	Path string
	Size int64
	Link bool
}

// Node is one directory. Nodes live in Tree.Nodes and refer to each other
// by index, so the arena can be shared across goroutines without pointers
// back up the tree.
type Node struct {
	ID     int
	Path   string
	Parent int
	// Subdirs is the number of direct subdirectories found by the scan
	Subdirs int
	Files   []Entry
	Leaves  []Entry // links, junctions, volume mounts: never descended into

	pending atomic.Int64
}

// Entries returns files followed by leaves
func (n *Node) Entries() []Entry {
	out := make([]Entry, 0, len(n.Files)+len(n.Leaves))
	out = append(out, n.Files...)
	return append(out, n.Leaves...)
}

// Pending returns the number of subdirectories not yet terminal
func (n *Node) Pending() int64 {
	return n.pending.Load()
}

// ChildDone records that one subdirectory reached a terminal state and
// reports whether it was the last one. The counter reaching zero happens
// exactly once; going below zero means a child was reported twice.
func (n *Node) ChildDone() bool {
	left := n.pending.Add(-1)
	if left < 0 {
		panic(fmt.Sprintf("tree: pending-children counter of %s went negative", n.Path))
	}
	return left == 0
}

// Tree is the scan result for every root of one run
type Tree struct {
	Nodes []*Node
	// Singles are roots that are not directories: files and links
	Singles []Entry
	// Failures holds enumeration and root-lookup errors found while scanning
	Failures []report.ErrorRecord

	Files int64
	Bytes int64
}

// Len is the number of items the broker must bring to a terminal state
func (t *Tree) Len() int {
	return len(t.Nodes) + len(t.Singles)
}

// Add appends a directory node under parent and bumps the parent's child
// counters. It is not safe for concurrent use; the scanner has its own path.
func (t *Tree) Add(path string, parent int, files ...Entry) *Node {
	n := &Node{ID: len(t.Nodes), Path: path, Parent: parent}
	for _, f := range files {
		if f.Link {
			n.Leaves = append(n.Leaves, f)
			continue
		}
		n.Files = append(n.Files, f)
		t.Files++
		t.Bytes += f.Size
	}
	t.Nodes = append(t.Nodes, n)
	if parent != NoParent {
		p := t.Nodes[parent]
		p.Subdirs++
		p.pending.Add(1)
	}
	return n
}
