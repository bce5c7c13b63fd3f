// Package treewalk implements tree traversal: a single-tree depth-first
// walk that descends into subtrees, and an N-way walk that steps several
// trees in lockstep by entry name, the shape diff needs to compare two
// (or more) trees entry-by-entry without materializing either in full.
package treewalk

import (
	"errors"
	"io"
	"path"

	"github.com/hearthwood/gitcore/object"
	"github.com/hearthwood/gitcore/objectid"
)

// MaxDepth bounds recursion into self-referencing or pathologically deep
// trees.
const MaxDepth = 1024

// ErrMaxDepth is returned when a walk would recurse past MaxDepth.
var ErrMaxDepth = errors.New("treewalk: maximum tree depth exceeded")

// TreeGetter loads a Tree by id, the only store dependency a Walker has.
type TreeGetter interface {
	GetTree(objectid.ObjectID) (*object.Tree, error)
}

type frame struct {
	tree *object.Tree
	pos  int
}

// Walker performs a pre-order walk over a tree and its subtrees.
type Walker struct {
	store TreeGetter
	stack []frame
	base  string
}

// NewWalker returns a Walker starting at root.
func NewWalker(store TreeGetter, root *object.Tree) *Walker {
	return &Walker{store: store, stack: []frame{{tree: root}}}
}

// Next returns the path and entry of the next object in the tree,
// descending into subtrees as it goes. It returns io.EOF once exhausted.
func (w *Walker) Next() (string, object.TreeEntry, error) {
	for {
		if len(w.stack) == 0 {
			return "", object.TreeEntry{}, io.EOF
		}
		if len(w.stack) > MaxDepth {
			return "", object.TreeEntry{}, ErrMaxDepth
		}

		top := &w.stack[len(w.stack)-1]
		if top.pos >= len(top.tree.Entries) {
			w.stack = w.stack[:len(w.stack)-1]
			w.base = path.Dir(w.base)
			if w.base == "." {
				w.base = ""
			}
			continue
		}

		entry := top.tree.Entries[top.pos]
		top.pos++
		name := path.Join(w.base, entry.Name)

		if entry.Mode.IsDir() {
			sub, err := w.store.GetTree(entry.Hash)
			if err != nil {
				return "", object.TreeEntry{}, err
			}
			w.stack = append(w.stack, frame{tree: sub})
			w.base = name
		}
		return name, entry, nil
	}
}

// Side is an entry as it appears (or doesn't) in one of the trees an
// NWayWalker is comparing.
type Side struct {
	Entry   object.TreeEntry
	Present bool
}

// NWayEntry is one name's state across every tree an NWayWalker compares:
// the same name may be a blob in one tree, a subtree in another, and
// absent from a third.
type NWayEntry struct {
	Name  string
	Sides []Side
}

// NWayWalker steps N trees in lockstep, ordered by tree-aware entry name,
// merging same-named entries into a single NWayEntry per step. It does not
// itself recurse into subtrees — callers construct a new NWayWalker per
// directory level, passing the subtrees reached at matching names.
type NWayWalker struct {
	trees []*object.Tree
	pos   []int
}

// NewNWayWalker returns a walker over the top level of trees. A nil entry
// in trees represents "this side doesn't have this directory at all".
func NewNWayWalker(trees []*object.Tree) *NWayWalker {
	return &NWayWalker{trees: trees, pos: make([]int, len(trees))}
}

// Next returns the next NWayEntry in tree-aware name order, or io.EOF.
func (w *NWayWalker) Next() (NWayEntry, error) {
	var minName []byte
	haveAny := false
	for i, t := range w.trees {
		if t == nil || w.pos[i] >= len(t.Entries) {
			continue
		}
		e := t.Entries[w.pos[i]]
		key := object.EntryName(e.Name, e.Mode)
		if !haveAny || bytesLess(key, minName) {
			minName = key
			haveAny = true
		}
	}
	if !haveAny {
		return NWayEntry{}, io.EOF
	}

	var out NWayEntry
	out.Sides = make([]Side, len(w.trees))
	for i, t := range w.trees {
		if t == nil || w.pos[i] >= len(t.Entries) {
			continue
		}
		e := t.Entries[w.pos[i]]
		key := object.EntryName(e.Name, e.Mode)
		if !bytesEqual(key, minName) {
			continue
		}
		out.Name = e.Name
		out.Sides[i] = Side{Entry: e, Present: true}
		w.pos[i]++
	}
	return out, nil
}

func bytesLess(a, b []byte) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
