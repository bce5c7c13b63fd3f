// Package diff implements change detection between two trees (insert,
// delete, modify, and rename) and line-level text diffing of blob content.
package diff

import (
	"io"
	"sort"
	"strings"

	"github.com/hearthwood/gitcore/object"
	"github.com/hearthwood/gitcore/objectid"
	"github.com/hearthwood/gitcore/treewalk"
)

// Action classifies one tree-level Change.
type Action int

const (
	Insert Action = iota
	Delete
	Modify
	Rename
)

func (a Action) String() string {
	switch a {
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	case Modify:
		return "modify"
	case Rename:
		return "rename"
	default:
		return "unknown"
	}
}

// Change is one file-level difference between two trees.
type Change struct {
	Action   Action
	Name     string // path in the "to" tree, or the old path for a pure Delete
	OldName  string // set only for Rename
	FromHash objectid.ObjectID
	ToHash   objectid.ObjectID
	FromMode bool // unused placeholder kept false; mode changes surface as Modify
}

// Changes is a list of Change. Its sort.Interface orders by Name; DiffTrees
// returns it sorted, DetectRenames does not re-sort it.
type Changes []Change

func (c Changes) Len() int           { return len(c) }
func (c Changes) Swap(i, j int)      { c[i], c[j] = c[j], c[i] }
func (c Changes) Less(i, j int) bool { return strings.Compare(c[i].Name, c[j].Name) < 0 }

// TreeGetter loads a Tree by id, as required to descend into subtrees that
// differ between from and to.
type TreeGetter interface {
	GetTree(objectid.ObjectID) (*object.Tree, error)
}

// DiffTrees compares the top-level entries of from and to, recursing into
// subtrees present on both sides, and returns the resulting Changes sorted
// by path. Renames are detected afterward by DetectRenames.
func DiffTrees(store TreeGetter, from, to *object.Tree) (Changes, error) {
	var changes Changes
	if err := diffTrees(store, from, to, "", &changes); err != nil {
		return nil, err
	}
	sort.Sort(changes)
	return changes, nil
}

func diffTrees(store TreeGetter, from, to *object.Tree, base string, out *Changes) error {
	w := treewalk.NewNWayWalker([]*object.Tree{from, to})
	for {
		entry, err := w.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		name := joinPath(base, entry.Name)
		l, r := entry.Sides[0], entry.Sides[1]

		switch {
		case !l.Present && r.Present:
			if r.Entry.Mode.IsDir() {
				sub, err := store.GetTree(r.Entry.Hash)
				if err != nil {
					return err
				}
				if err := diffTrees(store, nil, sub, name, out); err != nil {
					return err
				}
				continue
			}
			*out = append(*out, Change{Action: Insert, Name: name, ToHash: r.Entry.Hash})

		case l.Present && !r.Present:
			if l.Entry.Mode.IsDir() {
				sub, err := store.GetTree(l.Entry.Hash)
				if err != nil {
					return err
				}
				if err := diffTrees(store, sub, nil, name, out); err != nil {
					return err
				}
				continue
			}
			*out = append(*out, Change{Action: Delete, Name: name, FromHash: l.Entry.Hash})

		case l.Present && r.Present:
			lDir, rDir := l.Entry.Mode.IsDir(), r.Entry.Mode.IsDir()
			switch {
			case lDir && rDir:
				if l.Entry.Hash.Equal(r.Entry.Hash) {
					continue
				}
				lSub, err := store.GetTree(l.Entry.Hash)
				if err != nil {
					return err
				}
				rSub, err := store.GetTree(r.Entry.Hash)
				if err != nil {
					return err
				}
				if err := diffTrees(store, lSub, rSub, name, out); err != nil {
					return err
				}
			case !lDir && !rDir:
				if !l.Entry.Hash.Equal(r.Entry.Hash) || l.Entry.Mode != r.Entry.Mode {
					*out = append(*out, Change{Action: Modify, Name: name, FromHash: l.Entry.Hash, ToHash: r.Entry.Hash})
				}
			default:
				// kind changed (file <-> directory): treat as delete+insert.
				if lDir {
					sub, err := store.GetTree(l.Entry.Hash)
					if err != nil {
						return err
					}
					if err := diffTrees(store, sub, nil, name, out); err != nil {
						return err
					}
					*out = append(*out, Change{Action: Insert, Name: name, ToHash: r.Entry.Hash})
				} else {
					*out = append(*out, Change{Action: Delete, Name: name, FromHash: l.Entry.Hash})
					sub, err := store.GetTree(r.Entry.Hash)
					if err != nil {
						return err
					}
					if err := diffTrees(store, nil, sub, name, out); err != nil {
						return err
					}
				}
			}
		}
	}
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "/" + name
}
