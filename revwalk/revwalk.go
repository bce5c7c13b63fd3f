// Package revwalk implements commit history traversal: pre-order walks in
// either discovery or commit-date order, and merge-base computation via a
// generation-number-free common-ancestor search.
package revwalk

import (
	"container/heap"
	"io"

	"github.com/hearthwood/gitcore/object"
	"github.com/hearthwood/gitcore/objectid"
	"github.com/hearthwood/gitcore/storer"
)

// CommitGetter loads a commit by id, the only dependency RevWalk has on a
// concrete object store.
type CommitGetter interface {
	GetCommit(objectid.ObjectID) (*object.Commit, error)
}

// Iterator yields commits one at a time until io.EOF.
type Iterator interface {
	Next() (*object.Commit, error)
	ForEach(func(*object.Commit) error) error
}

// NewPreorderIter walks history depth-first starting at start, visiting
// each commit once, skipping anything in seen or already in ignore.
func NewPreorderIter(store CommitGetter, start *object.Commit, ignore []objectid.ObjectID) Iterator {
	seen := make(map[objectid.ObjectID]bool, len(ignore))
	for _, id := range ignore {
		seen[id] = true
	}
	return &preorderIter{store: store, seen: seen, start: start}
}

type preorderIter struct {
	store CommitGetter
	seen  map[objectid.ObjectID]bool
	stack []*object.Commit
	start *object.Commit
}

func (w *preorderIter) Next() (*object.Commit, error) {
	var c *object.Commit
	for {
		if w.start != nil {
			c, w.start = w.start, nil
		} else {
			if len(w.stack) == 0 {
				return nil, io.EOF
			}
			c = w.stack[len(w.stack)-1]
			w.stack = w.stack[:len(w.stack)-1]
		}

		if w.seen[c.Hash] {
			continue
		}
		w.seen[c.Hash] = true

		for i := c.NumParents() - 1; i >= 0; i-- {
			parent, err := w.store.GetCommit(c.ParentHashes[i])
			if err != nil {
				return nil, err
			}
			if !w.seen[parent.Hash] {
				w.stack = append(w.stack, parent)
			}
		}
		return c, nil
	}
}

func (w *preorderIter) ForEach(cb func(*object.Commit) error) error {
	for {
		c, err := w.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := cb(c); err != nil {
			if err == storer.ErrStop {
				return nil
			}
			return err
		}
	}
}

// dateOrderItem is one entry in the date-ordered priority queue: commits
// are visited from newest to oldest committer time, matching `git log
// --date-order`.
type dateOrderItem struct {
	commit *object.Commit
	index  int
}

type dateOrderQueue []*dateOrderItem

func (q dateOrderQueue) Len() int { return len(q) }
func (q dateOrderQueue) Less(i, j int) bool {
	return q[i].commit.Committer.When.When.After(q[j].commit.Committer.When.When)
}
func (q dateOrderQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index, q[j].index = i, j
}
func (q *dateOrderQueue) Push(x any) {
	item := x.(*dateOrderItem)
	item.index = len(*q)
	*q = append(*q, item)
}
func (q *dateOrderQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// NewDateOrderIter walks history starting at start, always yielding the
// unvisited commit with the newest committer timestamp next.
func NewDateOrderIter(store CommitGetter, start *object.Commit) Iterator {
	q := &dateOrderQueue{}
	heap.Push(q, &dateOrderItem{commit: start})
	return &dateOrderIter{store: store, queue: q, seen: map[objectid.ObjectID]bool{start.Hash: true}}
}

type dateOrderIter struct {
	store CommitGetter
	queue *dateOrderQueue
	seen  map[objectid.ObjectID]bool
}

func (w *dateOrderIter) Next() (*object.Commit, error) {
	if w.queue.Len() == 0 {
		return nil, io.EOF
	}
	item := heap.Pop(w.queue).(*dateOrderItem)
	c := item.commit

	for _, parentID := range c.ParentHashes {
		if w.seen[parentID] {
			continue
		}
		w.seen[parentID] = true
		parent, err := w.store.GetCommit(parentID)
		if err != nil {
			return nil, err
		}
		heap.Push(w.queue, &dateOrderItem{commit: parent})
	}
	return c, nil
}

func (w *dateOrderIter) ForEach(cb func(*object.Commit) error) error {
	for {
		c, err := w.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := cb(c); err != nil {
			if err == storer.ErrStop {
				return nil
			}
			return err
		}
	}
}

// MergeBase returns the best common ancestors of a and b: commits
// reachable from both that are not themselves ancestors of another common
// ancestor in the result. Computed by flood-filling ancestry flags from
// each side and collecting commits marked by both that are not a parent
// of another commit marked by both.
func MergeBase(store CommitGetter, a, b *object.Commit) ([]*object.Commit, error) {
	const (
		flagA uint8 = 1 << iota
		flagB
	)

	flags := make(map[objectid.ObjectID]uint8)
	commits := make(map[objectid.ObjectID]*object.Commit)

	var walk func(start *object.Commit, flag uint8) error
	walk = func(start *object.Commit, flag uint8) error {
		stack := []*object.Commit{start}
		for len(stack) > 0 {
			c := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if flags[c.Hash]&flag != 0 {
				continue
			}
			flags[c.Hash] |= flag
			commits[c.Hash] = c

			for _, parentID := range c.ParentHashes {
				if flags[parentID]&flag != 0 {
					continue
				}
				parent, err := store.GetCommit(parentID)
				if err != nil {
					return err
				}
				stack = append(stack, parent)
			}
		}
		return nil
	}

	if err := walk(a, flagA); err != nil {
		return nil, err
	}
	if err := walk(b, flagB); err != nil {
		return nil, err
	}

	// Every ancestor of a common commit is itself common, so a common commit
	// is redundant exactly when it is a parent of another common commit.
	parentOfCommon := make(map[objectid.ObjectID]bool)
	for id, f := range flags {
		if f != flagA|flagB {
			continue
		}
		for _, parentID := range commits[id].ParentHashes {
			parentOfCommon[parentID] = true
		}
	}

	var results []*object.Commit
	for id, f := range flags {
		if f == flagA|flagB && !parentOfCommon[id] {
			results = append(results, commits[id])
		}
	}
	return results, nil
}

// IsAncestor reports whether candidate is an ancestor of (or equal to)
// target.
func IsAncestor(store CommitGetter, candidate, target *object.Commit) (bool, error) {
	if candidate.Hash.Equal(target.Hash) {
		return true, nil
	}
	seen := map[objectid.ObjectID]bool{}
	stack := []*object.Commit{target}
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[c.Hash] {
			continue
		}
		seen[c.Hash] = true
		for _, parentID := range c.ParentHashes {
			if parentID.Equal(candidate.Hash) {
				return true, nil
			}
			if seen[parentID] {
				continue
			}
			parent, err := store.GetCommit(parentID)
			if err != nil {
				return false, err
			}
			stack = append(stack, parent)
		}
	}
	return false, nil
}
