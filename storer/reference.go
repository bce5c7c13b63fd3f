package storer

import (
	"errors"
	"io"

	"github.com/hearthwood/gitcore/refs"
)

// maxSymbolicDepth bounds symbolic-reference resolution: HEAD -> branch ->
// ... chains longer than this are treated as a cycle rather than walked
// forever.
const maxSymbolicDepth = 5

// ErrInvalidTarget is returned by ResolveReference when a symbolic chain
// exceeds maxSymbolicDepth, covering both genuine cycles and pathological
// chains that aren't actually cyclic but are still unreasonable.
var ErrInvalidTarget = errors.New("storer: invalid symbolic reference target")

// ResolveReference follows name through s, dereferencing symbolic
// references until it reaches a direct (hash) reference.
func ResolveReference(s ReferenceStorer, name refs.Name) (*refs.Reference, error) {
	r, err := s.Reference(name)
	if err != nil {
		return nil, err
	}

	for i := 0; r.Type() == refs.SymbolicReference; i++ {
		if i >= maxSymbolicDepth {
			return nil, ErrInvalidTarget
		}
		r, err = s.Reference(r.Target())
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ReferenceStorer is the storage contract a ref database must satisfy:
// compare-and-set updates, lookup, removal, and enumeration.
type ReferenceStorer interface {
	SetReference(*refs.Reference) error
	// CheckAndSetReference sets new only if the stored value currently
	// equals old (nil old skips the check and sets new unconditionally),
	// giving callers a compare-and-set primitive for race-free ref updates.
	CheckAndSetReference(new, old *refs.Reference) error
	Reference(refs.Name) (*refs.Reference, error)
	IterReferences() (ReferenceIter, error)
	RemoveReference(refs.Name) error
	CountLooseRefs() (int, error)
	PackRefs() error
}

// ReflogStorer is implemented by storers that keep a per-ref history of
// updates (a reflog), mirroring PackedObjectStorer's pattern of an optional
// capability a caller type-asserts for rather than a method every
// ReferenceStorer must carry — storage/memory has no on-disk log to append
// to, so it deliberately doesn't implement this.
type ReflogStorer interface {
	AppendReflog(refs.Name, *refs.ReflogEntry) error
	ReadReflog(refs.Name) ([]*refs.ReflogEntry, error)
}

// ReferenceIter is a closable iterator over references.
type ReferenceIter interface {
	Next() (*refs.Reference, error)
	ForEach(func(*refs.Reference) error) error
	Close()
}

type referenceSliceIter struct {
	series []*refs.Reference
	pos    int
}

// NewReferenceSliceIter returns an iterator over an in-memory slice of
// references.
func NewReferenceSliceIter(series []*refs.Reference) ReferenceIter {
	return &referenceSliceIter{series: series}
}

func (i *referenceSliceIter) Next() (*refs.Reference, error) {
	if i.pos >= len(i.series) {
		return nil, io.EOF
	}
	r := i.series[i.pos]
	i.pos++
	return r, nil
}

func (i *referenceSliceIter) ForEach(cb func(*refs.Reference) error) error {
	for {
		r, err := i.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := cb(r); err != nil {
			if err == ErrStop {
				return nil
			}
			return err
		}
	}
}

func (i *referenceSliceIter) Close() { i.pos = len(i.series) }

type referenceFilteredIter struct {
	keep func(*refs.Reference) bool
	iter ReferenceIter
}

// NewReferenceFilteredIter wraps iter, skipping references for which keep
// returns false.
func NewReferenceFilteredIter(keep func(*refs.Reference) bool, iter ReferenceIter) ReferenceIter {
	return &referenceFilteredIter{keep: keep, iter: iter}
}

func (i *referenceFilteredIter) Next() (*refs.Reference, error) {
	for {
		r, err := i.iter.Next()
		if err != nil {
			return nil, err
		}
		if i.keep(r) {
			return r, nil
		}
	}
}

func (i *referenceFilteredIter) ForEach(cb func(*refs.Reference) error) error {
	for {
		r, err := i.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := cb(r); err != nil {
			if err == ErrStop {
				return nil
			}
			return err
		}
	}
}

func (i *referenceFilteredIter) Close() { i.iter.Close() }

type multiReferenceIter struct {
	iters []ReferenceIter
}

// NewMultiReferenceIter chains several reference iterators, exhausting
// each in turn. Used to merge loose and packed-refs enumeration.
func NewMultiReferenceIter(iters []ReferenceIter) ReferenceIter {
	return &multiReferenceIter{iters: iters}
}

func (i *multiReferenceIter) Next() (*refs.Reference, error) {
	for len(i.iters) > 0 {
		r, err := i.iters[0].Next()
		if err == io.EOF {
			i.iters[0].Close()
			i.iters = i.iters[1:]
			continue
		}
		return r, err
	}
	return nil, io.EOF
}

func (i *multiReferenceIter) ForEach(cb func(*refs.Reference) error) error {
	for {
		r, err := i.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := cb(r); err != nil {
			if err == ErrStop {
				return nil
			}
			return err
		}
	}
}

func (i *multiReferenceIter) Close() {
	for _, it := range i.iters {
		it.Close()
	}
	i.iters = nil
}
