package filesystem

import (
	"github.com/hearthwood/gitcore/refs"
	"github.com/hearthwood/gitcore/storage/filesystem/dotgit"
	"github.com/hearthwood/gitcore/storer"
)

// ReferenceStorage implements storer.ReferenceStorer over loose refs and
// packed-refs, preferring a loose ref over a packed entry of the same
// name the way the git CLI does.
type ReferenceStorage struct {
	dir *dotgit.DotGit
}

func (r *ReferenceStorage) SetReference(ref *refs.Reference) error {
	return r.dir.SetRef(ref)
}

// CheckAndSetReference sets ref only if the stored value's hash still
// equals old's (nil old means "don't check, just set").
func (r *ReferenceStorage) CheckAndSetReference(ref, old *refs.Reference) error {
	if old != nil {
		current, err := r.Reference(ref.Name())
		if err == nil && !current.Hash().Equal(old.Hash()) {
			return ErrReferenceHasChanged
		}
	}
	return r.dir.SetRef(ref)
}

func (r *ReferenceStorage) Reference(n refs.Name) (*refs.Reference, error) {
	all, err := r.dir.Refs()
	if err != nil {
		return nil, err
	}

	for _, ref := range all {
		if ref.Name() == n {
			return ref, nil
		}
	}

	return nil, refs.ErrReferenceNotFound
}

func (r *ReferenceStorage) IterReferences() (storer.ReferenceIter, error) {
	all, err := r.dir.Refs()
	if err != nil {
		return nil, err
	}
	return storer.NewReferenceSliceIter(all), nil
}

func (r *ReferenceStorage) RemoveReference(n refs.Name) error {
	return r.dir.RemoveRef(n)
}

func (r *ReferenceStorage) CountLooseRefs() (int, error) {
	all, err := r.dir.Refs()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, ref := range all {
		if ref.Name() != refs.HEAD {
			count++
		}
	}
	return count, nil
}

// AppendReflog appends entry to name's on-disk log, creating it on first
// use. Part of storer.ReflogStorer.
func (r *ReferenceStorage) AppendReflog(name refs.Name, entry *refs.ReflogEntry) error {
	return r.dir.AppendReflog(name, entry)
}

// ReadReflog returns every entry logged for name, oldest first. Part of
// storer.ReflogStorer.
func (r *ReferenceStorage) ReadReflog(name refs.Name) ([]*refs.ReflogEntry, error) {
	return r.dir.ReadReflog(name)
}

// PackRefs rewrites every hash reference into packed-refs and removes
// its loose file, leaving only HEAD and symbolic refs loose.
func (r *ReferenceStorage) PackRefs() error {
	all, err := r.dir.Refs()
	if err != nil {
		return err
	}

	if err := r.dir.WritePackedRefs(all); err != nil {
		return err
	}

	for _, ref := range all {
		if ref.Type() != refs.HashReference || ref.Name() == refs.HEAD {
			continue
		}
		if err := r.dir.RemoveRef(ref.Name()); err != nil {
			return err
		}
	}

	return nil
}
