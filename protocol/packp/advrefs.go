package packp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hearthwood/gitcore/objectid"
	"github.com/hearthwood/gitcore/protocol/capability"
	"github.com/hearthwood/gitcore/refs"
	"github.com/hearthwood/gitcore/storage/memory"
	"github.com/hearthwood/gitcore/storer"
)

// masterName is the historical default branch name, used only as the
// final guess for which branch HEAD points to on a server that omits
// the symref capability.
const masterName refs.Name = "refs/heads/master"

// AdvRefs is the first message a server sends in response to an
// upload-pack or receive-pack request: the set of refs it holds, their
// peeled values if any, its shallow commits, and the capabilities it
// supports.
type AdvRefs struct {
	// Head is the resolved commit HEAD points to, if the repository is
	// non-empty and the service is upload-pack.
	Head *objectid.ObjectID
	// Capabilities are the capabilities this side supports.
	Capabilities *capability.List
	// References maps ref name to hash, for every non-peeled ref.
	References map[string]objectid.ObjectID
	// Peeled maps ref name to the peeled commit id of an annotated tag.
	Peeled map[string]objectid.ObjectID
	// Shallows lists the commits this repository holds as shallow
	// boundaries (only ever sent by upload-pack).
	Shallows []objectid.ObjectID
}

// NewAdvRefs returns an AdvRefs ready to be populated.
func NewAdvRefs() *AdvRefs {
	return &AdvRefs{
		Capabilities: capability.NewList(),
		References:   make(map[string]objectid.ObjectID),
		Peeled:       make(map[string]objectid.ObjectID),
	}
}

// AddReference records r: a symbolic reference becomes a symref
// capability value, a hash reference is stored directly.
func (a *AdvRefs) AddReference(r *refs.Reference) error {
	switch r.Type() {
	case refs.SymbolicReference:
		v := fmt.Sprintf("%s:%s", r.Name(), r.Target())
		return a.Capabilities.Add(capability.SymRef, v)
	case refs.HashReference:
		a.References[string(r.Name())] = r.Hash()
	default:
		return fmt.Errorf("packp: invalid reference type")
	}
	return nil
}

// IsEmpty reports whether this message carries no refs at all.
func (a *AdvRefs) IsEmpty() bool {
	return a.Head == nil &&
		len(a.References) == 0 &&
		len(a.Peeled) == 0 &&
		len(a.Shallows) == 0
}

func (a *AdvRefs) supportsSymRefs() bool {
	return a.Capabilities.Supports(capability.SymRef)
}

// AllReferences resolves every advertised ref, including HEAD, into an
// in-memory reference store.
func (a *AdvRefs) AllReferences() (memory.ReferenceStorage, error) {
	s := memory.ReferenceStorage{}
	if err := a.addRefs(s); err != nil {
		return s, err
	}
	return s, nil
}

func (a *AdvRefs) addRefs(s storer.ReferenceStorer) error {
	for name, hash := range a.References {
		if err := s.SetReference(refs.NewHashReference(refs.Name(name), hash)); err != nil {
			return err
		}
	}

	if a.supportsSymRefs() {
		return a.addSymbolicRefs(s)
	}
	return a.resolveHead(s)
}

func (a *AdvRefs) addSymbolicRefs(s storer.ReferenceStorer) error {
	for _, symref := range a.Capabilities.Get(capability.SymRef) {
		chunks := strings.SplitN(symref, ":", 2)
		if len(chunks) != 2 {
			return fmt.Errorf("packp: bad symref value %q", symref)
		}
		ref := refs.NewSymbolicReference(refs.Name(chunks[0]), refs.Name(chunks[1]))
		if err := s.SetReference(ref); err != nil {
			return err
		}
	}
	return nil
}

// resolveHead guesses which branch HEAD points to when the server did
// not advertise the symref capability: first trying master, then every
// other ref in lexical order, matching the historical git client's
// fallback for pre-1.8.4.3 servers.
func (a *AdvRefs) resolveHead(s storer.ReferenceStorer) error {
	if a.Head == nil {
		return nil
	}

	if ref, err := s.Reference(masterName); err == nil {
		if ok, err := a.setHeadIfMatches(ref, s); err != nil {
			return err
		} else if ok {
			return nil
		}
	} else if err != refs.ErrReferenceNotFound {
		return err
	}

	it, err := s.IterReferences()
	if err != nil {
		return err
	}

	var names []string
	if err := it.ForEach(func(r *refs.Reference) error {
		names = append(names, string(r.Name()))
		return nil
	}); err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		ref, err := s.Reference(refs.Name(name))
		if err != nil {
			return err
		}
		if ok, err := a.setHeadIfMatches(ref, s); err != nil {
			return err
		} else if ok {
			return nil
		}
	}

	return refs.ErrReferenceNotFound
}

func (a *AdvRefs) setHeadIfMatches(ref *refs.Reference, s storer.ReferenceStorer) (bool, error) {
	if !ref.Hash().Equal(*a.Head) {
		return false, nil
	}
	head := refs.NewSymbolicReference(refs.HEAD, ref.Name())
	if err := s.SetReference(head); err != nil {
		return false, err
	}
	return true, nil
}

// MakeReferenceSlice returns every resolved reference, including peeled
// entries, sorted by name.
func (a *AdvRefs) MakeReferenceSlice() ([]*refs.Reference, error) {
	all, err := a.AllReferences()
	if err != nil {
		return nil, err
	}

	slice := make([]*refs.Reference, 0, len(all))
	for _, ref := range all {
		slice = append(slice, ref)
		if peeled, ok := a.Peeled[string(ref.Name())]; ok {
			slice = append(slice, refs.NewHashReference(refs.Name(string(ref.Name())+"^{}"), peeled))
		}
	}

	sort.Slice(slice, func(i, j int) bool { return slice[i].Name() < slice[j].Name() })
	return slice, nil
}
