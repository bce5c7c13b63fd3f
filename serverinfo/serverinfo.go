// Package serverinfo implements the refresh step behind `git
// update-server-info`: writing info/refs and objects/info/packs so a dumb
// HTTP server can advertise a repository's refs and packs without speaking
// the smart wire protocol.
package serverinfo

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-git/go-billy/v5"

	"github.com/hearthwood/gitcore/object"
	"github.com/hearthwood/gitcore/refs"
	"github.com/hearthwood/gitcore/storer"
)

// ErrPackedObjectsNotSupported is returned when s doesn't track which
// packfiles back it (storage/memory, say), so objects/info/packs can't be
// written meaningfully.
var ErrPackedObjectsNotSupported = errors.New("serverinfo: storer does not support packed objects")

// Storer is what UpdateServerInfo needs: references plus the ability to
// read back an arbitrary object (to resolve a tag's peeled target).
type Storer interface {
	storer.ReferenceStorer
	storer.EncodedObjectStorer
}

// UpdateServerInfo regenerates info/refs and objects/info/packs under fs
// from s's current refs and packs.
func UpdateServerInfo(s Storer, fs billy.Filesystem) error {
	pos, ok := s.(storer.PackedObjectStorer)
	if !ok {
		return ErrPackedObjectsNotSupported
	}

	if err := writeInfoRefs(s, fs); err != nil {
		return err
	}
	return writeInfoPacks(pos, fs)
}

func writeInfoRefs(s Storer, fs billy.Filesystem) error {
	f, err := fs.Create("info/refs")
	if err != nil {
		return err
	}
	defer f.Close()

	iter, err := s.IterReferences()
	if err != nil {
		return err
	}
	defer iter.Close()

	var all []*refs.Reference
	if err := iter.ForEach(func(r *refs.Reference) error {
		all = append(all, r)
		return nil
	}); err != nil {
		return err
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Name() < all[j].Name() })

	for _, r := range all {
		name := r.Name()
		hash := r.Hash()

		switch r.Type() {
		case refs.SymbolicReference:
			if name == refs.HEAD {
				continue
			}
			target, err := s.Reference(r.Target())
			if err != nil {
				return err
			}
			hash = target.Hash()
			fallthrough
		case refs.HashReference:
			fmt.Fprintf(f, "%s\t%s\n", hash, name)
			if r.IsTag() {
				o, err := s.EncodedObject(object.TagType, hash)
				if err == nil {
					if tag, err := object.GetTag(o); err == nil {
						fmt.Fprintf(f, "%s\t%s^{}\n", tag.TargetHash, name)
					}
				}
			}
		}
	}
	return nil
}

func writeInfoPacks(pos storer.PackedObjectStorer, fs billy.Filesystem) error {
	f, err := fs.Create("objects/info/packs")
	if err != nil {
		return err
	}
	defer f.Close()

	packs, err := pos.ObjectPacks()
	if err != nil {
		return err
	}
	for _, p := range packs {
		fmt.Fprintf(f, "P pack-%s.pack\n", p)
	}
	fmt.Fprintln(f)
	return nil
}
