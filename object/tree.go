package object

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/hearthwood/gitcore/filemode"
	"github.com/hearthwood/gitcore/objectid"
)

// ErrDuplicateTreeEntry is returned when a tree is decoded or built with two
// entries sharing a name.
var ErrDuplicateTreeEntry = errors.New("object: duplicate tree entry name")

// ErrTreeEntryOutOfOrder is returned when a caller inserts an entry that
// would break tree-comparator ordering.
var ErrTreeEntryOutOfOrder = errors.New("object: tree entries out of order")

// TreeEntry is one (mode, name, id) triple inside a Tree.
type TreeEntry struct {
	Name string
	Mode filemode.FileMode
	Hash objectid.ObjectID
}

// Tree is an ordered sequence of entries, each naming a blob, another tree,
// or a submodule gitlink.
type Tree struct {
	Hash    objectid.ObjectID
	Format  objectid.Format // width of the ids embedded in Entries; defaults to SHA1 when zero-valued.
	Entries []TreeEntry
}

// EntryName is the sort key used by the tree-aware comparator: a directory
// name compares as if one byte higher than the same bytes without a
// trailing slash, so "foo" (blob) sorts before "foo/" (tree) even though
// "foo" < "foo.txt" lexically.
func EntryName(name string, mode filemode.FileMode) []byte {
	if mode == filemode.Dir {
		return append([]byte(name), '/')
	}
	return []byte(name)
}

// CompareEntries orders two tree entries the way Git does: by name bytes,
// with directories suffixed by '/' for comparison purposes only.
func CompareEntries(a, b TreeEntry) int {
	return bytes.Compare(EntryName(a.Name, a.Mode), EntryName(b.Name, b.Mode))
}

// GetTree decodes a Tree from its EncodedObject form. The tree's embedded
// entry ids are read at the given format's width; pass the repository's
// object format (objectid.SHA1 or objectid.SHA256).
func GetTree(o EncodedObject, format objectid.Format) (*Tree, error) {
	if o.Type() != TreeType {
		return nil, ErrUnsupportedObject
	}
	t := &Tree{Hash: o.Hash(), Format: format}
	r, err := o.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if err := t.Decode(r); err != nil {
		return nil, err
	}
	return t, nil
}

// Decode parses the canonical tree encoding: a sequence of
// "<mode> <name>\0<raw-id>" records with no separators between records. The
// id width is taken from t.Format (SHA1Size when unset).
func (t *Tree) Decode(r io.Reader) error {
	br := bufio.NewReader(r)
	t.Entries = t.Entries[:0]

	var prev *TreeEntry
	idSize := objectid.SHA1Size
	if t.Format == objectid.SHA256 {
		idSize = objectid.SHA256Size
	}

	for {
		modeName, err := br.ReadString(0)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("object: reading tree entry: %w", err)
		}
		modeName = modeName[:len(modeName)-1] // strip NUL

		sp := bytes.IndexByte([]byte(modeName), ' ')
		if sp < 0 {
			return fmt.Errorf("object: malformed tree entry %q", modeName)
		}
		modeNum, err := strconv.ParseUint(modeName[:sp], 8, 32)
		if err != nil {
			return fmt.Errorf("object: malformed tree mode %q: %w", modeName[:sp], err)
		}

		raw := make([]byte, idSize)
		if _, err := io.ReadFull(br, raw); err != nil {
			return fmt.Errorf("object: reading tree entry id: %w", err)
		}
		id, err := objectid.FromBytes(raw)
		if err != nil {
			return err
		}

		e := TreeEntry{Name: modeName[sp+1:], Mode: filemode.FileMode(modeNum), Hash: id}

		if prev != nil {
			switch {
			case prev.Name == e.Name:
				return ErrDuplicateTreeEntry
			case CompareEntries(*prev, e) > 0:
				return ErrTreeEntryOutOfOrder
			}
		}

		t.Entries = append(t.Entries, e)
		prevCopy := e
		prev = &prevCopy
	}

	return nil
}

// Encode writes the canonical tree encoding. Entries must already be in
// CompareEntries order; Encode does not sort them, matching Git's
// requirement that out-of-order input be rejected rather than silently
// fixed.
func (t *Tree) Encode(w EncodedObject) error {
	w.SetType(TreeType)
	wc, err := w.Writer()
	if err != nil {
		return err
	}
	defer wc.Close()

	for i, e := range t.Entries {
		if i > 0 {
			if t.Entries[i-1].Name == e.Name {
				return ErrDuplicateTreeEntry
			}
			if CompareEntries(t.Entries[i-1], e) >= 0 {
				return ErrTreeEntryOutOfOrder
			}
		}
		if _, err := fmt.Fprintf(wc, "%s %s\x00", e.Mode.Bytes(), e.Name); err != nil {
			return err
		}
		if _, err := wc.Write(e.Hash.Bytes()); err != nil {
			return err
		}
	}

	return nil
}

// SortEntries reorders entries into tree-comparator order in place. Used by
// builders assembling a tree from arbitrary insertion order; Encode/Decode
// themselves never silently reorder.
func SortEntries(entries []TreeEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return CompareEntries(entries[i], entries[j]) < 0
	})
}

// Entry looks up a direct child by name.
func (t *Tree) Entry(name string) (*TreeEntry, bool) {
	for i := range t.Entries {
		if t.Entries[i].Name == name {
			return &t.Entries[i], true
		}
	}
	return nil, false
}

// String renders the tree the way "ls-tree" does:
// "<mode> <type> <id>\t<name>\n" per entry.
func (t *Tree) String() string {
	buf := &bytes.Buffer{}
	for _, e := range t.Entries {
		kind := "blob"
		switch e.Mode {
		case filemode.Dir:
			kind = "tree"
		case filemode.Submodule:
			kind = "commit"
		}
		fmt.Fprintf(buf, "%s %s %s\t%s\n", e.Mode, kind, e.Hash, e.Name)
	}
	return buf.String()
}
