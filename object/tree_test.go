package object

import (
	"testing"

	"github.com/hearthwood/gitcore/filemode"
	"github.com/hearthwood/gitcore/objectid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBlobID(t *testing.T, n byte) objectid.ObjectID {
	t.Helper()
	raw := make([]byte, objectid.SHA1Size)
	raw[0] = n
	id, err := objectid.FromBytes(raw)
	require.NoError(t, err)
	return id
}

func TestTreeEncodeDecodeRoundTrip(t *testing.T) {
	tree := &Tree{Entries: []TreeEntry{
		{Name: "README.md", Mode: filemode.Regular, Hash: mustBlobID(t, 1)},
		{Name: "src", Mode: filemode.Dir, Hash: mustBlobID(t, 2)},
	}}

	o := &MemoryObject{}
	require.NoError(t, tree.Encode(o))
	assert.Equal(t, TreeType, o.Type())

	got, err := GetTree(o, objectid.SHA1)
	require.NoError(t, err)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, tree.Entries, got.Entries)
}

func TestTreeEncodeRejectsOutOfOrder(t *testing.T) {
	tree := &Tree{Entries: []TreeEntry{
		{Name: "zzz", Mode: filemode.Regular, Hash: mustBlobID(t, 1)},
		{Name: "aaa", Mode: filemode.Regular, Hash: mustBlobID(t, 2)},
	}}
	err := tree.Encode(&MemoryObject{})
	assert.ErrorIs(t, err, ErrTreeEntryOutOfOrder)
}

func TestTreeEncodeRejectsDuplicateNames(t *testing.T) {
	tree := &Tree{Entries: []TreeEntry{
		{Name: "dup", Mode: filemode.Regular, Hash: mustBlobID(t, 1)},
		{Name: "dup", Mode: filemode.Dir, Hash: mustBlobID(t, 2)},
	}}
	err := tree.Encode(&MemoryObject{})
	assert.ErrorIs(t, err, ErrDuplicateTreeEntry)
}

// TestCompareEntriesDirectorySuffixOrdering exercises the tree-aware
// comparator's defining property: a directory name sorts as if suffixed
// with '/', which can invert naive lexicographic order relative to a
// same-prefixed blob.
func TestCompareEntriesDirectorySuffixOrdering(t *testing.T) {
	dirFoo := TreeEntry{Name: "foo", Mode: filemode.Dir}
	blobFooBar := TreeEntry{Name: "foo-bar", Mode: filemode.Regular}

	// Naive string comparison would put "foo" before "foo-bar" (it's a
	// prefix), but the tree-aware comparator treats "foo" as "foo/",
	// which sorts after "foo-bar" because '-' < '/'.
	assert.Greater(t, CompareEntries(dirFoo, blobFooBar), 0)
	assert.Less(t, CompareEntries(blobFooBar, dirFoo), 0)
}

func TestSortEntriesOrdersByComparator(t *testing.T) {
	entries := []TreeEntry{
		{Name: "foo", Mode: filemode.Dir},
		{Name: "foo-bar", Mode: filemode.Regular},
		{Name: "README.md", Mode: filemode.Regular},
	}
	SortEntries(entries)
	assert.Equal(t, []string{"README.md", "foo-bar", "foo"}, []string{entries[0].Name, entries[1].Name, entries[2].Name})
}

func TestTreeEntryLookup(t *testing.T) {
	tree := &Tree{Entries: []TreeEntry{
		{Name: "a.txt", Mode: filemode.Regular, Hash: mustBlobID(t, 1)},
	}}
	e, ok := tree.Entry("a.txt")
	require.True(t, ok)
	assert.Equal(t, "a.txt", e.Name)

	_, ok = tree.Entry("missing")
	assert.False(t, ok)
}
