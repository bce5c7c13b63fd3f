package diff

import (
	"testing"

	"github.com/hearthwood/gitcore/filemode"
	"github.com/hearthwood/gitcore/object"
	"github.com/hearthwood/gitcore/objectid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memTrees struct{ m map[objectid.ObjectID]*object.Tree }

func (s *memTrees) GetTree(id objectid.ObjectID) (*object.Tree, error) { return s.m[id], nil }

func mustID(t *testing.T, s string) objectid.ObjectID {
	t.Helper()
	id, err := objectid.FromHex(s)
	require.NoError(t, err)
	return id
}

func TestDiffTreesInsertDeleteModify(t *testing.T) {
	store := &memTrees{m: map[objectid.ObjectID]*object.Tree{}}

	from := &object.Tree{Entries: []object.TreeEntry{
		{Name: "a.txt", Mode: filemode.Regular, Hash: mustID(t, "1111111111111111111111111111111111111111")},
		{Name: "b.txt", Mode: filemode.Regular, Hash: mustID(t, "2222222222222222222222222222222222222222")},
	}}
	to := &object.Tree{Entries: []object.TreeEntry{
		{Name: "b.txt", Mode: filemode.Regular, Hash: mustID(t, "3333333333333333333333333333333333333333")},
		{Name: "c.txt", Mode: filemode.Regular, Hash: mustID(t, "4444444444444444444444444444444444444444")},
	}}

	changes, err := DiffTrees(store, from, to)
	require.NoError(t, err)
	require.Len(t, changes, 3)

	byName := map[string]Change{}
	for _, c := range changes {
		byName[c.Name] = c
	}
	assert.Equal(t, Delete, byName["a.txt"].Action)
	assert.Equal(t, Modify, byName["b.txt"].Action)
	assert.Equal(t, Insert, byName["c.txt"].Action)
}

func TestDiffTreesDescendsUnchangedSubtreeSkipped(t *testing.T) {
	store := &memTrees{m: map[objectid.ObjectID]*object.Tree{}}

	subID := mustID(t, "5555555555555555555555555555555555555555")
	sub := &object.Tree{Entries: []object.TreeEntry{
		{Name: "nested.txt", Mode: filemode.Regular, Hash: mustID(t, "6666666666666666666666666666666666666666")},
	}}
	store.m[subID] = sub

	from := &object.Tree{Entries: []object.TreeEntry{
		{Name: "src", Mode: filemode.Dir, Hash: subID},
	}}
	to := &object.Tree{Entries: []object.TreeEntry{
		{Name: "src", Mode: filemode.Dir, Hash: subID},
	}}

	changes, err := DiffTrees(store, from, to)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestDiffTreesRecursesChangedSubtree(t *testing.T) {
	store := &memTrees{m: map[objectid.ObjectID]*object.Tree{}}

	subA := mustID(t, "7777777777777777777777777777777777777777")
	subB := mustID(t, "8888888888888888888888888888888888888888")
	store.m[subA] = &object.Tree{Entries: []object.TreeEntry{
		{Name: "nested.txt", Mode: filemode.Regular, Hash: mustID(t, "9999999999999999999999999999999999999999")},
	}}
	store.m[subB] = &object.Tree{Entries: []object.TreeEntry{
		{Name: "nested.txt", Mode: filemode.Regular, Hash: mustID(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")},
	}}

	from := &object.Tree{Entries: []object.TreeEntry{{Name: "src", Mode: filemode.Dir, Hash: subA}}}
	to := &object.Tree{Entries: []object.TreeEntry{{Name: "src", Mode: filemode.Dir, Hash: subB}}}

	changes, err := DiffTrees(store, from, to)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "src/nested.txt", changes[0].Name)
	assert.Equal(t, Modify, changes[0].Action)
}
