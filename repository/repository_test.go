package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthwood/gitcore/config"
	"github.com/hearthwood/gitcore/object"
	"github.com/hearthwood/gitcore/objectid"
	"github.com/hearthwood/gitcore/refs"
	"github.com/hearthwood/gitcore/storage/memory"
)

func TestInitBare(t *testing.T) {
	s := memory.NewStorage()
	r, err := Init(s, nil)
	require.NoError(t, err)
	assert.True(t, r.IsBare())

	cfg, err := r.Config()
	require.NoError(t, err)
	assert.True(t, cfg.Core.IsBare)

	head, err := r.Reference(refs.HEAD, false)
	require.NoError(t, err)
	assert.Equal(t, refs.SymbolicReference, head.Type())
	assert.Equal(t, refs.Name("refs/heads/master"), head.Target())
}

func TestInitTwiceFails(t *testing.T) {
	s := memory.NewStorage()
	_, err := Init(s, nil)
	require.NoError(t, err)

	_, err = Init(s, nil)
	assert.ErrorIs(t, err, ErrRepositoryAlreadyExists)
}

func TestOpenMissingHEAD(t *testing.T) {
	s := memory.NewStorage()
	_, err := Open(s, nil)
	assert.ErrorIs(t, err, ErrRepositoryNotExists)
}

func TestOpenNonBareRequiresWorktree(t *testing.T) {
	s := memory.NewStorage()
	_, err := Init(s, nil)
	require.NoError(t, err)

	cfg, err := s.Config()
	require.NoError(t, err)
	cfg.Core.IsBare = false
	require.NoError(t, s.SetConfig(cfg))

	_, err = Open(s, nil)
	assert.ErrorIs(t, err, ErrWorktreeNotProvided)
}

func TestHeadUnbornFails(t *testing.T) {
	s := memory.NewStorage()
	r, err := Init(s, nil)
	require.NoError(t, err)

	_, err = r.Head()
	assert.ErrorIs(t, err, refs.ErrReferenceNotFound)
}

func TestHeadResolvesThroughSymbolic(t *testing.T) {
	s := memory.NewStorage()
	r, err := Init(s, nil)
	require.NoError(t, err)

	tip := commitFixture(t, s)
	require.NoError(t, r.SetReference(refs.NewHashReference("refs/heads/master", tip)))

	head, err := r.Head()
	require.NoError(t, err)
	assert.Equal(t, refs.HashReference, head.Type())
	assert.Equal(t, tip, head.Hash())
}

func TestCreateAndDeleteRemote(t *testing.T) {
	s := memory.NewStorage()
	r, err := Init(s, nil)
	require.NoError(t, err)

	c := &config.RemoteConfig{Name: "origin", URLs: []string{"git@example.com:repo.git"}}
	_, err = r.CreateRemote(c)
	require.NoError(t, err)

	_, err = r.CreateRemote(c)
	assert.ErrorIs(t, err, ErrRemoteExists)

	got, err := r.Remote("origin")
	require.NoError(t, err)
	assert.Equal(t, "origin", got.Config().Name)

	remotes, err := r.Remotes()
	require.NoError(t, err)
	assert.Len(t, remotes, 1)

	require.NoError(t, r.DeleteRemote("origin"))
	_, err = r.Remote("origin")
	assert.ErrorIs(t, err, ErrRemoteNotFound)
}

func TestCommitObject(t *testing.T) {
	s := memory.NewStorage()
	r, err := Init(s, nil)
	require.NoError(t, err)

	id := commitFixture(t, s)
	c, err := r.CommitObject(id)
	require.NoError(t, err)
	assert.Equal(t, "a commit\n", c.Message)
}

func TestReflogUnsupportedOverMemoryStorer(t *testing.T) {
	s := memory.NewStorage()
	r, err := Init(s, nil)
	require.NoError(t, err)

	id := commitFixture(t, s)
	entry := &refs.ReflogEntry{New: id, Who: object.Signature{Name: "t", Email: "t@example.com"}}
	err = r.AppendReflog("refs/heads/master", entry)
	assert.ErrorIs(t, err, ErrReflogNotSupported)

	_, err = r.Reflog("refs/heads/master")
	assert.ErrorIs(t, err, ErrReflogNotSupported)
}

// commitFixture stores a single empty-tree commit into s and returns its id.
func commitFixture(t *testing.T, s Storer) objectid.ObjectID {
	t.Helper()

	tree := &object.MemoryObject{}
	tree.SetType(object.TreeType)
	w, err := tree.Writer()
	require.NoError(t, err)
	require.NoError(t, w.Close())
	tree.HashObject(objectid.SHA1)
	treeID, err := s.SetEncodedObject(tree)
	require.NoError(t, err)

	c := &object.Commit{
		TreeHash: treeID,
		Author:   object.Signature{Name: "tester", Email: "tester@example.com"},
		Message:  "a commit\n",
	}
	c.Committer = c.Author

	mo := &object.MemoryObject{}
	require.NoError(t, c.Encode(mo))
	mo.HashObject(objectid.SHA1)

	id, err := s.SetEncodedObject(mo)
	require.NoError(t, err)
	return id
}
