package memory

import (
	"io"
	"testing"

	"github.com/hearthwood/gitcore/object"
	"github.com/hearthwood/gitcore/objectid"
	"github.com/hearthwood/gitcore/refs"
	"github.com/hearthwood/gitcore/storer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blob(t *testing.T, content byte) object.EncodedObject {
	t.Helper()
	o := &object.MemoryObject{}
	o.SetType(object.BlobType)
	w, err := o.Writer()
	require.NoError(t, err)
	_, err = w.Write([]byte{content})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	o.HashObject(objectid.SHA1)
	return o
}

func TestSetAndGetEncodedObject(t *testing.T) {
	s := NewStorage()
	o := blob(t, 1)

	h, err := s.SetEncodedObject(o)
	require.NoError(t, err)
	assert.Equal(t, o.Hash(), h)

	got, err := s.EncodedObject(object.BlobType, h)
	require.NoError(t, err)
	assert.Equal(t, o, got)

	require.NoError(t, s.HasEncodedObject(h))

	size, err := s.EncodedObjectSize(h)
	require.NoError(t, err)
	assert.EqualValues(t, 1, size)
}

func TestEncodedObjectWrongTypeNotFound(t *testing.T) {
	s := NewStorage()
	o := blob(t, 1)
	_, err := s.SetEncodedObject(o)
	require.NoError(t, err)

	_, err = s.EncodedObject(object.CommitType, o.Hash())
	assert.ErrorIs(t, err, object.ErrObjectNotFound)
}

func TestIterEncodedObjectsByType(t *testing.T) {
	s := NewStorage()
	a, b := blob(t, 1), blob(t, 2)
	_, err := s.SetEncodedObject(a)
	require.NoError(t, err)
	_, err = s.SetEncodedObject(b)
	require.NoError(t, err)

	it, err := s.IterEncodedObjects(object.BlobType)
	require.NoError(t, err)
	defer it.Close()

	var count int
	require.NoError(t, it.ForEach(func(object.EncodedObject) error {
		count++
		return nil
	}))
	assert.Equal(t, 2, count)

	it, err = s.IterEncodedObjects(object.CommitType)
	require.NoError(t, err)
	_, err = it.Next()
	assert.Equal(t, io.EOF, err)
}

func TestRawObjectWriterCommitsOnClose(t *testing.T) {
	s := NewStorage()
	w, err := s.RawObjectWriter(object.BlobType, 3)
	require.NoError(t, err)

	_, err = w.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	it, err := s.IterEncodedObjects(object.BlobType)
	require.NoError(t, err)
	defer it.Close()

	got, err := it.Next()
	require.NoError(t, err)
	assert.EqualValues(t, 3, got.Size())
}

func TestObjectStorageTransactionCommit(t *testing.T) {
	s := NewStorage()
	tx := s.Begin()

	o := blob(t, 5)
	_, err := tx.SetEncodedObject(o)
	require.NoError(t, err)

	assert.Error(t, s.HasEncodedObject(o.Hash()))
	require.NoError(t, tx.Commit())
	require.NoError(t, s.HasEncodedObject(o.Hash()))
}

func TestObjectStorageTransactionRollback(t *testing.T) {
	s := NewStorage()
	tx := s.Begin()

	o := blob(t, 6)
	_, err := tx.SetEncodedObject(o)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	require.NoError(t, tx.Commit())

	assert.Error(t, s.HasEncodedObject(o.Hash()))
}

func TestReferenceSetGetIterRemove(t *testing.T) {
	s := NewStorage()
	r := refs.NewHashReference("refs/heads/main", mustHash(t, 1))

	require.NoError(t, s.SetReference(r))

	got, err := s.Reference("refs/heads/main")
	require.NoError(t, err)
	assert.Equal(t, r, got)

	it, err := s.IterReferences()
	require.NoError(t, err)
	defer it.Close()
	next, err := it.Next()
	require.NoError(t, err)
	assert.Equal(t, r, next)

	count, err := s.CountLooseRefs()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, s.RemoveReference("refs/heads/main"))
	_, err = s.Reference("refs/heads/main")
	assert.ErrorIs(t, err, refs.ErrReferenceNotFound)
}

func TestCheckAndSetReferenceDetectsConcurrentChange(t *testing.T) {
	s := NewStorage()
	name := refs.Name("refs/heads/main")
	original := refs.NewHashReference(name, mustHash(t, 1))
	require.NoError(t, s.SetReference(original))

	changed := refs.NewHashReference(name, mustHash(t, 2))
	require.NoError(t, s.SetReference(changed))

	attempt := refs.NewHashReference(name, mustHash(t, 3))
	err := s.CheckAndSetReference(attempt, original)
	assert.ErrorIs(t, err, ErrReferenceHasChanged)
}

func TestShallowStorage(t *testing.T) {
	s := NewStorage()
	ids := []objectid.ObjectID{mustHash(t, 1), mustHash(t, 2)}
	require.NoError(t, s.SetShallow(ids))

	got, err := s.Shallow()
	require.NoError(t, err)
	assert.Equal(t, ids, got)
}

func TestConfigStorage(t *testing.T) {
	s := NewStorage()
	cfg, err := s.Config()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	cfg.Core.IsBare = true
	require.NoError(t, s.SetConfig(cfg))

	got, err := s.Config()
	require.NoError(t, err)
	assert.True(t, got.Core.IsBare)
}

func TestIndexStorageDefaultsToVersion2(t *testing.T) {
	s := NewStorage()
	idx, err := s.Index()
	require.NoError(t, err)
	assert.EqualValues(t, 2, idx.Version)
}

func mustHash(t *testing.T, n byte) objectid.ObjectID {
	t.Helper()
	raw := make([]byte, objectid.SHA1Size)
	raw[0] = n
	id, err := objectid.FromBytes(raw)
	require.NoError(t, err)
	return id
}

var _ storer.Storer = (*Storage)(nil)
