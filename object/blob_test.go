package object

import (
	"io"
	"testing"

	"github.com/hearthwood/gitcore/objectid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBlobAndGetBlob(t *testing.T) {
	o := NewBlob([]byte("package main\n"), objectid.SHA1)
	require.Equal(t, BlobType, o.Type())

	blob, err := GetBlob(o)
	require.NoError(t, err)
	assert.Equal(t, o.Hash(), blob.Hash)
	assert.EqualValues(t, len("package main\n"), blob.Size)

	r, err := blob.Reader()
	require.NoError(t, err)
	defer r.Close()
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(content))
}

func TestGetBlobRejectsWrongType(t *testing.T) {
	o := &MemoryObject{}
	o.SetType(TreeType)
	_, err := GetBlob(o)
	assert.ErrorIs(t, err, ErrUnsupportedObject)
}
