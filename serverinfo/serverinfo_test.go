package serverinfo

import (
	"io"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthwood/gitcore/objectid"
	"github.com/hearthwood/gitcore/refs"
	"github.com/hearthwood/gitcore/storage/filesystem"
	"github.com/hearthwood/gitcore/storage/memory"
)

func TestUpdateServerInfoMemoryUnsupported(t *testing.T) {
	s := memory.NewStorage()
	fs := memfs.New()

	err := UpdateServerInfo(s, fs)
	assert.ErrorIs(t, err, ErrPackedObjectsNotSupported)
}

func TestUpdateServerInfoWritesRefs(t *testing.T) {
	fs := memfs.New()
	s := filesystem.NewStorage(fs, nil)
	require.NoError(t, s.Init())

	require.NoError(t, s.SetReference(refs.NewHashReference("refs/heads/master", objectid.ObjectID{})))
	require.NoError(t, s.SetReference(refs.NewSymbolicReference(refs.HEAD, "refs/heads/master")))

	require.NoError(t, UpdateServerInfo(s, fs))

	f, err := fs.Open("info/refs")
	require.NoError(t, err)
	defer f.Close()

	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Contains(t, string(body), "refs/heads/master")
	assert.NotContains(t, string(body), "HEAD")

	packs, err := fs.Open("objects/info/packs")
	require.NoError(t, err)
	defer packs.Close()
}
