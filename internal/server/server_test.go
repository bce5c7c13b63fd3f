package server

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthwood/gitcore/object"
	"github.com/hearthwood/gitcore/objectid"
	"github.com/hearthwood/gitcore/protocol/capability"
	"github.com/hearthwood/gitcore/protocol/packp"
	"github.com/hearthwood/gitcore/refs"
	"github.com/hearthwood/gitcore/repository"
	"github.com/hearthwood/gitcore/storage/memory"
)

func testRepo(t *testing.T) *repository.Repository {
	t.Helper()
	repo, err := repository.Init(memory.NewStorage(), nil)
	require.NoError(t, err)
	return repo
}

func commitFixture(t *testing.T, repo *repository.Repository) objectid.ObjectID {
	t.Helper()

	tree := &object.MemoryObject{}
	tree.SetType(object.TreeType)
	w, err := tree.Writer()
	require.NoError(t, err)
	require.NoError(t, w.Close())
	tree.HashObject(objectid.SHA1)
	treeID, err := repo.Storer().SetEncodedObject(tree)
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

	id, err := repo.Storer().SetEncodedObject(mo)
	require.NoError(t, err)
	return id
}

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

func TestAdvertiseReferencesListsRefsAndCapabilities(t *testing.T) {
	repo := testRepo(t)
	tip := commitFixture(t, repo)
	require.NoError(t, repo.SetReference(refs.NewHashReference("refs/heads/master", tip)))

	var buf bytes.Buffer
	require.NoError(t, AdvertiseReferences(repo, &buf, false))

	ar := packp.NewAdvRefs()
	require.NoError(t, ar.Decode(&buf))
	assert.Equal(t, tip, ar.References["refs/heads/master"])
	require.NotNil(t, ar.Head)
	assert.Equal(t, tip, *ar.Head)
}

func TestUploadPackServesWantedHistory(t *testing.T) {
	repo := testRepo(t)
	tip := commitFixture(t, repo)
	require.NoError(t, repo.SetReference(refs.NewHashReference("refs/heads/master", tip)))

	upreq := packp.NewUploadRequest()
	upreq.Wants = []objectid.ObjectID{tip}

	var client bytes.Buffer
	require.NoError(t, upreq.Encode(&client))
	uphav := packp.UploadHaves{Done: true}
	require.NoError(t, uphav.Encode(&client))

	var out nopCloser
	out.Buffer = &bytes.Buffer{}
	require.NoError(t, UploadPack(context.Background(), repo, &client, out))

	// Skip the advertisement this server wrote before the client's
	// negotiation in a real session; here we only care that a well-formed
	// pack follows the server-response.
	body := out.Bytes()
	idx := bytes.Index(body, []byte("PACK"))
	require.GreaterOrEqual(t, idx, 0)
}

func TestReceivePackAppliesCommandsAndReports(t *testing.T) {
	src := testRepo(t)
	tip := commitFixture(t, src)

	pack, err := src.PackObjects([]objectid.ObjectID{tip}, nil, objectid.SHA1)
	require.NoError(t, err)
	packBody, err := io.ReadAll(pack)
	require.NoError(t, err)

	dst := testRepo(t)

	updreq := packp.NewReferenceUpdateRequest()
	updreq.Commands = []*packp.Command{{Name: "refs/heads/master", New: tip}}
	updreq.Capabilities.Set(capability.ReportStatus) //nolint:errcheck

	var client bytes.Buffer
	require.NoError(t, updreq.Encode(&client))
	client.Write(packBody)

	var out nopCloser
	out.Buffer = &bytes.Buffer{}
	require.NoError(t, ReceivePack(context.Background(), dst, &client, out))

	ref, err := dst.Reference("refs/heads/master", false)
	require.NoError(t, err)
	assert.Equal(t, tip, ref.Hash())

	_, err = dst.CommitObject(tip)
	require.NoError(t, err)
}
