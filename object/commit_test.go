package object

import (
	"testing"
	"time"

	"github.com/hearthwood/gitcore/objectid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitEncodeDecodeRoundTrip(t *testing.T) {
	when := Timestamp{When: time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("", 2*3600))}
	parent := mustBlobID(t, 9)
	treeHash := mustBlobID(t, 1)

	c := &Commit{
		TreeHash:     treeHash,
		ParentHashes: []objectid.ObjectID{parent},
		Author:       Signature{Name: "Ada Lovelace", Email: "ada@example.com", When: when},
		Committer:    Signature{Name: "Ada Lovelace", Email: "ada@example.com", When: when},
		Message:      "initial commit\n",
	}

	o := &MemoryObject{}
	require.NoError(t, c.Encode(o))
	assert.Equal(t, CommitType, o.Type())

	got, err := GetCommit(o)
	require.NoError(t, err)
	assert.True(t, got.TreeHash.Equal(treeHash))
	require.Len(t, got.ParentHashes, 1)
	assert.True(t, got.ParentHashes[0].Equal(parent))
	assert.Equal(t, "Ada Lovelace", got.Author.Name)
	assert.Equal(t, "ada@example.com", got.Author.Email)
	assert.Equal(t, "initial commit\n", got.Message)
}

func TestCommitIsMergeIsRoot(t *testing.T) {
	c := &Commit{}
	assert.True(t, c.IsRoot())
	assert.False(t, c.IsMerge())

	c.ParentHashes = []objectid.ObjectID{mustBlobID(t, 1)}
	assert.False(t, c.IsRoot())
	assert.False(t, c.IsMerge())

	c.ParentHashes = append(c.ParentHashes, mustBlobID(t, 2))
	assert.True(t, c.IsMerge())
	assert.Equal(t, 2, c.NumParents())
}

func TestCommitDecodeWithGPGSignature(t *testing.T) {
	when := Timestamp{When: time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("", 0))}
	c := &Commit{
		TreeHash:     mustBlobID(t, 1),
		Author:       Signature{Name: "A", Email: "a@example.com", When: when},
		Committer:    Signature{Name: "A", Email: "a@example.com", When: when},
		PGPSignature: "-----BEGIN PGP SIGNATURE-----\n\nabc123\n-----END PGP SIGNATURE-----",
		Message:      "signed commit\n",
	}

	o := &MemoryObject{}
	require.NoError(t, c.Encode(o))

	got, err := GetCommit(o)
	require.NoError(t, err)
	assert.Equal(t, c.PGPSignature, got.PGPSignature)
	assert.Equal(t, "signed commit\n", got.Message)
}
