package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBlobs struct{ m map[string][]byte }

func (b *memBlobs) GetBlob(hash string) ([]byte, error) { return b.m[hash], nil }

func TestDetectRenamesExactMatch(t *testing.T) {
	hashID := mustID(t, "1111111111111111111111111111111111111111")
	changes := Changes{
		{Action: Delete, Name: "old/name.txt", FromHash: hashID},
		{Action: Insert, Name: "new/name.txt", ToHash: hashID},
	}

	out := DetectRenames(changes, nil, DefaultRenameScoreThreshold)
	require.Len(t, out, 1)
	assert.Equal(t, Rename, out[0].Action)
	assert.Equal(t, "old/name.txt", out[0].OldName)
	assert.Equal(t, "new/name.txt", out[0].Name)
}

func TestDetectRenamesNoMatchLeftAsIs(t *testing.T) {
	changes := Changes{
		{Action: Delete, Name: "a.txt", FromHash: mustID(t, "1111111111111111111111111111111111111111")},
		{Action: Insert, Name: "b.txt", ToHash: mustID(t, "2222222222222222222222222222222222222222")},
	}

	out := DetectRenames(changes, nil, DefaultRenameScoreThreshold)
	require.Len(t, out, 2)
	for _, c := range out {
		assert.NotEqual(t, Rename, c.Action)
	}
}

func TestDetectRenamesSimilarityMatch(t *testing.T) {
	fromHash := mustID(t, "1111111111111111111111111111111111111111")
	toHash := mustID(t, "2222222222222222222222222222222222222222")
	blobs := &memBlobs{m: map[string][]byte{
		fromHash.String(): []byte("line one\nline two\nline three\nline four\n"),
		toHash.String():   []byte("line one\nline two\nline three\nline FOUR changed\n"),
	}}

	changes := Changes{
		{Action: Delete, Name: "old.txt", FromHash: fromHash},
		{Action: Insert, Name: "new.txt", ToHash: toHash},
	}

	out := DetectRenames(changes, blobs, DefaultRenameScoreThreshold)
	require.Len(t, out, 1)
	assert.Equal(t, Rename, out[0].Action)
	assert.Equal(t, "old.txt", out[0].OldName)
	assert.Equal(t, "new.txt", out[0].Name)
}
