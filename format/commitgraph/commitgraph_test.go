package commitgraph

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthwood/gitcore/objectid"
)

func mustID(t *testing.T, n byte) objectid.ObjectID {
	t.Helper()
	raw := make([]byte, objectid.SHA1Size)
	raw[0] = n
	id, err := objectid.FromBytes(raw)
	require.NoError(t, err)
	return id
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	root := mustID(t, 1)
	a := mustID(t, 2)
	b := mustID(t, 3)

	when := time.Unix(1700000000, 0)

	builder := NewBuilder()
	builder.Add(root, &CommitData{TreeHash: mustID(t, 10), Generation: 1, CommitterTime: when})
	builder.Add(a, &CommitData{TreeHash: mustID(t, 11), ParentHashes: []objectid.ObjectID{root}, Generation: 2, CommitterTime: when})
	builder.Add(b, &CommitData{TreeHash: mustID(t, 12), ParentHashes: []objectid.ObjectID{a}, Generation: 3, CommitterTime: when})
	graph := builder.Build()

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, graph, objectid.SHA1))

	decoded, err := Decode(&buf, objectid.SHA1)
	require.NoError(t, err)
	assert.Equal(t, 3, decoded.Len())

	data, ok := decoded.GetCommitData(b)
	require.True(t, ok)
	assert.EqualValues(t, 3, data.Generation)
	require.Len(t, data.ParentHashes, 1)
	assert.Equal(t, a, data.ParentHashes[0])

	data, ok = decoded.GetCommitData(root)
	require.True(t, ok)
	assert.Empty(t, data.ParentHashes)
}

func TestEncodeDecodeOctopusMerge(t *testing.T) {
	p1, p2, p3 := mustID(t, 1), mustID(t, 2), mustID(t, 3)
	merge := mustID(t, 4)

	builder := NewBuilder()
	builder.Add(p1, &CommitData{TreeHash: mustID(t, 10), Generation: 1})
	builder.Add(p2, &CommitData{TreeHash: mustID(t, 11), Generation: 1})
	builder.Add(p3, &CommitData{TreeHash: mustID(t, 12), Generation: 1})
	builder.Add(merge, &CommitData{
		TreeHash:     mustID(t, 13),
		ParentHashes: []objectid.ObjectID{p1, p2, p3},
		Generation:   2,
	})
	graph := builder.Build()

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, graph, objectid.SHA1))

	decoded, err := Decode(&buf, objectid.SHA1)
	require.NoError(t, err)

	data, ok := decoded.GetCommitData(merge)
	require.True(t, ok)
	assert.ElementsMatch(t, []objectid.ObjectID{p1, p2, p3}, data.ParentHashes)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("not-a-commit-graph-file-at-all")), objectid.SHA1)
	assert.Error(t, err)
}

func TestDecodeDetectsCorruption(t *testing.T) {
	builder := NewBuilder()
	builder.Add(mustID(t, 1), &CommitData{TreeHash: mustID(t, 10), Generation: 1})
	graph := builder.Build()

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, graph, objectid.SHA1))

	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xff

	_, err := Decode(bytes.NewReader(corrupted), objectid.SHA1)
	assert.Error(t, err)
}
