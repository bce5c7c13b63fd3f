package revwalk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerationCacheComputesFromStoreWhenNoGraph(t *testing.T) {
	store, head := buildChain(t)
	gc := NewGenerationCache(store, nil)

	gen, err := gc.Generation(head.Hash)
	require.NoError(t, err)
	assert.EqualValues(t, 4, gen)

	root := mustID(t, "1111111111111111111111111111111111111111")
	gen, err = gc.Generation(root)
	require.NoError(t, err)
	assert.EqualValues(t, 1, gen)
}

func TestBuildGraphRoundTripsThroughCommitGraphCache(t *testing.T) {
	store, head := buildChain(t)

	graph, err := BuildGraph(store, head)
	require.NoError(t, err)
	assert.Equal(t, 4, graph.Len())

	gc := NewGenerationCache(store, graph)
	gen, err := gc.Generation(head.Hash)
	require.NoError(t, err)
	assert.EqualValues(t, 4, gen)

	data, ok := graph.GetCommitData(head.Hash)
	require.True(t, ok)
	assert.EqualValues(t, 4, data.Generation)
}

func TestIsAncestorFastShortCircuitsOnGeneration(t *testing.T) {
	store, head := buildChain(t)
	gc := NewGenerationCache(store, nil)

	root, err := store.GetCommit(mustID(t, "1111111111111111111111111111111111111111"))
	require.NoError(t, err)

	ok, err := IsAncestorFast(gc, root, head)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsAncestorFast(gc, head, root)
	require.NoError(t, err)
	assert.False(t, ok)
}
