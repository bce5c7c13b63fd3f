package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthwood/gitcore/storage/memory"
)

func TestCacheOpenSharesInstance(t *testing.T) {
	c := NewCache()
	opens := 0
	open := func(string) (*Repository, error) {
		opens++
		return Init(memory.NewStorage(), nil)
	}

	r1, h1, err := c.Open("/tmp/repo", open)
	require.NoError(t, err)

	r2, h2, err := c.Open("/tmp/repo", open)
	require.NoError(t, err)

	assert.Same(t, r1, r2)
	assert.Equal(t, h1, h2)
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, c.Len())
}

func TestCacheCloseEvictsAtZeroRefs(t *testing.T) {
	c := NewCache()
	open := func(string) (*Repository, error) {
		return Init(memory.NewStorage(), nil)
	}

	_, _, err := c.Open("/tmp/repo", open)
	require.NoError(t, err)
	_, _, err = c.Open("/tmp/repo", open)
	require.NoError(t, err)

	c.Close("/tmp/repo")
	assert.Equal(t, 1, c.Len())

	c.Close("/tmp/repo")
	assert.Equal(t, 0, c.Len())

	_, _, ok := c.Lookup("/tmp/repo")
	assert.False(t, ok)
}

func TestCacheCloseUnknownPathIsNoOp(t *testing.T) {
	c := NewCache()
	c.Close("/does/not/exist")
	assert.Equal(t, 0, c.Len())
}

func TestCacheLookup(t *testing.T) {
	c := NewCache()
	_, h, err := c.Open("/tmp/repo", func(string) (*Repository, error) {
		return Init(memory.NewStorage(), nil)
	})
	require.NoError(t, err)

	got, gotH, ok := c.Lookup("/tmp/repo")
	require.True(t, ok)
	assert.NotNil(t, got)
	assert.Equal(t, h, gotH)
}
