package objectid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAbbreviatedEvenNibbles(t *testing.T) {
	a, err := ParseAbbreviated("a1b2")
	require.NoError(t, err)
	assert.Equal(t, 4, a.Nibbles())
	assert.Equal(t, "a1b2", a.String())
}

func TestParseAbbreviatedOddNibbles(t *testing.T) {
	a, err := ParseAbbreviated("a1b")
	require.NoError(t, err)
	assert.Equal(t, 3, a.Nibbles())
	assert.Equal(t, "a1b", a.String())
}

func TestParseAbbreviatedRejectsOversize(t *testing.T) {
	oversize := make([]byte, SHA256HexSize+1)
	for i := range oversize {
		oversize[i] = 'a'
	}
	_, err := ParseAbbreviated(string(oversize))
	assert.Error(t, err)
}

func TestParseAbbreviatedRejectsEmpty(t *testing.T) {
	_, err := ParseAbbreviated("")
	assert.Error(t, err)
}

func TestMatchesFullPrefix(t *testing.T) {
	id, err := FromHex("a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4")
	require.NoError(t, err)

	a, err := ParseAbbreviated("a1b2c3")
	require.NoError(t, err)
	assert.True(t, a.Matches(id))

	b, err := ParseAbbreviated("a1b2c4")
	require.NoError(t, err)
	assert.False(t, b.Matches(id))
}

func TestMatchesOddNibblePrefix(t *testing.T) {
	id, err := FromHex("a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4")
	require.NoError(t, err)

	a, err := ParseAbbreviated("a1b2c")
	require.NoError(t, err)
	assert.True(t, a.Matches(id))

	b, err := ParseAbbreviated("a1b2d")
	require.NoError(t, err)
	assert.False(t, b.Matches(id))
}

func TestPrefixCompareOrdering(t *testing.T) {
	id, err := FromHex("500000000000000000000000000000000000000a")
	require.NoError(t, err)

	before, err := ParseAbbreviated("4000")
	require.NoError(t, err)
	assert.Negative(t, before.PrefixCompare(id))

	after, err := ParseAbbreviated("6000")
	require.NoError(t, err)
	assert.Positive(t, after.PrefixCompare(id))
}
