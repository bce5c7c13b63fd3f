package object

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagEncodeDecodeRoundTrip(t *testing.T) {
	when := Timestamp{When: time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("", 0))}
	target := mustBlobID(t, 7)

	tag := &Tag{
		Name:       "v1.0.0",
		TargetHash: target,
		TargetType: CommitType,
		Tagger:     Signature{Name: "Ada Lovelace", Email: "ada@example.com", When: when},
		Message:    "release 1.0.0\n",
	}

	o := &MemoryObject{}
	require.NoError(t, tag.Encode(o))
	assert.Equal(t, TagType, o.Type())

	got, err := GetTag(o)
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0", got.Name)
	assert.True(t, got.TargetHash.Equal(target))
	assert.Equal(t, CommitType, got.TargetType)
	assert.Equal(t, "release 1.0.0\n", got.Message)
	assert.Empty(t, got.PGPSignature)
}

func TestTagDecodeSplitsTrailingPGPSignature(t *testing.T) {
	when := Timestamp{When: time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("", 0))}
	tag := &Tag{
		Name:       "v2.0.0",
		TargetHash: mustBlobID(t, 3),
		TargetType: CommitType,
		Tagger:     Signature{Name: "A", Email: "a@example.com", When: when},
		Message:    "release 2.0.0\n",
	}

	o := &MemoryObject{}
	require.NoError(t, tag.Encode(o))
	w, err := o.Writer()
	require.NoError(t, err)
	_, err = w.Write([]byte("-----BEGIN PGP SIGNATURE-----\nabc\n-----END PGP SIGNATURE-----"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	got, err := GetTag(o)
	require.NoError(t, err)
	assert.Equal(t, "release 2.0.0\n", got.Message)
	assert.Equal(t, "-----BEGIN PGP SIGNATURE-----\nabc\n-----END PGP SIGNATURE-----", got.PGPSignature)
}
