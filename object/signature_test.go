package object

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestampRoundTrip(t *testing.T) {
	ts, err := ParseTimestamp("1700000000 +0200")
	require.NoError(t, err)
	assert.Equal(t, "1700000000 +0200", ts.String())
}

func TestParseTimestampNegativeOffset(t *testing.T) {
	ts, err := ParseTimestamp("1700000000 -0530")
	require.NoError(t, err)
	assert.Equal(t, "1700000000 -0530", ts.String())
}

func TestParseTimestampMalformed(t *testing.T) {
	_, err := ParseTimestamp("not-a-timestamp")
	assert.Error(t, err)

	_, err = ParseTimestamp("1700000000 +2")
	assert.Error(t, err)
}

func TestSignatureDecodeEncodeRoundTrip(t *testing.T) {
	line := "Ada Lovelace <ada@example.com> 1700000000 +0000"
	var s Signature
	require.NoError(t, s.Decode([]byte(line)))
	assert.Equal(t, "Ada Lovelace", s.Name)
	assert.Equal(t, "ada@example.com", s.Email)
	assert.Equal(t, line, s.String())
}

func TestSignatureDecodeWithoutTimestamp(t *testing.T) {
	var s Signature
	require.NoError(t, s.Decode([]byte("Ada Lovelace <ada@example.com>")))
	assert.Equal(t, "Ada Lovelace", s.Name)
	assert.Equal(t, "ada@example.com", s.Email)
	assert.Equal(t, time.Time{}, s.When.When)
}

func TestSignatureDecodeMalformed(t *testing.T) {
	var s Signature
	err := s.Decode([]byte("no angle brackets here"))
	assert.Error(t, err)
}
