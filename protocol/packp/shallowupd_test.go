package packp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthwood/gitcore/objectid"
)

func TestShallowUpdateEncodeDecodeRoundTrip(t *testing.T) {
	u := &ShallowUpdate{
		Shallows:   []objectid.ObjectID{mustID(t, "1111111111111111111111111111111111111111")},
		Unshallows: []objectid.ObjectID{mustID(t, "2222222222222222222222222222222222222222")},
	}

	var buf bytes.Buffer
	require.NoError(t, u.Encode(&buf))

	expected := linesOf(t,
		"shallow 1111111111111111111111111111111111111111\n",
		"unshallow 2222222222222222222222222222222222222222\n",
		"")
	assert.Equal(t, expected, buf.Bytes())

	out := &ShallowUpdate{}
	require.NoError(t, out.Decode(&buf))
	assert.Equal(t, u.Shallows, out.Shallows)
	assert.Equal(t, u.Unshallows, out.Unshallows)
}

func TestShallowUpdateDecodeMalformedLine(t *testing.T) {
	raw := linesOf(t, "shallow deadbeef\n", "")
	u := &ShallowUpdate{}
	err := u.Decode(bytes.NewReader(raw))
	assert.ErrorContains(t, err, "malformed")
}

func TestShallowUpdateDecodeUnexpectedLine(t *testing.T) {
	raw := linesOf(t, "bogus\n", "")
	u := &ShallowUpdate{}
	err := u.Decode(bytes.NewReader(raw))
	assert.ErrorContains(t, err, "unexpected shallow-update line")
}
