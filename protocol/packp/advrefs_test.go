package packp

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthwood/gitcore/format/pktline"
	"github.com/hearthwood/gitcore/objectid"
	"github.com/hearthwood/gitcore/protocol/capability"
	"github.com/hearthwood/gitcore/refs"
)

func mustID(t *testing.T, hex string) objectid.ObjectID {
	t.Helper()
	id, err := objectid.FromHex(hex)
	require.NoError(t, err)
	return id
}

func linesOf(t *testing.T, payloads ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, p := range payloads {
		if p == "" {
			require.NoError(t, pktline.NewWriter(&buf).WriteFlush())
			continue
		}
		_, err := pktline.NewWriter(&buf).WritePacketString(p)
		require.NoError(t, err)
	}
	return buf.Bytes()
}

func TestAdvRefsEncodeZeroValue(t *testing.T) {
	ar := &AdvRefs{}
	var buf bytes.Buffer
	require.NoError(t, ar.Encode(&buf))

	expected := linesOf(t, "0000000000000000000000000000000000000000 capabilities^{}\x00\n", "")
	assert.Equal(t, expected, buf.Bytes())
}

func TestAdvRefsEncodeHead(t *testing.T) {
	hash := mustID(t, "6ecf0ef2c2dffb796033e5a02219af86ec6584e5")
	ar := &AdvRefs{Head: &hash}

	var buf bytes.Buffer
	require.NoError(t, ar.Encode(&buf))

	expected := linesOf(t, "6ecf0ef2c2dffb796033e5a02219af86ec6584e5 HEAD\x00\n", "")
	assert.Equal(t, expected, buf.Bytes())
}

func TestAdvRefsEncodeCapsNoHead(t *testing.T) {
	caps := capability.NewList()
	require.NoError(t, caps.Add(capability.MultiACK))
	require.NoError(t, caps.Add(capability.OFSDelta))
	require.NoError(t, caps.Add(capability.SymRef, "HEAD:/refs/heads/master"))

	ar := &AdvRefs{Capabilities: caps}
	var buf bytes.Buffer
	require.NoError(t, ar.Encode(&buf))

	expected := linesOf(t,
		"0000000000000000000000000000000000000000 capabilities^{}\x00multi_ack ofs-delta symref=HEAD:/refs/heads/master\n",
		"")
	assert.Equal(t, expected, buf.Bytes())
}

func TestAdvRefsEncodeRefsAndPeeled(t *testing.T) {
	ar := &AdvRefs{
		References: map[string]objectid.ObjectID{
			"refs/heads/master":      mustID(t, "a6930aaee06755d1bdcfd943fbf614e4d92bb0c7"),
			"refs/tags/v2.6.12-tree": mustID(t, "1111111111111111111111111111111111111111"),
		},
		Peeled: map[string]objectid.ObjectID{
			"refs/tags/v2.6.12-tree": mustID(t, "5555555555555555555555555555555555555555"),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, ar.Encode(&buf))

	expected := linesOf(t,
		"0000000000000000000000000000000000000000 capabilities^{}\x00\n",
		"a6930aaee06755d1bdcfd943fbf614e4d92bb0c7 refs/heads/master\n",
		"1111111111111111111111111111111111111111 refs/tags/v2.6.12-tree\n",
		"5555555555555555555555555555555555555555 refs/tags/v2.6.12-tree^{}\n",
		"")
	assert.Equal(t, expected, buf.Bytes())
}

func TestAdvRefsEncodeShallow(t *testing.T) {
	ar := &AdvRefs{
		Shallows: []objectid.ObjectID{
			mustID(t, "3333333333333333333333333333333333333333"),
			mustID(t, "1111111111111111111111111111111111111111"),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, ar.Encode(&buf))

	expected := linesOf(t,
		"0000000000000000000000000000000000000000 capabilities^{}\x00\n",
		"shallow 1111111111111111111111111111111111111111\n",
		"shallow 3333333333333333333333333333333333333333\n",
		"")
	assert.Equal(t, expected, buf.Bytes())
}

func TestAdvRefsEncodeErrorTooLong(t *testing.T) {
	ar := &AdvRefs{
		References: map[string]objectid.ObjectID{
			strings.Repeat("a", pktline.MaxPayloadSize): mustID(t, "a6930aaee06755d1bdcfd943fbf614e4d92bb0c7"),
		},
	}

	var buf bytes.Buffer
	err := ar.Encode(&buf)
	assert.ErrorIs(t, err, pktline.ErrPayloadTooLong)
}

func TestAdvRefsDecodeEmptyInput(t *testing.T) {
	ar := NewAdvRefs()
	assert.ErrorIs(t, ar.Decode(bytes.NewReader(nil)), ErrEmptyInput)
}

func TestAdvRefsDecodeEmptyAdvRefs(t *testing.T) {
	ar := NewAdvRefs()
	assert.ErrorIs(t, ar.Decode(bytes.NewReader(linesOf(t, ""))), ErrEmptyAdvRefs)
}

func TestAdvRefsDecodeRoundTrip(t *testing.T) {
	hash := mustID(t, "6ecf0ef2c2dffb796033e5a02219af86ec6584e5")
	caps := capability.NewList()
	require.NoError(t, caps.Add(capability.MultiACK))
	require.NoError(t, caps.Add(capability.OFSDelta))

	in := &AdvRefs{
		Head:         &hash,
		Capabilities: caps,
		References: map[string]objectid.ObjectID{
			"refs/heads/master":      mustID(t, "a6930aaee06755d1bdcfd943fbf614e4d92bb0c7"),
			"refs/tags/v2.6.12-tree": mustID(t, "1111111111111111111111111111111111111111"),
		},
		Peeled: map[string]objectid.ObjectID{
			"refs/tags/v2.6.12-tree": mustID(t, "5555555555555555555555555555555555555555"),
		},
		Shallows: []objectid.ObjectID{mustID(t, "3333333333333333333333333333333333333333")},
	}

	var buf bytes.Buffer
	require.NoError(t, in.Encode(&buf))

	out := NewAdvRefs()
	require.NoError(t, out.Decode(&buf))

	assert.Equal(t, in.Head.String(), out.Head.String())
	assert.True(t, out.Capabilities.Supports(capability.MultiACK))
	assert.True(t, out.Capabilities.Supports(capability.OFSDelta))
	assert.Equal(t, in.References, out.References)
	assert.Equal(t, in.Peeled, out.Peeled)
	assert.Equal(t, in.Shallows, out.Shallows)
}

func TestAdvRefsDecodeNoHead(t *testing.T) {
	raw := linesOf(t, "0000000000000000000000000000000000000000 capabilities^{}\x00multi_ack\n", "")
	ar := NewAdvRefs()
	require.NoError(t, ar.Decode(bytes.NewReader(raw)))

	assert.Nil(t, ar.Head)
	assert.True(t, ar.Capabilities.Supports(capability.MultiACK))
	assert.True(t, ar.IsEmpty())
}

func TestAdvRefsAddReferenceSymbolicAndHash(t *testing.T) {
	ar := NewAdvRefs()

	hashRef := refs.NewHashReference("refs/heads/main", mustID(t, "a6930aaee06755d1bdcfd943fbf614e4d92bb0c7"))
	require.NoError(t, ar.AddReference(hashRef))
	assert.Equal(t, mustID(t, "a6930aaee06755d1bdcfd943fbf614e4d92bb0c7"), ar.References["refs/heads/main"])

	symRef := refs.NewSymbolicReference(refs.HEAD, "refs/heads/main")
	require.NoError(t, ar.AddReference(symRef))
	assert.True(t, ar.Capabilities.Supports(capability.SymRef))
}
