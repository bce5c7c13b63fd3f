package sideband

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthwood/gitcore/format/pktline"
)

func writePacket(t *testing.T, buf *bytes.Buffer, p []byte) {
	t.Helper()
	_, err := pktline.NewWriter(buf).WritePacket(p)
	require.NoError(t, err)
}

func TestDemuxerDecode(t *testing.T) {
	expected := []byte("abcdefghijklmnopqrstuvwxyz")

	buf := bytes.NewBuffer(nil)
	writePacket(t, buf, PackData.WithPayload(expected[0:8]))
	writePacket(t, buf, ProgressMessage.WithPayload([]byte("FOO\n")))
	writePacket(t, buf, PackData.WithPayload(expected[8:16]))
	writePacket(t, buf, PackData.WithPayload(expected[16:26]))

	content := make([]byte, 26)
	d := NewDemuxer(Sideband64k, buf)
	n, err := io.ReadFull(d, content)
	require.NoError(t, err)
	assert.Equal(t, 26, n)
	assert.Equal(t, expected, content)
}

func TestDemuxerDecodeMoreThanContain(t *testing.T) {
	expected := []byte("abcdefghijklmnopqrstuvwxyz")

	buf := bytes.NewBuffer(nil)
	writePacket(t, buf, PackData.WithPayload(expected))

	content := make([]byte, 42)
	d := NewDemuxer(Sideband64k, buf)
	n, err := io.ReadFull(d, content)
	assert.Equal(t, io.ErrUnexpectedEOF, err)
	assert.Equal(t, 26, n)
	assert.Equal(t, expected, content[0:26])
}

func TestDemuxerDecodeWithError(t *testing.T) {
	expected := []byte("abcdefghijklmnopqrstuvwxyz")

	buf := bytes.NewBuffer(nil)
	writePacket(t, buf, PackData.WithPayload(expected[0:8]))
	writePacket(t, buf, ErrorMessage.WithPayload([]byte("FOO\n")))
	writePacket(t, buf, PackData.WithPayload(expected[8:16]))
	writePacket(t, buf, PackData.WithPayload(expected[16:26]))

	content := make([]byte, 26)
	d := NewDemuxer(Sideband64k, buf)
	n, err := io.ReadFull(d, content)
	assert.EqualError(t, err, "unexpected error: FOO\n")
	assert.Equal(t, 8, n)
	assert.Equal(t, expected[0:8], content[0:8])
}

type failingReader struct{}

func (r *failingReader) Read([]byte) (int, error) { return 0, errors.New("foo") }

func TestDemuxerDecodeFromFailingReader(t *testing.T) {
	content := make([]byte, 26)
	d := NewDemuxer(Sideband64k, &failingReader{})
	n, err := io.ReadFull(d, content)
	assert.EqualError(t, err, "foo")
	assert.Equal(t, 0, n)
}

func TestDemuxerDecodeWithProgress(t *testing.T) {
	expected := []byte("abcdefghijklmnopqrstuvwxyz")

	input := bytes.NewBuffer(nil)
	writePacket(t, input, PackData.WithPayload(expected[0:8]))
	writePacket(t, input, ProgressMessage.WithPayload([]byte("FOO\n")))
	writePacket(t, input, PackData.WithPayload(expected[8:16]))
	writePacket(t, input, PackData.WithPayload(expected[16:26]))

	output := bytes.NewBuffer(nil)
	content := make([]byte, 26)
	d := NewDemuxer(Sideband64k, input)
	d.Progress = output

	n, err := io.ReadFull(d, content)
	require.NoError(t, err)
	assert.Equal(t, 26, n)
	assert.Equal(t, expected, content)

	progress, err := io.ReadAll(output)
	require.NoError(t, err)
	assert.Equal(t, []byte("FOO\n"), progress)
}

func TestDemuxerDecodeWithUnknownChannel(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	writePacket(t, buf, []byte("4FOO\n"))

	content := make([]byte, 26)
	d := NewDemuxer(Sideband64k, buf)
	n, err := io.ReadFull(d, content)
	assert.EqualError(t, err, "unknown channel 4FOO\n")
	assert.Equal(t, 0, n)
}

func TestDemuxerDecodeWithPending(t *testing.T) {
	expected := []byte("abcdefghijklmnopqrstuvwxyz")

	buf := bytes.NewBuffer(nil)
	writePacket(t, buf, PackData.WithPayload(expected[0:8]))
	writePacket(t, buf, PackData.WithPayload(expected[8:16]))
	writePacket(t, buf, PackData.WithPayload(expected[16:26]))

	content := make([]byte, 13)
	d := NewDemuxer(Sideband64k, buf)
	n, err := io.ReadFull(d, content)
	require.NoError(t, err)
	assert.Equal(t, 13, n)
	assert.Equal(t, expected[0:13], content)

	n, err = d.Read(content)
	require.NoError(t, err)
	assert.Equal(t, 13, n)
	assert.Equal(t, expected[13:26], content)
}

func TestDemuxerDecodeErrMaxPacked(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	writePacket(t, buf, PackData.WithPayload(bytes.Repeat([]byte{'0'}, MaxPackedSize+1)))

	content := make([]byte, 13)
	d := NewDemuxer(Sideband, buf)
	n, err := io.ReadFull(d, content)
	assert.Equal(t, ErrMaxPackedExceeded, err)
	assert.Equal(t, 0, n)
}

func TestMuxerWrite(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	m := NewMuxer(Sideband, buf)

	n, err := m.Write(bytes.Repeat([]byte{'F'}, (MaxPackedSize-1)*2))
	require.NoError(t, err)
	assert.Equal(t, 1998, n)
	assert.Equal(t, 2008, buf.Len())
}

func TestMuxerWriteChannelMultipleChannels(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	m := NewMuxer(Sideband, buf)

	n, err := m.WriteChannel(PackData, bytes.Repeat([]byte{'D'}, 4))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = m.WriteChannel(ProgressMessage, bytes.Repeat([]byte{'P'}, 4))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = m.WriteChannel(PackData, bytes.Repeat([]byte{'D'}, 4))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.Equal(t, 27, buf.Len())
	assert.Equal(t, "0009\x01DDDD0009\x02PPPP0009\x01DDDD", buf.String())
}
