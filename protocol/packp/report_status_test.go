package packp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportStatusEncodeOK(t *testing.T) {
	s := NewReportStatus()
	s.UnpackStatus = "ok"
	s.CommandStatuses = append(s.CommandStatuses, &CommandStatus{ReferenceName: "refs/heads/master", Status: "ok"})

	var buf bytes.Buffer
	require.NoError(t, s.Encode(&buf))

	expected := linesOf(t, "unpack ok\n", "ok refs/heads/master\n", "")
	assert.Equal(t, expected, buf.Bytes())
}

func TestReportStatusEncodeRejected(t *testing.T) {
	s := NewReportStatus()
	s.UnpackStatus = "ok"
	s.CommandStatuses = append(s.CommandStatuses, &CommandStatus{ReferenceName: "refs/heads/master", Status: "non-fast-forward"})

	var buf bytes.Buffer
	require.NoError(t, s.Encode(&buf))

	expected := linesOf(t, "unpack ok\n", "ng refs/heads/master non-fast-forward\n", "")
	assert.Equal(t, expected, buf.Bytes())
}

func TestReportStatusDecodeRoundTrip(t *testing.T) {
	s := NewReportStatus()
	s.UnpackStatus = "ok"
	s.CommandStatuses = append(s.CommandStatuses,
		&CommandStatus{ReferenceName: "refs/heads/master", Status: "ok"},
		&CommandStatus{ReferenceName: "refs/heads/feature", Status: "non-fast-forward"},
	)

	var buf bytes.Buffer
	require.NoError(t, s.Encode(&buf))

	out := NewReportStatus()
	require.NoError(t, out.Decode(&buf))

	assert.Equal(t, s.UnpackStatus, out.UnpackStatus)
	require.Len(t, out.CommandStatuses, 2)
	assert.Equal(t, s.CommandStatuses[0].ReferenceName, out.CommandStatuses[0].ReferenceName)
	assert.Equal(t, s.CommandStatuses[1].Status, out.CommandStatuses[1].Status)
}

func TestReportStatusErrorUnpackFailed(t *testing.T) {
	s := &ReportStatus{UnpackStatus: "index-pack failed"}
	assert.ErrorIs(t, s.Error(), UnpackStatusErr{Status: "index-pack failed"})
}

func TestReportStatusErrorCommandRejected(t *testing.T) {
	s := &ReportStatus{
		UnpackStatus: ok,
		CommandStatuses: []*CommandStatus{
			{ReferenceName: "refs/heads/master", Status: "non-fast-forward"},
		},
	}
	err := s.Error()
	require.Error(t, err)
	assert.Equal(t, CommandStatusErr{ReferenceName: "refs/heads/master", Status: "non-fast-forward"}, err)
}

func TestReportStatusDecodeMalformedUnpack(t *testing.T) {
	s := NewReportStatus()
	raw := linesOf(t, "bogus\n", "")
	err := s.Decode(bytes.NewReader(raw))
	assert.ErrorContains(t, err, "malformed unpack status")
}
