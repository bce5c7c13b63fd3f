package packp

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/hearthwood/gitcore/format/pktline"
	"github.com/hearthwood/gitcore/refs"
)

const ok = "ok"

// UnpackStatusErr is returned by ReportStatus.Error when the unpack status
// is not "ok".
type UnpackStatusErr struct {
	Status string
}

func (e UnpackStatusErr) Error() string {
	return fmt.Sprintf("packp: unpack error: %s", e.Status)
}

// CommandStatusErr is returned by ReportStatus.Error when a ref update was
// rejected.
type CommandStatusErr struct {
	ReferenceName refs.Name
	Status        string
}

func (e CommandStatusErr) Error() string {
	return fmt.Sprintf("packp: command error on %s: %s", e.ReferenceName, e.Status)
}

// ReportStatus is the server's response to a receive-pack push, carrying
// the overall unpack result and a per-ref status line for every command in
// the request that negotiated the report-status capability.
type ReportStatus struct {
	UnpackStatus    string
	CommandStatuses []*CommandStatus
}

// NewReportStatus returns an empty ReportStatus.
func NewReportStatus() *ReportStatus {
	return &ReportStatus{}
}

// Error returns the first failure recorded in the report, unpack failures
// taking precedence over individual command failures.
func (s *ReportStatus) Error() error {
	if s.UnpackStatus != ok {
		return UnpackStatusErr{s.UnpackStatus}
	}
	for _, cs := range s.CommandStatuses {
		if err := cs.Error(); err != nil {
			return err
		}
	}
	return nil
}

// Encode writes the report-status message to w.
func (s *ReportStatus) Encode(w io.Writer) error {
	pw := pktline.NewWriter(w)

	if _, err := pw.WritePacketString("unpack " + s.UnpackStatus + "\n"); err != nil {
		return err
	}
	for _, cs := range s.CommandStatuses {
		if err := cs.encode(pw); err != nil {
			return err
		}
	}
	return pw.WriteFlush()
}

// Decode reads a report-status message from r: one unpack line, zero or
// more per-ref command-status lines, and a terminating flush-pkt.
func (s *ReportStatus) Decode(r io.Reader) error {
	sc := pktline.NewScanner(r)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return err
		}
		return io.ErrUnexpectedEOF
	}
	if err := s.decodeUnpackLine(sc.Bytes()); err != nil {
		return err
	}

	for sc.Scan() {
		line := bytes.TrimSuffix(sc.Bytes(), eol)
		if isFlush(line) {
			return nil
		}
		if err := s.decodeCommandStatusLine(line); err != nil {
			return err
		}
	}

	if err := sc.Err(); err != nil {
		return err
	}
	return fmt.Errorf("packp: missing flush in report-status")
}

func (s *ReportStatus) decodeUnpackLine(b []byte) error {
	if isFlush(b) {
		return fmt.Errorf("packp: premature flush in report-status")
	}
	line := string(bytes.TrimSuffix(b, eol))

	fields := strings.SplitN(line, " ", 2)
	if len(fields) != 2 || fields[0] != "unpack" {
		return fmt.Errorf("packp: malformed unpack status: %s", line)
	}
	s.UnpackStatus = fields[1]
	return nil
}

func (s *ReportStatus) decodeCommandStatusLine(b []byte) error {
	line := string(b)
	fields := strings.SplitN(line, " ", 3)

	status := ok
	switch {
	case len(fields) == 3 && fields[0] == "ng":
		status = fields[2]
	case len(fields) == 2 && fields[0] == "ok":
	default:
		return fmt.Errorf("packp: malformed command status: %s", line)
	}

	s.CommandStatuses = append(s.CommandStatuses, &CommandStatus{
		ReferenceName: refs.Name(fields[1]),
		Status:        status,
	})
	return nil
}

// CommandStatus is the status of a single ref within a ReportStatus.
type CommandStatus struct {
	ReferenceName refs.Name
	Status        string
}

// Error returns a CommandStatusErr if this command was rejected.
func (s *CommandStatus) Error() error {
	if s.Status == ok {
		return nil
	}
	return CommandStatusErr{ReferenceName: s.ReferenceName, Status: s.Status}
}

func (s *CommandStatus) encode(pw *pktline.Writer) error {
	if s.Error() == nil {
		_, err := pw.WritePacketString("ok " + string(s.ReferenceName) + "\n")
		return err
	}
	_, err := pw.WritePacketString("ng " + string(s.ReferenceName) + " " + s.Status + "\n")
	return err
}
