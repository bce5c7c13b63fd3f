package packp

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hearthwood/gitcore/format/pktline"
	"github.com/hearthwood/gitcore/objectid"
)

var (
	ackPrefix = []byte("ACK ")
	nakLine   = []byte("NAK")
)

// ACKStatus qualifies an ACK line sent under the multi_ack or
// multi_ack_detailed capabilities.
type ACKStatus string

const (
	// ACKContinue acknowledges a common commit under multi_ack; negotiation keeps going.
	ACKContinue ACKStatus = "continue"
	// ACKCommon acknowledges a common commit under multi_ack_detailed, without being ready to pack yet.
	ACKCommon ACKStatus = "common"
	// ACKReady tells the client the server has enough information to build the pack.
	ACKReady ACKStatus = "ready"
	// ACKFinal is the terminating ACK with no status suffix: negotiation is over.
	ACKFinal ACKStatus = ""
)

// ACK is one acknowledged common object.
type ACK struct {
	Hash   objectid.ObjectID
	Status ACKStatus
}

// ServerResponse is the upload-pack server's reply to a round of haves: a
// NAK if no common object was found yet, or one or more ACK lines when
// multi_ack(_detailed) is in effect.
type ServerResponse struct {
	ACKs []ACK
}

// Decode reads a server-response message from r. multiACK and
// multiACKDetailed select which of the negotiation dialects is active;
// both false means the plain single-ACK/NAK protocol.
func (resp *ServerResponse) Decode(r io.Reader, multiACK, multiACKDetailed bool) error {
	sc := pktline.NewScanner(r)

	for sc.Scan() {
		line := bytes.TrimSuffix(sc.Bytes(), eol)
		if isFlush(line) {
			return fmt.Errorf("packp: unexpected flush in server-response")
		}

		if bytes.HasPrefix(line, nakLine) {
			return nil
		}
		if !bytes.HasPrefix(line, ackPrefix) {
			return fmt.Errorf("packp: unexpected content %q", line)
		}

		ack, err := decodeACKLine(line)
		if err != nil {
			return err
		}
		resp.ACKs = append(resp.ACKs, ack)

		if !multiACK && !multiACKDetailed {
			return nil
		}
		if ack.Status == ACKFinal || ack.Status == ACKReady {
			return nil
		}
	}

	return sc.Err()
}

func decodeACKLine(line []byte) (ACK, error) {
	rest := line[len(ackPrefix):]
	fields := bytes.Fields(rest)
	if len(fields) == 0 || len(fields[0]) != hashSize {
		return ACK{}, fmt.Errorf("packp: malformed ACK %q", line)
	}

	h, err := objectid.FromHex(string(fields[0]))
	if err != nil {
		return ACK{}, fmt.Errorf("packp: malformed ACK hash: %w", err)
	}

	status := ACKFinal
	if len(fields) > 1 {
		status = ACKStatus(fields[1])
	}
	return ACK{Hash: h, Status: status}, nil
}

// Encode writes the server-response message to w.
func (resp *ServerResponse) Encode(w io.Writer) error {
	pw := pktline.NewWriter(w)

	if len(resp.ACKs) == 0 {
		_, err := pw.WritePacketString("NAK\n")
		return err
	}

	for _, ack := range resp.ACKs {
		line := "ACK " + ack.Hash.String()
		if ack.Status != ACKFinal {
			line += " " + string(ack.Status)
		}
		if _, err := pw.WritePacketString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}
