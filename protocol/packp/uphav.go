package packp

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hearthwood/gitcore/format/pktline"
	"github.com/hearthwood/gitcore/objectid"
)

var (
	have = []byte("have ")
	done = []byte("done")
)

// UploadHaves carries the client's "have" negotiation round during an
// upload-pack fetch: the commits it already holds, and whether it is done
// negotiating. Done is true once the client has sent the "done" line;
// otherwise the round ended with a flush and more haves may follow.
type UploadHaves struct {
	Haves []objectid.ObjectID
	Done  bool
}

// Encode writes the have lines to w, sorted and deduplicated, followed by
// either "done" or a flush-pkt.
func (u *UploadHaves) Encode(w io.Writer) error {
	pw := pktline.NewWriter(w)

	for _, h := range sortedUniqueHex(u.Haves) {
		if _, err := pw.WritePacketString("have " + h.String() + "\n"); err != nil {
			return err
		}
	}

	if u.Done {
		_, err := pw.WritePacketString("done\n")
		return err
	}
	return pw.WriteFlush()
}

// Decode reads have lines from r until a flush-pkt or a "done" line.
func (u *UploadHaves) Decode(r io.Reader) error {
	sc := pktline.NewScanner(r)

	for sc.Scan() {
		line := bytes.TrimSuffix(sc.Bytes(), eol)

		if isFlush(line) {
			return nil
		}
		if bytes.Equal(bytes.TrimSpace(line), done) {
			u.Done = true
			return nil
		}
		if !bytes.HasPrefix(line, have) {
			return NewErrUnexpectedData("expected 'have ' or 'done'", line)
		}

		h, err := objectid.FromHex(string(line[len(have):]))
		if err != nil {
			return fmt.Errorf("packp: malformed have hash: %w", err)
		}
		u.Haves = append(u.Haves, h)
	}

	return sc.Err()
}
