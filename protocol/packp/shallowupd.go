package packp

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hearthwood/gitcore/format/pktline"
	"github.com/hearthwood/gitcore/objectid"
)

var unshallowPrefix = []byte("unshallow ")

// ShallowUpdate is the message a server sends during a shallow fetch
// negotiation, listing the commits that became new shallow boundaries and
// those that stopped being boundaries (because the client asked for more
// depth than the server previously advertised).
type ShallowUpdate struct {
	Shallows   []objectid.ObjectID
	Unshallows []objectid.ObjectID
}

// Decode reads a shallow-update message from r.
func (u *ShallowUpdate) Decode(r io.Reader) error {
	sc := pktline.NewScanner(r)

	for sc.Scan() {
		line := bytes.TrimSuffix(sc.Bytes(), eol)
		switch {
		case isFlush(line):
			return nil
		case bytes.HasPrefix(line, shallowPrefix):
			h, err := u.decodeLine(line, shallowPrefix)
			if err != nil {
				return err
			}
			u.Shallows = append(u.Shallows, h)
		case bytes.HasPrefix(line, unshallowPrefix):
			h, err := u.decodeLine(line, unshallowPrefix)
			if err != nil {
				return err
			}
			u.Unshallows = append(u.Unshallows, h)
		default:
			return fmt.Errorf("packp: unexpected shallow-update line %q", line)
		}
	}

	return sc.Err()
}

func (u *ShallowUpdate) decodeLine(line, prefix []byte) (objectid.ObjectID, error) {
	rest := line[len(prefix):]
	if len(rest) != hashSize {
		return objectid.Zero, fmt.Errorf("packp: malformed %s%q", prefix, line)
	}
	return objectid.FromHex(string(rest))
}

// Encode writes the shallow-update message to w.
func (u *ShallowUpdate) Encode(w io.Writer) error {
	pw := pktline.NewWriter(w)

	for _, h := range u.Shallows {
		if _, err := pw.WritePacketString(string(shallowPrefix) + h.String() + "\n"); err != nil {
			return err
		}
	}
	for _, h := range u.Unshallows {
		if _, err := pw.WritePacketString(string(unshallowPrefix) + h.String() + "\n"); err != nil {
			return err
		}
	}

	return pw.WriteFlush()
}
