package packp

import (
	"bytes"
	"io"

	"github.com/hearthwood/gitcore/format/pktline"
)

// PushOptions carries the push-options capability payload: opaque strings
// the server passes through to its pre/post-receive hooks.
type PushOptions struct {
	Options []string
}

// Encode writes the push-options message to w. A PushOptions with no
// options encodes to nothing at all (the push-options capability, when
// negotiated, still requires a flush-terminated block, which the caller
// writes even for zero options).
func (opts *PushOptions) Encode(w io.Writer) error {
	if len(opts.Options) == 0 {
		return nil
	}

	pw := pktline.NewWriter(w)
	for _, opt := range opts.Options {
		if _, err := pw.WritePacketString(opt); err != nil {
			return err
		}
	}
	return pw.WriteFlush()
}

// Decode reads push-options lines from r until a flush-pkt.
func (opts *PushOptions) Decode(r io.Reader) error {
	sc := pktline.NewScanner(r)

	for sc.Scan() {
		line := bytes.TrimSuffix(sc.Bytes(), eol)
		if isFlush(line) {
			return nil
		}
		opts.Options = append(opts.Options, string(line))
	}

	return sc.Err()
}
