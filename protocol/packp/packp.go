// Package packp implements the Git pack protocol message bodies carried
// over pkt-line framing: ref advertisement, upload-request (fetch/clone
// negotiation), reference-update-request (push), and report-status.
package packp

import "io"

// Encoder is implemented by a message that can serialize itself onto w.
type Encoder interface {
	Encode(w io.Writer) error
}

// Decoder is implemented by a message that can parse itself from r.
type Decoder interface {
	Decode(r io.Reader) error
}
