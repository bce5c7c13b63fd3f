package sideband

import (
	"io"

	"github.com/hearthwood/gitcore/format/pktline"
)

// Muxer is an io.Writer that frames everything written to it as
// PackData packets, chunked to the active extension's capacity.
type Muxer struct {
	t Type
	w *pktline.Writer
}

// NewMuxer returns a Muxer of type t writing pkt-lines to w.
func NewMuxer(t Type, w io.Writer) *Muxer {
	return &Muxer{t: t, w: pktline.NewWriter(w)}
}

// WriteChannel writes p as a single packet on ch, unchunked. The
// caller is responsible for keeping p within the extension's capacity.
func (m *Muxer) WriteChannel(ch Channel, p []byte) (int, error) {
	if _, err := m.w.WritePacket(ch.WithPayload(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Write implements io.Writer, splitting p into PackData packets no
// larger than the active extension's capacity.
func (m *Muxer) Write(p []byte) (int, error) {
	max := capacity(m.t)
	total := 0
	for len(p) > 0 {
		n := len(p)
		if n > max {
			n = max
		}
		wn, err := m.WriteChannel(PackData, p[:n])
		total += wn
		if err != nil {
			return total, err
		}
		p = p[n:]
	}
	return total, nil
}
