package sideband

import (
	"fmt"
	"io"

	"github.com/hearthwood/gitcore/format/pktline"
)

// Demuxer is an io.Reader that yields only the PackData channel of a
// side-band multiplexed stream, writing ProgressMessage packets to
// Progress (if set) and returning an error on ErrorMessage or on a
// PackData packet over the active extension's capacity.
type Demuxer struct {
	t  Type
	sc *pktline.Scanner

	// Progress, if set, receives every ProgressMessage packet's payload.
	Progress io.Writer

	pending []byte
}

// NewDemuxer returns a Demuxer of type t reading pkt-lines from r.
func NewDemuxer(t Type, r io.Reader) *Demuxer {
	return &Demuxer{t: t, sc: pktline.NewScanner(r)}
}

// Read implements io.Reader, filling p with as much PackData as is
// currently available, draining queued progress packets along the way.
func (d *Demuxer) Read(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		if len(d.pending) > 0 {
			n := copy(p[total:], d.pending)
			d.pending = d.pending[n:]
			total += n
			continue
		}

		if !d.sc.Scan() {
			if err := d.sc.Err(); err != nil {
				if total > 0 {
					return total, nil
				}
				return total, err
			}
			if total > 0 {
				return total, nil
			}
			return total, io.EOF
		}

		payload := d.sc.Bytes()
		if len(payload) == 0 {
			continue
		}

		ch := Channel(payload[0])
		data := payload[1:]

		switch ch {
		case ProgressMessage:
			if d.Progress != nil {
				if _, err := d.Progress.Write(data); err != nil {
					return total, err
				}
			}
		case ErrorMessage:
			return total, fmt.Errorf("unexpected error: %s", data)
		case PackData:
			if len(data) > capacity(d.t) {
				return total, ErrMaxPackedExceeded
			}
			n := copy(p[total:], data)
			total += n
			if n < len(data) {
				d.pending = append(d.pending, data[n:]...)
			}
		default:
			return total, fmt.Errorf("unknown channel %s", payload)
		}
	}

	return total, nil
}
