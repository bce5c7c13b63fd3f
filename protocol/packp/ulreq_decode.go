package packp

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/hearthwood/gitcore/format/pktline"
	"github.com/hearthwood/gitcore/objectid"
)

// Decode reads an upload-request message from r: one or more want lines
// (capabilities attached to the first), zero or more shallow lines, at
// most one deepen line, an optional filter line, and a terminating
// flush-pkt.
func (r *UploadRequest) Decode(rd io.Reader) error {
	d := &ulReqDecoder{sc: pktline.NewScanner(rd), data: r}
	for state := ulReqDecodeFirstWant; state != nil; {
		state = state(d)
	}
	return d.err
}

type ulReqDecoder struct {
	sc    *pktline.Scanner
	line  []byte
	nLine int
	err   error
	data  *UploadRequest
}

type ulReqStateFn func(*ulReqDecoder) ulReqStateFn

func (d *ulReqDecoder) errf(format string, a ...interface{}) {
	msg := fmt.Sprintf("pkt-line %d: %s", d.nLine, fmt.Sprintf(format, a...))
	d.err = NewErrUnexpectedData(msg, d.line)
}

func (d *ulReqDecoder) nextLine() bool {
	d.nLine++

	if !d.sc.Scan() {
		if err := d.sc.Err(); err != nil {
			d.err = err
			return false
		}
		d.errf("EOF")
		return false
	}

	d.line = bytes.TrimSuffix(d.sc.Bytes(), eol)
	return true
}

func ulReqDecodeFirstWant(d *ulReqDecoder) ulReqStateFn {
	if ok := d.nextLine(); !ok {
		return nil
	}

	if !bytes.HasPrefix(d.line, want) {
		d.errf("missing 'want ' prefix")
		return nil
	}

	rest := d.line[len(want):]
	if len(rest) < hashSize {
		d.errf("malformed hash")
		return nil
	}

	h, err := objectid.FromHex(string(rest[:hashSize]))
	if err != nil {
		d.errf("invalid hash: %s", err)
		return nil
	}
	d.data.Wants = append(d.data.Wants, h)

	if caps := bytes.TrimSpace(rest[hashSize:]); len(caps) > 0 {
		if err := d.data.Capabilities.Decode(caps); err != nil {
			d.errf("invalid capabilities: %s", err)
			return nil
		}
	}

	return ulReqDecodeOptions
}

func ulReqDecodeOptions(d *ulReqDecoder) ulReqStateFn {
	if ok := d.nextLine(); !ok {
		return nil
	}

	switch {
	case isFlush(d.line):
		return nil
	case bytes.HasPrefix(d.line, want):
		h, err := objectid.FromHex(string(d.line[len(want):]))
		if err != nil {
			d.errf("malformed hash: %s", err)
			return nil
		}
		d.data.Wants = append(d.data.Wants, h)
		return ulReqDecodeOptions
	case bytes.HasPrefix(d.line, shallowPrefix):
		h, err := objectid.FromHex(string(d.line[len(shallowPrefix):]))
		if err != nil {
			d.errf("malformed hash: %s", err)
			return nil
		}
		d.data.Shallows = append(d.data.Shallows, h)
		return ulReqDecodeOptions
	case bytes.HasPrefix(d.line, deepenCommits):
		n, err := strconv.Atoi(string(d.line[len(deepenCommits):]))
		if err != nil {
			d.errf("%s", err)
			return nil
		}
		if n < 0 {
			d.errf("negative depth")
			return nil
		}
		d.data.Depth = DepthCommits(n)
		return ulReqDecodeFlush
	case bytes.HasPrefix(d.line, deepenSince):
		sec, err := strconv.ParseInt(string(d.line[len(deepenSince):]), 10, 64)
		if err != nil {
			d.errf("%s", err)
			return nil
		}
		d.data.Depth = DepthSince(time.Unix(sec, 0).UTC())
		return ulReqDecodeFlush
	case bytes.HasPrefix(d.line, deepenReference):
		d.data.Depth = DepthReference(string(d.line[len(deepenReference):]))
		return ulReqDecodeFlush
	case bytes.HasPrefix(d.line, []byte("filter ")):
		d.data.Filter = Filter(d.line[len("filter "):])
		return ulReqDecodeFlush
	default:
		d.errf("unexpected payload %q", d.line)
		return nil
	}
}

func ulReqDecodeFlush(d *ulReqDecoder) ulReqStateFn {
	if ok := d.nextLine(); !ok {
		return nil
	}
	if d.data.Filter == "" && bytes.HasPrefix(d.line, []byte("filter ")) {
		d.data.Filter = Filter(d.line[len("filter "):])
		return ulReqDecodeFlush
	}
	if !isFlush(d.line) {
		d.errf("unexpected payload %q", d.line)
		return nil
	}
	return nil
}
