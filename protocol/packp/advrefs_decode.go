package packp

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/hearthwood/gitcore/format/pktline"
	"github.com/hearthwood/gitcore/objectid"
)

// ErrEmptyAdvRefs is returned by Decode when the server sent an empty
// advertised-refs message (e.g. a bare flush-pkt over HTTP for an empty
// repository).
var ErrEmptyAdvRefs = errors.New("packp: empty advertised-ref message")

// ErrEmptyInput is returned by Decode when r produced no pkt-lines at all.
var ErrEmptyInput = errors.New("packp: empty input")

// Decode reads the next advertised-refs message from r.
func (a *AdvRefs) Decode(r io.Reader) error {
	d := &advRefsDecoder{sc: pktline.NewScanner(r), data: a}
	for state := decodeFirstHash; state != nil; {
		state = state(d)
	}
	return d.err
}

type advRefsDecoder struct {
	sc    *pktline.Scanner
	line  []byte
	nLine int
	hash  objectid.ObjectID
	err   error
	data  *AdvRefs
}

type decoderStateFn func(*advRefsDecoder) decoderStateFn

func (d *advRefsDecoder) error(format string, a ...interface{}) {
	msg := fmt.Sprintf("pkt-line %d: %s", d.nLine, fmt.Sprintf(format, a...))
	d.err = NewErrUnexpectedData(msg, d.line)
}

func (d *advRefsDecoder) nextLine() bool {
	d.nLine++

	if !d.sc.Scan() {
		if err := d.sc.Err(); err != nil {
			d.err = err
			return false
		}
		if d.nLine == 1 {
			d.err = ErrEmptyInput
			return false
		}
		d.error("EOF")
		return false
	}

	d.line = bytes.TrimSuffix(d.sc.Bytes(), eol)
	return true
}

func decodeFirstHash(d *advRefsDecoder) decoderStateFn {
	if ok := d.nextLine(); !ok {
		return nil
	}

	if isFlush(d.line) {
		d.err = ErrEmptyAdvRefs
		return nil
	}

	if len(d.line) < hashSize {
		d.error("cannot read hash, pkt-line too short")
		return nil
	}

	h, err := objectid.FromHex(string(d.line[:hashSize]))
	if err != nil {
		d.error("invalid hash text: %s", d.line[:hashSize])
		return nil
	}

	d.hash = h
	d.line = d.line[hashSize:]

	if d.hash.IsZero() {
		return decodeSkipNoRefs
	}
	return decodeFirstRef
}

func decodeSkipNoRefs(d *advRefsDecoder) decoderStateFn {
	if len(d.line) < len(noHeadMark) {
		d.error("too short zero-id ref")
		return nil
	}
	if !bytes.HasPrefix(d.line, noHeadMark) {
		d.error("malformed zero-id ref")
		return nil
	}
	d.line = d.line[len(noHeadMark):]
	return decodeCaps
}

func decodeFirstRef(d *advRefsDecoder) decoderStateFn {
	if len(d.line) < 3 {
		d.error("line too short after hash")
		return nil
	}
	if !bytes.HasPrefix(d.line, sp) {
		d.error("no space after hash")
		return nil
	}
	d.line = d.line[1:]

	chunks := bytes.SplitN(d.line, null, 2)
	if len(chunks) < 2 {
		d.error("NUL not found")
		return nil
	}
	ref := chunks[0]
	d.line = chunks[1]

	if bytes.Equal(ref, []byte(head)) {
		h := d.hash
		d.data.Head = &h
	} else {
		d.data.References[string(ref)] = d.hash
	}

	return decodeCaps
}

func decodeCaps(d *advRefsDecoder) decoderStateFn {
	if err := d.data.Capabilities.Decode(d.line); err != nil {
		d.error("invalid capabilities: %s", err)
		return nil
	}
	return decodeOtherRefs
}

func decodeOtherRefs(d *advRefsDecoder) decoderStateFn {
	if ok := d.nextLine(); !ok {
		return nil
	}

	if bytes.HasPrefix(d.line, shallowPrefix) {
		return decodeShallow
	}
	if len(d.line) == 0 {
		return nil
	}

	saveTo := d.data.References
	if bytes.HasSuffix(d.line, peeled) {
		d.line = bytes.TrimSuffix(d.line, peeled)
		saveTo = d.data.Peeled
	}

	ref, hash, err := readRef(d.line)
	if err != nil {
		d.error("%s", err)
		return nil
	}
	saveTo[ref] = hash

	return decodeOtherRefs
}

func readRef(data []byte) (string, objectid.ObjectID, error) {
	chunks := bytes.Split(data, sp)
	switch {
	case len(chunks) == 1:
		return "", objectid.Zero, fmt.Errorf("malformed ref data: no space was found")
	case len(chunks) > 2:
		return "", objectid.Zero, fmt.Errorf("malformed ref data: more than one space found")
	default:
		h, err := objectid.FromHex(string(chunks[0]))
		if err != nil {
			return "", objectid.Zero, fmt.Errorf("malformed ref data: %w", err)
		}
		return string(chunks[1]), h, nil
	}
}

func decodeShallow(d *advRefsDecoder) decoderStateFn {
	if !bytes.HasPrefix(d.line, shallowPrefix) {
		d.error("malformed shallow prefix, found %q instead", d.line)
		return nil
	}
	d.line = bytes.TrimPrefix(d.line, shallowPrefix)

	if len(d.line) != hashSize {
		d.error("malformed shallow hash: wrong length, expected 40 bytes, read %d bytes", len(d.line))
		return nil
	}

	h, err := objectid.FromHex(string(d.line))
	if err != nil {
		d.error("invalid hash text: %s", d.line)
		return nil
	}
	d.data.Shallows = append(d.data.Shallows, h)

	if ok := d.nextLine(); !ok {
		return nil
	}
	if len(d.line) == 0 {
		return nil
	}
	return decodeShallow
}
