package packp

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/hearthwood/gitcore/format/pktline"
	"github.com/hearthwood/gitcore/objectid"
	"github.com/hearthwood/gitcore/refs"
)

// ErrEmptyUpdateRequest is returned by Decode when r produced no pkt-lines.
var ErrEmptyUpdateRequest = errors.New("packp: empty update-request message")

var errNoCommands = errors.New("packp: unexpected EOF before any command")
var errMissingCapabilitiesDelimiter = errors.New("packp: capabilities delimiter not found")

const minCommandLength = hashSize*2 + 2 + 1

func errMalformedRequest(reason string) error {
	return fmt.Errorf("packp: malformed request: %s", reason)
}

// Decode reads a reference-update-request message from r. It does not
// consume the packfile that may follow: callers that need it should wrap r
// so the remaining bytes can be read as a pack stream afterward.
func (req *ReferenceUpdateRequest) Decode(r io.Reader) error {
	d := &updReqDecoder{sc: pktline.NewScanner(r), req: req}
	return d.decode()
}

type updReqDecoder struct {
	sc      *pktline.Scanner
	req     *ReferenceUpdateRequest
	payload []byte
}

func (d *updReqDecoder) readLine(onEOF error) error {
	if !d.sc.Scan() {
		if err := d.sc.Err(); err != nil {
			return err
		}
		return onEOF
	}
	d.payload = bytes.TrimSuffix(d.sc.Bytes(), eol)
	return nil
}

func (d *updReqDecoder) decode() error {
	if err := d.readLine(ErrEmptyUpdateRequest); err != nil {
		return err
	}
	if err := d.decodeShallow(); err != nil {
		return err
	}
	if err := d.decodeCommandAndCapabilities(); err != nil {
		return err
	}
	if err := d.decodeCommands(); err != nil {
		return err
	}
	return d.req.validate()
}

func (d *updReqDecoder) decodeShallow() error {
	if !bytes.HasPrefix(d.payload, shallowPrefix) {
		return nil
	}
	if len(d.payload) != len(shallowPrefix)+hashSize {
		return errMalformedRequest(fmt.Sprintf("invalid shallow line length: %d", len(d.payload)))
	}

	h, err := objectid.FromHex(string(d.payload[len(shallowPrefix):]))
	if err != nil {
		return errMalformedRequest("invalid shallow object id: " + err.Error())
	}
	d.req.Shallow = &h

	return d.readLine(errNoCommands)
}

func (d *updReqDecoder) decodeCommandAndCapabilities() error {
	i := bytes.IndexByte(d.payload, 0)
	if i == -1 {
		return errMissingCapabilitiesDelimiter
	}
	if len(d.payload) < minCommandLength+1 {
		return errMalformedRequest(fmt.Sprintf("invalid command and capabilities line length: %d", len(d.payload)))
	}

	cmd, err := parseCommand(d.payload[:i])
	if err != nil {
		return err
	}
	d.req.Commands = append(d.req.Commands, cmd)

	if err := d.req.Capabilities.Decode(d.payload[i+1:]); err != nil {
		return err
	}

	return d.readLine(nil)
}

func (d *updReqDecoder) decodeCommands() error {
	for {
		if len(d.payload) == 0 {
			return nil
		}

		cmd, err := parseCommand(d.payload)
		if err != nil {
			return err
		}
		d.req.Commands = append(d.req.Commands, cmd)

		if err := d.readLine(nil); err != nil {
			return err
		}
	}
}

func parseCommand(b []byte) (*Command, error) {
	if len(b) < minCommandLength {
		return nil, errMalformedRequest(fmt.Sprintf("invalid command line length: %d", len(b)))
	}

	var os, ns, n string
	if _, err := fmt.Sscanf(string(b), "%s %s %s", &os, &ns, &n); err != nil {
		return nil, errMalformedRequest("malformed command: " + err.Error())
	}

	oh, err := objectid.FromHex(os)
	if err != nil {
		return nil, errMalformedRequest("invalid old object id: " + err.Error())
	}
	nh, err := objectid.FromHex(ns)
	if err != nil {
		return nil, errMalformedRequest("invalid new object id: " + err.Error())
	}

	return &Command{Old: oh, New: nh, Name: refs.Name(n)}, nil
}
