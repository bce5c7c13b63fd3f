package object

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/hearthwood/gitcore/objectid"
)

// Tag is an annotated tag: a named, signed-or-unsigned pointer to another
// object (usually a commit), carrying its own message independent of the
// object it points to. A lightweight tag is just a ref and has no Tag
// object at all.
type Tag struct {
	Hash       objectid.ObjectID
	Name       string
	TargetHash objectid.ObjectID
	TargetType Type
	Tagger     Signature
	Message    string
	PGPSignature string
}

// GetTag decodes a Tag from its EncodedObject form.
func GetTag(o EncodedObject) (*Tag, error) {
	if o.Type() != TagType {
		return nil, ErrUnsupportedObject
	}
	t := &Tag{Hash: o.Hash()}
	r, err := o.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if err := t.Decode(r); err != nil {
		return nil, err
	}
	return t, nil
}

// Decode parses the canonical tag encoding: "object", "type", "tag", and
// "tagger" header lines, a blank line, then the free-form message which may
// end in a detached PGP signature block.
func (t *Tag) Decode(r io.Reader) error {
	br := bufio.NewReader(r)

	for {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("object: reading tag header: %w", err)
		}
		trimmed := strings.TrimSuffix(line, "\n")
		if trimmed == "" {
			break
		}

		sp := strings.IndexByte(trimmed, ' ')
		if sp < 0 {
			return fmt.Errorf("object: malformed tag header %q", trimmed)
		}
		key, val := trimmed[:sp], trimmed[sp+1:]

		switch key {
		case "object":
			id, perr := objectid.FromHex(val)
			if perr != nil {
				return fmt.Errorf("object: malformed tag object: %w", perr)
			}
			t.TargetHash = id
		case "type":
			typ, perr := ParseType(val)
			if perr != nil {
				return fmt.Errorf("object: malformed tag type: %w", perr)
			}
			t.TargetType = typ
		case "tag":
			t.Name = val
		case "tagger":
			if err := t.Tagger.Decode([]byte(val)); err != nil {
				return err
			}
		}

		if err == io.EOF {
			break
		}
	}

	msg, err := io.ReadAll(br)
	if err != nil {
		return fmt.Errorf("object: reading tag message: %w", err)
	}

	if idx := strings.Index(string(msg), "-----BEGIN PGP SIGNATURE-----"); idx >= 0 {
		t.Message = string(msg[:idx])
		t.PGPSignature = string(msg[idx:])
	} else {
		t.Message = string(msg)
	}
	return nil
}

// Encode writes the canonical tag encoding.
func (t *Tag) Encode(o EncodedObject) error {
	o.SetType(TagType)
	w, err := o.Writer()
	if err != nil {
		return err
	}
	defer w.Close()

	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "object %s\n", t.TargetHash)
	fmt.Fprintf(buf, "type %s\n", t.TargetType)
	fmt.Fprintf(buf, "tag %s\n", t.Name)
	fmt.Fprintf(buf, "tagger %s\n", t.Tagger)
	buf.WriteByte('\n')
	buf.WriteString(t.Message)
	buf.WriteString(t.PGPSignature)

	_, err = io.Copy(w, buf)
	return err
}
