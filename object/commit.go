package object

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/hearthwood/gitcore/objectid"
)

// Commit points to a tree, marking what the project looked like at a point
// in time, and to zero or more parents.
type Commit struct {
	Hash          objectid.ObjectID
	TreeHash      objectid.ObjectID
	ParentHashes  []objectid.ObjectID
	Author        Signature
	Committer     Signature
	PGPSignature  string
	Message       string
}

// NumParents reports len(ParentHashes); zero means a root commit, two or
// more means a merge.
func (c *Commit) NumParents() int { return len(c.ParentHashes) }

// GetCommit decodes a Commit from its EncodedObject form.
func GetCommit(o EncodedObject) (*Commit, error) {
	if o.Type() != CommitType {
		return nil, ErrUnsupportedObject
	}
	c := &Commit{Hash: o.Hash()}
	r, err := o.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if err := c.Decode(r); err != nil {
		return nil, err
	}
	return c, nil
}

// Decode parses the canonical commit encoding: a sequence of header lines
// ("tree", "parent", "author", "committer", "gpgsig" — the last
// continuation-indented) terminated by a blank line, then the message.
func (c *Commit) Decode(r io.Reader) error {
	br := bufio.NewReader(r)

	for {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("object: reading commit header: %w", err)
		}
		trimmed := strings.TrimSuffix(line, "\n")
		if trimmed == "" {
			break
		}

		sp := strings.IndexByte(trimmed, ' ')
		if sp < 0 {
			return fmt.Errorf("object: malformed commit header %q", trimmed)
		}
		key, val := trimmed[:sp], trimmed[sp+1:]

		switch key {
		case "tree":
			id, perr := objectid.FromHex(val)
			if perr != nil {
				return fmt.Errorf("object: malformed commit tree: %w", perr)
			}
			c.TreeHash = id
		case "parent":
			id, perr := objectid.FromHex(val)
			if perr != nil {
				return fmt.Errorf("object: malformed commit parent: %w", perr)
			}
			c.ParentHashes = append(c.ParentHashes, id)
		case "author":
			if err := c.Author.Decode([]byte(val)); err != nil {
				return err
			}
		case "committer":
			if err := c.Committer.Decode([]byte(val)); err != nil {
				return err
			}
		case "gpgsig":
			sig, rerr := readSignatureBlock(br, val)
			if rerr != nil {
				return rerr
			}
			c.PGPSignature = sig
		}

		if err == io.EOF {
			break
		}
	}

	msg, err := io.ReadAll(br)
	if err != nil {
		return fmt.Errorf("object: reading commit message: %w", err)
	}
	c.Message = string(msg)
	return nil
}

// readSignatureBlock consumes the space-indented continuation lines of a
// multi-line header value such as "gpgsig", stopping at the first line that
// doesn't start with a single leading space.
func readSignatureBlock(br *bufio.Reader, first string) (string, error) {
	var b strings.Builder
	b.WriteString(first)

	for {
		peek, perr := br.Peek(1)
		if perr != nil || len(peek) == 0 || peek[0] != ' ' {
			break
		}
		line, rerr := br.ReadString('\n')
		if rerr != nil && rerr != io.EOF {
			return "", fmt.Errorf("object: reading signature continuation: %w", rerr)
		}
		b.WriteByte('\n')
		b.WriteString(strings.TrimPrefix(strings.TrimSuffix(line, "\n"), " "))
		if rerr == io.EOF {
			break
		}
	}

	return b.String(), nil
}

// Encode writes the canonical commit encoding.
func (c *Commit) Encode(o EncodedObject) error {
	o.SetType(CommitType)
	w, err := o.Writer()
	if err != nil {
		return err
	}
	defer w.Close()

	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "tree %s\n", c.TreeHash)
	for _, p := range c.ParentHashes {
		fmt.Fprintf(buf, "parent %s\n", p)
	}
	fmt.Fprintf(buf, "author %s\n", c.Author)
	fmt.Fprintf(buf, "committer %s\n", c.Committer)
	if c.PGPSignature != "" {
		buf.WriteString("gpgsig ")
		for i, line := range strings.Split(c.PGPSignature, "\n") {
			if i > 0 {
				buf.WriteString(" ")
			}
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)

	_, err = io.Copy(w, buf)
	return err
}

// IsMerge reports whether the commit has two or more parents.
func (c *Commit) IsMerge() bool { return len(c.ParentHashes) >= 2 }

// IsRoot reports whether the commit has no parents.
func (c *Commit) IsRoot() bool { return len(c.ParentHashes) == 0 }
