package dircache

import (
	"encoding/binary"
	"io"
)

func readUint16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func writeUint16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// readUntil reads bytes up to and including delim, one byte at a time so
// it works over a plain io.Reader (in particular the tee'd-through-hasher
// decoder stream, which must see every consumed byte).
func readUntil(r io.Reader, delim byte) ([]byte, error) {
	var out []byte
	var b [1]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		out = append(out, b[0])
		if b[0] == delim {
			return out, nil
		}
	}
}

// readVarInt reads Git's offset-encoded variable-width integer, used by
// index v4 path compression and the untracked-cache extension.
func readVarInt(r io.Reader) (int64, error) {
	var v int64
	var b [1]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		v = (v << 7) | int64(b[0]&0x7f)
		if b[0]&0x80 == 0 {
			return v, nil
		}
		v++
	}
}

// readEwahBytes consumes one EWAH-compressed bitmap (as written by git's
// "link"/"UNTR" extensions) and returns its exact wire bytes, without
// decompressing: callers only need to preserve the bitmap verbatim across
// a read-then-write round trip.
func readEwahBytes(r io.Reader) ([]byte, error) {
	buf := &countingBuf{}
	tr := io.TeeReader(r, buf)

	bits, err := readUint32(tr)
	if err != nil {
		return nil, err
	}
	_ = bits

	wordCount, err := readUint32(tr)
	if err != nil {
		return nil, err
	}

	words := make([]byte, wordCount*8)
	if _, err := io.ReadFull(tr, words); err != nil {
		return nil, err
	}

	if _, err := readUint32(tr); err != nil { // trailing rlw pointer
		return nil, err
	}

	return buf.Bytes(), nil
}

type countingBuf struct {
	b []byte
}

func (c *countingBuf) Write(p []byte) (int, error) {
	c.b = append(c.b, p...)
	return len(p), nil
}

func (c *countingBuf) Bytes() []byte { return c.b }
