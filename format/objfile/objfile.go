// Package objfile implements the loose-object file format: a zlib-deflated
// "<kind> <size>\0<payload>" stream stored under .git/objects/<fanout>/<rest>.
package objfile

import (
	"bufio"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/hearthwood/gitcore/object"
	"github.com/hearthwood/gitcore/objectid"
)

// ErrOverflow is returned by Writer.Write when more bytes are written than
// declared in the preceding WriteHeader call.
var ErrOverflow = errors.New("objfile: declared data length exceeded")

// ErrNegativeSize is returned by Writer.WriteHeader for a negative size.
var ErrNegativeSize = errors.New("objfile: negative object size")

// Reader decodes a loose object file, computing its id as it is read.
type Reader struct {
	zr     io.ReadCloser
	multi  io.Reader
	hasher objectid.Hasher
	typ    object.Type
	size   int64
}

// NewReader wraps a loose object stream, inflating it and priming a hasher
// with its format.
func NewReader(r io.Reader, format objectid.Format) (*Reader, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("objfile: %w", err)
	}
	return &Reader{zr: zr, multi: bufio.NewReader(zr), hasher: objectid.NewPlainHasher(format)}, nil
}

// Header reads and validates the "<kind> <size>\0" header, returning the
// object's type and declared size.
func (r *Reader) Header() (object.Type, int64, error) {
	typToken, err := readToken(r.multi, ' ')
	if err != nil {
		return object.InvalidType, 0, fmt.Errorf("objfile: reading type: %w", err)
	}
	typ, err := object.ParseType(typToken)
	if err != nil {
		return object.InvalidType, 0, err
	}

	sizeToken, err := readToken(r.multi, 0)
	if err != nil {
		return object.InvalidType, 0, fmt.Errorf("objfile: reading size: %w", err)
	}
	size, err := strconv.ParseInt(sizeToken, 10, 64)
	if err != nil || size < 0 {
		return object.InvalidType, 0, fmt.Errorf("objfile: invalid size %q", sizeToken)
	}

	r.typ, r.size = typ, size
	r.hasher = objectid.NewHasher(r.hasher.Format(), typ.String(), size)
	return typ, size, nil
}

func readToken(r io.Reader, delim byte) (string, error) {
	var out []byte
	buf := make([]byte, 1)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		if buf[0] == delim {
			return string(out), nil
		}
		out = append(out, buf[0])
	}
}

// Read implements io.Reader over the inflated payload, feeding every byte
// read to the running hash.
func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.multi.Read(p)
	if n > 0 {
		r.hasher.Write(p[:n])
	}
	return n, err
}

// Hash returns the object id computed from the header and payload read so
// far. Valid once the payload has been fully consumed.
func (r *Reader) Hash() objectid.ObjectID { return r.hasher.Sum() }

// Close releases the underlying zlib reader.
func (r *Reader) Close() error { return r.zr.Close() }

// Writer deflates a loose object file while computing its id.
type Writer struct {
	w      *zlib.Writer
	hasher objectid.Hasher
	size   int64
	written int64
}

// NewWriter wraps dest, deflating WriteHeader/Write calls onto it.
func NewWriter(dest io.Writer, format objectid.Format) *Writer {
	return &Writer{w: zlib.NewWriter(dest), hasher: objectid.NewPlainHasher(format)}
}

// WriteHeader writes the "<kind> <size>\0" header and primes the hasher.
func (w *Writer) WriteHeader(t object.Type, size int64) error {
	if t == object.InvalidType {
		return object.ErrUnsupportedObject
	}
	if size < 0 {
		return ErrNegativeSize
	}
	w.size = size
	w.hasher = objectid.NewHasher(w.hasher.Format(), t.String(), size)

	header := fmt.Sprintf("%s %d", t, size)
	if _, err := w.w.Write([]byte(header)); err != nil {
		return err
	}
	_, err := w.w.Write([]byte{0})
	return err
}

// Write deflates p as payload bytes, refusing writes beyond the size
// declared in WriteHeader.
func (w *Writer) Write(p []byte) (int, error) {
	overflow := w.written+int64(len(p)) - w.size
	if overflow > 0 {
		p = p[:int64(len(p))-overflow]
	}

	n, err := w.w.Write(p)
	if err == nil {
		w.hasher.Write(p[:n])
	}
	w.written += int64(n)
	if err == nil && overflow > 0 {
		err = ErrOverflow
	}
	return n, err
}

// Hash returns the object id of everything written so far.
func (w *Writer) Hash() objectid.ObjectID { return w.hasher.Sum() }

// Close flushes the zlib stream.
func (w *Writer) Close() error { return w.w.Close() }
