// Package object implements the four immutable object kinds — blob, tree,
// commit, and tag — and their canonical encoding.
package object

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/hearthwood/gitcore/objectid"
)

// Type discriminates the four object kinds.
type Type int8

const (
	InvalidType Type = iota
	CommitType
	TreeType
	BlobType
	TagType
)

func (t Type) String() string {
	switch t {
	case CommitType:
		return "commit"
	case TreeType:
		return "tree"
	case BlobType:
		return "blob"
	case TagType:
		return "tag"
	default:
		return "invalid"
	}
}

// ParseType maps a header token ("commit", "tree", "blob", "tag") to a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "commit":
		return CommitType, nil
	case "tree":
		return TreeType, nil
	case "blob":
		return BlobType, nil
	case "tag":
		return TagType, nil
	default:
		return InvalidType, fmt.Errorf("object: unknown type %q", s)
	}
}

// ErrObjectNotFound is returned by an object store when the requested id
// has no corresponding object.
var ErrObjectNotFound = errors.New("object: not found")

// ErrUnsupportedObject is returned when decoding is attempted against an
// EncodedObject whose Type() doesn't match the target kind.
var ErrUnsupportedObject = errors.New("object: unsupported object type")

// EncodedObject is the on-disk-agnostic representation of a single object:
// its kind, declared size, id, and a readable/writable byte stream of the
// object's payload (not including the "<kind> <size>\0" header).
type EncodedObject interface {
	Hash() objectid.ObjectID
	Type() Type
	SetType(Type)
	Size() int64
	SetSize(int64)
	Reader() (io.ReadCloser, error)
	Writer() (io.WriteCloser, error)
}

// MemoryObject is a bytes.Buffer-backed EncodedObject, used for objects
// being built in memory (new commits/trees, thin-pack delta targets)
// before they are written to a store.
type MemoryObject struct {
	typ  Type
	hash objectid.ObjectID
	buf  bytes.Buffer
	size int64
}

var _ EncodedObject = (*MemoryObject)(nil)

func (o *MemoryObject) Hash() objectid.ObjectID { return o.hash }
func (o *MemoryObject) Type() Type              { return o.typ }
func (o *MemoryObject) SetType(t Type)          { o.typ = t }
func (o *MemoryObject) Size() int64             { return o.size }
func (o *MemoryObject) SetSize(s int64)         { o.size = s }

func (o *MemoryObject) Reader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(o.buf.Bytes())), nil
}

type nopWriteCloser struct{ *MemoryObject }

func (w nopWriteCloser) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w nopWriteCloser) Close() error {
	w.size = int64(w.buf.Len())
	return nil
}

func (o *MemoryObject) Writer() (io.WriteCloser, error) {
	return nopWriteCloser{o}, nil
}

// HashObject computes and sets the id of a MemoryObject from its current
// type and content, using format f.
func (o *MemoryObject) HashObject(f objectid.Format) objectid.ObjectID {
	h := objectid.NewHasher(f, o.typ.String(), int64(o.buf.Len()))
	h.Write(o.buf.Bytes())
	o.hash = h.Sum()
	o.size = int64(o.buf.Len())
	return o.hash
}

// Signature is the author/committer/tagger identity line: a name, an
// email, and a timestamp with explicit offset.
type Signature struct {
	Name  string
	Email string
	When  Timestamp
}

// Decoder reads a GitObject's canonical wire encoding from an EncodedObject.
type Decoder interface {
	Decode(EncodedObject) error
}

// Encoder writes a GitObject's canonical wire encoding into an
// EncodedObject.
type Encoder interface {
	Encode(EncodedObject) error
}
