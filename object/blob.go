package object

import (
	"io"

	"github.com/hearthwood/gitcore/objectid"
)

// Blob is opaque byte content; it carries no structure of its own.
type Blob struct {
	Hash objectid.ObjectID
	Size int64

	obj EncodedObject
}

// GetBlob decodes a Blob from its EncodedObject form.
func GetBlob(o EncodedObject) (*Blob, error) {
	if o.Type() != BlobType {
		return nil, ErrUnsupportedObject
	}
	return &Blob{Hash: o.Hash(), Size: o.Size(), obj: o}, nil
}

// Reader returns a stream over the blob's content.
func (b *Blob) Reader() (io.ReadCloser, error) { return b.obj.Reader() }

// NewBlob builds a MemoryObject for the given content, ready for hashing.
func NewBlob(content []byte, f objectid.Format) *MemoryObject {
	o := &MemoryObject{}
	o.SetType(BlobType)
	w, _ := o.Writer()
	_, _ = w.Write(content)
	_ = w.Close()
	o.HashObject(f)
	return o
}
