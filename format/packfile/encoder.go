package packfile

import (
	"compress/zlib"
	"io"

	"github.com/hearthwood/gitcore/object"
	"github.com/hearthwood/gitcore/objectid"
)

// Source is one object to be written into a pack.
type Source struct {
	Type    object.Type
	Content []byte
}

// Encode writes header, every source undeltified (this encoder never emits
// OFS_DELTA/REF_DELTA entries), and the trailing whole-pack checksum. It
// returns each object's computed id, in the order written.
func Encode(w io.Writer, sources []Source, format objectid.Format) ([]objectid.ObjectID, error) {
	hasher := objectid.NewPlainHasher(format)
	mw := io.MultiWriter(w, hasher)

	if _, err := mw.Write(Magic[:]); err != nil {
		return nil, err
	}
	if err := writeUint32(mw, VersionSupported); err != nil {
		return nil, err
	}
	if err := writeUint32(mw, uint32(len(sources))); err != nil {
		return nil, err
	}

	ids := make([]objectid.ObjectID, len(sources))
	for i, src := range sources {
		id, err := writeEntry(mw, src, format)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}

	_, err := w.Write(hasher.Sum().Bytes())
	return ids, err
}

func writeEntry(w io.Writer, src Source, format objectid.Format) (objectid.ObjectID, error) {
	h := objectid.NewHasher(format, src.Type.String(), int64(len(src.Content)))
	h.Write(src.Content)
	id := h.Sum()

	typ := entryTypeFor(src.Type)
	size := uint64(len(src.Content))

	first := byte(typ)<<firstSizeBits | byte(size&0x0f)
	size >>= 4
	if size != 0 {
		first |= maskContinue
	}
	if _, err := w.Write([]byte{first}); err != nil {
		return id, err
	}
	for size != 0 {
		b := byte(size & maskPayload)
		size >>= 7
		if size != 0 {
			b |= maskContinue
		}
		if _, err := w.Write([]byte{b}); err != nil {
			return id, err
		}
	}

	zw := zlib.NewWriter(w)
	if _, err := zw.Write(src.Content); err != nil {
		return id, err
	}
	return id, zw.Close()
}

func entryTypeFor(t object.Type) entryType {
	switch t {
	case object.CommitType:
		return entryCommit
	case object.TreeType:
		return entryTree
	case object.BlobType:
		return entryBlob
	case object.TagType:
		return entryTag
	default:
		return entryBlob
	}
}

func writeUint32(w io.Writer, v uint32) error {
	b := []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
	_, err := w.Write(b)
	return err
}
