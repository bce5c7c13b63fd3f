package packfile

import (
	"errors"
	"fmt"
	"io"

	"github.com/hearthwood/gitcore/object"
	"github.com/hearthwood/gitcore/objectid"
)

// ErrBaseNotFound is returned when a REF_DELTA entry names a base id that
// is neither already resolved from this pack nor found via the external
// lookup passed to Decode.
var ErrBaseNotFound = errors.New("packfile: delta base not found")

// ResolvedObject is a fully reconstructed object: its id, type, and raw
// (non-delta) content.
type ResolvedObject struct {
	ID      objectid.ObjectID
	Type    object.Type
	Content []byte
}

// Decode reads every entry from r, resolves OFS_DELTA/REF_DELTA chains, and
// returns the objects in encounter order. externalBase is consulted for
// REF_DELTA bases not found earlier in the same pack (e.g. thin packs); it
// may be nil if the pack is known to be self-contained.
func Decode(r io.Reader, format objectid.Format, externalBase func(objectid.ObjectID) ([]byte, object.Type, error)) ([]ResolvedObject, error) {
	s, err := NewScanner(r, format)
	if err != nil {
		return nil, err
	}

	var raws []*RawEntry
	byOffset := map[int64]*RawEntry{}
	for {
		e, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		raws = append(raws, e)
		byOffset[e.Offset] = e
	}

	resolved := make(map[int64]ResolvedObject, len(raws))
	byID := map[objectid.ObjectID]ResolvedObject{}

	var resolve func(e *RawEntry) (ResolvedObject, error)
	resolve = func(e *RawEntry) (ResolvedObject, error) {
		if r, ok := resolved[e.Offset]; ok {
			return r, nil
		}
		if !e.IsDelta {
			h := objectid.NewHasher(format, e.Type.String(), int64(len(e.Data)))
			h.Write(e.Data)
			obj := ResolvedObject{ID: h.Sum(), Type: e.Type, Content: e.Data}
			resolved[e.Offset] = obj
			byID[obj.ID] = obj
			return obj, nil
		}

		var base ResolvedObject
		if e.DeltaRef {
			if b, ok := byID[e.BaseID]; ok {
				base = b
			} else if externalBase != nil {
				content, typ, err := externalBase(e.BaseID)
				if err != nil {
					return ResolvedObject{}, fmt.Errorf("%w: %v", ErrBaseNotFound, err)
				}
				base = ResolvedObject{ID: e.BaseID, Type: typ, Content: content}
			} else {
				return ResolvedObject{}, ErrBaseNotFound
			}
		} else {
			baseEntry, ok := byOffset[e.BaseOffset]
			if !ok {
				return ResolvedObject{}, fmt.Errorf("packfile: no entry at base offset %d", e.BaseOffset)
			}
			b, err := resolve(baseEntry)
			if err != nil {
				return ResolvedObject{}, err
			}
			base = b
		}

		content, err := PatchDelta(base.Content, e.Data)
		if err != nil {
			return ResolvedObject{}, err
		}
		h := objectid.NewHasher(format, base.Type.String(), int64(len(content)))
		h.Write(content)
		obj := ResolvedObject{ID: h.Sum(), Type: base.Type, Content: content}
		resolved[e.Offset] = obj
		byID[obj.ID] = obj
		return obj, nil
	}

	out := make([]ResolvedObject, 0, len(raws))
	for _, e := range raws {
		obj, err := resolve(e)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}
