package filesystem

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hearthwood/gitcore/cache"
	"github.com/hearthwood/gitcore/format/idx"
	"github.com/hearthwood/gitcore/format/objfile"
	"github.com/hearthwood/gitcore/format/packfile"
	"github.com/hearthwood/gitcore/object"
	"github.com/hearthwood/gitcore/objectid"
	"github.com/hearthwood/gitcore/storer"
	"github.com/hearthwood/gitcore/storage/filesystem/dotgit"
)

// ObjectStorage implements storer.EncodedObjectStorer on top of a .git
// directory: writes always go to loose objects, reads check loose
// objects first and fall back to scanning packfiles. A cache.Object
// absorbs repeated lookups of the same id.
type ObjectStorage struct {
	dir   *dotgit.DotGit
	cache cache.Object

	packs map[objectid.ObjectID]*idx.Index
	// resolved caches a pack's fully-decoded contents the first time any
	// object in it is requested, since format/packfile.Decode has no
	// single-object random-access mode.
	resolved map[objectid.ObjectID]map[objectid.ObjectID]packfile.ResolvedObject
}

// errNotImplemented is returned by operations this store deliberately
// does not support.
var errNotImplemented = fmt.Errorf("filesystem storage: not implemented")

// NewObjectStorage returns an ObjectStorage rooted at dir, caching reads
// in c (pass cache.NewObjectLRUDefault() for a sensible default).
func NewObjectStorage(dir *dotgit.DotGit, c cache.Object) *ObjectStorage {
	return &ObjectStorage{
		dir:      dir,
		cache:    c,
		packs:    make(map[objectid.ObjectID]*idx.Index),
		resolved: make(map[objectid.ObjectID]map[objectid.ObjectID]packfile.ResolvedObject),
	}
}

func (s *ObjectStorage) NewEncodedObject() object.EncodedObject {
	return &object.MemoryObject{}
}

// SetEncodedObject writes obj as a loose object under its declared hash.
func (s *ObjectStorage) SetEncodedObject(obj object.EncodedObject) (objectid.ObjectID, error) {
	h := obj.Hash()

	w, err := s.dir.NewObject()
	if err != nil {
		return h, err
	}

	if err := w.WriteHeader(obj.Type(), obj.Size()); err != nil {
		return h, err
	}

	r, err := obj.Reader()
	if err != nil {
		return h, err
	}
	defer r.Close()

	if _, err := io.Copy(w, r); err != nil {
		return h, err
	}

	if err := w.Close(); err != nil {
		return h, err
	}

	if s.cache != nil {
		s.cache.Put(obj)
	}

	return h, nil
}

func (s *ObjectStorage) HasEncodedObject(h objectid.ObjectID) error {
	if s.dir.HasObject(h) {
		return nil
	}

	if _, err := s.findInPacks(h); err != nil {
		return err
	}
	return nil
}

func (s *ObjectStorage) EncodedObjectSize(h objectid.ObjectID) (int64, error) {
	obj, err := s.EncodedObject(object.InvalidType, h)
	if err != nil {
		return 0, err
	}
	return obj.Size(), nil
}

func (s *ObjectStorage) EncodedObject(t object.Type, h objectid.ObjectID) (object.EncodedObject, error) {
	if s.cache != nil {
		if obj, ok := s.cache.Get(h); ok && (t == object.InvalidType || obj.Type() == t) {
			return obj, nil
		}
	}

	obj, err := s.readLoose(h)
	if err == nil {
		if t != object.InvalidType && obj.Type() != t {
			return nil, object.ErrObjectNotFound
		}
		if s.cache != nil {
			s.cache.Put(obj)
		}
		return obj, nil
	}
	if err != object.ErrObjectNotFound {
		return nil, err
	}

	obj, err = s.findInPacks(h)
	if err != nil {
		return nil, err
	}
	if t != object.InvalidType && obj.Type() != t {
		return nil, object.ErrObjectNotFound
	}
	if s.cache != nil {
		s.cache.Put(obj)
	}
	return obj, nil
}

func (s *ObjectStorage) readLoose(h objectid.ObjectID) (object.EncodedObject, error) {
	f, err := s.dir.Object(h)
	if err != nil {
		return nil, object.ErrObjectNotFound
	}
	defer f.Close()

	r, err := objfile.NewReader(f, objectid.SHA1)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	typ, size, err := r.Header()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil && err != io.EOF {
		return nil, err
	}

	obj := &object.MemoryObject{}
	obj.SetType(typ)
	obj.SetSize(size)
	w, err := obj.Writer()
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(buf); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	obj.HashObject(objectid.SHA1)

	return obj, nil
}

func (s *ObjectStorage) findInPacks(h objectid.ObjectID) (object.EncodedObject, error) {
	checksums, err := s.dir.ObjectPacks()
	if err != nil {
		return nil, err
	}

	for _, checksum := range checksums {
		idxFile, ok := s.packs[checksum]
		if !ok {
			idxFile, err = s.loadPackIndex(checksum)
			if err != nil {
				return nil, err
			}
		}

		if _, ok := idxFile.FindOffset(h); !ok {
			continue
		}

		resolved, err := s.decodedPack(checksum)
		if err != nil {
			return nil, err
		}

		r, ok := resolved[h]
		if !ok {
			continue
		}

		obj := &object.MemoryObject{}
		obj.SetType(r.Type)
		obj.SetSize(int64(len(r.Content)))
		w, err := obj.Writer()
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(r.Content); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		obj.HashObject(objectid.SHA1)

		return obj, nil
	}

	return nil, object.ErrObjectNotFound
}

func (s *ObjectStorage) loadPackIndex(checksum objectid.ObjectID) (*idx.Index, error) {
	f, err := s.dir.ObjectPackIdx(checksum)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	parsed, err := idx.Decode(f, objectid.SHA1)
	if err != nil {
		return nil, err
	}

	s.packs[checksum] = parsed
	return parsed, nil
}

func (s *ObjectStorage) decodedPack(checksum objectid.ObjectID) (map[objectid.ObjectID]packfile.ResolvedObject, error) {
	if m, ok := s.resolved[checksum]; ok {
		return m, nil
	}

	f, err := s.dir.ObjectPack(checksum)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	resolved, err := packfile.Decode(f, objectid.SHA1, s.externalBase)
	if err != nil {
		return nil, fmt.Errorf("filesystem storage: decoding pack %s: %w", checksum, err)
	}

	m := make(map[objectid.ObjectID]packfile.ResolvedObject, len(resolved))
	for _, r := range resolved {
		m[r.ID] = r
	}

	s.resolved[checksum] = m
	return m, nil
}

// externalBase resolves a REF_DELTA base that isn't found within the pack
// currently being decoded, for thin packs whose base lives loose or in
// another pack.
func (s *ObjectStorage) externalBase(id objectid.ObjectID) ([]byte, object.Type, error) {
	obj, err := s.EncodedObject(object.InvalidType, id)
	if err != nil {
		return nil, object.InvalidType, err
	}

	r, err := obj.Reader()
	if err != nil {
		return nil, object.InvalidType, err
	}
	defer r.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, object.InvalidType, err
	}

	return buf.Bytes(), obj.Type(), nil
}

func (s *ObjectStorage) IterEncodedObjects(t object.Type) (storer.EncodedObjectIter, error) {
	ids, err := s.dir.Objects()
	if err != nil {
		return nil, err
	}

	checksums, err := s.dir.ObjectPacks()
	if err != nil {
		return nil, err
	}
	for _, checksum := range checksums {
		idxFile, ok := s.packs[checksum]
		if !ok {
			idxFile, err = s.loadPackIndex(checksum)
			if err != nil {
				return nil, err
			}
		}
		for _, e := range idxFile.Entries {
			ids = append(ids, e.ID)
		}
	}

	var series []object.EncodedObject
	seen := make(map[objectid.ObjectID]bool)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		obj, err := s.EncodedObject(object.InvalidType, id)
		if err != nil {
			return nil, err
		}
		if t != object.InvalidType && obj.Type() != t {
			continue
		}
		series = append(series, obj)
	}

	return storer.NewEncodedObjectSliceIter(series), nil
}

// RawObjectWriter streams a new loose object straight to disk without
// buffering its full content in memory first.
func (s *ObjectStorage) RawObjectWriter(t object.Type, size int64) (io.WriteCloser, error) {
	w, err := s.dir.NewObject()
	if err != nil {
		return nil, err
	}
	if err := w.WriteHeader(t, size); err != nil {
		return nil, err
	}
	return &rawObjectWriter{ObjectWriter: w, cache: s.cache}, nil
}

type rawObjectWriter struct {
	*dotgit.ObjectWriter
	cache cache.Object
}

// AddAlternate is not implemented: multi-repository object sharing via
// objects/info/alternates is out of scope for this store.
func (s *ObjectStorage) AddAlternate(string) error {
	return errNotImplemented
}

// ObjectPacks returns the checksum of every packfile backing this store,
// satisfying storer.PackedObjectStorer for update-server-info.
func (s *ObjectStorage) ObjectPacks() ([]objectid.ObjectID, error) {
	return s.dir.ObjectPacks()
}

// Begin starts a transaction whose writes are only persisted to loose
// object files once Commit is called.
func (s *ObjectStorage) Begin() storer.Transaction {
	return &txObjectStorage{storage: s, pending: make(map[objectid.ObjectID]object.EncodedObject)}
}

type txObjectStorage struct {
	storage *ObjectStorage
	pending map[objectid.ObjectID]object.EncodedObject
}

func (tx *txObjectStorage) SetEncodedObject(obj object.EncodedObject) (objectid.ObjectID, error) {
	h := obj.Hash()
	tx.pending[h] = obj
	return h, nil
}

func (tx *txObjectStorage) Commit() error {
	for h, obj := range tx.pending {
		delete(tx.pending, h)
		if _, err := tx.storage.SetEncodedObject(obj); err != nil {
			return err
		}
	}
	return nil
}

func (tx *txObjectStorage) Rollback() error {
	for h := range tx.pending {
		delete(tx.pending, h)
	}
	return nil
}
