// Package memory implements an ephemeral, in-process storer.Storer: every
// object, reference, config value and index lives only in Go maps/slices
// and is lost once the Storage value is garbage collected. Useful for
// tests and for operations (like a bare clone held only long enough to
// read a few objects) that don't need a working tree on disk.
package memory

import (
	"errors"
	"fmt"
	"io"

	"github.com/hearthwood/gitcore/config"
	"github.com/hearthwood/gitcore/dircache"
	"github.com/hearthwood/gitcore/object"
	"github.com/hearthwood/gitcore/objectid"
	"github.com/hearthwood/gitcore/refs"
	"github.com/hearthwood/gitcore/storer"
)

// ErrUnsupportedObjectType is returned by SetEncodedObject for any Type
// other than Commit/Tree/Blob/Tag.
var ErrUnsupportedObjectType = fmt.Errorf("memory storage: unsupported object type")

// Storage is a storer.Storer (plus Shallow/Index/Config storage) backed
// entirely by in-memory maps.
type Storage struct {
	ConfigStorage
	ObjectStorage
	ShallowStorage
	IndexStorage
	ReferenceStorage
}

// NewStorage returns an empty in-memory Storage.
func NewStorage() *Storage {
	return &Storage{
		ReferenceStorage: make(ReferenceStorage),
		ObjectStorage: ObjectStorage{
			Objects: make(map[objectid.ObjectID]object.EncodedObject),
			Commits: make(map[objectid.ObjectID]object.EncodedObject),
			Trees:   make(map[objectid.ObjectID]object.EncodedObject),
			Blobs:   make(map[objectid.ObjectID]object.EncodedObject),
			Tags:    make(map[objectid.ObjectID]object.EncodedObject),
		},
	}
}

// ConfigStorage implements config.ConfigStorer for in-memory storage.
type ConfigStorage struct {
	config *config.Config
}

func (c *ConfigStorage) SetConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.config = cfg
	return nil
}

func (c *ConfigStorage) Config() (*config.Config, error) {
	if c.config == nil {
		c.config = config.NewConfig()
	}
	return c.config, nil
}

// IndexStorage implements storer.IndexStorer for in-memory storage.
type IndexStorage struct {
	index *dircache.Index
}

func (s *IndexStorage) SetIndex(idx *dircache.Index) error {
	s.index = idx
	return nil
}

func (s *IndexStorage) Index() (*dircache.Index, error) {
	if s.index == nil {
		s.index = &dircache.Index{Version: 2}
	}
	return s.index, nil
}

// ObjectStorage implements storer.EncodedObjectStorer for in-memory
// storage, keeping a by-type index alongside the flat Objects map so
// IterEncodedObjects doesn't need to filter on every call.
type ObjectStorage struct {
	Objects map[objectid.ObjectID]object.EncodedObject
	Commits map[objectid.ObjectID]object.EncodedObject
	Trees   map[objectid.ObjectID]object.EncodedObject
	Blobs   map[objectid.ObjectID]object.EncodedObject
	Tags    map[objectid.ObjectID]object.EncodedObject
}

// NewEncodedObject returns a new, empty in-memory EncodedObject.
func (o *ObjectStorage) NewEncodedObject() object.EncodedObject {
	return &object.MemoryObject{}
}

// SetEncodedObject stores obj, indexing it by its declared Type in
// addition to the flat Objects map.
func (o *ObjectStorage) SetEncodedObject(obj object.EncodedObject) (objectid.ObjectID, error) {
	h := obj.Hash()
	o.Objects[h] = obj

	switch obj.Type() {
	case object.CommitType:
		o.Commits[h] = obj
	case object.TreeType:
		o.Trees[h] = obj
	case object.BlobType:
		o.Blobs[h] = obj
	case object.TagType:
		o.Tags[h] = obj
	default:
		return h, ErrUnsupportedObjectType
	}

	return h, nil
}

func (o *ObjectStorage) HasEncodedObject(h objectid.ObjectID) error {
	if _, ok := o.Objects[h]; !ok {
		return object.ErrObjectNotFound
	}
	return nil
}

func (o *ObjectStorage) EncodedObjectSize(h objectid.ObjectID) (int64, error) {
	obj, ok := o.Objects[h]
	if !ok {
		return 0, object.ErrObjectNotFound
	}
	return obj.Size(), nil
}

func (o *ObjectStorage) EncodedObject(t object.Type, h objectid.ObjectID) (object.EncodedObject, error) {
	obj, ok := o.Objects[h]
	if !ok || (t != object.InvalidType && obj.Type() != t) {
		return nil, object.ErrObjectNotFound
	}
	return obj, nil
}

func (o *ObjectStorage) IterEncodedObjects(t object.Type) (storer.EncodedObjectIter, error) {
	var m map[objectid.ObjectID]object.EncodedObject
	switch t {
	case object.InvalidType:
		m = o.Objects
	case object.CommitType:
		m = o.Commits
	case object.TreeType:
		m = o.Trees
	case object.BlobType:
		m = o.Blobs
	case object.TagType:
		m = o.Tags
	default:
		return storer.NewEncodedObjectSliceIter(nil), nil
	}

	series := make([]object.EncodedObject, 0, len(m))
	for _, obj := range m {
		series = append(series, obj)
	}
	return storer.NewEncodedObjectSliceIter(series), nil
}

// RawObjectWriter returns a write stream for an object of the given type
// and declared size; closing it commits the buffered bytes as a new
// EncodedObject, hashed with SHA1.
func (o *ObjectStorage) RawObjectWriter(t object.Type, size int64) (io.WriteCloser, error) {
	obj := o.NewEncodedObject()
	obj.SetType(t)
	obj.SetSize(size)

	w, err := obj.Writer()
	if err != nil {
		return nil, err
	}

	return &rawObjectWriter{WriteCloser: w, storage: o, obj: obj}, nil
}

type rawObjectWriter struct {
	io.WriteCloser
	storage *ObjectStorage
	obj     object.EncodedObject
}

func (w *rawObjectWriter) Close() error {
	if err := w.WriteCloser.Close(); err != nil {
		return fmt.Errorf("memory storage: closing raw object writer: %w", err)
	}
	w.obj.(*object.MemoryObject).HashObject(objectid.SHA1)
	_, err := w.storage.SetEncodedObject(w.obj)
	return err
}

// Begin starts a transaction whose writes are only visible to the backing
// ObjectStorage once Commit is called.
func (o *ObjectStorage) Begin() storer.Transaction {
	return &txObjectStorage{
		storage: o,
		objects: make(map[objectid.ObjectID]object.EncodedObject),
	}
}

// AddAlternate is not supported by in-memory storage: there is no
// on-disk alternates file to append to.
func (o *ObjectStorage) AddAlternate(string) error {
	return errNotSupported
}

var errNotSupported = errors.New("memory storage: not supported")

type txObjectStorage struct {
	storage *ObjectStorage
	objects map[objectid.ObjectID]object.EncodedObject
}

func (tx *txObjectStorage) SetEncodedObject(obj object.EncodedObject) (objectid.ObjectID, error) {
	h := obj.Hash()
	tx.objects[h] = obj
	return h, nil
}

func (tx *txObjectStorage) Commit() error {
	for h, obj := range tx.objects {
		delete(tx.objects, h)
		if _, err := tx.storage.SetEncodedObject(obj); err != nil {
			return err
		}
	}
	return nil
}

func (tx *txObjectStorage) Rollback() error {
	for h := range tx.objects {
		delete(tx.objects, h)
	}
	return nil
}

// ReferenceStorage implements storer.ReferenceStorer for in-memory storage.
type ReferenceStorage map[refs.Name]*refs.Reference

func (r ReferenceStorage) SetReference(ref *refs.Reference) error {
	if ref != nil {
		r[ref.Name()] = ref
	}
	return nil
}

// CheckAndSetReference stores ref only if the currently stored value for
// its name has the same hash as old (nil old skips the check).
func (r ReferenceStorage) CheckAndSetReference(ref, old *refs.Reference) error {
	if ref == nil {
		return nil
	}

	if old != nil {
		if current, ok := r[ref.Name()]; ok && !current.Hash().Equal(old.Hash()) {
			return ErrReferenceHasChanged
		}
	}

	r[ref.Name()] = ref
	return nil
}

// ErrReferenceHasChanged is returned by CheckAndSetReference when the
// stored reference no longer matches the expected old value.
var ErrReferenceHasChanged = errors.New("memory storage: reference has changed concurrently")

func (r ReferenceStorage) Reference(n refs.Name) (*refs.Reference, error) {
	ref, ok := r[n]
	if !ok {
		return nil, refs.ErrReferenceNotFound
	}
	return ref, nil
}

func (r ReferenceStorage) IterReferences() (storer.ReferenceIter, error) {
	series := make([]*refs.Reference, 0, len(r))
	for _, ref := range r {
		series = append(series, ref)
	}
	return storer.NewReferenceSliceIter(series), nil
}

func (r ReferenceStorage) CountLooseRefs() (int, error) {
	return len(r), nil
}

// PackRefs is a no-op: in-memory storage has no loose/packed distinction.
func (r ReferenceStorage) PackRefs() error {
	return nil
}

func (r ReferenceStorage) RemoveReference(n refs.Name) error {
	delete(r, n)
	return nil
}

// ShallowStorage implements storer.ShallowStorer for in-memory storage.
type ShallowStorage []objectid.ObjectID

func (s *ShallowStorage) SetShallow(commits []objectid.ObjectID) error {
	*s = commits
	return nil
}

func (s ShallowStorage) Shallow() ([]objectid.ObjectID, error) {
	return s, nil
}
