package storer

import (
	"io"
	"time"

	"github.com/hearthwood/gitcore/object"
	"github.com/hearthwood/gitcore/objectid"
)

// EncodedObjectStorer is the storage contract an object database must
// satisfy: create, write, read, probe, and enumerate objects by type.
type EncodedObjectStorer interface {
	NewEncodedObject() object.EncodedObject
	SetEncodedObject(object.EncodedObject) (objectid.ObjectID, error)
	EncodedObject(object.Type, objectid.ObjectID) (object.EncodedObject, error)
	EncodedObjectSize(objectid.ObjectID) (int64, error)
	HasEncodedObject(objectid.ObjectID) error
	IterEncodedObjects(object.Type) (EncodedObjectIter, error)

	// RawObjectWriter opens a write stream for an object whose type and
	// declared size are already known, used by the packfile decoder to
	// stream objects straight into storage without buffering them twice.
	RawObjectWriter(t object.Type, size int64) (io.WriteCloser, error)

	Begin() Transaction
	AddAlternate(remote string) error
}

// DeleteObjectStorer is implemented by storers that support pruning, used
// by gc and shallow-unshallow.
type DeleteObjectStorer interface {
	DeleteOldObjects(t time.Duration) error
}

// PackedObjectStorer is implemented by storers that keep objects in
// packfiles on disk, letting update-server-info list them for the dumb
// HTTP transport without caring about the storage backend's internals.
type PackedObjectStorer interface {
	ObjectPacks() ([]objectid.ObjectID, error)
}

// EncodedObjectIter is a closable iterator over a sequence of objects.
type EncodedObjectIter interface {
	Next() (object.EncodedObject, error)
	ForEach(func(object.EncodedObject) error) error
	Close()
}

type encodedObjectSliceIter struct {
	series []object.EncodedObject
}

// NewEncodedObjectSliceIter returns an iterator over an in-memory slice of
// objects, consuming it front-to-back as Next is called.
func NewEncodedObjectSliceIter(series []object.EncodedObject) EncodedObjectIter {
	return &encodedObjectSliceIter{series: series}
}

func (i *encodedObjectSliceIter) Next() (object.EncodedObject, error) {
	if len(i.series) == 0 {
		return nil, io.EOF
	}
	obj := i.series[0]
	i.series = i.series[1:]
	return obj, nil
}

func (i *encodedObjectSliceIter) ForEach(cb func(object.EncodedObject) error) error {
	for {
		obj, err := i.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := cb(obj); err != nil {
			if err == ErrStop {
				return nil
			}
			return err
		}
	}
}

func (i *encodedObjectSliceIter) Close() { i.series = nil }

type lookupIter struct {
	storer EncodedObjectStorer
	typ    object.Type
	series []objectid.ObjectID
	pos    int
}

// NewEncodedObjectLookupIter returns an iterator that fetches objects one
// at a time from storer as Next is called, in the order ids is given.
func NewEncodedObjectLookupIter(storer EncodedObjectStorer, t object.Type, ids []objectid.ObjectID) EncodedObjectIter {
	return &lookupIter{storer: storer, typ: t, series: ids}
}

func (i *lookupIter) Next() (object.EncodedObject, error) {
	if i.pos >= len(i.series) {
		return nil, io.EOF
	}
	id := i.series[i.pos]
	i.pos++
	return i.storer.EncodedObject(i.typ, id)
}

func (i *lookupIter) ForEach(cb func(object.EncodedObject) error) error {
	for {
		obj, err := i.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := cb(obj); err != nil {
			if err == ErrStop {
				return nil
			}
			return err
		}
	}
}

func (i *lookupIter) Close() { i.pos = len(i.series) }

type multiEncodedObjectIter struct {
	iters []EncodedObjectIter
}

// NewMultiEncodedObjectIter chains several iterators into one, exhausting
// each before advancing to the next. Used to present several packfiles and
// the loose object store as a single sequence.
func NewMultiEncodedObjectIter(iters []EncodedObjectIter) EncodedObjectIter {
	return &multiEncodedObjectIter{iters: iters}
}

func (i *multiEncodedObjectIter) Next() (object.EncodedObject, error) {
	for len(i.iters) > 0 {
		obj, err := i.iters[0].Next()
		if err == io.EOF {
			i.iters[0].Close()
			i.iters = i.iters[1:]
			continue
		}
		return obj, err
	}
	return nil, io.EOF
}

func (i *multiEncodedObjectIter) ForEach(cb func(object.EncodedObject) error) error {
	for {
		obj, err := i.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := cb(obj); err != nil {
			if err == ErrStop {
				return nil
			}
			return err
		}
	}
}

func (i *multiEncodedObjectIter) Close() {
	for _, it := range i.iters {
		it.Close()
	}
	i.iters = nil
}
