// Package storer defines the storage-agnostic interfaces that a backing
// store (filesystem, memory, a future database) must satisfy to hold
// objects and references, plus the iterator helpers built on top of them.
package storer

import (
	"errors"

	"github.com/hearthwood/gitcore/object"
	"github.com/hearthwood/gitcore/objectid"
)

// ErrStop is returned by a ForEach callback to stop iteration early
// without that being reported as an error to the caller.
var ErrStop = errors.New("storer: stop iteration")

// Storer composes the two storage concerns a repository needs at minimum.
type Storer interface {
	EncodedObjectStorer
	ReferenceStorer
}

// Initializer is implemented by storers that need to set up on-disk state
// the first time a repository is created.
type Initializer interface {
	Init() error
}

// Transaction groups a set of object writes so a storer can choose to make
// them visible atomically.
type Transaction interface {
	SetEncodedObject(object.EncodedObject) (objectid.ObjectID, error)
	Commit() error
	Rollback() error
}
