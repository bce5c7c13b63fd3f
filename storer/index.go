package storer

import "github.com/hearthwood/gitcore/dircache"

// IndexStorer holds the single binary index (staging area) of a
// repository.
type IndexStorer interface {
	SetIndex(*dircache.Index) error
	Index() (*dircache.Index, error)
}
