package storer

import "github.com/hearthwood/gitcore/objectid"

// ShallowStorer holds the set of commit ids whose parents were deliberately
// not fetched, because the clone or fetch that produced them requested a
// depth limit.
type ShallowStorer interface {
	SetShallow([]objectid.ObjectID) error
	Shallow() ([]objectid.ObjectID, error)
}
