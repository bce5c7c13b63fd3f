// Package filesystem implements storer.Storer on top of the standard Git
// on-disk layout (loose objects, packfiles, refs, packed-refs, config,
// index, shallow), addressed through a github.com/go-git/go-billy/v5
// filesystem so the same code works against an OS directory, an in-memory
// filesystem, or a chrooted view of either.
package filesystem

import (
	"errors"

	"github.com/go-git/go-billy/v5"

	"github.com/hearthwood/gitcore/cache"
	"github.com/hearthwood/gitcore/storage/filesystem/dotgit"
)

// ErrReferenceHasChanged is returned by ReferenceStorage.CheckAndSetReference
// when the stored reference no longer matches the expected old value.
var ErrReferenceHasChanged = errors.New("filesystem storage: reference has changed concurrently")

// Storage is a storer.Storer backed by a .git directory on disk.
type Storage struct {
	fs  billy.Filesystem
	dir *dotgit.DotGit

	ObjectStorage
	ReferenceStorage
	IndexStorage
	ShallowStorage
	ConfigStorage
	ModuleStorage
}

// NewStorage returns a Storage rooted at fs, caching object reads in c
// (pass nil for cache.NewObjectLRUDefault()).
func NewStorage(fs billy.Filesystem, c cache.Object) *Storage {
	if c == nil {
		c = cache.NewObjectLRUDefault()
	}

	dir := dotgit.New(fs)

	return &Storage{
		fs:  fs,
		dir: dir,

		ObjectStorage:    *NewObjectStorage(dir, c),
		ReferenceStorage: ReferenceStorage{dir: dir},
		IndexStorage:     IndexStorage{dir: dir},
		ShallowStorage:   ShallowStorage{dir: dir},
		ConfigStorage:    ConfigStorage{dir: dir},
		ModuleStorage:    ModuleStorage{dir: dir},
	}
}

// Filesystem returns the underlying billy filesystem.
func (s *Storage) Filesystem() billy.Filesystem { return s.fs }

// Init creates the .git directory skeleton (objects/, refs/heads,
// refs/tags) if it doesn't already exist.
func (s *Storage) Init() error {
	return s.dir.Initialize()
}
