package filesystem

import (
	"github.com/hearthwood/gitcore/cache"
	"github.com/hearthwood/gitcore/storage/filesystem/dotgit"
	"github.com/hearthwood/gitcore/storer"
)

// ModuleStorage resolves a named submodule to its own Storage, rooted at
// .git/modules/<name>, the way git stores a submodule's object database
// once it has been initialized.
type ModuleStorage struct {
	dir *dotgit.DotGit
}

// Module returns the storer for the submodule name, creating its
// modules/<name> directory skeleton if this is the first time it's used.
func (s *ModuleStorage) Module(name string) (storer.Storer, error) {
	fs := s.dir.Filesystem()
	moduleFS, err := fs.Chroot(fs.Join("modules", name))
	if err != nil {
		return nil, err
	}

	sub := NewStorage(moduleFS, cache.NewObjectLRUDefault())
	return sub, sub.Init()
}
