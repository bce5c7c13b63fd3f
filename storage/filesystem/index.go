package filesystem

import (
	"os"

	"github.com/hearthwood/gitcore/dircache"
	"github.com/hearthwood/gitcore/objectid"
	"github.com/hearthwood/gitcore/storage/filesystem/dotgit"
)

// IndexStorage implements storer.IndexStorer against the .git/index
// binary staging-area file.
type IndexStorage struct {
	dir *dotgit.DotGit
}

func (s *IndexStorage) SetIndex(idx *dircache.Index) error {
	f, err := s.dir.IndexWriter()
	if err != nil {
		return err
	}
	defer f.Close()

	return dircache.NewEncoder(f, objectid.SHA1).Encode(idx)
}

func (s *IndexStorage) Index() (*dircache.Index, error) {
	idx := &dircache.Index{Version: 2}

	f, err := s.dir.Index()
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, err
	}
	defer f.Close()

	err = dircache.NewDecoder(f, objectid.SHA1).Decode(idx)
	return idx, err
}
