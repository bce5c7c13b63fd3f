package filesystem

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/hearthwood/gitcore/objectid"
	"github.com/hearthwood/gitcore/storage/filesystem/dotgit"
)

// ShallowStorage implements storer.ShallowStorer against the .git/shallow
// file, one hex object id per line.
type ShallowStorage struct {
	dir *dotgit.DotGit
}

func (s *ShallowStorage) SetShallow(commits []objectid.ObjectID) error {
	f, err := s.dir.ShallowWriter()
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, id := range commits {
		if _, err := fmt.Fprintln(w, id.String()); err != nil {
			return err
		}
	}
	return w.Flush()
}

func (s *ShallowStorage) Shallow() ([]objectid.ObjectID, error) {
	f, err := s.dir.Shallow()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var commits []objectid.ObjectID
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		id, err := objectid.FromHex(line)
		if err != nil {
			return nil, err
		}
		commits = append(commits, id)
	}

	return commits, sc.Err()
}
