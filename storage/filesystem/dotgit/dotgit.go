// Package dotgit maps the on-disk layout of a .git directory (loose
// objects, packfiles, refs, packed-refs, config, index, shallow) onto a
// github.com/go-git/go-billy/v5 filesystem, the way
// https://github.com/git/git/blob/master/Documentation/gitrepository-layout.txt
// describes it.
package dotgit

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/hearthwood/gitcore/objectid"
)

const (
	configPath     = "config"
	indexPath      = "index"
	shallowPath    = "shallow"
	packedRefsPath = "packed-refs"

	objectsPath = "objects"
	packPath    = "pack"
	refsPath    = "refs"

	packExt = ".pack"
	idxExt  = ".idx"
)

// ErrIdxNotFound is returned by ObjectPackIdx when no index exists for the
// given packfile checksum.
var ErrIdxNotFound = errors.New("dotgit: idx file not found")

// ErrPackfileNotFound is returned by ObjectPack for an unknown checksum.
var ErrPackfileNotFound = errors.New("dotgit: packfile not found")

// DotGit wraps the billy filesystem rooted at a repository's .git
// directory (or, for a bare repository, the repository root itself).
type DotGit struct {
	fs billy.Filesystem
}

// New returns a DotGit rooted at fs.
func New(fs billy.Filesystem) *DotGit {
	return &DotGit{fs: fs}
}

// Filesystem returns the underlying billy filesystem.
func (d *DotGit) Filesystem() billy.Filesystem { return d.fs }

// Initialize creates the directory skeleton of an empty repository:
// objects/, objects/pack/, and refs/heads, refs/tags.
func (d *DotGit) Initialize() error {
	dirs := []string{
		d.fs.Join(objectsPath, packPath),
		d.fs.Join(refsPath, "heads"),
		d.fs.Join(refsPath, "tags"),
	}
	for _, dir := range dirs {
		if err := d.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("dotgit: initialize %s: %w", dir, err)
		}
	}
	return nil
}

// ConfigWriter returns a writable stream for the config file, truncating
// any existing content.
func (d *DotGit) ConfigWriter() (billy.File, error) {
	return d.fs.Create(configPath)
}

// Config opens the config file for reading.
func (d *DotGit) Config() (billy.File, error) {
	return d.fs.Open(configPath)
}

// IndexWriter returns a writable stream for the binary index (the staging
// area), truncating any existing content.
func (d *DotGit) IndexWriter() (billy.File, error) {
	return d.fs.Create(indexPath)
}

// Index opens the binary index for reading.
func (d *DotGit) Index() (billy.File, error) {
	return d.fs.Open(indexPath)
}

// ShallowWriter returns a writable stream for the shallow-commit list.
func (d *DotGit) ShallowWriter() (billy.File, error) {
	return d.fs.Create(shallowPath)
}

// Shallow opens the shallow-commit list for reading.
func (d *DotGit) Shallow() (billy.File, error) {
	return d.fs.Open(shallowPath)
}

// NewObject returns a writer that stages a loose object under a temporary
// name and renames it into objects/xx/yyyy... once the id is known, so a
// reader never observes a partially written object.
func (d *DotGit) NewObject() (*ObjectWriter, error) {
	return newObjectWriter(d.fs)
}

// Object opens the loose object file for id, if one exists.
func (d *DotGit) Object(id objectid.ObjectID) (billy.File, error) {
	return d.fs.Open(d.objectPath(id))
}

// HasObject reports whether a loose object file exists for id.
func (d *DotGit) HasObject(id objectid.ObjectID) bool {
	_, err := d.fs.Stat(d.objectPath(id))
	return err == nil
}

func (d *DotGit) objectPath(id objectid.ObjectID) string {
	hex := id.String()
	return d.fs.Join(objectsPath, hex[0:2], hex[2:])
}

// Objects returns the ids of every loose object under objects/.
func (d *DotGit) Objects() ([]objectid.ObjectID, error) {
	dirs, err := d.fs.ReadDir(objectsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []objectid.ObjectID
	for _, dir := range dirs {
		if !dir.IsDir() || len(dir.Name()) != 2 || !isHex(dir.Name()) {
			continue
		}

		prefix := dir.Name()
		entries, err := d.fs.ReadDir(d.fs.Join(objectsPath, prefix))
		if err != nil {
			return nil, err
		}

		for _, e := range entries {
			id, err := objectid.FromHex(prefix + e.Name())
			if err != nil {
				continue
			}
			ids = append(ids, id)
		}
	}

	return ids, nil
}

// ObjectPacks returns the checksums of every packfile under objects/pack/.
func (d *DotGit) ObjectPacks() ([]objectid.ObjectID, error) {
	dir := d.fs.Join(objectsPath, packPath)
	entries, err := d.fs.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var packs []objectid.ObjectID
	for _, f := range entries {
		name := f.Name()
		if !strings.HasSuffix(name, packExt) {
			continue
		}

		// pack-<checksum>.pack
		hex := strings.TrimSuffix(strings.TrimPrefix(name, "pack-"), packExt)
		id, err := objectid.FromHex(hex)
		if err != nil {
			continue
		}
		packs = append(packs, id)
	}

	return packs, nil
}

// ObjectPack opens the packfile with the given checksum.
func (d *DotGit) ObjectPack(checksum objectid.ObjectID) (billy.File, error) {
	path := d.fs.Join(objectsPath, packPath, fmt.Sprintf("pack-%s%s", checksum, packExt))
	f, err := d.fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPackfileNotFound
		}
		return nil, err
	}
	return f, nil
}

// ObjectPackIdx opens the .idx file for the given packfile checksum.
func (d *DotGit) ObjectPackIdx(checksum objectid.ObjectID) (billy.File, error) {
	path := d.fs.Join(objectsPath, packPath, fmt.Sprintf("pack-%s%s", checksum, idxExt))
	f, err := d.fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrIdxNotFound
		}
		return nil, err
	}
	return f, nil
}

// NewObjectPack stages a new packfile and its matching idx file under
// temporary names, renaming both into place together once Save is called.
func (d *DotGit) NewObjectPack() (*PackWriter, error) {
	return newPackWriter(d.fs)
}

func isHex(s string) bool {
	for _, b := range []byte(s) {
		switch {
		case b >= '0' && b <= '9':
		case b >= 'a' && b <= 'f':
		case b >= 'A' && b <= 'F':
		default:
			return false
		}
	}
	return true
}
