// Package repository ties the object store, reference store, and config
// together into the unit commands operate on: Open/Init against any
// storer.Storer, PlainOpen/PlainInit against an on-disk .git directory, and
// the Fetch/Push orchestration that drives protocol/transport from a
// repository's own refs and objects.
package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/hearthwood/gitcore/config"
	"github.com/hearthwood/gitcore/filemode"
	"github.com/hearthwood/gitcore/format/commitgraph"
	"github.com/hearthwood/gitcore/format/packfile"
	"github.com/hearthwood/gitcore/object"
	"github.com/hearthwood/gitcore/objectid"
	"github.com/hearthwood/gitcore/protocol/transport"
	"github.com/hearthwood/gitcore/refs"
	"github.com/hearthwood/gitcore/revwalk"
	"github.com/hearthwood/gitcore/storage/filesystem"
	"github.com/hearthwood/gitcore/storer"
)

var (
	// ErrRepositoryNotExists is returned by Open/PlainOpen when the storer
	// has no HEAD reference yet.
	ErrRepositoryNotExists = errors.New("repository: does not exist")
	// ErrRepositoryAlreadyExists is returned by Init/PlainInit when the
	// storer already has a HEAD reference.
	ErrRepositoryAlreadyExists = errors.New("repository: already exists")
	// ErrWorktreeNotProvided is returned by Open when the repository isn't
	// bare but no working tree filesystem was given.
	ErrWorktreeNotProvided = errors.New("repository: worktree not provided for a non-bare repository")
	// ErrRemoteNotFound is returned by Remote when no remote with that name
	// is configured.
	ErrRemoteNotFound = errors.New("repository: remote not found")
	// ErrRemoteExists is returned by CreateRemote for a name already in use.
	ErrRemoteExists = errors.New("repository: remote already exists")
	// ErrReflogNotSupported is returned by AppendReflog/Reflog when the
	// repository's storer keeps no on-disk log (storage/memory, say).
	ErrReflogNotSupported = errors.New("repository: storer does not support reflog")
)

// Storer is the storage contract a repository needs: objects, refs, and
// config, the three things both storage/filesystem and storage/memory
// implement together.
type Storer interface {
	storer.Storer
	config.ConfigStorer
}

// Repository is a Storer plus an optional working tree, the unit Fetch,
// Push, and history/tree traversal operate against.
type Repository struct {
	s  Storer
	wt billy.Filesystem
}

func newRepository(s Storer, wt billy.Filesystem) *Repository {
	return &Repository{s: s, wt: wt}
}

// Init creates an empty repository over s: a HEAD symbolic ref pointing at
// refs/heads/master and, for a non-bare repository, core.bare=false in
// config. s must not already carry a HEAD reference.
func Init(s Storer, wt billy.Filesystem) (*Repository, error) {
	if _, err := s.Reference(refs.HEAD); err == nil {
		return nil, ErrRepositoryAlreadyExists
	} else if !errors.Is(err, refs.ErrReferenceNotFound) {
		return nil, err
	}

	if err := s.SetReference(refs.NewSymbolicReference(refs.HEAD, "refs/heads/master")); err != nil {
		return nil, err
	}

	cfg, err := s.Config()
	if err != nil {
		return nil, err
	}
	cfg.Core.IsBare = wt == nil
	if err := s.SetConfig(cfg); err != nil {
		return nil, err
	}

	return newRepository(s, wt), nil
}

// Open opens an existing repository over s. A non-bare repository requires
// wt; a bare one ignores it.
func Open(s Storer, wt billy.Filesystem) (*Repository, error) {
	if _, err := s.Reference(refs.HEAD); errors.Is(err, refs.ErrReferenceNotFound) {
		return nil, ErrRepositoryNotExists
	} else if err != nil {
		return nil, err
	}

	cfg, err := s.Config()
	if err != nil {
		return nil, err
	}
	if !cfg.Core.IsBare && wt == nil {
		return nil, ErrWorktreeNotProvided
	}

	return newRepository(s, wt), nil
}

// PlainInit creates a repository rooted at path on the OS filesystem. A
// bare repository stores objects/refs/config directly under path; a
// non-bare one stores them under path/.git and keeps path as the working
// tree.
func PlainInit(path string, bare bool) (*Repository, error) {
	var wt, dot billy.Filesystem
	if bare {
		dot = osfs.New(path)
	} else {
		wt = osfs.New(path)
		var err error
		if dot, err = wt.Chroot(".git"); err != nil {
			return nil, err
		}
	}

	s := filesystem.NewStorage(dot, nil)
	if err := s.Init(); err != nil {
		return nil, err
	}

	return Init(s, wt)
}

// PlainOpen opens a repository rooted at path, detecting whether it is
// bare (path holds objects/refs/config directly) or has a .git
// subdirectory.
func PlainOpen(path string) (*Repository, error) {
	fs := osfs.New(path)

	var wt, dot billy.Filesystem
	if _, err := fs.Stat(".git"); err != nil {
		dot = fs
	} else {
		wt = fs
		if dot, err = fs.Chroot(".git"); err != nil {
			return nil, err
		}
	}

	return Open(filesystem.NewStorage(dot, nil), wt)
}

// CloneOptions parameterizes Clone and PlainClone.
type CloneOptions struct {
	URL        string
	RemoteName string
	Depth      int
	Progress   io.Writer
	Auth       transport.AuthMethod
}

func (o *CloneOptions) remoteName() string {
	if o.RemoteName == "" {
		return "origin"
	}
	return o.RemoteName
}

// Clone initializes a repository over s, registers a remote for o.URL,
// fetches everything that remote's default refspec matches, and — when
// the fetch populated the remote's mirrored master branch — points the
// new repository's HEAD at it. There is no working-tree checkout: that's
// DirCache/worktree territory this package doesn't cover, so a non-bare
// clone ends up with an empty working tree and a populated object store.
func Clone(ctx context.Context, s Storer, wt billy.Filesystem, o *CloneOptions) (*Repository, error) {
	repo, err := Init(s, wt)
	if err != nil {
		return nil, err
	}

	name := o.remoteName()
	remote, err := repo.CreateRemote(&config.RemoteConfig{Name: name, URLs: []string{o.URL}})
	if err != nil {
		return nil, err
	}

	if err := remote.Fetch(ctx, &FetchOptions{Depth: o.Depth, Progress: o.Progress, Auth: o.Auth}); err != nil {
		return nil, err
	}

	mirror := refs.Name(fmt.Sprintf("refs/remotes/%s/master", name))
	if ref, err := repo.s.Reference(mirror); err == nil {
		if err := repo.SetReference(refs.NewHashReference("refs/heads/master", ref.Hash())); err != nil {
			return nil, err
		}
	}

	return repo, nil
}

// PlainClone is Clone rooted at an OS path, creating it via PlainInit
// first.
func PlainClone(ctx context.Context, path string, bare bool, o *CloneOptions) (*Repository, error) {
	var wt, dot billy.Filesystem
	if bare {
		dot = osfs.New(path)
	} else {
		wt = osfs.New(path)
		var err error
		if dot, err = wt.Chroot(".git"); err != nil {
			return nil, err
		}
	}

	s := filesystem.NewStorage(dot, nil)
	if err := s.Init(); err != nil {
		return nil, err
	}

	return Clone(ctx, s, wt, o)
}

// Storer returns the repository's backing object/ref/config store.
func (r *Repository) Storer() Storer { return r.s }

// Worktree returns the repository's working tree filesystem, or nil for a
// bare repository.
func (r *Repository) Worktree() billy.Filesystem { return r.wt }

// IsBare reports whether the repository has no working tree.
func (r *Repository) IsBare() bool { return r.wt == nil }

// Config returns the repository's merged configuration.
func (r *Repository) Config() (*config.Config, error) { return r.s.Config() }

// SetConfig persists cfg as the repository's local configuration.
func (r *Repository) SetConfig(cfg *config.Config) error { return r.s.SetConfig(cfg) }

// Head resolves HEAD to its direct reference (the tip of the current
// branch, or an error if unborn).
func (r *Repository) Head() (*refs.Reference, error) {
	return storer.ResolveReference(r.s, refs.HEAD)
}

// Reference looks up name, following symbolic indirection if resolved is
// true.
func (r *Repository) Reference(name refs.Name, resolved bool) (*refs.Reference, error) {
	if resolved {
		return storer.ResolveReference(r.s, name)
	}
	return r.s.Reference(name)
}

// References returns every reference in the repository.
func (r *Repository) References() (storer.ReferenceIter, error) {
	return r.s.IterReferences()
}

// SetReference installs ref unconditionally.
func (r *Repository) SetReference(ref *refs.Reference) error {
	return r.s.SetReference(ref)
}

// AppendReflog logs one entry against name, for callers that want an
// explicit record of a ref update (SetReference itself does not log
// automatically — reflog is opt-in per spec.md's "if logging is enabled
// for that ref", and this repository has no per-ref logging-enabled bit to
// consult). Returns ErrReflogNotSupported for a storer with no on-disk log,
// such as storage/memory.
func (r *Repository) AppendReflog(name refs.Name, entry *refs.ReflogEntry) error {
	rl, ok := r.s.(storer.ReflogStorer)
	if !ok {
		return ErrReflogNotSupported
	}
	return rl.AppendReflog(name, entry)
}

// Reflog returns the logged history of name, oldest first.
func (r *Repository) Reflog(name refs.Name) ([]*refs.ReflogEntry, error) {
	rl, ok := r.s.(storer.ReflogStorer)
	if !ok {
		return nil, ErrReflogNotSupported
	}
	return rl.ReadReflog(name)
}

// CreateRemote adds c as a new remote, failing if the name is already
// configured.
func (r *Repository) CreateRemote(c *config.RemoteConfig) (*Remote, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	cfg, err := r.Config()
	if err != nil {
		return nil, err
	}
	if _, ok := cfg.Remotes[c.Name]; ok {
		return nil, ErrRemoteExists
	}
	cfg.Remotes[c.Name] = c
	if err := r.SetConfig(cfg); err != nil {
		return nil, err
	}

	return &Remote{c: c, repo: r}, nil
}

// Remote looks up a configured remote by name.
func (r *Repository) Remote(name string) (*Remote, error) {
	cfg, err := r.Config()
	if err != nil {
		return nil, err
	}
	c, ok := cfg.Remotes[name]
	if !ok {
		return nil, ErrRemoteNotFound
	}
	return &Remote{c: c, repo: r}, nil
}

// Remotes returns every configured remote.
func (r *Repository) Remotes() ([]*Remote, error) {
	cfg, err := r.Config()
	if err != nil {
		return nil, err
	}
	out := make([]*Remote, 0, len(cfg.Remotes))
	for _, c := range cfg.Remotes {
		out = append(out, &Remote{c: c, repo: r})
	}
	return out, nil
}

// DeleteRemote removes a configured remote by name.
func (r *Repository) DeleteRemote(name string) error {
	cfg, err := r.Config()
	if err != nil {
		return err
	}
	if _, ok := cfg.Remotes[name]; !ok {
		return ErrRemoteNotFound
	}
	delete(cfg.Remotes, name)
	return r.SetConfig(cfg)
}

// CommitObject decodes the commit named by id.
func (r *Repository) CommitObject(id objectid.ObjectID) (*object.Commit, error) {
	o, err := r.s.EncodedObject(object.CommitType, id)
	if err != nil {
		return nil, err
	}
	return object.GetCommit(o)
}

// TreeObject decodes the tree named by id.
func (r *Repository) TreeObject(id objectid.ObjectID, format objectid.Format) (*object.Tree, error) {
	o, err := r.s.EncodedObject(object.TreeType, id)
	if err != nil {
		return nil, err
	}
	return object.GetTree(o, format)
}

// BlobObject decodes the blob named by id.
func (r *Repository) BlobObject(id objectid.ObjectID) (*object.Blob, error) {
	o, err := r.s.EncodedObject(object.BlobType, id)
	if err != nil {
		return nil, err
	}
	return object.GetBlob(o)
}

// commitGetter adapts a Storer into revwalk.CommitGetter.
type commitGetter struct{ s storer.EncodedObjectStorer }

func (g commitGetter) GetCommit(id objectid.ObjectID) (*object.Commit, error) {
	o, err := g.s.EncodedObject(object.CommitType, id)
	if err != nil {
		return nil, err
	}
	return object.GetCommit(o)
}

func (r *Repository) commitGetter() commitGetter { return commitGetter{r.s} }

// CommitGraph computes a commit-graph covering every commit reachable from
// tip, suitable for persisting to objects/info/commit-graph (see
// cmd/gitcore's commit-graph-write) or for building a
// revwalk.GenerationCache directly.
func (r *Repository) CommitGraph(tip objectid.ObjectID) (*commitgraph.Graph, error) {
	c, err := r.CommitObject(tip)
	if err != nil {
		return nil, err
	}
	return revwalk.BuildGraph(r.commitGetter(), c)
}

// storeResolved writes a packfile.Decode result into the repository's
// object store as a loose object.
func (r *Repository) storeResolved(t object.Type, content []byte, format objectid.Format) (objectid.ObjectID, error) {
	o := r.s.NewEncodedObject()
	o.SetType(t)
	w, err := o.Writer()
	if err != nil {
		return objectid.ObjectID{}, err
	}
	if _, err := w.Write(content); err != nil {
		_ = w.Close()
		return objectid.ObjectID{}, err
	}
	if err := w.Close(); err != nil {
		return objectid.ObjectID{}, err
	}
	if mo, ok := o.(*object.MemoryObject); ok {
		mo.HashObject(format)
	}
	return r.s.SetEncodedObject(o)
}

// ExternalObjectBase resolves id against the repository's own object store,
// for use as a packfile.Decode external-base callback when decoding a thin
// pack whose delta bases live outside the pack itself.
func (r *Repository) ExternalObjectBase(id objectid.ObjectID) ([]byte, object.Type, error) {
	for _, t := range []object.Type{object.CommitType, object.TreeType, object.BlobType, object.TagType} {
		o, err := r.s.EncodedObject(t, id)
		if err != nil {
			continue
		}
		b, err := readAll(o)
		if err != nil {
			return nil, 0, err
		}
		return b, t, nil
	}
	return nil, 0, object.ErrObjectNotFound
}

// StoreResolvedObject writes a packfile.Decode result into the repository's
// object store as a loose object.
func (r *Repository) StoreResolvedObject(t object.Type, content []byte, format objectid.Format) (objectid.ObjectID, error) {
	return r.storeResolved(t, content, format)
}

func fmtRef(n refs.Name, id objectid.ObjectID) string {
	return fmt.Sprintf("%s %s", id, n)
}

// PackObjects walks history backward from every tip, stopping at anything
// named in ignore, and encodes every commit/tree/blob touched along the way
// into an undeltified pack in the given format. Both Remote.Push (tips are
// the new ref values, ignore is the remote's currently advertised refs) and
// a git-upload-pack server (tips are the client's wants, ignore is its
// haves) build their outgoing pack this way.
func (r *Repository) PackObjects(tips, ignore []objectid.ObjectID, format objectid.Format) (io.Reader, error) {
	seen := make(map[objectid.ObjectID]bool)
	var sources []packfile.Source

	getter := r.commitGetter()
	for _, id := range tips {
		tip, err := getter.GetCommit(id)
		if err != nil {
			return nil, err
		}

		it := revwalk.NewPreorderIter(getter, tip, ignore)
		if err := it.ForEach(func(c *object.Commit) error {
			return r.collectCommitObjects(c, seen, &sources)
		}); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if _, err := packfile.Encode(&buf, sources, format); err != nil {
		return nil, err
	}
	return &buf, nil
}

func (r *Repository) collectCommitObjects(c *object.Commit, seen map[objectid.ObjectID]bool, sources *[]packfile.Source) error {
	if err := r.addObject(c.Hash, object.CommitType, seen, sources); err != nil {
		return err
	}
	return r.addTree(c.TreeHash, seen, sources)
}

func (r *Repository) addTree(id objectid.ObjectID, seen map[objectid.ObjectID]bool, sources *[]packfile.Source) error {
	if seen[id] {
		return nil
	}
	o, err := r.s.EncodedObject(object.TreeType, id)
	if err != nil {
		return err
	}
	content, err := readAll(o)
	if err != nil {
		return err
	}
	*sources = append(*sources, packfile.Source{Type: object.TreeType, Content: content})
	seen[id] = true

	tree, err := object.GetTree(o, id.Format())
	if err != nil {
		return err
	}
	for _, e := range tree.Entries {
		switch {
		case e.Mode.IsDir():
			if err := r.addTree(e.Hash, seen, sources); err != nil {
				return err
			}
		case e.Mode == filemode.Submodule:
			// Gitlinks name a commit in another repository; there is no
			// local object for them to send.
		default:
			if err := r.addObject(e.Hash, object.BlobType, seen, sources); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Repository) addObject(id objectid.ObjectID, t object.Type, seen map[objectid.ObjectID]bool, sources *[]packfile.Source) error {
	if seen[id] {
		return nil
	}
	o, err := r.s.EncodedObject(t, id)
	if err != nil {
		return err
	}
	content, err := readAll(o)
	if err != nil {
		return err
	}
	*sources = append(*sources, packfile.Source{Type: t, Content: content})
	seen[id] = true
	return nil
}

func readAll(o object.EncodedObject) ([]byte, error) {
	rc, err := o.Reader()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
