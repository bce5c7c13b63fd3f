// Package dircache implements the binary staging-area ("index") file: the
// flat list of staged entries plus the cache-tree and other optional
// extensions git writes alongside it to speed up status and commit.
package dircache

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hearthwood/gitcore/filemode"
	"github.com/hearthwood/gitcore/objectid"
)

var (
	// ErrUnsupportedVersion is returned by Decode for an index format
	// version this package doesn't know how to read.
	ErrUnsupportedVersion = errors.New("dircache: unsupported version")
	// ErrEntryNotFound is returned by Index.Entry when no entry matches.
	ErrEntryNotFound = errors.New("dircache: entry not found")

	indexSignature                    = [4]byte{'D', 'I', 'R', 'C'}
	treeExtSignature                  = [4]byte{'T', 'R', 'E', 'E'}
	resolveUndoExtSignature           = [4]byte{'R', 'E', 'U', 'C'}
	linkExtSignature                  = [4]byte{'l', 'i', 'n', 'k'}
	untrackedCacheExtSignature        = [4]byte{'U', 'N', 'T', 'R'}
	endOfIndexEntryExtSignature       = [4]byte{'E', 'O', 'I', 'E'}
	fsMonitorExtSignature             = [4]byte{'F', 'S', 'M', 'N'}
	indexEntryOffsetTableExtSignature = [4]byte{'I', 'E', 'O', 'T'}
)

// DecodeVersionSupported bounds the index format versions this package
// reads; versions 2 through 4 cover every index git itself still writes.
var DecodeVersionSupported = struct{ Min, Max uint32 }{Min: 2, Max: 4}

// Stage identifies which side of an unresolved merge an entry belongs to.
type Stage int

const (
	Merged       Stage = 1
	AncestorMode Stage = 1
	OurMode      Stage = 2
	TheirMode    Stage = 3
)

// Index is the staging area: what would be committed if "commit" ran now,
// plus whatever cached derived state git chose to persist alongside it.
type Index struct {
	Version               uint32
	Entries               []*Entry
	Cache                 *Tree
	ResolveUndo           *ResolveUndo
	EndOfIndexEntry       *EndOfIndexEntry
	Link                  *Link
	UntrackedCache        *UntrackedCache
	FSMonitor             *FSMonitor
	IndexEntryOffsetTable *IndexEntryOffsetTable
}

// Add appends a new entry for path and returns it for the caller to fill
// in; it does not check for an existing entry at the same path.
func (i *Index) Add(path string) *Entry {
	e := &Entry{Name: filepath.ToSlash(path)}
	i.Entries = append(i.Entries, e)
	return e
}

// Entry returns the entry matching path, or ErrEntryNotFound.
func (i *Index) Entry(path string) (*Entry, error) {
	path = filepath.ToSlash(path)
	for _, e := range i.Entries {
		if e.Name == path {
			return e, nil
		}
	}
	return nil, ErrEntryNotFound
}

// Remove deletes and returns the entry matching path.
func (i *Index) Remove(path string) (*Entry, error) {
	path = filepath.ToSlash(path)
	for idx, e := range i.Entries {
		if e.Name == path {
			i.Entries = append(i.Entries[:idx], i.Entries[idx+1:]...)
			return e, nil
		}
	}
	return nil, ErrEntryNotFound
}

func (i *Index) String() string {
	buf := &bytes.Buffer{}
	for _, e := range i.Entries {
		buf.WriteString(e.String())
	}
	return buf.String()
}

// Entry is a single staged path at a single merge stage; an unresolved
// conflict produces one Entry per stage for the same Name.
type Entry struct {
	Hash         objectid.ObjectID
	Name         string
	CreatedAt    time.Time
	ModifiedAt   time.Time
	Dev, Inode   uint32
	Mode         filemode.FileMode
	UID, GID     uint32
	Size         uint32
	Stage        Stage
	SkipWorktree bool
	IntentToAdd  bool
}

func (e Entry) String() string {
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "%s %s %d\t%s\n", e.Mode, e.Hash, e.Stage, e.Name)
	fmt.Fprintf(buf, "  ctime: %d:%d\n", e.CreatedAt.Unix(), e.CreatedAt.Nanosecond())
	fmt.Fprintf(buf, "  mtime: %d:%d\n", e.ModifiedAt.Unix(), e.ModifiedAt.Nanosecond())
	fmt.Fprintf(buf, "  dev: %d\tino: %d\n", e.Dev, e.Inode)
	fmt.Fprintf(buf, "  uid: %d\tgid: %d\n", e.UID, e.GID)
	fmt.Fprintf(buf, "  size: %d\n", e.Size)
	return buf.String()
}

// Tree is the "cache tree" extension: precomputed subtree ids so that
// writing a commit doesn't need to rehash directories with no staged
// changes underneath them.
type Tree struct {
	Entries []TreeEntry
}

// TreeEntry covers Entries consecutive index entries, representing one
// directory level of the cache tree. A negative EntryCount marks the
// subtree invalidated (its Hash must be recomputed).
type TreeEntry struct {
	Path        string
	EntryCount  int
	SubtreeCount int
	Hash        objectid.ObjectID
}

// ResolveUndo records higher-stage entries removed when a conflict was
// resolved, so "checkout-index --stage" can still reach them.
type ResolveUndo struct {
	Entries []ResolveUndoEntry
}

type ResolveUndoEntry struct {
	Path   string
	Stages map[Stage]objectid.ObjectID
}

// EndOfIndexEntry locates the start of the extension section without
// requiring a full scan of the (possibly large) entry list.
type EndOfIndexEntry struct {
	Offset uint32
	Hash   objectid.ObjectID
}

// Link is the split-index extension: an overlay of add/delete/replace
// bitmaps on top of an immutable shared base index.
type Link struct {
	ObjectID      objectid.ObjectID
	DeleteBitmap  []byte
	ReplaceBitmap []byte
}

// UntrackedCache caches which paths in each tracked directory are
// untracked, avoiding a full directory walk on every status.
type UntrackedCache struct {
	Environments      []string
	InfoExcludeStats  UntrackedCacheStats
	ExcludesFileStats UntrackedCacheStats
	DirFlags          uint32
	InfoExcludeHash   objectid.ObjectID
	ExcludesFileHash  objectid.ObjectID
	PerDirIgnoreFile  string
	Entries           []UntrackedCacheEntry
	ValidBitmap       []byte
	CheckOnlyBitmap   []byte
	MetadataBitmap    []byte
	Stats             []UntrackedCacheStats
	Hashes            []objectid.ObjectID
}

type UntrackedCacheEntry struct {
	Blocks  int64
	Name    string
	Entries []string
}

type UntrackedCacheStats struct {
	CreatedAt  time.Time
	ModifiedAt time.Time
	Dev, Inode uint32
	UID, GID   uint32
	Size       uint32
}

// FSMonitor records the last point in the filesystem-watcher's event
// stream that was reconciled against the index.
type FSMonitor struct {
	Version     uint32
	Since       time.Time
	Token       string
	DirtyBitmap []byte
}

// IndexEntryOffsetTable lets a reader split the entry list into
// independently parseable blocks, for loading a large index on several
// goroutines at once.
type IndexEntryOffsetTable struct {
	Version uint32
	Entries []IndexEntryOffsetEntry
}

type IndexEntryOffsetEntry struct {
	Offset uint32
	Count  uint32
}
