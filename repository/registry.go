package repository

import (
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Handle is the RepositoryCache's opaque identity for one registered
// Repository, stable for the lifetime of the process and suitable as a
// correlation id in log lines or a server session.
type Handle struct {
	ID   uuid.UUID
	Path string
}

type cacheEntry struct {
	handle Handle
	repo   *Repository
	refs   int
}

// Cache is a process-wide registry of open Repository instances keyed by
// canonical filesystem path, so repeated opens of the same repository (a
// server handling concurrent sessions against one path, say) share a
// single Repository and its object/window caches instead of each mapping
// the same packs again.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

// NewCache returns an empty registry.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*cacheEntry)}
}

// DefaultCache is the package-level registry the git server opens
// repositories through; PlainOpen and PlainInit do not register in it.
var DefaultCache = NewCache()

// Open registers path (after canonicalizing it) and returns its Repository,
// opening it via open the first time and incrementing a reference count on
// every subsequent call. Close must be called once per Open to release it.
func (c *Cache) Open(path string, open func(string) (*Repository, error)) (*Repository, Handle, error) {
	canon, err := filepath.Abs(path)
	if err != nil {
		return nil, Handle{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[canon]; ok {
		e.refs++
		return e.repo, e.handle, nil
	}

	repo, err := open(canon)
	if err != nil {
		return nil, Handle{}, err
	}

	h := Handle{ID: uuid.New(), Path: canon}
	c.entries[canon] = &cacheEntry{handle: h, repo: repo, refs: 1}
	return repo, h, nil
}

// Close decrements path's reference count, unregistering it once it drops
// to zero. Closing a path that isn't registered is a no-op.
func (c *Cache) Close(path string) {
	canon, err := filepath.Abs(path)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[canon]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(c.entries, canon)
	}
}

// Lookup returns the Repository currently registered at path, if any.
func (c *Cache) Lookup(path string) (*Repository, Handle, bool) {
	canon, err := filepath.Abs(path)
	if err != nil {
		return nil, Handle{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[canon]
	if !ok {
		return nil, Handle{}, false
	}
	return e.repo, e.handle, true
}

// Len reports how many distinct paths are currently registered.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
