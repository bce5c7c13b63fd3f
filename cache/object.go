// Package cache provides size-bounded, concurrency-safe LRU caches for
// encoded objects and raw byte buffers, used to avoid re-reading packfiles
// and loose objects that were already decoded recently.
package cache

import (
	"sync"

	"github.com/golang/groupcache/lru"

	"github.com/hearthwood/gitcore/object"
	"github.com/hearthwood/gitcore/objectid"
)

// FileSize represents object or buffer sizes in bytes.
type FileSize int64

const (
	Byte FileSize = 1 << (iota * 10)
	KiByte
	MiByte
	GiByte
)

// DefaultMaxSize is used by NewObjectLRUDefault and NewBufferLRUDefault.
const DefaultMaxSize = 96 * MiByte

// shardCount splits the key space across independent lru.Cache instances so
// concurrent Put/Get calls for unrelated objects don't serialize on one
// mutex. Picked as a small power of two; raising it trades memory-accounting
// precision (MaxSize is split evenly per shard) for less lock contention.
const shardCount = 16

// Object caches EncodedObjects keyed by their hash, evicting least recently
// used entries once MaxSize is exceeded.
type Object interface {
	Put(o object.EncodedObject)
	Get(id objectid.ObjectID) (object.EncodedObject, bool)
	Clear()
}

// ObjectLRU is an Object cache backed by groupcache's lru.Cache, striped
// across shardCount independent shards (each with its own mutex and its own
// byte budget) to keep unrelated lookups from contending on a single lock.
// Entries larger than a single shard's budget on their own are never stored.
type ObjectLRU struct {
	MaxSize FileSize

	shards [shardCount]*objectShard
}

type objectShard struct {
	mu         sync.Mutex
	cache      *lru.Cache
	maxSize    FileSize
	actualSize FileSize
}

type objectValue struct {
	obj  object.EncodedObject
	size FileSize
}

// NewObjectLRU returns an ObjectLRU bounded to maxSize total bytes, computed
// from each object's Size() at insertion time.
func NewObjectLRU(maxSize FileSize) *ObjectLRU {
	c := &ObjectLRU{MaxSize: maxSize}
	perShard := maxSize / shardCount
	if perShard < 1 {
		perShard = 1
	}
	for i := range c.shards {
		s := &objectShard{cache: lru.New(0), maxSize: perShard}
		s.cache.OnEvicted = func(key lru.Key, value interface{}) {
			s.actualSize -= value.(*objectValue).size
		}
		c.shards[i] = s
	}
	return c
}

// NewObjectLRUDefault returns an ObjectLRU bounded to DefaultMaxSize.
func NewObjectLRUDefault() *ObjectLRU {
	return NewObjectLRU(DefaultMaxSize)
}

func (c *ObjectLRU) shardFor(id objectid.ObjectID) *objectShard {
	raw := id.Bytes()
	return c.shards[int(raw[len(raw)-1])%shardCount]
}

func (c *ObjectLRU) Put(o object.EncodedObject) {
	size := FileSize(o.Size())
	s := c.shardFor(o.Hash())

	s.mu.Lock()
	defer s.mu.Unlock()

	// Remove runs OnEvicted, which takes the old entry's size off actualSize.
	s.cache.Remove(o.Hash())

	if size > s.maxSize {
		return
	}

	s.cache.Add(o.Hash(), &objectValue{obj: o, size: size})
	s.actualSize += size

	for s.actualSize > s.maxSize {
		s.cache.RemoveOldest()
	}
}

func (c *ObjectLRU) Get(id objectid.ObjectID) (object.EncodedObject, bool) {
	s := c.shardFor(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*objectValue).obj, true
}

func (c *ObjectLRU) Clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.cache.Clear()
		s.actualSize = 0
		s.mu.Unlock()
	}
}

// Buffer caches raw byte slices keyed by an arbitrary int64 (typically a
// packfile offset), used by the packfile delta resolver to avoid
// re-inflating the same base object repeatedly.
type Buffer interface {
	Put(key int64, buf []byte)
	Get(key int64) ([]byte, bool)
	Clear()
}

// BufferLRU is a Buffer cache with the same striped eviction policy as
// ObjectLRU.
type BufferLRU struct {
	MaxSize FileSize

	shards [shardCount]*bufferShard
}

type bufferShard struct {
	mu         sync.Mutex
	cache      *lru.Cache
	maxSize    FileSize
	actualSize FileSize
}

type bufferValue struct {
	buf  []byte
	size FileSize
}

func NewBufferLRU(maxSize FileSize) *BufferLRU {
	c := &BufferLRU{MaxSize: maxSize}
	perShard := maxSize / shardCount
	if perShard < 1 {
		perShard = 1
	}
	for i := range c.shards {
		s := &bufferShard{cache: lru.New(0), maxSize: perShard}
		s.cache.OnEvicted = func(key lru.Key, value interface{}) {
			s.actualSize -= value.(*bufferValue).size
		}
		c.shards[i] = s
	}
	return c
}

func NewBufferLRUDefault() *BufferLRU {
	return NewBufferLRU(DefaultMaxSize)
}

func (c *BufferLRU) shardFor(key int64) *bufferShard {
	idx := key % shardCount
	if idx < 0 {
		idx = -idx
	}
	return c.shards[idx]
}

func (c *BufferLRU) Put(key int64, buf []byte) {
	size := FileSize(len(buf))
	s := c.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Remove runs OnEvicted, which takes the old entry's size off actualSize.
	s.cache.Remove(key)

	if size > s.maxSize {
		return
	}

	s.cache.Add(key, &bufferValue{buf: buf, size: size})
	s.actualSize += size

	for s.actualSize > s.maxSize {
		s.cache.RemoveOldest()
	}
}

func (c *BufferLRU) Get(key int64) ([]byte, bool) {
	s := c.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*bufferValue).buf, true
}

func (c *BufferLRU) Clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.cache.Clear()
		s.actualSize = 0
		s.mu.Unlock()
	}
}
