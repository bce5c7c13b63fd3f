package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/hearthwood/gitcore/object"
	"github.com/hearthwood/gitcore/objectid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// idInShard builds a deterministic ObjectID whose shardFor bucket is exactly
// shard (0..shardCount-1), so size-budget tests can reason about a single
// shard's eviction behavior without the other 15 interfering.
func idInShard(t *testing.T, shard byte, distinguisher byte) objectid.ObjectID {
	t.Helper()
	raw := make([]byte, objectid.SHA1Size)
	raw[0] = distinguisher
	raw[len(raw)-1] = shard
	id, err := objectid.FromBytes(raw)
	require.NoError(t, err)
	return id
}

func blobOfSize(t *testing.T, id objectid.ObjectID, size int64) object.EncodedObject {
	t.Helper()
	o := &object.MemoryObject{}
	o.SetType(object.BlobType)
	o.SetSize(size)
	return &fixedHashObject{EncodedObject: o, hash: id}
}

// fixedHashObject overrides Hash() so tests can pin an object to a shard
// without needing its content to actually hash to that id.
type fixedHashObject struct {
	object.EncodedObject
	hash objectid.ObjectID
}

func (f *fixedHashObject) Hash() objectid.ObjectID { return f.hash }

func TestObjectLRUPutSameObject(t *testing.T) {
	id := idInShard(t, 0, 1)
	o := blobOfSize(t, id, 1)

	c := NewObjectLRU(2 * shardCount * Byte)
	c.Put(o)
	c.Put(o)

	got, ok := c.Get(id)
	assert.True(t, ok)
	assert.Equal(t, o, got)
}

func TestObjectLRUPutBigObjectRejected(t *testing.T) {
	id := idInShard(t, 0, 1)
	big := blobOfSize(t, id, 3*shardCount)

	c := NewObjectLRU(2 * shardCount * Byte)
	c.Put(big)

	_, ok := c.Get(id)
	assert.False(t, ok)
}

func TestObjectLRUEvictsWithinShard(t *testing.T) {
	// A single shard budgeted to 2 bytes: a (1B), c (1B), d (1B) in order
	// should evict a once d is added.
	a := blobOfSize(t, idInShard(t, 0, 1), 1)
	c := blobOfSize(t, idInShard(t, 0, 2), 1)
	d := blobOfSize(t, idInShard(t, 0, 3), 1)

	lru := NewObjectLRU(2 * shardCount * Byte)
	lru.Put(a)
	lru.Put(c)
	lru.Put(d)

	_, ok := lru.Get(a.Hash())
	assert.False(t, ok, "oldest entry should have been evicted")

	got, ok := lru.Get(c.Hash())
	assert.True(t, ok)
	assert.Equal(t, c, got)

	got, ok = lru.Get(d.Hash())
	assert.True(t, ok)
	assert.Equal(t, d, got)
}

func TestObjectLRUEvictMultiple(t *testing.T) {
	c := blobOfSize(t, idInShard(t, 0, 1), 1)
	d := blobOfSize(t, idInShard(t, 0, 2), 1)
	e := blobOfSize(t, idInShard(t, 0, 3), 2) // needs both slots

	lru := NewObjectLRU(2 * shardCount * Byte)
	lru.Put(c)
	lru.Put(d)
	lru.Put(e)

	_, ok := lru.Get(c.Hash())
	assert.False(t, ok)
	_, ok = lru.Get(d.Hash())
	assert.False(t, ok)

	got, ok := lru.Get(e.Hash())
	assert.True(t, ok)
	assert.Equal(t, e, got)
}

func TestObjectLRUUpdateWithDifferentSize(t *testing.T) {
	id := idInShard(t, 0, 1)

	lru := NewObjectLRU(7 * shardCount * Byte)
	lru.Put(blobOfSize(t, id, 1))
	lru.Put(blobOfSize(t, id, 3))
	lru.Put(blobOfSize(t, id, 5))
	lru.Put(blobOfSize(t, id, 7))

	got, ok := lru.Get(id)
	require.True(t, ok)
	assert.EqualValues(t, 7, got.Size())
	assert.Equal(t, FileSize(7), lru.shards[0].actualSize)
}

func TestObjectLRUClear(t *testing.T) {
	c := NewObjectLRUDefault()
	id := idInShard(t, 0, 1)
	c.Put(blobOfSize(t, id, 1))
	c.Clear()

	_, ok := c.Get(id)
	assert.False(t, ok)
}

func TestObjectLRUDefaultMaxSize(t *testing.T) {
	c := NewObjectLRUDefault()
	assert.Equal(t, DefaultMaxSize, c.MaxSize)
}

func TestObjectLRUConcurrentAccess(t *testing.T) {
	c := NewObjectLRUDefault()

	var wg sync.WaitGroup
	for i := 0; i < 500; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			id := idInShard(t, byte(i%shardCount), byte(i))
			c.Put(blobOfSize(t, id, int64(i%64)))
		}(i)
		go func(i int) {
			defer wg.Done()
			if i%30 == 0 {
				c.Clear()
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			c.Get(idInShard(t, byte(i%shardCount), byte(i)))
		}(i)
	}
	wg.Wait()
}

func TestBufferLRUPutGetClear(t *testing.T) {
	c := NewBufferLRU(2 * shardCount * Byte)
	c.Put(1, []byte("a"))
	c.Put(1, []byte("a"))

	got, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, []byte("a"), got)

	c.Clear()
	_, ok = c.Get(1)
	assert.False(t, ok)
}

func TestBufferLRUBigBufferRejected(t *testing.T) {
	c := NewBufferLRU(2 * shardCount * Byte)
	c.Put(1, make([]byte, 3*shardCount))

	_, ok := c.Get(1)
	assert.False(t, ok)
}

func TestBufferLRUDefaultMaxSize(t *testing.T) {
	c := NewBufferLRUDefault()
	assert.Equal(t, DefaultMaxSize, c.MaxSize)
}

func TestBufferLRUConcurrentAccess(t *testing.T) {
	c := NewBufferLRUDefault()

	var wg sync.WaitGroup
	for i := 0; i < 500; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			c.Put(int64(i), []byte(fmt.Sprint(i)))
		}(i)
		go func(i int) {
			defer wg.Done()
			if i%30 == 0 {
				c.Clear()
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			c.Get(int64(i))
		}(i)
	}
	wg.Wait()
}
