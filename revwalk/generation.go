package revwalk

import (
	"github.com/golang/groupcache/lru"

	"github.com/hearthwood/gitcore/format/commitgraph"
	"github.com/hearthwood/gitcore/object"
	"github.com/hearthwood/gitcore/objectid"
)

// DefaultGenerationCacheEntries bounds a GenerationCache with no backing
// commit-graph file, keeping a long ancestry walk's memoized generation
// numbers from growing unbounded.
const DefaultGenerationCacheEntries = 8192

// GenerationCache resolves a commit's generation number (1 + the max
// generation of its parents, or 1 for a root commit), consulting a
// commit-graph file first and falling back to an LRU-memoized walk of the
// object store for anything the graph doesn't cover — a commit created
// since the graph file was last written, most commonly.
type GenerationCache struct {
	graph *commitgraph.Graph
	store CommitGetter
	cache *lru.Cache
}

// NewGenerationCache returns a cache that consults graph (may be nil) before
// falling back to walking commits out of store.
func NewGenerationCache(store CommitGetter, graph *commitgraph.Graph) *GenerationCache {
	return &GenerationCache{graph: graph, store: store, cache: lru.New(DefaultGenerationCacheEntries)}
}

// Generation returns id's generation number, computing and memoizing it if
// neither the commit-graph nor the cache already has it.
func (g *GenerationCache) Generation(id objectid.ObjectID) (uint64, error) {
	if g.graph != nil {
		if data, ok := g.graph.GetCommitData(id); ok {
			return data.Generation, nil
		}
	}

	if v, ok := g.cache.Get(id); ok {
		return v.(uint64), nil
	}

	c, err := g.store.GetCommit(id)
	if err != nil {
		return 0, err
	}

	var max uint64
	for _, parentID := range c.ParentHashes {
		gen, err := g.Generation(parentID)
		if err != nil {
			return 0, err
		}
		if gen > max {
			max = gen
		}
	}

	gen := max + 1
	g.cache.Add(id, gen)
	return gen, nil
}

// IsAncestorFast is IsAncestor with one added short-circuit: if candidate's
// generation number exceeds target's, candidate cannot be an ancestor of
// target, and the history walk is skipped entirely.
func IsAncestorFast(gc *GenerationCache, candidate, target *object.Commit) (bool, error) {
	if candidate.Hash.Equal(target.Hash) {
		return true, nil
	}

	candidateGen, err := gc.Generation(candidate.Hash)
	if err != nil {
		return false, err
	}
	targetGen, err := gc.Generation(target.Hash)
	if err != nil {
		return false, err
	}
	if candidateGen > targetGen {
		return false, nil
	}

	return IsAncestor(gc.store, candidate, target)
}

// BuildGraph computes a commit-graph covering every commit reachable from
// start, suitable for Encode-ing to a commit-graph file.
func BuildGraph(store CommitGetter, start *object.Commit) (*commitgraph.Graph, error) {
	b := commitgraph.NewBuilder()
	gens := make(map[objectid.ObjectID]uint64)

	var visit func(c *object.Commit) (uint64, error)
	visited := make(map[objectid.ObjectID]bool)
	visit = func(c *object.Commit) (uint64, error) {
		if gen, ok := gens[c.Hash]; ok {
			return gen, nil
		}

		var max uint64
		for _, parentID := range c.ParentHashes {
			parent, err := store.GetCommit(parentID)
			if err != nil {
				return 0, err
			}
			gen, err := visit(parent)
			if err != nil {
				return 0, err
			}
			if gen > max {
				max = gen
			}
		}

		gen := max + 1
		gens[c.Hash] = gen
		if !visited[c.Hash] {
			visited[c.Hash] = true
			b.Add(c.Hash, &commitgraph.CommitData{
				TreeHash:      c.TreeHash,
				ParentHashes:  c.ParentHashes,
				Generation:    gen,
				CommitterTime: c.Committer.When.When,
			})
		}
		return gen, nil
	}

	if _, err := visit(start); err != nil {
		return nil, err
	}
	return b.Build(), nil
}
