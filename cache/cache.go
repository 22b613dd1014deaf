package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/VanDung-dev/arraybridge/source"
)

// DefaultSize is the number of branches kept when no size is given.
const DefaultSize = 1024

// Stats contains cache statistics.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

// BranchCache holds physical branch arrays by branch name. It is safe for
// concurrent use.
type BranchCache struct {
	lru    *lru.Cache[string, source.Physical]
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache holding at most size branches.
func New(size int) (*BranchCache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, source.Physical](size)
	if err != nil {
		return nil, err
	}
	return &BranchCache{lru: c}, nil
}

// Get returns the cached branch.
func (c *BranchCache) Get(name string) (source.Physical, bool) {
	p, ok := c.lru.Get(name)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return p, ok
}

// Add caches a branch.
func (c *BranchCache) Add(name string, p source.Physical) {
	c.lru.Add(name, p)
}

// Len returns the number of cached branches.
func (c *BranchCache) Len() int {
	return c.lru.Len()
}

// Purge empties the cache.
func (c *BranchCache) Purge() {
	c.lru.Purge()
}

// GetStats returns current cache statistics.
func (c *BranchCache) GetStats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   c.lru.Len(),
	}
}

// Through returns a fetcher that serves cached branches from c and reads
// the rest from f in a single call, caching what it reads.
func (c *BranchCache) Through(f Fetcher) Fetcher {
	return &through{cache: c, next: f}
}

// Fetcher reads physical branches by name.
type Fetcher interface {
	Arrays(names []string) (map[string]source.Physical, error)
}

type through struct {
	cache *BranchCache
	next  Fetcher
}

func (t *through) Arrays(names []string) (map[string]source.Physical, error) {
	out := make(map[string]source.Physical, len(names))
	var missing []string
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		if p, ok := t.cache.Get(name); ok {
			out[name] = p
			continue
		}
		missing = append(missing, name)
	}
	if len(missing) == 0 {
		return out, nil
	}

	read, err := t.next.Arrays(missing)
	if err != nil {
		return nil, err
	}
	for name, p := range read {
		t.cache.Add(name, p)
		out[name] = p
	}
	return out, nil
}
