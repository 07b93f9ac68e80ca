package reconcile

import (
	"errors"

	"moodle-sync/core/provider"
)

// Reference kinds cached by the resolvers.
const (
	RefCategory = "category"
	RefCourse   = "course"
	RefUser     = "user"
	RefRole     = "role"
)

type cacheEntry struct {
	id      int64
	missing bool
}

// Cache memoizes reference lookups for the duration of one sync run.
// Misses are cached too, so an absent user is looked up once per run.
// It is not safe for concurrent use and is never invalidated mid-run.
type Cache struct {
	entries map[string]cacheEntry
	hits    int
	misses  int
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
	}
}

func cacheKey(kind, key string) string {
	return kind + "|" + key
}

// Resolve returns the cached id for kind/key or calls load and caches the result.
// A load that fails with provider.ErrNotFound is cached as a miss; other errors are not cached.
func (c *Cache) Resolve(kind, key string, load func() (int64, error)) (int64, error) {
	k := cacheKey(kind, key)
	if e, ok := c.entries[k]; ok {
		c.hits++
		if e.missing {
			return 0, provider.NotFound(kind, key)
		}
		return e.id, nil
	}

	c.misses++
	id, err := load()
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			c.entries[k] = cacheEntry{missing: true}
		}
		return 0, err
	}
	c.entries[k] = cacheEntry{id: id}
	return id, nil
}

// Put stores a known id, replacing any cached miss.
func (c *Cache) Put(kind, key string, id int64) {
	c.entries[cacheKey(kind, key)] = cacheEntry{id: id}
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() (hits, misses int) {
	return c.hits, c.misses
}
