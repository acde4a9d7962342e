// Package storage implements the three-tier storage engine (§4.5): an
// in-memory LRU Hot cache, a filesystem-backed Warm store, and a
// filesystem-backed Cold archive, composed by TieredStorage with read-path
// promotion and eviction-driven demotion.
package storage

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// HotCache is the in-memory bounded-size tier. Eviction is handled entirely
// by the underlying LRU; TieredStorage supplies the onEvict callback that
// demotes an evicted entry into Warm.
type HotCache struct {
	cache *lru.Cache[string, []byte]
}

// NewHotCache builds a Hot cache holding at most capacity entries. onEvict is
// invoked synchronously, within the Add/Remove call that triggered the
// eviction, with the evicted key and value.
func NewHotCache(capacity int, onEvict func(key string, value []byte)) (*HotCache, error) {
	cache, err := lru.NewWithEvict(capacity, onEvict)
	if err != nil {
		return nil, err
	}
	return &HotCache{cache: cache}, nil
}

func (h *HotCache) Get(key string) ([]byte, bool) { return h.cache.Get(key) }
func (h *HotCache) Put(key string, value []byte)  { h.cache.Add(key, value) }
func (h *HotCache) Remove(key string)             { h.cache.Remove(key) }
func (h *HotCache) Contains(key string) bool      { return h.cache.Contains(key) }
func (h *HotCache) Len() int                      { return h.cache.Len() }
