// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache memoizes aggregate views in memory. Concurrent requests
// for the same dataset collapse into one store read; entries expire by TTL
// and are evicted least-recently-used past the size bound. The pipeline
// invalidates a dataset's entry whenever it writes under it.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/corpus-engine/pkg/types"
)

// Loader produces a fresh aggregate view on cache miss. The store's
// CompleteView satisfies this.
type Loader func(ctx context.Context, datasetID string) (*types.AggregateView, error)

// ViewCache caches aggregate views by dataset accession.
type ViewCache struct {
	load       Loader
	ttl        time.Duration
	maxEntries int
	disabled   bool

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List
	gens    map[string]uint64

	// now is a test seam.
	now func() time.Time
}

type entry struct {
	key     string
	view    *types.AggregateView
	expires time.Time
}

// New builds a view cache over load. A disabled cache degrades to calling
// load directly; correctness never depends on caching.
func New(load Loader, cfg types.CacheConfig) *ViewCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &ViewCache{
		load:       load,
		ttl:        ttl,
		maxEntries: maxEntries,
		disabled:   cfg.Disabled,
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		gens:       make(map[string]uint64),
		now:        time.Now,
	}
}

// GetView returns the cached view for datasetID, loading it on miss or
// expiry. Concurrent misses for the same dataset share one load.
func (c *ViewCache) GetView(ctx context.Context, datasetID string) (*types.AggregateView, error) {
	if c.disabled {
		return c.load(ctx, datasetID)
	}

	if view, ok := c.get(datasetID); ok {
		return view, nil
	}

	gen := c.generation(datasetID)
	v, err, _ := c.group.Do(datasetID, func() (any, error) {
		// Re-check under the flight: a concurrent caller may have
		// populated the entry between our miss and the flight start.
		if view, ok := c.get(datasetID); ok {
			return view, nil
		}
		view, err := c.load(ctx, datasetID)
		if err != nil {
			return nil, err
		}
		c.put(datasetID, view, gen)
		return view, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.AggregateView), nil
}

// Invalidate drops the entry for datasetID and advances its invalidation
// generation, so a load already in flight cannot repopulate the entry with
// a view read before the invalidation.
func (c *ViewCache) Invalidate(datasetID string) {
	c.group.Forget(datasetID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[datasetID]++
	if el, ok := c.entries[datasetID]; ok {
		c.lru.Remove(el)
		delete(c.entries, datasetID)
	}
}

// Len returns the number of live entries.
func (c *ViewCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ViewCache) get(key string) (*types.AggregateView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	ent := el.Value.(*entry)
	if c.now().After(ent.expires) {
		c.lru.Remove(el)
		delete(c.entries, key)
		return nil, false
	}
	c.lru.MoveToFront(el)
	return ent.view, true
}

func (c *ViewCache) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key]
}

func (c *ViewCache) put(key string, view *types.AggregateView, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// The load began before the latest invalidation; its view may predate
	// the write that triggered it.
	if c.gens[key] != gen {
		return
	}

	if el, ok := c.entries[key]; ok {
		ent := el.Value.(*entry)
		ent.view = view
		ent.expires = c.now().Add(c.ttl)
		c.lru.MoveToFront(el)
		return
	}

	el := c.lru.PushFront(&entry{key: key, view: view, expires: c.now().Add(c.ttl)})
	c.entries[key] = el

	for len(c.entries) > c.maxEntries {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}
}
