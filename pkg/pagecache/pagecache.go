// Package pagecache implements the page cache collaborator used by a
// strata log to avoid re-reading and re-verifying pages already seen:
// a byte-budgeted, least-recently-used cache keyed by (segment, page)
// address, available either as a process-wide shared instance or as
// one private to a single log.
package pagecache

import (
	"container/list"
	"sync"

	"github.com/strata-db/strata/pkg/store"
)

// entry is one cached page plus its bookkeeping.
type entry struct {
	segment, page store.Address
	data          store.Page
	soft          bool // evicted before hard entries once the budget is exceeded
	elem          *list.Element
}

type key struct {
	segment, page store.Address
}

// Cache is a byte-budgeted page cache with a single recency list and no
// generations: every hit moves an entry to the tail of the list,
// so eviction always takes from the front, the entries untouched
// longest. Soft-reference entries (see Config.SoftReferences) are
// always evicted ahead of hard ones, approximating how a JVM soft
// reference would be reclaimed under memory pressure before anything
// else.
type Cache struct {
	pageSize      int
	byteBudget    int64
	nonBlocking   bool
	softReference bool

	mu        sync.Mutex
	entries   map[key]*entry
	order     *list.List // most-recently-touched at the back
	bytesUsed int64
}

// Config bundles the knobs a Cache is constructed with, mirroring the
// relevant fields of config.Config so callers don't need to import the
// config package just to build a cache.
type Config struct {
	PageSize       int
	ByteBudget     int64
	NonBlocking    bool
	SoftReferences bool
}

// New constructs a standalone Cache, used directly for a per-log cache
// and internally for each process-wide shared cache instance.
func New(cfg Config) *Cache {
	return &Cache{
		pageSize:      cfg.PageSize,
		byteBudget:    cfg.ByteBudget,
		nonBlocking:   cfg.NonBlocking,
		softReference: cfg.SoftReferences,
		entries:       make(map[key]*entry),
		order:         list.New(),
	}
}

// Get returns the cached page for (segment, page), or nil on a miss.
func (c *Cache) Get(segment, page store.Address) store.Page {
	if c.nonBlocking {
		if !c.mu.TryLock() {
			return nil
		}
	} else {
		c.mu.Lock()
	}
	defer c.mu.Unlock()

	e, ok := c.entries[key{segment, page}]
	if !ok {
		return nil
	}
	c.order.MoveToBack(e.elem)
	return e.data
}

// Put stores a page, evicting older entries if the byte budget would
// otherwise be exceeded. Under non-blocking mode, a Put that cannot
// immediately acquire the lock is silently dropped: a cache miss is
// always safe, just slower.
func (c *Cache) Put(segment, page store.Address, data store.Page) {
	if c.nonBlocking {
		if !c.mu.TryLock() {
			return
		}
	} else {
		c.mu.Lock()
	}
	defer c.mu.Unlock()

	k := key{segment, page}
	if existing, ok := c.entries[k]; ok {
		c.bytesUsed -= int64(len(existing.data))
		c.order.Remove(existing.elem)
		delete(c.entries, k)
	}

	e := &entry{segment: segment, page: page, data: data, soft: c.softReference}
	e.elem = c.order.PushBack(e)
	c.entries[k] = e
	c.bytesUsed += int64(len(data))

	c.evictLocked()
}

// RemoveSegment drops every cached page belonging to segment, called
// once its file has been deleted by the reclaimer.
func (c *Cache) RemoveSegment(segment store.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.entries {
		if k.segment != segment {
			continue
		}
		c.bytesUsed -= int64(len(e.data))
		c.order.Remove(e.elem)
		delete(c.entries, k)
	}
}

// evictLocked drops entries, oldest first, until usage is back within
// budget. Soft-reference entries are evicted before hard ones
// regardless of recency, approximating the way a JVM soft reference
// would be reclaimed under memory pressure before anything else.
func (c *Cache) evictLocked() {
	if c.byteBudget <= 0 {
		return
	}
	for c.bytesUsed > c.byteBudget {
		victim := c.pickVictimLocked()
		if victim == nil {
			return
		}
		c.bytesUsed -= int64(len(victim.data))
		c.order.Remove(victim.elem)
		delete(c.entries, key{victim.segment, victim.page})
	}
}

func (c *Cache) pickVictimLocked() *entry {
	for el := c.order.Front(); el != nil; el = el.Next() {
		if e := el.Value.(*entry); e.soft {
			return e
		}
	}
	if el := c.order.Front(); el != nil {
		return el.Value.(*entry)
	}
	return nil
}

// Len reports the number of cached pages, for tests and diagnostics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
