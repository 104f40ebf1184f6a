package pagecache

import "sync"

var (
	sharedMu        sync.Mutex
	sharedInstances = map[int]*Cache{}
)

// Shared returns the process-wide cache instance for the given page
// size, creating it on first use. Every log opened with CacheShared and
// the same page size shares one instance, the same way a single JVM
// process shares one page cache across every open environment.
func Shared(cfg Config) *Cache {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if c, ok := sharedInstances[cfg.PageSize]; ok {
		return c
	}
	c := New(cfg)
	sharedInstances[cfg.PageSize] = c
	return c
}

// resetSharedForTest clears every shared instance. Only called from
// this package's own tests, which would otherwise observe state left
// behind by earlier tests in the same process.
func resetSharedForTest() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	sharedInstances = map[int]*Cache{}
}
