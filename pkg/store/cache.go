package store

// PageCache abstracts the page cache collaborator (pkg/pagecache) away
// from the log: the log only needs to fetch and stash fully-read pages
// keyed by their file and page address, and to drop pages belonging to
// a segment that is being removed.
type PageCache interface {
	// Get returns a cached page for (segmentAddress, pageAddress), or
	// nil if absent.
	Get(segmentAddress, pageAddress Address) Page

	// Put stores a freshly-read or freshly-written page.
	Put(segmentAddress, pageAddress Address, p Page)

	// RemoveSegment drops every cached page belonging to the segment
	// starting at segmentAddress.
	RemoveSegment(segmentAddress Address)
}

// noCache is the zero-value PageCache: every Get misses, every Put and
// RemoveSegment is a no-op. Used when a log is opened without a cache
// configured, and in tests that exercise the reader path directly.
type noCache struct{}

func (noCache) Get(Address, Address) Page  { return nil }
func (noCache) Put(Address, Address, Page) {}
func (noCache) RemoveSegment(Address)      {}
