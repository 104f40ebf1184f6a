package pagecache

import "context"

// WriteSemaphore bounds the number of pages a writer may have
// in-flight (written but not yet synced) at once, so a burst of writes
// cannot outrun the page cache's ability to hold their dirty pages. It
// is a plain counting semaphore over a buffered channel holding as many
// permits as the caller passes to NewWriteSemaphore (at least one).
type WriteSemaphore struct {
	permits chan struct{}
}

// NewWriteSemaphore creates a semaphore with the given number of
// permits.
func NewWriteSemaphore(permits int) *WriteSemaphore {
	if permits <= 0 {
		permits = 1
	}
	return &WriteSemaphore{permits: make(chan struct{}, permits)}
}

// Acquire blocks until a permit is available or ctx is done.
func (s *WriteSemaphore) Acquire(ctx context.Context) error {
	select {
	case s.permits <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a permit to the pool.
func (s *WriteSemaphore) Release() {
	select {
	case <-s.permits:
	default:
		panic("pagecache: Release called without a matching Acquire")
	}
}

// Available reports the number of free permits, for tests.
func (s *WriteSemaphore) Available() int {
	return cap(s.permits) - len(s.permits)
}
