package pagecache

import (
	"context"
	"testing"
	"time"

	"github.com/strata-db/strata/pkg/store"
)

func TestGetPutMiss(t *testing.T) {
	c := New(Config{PageSize: 256, ByteBudget: 4096})
	if got := c.Get(0, 0); got != nil {
		t.Fatalf("Get on empty cache = %v, want nil", got)
	}
	page := make(store.Page, 256)
	c.Put(0, 0, page)
	if got := c.Get(0, 0); got == nil {
		t.Fatal("Get after Put missed")
	}
}

func TestEvictionRespectsBudget(t *testing.T) {
	c := New(Config{PageSize: 256, ByteBudget: 256 * 3})
	for i := 0; i < 10; i++ {
		c.Put(0, store.Address(i*256), make(store.Page, 256))
	}
	if c.Len() > 3 {
		t.Fatalf("cache holds %d entries, want at most 3 under a 3-page budget", c.Len())
	}
	// the most recently inserted entries should have survived.
	if got := c.Get(0, store.Address(9*256)); got == nil {
		t.Fatal("expected the most recent entry to still be cached")
	}
}

func TestSoftReferencesEvictedFirst(t *testing.T) {
	c := New(Config{PageSize: 256, ByteBudget: 256 * 2, SoftReferences: true})
	c.Put(0, 0, make(store.Page, 256))
	c.softReference = false
	c.Put(0, 256, make(store.Page, 256))
	c.softReference = true
	c.Put(0, 512, make(store.Page, 256))

	if c.Get(0, 0) != nil {
		t.Fatal("soft-reference entry should have been evicted ahead of the hard entry")
	}
	if c.Get(0, 256) == nil {
		t.Fatal("hard entry should have survived")
	}
}

func TestRemoveSegment(t *testing.T) {
	c := New(Config{PageSize: 256, ByteBudget: 4096})
	c.Put(100, 0, make(store.Page, 256))
	c.Put(100, 256, make(store.Page, 256))
	c.Put(200, 0, make(store.Page, 256))

	c.RemoveSegment(100)
	if c.Get(100, 0) != nil || c.Get(100, 256) != nil {
		t.Fatal("RemoveSegment left entries behind")
	}
	if c.Get(200, 0) == nil {
		t.Fatal("RemoveSegment removed an unrelated segment's entry")
	}
}

func TestSharedReturnsSameInstancePerPageSize(t *testing.T) {
	resetSharedForTest()
	a := Shared(Config{PageSize: 512, ByteBudget: 1024})
	b := Shared(Config{PageSize: 512, ByteBudget: 1024})
	if a != b {
		t.Fatal("Shared returned distinct instances for the same page size")
	}
	c := Shared(Config{PageSize: 1024, ByteBudget: 1024})
	if a == c {
		t.Fatal("Shared returned the same instance for different page sizes")
	}
}

func TestWriteSemaphoreBounds(t *testing.T) {
	s := NewWriteSemaphore(2)
	ctx := context.Background()
	if err := s.Acquire(ctx); err != nil {
		t.Fatalf("Acquire 1: %v", err)
	}
	if err := s.Acquire(ctx); err != nil {
		t.Fatalf("Acquire 2: %v", err)
	}
	if s.Available() != 0 {
		t.Fatalf("Available = %d, want 0", s.Available())
	}

	ctx2, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := s.Acquire(ctx2); err == nil {
		t.Fatal("expected Acquire to block until context deadline with no free permits")
	}

	s.Release()
	if s.Available() != 1 {
		t.Fatalf("Available after Release = %d, want 1", s.Available())
	}
}
