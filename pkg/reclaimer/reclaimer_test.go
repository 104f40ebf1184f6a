package reclaimer

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/strata-db/strata/pkg/config"
	"github.com/strata-db/strata/pkg/store"
	"github.com/strata-db/strata/pkg/tree"
	"github.com/strata-db/strata/pkg/tree/btree"
)

func testLog(t *testing.T) *store.Log {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewDefaultConfig(dir)
	cfg.PageSize = config.MinPageSize
	cfg.FileLengthBound = int64(config.MinPageSize) * 2
	cfg.SyncDurable = false
	cfg.SmallRecordShift = 3
	l, err := store.Open(dir, cfg, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

var btreeRecordTypes = []store.RecordType{
	store.RecordTypeTreeLeaf,
	store.RecordTypeTreeBottomPage,
	store.RecordTypeTreeInternalPage,
}

var btreeRootTypes = []store.RecordType{
	store.RecordTypeTreeBottomRoot,
	store.RecordTypeTreeInternalRoot,
}

func openBtree(t *testing.T, log *store.Log, root store.Address) *btree.Mutable {
	t.Helper()
	tr, err := btree.Open(log, 1, root, false, tree.DefaultBalancePolicy)
	if err != nil {
		t.Fatalf("btree.Open: %v", err)
	}
	return btree.NewMutable(tr)
}

func putMany(t *testing.T, m *btree.Mutable, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%05d", i))
		val := []byte(fmt.Sprintf("val-%d", i))
		if err := m.Put(key, val); err != nil {
			t.Fatalf("Put %d: %v", i, err)
		}
	}
}

func checkAll(t *testing.T, m *btree.Mutable, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%05d", i))
		want := []byte(fmt.Sprintf("val-%d", i))
		got, found, err := m.Get(key)
		if err != nil || !found || !bytes.Equal(got, want) {
			t.Fatalf("Get %d = %q, %v, %v, want %q", i, got, found, err, want)
		}
	}
}

func TestCoordinatorRelocatesThenRemovesSegment(t *testing.T) {
	log := testLog(t)
	m := openBtree(t, log, store.NullAddress)

	const n = 400
	putMany(t, m, n)
	root, err := m.Save(log, 1)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	segments := log.Segments()
	if len(segments) < 2 {
		t.Fatalf("expected at least two segments after bulk insert, got %d", len(segments))
	}
	oldest := segments[0]

	reopened := openBtree(t, log, root)
	target := Target{
		Name:        "main",
		StructureID: 1,
		RecordTypes: btreeRecordTypes,
		RootTypes:   btreeRootTypes,
		Tree:        reopened,
	}
	coord := NewCoordinator(log, []Target{target}, CoordinatorOptions{})

	segment, changedRoots, removed, err := coord.TriggerReclaim()
	if err != nil {
		t.Fatalf("TriggerReclaim: %v", err)
	}
	if segment != oldest {
		t.Fatalf("expected the oldest segment %d to be scanned first, got %d", oldest, segment)
	}
	if removed {
		t.Fatal("expected the segment not to be removed while it still held live records")
	}
	newRoot, ok := changedRoots["main"]
	if !ok {
		t.Fatal("expected a new root for \"main\" after relocating its live records")
	}

	relocated := openBtree(t, log, newRoot)
	checkAll(t, relocated, n)

	segment2, changedRoots2, removed2, err := coord.TriggerReclaim()
	if err != nil {
		t.Fatalf("second TriggerReclaim: %v", err)
	}
	if segment2 != oldest {
		t.Fatalf("expected the same now-superseded segment %d to be picked again, got %d", oldest, segment2)
	}
	if !removed2 {
		t.Fatal("expected the segment to be removed once every record in it had been relocated")
	}
	if len(changedRoots2) != 0 {
		t.Fatalf("expected no root changes on a pass that only removed a dead segment, got %v", changedRoots2)
	}

	for _, addr := range log.Segments() {
		if addr == oldest {
			t.Fatalf("expected segment %d to be gone, still present in %v", oldest, log.Segments())
		}
	}

	checkAll(t, relocated, n)
}

func TestCoordinatorNoCandidateWithoutASuperseableSegment(t *testing.T) {
	log := testLog(t)
	m := openBtree(t, log, store.NullAddress)

	if err := m.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := m.Save(log, 1); err != nil {
		t.Fatalf("Save: %v", err)
	}

	target := Target{
		Name:        "main",
		StructureID: 1,
		RecordTypes: btreeRecordTypes,
		RootTypes:   btreeRootTypes,
		Tree:        m,
	}
	coord := NewCoordinator(log, []Target{target}, CoordinatorOptions{})

	segment, changedRoots, removed, err := coord.TriggerReclaim()
	if err != nil {
		t.Fatalf("TriggerReclaim: %v", err)
	}
	if segment != store.NullAddress || removed || len(changedRoots) != 0 {
		t.Fatalf("expected a no-op cycle with only one (active) segment, got segment=%d removed=%v roots=%v", segment, removed, changedRoots)
	}
}

func TestScanSegmentIgnoresOtherStructureIDs(t *testing.T) {
	log := testLog(t)
	tr, err := btree.Open(log, 7, store.NullAddress, false, tree.DefaultBalancePolicy)
	if err != nil {
		t.Fatalf("btree.Open: %v", err)
	}
	m := btree.NewMutable(tr)
	if err := m.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := m.Save(log, 7); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// structureID 1 does not match anything this log actually holds
	// (everything above was written under structure id 7), so the scan
	// should find nothing to reclaim and never call into the tree.
	result, err := ScanSegment(log, log.Segments()[0], 1, btreeRecordTypes, btreeRootTypes, &panicReclaim{})
	if err != nil {
		t.Fatalf("ScanSegment: %v", err)
	}
	if result.Reclaimed || result.ReachedRoot {
		t.Fatalf("expected no match for a foreign structure id, got %+v", result)
	}
}

type panicReclaim struct{}

func (panicReclaim) Reclaim(store.Address) (bool, error) {
	panic("Reclaim should never be called for a record outside the target structure id")
}

func (panicReclaim) Save(*store.Log, uint64) (store.Address, error) {
	panic("Save should never be called by ScanSegment")
}
