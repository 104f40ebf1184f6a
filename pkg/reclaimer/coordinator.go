package reclaimer

import (
	"fmt"
	"sync"
	"time"

	"github.com/strata-db/strata/pkg/common/log"
	"github.com/strata-db/strata/pkg/store"
)

// Target registers one tree with a Coordinator: the structure id its
// records carry in the log, the record types it may legitimately own,
// and the subset of those that are root records (marking where a scan
// of this tree's history can stop).
type Target struct {
	Name        string
	StructureID uint64
	RecordTypes []store.RecordType
	RootTypes   []store.RecordType
	Tree        Tree
}

// CoordinatorOptions configures a Coordinator's background cadence.
type CoordinatorOptions struct {
	// Interval between reclaim cycles while running. Defaults to one
	// second, mirroring the teacher compaction coordinator's default.
	Interval time.Duration
}

// Coordinator drives reclaim across a log's segments, one candidate
// segment and one registered tree target at a time, the way the
// teacher's DefaultCompactionCoordinator drives SSTable compaction
// across levels: a small state machine (running/stopCh/mutex) wrapping
// a ticker-driven worker goroutine, with TriggerReclaim exposed for
// callers (tests, or a synchronous CLI command) that want one cycle
// run on demand instead of waiting for the ticker.
type Coordinator struct {
	log     *store.Log
	targets []Target

	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewCoordinator builds a Coordinator over log for the given targets.
func NewCoordinator(log *store.Log, targets []Target, opts CoordinatorOptions) *Coordinator {
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Second
	}
	return &Coordinator{log: log, targets: targets, interval: interval, stopCh: make(chan struct{})}
}

// Start begins running reclaim cycles in the background.
func (c *Coordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	go c.loop(c.stopCh)
}

// Stop halts background reclaim.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	close(c.stopCh)
	c.running = false
}

func (c *Coordinator) loop(stopCh chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if _, _, _, err := c.TriggerReclaim(); err != nil {
				log.Error("reclaim cycle failed: %v", err)
			}
		}
	}
}

// TriggerReclaim runs one reclaim cycle synchronously: it picks the
// oldest segment that is not the log's currently active (still being
// written) segment, scans it on behalf of every registered target, and
// either removes the segment outright (nothing in it was live for any
// target) or reports the new root addresses produced by saving the
// trees that had live records relocated out of it.
//
// When changedRoots is non-empty, the segment itself is NOT removed:
// the caller must fold changedRoots into its next database-root write
// (store.Log.WriteRoot) and only then call Coordinator.RemoveSegment,
// so a crash between reclaim and the next root write can never lose
// the relocated records. This mirrors spec.md §4.5's requirement that
// a segment's removal follow, never precede, the durable commit of
// whatever reclaim relocated out of it.
func (c *Coordinator) TriggerReclaim() (segment store.Address, changedRoots map[string]store.Address, removed bool, err error) {
	candidate, ok := c.pickCandidate()
	if !ok {
		return store.NullAddress, nil, false, nil
	}

	anyLive := false
	roots := make(map[string]store.Address)
	for _, target := range c.targets {
		result, err := ScanSegment(c.log, candidate, target.StructureID, target.RecordTypes, target.RootTypes, target.Tree)
		if err != nil {
			return store.NullAddress, nil, false, fmt.Errorf("reclaimer: scanning segment %d for %q: %w", candidate, target.Name, err)
		}
		if !result.Reclaimed {
			continue
		}
		anyLive = true
		addr, err := target.Tree.Save(c.log, target.StructureID)
		if err != nil {
			return store.NullAddress, nil, false, fmt.Errorf("reclaimer: saving %q after reclaiming segment %d: %w", target.Name, candidate, err)
		}
		roots[target.Name] = addr
	}

	if !anyLive {
		if err := c.log.RemoveSegment(candidate); err != nil {
			return store.NullAddress, nil, false, err
		}
		return candidate, nil, true, nil
	}
	return candidate, roots, false, nil
}

// RemoveSegment deletes segment, intended to be called once the caller
// has durably committed the changedRoots a prior TriggerReclaim
// returned for it.
func (c *Coordinator) RemoveSegment(segment store.Address) error {
	return c.log.RemoveSegment(segment)
}

func (c *Coordinator) pickCandidate() (store.Address, bool) {
	active := c.log.ActiveSegment()
	for _, addr := range c.log.Segments() {
		if addr != active {
			return addr, true
		}
	}
	return store.NullAddress, false
}
