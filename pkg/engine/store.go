// Package engine wires the log, page cache, tree indexes, and
// reclaimer together behind a single Store, the way teacher's
// pkg/engine/facade.go wires storage, transactions, and compaction
// behind one EngineFacade. It is a minimal, non-transactional facade:
// no isolation levels, no multi-statement transactions, no
// application-level marshalling — those are out of scope. Store exists
// so the log/cache/tree/reclaimer core can be driven end to end by
// cmd/strata and by tests.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/strata-db/strata/pkg/common/iterator/bounded"
	"github.com/strata-db/strata/pkg/common/iterator/filtered"
	"github.com/strata-db/strata/pkg/config"
	"github.com/strata-db/strata/pkg/pagecache"
	"github.com/strata-db/strata/pkg/reclaimer"
	"github.com/strata-db/strata/pkg/stats"
	"github.com/strata-db/strata/pkg/store"
	"github.com/strata-db/strata/pkg/tree"
	"github.com/strata-db/strata/pkg/tree/btree"
	"github.com/strata-db/strata/pkg/tree/patricia"
)

// Structure ids a Store's two trees carry in the log, and the names
// under which their roots are recorded in the database root record.
const (
	primaryStructureID uint64 = 0
	prefixStructureID  uint64 = 1

	primaryRootName = "primary"
	prefixRootName  = "prefix"
)

var (
	// ErrClosed is returned by any Store method called after Close.
	ErrClosed = errors.New("engine: store closed")
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("engine: key not found")
)

// Store is a single opened database: one log, one page cache, a
// primary B+-tree index, and a secondary Patricia index kept in sync
// for prefix lookups. All mutation is serialized behind mu, since
// neither tree.MutableTree implementation synchronizes its own
// in-memory state — the same single-writer assumption teacher's
// storage.Manager makes of its memtable.
type Store struct {
	mu sync.Mutex

	cfg *config.Config
	log *store.Log

	primary *btree.Mutable
	prefix  *patricia.Mutable

	coordinator *reclaimer.Coordinator
	stats       *stats.AtomicCollector

	closed bool
}

// Open loads or creates the database rooted at dataDir: the manifest
// (or a freshly written default one), the log and its recovered
// trees, and a reclaim coordinator registered with both trees but not
// started, mirroring teacher's NewEngineFacade bootstrap sequence
// (load-or-create manifest, then build each collaborator over it).
func Open(dataDir string) (*Store, error) {
	cfg, err := config.LoadConfigFromManifest(dataDir)
	if err != nil {
		if !errors.Is(err, config.ErrManifestNotFound) {
			return nil, fmt.Errorf("engine: loading configuration: %w", err)
		}
		cfg = config.NewDefaultConfig(dataDir)
		if err := cfg.SaveManifest(dataDir); err != nil {
			return nil, fmt.Errorf("engine: saving configuration: %w", err)
		}
	}

	var cache store.PageCache
	pcCfg := pagecache.Config{
		PageSize:       cfg.PageSize,
		ByteBudget:     cfg.CacheByteBudget,
		NonBlocking:    cfg.CacheNonBlocking,
		SoftReferences: cfg.CacheSoftReferences,
	}
	if cfg.CacheKind == config.CachePerLog {
		cache = pagecache.New(pcCfg)
	} else {
		cache = pagecache.Shared(pcCfg)
	}

	log, err := store.Open(dataDir, cfg, cache)
	if err != nil {
		return nil, fmt.Errorf("engine: opening log: %w", err)
	}

	primaryRoot, prefixRoot := store.NullAddress, store.NullAddress
	if root, _, ok := log.Root(); ok {
		if addr, ok := root.Trees[primaryRootName]; ok {
			primaryRoot = addr
		}
		if addr, ok := root.Trees[prefixRootName]; ok {
			prefixRoot = addr
		}
	}

	policy := tree.BalancePolicy{MaxFanout: cfg.TreeMaxFanout, MinFanout: cfg.TreeMinFanout}
	primaryTree, err := btree.Open(log, primaryStructureID, primaryRoot, cfg.TreeDuplicates, policy)
	if err != nil {
		return nil, fmt.Errorf("engine: opening primary index: %w", err)
	}
	prefixTree, err := patricia.Open(log, prefixStructureID, prefixRoot, cfg.TreeDuplicates)
	if err != nil {
		return nil, fmt.Errorf("engine: opening prefix index: %w", err)
	}

	s := &Store{
		cfg:     cfg,
		log:     log,
		primary: btree.NewMutable(primaryTree),
		prefix:  patricia.NewMutable(prefixTree),
		stats:   stats.NewAtomicCollector(),
	}

	s.coordinator = reclaimer.NewCoordinator(log, []reclaimer.Target{
		{
			Name:        primaryRootName,
			StructureID: primaryStructureID,
			RecordTypes: []store.RecordType{store.RecordTypeTreeLeaf, store.RecordTypeTreeBottomPage, store.RecordTypeTreeInternalPage, store.RecordTypeTreeBottomRoot, store.RecordTypeTreeInternalRoot},
			RootTypes:   []store.RecordType{store.RecordTypeTreeBottomRoot, store.RecordTypeTreeInternalRoot},
			Tree:        s.primary,
		},
		{
			Name:        prefixRootName,
			StructureID: prefixStructureID,
			RecordTypes: []store.RecordType{store.RecordTypeTreeNode, store.RecordTypeTreeNodeRoot},
			RootTypes:   []store.RecordType{store.RecordTypeTreeNodeRoot},
			Tree:        s.prefix,
		},
	}, reclaimer.CoordinatorOptions{})

	return s, nil
}

// Put inserts or overwrites key's value in both indexes and saves
// them, folding the two new roots into one database root record.
func (s *Store) Put(key, value []byte) error {
	start := time.Now()
	err := s.mutate(func() error {
		if err := s.primary.Put(key, value); err != nil {
			return err
		}
		// Add, not Put: the prefix index only needs to record that key
		// exists at all, so a second Put for the same key is a no-op.
		_, err := s.prefix.Add(key, nil)
		return err
	})
	s.stats.TrackOperationWithLatency(stats.OpPut, uint64(time.Since(start).Nanoseconds()))
	if err != nil {
		s.stats.TrackError("put_error")
		return err
	}
	s.stats.TrackBytes(true, uint64(len(key)+len(value)))
	return nil
}

// Get returns key's value from the primary index.
func (s *Store) Get(key []byte) ([]byte, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	value, found, err := s.primary.Get(key)
	s.stats.TrackOperationWithLatency(stats.OpGet, uint64(time.Since(start).Nanoseconds()))
	if err != nil {
		s.stats.TrackError("get_error")
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	s.stats.TrackBytes(false, uint64(len(value)))
	return value, nil
}

// Delete removes key from both indexes, reporting whether it was
// present in the primary index.
func (s *Store) Delete(key []byte) (bool, error) {
	start := time.Now()
	var deleted bool
	err := s.mutate(func() error {
		var err error
		deleted, err = s.primary.Delete(key)
		if err != nil {
			return err
		}
		if deleted {
			if _, err := s.prefix.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	s.stats.TrackOperationWithLatency(stats.OpDelete, uint64(time.Since(start).Nanoseconds()))
	if err != nil {
		s.stats.TrackError("delete_error")
		return false, err
	}
	return deleted, nil
}

// Size reports the number of key/value pairs currently held in the
// primary index, counting duplicate values under a key individually.
func (s *Store) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primary.Size()
}

// mutate runs fn under mu, saving both trees and writing one
// database root record if fn succeeds. Nothing fn does is durable
// until this returns nil.
func (s *Store) mutate(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := fn(); err != nil {
		return err
	}
	return s.saveAndWriteRootLocked()
}

func (s *Store) saveAndWriteRootLocked() error {
	primaryAddr, err := s.primary.Save(s.log, primaryStructureID)
	if err != nil {
		return fmt.Errorf("engine: saving primary index: %w", err)
	}
	prefixAddr, err := s.prefix.Save(s.log, prefixStructureID)
	if err != nil {
		return fmt.Errorf("engine: saving prefix index: %w", err)
	}
	_, err = s.log.WriteRoot(map[string]store.Address{
		primaryRootName: primaryAddr,
		prefixRootName:  prefixAddr,
	})
	if err != nil {
		return fmt.Errorf("engine: writing root: %w", err)
	}
	return nil
}

// NewCursor opens a cursor over the primary index's full key range.
func (s *Store) NewCursor() (tree.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.primary.NewCursor()
}

// Scan returns an iterator over the primary index clipped to
// [start, end); a nil end means "no upper bound". The returned
// iterator is not positioned; callers must call SeekToFirst (or
// Seek) before reading Key/Value, the same as any iterator.Iterator.
func (s *Store) Scan(start, end []byte) (*bounded.BoundedIterator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	iter := newCursorIterator(func() (tree.Cursor, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return nil, ErrClosed
		}
		return s.primary.NewCursor()
	})
	return bounded.NewBoundedIterator(iter, start, end), nil
}

// PrefixKeys returns every key carrying prefix, read off the
// secondary Patricia index so a prefix-heavy lookup need not walk the
// whole primary tree. The cursor is wrapped by filtered.NewPrefixIterator
// rather than compared by hand, since the trie's cursor already walks
// in lexicographic order and the filter decorator exists for exactly
// this kind of key predicate.
func (s *Store) PrefixKeys(prefix []byte) ([][]byte, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.mu.Unlock()

	base := newCursorIterator(func() (tree.Cursor, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return nil, ErrClosed
		}
		return s.prefix.NewCursor()
	})
	iter := filtered.NewPrefixIterator(base, prefix)

	var keys [][]byte
	for iter.SeekToFirst(); iter.Valid(); iter.Next() {
		keys = append(keys, append([]byte(nil), iter.Key()...))
	}
	return keys, base.Err()
}

// Reclaim runs one reclaim cycle against the oldest inactive segment:
// it scans the segment on behalf of both indexes, saves whichever
// tree had live records relocated, and only then removes the
// segment, so a crash between reclaim and the root write can never
// strand a relocated record. Mirrors Coordinator.TriggerReclaim's
// two-phase contract.
func (s *Store) Reclaim() (segment store.Address, reclaimed bool, err error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.NullAddress, false, ErrClosed
	}

	segAddr, changedRoots, removed, err := s.coordinator.TriggerReclaim()
	s.stats.TrackOperationWithLatency(stats.OpReclaim, uint64(time.Since(start).Nanoseconds()))
	if err != nil {
		s.stats.TrackError("reclaim_error")
		return store.NullAddress, false, err
	}
	if segAddr.IsNull() {
		return store.NullAddress, false, nil
	}
	if removed {
		return segAddr, true, nil
	}

	// TriggerReclaim only reports the roots of trees that actually had
	// records relocated; WriteRoot replaces the whole Trees map, so the
	// unchanged tree's current root must be folded in or it would be
	// dropped from the next database root record.
	trees := make(map[string]store.Address, 2)
	if lastRoot, _, ok := s.log.Root(); ok {
		for name, addr := range lastRoot.Trees {
			trees[name] = addr
		}
	}
	for name, addr := range changedRoots {
		trees[name] = addr
	}
	if _, err := s.log.WriteRoot(trees); err != nil {
		return store.NullAddress, false, fmt.Errorf("engine: writing root after reclaim: %w", err)
	}
	if err := s.coordinator.RemoveSegment(segAddr); err != nil {
		return store.NullAddress, false, fmt.Errorf("engine: removing reclaimed segment: %w", err)
	}
	return segAddr, true, nil
}

// Stats returns a snapshot of the store's operation counters.
func (s *Store) Stats() map[string]interface{} {
	return s.stats.GetStats()
}

// Close flushes the log and releases its file lock. Store methods
// called after Close return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.log.Close()
}
