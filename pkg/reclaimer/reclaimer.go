// Package reclaimer walks the oldest segments of a log to reclaim the
// space held by records that a tree's own structural rewrites have
// since made unreachable, relocating whatever is still live and
// freeing the segment once nothing in it is needed anymore.
package reclaimer

import (
	"fmt"

	"github.com/strata-db/strata/pkg/store"
)

// Tree is what a reclaim pass needs from the tree whose records it is
// protecting: the ability to check one record's address against the
// tree's live structure (marking the path to it dirty if it is still
// reachable) and, once the pass is done, to flush those marks to a new
// root. pkg/tree/btree.Mutable and pkg/tree/patricia.Mutable both
// satisfy this directly.
type Tree interface {
	Reclaim(address store.Address) (bool, error)
	Save(log *store.Log, structureID uint64) (store.Address, error)
}

// Result reports what a single segment scan found for one tree.
type Result struct {
	// Reclaimed is true if at least one record in the segment was still
	// part of the tree's live structure.
	Reclaimed bool
	// ReachedRoot is true if the scan stopped early because it walked
	// onto the tree's own immutable root record: everything from there
	// was written after the scan's target segment and is already
	// reachable from a root the tree committed itself, so there is
	// nothing further in the segment for this tree to find.
	ReachedRoot bool
}

// ScanSegment walks segAddr in address order on behalf of one tree,
// dispatching every record stamped with structureID to tree.Reclaim.
// Everything else — the database root anchor, null padding, and
// records belonging to other trees sharing the same log — is skipped.
// The walk stops as soon as it reaches one of rootTypes carrying
// structureID.
//
// Mirrors spec.md §4.5's algorithm: "leaf/bottom/internal records
// trigger the tree's reclaim on the minimum key they contain" is
// realized here by handing the record's own address to Reclaim, which
// each tree implementation decodes into its minimum key internally
// (see pkg/tree/btree/reclaim.go and pkg/tree/patricia/reclaim.go); a
// record type this tree never produces is fatal, matching "unknown
// types are fatal".
func ScanSegment(log *store.Log, segAddr store.Address, structureID uint64, recordTypes, rootTypes []store.RecordType, tree Tree) (Result, error) {
	var result Result
	err := log.ScanSegment(segAddr, func(addr store.Address, rec store.Loggable) error {
		if rec.Type == store.RecordTypeNullPadding || rec.Type == store.RecordTypeDatabaseRoot {
			return nil
		}
		if rec.StructureID != structureID {
			return nil
		}
		if containsType(rootTypes, rec.Type) {
			result.ReachedRoot = true
			return store.ErrStopScan
		}
		if !containsType(recordTypes, rec.Type) {
			return fmt.Errorf("reclaimer: record at %d has unexpected type %d for structure %d: %w", addr, rec.Type, structureID, store.ErrDataCorruption)
		}
		live, err := tree.Reclaim(addr)
		if err != nil {
			return err
		}
		if live {
			result.Reclaimed = true
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

func containsType(types []store.RecordType, t store.RecordType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
