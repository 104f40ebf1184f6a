// Package tree defines the contracts shared by the two index
// implementations (pkg/tree/btree, pkg/tree/patricia): a log-addressed,
// copy-on-write mutable tree with a cursor for ordered scans, and the
// save/reclaim protocol that lets a tree be durably written to and
// relocated out of a log segment being reclaimed.
package tree

import "github.com/strata-db/strata/pkg/store"

// Tree is the read-only contract: look up a key, open a cursor over the
// whole key range, or ask how many keys it currently holds.
type Tree interface {
	Get(key []byte) (value []byte, found bool, err error)
	NewCursor() (Cursor, error)

	// Size reports the total number of key/value pairs currently in the
	// tree, counting duplicate values under a key individually.
	Size() int64
}

// MutableTree is a Tree open for writing. Mutations only touch
// in-memory state; nothing is durable until Save returns a new root
// address.
type MutableTree interface {
	Tree

	// Put inserts or overwrites key's value.
	Put(key, value []byte) error

	// PutRight inserts a key known to be greater than every key
	// currently in the tree. The precondition is checked against the
	// tree's current maximum key before an ordinary Put; violating it
	// returns ErrEngineFault rather than silently corrupting the tree.
	PutRight(key, value []byte) error

	// Add inserts key only if absent, reporting whether it inserted.
	Add(key, value []byte) (inserted bool, err error)

	// Delete removes key and every value stored under it, reporting
	// whether it was present. A cursor opened on this tree is notified
	// to re-seek past key if the deletion falls on its current
	// position, unless that cursor is named in skip.
	Delete(key []byte, skip ...Cursor) (deleted bool, err error)

	// DeleteValue removes a single value from key's duplicate-value set,
	// reporting whether it was present. If value is key's last remaining
	// value, key itself is removed, same as Delete. On a tree opened
	// without duplicate support this behaves exactly like Delete. skip
	// excludes cursors from notification the same way Delete does.
	DeleteValue(key, value []byte, skip ...Cursor) (deleted bool, err error)

	// Save flushes every dirty node to the log in depth-first order
	// (children before parents) under the given structure id, and
	// returns the new root address.
	Save(log *store.Log, structureID uint64) (store.Address, error)
}

// Reclaimable is implemented by a tree opened against its current root
// so the reclaimer can ask whether a record found while scanning a
// segment is still reachable, and if so mark it (and its ancestors) for
// rewrite on the next Save.
type Reclaimable interface {
	// Reclaim reports whether the record at address is still part of
	// the tree's live structure. If it is, every node on the path from
	// the root down to it is marked dirty so a subsequent Save
	// relocates them out of the segment being reclaimed.
	Reclaim(address store.Address) (live bool, err error)
}

// Cursor walks a tree's entries in key order, starting before the
// first entry; call Next before the first Key/Value. Next returns
// false both at the end of the tree and after an I/O error; callers
// must check Err once Next returns false to tell the two apart, the
// same way bufio.Scanner separates EOF from a read failure.
type Cursor interface {
	Next() bool
	Key() []byte
	Value() []byte
	Err() error
	Close() error
}

// BalancePolicy bounds how many entries an internal or leaf page may
// hold before it must split, and how few it may hold before it must
// merge with a sibling.
type BalancePolicy struct {
	MaxFanout int
	MinFanout int
}

// DefaultBalancePolicy matches config.Config's default tree fanout.
var DefaultBalancePolicy = BalancePolicy{MaxFanout: 128, MinFanout: 32}
