package patricia

import (
	"fmt"

	"github.com/strata-db/strata/pkg/store"
	"github.com/strata-db/strata/pkg/tree"
)

// Tree is a Patricia (radix) trie opened against a log, either
// read-only (Get, NewCursor) or, via Mutable, open for writing. Unlike
// pkg/tree/btree, a trie node has no fixed page capacity to bound, so
// there is no BalancePolicy here.
type Tree struct {
	log         *store.Log
	root        *node
	duplicates  bool
	structureID uint64
	size        int64
}

// Open loads the trie rooted at address. A NullAddress root opens a
// brand new, empty trie.
func Open(log *store.Log, structureID uint64, root store.Address, duplicates bool) (*Tree, error) {
	var r *node
	var size int64
	if root.IsNull() {
		r = emptyRoot()
	} else {
		var err error
		r, size, err = loadRoot(log, root)
		if err != nil {
			return nil, err
		}
	}
	return &Tree{log: log, root: r, duplicates: duplicates, structureID: structureID, size: size}, nil
}

// Size reports the total number of key/value pairs currently in the
// trie, counting duplicate values under a key individually.
func (t *Tree) Size() int64 {
	return t.size
}

// Get returns key's value. Under duplicates, it returns the smallest
// duplicate value for key; use NewCursor to see every value.
func (t *Tree) Get(key []byte) ([]byte, bool, error) {
	n := t.root
	remaining := key
	for {
		cpl := commonPrefixLen(n.prefix, remaining)
		if cpl < len(n.prefix) {
			return nil, false, nil
		}
		remaining = remaining[cpl:]
		if len(remaining) == 0 {
			if !n.hasValue {
				return nil, false, nil
			}
			if t.duplicates {
				values, err := decodeDupValues(n.value)
				if err != nil {
					return nil, false, err
				}
				if len(values) == 0 {
					return nil, false, nil
				}
				return values[0], true, nil
			}
			return n.value, true, nil
		}
		idx := n.findChild(remaining[0])
		if idx < 0 {
			return nil, false, nil
		}
		child, err := n.child(t.log, idx)
		if err != nil {
			return nil, false, err
		}
		n = child
	}
}

// NewCursor opens an in-order (lexicographic) cursor over the whole
// trie.
func (t *Tree) NewCursor() (tree.Cursor, error) {
	c := &cursor{log: t.log, duplicates: t.duplicates}
	c.seed(t.root, nil)
	return c, nil
}

// Mutable is a Tree open for writing. Every mutation is purely
// in-memory; Save is what makes it durable.
type Mutable struct {
	*Tree
	cursors map[*cursor]struct{}
}

// NewMutable wraps an already-open Tree for writing.
func NewMutable(t *Tree) *Mutable {
	return &Mutable{Tree: t, cursors: make(map[*cursor]struct{})}
}

// NewCursor opens an in-order cursor over the whole trie, registered
// with m so a later Delete/DeleteValue can notify it to re-seek past a
// deletion that falls on its current position. Close unregisters it.
func (m *Mutable) NewCursor() (tree.Cursor, error) {
	c := &cursor{log: m.log, duplicates: m.duplicates, mutable: m}
	c.seed(m.root, nil)
	m.registerCursor(c)
	return c, nil
}

func (m *Mutable) registerCursor(c *cursor) {
	if m.cursors == nil {
		m.cursors = make(map[*cursor]struct{})
	}
	m.cursors[c] = struct{}{}
}

func (m *Mutable) unregisterCursor(c *cursor) {
	delete(m.cursors, c)
}

// notifyCursors tells every cursor registered with m, except those
// listed in skip, that key was just deleted.
func (m *Mutable) notifyCursors(key []byte, skip []tree.Cursor) {
	if len(m.cursors) == 0 {
		return
	}
	var skipSet map[*cursor]struct{}
	if len(skip) > 0 {
		skipSet = make(map[*cursor]struct{}, len(skip))
		for _, s := range skip {
			if c, ok := s.(*cursor); ok {
				skipSet[c] = struct{}{}
			}
		}
	}
	for c := range m.cursors {
		if _, ok := skipSet[c]; ok {
			continue
		}
		c.notifyDeleted(key)
	}
}

func errPrecondition(msg string) error {
	return fmt.Errorf("patricia: %s: %w", msg, store.ErrEngineFault)
}
