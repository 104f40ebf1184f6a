package btree

import (
	"fmt"

	"github.com/strata-db/strata/pkg/store"
	"github.com/strata-db/strata/pkg/tree"
)

// Tree is a B+-tree opened against a log, either read-only (Get,
// NewCursor) or, via Mutable, open for writing.
type Tree struct {
	log         *store.Log
	root        *node
	duplicates  bool
	policy      tree.BalancePolicy
	structureID uint64
	size        int64
}

// Open loads the tree rooted at address. A NullAddress root opens a
// brand new, empty tree.
func Open(log *store.Log, structureID uint64, root store.Address, duplicates bool, policy tree.BalancePolicy) (*Tree, error) {
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
	return &Tree{log: log, root: r, duplicates: duplicates, policy: policy, structureID: structureID, size: size}, nil
}

// Size reports the total number of key/value pairs currently in the
// tree, counting duplicate values under a key individually.
func (t *Tree) Size() int64 {
	return t.size
}

// Get returns key's value. Under duplicates, it returns the smallest
// duplicate value for key; use NewCursor to see every value.
func (t *Tree) Get(key []byte) ([]byte, bool, error) {
	n := t.root
	for {
		i, exact := n.search(key)
		if n.isBottom {
			if !exact {
				return nil, false, nil
			}
			v, err := n.leafValue(t.log, i)
			if err != nil {
				return nil, false, err
			}
			if t.duplicates {
				values, err := decodeDupValues(v)
				if err != nil {
					return nil, false, err
				}
				if len(values) == 0 {
					return nil, false, nil
				}
				return values[0], true, nil
			}
			return v, true, nil
		}
		idx := n.descendIndex(key)
		if len(n.entries) == 0 {
			return nil, false, nil
		}
		child, err := n.child(t.log, idx)
		if err != nil {
			return nil, false, err
		}
		n = child
	}
}

// NewCursor opens an in-order cursor over the whole tree.
func (t *Tree) NewCursor() (tree.Cursor, error) {
	c := &cursor{log: t.log, duplicates: t.duplicates}
	if err := c.seedLeftmost(t.root); err != nil {
		return nil, err
	}
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

// NewCursor opens an in-order cursor over the whole tree, registered
// with m so a later Delete/DeleteValue can notify it to re-seek past a
// deletion that falls on its current position. Close unregisters it.
func (m *Mutable) NewCursor() (tree.Cursor, error) {
	c := &cursor{log: m.log, duplicates: m.duplicates, mutable: m}
	if err := c.seedLeftmost(m.root); err != nil {
		return nil, err
	}
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
	return fmt.Errorf("btree: %s: %w", msg, store.ErrEngineFault)
}
