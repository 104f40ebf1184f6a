package btree

import (
	"bytes"

	"github.com/strata-db/strata/pkg/store"
)

type frame struct {
	n   *node
	idx int
}

// cursor is an in-order, stack-based traversal: no node carries a
// parent pointer, so descending and backtracking both work purely off
// the explicit stack of (node, next-child-index) frames.
//
// A cursor opened over a Mutable registers itself so that a delete can
// notify it: deleting the key a cursor currently sits on leaves that
// cursor's stack pointing at entries that may have shifted or been
// freed, so the next Next() call re-seeds the stack and re-seeks past
// the deleted key instead of returning stale data.
type cursor struct {
	log        *store.Log
	duplicates bool
	mutable    *Mutable // non-nil only for cursors registered for delete notification

	stack []frame

	curKey   []byte
	curValue []byte
	curDup   [][]byte
	curDupI  int

	needsReseek bool
	reseekAfter []byte

	err error
}

func (c *cursor) seedLeftmost(root *node) error {
	c.stack = []frame{{n: root, idx: 0}}
	for {
		top := &c.stack[len(c.stack)-1]
		if top.n.isBottom || len(top.n.entries) == 0 {
			return nil
		}
		child, err := top.n.child(c.log, 0)
		if err != nil {
			return err
		}
		top.idx = 1
		c.stack = append(c.stack, frame{n: child, idx: 0})
	}
}

// notifyDeleted is called by the owning Mutable when key is deleted.
// If the cursor is currently positioned on key, it is marked to
// re-seek past it on the next Next() call rather than continue from a
// stack that may no longer reflect the tree's structure.
func (c *cursor) notifyDeleted(key []byte) {
	if c.curKey != nil && bytes.Equal(c.curKey, key) {
		c.needsReseek = true
		c.reseekAfter = append([]byte(nil), key...)
	}
}

func (c *cursor) Next() bool {
	if c.err != nil {
		return false
	}
	if c.needsReseek {
		c.needsReseek = false
		after := c.reseekAfter
		c.reseekAfter = nil
		if err := c.reseekPast(after); err != nil {
			c.err = err
			return false
		}
		return c.curKey != nil
	}
	return c.advance()
}

// reseekPast rebuilds the traversal stack from the tree's current root
// and discards entries up to and including after, landing on the next
// key in order (or reporting exhaustion via a nil curKey).
func (c *cursor) reseekPast(after []byte) error {
	if err := c.seedLeftmost(c.mutable.root); err != nil {
		return err
	}
	c.curDup = nil
	for c.advance() {
		if bytes.Compare(c.curKey, after) > 0 {
			return nil
		}
	}
	c.curKey = nil
	c.curValue = nil
	return c.err
}

func (c *cursor) advance() bool {
	if c.curDup != nil && c.curDupI+1 < len(c.curDup) {
		c.curDupI++
		c.curValue = c.curDup[c.curDupI]
		return true
	}

	for len(c.stack) > 0 {
		top := &c.stack[len(c.stack)-1]

		if top.n.isBottom {
			if top.idx >= len(top.n.entries) {
				c.stack = c.stack[:len(c.stack)-1]
				continue
			}
			i := top.idx
			top.idx++

			v, err := top.n.leafValue(c.log, i)
			if err != nil {
				c.err = err
				return false
			}
			c.curKey = top.n.entries[i].key

			if c.duplicates {
				values, err := decodeDupValues(v)
				if err != nil {
					c.err = err
					return false
				}
				if len(values) == 0 {
					continue
				}
				c.curDup = values
				c.curDupI = 0
				c.curValue = values[0]
			} else {
				c.curDup = nil
				c.curValue = v
			}
			return true
		}

		if top.idx >= len(top.n.entries) {
			c.stack = c.stack[:len(c.stack)-1]
			continue
		}
		child, err := top.n.child(c.log, top.idx)
		if err != nil {
			c.err = err
			return false
		}
		top.idx++
		c.stack = append(c.stack, frame{n: child, idx: 0})
	}
	return false
}

func (c *cursor) Key() []byte   { return c.curKey }
func (c *cursor) Value() []byte { return c.curValue }
func (c *cursor) Err() error    { return c.err }

func (c *cursor) Close() error {
	if c.mutable != nil {
		c.mutable.unregisterCursor(c)
	}
	return nil
}
