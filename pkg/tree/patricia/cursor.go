package patricia

import (
	"bytes"

	"github.com/strata-db/strata/pkg/store"
)

// frame is one node on the traversal stack together with the full key
// prefix accumulated on the path down to it, and whether the node's
// own value (if any) has already been yielded.
type frame struct {
	n        *node
	key      []byte
	idx      int
	selfDone bool
}

// cursor is a stack-based, lexicographic in-order walk: a node's own
// value (the empty continuation) always sorts before any child (a
// non-empty continuation), so each frame yields its node's value
// before descending into its children in branch-byte order.
//
// A cursor opened over a Mutable registers itself so a delete can
// notify it: deleting the key a cursor currently sits on leaves its
// stack pointing at frames that may have been collapsed or rewritten,
// so the next Next() call re-seeds the walk and re-seeks past the
// deleted key instead of returning stale data.
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

func (c *cursor) seed(root *node, prefix []byte) {
	key := append(append([]byte(nil), prefix...), root.prefix...)
	c.stack = []frame{{n: root, key: key}}
}

// notifyDeleted is called by the owning Mutable when key is deleted.
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

// reseekPast rebuilds the traversal stack from the trie's current root
// and discards entries up to and including after, landing on the next
// key in order (or reporting exhaustion via a nil curKey).
func (c *cursor) reseekPast(after []byte) error {
	c.seed(c.mutable.root, nil)
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

		if !top.selfDone {
			top.selfDone = true
			if top.n.hasValue {
				c.curKey = top.key
				if c.duplicates {
					values, err := decodeDupValues(top.n.value)
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
					c.curValue = top.n.value
				}
				return true
			}
		}

		if top.idx >= len(top.n.children) {
			c.stack = c.stack[:len(c.stack)-1]
			continue
		}
		child, err := top.n.child(c.log, top.idx)
		if err != nil {
			c.err = err
			return false
		}
		top.idx++
		childKey := append(append([]byte(nil), top.key...), child.prefix...)
		c.stack = append(c.stack, frame{n: child, key: childKey})
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
