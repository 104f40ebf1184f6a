package engine

import (
	"bytes"

	"github.com/strata-db/strata/pkg/common/iterator"
	"github.com/strata-db/strata/pkg/tree"
)

// cursorIterator adapts a tree.Cursor, which only walks forward from
// the start of a tree, to the iterator.Iterator contract, which also
// supports Seek and SeekToLast. Since tree.Cursor cannot seek or walk
// backward, both are implemented by opening a fresh cursor from
// newCursor and re-scanning from the beginning.
type cursorIterator struct {
	newCursor func() (tree.Cursor, error)

	cur   tree.Cursor
	key   []byte
	value []byte
	valid bool
	err   error
}

var _ iterator.Iterator = (*cursorIterator)(nil)

func newCursorIterator(newCursor func() (tree.Cursor, error)) *cursorIterator {
	return &cursorIterator{newCursor: newCursor}
}

func (c *cursorIterator) reset() bool {
	if c.cur != nil {
		c.cur.Close()
	}
	c.cur, c.err = c.newCursor()
	if c.err != nil {
		c.cur = nil
		c.valid = false
		return false
	}
	return true
}

// SeekToFirst positions the iterator at the tree's smallest key.
func (c *cursorIterator) SeekToFirst() {
	if !c.reset() {
		return
	}
	c.advance()
}

// SeekToLast positions the iterator at the tree's largest key, found
// by walking every entry since a Cursor has no reverse direction.
func (c *cursorIterator) SeekToLast() {
	if !c.reset() {
		return
	}
	var lastKey, lastValue []byte
	found := false
	for c.cur.Next() {
		lastKey, lastValue = c.cur.Key(), c.cur.Value()
		found = true
	}
	c.err = c.cur.Err()
	if c.err != nil || !found {
		c.valid = false
		return
	}
	c.key, c.value, c.valid = lastKey, lastValue, true
}

// Seek positions the iterator at the first key >= target.
func (c *cursorIterator) Seek(target []byte) bool {
	if !c.reset() {
		return false
	}
	for c.advance() {
		if bytes.Compare(c.key, target) >= 0 {
			return true
		}
	}
	return false
}

// Next advances to the next key.
func (c *cursorIterator) Next() bool {
	if c.cur == nil {
		return false
	}
	return c.advance()
}

func (c *cursorIterator) advance() bool {
	if !c.cur.Next() {
		c.err = c.cur.Err()
		c.valid = false
		return false
	}
	c.key, c.value, c.valid = c.cur.Key(), c.cur.Value(), true
	return true
}

func (c *cursorIterator) Key() []byte   { return c.key }
func (c *cursorIterator) Value() []byte { return c.value }
func (c *cursorIterator) Valid() bool   { return c.valid }

// Err reports the last error a cursor operation surfaced, if any.
func (c *cursorIterator) Err() error { return c.err }
