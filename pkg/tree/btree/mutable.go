package btree

import (
	"bytes"

	"github.com/strata-db/strata/pkg/store"
	"github.com/strata-db/strata/pkg/tree"
)

type insertMode int

const (
	modePut insertMode = iota
	modeAdd
)

// Put inserts or overwrites key's value.
func (m *Mutable) Put(key, value []byte) error {
	_, delta, splitKey, sibling, err := m.insertNode(m.root, key, value, modePut)
	if err != nil {
		return err
	}
	m.growRoot(splitKey, sibling)
	m.size += delta
	return nil
}

// growRoot puts a new internal root above the old root and the sibling
// split off from it, when insertNode reports that the root split.
func (m *Mutable) growRoot(splitKey []byte, sibling *node) {
	if sibling == nil {
		return
	}
	old := m.root
	m.root = &node{dirty: true, addr: store.NullAddress, entries: []entry{
		{key: old.entries[0].key, child: old, childAddr: store.NullAddress},
		{key: splitKey, child: sibling, childAddr: store.NullAddress},
	}}
}

// PutRight inserts a key known to be greater than every key currently
// in the tree. The precondition is checked once, up front, against the
// tree's current maximum key; once it holds, PutRight behaves exactly
// like Put, since an ordered insert of the new maximum naturally
// appends at the tree's rightmost position anyway.
func (m *Mutable) PutRight(key, value []byte) error {
	maxKey, ok, err := m.maxKey()
	if err != nil {
		return err
	}
	if ok && bytes.Compare(key, maxKey) <= 0 {
		return errPrecondition("PutRight key is not greater than the current maximum")
	}
	return m.Put(key, value)
}

// Add inserts key only if it is absent.
func (m *Mutable) Add(key, value []byte) (bool, error) {
	inserted, delta, splitKey, sibling, err := m.insertNode(m.root, key, value, modeAdd)
	if err != nil {
		return false, err
	}
	m.growRoot(splitKey, sibling)
	m.size += delta
	return inserted, nil
}

// Delete removes key (and, under duplicates, every value stored for
// it). skip excludes the listed cursors from the re-seek notification
// a successful delete sends to every other cursor open on the tree.
func (m *Mutable) Delete(key []byte, skip ...tree.Cursor) (bool, error) {
	changed, delta, underflow, err := m.deleteNode(m.root, key)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	m.size -= delta
	_ = underflow // the root is allowed to be under-full
	if !m.root.isBottom && len(m.root.entries) == 1 {
		child, err := m.root.child(m.log, 0)
		if err != nil {
			return false, err
		}
		m.root = child
	}
	m.notifyCursors(key, skip)
	return true, nil
}

// DeleteValue removes a single value from key's duplicate-value set,
// leaving any other values under key untouched. On a tree opened
// without duplicate support it behaves exactly like Delete, since every
// key then holds exactly one value. skip excludes cursors from
// notification the same way Delete does.
func (m *Mutable) DeleteValue(key, value []byte, skip ...tree.Cursor) (bool, error) {
	if !m.duplicates {
		return m.Delete(key, skip...)
	}
	changed, underflow, err := m.deleteValueNode(m.root, key, value)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	m.size--
	_ = underflow
	if !m.root.isBottom && len(m.root.entries) == 1 {
		child, err := m.root.child(m.log, 0)
		if err != nil {
			return false, err
		}
		m.root = child
	}
	m.notifyCursors(key, skip)
	return true, nil
}

// maxKey descends the rightmost path to find the tree's current
// maximum key, or reports ok=false for an empty tree.
func (m *Mutable) maxKey() ([]byte, bool, error) {
	n := m.root
	for {
		if len(n.entries) == 0 {
			return nil, false, nil
		}
		if n.isBottom {
			return n.entries[len(n.entries)-1].key, true, nil
		}
		child, err := n.child(m.log, len(n.entries)-1)
		if err != nil {
			return nil, false, err
		}
		n = child
	}
}

// insertNode inserts key/value into the subtree rooted at n, returning
// whether anything changed, the resulting change in the tree's size
// (key/value pair count, counting duplicates individually), and, if n
// split, the new sibling's smallest key and the sibling itself.
func (m *Mutable) insertNode(n *node, key, value []byte, mode insertMode) (changed bool, delta int64, splitKey []byte, sibling *node, err error) {
	if n.isBottom {
		i, exact := n.search(key)
		if exact {
			if mode == modeAdd && !m.duplicates {
				return false, 0, nil, nil, nil
			}
			newValue := value
			var d int64
			if m.duplicates {
				existing, err := n.leafValue(m.log, i)
				if err != nil {
					return false, 0, nil, nil, err
				}
				values, err := decodeDupValues(existing)
				if err != nil {
					return false, 0, nil, nil, err
				}
				before := len(values)
				values = insertDupValue(values, value)
				if mode == modeAdd && len(values) == before {
					return false, 0, nil, nil, nil
				}
				if len(values) > before {
					d = 1
				}
				newValue = encodeDupValues(values)
			}
			n.entries[i].value = newValue
			n.entries[i].valueLoaded = true
			n.entries[i].childAddr = store.NullAddress
			n.dirty = true
			return true, d, nil, nil, nil
		}

		newValue := value
		if m.duplicates {
			newValue = encodeDupValues([][]byte{value})
		}
		e := entry{key: append([]byte(nil), key...), value: newValue, valueLoaded: true, childAddr: store.NullAddress}
		n.entries = append(n.entries, entry{})
		copy(n.entries[i+1:], n.entries[i:])
		n.entries[i] = e
		n.dirty = true

		if len(n.entries) > m.policy.MaxFanout {
			sk, sib := splitNode(n)
			return true, 1, sk, sib, nil
		}
		return true, 1, nil, nil, nil
	}

	idx := n.descendIndex(key)
	child, err := n.child(m.log, idx)
	if err != nil {
		return false, 0, nil, nil, err
	}
	childChanged, childDelta, childSplitKey, childSibling, err := m.insertNode(child, key, value, mode)
	if err != nil {
		return false, 0, nil, nil, err
	}
	if !childChanged {
		return false, 0, nil, nil, nil
	}
	n.dirty = true

	if childSibling != nil {
		e := entry{key: childSplitKey, child: childSibling, childAddr: store.NullAddress}
		n.entries = append(n.entries, entry{})
		copy(n.entries[idx+2:], n.entries[idx+1:])
		n.entries[idx+1] = e

		if len(n.entries) > m.policy.MaxFanout {
			sk, sib := splitNode(n)
			return true, childDelta, sk, sib, nil
		}
	}
	return true, childDelta, nil, nil, nil
}

// splitNode halves n's entries, returning the new right sibling and
// the key under which the caller should index it.
func splitNode(n *node) ([]byte, *node) {
	mid := len(n.entries) / 2
	rightEntries := append([]entry(nil), n.entries[mid:]...)
	n.entries = n.entries[:mid:mid]
	right := &node{isBottom: n.isBottom, dirty: true, addr: store.NullAddress, entries: rightEntries}
	return rightEntries[0].key, right
}

// deleteNode removes key from the subtree rooted at n, returning
// whether anything changed, how much the tree's size shrank, and
// whether n is now under the tree's minimum fanout (the root is
// exempt from this).
func (m *Mutable) deleteNode(n *node, key []byte) (changed bool, delta int64, underflow bool, err error) {
	if n.isBottom {
		i, exact := n.search(key)
		if !exact {
			return false, 0, false, nil
		}
		d := int64(1)
		if m.duplicates {
			existing, err := n.leafValue(m.log, i)
			if err != nil {
				return false, 0, false, err
			}
			values, err := decodeDupValues(existing)
			if err != nil {
				return false, 0, false, err
			}
			if len(values) > 0 {
				d = int64(len(values))
			}
		}
		n.entries = append(n.entries[:i], n.entries[i+1:]...)
		n.dirty = true
		return true, d, len(n.entries) < m.policy.MinFanout, nil
	}

	idx := n.descendIndex(key)
	if len(n.entries) == 0 {
		return false, 0, false, nil
	}
	child, err := n.child(m.log, idx)
	if err != nil {
		return false, 0, false, err
	}
	childChanged, childDelta, childUnderflow, err := m.deleteNode(child, key)
	if err != nil {
		return false, 0, false, err
	}
	if !childChanged {
		return false, 0, false, nil
	}
	n.dirty = true

	if childUnderflow {
		if err := m.fixUnderflow(n, idx); err != nil {
			return false, 0, false, err
		}
	}
	return true, childDelta, len(n.entries) < m.policy.MinFanout, nil
}

// deleteValueNode removes value from key's duplicate-value set within
// the subtree rooted at n. If that was the last remaining value under
// key, the entry itself is removed, same as deleteNode.
func (m *Mutable) deleteValueNode(n *node, key, value []byte) (changed bool, underflow bool, err error) {
	if n.isBottom {
		i, exact := n.search(key)
		if !exact {
			return false, false, nil
		}
		existing, err := n.leafValue(m.log, i)
		if err != nil {
			return false, false, err
		}
		values, err := decodeDupValues(existing)
		if err != nil {
			return false, false, err
		}
		values, found := removeDupValue(values, value)
		if !found {
			return false, false, nil
		}
		if len(values) == 0 {
			n.entries = append(n.entries[:i], n.entries[i+1:]...)
			n.dirty = true
			return true, len(n.entries) < m.policy.MinFanout, nil
		}
		n.entries[i].value = encodeDupValues(values)
		n.entries[i].valueLoaded = true
		n.entries[i].childAddr = store.NullAddress
		n.dirty = true
		return true, false, nil
	}

	idx := n.descendIndex(key)
	if len(n.entries) == 0 {
		return false, false, nil
	}
	child, err := n.child(m.log, idx)
	if err != nil {
		return false, false, err
	}
	childChanged, childUnderflow, err := m.deleteValueNode(child, key, value)
	if err != nil {
		return false, false, err
	}
	if !childChanged {
		return false, false, nil
	}
	n.dirty = true

	if childUnderflow {
		if err := m.fixUnderflow(n, idx); err != nil {
			return false, false, err
		}
	}
	return true, len(n.entries) < m.policy.MinFanout, nil
}

// fixUnderflow merges a child that fell below MinFanout into its right
// sibling when the merged result would still fit in one page. When
// there is no right sibling, or merging would overflow, the under-full
// node is left as is: it remains correct, just not optimally packed,
// and will tend to absorb more entries as later inserts land in it.
func (m *Mutable) fixUnderflow(n *node, idx int) error {
	if idx+1 >= len(n.entries) {
		return nil
	}
	left, err := n.child(m.log, idx)
	if err != nil {
		return err
	}
	right, err := n.child(m.log, idx+1)
	if err != nil {
		return err
	}
	if len(left.entries)+len(right.entries) > m.policy.MaxFanout {
		return nil
	}
	left.entries = append(left.entries, right.entries...)
	left.dirty = true
	n.entries = append(n.entries[:idx+1], n.entries[idx+2:]...)
	return nil
}
