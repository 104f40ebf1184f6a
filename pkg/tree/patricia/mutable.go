package patricia

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
	newRoot, _, delta, err := m.insertNode(m.root, key, value, modePut)
	if err != nil {
		return err
	}
	m.root = newRoot
	m.size += delta
	return nil
}

// PutRight inserts a key known to be greater than every key currently
// in the tree, checked once against the tree's current maximum before
// falling through to an ordinary Put.
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
	newRoot, changed, delta, err := m.insertNode(m.root, key, value, modeAdd)
	if err != nil {
		return false, err
	}
	m.root = newRoot
	m.size += delta
	return changed, nil
}

// Delete removes key (and, under duplicates, every value stored for
// it). skip excludes the listed cursors from the re-seek notification
// a successful delete sends to every other cursor open on the trie.
func (m *Mutable) Delete(key []byte, skip ...tree.Cursor) (bool, error) {
	newRoot, deleted, delta, err := m.deleteNode(m.root, key)
	if err != nil {
		return false, err
	}
	if !deleted {
		return false, nil
	}
	if newRoot == nil {
		newRoot = emptyRoot()
	}
	m.root = newRoot
	m.size -= delta
	m.notifyCursors(key, skip)
	return true, nil
}

// DeleteValue removes a single value from key's duplicate-value set.
// On a trie opened without duplicate support it behaves exactly like
// Delete, since every key then holds exactly one value. skip excludes
// cursors from notification the same way Delete does.
func (m *Mutable) DeleteValue(key, value []byte, skip ...tree.Cursor) (bool, error) {
	if !m.duplicates {
		return m.Delete(key, skip...)
	}
	newRoot, deleted, err := m.deleteValueNode(m.root, key, value)
	if err != nil {
		return false, err
	}
	if !deleted {
		return false, nil
	}
	if newRoot == nil {
		newRoot = emptyRoot()
	}
	m.root = newRoot
	m.size--
	m.notifyCursors(key, skip)
	return true, nil
}

func (m *Mutable) maxKey() ([]byte, bool, error) {
	n := m.root
	key := append([]byte(nil), n.prefix...)
	for len(n.children) > 0 {
		idx := len(n.children) - 1
		child, err := n.child(m.log, idx)
		if err != nil {
			return nil, false, err
		}
		key = append(key, child.prefix...)
		n = child
	}
	if !n.hasValue {
		return nil, false, nil
	}
	return key, true, nil
}

// insertNode inserts key/value into the subtree rooted at n, returning
// the node that should replace n in its parent (n itself, unless
// inserting required splitting n's prefix), whether anything changed,
// and the resulting change in the tree's size (key/value pair count,
// counting duplicates individually).
func (m *Mutable) insertNode(n *node, key, value []byte, mode insertMode) (*node, bool, int64, error) {
	cpl := commonPrefixLen(n.prefix, key)

	if cpl < len(n.prefix) {
		intermediate := &node{dirty: true, addr: store.NullAddress, prefix: append([]byte(nil), n.prefix[:cpl]...)}

		oldBranch := n.prefix[cpl]
		n.prefix = append([]byte(nil), n.prefix[cpl:]...)
		n.dirty = true
		n.addr = store.NullAddress
		oldChild := childSlot{branch: oldBranch, child: n, addr: store.NullAddress}

		remaining := key[cpl:]
		if len(remaining) == 0 {
			intermediate.hasValue = true
			intermediate.value = leafValue(m.duplicates, nil, value)
			intermediate.children = []childSlot{oldChild}
			return intermediate, true, 1, nil
		}

		newBranch := remaining[0]
		newLeaf := &node{dirty: true, addr: store.NullAddress, prefix: append([]byte(nil), remaining...), hasValue: true, value: leafValue(m.duplicates, nil, value)}
		newChild := childSlot{branch: newBranch, child: newLeaf, addr: store.NullAddress}

		if oldBranch < newBranch {
			intermediate.children = []childSlot{oldChild, newChild}
		} else {
			intermediate.children = []childSlot{newChild, oldChild}
		}
		return intermediate, true, 1, nil
	}

	remaining := key[cpl:]
	if len(remaining) == 0 {
		if mode == modeAdd && n.hasValue && !m.duplicates {
			return n, false, 0, nil
		}
		if !n.hasValue {
			n.hasValue = true
			n.value = leafValue(m.duplicates, nil, value)
			n.dirty = true
			n.addr = store.NullAddress
			return n, true, 1, nil
		}
		before := n.value
		newValue := leafValue(m.duplicates, before, value)
		if m.duplicates {
			beforeValues, _ := decodeDupValues(before)
			afterValues, _ := decodeDupValues(newValue)
			if mode == modeAdd && len(afterValues) == len(beforeValues) {
				return n, false, 0, nil
			}
			n.hasValue = true
			n.value = newValue
			n.dirty = true
			n.addr = store.NullAddress
			if len(afterValues) > len(beforeValues) {
				return n, true, 1, nil
			}
			return n, true, 0, nil
		}
		n.hasValue = true
		n.value = newValue
		n.dirty = true
		n.addr = store.NullAddress
		return n, true, 0, nil
	}

	idx := n.findChild(remaining[0])
	if idx < 0 {
		leaf := &node{dirty: true, addr: store.NullAddress, prefix: append([]byte(nil), remaining...), hasValue: true, value: leafValue(m.duplicates, nil, value)}
		at := n.childInsertIndex(remaining[0])
		n.children = append(n.children, childSlot{})
		copy(n.children[at+1:], n.children[at:])
		n.children[at] = childSlot{branch: remaining[0], child: leaf, addr: store.NullAddress}
		n.dirty = true
		n.addr = store.NullAddress
		return n, true, 1, nil
	}

	child, err := n.child(m.log, idx)
	if err != nil {
		return nil, false, 0, err
	}
	newChild, changed, delta, err := m.insertNode(child, remaining, value, mode)
	if err != nil {
		return nil, false, 0, err
	}
	if !changed {
		return n, false, 0, nil
	}
	n.children[idx] = childSlot{branch: n.children[idx].branch, child: newChild, addr: store.NullAddress}
	n.dirty = true
	n.addr = store.NullAddress
	return n, true, delta, nil
}

// leafValue computes the node value to store for a single insert: the
// new value as is for a non-duplicates tree, or existing merged with
// new under duplicates.
func leafValue(duplicates bool, existing, value []byte) []byte {
	if !duplicates {
		return value
	}
	var values [][]byte
	if existing != nil {
		values, _ = decodeDupValues(existing)
	}
	values = insertDupValue(values, value)
	return encodeDupValues(values)
}

// deleteNode removes key from the subtree rooted at n, returning the
// node that should replace n in its parent (nil if n should be
// dropped entirely), whether anything changed, and how much the
// tree's size shrank.
func (m *Mutable) deleteNode(n *node, key []byte) (*node, bool, int64, error) {
	cpl := commonPrefixLen(n.prefix, key)
	if cpl < len(n.prefix) {
		return n, false, 0, nil
	}
	remaining := key[cpl:]
	if len(remaining) == 0 {
		if !n.hasValue {
			return n, false, 0, nil
		}
		delta := int64(1)
		if m.duplicates {
			if values, err := decodeDupValues(n.value); err == nil && len(values) > 0 {
				delta = int64(len(values))
			}
		}
		n.hasValue = false
		n.value = nil
		n.dirty = true
		n.addr = store.NullAddress
		merged, err := m.collapseIfNeeded(n)
		return merged, true, delta, err
	}

	idx := n.findChild(remaining[0])
	if idx < 0 {
		return n, false, 0, nil
	}
	child, err := n.child(m.log, idx)
	if err != nil {
		return nil, false, 0, err
	}
	newChild, deleted, delta, err := m.deleteNode(child, remaining)
	if err != nil {
		return nil, false, 0, err
	}
	if !deleted {
		return n, false, 0, nil
	}
	if newChild == nil {
		n.children = append(n.children[:idx], n.children[idx+1:]...)
	} else {
		n.children[idx] = childSlot{branch: n.children[idx].branch, child: newChild, addr: store.NullAddress}
	}
	n.dirty = true
	n.addr = store.NullAddress
	merged, err := m.collapseIfNeeded(n)
	return merged, true, delta, err
}

// deleteValueNode removes value from key's duplicate-value set within
// the subtree rooted at n. If that was the last remaining value under
// key, the node's value is cleared (and the node collapsed) just as
// deleteNode does.
func (m *Mutable) deleteValueNode(n *node, key, value []byte) (*node, bool, error) {
	cpl := commonPrefixLen(n.prefix, key)
	if cpl < len(n.prefix) {
		return n, false, nil
	}
	remaining := key[cpl:]
	if len(remaining) == 0 {
		if !n.hasValue {
			return n, false, nil
		}
		values, err := decodeDupValues(n.value)
		if err != nil {
			return nil, false, err
		}
		values, found := removeDupValue(values, value)
		if !found {
			return n, false, nil
		}
		n.dirty = true
		n.addr = store.NullAddress
		if len(values) == 0 {
			n.hasValue = false
			n.value = nil
			merged, err := m.collapseIfNeeded(n)
			return merged, true, err
		}
		n.value = encodeDupValues(values)
		return n, true, nil
	}

	idx := n.findChild(remaining[0])
	if idx < 0 {
		return n, false, nil
	}
	child, err := n.child(m.log, idx)
	if err != nil {
		return nil, false, err
	}
	newChild, deleted, err := m.deleteValueNode(child, remaining, value)
	if err != nil {
		return nil, false, err
	}
	if !deleted {
		return n, false, nil
	}
	if newChild == nil {
		n.children = append(n.children[:idx], n.children[idx+1:]...)
	} else {
		n.children[idx] = childSlot{branch: n.children[idx].branch, child: newChild, addr: store.NullAddress}
	}
	n.dirty = true
	n.addr = store.NullAddress
	merged, err := m.collapseIfNeeded(n)
	return merged, true, err
}

// collapseIfNeeded keeps the trie maximally compressed after a delete:
// a valueless node with no children is dropped, and a valueless node
// with exactly one child is fused with that child so no chain of
// single-child pass-through nodes accumulates.
func (m *Mutable) collapseIfNeeded(n *node) (*node, error) {
	if n.hasValue {
		return n, nil
	}
	switch len(n.children) {
	case 0:
		return nil, nil
	case 1:
		child, err := n.child(m.log, 0)
		if err != nil {
			return nil, err
		}
		merged := &node{
			dirty:    true,
			addr:     store.NullAddress,
			prefix:   append(append([]byte(nil), n.prefix...), child.prefix...),
			hasValue: child.hasValue,
			value:    child.value,
			children: child.children,
		}
		return merged, nil
	default:
		return n, nil
	}
}
