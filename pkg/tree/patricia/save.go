package patricia

import (
	"github.com/strata-db/strata/pkg/store"
	"github.com/strata-db/strata/pkg/varint"
)

// Save flushes every dirty node to log in depth-first order, children
// before parents, under structureID, and returns the trie's new root
// address, inside one write batch.
func (m *Mutable) Save(log *store.Log, structureID uint64) (store.Address, error) {
	if structureID != m.structureID {
		return store.NullAddress, errPrecondition("Save called with a different structure id than the tree was opened with")
	}
	log.BeginWrite()
	addr, err := saveNode(log, m.root, structureID, true, m.size)
	if err != nil {
		log.EndWrite()
		return store.NullAddress, err
	}
	if err := log.EndWrite(); err != nil {
		return store.NullAddress, err
	}
	m.root.addr = addr
	return addr, nil
}

func saveNode(log *store.Log, n *node, structureID uint64, isRoot bool, size int64) (store.Address, error) {
	if !n.dirty {
		return n.addr, nil
	}

	for i := range n.children {
		s := &n.children[i]
		if s.child != nil && s.child.dirty {
			addr, err := saveNode(log, s.child, structureID, false, 0)
			if err != nil {
				return store.NullAddress, err
			}
			s.addr = addr
		}
	}

	pointers := make([]pointer, len(n.children))
	for i, s := range n.children {
		pointers[i] = pointer{branch: s.branch, addr: s.addr}
	}
	data := encodeNode(n.prefix, n.hasValue, n.value, pointers)
	if isRoot {
		data = append(varint.Append(nil, uint64(size)), data...)
	}

	typ := store.RecordTypeTreeNode
	if isRoot {
		typ = store.RecordTypeTreeNodeRoot
	}
	addr, err := log.Append(typ, structureID, data)
	if err != nil {
		return store.NullAddress, err
	}
	n.addr = addr
	n.dirty = false
	return addr, nil
}
