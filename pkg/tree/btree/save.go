package btree

import (
	"github.com/strata-db/strata/pkg/store"
	"github.com/strata-db/strata/pkg/varint"
)

// Save flushes every dirty node to log in depth-first order, children
// before parents, under structureID, and returns the tree's new root
// address. The whole flush is one write batch: either every touched
// page lands in the log, or (on error) none of the returned addresses
// are observable by a later reader.
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

	for i := range n.entries {
		e := &n.entries[i]
		if n.isBottom {
			if e.childAddr.IsNull() {
				addr, err := log.Append(store.RecordTypeTreeLeaf, structureID, encodeLeaf(e.key, e.value))
				if err != nil {
					return store.NullAddress, err
				}
				e.childAddr = addr
			}
			continue
		}
		if e.child != nil && e.child.dirty {
			addr, err := saveNode(log, e.child, structureID, false, 0)
			if err != nil {
				return store.NullAddress, err
			}
			e.childAddr = addr
		}
	}

	pointers := make([]pagePointer, len(n.entries))
	for i, e := range n.entries {
		pointers[i] = pagePointer{key: e.key, addr: e.childAddr}
	}
	data := encodePage(pointers)
	if isRoot {
		data = append(varint.Append(nil, uint64(size)), data...)
	}

	var typ store.RecordType
	switch {
	case isRoot && n.isBottom:
		typ = store.RecordTypeTreeBottomRoot
	case isRoot && !n.isBottom:
		typ = store.RecordTypeTreeInternalRoot
	case !isRoot && n.isBottom:
		typ = store.RecordTypeTreeBottomPage
	default:
		typ = store.RecordTypeTreeInternalPage
	}

	addr, err := log.Append(typ, structureID, data)
	if err != nil {
		return store.NullAddress, err
	}
	n.addr = addr
	n.dirty = false
	return addr, nil
}
