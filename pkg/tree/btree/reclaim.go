package btree

import (
	"github.com/strata-db/strata/pkg/store"
	"github.com/strata-db/strata/pkg/varint"
)

// Reclaim reports whether address still belongs to the tree's live
// structure, searching down from the root along the single path that
// could lead to it (guided by the minimum key recorded in the page or
// leaf at address) and marking every node on that path dirty so a
// subsequent Save rewrites them out of the segment being reclaimed.
func (m *Mutable) Reclaim(address store.Address) (bool, error) {
	rec, err := m.log.Read(address)
	if err != nil {
		return false, err
	}

	var key []byte
	switch rec.Type {
	case store.RecordTypeTreeLeaf:
		key, _, err = decodeLeaf(rec.Data)
		if err != nil {
			return false, err
		}
	case store.RecordTypeTreeBottomPage, store.RecordTypeTreeBottomRoot,
		store.RecordTypeTreeInternalPage, store.RecordTypeTreeInternalRoot:
		data := rec.Data
		if rec.Type == store.RecordTypeTreeBottomRoot || rec.Type == store.RecordTypeTreeInternalRoot {
			_, n, err := varint.Get(data)
			if err != nil {
				return false, err
			}
			data = data[n:]
		}
		pointers, err := decodePage(data)
		if err != nil {
			return false, err
		}
		if len(pointers) == 0 {
			return false, nil
		}
		key = pointers[0].key
	default:
		return false, nil
	}

	return m.reclaimPath(m.root, address, key)
}

// reclaimPath descends from n toward the subtree that should contain
// key, checking at each level whether the current node itself is the
// record being reclaimed (a page can be its own minimum-key pointer
// target at the root of its subtree) and marking every node it passes
// through dirty once a match is confirmed further down.
func (m *Mutable) reclaimPath(n *node, address store.Address, key []byte) (bool, error) {
	if n.addr == address {
		n.dirty = true
		return true, nil
	}

	if n.isBottom {
		i, exact := n.search(key)
		if !exact {
			return false, nil
		}
		if n.entries[i].childAddr == address {
			if _, err := n.leafValue(m.log, i); err != nil {
				return false, err
			}
			n.entries[i].childAddr = store.NullAddress
			n.dirty = true
			return true, nil
		}
		return false, nil
	}

	idx := n.descendIndex(key)
	if len(n.entries) == 0 {
		return false, nil
	}
	if n.entries[idx].childAddr == address {
		child, err := n.child(m.log, idx)
		if err != nil {
			return false, err
		}
		child.dirty = true
		n.dirty = true
		return true, nil
	}
	child, err := n.child(m.log, idx)
	if err != nil {
		return false, err
	}
	live, err := m.reclaimPath(child, address, key)
	if err != nil {
		return false, err
	}
	if live {
		n.dirty = true
	}
	return live, nil
}
