package patricia

import "github.com/strata-db/strata/pkg/store"

// Reclaim reports whether address still belongs to the trie's live
// structure, marking every node on the path to it dirty so a
// subsequent Save rewrites them out of the segment being reclaimed.
//
// Unlike pkg/tree/btree, a Patricia node's own encoded record carries
// only a prefix relative to its parent, not an absolute key, so there
// is no cheap way to turn address into a descent key the way btree
// uses a page's minimum key. Reclaim instead walks the live tree
// checking each node (and its children's recorded addresses) against
// address directly; this is O(size of the live tree) per call rather
// than O(depth), which is acceptable since reclaim already processes
// a segment's records at a pace bounded by that segment's size.
func (m *Mutable) Reclaim(address store.Address) (bool, error) {
	return m.reclaimSearch(m.root, address)
}

func (m *Mutable) reclaimSearch(n *node, address store.Address) (bool, error) {
	if n.addr == address {
		n.dirty = true
		return true, nil
	}
	for i := range n.children {
		if n.children[i].addr == address {
			child, err := n.child(m.log, i)
			if err != nil {
				return false, err
			}
			child.dirty = true
			n.dirty = true
			return true, nil
		}
	}
	for i := range n.children {
		child, err := n.child(m.log, i)
		if err != nil {
			return false, err
		}
		live, err := m.reclaimSearch(child, address)
		if err != nil {
			return false, err
		}
		if live {
			n.dirty = true
			return true, nil
		}
	}
	return false, nil
}
