package patricia

import (
	"fmt"

	"github.com/strata-db/strata/pkg/store"
	"github.com/strata-db/strata/pkg/varint"
)

// node is one trie node materialized in memory: the byte prefix it
// consumes from its parent's remaining key, an optional value, and its
// children sorted by branch byte for binary search.
type node struct {
	dirty bool
	addr  store.Address

	prefix []byte

	hasValue bool
	value    []byte

	children []childSlot
}

// childSlot is one (branch byte, child) pair. child is loaded lazily
// from addr on first descent.
type childSlot struct {
	branch byte
	addr   store.Address
	child  *node
}

// emptyRoot returns a fresh, empty trie: the root of a brand new tree.
func emptyRoot() *node {
	return &node{dirty: true, addr: store.NullAddress}
}

// loadNode reads and decodes the trie node at addr. addr must not be a
// root record; use loadRoot for those, since a root record's data is
// prefixed with the trie's size.
func loadNode(log *store.Log, addr store.Address) (*node, error) {
	rec, err := log.Read(addr)
	if err != nil {
		return nil, err
	}
	if rec.Type != store.RecordTypeTreeNode {
		return nil, fmt.Errorf("patricia: address %d is not a trie node (type %d): %w", addr, rec.Type, store.ErrDataCorruption)
	}
	return nodeFromData(addr, rec.Data)
}

// loadRoot reads and decodes the root record at addr, returning the
// root node along with the trie's persisted size: a root record's data
// is varint(size) || encoded node, per the save protocol.
func loadRoot(log *store.Log, addr store.Address) (*node, int64, error) {
	rec, err := log.Read(addr)
	if err != nil {
		return nil, 0, err
	}
	if rec.Type != store.RecordTypeTreeNodeRoot {
		return nil, 0, fmt.Errorf("patricia: address %d is not a trie root (type %d): %w", addr, rec.Type, store.ErrDataCorruption)
	}
	size, n, err := varint.Get(rec.Data)
	if err != nil {
		return nil, 0, fmt.Errorf("patricia: decoding root size: %w", err)
	}
	node, err := nodeFromData(addr, rec.Data[n:])
	if err != nil {
		return nil, 0, err
	}
	return node, int64(size), nil
}

func nodeFromData(addr store.Address, data []byte) (*node, error) {
	prefix, hasValue, value, pointers, err := decodeNode(data)
	if err != nil {
		return nil, err
	}
	n := &node{addr: addr, prefix: prefix, hasValue: hasValue, value: value, children: make([]childSlot, len(pointers))}
	for i, p := range pointers {
		n.children[i] = childSlot{branch: p.branch, addr: p.addr}
	}
	return n, nil
}

// child returns slot i's nested node, loading it from the log on first
// use.
func (n *node) child(log *store.Log, i int) (*node, error) {
	s := &n.children[i]
	if s.child != nil {
		return s.child, nil
	}
	c, err := loadNode(log, s.addr)
	if err != nil {
		return nil, err
	}
	s.child = c
	return c, nil
}

// findChild returns the index of the child branching on b, or -1.
func (n *node) findChild(b byte) int {
	lo, hi := 0, len(n.children)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case n.children[mid].branch == b:
			return mid
		case n.children[mid].branch < b:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return -1
}

// childInsertIndex returns where a new child branching on b should be
// inserted to keep children sorted by branch byte.
func (n *node) childInsertIndex(b byte) int {
	lo, hi := 0, len(n.children)
	for lo < hi {
		mid := (lo + hi) / 2
		if n.children[mid].branch < b {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// commonPrefixLen returns how many leading bytes a and b share.
func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
