package btree

import (
	"bytes"
	"fmt"

	"github.com/strata-db/strata/pkg/store"
	"github.com/strata-db/strata/pkg/varint"
)

// node is one bottom or internal page, materialized in memory. A node
// loaded from the log but never mutated keeps addr pointing at its
// log record and dirty=false; Save only has to walk and re-encode the
// nodes on a path that changed.
type node struct {
	isBottom bool
	dirty    bool
	addr     store.Address
	entries  []entry
}

// entry is one (key, child) pointer. For a bottom node, child is a
// leaf entry: its value is cached directly. For an internal node,
// child is a nested node, loaded lazily from childAddr on first
// descent.
type entry struct {
	key       []byte
	childAddr store.Address

	child *node // internal node children, loaded lazily

	value       []byte // bottom node leaf value
	valueLoaded bool
}

// emptyRoot returns a fresh, empty bottom node: the root of a brand
// new tree.
func emptyRoot() *node {
	return &node{isBottom: true, dirty: true, addr: store.NullAddress}
}

// loadNode reads and decodes the node at addr. addr must not be a root
// record; use loadRoot for those, since a root record's data is
// prefixed with the tree's size.
func loadNode(log *store.Log, addr store.Address) (*node, error) {
	rec, err := log.Read(addr)
	if err != nil {
		return nil, err
	}
	switch rec.Type {
	case store.RecordTypeTreeBottomPage:
		return nodeFromPage(true, addr, rec.Data)
	case store.RecordTypeTreeInternalPage:
		return nodeFromPage(false, addr, rec.Data)
	default:
		return nil, fmt.Errorf("btree: address %d is not a tree page (type %d): %w", addr, rec.Type, store.ErrDataCorruption)
	}
}

// loadRoot reads and decodes the root record at addr, returning the
// root node along with the tree's persisted size: a root record's data
// is varint(size) || encoded page, per the save protocol.
func loadRoot(log *store.Log, addr store.Address) (*node, int64, error) {
	rec, err := log.Read(addr)
	if err != nil {
		return nil, 0, err
	}

	var isBottom bool
	switch rec.Type {
	case store.RecordTypeTreeBottomRoot:
		isBottom = true
	case store.RecordTypeTreeInternalRoot:
		isBottom = false
	default:
		return nil, 0, fmt.Errorf("btree: address %d is not a tree root (type %d): %w", addr, rec.Type, store.ErrDataCorruption)
	}

	size, n, err := varint.Get(rec.Data)
	if err != nil {
		return nil, 0, fmt.Errorf("btree: decoding root size: %w", err)
	}
	node, err := nodeFromPage(isBottom, addr, rec.Data[n:])
	if err != nil {
		return nil, 0, err
	}
	return node, int64(size), nil
}

func nodeFromPage(isBottom bool, addr store.Address, data []byte) (*node, error) {
	pointers, err := decodePage(data)
	if err != nil {
		return nil, err
	}
	n := &node{isBottom: isBottom, addr: addr, entries: make([]entry, len(pointers))}
	for i, p := range pointers {
		n.entries[i] = entry{key: p.key, childAddr: p.addr}
	}
	return n, nil
}

// child returns e's nested node, loading it from the log on first use.
func (n *node) child(log *store.Log, i int) (*node, error) {
	e := &n.entries[i]
	if e.child != nil {
		return e.child, nil
	}
	c, err := loadNode(log, e.childAddr)
	if err != nil {
		return nil, err
	}
	e.child = c
	return c, nil
}

// leafValue returns e's value, reading the underlying leaf record on
// first use.
func (n *node) leafValue(log *store.Log, i int) ([]byte, error) {
	e := &n.entries[i]
	if e.valueLoaded {
		return e.value, nil
	}
	rec, err := log.Read(e.childAddr)
	if err != nil {
		return nil, err
	}
	if rec.Type != store.RecordTypeTreeLeaf {
		return nil, fmt.Errorf("btree: address %d is not a leaf (type %d): %w", e.childAddr, rec.Type, store.ErrDataCorruption)
	}
	_, value, err := decodeLeaf(rec.Data)
	if err != nil {
		return nil, err
	}
	e.value = value
	e.valueLoaded = true
	return value, nil
}

// search returns the index of the first entry whose key is >= key,
// and whether that entry's key equals key exactly.
func (n *node) search(key []byte) (int, bool) {
	lo, hi := 0, len(n.entries)
	for lo < hi {
		mid := (lo + hi) / 2
		c := bytes.Compare(n.entries[mid].key, key)
		if c == 0 {
			return mid, true
		} else if c < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, false
}

// descendIndex returns the index of the child an internal node should
// descend into to find key: the last entry whose key is <= key, or 0
// if key is less than every entry (descending into the leftmost
// child, which holds the open lower bound).
func (n *node) descendIndex(key []byte) int {
	i, exact := n.search(key)
	if exact {
		return i
	}
	if i == 0 {
		return 0
	}
	return i - 1
}
