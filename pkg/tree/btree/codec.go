// Package btree implements the B+-tree index: a bottom level of leaf
// entries addressed individually, internal levels of sorted
// (key, child-address) pointer pages above it, and a two-level or
// three-or-more-level root record depending on tree height.
package btree

import (
	"fmt"

	"github.com/strata-db/strata/pkg/store"
	"github.com/strata-db/strata/pkg/varint"
)

// encodeLeaf serializes a single key/value entry. The value is
// whatever bytes remain after the key, so no explicit value length is
// stored.
func encodeLeaf(key, value []byte) []byte {
	buf := make([]byte, 0, varint.MaxLen+len(key)+len(value))
	buf = varint.Append(buf, uint64(len(key)))
	buf = append(buf, key...)
	buf = append(buf, value...)
	return buf
}

func decodeLeaf(data []byte) (key, value []byte, err error) {
	keyLen, n, err := varint.Get(data)
	if err != nil {
		return nil, nil, fmt.Errorf("btree: decoding leaf: %w", err)
	}
	data = data[n:]
	if uint64(len(data)) < keyLen {
		return nil, nil, fmt.Errorf("btree: leaf key truncated: %w", store.ErrDataCorruption)
	}
	return data[:keyLen], data[keyLen:], nil
}

// pagePointer is one entry of a bottom or internal page: the smallest
// key reachable through child, and child's log address.
type pagePointer struct {
	key  []byte
	addr store.Address
}

// encodePage serializes a sorted slice of pointers making up a bottom
// or internal page.
func encodePage(entries []pagePointer) []byte {
	buf := varint.Append(nil, uint64(len(entries)))
	for _, e := range entries {
		buf = varint.Append(buf, uint64(len(e.key)))
		buf = append(buf, e.key...)
		buf = varint.Append(buf, uint64(e.addr))
	}
	return buf
}

func decodePage(data []byte) ([]pagePointer, error) {
	count, n, err := varint.Get(data)
	if err != nil {
		return nil, fmt.Errorf("btree: decoding page entry count: %w", err)
	}
	data = data[n:]

	entries := make([]pagePointer, 0, count)
	for i := uint64(0); i < count; i++ {
		keyLen, n, err := varint.Get(data)
		if err != nil {
			return nil, fmt.Errorf("btree: decoding page key length: %w", err)
		}
		data = data[n:]
		if uint64(len(data)) < keyLen {
			return nil, fmt.Errorf("btree: page key truncated: %w", store.ErrDataCorruption)
		}
		key := append([]byte(nil), data[:keyLen]...)
		data = data[keyLen:]

		addr, n, err := varint.Get(data)
		if err != nil {
			return nil, fmt.Errorf("btree: decoding page child address: %w", err)
		}
		data = data[n:]

		entries = append(entries, pagePointer{key: key, addr: store.Address(addr)})
	}
	return entries, nil
}
