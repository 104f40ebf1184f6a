// Package patricia implements the radix (compressed trie) index: nodes
// carry a shared byte prefix consumed from their parent, an optional
// value, and a sorted array of (branch-byte, child) pointers. It is
// optimized for prefix-heavy key distributions relative to
// pkg/tree/btree, while sharing the same Tree/MutableTree/Cursor
// contract and save/reclaim protocol.
package patricia

import (
	"fmt"

	"github.com/strata-db/strata/pkg/store"
	"github.com/strata-db/strata/pkg/varint"
)

// pointer is one child slot: the byte that selects this child among
// its siblings, and the child's log address.
type pointer struct {
	branch byte
	addr   store.Address
}

// encodeNode serializes a node's prefix, optional value, and sorted
// child pointers.
func encodeNode(prefix []byte, hasValue bool, value []byte, children []pointer) []byte {
	buf := varint.Append(nil, uint64(len(prefix)))
	buf = append(buf, prefix...)
	if hasValue {
		buf = append(buf, 1)
		buf = varint.Append(buf, uint64(len(value)))
		buf = append(buf, value...)
	} else {
		buf = append(buf, 0)
	}
	buf = varint.Append(buf, uint64(len(children)))
	for _, c := range children {
		buf = append(buf, c.branch)
		buf = varint.Append(buf, uint64(c.addr))
	}
	return buf
}

func decodeNode(data []byte) (prefix []byte, hasValue bool, value []byte, children []pointer, err error) {
	prefixLen, n, err := varint.Get(data)
	if err != nil {
		return nil, false, nil, nil, fmt.Errorf("patricia: decoding prefix length: %w", err)
	}
	data = data[n:]
	if uint64(len(data)) < prefixLen {
		return nil, false, nil, nil, fmt.Errorf("patricia: prefix truncated: %w", store.ErrDataCorruption)
	}
	prefix = append([]byte(nil), data[:prefixLen]...)
	data = data[prefixLen:]

	if len(data) < 1 {
		return nil, false, nil, nil, fmt.Errorf("patricia: missing value flag: %w", store.ErrDataCorruption)
	}
	hasValue = data[0] != 0
	data = data[1:]
	if hasValue {
		valueLen, n, err := varint.Get(data)
		if err != nil {
			return nil, false, nil, nil, fmt.Errorf("patricia: decoding value length: %w", err)
		}
		data = data[n:]
		if uint64(len(data)) < valueLen {
			return nil, false, nil, nil, fmt.Errorf("patricia: value truncated: %w", store.ErrDataCorruption)
		}
		value = append([]byte(nil), data[:valueLen]...)
		data = data[valueLen:]
	}

	count, n, err := varint.Get(data)
	if err != nil {
		return nil, false, nil, nil, fmt.Errorf("patricia: decoding child count: %w", err)
	}
	data = data[n:]

	children = make([]pointer, 0, count)
	for i := uint64(0); i < count; i++ {
		if len(data) < 1 {
			return nil, false, nil, nil, fmt.Errorf("patricia: child branch byte truncated: %w", store.ErrDataCorruption)
		}
		branch := data[0]
		data = data[1:]
		addr, n, err := varint.Get(data)
		if err != nil {
			return nil, false, nil, nil, fmt.Errorf("patricia: decoding child address: %w", err)
		}
		data = data[n:]
		children = append(children, pointer{branch: branch, addr: store.Address(addr)})
	}
	return prefix, hasValue, value, children, nil
}
