package btree

import (
	"bytes"
	"fmt"

	"github.com/strata-db/strata/pkg/store"
	"github.com/strata-db/strata/pkg/varint"
)

// encodeDupValues packs a sorted, duplicate-free list of values under
// one key into a single leaf value, used when the tree is opened with
// duplicates enabled. This folds the "nested single-value sub-tree"
// the spec describes into a flat list: every value for a key is small
// enough, and a key's duplicate set changes together, so there is no
// benefit to the extra indirection of a real nested tree here.
func encodeDupValues(values [][]byte) []byte {
	buf := varint.Append(nil, uint64(len(values)))
	for _, v := range values {
		buf = varint.Append(buf, uint64(len(v)))
		buf = append(buf, v...)
	}
	return buf
}

func decodeDupValues(data []byte) ([][]byte, error) {
	count, n, err := varint.Get(data)
	if err != nil {
		return nil, fmt.Errorf("btree: decoding duplicate count: %w", err)
	}
	data = data[n:]

	values := make([][]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		vlen, n, err := varint.Get(data)
		if err != nil {
			return nil, fmt.Errorf("btree: decoding duplicate value length: %w", err)
		}
		data = data[n:]
		if uint64(len(data)) < vlen {
			return nil, fmt.Errorf("btree: duplicate value truncated: %w", store.ErrDataCorruption)
		}
		values = append(values, append([]byte(nil), data[:vlen]...))
		data = data[vlen:]
	}
	return values, nil
}

// insertDupValue inserts v into a sorted, duplicate-free value list.
func insertDupValue(values [][]byte, v []byte) [][]byte {
	i, found := searchValues(values, v)
	if found {
		return values
	}
	values = append(values, nil)
	copy(values[i+1:], values[i:])
	values[i] = v
	return values
}

// removeDupValue removes v from a sorted, duplicate-free value list,
// reporting whether it was present.
func removeDupValue(values [][]byte, v []byte) ([][]byte, bool) {
	i, found := searchValues(values, v)
	if !found {
		return values, false
	}
	values = append(values[:i], values[i+1:]...)
	return values, true
}

func searchValues(values [][]byte, v []byte) (int, bool) {
	lo, hi := 0, len(values)
	for lo < hi {
		mid := (lo + hi) / 2
		switch bytes.Compare(values[mid], v) {
		case 0:
			return mid, true
		case -1:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return lo, false
}
