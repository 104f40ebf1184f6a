package store

import (
	"fmt"
	"sort"

	"github.com/strata-db/strata/pkg/varint"
)

// DatabaseRoot is the record written at the end of every successful
// write-transaction's worth of records: the address of each named
// tree's current root page, plus a back-pointer to the previous root so
// recovery can walk roots backward without a separate index.
type DatabaseRoot struct {
	PreviousRoot Address
	Trees        map[string]Address
}

// encodeDatabaseRoot serializes a DatabaseRoot's data payload (the
// header is added separately by the log on write). Tree names are
// written in sorted order so two roots with the same contents encode
// identically, which the reclaimer and tests both rely on.
func encodeDatabaseRoot(r DatabaseRoot) []byte {
	names := make([]string, 0, len(r.Trees))
	for name := range r.Trees {
		names = append(names, name)
	}
	sort.Strings(names)

	buf := make([]byte, 0, 16+len(names)*24)
	buf = varint.Append(buf, uint64(r.PreviousRoot))
	buf = varint.Append(buf, uint64(len(names)))
	for _, name := range names {
		buf = varint.Append(buf, uint64(len(name)))
		buf = append(buf, name...)
		buf = varint.Append(buf, uint64(r.Trees[name]))
	}
	return buf
}

// decodeDatabaseRoot is the inverse of encodeDatabaseRoot.
func decodeDatabaseRoot(data []byte) (DatabaseRoot, error) {
	var r DatabaseRoot
	prev, n, err := varint.Get(data)
	if err != nil {
		return r, fmt.Errorf("store: decoding database root: %w", err)
	}
	r.PreviousRoot = Address(prev)
	data = data[n:]

	count, n, err := varint.Get(data)
	if err != nil {
		return r, fmt.Errorf("store: decoding database root tree count: %w", err)
	}
	data = data[n:]

	r.Trees = make(map[string]Address, count)
	for i := uint64(0); i < count; i++ {
		nameLen, n, err := varint.Get(data)
		if err != nil {
			return r, fmt.Errorf("store: decoding database root tree name length: %w", err)
		}
		data = data[n:]
		if uint64(len(data)) < nameLen {
			return r, fmt.Errorf("store: decoding database root tree name: %w", ErrDataCorruption)
		}
		name := string(data[:nameLen])
		data = data[nameLen:]

		addr, n, err := varint.Get(data)
		if err != nil {
			return r, fmt.Errorf("store: decoding database root tree address: %w", err)
		}
		data = data[n:]
		r.Trees[name] = Address(addr)
	}
	return r, nil
}
