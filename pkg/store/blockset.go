package store

import "fmt"

// segment is one open segment, backed by whatever DataWriter its
// SegmentStore handed back: a real file in production, an in-memory
// buffer in tests.
type segment struct {
	address Address // starting address, also its file-address
	data    DataWriter
	length  int64 // number of bytes written so far
}

// blockSet tracks every segment currently backing a log, keyed by
// starting address, mirroring the teacher's sorted WAL-file-list
// bookkeeping in FindWALFiles but held open for random access reads.
// It delegates all persistence to a SegmentStore so a Log never talks
// to the filesystem directly.
type blockSet struct {
	store    SegmentStore
	segments map[Address]*segment
}

func newBlockSet(store SegmentStore) *blockSet {
	return &blockSet{store: store, segments: make(map[Address]*segment)}
}

// open opens (creating if necessary) the segment starting at address.
func (bs *blockSet) open(address Address, create bool) (*segment, error) {
	if s, ok := bs.segments[address]; ok {
		return s, nil
	}
	data, err := bs.store.Open(address, create)
	if err != nil {
		return nil, err
	}
	s := &segment{address: address, data: data, length: data.Len()}
	bs.segments[address] = s
	return s, nil
}

// get returns the already-open segment for address, or ErrBlockNotFound.
func (bs *blockSet) get(address Address) (*segment, error) {
	s, ok := bs.segments[address]
	if !ok {
		return nil, ErrBlockNotFound
	}
	return s, nil
}

// remove closes and deletes the segment starting at address, mirroring
// what the reclaimer does once every live record has been relocated out
// of it.
func (bs *blockSet) remove(address Address) error {
	s, ok := bs.segments[address]
	if !ok {
		return ErrBlockNotFound
	}
	delete(bs.segments, address)
	if err := s.data.Close(); err != nil {
		return fmt.Errorf("store: closing segment %d: %w", address, err)
	}
	if err := bs.store.Remove(address); err != nil {
		return err
	}
	return nil
}

// closeAll closes every open segment, used during Log.Close.
func (bs *blockSet) closeAll() error {
	var firstErr error
	for addr, s := range bs.segments {
		if err := s.data.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("store: closing segment %d: %w", addr, err)
		}
	}
	bs.segments = make(map[Address]*segment)
	return firstErr
}
