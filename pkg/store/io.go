package store

import "fmt"

// readPage reads the page at pageAddress (an offset relative to this
// segment's own start) into a freshly allocated Page.
func (s *segment) readPage(pageAddress Address, pageSize int) (Page, error) {
	p := newPage(pageSize)
	n, err := s.data.ReadAt(p, int64(pageAddress))
	if err != nil {
		return nil, fmt.Errorf("store: reading page at %d in segment %d: %w", pageAddress, s.address, err)
	}
	if n != pageSize {
		return nil, fmt.Errorf("store: short page read at %d in segment %d: %w", pageAddress, s.address, ErrDataCorruption)
	}
	return p, nil
}

// writePage writes a full page at pageAddress, extending the segment's
// tracked length if this is the page at its current end.
func (s *segment) writePage(pageAddress Address, p Page) error {
	if _, err := s.data.WriteAt(p, int64(pageAddress)); err != nil {
		return fmt.Errorf("store: writing page at %d in segment %d: %w", pageAddress, s.address, err)
	}
	end := int64(pageAddress) + int64(len(p))
	if end > s.length {
		s.length = end
	}
	return nil
}

// sync flushes the segment's data to stable storage.
func (s *segment) sync() error {
	if err := s.data.Sync(); err != nil {
		return fmt.Errorf("store: syncing segment %d: %w", s.address, err)
	}
	return nil
}
