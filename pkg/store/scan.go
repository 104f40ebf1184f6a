package store

import "errors"

// ScanSegment walks every record stored in the segment starting at
// segAddr, in address order, invoking fn with each record's address and
// decoded contents. The walk follows multi-page continuations the same
// way Read does. Null padding ends the current page (the rest of that
// page is free space) and the walk goes on with the next page; it stops,
// without error, once the segment's pages are exhausted. fn may return ErrStopScan
// to end the walk early, or any other error to abort it.
func (l *Log) ScanSegment(segAddr Address, fn func(addr Address, rec Loggable) error) error {
	pageSize := l.cfg.PageSize
	pageCap := pageSize - HashSuffixSize

	l.mu.Lock()
	seg, err := l.blocks.get(segAddr)
	l.mu.Unlock()
	if err != nil {
		return err
	}
	numPages := seg.length / int64(pageSize)

	var pendingData []byte
	var pendingType RecordType
	var pendingStructureID uint64
	var pendingWant int
	var pendingStart Address
	inMultiPage := false

	for pi := int64(0); pi < numPages; pi++ {
		pageRel := Address(pi * int64(pageSize))
		page, err := l.readPageCached(segAddr, pageRel, seg)
		if err != nil {
			return err
		}
		region := page.dataRegion()
		off := 0
		for off < pageCap {
			if inMultiPage {
				take := pendingWant - len(pendingData)
				if take > pageCap-off {
					take = pageCap - off
				}
				pendingData = append(pendingData, region[off:off+take]...)
				off += take
				if len(pendingData) < pendingWant {
					break
				}
				inMultiPage = false
				if err := fn(pendingStart, Loggable{Type: pendingType, StructureID: pendingStructureID, Data: pendingData}); err != nil {
					if errors.Is(err, ErrStopScan) {
						return nil
					}
					return err
				}
				continue
			}

			typ, sid, dataLen, n, ok, err := decodeHeader(region[off:])
			if err != nil {
				return err
			}
			if !ok {
				// null padding: rest of the page is free space.
				break
			}
			recStart := segAddr + pageRel + Address(off)
			remaining := pageCap - off - n
			if dataLen <= remaining {
				data := append([]byte(nil), region[off+n:off+n+dataLen]...)
				off += n + dataLen
				if err := fn(recStart, Loggable{Type: typ, StructureID: sid, Data: data}); err != nil {
					if errors.Is(err, ErrStopScan) {
						return nil
					}
					return err
				}
				continue
			}

			pendingType, pendingStructureID, pendingWant, pendingStart = typ, sid, dataLen, recStart
			pendingData = append([]byte(nil), region[off+n:off+pageCap]...)
			inMultiPage = true
			off = pageCap
		}
	}
	return nil
}
