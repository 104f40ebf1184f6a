// Package store implements the append-only log of fixed-size segments
// that backs a strata database: the page-level write and read path,
// segment file management, startup recovery, and the database-root
// record chain that anchors named trees across writes.
package store

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/strata-db/strata/pkg/cipher"
	"github.com/strata-db/strata/pkg/common/log"
	"github.com/strata-db/strata/pkg/config"
)

// Log is the append-only record store. A Log is safe for one writer and
// any number of concurrent readers: writers serialize through
// BeginWrite/EndWrite, which hold l.mu for the whole batch. Read takes
// l.mu briefly to look up a segment, so a reader waits while a batch is
// open. HighAddress reports what the last EndWrite published; Read
// does not check addresses against it.
type Log struct {
	cfg           *config.Config
	store         SegmentStore
	cache         PageCache
	lock          io.Closer
	cryptProvider cipher.StreamCipherProvider

	mu       sync.Mutex
	blocks   *blockSet
	segAddrs []Address

	curSeg       *segment
	curPageStart Address // offset of curPage's first byte, relative to curSeg
	curPage      Page
	curPageUsed  int // bytes of curPage's data region written so far

	currentHighAddress Address       // next free address; advances during a write batch
	highAddress        atomic.Uint64 // published; visible to readers once a batch ends

	lastRoot        DatabaseRoot
	lastRootAddress Address
	lastRootEnd     Address // address just past the last recovered root record
	haveRoot        bool

	listen listeners

	writing bool
	closed  bool
}

// Open opens or creates the log rooted at dir, replaying any existing
// segments to recover the high address and the most recent database
// root.
func Open(dir string, cfg *config.Config, cache PageCache) (*Log, error) {
	return OpenWithStore(NewFileSegmentStore(dir), cfg, cache)
}

// OpenWithStore is Open against an arbitrary SegmentStore, letting tests
// exercise recovery and the page write path against an in-memory
// backend instead of real segment files.
func OpenWithStore(st SegmentStore, cfg *config.Config, cache PageCache) (*Log, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cache == nil {
		cache = noCache{}
	}
	provider, err := buildCipherProvider(cfg)
	if err != nil {
		return nil, err
	}

	var lock io.Closer
	if !cfg.FileLockDisabled {
		lock, err = st.Lock(time.Duration(cfg.LockTimeoutMillis) * time.Millisecond)
		if err != nil {
			return nil, err
		}
	}

	addrs, err := st.Discover()
	if err != nil {
		if lock != nil {
			lock.Close()
		}
		return nil, err
	}

	l := &Log{
		cfg:           cfg,
		store:         st,
		cache:         cache,
		lock:          lock,
		cryptProvider: provider,
		blocks:        newBlockSet(st),
		segAddrs:      addrs,
	}

	if err := l.recover(addrs); err != nil {
		l.Close()
		return nil, err
	}
	return l, nil
}

// buildCipherProvider resolves cfg's cipher settings into a concrete
// provider. An empty CipherID means the log is unencrypted.
func buildCipherProvider(cfg *config.Config) (cipher.StreamCipherProvider, error) {
	switch cfg.CipherID {
	case "", "none":
		return cipher.NoopProvider{}, nil
	case "aes-ctr":
		p, err := cipher.NewAESCTRProvider(cfg.CipherKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSetting, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("store: unknown cipher id %q: %w", cfg.CipherID, ErrInvalidSetting)
	}
}

// cryptPage enciphers or deciphers p's data region in place, keyed by the
// page's own absolute log address. AES-CTR (and the identity provider) are
// both self-inverse, so the same call serves encryption on the write path
// and decryption on the read path.
func (l *Log) cryptPage(address Address, p Page) error {
	region := p.dataRegion()
	return cipher.Crypt(l.cryptProvider, l.cfg.CipherBasicIV, uint64(address), region, region)
}

// recoveryFailure reports a terminal consistency-scan failure at segment
// segAddr, page pi. If a cipher is configured and no database root has
// been recovered yet, the failure is reported as a key/IV mismatch
// (ErrInvalidCipherParameters) rather than generic corruption: an
// undamaged log enciphered with the wrong key decodes as noise from its
// very first record onward, and that is the only signal recovery has to
// tell the two apart.
func (l *Log) recoveryFailure(segAddr Address, pi int64) error {
	if !l.haveRoot && l.cryptProvider.ID() != "" {
		return fmt.Errorf("store: segment %d page %d: %w", segAddr, pi, ErrInvalidCipherParameters)
	}
	return fmt.Errorf("store: segment %d page %d: %w", segAddr, pi, ErrDataCorruption)
}

// recover replays every known segment in order, validating page hashes
// and decoding records to find the current high address and the most
// recent database root. A page that fails its hash check, or a record
// whose header fails to decode, marks the scan as corrupt: depending on
// cfg.ClearInvalidLog the log is either wiped outright or truncated back
// to its last valid root.
func (l *Log) recover(addrs []Address) error {
	pageSize := l.cfg.PageSize
	pageCap := pageSize - HashSuffixSize

	if len(addrs) == 0 {
		seg, err := l.rollSegment(0)
		if err != nil {
			return err
		}
		l.curSeg = seg
		l.curPageStart = 0
		l.curPage = newPage(pageSize)
		l.curPageUsed = 0
		l.currentHighAddress = 0
		l.highAddress.Store(0)
		return nil
	}

	var global Address
	var pendingData []byte // bytes of a not-yet-complete multi-page record
	var pendingType RecordType
	var pendingStructureID uint64
	var pendingWant int
	var pendingStart Address
	inMultiPage := false

	var corrupted bool
	var corruptSeg Address
	var corruptPage int64

scan:
	for _, segAddr := range addrs {
		seg, err := l.blocks.open(segAddr, false)
		if err != nil {
			return err
		}
		numPages := seg.length / int64(pageSize)
		for pi := int64(0); pi < numPages; pi++ {
			pageRel := Address(pi * int64(pageSize))
			page, err := seg.readPage(pageRel, pageSize)
			if err != nil {
				return err
			}
			if err := page.verify(); err != nil {
				corrupted, corruptSeg, corruptPage = true, segAddr, pi
				break scan
			}
			if err := l.cryptPage(segAddr+pageRel, page); err != nil {
				return fmt.Errorf("store: segment %d page %d: %w", segAddr, pi, err)
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
					global = segAddr + pageRel + Address(off)
					if len(pendingData) == pendingWant {
						l.observeRecovered(pendingType, pendingStructureID, pendingData, pendingStart, global)
						inMultiPage = false
					} else {
						break // continues on next page
					}
					continue
				}

				typ, sid, dataLen, n, ok, err := decodeHeader(region[off:])
				if err != nil {
					corrupted, corruptSeg, corruptPage = true, segAddr, pi
					break scan
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
					global = segAddr + pageRel + Address(off)
					l.observeRecovered(typ, sid, data, recStart, global)
				} else {
					pendingType, pendingStructureID, pendingWant, pendingStart = typ, sid, dataLen, recStart
					pendingData = append([]byte(nil), region[off+n:off+pageCap]...)
					inMultiPage = true
					off = pageCap
					global = segAddr + pageRel + Address(off)
				}
			}
		}
	}

	if corrupted {
		if l.cfg.ClearInvalidLog {
			return l.wipe()
		}
		return l.truncateToLastRoot(corruptSeg, corruptPage)
	}

	if inMultiPage {
		// torn multi-page record: roll back to just before it started.
		global = pendingStart
	}

	l.currentHighAddress = global
	l.highAddress.Store(uint64(global))

	segAddr := fileAddress(global, l.cfg.FileLengthBound)
	seg, err := l.blocks.open(segAddr, true)
	if err != nil {
		return err
	}
	l.curSeg = seg
	l.curPageStart = pageAddress(global-segAddr, pageSize)
	l.curPageUsed = int(global - segAddr - l.curPageStart)
	page, err := seg.readPage(l.curPageStart, pageSize)
	if err != nil {
		return err
	}
	if err := l.cryptPage(segAddr+l.curPageStart, page); err != nil {
		return err
	}
	// Bytes beyond the recovered prefix may belong to a page the scan
	// rejected; only the validated prefix is trustworthy.
	for i := l.curPageUsed; i < pageCap; i++ {
		page[i] = 0
	}
	l.curPage = page
	return nil
}

// wipe discards every existing segment and starts a fresh, empty log.
// It is the ClearInvalidLog recovery path: the caller has told us to
// throw away unrecoverable data rather than try to salvage a prefix.
func (l *Log) wipe() error {
	log.Warn("store: clear-invalid-log set, wiping %d segment(s) after detecting corruption", len(l.segAddrs))
	if err := l.blocks.closeAll(); err != nil {
		return err
	}
	for _, addr := range l.segAddrs {
		if err := l.store.Remove(addr); err != nil {
			return err
		}
	}
	l.segAddrs = nil
	l.blocks = newBlockSet(l.store)
	l.lastRoot = DatabaseRoot{}
	l.lastRootAddress = 0
	l.lastRootEnd = 0
	l.haveRoot = false

	seg, err := l.rollSegment(0)
	if err != nil {
		return err
	}
	l.curSeg = seg
	l.curPageStart = 0
	l.curPage = newPage(l.cfg.PageSize)
	l.curPageUsed = 0
	l.currentHighAddress = 0
	l.highAddress.Store(0)
	return nil
}

// truncateToLastRoot discards every record after the last recovered
// database root. Segments entirely beyond the root's segment are
// deleted outright; the segment holding the root's final page is
// rewritten with its trailing bytes zeroed and its hash rebuilt, via a
// staged copy promoted into place so the rewrite is atomic from the
// filesystem's point of view. If no root was ever recovered there is
// nothing to truncate back to, and recovery fails.
func (l *Log) truncateToLastRoot(corruptSeg Address, corruptPage int64) error {
	if !l.haveRoot {
		return l.recoveryFailure(corruptSeg, corruptPage)
	}
	log.Warn("store: truncating log to last valid root at %d after detecting corruption in segment %d page %d", l.lastRootAddress, corruptSeg, corruptPage)

	pageSize := l.cfg.PageSize
	pageCap := pageSize - HashSuffixSize
	rootSegAddr := fileAddress(l.lastRootEnd, l.cfg.FileLengthBound)
	pageStart := pageAddress(l.lastRootEnd-rootSegAddr, pageSize)
	used := int(l.lastRootEnd - rootSegAddr - pageStart)

	var kept []Address
	for _, addr := range l.segAddrs {
		if addr <= rootSegAddr {
			kept = append(kept, addr)
			continue
		}
		if _, err := l.blocks.open(addr, false); err != nil {
			return err
		}
		if err := l.blocks.remove(addr); err != nil {
			return err
		}
	}
	l.segAddrs = kept

	oldSeg, err := l.blocks.open(rootSegAddr, false)
	if err != nil {
		return err
	}

	page, err := oldSeg.readPage(pageStart, pageSize)
	if err != nil {
		return err
	}
	if err := l.cryptPage(rootSegAddr+pageStart, page); err != nil {
		return err
	}
	region := page.dataRegion()
	for i := used; i < pageCap; i++ {
		region[i] = 0
	}
	if err := l.cryptPage(rootSegAddr+pageStart, page); err != nil {
		return err
	}
	page.finalizeHash()

	staging, err := l.store.OpenStaging()
	if err != nil {
		return err
	}
	if err := copySegmentPrefix(oldSeg.data, staging, int64(pageStart)); err != nil {
		return err
	}
	if _, err := staging.WriteAt(page, int64(pageStart)); err != nil {
		return err
	}
	if err := l.store.Promote(rootSegAddr, staging); err != nil {
		return err
	}
	if err := oldSeg.data.Close(); err != nil {
		return err
	}
	delete(l.blocks.segments, rootSegAddr)

	seg, err := l.blocks.open(rootSegAddr, false)
	if err != nil {
		return err
	}
	seg.length = int64(pageStart) + int64(pageSize)

	decrypted, err := seg.readPage(pageStart, pageSize)
	if err != nil {
		return err
	}
	if err := l.cryptPage(rootSegAddr+pageStart, decrypted); err != nil {
		return err
	}

	l.currentHighAddress = l.lastRootEnd
	l.highAddress.Store(uint64(l.lastRootEnd))
	l.curSeg = seg
	l.curPageStart = pageStart
	l.curPageUsed = used
	l.curPage = decrypted
	return nil
}

// copySegmentPrefix copies the first n bytes of src into dst unchanged.
// Used while rewriting a segment's tail: every page before the one
// being corrected carries over as-is, ciphertext and hash suffix alike.
func copySegmentPrefix(src DataReader, dst DataWriter, n int64) error {
	const chunk = 64 * 1024
	buf := make([]byte, chunk)
	var off int64
	for off < n {
		want := n - off
		if want > chunk {
			want = chunk
		}
		nr, err := src.ReadAt(buf[:want], off)
		if err != nil && err != io.EOF {
			return err
		}
		if nr == 0 {
			break
		}
		if _, err := dst.WriteAt(buf[:nr], off); err != nil {
			return err
		}
		off += int64(nr)
	}
	return nil
}

// observeRecovered updates the recovered database-root bookkeeping as
// records are replayed. Only RecordTypeDatabaseRoot records matter here;
// tree pages are reclaimed into memory lazily by their owning trees.
func (l *Log) observeRecovered(typ RecordType, _ uint64, data []byte, addr, end Address) {
	if typ != RecordTypeDatabaseRoot {
		return
	}
	root, err := decodeDatabaseRoot(data)
	if err != nil {
		return
	}
	l.lastRoot = root
	l.lastRootAddress = addr
	l.lastRootEnd = end
	l.haveRoot = true
}

// Root returns the most recently recovered or committed database root.
func (l *Log) Root() (DatabaseRoot, Address, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastRoot, l.lastRootAddress, l.haveRoot
}

// HighAddress returns the address one past the last record visible to
// readers.
func (l *Log) HighAddress() Address {
	return Address(l.highAddress.Load())
}

// BeginWrite opens a write batch. The caller must call EndWrite exactly
// once before any other writer may proceed.
func (l *Log) BeginWrite() {
	l.mu.Lock()
	l.writing = true
}

// EndWrite flushes the in-progress tail page, optionally fsyncs, and
// publishes the new high address to readers.
func (l *Log) EndWrite() error {
	defer func() {
		l.writing = false
		l.mu.Unlock()
	}()
	if err := l.flushCurrentPage(); err != nil {
		return err
	}
	if l.cfg.SyncDurable {
		if err := l.curSeg.sync(); err != nil {
			return err
		}
	}
	l.highAddress.Store(uint64(l.currentHighAddress))
	return nil
}

// Append writes one record within the current write batch and returns
// its address. It must be called between BeginWrite and EndWrite.
func (l *Log) Append(typ RecordType, structureID uint64, data []byte) (Address, error) {
	if !l.writing {
		return 0, fmt.Errorf("store: Append called outside a write batch: %w", ErrEngineFault)
	}
	if l.closed {
		return 0, ErrClosed
	}

	pageCap := l.cfg.PageSize - HashSuffixSize
	hdrLen := headerLen(structureID, len(data))
	total := hdrLen + len(data)
	if total > pageCap*maxSegmentPages(l.cfg) {
		return 0, ErrTooBigLoggable
	}

	if total > pageCap {
		return l.appendMultiPage(typ, structureID, data)
	}

	if l.curPageUsed+total > pageCap {
		if err := l.rollPage(); err != nil {
			return 0, err
		}
	}
	start := l.curSeg.address + l.curPageStart + Address(l.curPageUsed)
	region := l.curPage.dataRegion()
	n := copy(region[l.curPageUsed:], encodeHeader(nil, typ, structureID, len(data)))
	copy(region[l.curPageUsed+n:], data)
	l.curPageUsed += total
	l.currentHighAddress = l.curSeg.address + l.curPageStart + Address(l.curPageUsed)
	if err := l.flushCurrentPage(); err != nil {
		return 0, err
	}
	return start, nil
}

// appendMultiPage writes a record whose header+data exceed one page's
// capacity, spanning as many consecutive fresh pages as needed.
func (l *Log) appendMultiPage(typ RecordType, structureID uint64, data []byte) (Address, error) {
	pageCap := l.cfg.PageSize - HashSuffixSize
	if l.curPageUsed > 0 && pageCap-l.curPageUsed < l.cfg.SmallRecordThreshold() {
		// too little room left on the tail page to be worth using;
		// start the spanning record on a fresh page instead.
		if err := l.rollPage(); err != nil {
			return 0, err
		}
	}

	start := l.curSeg.address + l.curPageStart + Address(l.curPageUsed)
	hdr := encodeHeader(nil, typ, structureID, len(data))
	buf := append(hdr, data...)

	for len(buf) > 0 {
		region := l.curPage.dataRegion()
		room := pageCap - l.curPageUsed
		n := len(buf)
		if n > room {
			n = room
		}
		copy(region[l.curPageUsed:], buf[:n])
		buf = buf[n:]
		l.curPageUsed += n
		l.currentHighAddress = l.curSeg.address + l.curPageStart + Address(l.curPageUsed)
		if err := l.flushCurrentPage(); err != nil {
			return 0, err
		}
		if len(buf) > 0 {
			if err := l.rollPage(); err != nil {
				return 0, err
			}
		}
	}
	return start, nil
}

// flushCurrentPage finalizes and writes the in-progress tail page. It is
// safe to call repeatedly as the page continues to fill: curPage itself
// stays plaintext so later Appends can keep writing into it, and each
// flush enciphers a fresh copy for the hash and the on-disk write.
func (l *Log) flushCurrentPage() error {
	out := append(Page(nil), l.curPage...)
	if err := l.cryptPage(l.curSeg.address+l.curPageStart, out); err != nil {
		return err
	}
	out.finalizeHash()
	return l.curSeg.writePage(l.curPageStart, out)
}

// rollPage advances the write cursor to a fresh page, rolling over to a
// new segment if the current one is full.
func (l *Log) rollPage() error {
	nextStart := l.curPageStart + Address(l.cfg.PageSize)
	if int64(nextStart) >= l.cfg.FileLengthBound {
		seg, err := l.rollSegment(l.curSeg.address + Address(l.cfg.FileLengthBound))
		if err != nil {
			return err
		}
		l.curSeg = seg
		nextStart = 0
	}
	l.curPageStart = nextStart
	l.curPage = newPage(l.cfg.PageSize)
	l.curPageUsed = 0
	return nil
}

// rollSegment opens (creating) the segment starting at address and
// notifies block listeners. Inside a write batch l.mu is already held
// by BeginWrite, so the listener snapshot is taken directly and the
// callbacks run with l.mu still held.
func (l *Log) rollSegment(address Address) (*segment, error) {
	seg, err := l.blocks.open(address, true)
	if err != nil {
		return nil, err
	}
	l.segAddrs = append(l.segAddrs, address)
	if l.writing {
		for _, b := range append([]BlockListener(nil), l.listen.blocks...) {
			b.BlockCreated(address)
		}
		return seg, nil
	}
	l.notifyBlockCreated(address)
	return seg, nil
}

// maxSegmentPages bounds how large a single record may ever be: it must
// fit within one segment, however many pages that takes.
func maxSegmentPages(cfg *config.Config) int {
	return int(cfg.FileLengthBound / int64(cfg.PageSize))
}

// Read decodes the record at addr, transparently following multi-page
// continuations and consulting the page cache before hitting disk.
func (l *Log) Read(addr Address) (Loggable, error) {
	pageSize := l.cfg.PageSize
	pageCap := pageSize - HashSuffixSize
	segAddr := fileAddress(addr, l.cfg.FileLengthBound)

	l.mu.Lock()
	seg, err := l.blocks.get(segAddr)
	l.mu.Unlock()
	if err != nil {
		return Loggable{}, err
	}

	pageStart := pageAddress(addr-segAddr, pageSize)
	off := int(addr - segAddr - pageStart)

	page, err := l.readPageCached(segAddr, pageStart, seg)
	if err != nil {
		return Loggable{}, err
	}
	region := page.dataRegion()

	typ, sid, dataLen, n, ok, err := decodeHeader(region[off:])
	if err != nil {
		return Loggable{}, err
	}
	if !ok {
		return Loggable{}, fmt.Errorf("store: address %d is null padding: %w", addr, ErrDataCorruption)
	}
	off += n

	if dataLen <= pageCap-off {
		data := append([]byte(nil), region[off:off+dataLen]...)
		return Loggable{Type: typ, StructureID: sid, Data: data}, nil
	}

	data := make([]byte, 0, dataLen)
	data = append(data, region[off:pageCap]...)
	for len(data) < dataLen {
		pageStart += Address(pageSize)
		if int64(pageStart) >= l.cfg.FileLengthBound {
			return Loggable{}, fmt.Errorf("store: record at %d runs past its segment: %w", addr, ErrDataCorruption)
		}
		page, err := l.readPageCached(segAddr, pageStart, seg)
		if err != nil {
			return Loggable{}, err
		}
		region := page.dataRegion()
		want := dataLen - len(data)
		if want > pageCap {
			want = pageCap
		}
		data = append(data, region[:want]...)
	}
	return Loggable{Type: typ, StructureID: sid, Data: data}, nil
}

func (l *Log) readPageCached(segAddr, pageStart Address, seg *segment) (Page, error) {
	if p := l.cache.Get(segAddr, pageStart); p != nil {
		return p, nil
	}
	p, err := seg.readPage(pageStart, l.cfg.PageSize)
	if err != nil {
		return nil, err
	}
	if err := p.verify(); err != nil {
		return nil, err
	}
	if err := l.cryptPage(segAddr+pageStart, p); err != nil {
		return nil, err
	}
	l.cache.Put(segAddr, pageStart, p)
	l.notifyBytesRead(segAddr+pageStart, len(p))
	return p, nil
}

// WriteRecord performs a single-record write batch: BeginWrite, Append,
// EndWrite.
func (l *Log) WriteRecord(typ RecordType, structureID uint64, data []byte) (Address, error) {
	l.BeginWrite()
	addr, err := l.Append(typ, structureID, data)
	if err != nil {
		l.writing = false
		l.mu.Unlock()
		return 0, err
	}
	if err := l.EndWrite(); err != nil {
		return 0, err
	}
	return addr, nil
}

// WriteRoot commits a new database root as the final record of a write
// batch, chaining it to the previous root.
func (l *Log) WriteRoot(trees map[string]Address) (Address, error) {
	l.mu.Lock()
	prev := l.lastRootAddress
	if !l.haveRoot {
		prev = NullAddress
	}
	l.mu.Unlock()

	l.BeginWrite()
	root := DatabaseRoot{PreviousRoot: prev, Trees: trees}
	addr, err := l.Append(RecordTypeDatabaseRoot, 0, encodeDatabaseRoot(root))
	if err != nil {
		l.writing = false
		l.mu.Unlock()
		return 0, err
	}
	if err := l.EndWrite(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	l.lastRoot = root
	l.lastRootAddress = addr
	l.haveRoot = true
	l.mu.Unlock()
	return addr, nil
}

// RemoveSegment deletes a fully-reclaimed segment and invalidates it in
// the page cache.
func (l *Log) RemoveSegment(address Address) error {
	l.mu.Lock()
	if err := l.blocks.remove(address); err != nil {
		l.mu.Unlock()
		return err
	}
	for i, a := range l.segAddrs {
		if a == address {
			l.segAddrs = append(l.segAddrs[:i], l.segAddrs[i+1:]...)
			break
		}
	}
	l.cache.RemoveSegment(address)
	l.mu.Unlock()
	l.notifyBlockRemoved(address)
	return nil
}

// Segments returns the starting addresses of every known segment, in
// ascending order, so a reclaimer can walk them oldest-first.
func (l *Log) Segments() []Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Address(nil), l.segAddrs...)
}

// ActiveSegment returns the starting address of the segment currently
// receiving writes: the reclaimer must never scan into it, since its
// high address is still moving.
func (l *Log) ActiveSegment() Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.curSeg.address
}

// SegmentLength returns the on-disk length of the segment starting at
// address, used by the reclaimer to know where its record scan ends.
func (l *Log) SegmentLength(address Address) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	seg, err := l.blocks.get(address)
	if err != nil {
		return 0, err
	}
	return seg.length, nil
}

// Sync flushes the current segment to stable storage.
func (l *Log) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.curSeg == nil {
		return nil
	}
	return l.curSeg.sync()
}

// Close releases every open segment and the directory lock.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	err := l.blocks.closeAll()
	if l.lock != nil {
		if lerr := l.lock.Close(); lerr != nil && err == nil {
			err = lerr
		}
	}
	return err
}
