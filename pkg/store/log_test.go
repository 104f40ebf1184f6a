package store

import (
	"bytes"
	"os"
	"testing"

	"github.com/strata-db/strata/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig(t.TempDir())
	cfg.PageSize = config.MinPageSize
	cfg.FileLengthBound = int64(config.MinPageSize) * 4
	cfg.SyncDurable = false
	cfg.SmallRecordShift = 3
	return cfg
}

func openLog(t *testing.T, dir string, cfg *config.Config) *Log {
	t.Helper()
	l, err := Open(dir, cfg, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestWriteAndReadSingleRecord(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)
	l := openLog(t, dir, cfg)

	addr, err := l.WriteRecord(RecordTypeTreeLeaf, 7, []byte("hello"))
	if err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}

	rec, err := l.Read(addr)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rec.Type != RecordTypeTreeLeaf || rec.StructureID != 7 || !bytes.Equal(rec.Data, []byte("hello")) {
		t.Fatalf("Read returned %+v", rec)
	}
	if l.HighAddress() <= addr {
		t.Fatalf("high address %d did not advance past %d", l.HighAddress(), addr)
	}
}

func TestMultiPageRecord(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)
	l := openLog(t, dir, cfg)

	data := bytes.Repeat([]byte{0xab}, cfg.PageSize*3)
	addr, err := l.WriteRecord(RecordTypeTreeLeaf, 1, data)
	if err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}

	rec, err := l.Read(addr)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(rec.Data, data) {
		t.Fatalf("multi-page round trip mismatch: got %d bytes, want %d", len(rec.Data), len(data))
	}
}

func TestSegmentRollover(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)
	cfg.FileLengthBound = int64(cfg.PageSize) // one page per segment
	l := openLog(t, dir, cfg)

	var addrs []Address
	payload := bytes.Repeat([]byte{0x11}, cfg.PageSize/8)
	for i := 0; i < 40; i++ {
		addr, err := l.WriteRecord(RecordTypeTreeLeaf, uint64(i), payload)
		if err != nil {
			t.Fatalf("WriteRecord %d: %v", i, err)
		}
		addrs = append(addrs, addr)
	}

	if len(l.Segments()) < 2 {
		t.Fatalf("expected rollover to produce multiple segments, got %d", len(l.Segments()))
	}

	for i, addr := range addrs {
		rec, err := l.Read(addr)
		if err != nil {
			t.Fatalf("Read record %d at %d: %v", i, addr, err)
		}
		if !bytes.Equal(rec.Data, payload) || rec.StructureID != uint64(i) {
			t.Fatalf("record %d mismatch: %+v", i, rec)
		}
	}
}

func TestScanSegmentVisitsRecordsInAddressOrderAndStopsEarly(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)
	l := openLog(t, dir, cfg)

	var addrs []Address
	for i := 0; i < 10; i++ {
		addr, err := l.WriteRecord(RecordTypeTreeLeaf, uint64(i), []byte{byte(i)})
		if err != nil {
			t.Fatalf("WriteRecord %d: %v", i, err)
		}
		addrs = append(addrs, addr)
	}
	segAddr := l.Segments()[0]

	var seen []Address
	err := l.ScanSegment(segAddr, func(addr Address, rec Loggable) error {
		seen = append(seen, addr)
		if rec.StructureID != uint64(len(seen)-1) || rec.Data[0] != byte(len(seen)-1) {
			t.Fatalf("record %d out of order: %+v", len(seen)-1, rec)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ScanSegment: %v", err)
	}
	if len(seen) != len(addrs) {
		t.Fatalf("scanned %d records, want %d", len(seen), len(addrs))
	}
	for i, addr := range addrs {
		if seen[i] != addr {
			t.Fatalf("record %d: scanned address %d, want %d", i, seen[i], addr)
		}
	}

	var stoppedAt int
	err = l.ScanSegment(segAddr, func(addr Address, rec Loggable) error {
		stoppedAt++
		if stoppedAt == 3 {
			return ErrStopScan
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ScanSegment with early stop: %v", err)
	}
	if stoppedAt != 3 {
		t.Fatalf("expected the scan to stop after 3 records, stopped after %d", stoppedAt)
	}
}

func TestAESCTREncryptedLogRoundTripsAndDetectsWrongKey(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)
	cfg.CipherID = "aes-ctr"
	cfg.CipherKey = bytes.Repeat([]byte{0x42}, 32)
	cfg.CipherBasicIV = 0xdeadbeef

	l := openLog(t, dir, cfg)
	var addr Address
	for i := 0; i < 20; i++ {
		var err error
		addr, err = l.WriteRecord(RecordTypeTreeLeaf, uint64(i), []byte("shh it's encrypted"))
		if err != nil {
			t.Fatalf("WriteRecord %d: %v", i, err)
		}
	}
	if _, err := l.WriteRoot(map[string]Address{"primary": addr}); err != nil {
		t.Fatalf("WriteRoot: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	l2, err := Open(dir, cfg, nil)
	if err != nil {
		t.Fatalf("reopen with matching key: %v", err)
	}
	rec, err := l2.Read(addr)
	if err != nil {
		t.Fatalf("Read after reopen: %v", err)
	}
	if !bytes.Equal(rec.Data, []byte("shh it's encrypted")) {
		t.Fatalf("Read after reopen: got %q", rec.Data)
	}
	l2.Close()

	// On-disk bytes must not contain the plaintext.
	raw, err := os.ReadFile(dir + "/" + segmentFileName(0))
	if err != nil {
		t.Fatalf("reading segment file: %v", err)
	}
	if bytes.Contains(raw, []byte("shh it's encrypted")) {
		t.Fatal("plaintext found on disk in an encrypted log")
	}

	wrongKeyCfg := testConfig(t)
	wrongKeyCfg.CipherID = "aes-ctr"
	wrongKeyCfg.CipherKey = bytes.Repeat([]byte{0x24}, 32)
	wrongKeyCfg.CipherBasicIV = cfg.CipherBasicIV
	if _, err := Open(dir, wrongKeyCfg, nil); err == nil {
		t.Fatal("expected Open with the wrong cipher key to fail")
	}
}

func TestReopenRecoversHighAddressAndRoot(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)

	l := openLog(t, dir, cfg)
	addr, err := l.WriteRecord(RecordTypeTreeLeaf, 3, []byte("value"))
	if err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	rootAddr, err := l.WriteRoot(map[string]Address{"primary": addr})
	if err != nil {
		t.Fatalf("WriteRoot: %v", err)
	}
	wantHigh := l.HighAddress()
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	l2, err := Open(dir, cfg, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l2.Close()

	if l2.HighAddress() != wantHigh {
		t.Fatalf("recovered high address %d, want %d", l2.HighAddress(), wantHigh)
	}
	root, gotRootAddr, ok := l2.Root()
	if !ok {
		t.Fatal("expected a recovered root")
	}
	if gotRootAddr != rootAddr {
		t.Fatalf("recovered root address %d, want %d", gotRootAddr, rootAddr)
	}
	if root.Trees["primary"] != addr {
		t.Fatalf("recovered root trees = %+v, want primary=%d", root.Trees, addr)
	}

	rec, err := l2.Read(addr)
	if err != nil {
		t.Fatalf("Read after reopen: %v", err)
	}
	if !bytes.Equal(rec.Data, []byte("value")) {
		t.Fatalf("Read after reopen: got %q", rec.Data)
	}
}

func TestTornTailRecoveryWithClearInvalidLog(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)

	l := openLog(t, dir, cfg)
	addr, err := l.WriteRecord(RecordTypeTreeLeaf, 1, []byte("good"))
	if err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Corrupt the tail page's hash trailer to simulate a torn write.
	seg := segmentFileName(0)
	path := dir + "/" + seg
	corruptLastPageHash(t, path, cfg.PageSize)

	cfg.ClearInvalidLog = true
	l2, err := Open(dir, cfg, nil)
	if err != nil {
		t.Fatalf("reopen after corruption: %v", err)
	}
	defer l2.Close()

	if _, err := l2.Read(addr); err == nil {
		t.Fatal("expected the corrupted record to be unreadable after the log is wiped")
	}
}

func TestOpenWithoutClearInvalidLogFailsWhenNoRootRecovered(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)

	l := openLog(t, dir, cfg)
	if _, err := l.WriteRecord(RecordTypeTreeLeaf, 1, []byte("good")); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	path := dir + "/" + segmentFileName(0)
	corruptPageHash(t, path, cfg.PageSize, 0)

	cfg.ClearInvalidLog = false
	if _, err := Open(dir, cfg, nil); err == nil {
		t.Fatal("expected Open to fail when no root can be recovered to truncate back to")
	}
}

// TestOpenWithoutClearInvalidLogTruncatesToLastRoot exercises the default
// recovery policy: a torn tail past the last committed root is rewound
// to that root rather than failing the whole open.
func TestOpenWithoutClearInvalidLogTruncatesToLastRoot(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)

	l := openLog(t, dir, cfg)
	addr, err := l.WriteRecord(RecordTypeTreeLeaf, 1, []byte("good"))
	if err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	rootAddr, err := l.WriteRoot(map[string]Address{"primary": addr})
	if err != nil {
		t.Fatalf("WriteRoot: %v", err)
	}
	wantHigh := l.HighAddress()

	// Force the next record onto a fresh page past the root, so the
	// corruption below lands after it rather than on top of it.
	pageCap := cfg.PageSize - HashSuffixSize
	uncommitted, err := l.WriteRecord(RecordTypeTreeLeaf, 2, bytes.Repeat([]byte{0x7a}, pageCap-64))
	if err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	path := dir + "/" + segmentFileName(0)
	corruptPageHash(t, path, cfg.PageSize, 1)

	cfg.ClearInvalidLog = false
	l2, err := Open(dir, cfg, nil)
	if err != nil {
		t.Fatalf("expected Open to truncate back to the last root, got: %v", err)
	}
	defer l2.Close()

	if l2.HighAddress() != wantHigh {
		t.Fatalf("recovered high address %d, want %d", l2.HighAddress(), wantHigh)
	}
	root, gotRootAddr, ok := l2.Root()
	if !ok {
		t.Fatal("expected a recovered root")
	}
	if gotRootAddr != rootAddr {
		t.Fatalf("recovered root address %d, want %d", gotRootAddr, rootAddr)
	}
	if root.Trees["primary"] != addr {
		t.Fatalf("recovered root trees = %+v, want primary=%d", root.Trees, addr)
	}

	rec, err := l2.Read(addr)
	if err != nil {
		t.Fatalf("Read committed record after truncation: %v", err)
	}
	if !bytes.Equal(rec.Data, []byte("good")) {
		t.Fatalf("Read after truncation: got %q", rec.Data)
	}

	if _, err := l2.Read(uncommitted); err == nil {
		t.Fatal("expected the record written after the last root to be gone")
	}
}

func corruptLastPageHash(t *testing.T, path string, pageSize int) {
	t.Helper()
	corruptPageHash(t, path, pageSize, 0)
}

func corruptPageHash(t *testing.T, path string, pageSize, pageIndex int) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		t.Fatalf("opening segment for corruption: %v", err)
	}
	defer f.Close()
	buf := make([]byte, 1)
	buf[0] ^= 0xff
	off := int64(pageIndex)*int64(pageSize) + int64(pageSize-1)
	if _, err := f.WriteAt(buf, off); err != nil {
		t.Fatalf("corrupting page: %v", err)
	}
}
