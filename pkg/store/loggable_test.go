package store

import "testing"

func TestHeaderRoundTrip(t *testing.T) {
	cases := []struct {
		typ         RecordType
		structureID uint64
		dataLen     int
	}{
		{RecordTypeTreeLeaf, 0, 0},
		{RecordTypeTreeBottomPage, 1, 12},
		{RecordTypeDatabaseRoot, 0, 300},
		{RecordTypeTreeInternalRoot, 1 << 40, 1 << 20},
	}
	for _, c := range cases {
		buf := encodeHeader(nil, c.typ, c.structureID, c.dataLen)
		typ, sid, dataLen, n, ok, err := decodeHeader(buf)
		if err != nil {
			t.Fatalf("decodeHeader(%+v): %v", c, err)
		}
		if !ok {
			t.Fatalf("decodeHeader(%+v): ok=false", c)
		}
		if typ != c.typ || sid != c.structureID || dataLen != c.dataLen {
			t.Fatalf("decodeHeader(%+v) = (%v, %v, %v)", c, typ, sid, dataLen)
		}
		if n != headerLen(c.structureID, c.dataLen) {
			t.Fatalf("headerLen mismatch for %+v: n=%d, headerLen=%d", c, n, headerLen(c.structureID, c.dataLen))
		}
	}
}

func TestDecodeHeaderNullPadding(t *testing.T) {
	buf := make([]byte, 16)
	_, _, _, _, ok, err := decodeHeader(buf)
	if err != nil {
		t.Fatalf("decodeHeader on null padding: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for an all-zero header")
	}
}

func TestDecodeHeaderRejectsUnflaggedByte(t *testing.T) {
	buf := []byte{0x05, 0x00, 0x00}
	_, _, _, _, _, err := decodeHeader(buf)
	if err == nil {
		t.Fatal("expected an error for a byte with the header flag unset")
	}
}

func TestDecodeHeaderRejectsReservedType(t *testing.T) {
	buf := encodeHeader(nil, RecordType(firstReservedType), 0, 0)
	_, _, _, _, _, err := decodeHeader(buf)
	if err == nil {
		t.Fatal("expected an error for a reserved record type")
	}
}
