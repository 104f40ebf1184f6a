package store

import (
	"github.com/strata-db/strata/pkg/varint"
)

// RecordType identifies the structure stored in a Loggable's data. The
// high bit is reserved on disk to mark the first byte of a record header
// (see headerFlag); RecordType values here are the low seven bits.
type RecordType byte

const (
	// RecordTypeNullPadding marks unused trailing bytes in a page: a run
	// of zero bytes up to the page's hash suffix. It is never written
	// through the ordinary record path; it is simply what padding reads
	// back as.
	RecordTypeNullPadding RecordType = 0

	// RecordTypeTreeLeaf is a B+-tree or Patricia leaf record: a single
	// key/value pair (or, under the duplicates decorator, a key whose
	// value encodes a nested single-value sub-tree).
	RecordTypeTreeLeaf RecordType = 1

	// RecordTypeTreeBottomPage is a B+-tree bottom-level internal page:
	// an array of (key, leaf-address) pairs.
	RecordTypeTreeBottomPage RecordType = 2

	// RecordTypeTreeInternalPage is a B+-tree internal page above the
	// bottom level: an array of (key, child-address) pairs.
	RecordTypeTreeInternalPage RecordType = 3

	// RecordTypeTreeBottomRoot is the root record of a two-level tree
	// (root is itself a bottom page).
	RecordTypeTreeBottomRoot RecordType = 4

	// RecordTypeTreeInternalRoot is the root record of a tree with three
	// or more levels.
	RecordTypeTreeInternalRoot RecordType = 5

	// RecordTypeDatabaseRoot anchors the set of named trees current as
	// of the write that produced it.
	RecordTypeDatabaseRoot RecordType = 6

	// RecordTypeTreeNode is a Patricia node: a shared key prefix, an
	// optional value, and a sorted array of (branch-byte, child-address)
	// pairs. Unlike the B+-tree's split bottom/internal pages, one node
	// kind serves every level since a Patricia node may hold both a
	// value and children at once.
	RecordTypeTreeNode RecordType = 7

	// RecordTypeTreeNodeRoot is the root record of a Patricia tree.
	RecordTypeTreeNodeRoot RecordType = 8

	// firstReservedType is the first value not assigned by this store;
	// values at or above it fail validation.
	firstReservedType RecordType = 9
)

func (t RecordType) valid() bool {
	return t < firstReservedType
}

// headerFlag is OR'd into the on-disk first byte of a record header to
// distinguish it from a null-padding byte (always 0x00).
const headerFlag = 0x80

// maxHeaderLen bounds the encoded size of a record header: one type
// byte, a varint structure-id, and a varint length.
const maxHeaderLen = 1 + varint.MaxLen + varint.MaxLen

// Loggable is one decoded record: its type, the identifier of the tree
// (or other structure) it belongs to, and its data payload. structureID
// is 0 for records, such as the database root, that do not belong to a
// tree.
type Loggable struct {
	Type        RecordType
	StructureID uint64
	Data        []byte
}

// encodeHeader appends the on-disk header for a record of the given type,
// structure id and data length onto buf, returning the extended slice.
func encodeHeader(buf []byte, typ RecordType, structureID uint64, dataLen int) []byte {
	buf = append(buf, byte(typ)|headerFlag)
	buf = varint.Append(buf, structureID)
	buf = varint.Append(buf, uint64(dataLen))
	return buf
}

// headerLen returns the encoded size of a header for the given
// structure id and data length, without allocating.
func headerLen(structureID uint64, dataLen int) int {
	return 1 + varint.Len(structureID) + varint.Len(uint64(dataLen))
}

// decodeHeader parses a record header from the front of buf, returning
// the record type, structure id, data length and the number of bytes
// consumed. A leading zero byte (null padding) is reported via ok=false
// rather than as an error: callers distinguish end-of-records from
// corruption by checking the remaining page for an all-zero run.
func decodeHeader(buf []byte) (typ RecordType, structureID uint64, dataLen int, n int, ok bool, err error) {
	if len(buf) == 0 {
		return 0, 0, 0, 0, false, ErrDataCorruption
	}
	first := buf[0]
	if first == 0 {
		return 0, 0, 0, 0, false, nil
	}
	if first&headerFlag == 0 {
		return 0, 0, 0, 0, false, ErrDataCorruption
	}
	typ = RecordType(first &^ headerFlag)
	if !typ.valid() {
		return 0, 0, 0, 0, false, ErrDataCorruption
	}
	off := 1
	sid, sidLen, err := varint.Get(buf[off:])
	if err != nil {
		return 0, 0, 0, 0, false, ErrDataCorruption
	}
	off += sidLen
	length, lenLen, err := varint.Get(buf[off:])
	if err != nil {
		return 0, 0, 0, 0, false, ErrDataCorruption
	}
	off += lenLen
	return typ, sid, int(length), off, true, nil
}
