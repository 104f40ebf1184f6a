package store

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// HashSuffixSize is the number of trailing bytes on every page reserved
// for the page's hash code.
const HashSuffixSize = 8

// Page is one fixed-size, power-of-two byte buffer read from or destined
// for the log. Bytes [0, len(p)-HashSuffixSize) hold record data; the
// final HashSuffixSize bytes hold a big-endian 64-bit hash of the
// preceding bytes.
type Page []byte

// newPage allocates a zeroed page of the given size.
func newPage(pageSize int) Page {
	return make(Page, pageSize)
}

// dataRegion returns the record-bearing portion of the page, excluding
// the hash suffix.
func (p Page) dataRegion() []byte {
	return p[:len(p)-HashSuffixSize]
}

// computeHash hashes the data region of the page.
func (p Page) computeHash() uint64 {
	return xxhash.Sum64(p.dataRegion())
}

// storedHash reads the hash code stored in the page's trailer.
func (p Page) storedHash() uint64 {
	return binary.BigEndian.Uint64(p[len(p)-HashSuffixSize:])
}

// finalizeHash computes and stores the hash for the page's current data
// region. Called once a page will receive no further writes.
func (p Page) finalizeHash() {
	binary.BigEndian.PutUint64(p[len(p)-HashSuffixSize:], p.computeHash())
}

// verify checks the page's stored hash against its data region, returning
// ErrDataCorruption on mismatch. A page with no hash-code suffix in use
// (legacy format) is never passed to verify.
func (p Page) verify() error {
	if p.storedHash() != p.computeHash() {
		return ErrDataCorruption
	}
	return nil
}
