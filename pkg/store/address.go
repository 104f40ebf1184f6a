package store

// Address is an unsigned 64-bit offset into the logical log. The low
// bits index within a page; higher bits identify the page and segment.
type Address uint64

// NullAddress is the sentinel meaning "no such record".
const NullAddress Address = ^Address(0)

// IsNull reports whether a is the null sentinel.
func (a Address) IsNull() bool { return a == NullAddress }

// fileAddress returns the start address of the segment containing a,
// given a segment size that must be a multiple of the page size.
func fileAddress(a Address, fileLengthBound int64) Address {
	return Address(uint64(a) - uint64(a)%uint64(fileLengthBound))
}

// pageAddress returns the start address of the page containing a. pageSize
// must be a power of two.
func pageAddress(a Address, pageSize int) Address {
	return Address(uint64(a) &^ uint64(pageSize-1))
}
