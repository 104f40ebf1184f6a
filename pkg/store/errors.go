package store

import "errors"

// Error kinds surfaced by the log, per spec.md §7. Each is a sentinel
// wrapped with context via fmt.Errorf("...: %w", ...) at the call site,
// the same way the teacher wraps ErrCorruptRecord/ErrWALClosed/etc.
var (
	// ErrDataCorruption covers checksum failure, an invalid type,
	// structure-id or length, an unexpected segment length, or a
	// misaligned address.
	ErrDataCorruption = errors.New("store: data corruption")

	// ErrBlockNotFound is returned for an address whose segment has been
	// deleted or never existed.
	ErrBlockNotFound = errors.New("store: block not found")

	// ErrInvalidCipherParameters is returned by Open when a cipher is
	// configured and the recovery scan fails before any database root
	// has been recovered, consistent with the configured cipher key or
	// basic IV not matching what the log was originally written with.
	ErrInvalidCipherParameters = errors.New("store: invalid cipher parameters")

	// ErrTooBigLoggable is returned when a single record is larger than
	// a segment can ever hold.
	ErrTooBigLoggable = errors.New("store: loggable too big for a segment")

	// ErrInvalidSetting is returned for configuration incompatible with
	// the on-disk header (page size multiples, format version).
	ErrInvalidSetting = errors.New("store: invalid setting")

	// ErrEngineFault is the catch-all for assertion violations: an
	// unexpected reader implementation, an unreleasable resource, a
	// broken internal invariant.
	ErrEngineFault = errors.New("store: engine fault")

	// ErrClosed is returned by operations attempted after Close.
	ErrClosed = errors.New("store: log is closed")

	// ErrStopScan is returned by a ScanSegment callback to end the scan
	// early without it being treated as a failure.
	ErrStopScan = errors.New("store: scan stopped")
)
