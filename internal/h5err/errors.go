// Package h5err defines the error taxonomy shared by the codec, checksum
// and write pipeline packages.
//
// Every failure kind has a sentinel for errors.Is and, where the failure
// carries diagnostic values, a struct for errors.As. Callers branch on the
// kind, never on message text.
package h5err

import (
	"errors"
	"fmt"
)

// Kinds.
var (
	ErrUnsupportedVersion = errors.New("unsupported record version")
	ErrTruncated          = errors.New("truncated record")
	ErrChecksumMismatch   = errors.New("checksum mismatch, possible file corruption")
	ErrUnsupported        = errors.New("unsupported feature")

	// ErrWriting is the root of the writing family. PrematureAccessError,
	// DimensionMismatchError and ChunkShapeError all match it.
	ErrWriting           = errors.New("writing error")
	ErrNotComputable     = errors.New("writing in progress: value not yet computable")
	ErrDimensionMismatch = errors.New("declared dimensions do not match written data")
	ErrChunkShape        = errors.New("chunk shape inconsistent with dataset")
)

// VersionError reports a record whose version byte is outside the set its
// codec understands.
type VersionError struct {
	Record  string
	Version uint8
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("%s: unrecognized version %d", e.Record, e.Version)
}

func (e *VersionError) Is(target error) bool { return target == ErrUnsupportedVersion }

// TruncatedError reports a record that ended before its flag-implied layout.
type TruncatedError struct {
	Record string
	Need   int
	Have   int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("%s: truncated record: need %d bytes, have %d", e.Record, e.Need, e.Have)
}

func (e *TruncatedError) Is(target error) bool { return target == ErrTruncated }

// ChecksumMismatchError carries both the stored and the recomputed value.
type ChecksumMismatchError struct {
	Structure string
	Stored    uint32
	Computed  uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("%s: checksum mismatch, possible file corruption: stored checksum = [0x%08x] != calculated checksum = [0x%08x]",
		e.Structure, e.Stored, e.Computed)
}

func (e *ChecksumMismatchError) Is(target error) bool { return target == ErrChecksumMismatch }

// PrematureAccessError is returned by shape, type and size accessors of a
// write-pending dataset before compute has been enabled.
type PrematureAccessError struct {
	Dataset  string
	Accessor string
}

func (e *PrematureAccessError) Error() string {
	name := e.Dataset
	if name == "" {
		name = "<unattached>"
	}
	return fmt.Sprintf("dataset %s: %s: writing in progress, enable compute before inspecting", name, e.Accessor)
}

func (e *PrematureAccessError) Is(target error) bool {
	return target == ErrNotComputable || target == ErrWriting
}

// DimensionMismatchError reports that the data consumed from a chunk
// source disagrees with the declared dimensions at finalization.
type DimensionMismatchError struct {
	Dataset  string
	Declared []uint64
	Written  []uint64 // shape of the data actually written
	Expected uint64   // rows implied by Declared
	Actual   uint64   // rows consumed from the source
}

func (e *DimensionMismatchError) Error() string {
	if e.Expected != e.Actual {
		return fmt.Sprintf("dataset %s: declared dimensions %v expect %d rows but %d rows were written",
			e.Dataset, e.Declared, e.Expected, e.Actual)
	}
	return fmt.Sprintf("dataset %s: declared dimensions %v do not match written dimensions %v",
		e.Dataset, e.Declared, e.Written)
}

func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch || target == ErrWriting
}

// ChunkShapeError reports a produced chunk that cannot be placed in the
// dataset's chunk grid.
type ChunkShapeError struct {
	Dataset string
	Chunk   int
	Reason  string
}

func (e *ChunkShapeError) Error() string {
	return fmt.Sprintf("dataset %s: chunk %d: %s", e.Dataset, e.Chunk, e.Reason)
}

func (e *ChunkShapeError) Is(target error) bool {
	return target == ErrChunkShape || target == ErrWriting
}
