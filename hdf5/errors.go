package hdf5

import (
	"errors"

	"github.com/robert-malhotra/go-h5stream/internal/h5err"
	"github.com/robert-malhotra/go-h5stream/internal/superblock"
)

// Container errors.
var (
	ErrNotHDF5         = superblock.ErrNotHDF5
	ErrNotFound        = errors.New("object not found")
	ErrNotDataset      = errors.New("object is not a dataset")
	ErrClosed          = errors.New("file is closed")
	ErrReadOnly        = errors.New("file is not writable")
	ErrExists          = errors.New("name already exists")
	ErrAlreadyAttached = errors.New("dataset is already attached to a file")
	ErrUnsupported     = h5err.ErrUnsupported
)

// Error kinds, for use with errors.Is.
var (
	ErrUnsupportedVersion = h5err.ErrUnsupportedVersion
	ErrTruncated          = h5err.ErrTruncated
	ErrChecksumMismatch   = h5err.ErrChecksumMismatch

	// ErrWriting matches every error of the writing family.
	ErrWriting           = h5err.ErrWriting
	ErrNotComputable     = h5err.ErrNotComputable
	ErrDimensionMismatch = h5err.ErrDimensionMismatch
	ErrChunkShape        = h5err.ErrChunkShape
)

// Error carriers, for use with errors.As.
type (
	VersionError           = h5err.VersionError
	TruncatedError         = h5err.TruncatedError
	ChecksumMismatchError  = h5err.ChecksumMismatchError
	PrematureAccessError   = h5err.PrematureAccessError
	DimensionMismatchError = h5err.DimensionMismatchError
	ChunkShapeError        = h5err.ChunkShapeError
)

// failureKind names the kind of a commit error for metrics and logs.
func failureKind(err error) string {
	switch {
	case errors.Is(err, ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, ErrChunkShape):
		return "chunk_shape"
	case errors.Is(err, ErrChecksumMismatch):
		return "checksum_mismatch"
	}
	return "io"
}
