// Package superblock reads and writes version 2 and 3 HDF5 superblocks.
//
// The superblock is the entry point of a file: it fixes the offset and
// length widths every other structure is encoded with and points at the
// root group's object header. It is protected by a lookup3 checksum and
// verified before any of its fields are used.
//
// Version 0 and 1 superblocks, which describe files built on symbol table
// groups and B-trees, are not supported.
package superblock

import (
	"encoding/binary"
	"errors"

	binpkg "github.com/robert-malhotra/go-h5stream/internal/binary"
)

// Signature opens every HDF5 file: 0x89 H D F \r \n 0x1a \n.
var Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

// Offsets searched for the signature, in order.
var searchOffsets = []int64{0, 512, 1024, 2048}

// ErrNotHDF5 is returned when no signature is found.
var ErrNotHDF5 = errors.New("not an HDF5 file: signature not found")

// File consistency flags.
const (
	// FlagWriteAccess is set while a writer has the file open. A file
	// closed cleanly has it clear; a set flag on a closed file means the
	// writer did not finish and the contents cannot be trusted.
	FlagWriteAccess uint8 = 0x01
	// FlagSWMR marks single-writer/multi-reader access (version 3).
	FlagSWMR uint8 = 0x04
)

// Superblock holds the fields of a version 2 or 3 superblock.
type Superblock struct {
	Version          uint8
	Widths           binpkg.Widths
	ConsistencyFlags uint8
	BaseAddress      uint64
	ExtensionAddress uint64
	EOFAddress       uint64
	RootGroupAddress uint64

	// FileOffset is where the signature was found.
	FileOffset int64
}

// New returns a version 3 superblock for files with the given widths.
// Addresses are filled in when the file is closed.
func New(widths binpkg.Widths) *Superblock {
	return &Superblock{
		Version:          3,
		Widths:           widths,
		ExtensionAddress: ^uint64(0),
		RootGroupAddress: ^uint64(0),
	}
}

// Config returns the codec configuration for the rest of the file.
func (sb *Superblock) Config() binpkg.Config {
	return binpkg.Config{ByteOrder: binary.LittleEndian, Widths: sb.Widths}
}

// Trusted reports whether the writer closed the file cleanly.
func (sb *Superblock) Trusted() bool { return sb.ConsistencyFlags&FlagWriteAccess == 0 }

// Size returns the encoded size of a superblock with the given widths.
func Size(widths binpkg.Widths) int {
	// signature, version, two widths, flags, four addresses, checksum
	return 8 + 4 + 4*widths.Offsets + 4
}
