// Package alloc hands out file space to a container being written.
//
// Space is allocated append-only from a moving end-of-file address. Each
// region is tagged with the kind of structure placed in it so a finished
// file can report where its bytes went. Addresses are checked against the
// file's offset width: a file written with 2- or 4-byte offsets cannot grow
// past what those offsets can address.
package alloc

import (
	"errors"
	"fmt"
	"slices"
)

// ErrAddressSpace is returned when an allocation would end past the largest
// address the file's offset width can encode.
var ErrAddressSpace = errors.New("file address space exhausted")

// Kind classifies an allocated region.
type Kind uint8

const (
	KindSuperblock Kind = iota
	KindObjectHeader
	KindChunk
	KindChunkIndex
)

func (k Kind) String() string {
	switch k {
	case KindSuperblock:
		return "superblock"
	case KindObjectHeader:
		return "object header"
	case KindChunk:
		return "chunk"
	case KindChunkIndex:
		return "chunk index"
	}
	return fmt.Sprintf("kind %d", uint8(k))
}

// Region is one allocation.
type Region struct {
	Addr uint64
	Size uint64
	Kind Kind
}

// End returns the first address after the region.
func (r Region) End() uint64 { return r.Addr + r.Size }

// Allocator is an append-only space allocator. It is not safe for
// concurrent use.
type Allocator struct {
	eof     uint64
	limit   uint64
	regions []Region
}

// New returns an allocator whose first allocation is at base. offsetWidth
// is the file's offset width in bytes.
func New(base uint64, offsetWidth int) *Allocator {
	limit := ^uint64(0)
	if offsetWidth < 8 {
		// The all-ones address is reserved for "undefined".
		limit = uint64(1)<<(uint(offsetWidth)*8) - 1
	}
	return &Allocator{eof: base, limit: limit}
}

// Alloc reserves size bytes at the end of the file.
func (a *Allocator) Alloc(size uint64, kind Kind) (uint64, error) {
	addr := a.eof
	if size > a.limit || addr > a.limit-size {
		return 0, fmt.Errorf("%w: %s of %d bytes at %d exceeds %d", ErrAddressSpace, kind, size, addr, a.limit)
	}
	a.eof += size
	if size > 0 {
		a.regions = append(a.regions, Region{Addr: addr, Size: size, Kind: kind})
	}
	return addr, nil
}

// AllocAligned reserves size bytes starting at a multiple of alignment.
// The skipped bytes stay unused.
func (a *Allocator) AllocAligned(size, alignment uint64, kind Kind) (uint64, error) {
	if alignment > 1 {
		if rem := a.eof % alignment; rem != 0 {
			a.eof += alignment - rem
		}
	}
	return a.Alloc(size, kind)
}

// EOF returns the current end-of-file address.
func (a *Allocator) EOF() uint64 { return a.eof }

// Regions returns a copy of every allocation in address order.
func (a *Allocator) Regions() []Region { return slices.Clone(a.regions) }

// Usage returns the number of bytes allocated per kind.
func (a *Allocator) Usage() map[Kind]uint64 {
	usage := make(map[Kind]uint64)
	for _, r := range a.regions {
		usage[r.Kind] += r.Size
	}
	return usage
}

// Validate checks that no two regions overlap and that all lie below EOF.
func (a *Allocator) Validate() error {
	for i, r := range a.regions {
		if r.End() > a.eof {
			return fmt.Errorf("%s at %d size %d extends past EOF %d", r.Kind, r.Addr, r.Size, a.eof)
		}
		if i > 0 && a.regions[i-1].End() > r.Addr {
			p := a.regions[i-1]
			return fmt.Errorf("%s at %d size %d overlaps %s at %d", p.Kind, p.Addr, p.Size, r.Kind, r.Addr)
		}
	}
	return nil
}
