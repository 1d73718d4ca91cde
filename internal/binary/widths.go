// Package binary provides low-level binary I/O for HDF5 files: the address
// width context every codec is parameterised by, positioned readers and
// writers, and a bounded decoder for in-memory records.
package binary

import (
	"encoding/binary"
	"fmt"
)

// Widths is the address width context of a file: how many bytes encode an
// absolute file address (Offsets) and a length (Lengths). It is fixed by the
// superblock and shared read-only by every codec operating on the file.
type Widths struct {
	Offsets int
	Lengths int
}

// DefaultWidths matches the HDF5 library default of 8-byte addresses.
var DefaultWidths = Widths{Offsets: 8, Lengths: 8}

// Validate rejects widths the format does not allow.
func (w Widths) Validate() error {
	if !validWidth(w.Offsets) {
		return fmt.Errorf("invalid size of offsets %d: must be 2, 4 or 8", w.Offsets)
	}
	if !validWidth(w.Lengths) {
		return fmt.Errorf("invalid size of lengths %d: must be 2, 4 or 8", w.Lengths)
	}
	return nil
}

func validWidth(n int) bool { return n == 2 || n == 4 || n == 8 }

// UndefinedOffset returns the all-ones "undefined address" at the offset width.
func (w Widths) UndefinedOffset() uint64 { return allOnes(w.Offsets) }

// UndefinedLength returns the all-ones sentinel at the length width.
func (w Widths) UndefinedLength() uint64 { return allOnes(w.Lengths) }

// IsUndefinedOffset reports whether v is the undefined address. Values
// widened from narrower files (all ones at the offset width) and the
// in-memory sentinel ^uint64(0) both qualify.
func (w Widths) IsUndefinedOffset(v uint64) bool {
	return v == ^uint64(0) || v == allOnes(w.Offsets)
}

func allOnes(size int) uint64 {
	if size >= 8 {
		return ^uint64(0)
	}
	return uint64(1)<<(uint(size)*8) - 1
}

// Config holds the byte order and address widths for a file session.
type Config struct {
	ByteOrder binary.ByteOrder
	Widths
}

// DefaultConfig returns little-endian byte order and 8-byte widths, which
// is what the superblock is read with before its own widths are known.
func DefaultConfig() Config {
	return Config{ByteOrder: binary.LittleEndian, Widths: DefaultWidths}
}

// NewConfig builds a little-endian config for the given widths.
func NewConfig(offsets, lengths int) Config {
	return Config{
		ByteOrder: binary.LittleEndian,
		Widths:    Widths{Offsets: offsets, Lengths: lengths},
	}
}

// PutUint encodes v into the first size bytes of buf.
func PutUint(buf []byte, v uint64, size int, order binary.ByteOrder) {
	switch size {
	case 1:
		buf[0] = uint8(v)
	case 2:
		order.PutUint16(buf, uint16(v))
	case 4:
		order.PutUint32(buf, uint32(v))
	case 8:
		order.PutUint64(buf, v)
	default:
		// Non-standard sizes are always little-endian.
		for i := 0; i < size; i++ {
			buf[i] = byte(v >> (8 * i))
		}
	}
}

// Uint decodes a size-byte unsigned integer from buf.
func Uint(buf []byte, size int, order binary.ByteOrder) uint64 {
	switch size {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(order.Uint16(buf))
	case 4:
		return uint64(order.Uint32(buf))
	case 8:
		return order.Uint64(buf)
	default:
		var val uint64
		for i := size - 1; i >= 0; i-- {
			val = (val << 8) | uint64(buf[i])
		}
		return val
	}
}
