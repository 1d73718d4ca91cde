package layout

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/go-h5stream/internal/binary"
	"github.com/robert-malhotra/go-h5stream/internal/checksum"
	"github.com/robert-malhotra/go-h5stream/internal/h5err"
)

var (
	signatureFixedArrayHeader = []byte("FAHD")
	signatureFixedArrayData   = []byte("FADB")
)

// Fixed array client ids.
const (
	clientChunks         = 0
	clientFilteredChunks = 1
)

// fixedArrayHeaderSize is signature, version, client id, entry size, page
// bits, entry count, data block address and checksum.
func fixedArrayHeaderSize(cfg binary.Config) int {
	return 4 + 1 + 1 + 1 + 1 + cfg.Lengths + cfg.Offsets + checksum.Size
}

func fixedArrayDataSize(cfg binary.Config, entries, entrySize int) int {
	return 4 + 1 + 1 + cfg.Offsets + entries*entrySize + checksum.Size
}

// chunkSizeBytes is the width of the stored-size field of a filtered
// entry, wide enough for one byte more than an unfiltered chunk needs.
func chunkSizeBytes(chunkBytes uint64) int {
	log2 := 0
	if chunkBytes > 0 {
		log2 = bits.Len64(chunkBytes) - 1
	}
	return min(8, 1+(log2+8)/8)
}

// pageBits returns the smallest page size exponent that keeps n entries in
// a single unpaged data block.
func pageBits(n int) uint8 {
	b := uint8(bits.Len64(uint64(max(n, 1) - 1)))
	return max(b, 10)
}

type fixedArray struct {
	filtered   bool
	sizeBytes  int
	entrySize  int
	pageBits   uint8
	headerAddr uint64
	dataAddr   uint64
}

func newFixedArray(cfg binary.Config, n int, filtered bool, chunkBytes uint64) *fixedArray {
	fa := &fixedArray{filtered: filtered, entrySize: cfg.Offsets, pageBits: pageBits(n)}
	if filtered {
		fa.sizeBytes = chunkSizeBytes(chunkBytes)
		fa.entrySize += fa.sizeBytes + 4
	}
	return fa
}

func (fa *fixedArray) clientID() uint8 {
	if fa.filtered {
		return clientFilteredChunks
	}
	return clientChunks
}

func (fa *fixedArray) encodeHeader(cfg binary.Config, n int) ([]byte, error) {
	buf := binary.NewBufferWriterAt(fixedArrayHeaderSize(cfg))
	w := binary.NewWriter(buf, cfg)
	if err := w.WriteBytes(signatureFixedArrayHeader); err != nil {
		return nil, err
	}
	if err := w.WriteBytes([]byte{0, fa.clientID(), uint8(fa.entrySize), fa.pageBits}); err != nil {
		return nil, err
	}
	if err := w.WriteLength(uint64(n)); err != nil {
		return nil, err
	}
	if err := w.WriteOffset(fa.dataAddr); err != nil {
		return nil, err
	}
	return checksum.Append(buf.Bytes(), checksum.Lookup3), nil
}

func (fa *fixedArray) encodeData(cfg binary.Config, chunks []Chunk) ([]byte, error) {
	buf := binary.NewBufferWriterAt(fixedArrayDataSize(cfg, len(chunks), fa.entrySize))
	w := binary.NewWriter(buf, cfg)
	if err := w.WriteBytes(signatureFixedArrayData); err != nil {
		return nil, err
	}
	if err := w.WriteBytes([]byte{0, fa.clientID()}); err != nil {
		return nil, err
	}
	if err := w.WriteOffset(fa.headerAddr); err != nil {
		return nil, err
	}
	for i, c := range chunks {
		if err := w.WriteOffset(c.Address); err != nil {
			return nil, err
		}
		if !fa.filtered {
			continue
		}
		if fa.sizeBytes < 8 && c.Size>>(uint(fa.sizeBytes)*8) != 0 {
			return nil, fmt.Errorf("chunk %d: stored size %d does not fit in %d bytes", i, c.Size, fa.sizeBytes)
		}
		if err := w.WriteUintN(c.Size, fa.sizeBytes); err != nil {
			return nil, err
		}
		if err := w.WriteUint32(c.FilterMask); err != nil {
			return nil, err
		}
	}
	return checksum.Append(buf.Bytes(), checksum.Lookup3), nil
}

// readFixedArray reads a fixed array index of n entries at addr. Both
// blocks pass through the checksum gate before any field is used.
func readFixedArray(r *binary.Reader, addr uint64, n uint64, filtered bool, chunkBytes uint64) ([]Chunk, error) {
	cfg := r.Config()
	raw, err := r.At(int64(addr)).ReadBytes(fixedArrayHeaderSize(cfg))
	if err != nil {
		return nil, fmt.Errorf("reading fixed array header at %d: %w", addr, err)
	}
	hdr, err := checksum.VerifyTrailing(fmt.Sprintf("fixed array header at %d", addr), raw, checksum.Lookup3)
	if err != nil {
		return nil, err
	}
	b := binary.NewBuffer("fixed array header", hdr, cfg)
	sig, _ := b.Bytes(4)
	if string(sig) != string(signatureFixedArrayHeader) {
		return nil, fmt.Errorf("invalid fixed array signature %q at %d", sig, addr)
	}
	version, _ := b.Uint8()
	if version != 0 {
		return nil, &h5err.VersionError{Record: "fixed array header", Version: version}
	}
	client, _ := b.Uint8()
	entrySize, _ := b.Uint8()
	pb, _ := b.Uint8()
	count, _ := b.Length()
	dataAddr, err := b.Address()
	if err != nil {
		return nil, err
	}
	if count != n {
		return nil, fmt.Errorf("fixed array at %d holds %d entries, dataset has %d chunks", addr, count, n)
	}
	if (client == clientFilteredChunks) != filtered {
		return nil, fmt.Errorf("fixed array at %d: client id %d does not match filter pipeline", addr, client)
	}
	if count > 1<<pb {
		return nil, fmt.Errorf("%w: paged fixed array data block", h5err.ErrUnsupported)
	}
	sizeBytes := int(entrySize) - cfg.Offsets
	if filtered {
		sizeBytes -= 4
		if sizeBytes < 1 || sizeBytes > 8 {
			return nil, fmt.Errorf("fixed array at %d: entry size %d", addr, entrySize)
		}
	} else if sizeBytes != 0 {
		return nil, fmt.Errorf("fixed array at %d: entry size %d", addr, entrySize)
	}

	raw, err = r.At(int64(dataAddr)).ReadBytes(fixedArrayDataSize(cfg, int(count), int(entrySize)))
	if err != nil {
		return nil, fmt.Errorf("reading fixed array data block at %d: %w", dataAddr, err)
	}
	data, err := checksum.VerifyTrailing(fmt.Sprintf("fixed array data block at %d", dataAddr), raw, checksum.Lookup3)
	if err != nil {
		return nil, err
	}
	b = binary.NewBuffer("fixed array data block", data, cfg)
	sig, _ = b.Bytes(4)
	if string(sig) != string(signatureFixedArrayData) {
		return nil, fmt.Errorf("invalid fixed array data block signature %q at %d", sig, dataAddr)
	}
	if err := b.Skip(2); err != nil {
		return nil, err
	}
	owner, err := b.Address()
	if err != nil {
		return nil, err
	}
	if owner != addr {
		return nil, fmt.Errorf("fixed array data block at %d belongs to header at %d", dataAddr, owner)
	}
	chunks := make([]Chunk, count)
	for i := range chunks {
		c := &chunks[i]
		if c.Address, err = b.Address(); err != nil {
			return nil, err
		}
		c.Size = chunkBytes
		if filtered {
			if c.Size, err = b.UintN(sizeBytes); err != nil {
				return nil, err
			}
			if c.FilterMask, err = b.Uint32(); err != nil {
				return nil, err
			}
		}
	}
	return chunks, nil
}
