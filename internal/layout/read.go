package layout

import (
	"fmt"

	"github.com/robert-malhotra/go-h5stream/internal/binary"
	"github.com/robert-malhotra/go-h5stream/internal/filter"
	"github.com/robert-malhotra/go-h5stream/internal/h5err"
	"github.com/robert-malhotra/go-h5stream/internal/message"
)

// Index returns the chunks of a chunked dataset in linear chunk order. An
// undefined index address yields no chunks.
func Index(r *binary.Reader, lay *message.DataLayout, dims []uint64, filtered bool) ([]Chunk, error) {
	if err := checkChunked(lay); err != nil {
		return nil, err
	}
	if r.Config().IsUndefinedOffset(lay.IndexAddress) {
		return nil, nil
	}
	n, err := NumChunks(dims, lay.ChunkDims)
	if err != nil {
		return nil, err
	}
	chunkBytes := lay.ChunkBytes()
	switch lay.IndexType {
	case message.ChunkIndexSingle:
		if n != 1 {
			return nil, fmt.Errorf("single chunk index for %d chunks", n)
		}
		c := Chunk{Address: lay.IndexAddress, Size: chunkBytes}
		if lay.FilteredSize != message.Unset {
			c.Size, c.FilterMask = lay.FilteredSize, lay.FilterMask
		}
		return []Chunk{c}, nil
	case message.ChunkIndexImplicit:
		if filtered {
			return nil, fmt.Errorf("implicit chunk index with filters")
		}
		chunks := make([]Chunk, n)
		for i := range chunks {
			chunks[i] = Chunk{Address: lay.IndexAddress + uint64(i)*chunkBytes, Size: chunkBytes}
		}
		return chunks, nil
	}
	return readFixedArray(r, lay.IndexAddress, n, filtered, chunkBytes)
}

// Read returns the row-major bytes of a dataset with dimensions dims and
// elements of elemSize bytes. fill is the element pattern used where no
// chunk is stored; nil means zeros.
func Read(r *binary.Reader, lay *message.DataLayout, dims []uint64, elemSize int, p *filter.Pipeline, fill []byte) ([]byte, error) {
	total := uint64(elemSize)
	for _, d := range dims {
		total *= d
	}
	out := make([]byte, total)
	if len(fill) == elemSize && elemSize > 0 {
		for off := 0; off < len(out); off += elemSize {
			copy(out[off:], fill)
		}
	}

	switch lay.Class {
	case message.LayoutCompact:
		copy(out, lay.CompactData)
		return out, nil
	case message.LayoutContiguous:
		if r.Config().IsUndefinedOffset(lay.Address) {
			return out, nil
		}
		raw, err := r.At(int64(lay.Address)).ReadBytes(int(min(lay.Size, total)))
		if err != nil {
			return nil, fmt.Errorf("reading contiguous data at %d: %w", lay.Address, err)
		}
		copy(out, raw)
		return out, nil
	case message.LayoutChunked:
	default:
		return nil, fmt.Errorf("%w: %s storage", h5err.ErrUnsupported, lay.Class)
	}

	if p == nil {
		p = &filter.Pipeline{}
	}
	if uint64(elemSize) != uint64(lay.ElementSize) {
		return nil, fmt.Errorf("layout element size %d does not match datatype size %d", lay.ElementSize, elemSize)
	}
	chunks, err := Index(r, lay, dims, !p.Empty())
	if err != nil {
		return nil, err
	}
	grid, err := Grid(dims, lay.ChunkDims)
	if err != nil {
		return nil, err
	}
	chunkBytes := lay.ChunkBytes()
	for i, c := range chunks {
		if r.Config().IsUndefinedOffset(c.Address) || c.Address == 0 {
			continue
		}
		raw, err := r.At(int64(c.Address)).ReadBytes(int(c.Size))
		if err != nil {
			return nil, fmt.Errorf("reading chunk %d at %d: %w", i, c.Address, err)
		}
		data, err := p.Decode(raw, c.FilterMask, chunkBytes)
		if err != nil {
			return nil, fmt.Errorf("chunk %d at %d: %w", i, c.Address, err)
		}
		if uint64(len(data)) != chunkBytes {
			return nil, fmt.Errorf("chunk %d decoded to %d bytes, want %d", i, len(data), chunkBytes)
		}
		copyChunk(out, data, chunkOffset(uint64(i), grid, lay.ChunkDims), dims, lay.ChunkDims, uint64(elemSize))
	}
	return out, nil
}

// copyChunk copies one chunk into the dataset buffer. Edge chunks are
// clipped to the dataset extent; the rest of the chunk is fill.
func copyChunk(out, chunk []byte, offset, dims, chunkDims []uint64, elemSize uint64) {
	rank := len(dims)
	extent := make([]uint64, rank)
	for d := range dims {
		extent[d] = min(chunkDims[d], dims[d]-offset[d])
	}
	outStrides := make([]uint64, rank)
	chunkStrides := make([]uint64, rank)
	outStrides[rank-1], chunkStrides[rank-1] = elemSize, elemSize
	for d := rank - 2; d >= 0; d-- {
		outStrides[d] = outStrides[d+1] * dims[d+1]
		chunkStrides[d] = chunkStrides[d+1] * chunkDims[d+1]
	}
	var walk func(d int, outIdx, chunkIdx uint64)
	walk = func(d int, outIdx, chunkIdx uint64) {
		if d == rank-1 {
			start := outIdx + offset[d]*elemSize
			n := extent[d] * elemSize
			copy(out[start:start+n], chunk[chunkIdx:chunkIdx+n])
			return
		}
		for i := uint64(0); i < extent[d]; i++ {
			walk(d+1, outIdx+(offset[d]+i)*outStrides[d], chunkIdx+i*chunkStrides[d])
		}
	}
	walk(0, 0, 0)
}
