package layout

import (
	"fmt"

	"github.com/robert-malhotra/go-h5stream/internal/h5err"
	"github.com/robert-malhotra/go-h5stream/internal/message"
)

// Chunk is the location of one stored chunk.
type Chunk struct {
	Address    uint64
	Size       uint64 // stored bytes, after filtering
	FilterMask uint32
}

// Grid returns the number of chunks along each dimension.
func Grid(dims, chunkDims []uint64) ([]uint64, error) {
	if len(dims) != len(chunkDims) {
		return nil, fmt.Errorf("dataset rank %d does not match chunk rank %d", len(dims), len(chunkDims))
	}
	grid := make([]uint64, len(dims))
	for d := range dims {
		if chunkDims[d] == 0 {
			return nil, fmt.Errorf("chunk dimension %d is zero", d)
		}
		grid[d] = (dims[d] + chunkDims[d] - 1) / chunkDims[d]
	}
	return grid, nil
}

// NumChunks returns the total number of chunks covering dims.
func NumChunks(dims, chunkDims []uint64) (uint64, error) {
	grid, err := Grid(dims, chunkDims)
	if err != nil {
		return 0, err
	}
	n := uint64(1)
	for _, g := range grid {
		n *= g
	}
	return n, nil
}

// chunkOffset converts a linear chunk index into the element coordinates
// of the chunk's first element.
func chunkOffset(index uint64, grid, chunkDims []uint64) []uint64 {
	off := make([]uint64, len(grid))
	for d := len(grid) - 1; d >= 0; d-- {
		off[d] = (index % grid[d]) * chunkDims[d]
		index /= grid[d]
	}
	return off
}

func checkChunked(lay *message.DataLayout) error {
	if lay.Class != message.LayoutChunked {
		return fmt.Errorf("%w: %s layout has no chunk index", h5err.ErrUnsupported, lay.Class)
	}
	switch lay.IndexType {
	case message.ChunkIndexSingle, message.ChunkIndexImplicit, message.ChunkIndexFixedArray:
		return nil
	}
	return fmt.Errorf("%w: %s chunk index", h5err.ErrUnsupported, lay.IndexType)
}
