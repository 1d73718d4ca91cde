package layout

import (
	"fmt"

	"github.com/robert-malhotra/go-h5stream/internal/alloc"
	"github.com/robert-malhotra/go-h5stream/internal/binary"
	"github.com/robert-malhotra/go-h5stream/internal/filter"
	"github.com/robert-malhotra/go-h5stream/internal/message"
)

// ChunkWriter writes the chunks of one dataset in storage order and then
// its chunk index. It is not safe for concurrent use.
type ChunkWriter struct {
	w          *binary.Writer
	alloc      *alloc.Allocator
	pipeline   *filter.Pipeline
	chunkBytes uint64
	implicit   bool
	chunks     []Chunk
	stored     uint64
}

// ChunkWriterOption configures a ChunkWriter.
type ChunkWriterOption func(*ChunkWriter)

// PreferImplicit selects the implicit index for multi-chunk datasets whose
// chunks are unfiltered and contiguous.
func PreferImplicit() ChunkWriterOption {
	return func(cw *ChunkWriter) { cw.implicit = true }
}

// NewChunkWriter returns a writer for chunks of chunkBytes unfiltered bytes.
func NewChunkWriter(w *binary.Writer, a *alloc.Allocator, p *filter.Pipeline, chunkBytes uint64, opts ...ChunkWriterOption) *ChunkWriter {
	cw := &ChunkWriter{w: w, alloc: a, pipeline: p, chunkBytes: chunkBytes}
	for _, opt := range opts {
		opt(cw)
	}
	return cw
}

// Write filters one full chunk and writes it at the end of the file.
func (cw *ChunkWriter) Write(data []byte) (Chunk, error) {
	if uint64(len(data)) != cw.chunkBytes {
		return Chunk{}, fmt.Errorf("chunk %d is %d bytes, want %d", len(cw.chunks), len(data), cw.chunkBytes)
	}
	stored, mask, err := cw.pipeline.Encode(data)
	if err != nil {
		return Chunk{}, fmt.Errorf("chunk %d: %w", len(cw.chunks), err)
	}
	addr, err := cw.alloc.Alloc(uint64(len(stored)), alloc.KindChunk)
	if err != nil {
		return Chunk{}, err
	}
	if err := cw.w.At(int64(addr)).WriteBytes(stored); err != nil {
		return Chunk{}, fmt.Errorf("writing chunk %d at %d: %w", len(cw.chunks), addr, err)
	}
	c := Chunk{Address: addr, Size: uint64(len(stored)), FilterMask: mask}
	cw.chunks = append(cw.chunks, c)
	cw.stored += c.Size
	return c, nil
}

// Chunks returns the chunks written so far.
func (cw *ChunkWriter) Chunks() []Chunk { return cw.chunks }

// StoredBytes returns the total bytes written for chunks.
func (cw *ChunkWriter) StoredBytes() uint64 { return cw.stored }

func (cw *ChunkWriter) contiguous() bool {
	for i := 1; i < len(cw.chunks); i++ {
		if cw.chunks[i].Address != cw.chunks[i-1].Address+cw.chunkBytes {
			return false
		}
	}
	return true
}

// Finish writes the index for the chunks written and records it in lay,
// which must be a chunked layout.
func (cw *ChunkWriter) Finish(lay *message.DataLayout) error {
	lay.Flags = 0
	lay.IndexParams = nil
	lay.FilteredSize = message.Unset
	lay.FilterMask = 0
	filtered := !cw.pipeline.Empty()

	switch {
	case len(cw.chunks) == 0:
		// Nothing allocated: an undefined index address reads as all fill.
		lay.IndexType = message.ChunkIndexSingle
		lay.IndexAddress = message.UndefinedAddress
		return nil
	case len(cw.chunks) == 1:
		lay.IndexType = message.ChunkIndexSingle
		lay.IndexAddress = cw.chunks[0].Address
		if filtered {
			lay.Flags = lay.Flags.With(message.LayoutSingleChunkFiltered)
			lay.FilteredSize = cw.chunks[0].Size
			lay.FilterMask = cw.chunks[0].FilterMask
		}
		return nil
	case cw.implicit && !filtered && cw.contiguous():
		lay.IndexType = message.ChunkIndexImplicit
		lay.IndexAddress = cw.chunks[0].Address
		return nil
	}
	return cw.writeFixedArray(lay, filtered)
}

func (cw *ChunkWriter) writeFixedArray(lay *message.DataLayout, filtered bool) error {
	cfg := cw.w.Config()
	n := len(cw.chunks)
	fa := newFixedArray(cfg, n, filtered, cw.chunkBytes)

	var err error
	if fa.headerAddr, err = cw.alloc.Alloc(uint64(fixedArrayHeaderSize(cfg)), alloc.KindChunkIndex); err != nil {
		return err
	}
	if fa.dataAddr, err = cw.alloc.Alloc(uint64(fixedArrayDataSize(cfg, n, fa.entrySize)), alloc.KindChunkIndex); err != nil {
		return err
	}
	data, err := fa.encodeData(cfg, cw.chunks)
	if err != nil {
		return err
	}
	if err := cw.w.At(int64(fa.dataAddr)).WriteBytes(data); err != nil {
		return fmt.Errorf("writing fixed array data block: %w", err)
	}
	hdr, err := fa.encodeHeader(cfg, n)
	if err != nil {
		return err
	}
	if err := cw.w.At(int64(fa.headerAddr)).WriteBytes(hdr); err != nil {
		return fmt.Errorf("writing fixed array header: %w", err)
	}

	lay.IndexType = message.ChunkIndexFixedArray
	lay.IndexParams = []byte{fa.pageBits}
	lay.IndexAddress = fa.headerAddr
	return nil
}
