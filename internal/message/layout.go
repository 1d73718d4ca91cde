package message

import (
	"fmt"

	"github.com/robert-malhotra/go-h5stream/internal/binary"
	"github.com/robert-malhotra/go-h5stream/internal/h5err"
)

// LayoutClass is the storage class of a dataset.
type LayoutClass uint8

const (
	LayoutCompact    LayoutClass = 0
	LayoutContiguous LayoutClass = 1
	LayoutChunked    LayoutClass = 2
	LayoutVirtual    LayoutClass = 3
)

func (c LayoutClass) String() string {
	switch c {
	case LayoutCompact:
		return "compact"
	case LayoutContiguous:
		return "contiguous"
	case LayoutChunked:
		return "chunked"
	case LayoutVirtual:
		return "virtual"
	}
	return fmt.Sprintf("layout %d", uint8(c))
}

// ChunkIndexType identifies the structure indexing a chunked dataset.
type ChunkIndexType uint8

const (
	ChunkIndexSingle          ChunkIndexType = 1
	ChunkIndexImplicit        ChunkIndexType = 2
	ChunkIndexFixedArray      ChunkIndexType = 3
	ChunkIndexExtensibleArray ChunkIndexType = 4
	ChunkIndexBTreeV2         ChunkIndexType = 5
)

func (t ChunkIndexType) String() string {
	switch t {
	case ChunkIndexSingle:
		return "single chunk"
	case ChunkIndexImplicit:
		return "implicit"
	case ChunkIndexFixedArray:
		return "fixed array"
	case ChunkIndexExtensibleArray:
		return "extensible array"
	case ChunkIndexBTreeV2:
		return "v2 B-tree"
	}
	return fmt.Sprintf("index %d", uint8(t))
}

// size of the index-specific parameters in a version 4 layout
var indexParamSize = map[ChunkIndexType]int{
	ChunkIndexSingle:          0,
	ChunkIndexImplicit:        0,
	ChunkIndexFixedArray:      1,
	ChunkIndexExtensibleArray: 5,
	ChunkIndexBTreeV2:         6,
}

// Chunked layout flag bits.
const (
	LayoutDontFilterPartialChunks = 0
	LayoutSingleChunkFiltered     = 1
)

// DataLayout describes where a dataset's elements are stored (type 0x0008).
type DataLayout struct {
	Version uint8
	Class   LayoutClass

	// Compact.
	CompactData []byte

	// Contiguous.
	Address uint64
	Size    uint64

	// Chunked. ChunkDims excludes the trailing element-size dimension
	// the format stores, which is kept in ElementSize.
	Flags        Flags
	ChunkDims    []uint64
	ElementSize  uint32
	IndexType    ChunkIndexType
	IndexParams  []byte
	IndexAddress uint64

	// Single chunk index with filters applied.
	FilteredSize uint64
	FilterMask   uint32
}

func (m *DataLayout) Type() Type { return TypeDataLayout }

// NewChunkedLayout returns a version 4 chunked layout. The index address
// and single-chunk fields are filled in once chunks are written.
func NewChunkedLayout(chunkDims []uint64, elementSize uint32, index ChunkIndexType) *DataLayout {
	m := &DataLayout{
		Version:      4,
		Class:        LayoutChunked,
		ChunkDims:    append([]uint64(nil), chunkDims...),
		ElementSize:  elementSize,
		IndexType:    index,
		IndexAddress: UndefinedAddress,
		FilteredSize: Unset,
	}
	if index == ChunkIndexFixedArray {
		m.IndexParams = []byte{FixedArrayPageBits}
	}
	return m
}

// NewContiguousLayout returns a version 3 contiguous layout.
func NewContiguousLayout(address, size uint64) *DataLayout {
	return &DataLayout{
		Version:      3,
		Class:        LayoutContiguous,
		Address:      address,
		Size:         size,
		IndexAddress: UndefinedAddress,
		FilteredSize: Unset,
	}
}

// FixedArrayPageBits is the page size exponent written for fixed array indexes.
const FixedArrayPageBits = 10

// PageBits returns the fixed array page size exponent.
func (m *DataLayout) PageBits() uint8 {
	if m.IndexType != ChunkIndexFixedArray || len(m.IndexParams) == 0 {
		return 0
	}
	return m.IndexParams[0]
}

// ChunkBytes returns the unfiltered size of one chunk.
func (m *DataLayout) ChunkBytes() uint64 {
	n := uint64(m.ElementSize)
	for _, d := range m.ChunkDims {
		n *= d
	}
	return n
}

func decodeDataLayout(data []byte, _ HeaderFlags, cfg binary.Config) (Message, error) {
	const record = "data layout message"
	b := binary.NewBuffer(record, data, cfg)
	version, err := b.Uint8()
	if err != nil {
		return nil, err
	}
	if version != 3 && version != 4 {
		return nil, &h5err.VersionError{Record: record, Version: version}
	}
	class, err := b.Uint8()
	if err != nil {
		return nil, err
	}
	m := &DataLayout{Version: version, Class: LayoutClass(class), IndexAddress: UndefinedAddress, FilteredSize: Unset}
	switch m.Class {
	case LayoutCompact:
		size, err := b.Uint16()
		if err != nil {
			return nil, err
		}
		raw, err := b.Bytes(int(size))
		if err != nil {
			return nil, err
		}
		m.CompactData = append([]byte{}, raw...)
	case LayoutContiguous:
		if m.Address, err = b.Address(); err != nil {
			return nil, err
		}
		if m.Size, err = b.Length(); err != nil {
			return nil, err
		}
	case LayoutChunked:
		if version == 3 {
			err = decodeChunkedV3(b, m)
		} else {
			err = decodeChunkedV4(b, m)
		}
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s storage", h5err.ErrUnsupported, m.Class)
	}
	return m, nil
}

func decodeChunkedV3(b *binary.Buffer, m *DataLayout) error {
	rank, err := b.Uint8()
	if err != nil {
		return err
	}
	if rank < 1 {
		return fmt.Errorf("chunked layout with %d dimensions", rank)
	}
	if m.IndexAddress, err = b.Address(); err != nil {
		return err
	}
	dims := make([]uint64, rank)
	for i := range dims {
		if dims[i], err = b.UintN(4); err != nil {
			return err
		}
	}
	m.ChunkDims, m.ElementSize = dims[:rank-1], uint32(dims[rank-1])
	return nil
}

func decodeChunkedV4(b *binary.Buffer, m *DataLayout) error {
	raw, err := b.Uint8()
	if err != nil {
		return err
	}
	m.Flags = Flags(raw)
	rank, err := b.Uint8()
	if err != nil {
		return err
	}
	if rank < 1 {
		return fmt.Errorf("chunked layout with %d dimensions", rank)
	}
	dimBytes, err := b.Uint8()
	if err != nil {
		return err
	}
	if dimBytes < 1 || dimBytes > 8 {
		return fmt.Errorf("chunked layout dimension size %d", dimBytes)
	}
	dims := make([]uint64, rank)
	for i := range dims {
		if dims[i], err = b.UintN(int(dimBytes)); err != nil {
			return err
		}
	}
	m.ChunkDims, m.ElementSize = dims[:rank-1], uint32(dims[rank-1])
	idx, err := b.Uint8()
	if err != nil {
		return err
	}
	m.IndexType = ChunkIndexType(idx)
	n, ok := indexParamSize[m.IndexType]
	if !ok {
		return fmt.Errorf("%w: chunk index type %d", h5err.ErrUnsupported, idx)
	}
	if m.IndexType == ChunkIndexSingle && m.Flags.Has(LayoutSingleChunkFiltered) {
		if m.FilteredSize, err = b.Length(); err != nil {
			return err
		}
		if m.FilterMask, err = b.Uint32(); err != nil {
			return err
		}
	}
	if n > 0 {
		params, err := b.Bytes(n)
		if err != nil {
			return err
		}
		m.IndexParams = append([]byte{}, params...)
	}
	m.IndexAddress, err = b.Address()
	return err
}

// dimSizeBytes returns the smallest encoded width holding every chunk
// dimension and the element size.
func (m *DataLayout) dimSizeBytes() int {
	widest := uint64(m.ElementSize)
	for _, d := range m.ChunkDims {
		widest = max(widest, d)
	}
	switch {
	case widest <= 0xFF:
		return 1
	case widest <= 0xFFFF:
		return 2
	case widest <= 0xFFFFFFFF:
		return 4
	}
	return 8
}

func (m *DataLayout) flags() Flags {
	f := m.Flags
	if m.IndexType == ChunkIndexSingle && m.FilteredSize != Unset {
		f = f.With(LayoutSingleChunkFiltered)
	}
	return f
}

// Encode writes version 4 for chunked storage and version 3 otherwise.
func (m *DataLayout) Encode(cfg binary.Config) ([]byte, error) {
	w := binary.NewBufferWriterAt(m.EncodedSize(cfg))
	bw := binary.NewWriter(w, cfg)
	version := uint8(3)
	if m.Class == LayoutChunked {
		version = 4
	}
	if err := bw.WriteUint8(version); err != nil {
		return nil, err
	}
	if err := bw.WriteUint8(uint8(m.Class)); err != nil {
		return nil, err
	}
	switch m.Class {
	case LayoutCompact:
		if err := bw.WriteUint16(uint16(len(m.CompactData))); err != nil {
			return nil, err
		}
		if err := bw.WriteBytes(m.CompactData); err != nil {
			return nil, err
		}
	case LayoutContiguous:
		if err := bw.WriteOffset(m.Address); err != nil {
			return nil, err
		}
		if err := bw.WriteLength(m.Size); err != nil {
			return nil, err
		}
	case LayoutChunked:
		if err := m.encodeChunked(bw); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s storage", h5err.ErrUnsupported, m.Class)
	}
	return w.Bytes(), nil
}

func (m *DataLayout) encodeChunked(w *binary.Writer) error {
	want, ok := indexParamSize[m.IndexType]
	if !ok {
		return fmt.Errorf("%w: chunk index type %d", h5err.ErrUnsupported, uint8(m.IndexType))
	}
	if len(m.IndexParams) != want {
		return fmt.Errorf("%s index takes %d parameter bytes, have %d", m.IndexType, want, len(m.IndexParams))
	}
	flags := m.flags()
	dimBytes := m.dimSizeBytes()
	if err := w.WriteUint8(uint8(flags)); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(len(m.ChunkDims) + 1)); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(dimBytes)); err != nil {
		return err
	}
	for _, d := range m.ChunkDims {
		if err := w.WriteUintN(d, dimBytes); err != nil {
			return err
		}
	}
	if err := w.WriteUintN(uint64(m.ElementSize), dimBytes); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(m.IndexType)); err != nil {
		return err
	}
	if flags.Has(LayoutSingleChunkFiltered) && m.IndexType == ChunkIndexSingle {
		if err := w.WriteLength(m.FilteredSize); err != nil {
			return err
		}
		if err := w.WriteUint32(m.FilterMask); err != nil {
			return err
		}
	}
	if err := w.WriteBytes(m.IndexParams); err != nil {
		return err
	}
	return w.WriteOffset(m.IndexAddress)
}

func (m *DataLayout) EncodedSize(cfg binary.Config) int {
	n := 2
	switch m.Class {
	case LayoutCompact:
		n += 2 + len(m.CompactData)
	case LayoutContiguous:
		n += cfg.Offsets + cfg.Lengths
	case LayoutChunked:
		n += 3 + (len(m.ChunkDims)+1)*m.dimSizeBytes() + 1
		if m.IndexType == ChunkIndexSingle && m.flags().Has(LayoutSingleChunkFiltered) {
			n += cfg.Lengths + 4
		}
		n += len(m.IndexParams) + cfg.Offsets
	}
	return n
}
