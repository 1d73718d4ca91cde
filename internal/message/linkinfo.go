package message

import "github.com/robert-malhotra/go-h5stream/internal/binary"

// Link info flag bits.
const (
	LinkCreationOrderTracked = 0
	LinkCreationOrderIndexed = 1
)

var linkInfoTable = &Table{
	Record:   "link info message",
	Versions: []uint8{0},
	Fields: []Field{
		{Name: "maximum creation index", Bit: LinkCreationOrderTracked, Width: Fixed(8)},
		{Name: "fractal heap address", Bit: Always, Width: OffsetWidth},
		{Name: "name index address", Bit: Always, Width: OffsetWidth},
		{Name: "creation order index address", Bit: LinkCreationOrderIndexed, Width: OffsetWidth},
	},
}

// LinkInfo describes a new-style group's link storage (type 0x0002). A
// group whose links are all compact has undefined heap and index addresses.
type LinkInfo struct {
	headerFlags HeaderFlags
	version     uint8
	flags       Flags

	maxCreationIndex   uint64
	heapAddress        uint64
	nameIndex          uint64
	creationOrderIndex uint64
}

// LinkInfoOption configures NewLinkInfo.
type LinkInfoOption func(*LinkInfo)

// TrackLinkCreationOrder records the maximum link creation index.
func TrackLinkCreationOrder(maxIndex uint64) LinkInfoOption {
	return func(m *LinkInfo) {
		m.flags = m.flags.With(LinkCreationOrderTracked)
		m.maxCreationIndex = maxIndex
	}
}

// IndexLinkCreationOrder records the creation order index address.
func IndexLinkCreationOrder(addr uint64) LinkInfoOption {
	return func(m *LinkInfo) {
		m.flags = m.flags.With(LinkCreationOrderIndexed)
		m.creationOrderIndex = addr
	}
}

// WithLinkStorage sets the fractal heap and name index addresses.
func WithLinkStorage(heap, nameIndex uint64) LinkInfoOption {
	return func(m *LinkInfo) {
		m.heapAddress = heap
		m.nameIndex = nameIndex
	}
}

// NewLinkInfo builds a link info message for compact link storage,
// adjusted by opts.
func NewLinkInfo(opts ...LinkInfoOption) *LinkInfo {
	m := &LinkInfo{
		maxCreationIndex:   Unset,
		heapAddress:        UndefinedAddress,
		nameIndex:          UndefinedAddress,
		creationOrderIndex: UndefinedAddress,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func decodeLinkInfo(data []byte, hf HeaderFlags, cfg binary.Config) (Message, error) {
	m := &LinkInfo{headerFlags: hf}
	var err error
	m.version, m.flags, err = linkInfoTable.Decode(data, cfg,
		&m.maxCreationIndex, &m.heapAddress, &m.nameIndex, &m.creationOrderIndex)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *LinkInfo) Type() Type               { return TypeLinkInfo }
func (m *LinkInfo) HeaderFlags() HeaderFlags { return m.headerFlags }
func (m *LinkInfo) Version() uint8           { return m.version }
func (m *LinkInfo) Flags() Flags             { return m.flags }

// MaxCreationIndex returns the maximum creation index, if tracked.
func (m *LinkInfo) MaxCreationIndex() (uint64, bool) {
	return m.maxCreationIndex, m.flags.Has(LinkCreationOrderTracked)
}

func (m *LinkInfo) FractalHeapAddress() uint64        { return m.heapAddress }
func (m *LinkInfo) NameIndexAddress() uint64          { return m.nameIndex }
func (m *LinkInfo) CreationOrderIndexAddress() uint64 { return m.creationOrderIndex }

// Compact reports whether links are stored as Link messages in the header.
func (m *LinkInfo) Compact() bool { return m.heapAddress == UndefinedAddress }

func (m *LinkInfo) Encode(cfg binary.Config) ([]byte, error) {
	return linkInfoTable.Encode(m.version, m.flags, cfg,
		m.maxCreationIndex, m.heapAddress, m.nameIndex, m.creationOrderIndex)
}

func (m *LinkInfo) EncodedSize(cfg binary.Config) int {
	return linkInfoTable.Size(m.flags, cfg.Widths)
}
