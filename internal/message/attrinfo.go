package message

import "github.com/robert-malhotra/go-h5stream/internal/binary"

// Attribute info flag bits.
const (
	AttrCreationOrderTracked = 0
	AttrCreationOrderIndexed = 1
)

var attributeInfoTable = &Table{
	Record:   "attribute info message",
	Versions: []uint8{0},
	Fields: []Field{
		{Name: "maximum creation index", Bit: AttrCreationOrderTracked, Width: Fixed(2)},
		{Name: "fractal heap address", Bit: Always, Width: OffsetWidth},
		{Name: "name index address", Bit: Always, Width: OffsetWidth},
		{Name: "creation order index address", Bit: AttrCreationOrderIndexed, Width: OffsetWidth},
	},
}

// AttributeInfo describes where an object's densely stored attributes live
// (type 0x0015). Values are immutable once built.
type AttributeInfo struct {
	headerFlags HeaderFlags
	version     uint8
	flags       Flags

	maxCreationIndex   uint64
	heapAddress        uint64
	nameIndex          uint64
	creationOrderIndex uint64
}

// AttributeInfoOption configures NewAttributeInfo.
type AttributeInfoOption func(*AttributeInfo)

// TrackAttributeCreationOrder records the maximum creation index.
func TrackAttributeCreationOrder(maxIndex uint16) AttributeInfoOption {
	return func(m *AttributeInfo) {
		m.flags = m.flags.With(AttrCreationOrderTracked)
		m.maxCreationIndex = uint64(maxIndex)
	}
}

// IndexAttributeCreationOrder records the creation order B-tree address.
func IndexAttributeCreationOrder(addr uint64) AttributeInfoOption {
	return func(m *AttributeInfo) {
		m.flags = m.flags.With(AttrCreationOrderIndexed)
		m.creationOrderIndex = addr
	}
}

// WithAttributeStorage sets the fractal heap and name index addresses.
func WithAttributeStorage(heap, nameIndex uint64) AttributeInfoOption {
	return func(m *AttributeInfo) {
		m.heapAddress = heap
		m.nameIndex = nameIndex
	}
}

// NewAttributeInfo builds an attribute info message. With no options it is
// the empty message of an object with no dense attribute storage: flags
// clear and every field unset.
func NewAttributeInfo(opts ...AttributeInfoOption) *AttributeInfo {
	m := &AttributeInfo{
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

func decodeAttributeInfo(data []byte, hf HeaderFlags, cfg binary.Config) (Message, error) {
	m := &AttributeInfo{headerFlags: hf}
	var err error
	m.version, m.flags, err = attributeInfoTable.Decode(data, cfg,
		&m.maxCreationIndex, &m.heapAddress, &m.nameIndex, &m.creationOrderIndex)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *AttributeInfo) Type() Type               { return TypeAttributeInfo }
func (m *AttributeInfo) HeaderFlags() HeaderFlags { return m.headerFlags }
func (m *AttributeInfo) Version() uint8           { return m.version }
func (m *AttributeInfo) Flags() Flags             { return m.flags }

// MaxCreationIndex returns the maximum creation index, if tracked.
func (m *AttributeInfo) MaxCreationIndex() (uint16, bool) {
	return uint16(m.maxCreationIndex), m.flags.Has(AttrCreationOrderTracked)
}

func (m *AttributeInfo) FractalHeapAddress() uint64 { return m.heapAddress }
func (m *AttributeInfo) NameIndexAddress() uint64   { return m.nameIndex }

// CreationOrderIndexAddress returns UndefinedAddress when not indexed.
func (m *AttributeInfo) CreationOrderIndexAddress() uint64 { return m.creationOrderIndex }

func (m *AttributeInfo) Encode(cfg binary.Config) ([]byte, error) {
	return attributeInfoTable.Encode(m.version, m.flags, cfg,
		m.maxCreationIndex, m.heapAddress, m.nameIndex, m.creationOrderIndex)
}

func (m *AttributeInfo) EncodedSize(cfg binary.Config) int {
	return attributeInfoTable.Size(m.flags, cfg.Widths)
}
