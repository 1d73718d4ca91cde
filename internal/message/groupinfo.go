package message

import "github.com/robert-malhotra/go-h5stream/internal/binary"

// Group info flag bits.
const (
	GroupLinkPhaseChange = 0
	GroupEstimatedSizes  = 1
)

// Library defaults used when the corresponding flag bit is clear.
const (
	DefaultMaxCompact          = 8
	DefaultMinDense            = 6
	DefaultEstimatedEntries    = 4
	DefaultEstimatedNameLength = 8
)

var groupInfoTable = &Table{
	Record:   "group info message",
	Versions: []uint8{0},
	Fields: []Field{
		{Name: "maximum compact links", Bit: GroupLinkPhaseChange, Width: Fixed(2)},
		{Name: "minimum dense links", Bit: GroupLinkPhaseChange, Width: Fixed(2)},
		{Name: "estimated entries", Bit: GroupEstimatedSizes, Width: Fixed(2)},
		{Name: "estimated name length", Bit: GroupEstimatedSizes, Width: Fixed(2)},
	},
}

// GroupInfo holds the link storage tuning of a new-style group
// (type 0x000A).
type GroupInfo struct {
	headerFlags HeaderFlags
	version     uint8
	flags       Flags

	maxCompact    uint64
	minDense      uint64
	estEntries    uint64
	estNameLength uint64
}

// GroupInfoOption configures NewGroupInfo.
type GroupInfoOption func(*GroupInfo)

// WithLinkPhaseChange stores the compact/dense thresholds.
func WithLinkPhaseChange(maxCompact, minDense uint16) GroupInfoOption {
	return func(m *GroupInfo) {
		m.flags = m.flags.With(GroupLinkPhaseChange)
		m.maxCompact, m.minDense = uint64(maxCompact), uint64(minDense)
	}
}

// WithEstimatedSizes stores the estimated entry count and name length.
func WithEstimatedSizes(entries, nameLength uint16) GroupInfoOption {
	return func(m *GroupInfo) {
		m.flags = m.flags.With(GroupEstimatedSizes)
		m.estEntries, m.estNameLength = uint64(entries), uint64(nameLength)
	}
}

// NewGroupInfo builds a group info message. With no options every field is
// unset and readers apply the library defaults.
func NewGroupInfo(opts ...GroupInfoOption) *GroupInfo {
	m := &GroupInfo{maxCompact: Unset, minDense: Unset, estEntries: Unset, estNameLength: Unset}
	for _, o := range opts {
		o(m)
	}
	return m
}

func decodeGroupInfo(data []byte, hf HeaderFlags, cfg binary.Config) (Message, error) {
	m := &GroupInfo{headerFlags: hf}
	var err error
	m.version, m.flags, err = groupInfoTable.Decode(data, cfg,
		&m.maxCompact, &m.minDense, &m.estEntries, &m.estNameLength)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *GroupInfo) Type() Type               { return TypeGroupInfo }
func (m *GroupInfo) HeaderFlags() HeaderFlags { return m.headerFlags }
func (m *GroupInfo) Version() uint8           { return m.version }
func (m *GroupInfo) Flags() Flags             { return m.flags }

// PhaseChange returns the compact/dense thresholds, falling back to the
// library defaults when they are not stored.
func (m *GroupInfo) PhaseChange() (maxCompact, minDense uint16) {
	if !m.flags.Has(GroupLinkPhaseChange) {
		return DefaultMaxCompact, DefaultMinDense
	}
	return uint16(m.maxCompact), uint16(m.minDense)
}

// EstimatedSizes returns the estimated entry count and name length.
func (m *GroupInfo) EstimatedSizes() (entries, nameLength uint16) {
	if !m.flags.Has(GroupEstimatedSizes) {
		return DefaultEstimatedEntries, DefaultEstimatedNameLength
	}
	return uint16(m.estEntries), uint16(m.estNameLength)
}

func (m *GroupInfo) Encode(cfg binary.Config) ([]byte, error) {
	return groupInfoTable.Encode(m.version, m.flags, cfg,
		m.maxCompact, m.minDense, m.estEntries, m.estNameLength)
}

func (m *GroupInfo) EncodedSize(cfg binary.Config) int {
	return groupInfoTable.Size(m.flags, cfg.Widths)
}
