package message

import (
	"github.com/robert-malhotra/go-h5stream/internal/binary"
	"github.com/robert-malhotra/go-h5stream/internal/h5err"
)

// DataspaceType classifies a dataspace.
type DataspaceType uint8

const (
	DataspaceScalar DataspaceType = 0
	DataspaceSimple DataspaceType = 1
	DataspaceNull   DataspaceType = 2
)

// Unlimited is the maximum dimension of an extendible axis.
const Unlimited = Unset

const dataspaceMaxDims = 0

// Dataspace describes the shape of a dataset or attribute (type 0x0001).
type Dataspace struct {
	Version uint8
	Kind    DataspaceType
	Dims    []uint64
	MaxDims []uint64 // nil when equal to Dims
}

func (m *Dataspace) Type() Type { return TypeDataspace }

// Rank returns the number of dimensions.
func (m *Dataspace) Rank() int { return len(m.Dims) }

// NumElements returns the number of elements the dataspace holds.
func (m *Dataspace) NumElements() uint64 {
	switch m.Kind {
	case DataspaceNull:
		return 0
	case DataspaceScalar:
		return 1
	}
	n := uint64(1)
	for _, d := range m.Dims {
		n *= d
	}
	return n
}

// NewSimpleDataspace returns a fixed-size dataspace.
func NewSimpleDataspace(dims ...uint64) *Dataspace {
	return &Dataspace{Version: 2, Kind: DataspaceSimple, Dims: append([]uint64(nil), dims...)}
}

// NewScalarDataspace returns a single-element dataspace.
func NewScalarDataspace() *Dataspace {
	return &Dataspace{Version: 2, Kind: DataspaceScalar}
}

func decodeDataspace(data []byte, _ HeaderFlags, cfg binary.Config) (Message, error) {
	const record = "dataspace message"
	b := binary.NewBuffer(record, data, cfg)
	version, err := b.Uint8()
	if err != nil {
		return nil, err
	}
	if version != 1 && version != 2 {
		return nil, &h5err.VersionError{Record: record, Version: version}
	}
	rank, err := b.Uint8()
	if err != nil {
		return nil, err
	}
	raw, err := b.Uint8()
	if err != nil {
		return nil, err
	}
	flags := Flags(raw)
	m := &Dataspace{Version: version, Kind: DataspaceSimple}
	if version == 1 {
		if err := b.Skip(5); err != nil {
			return nil, err
		}
		if rank == 0 {
			m.Kind = DataspaceScalar
		}
	} else {
		kind, err := b.Uint8()
		if err != nil {
			return nil, err
		}
		m.Kind = DataspaceType(kind)
	}
	if rank == 0 {
		return m, nil
	}
	m.Dims = make([]uint64, rank)
	for i := range m.Dims {
		if m.Dims[i], err = b.Length(); err != nil {
			return nil, err
		}
	}
	if flags.Has(dataspaceMaxDims) {
		m.MaxDims = make([]uint64, rank)
		for i := range m.MaxDims {
			v, err := b.Length()
			if err != nil {
				return nil, err
			}
			if v == cfg.UndefinedLength() {
				v = Unlimited
			}
			m.MaxDims[i] = v
		}
	}
	return m, nil
}

// Encode writes version 2; version 1 dataspaces are re-encoded as version 2.
func (m *Dataspace) Encode(cfg binary.Config) ([]byte, error) {
	buf := make([]byte, 0, m.EncodedSize(cfg))
	var flags Flags
	if m.MaxDims != nil {
		flags = flags.With(dataspaceMaxDims)
	}
	kind := m.Kind
	if len(m.Dims) == 0 && kind == DataspaceSimple {
		kind = DataspaceScalar
	}
	buf = append(buf, 2, uint8(len(m.Dims)), uint8(flags), uint8(kind))
	buf = appendLengths(buf, m.Dims, cfg)
	if m.MaxDims != nil {
		buf = appendLengths(buf, m.MaxDims, cfg)
	}
	return buf, nil
}

func (m *Dataspace) EncodedSize(cfg binary.Config) int {
	n := 4 + len(m.Dims)*cfg.Lengths
	if m.MaxDims != nil {
		n += len(m.MaxDims) * cfg.Lengths
	}
	return n
}

func appendLengths(buf []byte, vals []uint64, cfg binary.Config) []byte {
	for _, v := range vals {
		var tmp [8]byte
		binary.PutUint(tmp[:], v, cfg.Lengths, cfg.ByteOrder)
		buf = append(buf, tmp[:cfg.Lengths]...)
	}
	return buf
}
