package message

import (
	"github.com/robert-malhotra/go-h5stream/internal/binary"
	"github.com/robert-malhotra/go-h5stream/internal/h5err"
)

// AllocTime is when storage for a dataset is allocated.
type AllocTime uint8

const (
	AllocEarly       AllocTime = 1
	AllocLate        AllocTime = 2
	AllocIncremental AllocTime = 3
)

// FillTime is when the fill value is written to allocated storage.
type FillTime uint8

const (
	FillOnAlloc FillTime = 0
	FillNever   FillTime = 1
	FillIfSet   FillTime = 2
)

const (
	fillUndefined = 4
	fillDefined   = 5
)

// FillValue describes the value of unwritten elements (type 0x0005).
type FillValue struct {
	Version   uint8
	AllocTime AllocTime
	FillTime  FillTime
	Undefined bool
	Value     []byte // nil: the library default of all zeros
}

func (m *FillValue) Type() Type { return TypeFillValue }

// NewFillValue returns the fill value message written for chunked datasets:
// incremental allocation, fill only when set, zero value.
func NewFillValue() *FillValue {
	return &FillValue{Version: 3, AllocTime: AllocIncremental, FillTime: FillIfSet}
}

func decodeFillValue(data []byte, _ HeaderFlags, cfg binary.Config) (Message, error) {
	const record = "fill value message"
	b := binary.NewBuffer(record, data, cfg)
	version, err := b.Uint8()
	if err != nil {
		return nil, err
	}
	m := &FillValue{Version: version}
	switch version {
	case 2:
		head, err := b.Bytes(3)
		if err != nil {
			return nil, err
		}
		m.AllocTime, m.FillTime = AllocTime(head[0]), FillTime(head[1])
		if head[2] == 0 {
			return m, nil
		}
	case 3:
		raw, err := b.Uint8()
		if err != nil {
			return nil, err
		}
		flags := Flags(raw)
		m.AllocTime = AllocTime(raw & 0x03)
		m.FillTime = FillTime((raw >> 2) & 0x03)
		m.Undefined = flags.Has(fillUndefined)
		if !flags.Has(fillDefined) {
			return m, nil
		}
	default:
		return nil, &h5err.VersionError{Record: record, Version: version}
	}
	size, err := b.Uint32()
	if err != nil {
		return nil, err
	}
	value, err := b.Bytes(int(size))
	if err != nil {
		return nil, err
	}
	m.Value = append([]byte{}, value...)
	return m, nil
}

// Encode writes version 3.
func (m *FillValue) Encode(cfg binary.Config) ([]byte, error) {
	flags := Flags(uint8(m.AllocTime)&0x03 | (uint8(m.FillTime)&0x03)<<2)
	if m.Undefined {
		flags = flags.With(fillUndefined)
	}
	if m.Value != nil {
		flags = flags.With(fillDefined)
	}
	buf := make([]byte, 2, m.EncodedSize(cfg))
	buf[0], buf[1] = 3, uint8(flags)
	if m.Value != nil {
		var size [4]byte
		binary.PutUint(size[:], uint64(len(m.Value)), 4, cfg.ByteOrder)
		buf = append(buf, size[:]...)
		buf = append(buf, m.Value...)
	}
	return buf, nil
}

func (m *FillValue) EncodedSize(binary.Config) int {
	if m.Value == nil {
		return 2
	}
	return 6 + len(m.Value)
}
