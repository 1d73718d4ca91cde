package message

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/go-h5stream/internal/binary"
	"github.com/robert-malhotra/go-h5stream/internal/h5err"
)

// Filter identifiers.
const (
	FilterDeflate     uint16 = 1
	FilterShuffle     uint16 = 2
	FilterFletcher32  uint16 = 3
	FilterSZIP        uint16 = 4
	FilterNBit        uint16 = 5
	FilterScaleOffset uint16 = 6
	FilterLZ4         uint16 = 32004
	FilterZstd        uint16 = 32015
)

// FilterOptional marks a filter whose failure leaves the chunk unfiltered.
const FilterOptional = 0x0001

// FilterInfo is one stage of a filter pipeline.
type FilterInfo struct {
	ID         uint16
	Flags      uint16
	Name       string
	ClientData []uint32
}

// IsOptional reports whether the filter may be skipped.
func (f FilterInfo) IsOptional() bool { return f.Flags&FilterOptional != 0 }

// FilterPipeline lists the filters applied to every chunk of a dataset, in
// the order they are applied on write (type 0x000B).
type FilterPipeline struct {
	Version uint8
	Filters []FilterInfo
}

func (m *FilterPipeline) Type() Type { return TypeFilterPipeline }

// HasFilter reports whether the pipeline contains id.
func (m *FilterPipeline) HasFilter(id uint16) bool {
	for _, f := range m.Filters {
		if f.ID == id {
			return true
		}
	}
	return false
}

func decodeFilterPipeline(data []byte, _ HeaderFlags, cfg binary.Config) (Message, error) {
	const record = "filter pipeline message"
	b := binary.NewBuffer(record, data, cfg)
	version, err := b.Uint8()
	if err != nil {
		return nil, err
	}
	if version != 1 && version != 2 {
		return nil, &h5err.VersionError{Record: record, Version: version}
	}
	count, err := b.Uint8()
	if err != nil {
		return nil, err
	}
	if version == 1 {
		if err := b.Skip(6); err != nil {
			return nil, err
		}
	}
	m := &FilterPipeline{Version: version, Filters: make([]FilterInfo, count)}
	for i := range m.Filters {
		if m.Filters[i], err = decodeFilterInfo(b, version); err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
	}
	return m, nil
}

func decodeFilterInfo(b *binary.Buffer, version uint8) (FilterInfo, error) {
	var f FilterInfo
	var err error
	if f.ID, err = b.Uint16(); err != nil {
		return f, err
	}
	var nameLen uint16
	if version == 1 || f.ID >= 256 {
		if nameLen, err = b.Uint16(); err != nil {
			return f, err
		}
	}
	if f.Flags, err = b.Uint16(); err != nil {
		return f, err
	}
	ncd, err := b.Uint16()
	if err != nil {
		return f, err
	}
	if nameLen > 0 {
		n := int(nameLen)
		if version == 1 {
			n = (n + 7) &^ 7
		}
		raw, err := b.Bytes(n)
		if err != nil {
			return f, err
		}
		if i := bytes.IndexByte(raw, 0); i >= 0 {
			raw = raw[:i]
		}
		f.Name = string(raw)
	}
	if ncd > 0 {
		f.ClientData = make([]uint32, ncd)
	}
	for j := range f.ClientData {
		if f.ClientData[j], err = b.Uint32(); err != nil {
			return f, err
		}
	}
	if version == 1 && ncd%2 != 0 {
		err = b.Skip(4)
	}
	return f, err
}

// Encode writes version 2. Names are kept only for filters outside the
// reserved range, where the format requires them.
func (m *FilterPipeline) Encode(cfg binary.Config) ([]byte, error) {
	if len(m.Filters) > 32 {
		return nil, fmt.Errorf("filter pipeline with %d filters exceeds 32", len(m.Filters))
	}
	w := binary.NewBufferWriterAt(m.EncodedSize(cfg))
	bw := binary.NewWriter(w, cfg)
	if err := bw.WriteBytes([]byte{2, uint8(len(m.Filters))}); err != nil {
		return nil, err
	}
	for _, f := range m.Filters {
		if err := bw.WriteUint16(f.ID); err != nil {
			return nil, err
		}
		if f.ID >= 256 {
			if err := bw.WriteUint16(uint16(len(f.Name) + 1)); err != nil {
				return nil, err
			}
		}
		if err := bw.WriteUint16(f.Flags); err != nil {
			return nil, err
		}
		if err := bw.WriteUint16(uint16(len(f.ClientData))); err != nil {
			return nil, err
		}
		if f.ID >= 256 {
			if err := bw.WriteBytes(append([]byte(f.Name), 0)); err != nil {
				return nil, err
			}
		}
		for _, cd := range f.ClientData {
			if err := bw.WriteUint32(cd); err != nil {
				return nil, err
			}
		}
	}
	return w.Bytes(), nil
}

func (m *FilterPipeline) EncodedSize(binary.Config) int {
	n := 2
	for _, f := range m.Filters {
		n += 6 + 4*len(f.ClientData)
		if f.ID >= 256 {
			n += 2 + len(f.Name) + 1
		}
	}
	return n
}
