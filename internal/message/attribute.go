package message

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/go-h5stream/internal/binary"
	"github.com/robert-malhotra/go-h5stream/internal/h5err"
)

const (
	attrDatatypeShared  = 0
	attrDataspaceShared = 1
)

// Attribute is a small named value attached to an object (type 0x000C).
type Attribute struct {
	Name      string
	Charset   CharacterSet
	Datatype  *Datatype
	Dataspace *Dataspace
	Data      []byte
}

func (m *Attribute) Type() Type { return TypeAttribute }

// NewAttribute builds an attribute from an already encoded value.
func NewAttribute(name string, dt *Datatype, ds *Dataspace, data []byte) *Attribute {
	return &Attribute{Name: name, Charset: CharsetUTF8, Datatype: dt, Dataspace: ds, Data: data}
}

func decodeAttribute(data []byte, hf HeaderFlags, cfg binary.Config) (Message, error) {
	const record = "attribute message"
	b := binary.NewBuffer(record, data, cfg)
	version, err := b.Uint8()
	if err != nil {
		return nil, err
	}
	if version != 2 && version != 3 {
		return nil, &h5err.VersionError{Record: record, Version: version}
	}
	raw, err := b.Uint8()
	if err != nil {
		return nil, err
	}
	if flags := Flags(raw); flags.Has(attrDatatypeShared) || flags.Has(attrDataspaceShared) {
		return nil, fmt.Errorf("%w: shared attribute datatype or dataspace", h5err.ErrUnsupported)
	}
	nameSize, err := b.Uint16()
	if err != nil {
		return nil, err
	}
	dtSize, err := b.Uint16()
	if err != nil {
		return nil, err
	}
	dsSize, err := b.Uint16()
	if err != nil {
		return nil, err
	}
	m := &Attribute{}
	if version == 3 {
		cs, err := b.Uint8()
		if err != nil {
			return nil, err
		}
		m.Charset = CharacterSet(cs)
	}
	name, err := b.Bytes(int(nameSize))
	if err != nil {
		return nil, err
	}
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	m.Name = string(name)

	dtRaw, err := b.Bytes(int(dtSize))
	if err != nil {
		return nil, err
	}
	dt, err := decodeDatatype(dtRaw, hf, cfg)
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", m.Name, err)
	}
	m.Datatype = dt.(*Datatype)

	dsRaw, err := b.Bytes(int(dsSize))
	if err != nil {
		return nil, err
	}
	ds, err := decodeDataspace(dsRaw, hf, cfg)
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", m.Name, err)
	}
	m.Dataspace = ds.(*Dataspace)

	value, err := b.Bytes(int(m.Dataspace.NumElements() * uint64(m.Datatype.Size)))
	if err != nil {
		return nil, err
	}
	m.Data = append([]byte{}, value...)
	return m, nil
}

// Encode writes version 3.
func (m *Attribute) Encode(cfg binary.Config) ([]byte, error) {
	dt, err := m.Datatype.Encode(cfg)
	if err != nil {
		return nil, err
	}
	ds, err := m.Dataspace.Encode(cfg)
	if err != nil {
		return nil, err
	}
	if want := m.Dataspace.NumElements() * uint64(m.Datatype.Size); uint64(len(m.Data)) != want {
		return nil, fmt.Errorf("attribute %q: value has %d bytes, shape needs %d", m.Name, len(m.Data), want)
	}
	w := binary.NewBufferWriterAt(m.EncodedSize(cfg))
	bw := binary.NewWriter(w, cfg)
	for _, step := range []func() error{
		func() error { return bw.WriteBytes([]byte{3, 0}) },
		func() error { return bw.WriteUint16(uint16(len(m.Name) + 1)) },
		func() error { return bw.WriteUint16(uint16(len(dt))) },
		func() error { return bw.WriteUint16(uint16(len(ds))) },
		func() error { return bw.WriteUint8(uint8(m.Charset)) },
		func() error { return bw.WriteBytes(append([]byte(m.Name), 0)) },
		func() error { return bw.WriteBytes(dt) },
		func() error { return bw.WriteBytes(ds) },
		func() error { return bw.WriteBytes(m.Data) },
	} {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

func (m *Attribute) EncodedSize(cfg binary.Config) int {
	return 9 + len(m.Name) + 1 + m.Datatype.EncodedSize(cfg) + m.Dataspace.EncodedSize(cfg) + len(m.Data)
}
