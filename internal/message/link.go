package message

import (
	"fmt"

	"github.com/robert-malhotra/go-h5stream/internal/binary"
	"github.com/robert-malhotra/go-h5stream/internal/h5err"
)

// LinkType is the kind of a link.
type LinkType uint8

const (
	LinkHard     LinkType = 0
	LinkSoft     LinkType = 1
	LinkExternal LinkType = 64
)

// Link message flag bits. Bits 0-1 hold the size class of the name length.
const (
	linkCreationOrder = 2
	linkTypePresent   = 3
	linkCharsetSet    = 4
)

// Link is a named link from a group to an object (type 0x0006).
type Link struct {
	LinkType      LinkType
	Name          string
	Charset       CharacterSet
	CreationOrder uint64 // Unset when not tracked

	Address uint64 // hard links
	Value   []byte // soft and external links
}

func (m *Link) Type() Type { return TypeLink }

// NewHardLink links name to the object header at addr.
func NewHardLink(name string, addr uint64) *Link {
	return &Link{LinkType: LinkHard, Name: name, Charset: CharsetUTF8, CreationOrder: Unset, Address: addr}
}

func decodeLink(data []byte, _ HeaderFlags, cfg binary.Config) (Message, error) {
	const record = "link message"
	b := binary.NewBuffer(record, data, cfg)
	version, err := b.Uint8()
	if err != nil {
		return nil, err
	}
	if version != 1 {
		return nil, &h5err.VersionError{Record: record, Version: version}
	}
	raw, err := b.Uint8()
	if err != nil {
		return nil, err
	}
	flags := Flags(raw)
	m := &Link{CreationOrder: Unset, Address: UndefinedAddress}
	if flags.Has(linkTypePresent) {
		t, err := b.Uint8()
		if err != nil {
			return nil, err
		}
		m.LinkType = LinkType(t)
	}
	if flags.Has(linkCreationOrder) {
		if m.CreationOrder, err = b.UintN(8); err != nil {
			return nil, err
		}
	}
	if flags.Has(linkCharsetSet) {
		cs, err := b.Uint8()
		if err != nil {
			return nil, err
		}
		m.Charset = CharacterSet(cs)
	}
	nameLen, err := b.UintN(1 << (raw & 0x03))
	if err != nil {
		return nil, err
	}
	name, err := b.Bytes(int(nameLen))
	if err != nil {
		return nil, err
	}
	m.Name = string(name)
	switch m.LinkType {
	case LinkHard:
		m.Address, err = b.Address()
		if err != nil {
			return nil, err
		}
	default:
		n, err := b.Uint16()
		if err != nil {
			return nil, err
		}
		v, err := b.Bytes(int(n))
		if err != nil {
			return nil, err
		}
		m.Value = append([]byte{}, v...)
	}
	return m, nil
}

func nameLengthClass(n int) (uint8, int) {
	switch {
	case n <= 0xFF:
		return 0, 1
	case n <= 0xFFFF:
		return 1, 2
	case uint64(n) <= 0xFFFFFFFF:
		return 2, 4
	}
	return 3, 8
}

func (m *Link) flags() Flags {
	class, _ := nameLengthClass(len(m.Name))
	f := Flags(class)
	if m.CreationOrder != Unset {
		f = f.With(linkCreationOrder)
	}
	if m.LinkType != LinkHard {
		f = f.With(linkTypePresent)
	}
	if m.Charset != CharsetASCII {
		f = f.With(linkCharsetSet)
	}
	return f
}

func (m *Link) Encode(cfg binary.Config) ([]byte, error) {
	if m.LinkType != LinkHard && len(m.Value) > 0xFFFF {
		return nil, fmt.Errorf("link %q: value of %d bytes too long", m.Name, len(m.Value))
	}
	flags := m.flags()
	w := binary.NewBufferWriterAt(m.EncodedSize(cfg))
	bw := binary.NewWriter(w, cfg)
	if err := bw.WriteBytes([]byte{1, uint8(flags)}); err != nil {
		return nil, err
	}
	if flags.Has(linkTypePresent) {
		if err := bw.WriteUint8(uint8(m.LinkType)); err != nil {
			return nil, err
		}
	}
	if flags.Has(linkCreationOrder) {
		if err := bw.WriteUintN(m.CreationOrder, 8); err != nil {
			return nil, err
		}
	}
	if flags.Has(linkCharsetSet) {
		if err := bw.WriteUint8(uint8(m.Charset)); err != nil {
			return nil, err
		}
	}
	_, lenBytes := nameLengthClass(len(m.Name))
	if err := bw.WriteUintN(uint64(len(m.Name)), lenBytes); err != nil {
		return nil, err
	}
	if err := bw.WriteBytes([]byte(m.Name)); err != nil {
		return nil, err
	}
	if m.LinkType == LinkHard {
		if err := bw.WriteOffset(m.Address); err != nil {
			return nil, err
		}
	} else {
		if err := bw.WriteUint16(uint16(len(m.Value))); err != nil {
			return nil, err
		}
		if err := bw.WriteBytes(m.Value); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

func (m *Link) EncodedSize(cfg binary.Config) int {
	flags := m.flags()
	_, lenBytes := nameLengthClass(len(m.Name))
	n := 2 + lenBytes + len(m.Name)
	if flags.Has(linkTypePresent) {
		n++
	}
	if flags.Has(linkCreationOrder) {
		n += 8
	}
	if flags.Has(linkCharsetSet) {
		n++
	}
	if m.LinkType == LinkHard {
		n += cfg.Offsets
	} else {
		n += 2 + len(m.Value)
	}
	return n
}
