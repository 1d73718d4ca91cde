package message

import (
	"fmt"
	"slices"

	"github.com/robert-malhotra/go-h5stream/internal/binary"
	"github.com/robert-malhotra/go-h5stream/internal/h5err"
)

// Unset marks a field that is absent from the encoded record.
const Unset = ^uint64(0)

// UndefinedAddress is the in-memory form of the format's "no address".
const UndefinedAddress = Unset

// Always marks a table field that is present regardless of flags.
const Always = -1

// Flags is a record's flags bitset.
type Flags uint8

// Has reports whether bit is set.
func (f Flags) Has(bit int) bool { return f&(1<<uint(bit)) != 0 }

// With returns f with bit set.
func (f Flags) With(bit int) Flags { return f | 1<<uint(bit) }

type widthKind uint8

const (
	widthFixed widthKind = iota
	widthOffset
	widthLength
)

// Width is the encoded size of a table field.
type Width struct {
	kind widthKind
	n    int
}

// Fixed is a width of n bytes independent of the file.
func Fixed(n int) Width { return Width{kind: widthFixed, n: n} }

var (
	// OffsetWidth sizes a field by the file's offset width.
	OffsetWidth = Width{kind: widthOffset}
	// LengthWidth sizes a field by the file's length width.
	LengthWidth = Width{kind: widthLength}
)

// Bytes resolves the width against a file's widths.
func (w Width) Bytes(ws binary.Widths) int {
	switch w.kind {
	case widthOffset:
		return ws.Offsets
	case widthLength:
		return ws.Lengths
	default:
		return w.n
	}
}

// Field is one integer field of a table record.
type Field struct {
	Name  string
	Bit   int // flag bit gating presence, or Always
	Width Width
}

func (f Field) present(flags Flags) bool {
	return f.Bit == Always || flags.Has(f.Bit)
}

// Table describes a record laid out as a version byte, a flags byte and a
// sequence of fields, each present when its flag bit is set.
type Table struct {
	Record   string
	Versions []uint8
	Fields   []Field
}

// Size returns the encoded size of a record carrying flags.
func (t *Table) Size(flags Flags, ws binary.Widths) int {
	n := 2
	for _, f := range t.Fields {
		if f.present(flags) {
			n += f.Width.Bytes(ws)
		}
	}
	return n
}

func (t *Table) supports(v uint8) bool { return slices.Contains(t.Versions, v) }

// Decode reads a record into dst, one pointer per field in table order.
// Absent fields are set to Unset. Address fields holding all ones at the
// offset width are widened to UndefinedAddress. Bytes beyond the layout
// implied by the flags are not read.
func (t *Table) Decode(data []byte, cfg binary.Config, dst ...*uint64) (uint8, Flags, error) {
	if len(dst) != len(t.Fields) {
		panic(fmt.Sprintf("%s: decode into %d values, table has %d fields", t.Record, len(dst), len(t.Fields)))
	}
	b := binary.NewBuffer(t.Record, data, cfg)
	version, err := b.Uint8()
	if err != nil {
		return 0, 0, err
	}
	if !t.supports(version) {
		return 0, 0, &h5err.VersionError{Record: t.Record, Version: version}
	}
	raw, err := b.Uint8()
	if err != nil {
		return 0, 0, err
	}
	flags := Flags(raw)
	for i, f := range t.Fields {
		if !f.present(flags) {
			*dst[i] = Unset
			continue
		}
		var v uint64
		if f.Width.kind == widthOffset {
			v, err = b.Address()
		} else {
			v, err = b.UintN(f.Width.Bytes(cfg.Widths))
		}
		if err != nil {
			return 0, 0, err
		}
		*dst[i] = v
	}
	return version, flags, nil
}

// Encode writes a record from src, one value per field in table order.
// Values of absent fields are ignored. A present field holding Unset is
// written as all ones at its width.
func (t *Table) Encode(version uint8, flags Flags, cfg binary.Config, src ...uint64) ([]byte, error) {
	if len(src) != len(t.Fields) {
		panic(fmt.Sprintf("%s: encode %d values, table has %d fields", t.Record, len(src), len(t.Fields)))
	}
	if !t.supports(version) {
		return nil, &h5err.VersionError{Record: t.Record, Version: version}
	}
	buf := make([]byte, t.Size(flags, cfg.Widths))
	buf[0] = version
	buf[1] = uint8(flags)
	off := 2
	for i, f := range t.Fields {
		if !f.present(flags) {
			continue
		}
		n := f.Width.Bytes(cfg.Widths)
		v := src[i]
		if v != Unset && n < 8 && v>>(uint(n)*8) != 0 {
			return nil, fmt.Errorf("%s: %s value %d does not fit in %d bytes", t.Record, f.Name, v, n)
		}
		binary.PutUint(buf[off:], v, n, cfg.ByteOrder)
		off += n
	}
	return buf, nil
}
