package message

import (
	"fmt"

	"github.com/robert-malhotra/go-h5stream/internal/binary"
	"github.com/robert-malhotra/go-h5stream/internal/h5err"
)

// DatatypeClass is the class of an HDF5 datatype.
type DatatypeClass uint8

const (
	ClassFixedPoint DatatypeClass = 0
	ClassFloatPoint DatatypeClass = 1
	ClassTime       DatatypeClass = 2
	ClassString     DatatypeClass = 3
	ClassBitfield   DatatypeClass = 4
	ClassOpaque     DatatypeClass = 5
	ClassCompound   DatatypeClass = 6
	ClassReference  DatatypeClass = 7
	ClassEnum       DatatypeClass = 8
	ClassVarLen     DatatypeClass = 9
	ClassArray      DatatypeClass = 10
)

func (c DatatypeClass) String() string {
	switch c {
	case ClassFixedPoint:
		return "integer"
	case ClassFloatPoint:
		return "float"
	case ClassString:
		return "string"
	default:
		return fmt.Sprintf("class %d", uint8(c))
	}
}

// ByteOrder of numeric types.
type ByteOrder uint8

const (
	OrderLE ByteOrder = 0
	OrderBE ByteOrder = 1
)

// StringPadding of fixed-length strings.
type StringPadding uint8

const (
	PadNullTerm StringPadding = 0
	PadNullPad  StringPadding = 1
	PadSpacePad StringPadding = 2
)

// CharacterSet of strings.
type CharacterSet uint8

const (
	CharsetASCII CharacterSet = 0
	CharsetUTF8  CharacterSet = 1
)

// FloatLayout holds the bit layout of an IEEE floating-point type.
type FloatLayout struct {
	SignLocation     uint8
	ExponentLocation uint8
	ExponentSize     uint8
	MantissaLocation uint8
	MantissaSize     uint8
	ExponentBias     uint32
}

var (
	ieeeSingle = FloatLayout{SignLocation: 31, ExponentLocation: 23, ExponentSize: 8, MantissaSize: 23, ExponentBias: 127}
	ieeeDouble = FloatLayout{SignLocation: 63, ExponentLocation: 52, ExponentSize: 11, MantissaSize: 52, ExponentBias: 1023}
)

// Datatype describes the element type of a dataset or attribute
// (type 0x0003). Fixed-point, floating-point and fixed-length string
// classes are supported.
type Datatype struct {
	Version   uint8
	Class     DatatypeClass
	Size      uint32
	ByteOrder ByteOrder

	// Fixed and floating point.
	Signed    bool
	BitOffset uint16
	Precision uint16
	Float     FloatLayout

	// Strings.
	Padding StringPadding
	Charset CharacterSet
}

func (m *Datatype) Type() Type { return TypeDatatype }

// NewIntegerDatatype returns a little-endian integer type of size bytes.
func NewIntegerDatatype(size uint32, signed bool) *Datatype {
	return &Datatype{
		Version:   1,
		Class:     ClassFixedPoint,
		Size:      size,
		Signed:    signed,
		Precision: uint16(size * 8),
	}
}

// NewFloatDatatype returns a little-endian IEEE float of 4 or 8 bytes.
func NewFloatDatatype(size uint32) *Datatype {
	layout := ieeeDouble
	if size == 4 {
		layout = ieeeSingle
	}
	return &Datatype{
		Version:   1,
		Class:     ClassFloatPoint,
		Size:      size,
		Precision: uint16(size * 8),
		Float:     layout,
	}
}

// NewStringDatatype returns a fixed-length string type.
func NewStringDatatype(size uint32, charset CharacterSet) *Datatype {
	return &Datatype{
		Version: 1,
		Class:   ClassString,
		Size:    size,
		Padding: PadNullTerm,
		Charset: charset,
	}
}

// Equal reports whether two datatypes describe the same element encoding.
func (m *Datatype) Equal(o *Datatype) bool {
	if m == nil || o == nil {
		return m == o
	}
	a, b := *m, *o
	a.Version, b.Version = 0, 0
	return a == b
}

func decodeDatatype(data []byte, _ HeaderFlags, cfg binary.Config) (Message, error) {
	const record = "datatype message"
	b := binary.NewBuffer(record, data, cfg)
	head, err := b.Uint8()
	if err != nil {
		return nil, err
	}
	version := head >> 4
	if version < 1 || version > 3 {
		return nil, &h5err.VersionError{Record: record, Version: version}
	}
	bits, err := b.UintN(3)
	if err != nil {
		return nil, err
	}
	size, err := b.Uint32()
	if err != nil {
		return nil, err
	}
	m := &Datatype{
		Version:   version,
		Class:     DatatypeClass(head & 0x0F),
		Size:      size,
		ByteOrder: ByteOrder(bits & 0x01),
	}
	switch m.Class {
	case ClassFixedPoint:
		m.Signed = bits&0x08 != 0
		if m.BitOffset, err = b.Uint16(); err != nil {
			return nil, err
		}
		if m.Precision, err = b.Uint16(); err != nil {
			return nil, err
		}
	case ClassFloatPoint:
		m.Float.SignLocation = uint8(bits >> 8)
		props, err := b.Bytes(12)
		if err != nil {
			return nil, err
		}
		m.BitOffset = uint16(props[0]) | uint16(props[1])<<8
		m.Precision = uint16(props[2]) | uint16(props[3])<<8
		m.Float.ExponentLocation = props[4]
		m.Float.ExponentSize = props[5]
		m.Float.MantissaLocation = props[6]
		m.Float.MantissaSize = props[7]
		m.Float.ExponentBias = uint32(binary.Uint(props[8:], 4, cfg.ByteOrder))
	case ClassString:
		m.ByteOrder = OrderLE
		m.Padding = StringPadding(bits & 0x0F)
		m.Charset = CharacterSet((bits >> 4) & 0x0F)
	default:
		return nil, fmt.Errorf("%w: datatype %s", h5err.ErrUnsupported, m.Class)
	}
	return m, nil
}

func (m *Datatype) classBits() uint32 {
	switch m.Class {
	case ClassFixedPoint:
		bits := uint32(m.ByteOrder)
		if m.Signed {
			bits |= 0x08
		}
		return bits
	case ClassFloatPoint:
		// Mantissa normalization "implied MSB" in bits 4-5.
		return uint32(m.ByteOrder) | 0x20 | uint32(m.Float.SignLocation)<<8
	case ClassString:
		return uint32(m.Padding) | uint32(m.Charset)<<4
	}
	return 0
}

func (m *Datatype) Encode(cfg binary.Config) ([]byte, error) {
	switch m.Class {
	case ClassFixedPoint, ClassFloatPoint, ClassString:
	default:
		return nil, fmt.Errorf("%w: datatype %s", h5err.ErrUnsupported, m.Class)
	}
	buf := make([]byte, m.EncodedSize(cfg))
	buf[0] = uint8(m.Class) | 1<<4
	binary.PutUint(buf[1:], uint64(m.classBits()), 3, cfg.ByteOrder)
	binary.PutUint(buf[4:], uint64(m.Size), 4, cfg.ByteOrder)
	switch m.Class {
	case ClassFixedPoint:
		binary.PutUint(buf[8:], uint64(m.BitOffset), 2, cfg.ByteOrder)
		binary.PutUint(buf[10:], uint64(m.Precision), 2, cfg.ByteOrder)
	case ClassFloatPoint:
		binary.PutUint(buf[8:], uint64(m.BitOffset), 2, cfg.ByteOrder)
		binary.PutUint(buf[10:], uint64(m.Precision), 2, cfg.ByteOrder)
		buf[12] = m.Float.ExponentLocation
		buf[13] = m.Float.ExponentSize
		buf[14] = m.Float.MantissaLocation
		buf[15] = m.Float.MantissaSize
		binary.PutUint(buf[16:], uint64(m.Float.ExponentBias), 4, cfg.ByteOrder)
	}
	return buf, nil
}

func (m *Datatype) EncodedSize(binary.Config) int {
	switch m.Class {
	case ClassFixedPoint:
		return 12
	case ClassFloatPoint:
		return 20
	default:
		return 8
	}
}
