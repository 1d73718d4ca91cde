package message

import (
	"fmt"

	"github.com/robert-malhotra/go-h5stream/internal/binary"
)

// Type is the numeric tag of a header message.
type Type uint16

// Header message types.
const (
	TypeNIL                      Type = 0x0000
	TypeDataspace                Type = 0x0001
	TypeLinkInfo                 Type = 0x0002
	TypeDatatype                 Type = 0x0003
	TypeFillValueOld             Type = 0x0004
	TypeFillValue                Type = 0x0005
	TypeLink                     Type = 0x0006
	TypeExternalDataFiles        Type = 0x0007
	TypeDataLayout               Type = 0x0008
	TypeBogus                    Type = 0x0009
	TypeGroupInfo                Type = 0x000A
	TypeFilterPipeline           Type = 0x000B
	TypeAttribute                Type = 0x000C
	TypeObjectComment            Type = 0x000D
	TypeObjectModTime            Type = 0x000E
	TypeSharedMessageTable       Type = 0x000F
	TypeObjectHeaderContinuation Type = 0x0010
	TypeSymbolTable              Type = 0x0011
	TypeObjectModTimeOld         Type = 0x0012
	TypeBTreeKValues             Type = 0x0013
	TypeDriverInfo               Type = 0x0014
	TypeAttributeInfo            Type = 0x0015
	TypeObjectRefCount           Type = 0x0016
)

var typeNames = map[Type]string{
	TypeNIL:                      "NIL",
	TypeDataspace:                "dataspace",
	TypeLinkInfo:                 "link info",
	TypeDatatype:                 "datatype",
	TypeFillValue:                "fill value",
	TypeLink:                     "link",
	TypeDataLayout:               "data layout",
	TypeGroupInfo:                "group info",
	TypeFilterPipeline:           "filter pipeline",
	TypeAttribute:                "attribute",
	TypeObjectModTime:            "modification time",
	TypeObjectHeaderContinuation: "continuation",
	TypeSymbolTable:              "symbol table",
	TypeAttributeInfo:            "attribute info",
	TypeObjectRefCount:           "reference count",
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("type 0x%04x", uint16(t))
}

// HeaderFlags is the per-message flags byte stored in the object header
// next to the message type and size.
type HeaderFlags uint8

const (
	FlagConstant            HeaderFlags = 0x01
	FlagShared              HeaderFlags = 0x02
	FlagDontShare           HeaderFlags = 0x04
	FlagFailIfUnknownWrite  HeaderFlags = 0x08
	FlagMarkIfUnknown       HeaderFlags = 0x10
	FlagWasUnknown          HeaderFlags = 0x20
	FlagShareable           HeaderFlags = 0x40
	FlagFailIfUnknownAlways HeaderFlags = 0x80
)

// Has reports whether all bits in f are set.
func (h HeaderFlags) Has(f HeaderFlags) bool { return h&f == f }

// Message is implemented by every decoded header message.
type Message interface {
	Type() Type
}

// Encodable is a message that can be written back into an object header.
// EncodedSize must equal len of the bytes Encode returns for the same cfg.
type Encodable interface {
	Message
	Encode(cfg binary.Config) ([]byte, error)
	EncodedSize(cfg binary.Config) int
}

type decodeFunc func(data []byte, flags HeaderFlags, cfg binary.Config) (Message, error)

// codecs is the closed set of kinds this package understands.
var codecs = map[Type]decodeFunc{
	TypeDataspace:                decodeDataspace,
	TypeLinkInfo:                 decodeLinkInfo,
	TypeDatatype:                 decodeDatatype,
	TypeFillValue:                decodeFillValue,
	TypeLink:                     decodeLink,
	TypeDataLayout:               decodeDataLayout,
	TypeGroupInfo:                decodeGroupInfo,
	TypeFilterPipeline:           decodeFilterPipeline,
	TypeAttribute:                decodeAttribute,
	TypeObjectHeaderContinuation: decodeContinuation,
	TypeAttributeInfo:            decodeAttributeInfo,
}

// Decode decodes the body of a header message of type typ. flags is the
// message's header flags byte; cfg carries the file's address widths.
// Types without a codec decode to *Unknown.
func Decode(typ Type, data []byte, flags HeaderFlags, cfg binary.Config) (Message, error) {
	fn, ok := codecs[typ]
	if !ok {
		return &Unknown{typ: typ, flags: flags, data: data}, nil
	}
	m, err := fn(data, flags, cfg)
	if err != nil {
		return nil, fmt.Errorf("decoding %s message: %w", typ, err)
	}
	return m, nil
}

// Unknown holds a message this package has no codec for.
type Unknown struct {
	typ   Type
	flags HeaderFlags
	data  []byte
}

func (m *Unknown) Type() Type               { return m.typ }
func (m *Unknown) HeaderFlags() HeaderFlags { return m.flags }
func (m *Unknown) Data() []byte             { return m.data }

// Encode returns the raw body unchanged.
func (m *Unknown) Encode(binary.Config) ([]byte, error) { return m.data, nil }

func (m *Unknown) EncodedSize(binary.Config) int { return len(m.data) }

// Continuation points at a further block of header messages.
type Continuation struct {
	Offset uint64
	Length uint64
}

func (m *Continuation) Type() Type { return TypeObjectHeaderContinuation }

func decodeContinuation(data []byte, _ HeaderFlags, cfg binary.Config) (Message, error) {
	b := binary.NewBuffer("continuation message", data, cfg)
	off, err := b.Address()
	if err != nil {
		return nil, err
	}
	length, err := b.Length()
	if err != nil {
		return nil, err
	}
	return &Continuation{Offset: off, Length: length}, nil
}

func (m *Continuation) Encode(cfg binary.Config) ([]byte, error) {
	buf := make([]byte, m.EncodedSize(cfg))
	binary.PutUint(buf, m.Offset, cfg.Offsets, cfg.ByteOrder)
	binary.PutUint(buf[cfg.Offsets:], m.Length, cfg.Lengths, cfg.ByteOrder)
	return buf, nil
}

func (m *Continuation) EncodedSize(cfg binary.Config) int { return cfg.Offsets + cfg.Lengths }
