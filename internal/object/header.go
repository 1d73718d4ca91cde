package object

import (
	"github.com/robert-malhotra/go-h5stream/internal/message"
)

// Signatures of a version 2 header and its continuation blocks.
var (
	SignatureHeader       = []byte("OHDR")
	SignatureContinuation = []byte("OCHK")
)

// Header flag bits.
const (
	flagChunkSizeMask      = 0x03
	flagTrackCreationOrder = 0x04
	flagIndexCreationOrder = 0x08
	flagPhaseChange        = 0x10
	flagTimes              = 0x20
)

// Header is a decoded object header.
type Header struct {
	Address  uint64
	Flags    uint8
	Messages []message.Message

	// Present when the header stores times.
	AccessTime, ModTime, ChangeTime, BirthTime uint32
}

// Message returns the first message of type typ, or nil.
func (h *Header) Message(typ message.Type) message.Message {
	for _, m := range h.Messages {
		if m.Type() == typ {
			return m
		}
	}
	return nil
}

// MessagesOf returns every message of type typ in header order.
func (h *Header) MessagesOf(typ message.Type) []message.Message {
	var out []message.Message
	for _, m := range h.Messages {
		if m.Type() == typ {
			out = append(out, m)
		}
	}
	return out
}

func first[T message.Message](h *Header, typ message.Type) T {
	m, _ := h.Message(typ).(T)
	return m
}

func (h *Header) Dataspace() *message.Dataspace {
	return first[*message.Dataspace](h, message.TypeDataspace)
}

func (h *Header) Datatype() *message.Datatype {
	return first[*message.Datatype](h, message.TypeDatatype)
}

func (h *Header) DataLayout() *message.DataLayout {
	return first[*message.DataLayout](h, message.TypeDataLayout)
}

func (h *Header) FilterPipeline() *message.FilterPipeline {
	return first[*message.FilterPipeline](h, message.TypeFilterPipeline)
}

func (h *Header) FillValue() *message.FillValue {
	return first[*message.FillValue](h, message.TypeFillValue)
}

// Links returns the hard and soft links stored in a group header.
func (h *Header) Links() []*message.Link {
	var out []*message.Link
	for _, m := range h.MessagesOf(message.TypeLink) {
		out = append(out, m.(*message.Link))
	}
	return out
}

// Attributes returns the compact attributes of the object.
func (h *Header) Attributes() []*message.Attribute {
	var out []*message.Attribute
	for _, m := range h.MessagesOf(message.TypeAttribute) {
		out = append(out, m.(*message.Attribute))
	}
	return out
}

// IsGroup reports whether the header describes a new-style group.
func (h *Header) IsGroup() bool { return h.Message(message.TypeLinkInfo) != nil }

// IsDataset reports whether the header describes a dataset.
func (h *Header) IsDataset() bool {
	return h.Message(message.TypeDataspace) != nil && h.Message(message.TypeDataLayout) != nil
}
