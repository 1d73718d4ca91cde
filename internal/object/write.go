package object

import (
	"fmt"

	"github.com/robert-malhotra/go-h5stream/internal/binary"
	"github.com/robert-malhotra/go-h5stream/internal/checksum"
	"github.com/robert-malhotra/go-h5stream/internal/message"
)

// MinGroupChunkSize is the chunk size the HDF5 library reserves for group
// headers, leaving room for links added later.
const MinGroupChunkSize = 120

// messageHeaderSize is type(1) + size(2) + flags(1).
const messageHeaderSize = 4

type encodedMessage struct {
	typ   message.Type
	flags message.HeaderFlags
	body  []byte
}

func encodeMessages(cfg binary.Config, msgs []message.Encodable) ([]encodedMessage, int, error) {
	out := make([]encodedMessage, 0, len(msgs))
	total := 0
	for _, m := range msgs {
		body, err := m.Encode(cfg)
		if err != nil {
			return nil, 0, fmt.Errorf("encoding %s message: %w", m.Type(), err)
		}
		if len(body) > 0xFFFF {
			return nil, 0, fmt.Errorf("%s message of %d bytes does not fit in an object header", m.Type(), len(body))
		}
		out = append(out, encodedMessage{typ: m.Type(), flags: headerFlags(m), body: body})
		total += messageHeaderSize + len(body)
	}
	return out, total, nil
}

func headerFlags(m message.Encodable) message.HeaderFlags {
	switch m := m.(type) {
	case *message.Datatype:
		return message.FlagConstant
	case *message.Unknown:
		return m.HeaderFlags()
	}
	return 0
}

// chunkLayout returns the chunk size and the NIL padding needed to reach
// minChunk. Padding is never smaller than a message header.
func chunkLayout(msgSize, minChunk int) (chunk, padding int) {
	chunk = max(msgSize, minChunk)
	padding = chunk - msgSize
	if padding > 0 && padding < messageHeaderSize {
		chunk += messageHeaderSize - padding
		padding = messageHeaderSize
	}
	return chunk, padding
}

// chunkSizeWidth returns the chunk size field width and its flag code.
func chunkSizeWidth(size int) (int, uint8) {
	switch {
	case size <= 0xFF:
		return 1, 0
	case size <= 0xFFFF:
		return 2, 1
	case size <= 0xFFFFFFFF:
		return 4, 2
	}
	return 8, 3
}

func headerSize(msgSize, minChunk int) int {
	chunk, _ := chunkLayout(msgSize, minChunk)
	width, _ := chunkSizeWidth(chunk)
	// signature + version + flags + chunk size + chunk + checksum
	return 4 + 1 + 1 + width + chunk + checksum.Size
}

// Size returns the number of bytes Write produces for msgs.
func Size(cfg binary.Config, msgs []message.Encodable, minChunk int) (int, error) {
	_, msgSize, err := encodeMessages(cfg, msgs)
	if err != nil {
		return 0, err
	}
	return headerSize(msgSize, minChunk), nil
}

// Write writes a version 2 object header holding msgs at the writer's
// position and returns the number of bytes written.
func Write(w *binary.Writer, msgs []message.Encodable, minChunk int) (int64, error) {
	cfg := w.Config()
	encoded, msgSize, err := encodeMessages(cfg, msgs)
	if err != nil {
		return 0, err
	}
	chunk, padding := chunkLayout(msgSize, minChunk)
	width, code := chunkSizeWidth(chunk)

	buf := binary.NewBufferWriterAt(headerSize(msgSize, minChunk))
	bw := binary.NewWriter(buf, cfg)
	if err := bw.WriteBytes(SignatureHeader); err != nil {
		return 0, err
	}
	if err := bw.WriteBytes([]byte{2, code}); err != nil {
		return 0, err
	}
	if err := bw.WriteUintN(uint64(chunk), width); err != nil {
		return 0, err
	}
	for _, m := range encoded {
		if err := bw.WriteUint8(uint8(m.typ)); err != nil {
			return 0, err
		}
		if err := bw.WriteUint16(uint16(len(m.body))); err != nil {
			return 0, err
		}
		if err := bw.WriteUint8(uint8(m.flags)); err != nil {
			return 0, err
		}
		if err := bw.WriteBytes(m.body); err != nil {
			return 0, err
		}
	}
	if padding > 0 {
		if err := bw.WriteUint8(uint8(message.TypeNIL)); err != nil {
			return 0, err
		}
		if err := bw.WriteUint16(uint16(padding - messageHeaderSize)); err != nil {
			return 0, err
		}
		if err := bw.WriteZeros(1 + padding - messageHeaderSize); err != nil {
			return 0, err
		}
	}
	block := checksum.Append(buf.Bytes(), checksum.Lookup3)
	start := w.Pos()
	if err := w.WriteBytes(block); err != nil {
		return 0, err
	}
	return w.Pos() - start, nil
}

// GroupMessages returns the messages of a group header with compact links.
func GroupMessages(links ...*message.Link) []message.Encodable {
	info := message.NewGroupInfo()
	if len(links) > message.DefaultMaxCompact {
		n := uint16(min(len(links), 0xFFFF))
		info = message.NewGroupInfo(message.WithLinkPhaseChange(n, n-1))
	}
	msgs := []message.Encodable{message.NewLinkInfo(), info}
	for _, l := range links {
		msgs = append(msgs, l)
	}
	return msgs
}

// DatasetMessages returns the messages of a chunked dataset header. A nil
// pipeline is omitted.
func DatasetMessages(ds *message.Dataspace, dt *message.Datatype, fill *message.FillValue,
	layout *message.DataLayout, pipeline *message.FilterPipeline, attrs ...*message.Attribute) []message.Encodable {
	msgs := []message.Encodable{ds, dt, fill}
	if pipeline != nil && len(pipeline.Filters) > 0 {
		msgs = append(msgs, pipeline)
	}
	msgs = append(msgs, layout)
	for _, a := range attrs {
		msgs = append(msgs, a)
	}
	return msgs
}
