package object

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-h5stream/internal/binary"
	"github.com/robert-malhotra/go-h5stream/internal/checksum"
	"github.com/robert-malhotra/go-h5stream/internal/h5err"
	"github.com/robert-malhotra/go-h5stream/internal/message"
)

// ErrInvalidHeader is returned when no object header is found at an address.
var ErrInvalidHeader = errors.New("invalid object header")

// maxChunkSize bounds a single header chunk read from the file.
const maxChunkSize = 1 << 30

// Read reads and decodes the object header at addr. The header block and
// every continuation block are checksum verified before any message in them
// is decoded.
func Read(r *binary.Reader, addr uint64) (*Header, error) {
	hr := r.At(int64(addr))
	prefix, err := hr.ReadBytes(6)
	if err != nil {
		return nil, fmt.Errorf("reading object header at %d: %w", addr, err)
	}
	if !bytes.Equal(prefix[:4], SignatureHeader) {
		if prefix[0] == 1 {
			return nil, fmt.Errorf("%w: version 1 object header at %d", h5err.ErrUnsupported, addr)
		}
		return nil, fmt.Errorf("%w at %d", ErrInvalidHeader, addr)
	}
	if prefix[4] != 2 {
		return nil, &h5err.VersionError{Record: "object header", Version: prefix[4]}
	}
	flags := prefix[5]

	optional := 0
	if flags&flagTimes != 0 {
		optional += 16
	}
	if flags&flagPhaseChange != 0 {
		optional += 4
	}
	width := 1 << (flags & flagChunkSizeMask)
	rest, err := hr.ReadBytes(optional + width)
	if err != nil {
		return nil, fmt.Errorf("reading object header at %d: %w", addr, err)
	}
	chunk := binary.Uint(rest[optional:], width, r.Config().ByteOrder)
	if chunk > maxChunkSize {
		return nil, fmt.Errorf("%w at %d: chunk size %d", ErrInvalidHeader, addr, chunk)
	}
	body, err := hr.ReadBytes(int(chunk) + checksum.Size)
	if err != nil {
		return nil, fmt.Errorf("reading object header at %d: %w", addr, err)
	}

	block := make([]byte, 0, len(prefix)+len(rest)+len(body))
	block = append(append(append(block, prefix...), rest...), body...)
	region, err := checksum.VerifyTrailing(fmt.Sprintf("object header at %d", addr), block, checksum.Lookup3)
	if err != nil {
		return nil, err
	}

	hdr := &Header{Address: addr, Flags: flags}
	if flags&flagTimes != 0 {
		times := rest[:16]
		order := r.Config().ByteOrder
		hdr.AccessTime = order.Uint32(times[0:])
		hdr.ModTime = order.Uint32(times[4:])
		hdr.ChangeTime = order.Uint32(times[8:])
		hdr.BirthTime = order.Uint32(times[12:])
	}

	track := flags&flagTrackCreationOrder != 0
	pending, err := decodeMessages(region[len(prefix)+len(rest):], track, r.Config(), hdr)
	if err != nil {
		return nil, fmt.Errorf("object header at %d: %w", addr, err)
	}

	seen := map[uint64]bool{}
	for len(pending) > 0 {
		c := pending[0]
		pending = pending[1:]
		if seen[c.Offset] {
			return nil, fmt.Errorf("%w at %d: continuation loop at %d", ErrInvalidHeader, addr, c.Offset)
		}
		seen[c.Offset] = true
		more, err := readContinuation(r, c, track, hdr)
		if err != nil {
			return nil, fmt.Errorf("object header at %d: %w", addr, err)
		}
		pending = append(pending, more...)
	}
	return hdr, nil
}

func readContinuation(r *binary.Reader, c *message.Continuation, track bool, hdr *Header) ([]*message.Continuation, error) {
	if c.Length < uint64(len(SignatureContinuation)+checksum.Size) || c.Length > maxChunkSize {
		return nil, fmt.Errorf("continuation block at %d: invalid length %d", c.Offset, c.Length)
	}
	block, err := r.At(int64(c.Offset)).ReadBytes(int(c.Length))
	if err != nil {
		return nil, fmt.Errorf("reading continuation block at %d: %w", c.Offset, err)
	}
	if !bytes.Equal(block[:4], SignatureContinuation) {
		return nil, fmt.Errorf("%w: continuation block at %d has signature %q", ErrInvalidHeader, c.Offset, block[:4])
	}
	region, err := checksum.VerifyTrailing(fmt.Sprintf("continuation block at %d", c.Offset), block, checksum.Lookup3)
	if err != nil {
		return nil, err
	}
	return decodeMessages(region[4:], track, r.Config(), hdr)
}

// decodeMessages appends the messages in data to hdr and returns the
// continuations found. Trailing space smaller than a message header is a gap.
func decodeMessages(data []byte, track bool, cfg binary.Config, hdr *Header) ([]*message.Continuation, error) {
	var conts []*message.Continuation
	b := binary.NewBuffer("object header message", data, cfg)
	prefix := messageHeaderSize
	if track {
		prefix += 2
	}
	for b.Remaining() >= prefix {
		typ, _ := b.Uint8()
		size, _ := b.Uint16()
		flags, _ := b.Uint8()
		if track {
			_ = b.Skip(2)
		}
		body, err := b.Bytes(int(size))
		if err != nil {
			return nil, err
		}
		if message.Type(typ) == message.TypeNIL {
			continue
		}
		m, err := message.Decode(message.Type(typ), body, message.HeaderFlags(flags), cfg)
		if err != nil {
			return nil, err
		}
		if c, ok := m.(*message.Continuation); ok {
			conts = append(conts, c)
			continue
		}
		hdr.Messages = append(hdr.Messages, m)
	}
	return conts, nil
}
