package binary

import (
	"github.com/robert-malhotra/go-h5stream/internal/h5err"
)

// Buffer decodes a single in-memory record. Every read is bounds checked
// against the record and fails with a TruncatedError naming the record,
// so a short record is never confused with any other decode failure.
type Buffer struct {
	record string
	data   []byte
	off    int
	cfg    Config
}

// NewBuffer wraps data for decoding. record names the structure in errors.
func NewBuffer(record string, data []byte, cfg Config) *Buffer {
	return &Buffer{record: record, data: data, cfg: cfg}
}

// Offset returns the number of bytes consumed so far.
func (b *Buffer) Offset() int { return b.off }

// Remaining returns the number of unconsumed bytes.
func (b *Buffer) Remaining() int { return len(b.data) - b.off }

// Config returns the decoding configuration.
func (b *Buffer) Config() Config { return b.cfg }

func (b *Buffer) take(n int) ([]byte, error) {
	if n < 0 || b.off+n > len(b.data) {
		return nil, &h5err.TruncatedError{Record: b.record, Need: b.off + n, Have: len(b.data)}
	}
	p := b.data[b.off : b.off+n]
	b.off += n
	return p, nil
}

// Bytes consumes n bytes. The returned slice aliases the record.
func (b *Buffer) Bytes(n int) ([]byte, error) { return b.take(n) }

// Skip consumes n bytes without returning them.
func (b *Buffer) Skip(n int) error {
	_, err := b.take(n)
	return err
}

// Uint8 consumes one byte.
func (b *Buffer) Uint8() (uint8, error) {
	p, err := b.take(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// Uint16 consumes a 2-byte integer.
func (b *Buffer) Uint16() (uint16, error) {
	v, err := b.UintN(2)
	return uint16(v), err
}

// Uint32 consumes a 4-byte integer.
func (b *Buffer) Uint32() (uint32, error) {
	v, err := b.UintN(4)
	return uint32(v), err
}

// UintN consumes an n-byte integer.
func (b *Buffer) UintN(n int) (uint64, error) {
	p, err := b.take(n)
	if err != nil {
		return 0, err
	}
	return Uint(p, n, b.cfg.ByteOrder), nil
}

// Address reads a file address at the configured offset width. The all-ones
// value is widened to the in-memory undefined sentinel.
func (b *Buffer) Address() (uint64, error) {
	v, err := b.UintN(b.cfg.Offsets)
	if err != nil {
		return 0, err
	}
	if b.cfg.IsUndefinedOffset(v) {
		return ^uint64(0), nil
	}
	return v, nil
}

// Length reads a length at the configured length width.
func (b *Buffer) Length() (uint64, error) {
	return b.UintN(b.cfg.Lengths)
}
