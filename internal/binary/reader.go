package binary

import (
	"encoding/binary"
	"io"
)

// Reader reads HDF5 binary data at a tracked position, with offset and
// length fields sized by the file's Widths.
type Reader struct {
	r   io.ReaderAt
	cfg Config
	pos int64
}

// NewReader creates a binary reader with the given configuration.
func NewReader(r io.ReaderAt, cfg Config) *Reader {
	return &Reader{r: r, cfg: cfg}
}

// At returns a new reader positioned at the given offset.
// The new reader shares the underlying io.ReaderAt but has independent position.
func (r *Reader) At(offset int64) *Reader {
	return &Reader{r: r.r, cfg: r.cfg, pos: offset}
}

// WithConfig returns a reader at the same position using cfg. This is used
// once the superblock has been parsed and the real widths are known.
func (r *Reader) WithConfig(cfg Config) *Reader {
	return &Reader{r: r.r, cfg: cfg, pos: r.pos}
}

// Pos returns the current read position.
func (r *Reader) Pos() int64 { return r.pos }

// Config returns the reader's configuration.
func (r *Reader) Config() Config { return r.cfg }

// ReadBytes reads exactly n bytes from the current position.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := r.r.ReadAt(buf, r.pos); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	r.pos += int64(n)
	return buf, nil
}

// ReadUint8 reads an unsigned 8-bit integer.
func (r *Reader) ReadUint8() (uint8, error) {
	buf, err := r.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadUint16 reads an unsigned 16-bit integer.
func (r *Reader) ReadUint16() (uint16, error) {
	v, err := r.ReadUintN(2)
	return uint16(v), err
}

// ReadUint32 reads an unsigned 32-bit integer.
func (r *Reader) ReadUint32() (uint32, error) {
	v, err := r.ReadUintN(4)
	return uint32(v), err
}

// ReadUintN reads an unsigned integer of n bytes.
func (r *Reader) ReadUintN(n int) (uint64, error) {
	buf, err := r.ReadBytes(n)
	if err != nil {
		return 0, err
	}
	return Uint(buf, n, r.cfg.ByteOrder), nil
}

// ReadOffset reads a file address using the configured offset width.
func (r *Reader) ReadOffset() (uint64, error) {
	return r.ReadUintN(r.cfg.Offsets)
}

// ReadLength reads a length using the configured length width.
func (r *Reader) ReadLength() (uint64, error) {
	return r.ReadUintN(r.cfg.Lengths)
}

// Skip advances the position by n bytes.
func (r *Reader) Skip(n int64) { r.pos += n }

// Peek reads n bytes without advancing the position.
func (r *Reader) Peek(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := r.r.ReadAt(buf, r.pos); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}

// OffsetSize returns the configured offset width in bytes.
func (r *Reader) OffsetSize() int { return r.cfg.Offsets }

// LengthSize returns the configured length width in bytes.
func (r *Reader) LengthSize() int { return r.cfg.Lengths }

// ByteOrder returns the configured byte order.
func (r *Reader) ByteOrder() binary.ByteOrder { return r.cfg.ByteOrder }
