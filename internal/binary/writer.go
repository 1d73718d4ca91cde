package binary

import (
	"encoding/binary"
	"io"
)

// Writer writes HDF5 binary data at a tracked position, with offset and
// length fields sized by the file's Widths.
type Writer struct {
	w   io.WriterAt
	cfg Config
	pos int64
}

// NewWriter creates a binary writer with the given configuration.
func NewWriter(w io.WriterAt, cfg Config) *Writer {
	return &Writer{w: w, cfg: cfg}
}

// At returns a new writer positioned at the given offset.
// The new writer shares the underlying io.WriterAt but has independent position.
func (w *Writer) At(offset int64) *Writer {
	return &Writer{w: w.w, cfg: w.cfg, pos: offset}
}

// Pos returns the current write position.
func (w *Writer) Pos() int64 { return w.pos }

// Config returns the writer's configuration.
func (w *Writer) Config() Config { return w.cfg }

// WriteBytes writes the given bytes at the current position.
func (w *Writer) WriteBytes(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n, err := w.w.WriteAt(data, w.pos)
	w.pos += int64(n)
	return err
}

// WriteUint8 writes an unsigned 8-bit integer.
func (w *Writer) WriteUint8(v uint8) error {
	return w.WriteBytes([]byte{v})
}

// WriteUint16 writes an unsigned 16-bit integer.
func (w *Writer) WriteUint16(v uint16) error {
	return w.WriteUintN(uint64(v), 2)
}

// WriteUint32 writes an unsigned 32-bit integer.
func (w *Writer) WriteUint32(v uint32) error {
	return w.WriteUintN(uint64(v), 4)
}

// WriteUintN writes an unsigned integer of n bytes.
func (w *Writer) WriteUintN(v uint64, n int) error {
	buf := make([]byte, n)
	PutUint(buf, v, n, w.cfg.ByteOrder)
	return w.WriteBytes(buf)
}

// WriteOffset writes a file address using the configured offset width.
// The in-memory undefined sentinel is narrowed to all ones at that width.
func (w *Writer) WriteOffset(v uint64) error {
	return w.WriteUintN(v, w.cfg.Offsets)
}

// WriteLength writes a length using the configured length width.
func (w *Writer) WriteLength(v uint64) error {
	return w.WriteUintN(v, w.cfg.Lengths)
}

// WriteZeros writes n zero bytes.
func (w *Writer) WriteZeros(n int) error {
	if n <= 0 {
		return nil
	}
	return w.WriteBytes(make([]byte, n))
}

// OffsetSize returns the configured offset width in bytes.
func (w *Writer) OffsetSize() int { return w.cfg.Offsets }

// LengthSize returns the configured length width in bytes.
func (w *Writer) LengthSize() int { return w.cfg.Lengths }

// ByteOrder returns the configured byte order.
func (w *Writer) ByteOrder() binary.ByteOrder { return w.cfg.ByteOrder }

// BufferWriterAt is a growable in-memory io.WriterAt. Structures that carry
// a checksum are assembled in one before being flushed to the file.
type BufferWriterAt struct {
	buf []byte
}

// NewBufferWriterAt returns a buffer with size bytes preallocated.
func NewBufferWriterAt(size int) *BufferWriterAt {
	return &BufferWriterAt{buf: make([]byte, 0, size)}
}

// WriteAt implements io.WriterAt.
func (b *BufferWriterAt) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, io.ErrShortWrite
	}
	if end := int(off) + len(p); end > len(b.buf) {
		if end > cap(b.buf) {
			grown := make([]byte, end, 2*end)
			copy(grown, b.buf)
			b.buf = grown
		} else {
			b.buf = b.buf[:end]
		}
	}
	copy(b.buf[off:], p)
	return len(p), nil
}

// Bytes returns the buffered bytes.
func (b *BufferWriterAt) Bytes() []byte { return b.buf }
