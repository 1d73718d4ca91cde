package filter

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/robert-malhotra/go-h5stream/internal/message"
)

type deflate struct {
	level int
}

func newDeflate(cd []uint32, _ int) (Filter, error) {
	level := zlib.DefaultCompression
	if len(cd) > 0 {
		level = int(cd[0])
	}
	if level > zlib.BestCompression {
		return nil, fmt.Errorf("deflate level %d out of range", level)
	}
	return &deflate{level: level}, nil
}

func (f *deflate) ID() uint16 { return message.FilterDeflate }

func (f *deflate) Encode(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, f.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(in); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *deflate) Decode(in []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
