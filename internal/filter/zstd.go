package filter

import (
	"github.com/klauspost/compress/zstd"

	"github.com/robert-malhotra/go-h5stream/internal/message"
)

// decoder is shared by every zstd stage; DecodeAll is safe for concurrent use.
var decoder *zstd.Decoder

func init() {
	var err error
	decoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(err)
	}
}

type zstdFilter struct {
	enc *zstd.Encoder
}

func newZstd(cd []uint32, _ int) (Filter, error) {
	level := zstd.SpeedDefault
	if len(cd) > 0 && cd[0] > 0 {
		level = zstd.EncoderLevelFromZstd(int(cd[0]))
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, err
	}
	return &zstdFilter{enc: enc}, nil
}

func (f *zstdFilter) ID() uint16 { return message.FilterZstd }

func (f *zstdFilter) Encode(in []byte) ([]byte, error) {
	return f.enc.EncodeAll(in, make([]byte, 0, len(in)/2)), nil
}

func (f *zstdFilter) Decode(in []byte) ([]byte, error) {
	return decoder.DecodeAll(in, nil)
}
