package filter

import (
	"github.com/robert-malhotra/go-h5stream/internal/message"
)

// shuffle groups byte j of every element together, which makes slowly
// varying numeric data far more compressible.
type shuffle struct {
	elemSize int
}

func newShuffle(cd []uint32, elemSize int) (Filter, error) {
	if len(cd) > 0 && cd[0] > 0 {
		elemSize = int(cd[0])
	}
	return &shuffle{elemSize: max(elemSize, 1)}, nil
}

func (f *shuffle) ID() uint16 { return message.FilterShuffle }

func (f *shuffle) Encode(in []byte) ([]byte, error) {
	n := len(in) / f.elemSize
	if f.elemSize == 1 || n <= 1 {
		return in, nil
	}
	out := make([]byte, len(in))
	for i := 0; i < n; i++ {
		for j := 0; j < f.elemSize; j++ {
			out[j*n+i] = in[i*f.elemSize+j]
		}
	}
	// Bytes past the last whole element are left in place.
	copy(out[n*f.elemSize:], in[n*f.elemSize:])
	return out, nil
}

func (f *shuffle) Decode(in []byte) ([]byte, error) {
	n := len(in) / f.elemSize
	if f.elemSize == 1 || n <= 1 {
		return in, nil
	}
	out := make([]byte, len(in))
	for i := 0; i < n; i++ {
		for j := 0; j < f.elemSize; j++ {
			out[i*f.elemSize+j] = in[j*n+i]
		}
	}
	copy(out[n*f.elemSize:], in[n*f.elemSize:])
	return out, nil
}
