package filter

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/robert-malhotra/go-h5stream/internal/message"
)

// DefaultLZ4BlockSize is the block size used when the filter carries no
// client data.
const DefaultLZ4BlockSize = 1 << 30

const lz4HeaderSize = 12

// maxLZ4Ratio bounds how far one compressed byte can expand.
const maxLZ4Ratio = 255

var errLZ4Frame = errors.New("malformed lz4 frame")

// lz4Filter implements the HDF5 LZ4 plugin framing: an 8-byte big-endian
// original size and a 4-byte big-endian block size, then one record per
// block holding its 4-byte big-endian compressed size and the bytes. A
// block whose compressed size equals its original size is stored raw.
type lz4Filter struct {
	blockSize int
}

func newLZ4(cd []uint32, _ int) (Filter, error) {
	bs := DefaultLZ4BlockSize
	if len(cd) > 0 && cd[0] > 0 {
		bs = int(cd[0])
	}
	return &lz4Filter{blockSize: bs}, nil
}

func (f *lz4Filter) ID() uint16 { return message.FilterLZ4 }

func (f *lz4Filter) Encode(in []byte) ([]byte, error) {
	bs := min(f.blockSize, max(len(in), 1))
	out := make([]byte, lz4HeaderSize, lz4HeaderSize+len(in)+len(in)/bs*4+4)
	binary.BigEndian.PutUint64(out[0:], uint64(len(in)))
	binary.BigEndian.PutUint32(out[8:], uint32(bs))

	scratch := make([]byte, lz4.CompressBlockBound(bs))
	for off := 0; off < len(in); off += bs {
		block := in[off:min(off+bs, len(in))]
		n, err := lz4.CompressBlock(block, scratch, nil)
		if err != nil {
			return nil, err
		}
		if n == 0 || n >= len(block) {
			out = binary.BigEndian.AppendUint32(out, uint32(len(block)))
			out = append(out, block...)
			continue
		}
		out = binary.BigEndian.AppendUint32(out, uint32(n))
		out = append(out, scratch[:n]...)
	}
	return out, nil
}

func (f *lz4Filter) Decode(in []byte) ([]byte, error) {
	return f.decodeBounded(in, 0)
}

// decodeBounded refuses a frame declaring more than limit bytes, or more
// than its input could expand to, before allocating. A zero limit applies
// only the expansion bound.
func (f *lz4Filter) decodeBounded(in []byte, limit uint64) ([]byte, error) {
	if len(in) < lz4HeaderSize {
		return nil, fmt.Errorf("%w: %d byte header", errLZ4Frame, len(in))
	}
	total := binary.BigEndian.Uint64(in[0:])
	bs := int(binary.BigEndian.Uint32(in[8:]))
	if bs == 0 && total > 0 {
		return nil, fmt.Errorf("%w: zero block size", errLZ4Frame)
	}
	if limit > 0 && total > limit {
		return nil, fmt.Errorf("%w: declares %d bytes, chunk holds %d", errLZ4Frame, total, limit)
	}
	if total > uint64(len(in)-lz4HeaderSize)*maxLZ4Ratio {
		return nil, fmt.Errorf("%w: declares %d bytes from %d", errLZ4Frame, total, len(in))
	}
	out := make([]byte, total)
	pos := lz4HeaderSize
	for off := 0; off < len(out); off += bs {
		want := min(bs, len(out)-off)
		if pos+4 > len(in) {
			return nil, fmt.Errorf("%w: missing block at %d", errLZ4Frame, off)
		}
		n := int(binary.BigEndian.Uint32(in[pos:]))
		pos += 4
		if pos+n > len(in) {
			return nil, fmt.Errorf("%w: block at %d overruns input", errLZ4Frame, off)
		}
		src := in[pos : pos+n]
		pos += n
		if n == want {
			copy(out[off:], src)
			continue
		}
		got, err := lz4.UncompressBlock(src, out[off:off+want])
		if err != nil {
			return nil, err
		}
		if got != want {
			return nil, fmt.Errorf("%w: block at %d decoded to %d bytes, want %d", errLZ4Frame, off, got, want)
		}
	}
	return out, nil
}
