package superblock

import (
	binpkg "github.com/robert-malhotra/go-h5stream/internal/binary"
	"github.com/robert-malhotra/go-h5stream/internal/checksum"
)

// Write writes the superblock at the writer's position and returns the
// number of bytes written.
func (sb *Superblock) Write(w *binpkg.Writer) (int64, error) {
	if err := sb.Widths.Validate(); err != nil {
		return 0, err
	}
	cfg := sb.Config()
	buf := binpkg.NewBufferWriterAt(Size(sb.Widths))
	bw := binpkg.NewWriter(buf, cfg)

	if err := bw.WriteBytes(Signature); err != nil {
		return 0, err
	}
	head := []byte{sb.Version, uint8(sb.Widths.Offsets), uint8(sb.Widths.Lengths), sb.ConsistencyFlags}
	if err := bw.WriteBytes(head); err != nil {
		return 0, err
	}
	for _, addr := range []uint64{sb.BaseAddress, sb.ExtensionAddress, sb.EOFAddress, sb.RootGroupAddress} {
		if err := bw.WriteOffset(addr); err != nil {
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
