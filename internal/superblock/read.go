package superblock

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	binpkg "github.com/robert-malhotra/go-h5stream/internal/binary"
	"github.com/robert-malhotra/go-h5stream/internal/checksum"
	"github.com/robert-malhotra/go-h5stream/internal/h5err"
)

// Read locates the signature and decodes the superblock that follows it.
func Read(r io.ReaderAt) (*Superblock, error) {
	head := make([]byte, 12)
	for _, off := range searchOffsets {
		n, err := r.ReadAt(head, off)
		if n < len(head) {
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, err
			}
		}
		if !bytes.Equal(head[:8], Signature) {
			continue
		}
		sb, err := decode(r, off, head)
		if err != nil {
			return nil, err
		}
		return sb, nil
	}
	return nil, ErrNotHDF5
}

func decode(r io.ReaderAt, off int64, head []byte) (*Superblock, error) {
	const record = "superblock"
	version := head[8]
	switch version {
	case 2, 3:
	case 0, 1:
		return nil, fmt.Errorf("%w: version %d superblock", h5err.ErrUnsupported, version)
	default:
		return nil, &h5err.VersionError{Record: record, Version: version}
	}
	widths := binpkg.Widths{Offsets: int(head[9]), Lengths: int(head[10])}
	if err := widths.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", record, err)
	}

	block := make([]byte, Size(widths))
	if n, err := r.ReadAt(block, off); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &h5err.TruncatedError{Record: record, Need: len(block), Have: n}
		}
		return nil, err
	}
	region, err := checksum.VerifyTrailing(record, block, checksum.Lookup3)
	if err != nil {
		return nil, err
	}

	sb := &Superblock{
		Version:          version,
		Widths:           widths,
		ConsistencyFlags: head[11],
		FileOffset:       off,
	}
	b := binpkg.NewBuffer(record, region[12:], sb.Config())
	for _, dst := range []*uint64{&sb.BaseAddress, &sb.ExtensionAddress, &sb.EOFAddress, &sb.RootGroupAddress} {
		if *dst, err = b.Address(); err != nil {
			return nil, err
		}
	}
	return sb, nil
}
