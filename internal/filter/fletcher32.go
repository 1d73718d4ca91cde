package filter

import (
	"encoding/binary"

	"github.com/robert-malhotra/go-h5stream/internal/checksum"
	"github.com/robert-malhotra/go-h5stream/internal/message"
)

type fletcher32 struct{}

func newFletcher32([]uint32, int) (Filter, error) { return fletcher32{}, nil }

func (fletcher32) ID() uint16 { return message.FilterFletcher32 }

func (fletcher32) Encode(in []byte) ([]byte, error) {
	out := make([]byte, len(in), len(in)+checksum.Size)
	copy(out, in)
	return binary.LittleEndian.AppendUint32(out, checksum.Fletcher32(in)), nil
}

// Decode verifies the trailing checksum and strips it.
func (fletcher32) Decode(in []byte) ([]byte, error) {
	return checksum.VerifyTrailing("fletcher32 chunk checksum", in, checksum.Fletcher32)
}
