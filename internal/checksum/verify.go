package checksum

import (
	"encoding/binary"

	"github.com/robert-malhotra/go-h5stream/internal/h5err"
)

// Size is the width of every stored checksum.
const Size = 4

// Verify recomputes alg over region and compares it with stored. A mismatch
// returns a *h5err.ChecksumMismatchError carrying both values; the structure
// named by structure must not be trusted, but nothing else is affected.
func Verify(structure string, region []byte, stored uint32, alg Algorithm) error {
	if computed := alg(region); computed != stored {
		return &h5err.ChecksumMismatchError{
			Structure: structure,
			Stored:    stored,
			Computed:  computed,
		}
	}
	return nil
}

// VerifyTrailing verifies a block whose last four bytes hold the
// little-endian checksum of everything before them, and returns the
// protected region.
func VerifyTrailing(structure string, block []byte, alg Algorithm) ([]byte, error) {
	if len(block) < Size {
		return nil, &h5err.TruncatedError{Record: structure, Need: Size, Have: len(block)}
	}
	region := block[:len(block)-Size]
	stored := binary.LittleEndian.Uint32(block[len(block)-Size:])
	if err := Verify(structure, region, stored, alg); err != nil {
		return nil, err
	}
	return region, nil
}

// Append appends the little-endian checksum of data to data.
func Append(data []byte, alg Algorithm) []byte {
	return binary.LittleEndian.AppendUint32(data, alg(data))
}
