package filter

import (
	"fmt"

	"github.com/robert-malhotra/go-h5stream/internal/h5err"
	"github.com/robert-malhotra/go-h5stream/internal/message"
)

// Filter is one reversible chunk transformation.
type Filter interface {
	ID() uint16
	Encode(in []byte) ([]byte, error)
	Decode(in []byte) ([]byte, error)
}

// boundedDecoder is a Filter whose encoded form declares the decoded size,
// so a size over limit can be refused before allocating.
type boundedDecoder interface {
	decodeBounded(in []byte, limit uint64) ([]byte, error)
}

type constructor func(cd []uint32, elemSize int) (Filter, error)

var registry = map[uint16]constructor{
	message.FilterDeflate:    newDeflate,
	message.FilterShuffle:    newShuffle,
	message.FilterFletcher32: newFletcher32,
	message.FilterLZ4:        newLZ4,
	message.FilterZstd:       newZstd,
}

var names = map[uint16]string{
	message.FilterDeflate:     "deflate",
	message.FilterShuffle:     "shuffle",
	message.FilterFletcher32:  "fletcher32",
	message.FilterSZIP:        "szip",
	message.FilterNBit:        "nbit",
	message.FilterScaleOffset: "scaleoffset",
	message.FilterLZ4:         "lz4",
	message.FilterZstd:        "zstd",
}

// Name returns the conventional name of a filter id.
func Name(id uint16) string {
	if n, ok := names[id]; ok {
		return n
	}
	return fmt.Sprintf("filter %d", id)
}

// New instantiates the filter described by info. elemSize is the dataset's
// element size, used by filters that work per element.
func New(info message.FilterInfo, elemSize int) (Filter, error) {
	c, ok := registry[info.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", h5err.ErrUnsupported, Name(info.ID))
	}
	return c(info.ClientData, elemSize)
}

// Deflate describes a deflate stage at level 0-9.
func Deflate(level int) message.FilterInfo {
	return message.FilterInfo{ID: message.FilterDeflate, ClientData: []uint32{uint32(level)}}
}

// Shuffle describes a shuffle stage for elements of elemSize bytes.
func Shuffle(elemSize int) message.FilterInfo {
	return message.FilterInfo{ID: message.FilterShuffle, ClientData: []uint32{uint32(elemSize)}}
}

// Fletcher32 describes a checksum stage.
func Fletcher32() message.FilterInfo {
	return message.FilterInfo{ID: message.FilterFletcher32}
}

// LZ4 describes an lz4 stage. blockSize 0 selects the plugin default.
func LZ4(blockSize int) message.FilterInfo {
	info := message.FilterInfo{ID: message.FilterLZ4, Name: "lz4", Flags: message.FilterOptional}
	if blockSize > 0 {
		info.ClientData = []uint32{uint32(blockSize)}
	}
	return info
}

// Zstd describes a zstd stage at the given level.
func Zstd(level int) message.FilterInfo {
	return message.FilterInfo{
		ID:         message.FilterZstd,
		Name:       "zstd",
		Flags:      message.FilterOptional,
		ClientData: []uint32{uint32(level)},
	}
}
