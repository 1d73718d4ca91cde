package hdf5

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	binpkg "github.com/robert-malhotra/go-h5stream/internal/binary"
	"github.com/robert-malhotra/go-h5stream/internal/filter"
	"github.com/robert-malhotra/go-h5stream/internal/message"
	"github.com/robert-malhotra/go-h5stream/internal/object"
)

// FileOption configures Create and Open.
type FileOption func(*fileOptions)

type fileOptions struct {
	widths    binpkg.Widths
	logger    *zap.Logger
	registry  prometheus.Registerer
	cacheSize int
}

func defaultFileOptions() *fileOptions {
	return &fileOptions{
		widths:    binpkg.DefaultWidths,
		logger:    zap.NewNop(),
		cacheSize: object.DefaultCacheSize,
	}
}

// WithOffsetSize sets the size in bytes of file addresses (2, 4 or 8).
func WithOffsetSize(size int) FileOption {
	return func(o *fileOptions) { o.widths.Offsets = size }
}

// WithLengthSize sets the size in bytes of lengths (2, 4 or 8).
func WithLengthSize(size int) FileOption {
	return func(o *fileOptions) { o.widths.Lengths = size }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) FileOption {
	return func(o *fileOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics registers write pipeline metrics with reg.
func WithMetrics(reg prometheus.Registerer) FileOption {
	return func(o *fileOptions) { o.registry = reg }
}

// WithHeaderCacheSize sets how many decoded object headers a file opened
// for reading keeps.
func WithHeaderCacheSize(n int) FileOption {
	return func(o *fileOptions) {
		if n > 0 {
			o.cacheSize = n
		}
	}
}

// DatasetOption configures a StreamableDataset.
type DatasetOption func(*datasetOptions)

type attrDef struct {
	name  string
	value any
}

// Progress reports a chunk written during commit.
type Progress struct {
	Dataset     string
	Chunk       int
	Rows        uint64 // rows written so far
	StoredBytes uint64 // bytes written so far, after filtering
}

type datasetOptions struct {
	dims       []uint64
	filters    []message.FilterInfo
	shuffle    bool
	fletcher32 bool
	implicit   bool
	attributes []attrDef
	progress   func(Progress)
}

// WithDimensions declares the dataset's dimensions up front. It has the
// same effect as calling ModifyDimensions.
func WithDimensions(dims ...uint64) DatasetOption {
	return func(o *datasetOptions) { o.dims = append([]uint64(nil), dims...) }
}

// WithDeflate compresses chunks with deflate at level 0-9.
func WithDeflate(level int) DatasetOption {
	return func(o *datasetOptions) { o.filters = append(o.filters, filter.Deflate(level)) }
}

// WithLZ4 compresses chunks with the LZ4 filter.
func WithLZ4() DatasetOption {
	return func(o *datasetOptions) { o.filters = append(o.filters, filter.LZ4(0)) }
}

// WithZstd compresses chunks with the Zstandard filter.
func WithZstd(level int) DatasetOption {
	return func(o *datasetOptions) { o.filters = append(o.filters, filter.Zstd(level)) }
}

// WithShuffle applies the shuffle filter ahead of compression.
func WithShuffle() DatasetOption {
	return func(o *datasetOptions) { o.shuffle = true }
}

// WithFletcher32 appends a Fletcher-32 checksum to every chunk.
func WithFletcher32() DatasetOption {
	return func(o *datasetOptions) { o.fletcher32 = true }
}

// WithImplicitIndex stores unfiltered multi-chunk datasets without a chunk
// index structure.
func WithImplicitIndex() DatasetOption {
	return func(o *datasetOptions) { o.implicit = true }
}

// WithAttribute attaches an attribute. The value is a sized number, a
// string, or a slice of either.
func WithAttribute(name string, value any) DatasetOption {
	return func(o *datasetOptions) {
		o.attributes = append(o.attributes, attrDef{name: name, value: value})
	}
}

// WithProgress calls fn after each chunk is written.
func WithProgress(fn func(Progress)) DatasetOption {
	return func(o *datasetOptions) { o.progress = fn }
}

// pipeline returns the filter pipeline in application order: shuffle,
// compressors, then the checksum.
func (o *datasetOptions) pipeline(elemSize int) *message.FilterPipeline {
	var infos []message.FilterInfo
	if o.shuffle {
		infos = append(infos, filter.Shuffle(elemSize))
	}
	infos = append(infos, o.filters...)
	if o.fletcher32 {
		infos = append(infos, filter.Fletcher32())
	}
	if len(infos) == 0 {
		return nil
	}
	return &message.FilterPipeline{Version: 2, Filters: infos}
}
