// Package filter implements the HDF5 chunk filter pipeline.
//
// A dataset's filter pipeline message lists the filters applied to every
// chunk, in the order they run on write. Reading runs them in reverse.
// Each chunk records a filter mask: bit i set means filter i was skipped
// for that chunk, which happens when an optional filter fails on write.
//
// Supported filters:
//
//   - deflate (1): zlib streams, github.com/klauspost/compress/zlib
//   - shuffle (2): byte transposition by element size
//   - fletcher32 (3): trailing Fletcher-32 checksum, verified on read
//   - lz4 (32004): the HDF5 LZ4 plugin framing, github.com/pierrec/lz4/v4
//   - zstd (32015): zstd frames, github.com/klauspost/compress/zstd
package filter
