// Package layout places chunked dataset data in a file and reads it back.
//
// A chunked dataset stores fixed-size chunks anywhere in the file and
// records their addresses in a chunk index referenced from the data layout
// message. [ChunkWriter] writes chunks one at a time through the dataset's
// filter pipeline and, once every chunk is placed, writes the index that
// fits what was written:
//
//   - Single chunk: one chunk, addressed directly by the layout message.
//     Filtered size and filter mask live in the layout message too.
//   - Implicit: unfiltered chunks laid out back to back. No index structure
//     exists; chunk i lives at base + i*chunk size.
//   - Fixed array ("FAHD"/"FADB"): one entry per chunk, each holding the
//     address and, for filtered datasets, the stored size and filter mask.
//     Both blocks carry a lookup3 checksum.
//
// [Read] goes the other way: it resolves the index, verifies every
// checksummed index block, runs each chunk back through the pipeline and
// copies it into the dataset's row-major buffer. Compact and contiguous
// layouts are read as well.
package layout
