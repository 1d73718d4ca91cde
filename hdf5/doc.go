// Package hdf5 writes HDF5 containers from streamed chunk sources and
// reads them back.
//
// A dataset to be written is a [StreamableDataset] bound to a lazy
// [ChunkSource]. Registering it with [File.PutDataset] does not read a
// single chunk: the source is consumed when the file is closed, one chunk
// at a time, and every chunk is filtered and written before the next is
// pulled. Only then are the rows actually produced compared with the
// declared dimensions. A mismatch fails the dataset and the Close call, and
// leaves the file marked as not cleanly closed.
//
//	src := hdf5.SourceFunc(blocks, func(b int) (hdf5.Chunk[int64], error) {
//		return produceBlock(b)
//	})
//	ds := hdf5.NewStreamableDataset(src, hdf5.WithDimensions(1024, 1024), hdf5.WithDeflate(4))
//	err := hdf5.WithFile(path, func(f *hdf5.File) error {
//		return f.PutDataset("samples", ds)
//	})
//
// Shape, type and size accessors of a StreamableDataset refuse to answer
// until [StreamableDataset.EnableCompute] is called, so that inspecting a
// dataset never forces a large source to be materialised by accident.
//
// Files are read with [Open]. Every checksummed structure is verified when
// it is first decoded; a corrupted dataset header fails only that dataset.
package hdf5
