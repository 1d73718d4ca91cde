package hdf5

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateCreated:    "created",
		StateConfigured: "configured",
		StateComputable: "computable",
		StateFinalizing: "finalizing",
		StateWritten:    "written",
		StateFailed:     "failed",
		State(42):       "state 42",
	} {
		assert.Equal(t, want, s.String())
	}
}

func TestStateTransitions(t *testing.T) {
	ds := NewStreamableDataset(SliceSource(seqChunk[int32](0, 2, 2)))
	assert.Equal(t, StateCreated, ds.State())

	require.NoError(t, ds.ModifyDimensions(2, 2))
	assert.Equal(t, StateConfigured, ds.State())

	ds.EnableCompute()
	assert.Equal(t, StateComputable, ds.State())

	f, err := Create(filepath.Join(t.TempDir(), "states.h5"))
	require.NoError(t, err)
	require.NoError(t, f.PutDataset("x", ds))
	require.NoError(t, f.Close())
	assert.Equal(t, StateWritten, ds.State())

	err = ds.ModifyDimensions(4, 2)
	assert.ErrorIs(t, err, ErrWriting)
}

func TestDeclaredDimensionsFromOption(t *testing.T) {
	ds := NewStreamableDataset(SliceSource[int32](), WithDimensions(0, 3))
	assert.Equal(t, StateConfigured, ds.State())
}

func TestPrematureAccess(t *testing.T) {
	ds := NewStreamableDataset(SliceSource(seqChunk[int32](0, 2, 2)), WithDimensions(2, 2))

	calls := map[string]func() error{
		"Data":        func() error { _, err := ds.Data(); return err },
		"DataFlat":    func() error { _, err := ds.DataFlat(); return err },
		"Dimensions":  func() error { _, err := ds.Dimensions(); return err },
		"DataType":    func() error { _, err := ds.DataType(); return err },
		"GoType":      func() error { _, err := ds.GoType(); return err },
		"Size":        func() error { _, err := ds.Size(); return err },
		"SizeInBytes": func() error { _, err := ds.SizeInBytes(); return err },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNotComputable)
			assert.ErrorIs(t, err, ErrWriting)
			var pe *PrematureAccessError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, name, pe.Accessor)
		})
	}
	assert.Equal(t, StateConfigured, ds.State(), "a refused accessor changes nothing")
}

func TestComputedAccessors(t *testing.T) {
	ds := NewStreamableDataset(SliceSource(seqChunk[int16](0, 2, 3), seqChunk[int16](6, 1, 3)))
	ds.EnableCompute()

	dims, err := ds.Dimensions()
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 3}, dims)

	size, err := ds.Size()
	require.NoError(t, err)
	assert.Equal(t, uint64(9), size)

	bytes, err := ds.SizeInBytes()
	require.NoError(t, err)
	assert.Equal(t, uint64(18), bytes)

	dt, err := ds.DataType()
	require.NoError(t, err)
	assert.Equal(t, Datatype{Class: "integer", Size: 2, Signed: true}, dt)
	assert.Equal(t, "int16", dt.String())

	gt, err := ds.GoType()
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[int16](), gt)

	flat, err := ds.DataFlat()
	require.NoError(t, err)
	assert.Equal(t, []int16{0, 1, 2, 3, 4, 5, 6, 7, 8}, flat)

	rows, err := ds.Data()
	require.NoError(t, err)
	assert.Equal(t, [][]int16{{0, 1, 2}, {3, 4, 5}, {6, 7, 8}}, rows)
}

func TestComputedDimensionsRejectMalformedChunks(t *testing.T) {
	tests := []struct {
		name   string
		chunks []Chunk[int32]
		chunk  int
		reason string
	}{
		{"no dimensions", []Chunk[int32]{{Data: []int32{1}}}, 0, "no dimensions"},
		{"zero extent", []Chunk[int32]{{Dims: []uint64{2, 0}}}, 0, "zero extent"},
		{"row shape", []Chunk[int32]{seqChunk[int32](0, 2, 2), seqChunk[int32](4, 2, 3)}, 1, "row shape [3]"},
		{"short chunk not last", []Chunk[int32]{seqChunk[int32](0, 2, 2), seqChunk[int32](4, 1, 2), seqChunk[int32](6, 1, 2)}, 2, "fewer than 2 rows"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := NewStreamableDataset(SliceSource(tt.chunks...))
			ds.EnableCompute()

			dims, err := ds.Dimensions()
			assert.Nil(t, dims)
			assert.ErrorIs(t, err, ErrChunkShape)
			var ce *ChunkShapeError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.chunk, ce.Chunk)
			assert.Contains(t, ce.Reason, tt.reason)

			_, err = ds.Size()
			assert.ErrorIs(t, err, ErrChunkShape)
		})
	}
}

func TestDeclaredDimensionsAreNotValidatedEarly(t *testing.T) {
	ds := NewStreamableDataset(SliceSource(seqChunk[int32](0, 2, 2)))
	require.NoError(t, ds.ModifyDimensions(100, 7))
	ds.EnableCompute()
	dims, err := ds.Dimensions()
	require.NoError(t, err)
	assert.Equal(t, []uint64{100, 7}, dims)
}

func TestMaterializedSourceIsWrittenFromBuffer(t *testing.T) {
	src, produced := countingSource(3, 2, 2)
	ds := NewStreamableDataset(src)
	ds.EnableCompute()

	dims, err := ds.Dimensions()
	require.NoError(t, err)
	assert.Equal(t, []uint64{6, 2}, dims)
	assert.Equal(t, 3, *produced)

	path := filepath.Join(t.TempDir(), "buffered.h5")
	require.NoError(t, WithFile(path, func(f *File) error {
		return f.PutDataset("buffered", ds)
	}))
	assert.Equal(t, 3, *produced, "the single-pass source is not pulled again")

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	vals, shape, err := ReadDataset[int32](r, "buffered")
	require.NoError(t, err)
	assert.Equal(t, []uint64{6, 2}, shape)
	assert.Equal(t, seqChunk[int32](0, 6, 2).Data, vals)
}

func TestSourceErrorIsCached(t *testing.T) {
	boom := errors.New("boom")
	src := SourceFunc([]int{0}, func(int) (Chunk[int32], error) { return Chunk[int32]{}, boom })
	ds := NewStreamableDataset(src)
	ds.EnableCompute()
	_, err := ds.DataFlat()
	require.ErrorIs(t, err, boom)
	_, err = ds.Data()
	require.ErrorIs(t, err, boom)

	f, err := Create(filepath.Join(t.TempDir(), "err.h5"))
	require.NoError(t, err)
	require.NoError(t, f.PutDataset("broken", ds))
	assert.ErrorIs(t, f.Close(), boom)
	assert.Equal(t, StateFailed, ds.State())
}

// Scenario: one [256,1024] chunk with dimensions overridden to [257,1024].
func TestDimensionMismatchFailsClose(t *testing.T) {
	ds := NewStreamableDataset(SliceSource(seqChunk[float32](0, 256, 1024)))
	require.NoError(t, ds.ModifyDimensions(257, 1024))

	path := filepath.Join(t.TempDir(), "mismatch.h5")
	f, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, f.PutDataset("short", ds))

	err = f.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.ErrorIs(t, err, ErrWriting)
	var dm *DimensionMismatchError
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, "short", dm.Dataset)
	assert.Equal(t, []uint64{257, 1024}, dm.Declared)
	assert.Equal(t, []uint64{256, 1024}, dm.Written)
	assert.Equal(t, uint64(257), dm.Expected)
	assert.Equal(t, uint64(256), dm.Actual)
	assert.Equal(t, StateFailed, ds.State())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	assert.False(t, r.Trusted())
	assert.Empty(t, r.DatasetNames())
}

// Scenario: four [256,1024] chunks declared as [1024,1024].
func TestStreamedWrite(t *testing.T) {
	produced := 0
	src := SourceFunc([]int{0, 1, 2, 3}, func(i int) (Chunk[float32], error) {
		produced++
		return seqChunk[float32](i*256*1024, 256, 1024), nil
	})
	ds := NewStreamableDataset(src)
	require.NoError(t, ds.ModifyDimensions(1024, 1024))

	path := filepath.Join(t.TempDir(), "streamed.h5")
	f, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, f.PutDataset("samples", ds))
	assert.Zero(t, produced, "chunks are pulled at close")
	require.NoError(t, f.Close())
	assert.Equal(t, 4, produced)
	assert.Equal(t, StateWritten, ds.State())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	assert.True(t, r.Trusted())
	vals, shape, err := ReadDataset[float32](r, "samples")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1024, 1024}, shape)
	require.Len(t, vals, 1024*1024)
	assert.Equal(t, float32(0), vals[0])
	assert.Equal(t, float32(300*1024+5), vals[300*1024+5])
	assert.Equal(t, float32(1024*1024-1), vals[len(vals)-1])

	info, err := r.Inspect("samples")
	require.NoError(t, err)
	assert.Equal(t, []uint64{256, 1024}, info.ChunkShape)
	assert.Equal(t, "fixed array", info.ChunkIndex)
	assert.Equal(t, 4, info.Chunks)
}

func TestTooManyRows(t *testing.T) {
	ds := NewStreamableDataset(SliceSource(seqChunk[int32](0, 2, 2), seqChunk[int32](4, 2, 2)), WithDimensions(3, 2))
	f, err := Create(filepath.Join(t.TempDir(), "long.h5"))
	require.NoError(t, err)
	require.NoError(t, f.PutDataset("long", ds))

	var dm *DimensionMismatchError
	require.ErrorAs(t, f.Close(), &dm)
	assert.Equal(t, uint64(3), dm.Expected)
	assert.Equal(t, uint64(4), dm.Actual)
	assert.Contains(t, dm.Error(), "expect 3 rows but 4 rows were written")
}

func TestTrailingDimensionMismatch(t *testing.T) {
	ds := NewStreamableDataset(SliceSource(seqChunk[int32](0, 2, 2)), WithDimensions(2, 3))
	f, err := Create(filepath.Join(t.TempDir(), "wide.h5"))
	require.NoError(t, err)
	require.NoError(t, f.PutDataset("wide", ds))

	var dm *DimensionMismatchError
	require.ErrorAs(t, f.Close(), &dm)
	assert.Equal(t, dm.Expected, dm.Actual)
	assert.Equal(t, []uint64{2, 2}, dm.Written)
	assert.Contains(t, dm.Error(), "do not match written dimensions")
}

func TestChunkShapeErrors(t *testing.T) {
	tests := []struct {
		name   string
		chunks []Chunk[int32]
		chunk  int
		reason string
	}{
		{
			name:   "no dimensions",
			chunks: []Chunk[int32]{{Data: []int32{1}}},
			reason: "no dimensions",
		},
		{
			name:   "no rows",
			chunks: []Chunk[int32]{{Dims: []uint64{0, 4}}},
			reason: "no rows",
		},
		{
			name:   "zero row extent",
			chunks: []Chunk[int32]{{Dims: []uint64{2, 0}}},
			reason: "zero extent",
		},
		{
			name:   "zero extent after first chunk",
			chunks: []Chunk[int32]{seqChunk[int32](0, 2, 2), {Dims: []uint64{2, 0}}},
			chunk:  1,
			reason: "zero extent",
		},
		{
			name:   "data length",
			chunks: []Chunk[int32]{{Dims: []uint64{2, 2}, Data: []int32{1, 2, 3}}},
			reason: "hold 4 elements, chunk has 3",
		},
		{
			name:   "rank",
			chunks: []Chunk[int32]{seqChunk[int32](0, 2, 2), {Dims: []uint64{4}, Data: make([]int32, 4)}},
			chunk:  1,
			reason: "rank 1",
		},
		{
			name:   "row shape",
			chunks: []Chunk[int32]{seqChunk[int32](0, 2, 2), seqChunk[int32](0, 2, 3)},
			chunk:  1,
			reason: "row shape [3]",
		},
		{
			name:   "more rows",
			chunks: []Chunk[int32]{seqChunk[int32](0, 2, 2), seqChunk[int32](0, 3, 2)},
			chunk:  1,
			reason: "3 rows, chunk size is 2",
		},
		{
			name:   "short chunk not last",
			chunks: []Chunk[int32]{seqChunk[int32](0, 2, 2), seqChunk[int32](0, 1, 2), seqChunk[int32](0, 1, 2)},
			chunk:  2,
			reason: "follows a chunk with fewer than 2 rows",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := NewStreamableDataset(SliceSource(tt.chunks...))
			f, err := Create(filepath.Join(t.TempDir(), "shape.h5"))
			require.NoError(t, err)
			require.NoError(t, f.PutDataset("bad", ds))

			err = f.Close()
			assert.ErrorIs(t, err, ErrChunkShape)
			assert.ErrorIs(t, err, ErrWriting)
			var ce *ChunkShapeError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, "bad", ce.Dataset)
			assert.Equal(t, tt.chunk, ce.Chunk)
			assert.Contains(t, ce.Reason, tt.reason)
			assert.Equal(t, StateFailed, ds.State())
		})
	}
}

func TestCommitIsIdempotent(t *testing.T) {
	ds := NewStreamableDataset(SliceSource(seqChunk[int32](0, 1, 1)), WithDimensions(2, 1))
	f, err := Create(filepath.Join(t.TempDir(), "once.h5"))
	require.NoError(t, err)
	require.NoError(t, f.PutDataset("once", ds))

	_, err1 := ds.commit(f)
	_, err2 := ds.commit(f)
	require.Error(t, err1)
	assert.Same(t, err1, err2)
	assert.ErrorIs(t, f.Close(), ErrDimensionMismatch)
}
