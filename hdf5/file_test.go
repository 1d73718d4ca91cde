package hdf5

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func tempPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}

func TestCreateEmpty(t *testing.T) {
	path := tempPath(t, "empty.h5")
	f, err := Create(path)
	require.NoError(t, err)
	assert.Equal(t, path, f.Path())
	assert.False(t, f.Trusted(), "a file being written is not trusted")
	require.NoError(t, f.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	assert.True(t, r.Trusted())
	assert.Empty(t, r.DatasetNames())
	assert.Equal(t, 8, r.Widths().Offsets)
}

func TestCreateInvalidWidths(t *testing.T) {
	_, err := Create(tempPath(t, "bad.h5"), WithOffsetSize(3))
	assert.ErrorContains(t, err, "invalid size of offsets 3")
}

func TestOpenNotHDF5(t *testing.T) {
	path := tempPath(t, "text.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("not hdf5 ", 400)), 0o644))
	_, err := Open(path)
	assert.ErrorIs(t, err, ErrNotHDF5)
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(tempPath(t, "missing.h5"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPutDatasetErrors(t *testing.T) {
	f, err := Create(tempPath(t, "put.h5"))
	require.NoError(t, err)

	ds := NewStreamableDataset(SliceSource(seqChunk[int32](0, 1, 1)))
	require.NoError(t, f.PutDataset("a", ds))

	err = f.PutDataset("b", ds)
	assert.ErrorIs(t, err, ErrAlreadyAttached)

	other := NewStreamableDataset(SliceSource(seqChunk[int32](0, 1, 1)))
	assert.ErrorIs(t, f.PutDataset("a", other), ErrExists)

	for _, name := range []string{"", ".", "g/x"} {
		assert.Error(t, f.PutDataset(name, other), "name %q", name)
	}
	assert.Equal(t, "", other.Name(), "rejected datasets stay unattached")
	assert.Equal(t, "a", ds.Name())
	assert.Equal(t, []string{"a"}, f.DatasetNames())

	g, err := Create(tempPath(t, "other.h5"))
	require.NoError(t, err)
	assert.ErrorIs(t, g.PutDataset("a", ds), ErrAlreadyAttached)
	require.NoError(t, g.Close())

	require.NoError(t, f.Close())
	assert.ErrorIs(t, f.PutDataset("c", other), ErrClosed)
}

func TestPutDatasetReadOnly(t *testing.T) {
	path := tempPath(t, "ro.h5")
	require.NoError(t, WithFile(path, func(*File) error { return nil }))
	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	ds := NewStreamableDataset(SliceSource(seqChunk[int32](0, 1, 1)))
	assert.ErrorIs(t, r.PutDataset("x", ds), ErrReadOnly)
}

func TestCloseTwice(t *testing.T) {
	f, err := Create(tempPath(t, "twice.h5"))
	require.NoError(t, err)
	require.NoError(t, f.PutDataset("bad", NewStreamableDataset(SliceSource(seqChunk[int32](0, 2, 2)), WithDimensions(3, 2))))

	err1 := f.Close()
	err2 := f.Close()
	require.Error(t, err1)
	assert.Same(t, err1, err2)

	g, err := Create(tempPath(t, "twice-ok.h5"))
	require.NoError(t, err)
	require.NoError(t, g.Close())
	require.NoError(t, g.Close())
}

func TestFailedDatasetDoesNotStopOthers(t *testing.T) {
	path := tempPath(t, "mixed.h5")
	f, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, f.PutDataset("first", NewStreamableDataset(SliceSource(seqChunk[int32](0, 2, 2)))))
	require.NoError(t, f.PutDataset("bad", NewStreamableDataset(SliceSource(seqChunk[int32](0, 2, 2)), WithDimensions(5, 2))))
	require.NoError(t, f.PutDataset("shape", NewStreamableDataset(SliceSource(Chunk[int32]{Dims: []uint64{0}}))))
	require.NoError(t, f.PutDataset("last", NewStreamableDataset(SliceSource(seqChunk[int64](10, 1, 3)))))

	err = f.Close()
	assert.ErrorIs(t, err, ErrDimensionMismatch, "the first error is returned")
	assert.NotErrorIs(t, err, ErrChunkShape)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	assert.False(t, r.Trusted())
	assert.Equal(t, []string{"first", "last"}, r.DatasetNames())

	vals, shape, err := ReadDataset[int64](r, "last")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3}, shape)
	assert.Equal(t, []int64{10, 11, 12}, vals)

	_, _, err = ReadDataset[int32](r, "bad")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWithFile(t *testing.T) {
	path := tempPath(t, "with.h5")
	boom := errors.New("boom")
	err := WithFile(path, func(f *File) error {
		if err := f.PutDataset("kept", NewStreamableDataset(SliceSource(seqChunk[uint8](0, 4, 1)))); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	vals, _, err := ReadDataset[uint8](r, "kept")
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 1, 2, 3}, vals, "the dataset is committed even when fn fails")

	err = WithFile(tempPath(t, "with-bad.h5"), func(f *File) error {
		return f.PutDataset("bad", NewStreamableDataset(SliceSource(seqChunk[uint8](0, 4, 1)), WithDimensions(5, 1)))
	})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestRoundTripOptions(t *testing.T) {
	tests := []struct {
		name  string
		opts  []DatasetOption
		index string
	}{
		{name: "plain", index: "fixed array"},
		{name: "implicit", opts: []DatasetOption{WithImplicitIndex()}, index: "implicit"},
		{name: "deflate", opts: []DatasetOption{WithDeflate(6)}, index: "fixed array"},
		{name: "shuffle deflate", opts: []DatasetOption{WithShuffle(), WithDeflate(1)}, index: "fixed array"},
		{name: "lz4", opts: []DatasetOption{WithLZ4()}, index: "fixed array"},
		{name: "zstd", opts: []DatasetOption{WithZstd(3)}, index: "fixed array"},
		{name: "fletcher32", opts: []DatasetOption{WithFletcher32()}, index: "fixed array"},
		{name: "all", opts: []DatasetOption{WithShuffle(), WithZstd(1), WithFletcher32()}, index: "fixed array"},
		{name: "implicit ignored when filtered", opts: []DatasetOption{WithImplicitIndex(), WithDeflate(1)}, index: "fixed array"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Five chunks of three rows, the last holding two.
			var chunks []Chunk[int64]
			for i := 0; i < 4; i++ {
				chunks = append(chunks, seqChunk[int64](i*12, 3, 4))
			}
			chunks = append(chunks, seqChunk[int64](48, 2, 4))

			path := tempPath(t, "opts.h5")
			opts := append([]DatasetOption{WithDimensions(14, 4)}, tt.opts...)
			require.NoError(t, WithFile(path, func(f *File) error {
				return f.PutDataset("data", NewStreamableDataset(SliceSource(chunks...), opts...))
			}))

			r, err := Open(path)
			require.NoError(t, err)
			defer r.Close()
			vals, shape, err := ReadDataset[int64](r, "data")
			require.NoError(t, err)
			assert.Equal(t, []uint64{14, 4}, shape)
			assert.Equal(t, seqChunk[int64](0, 14, 4).Data, vals)

			info, err := r.Inspect("data")
			require.NoError(t, err)
			assert.Equal(t, tt.index, info.ChunkIndex)
			assert.Equal(t, 5, info.Chunks)
			assert.Equal(t, []uint64{3, 4}, info.ChunkShape)
			assert.Equal(t, "chunked", info.Layout)
			assert.Equal(t, "int64", info.Datatype.String())
		})
	}
}

func TestFilterNamesInOrder(t *testing.T) {
	path := tempPath(t, "filters.h5")
	require.NoError(t, WithFile(path, func(f *File) error {
		ds := NewStreamableDataset(SliceSource(seqChunk[int32](0, 8, 8)), WithFletcher32(), WithDeflate(2), WithShuffle())
		return f.PutDataset("f", ds)
	}))
	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	d, err := r.Dataset("f")
	require.NoError(t, err)
	assert.Equal(t, []string{"shuffle", "deflate", "fletcher32"}, d.Filters())
}

func TestSingleChunkDataset(t *testing.T) {
	for _, opts := range [][]DatasetOption{nil, {WithDeflate(5)}} {
		path := tempPath(t, "single.h5")
		require.NoError(t, WithFile(path, func(f *File) error {
			return f.PutDataset("one", NewStreamableDataset(SliceSource(seqChunk[uint16](0, 5, 5)), opts...))
		}))
		r, err := Open(path)
		require.NoError(t, err)
		vals, shape, err := ReadDataset[uint16](r, "one")
		require.NoError(t, err)
		assert.Equal(t, []uint64{5, 5}, shape)
		assert.Equal(t, seqChunk[uint16](0, 5, 5).Data, vals)
		info, err := r.Inspect("one")
		require.NoError(t, err)
		assert.Equal(t, "single chunk", info.ChunkIndex)
		assert.Equal(t, 1, info.Chunks)
		require.NoError(t, r.Close())
	}
}

func TestEmptyDatasets(t *testing.T) {
	path := tempPath(t, "none.h5")
	require.NoError(t, WithFile(path, func(f *File) error {
		if err := f.PutDataset("declared", NewStreamableDataset(SliceSource[float64](), WithDimensions(0, 4))); err != nil {
			return err
		}
		return f.PutDataset("undeclared", NewStreamableDataset(SliceSource[float64]()))
	}))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	for name, want := range map[string][]uint64{"declared": {0, 4}, "undeclared": {0}} {
		vals, shape, err := ReadDataset[float64](r, name)
		require.NoError(t, err, name)
		assert.Equal(t, want, shape, name)
		assert.Empty(t, vals, name)
		info, err := r.Inspect(name)
		require.NoError(t, err)
		assert.Zero(t, info.Chunks)
	}
}

func TestMissingRowsDeclaredButEmpty(t *testing.T) {
	f, err := Create(tempPath(t, "empty-bad.h5"))
	require.NoError(t, err)
	require.NoError(t, f.PutDataset("x", NewStreamableDataset(SliceSource[int8](), WithDimensions(3, 1))))
	var dm *DimensionMismatchError
	require.ErrorAs(t, f.Close(), &dm)
	assert.Equal(t, uint64(3), dm.Expected)
	assert.Zero(t, dm.Actual)
}

func TestSmallWidths(t *testing.T) {
	path := tempPath(t, "small.h5")
	require.NoError(t, WithFile(path, func(f *File) error {
		return f.PutDataset("d", NewStreamableDataset(SliceSource(seqChunk[int32](0, 2, 3), seqChunk[int32](6, 2, 3)), WithDeflate(1)))
	}, WithOffsetSize(4), WithLengthSize(4)))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 4, r.Widths().Offsets)
	assert.Equal(t, 4, r.Widths().Lengths)
	vals, _, err := ReadDataset[int32](r, "d")
	require.NoError(t, err)
	assert.Equal(t, seqChunk[int32](0, 4, 3).Data, vals)
}

func TestAttributes(t *testing.T) {
	path := tempPath(t, "attrs.h5")
	require.NoError(t, WithFile(path, func(f *File) error {
		ds := NewStreamableDataset(SliceSource(seqChunk[float32](0, 1, 2)),
			WithAttribute("units", "m/s"),
			WithAttribute("scale", 0.5),
			WithAttribute("ids", []int32{1, 2, 3}))
		return f.PutDataset("v", ds)
	}))
	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	info, err := r.Inspect("v")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"units": "m/s",
		"scale": 0.5,
		"ids":   []int32{1, 2, 3},
	}, info.Attributes)
}

func TestBadAttributeFailsDataset(t *testing.T) {
	f, err := Create(tempPath(t, "attr-bad.h5"))
	require.NoError(t, err)
	require.NoError(t, f.PutDataset("v", NewStreamableDataset(SliceSource(seqChunk[int32](0, 1, 1)), WithAttribute("n", 3))))
	err = f.Close()
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.ErrorContains(t, err, `attribute "n"`)
}

func TestReadDatasetTypeMismatch(t *testing.T) {
	path := tempPath(t, "type.h5")
	require.NoError(t, WithFile(path, func(f *File) error {
		return f.PutDataset("d", NewStreamableDataset(SliceSource(seqChunk[int32](0, 1, 1))))
	}))
	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	_, _, err = ReadDataset[float64](r, "d")
	assert.ErrorContains(t, err, "holds int32, not float64")
}

func TestCorruptHeaderIsIsolated(t *testing.T) {
	path := tempPath(t, "corrupt.h5")
	require.NoError(t, WithFile(path, func(f *File) error {
		if err := f.PutDataset("a", NewStreamableDataset(SliceSource(seqChunk[int32](0, 2, 2)))); err != nil {
			return err
		}
		return f.PutDataset("b", NewStreamableDataset(SliceSource(seqChunk[int32](4, 2, 2))))
	}))

	r, err := Open(path)
	require.NoError(t, err)
	info, err := r.Inspect("a")
	require.NoError(t, err)
	require.NoError(t, r.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[info.Address+20] ^= 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	r, err = Open(path)
	require.NoError(t, err)
	defer r.Close()
	_, err = r.Inspect("a")
	assert.ErrorIs(t, err, ErrChecksumMismatch)
	var cm *ChecksumMismatchError
	require.ErrorAs(t, err, &cm)
	assert.Contains(t, cm.Structure, "object header")

	vals, _, err := ReadDataset[int32](r, "b")
	require.NoError(t, err)
	assert.Equal(t, []int32{4, 5, 6, 7}, vals)
}

func TestInterruptedWriteIsUntrusted(t *testing.T) {
	path := tempPath(t, "crash.h5")
	f, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, f.PutDataset("x", NewStreamableDataset(SliceSource(seqChunk[int32](0, 1, 1)))))
	// Simulate a crash: the handle is released without committing.
	require.NoError(t, f.file.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	assert.False(t, r.Trusted())
	assert.Empty(t, r.DatasetNames())
}

func TestDatasetLookupErrors(t *testing.T) {
	path := tempPath(t, "lookup.h5")
	f, err := Create(path)
	require.NoError(t, err)
	_, err = f.Dataset("x")
	assert.ErrorIs(t, err, ErrUnsupported)
	require.NoError(t, f.Close())

	r, err := Open(path)
	require.NoError(t, err)
	_, err = r.Dataset("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, r.Close())
	_, err = r.Dataset("nope")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestProgress(t *testing.T) {
	var got []Progress
	ds := NewStreamableDataset(
		SliceSource(seqChunk[int32](0, 4, 4), seqChunk[int32](16, 4, 4), seqChunk[int32](32, 1, 4)),
		WithProgress(func(p Progress) { got = append(got, p) }))
	require.NoError(t, WithFile(tempPath(t, "progress.h5"), func(f *File) error {
		return f.PutDataset("p", ds)
	}))

	require.Len(t, got, 3)
	for i, p := range got {
		assert.Equal(t, "p", p.Dataset)
		assert.Equal(t, i, p.Chunk)
		assert.Equal(t, uint64(64*(i+1)), p.StoredBytes, "short chunks are stored at full size")
	}
	assert.Equal(t, []uint64{4, 8, 9}, []uint64{got[0].Rows, got[1].Rows, got[2].Rows})
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	f, err := Create(tempPath(t, "metrics.h5"), WithMetrics(reg))
	require.NoError(t, err)
	require.NoError(t, f.PutDataset("ok", NewStreamableDataset(SliceSource(seqChunk[int32](0, 2, 2), seqChunk[int32](4, 2, 2)))))
	require.NoError(t, f.PutDataset("bad", NewStreamableDataset(SliceSource(seqChunk[int32](0, 2, 2)), WithDimensions(1, 2))))
	require.Error(t, f.Close())

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, l := range m.GetLabel() {
				name += "{" + l.GetName() + "=" + l.GetValue() + "}"
			}
			switch {
			case m.GetCounter() != nil:
				values[name] = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				values[name] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	assert.Equal(t, 3.0, values["h5stream_write_chunks_total"])
	assert.Equal(t, 48.0, values["h5stream_write_bytes_total"])
	assert.Equal(t, 1.0, values["h5stream_write_datasets_total"])
	assert.Equal(t, 1.0, values["h5stream_commit_failures_total{kind=dimension_mismatch}"])
	assert.Equal(t, 2.0, values["h5stream_commit_duration_seconds"])

	_, err = Create(tempPath(t, "dup.h5"), WithMetrics(reg))
	assert.ErrorContains(t, err, "registering metrics")
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	f, err := Create(tempPath(t, "logs.h5"), WithLogger(zap.New(core)))
	require.NoError(t, err)
	require.NoError(t, f.PutDataset("ok", NewStreamableDataset(SliceSource(seqChunk[int32](0, 1, 1)))))
	require.NoError(t, f.PutDataset("bad", NewStreamableDataset(SliceSource(seqChunk[int32](0, 1, 1)), WithDimensions(2, 1))))
	require.Error(t, f.Close())

	assert.Equal(t, 1, logs.FilterMessage("chunk written").FilterField(zap.String("dataset", "ok")).Len())
	assert.Equal(t, 1, logs.FilterMessage("dataset written").Len())
	warn := logs.FilterMessage("dataset not written").All()
	require.Len(t, warn, 1)
	assert.Equal(t, zapcore.WarnLevel, warn[0].Level)
	assert.Equal(t, "bad", warn[0].ContextMap()["dataset"])

	closed := logs.FilterMessage("file closed").All()
	require.Len(t, closed, 1)
	assert.Equal(t, false, closed[0].ContextMap()["trusted"])
}
