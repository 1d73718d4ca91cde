package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-h5stream/hdf5"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGenerateInspectVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gen.h5")
	out, err := run(t, "generate", path, "--no-progress", "--chunks", "3", "--rows", "4", "--last-rows", "2", "--cols", "5", "--compress", "deflate", "--shuffle")
	require.NoError(t, err)
	assert.Contains(t, out, "10x5 int64, 3 chunks")

	f, err := hdf5.Open(path)
	require.NoError(t, err)
	vals, shape, err := hdf5.ReadDataset[int64](f, "data")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, []uint64{10, 5}, shape)
	for i, v := range vals {
		require.Equal(t, int64(i), v)
	}

	out, err = run(t, "inspect", path, "--format", "json")
	require.NoError(t, err)
	var r fileReport
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.True(t, r.Trusted)
	require.Len(t, r.Datasets, 1)
	assert.Equal(t, []uint64{4, 5}, r.Datasets[0].ChunkShape)
	assert.Equal(t, []string{"shuffle", "deflate"}, r.Datasets[0].Filters)
	assert.Equal(t, "h5stream", r.Datasets[0].Attributes["generator"])

	out, err = run(t, "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, out, "fixed array")
	assert.Contains(t, out, "shuffle,deflate")

	out, err = run(t, "inspect", path, "-f", "yaml")
	require.NoError(t, err)
	var y map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &y))
	assert.Equal(t, 8, y["offset_size"])

	out, err = run(t, "verify", path)
	require.NoError(t, err)
	fields := strings.Fields(out)
	require.Len(t, fields, 4)
	assert.Equal(t, "data", fields[0])
	assert.Len(t, fields[1], 64)
	assert.Equal(t, "50", fields[2])
}

func TestGenerateMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.h5")
	_, err := run(t, "generate", path, "--no-progress", "--chunks", "1", "--rows", "256", "--cols", "1024", "--declared-rows", "257")
	assert.ErrorIs(t, err, hdf5.ErrDimensionMismatch)

	out, err := run(t, "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, out, "NOT CLOSED CLEANLY")
}

func TestManifestAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte("dataset: samples\nchunks: 2\nrows: 3\ncols: 2\ncompress: zstd\nno-progress: true\n"), 0o644))
	t.Setenv("H5STREAM_OFFSET_SIZE", "4")

	path := filepath.Join(dir, "manifest.h5")
	_, err := run(t, "generate", path, "--config", manifest, "--cols", "3")
	require.NoError(t, err)

	r, err := inspectFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, r.OffsetSize)
	require.Len(t, r.Datasets, 1)
	assert.Equal(t, "samples", r.Datasets[0].Name)
	assert.Equal(t, []uint64{6, 3}, r.Datasets[0].Shape, "flags override the manifest")
	assert.Equal(t, []string{"zstd"}, r.Datasets[0].Filters)
}

func TestGenerateRejectsBadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.h5")
	_, err := run(t, "generate", path, "--no-progress", "--compress", "brotli")
	assert.ErrorContains(t, err, `unknown compression "brotli"`)

	_, err = run(t, "generate", path, "--no-progress", "--rows", "0")
	assert.Error(t, err)

	_, err = run(t, "inspect", path, "--format", "xml")
	assert.Error(t, err)
}

func TestVerifyReportsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.h5")
	_, err := run(t, "generate", path, "--no-progress", "--chunks", "2", "--rows", "2", "--cols", "2")
	require.NoError(t, err)

	r, err := inspectFile(path)
	require.NoError(t, err)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[r.Datasets[0].Address+20] ^= 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	out, err := run(t, "verify", path)
	assert.ErrorContains(t, err, "1 of 1 datasets failed verification")
	assert.Contains(t, out, "checksum mismatch")
}

func TestFormatDims(t *testing.T) {
	assert.Equal(t, "scalar", formatDims(nil))
	assert.Equal(t, "3x4", formatDims([]uint64{3, 4}))
}
