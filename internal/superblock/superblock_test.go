package superblock

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	binpkg "github.com/robert-malhotra/go-h5stream/internal/binary"
	"github.com/robert-malhotra/go-h5stream/internal/h5err"
)

func write(t *testing.T, sb *Superblock, at int64) []byte {
	t.Helper()
	buf := binpkg.NewBufferWriterAt(0)
	n, err := sb.Write(binpkg.NewWriter(buf, sb.Config()).At(at))
	require.NoError(t, err)
	require.Equal(t, int64(Size(sb.Widths)), n)
	return buf.Bytes()
}

func TestWriteRead(t *testing.T) {
	for _, widths := range []binpkg.Widths{binpkg.DefaultWidths, {Offsets: 4, Lengths: 4}, {Offsets: 2, Lengths: 8}} {
		sb := New(widths)
		sb.EOFAddress = 4096
		sb.RootGroupAddress = 48

		got, err := Read(bytes.NewReader(write(t, sb, 0)))
		require.NoError(t, err)
		assert.Equal(t, uint8(3), got.Version)
		assert.Equal(t, widths, got.Widths)
		assert.Equal(t, uint64(4096), got.EOFAddress)
		assert.Equal(t, uint64(48), got.RootGroupAddress)
		assert.Equal(t, ^uint64(0), got.ExtensionAddress)
		assert.True(t, got.Trusted())
	}
}

func TestReadSearchesOffsets(t *testing.T) {
	sb := New(binpkg.DefaultWidths)
	sb.RootGroupAddress = 600
	got, err := Read(bytes.NewReader(write(t, sb, 512)))
	require.NoError(t, err)
	assert.Equal(t, int64(512), got.FileOffset)
	assert.Equal(t, uint64(600), got.RootGroupAddress)
}

func TestWriteAccessFlag(t *testing.T) {
	sb := New(binpkg.DefaultWidths)
	sb.ConsistencyFlags = FlagWriteAccess
	got, err := Read(bytes.NewReader(write(t, sb, 0)))
	require.NoError(t, err)
	assert.False(t, got.Trusted())
}

func TestReadChecksumMismatch(t *testing.T) {
	data := write(t, New(binpkg.DefaultWidths), 0)
	data[20] ^= 0x01
	_, err := Read(bytes.NewReader(data))
	require.ErrorIs(t, err, h5err.ErrChecksumMismatch)
}

func TestReadRejects(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("definitely not an hdf5 file")))
	require.ErrorIs(t, err, ErrNotHDF5)

	data := write(t, New(binpkg.DefaultWidths), 0)
	data[8] = 0
	_, err = Read(bytes.NewReader(data))
	require.ErrorIs(t, err, h5err.ErrUnsupported)

	data[8] = 9
	_, err = Read(bytes.NewReader(data))
	require.ErrorIs(t, err, h5err.ErrUnsupportedVersion)

	data = write(t, New(binpkg.DefaultWidths), 0)
	_, err = Read(bytes.NewReader(data[:30]))
	require.ErrorIs(t, err, h5err.ErrTruncated)
}
