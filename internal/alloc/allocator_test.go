package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocAppends(t *testing.T) {
	a := New(48, 8)

	addr, err := a.Alloc(100, KindObjectHeader)
	require.NoError(t, err)
	assert.Equal(t, uint64(48), addr)

	addr, err = a.Alloc(200, KindChunk)
	require.NoError(t, err)
	assert.Equal(t, uint64(148), addr)
	assert.Equal(t, uint64(348), a.EOF())
	require.NoError(t, a.Validate())
}

func TestAllocZeroSize(t *testing.T) {
	a := New(100, 8)
	addr, err := a.Alloc(0, KindChunk)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), addr)
	assert.Equal(t, uint64(100), a.EOF())
	assert.Empty(t, a.Regions())
}

func TestAllocAligned(t *testing.T) {
	a := New(100, 8)
	_, err := a.Alloc(13, KindObjectHeader)
	require.NoError(t, err)

	addr, err := a.AllocAligned(50, 8, KindChunk)
	require.NoError(t, err)
	assert.Equal(t, uint64(120), addr)
	require.NoError(t, a.Validate())
}

func TestAllocAddressSpace(t *testing.T) {
	a := New(0, 2)
	_, err := a.Alloc(0xFFF0, KindChunk)
	require.NoError(t, err)

	_, err = a.Alloc(0x20, KindChunk)
	require.ErrorIs(t, err, ErrAddressSpace)
	assert.Equal(t, uint64(0xFFF0), a.EOF())

	_, err = New(0, 8).Alloc(1<<40, KindChunk)
	require.NoError(t, err)
}

func TestUsage(t *testing.T) {
	a := New(0, 8)
	for _, r := range []struct {
		size uint64
		kind Kind
	}{
		{48, KindSuperblock},
		{100, KindChunk},
		{100, KindChunk},
		{40, KindChunkIndex},
	} {
		_, err := a.Alloc(r.size, r.kind)
		require.NoError(t, err)
	}
	assert.Equal(t, map[Kind]uint64{KindSuperblock: 48, KindChunk: 200, KindChunkIndex: 40}, a.Usage())
	assert.Len(t, a.Regions(), 4)
}
