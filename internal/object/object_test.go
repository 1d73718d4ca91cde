package object

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-h5stream/internal/binary"
	"github.com/robert-malhotra/go-h5stream/internal/checksum"
	"github.com/robert-malhotra/go-h5stream/internal/h5err"
	"github.com/robert-malhotra/go-h5stream/internal/message"
)

func datasetMessages() []message.Encodable {
	layout := message.NewChunkedLayout([]uint64{4, 8}, 8, message.ChunkIndexFixedArray)
	layout.IndexAddress = 0x400
	pipeline := &message.FilterPipeline{Version: 2, Filters: []message.FilterInfo{
		{ID: message.FilterDeflate, ClientData: []uint32{4}},
	}}
	units := message.NewAttribute("units", message.NewStringDatatype(1, message.CharsetUTF8),
		message.NewScalarDataspace(), []byte("m"))
	return DatasetMessages(message.NewSimpleDataspace(16, 8), message.NewIntegerDatatype(8, true),
		message.NewFillValue(), layout, pipeline, units)
}

func writeHeader(t *testing.T, cfg binary.Config, at int64, msgs []message.Encodable, minChunk int) *binary.BufferWriterAt {
	t.Helper()
	buf := binary.NewBufferWriterAt(0)
	n, err := Write(binary.NewWriter(buf, cfg).At(at), msgs, minChunk)
	require.NoError(t, err)
	size, err := Size(cfg, msgs, minChunk)
	require.NoError(t, err)
	require.Equal(t, int64(size), n)
	return buf
}

func reader(buf *binary.BufferWriterAt, cfg binary.Config) *binary.Reader {
	return binary.NewReader(bytes.NewReader(buf.Bytes()), cfg)
}

func TestWriteReadDatasetHeader(t *testing.T) {
	for _, cfg := range []binary.Config{binary.DefaultConfig(), binary.NewConfig(4, 4)} {
		msgs := datasetMessages()
		buf := writeHeader(t, cfg, 48, msgs, 0)

		hdr, err := Read(reader(buf, cfg), 48)
		require.NoError(t, err)
		assert.True(t, hdr.IsDataset())
		assert.False(t, hdr.IsGroup())
		require.Len(t, hdr.Messages, len(msgs))

		assert.Equal(t, []uint64{16, 8}, hdr.Dataspace().Dims)
		assert.True(t, hdr.Datatype().Equal(message.NewIntegerDatatype(8, true)))
		assert.Equal(t, uint64(0x400), hdr.DataLayout().IndexAddress)
		assert.True(t, hdr.FilterPipeline().HasFilter(message.FilterDeflate))
		require.Len(t, hdr.Attributes(), 1)
		assert.Equal(t, "units", hdr.Attributes()[0].Name)
		assert.NotNil(t, hdr.FillValue())
	}
}

func TestWriteGroupHeaderPadding(t *testing.T) {
	cfg := binary.DefaultConfig()
	msgs := GroupMessages(message.NewHardLink("a", 0x100))
	buf := writeHeader(t, cfg, 0, msgs, MinGroupChunkSize)

	// prefix(6) + 1-byte chunk size + chunk + checksum
	assert.Len(t, buf.Bytes(), 7+MinGroupChunkSize+4)

	hdr, err := Read(reader(buf, cfg), 0)
	require.NoError(t, err)
	assert.True(t, hdr.IsGroup())
	links := hdr.Links()
	require.Len(t, links, 1)
	assert.Equal(t, "a", links[0].Name)
	assert.Equal(t, uint64(0x100), links[0].Address)
}

func TestChunkLayoutPadsToMessageHeader(t *testing.T) {
	chunk, padding := chunkLayout(118, 120)
	assert.Equal(t, 122, chunk)
	assert.Equal(t, 4, padding)

	chunk, padding = chunkLayout(130, 120)
	assert.Equal(t, 130, chunk)
	assert.Zero(t, padding)
}

func TestChunkSizeWidth(t *testing.T) {
	for size, want := range map[int][2]int{
		10:      {1, 0},
		300:     {2, 1},
		70000:   {4, 2},
		1 << 33: {8, 3},
	} {
		width, code := chunkSizeWidth(size)
		assert.Equal(t, want[0], width, "size %d", size)
		assert.Equal(t, uint8(want[1]), code, "size %d", size)
	}
}

func TestReadDetectsCorruption(t *testing.T) {
	cfg := binary.DefaultConfig()
	buf := writeHeader(t, cfg, 0, datasetMessages(), 0)
	data := buf.Bytes()
	data[20] ^= 0xFF

	_, err := Read(reader(buf, cfg), 0)
	require.ErrorIs(t, err, h5err.ErrChecksumMismatch)

	var cerr *h5err.ChecksumMismatchError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "object header at 0", cerr.Structure)
	assert.NotEqual(t, cerr.Stored, cerr.Computed)
}

func TestReadRejectsUnknownSignature(t *testing.T) {
	cfg := binary.DefaultConfig()
	buf := binary.NewBufferWriterAt(0)
	_, err := buf.WriteAt([]byte("NOPE0000"), 0)
	require.NoError(t, err)

	_, err = Read(reader(buf, cfg), 0)
	require.ErrorIs(t, err, ErrInvalidHeader)

	_, err = buf.WriteAt([]byte{1, 0, 0, 0}, 0)
	require.NoError(t, err)
	_, err = Read(reader(buf, cfg), 0)
	require.ErrorIs(t, err, h5err.ErrUnsupported)
}

func TestReadFollowsContinuation(t *testing.T) {
	cfg := binary.DefaultConfig()

	// Continuation block at 512 holding one link.
	link := message.NewHardLink("later", 0x900)
	body, err := link.Encode(cfg)
	require.NoError(t, err)
	block := append([]byte{}, SignatureContinuation...)
	block = append(block, uint8(message.TypeLink), uint8(len(body)), 0, 0)
	block = append(block, body...)
	block = checksum.Append(block, checksum.Lookup3)

	msgs := GroupMessages(message.NewHardLink("first", 0x800))
	msgs = append(msgs, &message.Continuation{Offset: 512, Length: uint64(len(block))})
	buf := writeHeader(t, cfg, 0, msgs, 0)
	_, err = buf.WriteAt(block, 512)
	require.NoError(t, err)

	hdr, err := Read(reader(buf, cfg), 0)
	require.NoError(t, err)
	links := hdr.Links()
	require.Len(t, links, 2)
	assert.Equal(t, "first", links[0].Name)
	assert.Equal(t, "later", links[1].Name)
	assert.Nil(t, hdr.Message(message.TypeObjectHeaderContinuation))

	// A corrupted continuation block fails the whole header.
	buf.Bytes()[520] ^= 0x01
	_, err = Read(reader(buf, cfg), 0)
	require.ErrorIs(t, err, h5err.ErrChecksumMismatch)
}

func TestCache(t *testing.T) {
	cfg := binary.DefaultConfig()
	buf := writeHeader(t, cfg, 0, datasetMessages(), 0)
	r := reader(buf, cfg)

	c, err := NewCache(4)
	require.NoError(t, err)
	h1, err := c.Read(r, 0)
	require.NoError(t, err)
	h2, err := c.Read(r, 0)
	require.NoError(t, err)
	assert.Same(t, h1, h2)
	assert.Equal(t, 1, c.Len())

	_, err = c.Read(r, 4096)
	require.Error(t, err)
	assert.Equal(t, 1, c.Len())
}
