package hdf5

import (
	"fmt"
	"iter"
	"reflect"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/robert-malhotra/go-h5stream/internal/alloc"
	"github.com/robert-malhotra/go-h5stream/internal/dtype"
	"github.com/robert-malhotra/go-h5stream/internal/filter"
	"github.com/robert-malhotra/go-h5stream/internal/layout"
	"github.com/robert-malhotra/go-h5stream/internal/message"
	"github.com/robert-malhotra/go-h5stream/internal/object"
)

// State is the write state of a StreamableDataset.
type State uint8

const (
	StateCreated    State = iota // no dimensions declared
	StateConfigured              // dimensions declared
	StateComputable              // accessors enabled
	StateFinalizing              // commit in progress
	StateWritten
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConfigured:
		return "configured"
	case StateComputable:
		return "computable"
	case StateFinalizing:
		return "finalizing"
	case StateWritten:
		return "written"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state %d", uint8(s))
}

// PendingDataset is a dataset that is written when its file is closed.
// StreamableDataset is the only implementation.
type PendingDataset interface {
	State() State
	attach(f *File, name string) error
	commit(f *File) (uint64, error)
}

// StreamableDataset is a chunked dataset whose data comes from a lazy
// ChunkSource. Nothing is read from the source until the owning file is
// closed, unless an accessor forces it after EnableCompute.
//
// A StreamableDataset is not safe for concurrent use.
type StreamableDataset[T Element] struct {
	src     ChunkSource[T]
	opts    *datasetOptions
	dims    []uint64
	state   State
	compute bool

	file *File
	name string

	// Set when an accessor has read the whole source.
	materialized bool
	buffered     []Chunk[T]
	sourceErr    error

	committed  bool
	headerAddr uint64
	err        error
}

// NewStreamableDataset returns a dataset reading its chunks from src.
func NewStreamableDataset[T Element](src ChunkSource[T], opts ...DatasetOption) *StreamableDataset[T] {
	o := &datasetOptions{}
	for _, opt := range opts {
		opt(o)
	}
	d := &StreamableDataset[T]{src: src, opts: o, state: StateCreated}
	if o.dims != nil {
		d.dims = slices.Clone(o.dims)
		d.state = StateConfigured
	}
	return d
}

// Name returns the name the dataset was registered under, or "".
func (d *StreamableDataset[T]) Name() string { return d.name }

// State returns the current write state.
func (d *StreamableDataset[T]) State() State {
	if d.compute && d.state <= StateConfigured {
		return StateComputable
	}
	return d.state
}

// ModifyDimensions replaces the declared dimensions. It is not checked
// against the source; the check happens when the dataset is committed.
func (d *StreamableDataset[T]) ModifyDimensions(dims ...uint64) error {
	if d.state >= StateFinalizing {
		return fmt.Errorf("%w: dataset %s is %s", ErrWriting, d.name, d.state)
	}
	d.dims = slices.Clone(dims)
	if d.dims == nil {
		d.dims = []uint64{}
	}
	d.state = StateConfigured
	return nil
}

// EnableCompute allows the shape, type and size accessors to answer.
func (d *StreamableDataset[T]) EnableCompute() { d.compute = true }

func (d *StreamableDataset[T]) guard(accessor string) error {
	if !d.compute {
		return &PrematureAccessError{Dataset: d.name, Accessor: accessor}
	}
	return nil
}

// materialize reads the whole source once and keeps it for commit.
func (d *StreamableDataset[T]) materialize() error {
	if d.materialized {
		return d.sourceErr
	}
	d.materialized = true
	for c, err := range d.src.Chunks() {
		if err != nil {
			d.sourceErr = err
			return err
		}
		d.buffered = append(d.buffered, c)
	}
	return nil
}

// Dimensions returns the declared dimensions, or the dimensions of the
// source data when none were declared.
func (d *StreamableDataset[T]) Dimensions() ([]uint64, error) {
	if err := d.guard("Dimensions"); err != nil {
		return nil, err
	}
	if d.dims != nil {
		return slices.Clone(d.dims), nil
	}
	if err := d.materialize(); err != nil {
		return nil, err
	}
	if len(d.buffered) == 0 {
		return []uint64{0}, nil
	}
	var (
		chunkDims []uint64
		rows      uint64
		short     bool
	)
	for i, c := range d.buffered {
		if err := d.checkChunk(i, c, chunkDims, short); err != nil {
			return nil, err
		}
		if chunkDims == nil {
			chunkDims = c.Dims
		}
		short = c.Dims[0] < chunkDims[0]
		rows += c.Rows()
	}
	dims := slices.Clone(chunkDims)
	dims[0] = rows
	return dims, nil
}

// DataFlat returns every element of the source in row-major order.
func (d *StreamableDataset[T]) DataFlat() ([]T, error) {
	if err := d.guard("DataFlat"); err != nil {
		return nil, err
	}
	if err := d.materialize(); err != nil {
		return nil, err
	}
	var out []T
	for _, c := range d.buffered {
		out = append(out, c.Data...)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// Data returns the source data one row per slice.
func (d *StreamableDataset[T]) Data() ([][]T, error) {
	if err := d.guard("Data"); err != nil {
		return nil, err
	}
	if err := d.materialize(); err != nil {
		return nil, err
	}
	out := [][]T{}
	for _, c := range d.buffered {
		rows := int(c.Rows())
		if rows == 0 {
			continue
		}
		width := len(c.Data) / rows
		for r := 0; r < rows; r++ {
			out = append(out, c.Data[r*width:(r+1)*width])
		}
	}
	return out, nil
}

// DataType returns the element datatype.
func (d *StreamableDataset[T]) DataType() (Datatype, error) {
	if err := d.guard("DataType"); err != nil {
		return Datatype{}, err
	}
	return datatypeOf(dtype.Of[T]()), nil
}

// GoType returns the Go element type.
func (d *StreamableDataset[T]) GoType() (reflect.Type, error) {
	if err := d.guard("GoType"); err != nil {
		return nil, err
	}
	return reflect.TypeFor[T](), nil
}

// Size returns the number of elements implied by Dimensions.
func (d *StreamableDataset[T]) Size() (uint64, error) {
	if err := d.guard("Size"); err != nil {
		return 0, err
	}
	dims, err := d.Dimensions()
	if err != nil {
		return 0, err
	}
	n := uint64(1)
	for _, x := range dims {
		n *= x
	}
	return n, nil
}

// SizeInBytes returns Size times the element size.
func (d *StreamableDataset[T]) SizeInBytes() (uint64, error) {
	if err := d.guard("SizeInBytes"); err != nil {
		return 0, err
	}
	n, err := d.Size()
	if err != nil {
		return 0, err
	}
	return n * uint64(dtype.Of[T]().Size), nil
}

func (d *StreamableDataset[T]) attach(f *File, name string) error {
	if d.file != nil {
		return fmt.Errorf("%w: already registered as %q", ErrAlreadyAttached, d.name)
	}
	d.file, d.name = f, name
	return nil
}

// commit writes the dataset. Only the first call does any work; later
// calls return its result.
func (d *StreamableDataset[T]) commit(f *File) (uint64, error) {
	if d.committed {
		return d.headerAddr, d.err
	}
	d.committed = true
	d.state = StateFinalizing
	start := time.Now()

	addr, err := d.write(f)
	kind := ""
	if err != nil {
		d.state, d.err = StateFailed, err
		kind = failureKind(err)
	} else {
		d.state, d.headerAddr = StateWritten, addr
	}
	f.metrics.ObserveCommit(time.Since(start), kind)
	return addr, err
}

func (d *StreamableDataset[T]) chunks() iter.Seq2[Chunk[T], error] {
	if d.materialized {
		if d.sourceErr != nil {
			return func(yield func(Chunk[T], error) bool) { yield(Chunk[T]{}, d.sourceErr) }
		}
		return SliceSource(d.buffered...).Chunks()
	}
	return d.src.Chunks()
}

func (d *StreamableDataset[T]) shapeError(i int, format string, args ...any) error {
	return &ChunkShapeError{Dataset: d.name, Chunk: i, Reason: fmt.Sprintf(format, args...)}
}

// checkChunk validates chunk i against the chunk shape set by the first
// chunk. short reports whether the previous chunk had fewer rows.
func (d *StreamableDataset[T]) checkChunk(i int, c Chunk[T], chunkDims []uint64, short bool) error {
	switch {
	case len(c.Dims) == 0:
		return d.shapeError(i, "chunk has no dimensions")
	case c.Dims[0] == 0:
		return d.shapeError(i, "chunk has no rows")
	case slices.Contains(c.Dims[1:], 0):
		return d.shapeError(i, "dimensions %v have a zero extent", c.Dims)
	case c.elements() != uint64(len(c.Data)):
		return d.shapeError(i, "dimensions %v hold %d elements, chunk has %d", c.Dims, c.elements(), len(c.Data))
	}
	if chunkDims == nil {
		return nil
	}
	switch {
	case len(c.Dims) != len(chunkDims):
		return d.shapeError(i, "rank %d, first chunk has rank %d", len(c.Dims), len(chunkDims))
	case !slices.Equal(c.Dims[1:], chunkDims[1:]):
		return d.shapeError(i, "row shape %v, first chunk has %v", c.Dims[1:], chunkDims[1:])
	case c.Dims[0] > chunkDims[0]:
		return d.shapeError(i, "%d rows, chunk size is %d", c.Dims[0], chunkDims[0])
	case short:
		return d.shapeError(i, "follows a chunk with fewer than %d rows", chunkDims[0])
	}
	return nil
}

func (d *StreamableDataset[T]) write(f *File) (uint64, error) {
	dt := dtype.Of[T]()
	elemSize := int(dt.Size)
	pipe, err := filter.NewPipeline(d.opts.pipeline(elemSize), elemSize)
	if err != nil {
		return 0, fmt.Errorf("dataset %s: %w", d.name, err)
	}
	var cwOpts []layout.ChunkWriterOption
	if d.opts.implicit {
		cwOpts = append(cwOpts, layout.PreferImplicit())
	}
	log := f.log.With(zap.String("dataset", d.name))

	var (
		cw        *layout.ChunkWriter
		chunkDims []uint64
		rows      uint64
		n         int
		short     bool
	)
	for c, err := range d.chunks() {
		if err != nil {
			return 0, fmt.Errorf("dataset %s: %w", d.name, err)
		}
		if err := d.checkChunk(n, c, chunkDims, short); err != nil {
			return 0, err
		}
		if chunkDims == nil {
			chunkDims = slices.Clone(c.Dims)
			cw = layout.NewChunkWriter(f.writer, f.alloc, pipe, c.elements()*uint64(elemSize), cwOpts...)
		}
		short = c.Dims[0] < chunkDims[0]

		raw, err := dtype.Encode(dt, c.Data)
		if err != nil {
			return 0, fmt.Errorf("dataset %s: chunk %d: %w", d.name, n, err)
		}
		if short {
			// The last chunk is stored at full size, padded with fill.
			full := make([]byte, len(raw)/int(c.Dims[0])*int(chunkDims[0]))
			copy(full, raw)
			raw = full
		}
		stored, err := cw.Write(raw)
		if err != nil {
			return 0, fmt.Errorf("dataset %s: %w", d.name, err)
		}
		rows += c.Dims[0]
		f.metrics.AddChunk(stored.Size)
		log.Debug("chunk written",
			zap.Int("chunk", n),
			zap.Uint64("address", stored.Address),
			zap.Uint64("stored_bytes", stored.Size),
			zap.Uint32("filter_mask", stored.FilterMask))
		n++
		if d.opts.progress != nil {
			d.opts.progress(Progress{Dataset: d.name, Chunk: n - 1, Rows: rows, StoredBytes: cw.StoredBytes()})
		}
	}

	dims, err := d.finalDims(chunkDims, rows)
	if err != nil {
		return 0, err
	}
	if chunkDims == nil {
		chunkDims = make([]uint64, len(dims))
		for i, x := range dims {
			chunkDims[i] = max(x, 1)
		}
		cw = layout.NewChunkWriter(f.writer, f.alloc, pipe, 0, cwOpts...)
	}

	lay := message.NewChunkedLayout(chunkDims, dt.Size, message.ChunkIndexFixedArray)
	if err := cw.Finish(lay); err != nil {
		return 0, fmt.Errorf("dataset %s: writing chunk index: %w", d.name, err)
	}
	attrs, err := d.attributes()
	if err != nil {
		return 0, err
	}
	msgs := object.DatasetMessages(message.NewSimpleDataspace(dims...), dt, message.NewFillValue(), lay, pipe.Message(), attrs...)
	addr, err := f.writeHeader(msgs, 0)
	if err != nil {
		return 0, fmt.Errorf("dataset %s: %w", d.name, err)
	}
	log.Info("dataset written",
		zap.Uint64s("dims", dims),
		zap.Int("chunks", n),
		zap.Stringer("index", lay.IndexType),
		zap.Uint64("stored_bytes", cw.StoredBytes()),
		zap.Uint64("header", addr))
	return addr, nil
}

// finalDims compares what was written with the declared dimensions and
// returns the dataset's dimensions.
func (d *StreamableDataset[T]) finalDims(chunkDims []uint64, rows uint64) ([]uint64, error) {
	var written []uint64
	switch {
	case chunkDims != nil:
		written = append([]uint64{rows}, chunkDims[1:]...)
	case len(d.dims) > 0:
		// Nothing was written: only the row count is known.
		written = append([]uint64{0}, d.dims[1:]...)
	default:
		written = []uint64{0}
	}
	if d.dims == nil {
		return written, nil
	}
	if !slices.Equal(d.dims, written) {
		expected := uint64(1)
		if len(d.dims) > 0 {
			expected = d.dims[0]
		}
		return nil, &DimensionMismatchError{
			Dataset:  d.name,
			Declared: slices.Clone(d.dims),
			Written:  written,
			Expected: expected,
			Actual:   rows,
		}
	}
	return written, nil
}

func (d *StreamableDataset[T]) attributes() ([]*message.Attribute, error) {
	var out []*message.Attribute
	for _, a := range d.opts.attributes {
		dt, ds, data, err := dtype.Value(a.value)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: attribute %q: %w", d.name, a.name, err)
		}
		out = append(out, message.NewAttribute(a.name, dt, ds, data))
	}
	return out, nil
}

// writeHeader allocates and writes an object header.
func (f *File) writeHeader(msgs []message.Encodable, minChunk int) (uint64, error) {
	size, err := object.Size(f.cfg, msgs, minChunk)
	if err != nil {
		return 0, err
	}
	addr, err := f.alloc.Alloc(uint64(size), alloc.KindObjectHeader)
	if err != nil {
		return 0, err
	}
	if _, err := object.Write(f.writer.At(int64(addr)), msgs, minChunk); err != nil {
		return 0, fmt.Errorf("writing object header at %d: %w", addr, err)
	}
	return addr, nil
}
