package hdf5

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/robert-malhotra/go-h5stream/internal/dtype"
	"github.com/robert-malhotra/go-h5stream/internal/filter"
	"github.com/robert-malhotra/go-h5stream/internal/layout"
	"github.com/robert-malhotra/go-h5stream/internal/message"
	"github.com/robert-malhotra/go-h5stream/internal/object"
)

// Dataset is a dataset of a file opened for reading.
type Dataset struct {
	file *File
	name string
	addr uint64
	hdr  *object.Header
}

// Dataset opens the dataset called name in the root group. Its object
// header is checksum verified before use.
func (f *File) Dataset(name string) (*Dataset, error) {
	switch {
	case f.closed:
		return nil, ErrClosed
	case f.writable:
		return nil, fmt.Errorf("%w: file is open for writing", ErrUnsupported)
	}
	i := slices.IndexFunc(f.links, func(l *message.Link) bool { return l.Name == name })
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	l := f.links[i]
	if l.LinkType != message.LinkHard {
		return nil, fmt.Errorf("%w: %q is not a hard link (type %d)", ErrUnsupported, name, l.LinkType)
	}
	hdr, err := f.cache.Read(f.reader, l.Address)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	if !hdr.IsDataset() {
		return nil, fmt.Errorf("%w: %q", ErrNotDataset, name)
	}
	return &Dataset{file: f, name: name, addr: l.Address, hdr: hdr}, nil
}

// Name returns the dataset's name.
func (d *Dataset) Name() string { return d.name }

// Shape returns the dataset's dimensions. A scalar dataset has none.
func (d *Dataset) Shape() []uint64 {
	return slices.Clone(d.hdr.Dataspace().Dims)
}

// NumElements returns the number of elements in the dataset.
func (d *Dataset) NumElements() uint64 {
	return d.hdr.Dataspace().NumElements()
}

// Datatype returns the element datatype.
func (d *Dataset) Datatype() Datatype { return datatypeOf(d.hdr.Datatype()) }

// GoType returns the Go type of one element.
func (d *Dataset) GoType() (reflect.Type, error) { return dtype.GoType(d.hdr.Datatype()) }

// Filters returns the names of the dataset's filters in application order.
func (d *Dataset) Filters() []string {
	fp := d.hdr.FilterPipeline()
	if fp == nil {
		return nil
	}
	names := make([]string, len(fp.Filters))
	for i, info := range fp.Filters {
		names[i] = filter.Name(info.ID)
	}
	return names
}

// Attributes returns the dataset's attributes decoded to Go values.
func (d *Dataset) Attributes() (map[string]any, error) {
	attrs := d.hdr.Attributes()
	out := make(map[string]any, len(attrs))
	for _, a := range attrs {
		v, err := dtype.DecodeValue(a.Datatype, a.Dataspace, a.Data)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", a.Name, err)
		}
		out[a.Name] = v
	}
	return out, nil
}

// ReadRaw returns the dataset's elements in row-major order, in the
// encoding of the file. Missing chunks read as the fill value.
func (d *Dataset) ReadRaw() ([]byte, error) {
	dt := d.hdr.Datatype()
	elemSize := int(dt.Size)
	p, err := filter.NewPipeline(d.hdr.FilterPipeline(), elemSize)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", d.name, err)
	}
	var fill []byte
	if fv := d.hdr.FillValue(); fv != nil {
		fill = fv.Value
	}
	data, err := layout.Read(d.file.reader, d.hdr.DataLayout(), d.Shape(), elemSize, p, fill)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", d.name, err)
	}
	return data, nil
}

// ReadDataset reads the dataset called name into a flat slice in row-major
// order, together with its shape.
func ReadDataset[T Element](f *File, name string) ([]T, []uint64, error) {
	d, err := f.Dataset(name)
	if err != nil {
		return nil, nil, err
	}
	dt := d.hdr.Datatype()
	if !dtype.Compatible[T](dt) {
		var zero T
		return nil, nil, fmt.Errorf("dataset %s holds %s, not %T", name, datatypeOf(dt), zero)
	}
	raw, err := d.ReadRaw()
	if err != nil {
		return nil, nil, err
	}
	vals, err := dtype.Decode[T](dt, raw)
	if err != nil {
		return nil, nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	return vals, d.Shape(), nil
}

// DatasetInfo summarizes a dataset's metadata.
type DatasetInfo struct {
	Name        string         `json:"name" yaml:"name"`
	Address     uint64         `json:"address" yaml:"address"`
	Shape       []uint64       `json:"shape" yaml:"shape,flow"`
	Datatype    Datatype       `json:"datatype" yaml:"datatype"`
	Layout      string         `json:"layout" yaml:"layout"`
	ChunkShape  []uint64       `json:"chunk_shape,omitempty" yaml:"chunk_shape,omitempty,flow"`
	ChunkIndex  string         `json:"chunk_index,omitempty" yaml:"chunk_index,omitempty"`
	Chunks      int            `json:"chunks" yaml:"chunks"`
	StoredBytes uint64         `json:"stored_bytes" yaml:"stored_bytes"`
	Filters     []string       `json:"filters,omitempty" yaml:"filters,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Inspect describes the dataset called name without reading its chunks.
// The chunk index is read and verified.
func (f *File) Inspect(name string) (*DatasetInfo, error) {
	d, err := f.Dataset(name)
	if err != nil {
		return nil, err
	}
	attrs, err := d.Attributes()
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	lay := d.hdr.DataLayout()
	info := &DatasetInfo{
		Name:       name,
		Address:    d.addr,
		Shape:      d.Shape(),
		Datatype:   d.Datatype(),
		Layout:     lay.Class.String(),
		Filters:    d.Filters(),
		Attributes: attrs,
	}
	if len(attrs) == 0 {
		info.Attributes = nil
	}
	if lay.Class != message.LayoutChunked {
		return info, nil
	}
	info.ChunkShape = slices.Clone(lay.ChunkDims)
	info.ChunkIndex = lay.IndexType.String()
	chunks, err := layout.Index(f.reader, lay, info.Shape, len(info.Filters) > 0)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	info.Chunks = len(chunks)
	for _, c := range chunks {
		info.StoredBytes += c.Size
	}
	return info, nil
}
