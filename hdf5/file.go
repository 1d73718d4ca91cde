package hdf5

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/robert-malhotra/go-h5stream/internal/alloc"
	binpkg "github.com/robert-malhotra/go-h5stream/internal/binary"
	"github.com/robert-malhotra/go-h5stream/internal/message"
	"github.com/robert-malhotra/go-h5stream/internal/metrics"
	"github.com/robert-malhotra/go-h5stream/internal/object"
	"github.com/robert-malhotra/go-h5stream/internal/superblock"
)

type pendingEntry struct {
	name string
	ds   PendingDataset
}

// File is an HDF5 container. A file returned by Create collects datasets
// and writes them when closed; a file returned by Open reads them.
//
// A File is not safe for concurrent use.
type File struct {
	path     string
	file     *os.File
	log      *zap.Logger
	cfg      binpkg.Config
	sb       *superblock.Superblock
	writable bool
	closed   bool
	closeErr error

	// Write side.
	writer  *binpkg.Writer
	alloc   *alloc.Allocator
	metrics *metrics.Write
	pending []pendingEntry

	// Read side.
	reader *binpkg.Reader
	cache  *object.Cache
	links  []*message.Link
}

// Create creates or truncates the file at path for writing. The superblock
// is written immediately with the write access flag set, so a process that
// dies before Close leaves a file readers reject as untrusted.
func Create(path string, opts ...FileOption) (*File, error) {
	o := defaultFileOptions()
	for _, opt := range opts {
		opt(o)
	}
	if err := o.widths.Validate(); err != nil {
		return nil, err
	}
	var m *metrics.Write
	if o.registry != nil {
		var err error
		if m, err = metrics.NewWrite(o.registry); err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
	}

	osf, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	sb := superblock.New(o.widths)
	sb.ConsistencyFlags = superblock.FlagWriteAccess
	f := &File{
		path:     path,
		file:     osf,
		log:      o.logger.With(zap.String("component", "hdf5"), zap.String("path", path)),
		cfg:      sb.Config(),
		sb:       sb,
		writable: true,
		writer:   binpkg.NewWriter(osf, sb.Config()),
		alloc:    alloc.New(0, o.widths.Offsets),
		metrics:  m,
	}
	if _, err := f.alloc.Alloc(uint64(superblock.Size(o.widths)), alloc.KindSuperblock); err != nil {
		osf.Close()
		return nil, err
	}
	if err := f.writeSuperblock(); err != nil {
		osf.Close()
		return nil, fmt.Errorf("writing superblock: %w", err)
	}
	f.log.Debug("file created",
		zap.Int("offset_size", o.widths.Offsets),
		zap.Int("length_size", o.widths.Lengths))
	return f, nil
}

// WithFile creates the file at path, calls fn and closes the file however
// fn returns. Datasets registered by fn are written on the way out.
func WithFile(path string, fn func(*File) error, opts ...FileOption) (err error) {
	f, err := Create(path, opts...)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return fn(f)
}

// Open opens an existing file for reading.
func Open(path string, opts ...FileOption) (*File, error) {
	o := defaultFileOptions()
	for _, opt := range opts {
		opt(o)
	}
	osf, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	f, err := open(osf, path, o)
	if err != nil {
		osf.Close()
		return nil, err
	}
	return f, nil
}

func open(osf *os.File, path string, o *fileOptions) (*File, error) {
	sb, err := superblock.Read(osf)
	if err != nil {
		return nil, fmt.Errorf("reading superblock: %w", err)
	}
	cache, err := object.NewCache(o.cacheSize)
	if err != nil {
		return nil, err
	}
	// Addresses are relative to the base address.
	section := io.NewSectionReader(osf, int64(sb.BaseAddress), math.MaxInt64-int64(sb.BaseAddress))
	f := &File{
		path:   path,
		file:   osf,
		log:    o.logger.With(zap.String("component", "hdf5"), zap.String("path", path)),
		cfg:    sb.Config(),
		sb:     sb,
		reader: binpkg.NewReader(section, sb.Config()),
		cache:  cache,
	}
	if !sb.Trusted() {
		f.log.Warn("file was not closed cleanly, contents may be incomplete")
	}
	if f.cfg.IsUndefinedOffset(sb.RootGroupAddress) {
		return f, nil
	}
	root, err := cache.Read(f.reader, sb.RootGroupAddress)
	if err != nil {
		return nil, fmt.Errorf("reading root group: %w", err)
	}
	if !root.IsGroup() {
		return nil, fmt.Errorf("root object at %d is not a group", sb.RootGroupAddress)
	}
	f.links = root.Links()
	return f, nil
}

// Path returns the file path.
func (f *File) Path() string { return f.path }

// Widths returns the offset and length widths of the file.
func (f *File) Widths() binpkg.Widths { return f.cfg.Widths }

// Trusted reports whether the file was closed cleanly by its writer. It
// is always false for a file still being written.
func (f *File) Trusted() bool { return f.sb.Trusted() }

// PutDataset registers ds to be written under name when the file closes.
func (f *File) PutDataset(name string, ds PendingDataset) error {
	switch {
	case f.closed:
		return ErrClosed
	case !f.writable:
		return ErrReadOnly
	}
	if err := validName(name); err != nil {
		return err
	}
	if slices.ContainsFunc(f.pending, func(p pendingEntry) bool { return p.name == name }) {
		return fmt.Errorf("%w: %q", ErrExists, name)
	}
	if err := ds.attach(f, name); err != nil {
		return err
	}
	f.pending = append(f.pending, pendingEntry{name: name, ds: ds})
	f.log.Debug("dataset registered", zap.String("dataset", name), zap.Stringer("state", ds.State()))
	return nil
}

func validName(name string) error {
	switch {
	case name == "", name == ".":
		return fmt.Errorf("invalid dataset name %q", name)
	case strings.Contains(name, "/"):
		return fmt.Errorf("invalid dataset name %q: only the root group is supported", name)
	case len(name) > 0xFFFF:
		return fmt.Errorf("dataset name of %d bytes is too long", len(name))
	}
	return nil
}

// DatasetNames returns the names of the datasets in the root group. For a
// file being written it returns the registered names.
func (f *File) DatasetNames() []string {
	if f.writable {
		names := make([]string, len(f.pending))
		for i, p := range f.pending {
			names[i] = p.name
		}
		return names
	}
	names := make([]string, 0, len(f.links))
	for _, l := range f.links {
		names = append(names, l.Name)
	}
	return names
}

// Close writes every registered dataset in registration order, then the
// root group and the superblock. Datasets are validated independently: a
// failing dataset is left out of the root group but does not stop the
// others. Close returns the first error; later ones are logged. When any
// dataset fails the superblock keeps the write access flag, marking the
// file untrusted. Chunks already written are not removed.
//
// Calling Close again returns the result of the first call.
func (f *File) Close() error {
	if f.closed {
		return f.closeErr
	}
	f.closed = true
	var err error
	if f.writable {
		err = f.finish()
	}
	if cerr := f.file.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("closing file: %w", cerr)
	}
	f.closeErr = err
	return err
}

func (f *File) finish() error {
	var (
		first error
		links []*message.Link
	)
	record := func(err error) {
		if first == nil {
			first = err
			return
		}
		f.log.Warn("additional error during close", zap.Error(err))
	}

	for _, p := range f.pending {
		addr, err := p.ds.commit(f)
		if err != nil {
			f.log.Warn("dataset not written", zap.String("dataset", p.name), zap.Error(err))
			record(err)
			continue
		}
		links = append(links, message.NewHardLink(p.name, addr))
	}

	root, err := f.writeHeader(object.GroupMessages(links...), object.MinGroupChunkSize)
	if err != nil {
		record(fmt.Errorf("writing root group: %w", err))
		return first
	}
	if err := f.alloc.Validate(); err != nil {
		record(err)
	}
	f.sb.RootGroupAddress = root
	f.sb.EOFAddress = f.alloc.EOF()
	if first == nil {
		f.sb.ConsistencyFlags &^= superblock.FlagWriteAccess
	}
	if err := f.writeSuperblock(); err != nil {
		record(fmt.Errorf("writing superblock: %w", err))
	}
	if err := f.file.Sync(); err != nil {
		record(fmt.Errorf("syncing file: %w", err))
	}

	usage := f.alloc.Usage()
	f.log.Info("file closed",
		zap.Int("datasets", len(links)),
		zap.Int("failed", len(f.pending)-len(links)),
		zap.Uint64("eof", f.sb.EOFAddress),
		zap.Uint64("chunk_bytes", usage[alloc.KindChunk]),
		zap.Bool("trusted", f.sb.Trusted()))
	return first
}

func (f *File) writeSuperblock() error {
	_, err := f.sb.Write(f.writer.At(0))
	return err
}
