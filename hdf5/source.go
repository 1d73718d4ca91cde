package hdf5

import (
	"errors"
	"fmt"
	"iter"

	"github.com/robert-malhotra/go-h5stream/internal/dtype"
)

// Element is the set of Go types a dataset can hold.
type Element = dtype.Element

// ErrSourceConsumed is yielded by a single-pass source iterated twice.
var ErrSourceConsumed = errors.New("chunk source already consumed")

// Chunk is one block of rows in row-major order. Dims[0] is the number of
// rows; the remaining dimensions describe one row.
type Chunk[T Element] struct {
	Dims []uint64
	Data []T
}

// Rows returns the number of rows in the chunk.
func (c Chunk[T]) Rows() uint64 {
	if len(c.Dims) == 0 {
		return 0
	}
	return c.Dims[0]
}

func (c Chunk[T]) elements() uint64 {
	if len(c.Dims) == 0 {
		return 0
	}
	n := uint64(1)
	for _, d := range c.Dims {
		n *= d
	}
	return n
}

// ChunkSource produces a dataset's chunks in storage order. A source may
// only support one pass.
type ChunkSource[T Element] interface {
	Chunks() iter.Seq2[Chunk[T], error]
}

type funcSource[I any, T Element] struct {
	coords   []I
	produce  func(I) (Chunk[T], error)
	consumed bool
}

// SourceFunc returns a single-pass source that calls produce once per
// coordinate, in order, only when the chunk is pulled.
func SourceFunc[I any, T Element](coords []I, produce func(I) (Chunk[T], error)) ChunkSource[T] {
	return &funcSource[I, T]{coords: coords, produce: produce}
}

func (s *funcSource[I, T]) Chunks() iter.Seq2[Chunk[T], error] {
	return func(yield func(Chunk[T], error) bool) {
		if s.consumed {
			yield(Chunk[T]{}, ErrSourceConsumed)
			return
		}
		s.consumed = true
		for _, c := range s.coords {
			chunk, err := s.produce(c)
			if err != nil {
				yield(Chunk[T]{}, fmt.Errorf("producing chunk %v: %w", c, err))
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

type sliceSource[T Element] []Chunk[T]

// SliceSource returns a source over chunks already in memory. Unlike
// SourceFunc it can be iterated any number of times.
func SliceSource[T Element](chunks ...Chunk[T]) ChunkSource[T] {
	return sliceSource[T](chunks)
}

func (s sliceSource[T]) Chunks() iter.Seq2[Chunk[T], error] {
	return func(yield func(Chunk[T], error) bool) {
		for _, c := range s {
			if !yield(c, nil) {
				return
			}
		}
	}
}

// Rows builds a two-dimensional chunk from equal-length rows.
func Rows[T Element](rows [][]T) (Chunk[T], error) {
	if len(rows) == 0 {
		return Chunk[T]{Dims: []uint64{0, 0}}, nil
	}
	width := len(rows[0])
	data := make([]T, 0, len(rows)*width)
	for i, r := range rows {
		if len(r) != width {
			return Chunk[T]{}, fmt.Errorf("row %d has %d elements, row 0 has %d", i, len(r), width)
		}
		data = append(data, r...)
	}
	return Chunk[T]{Dims: []uint64{uint64(len(rows)), uint64(width)}, Data: data}, nil
}
