package filter

import (
	"fmt"

	"github.com/robert-malhotra/go-h5stream/internal/checksum"
	"github.com/robert-malhotra/go-h5stream/internal/message"
)

// Pipeline runs a dataset's filters over chunks.
type Pipeline struct {
	infos   []message.FilterInfo
	filters []Filter
}

// NewPipeline builds the pipeline of fp. A nil or empty message gives a
// pipeline that passes chunks through.
func NewPipeline(fp *message.FilterPipeline, elemSize int) (*Pipeline, error) {
	p := &Pipeline{}
	if fp == nil {
		return p, nil
	}
	for i, info := range fp.Filters {
		f, err := New(info, elemSize)
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		p.infos = append(p.infos, info)
		p.filters = append(p.filters, f)
	}
	return p, nil
}

// Message returns the filter pipeline message describing p, or nil when
// p has no filters.
func (p *Pipeline) Message() *message.FilterPipeline {
	if p.Empty() {
		return nil
	}
	return &message.FilterPipeline{Version: 2, Filters: append([]message.FilterInfo(nil), p.infos...)}
}

// Empty reports whether p has no filters.
func (p *Pipeline) Empty() bool { return len(p.filters) == 0 }

// Len returns the number of filters.
func (p *Pipeline) Len() int { return len(p.filters) }

// Encode runs every filter in order. An optional filter that fails is
// skipped and its bit set in the returned mask.
func (p *Pipeline) Encode(data []byte) ([]byte, uint32, error) {
	var mask uint32
	for i, f := range p.filters {
		out, err := f.Encode(data)
		if err != nil {
			if p.infos[i].IsOptional() {
				mask |= 1 << uint(i)
				continue
			}
			return nil, 0, fmt.Errorf("%s encode: %w", Name(f.ID()), err)
		}
		data = out
	}
	return data, mask, nil
}

// Decode runs the filters in reverse, skipping those whose bit is set in
// mask. A nonzero size is the expected decoded length; stages that declare
// their own output size are held to it.
func (p *Pipeline) Decode(data []byte, mask uint32, size uint64) ([]byte, error) {
	for i := len(p.filters) - 1; i >= 0; i-- {
		if mask&(1<<uint(i)) != 0 {
			continue
		}
		var err error
		if bd, ok := p.filters[i].(boundedDecoder); ok {
			data, err = bd.decodeBounded(data, p.stageLimit(i, mask, size))
		} else {
			data, err = p.filters[i].Decode(data)
		}
		if err != nil {
			return nil, fmt.Errorf("%s decode: %w", Name(p.filters[i].ID()), err)
		}
	}
	return data, nil
}

// stageLimit is the largest output stage i may decode to, or zero when an
// earlier applied stage can grow the data by an unknown amount.
func (p *Pipeline) stageLimit(i int, mask uint32, size uint64) uint64 {
	if size == 0 {
		return 0
	}
	limit := size
	for j := range i {
		if mask&(1<<uint(j)) != 0 {
			continue
		}
		switch p.filters[j].ID() {
		case message.FilterShuffle:
		case message.FilterFletcher32:
			limit += checksum.Size
		default:
			return 0
		}
	}
	return limit
}
