package object

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/robert-malhotra/go-h5stream/internal/binary"
)

// DefaultCacheSize is the number of headers a file keeps decoded.
const DefaultCacheSize = 256

// Cache keeps recently read headers keyed by address. Failed reads are not
// cached. Cached headers are shared and must not be modified.
type Cache struct {
	headers *lru.Cache[uint64, *Header]
}

// NewCache returns a cache holding up to size headers.
func NewCache(size int) (*Cache, error) {
	headers, err := lru.New[uint64, *Header](size)
	if err != nil {
		return nil, err
	}
	return &Cache{headers: headers}, nil
}

// Read returns the header at addr, reading it through r on a miss.
func (c *Cache) Read(r *binary.Reader, addr uint64) (*Header, error) {
	if h, ok := c.headers.Get(addr); ok {
		return h, nil
	}
	h, err := Read(r, addr)
	if err != nil {
		return nil, err
	}
	c.headers.Add(addr, h)
	return h, nil
}

// Len returns the number of cached headers.
func (c *Cache) Len() int { return c.headers.Len() }
