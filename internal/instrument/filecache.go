package instrument

import (
	"fmt"

	"github.com/gnssro/collocate/internal/ncio"
)

// fileCache keeps a small number of granule files open across the strictly
// sequential per-footprint extraction loop, closing the least recently used
// handle on overflow. It is not safe for concurrent use.
type fileCache struct {
	cap     int
	open    func(path string) (ncio.File, error)
	entries []*cacheEntry // most recently used first
}

type cacheEntry struct {
	path string
	file ncio.File
}

func newFileCache(capacity int, open func(path string) (ncio.File, error)) *fileCache {
	if capacity < 1 {
		capacity = 1
	}
	return &fileCache{cap: capacity, open: open}
}

// acquire returns an open handle for path, opening it if needed. The handle
// stays owned by the cache; callers must not close it.
func (c *fileCache) acquire(path string) (ncio.File, error) {
	for i, e := range c.entries {
		if e.path == path {
			// Move to front.
			copy(c.entries[1:i+1], c.entries[:i])
			c.entries[0] = e
			return e.file, nil
		}
	}

	f, err := c.open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening granule: %w", err)
	}

	if len(c.entries) == c.cap {
		last := c.entries[len(c.entries)-1]
		last.file.Close()
		c.entries = c.entries[:len(c.entries)-1]
	}
	c.entries = append([]*cacheEntry{{path: path, file: f}}, c.entries...)
	return f, nil
}

// Close releases every cached handle.
func (c *fileCache) Close() {
	for _, e := range c.entries {
		e.file.Close()
	}
	c.entries = nil
}
