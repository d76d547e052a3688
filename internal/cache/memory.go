package cache

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

const (
	// DefaultMaxMemoryBytes bounds the memory tier when no size is configured
	DefaultMaxMemoryBytes = 128 << 20
	// avgValueBytes estimates a cached page size for sizing admission counters
	avgValueBytes = 1 << 10
)

// Memory is a byte-weighted in-memory backend. Each value costs its length
// against the limit and ristretto decides what to evict or refuse.
type Memory struct {
	c *ristretto.Cache[string, []byte]
}

// NewMemory returns a memory backend holding at most maxBytes of values
func NewMemory(maxBytes int64) (*Memory, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxMemoryBytes
	}
	counters := 10 * (maxBytes / avgValueBytes)
	if counters < 1000 {
		counters = 1000
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters:        counters,
		MaxCost:            maxBytes,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return &Memory{c: c}, nil
}

// Get implements Backend
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.c.Get(key)
	return v, ok, nil
}

// Put implements Backend. Writes are applied before Put returns so a
// following Get on the same key observes them.
func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.c.Set(key, value, int64(len(value)))
	m.c.Wait()
	return nil
}

// Close implements Backend
func (m *Memory) Close() error {
	m.c.Close()
	return nil
}
