package cache

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
)

// Cache modes
const (
	ModeMemory = "memory"
	ModeHybrid = "hybrid"
)

// prefixLen is the size of the creation timestamp stored before each payload
const prefixLen = 8

// Backend stores opaque values. Eviction is the backend's business and is
// never relied upon for correctness.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// Config selects and sizes a backend
type Config struct {
	Mode           string
	TTL            time.Duration
	MaxMemoryBytes int64
	MaxDiskBytes   int64
	Dir            string
}

// Cache layers a time-to-live over a Backend. Each stored value is the
// payload prefixed with its creation time as 8 little-endian bytes of Unix
// seconds. Every backend failure is logged and treated as a miss: the cache
// only ever costs a recomputation, never a request.
type Cache struct {
	backend Backend
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Cache
type Option func(*Cache)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithLogger sets the logger for absorbed backend errors
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New wraps backend with a ttl. A ttl <= 0 disables expiry.
func New(backend Backend, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		backend: backend,
		ttl:     ttl,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open creates the backend described by cfg
func Open(cfg Config, opts ...Option) (*Cache, error) {
	c := New(nil, cfg.TTL, opts...)

	var (
		backend Backend
		err     error
	)
	switch cfg.Mode {
	case ModeMemory, "":
		backend, err = NewMemory(cfg.MaxMemoryBytes)
	case ModeHybrid:
		backend, err = NewHybrid(HybridConfig{
			Dir:            cfg.Dir,
			MaxMemoryBytes: cfg.MaxMemoryBytes,
			MaxDiskBytes:   cfg.MaxDiskBytes,
			TTL:            cfg.TTL,
		}, c.logger)
	default:
		return nil, fmt.Errorf("unknown cache mode %q", cfg.Mode)
	}
	if err != nil {
		return nil, err
	}
	c.backend = backend

	c.logger.Info("cache ready",
		"mode", cfg.Mode,
		"ttl", cfg.TTL,
		"memory", humanize.IBytes(uint64(cfg.MaxMemoryBytes)),
		"disk", humanize.IBytes(uint64(cfg.MaxDiskBytes)),
		"dir", cfg.Dir)
	return c, nil
}

// Get returns the payload stored under key if it has not expired
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if len(raw) < prefixLen {
		c.logger.Debug("cache value too short, ignoring", "key", key, "len", len(raw))
		return nil, false
	}

	if c.ttl > 0 {
		created := binary.LittleEndian.Uint64(raw[:prefixLen])
		now := uint64(c.now().Unix())
		var age uint64
		if now > created {
			age = now - created
		}
		if age > uint64(c.ttl/time.Second) {
			return nil, false
		}
	}
	return raw[prefixLen:], true
}

// Put stores payload under key stamped with the current time
func (c *Cache) Put(ctx context.Context, key string, payload []byte) {
	buf := make([]byte, prefixLen+len(payload))
	binary.LittleEndian.PutUint64(buf, uint64(c.now().Unix()))
	copy(buf[prefixLen:], payload)

	if err := c.backend.Put(ctx, key, buf); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// TTL returns the configured time-to-live
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Close closes the backend
func (c *Cache) Close() error {
	if c.backend == nil {
		return nil
	}
	return c.backend.Close()
}
