package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

const (
	// DefaultMaxDiskBytes bounds the disk tier when no size is configured
	DefaultMaxDiskBytes = 512 << 20
	// DefaultDir is where the disk tier lives when no directory is configured
	DefaultDir = "/tmp/dictpress-cache"

	minMemTableBytes = 16 << 20
	gcInterval       = 5 * time.Minute
	gcDiscardRatio   = 0.5
)

// HybridConfig sizes a Hybrid backend
type HybridConfig struct {
	Dir            string
	MaxMemoryBytes int64
	MaxDiskBytes   int64
	// TTL is also set on disk entries so badger can reclaim them
	TTL time.Duration
}

// Hybrid keeps hot values in a Memory tier and every value in a badger
// store on disk so the cache survives restarts. An unreadable store is
// dropped and recreated instead of failing startup.
type Hybrid struct {
	mem       *Memory
	db        *badger.DB
	cfg       HybridConfig
	logger    *slog.Logger
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// badgerLogger adapts slog.Logger to badger.Logger
type badgerLogger struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (bl *badgerLogger) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLogger) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLogger) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLogger) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// NewHybrid opens the disk tier at cfg.Dir, creating it if needed
func NewHybrid(cfg HybridConfig, logger *slog.Logger) (*Hybrid, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dir == "" {
		cfg.Dir = DefaultDir
	}
	if cfg.MaxMemoryBytes <= 0 {
		cfg.MaxMemoryBytes = DefaultMaxMemoryBytes
	}
	if cfg.MaxDiskBytes <= 0 {
		cfg.MaxDiskBytes = DefaultMaxDiskBytes
	}

	// Half the memory budget goes to the hot tier, the rest to badger
	mem, err := NewMemory(cfg.MaxMemoryBytes / 2)
	if err != nil {
		return nil, err
	}

	db, err := openDisk(cfg, logger)
	if err != nil {
		logger.Warn("cache: disk store unreadable, recreating", "dir", cfg.Dir, "error", err)
		if rmErr := os.RemoveAll(cfg.Dir); rmErr != nil {
			_ = mem.Close()
			return nil, fmt.Errorf("failed to reset cache directory: %w", rmErr)
		}
		db, err = openDisk(cfg, logger)
		if err != nil {
			_ = mem.Close()
			return nil, fmt.Errorf("failed to open disk cache: %w", err)
		}
	}

	h := &Hybrid{
		mem:    mem,
		db:     db,
		cfg:    cfg,
		logger: logger,
		stop:   make(chan struct{}),
	}
	h.wg.Add(1)
	go h.maintain()
	return h, nil
}

func openDisk(cfg HybridConfig, logger *slog.Logger) (*badger.DB, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	memTable := cfg.MaxMemoryBytes / 4
	if memTable < minMemTableBytes {
		memTable = minMemTableBytes
	}

	opts := badger.DefaultOptions(cfg.Dir).
		WithLogger(&badgerLogger{logger: logger}).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTable).
		WithIndexCacheSize(cfg.MaxMemoryBytes / 4).
		WithBlockCacheSize(0)
	opts.Compression = options.None

	return badger.Open(opts)
}

// Get implements Backend. Disk hits are promoted to the memory tier.
func (h *Hybrid) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, _ := h.mem.Get(ctx, key); ok {
		return v, true, nil
	}

	var val []byte
	err := h.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	_ = h.mem.Put(ctx, key, val)
	return val, true, nil
}

// Put implements Backend
func (h *Hybrid) Put(ctx context.Context, key string, value []byte) error {
	_ = h.mem.Put(ctx, key, value)

	return h.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if h.cfg.TTL > 0 {
			e = e.WithTTL(h.cfg.TTL)
		}
		return txn.SetEntry(e)
	})
}

// maintain periodically reclaims value log space and drops the whole disk
// tier once it outgrows its budget.
func (h *Hybrid) maintain() {
	defer h.wg.Done()
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.collect()
		}
	}
}

func (h *Hybrid) collect() {
	for {
		if err := h.db.RunValueLogGC(gcDiscardRatio); err != nil {
			break
		}
	}

	lsm, vlog := h.db.Size()
	if lsm+vlog <= h.cfg.MaxDiskBytes {
		return
	}
	h.logger.Info("cache: disk tier over budget, dropping", "size", lsm+vlog, "max", h.cfg.MaxDiskBytes)
	if err := h.db.DropAll(); err != nil {
		h.logger.Warn("cache: failed to drop disk tier", "error", err)
	}
}

// Close implements Backend
func (h *Hybrid) Close() error {
	var err error
	h.closeOnce.Do(func() {
		close(h.stop)
		h.wg.Wait()
		_ = h.mem.Close()
		err = h.db.Close()
	})
	return err
}
