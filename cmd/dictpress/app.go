package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dshills/dictpress/internal/autocomplete"
	"github.com/dshills/dictpress/internal/cache"
	"github.com/dshills/dictpress/internal/config"
	"github.com/dshills/dictpress/internal/indexer"
	"github.com/dshills/dictpress/internal/searcher"
	"github.com/dshills/dictpress/internal/storage"
	"github.com/dshills/dictpress/internal/tokenizer"
	"github.com/dshills/dictpress/pkg/types"
)

// app holds the components shared by the commands
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	langs      types.LangMap
	tokenizers *tokenizer.Registry
	store      *storage.SQLiteStorage
	cache      *cache.Cache
	suggest    *autocomplete.Index
	searcher   *searcher.Searcher
	indexer    *indexer.Indexer
}

type appOptions struct {
	// withCache opens the result cache
	withCache bool
	// withSuggestions loads the suggestion index from the store
	withSuggestions bool
}

// newApp loads the configuration and wires the components. logOut receives
// the logs.
func newApp(ctx context.Context, opts *rootOptions, logOut io.Writer, ao appOptions) (_ *app, err error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := cfg.Log.Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	logger, err := newLogger(logOut, level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.tokenizers, err = tokenizer.New(
		tokenizer.WithLogger(logger),
		tokenizer.WithScriptDir(cfg.Tokenizers.ScriptDir),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizers: %w", err)
	}
	langs, bound := a.tokenizers.Bind(cfg.Languages())
	a.langs = langs

	a.store, err = storage.NewSQLiteStorage(cfg.DB.Path,
		storage.WithMaxConns(cfg.DB.MaxConns),
		storage.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a.suggest = autocomplete.New(logger)
	a.indexer = indexer.New(a.store, langs, bound,
		indexer.WithAutocomplete(a.suggest),
		indexer.WithLogger(logger))

	searcherOpts := []searcher.Option{
		searcher.WithAutocomplete(a.suggest),
		searcher.WithLogger(logger),
		searcher.WithConfig(searcher.Config{
			DefaultPerPage:  cfg.App.DefaultPerPage,
			MaxPerPage:      cfg.App.MaxPerPage,
			NumSuggestions:  cfg.App.NumSuggestions,
			MaxRelations:    cfg.App.MaxRelations,
			MaxContentItems: cfg.App.MaxContentItems,
			SingleFlight:    cfg.App.SingleFlight,
			QueryMemoSize:   cfg.App.QueryMemoSize,
		}),
	}
	if ao.withCache && cfg.Cache.Enabled {
		a.cache, err = cache.Open(cache.Config{
			Mode:           cfg.Cache.Mode,
			TTL:            cfg.Cache.TTLDuration,
			MaxMemoryBytes: cfg.Cache.MaxMemoryBytes,
			MaxDiskBytes:   cfg.Cache.MaxDiskBytes,
			Dir:            cfg.Cache.Dir,
		}, cache.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to open cache: %w", err)
		}
		searcherOpts = append(searcherOpts, searcher.WithCache(a.cache))
	}

	a.searcher, err = searcher.NewSearcher(a.store, langs, bound, searcherOpts...)
	if err != nil {
		return nil, err
	}

	if ao.withSuggestions && cfg.App.NumSuggestions > 0 {
		if err := a.indexer.RebuildSuggestions(ctx); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Close releases the cache, the store and the tokenizers
func (a *app) Close() error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.tokenizers != nil {
		a.tokenizers.Close()
	}
	return errors.Join(errs...)
}
