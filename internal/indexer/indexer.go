package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/panjf2000/ants/v2"

	"github.com/dshills/dictpress/internal/autocomplete"
	"github.com/dshills/dictpress/internal/storage"
	"github.com/dshills/dictpress/internal/tokenizer"
	"github.com/dshills/dictpress/pkg/types"
)

// ErrRebuildInProgress is returned when a suggestion rebuild is already running
var ErrRebuildInProgress = errors.New("suggestion rebuild already in progress")

// Indexer writes entries and relations with consistent search tokens and
// keeps the suggestion index in step with the store
type Indexer struct {
	store      storage.Storage
	langs      types.LangMap
	tokenizers map[string]tokenizer.Tokenizer
	suggest    *autocomplete.Index
	rebuild    IndexLock
	logger     *slog.Logger
}

// Config contains the retokenize settings
type Config struct {
	Workers   int // Number of concurrent workers (default: runtime.NumCPU())
	BatchSize int // Entries per transaction (default: 500)
}

// Statistics describes a retokenize run
type Statistics struct {
	EntriesScanned int
	EntriesUpdated int
	EntriesFailed  int
	Duration       time.Duration
	ErrorMessages  []string
}

// Option configures an Indexer
type Option func(*Indexer)

// WithAutocomplete sets the suggestion index rebuilt by RebuildSuggestions
func WithAutocomplete(idx *autocomplete.Index) Option {
	return func(i *Indexer) {
		i.suggest = idx
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(i *Indexer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// New creates an Indexer over store. tokenizers maps language ids to their
// bound tokenizer.
func New(store storage.Storage, langs types.LangMap, tokenizers map[string]tokenizer.Tokenizer, opts ...Option) *Indexer {
	idx := &Indexer{
		store:      store,
		langs:      langs,
		tokenizers: tokenizers,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

func (idx *Indexer) tokenizerFor(lang string) tokenizer.Tokenizer {
	if tk, ok := idx.tokenizers[lang]; ok && tk != nil {
		return tk
	}
	return tokenizer.Simple{}
}

// prepareEntry validates e and fills in its initial and tokens
func (idx *Indexer) prepareEntry(e *types.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if _, ok := idx.langs[e.Lang]; !ok {
		return types.Validationf("unknown lang %q", e.Lang)
	}

	if e.Initial == "" {
		e.Initial = initial(e.Head())
	}
	if strings.TrimSpace(e.Tokens) == "" {
		tokens, err := tokenizer.Join(idx.tokenizerFor(e.Lang), e.Content, e.Lang)
		if err != nil {
			return err
		}
		e.Tokens = tokens
	}
	return nil
}

func initial(head string) string {
	for _, r := range strings.TrimSpace(head) {
		return string(unicode.ToUpper(r))
	}
	return ""
}

// InsertEntry stores a new entry. Tokens are derived from the content with
// the language's tokenizer unless supplied.
func (idx *Indexer) InsertEntry(ctx context.Context, e *types.Entry) (int64, error) {
	if err := idx.prepareEntry(e); err != nil {
		return 0, err
	}
	id, err := idx.store.InsertEntry(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("failed to insert entry: %w", err)
	}
	return id, nil
}

// UpdateEntry overwrites entry id, deriving tokens as InsertEntry does
func (idx *Indexer) UpdateEntry(ctx context.Context, id int64, e *types.Entry) error {
	if err := idx.prepareEntry(e); err != nil {
		return err
	}
	if err := idx.store.UpdateEntry(ctx, id, e); err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	return nil
}

// checkTypes rejects relation types the target language does not declare
func (idx *Indexer) checkTypes(lang string, relTypes []string) error {
	l, ok := idx.langs[lang]
	if !ok {
		return types.Validationf("unknown lang %q", lang)
	}
	for _, t := range relTypes {
		if !l.HasType(t) {
			return types.Validationf("unknown type %q for lang %q", t, lang)
		}
	}
	return nil
}

// InsertRelation links fromID to toID after checking r's types against the
// target entry's language
func (idx *Indexer) InsertRelation(ctx context.Context, fromID, toID int64, r *types.Relation) (int64, error) {
	if fromID == toID {
		return 0, types.Validationf("an entry cannot relate to itself")
	}
	to, err := idx.store.GetEntry(ctx, toID, "")
	if err != nil {
		return 0, fmt.Errorf("failed to get related entry: %w", err)
	}
	if err := idx.checkTypes(to.Lang, r.Types); err != nil {
		return 0, err
	}

	id, err := idx.store.InsertRelation(ctx, fromID, toID, r)
	if err != nil {
		return 0, fmt.Errorf("failed to insert relation: %w", err)
	}
	return id, nil
}

// UpdateRelation overwrites relation id after checking its types against the
// language of its target entry
func (idx *Indexer) UpdateRelation(ctx context.Context, id, toID int64, r *types.Relation) error {
	to, err := idx.store.GetEntry(ctx, toID, "")
	if err != nil {
		return fmt.Errorf("failed to get related entry: %w", err)
	}
	if err := idx.checkTypes(to.Lang, r.Types); err != nil {
		return err
	}
	if err := idx.store.UpdateRelation(ctx, id, r); err != nil {
		return fmt.Errorf("failed to update relation: %w", err)
	}
	return nil
}

// Submit stores a public submission: a pending entry with relations to
// existing entries or to new pending ones
func (idx *Indexer) Submit(ctx context.Context, e *types.Entry) (int64, error) {
	if err := idx.prepareEntry(e); err != nil {
		return 0, err
	}

	for i := range e.Relations {
		r := &e.Relations[i]
		if r.Entry.ID == 0 {
			if err := idx.prepareEntry(&r.Entry); err != nil {
				return 0, fmt.Errorf("relation %d: %w", i, err)
			}
		} else {
			to, err := idx.store.GetEntry(ctx, r.Entry.ID, "")
			if err != nil {
				return 0, fmt.Errorf("relation %d: %w", i, err)
			}
			r.Entry.Lang = to.Lang
		}
		if err := idx.checkTypes(r.Entry.Lang, r.Types); err != nil {
			return 0, fmt.Errorf("relation %d: %w", i, err)
		}
	}

	id, err := idx.store.InsertSubmission(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("failed to insert submission: %w", err)
	}
	return id, nil
}

// Retokenize recomputes the tokens of every entry of lang. Pages of entries
// are tokenized on a bounded worker pool and each page is committed in its
// own transaction. Entries whose tokens fail to compute are counted and
// skipped.
func (idx *Indexer) Retokenize(ctx context.Context, lang string, config *Config) (*Statistics, error) {
	if _, ok := idx.langs[lang]; !ok {
		return nil, types.Validationf("unknown lang %q", lang)
	}
	if config == nil {
		config = &Config{}
	}
	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	start := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}
	tk := idx.tokenizerFor(lang)

	var (
		scanned, updated, failed atomic.Int32
		wg                       sync.WaitGroup
		mu                       sync.Mutex // Protects stats.ErrorMessages and firstErr
		firstErr                 error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			fail(err)
			break
		}
		batch, err := idx.store.ListEntryTokens(ctx, lang, afterID, batchSize)
		if err != nil {
			fail(fmt.Errorf("failed to list entries: %w", err))
			break
		}
		if len(batch) == 0 {
			break
		}
		afterID = batch[len(batch)-1].ID
		scanned.Add(int32(len(batch)))

		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			n, errs, err := idx.retokenizeBatch(ctx, tk, lang, batch)
			updated.Add(int32(n))
			failed.Add(int32(len(errs)))
			if len(errs) > 0 {
				mu.Lock()
				stats.ErrorMessages = append(stats.ErrorMessages, errs...)
				mu.Unlock()
			}
			if err != nil {
				fail(err)
			}
		}); err != nil {
			wg.Done()
			fail(fmt.Errorf("failed to submit batch: %w", err))
			break
		}

		if len(batch) < batchSize {
			break
		}
	}
	wg.Wait()

	stats.EntriesScanned = int(scanned.Load())
	stats.EntriesUpdated = int(updated.Load())
	stats.EntriesFailed = int(failed.Load())
	stats.Duration = time.Since(start)

	if firstErr != nil {
		return stats, firstErr
	}
	idx.logger.Info("retokenized entries",
		"lang", lang,
		"scanned", stats.EntriesScanned,
		"updated", stats.EntriesUpdated,
		"failed", stats.EntriesFailed,
		"duration", stats.Duration)
	return stats, nil
}

// retokenizeBatch writes the changed tokens of one batch in a transaction.
// It returns the number of updated entries and per-entry tokenizer failures.
func (idx *Indexer) retokenizeBatch(ctx context.Context, tk tokenizer.Tokenizer, lang string, batch []storage.EntryTokens) (int, []string, error) {
	type change struct {
		id     int64
		tokens string
	}
	var (
		changes []change
		errs    []string
	)
	for _, e := range batch {
		tokens, err := tokenizer.Join(tk, e.Content, lang)
		if err != nil {
			errs = append(errs, fmt.Sprintf("entry %d: %v", e.ID, err))
			continue
		}
		if tokens != e.Tokens {
			changes = append(changes, change{id: e.ID, tokens: tokens})
		}
	}
	if len(changes) == 0 {
		return 0, errs, nil
	}

	tx, err := idx.store.BeginTx(ctx)
	if err != nil {
		return 0, errs, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range changes {
		if err := tx.UpdateEntryTokens(ctx, c.id, c.tokens); err != nil {
			return 0, errs, fmt.Errorf("failed to update entry %d: %w", c.id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errs, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(changes), errs, nil
}

// RebuildSuggestions reloads the suggestion index from the store for every
// configured language. A rebuild started while another runs returns
// ErrRebuildInProgress.
func (idx *Indexer) RebuildSuggestions(ctx context.Context) error {
	if idx.suggest == nil {
		return nil
	}
	if !idx.rebuild.TryAcquire() {
		return ErrRebuildInProgress
	}
	defer idx.rebuild.Release()

	langs := make([]string, 0, len(idx.langs))
	for id := range idx.langs {
		langs = append(langs, id)
	}
	if err := idx.suggest.Load(ctx, idx.store, langs); err != nil {
		return fmt.Errorf("failed to rebuild suggestions: %w", err)
	}
	return nil
}
