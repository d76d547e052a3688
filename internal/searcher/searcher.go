package searcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/dshills/dictpress/internal/autocomplete"
	"github.com/dshills/dictpress/internal/cache"
	"github.com/dshills/dictpress/internal/storage"
	"github.com/dshills/dictpress/internal/tokenizer"
	"github.com/dshills/dictpress/pkg/types"
)

// AllLangs as a target language matches relations in every language
const AllLangs = "*"

// Config holds the request limits of a Searcher
type Config struct {
	DefaultPerPage int
	MaxPerPage     int
	// NumSuggestions is the suggestion limit. 0 disables suggestions.
	NumSuggestions int
	// MaxRelations caps relations per type per entry. 0 leaves it to the request.
	MaxRelations int
	// MaxContentItems truncates related entries' content. 0 leaves it to the request.
	MaxContentItems int
	// SingleFlight coalesces identical concurrent cache misses
	SingleFlight bool
	// QueryMemoSize is the number of translated queries remembered
	QueryMemoSize int
}

// DefaultConfig returns the limits used when no Config is given
func DefaultConfig() Config {
	return Config{
		DefaultPerPage: 10,
		MaxPerPage:     50,
		NumSuggestions: 10,
		QueryMemoSize:  4096,
	}
}

type memoKey struct {
	lang, text string
}

// Searcher runs searches, suggestions and glossary listings over a store.
// It is safe for concurrent use.
type Searcher struct {
	store      storage.Storage
	langs      types.LangMap
	tokenizers map[string]tokenizer.Tokenizer
	cache      *cache.Cache
	suggest    *autocomplete.Index
	memo       *lru.Cache[memoKey, string]
	group      singleflight.Group
	cfg        Config
	logger     *slog.Logger
}

// Option configures a Searcher
type Option func(*Searcher)

// WithCache enables result caching for public requests
func WithCache(c *cache.Cache) Option {
	return func(s *Searcher) {
		s.cache = c
	}
}

// WithAutocomplete sets the in-memory suggestion index
func WithAutocomplete(idx *autocomplete.Index) Option {
	return func(s *Searcher) {
		s.suggest = idx
	}
}

// WithConfig sets request limits
func WithConfig(cfg Config) Option {
	return func(s *Searcher) {
		s.cfg = cfg
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSearcher creates a Searcher. tokenizers maps each language id in langs
// to its bound tokenizer; languages without one use the simple tokenizer.
func NewSearcher(store storage.Storage, langs types.LangMap, tokenizers map[string]tokenizer.Tokenizer, opts ...Option) (*Searcher, error) {
	s := &Searcher{
		store:      store,
		langs:      langs,
		tokenizers: tokenizers,
		cfg:        DefaultConfig(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	size := s.cfg.QueryMemoSize
	if size <= 0 {
		size = DefaultConfig().QueryMemoSize
	}
	memo, err := lru.New[memoKey, string](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create query memo: %w", err)
	}
	s.memo = memo

	return s, nil
}

// Langs returns the configured languages
func (s *Searcher) Langs() types.LangMap {
	return s.langs
}

func (s *Searcher) tokenizerFor(lang string) tokenizer.Tokenizer {
	if tk, ok := s.tokenizers[lang]; ok && tk != nil {
		return tk
	}
	return tokenizer.Simple{}
}

// Search runs the search pipeline. Public requests (admin false) are served
// from and stored to the cache and have internal ids removed.
func (s *Searcher) Search(ctx context.Context, q types.SearchQuery, admin bool) (*types.SearchResults, error) {
	q, err := s.prepare(q, admin)
	if err != nil {
		return nil, err
	}

	if admin || s.cache == nil {
		return s.search(ctx, q, admin)
	}

	key := cache.SearchKey(q)
	var cached types.SearchResults
	if s.cacheGet(ctx, key, &cached) {
		s.logger.Debug("cache hit", "key", key)
		return &cached, nil
	}

	if !s.cfg.SingleFlight {
		res, err := s.search(ctx, q, false)
		if err != nil {
			return nil, err
		}
		s.cachePut(ctx, key, res)
		return res, nil
	}

	// Shared results are read-only for all callers. Followers wait on the
	// shared call, so it ignores the leader's cancellation.
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		sctx := context.WithoutCancel(ctx)
		res, err := s.search(sctx, q, false)
		if err != nil {
			return nil, err
		}
		s.cachePut(sctx, key, res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.SearchResults), nil
}

// prepare validates q and fills in the defaults that are part of its cache key
func (s *Searcher) prepare(q types.SearchQuery, admin bool) (types.SearchQuery, error) {
	q.Query = CleanQuery(q.Query)
	if q.Query == "" {
		return q, types.Validationf("query is required")
	}
	if _, ok := s.langs[q.FromLang]; !ok {
		return q, types.Validationf("unknown from_lang %q", q.FromLang)
	}

	switch q.ToLang {
	case AllLangs:
		q.ToLang = ""
	case "":
	default:
		if _, ok := s.langs[q.ToLang]; !ok {
			return q, types.Validationf("unknown to_lang %q", q.ToLang)
		}
	}

	if q.Status == "" {
		q.Status = types.StatusEnabled
	} else if !types.ValidStatus(q.Status) {
		return q, types.Validationf("unknown status %q", q.Status)
	}

	q.Page, q.PerPage, q.Offset = Paginate(q.Page, q.PerPage, s.cfg.MaxPerPage, s.cfg.DefaultPerPage)
	q.Limit = q.PerPage

	q.MaxRelations = effectiveLimit(s.cfg.MaxRelations, q.MaxRelations, admin)
	q.MaxContentItems = effectiveLimit(s.cfg.MaxContentItems, q.MaxContentItems, admin)
	return q, nil
}

// effectiveLimit resolves a configured limit against a requested one. A
// request may lower the configured limit; only admin requests may raise it.
// 0 means unlimited on both sides.
func effectiveLimit(configured, requested int, admin bool) int {
	if requested < 0 {
		requested = 0
	}
	switch {
	case configured <= 0:
		return requested
	case admin && requested > 0:
		return requested
	case requested > 0 && requested < configured:
		return requested
	}
	return configured
}

func (s *Searcher) search(ctx context.Context, q types.SearchQuery, admin bool) (*types.SearchResults, error) {
	ftsQuery, err := s.ToQuery(q.FromLang, q.Query)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(ftsQuery) == "" {
		return nil, types.Validationf("invalid search query")
	}

	entries, total, err := s.store.Search(ctx, storage.SearchParams{
		Lang:     q.FromLang,
		Query:    q.Query,
		FTSQuery: ftsQuery,
		Status:   q.Status,
		Offset:   q.Offset,
		Limit:    q.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrBackend, err)
	}

	if err := s.LoadRelations(ctx, entries, types.RelationsQuery{
		ToLang:          q.ToLang,
		Types:           q.Types,
		Tags:            q.Tags,
		Status:          q.Status,
		MaxPerType:      q.MaxRelations,
		MaxContentItems: q.MaxContentItems,
	}); err != nil {
		return nil, err
	}

	if !admin {
		redact(entries)
	}

	if entries == nil {
		entries = []types.Entry{}
	}
	return &types.SearchResults{
		Entries:    entries,
		Page:       q.Page,
		PerPage:    q.PerPage,
		Total:      total,
		TotalPages: TotalPages(total, q.PerPage),
	}, nil
}

// ToQuery translates text into an FTS query with the language's tokenizer.
// Successful translations are memoized.
func (s *Searcher) ToQuery(lang, text string) (string, error) {
	key := memoKey{lang: lang, text: text}
	if q, ok := s.memo.Get(key); ok {
		return q, nil
	}

	q, err := s.tokenizerFor(lang).ToQuery(text, lang)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrTokenizer, err)
	}
	s.memo.Add(key, q)
	return q, nil
}

// redact clears the internal ids of entries, relations and related entries
func redact(entries []types.Entry) {
	for i := range entries {
		entries[i].ID = 0
		for j := range entries[i].Relations {
			entries[i].Relations[j].ID = 0
			entries[i].Relations[j].Entry.ID = 0
		}
	}
}

// Reorder rewrites relation weights to follow the order of ids
func (s *Searcher) Reorder(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return types.Validationf("relation ids are required")
	}
	if err := s.store.ReorderRelations(ctx, ids); err != nil {
		return fmt.Errorf("%w: %w", types.ErrBackend, err)
	}
	return nil
}
