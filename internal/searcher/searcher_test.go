package searcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/dictpress/internal/autocomplete"
	"github.com/dshills/dictpress/internal/cache"
	"github.com/dshills/dictpress/internal/storage"
	"github.com/dshills/dictpress/internal/tokenizer"
	"github.com/dshills/dictpress/pkg/types"
)

// countingStore counts full-text searches and can be made to fail them
type countingStore struct {
	storage.Storage
	searches atomic.Int32
	fail     error
}

func (c *countingStore) Search(ctx context.Context, p storage.SearchParams) ([]types.Entry, int, error) {
	c.searches.Add(1)
	if c.fail != nil {
		return nil, 0, c.fail
	}
	return c.Storage.Search(ctx, p)
}

func (c *countingStore) SuggestWords(ctx context.Context, lang, ftsQuery string, limit int) ([]string, error) {
	if c.fail != nil {
		return nil, c.fail
	}
	return c.Storage.SuggestWords(ctx, lang, ftsQuery, limit)
}

// stubTokenizer returns fixed results
type stubTokenizer struct {
	query string
	err   error
}

func (s stubTokenizer) Tokenize(text, _ string) ([]string, error) {
	return strings.Fields(text), s.err
}

func (s stubTokenizer) ToQuery(string, string) (string, error) {
	return s.query, s.err
}

var testLangs = types.LangMap{
	"english": {ID: "english", Name: "English", Tokenizer: "default:english", Types: map[string]string{"noun": "Noun"}},
	"french":  {ID: "french", Name: "French", Types: map[string]string{"noun": "Nom", "syn": "Synonyme"}},
	"german":  {ID: "german", Name: "German"},
}

type fixture struct {
	store      *countingStore
	tokenizers map[string]tokenizer.Tokenizer
}

func newFixture(t testing.TB) *fixture {
	t.Helper()

	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	english, ok := tokenizer.NewStemming("english")
	require.True(t, ok)

	return &fixture{
		store: &countingStore{Storage: db},
		tokenizers: map[string]tokenizer.Tokenizer{
			"english": english,
			"french":  tokenizer.Simple{},
			"german":  tokenizer.Simple{},
		},
	}
}

func (f *fixture) searcher(t testing.TB, opts ...Option) *Searcher {
	t.Helper()
	s, err := NewSearcher(f.store, testLangs, f.tokenizers, opts...)
	require.NoError(t, err)
	return s
}

func (f *fixture) add(t testing.TB, lang string, content ...string) *types.Entry {
	t.Helper()
	tokens, err := tokenizer.Join(f.tokenizers[lang], content, lang)
	require.NoError(t, err)

	e := &types.Entry{
		Content: content,
		Lang:    lang,
		Tokens:  tokens,
		Initial: strings.ToLower(string([]rune(content[0])[:1])),
	}
	_, err = f.store.InsertEntry(context.Background(), e)
	require.NoError(t, err)
	return e
}

func (f *fixture) relate(t testing.TB, from, to *types.Entry, weight int, relTypes ...string) int64 {
	t.Helper()
	id, err := f.store.InsertRelation(context.Background(), from.ID, to.ID, &types.Relation{
		Types:  relTypes,
		Weight: weight,
	})
	require.NoError(t, err)
	return id
}

func newTestCache(t testing.TB) *cache.Cache {
	t.Helper()
	c, err := cache.Open(cache.Config{Mode: cache.ModeMemory, TTL: time.Hour, MaxMemoryBytes: 8 << 20})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSearch_EnglishToFrench(t *testing.T) {
	f := newFixture(t)
	book := f.add(t, "english", "book")
	livre := f.add(t, "french", "livre")
	f.relate(t, book, livre, 0, "noun")
	f.add(t, "english", "cat")

	s := f.searcher(t)
	res, err := s.Search(context.Background(), types.SearchQuery{
		Query:    "Books!",
		FromLang: "english",
		ToLang:   "french",
	}, true)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, DefaultConfig().DefaultPerPage, res.PerPage)
	assert.Equal(t, 1, res.TotalPages)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, book.ID, res.Entries[0].ID)
	require.Len(t, res.Entries[0].Relations, 1)
	assert.Equal(t, types.Strings{"livre"}, res.Entries[0].Relations[0].Entry.Content)
	assert.Equal(t, 1, res.Entries[0].TotalRelations)
}

func TestSearch_ToLangFilter(t *testing.T) {
	f := newFixture(t)
	book := f.add(t, "english", "book")
	f.relate(t, book, f.add(t, "french", "livre"), 0, "noun")
	f.relate(t, book, f.add(t, "german", "Buch"), 1, "noun")

	s := f.searcher(t)
	tests := []struct {
		toLang string
		want   int
	}{
		{"french", 1},
		{"german", 1},
		{AllLangs, 2},
		{"", 2},
	}
	for _, tt := range tests {
		t.Run("to "+tt.toLang, func(t *testing.T) {
			res, err := s.Search(context.Background(), types.SearchQuery{
				Query: "book", FromLang: "english", ToLang: tt.toLang,
			}, true)
			require.NoError(t, err)
			require.Len(t, res.Entries, 1)
			assert.Len(t, res.Entries[0].Relations, tt.want)
		})
	}
}

func TestSearch_Validation(t *testing.T) {
	f := newFixture(t)
	s := f.searcher(t)

	tests := []struct {
		name  string
		query types.SearchQuery
	}{
		{"empty query", types.SearchQuery{FromLang: "english"}},
		{"punctuation only", types.SearchQuery{Query: "?!.", FromLang: "english"}},
		{"unknown from", types.SearchQuery{Query: "book", FromLang: "klingon"}},
		{"unknown to", types.SearchQuery{Query: "book", FromLang: "english", ToLang: "klingon"}},
		{"unknown status", types.SearchQuery{Query: "book", FromLang: "english", Status: "deleted"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Search(context.Background(), tt.query, false)
			assert.ErrorIs(t, err, types.ErrValidation)
		})
	}
	assert.Zero(t, f.store.searches.Load(), "validation happens before the store")
}

func TestSearch_EmptyTranslation(t *testing.T) {
	f := newFixture(t)
	f.tokenizers["english"] = stubTokenizer{query: "  "}
	s := f.searcher(t)

	_, err := s.Search(context.Background(), types.SearchQuery{Query: "the", FromLang: "english"}, false)
	assert.ErrorIs(t, err, types.ErrValidation)
	assert.Zero(t, f.store.searches.Load())
}

func TestSearch_TokenizerError(t *testing.T) {
	f := newFixture(t)
	f.tokenizers["english"] = stubTokenizer{err: errors.New("script exploded")}
	s := f.searcher(t)

	_, err := s.Search(context.Background(), types.SearchQuery{Query: "book", FromLang: "english"}, false)
	assert.ErrorIs(t, err, types.ErrTokenizer)
}

func TestSearch_BackendError(t *testing.T) {
	f := newFixture(t)
	f.store.fail = errors.New("disk I/O error")
	s := f.searcher(t)

	_, err := s.Search(context.Background(), types.SearchQuery{Query: "book", FromLang: "english"}, false)
	assert.ErrorIs(t, err, types.ErrBackend)
	assert.NotErrorIs(t, err, types.ErrValidation)
}

func TestSearch_FanOutLimit(t *testing.T) {
	f := newFixture(t)
	root := f.add(t, "english", "big")
	for i := 0; i < 10; i++ {
		// Insert in descending weight so store order alone is not enough
		f.relate(t, root, f.add(t, "french", fmt.Sprintf("grand%d", i)), 10-i, "syn")
	}

	s := f.searcher(t)
	res, err := s.Search(context.Background(), types.SearchQuery{
		Query: "big", FromLang: "english", ToLang: "french", MaxRelations: 3,
	}, true)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)

	e := res.Entries[0]
	assert.Equal(t, 10, e.TotalRelations)
	require.Len(t, e.Relations, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{e.Relations[0].Weight, e.Relations[1].Weight, e.Relations[2].Weight})
}

func TestSearch_ContentTruncation(t *testing.T) {
	f := newFixture(t)
	root := f.add(t, "english", "fast")
	content := []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8"}
	f.relate(t, root, f.add(t, "french", content...), 0, "syn")

	s := f.searcher(t)
	res, err := s.Search(context.Background(), types.SearchQuery{
		Query: "fast", FromLang: "english", MaxContentItems: 5,
	}, true)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	require.Len(t, res.Entries[0].Relations, 1)
	assert.Equal(t, types.Strings{"a1", "a2", "a3", "a4", "a5"}, res.Entries[0].Relations[0].Entry.Content)
}

func TestSearch_ConfiguredLimits(t *testing.T) {
	f := newFixture(t)
	root := f.add(t, "english", "big")
	for i := 0; i < 10; i++ {
		to := f.add(t, "french", fmt.Sprintf("grand%d", i), "a", "b", "c")
		f.relate(t, root, to, i, "noun")
	}

	cfg := DefaultConfig()
	cfg.MaxRelations = 3
	cfg.MaxContentItems = 2
	s := f.searcher(t, WithCache(newTestCache(t)), WithConfig(cfg))

	tests := []struct {
		name         string
		q            types.SearchQuery
		admin        bool
		wantRels     int
		wantContents int
	}{
		{"public uses configured", types.SearchQuery{}, false, 3, 2},
		{"public cannot raise", types.SearchQuery{MaxRelations: 8, MaxContentItems: 4}, false, 3, 2},
		{"public can lower", types.SearchQuery{MaxRelations: 1, MaxContentItems: 1}, false, 1, 1},
		{"admin uses configured", types.SearchQuery{}, true, 3, 2},
		{"admin can raise", types.SearchQuery{MaxRelations: 8, MaxContentItems: 4}, true, 8, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.q
			q.Query = "big"
			q.FromLang = "english"
			res, err := s.Search(context.Background(), q, tt.admin)
			require.NoError(t, err)
			require.Len(t, res.Entries, 1)

			e := res.Entries[0]
			assert.Equal(t, 10, e.TotalRelations)
			require.Len(t, e.Relations, tt.wantRels)
			for _, r := range e.Relations {
				assert.Len(t, r.Entry.Content, tt.wantContents)
			}
		})
	}
}

func TestEffectiveLimit(t *testing.T) {
	tests := []struct {
		name       string
		configured int
		requested  int
		admin      bool
		want       int
	}{
		{"nothing configured", 0, 5, false, 5},
		{"nothing at all", 0, 0, false, 0},
		{"configured only", 3, 0, false, 3},
		{"lower request", 3, 2, false, 2},
		{"higher request", 3, 9, false, 3},
		{"higher admin request", 3, 9, true, 9},
		{"negative request", 3, -1, false, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, effectiveLimit(tt.configured, tt.requested, tt.admin))
		})
	}
}

func TestSearch_Redaction(t *testing.T) {
	f := newFixture(t)
	book := f.add(t, "english", "book")
	f.relate(t, book, f.add(t, "french", "livre"), 0, "noun")
	s := f.searcher(t)
	q := types.SearchQuery{Query: "book", FromLang: "english"}

	public, err := s.Search(context.Background(), q, false)
	require.NoError(t, err)
	require.Len(t, public.Entries, 1)
	e := public.Entries[0]
	assert.Zero(t, e.ID)
	assert.NotEmpty(t, e.GUID)
	require.Len(t, e.Relations, 1)
	assert.Zero(t, e.Relations[0].ID)
	assert.Zero(t, e.Relations[0].Entry.ID)
	assert.NotEmpty(t, e.Relations[0].Entry.GUID)

	admin, err := s.Search(context.Background(), q, true)
	require.NoError(t, err)
	require.Len(t, admin.Entries, 1)
	assert.Equal(t, book.ID, admin.Entries[0].ID)
	assert.NotZero(t, admin.Entries[0].Relations[0].ID)
	assert.NotZero(t, admin.Entries[0].Relations[0].Entry.ID)
}

func TestSearch_Cache(t *testing.T) {
	f := newFixture(t)
	book := f.add(t, "english", "book")
	f.relate(t, book, f.add(t, "french", "livre"), 0, "noun")
	s := f.searcher(t, WithCache(newTestCache(t)))
	ctx := context.Background()

	q := types.SearchQuery{Query: "book", FromLang: "english", ToLang: "french", Types: []string{"noun", "verb"}}
	first, err := s.Search(ctx, q, false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.store.searches.Load())

	// Same request with filters reordered and different casing is a hit
	q2 := q
	q2.Query = "  BOOK "
	q2.Types = []string{"verb", "noun"}
	second, err := s.Search(ctx, q2, false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.store.searches.Load())
	require.Len(t, second.Entries, 1)
	assert.Equal(t, first.Entries[0].GUID, second.Entries[0].GUID)
	assert.Equal(t, first.Entries[0].Relations[0].Entry.Content, second.Entries[0].Relations[0].Entry.Content)
	assert.Zero(t, second.Entries[0].ID, "cached results stay redacted")

	// Admin requests bypass the cache
	_, err = s.Search(ctx, q, true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.store.searches.Load())

	// A different page is a different key
	q3 := q
	q3.Page = 2
	_, err = s.Search(ctx, q3, false)
	require.NoError(t, err)
	assert.Equal(t, int32(3), f.store.searches.Load())
}

func TestSearch_ErrorsNotCached(t *testing.T) {
	f := newFixture(t)
	f.add(t, "english", "book")
	s := f.searcher(t, WithCache(newTestCache(t)))
	q := types.SearchQuery{Query: "book", FromLang: "english"}

	f.store.fail = errors.New("locked")
	_, err := s.Search(context.Background(), q, false)
	require.Error(t, err)

	f.store.fail = nil
	res, err := s.Search(context.Background(), q, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
}

func TestSearch_SingleFlight(t *testing.T) {
	f := newFixture(t)
	f.add(t, "english", "book")
	cfg := DefaultConfig()
	cfg.SingleFlight = true
	s := f.searcher(t, WithCache(newTestCache(t)), WithConfig(cfg))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Search(context.Background(), types.SearchQuery{Query: "book", FromLang: "english"}, false)
			if err == nil && res.Total != 1 {
				err = fmt.Errorf("total = %d", res.Total)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.LessOrEqual(t, f.store.searches.Load(), int32(8))
	assert.GreaterOrEqual(t, f.store.searches.Load(), int32(1))
}

// gatedStore blocks searches until released and records whether the
// search context was done when it ran
type gatedStore struct {
	storage.Storage
	entered  chan struct{}
	release  chan struct{}
	once     sync.Once
	ctxDone  atomic.Bool
	searches atomic.Int32
}

func (g *gatedStore) Search(ctx context.Context, p storage.SearchParams) ([]types.Entry, int, error) {
	g.searches.Add(1)
	g.once.Do(func() { close(g.entered) })
	<-g.release
	if ctx.Err() != nil {
		g.ctxDone.Store(true)
		return nil, 0, ctx.Err()
	}
	return g.Storage.Search(ctx, p)
}

func TestSearch_SingleFlightLeaderCancelled(t *testing.T) {
	f := newFixture(t)
	f.add(t, "english", "book")
	gated := &gatedStore{Storage: f.store, entered: make(chan struct{}), release: make(chan struct{})}

	cfg := DefaultConfig()
	cfg.SingleFlight = true
	s, err := NewSearcher(gated, testLangs, f.tokenizers, WithCache(newTestCache(t)), WithConfig(cfg))
	require.NoError(t, err)

	q := types.SearchQuery{Query: "book", FromLang: "english"}
	leaderCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		res *types.SearchResults
		err error
	}
	leader := make(chan result, 1)
	go func() {
		res, err := s.Search(leaderCtx, q, false)
		leader <- result{res, err}
	}()
	<-gated.entered

	follower := make(chan result, 1)
	go func() {
		res, err := s.Search(context.Background(), q, false)
		follower <- result{res, err}
	}()

	cancel()
	close(gated.release)

	for _, ch := range []chan result{leader, follower} {
		r := <-ch
		require.NoError(t, r.err)
		assert.Equal(t, 1, r.res.Total)
	}
	assert.False(t, gated.ctxDone.Load())
}

func TestSearch_Pagination(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 7; i++ {
		f.add(t, "english", fmt.Sprintf("book%d", i), "book")
	}
	cfg := DefaultConfig()
	cfg.MaxPerPage = 3
	s := f.searcher(t, WithConfig(cfg))

	res, err := s.Search(context.Background(), types.SearchQuery{
		Query: "book", FromLang: "english", Page: 3, PerPage: 100,
	}, true)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Total)
	assert.Equal(t, 3, res.PerPage)
	assert.Equal(t, 3, res.TotalPages)
	assert.Len(t, res.Entries, 1)
}

func TestReorder(t *testing.T) {
	f := newFixture(t)
	root := f.add(t, "english", "big")
	a := f.relate(t, root, f.add(t, "french", "grand"), 0, "syn")
	b := f.relate(t, root, f.add(t, "french", "gros"), 1, "syn")
	c := f.relate(t, root, f.add(t, "french", "vaste"), 2, "syn")
	s := f.searcher(t)
	ctx := context.Background()

	require.NoError(t, s.Reorder(ctx, []int64{c, a, b}))

	res, err := s.Search(ctx, types.SearchQuery{Query: "big", FromLang: "english"}, true)
	require.NoError(t, err)
	require.Len(t, res.Entries[0].Relations, 3)
	got := []int64{}
	for _, r := range res.Entries[0].Relations {
		got = append(got, r.ID)
	}
	assert.Equal(t, []int64{c, a, b}, got)

	assert.ErrorIs(t, s.Reorder(ctx, nil), types.ErrValidation)
}

func TestSuggestions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, w := range []string{"book", "booking", "bookshelf", "boot"} {
		f.add(t, "english", w)
	}

	idx := autocomplete.New(nil)
	// The trie lags the store: bookshelf and boot are missing
	idx.Build("english", []string{"book", "booking", "Book-Keeping"})

	t.Run("trie then store", func(t *testing.T) {
		s := f.searcher(t, WithAutocomplete(idx))
		out, err := s.Suggestions(ctx, "english", "boo")
		require.NoError(t, err)

		words := make([]string, len(out))
		for i, sg := range out {
			words[i] = sg.Content[0]
		}
		assert.Equal(t, []string{"book", "book keeping", "booking"}, words[:3], "trie results come first")
		assert.ElementsMatch(t, []string{"book", "book keeping", "booking", "bookshelf", "boot"}, words)
	})

	t.Run("limit", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.NumSuggestions = 2
		s := f.searcher(t, WithAutocomplete(idx), WithConfig(cfg))
		out, err := s.Suggestions(ctx, "english", "boo")
		require.NoError(t, err)
		assert.Len(t, out, 2)
	})

	t.Run("store only", func(t *testing.T) {
		s := f.searcher(t)
		out, err := s.Suggestions(ctx, "english", "boo")
		require.NoError(t, err)
		assert.Len(t, out, 4)
	})

	t.Run("store failure is absorbed", func(t *testing.T) {
		s := f.searcher(t, WithAutocomplete(idx))
		f.store.fail = errors.New("busy")
		defer func() { f.store.fail = nil }()

		out, err := s.Suggestions(ctx, "english", "boo")
		require.NoError(t, err)
		assert.Len(t, out, 3)
	})

	t.Run("disabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.NumSuggestions = 0
		s := f.searcher(t, WithConfig(cfg))
		out, err := s.Suggestions(ctx, "english", "boo")
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("validation", func(t *testing.T) {
		s := f.searcher(t)
		_, err := s.Suggestions(ctx, "english", " ")
		assert.ErrorIs(t, err, types.ErrValidation)
		_, err = s.Suggestions(ctx, "klingon", "boo")
		assert.ErrorIs(t, err, types.ErrValidation)
	})
}

func TestGlossary(t *testing.T) {
	f := newFixture(t)
	for _, w := range []string{"apple", "apricot", "avocado", "banana"} {
		f.add(t, "english", w)
	}
	s := f.searcher(t, WithCache(newTestCache(t)))
	ctx := context.Background()

	initials, err := s.Initials(ctx, "english")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, initials)

	res, err := s.Glossary(ctx, "english", "a", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.TotalPages)
	require.Len(t, res.Words, 2)

	// Served from cache after the store changes
	f.add(t, "english", "almond")
	cached, err := s.Glossary(ctx, "english", "a", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, cached.Total)

	_, err = s.Glossary(ctx, "klingon", "a", 1, 2)
	assert.ErrorIs(t, err, types.ErrValidation)
	_, err = s.Glossary(ctx, "english", "", 1, 2)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestEntry(t *testing.T) {
	f := newFixture(t)
	book := f.add(t, "english", "book")
	f.relate(t, book, f.add(t, "french", "livre"), 0, "noun")
	s := f.searcher(t)
	ctx := context.Background()

	e, err := s.Entry(ctx, 0, book.GUID, false)
	require.NoError(t, err)
	assert.Zero(t, e.ID)
	assert.Len(t, e.Relations, 1)

	e, err = s.Entry(ctx, book.ID, "", true)
	require.NoError(t, err)
	assert.Equal(t, book.ID, e.ID)

	_, err = s.Entry(ctx, 999, "", true)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = s.Entry(ctx, 0, "", true)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestToQuery_Memo(t *testing.T) {
	f := newFixture(t)
	s := f.searcher(t)

	q, err := s.ToQuery("english", "Running books")
	require.NoError(t, err)
	assert.Equal(t, `"run" "book"`, q)

	// Unknown languages use the simple tokenizer
	q, err = s.ToQuery("klingon", "Qapla")
	require.NoError(t, err)
	assert.Equal(t, `"qapla"`, q)

	assert.Equal(t, 2, s.memo.Len())
}
