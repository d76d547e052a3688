// Package autocomplete keeps a per-language prefix trie of normalized
// headwords for search suggestions.
package autocomplete

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/armon/go-radix"
	"golang.org/x/sync/errgroup"
)

// WordSource lists every headword of a language
type WordSource interface {
	GetAllWords(ctx context.Context, lang string) ([]string, error)
}

// Index holds one trie per language. Tries are built off to the side and
// swapped in, so queries never see a partially built trie.
type Index struct {
	mu     sync.RWMutex
	tries  map[string]*radix.Tree
	logger *slog.Logger
}

// New returns an empty index
func New(logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		tries:  make(map[string]*radix.Tree),
		logger: logger,
	}
}

// Normalize lowercases s, drops digits, maps '-' to a space and trims.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsDigit(r):
			continue
		case r == '-':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Build replaces the trie of lang with one holding words. It returns the
// number of distinct normalized words indexed.
func (idx *Index) Build(lang string, words []string) int {
	t := radix.New()
	for _, w := range words {
		n := Normalize(w)
		if n == "" {
			continue
		}
		t.Insert(n, struct{}{})
	}

	idx.mu.Lock()
	idx.tries[lang] = t
	idx.mu.Unlock()
	return t.Len()
}

// Query returns up to n normalized words of lang starting with prefix in
// lexicographic order. An empty prefix or unknown language yields nothing.
func (idx *Index) Query(lang, prefix string, n int) []string {
	p := Normalize(prefix)
	if p == "" || n <= 0 {
		return nil
	}

	idx.mu.RLock()
	t, ok := idx.tries[lang]
	idx.mu.RUnlock()
	if !ok {
		return nil
	}

	out := make([]string, 0, n)
	t.WalkPrefix(p, func(k string, _ interface{}) bool {
		out = append(out, k)
		return len(out) >= n
	})
	return out
}

// Len returns the number of words indexed for lang
func (idx *Index) Len(lang string) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if t, ok := idx.tries[lang]; ok {
		return t.Len()
	}
	return 0
}

// Load builds the tries of all langs from src concurrently
func (idx *Index) Load(ctx context.Context, src WordSource, langs []string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, lang := range langs {
		g.Go(func() error {
			words, err := src.GetAllWords(gctx, lang)
			if err != nil {
				return fmt.Errorf("failed to load words for %s: %w", lang, err)
			}
			n := idx.Build(lang, words)
			idx.logger.Info("autocomplete: loaded words", "lang", lang, "words", n)
			return nil
		})
	}
	return g.Wait()
}
