package searcher

import (
	"context"
	"strings"

	"github.com/dshills/dictpress/internal/autocomplete"
	"github.com/dshills/dictpress/pkg/types"
)

// Suggestions returns up to the configured number of completions for q.
// The in-memory index is consulted first; the store fills the remainder,
// skipping words already suggested. Store failures only shorten the result.
func (s *Searcher) Suggestions(ctx context.Context, lang, q string) ([]types.Suggestion, error) {
	q = CleanQuery(q)
	if q == "" {
		return nil, types.Validationf("query is required")
	}
	if _, ok := s.langs[lang]; !ok {
		return nil, types.Validationf("unknown language %q", lang)
	}

	limit := s.cfg.NumSuggestions
	out := []types.Suggestion{}
	if limit <= 0 {
		return out, nil
	}

	seen := make(map[string]struct{}, limit)
	add := func(word string) bool {
		norm := autocomplete.Normalize(word)
		if norm == "" {
			return false
		}
		if _, ok := seen[norm]; ok {
			return false
		}
		seen[norm] = struct{}{}
		out = append(out, types.Suggestion{Content: types.Strings{word}})
		return len(out) >= limit
	}

	if s.suggest != nil {
		for _, w := range s.suggest.Query(lang, q, limit) {
			if add(w) {
				return out, nil
			}
		}
	}
	if len(out) >= limit {
		return out, nil
	}

	ftsQuery, err := s.ToQuery(lang, q)
	if err != nil || strings.TrimSpace(ftsQuery) == "" {
		s.logger.Debug("no fallback query for suggestions", "lang", lang, "q", q, "error", err)
		return out, nil
	}

	// Fetch a full page so duplicates of trie results do not starve the fill
	words, err := s.store.SuggestWords(ctx, lang, prefixQuery(ftsQuery), limit)
	if err != nil {
		s.logger.Warn("suggestion fallback failed", "lang", lang, "error", err)
		return out, nil
	}
	for _, w := range words {
		if add(w) {
			break
		}
	}
	return out, nil
}

// prefixQuery turns the last quoted term of an FTS query into a prefix match
func prefixQuery(ftsQuery string) string {
	if strings.HasSuffix(ftsQuery, `"`) {
		return ftsQuery + "*"
	}
	return ftsQuery
}
