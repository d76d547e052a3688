package searcher

import (
	"context"
	"fmt"

	"github.com/dshills/dictpress/internal/cache"
	"github.com/dshills/dictpress/pkg/types"
)

// Initials lists the first letters of a language's headwords
func (s *Searcher) Initials(ctx context.Context, lang string) ([]string, error) {
	if _, ok := s.langs[lang]; !ok {
		return nil, types.Validationf("unknown language %q", lang)
	}
	initials, err := s.store.GetInitials(ctx, lang)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrBackend, err)
	}
	if initials == nil {
		initials = []string{}
	}
	return initials, nil
}

// Glossary returns a page of headwords starting with initial. Pages are
// cached when a cache is configured.
func (s *Searcher) Glossary(ctx context.Context, lang, initial string, page, perPage int) (*types.GlossaryResults, error) {
	if _, ok := s.langs[lang]; !ok {
		return nil, types.Validationf("unknown language %q", lang)
	}
	if initial == "" {
		return nil, types.Validationf("initial is required")
	}

	page, perPage, offset := Paginate(page, perPage, s.cfg.MaxPerPage, s.cfg.DefaultPerPage)
	key := cache.GlossaryKey(lang, initial, offset, perPage)

	var cached types.GlossaryResults
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	words, total, err := s.store.GetGlossaryWords(ctx, lang, initial, offset, perPage)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrBackend, err)
	}
	if words == nil {
		words = []types.GlossaryWord{}
	}

	res := &types.GlossaryResults{
		Words:      words,
		Initial:    initial,
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: TotalPages(total, perPage),
	}
	s.cachePut(ctx, key, res)
	return res, nil
}
