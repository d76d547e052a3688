// Package searcher implements dictionary search over the entry store.
//
// A search request goes through a fixed pipeline:
//
//  1. Clean and validate the query and languages, apply pagination defaults
//  2. Probe the result cache (public requests only)
//  3. Translate the query into an FTS5 expression with the source
//     language's tokenizer; an empty translation is a validation error
//  4. Run the full-text query scoped to language and status
//  5. Load relations filtered by target language, types, tags and status,
//     keep at most N per type by ascending weight, truncate related content
//  6. Remove internal ids (public requests only)
//  7. Store the result in the cache (public requests only)
//
// # Basic Usage
//
//	s, err := searcher.NewSearcher(store, langs, tokenizers,
//	    searcher.WithCache(c),
//	    searcher.WithAutocomplete(idx),
//	)
//
//	res, err := s.Search(ctx, types.SearchQuery{
//	    Query:        "book",
//	    FromLang:     "english",
//	    ToLang:       "french",
//	    MaxRelations: 5,
//	}, false)
//
// # Errors
//
// Errors wrap the classes in pkg/types: ErrValidation for bad input,
// ErrNotFound, ErrTokenizer for scripted tokenizer failures and ErrBackend
// for store failures. Cache failures never surface.
//
// # Suggestions
//
// Suggestions come from the in-memory autocomplete index first and are
// topped up from a prefix query against the store, deduplicated by
// normalized content.
package searcher
