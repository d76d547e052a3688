// Package indexer is the write path of the dictionary.
//
// Every entry stored through the indexer gets a search token string derived
// from its content by the tokenizer bound to its language, so the full-text
// index and the query translation always agree:
//
//	idx := indexer.New(store, langs, tokenizers, indexer.WithAutocomplete(ac))
//	id, err := idx.InsertEntry(ctx, &types.Entry{Lang: "english", Content: types.Strings{"Apple"}})
//
// Relations are checked against the type vocabulary of their target
// language before they are written.
//
// # Retokenizing
//
// Changing a language's tokenizer invalidates its stored tokens. Retokenize
// pages through the language in id order, tokenizes each page on a bounded
// worker pool and commits each page in its own transaction:
//
//	stats, err := idx.Retokenize(ctx, "english", &indexer.Config{Workers: 4, BatchSize: 500})
//	fmt.Printf("updated %d of %d entries in %v\n", stats.EntriesUpdated, stats.EntriesScanned, stats.Duration)
//
// Entries whose content fails to tokenize are skipped and reported in
// Statistics.ErrorMessages. Store failures abort the run.
//
// # Suggestions
//
// RebuildSuggestions reloads the in-memory suggestion index from the store.
// Only one rebuild runs at a time; a concurrent call returns
// ErrRebuildInProgress without waiting.
package indexer
