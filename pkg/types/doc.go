// Package types provides the dictionary domain types shared across dictpress.
//
// # Entries and Relations
//
// An Entry is a headword in one language. Its Content is an ordered list of
// surface forms and Tokens holds the search text derived from Content by the
// language's tokenizer. Relations are typed, weighted edges from a root entry
// to a related entry, loaded together with their target:
//
//	for _, r := range entry.Relations {
//	    fmt.Println(r.Types, r.Weight, r.Entry.Head())
//	}
//
// Lower relation weights sort first. Weights are a manual curation order,
// rewritten wholesale by a reorder operation.
//
// # Errors
//
// The engine classifies failures with four sentinels: ErrValidation,
// ErrNotFound, ErrTokenizer and ErrBackend.
//
//	if errors.Is(err, types.ErrValidation) {
//	    // report to the caller verbatim
//	}
package types
