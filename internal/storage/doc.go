// Package storage provides SQLite-based persistence for dictionary entries
// and the relations between them.
//
// # Database Schema
//
// Tables:
//   - entries: headwords with content, tags and phones as JSON arrays
//   - relations: directed, weighted edges between entries (unique per pair)
//   - entries_fts: FTS5 external-content index over entries.tokens
//   - comments: public comments on entry pairs
//   - schema_version: applied migrations
//
// The FTS index is kept in sync with entries by triggers. The tokens column is
// the output of the language's tokenizer and must be recomputed whenever the
// tokenizer changes; see the indexer package.
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("dictpress.db", storage.WithMaxConns(8))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	entries, total, err := db.Search(ctx, storage.SearchParams{
//	    Lang:     "english",
//	    Query:    "book",
//	    FTSQuery: `"book"`,
//	    Limit:    10,
//	})
//
// # Transactions
//
// Multi-statement operations (reorder, submissions, pending cleanup) run in
// their own transaction. Callers batching writes use BeginTx:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	for _, e := range batch {
//	    if err := tx.UpdateEntryTokens(ctx, e.ID, e.Tokens); err != nil {
//	        return err
//	    }
//	}
//	return tx.Commit()
//
// # Build Tags
//
// Pure Go build (default):
//
//   - Uses modernc.org/sqlite driver, FTS5 included
//
//     CGO_ENABLED=0 go build
//
// CGO build (sqlite_cgo tag):
//
//   - Uses github.com/mattn/go-sqlite3 driver
//
//   - Requires a C compiler and the sqlite_fts5 tag
//
//     CGO_ENABLED=1 go build -tags "sqlite_cgo sqlite_fts5"
package storage
