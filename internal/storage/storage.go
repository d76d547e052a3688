package storage

import (
	"context"

	"github.com/dshills/dictpress/pkg/types"
)

// Storage defines the interface for persisting and querying dictionary data
type Storage interface {
	// Search operations
	Search(ctx context.Context, p SearchParams) ([]types.Entry, int, error)
	LoadRelations(ctx context.Context, rootIDs []int64, q types.RelationsQuery) ([]RelationRow, error)
	SuggestWords(ctx context.Context, lang, ftsQuery string, limit int) ([]string, error)

	// Entry operations
	GetEntry(ctx context.Context, id int64, guid string) (*types.Entry, error)
	GetParentEntries(ctx context.Context, id int64) ([]types.Entry, error)
	InsertEntry(ctx context.Context, e *types.Entry) (int64, error)
	UpdateEntry(ctx context.Context, id int64, e *types.Entry) error
	DeleteEntry(ctx context.Context, id int64) error
	ListEntryTokens(ctx context.Context, lang string, afterID int64, limit int) ([]EntryTokens, error)
	UpdateEntryTokens(ctx context.Context, id int64, tokens string) error

	// Relation operations
	InsertRelation(ctx context.Context, fromID, toID int64, r *types.Relation) (int64, error)
	UpdateRelation(ctx context.Context, id int64, r *types.Relation) error
	DeleteRelation(ctx context.Context, id int64) error
	ReorderRelations(ctx context.Context, ids []int64) error

	// Glossary operations
	GetInitials(ctx context.Context, lang string) ([]string, error)
	GetGlossaryWords(ctx context.Context, lang, initial string, offset, limit int) ([]types.GlossaryWord, int, error)
	GetAllWords(ctx context.Context, lang string) ([]string, error)

	// Submission operations
	GetPendingEntries(ctx context.Context, lang string, offset, limit int) ([]types.Entry, int, error)
	InsertSubmission(ctx context.Context, e *types.Entry) (int64, error)
	ApproveSubmission(ctx context.Context, id int64) error
	RejectSubmission(ctx context.Context, id int64) error
	InsertComment(ctx context.Context, c *types.Comment) error
	GetComments(ctx context.Context) ([]types.Comment, error)
	DeleteComment(ctx context.Context, id int64) error
	DeleteAllPending(ctx context.Context) error

	// Status operations
	GetStats(ctx context.Context) (*types.Stats, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// SearchParams is a full-text query already translated by a tokenizer
type SearchParams struct {
	Lang string
	// Query is the cleaned user text, used to rank exact headword matches first.
	Query    string
	FTSQuery string
	Status   string
	Offset   int
	Limit    int
}

// RelationRow is one relation of a root entry with its target entry attached
type RelationRow struct {
	FromID int64 `db:"from_id"`
	types.Relation
	types.Entry
}

// EntryTokens is the subset of an entry needed to recompute its tokens
type EntryTokens struct {
	ID      int64         `db:"id"`
	Content types.Strings `db:"content"`
	Tokens  string        `db:"tokens"`
}
