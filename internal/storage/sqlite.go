package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dshills/dictpress/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = types.ErrNotFound
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// DefaultMaxConns bounds the connection pool when no option is given
const DefaultMaxConns = 4

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db       *sqlx.DB
	logger   *slog.Logger
	maxConns int
}

// Option configures a SQLiteStorage
type Option func(*SQLiteStorage)

// WithMaxConns bounds the connection pool. Exhaustion blocks callers until a
// connection is released.
func WithMaxConns(n int) Option {
	return func(s *SQLiteStorage) {
		if n > 0 {
			s.maxConns = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *SQLiteStorage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string, maxConns int) (*sqlx.DB, error) {
	db, err := sqlx.Open(DriverName, dsn(dbPath))
	if err != nil {
		return nil, err
	}

	// Every connection to :memory: is a separate database
	if dbPath == ":memory:" {
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens (creating if needed) the database at dbPath and
// applies pending migrations
func NewSQLiteStorage(dbPath string, opts ...Option) (*SQLiteStorage, error) {
	s := &SQLiteStorage{
		logger:   slog.Default(),
		maxConns: DefaultMaxConns,
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := openDatabase(dbPath, s.maxConns)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db.DB); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	s.db = db
	s.logger.Debug("database opened", "path", dbPath, "driver", DriverName, "max_conns", s.maxConns)
	return s, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// DB returns the underlying handle
func (s *SQLiteStorage) DB() *sql.DB {
	return s.db.DB
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is implemented by both *sqlx.DB and *sqlx.Tx
type querier interface {
	sqlx.ExtContext
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sqlx.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (s *SQLiteStorage) querier() querier {
	return s.db
}

// inTx runs fn inside a transaction on the DB handle
func (s *SQLiteStorage) inTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// sqlLimit maps a non-positive limit to SQLite's "no limit"
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Search operations

const searchQuery = `
	SELECT e.*, COUNT(*) OVER() AS total
	FROM entries_fts
	JOIN entries e ON e.id = entries_fts.rowid
	WHERE entries_fts MATCH ? AND e.lang = ? AND e.status = ?
	ORDER BY
		CASE WHEN LOWER(json_extract(e.content, '$[0]')) = LOWER(?) THEN 0 ELSE 1 END,
		entries_fts.rank, e.weight, e.id
	LIMIT ? OFFSET ?
`

const searchCountQuery = `
	SELECT COUNT(*)
	FROM entries_fts
	JOIN entries e ON e.id = entries_fts.rowid
	WHERE entries_fts MATCH ? AND e.lang = ? AND e.status = ?
`

func (s *SQLiteStorage) searchWithQuerier(ctx context.Context, q querier, p SearchParams) ([]types.Entry, int, error) {
	status := p.Status
	if status == "" {
		status = types.StatusEnabled
	}

	var entries []types.Entry
	err := sqlx.SelectContext(ctx, q, &entries, searchQuery,
		p.FTSQuery, p.Lang, status, p.Query, sqlLimit(p.Limit), p.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search entries: %w", err)
	}

	if len(entries) > 0 {
		return entries, entries[0].Total, nil
	}
	if p.Offset == 0 {
		return entries, 0, nil
	}

	// Past the last page the window count is unavailable
	var total int
	if err := sqlx.GetContext(ctx, q, &total, searchCountQuery, p.FTSQuery, p.Lang, status); err != nil {
		return nil, 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return entries, total, nil
}

// Search runs a full-text query scoped to a language and status
func (s *SQLiteStorage) Search(ctx context.Context, p SearchParams) ([]types.Entry, int, error) {
	return s.searchWithQuerier(ctx, s.querier(), p)
}

const relationsQuery = `
	SELECT r.from_id,
		r.id AS relation_id, r.types AS relation_types, r.tags AS relation_tags,
		r.notes AS relation_notes, r.weight AS relation_weight, r.status AS relation_status,
		r.created_at AS relation_created_at, r.updated_at AS relation_updated_at,
		e.id, e.guid, e.content, e.initial, e.weight, e.tokens, e.lang, e.tags,
		e.phones, e.notes, e.meta, e.status, e.created_at, e.updated_at
	FROM relations r
	JOIN entries e ON e.id = r.to_id
	WHERE `

func (s *SQLiteStorage) loadRelationsWithQuerier(ctx context.Context, q querier, rootIDs []int64, rq types.RelationsQuery) ([]RelationRow, error) {
	if len(rootIDs) == 0 {
		return nil, nil
	}

	where := []string{"r.from_id IN (?)"}
	args := []interface{}{rootIDs}

	if rq.ToLang != "" {
		where = append(where, "e.lang = ?")
		args = append(args, rq.ToLang)
	}
	if rq.Status != "" {
		where = append(where, "r.status = ?", "e.status = ?")
		args = append(args, rq.Status, rq.Status)
	}
	if len(rq.Types) > 0 {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(r.types) t WHERE t.value IN (?))")
		args = append(args, rq.Types)
	}
	if len(rq.Tags) > 0 {
		where = append(where, `(EXISTS (SELECT 1 FROM json_each(r.tags) t WHERE t.value IN (?))
			OR EXISTS (SELECT 1 FROM json_each(e.tags) t WHERE t.value IN (?)))`)
		args = append(args, rq.Tags, rq.Tags)
	}

	query, args, err := sqlx.In(relationsQuery+strings.Join(where, " AND ")+
		" ORDER BY r.from_id, r.weight, r.id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to build relations query: %w", err)
	}

	var rows []RelationRow
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load relations: %w", err)
	}
	return rows, nil
}

// LoadRelations returns the relations of the given root entries whose
// targets pass the language, status, type and tag filters of rq, ordered by
// root then ascending weight. Per-type limits and content truncation are
// left to the caller.
func (s *SQLiteStorage) LoadRelations(ctx context.Context, rootIDs []int64, rq types.RelationsQuery) ([]RelationRow, error) {
	return s.loadRelationsWithQuerier(ctx, s.querier(), rootIDs, rq)
}

const suggestQuery = `
	SELECT COALESCE(json_extract(e.content, '$[0]'), '')
	FROM entries_fts
	JOIN entries e ON e.id = entries_fts.rowid
	WHERE entries_fts MATCH ? AND e.lang = ? AND e.status = 'enabled'
	ORDER BY entries_fts.rank, e.weight
	LIMIT ?
`

func (s *SQLiteStorage) suggestWordsWithQuerier(ctx context.Context, q querier, lang, ftsQuery string, limit int) ([]string, error) {
	var words []string
	if err := sqlx.SelectContext(ctx, q, &words, suggestQuery, ftsQuery, lang, sqlLimit(limit)); err != nil {
		return nil, fmt.Errorf("failed to suggest words: %w", err)
	}
	return words, nil
}

// SuggestWords returns headwords matching a full-text (typically prefix) query
func (s *SQLiteStorage) SuggestWords(ctx context.Context, lang, ftsQuery string, limit int) ([]string, error) {
	return s.suggestWordsWithQuerier(ctx, s.querier(), lang, ftsQuery, limit)
}

// Entry operations

func (s *SQLiteStorage) getEntryWithQuerier(ctx context.Context, q querier, id int64, guid string) (*types.Entry, error) {
	var e types.Entry
	err := sqlx.GetContext(ctx, q, &e,
		"SELECT * FROM entries WHERE (? > 0 AND id = ?) OR (? != '' AND guid = ?) LIMIT 1",
		id, id, guid, guid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return &e, nil
}

// GetEntry fetches an entry by id, or by guid when id is zero
func (s *SQLiteStorage) GetEntry(ctx context.Context, id int64, guid string) (*types.Entry, error) {
	return s.getEntryWithQuerier(ctx, s.querier(), id, guid)
}

func (s *SQLiteStorage) getParentEntriesWithQuerier(ctx context.Context, q querier, id int64) ([]types.Entry, error) {
	query := `
		SELECT e.* FROM entries e
		JOIN relations r ON r.from_id = e.id
		WHERE r.to_id = ?
		ORDER BY e.weight, e.id
	`
	var entries []types.Entry
	if err := sqlx.SelectContext(ctx, q, &entries, query, id); err != nil {
		return nil, fmt.Errorf("failed to get parent entries: %w", err)
	}
	return entries, nil
}

// GetParentEntries returns the entries that relate to the given entry
func (s *SQLiteStorage) GetParentEntries(ctx context.Context, id int64) ([]types.Entry, error) {
	return s.getParentEntriesWithQuerier(ctx, s.querier(), id)
}

const insertEntryQuery = `
	INSERT INTO entries (guid, content, initial, weight, tokens, lang, tags, phones,
		notes, meta, status, created_at, updated_at)
	VALUES (:guid, :content, :initial, :weight, :tokens, :lang, :tags, :phones,
		:notes, :meta, :status, :created_at, :updated_at)
`

func (s *SQLiteStorage) insertEntryWithQuerier(ctx context.Context, q querier, e *types.Entry) (int64, error) {
	if e.GUID == "" {
		e.GUID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = types.StatusEnabled
	}
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now

	res, err := sqlx.NamedExecContext(ctx, q, insertEntryQuery, e)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("entry %s: %w", e.GUID, ErrAlreadyExists)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	e.ID = id
	return id, nil
}

// InsertEntry stores a new entry. A missing GUID is generated and a missing
// status defaults to enabled.
func (s *SQLiteStorage) InsertEntry(ctx context.Context, e *types.Entry) (int64, error) {
	return s.insertEntryWithQuerier(ctx, s.querier(), e)
}

const updateEntryQuery = `
	UPDATE entries SET
		content = :content, initial = :initial, weight = :weight,
		tokens = CASE WHEN :tokens = '' THEN tokens ELSE :tokens END,
		lang = :lang, tags = :tags, phones = :phones, notes = :notes, meta = :meta,
		status = CASE WHEN :status = '' THEN status ELSE :status END,
		updated_at = :updated_at
	WHERE id = :id
`

func (s *SQLiteStorage) updateEntryWithQuerier(ctx context.Context, q querier, id int64, e *types.Entry) error {
	e.ID = id
	e.UpdatedAt = time.Now().UTC()

	res, err := sqlx.NamedExecContext(ctx, q, updateEntryQuery, e)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	return checkAffected(res)
}

// UpdateEntry overwrites an entry. Empty tokens or status keep the stored value.
func (s *SQLiteStorage) UpdateEntry(ctx context.Context, id int64, e *types.Entry) error {
	return s.updateEntryWithQuerier(ctx, s.querier(), id, e)
}

func (s *SQLiteStorage) deleteEntryWithQuerier(ctx context.Context, q querier, id int64) error {
	res, err := q.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return checkAffected(res)
}

// DeleteEntry removes an entry and, by cascade, its relations in both directions
func (s *SQLiteStorage) DeleteEntry(ctx context.Context, id int64) error {
	return s.deleteEntryWithQuerier(ctx, s.querier(), id)
}

func (s *SQLiteStorage) listEntryTokensWithQuerier(ctx context.Context, q querier, lang string, afterID int64, limit int) ([]EntryTokens, error) {
	query := `
		SELECT id, content, tokens FROM entries
		WHERE lang = ? AND id > ?
		ORDER BY id
		LIMIT ?
	`
	var rows []EntryTokens
	if err := sqlx.SelectContext(ctx, q, &rows, query, lang, afterID, sqlLimit(limit)); err != nil {
		return nil, fmt.Errorf("failed to list entry tokens: %w", err)
	}
	return rows, nil
}

// ListEntryTokens pages through a language's entries in id order
func (s *SQLiteStorage) ListEntryTokens(ctx context.Context, lang string, afterID int64, limit int) ([]EntryTokens, error) {
	return s.listEntryTokensWithQuerier(ctx, s.querier(), lang, afterID, limit)
}

func (s *SQLiteStorage) updateEntryTokensWithQuerier(ctx context.Context, q querier, id int64, tokens string) error {
	res, err := q.ExecContext(ctx,
		"UPDATE entries SET tokens = ?, updated_at = ? WHERE id = ?", tokens, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update tokens: %w", err)
	}
	return checkAffected(res)
}

// UpdateEntryTokens replaces the search text of one entry
func (s *SQLiteStorage) UpdateEntryTokens(ctx context.Context, id int64, tokens string) error {
	return s.updateEntryTokensWithQuerier(ctx, s.querier(), id, tokens)
}

// Relation operations

const insertRelationQuery = `
	INSERT INTO relations (from_id, to_id, types, tags, notes, weight, status, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (s *SQLiteStorage) insertRelationWithQuerier(ctx context.Context, q querier, fromID, toID int64, r *types.Relation) (int64, error) {
	if r.Status == "" {
		r.Status = types.StatusEnabled
	}
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now

	res, err := q.ExecContext(ctx, insertRelationQuery,
		fromID, toID, r.Types, r.Tags, r.Notes, r.Weight, r.Status, now, now)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("relation %d -> %d: %w", fromID, toID, ErrAlreadyExists)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert relation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	r.ID = id
	return id, nil
}

// InsertRelation links two entries. A pair can be linked only once.
func (s *SQLiteStorage) InsertRelation(ctx context.Context, fromID, toID int64, r *types.Relation) (int64, error) {
	return s.insertRelationWithQuerier(ctx, s.querier(), fromID, toID, r)
}

func (s *SQLiteStorage) updateRelationWithQuerier(ctx context.Context, q querier, id int64, r *types.Relation) error {
	query := `
		UPDATE relations SET
			types = ?, tags = ?, notes = ?, weight = ?,
			status = CASE WHEN ? = '' THEN status ELSE ? END,
			updated_at = ?
		WHERE id = ?
	`
	res, err := q.ExecContext(ctx, query,
		r.Types, r.Tags, r.Notes, r.Weight, r.Status, r.Status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update relation: %w", err)
	}
	return checkAffected(res)
}

func (s *SQLiteStorage) UpdateRelation(ctx context.Context, id int64, r *types.Relation) error {
	return s.updateRelationWithQuerier(ctx, s.querier(), id, r)
}

func (s *SQLiteStorage) deleteRelationWithQuerier(ctx context.Context, q querier, id int64) error {
	res, err := q.ExecContext(ctx, "DELETE FROM relations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete relation: %w", err)
	}
	return checkAffected(res)
}

func (s *SQLiteStorage) DeleteRelation(ctx context.Context, id int64) error {
	return s.deleteRelationWithQuerier(ctx, s.querier(), id)
}

func (s *SQLiteStorage) reorderRelationsWithQuerier(ctx context.Context, q querier, ids []int64) error {
	now := time.Now().UTC()
	for i, id := range ids {
		if _, err := q.ExecContext(ctx,
			"UPDATE relations SET weight = ?, updated_at = ? WHERE id = ?", i, now, id); err != nil {
			return fmt.Errorf("failed to reorder relation %d: %w", id, err)
		}
	}
	return nil
}

// ReorderRelations sets each relation's weight to its position in ids.
// Ids that do not exist are ignored.
func (s *SQLiteStorage) ReorderRelations(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return s.inTx(ctx, func(q querier) error {
		return s.reorderRelationsWithQuerier(ctx, q, ids)
	})
}

// Glossary operations

func (s *SQLiteStorage) getInitialsWithQuerier(ctx context.Context, q querier, lang string) ([]string, error) {
	query := `
		SELECT DISTINCT initial FROM entries
		WHERE lang = ? AND initial != '' AND status = 'enabled'
		ORDER BY initial
	`
	var initials []string
	if err := sqlx.SelectContext(ctx, q, &initials, query, lang); err != nil {
		return nil, fmt.Errorf("failed to get initials: %w", err)
	}
	return initials, nil
}

// GetInitials lists the distinct first letters of a language's headwords
func (s *SQLiteStorage) GetInitials(ctx context.Context, lang string) ([]string, error) {
	return s.getInitialsWithQuerier(ctx, s.querier(), lang)
}

func (s *SQLiteStorage) getGlossaryWordsWithQuerier(ctx context.Context, q querier, lang, initial string, offset, limit int) ([]types.GlossaryWord, int, error) {
	query := `
		SELECT id, guid, content, COUNT(*) OVER() AS total
		FROM entries
		WHERE lang = ? AND initial = ? AND status = 'enabled'
		ORDER BY weight, LOWER(json_extract(content, '$[0]')), id
		LIMIT ? OFFSET ?
	`
	var words []types.GlossaryWord
	if err := sqlx.SelectContext(ctx, q, &words, query, lang, initial, sqlLimit(limit), offset); err != nil {
		return nil, 0, fmt.Errorf("failed to get glossary words: %w", err)
	}
	if len(words) == 0 {
		return words, 0, nil
	}
	return words, words[0].Total, nil
}

// GetGlossaryWords returns one page of headwords starting with initial
func (s *SQLiteStorage) GetGlossaryWords(ctx context.Context, lang, initial string, offset, limit int) ([]types.GlossaryWord, int, error) {
	return s.getGlossaryWordsWithQuerier(ctx, s.querier(), lang, initial, offset, limit)
}

func (s *SQLiteStorage) getAllWordsWithQuerier(ctx context.Context, q querier, lang string) ([]string, error) {
	query := `
		SELECT DISTINCT c.value
		FROM entries e, json_each(e.content) c
		WHERE e.lang = ? AND e.status = 'enabled'
	`
	var words []string
	if err := sqlx.SelectContext(ctx, q, &words, query, lang); err != nil {
		return nil, fmt.Errorf("failed to get words: %w", err)
	}
	return words, nil
}

// GetAllWords returns every content string of a language's enabled entries
func (s *SQLiteStorage) GetAllWords(ctx context.Context, lang string) ([]string, error) {
	return s.getAllWordsWithQuerier(ctx, s.querier(), lang)
}

// Submission operations

func (s *SQLiteStorage) getPendingEntriesWithQuerier(ctx context.Context, q querier, lang string, offset, limit int) ([]types.Entry, int, error) {
	query := `
		SELECT *, COUNT(*) OVER() AS total
		FROM entries
		WHERE status = 'pending' AND (? = '' OR lang = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	var entries []types.Entry
	if err := sqlx.SelectContext(ctx, q, &entries, query, lang, lang, sqlLimit(limit), offset); err != nil {
		return nil, 0, fmt.Errorf("failed to get pending entries: %w", err)
	}
	if len(entries) == 0 {
		return entries, 0, nil
	}
	return entries, entries[0].Total, nil
}

// GetPendingEntries lists submitted entries awaiting review, newest first.
// An empty lang matches all languages.
func (s *SQLiteStorage) GetPendingEntries(ctx context.Context, lang string, offset, limit int) ([]types.Entry, int, error) {
	return s.getPendingEntriesWithQuerier(ctx, s.querier(), lang, offset, limit)
}

func (s *SQLiteStorage) insertSubmissionWithQuerier(ctx context.Context, q querier, e *types.Entry) (int64, error) {
	e.Status = types.StatusPending
	id, err := s.insertEntryWithQuerier(ctx, q, e)
	if err != nil {
		return 0, err
	}

	for i := range e.Relations {
		r := &e.Relations[i]
		toID := r.Entry.ID
		if toID == 0 {
			r.Entry.Status = types.StatusPending
			if toID, err = s.insertEntryWithQuerier(ctx, q, &r.Entry); err != nil {
				return 0, err
			}
		}

		r.Status = types.StatusPending
		if _, err := s.insertRelationWithQuerier(ctx, q, id, toID, r); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// InsertSubmission stores a pending entry with its relations. Related entries
// without an id are stored as new pending entries.
func (s *SQLiteStorage) InsertSubmission(ctx context.Context, e *types.Entry) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(q querier) error {
		var err error
		id, err = s.insertSubmissionWithQuerier(ctx, q, e)
		return err
	})
	return id, err
}

func (s *SQLiteStorage) approveSubmissionWithQuerier(ctx context.Context, q querier, id int64) error {
	now := time.Now().UTC()
	res, err := q.ExecContext(ctx,
		"UPDATE entries SET status = 'enabled', updated_at = ? WHERE id = ? AND status = 'pending'", now, id)
	if err != nil {
		return fmt.Errorf("failed to approve entry: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return err
	}

	if _, err := q.ExecContext(ctx, `
		UPDATE entries SET status = 'enabled', updated_at = ?
		WHERE status = 'pending' AND id IN (
			SELECT to_id FROM relations WHERE from_id = ? AND status = 'pending')`, now, id); err != nil {
		return fmt.Errorf("failed to approve related entries: %w", err)
	}

	if _, err := q.ExecContext(ctx,
		"UPDATE relations SET status = 'enabled', updated_at = ? WHERE from_id = ? AND status = 'pending'",
		now, id); err != nil {
		return fmt.Errorf("failed to approve relations: %w", err)
	}
	return nil
}

// ApproveSubmission enables a pending entry, its pending relations and their
// pending targets
func (s *SQLiteStorage) ApproveSubmission(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(q querier) error {
		return s.approveSubmissionWithQuerier(ctx, q, id)
	})
}

func (s *SQLiteStorage) rejectSubmissionWithQuerier(ctx context.Context, q querier, id int64) error {
	if _, err := q.ExecContext(ctx, `
		DELETE FROM entries
		WHERE status = 'pending' AND id IN (
			SELECT to_id FROM relations WHERE from_id = ? AND status = 'pending')`, id); err != nil {
		return fmt.Errorf("failed to reject related entries: %w", err)
	}

	if _, err := q.ExecContext(ctx,
		"DELETE FROM relations WHERE from_id = ? AND status = 'pending'", id); err != nil {
		return fmt.Errorf("failed to reject relations: %w", err)
	}

	res, err := q.ExecContext(ctx, "DELETE FROM entries WHERE id = ? AND status = 'pending'", id)
	if err != nil {
		return fmt.Errorf("failed to reject entry: %w", err)
	}
	return checkAffected(res)
}

// RejectSubmission deletes a pending entry with its pending relations and
// pending targets
func (s *SQLiteStorage) RejectSubmission(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(q querier) error {
		return s.rejectSubmissionWithQuerier(ctx, q, id)
	})
}

func (s *SQLiteStorage) insertCommentWithQuerier(ctx context.Context, q querier, c *types.Comment) error {
	c.CreatedAt = time.Now().UTC()
	res, err := q.ExecContext(ctx,
		"INSERT INTO comments (from_guid, to_guid, comments, created_at) VALUES (?, ?, ?, ?)",
		c.FromGUID, c.ToGUID, c.Comments, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (s *SQLiteStorage) InsertComment(ctx context.Context, c *types.Comment) error {
	return s.insertCommentWithQuerier(ctx, s.querier(), c)
}

func (s *SQLiteStorage) getCommentsWithQuerier(ctx context.Context, q querier) ([]types.Comment, error) {
	var comments []types.Comment
	if err := sqlx.SelectContext(ctx, q, &comments,
		"SELECT id, from_guid, to_guid, comments, created_at FROM comments ORDER BY created_at DESC, id DESC"); err != nil {
		return nil, fmt.Errorf("failed to get comments: %w", err)
	}
	return comments, nil
}

func (s *SQLiteStorage) GetComments(ctx context.Context) ([]types.Comment, error) {
	return s.getCommentsWithQuerier(ctx, s.querier())
}

func (s *SQLiteStorage) deleteCommentWithQuerier(ctx context.Context, q querier, id int64) error {
	res, err := q.ExecContext(ctx, "DELETE FROM comments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return checkAffected(res)
}

func (s *SQLiteStorage) DeleteComment(ctx context.Context, id int64) error {
	return s.deleteCommentWithQuerier(ctx, s.querier(), id)
}

func (s *SQLiteStorage) deleteAllPendingWithQuerier(ctx context.Context, q querier) error {
	for _, stmt := range []string{
		"DELETE FROM relations WHERE status = 'pending'",
		"DELETE FROM entries WHERE status = 'pending'",
		"DELETE FROM comments",
	} {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to delete pending data: %w", err)
		}
	}
	return nil
}

// DeleteAllPending clears every pending entry and relation and all comments
func (s *SQLiteStorage) DeleteAllPending(ctx context.Context) error {
	return s.inTx(ctx, func(q querier) error {
		return s.deleteAllPendingWithQuerier(ctx, q)
	})
}

// Status operations

func (s *SQLiteStorage) getStatsWithQuerier(ctx context.Context, q querier) (*types.Stats, error) {
	stats := &types.Stats{Languages: make(map[string]int)}

	err := q.QueryRowxContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM entries),
			(SELECT COUNT(*) FROM relations),
			(SELECT COUNT(*) FROM entries WHERE status = 'pending')`).
		Scan(&stats.Entries, &stats.Relations, &stats.Pending)
	if err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}

	rows, err := q.QueryxContext(ctx, "SELECT lang, COUNT(*) FROM entries GROUP BY lang")
	if err != nil {
		return nil, fmt.Errorf("failed to count languages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			lang  string
			count int
		)
		if err := rows.Scan(&lang, &count); err != nil {
			return nil, err
		}
		stats.Languages[lang] = count
	}
	return stats, rows.Err()
}

// GetStats counts entries, relations and pending submissions
func (s *SQLiteStorage) GetStats(ctx context.Context) (*types.Stats, error) {
	return s.getStatsWithQuerier(ctx, s.querier())
}

// Transaction implementations. Multi-statement operations run directly on
// the open transaction.

func (t *sqliteTx) Search(ctx context.Context, p SearchParams) ([]types.Entry, int, error) {
	return t.storage.searchWithQuerier(ctx, t.querier(), p)
}

func (t *sqliteTx) LoadRelations(ctx context.Context, rootIDs []int64, rq types.RelationsQuery) ([]RelationRow, error) {
	return t.storage.loadRelationsWithQuerier(ctx, t.querier(), rootIDs, rq)
}

func (t *sqliteTx) SuggestWords(ctx context.Context, lang, ftsQuery string, limit int) ([]string, error) {
	return t.storage.suggestWordsWithQuerier(ctx, t.querier(), lang, ftsQuery, limit)
}

func (t *sqliteTx) GetEntry(ctx context.Context, id int64, guid string) (*types.Entry, error) {
	return t.storage.getEntryWithQuerier(ctx, t.querier(), id, guid)
}

func (t *sqliteTx) GetParentEntries(ctx context.Context, id int64) ([]types.Entry, error) {
	return t.storage.getParentEntriesWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) InsertEntry(ctx context.Context, e *types.Entry) (int64, error) {
	return t.storage.insertEntryWithQuerier(ctx, t.querier(), e)
}

func (t *sqliteTx) UpdateEntry(ctx context.Context, id int64, e *types.Entry) error {
	return t.storage.updateEntryWithQuerier(ctx, t.querier(), id, e)
}

func (t *sqliteTx) DeleteEntry(ctx context.Context, id int64) error {
	return t.storage.deleteEntryWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) ListEntryTokens(ctx context.Context, lang string, afterID int64, limit int) ([]EntryTokens, error) {
	return t.storage.listEntryTokensWithQuerier(ctx, t.querier(), lang, afterID, limit)
}

func (t *sqliteTx) UpdateEntryTokens(ctx context.Context, id int64, tokens string) error {
	return t.storage.updateEntryTokensWithQuerier(ctx, t.querier(), id, tokens)
}

func (t *sqliteTx) InsertRelation(ctx context.Context, fromID, toID int64, r *types.Relation) (int64, error) {
	return t.storage.insertRelationWithQuerier(ctx, t.querier(), fromID, toID, r)
}

func (t *sqliteTx) UpdateRelation(ctx context.Context, id int64, r *types.Relation) error {
	return t.storage.updateRelationWithQuerier(ctx, t.querier(), id, r)
}

func (t *sqliteTx) DeleteRelation(ctx context.Context, id int64) error {
	return t.storage.deleteRelationWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) ReorderRelations(ctx context.Context, ids []int64) error {
	return t.storage.reorderRelationsWithQuerier(ctx, t.querier(), ids)
}

func (t *sqliteTx) GetInitials(ctx context.Context, lang string) ([]string, error) {
	return t.storage.getInitialsWithQuerier(ctx, t.querier(), lang)
}

func (t *sqliteTx) GetGlossaryWords(ctx context.Context, lang, initial string, offset, limit int) ([]types.GlossaryWord, int, error) {
	return t.storage.getGlossaryWordsWithQuerier(ctx, t.querier(), lang, initial, offset, limit)
}

func (t *sqliteTx) GetAllWords(ctx context.Context, lang string) ([]string, error) {
	return t.storage.getAllWordsWithQuerier(ctx, t.querier(), lang)
}

func (t *sqliteTx) GetPendingEntries(ctx context.Context, lang string, offset, limit int) ([]types.Entry, int, error) {
	return t.storage.getPendingEntriesWithQuerier(ctx, t.querier(), lang, offset, limit)
}

func (t *sqliteTx) InsertSubmission(ctx context.Context, e *types.Entry) (int64, error) {
	return t.storage.insertSubmissionWithQuerier(ctx, t.querier(), e)
}

func (t *sqliteTx) ApproveSubmission(ctx context.Context, id int64) error {
	return t.storage.approveSubmissionWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) RejectSubmission(ctx context.Context, id int64) error {
	return t.storage.rejectSubmissionWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) InsertComment(ctx context.Context, c *types.Comment) error {
	return t.storage.insertCommentWithQuerier(ctx, t.querier(), c)
}

func (t *sqliteTx) GetComments(ctx context.Context) ([]types.Comment, error) {
	return t.storage.getCommentsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) DeleteComment(ctx context.Context, id int64) error {
	return t.storage.deleteCommentWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) DeleteAllPending(ctx context.Context) error {
	return t.storage.deleteAllPendingWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) GetStats(ctx context.Context) (*types.Stats, error) {
	return t.storage.getStatsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	return errors.New("cannot close storage from within transaction")
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}
