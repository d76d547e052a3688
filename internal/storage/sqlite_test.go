package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/dictpress/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func insertEntry(t *testing.T, s *SQLiteStorage, lang, tokens string, content ...string) *types.Entry {
	t.Helper()
	e := &types.Entry{
		Content: content,
		Lang:    lang,
		Tokens:  tokens,
		Initial: string([]rune(content[0])[:1]),
	}
	_, err := s.InsertEntry(context.Background(), e)
	require.NoError(t, err)
	return e
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	assert.NotNil(t, storage.db)
}

func TestNewSQLiteStorage_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.db")

	s, err := NewSQLiteStorage(path, WithMaxConns(2))
	require.NoError(t, err)
	e := &types.Entry{Content: types.Strings{"book"}, Lang: "english", Tokens: "book"}
	_, err = s.InsertEntry(context.Background(), e)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening must not reapply migrations
	s, err = NewSQLiteStorage(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetEntry(context.Background(), e.ID, "")
	require.NoError(t, err)
	assert.Equal(t, types.Strings{"book"}, got.Content)
}

func TestInsertEntry(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	e := &types.Entry{
		Content: types.Strings{"book", "booke"},
		Lang:    "english",
		Tokens:  "book book",
		Tags:    types.Strings{"noun"},
		Phones:  types.Strings{"bʊk"},
		Meta:    types.Meta{"source": "test"},
	}
	id, err := storage.InsertEntry(ctx, e)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))
	assert.NotEmpty(t, e.GUID)
	assert.Equal(t, types.StatusEnabled, e.Status)

	got, err := storage.GetEntry(ctx, id, "")
	require.NoError(t, err)
	assert.Equal(t, e.GUID, got.GUID)
	assert.Equal(t, types.Strings{"book", "booke"}, got.Content)
	assert.Equal(t, types.Strings{"noun"}, got.Tags)
	assert.Equal(t, types.Strings{"bʊk"}, got.Phones)
	assert.Equal(t, "test", got.Meta["source"])
	assert.False(t, got.CreatedAt.IsZero())

	byGUID, err := storage.GetEntry(ctx, 0, e.GUID)
	require.NoError(t, err)
	assert.Equal(t, id, byGUID.ID)

	// Duplicate GUID
	dup := &types.Entry{GUID: e.GUID, Content: types.Strings{"x"}, Lang: "english"}
	_, err = storage.InsertEntry(ctx, dup)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestGetEntry_NotFound(t *testing.T) {
	storage := setupTestDB(t)

	_, err := storage.GetEntry(context.Background(), 999, "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = storage.GetEntry(context.Background(), 0, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateEntry(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	e := insertEntry(t, storage, "english", "book", "book")

	update := &types.Entry{Content: types.Strings{"tome"}, Lang: "english", Tokens: "tome"}
	require.NoError(t, storage.UpdateEntry(ctx, e.ID, update))

	got, err := storage.GetEntry(ctx, e.ID, "")
	require.NoError(t, err)
	assert.Equal(t, types.Strings{"tome"}, got.Content)
	assert.Equal(t, types.StatusEnabled, got.Status, "empty status keeps stored value")

	// FTS follows the tokens column
	res, total, err := storage.Search(ctx, SearchParams{Lang: "english", FTSQuery: `"tome"`})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, res, 1)

	_, total, err = storage.Search(ctx, SearchParams{Lang: "english", FTSQuery: `"book"`})
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	// Empty tokens keep stored tokens
	require.NoError(t, storage.UpdateEntry(ctx, e.ID, &types.Entry{Content: types.Strings{"tome"}, Lang: "english"}))
	got, err = storage.GetEntry(ctx, e.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "tome", got.Tokens)

	err = storage.UpdateEntry(ctx, 999, update)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteEntry_CascadesRelations(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	a := insertEntry(t, storage, "english", "book", "book")
	b := insertEntry(t, storage, "french", "livr", "livre")
	_, err := storage.InsertRelation(ctx, a.ID, b.ID, &types.Relation{Types: types.Strings{"noun"}})
	require.NoError(t, err)

	require.NoError(t, storage.DeleteEntry(ctx, b.ID))

	rows, err := storage.LoadRelations(ctx, []int64{a.ID}, types.RelationsQuery{})
	require.NoError(t, err)
	assert.Empty(t, rows)

	assert.ErrorIs(t, storage.DeleteEntry(ctx, b.ID), ErrNotFound)
}

func TestSearch(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	insertEntry(t, storage, "english", "book", "book")
	insertEntry(t, storage, "english", "book shelf", "bookshelf")
	insertEntry(t, storage, "english", "book case", "bookcase")
	insertEntry(t, storage, "english", "cat", "cat")
	insertEntry(t, storage, "french", "book", "book")

	disabled := &types.Entry{Content: types.Strings{"book"}, Lang: "english", Tokens: "book", Status: types.StatusDisabled}
	_, err := storage.InsertEntry(ctx, disabled)
	require.NoError(t, err)

	t.Run("scoped to language and status", func(t *testing.T) {
		res, total, err := storage.Search(ctx, SearchParams{Lang: "english", Query: "book", FTSQuery: `"book"`, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, res, 3)
		assert.Equal(t, "book", res[0].Head(), "exact headword ranks first")
		for _, e := range res {
			assert.Equal(t, "english", e.Lang)
			assert.Equal(t, types.StatusEnabled, e.Status)
		}
	})

	t.Run("explicit status", func(t *testing.T) {
		res, total, err := storage.Search(ctx, SearchParams{Lang: "english", FTSQuery: `"book"`, Status: types.StatusDisabled})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, res, 1)
		assert.Equal(t, disabled.ID, res[0].ID)
	})

	t.Run("pagination keeps total", func(t *testing.T) {
		res, total, err := storage.Search(ctx, SearchParams{Lang: "english", FTSQuery: `"book"`, Offset: 2, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Len(t, res, 1)
	})

	t.Run("past last page", func(t *testing.T) {
		res, total, err := storage.Search(ctx, SearchParams{Lang: "english", FTSQuery: `"book"`, Offset: 10, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Empty(t, res)
	})

	t.Run("implicit and", func(t *testing.T) {
		res, total, err := storage.Search(ctx, SearchParams{Lang: "english", FTSQuery: `"book" "shelf"`})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, res, 1)
		assert.Equal(t, "bookshelf", res[0].Head())
	})
}

// seedRelations creates one english root with n french relations of the given type
func seedRelations(t *testing.T, s *SQLiteStorage, root *types.Entry, n int, relType string) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		target := insertEntry(t, s, "french", fmt.Sprintf("mot%d", i), fmt.Sprintf("mot%d", i))
		id, err := s.InsertRelation(context.Background(), root.ID, target.ID, &types.Relation{
			Types:  types.Strings{relType},
			Weight: n - i,
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestLoadRelations(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	root := insertEntry(t, storage, "english", "book", "book")
	seedRelations(t, storage, root, 3, "noun")

	verb := insertEntry(t, storage, "french", "reserv", "réserver")
	_, err := storage.InsertRelation(ctx, root.ID, verb.ID, &types.Relation{
		Types: types.Strings{"verb"},
		Tags:  types.Strings{"formal"},
	})
	require.NoError(t, err)

	german := insertEntry(t, storage, "german", "buch", "Buch")
	_, err = storage.InsertRelation(ctx, root.ID, german.ID, &types.Relation{Types: types.Strings{"noun"}})
	require.NoError(t, err)

	pending := insertEntry(t, storage, "french", "bouquin", "bouquin")
	_, err = storage.InsertRelation(ctx, root.ID, pending.ID, &types.Relation{
		Types:  types.Strings{"noun"},
		Status: types.StatusPending,
	})
	require.NoError(t, err)

	tests := []struct {
		name  string
		query types.RelationsQuery
		want  int
	}{
		{"no filters", types.RelationsQuery{}, 6},
		{"to lang", types.RelationsQuery{ToLang: "french"}, 5},
		{"status", types.RelationsQuery{ToLang: "french", Status: types.StatusEnabled}, 4},
		{"types", types.RelationsQuery{ToLang: "french", Status: types.StatusEnabled, Types: []string{"verb"}}, 1},
		{"types overlap", types.RelationsQuery{Types: []string{"verb", "noun"}}, 6},
		{"tags", types.RelationsQuery{Tags: []string{"formal"}}, 1},
		{"unknown type", types.RelationsQuery{Types: []string{"adverb"}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := storage.LoadRelations(ctx, []int64{root.ID}, tt.query)
			require.NoError(t, err)
			assert.Len(t, rows, tt.want)
			for _, r := range rows {
				assert.Equal(t, root.ID, r.FromID)
				assert.NotZero(t, r.Relation.ID)
				assert.NotZero(t, r.Entry.ID)
			}
		})
	}
}

func TestLoadRelations_OrderedByWeight(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	root := insertEntry(t, storage, "english", "book", "book")
	seedRelations(t, storage, root, 5, "noun")

	rows, err := storage.LoadRelations(ctx, []int64{root.ID}, types.RelationsQuery{})
	require.NoError(t, err)
	require.Len(t, rows, 5)
	for i := 1; i < len(rows); i++ {
		assert.LessOrEqual(t, rows[i-1].Relation.Weight, rows[i].Relation.Weight)
	}
	assert.Equal(t, types.Strings{"noun"}, rows[0].Relation.Types)
	assert.Equal(t, "french", rows[0].Entry.Lang)
}

func TestLoadRelations_NoRoots(t *testing.T) {
	storage := setupTestDB(t)
	rows, err := storage.LoadRelations(context.Background(), nil, types.RelationsQuery{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestInsertRelation_Duplicate(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	a := insertEntry(t, storage, "english", "book", "book")
	b := insertEntry(t, storage, "french", "livr", "livre")

	_, err := storage.InsertRelation(ctx, a.ID, b.ID, &types.Relation{})
	require.NoError(t, err)
	_, err = storage.InsertRelation(ctx, a.ID, b.ID, &types.Relation{})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestUpdateDeleteRelation(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	a := insertEntry(t, storage, "english", "book", "book")
	b := insertEntry(t, storage, "french", "livr", "livre")
	id, err := storage.InsertRelation(ctx, a.ID, b.ID, &types.Relation{Types: types.Strings{"noun"}})
	require.NoError(t, err)

	require.NoError(t, storage.UpdateRelation(ctx, id, &types.Relation{
		Types: types.Strings{"noun", "masculine"},
		Notes: "common",
	}))

	rows, err := storage.LoadRelations(ctx, []int64{a.ID}, types.RelationsQuery{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, types.Strings{"noun", "masculine"}, rows[0].Relation.Types)
	assert.Equal(t, "common", rows[0].Relation.Notes)
	assert.Equal(t, types.StatusEnabled, rows[0].Relation.Status)

	require.NoError(t, storage.DeleteRelation(ctx, id))
	assert.ErrorIs(t, storage.DeleteRelation(ctx, id), ErrNotFound)
	assert.ErrorIs(t, storage.UpdateRelation(ctx, id, &types.Relation{}), ErrNotFound)
}

func TestReorderRelations(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	root := insertEntry(t, storage, "english", "book", "book")
	ids := seedRelations(t, storage, root, 4, "noun")

	// Caller dictates the new order wholesale
	order := []int64{ids[2], ids[0], ids[3], ids[1]}
	require.NoError(t, storage.ReorderRelations(ctx, order))

	rows, err := storage.LoadRelations(ctx, []int64{root.ID}, types.RelationsQuery{})
	require.NoError(t, err)
	require.Len(t, rows, 4)

	got := make([]int64, len(rows))
	for i, r := range rows {
		got[i] = r.Relation.ID
		assert.Equal(t, i, r.Relation.Weight)
	}
	assert.Equal(t, order, got)

	assert.NoError(t, storage.ReorderRelations(ctx, nil))
}

func TestGetParentEntries(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	a := insertEntry(t, storage, "english", "book", "book")
	b := insertEntry(t, storage, "english", "volum", "volume")
	target := insertEntry(t, storage, "french", "livr", "livre")

	for _, from := range []int64{a.ID, b.ID} {
		_, err := storage.InsertRelation(ctx, from, target.ID, &types.Relation{})
		require.NoError(t, err)
	}

	parents, err := storage.GetParentEntries(ctx, target.ID)
	require.NoError(t, err)
	assert.Len(t, parents, 2)
}

func TestGlossary(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	for _, w := range []string{"apple", "apricot", "avocado", "banana"} {
		insertEntry(t, storage, "english", w, w)
	}
	insertEntry(t, storage, "french", "abricot", "abricot")

	initials, err := storage.GetInitials(ctx, "english")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, initials)

	words, total, err := storage.GetGlossaryWords(ctx, "english", "a", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, words, 2)
	assert.Equal(t, types.Strings{"apple"}, words[0].Content)
	assert.Equal(t, types.Strings{"apricot"}, words[1].Content)

	words, total, err = storage.GetGlossaryWords(ctx, "english", "z", 0, 2)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, words)
}

func TestGetAllWords(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	insertEntry(t, storage, "english", "colour", "colour", "color")
	insertEntry(t, storage, "english", "book", "book")
	insertEntry(t, storage, "french", "livr", "livre")

	words, err := storage.GetAllWords(ctx, "english")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"colour", "color", "book"}, words)
}

func TestSuggestWords(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	insertEntry(t, storage, "english", "book", "book")
	insertEntry(t, storage, "english", "bookshelf", "bookshelf")
	insertEntry(t, storage, "english", "cat", "cat")

	words, err := storage.SuggestWords(ctx, "english", `"boo"*`, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"book", "bookshelf"}, words)

	words, err = storage.SuggestWords(ctx, "english", `"boo"*`, 1)
	require.NoError(t, err)
	assert.Len(t, words, 1)
}

func TestEntryTokens(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		insertEntry(t, storage, "english", "", fmt.Sprintf("word%d", i))
	}
	insertEntry(t, storage, "french", "", "mot")

	var all []EntryTokens
	var after int64
	for {
		page, err := storage.ListEntryTokens(ctx, "english", after, 2)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		after = page[len(page)-1].ID
	}
	require.Len(t, all, 5)

	require.NoError(t, storage.UpdateEntryTokens(ctx, all[0].ID, "word"))
	res, total, err := storage.Search(ctx, SearchParams{Lang: "english", FTSQuery: `"word"`})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, all[0].ID, res[0].ID)

	assert.ErrorIs(t, storage.UpdateEntryTokens(ctx, 999, "x"), ErrNotFound)
}

func TestSubmissions(t *testing.T) {
	ctx := context.Background()

	newSubmission := func(t *testing.T, storage *SQLiteStorage) (int64, *types.Entry) {
		existing := insertEntry(t, storage, "french", "livr", "livre")
		sub := &types.Entry{
			Content: types.Strings{"tome"},
			Lang:    "english",
			Tokens:  "tome",
			Relations: []types.Relation{
				{Types: types.Strings{"noun"}, Entry: types.Entry{ID: existing.ID}},
				{Types: types.Strings{"noun"}, Entry: types.Entry{Content: types.Strings{"volume"}, Lang: "french", Tokens: "volum"}},
			},
		}
		id, err := storage.InsertSubmission(ctx, sub)
		require.NoError(t, err)
		return id, existing
	}

	t.Run("pending until approved", func(t *testing.T) {
		storage := setupTestDB(t)
		id, _ := newSubmission(t, storage)

		pending, total, err := storage.GetPendingEntries(ctx, "", 0, 10)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, pending, 2)

		_, total, err = storage.Search(ctx, SearchParams{Lang: "english", FTSQuery: `"tome"`})
		require.NoError(t, err)
		assert.Zero(t, total)

		require.NoError(t, storage.ApproveSubmission(ctx, id))

		_, total, err = storage.Search(ctx, SearchParams{Lang: "english", FTSQuery: `"tome"`})
		require.NoError(t, err)
		assert.Equal(t, 1, total)

		rows, err := storage.LoadRelations(ctx, []int64{id}, types.RelationsQuery{Status: types.StatusEnabled})
		require.NoError(t, err)
		assert.Len(t, rows, 2)

		_, total, err = storage.GetPendingEntries(ctx, "", 0, 10)
		require.NoError(t, err)
		assert.Zero(t, total)

		assert.ErrorIs(t, storage.ApproveSubmission(ctx, id), ErrNotFound)
	})

	t.Run("reject removes pending data only", func(t *testing.T) {
		storage := setupTestDB(t)
		id, existing := newSubmission(t, storage)

		require.NoError(t, storage.RejectSubmission(ctx, id))

		_, err := storage.GetEntry(ctx, id, "")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = storage.GetEntry(ctx, existing.ID, "")
		assert.NoError(t, err)

		stats, err := storage.GetStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Entries)
		assert.Zero(t, stats.Relations)
	})

	t.Run("delete all pending", func(t *testing.T) {
		storage := setupTestDB(t)
		newSubmission(t, storage)
		require.NoError(t, storage.InsertComment(ctx, &types.Comment{FromGUID: "a", Comments: "typo"}))

		require.NoError(t, storage.DeleteAllPending(ctx))

		stats, err := storage.GetStats(ctx)
		require.NoError(t, err)
		assert.Zero(t, stats.Pending)
		comments, err := storage.GetComments(ctx)
		require.NoError(t, err)
		assert.Empty(t, comments)
	})
}

func TestComments(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	c := &types.Comment{FromGUID: "g1", ToGUID: "g2", Comments: "wrong gender"}
	require.NoError(t, storage.InsertComment(ctx, c))
	assert.Greater(t, c.ID, int64(0))

	comments, err := storage.GetComments(ctx)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "wrong gender", comments[0].Comments)

	require.NoError(t, storage.DeleteComment(ctx, c.ID))
	assert.ErrorIs(t, storage.DeleteComment(ctx, c.ID), ErrNotFound)
}

func TestGetStats(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	a := insertEntry(t, storage, "english", "book", "book")
	b := insertEntry(t, storage, "french", "livr", "livre")
	_, err := storage.InsertRelation(ctx, a.ID, b.ID, &types.Relation{})
	require.NoError(t, err)

	stats, err := storage.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, 1, stats.Relations)
	assert.Equal(t, map[string]int{"english": 1, "french": 1}, stats.Languages)
}

func TestBeginTx_CommitRollback(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	// Rollback
	tx, err := storage.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.InsertEntry(ctx, &types.Entry{Content: types.Strings{"gone"}, Lang: "english", Tokens: "gone"})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	stats, err := storage.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)

	// Commit
	tx, err = storage.BeginTx(ctx)
	require.NoError(t, err)
	id, err := tx.InsertEntry(ctx, &types.Entry{Content: types.Strings{"kept"}, Lang: "english", Tokens: "kept"})
	require.NoError(t, err)
	require.NoError(t, tx.ReorderRelations(ctx, []int64{}))
	require.NoError(t, tx.Commit())

	_, err = storage.GetEntry(ctx, id, "")
	assert.NoError(t, err)

	// Nested
	tx, err = storage.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	_, err = tx.BeginTx(ctx)
	assert.Error(t, err)
}
