package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/embedsearch-go/pkg/storage"
	sqliteStore "github.com/oceanbase/embedsearch-go/pkg/storage/sqlite"
)

func setupSQLiteTest(t *testing.T) storage.CorpusStore {
	t.Helper()

	store, err := sqliteStore.NewClient(&sqliteStore.Config{
		DBPath: filepath.Join(t.TempDir(), "nested", "corpus.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func perfumeRecords() []*storage.Record {
	return []*storage.Record{
		{ID: 1, Position: 0, Label: "Brand A", Text: "fresh citrus", Embedding: []float64{0.1, 0.2, 0.3}},
		{ID: 2, Position: 1, Label: "Brand B", Text: "floral scents", Embedding: []float64{0.30000000000000004, -1e-7, 5}},
		{ID: 3, Position: 2, Label: "Brand C", Text: "dry and woody", Embedding: []float64{1, 0, 0}},
	}
}

func TestSQLiteClient_SaveLoad(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "perfumes", perfumeRecords()))

	loaded, err := store.Load(ctx, "perfumes")
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	for i, r := range loaded {
		want := perfumeRecords()[i]
		assert.Equal(t, want.ID, r.ID)
		assert.Equal(t, "perfumes", r.Corpus)
		assert.Equal(t, i, r.Position)
		assert.Equal(t, want.Label, r.Label)
		assert.Equal(t, want.Text, r.Text)
		assert.Equal(t, want.Embedding, r.Embedding)
		assert.False(t, r.CreatedAt.IsZero())
	}
}

func TestSQLiteClient_SaveReplaces(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "perfumes", perfumeRecords()))
	require.NoError(t, store.Save(ctx, "perfumes", []*storage.Record{
		{ID: 10, Position: 0, Label: "Brand Z", Text: "iron", Embedding: []float64{0, 1}},
	}))

	loaded, err := store.Load(ctx, "perfumes")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "Brand Z", loaded[0].Label)
}

func TestSQLiteClient_LoadOrdersByPosition(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	records := perfumeRecords()
	shuffled := []*storage.Record{records[2], records[0], records[1]}
	require.NoError(t, store.Save(ctx, "perfumes", shuffled))

	loaded, err := store.Load(ctx, "perfumes")
	require.NoError(t, err)
	assert.Equal(t, "Brand A", loaded[0].Label)
	assert.Equal(t, "Brand B", loaded[1].Label)
	assert.Equal(t, "Brand C", loaded[2].Label)
}

func TestSQLiteClient_NotFound(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	_, err := store.Load(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrCorpusNotFound)

	err = store.Delete(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrCorpusNotFound)
}

func TestSQLiteClient_ListAndDelete(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, store.Save(ctx, "perfumes", perfumeRecords()))
	require.NoError(t, store.Save(ctx, "products", []*storage.Record{
		{ID: 20, Position: 0, Label: "tee", Text: "cotton tee", Embedding: []float64{1}},
	}))

	names, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"perfumes", "products"}, names)

	require.NoError(t, store.Delete(ctx, "perfumes"))
	names, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"products"}, names)
}
