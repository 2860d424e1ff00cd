package lesson

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLStore_AppendAndLoadShard(t *testing.T) {
	store, err := NewSQLStore(openTestDB(t), "sqlite")
	require.NoError(t, err)

	ctx := context.Background()
	l := New("file_1", "what is 7+5", "twelve", "12", 1.0, 2.0, []string{"technical"}, time.Now())
	require.NoError(t, store.AppendLesson(ctx, "file_1", l))

	loaded, err := store.LoadShard(ctx, "file_1")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "12", loaded[0].GoldStandard)
	assert.Equal(t, []string{"technical"}, loaded[0].ContextTags)
}

func TestSQLStore_WriteShardReplacesContents(t *testing.T) {
	store, err := NewSQLStore(openTestDB(t), "sqlite")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.AppendLesson(ctx, "file_1", New("file_1", "a", "b", "c", 0.5, 0.0, nil, time.Now())))

	replacement := []Lesson{
		New("file_1", "new1", "r1", "g1", 0.6, 0.1, nil, time.Now()),
		New("file_1", "new2", "r2", "g2", 0.7, 0.2, nil, time.Now()),
	}
	require.NoError(t, store.WriteShard(ctx, "file_1", replacement))

	loaded, err := store.LoadShard(ctx, "file_1")
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestSQLStore_DeleteShard(t *testing.T) {
	store, err := NewSQLStore(openTestDB(t), "sqlite")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.AppendLesson(ctx, "file_1", New("file_1", "a", "b", "c", 0.5, 0.0, nil, time.Now())))
	require.NoError(t, store.DeleteShard(ctx, "file_1"))

	loaded, err := store.LoadShard(ctx, "file_1")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestSQLStore_ShardIDsAndAllLessons(t *testing.T) {
	store, err := NewSQLStore(openTestDB(t), "sqlite")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.AppendLesson(ctx, "file_1", New("file_1", "a", "b", "c", 0.5, 0.0, nil, time.Now())))
	require.NoError(t, store.AppendLesson(ctx, "file_2", New("file_2", "x", "y", "z", 0.5, 0.0, nil, time.Now())))

	ids, err := store.ShardIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"file_1", "file_2"}, ids)

	all, err := store.AllLessons(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestNewSQLStore_RejectsUnknownDialect(t *testing.T) {
	_, err := NewSQLStore(openTestDB(t), "mongo")
	assert.Error(t, err)
}
