package lesson

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_AppendAndLoadShard(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	l := New("file_1", "hi", "hello", "Hi there!", 0.8, 1.0, []string{"greeting"}, time.Now())

	require.NoError(t, store.AppendLesson(ctx, "file_1", l))

	loaded, err := store.LoadShard(ctx, "file_1")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "hi", loaded[0].OriginalPrompt)
	assert.Equal(t, "file_1", loaded[0].ShardID)
}

func TestFileStore_LoadMissingShardReturnsEmpty(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	loaded, err := store.LoadShard(context.Background(), "file_404")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestFileStore_DeleteShardRemovesFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.AppendLesson(ctx, "file_1", New("file_1", "a", "b", "c", 0.5, 0.0, nil, time.Now())))
	require.NoError(t, store.DeleteShard(ctx, "file_1"))

	_, err = os.Stat(filepath.Join(dir, "file_1.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_AllLessonsAcrossShards(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.AppendLesson(ctx, "file_1", New("file_1", "a", "b", "c", 0.5, 0.0, nil, time.Now())))
	require.NoError(t, store.AppendLesson(ctx, "file_2", New("file_2", "x", "y", "z", 0.5, 0.0, nil, time.Now())))

	all, err := store.AllLessons(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
