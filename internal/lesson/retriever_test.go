package lesson

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagOverlapRetriever_PicksHighestOverlap(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, store.AppendLesson(ctx, "file_1",
		New("file_1", "hi", "hello", "Hi there!", 0.8, 1.0, []string{"greeting"}, now.Add(-time.Hour))))
	require.NoError(t, store.AppendLesson(ctx, "file_1",
		New("file_1", "explain ml", "...", "...", 0.8, 1.0, []string{"technical", "greeting"}, now)))

	retriever := NewTagOverlapRetriever(store)
	got, ok, err := retriever.Retrieve(ctx, "hello there and also some technical ml question", []string{"greeting", "technical"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "explain ml", got.OriginalPrompt)
}

func TestTagOverlapRetriever_TiesPreferMostRecent(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, store.AppendLesson(ctx, "file_1",
		New("file_1", "older", "r", "g", 0.5, 0.0, []string{"greeting"}, now.Add(-time.Hour))))
	require.NoError(t, store.AppendLesson(ctx, "file_1",
		New("file_1", "newer", "r", "g", 0.5, 0.0, []string{"greeting"}, now)))

	retriever := NewTagOverlapRetriever(store)
	got, ok, err := retriever.Retrieve(ctx, "hi", []string{"greeting"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "newer", got.OriginalPrompt)
}

func TestTagOverlapRetriever_NoOverlapReturnsNotFound(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.AppendLesson(ctx, "file_1", New("file_1", "a", "b", "c", 0.5, 0.0, []string{"food"}, time.Now())))

	retriever := NewTagOverlapRetriever(store)
	_, ok, err := retriever.Retrieve(ctx, "completely unrelated", []string{"technical"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTagOverlapRetriever_EmptyStoreReturnsNotFound(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	retriever := NewTagOverlapRetriever(store)
	_, ok, err := retriever.Retrieve(context.Background(), "hi", []string{"greeting"})
	require.NoError(t, err)
	assert.False(t, ok)
}
