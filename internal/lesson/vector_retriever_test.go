package lesson

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorRetriever_FindsSimilarPrompt(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.AppendLesson(ctx, "file_1",
		New("file_1", "what is machine learning", "...", "Machine learning is a field of AI.", 0.8, 1.0, []string{"technical"}, time.Now())))

	vr, err := NewVectorRetriever(ctx, store, nil)
	require.NoError(t, err)

	got, ok, err := vr.Retrieve(ctx, "what is machine learning exactly", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Machine learning is a field of AI.", got.GoldStandard)
}

func TestVectorRetriever_FallsBackWhenEmpty(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.AppendLesson(ctx, "file_1",
		New("file_1", "hi there", "hello", "Hi there!", 0.8, 1.0, []string{"greeting"}, time.Now())))

	fallback := NewTagOverlapRetriever(store)

	emptyStore, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	vr, err := NewVectorRetriever(ctx, emptyStore, fallback)
	require.NoError(t, err)

	got, ok, err := vr.Retrieve(ctx, "hi there", []string{"greeting"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hi there", got.OriginalPrompt)
}

func TestVectorRetriever_IndexAddsNewLesson(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	vr, err := NewVectorRetriever(ctx, store, nil)
	require.NoError(t, err)

	l := New("file_1", "tell me about anxiety", "...", "Anxiety is a normal stress response.", 0.8, 1.0, []string{"emotional_support"}, time.Now())
	require.NoError(t, vr.Index(ctx, l))

	got, ok, err := vr.Retrieve(ctx, "tell me about anxiety", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Anxiety is a normal stress response.", got.GoldStandard)
}
