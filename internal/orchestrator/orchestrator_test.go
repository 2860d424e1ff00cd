package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunacore/luna/pkg/llmclient"
	"github.com/lunacore/luna/pkg/ratelimit"
)

// stubChatServer answers every chat-completions call with a fixed reply,
// regardless of which messages were sent, so tests can exercise the full
// pipeline without a real backend.
func stubChatServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": reply}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
}

func newTestOrchestrator(t *testing.T, reply string) *Orchestrator {
	t.Helper()
	server := stubChatServer(t, reply)
	t.Cleanup(server.Close)

	client := llmclient.New(server.URL, "test-model")
	o, err := New(Config{StateDir: t.TempDir(), LLM: client})
	require.NoError(t, err)
	return o
}

func TestHandle_HappyPathReturnsResponseAndDebitsPool(t *testing.T) {
	o := newTestOrchestrator(t, "Hi there! I'm doing well, thanks for asking.")
	poolBefore := o.budget.State().CurrentTokenPool

	resp, err := o.Handle(context.Background(), Request{UserText: "hi there"})
	require.NoError(t, err)

	assert.True(t, resp.ShouldRespond)
	assert.False(t, resp.Degraded)
	assert.Equal(t, "Hi there! I'm doing well, thanks for asking.", resp.Text)
	assert.LessOrEqual(t, resp.TokensRemaining, poolBefore)
}

func TestHandle_PersistsStateAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	server := stubChatServer(t, "hello")
	defer server.Close()
	client := llmclient.New(server.URL, "test-model")

	o1, err := New(Config{StateDir: dir, LLM: client})
	require.NoError(t, err)
	_, err = o1.Handle(context.Background(), Request{UserText: "hi"})
	require.NoError(t, err)

	o2, err := New(Config{StateDir: dir, LLM: client})
	require.NoError(t, err)

	assert.Equal(t, o1.budget.State().CurrentTokenPool, o2.budget.State().CurrentTokenPool)
	assert.Equal(t, o1.cfia.State().TotalFiles, o2.cfia.State().TotalFiles)
}

func TestHandle_StoresLessonInShard(t *testing.T) {
	o := newTestOrchestrator(t, "Machine learning is a subset of AI.")

	_, err := o.Handle(context.Background(), Request{UserText: "explain machine learning"})
	require.NoError(t, err)

	all, err := o.lessons.AllLessons(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "explain machine learning", all[0].OriginalPrompt)
	assert.Contains(t, all[0].ContextTags, "technical")
}

func TestHandle_BackendFailureDegradesGracefully(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad request"}}`))
	}))
	defer server.Close()

	client := llmclient.New(server.URL, "test-model", llmclient.WithMaxRetries(0))
	o, err := New(Config{StateDir: t.TempDir(), LLM: client})
	require.NoError(t, err)

	resp, err := o.Handle(context.Background(), Request{UserText: "hi"})
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.NotEmpty(t, resp.Text)
}

func TestHandle_RepeatedRequestsDegradeTokenPool(t *testing.T) {
	o := newTestOrchestrator(t, "a reasonably detailed and thoughtful answer to your question about galaxies stars "+
		"planets nebulae comets asteroids quasars pulsars supernovae gravity radiation spacetime expansion")
	first := o.budget.State().CurrentTokenPool

	for i := 0; i < 5; i++ {
		_, err := o.Handle(context.Background(), Request{UserText: "tell me something interesting about the universe"})
		require.NoError(t, err)
	}

	assert.Less(t, o.budget.State().CurrentTokenPool, first)
}

func TestHandle_RateLimitedSessionSkipsBackendCall(t *testing.T) {
	server := stubChatServer(t, "should never be seen")
	defer server.Close()
	client := llmclient.New(server.URL, "test-model")

	limiter, err := ratelimit.NewRateLimiter(&ratelimit.Config{
		Enabled: true,
		Limits:  []ratelimit.LimitRule{{Type: ratelimit.LimitTypeCount, Window: ratelimit.WindowDay, Limit: 1}},
	}, ratelimit.NewMemoryStore())
	require.NoError(t, err)

	o, err := New(Config{StateDir: t.TempDir(), LLM: client, RateLimiter: limiter})
	require.NoError(t, err)

	// Limit is 1/day; the check allows current==limit, so it takes a second
	// successful call (pushing recorded usage past the limit) before the
	// third is denied admission.
	for i := 0; i < 2; i++ {
		resp, err := o.Handle(context.Background(), Request{UserText: "hi", SessionID: "s1"})
		require.NoError(t, err)
		assert.False(t, resp.Degraded)
	}

	blocked, err := o.Handle(context.Background(), Request{UserText: "hi again", SessionID: "s1"})
	require.NoError(t, err)
	assert.True(t, blocked.Degraded)
}
