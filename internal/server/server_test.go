package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunacore/luna/internal/orchestrator"
	"github.com/lunacore/luna/pkg/llmclient"
)

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

func newTestServer(t *testing.T) (*Server, *handlers) {
	t.Helper()
	backend := stubChatServer(t, "hello there")
	t.Cleanup(backend.Close)

	client := llmclient.New(backend.URL, "test-model")
	o, err := orchestrator.New(orchestrator.Config{StateDir: t.TempDir(), LLM: client})
	require.NoError(t, err)

	s, err := New(Config{Orchestrator: o, Name: "luna-test"})
	require.NoError(t, err)
	return s, &handlers{orch: o, name: "luna-test"}
}

func TestHandlers_Healthz(t *testing.T) {
	_, h := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.healthz(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestHandlers_Info(t *testing.T) {
	_, h := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/info", nil)
	rec := httptest.NewRecorder()
	h.info(rec, req)

	var body infoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "luna-test", body.Name)
}

func TestHandlers_Chat(t *testing.T) {
	_, h := newTestServer(t)

	payload, _ := json.Marshal(chatRequest{Text: "hello", SessionID: "s1"})
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.chat(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Tier)
}

func TestHandlers_Chat_RejectsEmptyText(t *testing.T) {
	_, h := newTestServer(t)

	payload, _ := json.Marshal(chatRequest{Text: ""})
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.chat(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
