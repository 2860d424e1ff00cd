package server

import (
	"encoding/json"
	"net/http"

	"github.com/lunacore/luna/internal/orchestrator"
)

type handlers struct {
	orch *orchestrator.Orchestrator
	name string
}

type chatRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	Text            string  `json:"text"`
	Tier            string  `json:"tier"`
	ShouldRespond   bool    `json:"should_respond"`
	Degraded        bool    `json:"degraded"`
	ResourceState   string  `json:"resource_state"`
	TokensRemaining int     `json:"tokens_remaining"`
	KarmaPool       float64 `json:"karma_pool"`
	Reasoning       string  `json:"reasoning,omitempty"`
}

func (h *handlers) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	resp, err := h.orch.Handle(r.Context(), orchestrator.Request{
		UserText:  req.Text,
		SessionID: req.SessionID,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Text:            resp.Text,
		Tier:            string(resp.Tier),
		ShouldRespond:   resp.ShouldRespond,
		Degraded:        resp.Degraded,
		ResourceState:   string(resp.ResourceState),
		TokensRemaining: resp.TokensRemaining,
		KarmaPool:       resp.KarmaPool,
		Reasoning:       resp.Reasoning,
	})
}

type infoResponse struct {
	Name              string  `json:"name"`
	Age               int     `json:"age"`
	TokenPool         int     `json:"token_pool"`
	MaxTokenPool      int     `json:"max_token_pool"`
	Karma             float64 `json:"karma"`
	KarmaQuota        float64 `json:"karma_quota"`
	Generation        int     `json:"generation"`
	KarmaPool         float64 `json:"karma_pool"`
	TotalFiles        int     `json:"total_files"`
	ShadowRecords     int     `json:"shadow_records"`
	EmpathyChoices    int     `json:"empathy_choices"`
	EfficiencyChoices int     `json:"efficiency_choices"`
}

func (h *handlers) info(w http.ResponseWriter, r *http.Request) {
	budgetState := h.orch.BudgetState()
	cfiaState := h.orch.CFIAState()
	shadow := h.orch.ShadowScoreReport()

	writeJSON(w, http.StatusOK, infoResponse{
		Name:              h.name,
		Age:               budgetState.Age,
		TokenPool:         budgetState.CurrentTokenPool,
		MaxTokenPool:      budgetState.MaxTokenPool,
		Karma:             budgetState.CurrentKarma,
		KarmaQuota:        budgetState.KarmaQuota,
		Generation:        cfiaState.AIIQ,
		KarmaPool:         cfiaState.KarmaPool,
		TotalFiles:        cfiaState.TotalFiles,
		ShadowRecords:     shadow.TotalRecords,
		EmpathyChoices:    shadow.EmpathyChoices,
		EfficiencyChoices: shadow.EfficiencyChoices,
	})
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
