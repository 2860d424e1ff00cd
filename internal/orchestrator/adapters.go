// Package orchestrator wires the Response Value Classifier, Existential
// Budget, Three-Layer Inference Controller, Arbiter, and CFIA into the
// single per-request control flow.
package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lunacore/luna/pkg/llmclient"
)

// llmGoldStandard generates a reference answer by asking the configured
// backend to answer the original prompt as well as it can, independent of
// the response actually given.
type llmGoldStandard struct {
	client *llmclient.Client
}

func (g *llmGoldStandard) Generate(ctx context.Context, userPrompt, response string) (string, error) {
	req := llmclient.Request{
		Messages: []llmclient.Message{
			{Role: "system", Content: "Answer the following question as well as you possibly can. Give only the answer, no preamble."},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens: 300,
	}
	resp, err := g.client.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate gold standard: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// llmJudge scores a response against a gold standard by asking the backend
// to grade similarity/quality on a 0-10 scale and normalizing to [0, 1].
type llmJudge struct {
	client *llmclient.Client
}

func (j *llmJudge) Score(ctx context.Context, response, goldStandard string) (float64, error) {
	req := llmclient.Request{
		Messages: []llmclient.Message{
			{Role: "system", Content: "You grade how well a candidate answer matches a reference answer in meaning and helpfulness. Reply with a single integer from 0 to 10 and nothing else."},
			{Role: "user", Content: fmt.Sprintf("Reference answer:\n%s\n\nCandidate answer:\n%s\n\nScore (0-10):", goldStandard, response)},
		},
		MaxTokens: 8,
	}
	resp, err := j.client.Complete(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("judge quality: %w", err)
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, resp.Content)
	if digits == "" {
		return 0, fmt.Errorf("judge response had no numeric grade: %q", resp.Content)
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("parse judge grade: %w", err)
	}
	if n > 10 {
		n = 10
	}
	return float64(n) / 10.0, nil
}

// noZones reports that no emergence zone is ever active, the conservative
// default when no trait/novelty detector is configured.
type noZones struct{}

func (noZones) ActiveZone() (string, bool) { return "", false }
