package main

import (
	"context"
	"fmt"

	"github.com/lunacore/luna/internal/budget"
	"github.com/lunacore/luna/internal/orchestrator"
	"github.com/lunacore/luna/pkg/config"
	"github.com/lunacore/luna/pkg/llmclient"
	"github.com/lunacore/luna/pkg/observability"
	"github.com/lunacore/luna/pkg/ratelimit"
)

// buildOrchestrator assembles an orchestrator.Orchestrator from a loaded
// config.Config, wiring the LLM/Arbiter backends, budget overlay, observability,
// and optional rate limiter.
func buildOrchestrator(cfg *config.Config) (*orchestrator.Orchestrator, error) {
	if _, err := observability.NewManager(context.Background(), cfg.Observability); err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}

	client, err := newLLMClient(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}

	var arbiterClient *llmclient.Client
	if cfg.ArbiterLLM != nil {
		arbiterClient, err = newLLMClient(cfg.ArbiterLLM)
		if err != nil {
			return nil, fmt.Errorf("arbiter_llm: %w", err)
		}
	}

	params := budget.DefaultParams()
	if cfg.Budget != nil {
		if cfg.Budget.BaseTokenPool != 0 {
			params.BaseTokenPool = cfg.Budget.BaseTokenPool
		}
		if cfg.Budget.BaseKarmaQuota != 0 {
			params.BaseKarmaQuota = cfg.Budget.BaseKarmaQuota
		}
		if cfg.Budget.AgeRegressionEnabled != nil {
			params.AgeRegressionEnabled = *cfg.Budget.AgeRegressionEnabled
		}
	}

	limiter, err := buildRateLimiter(cfg)
	if err != nil {
		return nil, fmt.Errorf("rate_limiting: %w", err)
	}

	return orchestrator.New(orchestrator.Config{
		StateDir:     cfg.StateDir,
		BudgetParams: params,
		LLM:          client,
		ArbiterLLM:   arbiterClient,
		RateLimiter:  limiter,
	})
}

func newLLMClient(cfg *config.LLMConfig) (*llmclient.Client, error) {
	opts := []llmclient.Option{
		llmclient.WithTimeout(cfg.Timeout()),
		llmclient.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.APIKey != "" {
		opts = append(opts, llmclient.WithAPIKey(cfg.APIKey))
	}
	return llmclient.New(cfg.BaseURL, cfg.Model, opts...), nil
}

func buildRateLimiter(cfg *config.Config) (ratelimit.RateLimiter, error) {
	if cfg.RateLimiting == nil || !cfg.RateLimiting.IsEnabled() {
		return nil, nil
	}
	return ratelimit.NewRateLimiterFromConfig(cfg)
}
