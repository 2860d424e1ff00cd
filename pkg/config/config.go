// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config provides configuration loading and management for Luna.
//
// Luna is config-first: the inference backend, the arbiter's judge backend,
// persistence, and the economy's tuning knobs are defined in YAML and the
// runtime builds the orchestrator from it.
//
// Example config:
//
//	version: "1"
//	name: my-luna
//
//	llm:
//	  base_url: http://localhost:1234/v1
//	  model: local-model
//
//	state_dir: .luna/state
//
//	server:
//	  port: 8080
package config

import (
	"fmt"

	"github.com/lunacore/luna/pkg/observability"
)

// Config is the root configuration structure.
type Config struct {
	// Version of the config schema (e.g., "1").
	Version string `yaml:"version,omitempty"`

	// Name of this configuration (for logging/display).
	Name string `yaml:"name,omitempty"`

	// LLM is the main completion backend.
	LLM *LLMConfig `yaml:"llm,omitempty"`

	// ArbiterLLM grades responses against a gold standard; defaults to LLM
	// when nil, matching the reference single-backend deployment.
	ArbiterLLM *LLMConfig `yaml:"arbiter_llm,omitempty"`

	// StateDir holds existential_state.json, cfia_state.json, and the
	// lessons/ shard directory.
	StateDir string `yaml:"state_dir,omitempty"`

	// Budget tunes the existential token/karma economy.
	Budget *BudgetConfig `yaml:"budget,omitempty"`

	// Server configures the optional HTTP surface.
	Server ServerConfig `yaml:"server,omitempty"`

	// Logger configures logging behavior.
	Logger *LoggerConfig `yaml:"logger,omitempty"`

	// RateLimiting configures outbound-call admission limiting.
	RateLimiting *RateLimitConfig `yaml:"rate_limiting,omitempty"`

	// Observability configures Prometheus metrics and OpenTelemetry tracing
	// for the governor loop. Metrics are enabled by default.
	Observability *observability.Config `yaml:"observability,omitempty"`
}

// BudgetConfig exposes the existential economy's commonly-tuned knobs. It is
// overlaid onto budget.DefaultParams() rather than mirroring every field of
// budget.Params 1:1 — most of that struct (investment-tier token costs,
// quality thresholds) is a deliberate architectural constant, not an
// operator-facing dial.
type BudgetConfig struct {
	// BaseTokenPool is the starting/regenerating token pool size.
	BaseTokenPool int `yaml:"base_token_pool,omitempty"`

	// BaseKarmaQuota is the starting karma quota for a new generation.
	BaseKarmaQuota float64 `yaml:"base_karma_quota,omitempty"`

	// AgeRegressionEnabled toggles the age-regression penalty on low-quality
	// responses.
	AgeRegressionEnabled *bool `yaml:"age_regression_enabled,omitempty"`
}

// NewZeroConfig synthesizes a complete, already-defaulted Config from just an
// LLM backend, for quick local runs without a YAML file (e.g. `luna chat
// --llm-url ... --llm-model ...`).
func NewZeroConfig(llmURL, llmModel string) *Config {
	cfg := &Config{LLM: &LLMConfig{BaseURL: llmURL, Model: llmModel}}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults applies default values to the config.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1"
	}
	if c.LLM == nil {
		c.LLM = &LLMConfig{}
	}
	c.LLM.SetDefaults()

	if c.ArbiterLLM != nil {
		c.ArbiterLLM.SetDefaults()
	}

	if c.StateDir == "" {
		c.StateDir = ".luna/state"
	}

	if c.Budget == nil {
		c.Budget = &BudgetConfig{}
	}

	c.Server.SetDefaults()

	if c.Logger == nil {
		c.Logger = &LoggerConfig{}
	}
	c.Logger.SetDefaults()

	if c.RateLimiting != nil {
		c.RateLimiting.SetDefaults()
	}

	if c.Observability == nil {
		c.Observability = &observability.Config{Metrics: observability.MetricsConfig{Enabled: true}}
	}
	c.Observability.SetDefaults()
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.LLM != nil {
		if err := c.LLM.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("llm: %v", err))
		}
	} else {
		errs = append(errs, "llm is required")
	}

	if c.ArbiterLLM != nil {
		if err := c.ArbiterLLM.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("arbiter_llm: %v", err))
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server: %v", err))
	}

	if c.Logger != nil {
		if err := c.Logger.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("logger: %v", err))
		}
	}

	if c.RateLimiting != nil {
		if err := c.RateLimiting.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("rate_limiting: %v", err))
		}
	}

	if c.Observability != nil {
		if err := c.Observability.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("observability: %v", err))
		}
	}

	if len(errs) > 0 {
		msg := "configuration errors:"
		for _, e := range errs {
			msg += "\n  - " + e
		}
		return fmt.Errorf("%s", msg)
	}

	return nil
}

// BoolPtr returns a pointer to b, for optional boolean config fields.
func BoolPtr(b bool) *bool {
	return &b
}

// BoolValue dereferences an optional boolean config field, returning def
// when the pointer is nil.
func BoolValue(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
