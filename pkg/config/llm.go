// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"time"
)

// LLMConfig configures a classic chat-completions backend, matching
// llmclient.Config one-to-one so callers can build a *llmclient.Client
// directly from it.
type LLMConfig struct {
	// BaseURL is the backend's API root (e.g. "http://localhost:1234/v1").
	BaseURL string `yaml:"base_url,omitempty"`

	// APIKey is sent as a bearer token, if set. Supports ${VAR} expansion.
	APIKey string `yaml:"api_key,omitempty"`

	// Model is the model identifier sent with each request.
	Model string `yaml:"model,omitempty"`

	// TimeoutSeconds bounds a single HTTP call. Default: 30.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`

	// MaxRetries bounds retry attempts on transient failures. Default: 3.
	MaxRetries int `yaml:"max_retries,omitempty"`
}

// SetDefaults applies default values.
func (c *LLMConfig) SetDefaults() {
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 30
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

// Validate checks the LLM configuration.
func (c *LLMConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must be non-negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	return nil
}

// Timeout returns TimeoutSeconds as a time.Duration.
func (c *LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
