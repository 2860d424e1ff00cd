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

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_SetDefaults(t *testing.T) {
	c := &Config{}
	c.SetDefaults()

	assert.Equal(t, "1", c.Version)
	require.NotNil(t, c.LLM)
	assert.Equal(t, 30, c.LLM.TimeoutSeconds)
	assert.Equal(t, 3, c.LLM.MaxRetries)
	assert.Equal(t, ".luna/state", c.StateDir)
	require.NotNil(t, c.Budget)
	assert.Equal(t, "127.0.0.1", c.Server.Host)
	assert.Equal(t, 8080, c.Server.Port)
	require.NotNil(t, c.Logger)
	assert.Nil(t, c.ArbiterLLM, "arbiter defaults to the main LLM when unset, not a zero-value struct")
}

func TestNewZeroConfig(t *testing.T) {
	c := NewZeroConfig("http://localhost:1234/v1", "local-model")

	require.NotNil(t, c.LLM)
	assert.Equal(t, "http://localhost:1234/v1", c.LLM.BaseURL)
	assert.Equal(t, "local-model", c.LLM.Model)
	assert.NoError(t, c.Validate(), "a zero-config Config should already be valid")
}

func TestConfig_Validate_RequiresLLM(t *testing.T) {
	c := &Config{}
	c.SetDefaults()
	c.LLM.BaseURL = ""

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm")
}

func TestConfig_Validate_OK(t *testing.T) {
	c := &Config{
		LLM: &LLMConfig{BaseURL: "http://localhost:1234/v1", Model: "local-model"},
	}
	c.SetDefaults()

	assert.NoError(t, c.Validate())
}

func TestConfig_Validate_RateLimitingRequiresLimits(t *testing.T) {
	c := &Config{
		LLM:          &LLMConfig{BaseURL: "http://localhost:1234/v1", Model: "local-model"},
		RateLimiting: &RateLimitConfig{Enabled: BoolPtr(true), Limits: nil},
	}

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limiting")
}

func TestBoolPtrAndValue(t *testing.T) {
	assert.True(t, BoolValue(BoolPtr(true), false))
	assert.False(t, BoolValue(nil, false))
	assert.True(t, BoolValue(nil, true))
}

func TestLLMConfig_Validate(t *testing.T) {
	c := &LLMConfig{}
	c.SetDefaults()

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")

	c.BaseURL = "http://localhost:1234/v1"
	err = c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model")

	c.Model = "local-model"
	assert.NoError(t, c.Validate())
}

func TestLLMConfig_Timeout(t *testing.T) {
	c := &LLMConfig{TimeoutSeconds: 45}
	assert.Equal(t, 45e9, float64(c.Timeout()))
}

func TestServerConfig_Validate(t *testing.T) {
	c := &ServerConfig{Port: 70000}
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")

	c.Port = 8080
	assert.NoError(t, c.Validate())

	c.TLS = &TLSConfig{Enabled: BoolPtr(true)}
	err = c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cert_file")

	c.TLS.CertFile = "cert.pem"
	c.TLS.KeyFile = "key.pem"
	assert.NoError(t, c.Validate())
}

func TestServerConfig_Address(t *testing.T) {
	c := &ServerConfig{Host: "0.0.0.0", Port: 9090}
	assert.Equal(t, "0.0.0.0:9090", c.Address())
}
