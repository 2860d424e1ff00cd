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

package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics is the Prometheus-backed instrument set for Luna's
// governor loop: requests by RVC tier, budget/CFIA lifecycle events, the
// per-response token-cost and karma-delta distributions, and the live token
// and karma pool gauges.
type PrometheusMetrics struct {
	config   *MetricsConfig
	registry *prometheus.Registry

	requestsByTier *prometheus.CounterVec
	ageUps         prometheus.Counter
	regressions    prometheus.Counter

	generationalDeaths   prometheus.Counter
	generationalSuccess  prometheus.Counter
	cfiaSplits           prometheus.Counter

	tokenCost  prometheus.Histogram
	karmaDelta prometheus.Histogram

	tokenPool prometheus.Gauge
	karmaPool prometheus.Gauge

	llmCalls        *prometheus.CounterVec
	llmCallDuration *prometheus.HistogramVec
	llmTokensInput  *prometheus.CounterVec
	llmTokensOutput *prometheus.CounterVec
	llmErrors       *prometheus.CounterVec

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	httpResponseSize *prometheus.HistogramVec
}

// NewMetrics creates a new PrometheusMetrics instance from configuration,
// registering its instruments onto prometheus.DefaultRegisterer so the
// server's existing promhttp.Handler() route picks them up with no further
// wiring. Returns nil, nil if metrics are disabled.
func NewMetrics(cfg *MetricsConfig) (*PrometheusMetrics, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	cfg.SetDefaults()

	m := &PrometheusMetrics{config: cfg}
	m.init()
	return m, nil
}

func (m *PrometheusMetrics) init() {
	m.requestsByTier = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "rvc",
			Name:      "requests_total",
			Help:      "Total number of requests classified by RVC tier",
		},
		[]string{"tier"},
	)

	m.ageUps = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "budget",
		Name:      "age_ups_total",
		Help:      "Total number of generation age-ups",
	})

	m.regressions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "budget",
		Name:      "regressions_total",
		Help:      "Total number of age regressions from low-quality responses",
	})

	m.generationalDeaths = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "cfia",
		Name:      "generational_deaths_total",
		Help:      "Total number of generations that died from karma exhaustion",
	})

	m.generationalSuccess = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "cfia",
		Name:      "generational_successes_total",
		Help:      "Total number of generations that succeeded to the next generation",
	})

	m.cfiaSplits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "cfia",
		Name:      "shard_splits_total",
		Help:      "Total number of lesson shard splits",
	})

	m.tokenCost = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.config.Namespace,
		Subsystem: "inference",
		Name:      "token_cost",
		Help:      "Per-response token cost charged against the token pool",
		Buckets:   prometheus.LinearBuckets(0, 10, 10),
	})

	m.karmaDelta = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.config.Namespace,
		Subsystem: "arbiter",
		Name:      "karma_delta",
		Help:      "Per-response karma delta awarded by the arbiter",
		Buckets:   prometheus.LinearBuckets(-5, 1, 11),
	})

	m.tokenPool = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.config.Namespace,
		Subsystem: "budget",
		Name:      "token_pool",
		Help:      "Current size of the existential token pool",
	})

	m.karmaPool = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.config.Namespace,
		Subsystem: "budget",
		Name:      "karma_pool",
		Help:      "Current size of the generation's karma pool",
	})

	m.llmCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Total number of LLM completion calls",
		},
		[]string{"model"},
	)

	m.llmCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "LLM completion call duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"model"},
	)

	m.llmTokensInput = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "llm",
			Name:      "tokens_input_total",
			Help:      "Total number of input tokens sent",
		},
		[]string{"model"},
	)

	m.llmTokensOutput = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "llm",
			Name:      "tokens_output_total",
			Help:      "Total number of completion tokens generated",
		},
		[]string{"model"},
	)

	m.llmErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "llm",
			Name:      "errors_total",
			Help:      "Total number of LLM completion errors",
		},
		[]string{"model"},
	)

	m.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.httpResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 7),
		},
		[]string{"method", "path"},
	)

	reg := prometheus.WrapRegistererWithPrefix("", prometheus.DefaultRegisterer)
	reg.MustRegister(
		m.requestsByTier, m.ageUps, m.regressions,
		m.generationalDeaths, m.generationalSuccess, m.cfiaSplits,
		m.tokenCost, m.karmaDelta, m.tokenPool, m.karmaPool,
		m.llmCalls, m.llmCallDuration, m.llmTokensInput, m.llmTokensOutput, m.llmErrors,
		m.httpRequests, m.httpDuration, m.httpResponseSize,
	)
}

// RecordRequest records a single request classified at the given RVC tier.
func (m *PrometheusMetrics) RecordRequest(_ context.Context, tier string) {
	if m == nil {
		return
	}
	m.requestsByTier.WithLabelValues(tier).Inc()
}

// RecordAgeUp records a generation age-up event.
func (m *PrometheusMetrics) RecordAgeUp(_ context.Context) {
	if m == nil {
		return
	}
	m.ageUps.Inc()
}

// RecordRegression records an age-regression event.
func (m *PrometheusMetrics) RecordRegression(_ context.Context) {
	if m == nil {
		return
	}
	m.regressions.Inc()
}

// RecordGenerationalDeath records a generation dying from karma exhaustion.
func (m *PrometheusMetrics) RecordGenerationalDeath(_ context.Context) {
	if m == nil {
		return
	}
	m.generationalDeaths.Inc()
}

// RecordGenerationalSuccess records a generation succeeding to the next.
func (m *PrometheusMetrics) RecordGenerationalSuccess(_ context.Context) {
	if m == nil {
		return
	}
	m.generationalSuccess.Inc()
}

// RecordCFIASplit records a lesson shard split.
func (m *PrometheusMetrics) RecordCFIASplit(_ context.Context) {
	if m == nil {
		return
	}
	m.cfiaSplits.Inc()
}

// RecordTokenCost observes a per-response token cost.
func (m *PrometheusMetrics) RecordTokenCost(_ context.Context, tokens int) {
	if m == nil {
		return
	}
	m.tokenCost.Observe(float64(tokens))
}

// RecordKarmaDelta observes a per-response karma delta.
func (m *PrometheusMetrics) RecordKarmaDelta(_ context.Context, delta float64) {
	if m == nil {
		return
	}
	m.karmaDelta.Observe(delta)
}

// SetTokenPool sets the current token pool gauge.
func (m *PrometheusMetrics) SetTokenPool(value float64) {
	if m == nil {
		return
	}
	m.tokenPool.Set(value)
}

// SetKarmaPool sets the current karma pool gauge.
func (m *PrometheusMetrics) SetKarmaPool(value float64) {
	if m == nil {
		return
	}
	m.karmaPool.Set(value)
}

// RecordLLMCall records an LLM completion call.
func (m *PrometheusMetrics) RecordLLMCall(_ context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(model).Inc()
	m.llmCallDuration.WithLabelValues(model).Observe(duration.Seconds())
	m.llmTokensInput.WithLabelValues(model).Add(float64(inputTokens))
	m.llmTokensOutput.WithLabelValues(model).Add(float64(outputTokens))
	if err != nil {
		m.llmErrors.WithLabelValues(model).Inc()
	}
}

// RecordHTTPRequest records an HTTP request.
func (m *PrometheusMetrics) RecordHTTPRequest(_ context.Context, method, path string, statusCode int, duration time.Duration, responseSize int) {
	if m == nil {
		return
	}
	status := statusCodeLabel(statusCode)
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	if responseSize > 0 {
		m.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
	}
}

// statusCodeLabel converts a status code to a label string.
func statusCodeLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint,
// serving the same default registry the instruments above register onto.
func (m *PrometheusMetrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.Handler()
}
