package observability

import (
	"context"
	"sync"
	"time"
)

var (
	globalMetrics Metrics
	metricsMu     sync.RWMutex
)

// Metrics is Luna's observability surface: the governor's tier/age/karma
// lifecycle counters, the token-cost and karma-delta distributions, the live
// pool gauges, plus the ambient LLM and HTTP instruments. GetGlobalMetrics
// falls back to a no-op implementation when nothing has been wired.
type Metrics interface {
	// RecordRequest records a request classified at the given RVC tier.
	RecordRequest(ctx context.Context, tier string)

	// RecordAgeUp records a generation age-up.
	RecordAgeUp(ctx context.Context)

	// RecordRegression records an age regression.
	RecordRegression(ctx context.Context)

	// RecordGenerationalDeath records a generation dying from karma exhaustion.
	RecordGenerationalDeath(ctx context.Context)

	// RecordGenerationalSuccess records a generation succeeding to the next.
	RecordGenerationalSuccess(ctx context.Context)

	// RecordCFIASplit records a lesson shard split.
	RecordCFIASplit(ctx context.Context)

	// RecordTokenCost observes a per-response token cost.
	RecordTokenCost(ctx context.Context, tokens int)

	// RecordKarmaDelta observes a per-response karma delta.
	RecordKarmaDelta(ctx context.Context, delta float64)

	// SetTokenPool sets the current token pool gauge.
	SetTokenPool(value float64)

	// SetKarmaPool sets the current karma pool gauge.
	SetKarmaPool(value float64)

	// RecordLLMCall records an LLM completion call.
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)

	// RecordHTTPRequest records an HTTP request.
	RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration, responseSize int)
}

// SetGlobalMetrics installs m as the process-wide metrics recorder.
func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics returns the process-wide metrics recorder, or a no-op
// implementation if none has been installed.
func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	if globalMetrics == nil {
		return NoopMetrics{}
	}
	return globalMetrics
}
