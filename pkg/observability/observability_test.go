package observability

import (
	"context"
	"testing"
	"time"
)

func TestNewMetrics_DisabledReturnsNil(t *testing.T) {
	m, err := NewMetrics(&MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Fatal("expected nil metrics when disabled")
	}
}

func TestPrometheusMetrics_RecordsGovernorEvents(t *testing.T) {
	ctx := context.Background()
	m, err := NewMetrics(&MetricsConfig{Enabled: true, Namespace: "luna_test_governor"})
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	m.RecordRequest(ctx, "moderate")
	m.RecordAgeUp(ctx)
	m.RecordRegression(ctx)
	m.RecordGenerationalDeath(ctx)
	m.RecordGenerationalSuccess(ctx)
	m.RecordCFIASplit(ctx)
	m.RecordTokenCost(ctx, 12)
	m.RecordKarmaDelta(ctx, -0.5)
	m.SetTokenPool(150)
	m.SetKarmaPool(42)
	m.RecordLLMCall(ctx, "local-model", 50*time.Millisecond, 30, 10, nil)
	m.RecordHTTPRequest(ctx, "POST", "/chat", 200, 10*time.Millisecond, 256)
}

func TestNilMetrics_IsSafe(t *testing.T) {
	ctx := context.Background()
	var m *PrometheusMetrics

	m.RecordRequest(ctx, "low")
	m.RecordAgeUp(ctx)
	m.RecordLLMCall(ctx, "x", time.Millisecond, 0, 0, nil)
	m.SetTokenPool(0)
}

func TestGlobalMetrics_DefaultsToNoop(t *testing.T) {
	ctx := context.Background()

	metrics := GetGlobalMetrics()
	if metrics == nil {
		t.Fatal("expected a non-nil no-op recorder by default")
	}
	metrics.RecordRequest(ctx, "low")
}

func TestGlobalMetrics_SetAndGet(t *testing.T) {
	ctx := context.Background()
	m, err := NewMetrics(&MetricsConfig{Enabled: true, Namespace: "luna_test_global"})
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	SetGlobalMetrics(m)
	defer SetGlobalMetrics(nil)

	retrieved := GetGlobalMetrics()
	retrieved.RecordRequest(ctx, "critical")
}
