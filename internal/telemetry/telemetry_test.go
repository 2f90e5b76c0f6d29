package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRequestCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	tel := New(reg)

	tel.ObserveRequest("structured", 20*time.Millisecond)
	tel.ObserveRequest("retrieval", 50*time.Millisecond)
	tel.ObserveRequest("retrieval", 70*time.Millisecond)

	if got := testutil.ToFloat64(tel.requests.WithLabelValues("retrieval")); got != 2 {
		t.Fatalf("expected 2 retrieval requests, got %f", got)
	}
	if got := testutil.ToFloat64(tel.requests.WithLabelValues("structured")); got != 1 {
		t.Fatalf("expected 1 structured request, got %f", got)
	}
}

func TestCostAccumulates(t *testing.T) {
	reg := prometheus.NewRegistry()
	tel := New(reg)

	tel.AddCost(0.25)
	tel.AddCost(0.5)
	tel.AddCost(-1) // ignored

	if got := tel.TotalCost(); got != 0.75 {
		t.Fatalf("expected 0.75 total cost, got %f", got)
	}
	if got := testutil.ToFloat64(tel.costGauge); got != 0.75 {
		t.Fatalf("gauge mismatch: %f", got)
	}
}

func TestNilTelemetryIsNoOp(t *testing.T) {
	var tel *Telemetry
	tel.ObserveRequest("retrieval", time.Second)
	tel.ObserveFallback("sql_failed")
	tel.ObserveCancellation()
	tel.ObserveVerification(true)
	tel.ObserveRetrieved(3)
	tel.AddCost(1)
	if tel.TotalCost() != 0 {
		t.Fatal("nil telemetry must report zero cost")
	}
}
