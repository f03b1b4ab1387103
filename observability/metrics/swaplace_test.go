package metrics

import (
	"math/big"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"swaplace/native/swaplace"
)

func TestSwaplaceObserve(t *testing.T) {
	m := Swaplace()
	if Swaplace() != m {
		t.Fatalf("registry must be a singleton")
	}
	before := testutil.ToFloat64(m.operations.WithLabelValues("accept", "error"))
	m.Observe("accept", swaplace.ClassTemporal)
	m.Observe("accept", swaplace.ClassNone)
	if got := testutil.ToFloat64(m.operations.WithLabelValues("accept", "error")); got != before+1 {
		t.Fatalf("unexpected error count %v", got)
	}
	if got := testutil.ToFloat64(m.failures.WithLabelValues("accept", "temporal")); got < 1 {
		t.Fatalf("expected temporal failure to be recorded, got %v", got)
	}
	m.SetEscrowed(big.NewInt(5_000_000_000_000))
	if got := testutil.ToFloat64(m.escrowed); got != 5e12 {
		t.Fatalf("unexpected escrow gauge %v", got)
	}
	var nilMetrics *SwaplaceMetrics
	nilMetrics.Observe("create", swaplace.ClassNone)
}

func TestHTTPObserve(t *testing.T) {
	m := HTTP()
	m.Observe("/v1/swaps/{id}", http.StatusConflict, 10*time.Millisecond)
	if got := testutil.ToFloat64(m.errors.WithLabelValues("/v1/swaps/{id}", "409")); got < 1 {
		t.Fatalf("expected error to be recorded, got %v", got)
	}
	m.RecordThrottle("")
	if got := testutil.ToFloat64(m.throttles.WithLabelValues("unspecified")); got < 1 {
		t.Fatalf("expected throttle to be recorded, got %v", got)
	}
}
