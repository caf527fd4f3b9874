package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIsIdempotent(t *testing.T) {
	Register()
	Register() // must not panic on double registration
}

func TestObservePoolSetsGauges(t *testing.T) {
	Register()
	ObservePool(PoolStats{Addr: "127.0.0.1:9000", Total: 5, Idle: 3, InFlight: 1})

	if got := testutil.ToFloat64(PoolTotal.WithLabelValues("127.0.0.1:9000")); got != 5 {
		t.Fatalf("expect total 5, got %v", got)
	}
	if got := testutil.ToFloat64(PoolIdle.WithLabelValues("127.0.0.1:9000")); got != 3 {
		t.Fatalf("expect idle 3, got %v", got)
	}
	if got := testutil.ToFloat64(PoolInFlight.WithLabelValues("127.0.0.1:9000")); got != 1 {
		t.Fatalf("expect in-flight 1, got %v", got)
	}
}
