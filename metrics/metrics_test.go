package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lngqakaza/libp/wire"
)

func counterValue(t *testing.T, v *prometheus.CounterVec, label string) float64 {
	t.Helper()

	var m dto.Metric
	if err := v.WithLabelValues(label).Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestCountersIncrementPerAddress(t *testing.T) {
	reg := prometheus.NewRegistry()
	stats := New(reg)

	a := wire.NewAddress(2, 0)
	b := wire.NewAddress(3, 0)

	stats.For(a).NewParent()
	stats.For(a).NewParent()
	stats.For(b).NewParent()

	if got := counterValue(t, stats.newParent, a.String()); got != 2 {
		t.Fatalf("expected 2 for address %s, got %v", a, got)
	}

	if got := counterValue(t, stats.newParent, b.String()); got != 1 {
		t.Fatalf("expected 1 for address %s, got %v", b, got)
	}
}

func TestNilCountersDiscard(t *testing.T) {
	c := NewNil()

	// Must not panic.
	c.FoundRoute()
	c.NewParent()
	c.TimedOut()
}
