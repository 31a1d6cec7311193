package neighbour

import (
	"testing"
	"time"

	"github.com/lngqakaza/libp/wire"
)

var addr2 = wire.NewAddress(2, 0)

func TestOnTXResetsAge(t *testing.T) {
	n := New(addr2, 50)
	n.Age = 10
	n.MetricAge = 5

	n.OnTX(3)

	if n.Age != 0 || n.MetricAge != 0 {
		t.Fatalf("expected Age/MetricAge reset, got %d/%d", n.Age, n.MetricAge)
	}

	if n.Link.Value() != 48 { // 3 * Unit(16)
		t.Fatalf("expected link value 48, got %d", n.Link.Value())
	}
}

func TestCongestionPenalty(t *testing.T) {
	n := New(addr2, 100)
	now := time.Now()

	base := n.LinkCost(now)

	n.SetCongested(now)

	if !n.IsCongested(now) {
		t.Fatalf("expected congested immediately after SetCongested")
	}

	if got := n.LinkCost(now); got != base+CongestionPenalty {
		t.Fatalf("expected penalised cost %d, got %d", base+CongestionPenalty, got)
	}

	later := now.Add(ExpectedCongestionDuration + time.Second)
	if n.IsCongested(later) {
		t.Fatalf("expected congestion to have expired")
	}

	if got := n.LinkCost(later); got != base {
		t.Fatalf("expected cost to return to baseline %d, got %d", base, got)
	}
}

func TestCompositeClampsToRTMetricMax(t *testing.T) {
	n := New(addr2, wire.RTMetricMax)
	now := time.Now()

	if got := n.Composite(now); got != wire.RTMetricMax {
		t.Fatalf("expected clamp to %d, got %d", wire.RTMetricMax, got)
	}
}

func TestTickExpiresAtMaxAge(t *testing.T) {
	n := New(addr2, 10)

	for i := 0; i < MaxAge-1; i++ {
		if n.Tick() {
			t.Fatalf("expired too early at tick %d", i)
		}
	}

	if !n.Tick() {
		t.Fatalf("expected expiry at tick %d", MaxAge)
	}
}

func TestTickResetsLinkMetricAtMaxLMAge(t *testing.T) {
	n := New(addr2, 10)
	n.OnTX(4) // value 64, 1 sample

	for i := 0; i < MaxLMAge; i++ {
		n.Tick()
	}

	if n.Link.Samples() != 0 {
		t.Fatalf("expected link metric reset after %d ticks, still has %d samples", MaxLMAge, n.Link.Samples())
	}

	if n.MetricAge != 0 {
		t.Fatalf("expected MetricAge reset to 0, got %d", n.MetricAge)
	}
}
