package libp_test

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/lngqakaza/libp/clock"
	"github.com/lngqakaza/libp/libp"
	"github.com/lngqakaza/libp/simradio"
	"github.com/lngqakaza/libp/wire"
)

type capturedDelivery struct {
	originator wire.Address
	eseqno     uint16
	hops       uint8
}

type captureCallbacks struct {
	mu  sync.Mutex
	got []capturedDelivery
}

func newCaptureCallbacks() *captureCallbacks {
	return &captureCallbacks{}
}

func (c *captureCallbacks) Recv(originator wire.Address, eseqno uint16, hops uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, capturedDelivery{originator, eseqno, hops})
}

func (c *captureCallbacks) deliveries() []capturedDelivery {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]capturedDelivery(nil), c.got...)
}

type noopCallbacks struct{}

func (noopCallbacks) Recv(wire.Address, uint16, uint8) {}

func waitFor(t *testing.T, timeout time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if fn() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s", timeout)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestTwoHopConvergenceAndDelivery wires sink -- relay -- leaf over
// simradio (leaf and sink are not direct neighbours) and checks that the
// leaf discovers a route and a packet it originates reaches the sink after
// two hops.
func TestTwoHopConvergenceAndDelivery(t *testing.T) {
	sinkAddr := wire.NewAddress(0, 1)
	relayAddr := wire.NewAddress(0, 2)
	leafAddr := wire.NewAddress(0, 3)

	medium := simradio.NewMedium(clock.Real{}, rand.New(rand.NewSource(1)))
	medium.SetLink(sinkAddr, relayAddr, simradio.Link{Delay: 2 * time.Millisecond})
	medium.SetLink(relayAddr, leafAddr, simradio.Link{Delay: 2 * time.Millisecond})

	sinkCB := newCaptureCallbacks()

	sink, err := libp.Open(libp.Config{
		Address:   sinkAddr,
		Channels:  5,
		MAC:       medium.MAC(sinkAddr),
		Announcer: medium.Announcer(sinkAddr),
	}, libp.Router, sinkCB)
	if err != nil {
		t.Fatalf("open sink: %v", err)
	}
	defer sink.Close()
	sink.SetSink(true)
	sink.SetBeaconPeriod(50 * time.Millisecond)

	relay, err := libp.Open(libp.Config{
		Address:   relayAddr,
		Channels:  5,
		MAC:       medium.MAC(relayAddr),
		Announcer: medium.Announcer(relayAddr),
	}, libp.Router, noopCallbacks{})
	if err != nil {
		t.Fatalf("open relay: %v", err)
	}
	defer relay.Close()
	relay.SetBeaconPeriod(50 * time.Millisecond)

	leaf, err := libp.Open(libp.Config{
		Address:   leafAddr,
		Channels:  5,
		MAC:       medium.MAC(leafAddr),
		Announcer: medium.Announcer(leafAddr),
	}, libp.Router, noopCallbacks{})
	if err != nil {
		t.Fatalf("open leaf: %v", err)
	}
	defer leaf.Close()
	leaf.SetBeaconPeriod(50 * time.Millisecond)

	waitFor(t, 5*time.Second, func() bool {
		return leaf.Depth() != wire.RTMetricMax && relay.Depth() != wire.RTMetricMax
	})

	if leaf.Parent() != relayAddr {
		t.Fatalf("leaf parent = %v, want relay %v", leaf.Parent(), relayAddr)
	}
	if relay.Parent() != sinkAddr {
		t.Fatalf("relay parent = %v, want sink %v", relay.Parent(), sinkAddr)
	}

	ok, err := leaf.Send([]byte("hello"), 5)
	if err != nil || !ok {
		t.Fatalf("Send from leaf: ok=%v err=%v", ok, err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return len(sinkCB.deliveries()) > 0
	})

	d := sinkCB.deliveries()[0]
	if d.originator != leafAddr {
		t.Fatalf("delivered originator = %v, want %v", d.originator, leafAddr)
	}
	if d.hops != 2 {
		t.Fatalf("delivered hops = %d, want 2", d.hops)
	}
}
