/*
 * VC5 load balancer. Copyright (C) 2021-present David Coles
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package simradio

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/lngqakaza/libp/clock"
	"github.com/lngqakaza/libp/radio"
	"github.com/lngqakaza/libp/wire"
)

type recordingCallbacks struct {
	mu          sync.Mutex
	received    []radio.Attrs
	broadcasts  [][]byte
	sentStatus  []radio.SentStatus
}

func (r *recordingCallbacks) PacketReceived(from wire.Address, attrs radio.Attrs, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, attrs)
}

func (r *recordingCallbacks) PacketSent(status radio.SentStatus, nTX uint8, typ wire.PacketType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sentStatus = append(r.sentStatus, status)
}

func (r *recordingCallbacks) BroadcastReceived(from wire.Address, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, payload)
}

func waitUntil(t *testing.T, timeout time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if fn() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s", timeout)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestSendUnicastDeliversAcrossConfiguredLink(t *testing.T) {
	a := wire.NewAddress(0, 1)
	b := wire.NewAddress(0, 2)

	m := NewMedium(clock.Real{}, rand.New(rand.NewSource(1)))
	m.SetLink(a, b, Link{Delay: time.Millisecond})

	macA := m.MAC(a)
	macB := m.MAC(b)

	cbA := &recordingCallbacks{}
	cbB := &recordingCallbacks{}
	macA.Open(0, 1, cbA)
	macB.Open(0, 1, cbB)

	if err := macA.SendUnicast(b, radio.Attrs{Type: wire.PacketData}, []byte("hi")); err != nil {
		t.Fatalf("SendUnicast: %v", err)
	}

	waitUntil(t, time.Second, func() bool {
		cbB.mu.Lock()
		defer cbB.mu.Unlock()
		return len(cbB.received) == 1
	})
	waitUntil(t, time.Second, func() bool {
		cbA.mu.Lock()
		defer cbA.mu.Unlock()
		return len(cbA.sentStatus) == 1
	})
}

func TestSendUnicastWithNoLinkReportsNoACK(t *testing.T) {
	a := wire.NewAddress(0, 1)
	b := wire.NewAddress(0, 2)

	m := NewMedium(clock.Real{}, rand.New(rand.NewSource(1)))
	macA := m.MAC(a)
	m.MAC(b)

	cbA := &recordingCallbacks{}
	macA.Open(0, 1, cbA)

	if err := macA.SendUnicast(b, radio.Attrs{Type: wire.PacketData}, []byte("hi")); err != nil {
		t.Fatalf("SendUnicast: %v", err)
	}

	waitUntil(t, time.Second, func() bool {
		cbA.mu.Lock()
		defer cbA.mu.Unlock()
		return len(cbA.sentStatus) == 1 && cbA.sentStatus[0] == radio.SentNoACK
	})
}

func TestSendBroadcastReachesAllNeighboursNotNonNeighbours(t *testing.T) {
	a := wire.NewAddress(0, 1)
	b := wire.NewAddress(0, 2)
	c := wire.NewAddress(0, 3)

	m := NewMedium(clock.Real{}, rand.New(rand.NewSource(1)))
	m.SetLink(a, b, Link{Delay: time.Millisecond})
	// c has no link to a: it must never see a's broadcast.

	macA := m.MAC(a)
	macB := m.MAC(b)
	macC := m.MAC(c)

	cbB := &recordingCallbacks{}
	cbC := &recordingCallbacks{}
	macB.Open(0, 1, cbB)
	macC.Open(0, 1, cbC)

	if err := macA.SendBroadcast([]byte("beacon")); err != nil {
		t.Fatalf("SendBroadcast: %v", err)
	}

	waitUntil(t, time.Second, func() bool {
		cbB.mu.Lock()
		defer cbB.mu.Unlock()
		return len(cbB.broadcasts) == 1
	})

	time.Sleep(20 * time.Millisecond)
	cbC.mu.Lock()
	defer cbC.mu.Unlock()
	if len(cbC.broadcasts) != 0 {
		t.Fatalf("unlinked node received a broadcast it has no link for")
	}
}

func TestAnnouncerSetDeliversToLinkedNeighbour(t *testing.T) {
	a := wire.NewAddress(0, 1)
	b := wire.NewAddress(0, 2)

	m := NewMedium(clock.Real{}, rand.New(rand.NewSource(1)))
	m.SetLink(a, b, Link{Delay: time.Millisecond})

	annA := m.Announcer(a)
	annB := m.Announcer(b)
	annA.Open(0, 0)
	annB.Open(0, 0)

	annA.Set(42)

	select {
	case got := <-annB.Received():
		if got.From != a || got.Value != 42 {
			t.Fatalf("got %+v, want From=%v Value=42", got, a)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for announcement")
	}
}

func TestLossyLinkEventuallyDropsAFrame(t *testing.T) {
	a := wire.NewAddress(0, 1)
	b := wire.NewAddress(0, 2)

	m := NewMedium(clock.Real{}, rand.New(rand.NewSource(7)))
	m.SetLink(a, b, Link{Delay: time.Millisecond, Loss: 1})

	macA := m.MAC(a)
	macB := m.MAC(b)
	cbA := &recordingCallbacks{}
	cbB := &recordingCallbacks{}
	macA.Open(0, 1, cbA)
	macB.Open(0, 1, cbB)

	if err := macA.SendUnicast(b, radio.Attrs{Type: wire.PacketData}, []byte("hi")); err != nil {
		t.Fatalf("SendUnicast: %v", err)
	}

	waitUntil(t, time.Second, func() bool {
		cbA.mu.Lock()
		defer cbA.mu.Unlock()
		return len(cbA.sentStatus) == 1
	})

	cbB.mu.Lock()
	defer cbB.mu.Unlock()
	if len(cbB.received) != 0 {
		t.Fatalf("a fully lossy link (Loss=1) still delivered a frame")
	}
}
