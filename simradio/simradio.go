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

// Package simradio is an in-memory radio.MAC and radio.Announcer, so a
// multi-node tree can be exercised in a single process (by tests, and by
// cmd/libp-sim) without any real hardware. Every link between two addresses
// is explicit: two addresses with no configured Link cannot hear each
// other at all, matching a real network's limited radio range.
package simradio

import (
	"math/rand"
	"sync"
	"time"

	"github.com/lngqakaza/libp/clock"
	"github.com/lngqakaza/libp/radio"
	"github.com/lngqakaza/libp/wire"
)

// Link describes one direction-symmetric radio link between two addresses.
type Link struct {
	Delay time.Duration
	Loss  float64 // fraction of frames lost in transit, [0,1]; 1 loses every frame
}

type linkKey struct {
	a, b wire.Address
}

func key(a, b wire.Address) linkKey {
	if string(a[:]) > string(b[:]) {
		a, b = b, a
	}
	return linkKey{a, b}
}

// Medium is the shared simulated ether: every MAC or Announcer registered
// on it can reach every other endpoint it has a configured Link to.
type Medium struct {
	clk clock.Clock
	rnd *rand.Rand

	mutex     sync.Mutex
	macs      map[wire.Address]*MAC
	announcer map[wire.Address]*Announcer
	links     map[linkKey]Link
}

// NewMedium creates an empty Medium. rnd drives loss decisions and must not
// be shared with anything running concurrently.
func NewMedium(clk clock.Clock, rnd *rand.Rand) *Medium {
	return &Medium{
		clk:       clk,
		rnd:       rnd,
		macs:      make(map[wire.Address]*MAC),
		announcer: make(map[wire.Address]*Announcer),
		links:     make(map[linkKey]Link),
	}
}

// SetLink configures (or reconfigures) the symmetric link between a and b.
func (m *Medium) SetLink(a, b wire.Address, l Link) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.links[key(a, b)] = l
}

func (m *Medium) link(a, b wire.Address) (Link, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	l, ok := m.links[key(a, b)]
	return l, ok
}

func (m *Medium) neighboursOf(addr wire.Address) []wire.Address {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var out []wire.Address
	for k := range m.links {
		switch addr {
		case k.a:
			out = append(out, k.b)
		case k.b:
			out = append(out, k.a)
		}
	}
	return out
}

func (m *Medium) mac(addr wire.Address) *MAC {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.macs[addr]
}

func (m *Medium) announcerAt(addr wire.Address) *Announcer {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.announcer[addr]
}

// dropped decides, for a link with the given loss rate, whether one frame
// is lost.
func (m *Medium) dropped(l Link) bool {
	if l.Loss <= 0 {
		return false
	}
	return m.rnd.Float64() < l.Loss
}

func (m *Medium) after(d time.Duration) <-chan time.Time {
	return m.clk.After(d)
}

// MAC creates the radio.MAC endpoint for addr. Call once per simulated
// node.
func (m *Medium) MAC(addr wire.Address) *MAC {
	n := &MAC{addr: addr, medium: m}
	m.mutex.Lock()
	m.macs[addr] = n
	m.mutex.Unlock()
	return n
}

// Announcer creates the radio.Announcer endpoint for addr. Call once per
// simulated node.
func (m *Medium) Announcer(addr wire.Address) *Announcer {
	a := &Announcer{addr: addr, medium: m, received: make(chan radio.Announcement, 32)}
	m.mutex.Lock()
	m.announcer[addr] = a
	m.mutex.Unlock()
	return a
}

// MAC is one simulated node's radio.MAC endpoint.
type MAC struct {
	addr   wire.Address
	medium *Medium

	mutex  sync.Mutex
	cb     radio.Callbacks
	closed bool
}

func (n *MAC) Open(unicastChannel, broadcastChannel int, cb radio.Callbacks) error {
	n.mutex.Lock()
	n.cb = cb
	n.mutex.Unlock()
	return nil
}

func (n *MAC) Close() {
	n.mutex.Lock()
	n.closed = true
	n.mutex.Unlock()
}

func (n *MAC) callbacks() radio.Callbacks {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if n.closed {
		return nil
	}
	return n.cb
}

// SendUnicast submits one frame to addr; delivery (or loss) and the
// PacketSent completion both happen asynchronously, after the configured
// link delay, matching a real MAC's async contract.
func (n *MAC) SendUnicast(addr wire.Address, attrs radio.Attrs, payload []byte) error {
	cb := n.callbacks()
	if cb == nil {
		return nil
	}

	l, ok := n.medium.link(n.addr, addr)
	if !ok {
		go func() {
			<-n.medium.after(0)
			cb.PacketSent(radio.SentNoACK, 1, attrs.Type)
		}()
		return nil
	}

	dest := n.medium.mac(addr)
	lost := n.medium.dropped(l)
	cp := append([]byte(nil), payload...)

	go func() {
		<-n.medium.after(l.Delay)
		if !lost && dest != nil {
			dest.deliverReceived(n.addr, attrs, cp)
		}
		cb.PacketSent(statusFor(lost), 1, attrs.Type)
	}()

	return nil
}

func statusFor(lost bool) radio.SentStatus {
	if lost {
		return radio.SentNoACK
	}
	return radio.SentOK
}

// SendBroadcast floods payload to every neighbour reachable from this node.
func (n *MAC) SendBroadcast(payload []byte) error {
	cp := append([]byte(nil), payload...)
	for _, neighbour := range n.medium.neighboursOf(n.addr) {
		l, ok := n.medium.link(n.addr, neighbour)
		if !ok {
			continue
		}
		dest := n.medium.mac(neighbour)
		if dest == nil {
			continue
		}
		if n.medium.dropped(l) {
			continue
		}
		go func(dest *MAC, l Link) {
			<-n.medium.after(l.Delay)
			dest.deliverBroadcast(n.addr, cp)
		}(dest, l)
	}
	return nil
}

func (n *MAC) deliverReceived(from wire.Address, attrs radio.Attrs, payload []byte) {
	if cb := n.callbacks(); cb != nil {
		cb.PacketReceived(from, attrs, payload)
	}
}

func (n *MAC) deliverBroadcast(from wire.Address, payload []byte) {
	if cb := n.callbacks(); cb != nil {
		cb.BroadcastReceived(from, payload)
	}
}

// Announcer is one simulated node's radio.Announcer endpoint. The
// announcement subsystem floods a node's current value to its radio
// neighbours, same reachability rules as SendBroadcast; Bump is an
// unscheduled extra flood of the current value.
type Announcer struct {
	addr   wire.Address
	medium *Medium

	mutex    sync.Mutex
	value    uint16
	closed   bool
	received chan radio.Announcement
}

func (a *Announcer) Open(channel int, initial uint16) error {
	a.mutex.Lock()
	a.value = initial
	a.mutex.Unlock()
	return nil
}

func (a *Announcer) Close() {
	a.mutex.Lock()
	a.closed = true
	a.mutex.Unlock()
}

// Set republishes value to every reachable neighbour.
func (a *Announcer) Set(value uint16) {
	a.mutex.Lock()
	a.value = value
	a.mutex.Unlock()
	a.flood(value)
}

// Bump re-floods the most recently set value immediately.
func (a *Announcer) Bump() {
	a.mutex.Lock()
	value := a.value
	a.mutex.Unlock()
	a.flood(value)
}

func (a *Announcer) flood(value uint16) {
	for _, neighbour := range a.medium.neighboursOf(a.addr) {
		l, ok := a.medium.link(a.addr, neighbour)
		if !ok {
			continue
		}
		dest := a.medium.announcerAt(neighbour)
		if dest == nil {
			continue
		}
		if a.medium.dropped(l) {
			continue
		}
		go func(dest *Announcer, l Link) {
			<-a.medium.after(l.Delay)
			dest.announce(a.addr, value)
		}(dest, l)
	}
}

func (a *Announcer) announce(from wire.Address, value uint16) {
	a.mutex.Lock()
	closed := a.closed
	a.mutex.Unlock()
	if closed {
		return
	}
	select {
	case a.received <- radio.Announcement{From: from, Value: value}:
	default:
	}
}

func (a *Announcer) Received() <-chan radio.Announcement { return a.received }
