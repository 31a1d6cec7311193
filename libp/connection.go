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

// Package libp is a hop-by-hop, tree-based convergecast routing and
// forwarding core for low-power multi-hop radio networks: one sink node at
// rtmetric 0, every other node picking a parent towards it by a composite
// link/hop metric, with reliable retransmitted unicast forwarding along the
// resulting tree. It owns no radio of its own: callers supply a radio.MAC
// and a radio.Announcer, matching how bgp.Session is handed a net.Conn
// rather than owning a socket.
package libp

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/lngqakaza/libp/clock"
	"github.com/lngqakaza/libp/log"
	"github.com/lngqakaza/libp/metrics"
	"github.com/lngqakaza/libp/neighbour"
	"github.com/lngqakaza/libp/queue"
	"github.com/lngqakaza/libp/radio"
	"github.com/lngqakaza/libp/wire"
)

// Role mirrors the original's is_router flag: a NoRouter node only
// originates and receives its own traffic, a Router also forwards for
// others and advertises a route towards the sink.
type Role uint8

const (
	NoRouter Role = iota
	Router
)

// Protocol-wide timing constants not already owned by metric, neighbour or
// queue.
const (
	BeaconingPeriod = 30 * time.Second // fixed self-reschedule period for the sink's own beacon
	RebroadcastTime = 10 * time.Second // non-sink reschedule on hearing any beacon

	ProactiveProbingRexmits = 15

	RetransmitWatchdogTimeout = 16 * queue.RexmitTime // defensive watchdog if the MAC never reports back

	PeriodicInterval = 60 * time.Second // neighbour table aging tick, recurring

	// FirstPeriodicInterval is the one-off delay before the very first
	// table-aging tick, distinct from the 60s recurring PeriodicInterval:
	// the original arms its first periodic() call after a bare
	// CLOCK_SECOND, then reschedules itself at 60s forever after.
	FirstPeriodicInterval = time.Second
)

// Callbacks is how a sink Connection delivers application data: packets
// it receives from the tree, and packets it originates itself. A non-sink
// Connection never calls Recv.
type Callbacks interface {
	Recv(originator wire.Address, eseqno uint16, hops uint8)
}

// Config configures a Connection. MAC, Announcer and Address are required;
// everything else has a usable zero value.
type Config struct {
	Address wire.Address

	// Channels such that unicast uses Channels+1, broadcast uses
	// Channels-1 and announcements use Channels; callers must ensure these
	// do not collide with anything else sharing the same MAC.
	Channels int

	MAC       radio.MAC
	Announcer radio.Announcer

	NeighbourCapacity int // 0 => neighbour.MaxNeighbours
	SendQueueCapacity int // 0 => queue.MaxSendingQueue

	Logger log.Log       // nil => log.Nil{}
	Stats  *metrics.Stats // nil => counters are discarded
	Clock  clock.Clock    // nil => clock.Real{}
	Rand   *rand.Rand     // nil => seeded from time.Now()
}

// retransKind distinguishes what firing the retransmission timer means:
// the normal inter-attempt backoff, or the defensive watchdog armed in
// case the MAC never reports a send completion at all.
type retransKind uint8

const (
	retransNone retransKind = iota
	retransBackoff
	retransWatchdog
)

// Connection is one node's routing and forwarding core. A single goroutine
// (run) owns every field below: application calls, radio callbacks and
// timer firings all reach it as closures sent over in, so no field here is
// ever touched from two goroutines at once and no mutex is needed, mirroring
// bgp.Session's single event-loop goroutine.
type Connection struct {
	addr      wire.Address
	channels  int
	mac       radio.MAC
	announcer radio.Announcer
	cb        Callbacks
	logger    log.Log
	stats     *metrics.Counters
	clk       clock.Clock
	rnd       *rand.Rand

	table *neighbour.Table
	sendQ *queue.SendQueue
	dup   queue.DuplicateCache

	isRouter bool
	isSink   bool
	rtmetric uint16

	parent        wire.Address
	currentParent wire.Address

	seqno  uint8
	eseqno uint8

	sending       bool
	transmissions uint8
	maxRexmits    uint8

	beaconPeriod time.Duration

	in        chan func(*Connection)
	done      chan struct{}
	stopped   bool
	closeOnce sync.Once

	retransGen  uint64
	retransKind retransKind
	beaconGen   uint64
	probeGen    uint64
	tableGen    uint64
}

// Open starts a Connection: it opens the MAC and announcement channels,
// seeds the protocol's initial state (rtmetric = RTMetricMax, seqno = 10,
// eseqno = 0), and starts the owning goroutine. Close must be called to
// release the underlying MAC and announcer.
func Open(cfg Config, role Role, cb Callbacks) (*Connection, error) {
	if cfg.MAC == nil {
		return nil, errors.New("libp: Config.MAC is required")
	}
	if cfg.Announcer == nil {
		return nil, errors.New("libp: Config.Announcer is required")
	}
	if cb == nil {
		return nil, errors.New("libp: Callbacks is required")
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	rnd := cfg.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nil{}
	}

	var counters *metrics.Counters
	if cfg.Stats != nil {
		counters = cfg.Stats.For(cfg.Address)
	} else {
		counters = metrics.NewNil()
	}

	c := &Connection{
		addr:          cfg.Address,
		channels:      cfg.Channels,
		mac:           cfg.MAC,
		announcer:     cfg.Announcer,
		cb:            cb,
		logger:        logger,
		stats:         counters,
		clk:           clk,
		rnd:           rnd,
		table:         neighbour.NewTable(cfg.NeighbourCapacity),
		sendQ:         queue.NewSendQueue(cfg.SendQueueCapacity),
		isRouter:      role == Router,
		rtmetric:      wire.RTMetricMax,
		parent:        wire.NullAddress,
		currentParent: wire.NullAddress,
		seqno:         10,
		eseqno:        0,
		in:            make(chan func(*Connection), 64),
		done:          make(chan struct{}),
	}

	if err := c.mac.Open(c.channels+1, c.channels-1, c); err != nil {
		return nil, fmt.Errorf("libp: open MAC: %w", err)
	}
	if err := c.announcer.Open(c.channels, wire.RTMetricMax); err != nil {
		c.mac.Close()
		return nil, fmt.Errorf("libp: open announcer: %w", err)
	}

	// Safe to arm directly here (no other goroutine touches c yet).
	c.armProactiveProbing()
	c.armTablePeriodicFirst()

	go c.run()

	return c, nil
}

// run is the Connection's single event loop goroutine: everything that
// mutates its state arrives here as a closure, so handlers never overlap
// and nothing else in this package may read or write a Connection's fields
// directly.
func (c *Connection) run() {
	defer close(c.done)

	annCh := c.announcer.Received()

	for {
		select {
		case f, ok := <-c.in:
			if !ok {
				return
			}
			f(c)
			if c.stopped {
				return
			}

		case a, ok := <-annCh:
			if !ok {
				annCh = nil
				continue
			}
			c.onAnnouncement(a.From, a.Value)
		}
	}
}

// enqueue hands f to the event loop, returning false if the Connection has
// already closed.
func (c *Connection) enqueue(f func(*Connection)) bool {
	select {
	case c.in <- f:
		return true
	case <-c.done:
		return false
	}
}

// call runs fn on the event loop and returns its result, or nil if the
// Connection is closed, mirroring bgp.Pool.Status()'s request/reply
// channel pattern.
func (c *Connection) call(fn func(*Connection) any) any {
	reply := make(chan any, 1)
	if !c.enqueue(func(cn *Connection) { reply <- fn(cn) }) {
		return nil
	}
	select {
	case v := <-reply:
		return v
	case <-c.done:
		return nil
	}
}

// PacketReceived implements radio.Callbacks.
func (c *Connection) PacketReceived(from wire.Address, attrs radio.Attrs, payload []byte) {
	c.enqueue(func(cn *Connection) { cn.nodePacketReceived(from, attrs, payload) })
}

// PacketSent implements radio.Callbacks.
func (c *Connection) PacketSent(status radio.SentStatus, nTX uint8, typ wire.PacketType) {
	c.enqueue(func(cn *Connection) { cn.nodePacketSent(status, nTX, typ) })
}

// BroadcastReceived implements radio.Callbacks.
func (c *Connection) BroadcastReceived(from wire.Address, payload []byte) {
	c.enqueue(func(cn *Connection) { cn.beaconReceived(from, payload) })
}

// Send originates payload at this node: rexmits is the network-layer
// retransmission budget (clamped to wire.MaxRexmits). It reports true if
// the packet was delivered locally (this node is the sink) or successfully
// enqueued for forwarding.
func (c *Connection) Send(payload []byte, rexmits uint8) (bool, error) {
	v := c.call(func(cn *Connection) any {
		ok, err := cn.originate(payload, rexmits)
		return sendResult{ok, err}
	})
	if v == nil {
		return false, errClosed
	}
	r := v.(sendResult)
	return r.ok, r.err
}

type sendResult struct {
	ok  bool
	err error
}

var errClosed = errors.New("libp: connection closed")

// SetSink marks (or unmarks) this node as the tree's root.
func (c *Connection) SetSink(sink bool) {
	c.call(func(cn *Connection) any { cn.setSink(sink); return nil })
}

// SetBeaconPeriod stores and (re)arms the beacon timer; a period of 0
// disables beaconing.
func (c *Connection) SetBeaconPeriod(period time.Duration) {
	c.call(func(cn *Connection) any { cn.setBeaconPeriod(period); return nil })
}

// Depth returns this node's current rtmetric (wire.RTMetricMax means "no
// route").
func (c *Connection) Depth() uint16 {
	v := c.call(func(cn *Connection) any { return cn.rtmetric })
	if v == nil {
		return wire.RTMetricMax
	}
	return v.(uint16)
}

// Parent returns the address of the currently preferred next hop, or
// wire.NullAddress if none.
func (c *Connection) Parent() wire.Address {
	v := c.call(func(cn *Connection) any { return cn.parent })
	if v == nil {
		return wire.NullAddress
	}
	return v.(wire.Address)
}

// Purge clears the neighbour table and the current parent.
func (c *Connection) Purge() {
	c.call(func(cn *Connection) any { cn.purge(); return nil })
}

// Close deregisters the announcement, closes the MAC and drains the send
// queue. Safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		reply := make(chan struct{})
		if c.enqueue(func(cn *Connection) {
			cn.closeInternal()
			close(reply)
		}) {
			select {
			case <-reply:
			case <-c.done:
			}
		}
	})
}

func (c *Connection) closeInternal() {
	c.announcer.Close()
	c.mac.Close()
	c.sendQ.Purge()
	c.stopped = true
}
