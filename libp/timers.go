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

package libp

import (
	"math/rand"
	"time"
)

// armTimer starts a goroutine that waits for d to elapse on the
// Connection's clock and then delivers f to the event loop. It never
// touches Connection state itself (f does, once it runs on the loop), so
// it is safe to call from any goroutine.
func (c *Connection) armTimer(d time.Duration, f func(*Connection)) {
	go func() {
		select {
		case <-c.clk.After(d):
			c.enqueue(f)
		case <-c.done:
		}
	}()
}

// Arming a timer implicitly cancels any prior arming of the same timer:
// each timer has a generation counter bumped on every arm, and a stray
// fire from a superseded arming is dropped by comparing generations rather
// than racing Timer.Stop().

func (c *Connection) armRetransmission(d time.Duration, kind retransKind) {
	c.retransGen++
	gen := c.retransGen
	c.retransKind = kind
	c.armTimer(d, func(cn *Connection) { cn.retransFired(gen) })
}

func (c *Connection) cancelRetransmission() {
	c.retransGen++
	c.retransKind = retransNone
}

func (c *Connection) retransFired(gen uint64) {
	if gen != c.retransGen {
		return
	}
	switch c.retransKind {
	case retransBackoff:
		c.retransmitCallback()
	case retransWatchdog:
		c.retransmitNotSentCallback()
	}
}

func (c *Connection) armBeaconTimer(d time.Duration) {
	c.beaconGen++
	gen := c.beaconGen
	c.armTimer(d, func(cn *Connection) { cn.beaconFired(gen) })
}

func (c *Connection) cancelBeaconTimer() {
	c.beaconGen++
}

func (c *Connection) beaconFired(gen uint64) {
	if gen != c.beaconGen {
		return
	}
	c.sendBeacon()
}

func (c *Connection) armProactiveProbing() {
	c.probeGen++
	gen := c.probeGen
	// PROACTIVE_PROBING_INTERVAL, preserved as originally written: a
	// random delay up to 60s built from a sub-second random component
	// scaled by 60, not a uniform draw over [0, 60s).
	d := time.Duration(c.rnd.Int63n(int64(time.Second))) * 60
	c.armTimer(d, func(cn *Connection) { cn.probeFired(gen) })
}

func (c *Connection) probeFired(gen uint64) {
	if gen != c.probeGen {
		return
	}
	c.proactiveProbe()
	c.armProactiveProbing()
}

func (c *Connection) armTablePeriodic() {
	c.tableGen++
	gen := c.tableGen
	c.armTimer(PeriodicInterval, func(cn *Connection) { cn.tablePeriodicFired(gen) })
}

// armTablePeriodicFirst arms only the very first table-aging tick, sooner
// than the regular recurring interval so a freshly opened Connection starts
// aging/probing state promptly; every tick after this one is scheduled by
// tablePeriodicFired itself via armTablePeriodic, at the full
// PeriodicInterval.
func (c *Connection) armTablePeriodicFirst() {
	c.tableGen++
	gen := c.tableGen
	c.armTimer(FirstPeriodicInterval, func(cn *Connection) { cn.tablePeriodicFired(gen) })
}

func (c *Connection) tablePeriodicFired(gen uint64) {
	if gen != c.tableGen {
		return
	}
	c.table.Tick()

	// A queued packet that outlives its lifetime without ever being sent
	// was waiting on a route that never arrived in time.
	dropped := c.sendQ.DropExpired(c.clk.Now())
	for i := 0; i < dropped; i++ {
		c.stats.RTDrop()
	}

	c.updateRTMetric()
	c.armTablePeriodic()
}

// randDuration returns a uniformly distributed duration in [0, d), or 0 if
// d <= 0.
func randDuration(rnd *rand.Rand, d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rnd.Int63n(int64(d)))
}
