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
	"github.com/lngqakaza/libp/log"
	"github.com/lngqakaza/libp/metric"
	"github.com/lngqakaza/libp/wire"
)

// SignificantRTMetricParentChange is the hysteresis margin a candidate
// parent must beat the current one by before a switch is made (Gnawali et
// al., SenSys 2009): UNIT + UNIT/2.
const SignificantRTMetricParentChange = metric.Unit + metric.Unit/2

// updateRTMetric is idempotent and is invoked on every event that can
// change routes: a neighbour update, an ACK, a retransmission timeout, or
// the periodic aging tick.
func (c *Connection) updateRTMetric() {
	if c.isSink {
		return
	}

	c.updateParent()

	newMetric := uint16(wire.RTMetricMax)
	if !c.parent.IsNull() {
		if n := c.table.Find(c.parent); n != nil {
			newMetric = n.Composite(c.clk.Now())
		}
	}

	if newMetric == 0 {
		// Only the sink may legitimately claim rtmetric 0; a parent's
		// composite can never really be 0, but if it somehow were, falling
		// back avoids poisoning the tree with a false sink.
		newMetric = wire.RTMetricMax
	}

	previous := c.rtmetric
	c.rtmetric = newMetric

	if c.isRouter {
		c.announcer.Set(c.rtmetric)
	}

	if previous == wire.RTMetricMax && newMetric != wire.RTMetricMax {
		c.sendQueuedPacket()
	}
}

// updateParent re-evaluates the preferred next hop against the neighbour
// table, applying hysteresis so a marginally better candidate does not
// cause flapping.
func (c *Connection) updateParent() {
	now := c.clk.Now()

	var currentComposite uint16
	haveCurrent := false
	if !c.parent.IsNull() {
		if n := c.table.Find(c.parent); n != nil {
			currentComposite = n.Composite(now)
			haveCurrent = true
		}
	}

	best := c.table.Best(now)

	if best == nil {
		if !c.parent.IsNull() {
			c.stats.RouteLost()
			c.logger.NOTICE("route", log.KV{"node": c.addr.String(), "event": "route_lost"})
		}
		c.parent = wire.NullAddress
		return
	}

	if !haveCurrent {
		c.parent = best.Addr
		c.stats.FoundRoute()
		c.logger.NOTICE("route", log.KV{"node": c.addr.String(), "parent": best.Addr.String(), "event": "found_route"})
		c.bumpAdvertisement()
		return
	}

	if best.Addr.Equal(c.parent) {
		return
	}

	if uint32(best.Composite(now))+SignificantRTMetricParentChange < uint32(currentComposite) {
		c.parent = best.Addr
		c.stats.NewParent()
		c.logger.NOTICE("route", log.KV{"node": c.addr.String(), "parent": best.Addr.String(), "event": "new_parent"})
		c.bumpAdvertisement()
	}
}

// bumpAdvertisement asks the announcement subsystem to disseminate this
// node's current rtmetric sooner than its regular schedule.
func (c *Connection) bumpAdvertisement() {
	c.announcer.Bump()
}
