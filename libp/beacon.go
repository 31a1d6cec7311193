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
	"time"

	"github.com/lngqakaza/libp/log"
	"github.com/lngqakaza/libp/metric"
	"github.com/lngqakaza/libp/wire"
)

// onAnnouncement is the Announcements handler: it is reached both from the
// announcer's own Received() channel and from a received beacon broadcast,
// since both convey "a neighbour's rtmetric changed" and both must feed
// the same neighbour-table admission rule.
func (c *Connection) onAnnouncement(from wire.Address, value uint16) {
	if n := c.table.Find(from); n == nil {
		if value < c.rtmetric {
			c.table.Add(from, value)
		}
	} else {
		old := n.RTMetric
		n.UpdateRTMetric(value)
		if value == wire.RTMetricMax && old != wire.RTMetricMax {
			c.bumpAdvertisement()
		}
	}

	c.updateRTMetric()
}

// beaconReceived handles an inbound broadcast (radio.Callbacks). Hearing
// any beacon asks a non-sink to rebroadcast its own state sooner, so route
// changes propagate down the tree quickly; sendBeacon always arms its own
// next timer (see SetBeaconPeriod), so this is purely a fast-path
// reschedule, never a second competing timer.
func (c *Connection) beaconReceived(from wire.Address, payload []byte) {
	b, err := wire.DecodeBeacon(payload)
	if err != nil {
		return
	}

	if !c.isSink && c.beaconPeriod > 0 {
		c.armBeaconTimer(RebroadcastTime)
	}

	c.onAnnouncement(from, b.RTMetric)
}

// setBeaconPeriod stores the configured period and (re)arms the beacon
// timer; 0 disables beaconing entirely. The initial arming always uses the
// general beacon_period/2 + rand(beacon_period/2) formula, even for the
// sink: the fixed 30s BeaconingPeriod only governs the sink's *subsequent*
// self-reschedule once it has actually sent a beacon (see sendBeacon).
func (c *Connection) setBeaconPeriod(period time.Duration) {
	c.beaconPeriod = period
	if period <= 0 {
		c.cancelBeaconTimer()
		return
	}
	c.armBeaconTimer(period/2 + randDuration(c.rnd, period/2))
}

// sendBeacon broadcasts this node's current rtmetric and always arms its
// own next firing (sink or not), per the chosen unification of beacon
// self-rescheduling.
func (c *Connection) sendBeacon() {
	b := wire.Beacon{RTMetric: c.rtmetric, Seqno: c.seqno}
	if err := c.mac.SendBroadcast(b.Encode()); err != nil {
		c.logger.WARNING("beacon", log.KV{"node": c.addr.String(), "error": err.Error()})
	}

	if c.beaconPeriod > 0 {
		c.armBeaconTimer(c.nextBeaconDelay())
	}
}

// nextBeaconDelay is the regular (non-fast-path) reschedule interval: the
// sink always uses the fixed BeaconingPeriod, everyone else uses
// beacon_period/2 + rand(beacon_period/2).
func (c *Connection) nextBeaconDelay() time.Duration {
	if c.isSink {
		return BeaconingPeriod
	}
	return c.beaconPeriod/2 + randDuration(c.rnd, c.beaconPeriod/2)
}

// proactiveProbe exposes an untested, apparently-shorter neighbour to
// measurement: pick one with a lower advertised rtmetric and no link
// samples yet, temporarily route through it for one dummy packet, then
// restore the real parent.
func (c *Connection) proactiveProbe() {
	if c.isSink || c.parent.IsNull() || c.rtmetric == wire.RTMetricMax || c.sendQ.Len() != 0 {
		return
	}

	var candidateAddr wire.Address
	found := false
	for i := 0; i < c.table.Num(); i++ {
		n := c.table.Get(i)
		if n.Link.Samples() != 0 {
			continue
		}
		if uint32(n.RTMetric)+metric.Unit < uint32(c.rtmetric) {
			candidateAddr = n.Addr
			found = true
			break
		}
	}
	if !found {
		return
	}

	saved := c.parent
	c.parent = candidateAddr
	c.originate(nil, ProactiveProbingRexmits)
	c.parent = saved
}
