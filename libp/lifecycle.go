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

import "github.com/lngqakaza/libp/wire"

// setSink makes this node the tree's root, or relinquishes that role.
func (c *Connection) setSink(sink bool) {
	if sink {
		c.isRouter = true
		c.isSink = true
		c.rtmetric = wire.RTMetricSink
		c.bumpAdvertisement()
		c.sendQ.Purge()
		c.cancelRetransmission()
		c.sending = false
		c.transmissions = 0
		c.announcer.Set(c.rtmetric)
		c.updateRTMetric() // no-op while isSink, kept for parity with the original call order
		c.bumpAdvertisement()
		return
	}

	c.isSink = false
	c.rtmetric = wire.RTMetricMax
	c.announcer.Set(c.rtmetric)
	c.updateRTMetric()
}

// purge clears the neighbour table and the current parent.
func (c *Connection) purge() {
	c.table.Purge()
	c.parent = wire.NullAddress
}
