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
	"github.com/lngqakaza/libp/queue"
	"github.com/lngqakaza/libp/radio"
	"github.com/lngqakaza/libp/wire"
)

// originate is the engine behind Send: it assigns the packet's identity
// (epacket_id/esender/ttl/hops), delivers directly if this node is the
// sink, or prepends a data header and enqueues it for forwarding.
func (c *Connection) originate(payload []byte, rexmits uint8) (bool, error) {
	epacketID := c.eseqno
	c.bumpESeqno()

	if rexmits > wire.MaxRexmits {
		rexmits = wire.MaxRexmits
	}

	if c.isSink {
		c.cb.Recv(c.addr, uint16(epacketID), 1)
		return true, nil
	}

	attrs := radio.Attrs{
		ExtendedSender: c.addr,
		EPacketID:      epacketID,
		TTL:            wire.MaxHoplim,
		Hops:           1,
		MaxRexmit:      rexmits,
		Type:           wire.PacketData,
	}

	hdr := wire.DataHeader{RTMetric: c.rtmetric}
	buf := append(hdr.Encode(), payload...)

	item := &queue.Item{
		Payload:   buf,
		Attrs:     attrs,
		MaxRexmit: rexmits,
		Enqueued:  c.clk.Now(),
		Lifetime:  queue.ForwardPacketLifetimeBase * time.Duration(rexmits),
	}

	ok := c.sendQ.Enqueue(item, false)
	if ok {
		c.sendQueuedPacket()
	}
	return ok, nil
}

// bumpESeqno advances the end-to-end packet id, mod 2^CollectPacketIDBits;
// a wrap to 0 is treated as a reboot signal and jumps to the half-space
// instead, so the sink can tell "this originator restarted" from "eseqno
// legitimately wrapped".
func (c *Connection) bumpESeqno() {
	c.eseqno++
	if c.eseqno == 0 {
		c.eseqno = wire.SeqnoHalfSpace
	}
}

// sendQueuedPacket dispatches the head of the send queue if nothing is
// currently in flight and a route to the parent exists.
func (c *Connection) sendQueuedPacket() {
	if c.sending {
		return
	}

	item := c.sendQ.Peek()
	if item == nil {
		return
	}

	n := c.table.Find(c.parent)
	if n == nil {
		return // retried once the route changes
	}

	c.sending = true
	c.currentParent = c.parent
	c.transmissions = 0
	c.maxRexmits = item.MaxRexmit

	c.transmitHead(item)
}

// transmitHead (re)sends the item currently at the head of the queue to
// currentParent, arming the defensive watchdog first in case the MAC never
// reports a completion at all.
func (c *Connection) transmitHead(item *queue.Item) {
	attrs := item.Attrs
	attrs.Reliable = true
	attrs.MaxMACTX = min(c.maxRexmits-c.transmissions, wire.MaxMacRexmits)
	attrs.PacketID = c.seqno

	if hdr, err := wire.DecodeDataHeader(item.Payload); err == nil {
		hdr.RTMetric = c.rtmetric
		copy(item.Payload, hdr.Encode())
	}

	c.armRetransmission(RetransmitWatchdogTimeout, retransWatchdog)
	c.stats.DataSent()

	if err := c.mac.SendUnicast(c.currentParent, attrs, item.Payload); err != nil {
		c.logger.WARNING("send", log.KV{"node": c.addr.String(), "error": err.Error()})
	}
}

// nodePacketSent is the MAC completion callback for DATA packets only;
// completions for ACKs (which are fire-and-forget, unreliable) are
// ignored.
func (c *Connection) nodePacketSent(status radio.SentStatus, nTX uint8, typ wire.PacketType) {
	if typ != wire.PacketData || !c.sending {
		return
	}

	c.transmissions += nTX

	if c.transmissions >= c.maxRexmits {
		c.timedOut()
		return
	}

	d := queue.RexmitTime/2 + randDuration(c.rnd, queue.RexmitTime/2)
	c.armRetransmission(d, retransBackoff)
}

// retransmitCallback is the normal inter-attempt backoff firing.
func (c *Connection) retransmitCallback() {
	if c.transmissions >= c.maxRexmits {
		c.timedOut()
		return
	}
	c.sending = false
	c.retransmitCurrentPacket()
}

// retransmitNotSentCallback fires if the MAC never reported a completion
// at all; it is treated as if MAX_MAC_REXMITS + 1 extra attempts had
// occurred, forcing a re-decision.
func (c *Connection) retransmitNotSentCallback() {
	c.transmissions += wire.MaxMacRexmits + 1
	if c.transmissions >= c.maxRexmits {
		c.timedOut()
		return
	}
	c.sending = false
	c.retransmitCurrentPacket()
}

// timedOut abandons the head-of-queue packet after exhausting its
// retransmission budget: the neighbour is charged a link-metric failure,
// routes are re-evaluated, and the engine moves on to the next packet.
func (c *Connection) timedOut() {
	if n := c.table.Find(c.currentParent); n != nil {
		n.OnTXFail(c.maxRexmits)
	}
	c.stats.TimedOut()
	c.updateRTMetric()
	c.sendNextPacket()
}

// retransmitCurrentPacket re-emits the head-of-queue item. If a better
// parent was chosen while the packet was in flight, the switch happens
// here (and prior attempts are not attributed to the new neighbour).
func (c *Connection) retransmitCurrentPacket() {
	item := c.sendQ.Peek()
	if item == nil {
		return
	}

	if !c.currentParent.Equal(c.parent) {
		c.currentParent = c.parent
		c.transmissions = 0
	}

	if c.table.Find(c.currentParent) == nil {
		return // wait for the route to change
	}

	c.sending = true
	c.transmitHead(item)
}

// sendNextPacket pops the completed (delivered, dropped, or timed-out)
// head-of-queue item, advances seqno, clears in-flight state and dispatches
// whatever is next.
func (c *Connection) sendNextPacket() {
	c.sendQ.Pop()
	c.seqno++
	c.cancelRetransmission()
	c.sending = false
	c.transmissions = 0
	c.sendQueuedPacket()
}

// nodePacketReceived handles every inbound unicast frame. The data header
// and the ACK payload share the same flags/reserved/rtmetric layout, so
// every unicast packet piggybacks its sender's rtmetric in the same four
// bytes regardless of packet type.
func (c *Connection) nodePacketReceived(from wire.Address, attrs radio.Attrs, payload []byte) {
	if hdr, err := wire.DecodeDataHeader(payload); err == nil {
		if n := c.table.Find(from); n != nil {
			n.UpdateRTMetric(hdr.RTMetric)
			c.updateRTMetric()
		}
	}

	if attrs.Type == wire.PacketAck {
		c.handleAck(from, attrs, payload)
		return
	}

	c.handleData(from, attrs, payload)
}

// handleData implements the DATA branch of node_packet_received: duplicate
// suppression, sink delivery, or forward-with-ACK.
func (c *Connection) handleData(from wire.Address, attrs radio.Attrs, payload []byte) {
	hdr, err := wire.DecodeDataHeader(payload)
	if err != nil {
		return
	}
	body := payload[wire.DataHeaderSize:]

	c.stats.DataRecv()

	var flags wire.AckFlags
	if c.sendQ.Len() >= queue.MaxSendingQueue/2 {
		flags |= wire.AckCongested
	}

	originator := attrs.ExtendedSender
	eseqno := uint16(attrs.EPacketID)

	if len(body) > 0 && c.dup.Lookup(originator, eseqno) {
		c.stats.DupRecv()
		c.sendAck(from, attrs.PacketID, flags)
		return
	}

	if c.rtmetric == wire.RTMetricSink {
		if len(body) > 0 {
			c.dup.Insert(originator, eseqno)
		}
		c.sendAck(from, attrs.PacketID, flags)
		c.cb.Recv(originator, eseqno, attrs.Hops)
		return
	}

	if attrs.TTL > 1 && c.rtmetric != wire.RTMetricMax {
		if n := c.table.Find(from); n != nil && n.RTMetric <= c.rtmetric {
			flags |= wire.AckRTMetricNeedsUpdate
			c.logger.WARNING("loop", log.KV{"node": c.addr.String(), "from": from.String()})
		}

		fwdAttrs := attrs
		fwdAttrs.Hops++
		fwdAttrs.TTL--
		fwdAttrs.Type = wire.PacketData

		fwdHdr := hdr
		fwdHdr.RTMetric = c.rtmetric
		buf := append(fwdHdr.Encode(), body...)

		item := &queue.Item{
			Payload:   buf,
			Attrs:     fwdAttrs,
			MaxRexmit: attrs.MaxRexmit,
			Enqueued:  c.clk.Now(),
			Lifetime:  queue.ForwardPacketLifetimeBase * time.Duration(attrs.MaxRexmit),
		}

		if c.sendQ.Enqueue(item, true) {
			if len(body) > 0 {
				c.dup.Insert(originator, eseqno)
			}
			c.sendAck(from, attrs.PacketID, flags)
			c.sendQueuedPacket()
			return
		}

		c.stats.QDrop()
		c.sendAck(from, attrs.PacketID, flags|wire.AckDropped|wire.AckCongested)
		return
	}

	c.stats.TTLDrop()
	c.sendAck(from, attrs.PacketID, flags|wire.AckDropped|wire.AckLifetimeExceeded)
}

// handleAck implements handle_ack: it only acts on an ACK from the current
// parent matching the in-flight PacketID, else it is simply a stray.
func (c *Connection) handleAck(from wire.Address, attrs radio.Attrs, payload []byte) {
	ack, err := wire.DecodeAckMessage(payload)
	if err != nil {
		return
	}

	c.stats.AckRecv()

	if !from.Equal(c.currentParent) || attrs.PacketID != c.seqno {
		c.stats.BadAck()
		return
	}

	// A link-layer ACK lost in transit (transmissions == 0, despite the
	// frame actually arriving) is credited as if MAX_MAC_REXMITS attempts
	// had occurred.
	transmissions := c.transmissions
	if transmissions == 0 {
		transmissions = wire.MaxMacRexmits
	}

	if n := c.table.Find(from); n != nil {
		n.OnTX(transmissions)
		n.UpdateRTMetric(ack.RTMetric)
	}
	c.updateRTMetric()

	if ack.Flags.Has(wire.AckCongested) {
		if n := c.table.Find(from); n != nil {
			n.SetCongested(c.clk.Now())
			// Double penalty for a congested forwarder; n*2 wraps in
			// uint8 exactly as metric.LinkMetric.UpdateTXFail does.
			n.OnTX(c.maxRexmits * 2)
		}
		c.updateRTMetric()
	}

	switch {
	case !ack.Flags.Has(wire.AckDropped):
		c.sendNextPacket()

	case ack.Flags.Has(wire.AckLifetimeExceeded):
		c.stats.AckDrop()
		c.sendNextPacket()

	default:
		c.stats.AckDrop()
		if n := c.table.Find(from); n != nil {
			n.OnTX(c.maxRexmits)
		}
		c.updateRTMetric()
		c.armRetransmission(queue.RexmitTime+randDuration(c.rnd, queue.RexmitTime), retransBackoff)
	}

	if ack.Flags.Has(wire.AckRTMetricNeedsUpdate) {
		c.bumpAdvertisement()
	}
}

// sendAck replies to to with a network-layer ACK: unreliable, at most
// MaxAckMacRexmits MAC attempts, echoing the received PacketID.
func (c *Connection) sendAck(to wire.Address, packetID uint8, flags wire.AckFlags) {
	msg := wire.AckMessage{Flags: flags, RTMetric: c.rtmetric}
	attrs := radio.Attrs{
		ExtendedSender: c.addr,
		PacketID:       packetID,
		Type:           wire.PacketAck,
		Reliable:       false,
		MaxMACTX:       wire.MaxAckMacRexmits,
	}

	c.stats.AckSent()

	if err := c.mac.SendUnicast(to, attrs, msg.Encode()); err != nil {
		c.logger.WARNING("ack", log.KV{"node": c.addr.String(), "error": err.Error()})
	}
}
