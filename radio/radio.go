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

// Package radio defines the seams to the collaborators that sit outside
// this module: the radio driver / MAC-RDC layer, and the announcement
// subsystem. Nothing in this package talks to real hardware; production
// code supplies an implementation, and package simradio supplies an
// in-memory one for tests and for cmd/libp-sim.
package radio

import "github.com/lngqakaza/libp/wire"

// Attrs is the set of packet-buffer attributes the core reads from an
// inbound packet and must set on an outbound one, standing in for the
// original's PACKETBUF_ATTR_* bitfields.
type Attrs struct {
	ExtendedSender wire.Address
	EPacketID      uint8 // end-to-end, originator-assigned
	PacketID       uint8 // per-hop, assigned by the current sender
	TTL            uint8
	Hops           uint8
	MaxRexmit      uint8
	Type           wire.PacketType
	Reliable       bool
	MaxMACTX       uint8 // MAX_MAC_TRANSMISSIONS for this send
}

// SentStatus is the outcome the MAC reports once it is done trying to
// deliver a unicast frame.
type SentStatus int

const (
	SentOK SentStatus = iota
	SentNoACK
	SentError
)

// Callbacks is what the MAC invokes on the core.
type Callbacks interface {
	// PacketReceived is invoked for every inbound unicast frame addressed
	// to this node, after the MAC has stripped its own framing.
	PacketReceived(from wire.Address, attrs Attrs, payload []byte)

	// PacketSent is invoked once the MAC is done attempting to deliver the
	// most recently submitted unicast frame: status is the outcome, nTX is
	// how many over-the-air transmission attempts it took, and typ echoes
	// back the PacketType attribute the frame was submitted with (the core
	// tracks retransmission state only for DATA completions).
	PacketSent(status SentStatus, nTX uint8, typ wire.PacketType)

	// BroadcastReceived is invoked for every inbound broadcast frame (a
	// beacon, in this protocol).
	BroadcastReceived(from wire.Address, payload []byte)
}

// MAC is the narrow surface the core needs from the radio driver: submit
// one unicast frame at a time, and broadcast beacons. A MAC implementation
// must invoke the Callbacks it was opened with from a single goroutine (or
// serialise its own callback delivery), matching the single-threaded
// event-loop assumption the core is built around.
type MAC interface {
	// Open registers cb to receive inbound frames and send completions on
	// the given channel number. unicastChannel and broadcastChannel must
	// not collide.
	Open(unicastChannel, broadcastChannel int, cb Callbacks) error
	Close()

	// SendUnicast submits one frame with the given attributes to addr.
	// Completion is reported asynchronously via Callbacks.PacketSent.
	SendUnicast(addr wire.Address, attrs Attrs, payload []byte) error

	// SendBroadcast submits one broadcast frame (no attributes, no
	// completion callback: beacons are unacknowledged by design).
	SendBroadcast(payload []byte) error
}

// Announcement is one (channel, value) pair received from a neighbour's
// announcement subsystem.
type Announcement struct {
	From  wire.Address
	Value uint16
}

// Announcer is the seam to the announcement subsystem: disseminate this
// node's own (channel, value) pair via periodic broadcasts, and report
// values received from others.
type Announcer interface {
	Open(channel int, initial uint16) error
	Close()

	// Set republishes this node's own value.
	Set(value uint16)

	// Bump requests that the next broadcast happen sooner than its regular
	// schedule (a route just changed and neighbours should hear about it).
	Bump()

	// Received delivers announcements heard from other nodes.
	Received() <-chan Announcement
}
