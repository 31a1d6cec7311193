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

package wire

import (
	"encoding/binary"
	"fmt"
)

// Protocol-wide constants (units of metric.Unit unless stated otherwise).
const (
	RTMetricMax   = 511 // the least-desirable finite route cost; "no route" in practice
	RTMetricSink  = 0
	MaxHoplim     = 15 // TTL a freshly originated packet starts with
	MaxRexmits    = 31 // network-layer retransmission ceiling
	MaxMacRexmits = 2  // MAC-layer attempts per network-layer retransmission

	MaxAckMacRexmits = 5 // MAC-layer attempts for an ACK

	// CollectPacketIDBits is the width of the sequence-number space used for
	// both the per-hop PACKET_ID and the end-to-end EPACKET_ID.
	CollectPacketIDBits = 8
	SeqnoModulus        = 1 << CollectPacketIDBits
	SeqnoHalfSpace      = SeqnoModulus / 2
)

// PacketType distinguishes a DATA packet from its network-layer ACK.
type PacketType uint8

const (
	PacketData PacketType = 0
	PacketAck  PacketType = 1
)

// AckFlags are carried in the single flags byte of an AckMessage.
type AckFlags uint8

const (
	AckCongested           AckFlags = 0x80
	AckDropped             AckFlags = 0x40
	AckLifetimeExceeded    AckFlags = 0x20
	AckRTMetricNeedsUpdate AckFlags = 0x10
	AckParentChosen        AckFlags = 0x0B
	AckParentRemoved       AckFlags = 0x0A
)

func (f AckFlags) Has(bit AckFlags) bool { return f&bit != 0 }

// DataHeader is prepended to every originated or forwarded application
// payload.
type DataHeader struct {
	Flags    uint8
	Reserved uint8
	RTMetric uint16
}

const DataHeaderSize = 4

func (h DataHeader) Encode() []byte {
	b := make([]byte, DataHeaderSize)
	b[0] = h.Flags
	b[1] = h.Reserved
	binary.LittleEndian.PutUint16(b[2:], h.RTMetric)
	return b
}

func DecodeDataHeader(b []byte) (DataHeader, error) {
	if len(b) < DataHeaderSize {
		return DataHeader{}, errShortBuffer("data header", DataHeaderSize, len(b))
	}
	return DataHeader{
		Flags:    b[0],
		Reserved: b[1],
		RTMetric: binary.LittleEndian.Uint16(b[2:]),
	}, nil
}

// AckMessage is the entire payload of a network-layer ACK.
type AckMessage struct {
	Flags    AckFlags
	Reserved uint8
	RTMetric uint16
}

const AckMessageSize = 4

func (a AckMessage) Encode() []byte {
	b := make([]byte, AckMessageSize)
	b[0] = uint8(a.Flags)
	b[1] = a.Reserved
	binary.LittleEndian.PutUint16(b[2:], a.RTMetric)
	return b
}

func DecodeAckMessage(b []byte) (AckMessage, error) {
	if len(b) < AckMessageSize {
		return AckMessage{}, errShortBuffer("ack message", AckMessageSize, len(b))
	}
	return AckMessage{
		Flags:    AckFlags(b[0]),
		Reserved: b[1],
		RTMetric: binary.LittleEndian.Uint16(b[2:]),
	}, nil
}

// Beacon is the broadcast payload advertising a node's current rtmetric.
type Beacon struct {
	Flags    uint8
	Reserved uint8
	RTMetric uint16
	Seqno    uint8
}

const BeaconSize = 5

func (b Beacon) Encode() []byte {
	buf := make([]byte, BeaconSize)
	buf[0] = b.Flags
	buf[1] = b.Reserved
	binary.LittleEndian.PutUint16(buf[2:], b.RTMetric)
	buf[4] = b.Seqno
	return buf
}

func DecodeBeacon(buf []byte) (Beacon, error) {
	if len(buf) < BeaconSize {
		return Beacon{}, errShortBuffer("beacon", BeaconSize, len(buf))
	}
	return Beacon{
		Flags:    buf[0],
		Reserved: buf[1],
		RTMetric: binary.LittleEndian.Uint16(buf[2:]),
		Seqno:    buf[4],
	}, nil
}

func errShortBuffer(what string, want, got int) error {
	return fmt.Errorf("%s: short buffer, want at least %d bytes, got %d", what, want, got)
}
