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

package queue

import "github.com/lngqakaza/libp/wire"

// NumRecentPackets is the size of the DuplicateCache ring.
const NumRecentPackets = 16

type recent struct {
	originator wire.Address
	eseqno     uint16
	valid      bool
}

// DuplicateCache is a small ring of recently-forwarded (originator,
// extended-seqno) pairs, used by a forwarder to suppress re-enqueuing a
// packet it has already forwarded. Zero-payload probe packets are never
// recorded here: see Insert.
type DuplicateCache struct {
	entries [NumRecentPackets]recent
	next    int
}

// Lookup reports whether (originator, eseqno) has been recorded.
func (c *DuplicateCache) Lookup(originator wire.Address, eseqno uint16) bool {
	for _, e := range c.entries {
		if e.valid && e.originator.Equal(originator) && e.eseqno == eseqno {
			return true
		}
	}
	return false
}

// Insert records (originator, eseqno), overwriting the oldest entry.
// Callers must only call Insert for packets with a non-empty payload:
// zero-payload packets are proactive-probing probes, and remembering them
// would let a probe suppress a genuine later delivery with the same
// sequence number.
func (c *DuplicateCache) Insert(originator wire.Address, eseqno uint16) {
	c.entries[c.next] = recent{originator: originator, eseqno: eseqno, valid: true}
	c.next = (c.next + 1) % NumRecentPackets
}
