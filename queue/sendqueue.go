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

// Package queue holds the two small bounded collections a forwarding node
// needs: the outgoing SendQueue and the DuplicateCache used to suppress
// re-forwarding packets already seen.
package queue

import (
	"time"

	"github.com/lngqakaza/libp/radio"
)

// RexmitTime is the base network-layer retransmission timeout:
// CLOCK_SECOND*32/NETSTACK_RDC_CHANNEL_CHECK_RATE in the original, scaled so
// a slower duty-cycled MAC backs off proportionally longer. 16 is
// ContikiMAC's common default channel-check rate.
const RexmitTime = 32 * time.Second / 16

// ForwardPacketLifetimeBase is the per-retransmission unit of a queued
// item's total lifetime.
const ForwardPacketLifetimeBase = 2 * RexmitTime

// Default bounds, expressed as in the original (a fraction of the
// underlying packet-buffer pool size and a reserved headroom for
// self-originated traffic).
const (
	QueuebufNum              = 16 // stand-in for the platform's QUEUEBUF_NUM
	MaxSendingQueue          = 3 * QueuebufNum / 4
	MinAvailableQueueEntries = 4
)

// Item is one packet waiting to be sent: its payload (already including any
// protocol header) together with the packet-buffer attributes it rode in
// on (or was originated with), how many network-layer retransmissions it
// is allowed, and when it was enqueued (so the engine can drop it once its
// lifetime has elapsed). Attrs travels with the item rather than being
// recomputed at send time because a forwarder must resend with the same
// TTL, hop count and end-to-end packet ID it received, only RTMetric and
// the per-hop PacketID are refreshed on each (re)transmission.
type Item struct {
	Payload   []byte
	Attrs     radio.Attrs
	MaxRexmit uint8
	Enqueued  time.Time
	Lifetime  time.Duration
}

// Expired reports whether the item has outlived its lifetime as of now.
func (it *Item) Expired(now time.Time) bool {
	return now.Sub(it.Enqueued) >= it.Lifetime
}

// SendQueue is a bounded FIFO of outgoing Items.
type SendQueue struct {
	Capacity int
	items    []*Item
}

// NewSendQueue creates a SendQueue with the given capacity, or
// MaxSendingQueue if capacity <= 0.
func NewSendQueue(capacity int) *SendQueue {
	if capacity <= 0 {
		capacity = MaxSendingQueue
	}
	return &SendQueue{Capacity: capacity}
}

// Len reports how many items are currently queued.
func (q *SendQueue) Len() int {
	return len(q.items)
}

// Enqueue appends an item if there is room. forwarded items must leave
// MinAvailableQueueEntries slots free for self-originated traffic;
// self-originated items may use the whole queue.
func (q *SendQueue) Enqueue(item *Item, forwarded bool) bool {
	limit := q.Capacity
	if forwarded {
		limit = q.Capacity - MinAvailableQueueEntries
	}

	if len(q.items) >= limit {
		return false
	}

	q.items = append(q.items, item)
	return true
}

// Free reports how many additional forwarded items could currently be
// admitted (i.e. how much headroom remains below Capacity-
// MinAvailableQueueEntries).
func (q *SendQueue) Free() int {
	limit := q.Capacity - MinAvailableQueueEntries
	free := limit - len(q.items)
	if free < 0 {
		return 0
	}
	return free
}

// Peek returns the head item without removing it, or nil if empty.
func (q *SendQueue) Peek() *Item {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// Pop removes and returns the head item, or nil if empty.
func (q *SendQueue) Pop() *Item {
	if len(q.items) == 0 {
		return nil
	}
	it := q.items[0]
	q.items = q.items[1:]
	return it
}

// DropExpired removes any items at the head of the queue whose lifetime has
// elapsed, returning how many were dropped. Expiry is only meaningful at
// the head: the queue is strict FIFO, so an un-expired item can never sit
// behind an expired one for long once the engine drains the queue.
func (q *SendQueue) DropExpired(now time.Time) (dropped int) {
	for len(q.items) > 0 && q.items[0].Expired(now) {
		q.items = q.items[1:]
		dropped++
	}
	return
}

// Purge empties the queue.
func (q *SendQueue) Purge() {
	q.items = nil
}
