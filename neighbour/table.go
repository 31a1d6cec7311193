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

package neighbour

import (
	"time"

	"github.com/lngqakaza/libp/wire"
)

// MaxNeighbours is the default bound on a Table's size.
const MaxNeighbours = 8

// Table is a bounded, address-keyed set of neighbours with aging and
// worst-first eviction, mirroring libp_neighbour_list from the original
// implementation. A Table is not safe for concurrent use; callers own
// serialising access to it (in this module, the owning Connection's event
// loop goroutine).
type Table struct {
	Capacity int
	list     []*Neighbour
}

// NewTable creates a Table with the given capacity, or MaxNeighbours if cap
// <= 0.
func NewTable(capacity int) *Table {
	if capacity <= 0 {
		capacity = MaxNeighbours
	}
	return &Table{Capacity: capacity}
}

// Num reports how many neighbours are currently tracked.
func (t *Table) Num() int {
	return len(t.list)
}

// Get returns the i'th neighbour (in insertion order), or nil if out of
// range.
func (t *Table) Get(i int) *Neighbour {
	if i < 0 || i >= len(t.list) {
		return nil
	}
	return t.list[i]
}

// Find returns the neighbour with the given address, or nil.
func (t *Table) Find(addr wire.Address) *Neighbour {
	for _, n := range t.list {
		if n.Addr.Equal(addr) {
			return n
		}
	}
	return nil
}

// Remove drops the neighbour with the given address, if present.
func (t *Table) Remove(addr wire.Address) {
	for i, n := range t.list {
		if n.Addr.Equal(addr) {
			t.list = append(t.list[:i], t.list[i+1:]...)
			return
		}
	}
}

// Purge empties the table.
func (t *Table) Purge() {
	t.list = nil
}

// worst returns the neighbour with the largest RTMetric (the one we'd
// least miss), or nil if the table is empty.
func (t *Table) worst() *Neighbour {
	var w *Neighbour
	for _, n := range t.list {
		if w == nil || n.RTMetric > w.RTMetric {
			w = n
		}
	}
	return w
}

// Add inserts or refreshes a neighbour. If addr is already present its
// rtmetric is overwritten and its age/link-metric reset, and Add reports
// true. If addr is new and the table has spare capacity, it is appended. If
// the table is full, the new neighbour is admitted only by evicting the
// current worst neighbour, and only if it is actually better (a strictly
// lower rtmetric) than what it would replace; otherwise Add reports false
// and the table is unchanged.
func (t *Table) Add(addr wire.Address, rtmetric uint16) bool {
	if n := t.Find(addr); n != nil {
		n.RTMetric = rtmetric
		n.Age = 0
		n.Link.Reset()
		n.MetricAge = 0
		return true
	}

	if len(t.list) < t.Capacity {
		t.list = append(t.list, New(addr, rtmetric))
		return true
	}

	worst := t.worst()
	if worst == nil || rtmetric >= worst.RTMetric {
		return false
	}

	t.Remove(worst.Addr)
	t.list = append(t.list, New(addr, rtmetric))
	return true
}

// Best returns the neighbour minimising the composite metric (rtmetric plus
// effective link cost), ties broken by earliest insertion. Returns nil if
// the table is empty or every neighbour's composite is at or above
// wire.RTMetricMax (no usable route).
func (t *Table) Best(now time.Time) *Neighbour {
	var best *Neighbour
	var bestComposite uint16

	for _, n := range t.list {
		c := n.Composite(now)
		if c >= wire.RTMetricMax {
			continue
		}
		if best == nil || c < bestComposite {
			best = n
			bestComposite = c
		}
	}

	return best
}

// Tick applies one periodic aging step to every neighbour, removing any
// that have reached MaxAge.
func (t *Table) Tick() {
	var keep []*Neighbour
	for _, n := range t.list {
		if !n.Tick() {
			keep = append(keep, n)
		}
	}
	t.list = keep
}
