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

// Package neighbour holds the per-neighbour soft state (Neighbour) and the
// bounded, aging set of them that a node maintains (Table).
package neighbour

import (
	"time"

	"github.com/lngqakaza/libp/metric"
	"github.com/lngqakaza/libp/wire"
)

const (
	MaxAge   = 180 // periodic ticks before an unseen neighbour is evicted
	MaxLMAge = 10  // periodic ticks before a stale link metric is reset

	ExpectedCongestionDuration = 240 * time.Second
	CongestionPenalty          = 8 * metric.Unit
)

// Neighbour is the soft state kept about one radio neighbour: its
// advertised distance to the sink, how long it's been since we last heard
// from it, and a running link-quality estimate.
type Neighbour struct {
	Addr     wire.Address
	RTMetric uint16

	Age       uint16
	MetricAge uint16

	Link Link

	congestedUntil time.Time
}

// Link is the neighbour's link-quality estimator.
type Link = metric.LinkMetric

// New creates a freshly-discovered neighbour with the given advertised
// rtmetric; Age and MetricAge both start at zero.
func New(addr wire.Address, rtmetric uint16) *Neighbour {
	return &Neighbour{Addr: addr, RTMetric: rtmetric}
}

// OnTX records a successful transmission that took nTX MAC attempts.
func (n *Neighbour) OnTX(nTX uint8) {
	n.Link.UpdateTX(nTX)
	n.MetricAge = 0
	n.Age = 0
}

// OnTXFail records a transmission given up on after nTX MAC attempts.
func (n *Neighbour) OnTXFail(nTX uint8) {
	n.Link.UpdateTXFail(nTX)
	n.MetricAge = 0
	n.Age = 0
}

// OnRX records a reception from this neighbour (currently a no-op on the
// link estimate, see metric.LinkMetric.UpdateRX).
func (n *Neighbour) OnRX() {
	n.Link.UpdateRX()
	n.Age = 0
}

// UpdateRTMetric records a freshly-advertised rtmetric from this neighbour.
func (n *Neighbour) UpdateRTMetric(rtmetric uint16) {
	n.RTMetric = rtmetric
	n.Age = 0
}

// SetCongested marks the neighbour as congested until now+
// ExpectedCongestionDuration.
func (n *Neighbour) SetCongested(now time.Time) {
	n.congestedUntil = now.Add(ExpectedCongestionDuration)
}

// IsCongested reports whether the neighbour is still within its congestion
// window as of now.
func (n *Neighbour) IsCongested(now time.Time) bool {
	return now.Before(n.congestedUntil)
}

// LinkCost is the neighbour's link metric, penalised while congested.
func (n *Neighbour) LinkCost(now time.Time) uint16 {
	v := n.Link.Value()
	if n.IsCongested(now) {
		v += CongestionPenalty
	}
	return v
}

// Composite is the value parent selection minimises: this neighbour's own
// distance to the sink plus our cost of reaching it.
func (n *Neighbour) Composite(now time.Time) uint16 {
	c := uint32(n.RTMetric) + uint32(n.LinkCost(now))
	if c > wire.RTMetricMax {
		return wire.RTMetricMax
	}
	return uint16(c)
}

// Tick is the per-neighbour effect of one periodic aging tick: age and
// metric-age both advance, the link metric resets once metric-age reaches
// MaxLMAge, and the caller is told whether MaxAge has now been reached (in
// which case the neighbour should be evicted from its Table).
func (n *Neighbour) Tick() (expired bool) {
	n.Age++
	n.MetricAge++

	if n.MetricAge == MaxLMAge {
		n.Link.Reset()
		n.MetricAge = 0
	}

	return n.Age == MaxAge
}
