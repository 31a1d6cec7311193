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

// Package metrics exposes the per-node counters named in the protocol's
// error-handling design as Prometheus counters, labelled by node address, so
// a multi-node deployment (or cmd/libp-sim) can scrape per-node behaviour
// instead of reading opaque in-memory uint64 fields.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lngqakaza/libp/wire"
)

const namespace = "libp"

// Stats is the full set of counters maintained by one or more Connections.
// The zero value is not usable; build one with New. (NewNil builds a
// Counters handle that discards everything, with no Stats behind it.)
type Stats struct {
	foundRoute *prometheus.CounterVec
	newParent  *prometheus.CounterVec
	routeLost  *prometheus.CounterVec
	ackSent    *prometheus.CounterVec
	dataSent   *prometheus.CounterVec
	dataRecv   *prometheus.CounterVec
	ackRecv    *prometheus.CounterVec
	badAck     *prometheus.CounterVec
	dupRecv    *prometheus.CounterVec
	qDrop      *prometheus.CounterVec
	rtDrop     *prometheus.CounterVec
	ttlDrop    *prometheus.CounterVec
	ackDrop    *prometheus.CounterVec
	timedOut   *prometheus.CounterVec
}

func vec(name, help string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, []string{"address"})
}

// New creates a Stats and registers all of its counters with reg.
func New(reg prometheus.Registerer) *Stats {
	s := &Stats{
		foundRoute: vec("found_route_total", "Times a route to the sink was (re)found after having none."),
		newParent:  vec("new_parent_total", "Times the preferred next hop changed."),
		routeLost:  vec("route_lost_total", "Times the last usable route to the sink was lost."),
		ackSent:    vec("ack_sent_total", "Network-layer ACKs sent."),
		dataSent:   vec("data_sent_total", "DATA packets handed to the MAC for unicast."),
		dataRecv:   vec("data_recv_total", "DATA packets received, including duplicates."),
		ackRecv:    vec("ack_recv_total", "ACKs received, including mismatched ones."),
		badAck:     vec("bad_ack_total", "ACKs discarded for not matching the in-flight packet."),
		dupRecv:    vec("dup_recv_total", "DATA packets recognised as duplicates of something already forwarded."),
		qDrop:      vec("queue_drop_total", "Forwarded packets dropped because the send queue had no headroom."),
		rtDrop:     vec("no_route_drop_total", "Packets that could not be forwarded for lack of a route."),
		ttlDrop:    vec("ttl_drop_total", "Packets dropped for exceeding their hop limit."),
		ackDrop:    vec("ack_drop_total", "Packets reported dropped by a forwarder via its ACK."),
		timedOut:   vec("timed_out_total", "In-flight packets abandoned after exhausting their retransmission budget."),
	}

	for _, c := range s.all() {
		reg.MustRegister(c)
	}

	return s
}

func (s *Stats) all() []*prometheus.CounterVec {
	return []*prometheus.CounterVec{
		s.foundRoute, s.newParent, s.routeLost, s.ackSent, s.dataSent,
		s.dataRecv, s.ackRecv, s.badAck, s.dupRecv, s.qDrop, s.rtDrop,
		s.ttlDrop, s.ackDrop, s.timedOut,
	}
}

// For returns a handle bound to one node address; every call increments the
// series for that address only.
func (s *Stats) For(addr wire.Address) *Counters {
	return &Counters{stats: s, label: addr.String()}
}

// Counters is a Stats handle bound to one node's address label.
type Counters struct {
	stats *Stats
	label string
}

func (c *Counters) FoundRoute() {
	if c.stats != nil {
		c.stats.foundRoute.WithLabelValues(c.label).Inc()
	}
}

func (c *Counters) NewParent() {
	if c.stats != nil {
		c.stats.newParent.WithLabelValues(c.label).Inc()
	}
}

func (c *Counters) RouteLost() {
	if c.stats != nil {
		c.stats.routeLost.WithLabelValues(c.label).Inc()
	}
}

func (c *Counters) AckSent() {
	if c.stats != nil {
		c.stats.ackSent.WithLabelValues(c.label).Inc()
	}
}

func (c *Counters) DataSent() {
	if c.stats != nil {
		c.stats.dataSent.WithLabelValues(c.label).Inc()
	}
}

func (c *Counters) DataRecv() {
	if c.stats != nil {
		c.stats.dataRecv.WithLabelValues(c.label).Inc()
	}
}

func (c *Counters) AckRecv() {
	if c.stats != nil {
		c.stats.ackRecv.WithLabelValues(c.label).Inc()
	}
}

func (c *Counters) BadAck() {
	if c.stats != nil {
		c.stats.badAck.WithLabelValues(c.label).Inc()
	}
}

func (c *Counters) DupRecv() {
	if c.stats != nil {
		c.stats.dupRecv.WithLabelValues(c.label).Inc()
	}
}

func (c *Counters) QDrop() {
	if c.stats != nil {
		c.stats.qDrop.WithLabelValues(c.label).Inc()
	}
}

func (c *Counters) RTDrop() {
	if c.stats != nil {
		c.stats.rtDrop.WithLabelValues(c.label).Inc()
	}
}

func (c *Counters) TTLDrop() {
	if c.stats != nil {
		c.stats.ttlDrop.WithLabelValues(c.label).Inc()
	}
}

func (c *Counters) AckDrop() {
	if c.stats != nil {
		c.stats.ackDrop.WithLabelValues(c.label).Inc()
	}
}

func (c *Counters) TimedOut() {
	if c.stats != nil {
		c.stats.timedOut.WithLabelValues(c.label).Inc()
	}
}

// NewNil returns a Counters handle that discards every increment, for
// Connections opened without a Stats registry.
func NewNil() *Counters {
	return &Counters{}
}
