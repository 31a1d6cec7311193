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

package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lngqakaza/libp/wire"
)

// Topology is the YAML shape of the topology file named on the command
// line: a set of named
// nodes, the symmetric links between them, and the simulation's overall
// parameters.
type Topology struct {
	Sink         string        `yaml:"sink"`
	Duration     time.Duration `yaml:"duration"`
	BeaconPeriod time.Duration `yaml:"beacon_period"`
	Nodes        []NodeSpec    `yaml:"nodes"`
	Links        []LinkSpec    `yaml:"links"`
}

type NodeSpec struct {
	Name string `yaml:"name"`
}

type LinkSpec struct {
	A     string        `yaml:"a"`
	B     string        `yaml:"b"`
	Delay time.Duration `yaml:"delay"`
	Loss  float64       `yaml:"loss"`
}

// LoadTopology reads and validates a YAML topology file, assigning each
// named node a wire.Address in declaration order.
func LoadTopology(path string) (*Topology, map[string]wire.Address, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read topology: %w", err)
	}

	var t Topology
	if err := yaml.Unmarshal(buf, &t); err != nil {
		return nil, nil, fmt.Errorf("parse topology: %w", err)
	}

	if len(t.Nodes) == 0 {
		return nil, nil, fmt.Errorf("topology defines no nodes")
	}
	if t.Sink == "" {
		return nil, nil, fmt.Errorf("topology must name a sink")
	}
	if t.Duration <= 0 {
		t.Duration = 30 * time.Second
	}
	if t.BeaconPeriod <= 0 {
		t.BeaconPeriod = 5 * time.Second
	}

	addrs := make(map[string]wire.Address, len(t.Nodes))
	for i, n := range t.Nodes {
		if n.Name == "" {
			return nil, nil, fmt.Errorf("node %d has no name", i)
		}
		if _, dup := addrs[n.Name]; dup {
			return nil, nil, fmt.Errorf("duplicate node name %q", n.Name)
		}
		addrs[n.Name] = wire.NewAddress(0, uint8(i+1))
	}

	if _, ok := addrs[t.Sink]; !ok {
		return nil, nil, fmt.Errorf("sink %q is not a declared node", t.Sink)
	}

	for _, l := range t.Links {
		if _, ok := addrs[l.A]; !ok {
			return nil, nil, fmt.Errorf("link references unknown node %q", l.A)
		}
		if _, ok := addrs[l.B]; !ok {
			return nil, nil, fmt.Errorf("link references unknown node %q", l.B)
		}
	}

	return &t, addrs, nil
}
