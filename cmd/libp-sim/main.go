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

// Command libp-sim is a runnable demonstration of package libp: it reads a
// YAML topology, wires up an in-memory simradio.Medium, runs one Connection
// per node for the configured duration while a progress bar runs, and then
// prints each node's final rtmetric and parent.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/lngqakaza/libp/clock"
	"github.com/lngqakaza/libp/libp"
	applog "github.com/lngqakaza/libp/log"
	"github.com/lngqakaza/libp/metrics"
	"github.com/lngqakaza/libp/simradio"
	"github.com/lngqakaza/libp/wire"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <topology.yaml>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	metricsAddr := flag.String("metrics", "", "address to serve /metrics on, e.g. :9100 (disabled if empty)")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	topo, addrs, err := LoadTopology(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}

	reg := prometheus.NewRegistry()
	stats := metrics.New(reg)

	if *metricsAddr != "" {
		http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
				fmt.Fprintln(os.Stderr, "metrics server:", err)
			}
		}()
	}

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	medium := simradio.NewMedium(clock.Real{}, rnd)

	for _, l := range topo.Links {
		medium.SetLink(addrs[l.A], addrs[l.B], simradio.Link{Delay: l.Delay, Loss: l.Loss})
	}

	ctx, cancel := context.WithTimeout(context.Background(), topo.Duration)
	defer cancel()

	conns := make(map[string]*libp.Connection, len(topo.Nodes))
	g, gctx := errgroup.WithContext(ctx)

	for _, spec := range topo.Nodes {
		name := spec.Name
		addr := addrs[name]
		isSink := name == topo.Sink
		runID := xid.New().String()

		conn, err := libp.Open(libp.Config{
			Address:   addr,
			Channels:  5,
			MAC:       medium.MAC(addr),
			Announcer: medium.Announcer(addr),
			Logger:    nodeLogger{name: name, runID: runID},
			Stats:     stats,
			Rand:      rand.New(rand.NewSource(rnd.Int63())),
		}, libp.Router, nullCallbacks{})
		if err != nil {
			log.Fatalf("open %s: %v", name, err)
		}
		conns[name] = conn

		if isSink {
			conn.SetSink(true)
		}
		conn.SetBeaconPeriod(topo.BeaconPeriod)

		g.Go(func() error {
			<-gctx.Done()
			conn.Close()
			return nil
		})
	}

	bar := progressbar.Default(int64(topo.Duration/time.Second), "converging")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			bar.Add(1)
		}
	}
	bar.Finish()

	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}

	printSummary(topo, conns)
}

type nullCallbacks struct{}

func (nullCallbacks) Recv(wire.Address, uint16, uint8) {}

// nodeLogger adapts log.Log to fmt.Println, tagging every line with the
// node's name and a per-run instance id so that a node which is closed and
// reopened within the same process (simulating a reboot) is distinguishable
// in the output, matching cmd/bgp.go's Log type.
type nodeLogger struct {
	name  string
	runID string
}

func (l nodeLogger) NOTICE(facility string, kv applog.KV) {
	fmt.Println("NOTICE", l.name, l.runID, facility, kv)
}

func (l nodeLogger) WARNING(facility string, kv applog.KV) {
	fmt.Println("WARNING", l.name, l.runID, facility, kv)
}

func printSummary(topo *Topology, conns map[string]*libp.Connection) {
	names := make([]string, 0, len(conns))
	for name := range conns {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println()
	fmt.Printf("%-12s %-8s %-12s\n", "node", "rtmetric", "parent")
	for _, name := range names {
		conn := conns[name]
		parent := conn.Parent()
		parentName := "-"
		if !parent.IsNull() {
			parentName = parent.String()
		}
		fmt.Printf("%-12s %-8d %-12s\n", name, conn.Depth(), parentName)
	}
}
