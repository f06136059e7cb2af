// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"fmt"
	"net"

	"grimm.is/laddrd/internal/binder"
	"grimm.is/laddrd/internal/config"
	"grimm.is/laddrd/internal/laddr"
	"grimm.is/laddrd/internal/laddrtype"
	"grimm.is/laddrd/internal/logging"
	"grimm.is/laddrd/internal/portpool"
	"grimm.is/laddrd/internal/reload"
)

// runSelftest builds the runtime graph from configPath the same way
// runServe does, then drives a synthetic round of bind/unbind per virtual
// server against an in-memory SimPool, the way flywall-sim replays a PCAP
// against its simulated kernel. It exists so the allocator (C3/C4) and the
// steering-tag invariants of spec §8 can be exercised without a real
// forwarding plane or a live client population.
func runSelftest(configPath string, log *logging.Logger) error {
	cf, err := config.LoadConfigFile(configPath)
	if err != nil {
		return err
	}
	if errs := cf.Config.Validate(); errs.HasErrors() {
		return fmt.Errorf("invalid configuration: %s", errs.Error())
	}

	policy := policyFromConfig(cf.Config)
	pp := buildPortPool(cf.Config, policy)

	graph, err := reload.Build(cf.Config, nil)
	if err != nil {
		return err
	}

	bnd := binder.New(pp, log)
	numWorkers := numWorkersFromConfig(cf.Config, policy)

	for i, vs := range graph {
		vsc := cf.Config.VirtualServers[i]
		pool := laddr.New(pp)
		for _, lac := range vsc.LocalAddresses {
			addr := net.ParseIP(lac.Addr)
			if addr == nil {
				continue
			}
			if err := pool.Add(afFromString(lac.AF), addr, laddrtype.Interface{Name: lac.Iface}); err != nil {
				log.Warn("selftest: add laddr failed", "vs", vs.ID, "addr", lac.Addr, "err", err)
			}
		}

		const rounds = 1000
		ok, exhausted := 0, 0
		for n := 0; n < rounds; n++ {
			if len(vs.RS) == 0 {
				break
			}
			rs := vs.RS[n%len(vs.RS)]
			conn := &binder.Conn{
				Proto: vs.Identity.Proto,
				Dest:  portpool.Endpoint{IP: rs.Addr, Port: rs.Port},
			}
			svc := binder.Service{
				VSID:          vs.ID,
				Pool:          pool,
				Worker:        n % maxInt(numWorkers, 1),
				SchedulerIsRR: vs.Scheduler == "rr" || vs.Scheduler == "wrr",
			}
			if err := bnd.Bind(conn, svc); err != nil {
				exhausted++
				continue
			}
			ok++
			_ = bnd.Unbind(conn, svc)
		}
		fmt.Printf("vs=%s rounds=%d bound=%d exhausted=%d laddrs=%d\n", vs.ID, rounds, ok, exhausted, len(pool.Enumerate()))
	}
	return nil
}

func afFromString(s string) laddrtype.AddressFamily {
	if s == "inet6" {
		return laddrtype.AFInet6
	}
	return laddrtype.AFInet
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
