// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package portpool declares the external contract this module binds
// against: the <lip:lport> source-port pool (spec §4.1, component C1).
// The pool itself — its exhaustion bookkeeping, its per-worker partitioning —
// lives outside this repository; laddrd only needs to reserve and release
// against it and to know, in LADDR-mode, which workers a given <lip, iface>
// has been provisioned for.
package portpool

import (
	"net"

	"grimm.is/laddrd/internal/laddrtype"
)

// Endpoint is a <ip, port> pair used as the destination and reserved source
// of a flow.
type Endpoint struct {
	IP   net.IP
	Port uint16
}

// Reserver is the port-pool contract (spec §4.1). Implementations must be
// safe for concurrent use by every data-plane worker.
type Reserver interface {
	// Reserve atomically allocates a 4-tuple-unique source port from the
	// pool associated with <iface, srcIP> on the given worker, for a flow
	// of the given protocol destined at dst. Returns an exhausted-flavored
	// error when the pool has nothing left for that worker.
	Reserve(worker int, iface laddrtype.Interface, proto laddrtype.Protocol, dst Endpoint, srcIP net.IP) (srcPort uint16, err error)

	// Release is idempotent with respect to a matching prior Reserve.
	Release(worker int, iface laddrtype.Interface, proto laddrtype.Protocol, dst Endpoint, src Endpoint) error

	// Workers returns the set of worker ids that have a provisioned pool
	// for <iface, addr>. In LPORT-mode every worker shares one pool and
	// this returns every enabled worker; in LADDR-mode it returns at most
	// the single worker <iface, addr> is pre-bound to.
	Workers(iface laddrtype.Interface, addr net.IP) []int

	// Mode reports the process-wide pool mode this implementation operates in.
	Mode() laddrtype.PoolMode
}
