// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package laddrtype holds the shared data model for the LADDR allocator and
// the quorum/health arbiter: local addresses, real servers, virtual servers,
// and checkers. It has no behavior of its own beyond small invariant helpers
// so every other package can depend on it without a cycle.
package laddrtype

import (
	"net"
	"sync/atomic"
)

// AddressFamily distinguishes v4 from v6 laddrs and VS endpoints.
type AddressFamily int

const (
	AFUnspecified AddressFamily = iota
	AFInet
	AFInet6
)

// Protocol is the transport protocol a VS serves.
type Protocol int

const (
	ProtoUnspecified Protocol = iota
	ProtoTCP
	ProtoUDP
)

func (p Protocol) String() string {
	switch p {
	case ProtoTCP:
		return "tcp"
	case ProtoUDP:
		return "udp"
	default:
		return "unspecified"
	}
}

// PoolMode is the process-wide, deployment-time constant selecting how the
// port pool steers reply traffic back to the owning worker (spec §4.1).
type PoolMode int

const (
	// LPORTMode: legal lports on worker w are those with p mod 2^B == w.
	LPORTMode PoolMode = iota
	// LADDRMode: each <lip, iface> is pre-bound to exactly one worker.
	LADDRMode
)

// Interface is an opaque handle to a resolved network interface, populated by
// internal/steering.ResolveInterface.
type Interface struct {
	Name  string
	Index int
}

// LocalAddress is one entry in a VS's LaddrPool (spec §3 "LocalAddress").
//
// refcnt pins the record against deletion: it is incremented by Pool.SelectLocked
// and decremented by the binder on bind failure or on Unbind. connCounts is
// purely observational and must never exceed refcnt.
type LocalAddress struct {
	AF    AddressFamily
	Addr  net.IP
	Iface Interface

	refcnt     int64
	connCounts int64
}

// NewLocalAddress constructs a zeroed record for af/addr/iface.
func NewLocalAddress(af AddressFamily, addr net.IP, iface Interface) *LocalAddress {
	return &LocalAddress{AF: af, Addr: addr, Iface: iface}
}

// RefCount returns the current pinning reference count.
func (l *LocalAddress) RefCount() int64 { return atomic.LoadInt64(&l.refcnt) }

// ConnCount returns the current observational connection count.
func (l *LocalAddress) ConnCount() int64 { return atomic.LoadInt64(&l.connCounts) }

// Pin increments refcnt; called when Pool.SelectLocked hands out this record.
func (l *LocalAddress) Pin() { atomic.AddInt64(&l.refcnt, 1) }

// Unpin decrements refcnt; called on select-rollback or on Unbind.
func (l *LocalAddress) Unpin() { atomic.AddInt64(&l.refcnt, -1) }

// AcquireConn increments the observational connection counter. Must only be
// called after a successful Pin (the binder's bind-success path).
func (l *LocalAddress) AcquireConn() { atomic.AddInt64(&l.connCounts, 1) }

// ReleaseConn decrements the observational connection counter.
func (l *LocalAddress) ReleaseConn() { atomic.AddInt64(&l.connCounts, -1) }

// Deletable reports whether refcnt is zero, i.e. the record may be unlinked.
func (l *LocalAddress) Deletable() bool { return l.RefCount() == 0 }

// Equal reports (af, addr) equality, the uniqueness key within one VS.
func (l *LocalAddress) Equal(af AddressFamily, addr net.IP) bool {
	return l.AF == af && l.Addr.Equal(addr)
}

// Checker is the reload-visible slice of an opaque health checker (spec §3
// "Checker"). The checker's actual probe logic lives outside this module;
// only the fields the quorum/health/reload machinery read or mutate live here.
type Checker struct {
	ID string

	IsUp    bool
	HasRun  bool
	Alpha   bool // pessimistic-start: assume down until first successful probe
	Retry   int
	RetryIt int

	// Compare is an opaque identity predicate used by the reload differ to
	// match an old checker to its replacement on a surviving RS (spec §4.7).
	Compare func(other *Checker) bool
}

// RealServer is one backend target of a VS (spec §3 "RealServer").
type RealServer struct {
	ID   string
	Addr net.IP
	Port uint16

	Weight  int
	IWeight int
	PWeight int

	Alive             bool
	Set               bool // forwarding-plane membership shadow
	Inhibit           bool // keep installed at weight 0 on failure instead of removing
	NumFailedCheckers int
	Reloaded          bool

	Checkers []*Checker
}

// EffectiveWeight returns the weight this RS should carry in quorum and
// scheduler computations: Weight when alive, zero when dead (an inhibited
// RS that is kept installed also counts as zero).
func (r *RealServer) EffectiveWeight() int {
	if r.Alive {
		return r.Weight
	}
	return 0
}

// VSGroupEntry is one address-range or fwmark member of a VSGroup.
type VSGroupEntry struct {
	AF       AddressFamily
	RangeLo  net.IP
	RangeHi  net.IP
	FWMark   uint32
	IsFWMark bool
}

// VSGroup is a named set of address-ranges/fwmarks sharing one service
// configuration (spec §3, GLOSSARY).
type VSGroup struct {
	Name    string
	Entries []VSGroupEntry
}

// VSIdentity is the union identity of a VirtualServer: either an
// (af, protocol, vaddr, vport) tuple, a firewall mark, or VSGroup membership.
type VSIdentity struct {
	AF       AddressFamily
	Proto    Protocol
	VAddr    net.IP
	VPort    uint16
	FWMark   uint32
	HasMark  bool
	GroupRef string // non-empty when this VS belongs to a VSGroup
}

// AliveRatioFlags tracks the watchdog's hysteresis bit and pending debounce.
type AliveRatioFlags struct {
	ReachedLower  bool
	DebouncePending bool
}

// VirtualServer is the frontend service owning a LaddrPool, an RS list, and
// optionally a sorry server (spec §3 "VirtualServer").
type VirtualServer struct {
	ID       string
	Identity VSIdentity

	Alive         bool
	QuorumUp      bool
	AliveRSCount  int
	Scheduler     string // e.g. "rr", "wrr" — governs the 5% perturbation (spec §4.2)
	Quorum        int
	Hysteresis    int
	Omega         bool // emit non-SNMP notifications during shutdown

	RS        []*RealServer
	SorryRS   *RealServer
	SorrySet  bool
	Group     *VSGroup

	RatioFlags    AliveRatioFlags
	UpperLimit    int // percent
	LowerLimit    int // percent
}

// AliveWeight computes W = Σ weight(rs) for alive rs, spec §4.4.
func (vs *VirtualServer) AliveWeight() int {
	w := 0
	for _, rs := range vs.RS {
		if rs.Alive {
			w += rs.Weight
		}
	}
	return w
}

// AliveCount returns the number of alive RS.
func (vs *VirtualServer) AliveCount() int {
	n := 0
	for _, rs := range vs.RS {
		if rs.Alive {
			n++
		}
	}
	return n
}

// AliveRatio computes r = 100 * alive / total, defined as 0 when the RS list
// is empty (spec §9 "rs_alive_count arithmetic").
func (vs *VirtualServer) AliveRatio() int {
	if len(vs.RS) == 0 {
		return 0
	}
	return 100 * vs.AliveCount() / len(vs.RS)
}
