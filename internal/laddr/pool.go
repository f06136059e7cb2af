// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package laddr implements the per-VS LaddrPool (spec §4.2, component C3):
// add/delete/flush/enumerate of local-address records, and round-robin
// selection with the 5% double-step perturbation.
package laddr

import (
	"math/rand"
	"net"
	"sync"

	laddrerrors "grimm.is/laddrd/internal/errors"
	"grimm.is/laddrd/internal/laddrtype"
	"grimm.is/laddrd/internal/portpool"
)

// perturbProbability is the chance that a select() advances the cursor by
// two nodes instead of one, breaking resonance between an rr/wrr RS
// scheduler and a strict-RR laddr cursor (spec §4.2 rationale).
const perturbProbability = 0.05

// Snapshot is one row of Pool.Enumerate's stable, lock-held copy.
type Snapshot struct {
	AF         laddrtype.AddressFamily
	Addr       net.IP
	ConnCounts int64
}

// Pool is the mode-dependent container described in spec §3 "LaddrPool": a
// single ring in LPORT-mode, or one ring per worker in LADDR-mode. The VS's
// write lock from spec §5 is this Pool's own mutex — callers that need to
// hold it across a multi-step operation (the binder's trial loop) use Lock/Unlock.
type Pool struct {
	mu   sync.RWMutex
	mode laddrtype.PoolMode
	pp   portpool.Reserver

	lport     *ring         // LPORT-mode
	perWorker map[int]*ring // LADDR-mode, keyed by worker id

	rand *rand.Rand
}

// New builds an empty pool in the mode pp reports.
func New(pp portpool.Reserver) *Pool {
	p := &Pool{mode: pp.Mode(), pp: pp, rand: rand.New(rand.NewSource(1))}
	if p.mode == laddrtype.LPORTMode {
		p.lport = newRing()
	} else {
		p.perWorker = make(map[int]*ring)
	}
	return p
}

// Lock acquires the pool's write lock and returns the matching Unlock,
// letting the binder hold it across its whole bounded trial loop (spec §4.3
// step 1–3 run "under the VS write lock").
func (p *Pool) Lock() func() {
	p.mu.Lock()
	return p.mu.Unlock
}

// Mode reports which pool mode this Pool operates in.
func (p *Pool) Mode() laddrtype.PoolMode { return p.mode }

// Add resolves ifname (already done by the caller into iface) and inserts a
// new record, rejecting a duplicate (af, addr) within this VS. In
// LADDR-mode the record is cloned into the ring of every worker the port
// pool reports as provisioned for <addr, iface>; if none, Add fails with
// KindInvalid (spec §4.2).
func (p *Pool) Add(af laddrtype.AddressFamily, addr net.IP, iface laddrtype.Interface) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.findAny(af, addr) != nil {
		return laddrerrors.New(laddrerrors.KindExist, "laddr: address already present in pool")
	}

	if p.mode == laddrtype.LPORTMode {
		la := laddrtype.NewLocalAddress(af, addr, iface)
		p.lport.insertTail(la)
		return nil
	}

	workers := p.pp.Workers(iface, addr)
	if len(workers) == 0 {
		return laddrerrors.Errorf(laddrerrors.KindInvalid,
			"laddr: no worker has a provisioned port pool for %s on %s", addr, iface.Name)
	}
	for _, w := range workers {
		r, ok := p.perWorker[w]
		if !ok {
			r = newRing()
			p.perWorker[w] = r
		}
		r.insertTail(laddrtype.NewLocalAddress(af, addr, iface))
	}
	return nil
}

func (p *Pool) findAny(af laddrtype.AddressFamily, addr net.IP) *node {
	if p.mode == laddrtype.LPORTMode {
		return p.lport.find(af, addr)
	}
	for _, r := range p.perWorker {
		if n := r.find(af, addr); n != nil {
			return n
		}
	}
	return nil
}

// Delete unlinks the (af, addr) record when unreferenced, returning
// KindBusy without side effects otherwise, and KindNotExist when absent
// (spec §4.2).
func (p *Pool) Delete(af laddrtype.AddressFamily, addr net.IP) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deleteLocked(af, addr)
}

func (p *Pool) deleteLocked(af laddrtype.AddressFamily, addr net.IP) error {
	rings := p.allRings()
	var nodes []*node
	for _, r := range rings {
		if n := r.find(af, addr); n != nil {
			nodes = append(nodes, n)
		}
	}
	if len(nodes) == 0 {
		return laddrerrors.New(laddrerrors.KindNotExist, "laddr: address not present in pool")
	}
	for _, n := range nodes {
		if !n.val.Deletable() {
			return laddrerrors.New(laddrerrors.KindBusy, "laddr: address has outstanding reservations")
		}
	}
	for _, r := range rings {
		if n := r.find(af, addr); n != nil {
			r.remove(n)
		}
	}
	return nil
}

func (p *Pool) allRings() []*ring {
	if p.mode == laddrtype.LPORTMode {
		return []*ring{p.lport}
	}
	rings := make([]*ring, 0, len(p.perWorker))
	for _, r := range p.perWorker {
		rings = append(rings, r)
	}
	return rings
}

// Flush best-effort deletes every unreferenced record, returning KindBusy if
// any record remained pinned (spec §4.2).
func (p *Pool) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	busy := false
	for _, r := range p.allRings() {
		for _, la := range r.snapshot() {
			if !la.Deletable() {
				busy = true
				continue
			}
			if n := r.find(la.AF, la.Addr); n != nil {
				r.remove(n)
			}
		}
	}
	if busy {
		return laddrerrors.New(laddrerrors.KindBusy, "laddr: flush left pinned addresses")
	}
	return nil
}

// Enumerate returns a stable snapshot copy of every record in the pool,
// merged across worker rings in LADDR-mode (spec §4.2): the same address can
// carry a separate clone (and a separate ConnCount) on each worker's ring, so
// the rows are combined by address rather than deduplicated on first sight.
func (p *Pool) Enumerate() []Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	order := make([]string, 0)
	merged := make(map[string]*Snapshot)
	for _, r := range p.allRings() {
		for _, la := range r.snapshot() {
			key := la.Addr.String()
			s, ok := merged[key]
			if !ok {
				s = &Snapshot{AF: la.AF, Addr: la.Addr}
				merged[key] = s
				order = append(order, key)
			}
			s.ConnCounts += la.ConnCount()
		}
	}
	out := make([]Snapshot, 0, len(order))
	for _, key := range order {
		out = append(out, *merged[key])
	}
	return out
}

// NumLaddrsLocked returns the count of laddrs visible to worker (ignored in
// LPORT-mode). Caller must hold Lock().
func (p *Pool) NumLaddrsLocked(worker int) int {
	if p.mode == laddrtype.LPORTMode {
		return p.lport.count
	}
	r, ok := p.perWorker[worker]
	if !ok {
		return 0
	}
	return r.count
}

// SelectLocked picks the next laddr by round robin, pinning it (Pin) before
// returning. schedulerIsRR gates the 5% perturbation, which only applies in
// LPORT-mode (spec §4.2). Caller must hold Lock().
func (p *Pool) SelectLocked(worker int, schedulerIsRR bool) *laddrtype.LocalAddress {
	r := p.ringForLocked(worker)
	if r == nil || r.count == 0 {
		return nil
	}

	step := 1
	if p.mode == laddrtype.LPORTMode && schedulerIsRR && p.rand.Float64() < perturbProbability {
		step = 2
	}
	n := r.advance(step)
	if n == nil {
		return nil
	}
	n.val.Pin()
	return n.val
}

func (p *Pool) ringForLocked(worker int) *ring {
	if p.mode == laddrtype.LPORTMode {
		return p.lport
	}
	return p.perWorker[worker]
}

// HasWorkerLocked reports whether this pool's LADDR-mode ring for worker
// contains a record at all (used by the binder to confirm a laddr's home
// worker before attempting a reservation). Caller must hold Lock().
func (p *Pool) HasWorkerLocked(worker int) bool {
	if p.mode == laddrtype.LPORTMode {
		return true
	}
	r, ok := p.perWorker[worker]
	return ok && r.count > 0
}
