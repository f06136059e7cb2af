// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package portpool

import (
	"fmt"
	"net"
	"sync"

	laddrerrors "grimm.is/laddrd/internal/errors"
	"grimm.is/laddrd/internal/laddrtype"
)

// forbiddenRange is a half-open [lo, hi) port range carved out of the legal
// space before worker bit-masking, e.g. the privileged range and the
// ephemeral range reserved for clients (spec §4.1).
type forbiddenRange struct {
	lo, hi uint16 // hi == 0 means "to 65535" (open top)
}

func (r forbiddenRange) contains(p uint16) bool {
	if r.hi == 0 {
		return p >= r.lo
	}
	return p >= r.lo && p < r.hi
}

// SimPool is an in-memory Reserver used by tests and `laddrd selftest`. It
// implements both pool modes faithfully enough to exercise the binder's
// trial-and-rollback logic and the steering-tag invariants of spec §8, but
// carries no persistence and no real socket-option transport.
type SimPool struct {
	mode       laddrtype.PoolMode
	workerBits uint // B: low-order bits of lport select the worker in LPORT-mode
	numWorkers int
	enableMask uint64
	forbidden  []forbiddenRange

	mu sync.Mutex
	// used tracks reserved 4-tuples: key -> true.
	used map[string]bool
	// cursor is the next port candidate to try per (worker, iface, srcIP),
	// so repeated reservations don't always restart scanning from the mask floor.
	cursor map[string]uint16
	// laddrWorker maps "<iface>|<addr>" -> worker id in LADDR-mode.
	laddrWorker map[string]int
}

// NewSimPool builds a simulated pool. workerBits is B from spec §4.1;
// numWorkers must be <= 64 (worker ids >= 64 are always ignored per §6).
func NewSimPool(mode laddrtype.PoolMode, workerBits uint, numWorkers int, enableMask uint64) *SimPool {
	if numWorkers > 64 {
		numWorkers = 64
	}
	return &SimPool{
		mode:       mode,
		workerBits: workerBits,
		numWorkers: numWorkers,
		enableMask: enableMask,
		forbidden: []forbiddenRange{
			{lo: 0, hi: 1024},
			{lo: 50000, hi: 0},
		},
		used:        make(map[string]bool),
		cursor:      make(map[string]uint16),
		laddrWorker: make(map[string]int),
	}
}

// BindWorker pre-provisions <iface, addr> to a single worker; only meaningful
// in LADDR-mode, where Add() consults Workers() to decide which per-worker
// list gets a clone of a new laddr.
func (p *SimPool) BindWorker(iface laddrtype.Interface, addr net.IP, worker int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.laddrWorker[laddrKey(iface, addr)] = worker
}

func laddrKey(iface laddrtype.Interface, addr net.IP) string {
	return fmt.Sprintf("%s|%s", iface.Name, addr.String())
}

func (p *SimPool) Mode() laddrtype.PoolMode { return p.mode }

func (p *SimPool) Workers(iface laddrtype.Interface, addr net.IP) []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode == laddrtype.LADDRMode {
		w, ok := p.laddrWorker[laddrKey(iface, addr)]
		if !ok {
			return nil
		}
		return []int{w}
	}
	workers := make([]int, 0, p.numWorkers)
	for w := 0; w < p.numWorkers; w++ {
		if p.enableMask&(1<<uint(w)) != 0 {
			workers = append(workers, w)
		}
	}
	return workers
}

func (p *SimPool) isLegal(worker int, port uint16) bool {
	for _, r := range p.forbidden {
		if r.contains(port) {
			return false
		}
	}
	if p.mode == laddrtype.LPORTMode {
		mask := uint16(1)<<p.workerBits - 1
		return int(port&mask) == worker
	}
	return true
}

func flowKey(worker int, iface laddrtype.Interface, proto laddrtype.Protocol, src net.IP, port uint16, dst Endpoint) string {
	return fmt.Sprintf("%d|%s|%d|%s:%d|%s:%d", worker, iface.Name, proto, src, port, dst.IP, dst.Port)
}

// Reserve scans forward from the last-used candidate for this (worker,
// iface, srcIP), wrapping at 65535, skipping forbidden ranges and ports
// illegal for this worker under LPORT-mode masking.
func (p *SimPool) Reserve(worker int, iface laddrtype.Interface, proto laddrtype.Protocol, dst Endpoint, srcIP net.IP) (uint16, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	curKey := fmt.Sprintf("%d|%s|%s", worker, iface.Name, srcIP)
	start := p.cursor[curKey]
	if start == 0 {
		start = 1
	}

	var candidate uint16
	found := false
	port := start
	for i := 0; i < 65536; i++ {
		if p.isLegal(worker, port) {
			key := flowKey(worker, iface, proto, srcIP, port, dst)
			if !p.used[key] {
				candidate = port
				found = true
				break
			}
		}
		if port == 65535 {
			port = 0
		} else {
			port++
		}
	}
	if !found {
		return 0, laddrerrors.Errorf(laddrerrors.KindExhausted,
			"portpool: no free port for worker %d on %s/%s", worker, iface.Name, srcIP)
	}

	p.used[flowKey(worker, iface, proto, srcIP, candidate, dst)] = true
	next := candidate
	if next == 65535 {
		next = 0
	} else {
		next++
	}
	p.cursor[curKey] = next
	return candidate, nil
}

func (p *SimPool) Release(worker int, iface laddrtype.Interface, proto laddrtype.Protocol, dst Endpoint, src Endpoint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.used, flowKey(worker, iface, proto, src.IP, src.Port, dst))
	return nil
}

// Exhaust marks every legal port for (worker, iface, srcIP, dst) as used,
// for tests exercising the binder's resource-exhausted path (spec §8
// scenario 3).
func (p *SimPool) Exhaust(worker int, iface laddrtype.Interface, proto laddrtype.Protocol, dst Endpoint, srcIP net.IP) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for port := 0; port < 65536; port++ {
		pu := uint16(port)
		if p.isLegal(worker, pu) {
			p.used[flowKey(worker, iface, proto, srcIP, pu, dst)] = true
		}
	}
}
