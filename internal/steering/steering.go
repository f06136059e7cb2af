// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package steering derives the worker-affinity tag that a NIC filter table
// uses to hash reply traffic back to the worker that owns the flow state
// (spec §4.1, component C2).
package steering

import (
	"grimm.is/laddrd/internal/laddrtype"
)

// Tag identifies which data-plane worker a bound connection's reply traffic
// must land on.
type Tag struct {
	Worker int
}

// DeriveLPORT computes the steering tag from the low-order bits of a
// reserved lport: legal lports on worker w satisfy p mod 2^B == w. Using
// low-order (rather than high-order) bits means carving forbidden ranges
// like [0,1024) or [50000,65535] out of the port space never starves a
// single worker of its share (spec §4.1).
func DeriveLPORT(lport uint16, workerBits uint) Tag {
	mask := uint16(1)<<workerBits - 1
	return Tag{Worker: int(lport & mask)}
}

// DeriveLADDR computes the steering tag for LADDR-mode, where the worker is
// whichever one the laddr's <addr, iface> was pre-bound to at add() time
// (spec §4.1, §4.2).
func DeriveLADDR(worker int) Tag {
	return Tag{Worker: worker}
}

// WorkerEnableMask is the 64-bit, read-only-after-init bitset naming which
// workers participate in LADDR-mode distribution; worker ids >= 64 are
// always ignored (spec §6).
type WorkerEnableMask uint64

// Enabled reports whether worker w participates, per the mask.
func (m WorkerEnableMask) Enabled(w int) bool {
	if w < 0 || w >= 64 {
		return false
	}
	return m&(1<<uint(w)) != 0
}

// Policy records the process-wide pool mode constant this steering policy
// was configured for; stored alongside the mask so callers needn't thread
// two separate globals through every component (spec §9 "Global state").
type Policy struct {
	Mode       laddrtype.PoolMode
	WorkerBits uint
	Mask       WorkerEnableMask
}

// NewLPORTPolicy builds a Policy for LPORT-mode with the given worker-bit width.
func NewLPORTPolicy(workerBits uint, mask WorkerEnableMask) Policy {
	return Policy{Mode: laddrtype.LPORTMode, WorkerBits: workerBits, Mask: mask}
}

// NewLADDRPolicy builds a Policy for LADDR-mode.
func NewLADDRPolicy(mask WorkerEnableMask) Policy {
	return Policy{Mode: laddrtype.LADDRMode, Mask: mask}
}
