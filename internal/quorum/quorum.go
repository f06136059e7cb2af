// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package quorum implements the hysteretic quorum predicate of spec §4.4,
// component C5: tracking quorum_state_up per VS, gating sorry-server
// install/removal, and emitting state-change notifications.
package quorum

import (
	"fmt"

	"grimm.is/laddrd/internal/laddrtype"
	"grimm.is/laddrd/internal/logging"
	"grimm.is/laddrd/internal/notify"
)

// Plane is the forwarding-plane install/remove contract this arbiter drives.
// It is intentionally narrow: the scheduler, the rule compiler, and the
// actual plane transport live outside this module (spec §1 non-goals).
type Plane interface {
	InstallRS(vs *laddrtype.VirtualServer, rs *laddrtype.RealServer) error
	RemoveRS(vs *laddrtype.VirtualServer, rs *laddrtype.RealServer) error
	InstallSorry(vs *laddrtype.VirtualServer) error
	RemoveSorry(vs *laddrtype.VirtualServer) error
}

// Recorder observes quorum transitions for metrics export.
type Recorder interface {
	QuorumTransition(vs, direction string)
}

// Arbiter evaluates and applies quorum transitions. It never fails: every
// call emits whatever state change the weight implies (spec §7).
type Arbiter struct {
	plane  Plane
	notify *notify.Dispatcher
	log    *logging.Logger
	rec    Recorder
}

// New builds an Arbiter driving plane and emitting through dispatcher.
func New(plane Plane, dispatcher *notify.Dispatcher, log *logging.Logger) *Arbiter {
	if log == nil {
		log = logging.Default()
	}
	return &Arbiter{plane: plane, notify: dispatcher, log: log.WithComponent("quorum")}
}

// WithRecorder attaches a metrics Recorder, returning the same Arbiter for chaining.
func (a *Arbiter) WithRecorder(rec Recorder) *Arbiter {
	a.rec = rec
	return a
}

// threshold returns Q-H when currently up, Q+H when currently down (spec §4.4).
func threshold(vs *laddrtype.VirtualServer) int {
	if vs.QuorumUp {
		return vs.Quorum - vs.Hysteresis
	}
	return vs.Quorum + vs.Hysteresis
}

// Evaluate re-checks the up/down predicate for vs given its current alive
// weight and applies any resulting transition. Call on every event that
// could change W, or with init=true on reload (spec §4.4).
func (a *Arbiter) Evaluate(vs *laddrtype.VirtualServer, init bool) {
	w := vs.AliveWeight()

	if init && vs.SorryRS != nil && !vs.SorrySet {
		a.transitionDown(vs, w, true)
		return
	}

	if vs.QuorumUp {
		if w == 0 || w < vs.Quorum-vs.Hysteresis {
			a.transitionDown(vs, w, false)
		}
		return
	}
	if w >= vs.Quorum+vs.Hysteresis {
		a.transitionUp(vs, w)
	}
}

func (a *Arbiter) transitionDown(vs *laddrtype.VirtualServer, w int, init bool) {
	vs.QuorumUp = false

	if vs.SorryRS != nil && !vs.SorrySet {
		if err := a.plane.InstallSorry(vs); err != nil {
			a.log.Error("install sorry server failed", "vs", vs.ID, "err", err)
		} else {
			vs.SorrySet = true
		}
	}

	// Transient takeover: alive RS stay marked alive, only their plane
	// presence is removed (spec §4.4 "do NOT mutate RS.alive").
	for _, rs := range vs.RS {
		if rs.Alive && rs.Set {
			if err := a.plane.RemoveRS(vs, rs); err != nil {
				a.log.Error("remove rs failed", "vs", vs.ID, "rs", rs.ID, "err", err)
				continue
			}
			rs.Set = false
		}
	}

	a.emit(vs, false, w, init)
}

func (a *Arbiter) transitionUp(vs *laddrtype.VirtualServer, w int) {
	vs.QuorumUp = true

	if vs.SorryRS != nil && vs.SorrySet {
		if err := a.plane.RemoveSorry(vs); err != nil {
			a.log.Error("remove sorry server failed", "vs", vs.ID, "err", err)
		} else {
			vs.SorrySet = false
		}
	}

	for _, rs := range vs.RS {
		if rs.Alive && !rs.Set {
			if err := a.plane.InstallRS(vs, rs); err != nil {
				a.log.Error("install rs failed", "vs", vs.ID, "rs", rs.ID, "err", err)
				continue
			}
			rs.Set = true
		}
	}

	a.emit(vs, true, w, false)
}

func (a *Arbiter) emit(vs *laddrtype.VirtualServer, up bool, w int, shutdown bool) {
	state := "DOWN"
	if up {
		state = "UP"
	}
	if a.rec != nil {
		a.rec.QuorumTransition(vs.ID, state)
	}
	if a.notify == nil {
		return
	}
	ineq := fmt.Sprintf("%d ± %d = %d <=> %d", vs.Quorum, vs.Hysteresis, threshold(vs), w)
	a.notify.VSStateChange(notify.VSEvent{
		VSID:       vs.ID,
		Up:         up,
		Inequality: ineq,
		Shutdown:   shutdown,
		OmegaFlag:  vs.Omega,
	})
}
