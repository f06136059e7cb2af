// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package health converts per-checker up/down transitions into RS
// alive/dead transitions with failed-checker counting (spec §4.5,
// component C6), then re-evaluates the quorum arbiter and alive-ratio
// watchdog on every RS-level transition.
package health

import (
	"grimm.is/laddrd/internal/laddrtype"
	"grimm.is/laddrd/internal/logging"
	"grimm.is/laddrd/internal/notify"
	"grimm.is/laddrd/internal/quorum"
)

// Plane is the forwarding-plane contract this integrator drives directly,
// independent of the quorum arbiter's own Plane (spec §4.5 "issues plane
// add/remove unless the sorry server has taken over").
type Plane interface {
	InstallRS(vs *laddrtype.VirtualServer, rs *laddrtype.RealServer) error
	RemoveRS(vs *laddrtype.VirtualServer, rs *laddrtype.RealServer) error
}

// Watchdog is the subset of the alive-ratio watchdog's API health needs to
// call on every RS transition (spec §4.6, component C7).
type Watchdog interface {
	OnRSTransition(vs *laddrtype.VirtualServer, up bool)
}

// Integrator wires checker results into RS state, the quorum arbiter, and
// the alive-ratio watchdog.
type Integrator struct {
	plane    Plane
	arbiter  *quorum.Arbiter
	watchdog Watchdog
	notify   *notify.Dispatcher
	log      *logging.Logger
}

// New builds an Integrator.
func New(plane Plane, arbiter *quorum.Arbiter, watchdog Watchdog, dispatcher *notify.Dispatcher, log *logging.Logger) *Integrator {
	if log == nil {
		log = logging.Default()
	}
	return &Integrator{plane: plane, arbiter: arbiter, watchdog: watchdog, notify: dispatcher, log: log.WithComponent("health")}
}

// Update applies one checker's up/down result to its owning RS (spec §4.5).
func (h *Integrator) Update(vs *laddrtype.VirtualServer, rs *laddrtype.RealServer, checker *laddrtype.Checker, alive bool) {
	if checker.IsUp == alive && checker.HasRun {
		return
	}

	if checker.IsUp == alive && !checker.HasRun {
		checker.HasRun = true
		if checker.Alpha || !alive {
			h.emitRS(vs, rs, alive, false)
		}
		return
	}

	checker.HasRun = true

	if alive {
		if rs.NumFailedCheckers <= 1 {
			h.performSvrState(vs, rs, true)
		}
	} else {
		if rs.NumFailedCheckers == 0 {
			h.performSvrState(vs, rs, false)
		}
	}

	checker.IsUp = alive
	if alive {
		if rs.NumFailedCheckers > 0 {
			rs.NumFailedCheckers--
		}
	} else {
		rs.NumFailedCheckers++
	}
}

// performSvrState is the RS-level transition (spec §4.5): logs, installs or
// removes in the plane (unless the sorry server has taken over, signaled by
// the VS currently being quorum-down with a sorry already installed),
// flips rs.Alive, emits notifications, updates the watchdog, and
// re-evaluates quorum.
func (h *Integrator) performSvrState(vs *laddrtype.VirtualServer, rs *laddrtype.RealServer, alive bool) {
	h.log.Info("rs state change", "vs", vs.ID, "rs", rs.ID, "alive", alive)

	sorryTookOver := !vs.QuorumUp && vs.SorrySet
	if !sorryTookOver {
		var err error
		if alive {
			err = h.plane.InstallRS(vs, rs)
		} else if !rs.Inhibit {
			err = h.plane.RemoveRS(vs, rs)
		}
		if err != nil {
			h.log.Error("plane update failed", "vs", vs.ID, "rs", rs.ID, "err", err)
		} else {
			rs.Set = alive || rs.Inhibit
		}
	}

	rs.Alive = alive
	h.emitRS(vs, rs, alive, false)

	if h.watchdog != nil {
		h.watchdog.OnRSTransition(vs, alive)
	}
	if h.arbiter != nil {
		h.arbiter.Evaluate(vs, false)
	}
}

func (h *Integrator) emitRS(vs *laddrtype.VirtualServer, rs *laddrtype.RealServer, alive bool, shutdown bool) {
	if h.notify == nil {
		return
	}
	h.notify.RSStateChange(notify.RSEvent{
		RSID:      rs.ID,
		VSID:      vs.ID,
		Up:        alive,
		Shutdown:  shutdown,
		OmegaFlag: vs.Omega,
	})
}
