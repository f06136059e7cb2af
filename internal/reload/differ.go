// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package reload

import "grimm.is/laddrd/internal/laddrtype"

// Plane is the forwarding-plane install contract Diff drives directly when
// it brings a freshly-configured RS alive at init/reload time, without
// waiting for the first health event (spec §4.7 step 2, keepalived's
// init_service_rs).
type Plane interface {
	InstallRS(vs *laddrtype.VirtualServer, rs *laddrtype.RealServer) error
}

// Plan is the result of diffing the in-service VS graph against a freshly
// built one: which VS to tear down, which to install, and which survived
// with their runtime state migrated onto the new object.
type Plan struct {
	Install []*laddrtype.VirtualServer // new VS ids, start in clear_service_vs state
	Remove  []*laddrtype.VirtualServer // old VS ids no longer present, tear down
	Keep    []*laddrtype.VirtualServer // matched by id, state migrated from old
}

// Diff matches old and new VS by ID, migrates per-RS alive state and
// checker history from old onto new for every match, and classifies the
// rest as pure installs/removals (spec §4.7 steps 1-2). Any RS that comes
// out of this with zero failed checkers and isn't already alive — brand
// new, or newly added to a surviving VS — is brought alive and installed to
// plane immediately, rather than waiting for a health event.
func Diff(old, new []*laddrtype.VirtualServer, plane Plane) *Plan {
	oldByID := make(map[string]*laddrtype.VirtualServer, len(old))
	for _, vs := range old {
		oldByID[vs.ID] = vs
	}
	newByID := make(map[string]*laddrtype.VirtualServer, len(new))
	for _, vs := range new {
		newByID[vs.ID] = vs
	}

	plan := &Plan{}
	for _, vs := range new {
		prev, ok := oldByID[vs.ID]
		if !ok {
			initServiceVS(vs, plane)
			plan.Install = append(plan.Install, vs)
			continue
		}
		migrateVS(prev, vs, plane)
		initServiceVS(vs, plane)
		plan.Keep = append(plan.Keep, vs)
	}
	for _, vs := range old {
		if _, ok := newByID[vs.ID]; !ok {
			plan.Remove = append(plan.Remove, vs)
		}
	}
	return plan
}

// migrateVS copies quorum/watchdog runtime state from prev onto next, and
// migrates per-RS and per-checker history by address:port / Compare match
// so a reload doesn't bounce every backend through a fresh alpha check
// (spec §4.7 step 2, §4.5 "Reloaded" flag).
func migrateVS(prev, next *laddrtype.VirtualServer, plane Plane) {
	next.Alive = prev.Alive
	next.QuorumUp = prev.QuorumUp
	next.SorrySet = prev.SorrySet
	next.RatioFlags = prev.RatioFlags

	prevRS := make(map[string]*laddrtype.RealServer, len(prev.RS))
	for _, rs := range prev.RS {
		prevRS[rs.ID] = rs
	}

	for _, rs := range next.RS {
		old, ok := prevRS[rs.ID]
		if !ok {
			continue
		}
		rs.Alive = old.Alive
		rs.Set = old.Set
		rs.Reloaded = true
		migrateCheckers(old, rs)
		rs.NumFailedCheckers = recomputeFailedCheckers(rs)

		if rs.NumFailedCheckers == 0 && !old.Alive {
			bringAlive(next, rs, plane)
		}
	}

	if prev.SorryRS != nil && next.SorryRS != nil && prev.SorryRS.ID == next.SorryRS.ID {
		next.SorryRS.Set = prev.SorryRS.Set
	}
}

// migrateCheckers matches each new checker to an old one via the opaque
// Compare predicate (falling back to ID equality) and carries over its
// up/down history so surviving checkers don't restart from Alpha.
func migrateCheckers(old, next *laddrtype.RealServer) {
	for _, nc := range next.Checkers {
		for _, oc := range old.Checkers {
			if checkersMatch(nc, oc) {
				nc.IsUp = oc.IsUp
				nc.HasRun = oc.HasRun
				nc.RetryIt = oc.RetryIt
				break
			}
		}
	}
}

// recomputeFailedCheckers counts checkers that have settled on a down
// verdict, rather than trusting the old RS's stale count forward across a
// reload (spec §4.7 final paragraph; ipwrapper.c's migrate_checkers_state).
func recomputeFailedCheckers(rs *laddrtype.RealServer) int {
	n := 0
	for _, c := range rs.Checkers {
		if c.HasRun && !c.IsUp {
			n++
		}
	}
	return n
}

// initServiceVS brings up every RS on vs that isn't alive yet but has zero
// failed checkers — a freshly-configured RS with nothing to fail doesn't
// wait for its first health probe to enter service (keepalived's
// init_service_vs/init_service_rs). RS already carried forward as alive by
// migrateVS are left untouched.
func initServiceVS(vs *laddrtype.VirtualServer, plane Plane) {
	for _, rs := range vs.RS {
		if rs.Alive || rs.NumFailedCheckers != 0 {
			continue
		}
		bringAlive(vs, rs, plane)
	}
}

// bringAlive flips rs to alive and installs it to plane, mirroring the
// quorum arbiter's own transitionUp loop so a later Evaluate(vs, true) sees
// rs.Set already true and skips re-installing it.
func bringAlive(vs *laddrtype.VirtualServer, rs *laddrtype.RealServer, plane Plane) {
	rs.Alive = true
	if plane == nil {
		return
	}
	if err := plane.InstallRS(vs, rs); err == nil {
		rs.Set = true
	}
}

func checkersMatch(a, b *laddrtype.Checker) bool {
	if a.Compare != nil {
		return a.Compare(b)
	}
	if b.Compare != nil {
		return b.Compare(a)
	}
	return a.ID == b.ID
}
