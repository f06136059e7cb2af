// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"grimm.is/laddrd/internal/laddrtype"
	"grimm.is/laddrd/internal/logging"
)

// loggingPlane stands in for the forwarding-plane rule compiler that spec.md
// §1 explicitly places out of scope: laddrd only needs something that
// satisfies quorum.Plane and health.Plane so the arbiter and the health
// integrator have somewhere to send install/remove calls. A real deployment
// wires this to the scheduler/rule-table plugin named in spec §1; this one
// only logs each call and keeps no membership state, the way flywall-sim's kernel stands in
// for the real packet path.
type loggingPlane struct {
	log *logging.Logger
}

func newLoggingPlane(log *logging.Logger) *loggingPlane {
	return &loggingPlane{log: log.WithComponent("plane")}
}

func (p *loggingPlane) InstallRS(vs *laddrtype.VirtualServer, rs *laddrtype.RealServer) error {
	p.log.Info("plane install rs", "vs", vs.ID, "rs", rs.ID, "weight", rs.EffectiveWeight())
	return nil
}

func (p *loggingPlane) RemoveRS(vs *laddrtype.VirtualServer, rs *laddrtype.RealServer) error {
	p.log.Info("plane remove rs", "vs", vs.ID, "rs", rs.ID)
	return nil
}

func (p *loggingPlane) InstallSorry(vs *laddrtype.VirtualServer) error {
	if vs.SorryRS == nil {
		return nil
	}
	p.log.Warn("plane install sorry server", "vs", vs.ID, "sorry", vs.SorryRS.ID)
	return nil
}

func (p *loggingPlane) RemoveSorry(vs *laddrtype.VirtualServer) error {
	if vs.SorryRS == nil {
		return nil
	}
	p.log.Info("plane remove sorry server", "vs", vs.ID, "sorry", vs.SorryRS.ID)
	return nil
}
