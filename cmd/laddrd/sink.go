// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"sync"

	"grimm.is/laddrd/internal/ctlplane"
	"grimm.is/laddrd/internal/laddr"
	"grimm.is/laddrd/internal/laddrtype"
	"grimm.is/laddrd/internal/quorum"
	"grimm.is/laddrd/internal/watchdog"
)

// siblingIndex is a watchdog.VSGroupIndex whose backing VS set is swapped
// wholesale on every reload, so the cross-VS alive-ratio coordination of
// spec §4.6 sees the graph currently in service rather than a stale one.
type siblingIndex struct {
	mu  sync.RWMutex
	all []*laddrtype.VirtualServer
}

func (s *siblingIndex) replace(all []*laddrtype.VirtualServer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all = all
}

func (s *siblingIndex) Siblings(vs *laddrtype.VirtualServer) []*laddrtype.VirtualServer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return watchdog.NewGroupIndex(s.all).Siblings(vs)
}

// serviceSink wires a freshly diffed/migrated VS graph (reload.Diff's
// output, already state-migrated) into the three things that need to know
// about it: the control-plane registry laddrctl talks to, the cross-VS
// watchdog index, and the quorum arbiter, which is re-evaluated with
// init=true for every VS so a VS born (or reloaded) with an unmet quorum
// installs its sorry server immediately instead of waiting for the next
// health event (spec §4.4 "On init=true ... force the Down path").
type serviceSink struct {
	registry *ctlplane.StaticRegistry
	siblings *siblingIndex
	arbiter  *quorum.Arbiter
}

func newServiceSink(registry *ctlplane.StaticRegistry, siblings *siblingIndex, arbiter *quorum.Arbiter) *serviceSink {
	return &serviceSink{registry: registry, siblings: siblings, arbiter: arbiter}
}

func (s *serviceSink) Replace(vs []*laddrtype.VirtualServer, pools map[string]*laddr.Pool) {
	services := make([]*ctlplane.Service, 0, len(vs))
	for _, v := range vs {
		services = append(services, &ctlplane.Service{
			ID:       v.ID,
			Identity: v.Identity,
			Pool:     pools[v.ID],
		})
	}
	s.registry.Replace(services)
	s.siblings.replace(vs)

	for _, v := range vs {
		s.arbiter.Evaluate(v, true)
	}
}
