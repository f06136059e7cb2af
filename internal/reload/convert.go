// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package reload implements the config-reload differ of component C8: it
// builds a fresh runtime graph from a decoded config, diffs it against the
// graph currently in service, and migrates surviving runtime state (RS
// alive flags, checker history) onto the new objects instead of discarding
// it on every reload (spec §4.7).
package reload

import (
	"fmt"
	"net"

	"grimm.is/laddrd/internal/config"
	laddrerrors "grimm.is/laddrd/internal/errors"
	"grimm.is/laddrd/internal/laddrtype"
)

// IfaceResolver resolves an interface name to a handle. In production this
// is steering.ResolveInterface; tests supply a stub.
type IfaceResolver func(name string) (laddrtype.Interface, error)

// Build converts a decoded config into a fresh runtime graph. The returned
// VirtualServers have zeroed runtime state (Alive=false, no checker
// history) — Diff is responsible for migrating state from the prior graph
// before the result is put into service.
func Build(cfg *config.Config, resolve IfaceResolver) ([]*laddrtype.VirtualServer, error) {
	groups := make(map[string]*laddrtype.VSGroup, len(cfg.VSGroups))
	for _, g := range cfg.VSGroups {
		groups[g.Name] = buildGroup(g)
	}

	out := make([]*laddrtype.VirtualServer, 0, len(cfg.VirtualServers))
	for _, vsc := range cfg.VirtualServers {
		vs, err := buildVS(vsc, groups, resolve)
		if err != nil {
			return nil, laddrerrors.Wrapf(err, laddrerrors.KindValidation, "reload: building virtual_server %q", vsc.ID)
		}
		out = append(out, vs)
	}
	return out, nil
}

func buildGroup(g config.VSGroup) *laddrtype.VSGroup {
	out := &laddrtype.VSGroup{Name: g.Name}
	for _, e := range g.Entries {
		entry := laddrtype.VSGroupEntry{FWMark: e.FWMark, IsFWMark: e.FWMark != 0}
		if !entry.IsFWMark {
			entry.AF = parseAF(e.AF)
			entry.RangeLo = net.ParseIP(e.RangeLo)
			entry.RangeHi = net.ParseIP(e.RangeHi)
		}
		out.Entries = append(out.Entries, entry)
	}
	return out
}

func buildVS(vsc config.VirtualServer, groups map[string]*laddrtype.VSGroup, resolve IfaceResolver) (*laddrtype.VirtualServer, error) {
	vs := &laddrtype.VirtualServer{
		ID:         vsc.ID,
		Scheduler:  vsc.Scheduler,
		Quorum:     vsc.Quorum,
		Hysteresis: vsc.Hysteresis,
		Omega:      vsc.Omega,
		UpperLimit: vsc.UpperLimit,
		LowerLimit: vsc.LowerLimit,
		Identity: laddrtype.VSIdentity{
			AF:       parseAF(vsc.AF),
			Proto:    parseProto(vsc.Proto),
			VPort:    uint16(vsc.VPort),
			FWMark:   vsc.FWMark,
			HasMark:  vsc.HasMark,
			GroupRef: vsc.GroupRef,
		},
	}
	if vsc.VAddr != "" {
		vs.Identity.VAddr = net.ParseIP(vsc.VAddr)
	}
	if vsc.GroupRef != "" {
		vs.Group = groups[vsc.GroupRef]
	}

	for _, rsc := range vsc.RealServers {
		addr := net.ParseIP(rsc.Addr)
		rs := &laddrtype.RealServer{
			ID:      fmt.Sprintf("%s:%d", rsc.Addr, rsc.Port),
			Addr:    addr,
			Port:    uint16(rsc.Port),
			Weight:  rsc.Weight,
			IWeight: rsc.Weight,
			Inhibit: rsc.Inhibit,
		}
		vs.RS = append(vs.RS, rs)
	}

	if vsc.SorryServer != nil {
		vs.SorryRS = &laddrtype.RealServer{
			ID:   fmt.Sprintf("sorry:%s:%d", vsc.SorryServer.Addr, vsc.SorryServer.Port),
			Addr: net.ParseIP(vsc.SorryServer.Addr),
			Port: uint16(vsc.SorryServer.Port),
		}
	}

	if resolve != nil {
		for _, la := range vsc.LocalAddresses {
			if _, err := resolve(la.Iface); err != nil {
				return nil, laddrerrors.Wrapf(err, laddrerrors.KindNotFound, "reload: resolving iface %q", la.Iface)
			}
		}
	}

	return vs, nil
}

func parseAF(s string) laddrtype.AddressFamily {
	switch s {
	case "inet6":
		return laddrtype.AFInet6
	case "inet":
		return laddrtype.AFInet
	default:
		return laddrtype.AFUnspecified
	}
}

func parseProto(s string) laddrtype.Protocol {
	switch s {
	case "tcp":
		return laddrtype.ProtoTCP
	case "udp":
		return laddrtype.ProtoUDP
	default:
		return laddrtype.ProtoUnspecified
	}
}
