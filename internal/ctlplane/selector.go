// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package ctlplane exposes the LADDR_ADD/DEL/FLUSH/GETALL control-plane
// operations of spec §6 over HTTP, and the error taxonomy of spec §7
// mapped onto HTTP status codes.
package ctlplane

import (
	"net"

	"grimm.is/laddrd/internal/laddr"
	"grimm.is/laddrd/internal/laddrtype"
)

// ServiceSelector identifies the VS an operation targets, either by
// (af, proto, vaddr, vport) or by firewall mark (spec §6 "match").
type ServiceSelector struct {
	AF     string `json:"af,omitempty"`
	Proto  string `json:"proto,omitempty"`
	VAddr  string `json:"vaddr,omitempty"`
	VPort  int    `json:"vport,omitempty"`
	FWMark uint32 `json:"fwmark,omitempty"`
	Match  string `json:"match,omitempty"` // "addr" | "fwmark"
}

// Service bundles the pieces of a VS the control plane needs to reach: its
// identity (for selector matching) and its laddr pool (for add/del/flush/enumerate).
type Service struct {
	ID       string
	Identity laddrtype.VSIdentity
	Pool     *laddr.Pool
	Iface    laddrtype.Interface
}

// Registry resolves a ServiceSelector to the Service it names. VS/RS
// lifecycle (reload, quorum) owns the registry; ctlplane only reads it.
type Registry interface {
	Resolve(sel ServiceSelector) (*Service, bool)
	All() []*Service
}

// matches reports whether svc satisfies sel, by fwmark when sel.Match is
// "fwmark" or FWMark is set, otherwise by the (af, proto, vaddr, vport) tuple.
func matches(svc *Service, sel ServiceSelector) bool {
	if sel.Match == "fwmark" || (sel.Match == "" && sel.FWMark != 0) {
		return svc.Identity.HasMark && svc.Identity.FWMark == sel.FWMark
	}
	if sel.VAddr == "" {
		return false
	}
	want := net.ParseIP(sel.VAddr)
	if want == nil || svc.Identity.VAddr == nil || !svc.Identity.VAddr.Equal(want) {
		return false
	}
	if sel.VPort != 0 && int(svc.Identity.VPort) != sel.VPort {
		return false
	}
	if sel.Proto != "" && svc.Identity.Proto.String() != sel.Proto {
		return false
	}
	return true
}
