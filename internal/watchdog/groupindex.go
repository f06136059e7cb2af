// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package watchdog

import (
	"bytes"

	"grimm.is/laddrd/internal/laddrtype"
)

// GroupIndex is the default VSGroupIndex: two VS are siblings when their
// own VAddr or fwmark coincide, or when both belong to VSGroups whose entries
// overlap. Ranges are compared as closed intervals on canonical address
// bytes (spec §9 flags the source's top-byte increment trick as a likely
// byte-order bug on little-endian hosts; this compares net.IP values
// directly instead of doing arithmetic on the underlying word).
type GroupIndex struct {
	all []*laddrtype.VirtualServer
}

// NewGroupIndex builds an index over the given set of VSes, refreshed on
// every config reload (spec §4.7).
func NewGroupIndex(all []*laddrtype.VirtualServer) *GroupIndex {
	return &GroupIndex{all: all}
}

func (g *GroupIndex) Siblings(vs *laddrtype.VirtualServer) []*laddrtype.VirtualServer {
	var out []*laddrtype.VirtualServer
	for _, other := range g.all {
		if shareAddress(vs, other) {
			out = append(out, other)
		}
	}
	return out
}

func shareAddress(a, b *laddrtype.VirtualServer) bool {
	if a == b {
		return true
	}
	if a.Identity.VAddr != nil && b.Identity.VAddr != nil && a.Identity.VAddr.Equal(b.Identity.VAddr) {
		return true
	}
	if a.Identity.HasMark && b.Identity.HasMark && a.Identity.FWMark == b.Identity.FWMark {
		return true
	}
	if a.Group != nil && b.Group != nil {
		for _, ea := range a.Group.Entries {
			for _, eb := range b.Group.Entries {
				if entriesOverlap(ea, eb) {
					return true
				}
			}
		}
	}
	return false
}

// entriesOverlap compares two VSGroupEntry ranges as closed intervals on
// canonical address bytes, or as equal fwmarks.
func entriesOverlap(a, b laddrtype.VSGroupEntry) bool {
	if a.IsFWMark || b.IsFWMark {
		return a.IsFWMark && b.IsFWMark && a.FWMark == b.FWMark
	}
	if a.AF != b.AF {
		return false
	}
	// [a.RangeLo, a.RangeHi] intersects [b.RangeLo, b.RangeHi] iff
	// a.lo <= b.hi && b.lo <= a.hi, compared byte-wise on canonical form.
	return bytes.Compare(a.RangeLo, b.RangeHi) <= 0 && bytes.Compare(b.RangeLo, a.RangeHi) <= 0
}
