// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package steering

import (
	"github.com/vishvananda/netlink"

	laddrerrors "grimm.is/laddrd/internal/errors"
	"grimm.is/laddrd/internal/laddrtype"
)

// ResolveInterface resolves ifname to an interface handle via netlink, the
// way laddr.Pool.Add needs to in order to stamp a LocalAddress record
// (spec §4.2).
func ResolveInterface(ifname string) (laddrtype.Interface, error) {
	link, err := netlink.LinkByName(ifname)
	if err != nil {
		return laddrtype.Interface{}, laddrerrors.Wrapf(err, laddrerrors.KindInvalid,
			"steering: interface %s not found", ifname)
	}
	attrs := link.Attrs()
	return laddrtype.Interface{Name: attrs.Name, Index: attrs.Index}, nil
}
