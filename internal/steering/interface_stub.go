// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux

package steering

import (
	laddrerrors "grimm.is/laddrd/internal/errors"
	"grimm.is/laddrd/internal/laddrtype"
)

// ResolveInterface is unsupported on non-Linux builds; laddrd's forwarding
// plane is Linux-only, matching the rest of the netlink-backed control plane.
func ResolveInterface(ifname string) (laddrtype.Interface, error) {
	return laddrtype.Interface{}, laddrerrors.Errorf(laddrerrors.KindNotSupported,
		"steering: interface resolution unsupported on this platform")
}
