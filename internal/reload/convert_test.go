// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package reload

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"grimm.is/laddrd/internal/config"
	"grimm.is/laddrd/internal/laddrtype"
)

func TestBuild_ConvertsVirtualServerAndRealServers(t *testing.T) {
	cfg := &config.Config{
		VirtualServers: []config.VirtualServer{
			{
				ID: "web", AF: "inet", Proto: "tcp", VAddr: "10.0.0.1", VPort: 80,
				Quorum: 2, Hysteresis: 1, Scheduler: "rr",
				RealServers: []config.RealServerConfig{
					{Addr: "10.0.1.1", Port: 8080, Weight: 2},
				},
				SorryServer: &config.SorryServerConfig{Addr: "10.0.2.1", Port: 80},
			},
		},
	}

	out, err := Build(cfg, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)

	vs := out[0]
	require.Equal(t, "web", vs.ID)
	require.Equal(t, laddrtype.AFInet, vs.Identity.AF)
	require.Equal(t, laddrtype.ProtoTCP, vs.Identity.Proto)
	require.Equal(t, uint16(80), vs.Identity.VPort)
	require.Len(t, vs.RS, 1)
	require.Equal(t, "10.0.1.1:8080", vs.RS[0].ID)
	require.Equal(t, 2, vs.RS[0].Weight)
	require.NotNil(t, vs.SorryRS)
}

func TestBuild_ResolvesGroupRef(t *testing.T) {
	cfg := &config.Config{
		VSGroups: []config.VSGroup{
			{Name: "pool-a", Entries: []config.VSGroupEntry{{AF: "inet", RangeLo: "10.0.0.0", RangeHi: "10.0.0.255"}}},
		},
		VirtualServers: []config.VirtualServer{
			{ID: "web", VAddr: "10.0.0.1", VPort: 80, GroupRef: "pool-a"},
		},
	}

	out, err := Build(cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, out[0].Group)
	require.Equal(t, "pool-a", out[0].Group.Name)
}

func TestBuild_FailsOnUnresolvableIface(t *testing.T) {
	cfg := &config.Config{
		VirtualServers: []config.VirtualServer{
			{ID: "web", VAddr: "10.0.0.1", VPort: 80,
				LocalAddresses: []config.LocalAddressConfig{{Addr: "10.0.0.1", Iface: "eth9"}}},
		},
	}

	_, err := Build(cfg, func(name string) (laddrtype.Interface, error) {
		return laddrtype.Interface{}, errors.New("no such interface")
	})
	require.Error(t, err)
}
