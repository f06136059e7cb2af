// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package laddrtype

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalAddress_PinUnpinRefcount(t *testing.T) {
	l := NewLocalAddress(AFInet, net.ParseIP("10.0.0.1"), Interface{Name: "eth0"})
	require.True(t, l.Deletable())

	l.Pin()
	require.Equal(t, int64(1), l.RefCount())
	require.False(t, l.Deletable())

	l.AcquireConn()
	require.Equal(t, int64(1), l.ConnCount())

	l.ReleaseConn()
	l.Unpin()
	require.True(t, l.Deletable())
}

func TestLocalAddress_Equal(t *testing.T) {
	l := NewLocalAddress(AFInet, net.ParseIP("10.0.0.1"), Interface{Name: "eth0"})
	require.True(t, l.Equal(AFInet, net.ParseIP("10.0.0.1")))
	require.False(t, l.Equal(AFInet, net.ParseIP("10.0.0.2")))
	require.False(t, l.Equal(AFInet6, net.ParseIP("10.0.0.1")))
}

func TestRealServer_EffectiveWeight(t *testing.T) {
	rs := &RealServer{Weight: 10, Alive: true}
	require.Equal(t, 10, rs.EffectiveWeight())

	rs.Alive = false
	require.Equal(t, 0, rs.EffectiveWeight())
}

func TestVirtualServer_AliveWeightAndCount(t *testing.T) {
	vs := &VirtualServer{RS: []*RealServer{
		{Weight: 10, Alive: true},
		{Weight: 20, Alive: false},
		{Weight: 30, Alive: true},
	}}
	require.Equal(t, 40, vs.AliveWeight())
	require.Equal(t, 2, vs.AliveCount())
}

func TestVirtualServer_AliveRatio(t *testing.T) {
	vs := &VirtualServer{}
	require.Equal(t, 0, vs.AliveRatio(), "empty RS list must report ratio 0, not divide by zero")

	vs.RS = []*RealServer{
		{Alive: true}, {Alive: true}, {Alive: false}, {Alive: false},
	}
	require.Equal(t, 50, vs.AliveRatio())
}

func TestProtocolString(t *testing.T) {
	require.Equal(t, "tcp", ProtoTCP.String())
	require.Equal(t, "udp", ProtoUDP.String())
	require.Equal(t, "unspecified", ProtoUnspecified.String())
}
