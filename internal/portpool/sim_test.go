// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package portpool

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"grimm.is/laddrd/internal/errors"
	"grimm.is/laddrd/internal/laddrtype"
)

func TestSimPool_ReserveRespectsWorkerMask(t *testing.T) {
	pp := NewSimPool(laddrtype.LPORTMode, 2, 4, 0xF)
	iface := laddrtype.Interface{Name: "eth0"}
	dst := Endpoint{IP: net.ParseIP("198.51.100.1"), Port: 80}

	port, err := pp.Reserve(2, iface, laddrtype.ProtoTCP, dst, net.ParseIP("10.0.0.1"))
	require.NoError(t, err)
	require.Equal(t, uint16(2), port%4)
}

func TestSimPool_ReserveAvoidsForbiddenRanges(t *testing.T) {
	pp := NewSimPool(laddrtype.LADDRMode, 0, 1, 0x1)
	iface := laddrtype.Interface{Name: "eth0"}
	dst := Endpoint{IP: net.ParseIP("198.51.100.1"), Port: 80}

	for i := 0; i < 200; i++ {
		port, err := pp.Reserve(0, iface, laddrtype.ProtoTCP, dst, net.ParseIP("10.0.0.1"))
		require.NoError(t, err)
		require.False(t, port < 1024, "port %d falls in the privileged range", port)
		require.False(t, port >= 50000, "port %d falls in the reserved ephemeral range", port)
	}
}

func TestSimPool_ReleaseAllowsReReservation(t *testing.T) {
	pp := NewSimPool(laddrtype.LADDRMode, 0, 1, 0x1)
	iface := laddrtype.Interface{Name: "eth0"}
	dst := Endpoint{IP: net.ParseIP("198.51.100.1"), Port: 80}
	srcIP := net.ParseIP("10.0.0.1")

	pp.Exhaust(0, iface, laddrtype.ProtoTCP, dst, srcIP)
	_, err := pp.Reserve(0, iface, laddrtype.ProtoTCP, dst, srcIP)
	require.Error(t, err)
	require.Equal(t, errors.KindExhausted, errors.KindOf(err))

	require.NoError(t, pp.Release(0, iface, laddrtype.ProtoTCP, dst, Endpoint{IP: srcIP, Port: 1024}))
	_, err = pp.Reserve(0, iface, laddrtype.ProtoTCP, dst, srcIP)
	require.NoError(t, err)
}

func TestSimPool_WorkersLPORTModeReturnsEnabledSet(t *testing.T) {
	pp := NewSimPool(laddrtype.LPORTMode, 2, 4, 0b1011)
	workers := pp.Workers(laddrtype.Interface{Name: "eth0"}, net.ParseIP("10.0.0.1"))
	require.ElementsMatch(t, []int{0, 1, 3}, workers)
}

func TestSimPool_WorkersLADDRModeReturnsBoundWorker(t *testing.T) {
	pp := NewSimPool(laddrtype.LADDRMode, 0, 4, 0xF)
	iface := laddrtype.Interface{Name: "eth0"}
	addr := net.ParseIP("10.0.0.1")

	require.Empty(t, pp.Workers(iface, addr))

	pp.BindWorker(iface, addr, 3)
	require.Equal(t, []int{3}, pp.Workers(iface, addr))
}

func TestSimPool_Mode(t *testing.T) {
	require.Equal(t, laddrtype.LPORTMode, NewSimPool(laddrtype.LPORTMode, 2, 4, 0xF).Mode())
	require.Equal(t, laddrtype.LADDRMode, NewSimPool(laddrtype.LADDRMode, 0, 4, 0xF).Mode())
}
