// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package laddr

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"grimm.is/laddrd/internal/laddrtype"
	"grimm.is/laddrd/internal/portpool"
)

func lportPool(t *testing.T, numWorkers int, workerBits uint) (*Pool, *portpool.SimPool) {
	t.Helper()
	pp := portpool.NewSimPool(laddrtype.LPORTMode, workerBits, numWorkers, (1<<uint(numWorkers))-1)
	return New(pp), pp
}

func TestPool_AddRejectsDuplicate(t *testing.T) {
	p, _ := lportPool(t, 4, 2)
	iface := laddrtype.Interface{Name: "eth0"}
	require.NoError(t, p.Add(laddrtype.AFInet, net.ParseIP("10.0.0.1"), iface))
	err := p.Add(laddrtype.AFInet, net.ParseIP("10.0.0.1"), iface)
	require.Error(t, err)
}

func TestPool_DeleteBusyThenOK(t *testing.T) {
	p, _ := lportPool(t, 4, 2)
	iface := laddrtype.Interface{Name: "eth0"}
	addr := net.ParseIP("10.0.0.1")
	require.NoError(t, p.Add(laddrtype.AFInet, addr, iface))

	unlock := p.Lock()
	la := p.SelectLocked(0, false)
	unlock()
	require.NotNil(t, la)

	err := p.Delete(laddrtype.AFInet, addr)
	require.Error(t, err)

	la.Unpin()
	require.NoError(t, p.Delete(laddrtype.AFInet, addr))
}

func TestPool_DeleteNotExist(t *testing.T) {
	p, _ := lportPool(t, 4, 2)
	err := p.Delete(laddrtype.AFInet, net.ParseIP("10.0.0.9"))
	require.Error(t, err)
}

func TestPool_RoundRobinFairness(t *testing.T) {
	p, _ := lportPool(t, 4, 2)
	iface := laddrtype.Interface{Name: "eth0"}
	addrs := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}
	for _, a := range addrs {
		require.NoError(t, p.Add(laddrtype.AFInet, net.ParseIP(a), iface))
	}

	counts := map[string]int{}
	const k = 9000
	for i := 0; i < k; i++ {
		unlock := p.Lock()
		la := p.SelectLocked(0, false) // non-rr scheduler: no perturbation
		unlock()
		require.NotNil(t, la)
		counts[la.Addr.String()]++
		la.Unpin()
	}

	lo := k / len(addrs)
	hi := lo + 1
	for _, a := range addrs {
		ip := net.ParseIP(a).String()
		require.GreaterOrEqual(t, counts[ip], lo)
		require.LessOrEqual(t, counts[ip], hi)
	}
}

func TestPool_Perturbation(t *testing.T) {
	p, _ := lportPool(t, 4, 2)
	iface := laddrtype.Interface{Name: "eth0"}
	for _, a := range []string{"10.0.0.1", "10.0.0.2"} {
		require.NoError(t, p.Add(laddrtype.AFInet, net.ParseIP(a), iface))
	}

	const k = 10000
	nonSequential := 0
	var last *laddrtype.LocalAddress
	for i := 0; i < k; i++ {
		unlock := p.Lock()
		la := p.SelectLocked(0, true) // rr scheduler: perturbation active
		unlock()
		if last != nil && last == la {
			nonSequential++
		}
		last = la
		la.Unpin()
	}
	frac := float64(nonSequential) / float64(k)
	require.GreaterOrEqual(t, frac, 0.03)
	require.LessOrEqual(t, frac, 0.07)
}

func TestPool_Flush(t *testing.T) {
	p, _ := lportPool(t, 4, 2)
	iface := laddrtype.Interface{Name: "eth0"}
	require.NoError(t, p.Add(laddrtype.AFInet, net.ParseIP("10.0.0.1"), iface))
	require.NoError(t, p.Add(laddrtype.AFInet, net.ParseIP("10.0.0.2"), iface))

	unlock := p.Lock()
	pinned := p.SelectLocked(0, false)
	unlock()

	err := p.Flush()
	require.Error(t, err)

	snap := p.Enumerate()
	require.Len(t, snap, 1)
	require.Equal(t, pinned.Addr.String(), snap[0].Addr.String())
}

func TestPool_LADDRModeOnlyProvisionedWorkers(t *testing.T) {
	pp := portpool.NewSimPool(laddrtype.LADDRMode, 0, 4, 0xF)
	iface := laddrtype.Interface{Name: "eth0"}
	addr := net.ParseIP("10.0.0.5")
	pp.BindWorker(iface, addr, 2)

	p := New(pp)
	require.NoError(t, p.Add(laddrtype.AFInet, addr, iface))

	unlock := p.Lock()
	require.True(t, p.HasWorkerLocked(2))
	require.False(t, p.HasWorkerLocked(0))
	la := p.SelectLocked(2, false)
	none := p.SelectLocked(0, false)
	unlock()

	require.NotNil(t, la)
	require.Nil(t, none)
}
