// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package binder

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"grimm.is/laddrd/internal/laddr"
	"grimm.is/laddrd/internal/laddrtype"
	"grimm.is/laddrd/internal/portpool"
)

func newLPORTSetup(t *testing.T, workerBits uint, numWorkers int, addrs ...string) (*Binder, Service, *portpool.SimPool) {
	t.Helper()
	pp := portpool.NewSimPool(laddrtype.LPORTMode, workerBits, numWorkers, (1<<uint(numWorkers))-1)
	pool := laddr.New(pp)
	iface := laddrtype.Interface{Name: "eth0"}
	for _, a := range addrs {
		require.NoError(t, pool.Add(laddrtype.AFInet, net.ParseIP(a), iface))
	}
	b := New(pp, nil)
	svc := Service{Pool: pool, Worker: 2, Iface: iface}
	return b, svc, pp
}

func TestBind_StampsSteeredPort(t *testing.T) {
	b, svc, _ := newLPORTSetup(t, 2, 4, "10.0.0.1")
	conn := &Conn{
		Dest:  portpool.Endpoint{IP: net.ParseIP("198.51.100.1"), Port: 80},
		Proto: laddrtype.ProtoTCP,
	}

	require.NoError(t, b.Bind(conn, svc))
	require.Equal(t, uint16(2), conn.LPort%4)
	require.NotNil(t, conn.Local)
	require.Equal(t, int64(1), conn.Local.RefCount())
	require.Equal(t, int64(1), conn.Local.ConnCount())
}

func TestBind_TemplateIsNoop(t *testing.T) {
	b, svc, _ := newLPORTSetup(t, 2, 4, "10.0.0.1")
	conn := &Conn{Template: true, Proto: laddrtype.ProtoTCP}
	require.NoError(t, b.Bind(conn, svc))
	require.Nil(t, conn.Local)
}

func TestBindUnbind_RoundTrip(t *testing.T) {
	b, svc, _ := newLPORTSetup(t, 2, 4, "10.0.0.1")
	conn := &Conn{
		Dest:  portpool.Endpoint{IP: net.ParseIP("198.51.100.1"), Port: 80},
		Proto: laddrtype.ProtoTCP,
	}
	require.NoError(t, b.Bind(conn, svc))
	la := conn.Local

	require.NoError(t, b.Unbind(conn, svc))
	require.Nil(t, conn.Local)
	require.Equal(t, int64(0), la.RefCount())
	require.Equal(t, int64(0), la.ConnCount())

	// Idempotent: unbinding again is a no-op.
	require.NoError(t, b.Unbind(conn, svc))
}

func TestBind_ExhaustedAfterSixteenTrials(t *testing.T) {
	addrs := make([]string, 17)
	for i := range addrs {
		addrs[i] = net.IPv4(10, 0, 0, byte(i+1)).String()
	}
	b, svc, pp := newLPORTSetup(t, 2, 4, addrs...)

	dst := portpool.Endpoint{IP: net.ParseIP("198.51.100.1"), Port: 80}
	// Exhaust every laddr except the 17th (last inserted).
	for _, a := range addrs[:16] {
		pp.Exhaust(svc.Worker, svc.Iface, laddrtype.ProtoTCP, dst, net.ParseIP(a))
	}

	conn := &Conn{Dest: dst, Proto: laddrtype.ProtoTCP}
	err := b.Bind(conn, svc)
	require.Error(t, err)
	require.Nil(t, conn.Local)
}

func TestBind_RejectsUnsupportedProtocol(t *testing.T) {
	b, svc, _ := newLPORTSetup(t, 2, 4, "10.0.0.1")
	conn := &Conn{Proto: laddrtype.ProtoUnspecified}
	require.Error(t, b.Bind(conn, svc))
}
