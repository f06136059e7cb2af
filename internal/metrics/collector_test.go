// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"grimm.is/laddrd/internal/laddr"
	"grimm.is/laddrd/internal/laddrtype"
	"grimm.is/laddrd/internal/portpool"
)

type fakeSource struct {
	vs    []*laddrtype.VirtualServer
	pools map[string]*laddr.Pool
}

func (f *fakeSource) VirtualServers() []*laddrtype.VirtualServer { return f.vs }
func (f *fakeSource) PoolFor(vsID string) *laddr.Pool            { return f.pools[vsID] }

func TestCollector_CollectPopulatesGauges(t *testing.T) {
	pp := portpool.NewSimPool(laddrtype.LPORTMode, 2, 4, 0xF)
	pool := laddr.New(pp)
	require.NoError(t, pool.Add(laddrtype.AFInet, net.ParseIP("10.0.0.1"), laddrtype.Interface{Name: "eth0"}))

	vs := &laddrtype.VirtualServer{
		ID:       "vs-1",
		QuorumUp: true,
		RS:       []*laddrtype.RealServer{{Alive: true}, {Alive: false}},
	}
	src := &fakeSource{vs: []*laddrtype.VirtualServer{vs}, pools: map[string]*laddr.Pool{"vs-1": pool}}

	m := New()
	c := NewCollector(m, src, time.Hour, nil)
	c.collect()

	require.Equal(t, float64(1), testutil.ToFloat64(m.VSAliveRSCount.WithLabelValues("vs-1")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.VSQuorumUp.WithLabelValues("vs-1")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.LaddrCount.WithLabelValues("vs-1")))
}

func TestCollector_CollectSkipsMissingPool(t *testing.T) {
	vs := &laddrtype.VirtualServer{ID: "vs-2"}
	src := &fakeSource{vs: []*laddrtype.VirtualServer{vs}, pools: map[string]*laddr.Pool{}}

	m := New()
	c := NewCollector(m, src, time.Hour, nil)
	require.NotPanics(t, func() { c.collect() })
}

func TestCollector_StartStop(t *testing.T) {
	src := &fakeSource{}
	m := New()
	c := NewCollector(m, src, time.Millisecond, nil)

	done := make(chan struct{})
	go func() {
		c.Start()
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	c.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
}
