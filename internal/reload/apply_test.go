// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package reload

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"grimm.is/laddrd/internal/laddr"
	"grimm.is/laddrd/internal/laddrtype"
	"grimm.is/laddrd/internal/portpool"
)

const applyVSConfig = `
schema_version = "1.0"

pool {
  mode        = "lport"
  worker_bits = 2
}

virtual_server "web" {
  af    = "inet"
  proto = "tcp"
  vaddr = "10.0.0.1"
  vport = 80

  quorum     = 1
  hysteresis = 0

  local_address "10.0.1.1" {
    iface = "eth0"
  }

  real_server "10.0.2.1" {
    port   = 8080
    weight = 10
  }
}
`

type fakeSink struct {
	vs    []*laddrtype.VirtualServer
	pools map[string]*laddr.Pool
	calls int
}

func (s *fakeSink) Replace(vs []*laddrtype.VirtualServer, pools map[string]*laddr.Pool) {
	s.vs = vs
	s.pools = pools
	s.calls++
}

type fakeRecorder struct {
	started, failed int
	observed        time.Duration
}

func (r *fakeRecorder) ReloadStarted()                { r.started++ }
func (r *fakeRecorder) ReloadFailed()                  { r.failed++ }
func (r *fakeRecorder) ReloadObserve(d time.Duration)  { r.observed = d }

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "laddrd.hcl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestOrchestrator_ApplyBuildsPoolsAndNotifiesSink(t *testing.T) {
	path := writeTempConfig(t, applyVSConfig)
	pp := portpool.NewSimPool(laddrtype.LPORTMode, 2, 4, ^uint64(0))
	sink := &fakeSink{}
	rec := &fakeRecorder{}

	resolve := func(name string) (laddrtype.Interface, error) {
		return laddrtype.Interface{Name: name, Index: 1}, nil
	}

	plane := newFakePlane()
	o := NewOrchestrator(pp, resolve, sink, plane, rec, nil)
	require.NoError(t, o.Apply(path))

	require.Equal(t, 1, sink.calls)
	require.Len(t, sink.vs, 1)
	require.Equal(t, "web", sink.vs[0].ID)

	pool := sink.pools["web"]
	require.NotNil(t, pool)
	unlock := pool.Lock()
	require.Equal(t, 1, pool.NumLaddrsLocked(0))
	unlock()

	require.Equal(t, 1, rec.started)
	require.Equal(t, 0, rec.failed)

	require.True(t, sink.vs[0].RS[0].Alive, "an RS with no configured checkers is brought up at install instead of waiting for a health event")
	require.True(t, plane.installed["10.0.2.1:8080"])
}

func TestOrchestrator_ApplyRejectsInvalidConfig(t *testing.T) {
	path := writeTempConfig(t, `
pool { mode = "bogus" }
`)
	pp := portpool.NewSimPool(laddrtype.LPORTMode, 2, 4, ^uint64(0))
	rec := &fakeRecorder{}
	o := NewOrchestrator(pp, nil, nil, nil, rec, nil)

	err := o.Apply(path)
	require.Error(t, err)
	require.Equal(t, 1, rec.failed)
}

func TestOrchestrator_SecondApplyMigratesAliveState(t *testing.T) {
	path := writeTempConfig(t, applyVSConfig)
	pp := portpool.NewSimPool(laddrtype.LPORTMode, 2, 4, ^uint64(0))
	sink := &fakeSink{}
	o := NewOrchestrator(pp, nil, sink, nil, nil, nil)

	require.NoError(t, o.Apply(path))
	sink.vs[0].RS[0].Alive = true

	require.NoError(t, o.Apply(path))
	require.True(t, sink.vs[0].RS[0].Alive)
}
