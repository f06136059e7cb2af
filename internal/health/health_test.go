// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package health

import (
	"testing"

	"github.com/stretchr/testify/require"

	"grimm.is/laddrd/internal/laddrtype"
	"grimm.is/laddrd/internal/quorum"
)

type fakePlane struct {
	installed map[string]bool
}

func newFakePlane() *fakePlane { return &fakePlane{installed: map[string]bool{}} }

func (f *fakePlane) InstallRS(vs *laddrtype.VirtualServer, rs *laddrtype.RealServer) error {
	f.installed[rs.ID] = true
	return nil
}
func (f *fakePlane) RemoveRS(vs *laddrtype.VirtualServer, rs *laddrtype.RealServer) error {
	delete(f.installed, rs.ID)
	return nil
}
func (f *fakePlane) InstallSorry(vs *laddrtype.VirtualServer) error { return nil }
func (f *fakePlane) RemoveSorry(vs *laddrtype.VirtualServer) error  { return nil }

type fakeWatchdog struct {
	calls []bool
}

func (f *fakeWatchdog) OnRSTransition(vs *laddrtype.VirtualServer, up bool) {
	f.calls = append(f.calls, up)
}

func newVS(rs ...*laddrtype.RealServer) *laddrtype.VirtualServer {
	return &laddrtype.VirtualServer{ID: "vs1", Quorum: 1, Hysteresis: 0, RS: rs}
}

func TestUpdate_FirstReportDown_AlphaSuppressesNoop(t *testing.T) {
	plane := newFakePlane()
	rs := &laddrtype.RealServer{ID: "rs1", Weight: 1}
	vs := newVS(rs)
	arbiter := quorum.New(plane, nil, nil)
	wd := &fakeWatchdog{}
	h := New(plane, arbiter, wd, nil, nil)

	checker := &laddrtype.Checker{ID: "c1", Alpha: true}
	h.Update(vs, rs, checker, false)

	require.True(t, checker.HasRun)
	require.False(t, rs.Alive, "alpha checker assumes down until a verdict arrives; first down report must not flip it to alive")
}

func TestUpdate_FirstReportUp_InstallsRS(t *testing.T) {
	plane := newFakePlane()
	rs := &laddrtype.RealServer{ID: "rs1", Weight: 1}
	vs := newVS(rs)
	arbiter := quorum.New(plane, nil, nil)
	wd := &fakeWatchdog{}
	h := New(plane, arbiter, wd, nil, nil)

	checker := &laddrtype.Checker{ID: "c1"}
	h.Update(vs, rs, checker, true)

	require.True(t, checker.HasRun)
	require.True(t, rs.Alive)
	require.True(t, plane.installed["rs1"])
	require.Len(t, wd.calls, 1)
	require.True(t, wd.calls[0])
}

func TestUpdate_RepeatedSameVerdictIsNoop(t *testing.T) {
	plane := newFakePlane()
	rs := &laddrtype.RealServer{ID: "rs1", Weight: 1}
	vs := newVS(rs)
	arbiter := quorum.New(plane, nil, nil)
	wd := &fakeWatchdog{}
	h := New(plane, arbiter, wd, nil, nil)

	checker := &laddrtype.Checker{ID: "c1", IsUp: true, HasRun: true}
	h.Update(vs, rs, checker, true)

	require.False(t, rs.Alive, "a same-verdict report on an already-settled checker must not touch RS state")
	require.Empty(t, wd.calls)
}

func TestUpdate_DownThenRecoverTracksFailedCheckers(t *testing.T) {
	plane := newFakePlane()
	rs := &laddrtype.RealServer{ID: "rs1", Weight: 1}
	vs := newVS(rs)
	arbiter := quorum.New(plane, nil, nil)
	h := New(plane, arbiter, nil, nil, nil)

	checker := &laddrtype.Checker{ID: "c1"}
	h.Update(vs, rs, checker, true)
	require.True(t, rs.Alive)
	require.Equal(t, 0, rs.NumFailedCheckers)

	h.Update(vs, rs, checker, false)
	require.False(t, rs.Alive)
	require.Equal(t, 1, rs.NumFailedCheckers)
	require.False(t, plane.installed["rs1"])

	h.Update(vs, rs, checker, true)
	require.True(t, rs.Alive)
	require.Equal(t, 0, rs.NumFailedCheckers)
	require.True(t, plane.installed["rs1"])
}

func TestUpdate_SorryTakeoverSuppressesPlaneCall(t *testing.T) {
	plane := newFakePlane()
	rs := &laddrtype.RealServer{ID: "rs1", Weight: 1}
	sorry := &laddrtype.RealServer{ID: "sorry"}
	vs := newVS(rs)
	vs.SorryRS = sorry
	vs.SorrySet = true
	vs.QuorumUp = false
	arbiter := quorum.New(plane, nil, nil)
	h := New(plane, arbiter, nil, nil, nil)

	checker := &laddrtype.Checker{ID: "c1"}
	h.Update(vs, rs, checker, true)

	require.True(t, rs.Alive, "RS state itself still flips even when the sorry server has taken over")
	require.False(t, plane.installed["rs1"], "plane install must be suppressed while the sorry server is in control")
}
