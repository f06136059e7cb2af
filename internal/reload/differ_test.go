// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package reload

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"grimm.is/laddrd/internal/laddrtype"
)

type fakePlane struct {
	installed map[string]bool
}

func newFakePlane() *fakePlane { return &fakePlane{installed: map[string]bool{}} }

func (f *fakePlane) InstallRS(vs *laddrtype.VirtualServer, rs *laddrtype.RealServer) error {
	f.installed[rs.ID] = true
	return nil
}

func TestDiff_ClassifiesInstallRemoveKeep(t *testing.T) {
	old := []*laddrtype.VirtualServer{
		{ID: "web", Alive: true, QuorumUp: true},
		{ID: "gone", Alive: true},
	}
	new := []*laddrtype.VirtualServer{
		{ID: "web"},
		{ID: "fresh"},
	}

	plan := Diff(old, new, nil)
	require.Len(t, plan.Install, 1)
	require.Equal(t, "fresh", plan.Install[0].ID)
	require.Len(t, plan.Remove, 1)
	require.Equal(t, "gone", plan.Remove[0].ID)
	require.Len(t, plan.Keep, 1)
	require.Equal(t, "web", plan.Keep[0].ID)
}

func TestDiff_MigratesRSAliveStateByID(t *testing.T) {
	old := []*laddrtype.VirtualServer{
		{
			ID: "web", QuorumUp: true,
			RS: []*laddrtype.RealServer{
				{ID: "10.0.1.1:8080", Alive: true, Set: true, NumFailedCheckers: 0},
			},
		},
	}
	new := []*laddrtype.VirtualServer{
		{
			ID: "web",
			RS: []*laddrtype.RealServer{
				{ID: "10.0.1.1:8080", Addr: net.ParseIP("10.0.1.1"), Port: 8080},
			},
		},
	}

	plan := Diff(old, new, nil)
	require.Len(t, plan.Keep, 1)
	rs := plan.Keep[0].RS[0]
	require.True(t, rs.Alive)
	require.True(t, rs.Set)
	require.True(t, rs.Reloaded)
	require.True(t, plan.Keep[0].QuorumUp)
}

func TestDiff_NewRealServerOnSurvivingVSStartsAliveUnfailed(t *testing.T) {
	old := []*laddrtype.VirtualServer{
		{ID: "web", RS: []*laddrtype.RealServer{{ID: "10.0.1.1:8080", Alive: true}}},
	}
	new := []*laddrtype.VirtualServer{
		{ID: "web", RS: []*laddrtype.RealServer{
			{ID: "10.0.1.1:8080"},
			{ID: "10.0.1.2:8080"},
		}},
	}

	plane := newFakePlane()
	plan := Diff(old, new, plane)
	byID := map[string]*laddrtype.RealServer{}
	for _, rs := range plan.Keep[0].RS {
		byID[rs.ID] = rs
	}
	require.True(t, byID["10.0.1.1:8080"].Alive)
	require.False(t, byID["10.0.1.2:8080"].Reloaded)
	require.True(t, byID["10.0.1.2:8080"].Alive, "a freshly added RS with zero failed checkers is brought up at reload, not left waiting for a health event")
	require.True(t, byID["10.0.1.2:8080"].Set)
	require.True(t, plane.installed["10.0.1.2:8080"])
}

func TestDiff_InstallBringsUnfailedRSAlive(t *testing.T) {
	new := []*laddrtype.VirtualServer{
		{ID: "fresh", RS: []*laddrtype.RealServer{{ID: "10.0.2.1:80"}}},
	}

	plane := newFakePlane()
	plan := Diff(nil, new, plane)

	require.Len(t, plan.Install, 1)
	rs := plan.Install[0].RS[0]
	require.True(t, rs.Alive)
	require.True(t, rs.Set)
	require.True(t, plane.installed["10.0.2.1:80"])
}

func TestMigrateVS_RecomputesFailedCheckersAndSynthesizesAliveTransition(t *testing.T) {
	old := []*laddrtype.VirtualServer{
		{ID: "web", RS: []*laddrtype.RealServer{
			{ID: "10.0.1.1:8080", Alive: false, NumFailedCheckers: 1},
		}},
	}
	new := []*laddrtype.VirtualServer{
		{ID: "web", RS: []*laddrtype.RealServer{
			{ID: "10.0.1.1:8080", Checkers: []*laddrtype.Checker{
				{ID: "tcp-check", IsUp: true, HasRun: true},
			}},
		}},
	}

	plane := newFakePlane()
	plan := Diff(old, new, plane)

	rs := plan.Keep[0].RS[0]
	require.Equal(t, 0, rs.NumFailedCheckers, "matched checker settled up, so the stale count must not survive the reload verbatim")
	require.True(t, rs.Alive, "zero failures after recompute but not previously alive must synthesize an alive transition")
	require.True(t, rs.Set)
	require.True(t, plane.installed["10.0.1.1:8080"])
}

func TestMigrateCheckers_MatchesViaComparePredicate(t *testing.T) {
	oldChecker := &laddrtype.Checker{ID: "tcp-check", IsUp: true, HasRun: true}
	old := &laddrtype.RealServer{ID: "10.0.1.1:8080", Checkers: []*laddrtype.Checker{oldChecker}}

	newChecker := &laddrtype.Checker{ID: "tcp-check-v2"}
	newChecker.Compare = func(other *laddrtype.Checker) bool { return other.ID == "tcp-check" }
	next := &laddrtype.RealServer{ID: "10.0.1.1:8080", Checkers: []*laddrtype.Checker{newChecker}}

	migrateCheckers(old, next)

	require.True(t, newChecker.IsUp)
	require.True(t, newChecker.HasRun)
}

func TestMigrateCheckers_NoMatchLeavesAlphaState(t *testing.T) {
	old := &laddrtype.RealServer{ID: "10.0.1.1:8080", Checkers: []*laddrtype.Checker{
		{ID: "tcp-check", IsUp: true, HasRun: true},
	}}
	newChecker := &laddrtype.Checker{ID: "http-check", Alpha: true}
	next := &laddrtype.RealServer{ID: "10.0.1.1:8080", Checkers: []*laddrtype.Checker{newChecker}}

	migrateCheckers(old, next)

	require.False(t, newChecker.IsUp)
	require.False(t, newChecker.HasRun)
}
