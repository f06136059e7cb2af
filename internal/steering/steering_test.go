// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package steering

import (
	"testing"

	"github.com/stretchr/testify/require"

	"grimm.is/laddrd/internal/laddrtype"
)

func TestDeriveLPORT(t *testing.T) {
	cases := []struct {
		lport  uint16
		bits   uint
		worker int
	}{
		{lport: 1024, bits: 2, worker: 0},
		{lport: 1025, bits: 2, worker: 1},
		{lport: 1026, bits: 2, worker: 2},
		{lport: 1027, bits: 2, worker: 3},
		{lport: 65535, bits: 2, worker: 3},
	}
	for _, c := range cases {
		tag := DeriveLPORT(c.lport, c.bits)
		require.Equal(t, c.worker, tag.Worker, "lport=%d bits=%d", c.lport, c.bits)
	}
}

func TestDeriveLADDR(t *testing.T) {
	require.Equal(t, Tag{Worker: 5}, DeriveLADDR(5))
}

func TestWorkerEnableMask(t *testing.T) {
	mask := WorkerEnableMask(0b1011)
	require.True(t, mask.Enabled(0))
	require.True(t, mask.Enabled(1))
	require.False(t, mask.Enabled(2))
	require.True(t, mask.Enabled(3))
	require.False(t, mask.Enabled(-1))
	require.False(t, mask.Enabled(64))
}

func TestNewLPORTPolicy(t *testing.T) {
	p := NewLPORTPolicy(3, WorkerEnableMask(0xFF))
	require.Equal(t, laddrtype.LPORTMode, p.Mode)
	require.Equal(t, uint(3), p.WorkerBits)
	require.Equal(t, WorkerEnableMask(0xFF), p.Mask)
}

func TestNewLADDRPolicy(t *testing.T) {
	p := NewLADDRPolicy(WorkerEnableMask(0x1))
	require.Equal(t, laddrtype.LADDRMode, p.Mode)
	require.Equal(t, WorkerEnableMask(0x1), p.Mask)
}
