// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"time"

	"grimm.is/laddrd/internal/laddr"
	"grimm.is/laddrd/internal/laddrtype"
	"grimm.is/laddrd/internal/logging"
)

// Source is the set of virtual servers the collector snapshots on every
// tick. The daemon's reload path swaps this out wholesale (spec §4.7).
type Source interface {
	VirtualServers() []*laddrtype.VirtualServer
	PoolFor(vsID string) *laddr.Pool
}

// Collector periodically snapshots every VS/laddr into the Prometheus
// gauges, decoupling metric freshness from the rate of quorum/health events.
type Collector struct {
	m        *Metrics
	src      Source
	interval time.Duration
	log      *logging.Logger
	stopCh   chan struct{}
}

func NewCollector(m *Metrics, src Source, interval time.Duration, log *logging.Logger) *Collector {
	if log == nil {
		log = logging.Default()
	}
	return &Collector{m: m, src: src, interval: interval, log: log.WithComponent("metrics"), stopCh: make(chan struct{})}
}

// Start runs the collection loop until Stop is called. Intended to be run
// in its own goroutine.
func (c *Collector) Start() {
	c.log.Info("starting metrics collector", "interval", c.interval.String())
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Collector) Stop() { close(c.stopCh) }

func (c *Collector) collect() {
	for _, vs := range c.src.VirtualServers() {
		c.m.VSAliveRSCount.WithLabelValues(vs.ID).Set(float64(vs.AliveCount()))
		up := 0.0
		if vs.QuorumUp {
			up = 1.0
		}
		c.m.VSQuorumUp.WithLabelValues(vs.ID).Set(up)

		pool := c.src.PoolFor(vs.ID)
		if pool == nil {
			continue
		}
		snaps := pool.Enumerate()
		c.m.LaddrCount.WithLabelValues(vs.ID).Set(float64(len(snaps)))
		for _, snap := range snaps {
			c.m.LaddrConnCount.WithLabelValues(vs.ID, snap.Addr.String()).Set(float64(snap.ConnCounts))
		}
	}
}
