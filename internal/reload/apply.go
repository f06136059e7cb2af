// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package reload

import (
	"fmt"
	"net"
	"sync"
	"time"

	"grimm.is/laddrd/internal/config"
	laddrerrors "grimm.is/laddrd/internal/errors"
	"grimm.is/laddrd/internal/laddr"
	"grimm.is/laddrd/internal/laddrtype"
	"grimm.is/laddrd/internal/logging"
	"grimm.is/laddrd/internal/portpool"
)

// MetricsRecorder observes reload outcomes for metrics export.
type MetricsRecorder interface {
	ReloadStarted()
	ReloadFailed()
	ReloadObserve(d time.Duration)
}

// ServiceSink receives the freshly built, state-migrated graph and its
// per-VS pools so the caller can swap them into its ctlplane registry and
// quorum/watchdog machinery. Apply calls it once per successful reload,
// after Diff has migrated runtime state onto the new VirtualServers.
type ServiceSink interface {
	Replace(vs []*laddrtype.VirtualServer, pools map[string]*laddr.Pool)
}

// Orchestrator ties config load, graph build, state migration, and plane
// install/remove into the single entry point a daemon's reload path calls
// (at startup and on SIGHUP).
type Orchestrator struct {
	mu      sync.Mutex
	pp      portpool.Reserver
	resolve IfaceResolver
	sink    ServiceSink
	plane   Plane
	metrics MetricsRecorder
	log     *logging.Logger

	current []*laddrtype.VirtualServer
	pools   map[string]*laddr.Pool
}

// NewOrchestrator builds an Orchestrator. pp is the port-pool implementation
// every VS's laddr.Pool binds against; resolve is nil-safe (no iface
// validation) for tests, steering.ResolveInterface in production. plane is
// nil-safe: Diff skips the immediate-alive plane install when it's nil,
// leaving bring-up to the quorum arbiter's first Evaluate instead.
func NewOrchestrator(pp portpool.Reserver, resolve IfaceResolver, sink ServiceSink, plane Plane, metrics MetricsRecorder, log *logging.Logger) *Orchestrator {
	if log == nil {
		log = logging.Default()
	}
	return &Orchestrator{
		pp:      pp,
		resolve: resolve,
		sink:    sink,
		plane:   plane,
		metrics: metrics,
		log:     log.WithComponent("reload"),
		pools:   make(map[string]*laddr.Pool),
	}
}

// Apply loads cfgPath, validates it, builds a fresh runtime graph, migrates
// surviving RS/checker state from the graph currently in service, installs a
// laddr.Pool per VS from its local_address blocks, and hands the result to
// the ServiceSink. It never partially installs: a failure at any step
// leaves the prior graph in service untouched (spec §4.7).
func (o *Orchestrator) Apply(cfgPath string) error {
	start := time.Now()
	if o.metrics != nil {
		o.metrics.ReloadStarted()
	}

	err := o.apply(cfgPath)

	if o.metrics != nil {
		o.metrics.ReloadObserve(time.Since(start))
		if err != nil {
			o.metrics.ReloadFailed()
		}
	}
	return err
}

func (o *Orchestrator) apply(cfgPath string) error {
	cf, err := config.LoadConfigFile(cfgPath)
	if err != nil {
		return laddrerrors.Wrapf(err, laddrerrors.KindInvalid, "reload: loading %s", cfgPath)
	}
	if errs := cf.Config.Validate(); errs.HasErrors() {
		return laddrerrors.New(laddrerrors.KindInvalid, "reload: "+errs.Error())
	}

	next, err := Build(cf.Config, o.resolve)
	if err != nil {
		return err
	}

	pools := make(map[string]*laddr.Pool, len(next))
	for i, vsc := range cf.Config.VirtualServers {
		pool := laddr.New(o.pp)
		for _, lac := range vsc.LocalAddresses {
			af := parseAF(lac.AF)
			addr, err := parseAddr(lac.Addr)
			if err != nil {
				return laddrerrors.Wrapf(err, laddrerrors.KindInvalid, "reload: vs %q local_address %q", vsc.ID, lac.Addr)
			}
			iface := laddrtype.Interface{Name: lac.Iface}
			if o.resolve != nil {
				if resolved, err := o.resolve(lac.Iface); err == nil {
					iface = resolved
				}
			}
			if err := pool.Add(af, addr, iface); err != nil {
				return laddrerrors.Wrapf(err, laddrerrors.KindInvalid, "reload: vs %q adding local_address %q", vsc.ID, lac.Addr)
			}
		}
		pools[next[i].ID] = pool
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	plan := Diff(o.current, next, o.plane)
	o.log.Info("reload plan", "install", len(plan.Install), "remove", len(plan.Remove), "keep", len(plan.Keep))

	o.current = next
	o.pools = pools
	if o.sink != nil {
		o.sink.Replace(next, pools)
	}
	return nil
}

// Current returns the graph currently in service.
func (o *Orchestrator) Current() []*laddrtype.VirtualServer {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*laddrtype.VirtualServer, len(o.current))
	copy(out, o.current)
	return out
}

// PoolFor returns the laddr.Pool backing vsID, or nil if unknown. Satisfies
// metrics.Source alongside VirtualServers.
func (o *Orchestrator) PoolFor(vsID string) *laddr.Pool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pools[vsID]
}

// VirtualServers satisfies metrics.Source.
func (o *Orchestrator) VirtualServers() []*laddrtype.VirtualServer { return o.Current() }

func parseAddr(s string) (net.IP, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, fmt.Errorf("invalid address %q", s)
	}
	return ip, nil
}
