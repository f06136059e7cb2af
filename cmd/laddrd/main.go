// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command laddrd is the local-address allocation and quorum/health
// arbitration daemon described by spec.md: it loads the VS/RS/VSGroup
// configuration, maintains each virtual server's laddr pool and quorum
// state, integrates health-checker results, and serves the LADDR_*
// control-plane operations of spec §6 over HTTP.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grimm.is/laddrd/internal/config"
	"grimm.is/laddrd/internal/ctlplane"
	"grimm.is/laddrd/internal/health"
	"grimm.is/laddrd/internal/logging"
	"grimm.is/laddrd/internal/metrics"
	"grimm.is/laddrd/internal/notify"
	"grimm.is/laddrd/internal/portpool"
	"grimm.is/laddrd/internal/quorum"
	"grimm.is/laddrd/internal/reload"
	"grimm.is/laddrd/internal/steering"
	"grimm.is/laddrd/internal/watchdog"
)

func main() {
	configPath := flag.String("config", "", "path to the HCL configuration file")
	listen := flag.String("listen", "127.0.0.1:7999", "control-plane HTTP listen address")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	metricsInterval := flag.Duration("metrics-interval", 5*time.Second, "metrics collection tick")
	flag.Parse()

	args := flag.Args()
	subcmd := "serve"
	if len(args) > 0 {
		subcmd = args[0]
	}

	log := logging.Default()
	log.SetLevel(*logLevel)

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "laddrd: -config is required")
		os.Exit(2)
	}

	switch subcmd {
	case "serve":
		if err := runServe(*configPath, *listen, *metricsInterval, log); err != nil {
			log.Error("laddrd exited", "err", err)
			os.Exit(1)
		}
	case "selftest":
		if err := runSelftest(*configPath, log); err != nil {
			log.Error("selftest failed", "err", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "laddrd: unknown command %q (want serve|selftest)\n", subcmd)
		os.Exit(2)
	}
}

// runServe loads the config once, wires every component (quorum arbiter,
// health integrator, watchdog, notification dispatcher, metrics, and the
// control-plane HTTP server), and blocks until SIGINT/SIGTERM or a server
// error. SIGHUP re-runs the reload orchestrator's Apply and keeps serving
// (spec §4.7).
func runServe(configPath, listen string, metricsInterval time.Duration, log *logging.Logger) error {
	cf, err := config.LoadConfigFile(configPath)
	if err != nil {
		return err
	}
	if errs := cf.Config.Validate(); errs.HasErrors() {
		return fmt.Errorf("invalid configuration: %s", errs.Error())
	}

	policy := policyFromConfig(cf.Config)
	pp := buildPortPool(cf.Config, policy)

	dispatcher := notify.New(notifyConfigFrom(cf.Config), log)
	defer dispatcher.Close()

	plane := newLoggingPlane(log)
	arbiter := quorum.New(plane, dispatcher, log)

	registry := ctlplane.NewStaticRegistry(nil)
	siblings := &siblingIndex{}
	sink := newServiceSink(registry, siblings, arbiter)

	m := metrics.New()
	reg := prometheus.NewRegistry()
	m.Register(reg)
	arbiter.WithRecorder(m.AsRecorder())

	orch := reload.NewOrchestrator(pp, steering.ResolveInterface, sink, plane, m.AsRecorder(), log)
	if err := orch.Apply(configPath); err != nil {
		return err
	}

	debounce := time.Duration(cf.Config.Watchdog.DebounceMS) * time.Millisecond
	wd := watchdog.New(siblings, cf.Config.Watchdog.ActionCmd, debounce, log).WithRecorder(m.AsRecorder())
	integrator := health.New(plane, arbiter, wd, dispatcher, log)

	collector := metrics.NewCollector(m, orch, metricsInterval, log)
	go collector.Start()
	defer collector.Stop()

	srv := ctlplane.New(registry, listen, log)
	srv.Mux().Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv.Mux().Handle("/v1/health", newHealthHandler(orch, integrator)).Methods(http.MethodPost)

	errCh := make(chan error, 1)
	go func() {
		log.Info("control plane listening", "addr", listen)
		if serveErr := srv.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			errCh <- serveErr
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				log.Info("reloading configuration", "path", configPath)
				if err := orch.Apply(configPath); err != nil {
					log.Error("reload failed", "err", err)
				}
				continue
			}
			log.Info("shutting down", "signal", sig.String())
			return srv.Close()
		case err := <-errCh:
			return err
		}
	}
}

func policyFromConfig(cfg *config.Config) steering.Policy {
	mask := steering.WorkerEnableMask(cfg.Pool.EnableMask)
	if cfg.Pool.Mode == "laddr" {
		return steering.NewLADDRPolicy(mask)
	}
	bits := uint(cfg.Pool.WorkerBits)
	if bits == 0 {
		bits = 2
	}
	return steering.NewLPORTPolicy(bits, mask)
}

func numWorkersFromConfig(cfg *config.Config, policy steering.Policy) int {
	if cfg.Pool.NumWorkers != 0 {
		return cfg.Pool.NumWorkers
	}
	return 1 << policy.WorkerBits
}

func buildPortPool(cfg *config.Config, policy steering.Policy) *portpool.SimPool {
	numWorkers := numWorkersFromConfig(cfg, policy)
	mask := cfg.Pool.EnableMask
	if mask == 0 {
		mask = uint64(1)<<uint(numWorkers) - 1
	}
	return portpool.NewSimPool(policy.Mode, policy.WorkerBits, numWorkers, mask)
}

func notifyConfigFrom(cfg *config.Config) notify.Config {
	return notify.Config{
		ScriptPath: cfg.Notifications.ScriptPath,
		VSFifoPath: cfg.Notifications.VSFifoPath,
		RSFifoPath: cfg.Notifications.RSFifoPath,
		SMTP: notify.SMTPConfig{
			Enabled:  cfg.Notifications.Enabled && cfg.Notifications.SMTPHost != "",
			Host:     cfg.Notifications.SMTPHost,
			Port:     cfg.Notifications.SMTPPort,
			From:     cfg.Notifications.SMTPFrom,
			To:       cfg.Notifications.SMTPTo,
			Username: cfg.Notifications.SMTPUser,
			Password: string(cfg.Notifications.SMTPPass),
		},
		SNMPEnable: true,
	}
}
