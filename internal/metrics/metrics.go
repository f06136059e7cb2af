// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes the allocation core and quorum arbiter's runtime
// state as Prometheus gauges and counters, served on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every gauge/counter this daemon exports.
type Metrics struct {
	LaddrCount     *prometheus.GaugeVec
	LaddrConnCount *prometheus.GaugeVec

	BindTotal     *prometheus.CounterVec
	UnbindTotal   *prometheus.CounterVec
	BindExhausted *prometheus.CounterVec

	VSAliveRSCount *prometheus.GaugeVec
	VSQuorumUp     *prometheus.GaugeVec
	QuorumTransitionsTotal *prometheus.CounterVec

	WatchdogTriggersTotal *prometheus.CounterVec

	ReloadTotal     prometheus.Counter
	ReloadFailures  prometheus.Counter
	ReloadDuration  prometheus.Histogram
}

// New constructs every metric, unregistered. Call Register to attach them
// to a prometheus.Registerer (normally prometheus.DefaultRegisterer).
func New() *Metrics {
	return &Metrics{
		LaddrCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "laddrd_laddr_count",
			Help: "Number of local addresses configured per virtual server.",
		}, []string{"vs"}),
		LaddrConnCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "laddrd_laddr_conn_count",
			Help: "Observational live-connection count of a local address.",
		}, []string{"vs", "laddr"}),

		BindTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "laddrd_bind_total",
			Help: "Total successful binder.Bind calls.",
		}, []string{"vs"}),
		UnbindTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "laddrd_unbind_total",
			Help: "Total binder.Unbind calls.",
		}, []string{"vs"}),
		BindExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "laddrd_bind_exhausted_total",
			Help: "Total binder.Bind calls that exhausted the trial budget.",
		}, []string{"vs"}),

		VSAliveRSCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "laddrd_vs_alive_rs_count",
			Help: "Number of alive real servers behind a virtual server.",
		}, []string{"vs"}),
		VSQuorumUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "laddrd_vs_quorum_up",
			Help: "1 if the virtual server's quorum is currently satisfied, else 0.",
		}, []string{"vs"}),
		QuorumTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "laddrd_quorum_transitions_total",
			Help: "Total quorum up/down transitions.",
		}, []string{"vs", "direction"}),

		WatchdogTriggersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "laddrd_watchdog_triggers_total",
			Help: "Total alive-ratio watchdog operator-hook invocations.",
		}, []string{"vs", "edge"}),

		ReloadTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "laddrd_reload_total",
			Help: "Total config reloads applied.",
		}),
		ReloadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "laddrd_reload_failures_total",
			Help: "Total config reloads that failed validation or application.",
		}),
		ReloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "laddrd_reload_duration_seconds",
			Help:    "Wall-clock duration of a config reload, from diff to apply.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Recorder adapts a Metrics to the binder.Recorder, quorum, and watchdog
// recorder interfaces, whose method names would otherwise collide with
// Metrics' own field names.
type Recorder struct{ m *Metrics }

// AsRecorder returns a Recorder wrapping m.
func (m *Metrics) AsRecorder() Recorder { return Recorder{m: m} }

// BindOK implements binder.Recorder.
func (r Recorder) BindOK(vs string) { r.m.BindTotal.WithLabelValues(vs).Inc() }

// BindExhausted implements binder.Recorder.
func (r Recorder) BindExhausted(vs string) { r.m.BindExhausted.WithLabelValues(vs).Inc() }

// Unbind implements binder.Recorder.
func (r Recorder) Unbind(vs string) { r.m.UnbindTotal.WithLabelValues(vs).Inc() }

// QuorumTransition implements quorum's recorder interface.
func (r Recorder) QuorumTransition(vs, direction string) {
	r.m.QuorumTransitionsTotal.WithLabelValues(vs, direction).Inc()
}

// WatchdogTrigger implements watchdog's recorder interface.
func (r Recorder) WatchdogTrigger(vs, edge string) {
	r.m.WatchdogTriggersTotal.WithLabelValues(vs, edge).Inc()
}

// ReloadStarted implements reload's MetricsRecorder interface.
func (r Recorder) ReloadStarted() { r.m.ReloadTotal.Inc() }

// ReloadFailed implements reload's MetricsRecorder interface.
func (r Recorder) ReloadFailed() { r.m.ReloadFailures.Inc() }

// ReloadObserve implements reload's MetricsRecorder interface.
func (r Recorder) ReloadObserve(d time.Duration) { r.m.ReloadDuration.Observe(d.Seconds()) }

// Register attaches every metric to reg.
func (m *Metrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.LaddrCount, m.LaddrConnCount,
		m.BindTotal, m.UnbindTotal, m.BindExhausted,
		m.VSAliveRSCount, m.VSQuorumUp, m.QuorumTransitionsTotal,
		m.WatchdogTriggersTotal,
		m.ReloadTotal, m.ReloadFailures, m.ReloadDuration,
	)
}
