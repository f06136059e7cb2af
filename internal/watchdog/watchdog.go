// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package watchdog implements the alive-ratio watchdog of spec §4.6,
// component C7: debounced upper-threshold recovery detection and
// cross-VS-coordinated lower-threshold alerting.
package watchdog

import (
	"os/exec"
	"sync"
	"time"

	"grimm.is/laddrd/internal/laddrtype"
	"grimm.is/laddrd/internal/logging"
)

// Clock abstracts timer scheduling so tests can drive the one-tick debounce
// deterministically instead of sleeping.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the subset of time.Timer the watchdog needs.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// VSGroupIndex answers "which VSes share an address with vs", so a single
// VS's transient dip doesn't spuriously fire "lower" while siblings holding
// the same VIPs are still healthy (spec §4.6). Expansion of VSGroup address
// ranges into this index is the caller's responsibility (spec §9 flags the
// source's byte-order range-expansion as a bug to avoid, not reproduce).
type VSGroupIndex interface {
	// Siblings returns every VS (including vs itself) that shares an
	// address with vs via direct identity or VSGroup membership.
	Siblings(vs *laddrtype.VirtualServer) []*laddrtype.VirtualServer
}

// Recorder observes watchdog threshold crossings for metrics export.
type Recorder interface {
	WatchdogTrigger(vs, edge string)
}

// Watchdog tracks per-VS debounce timers and invokes action on threshold crossings.
type Watchdog struct {
	mu      sync.Mutex
	clock   Clock
	index   VSGroupIndex
	action  string // operator hook command, e.g. "/usr/local/bin/lb-notify"
	debounce time.Duration
	log     *logging.Logger
	rec     Recorder

	timers map[string]Timer // keyed by vs.ID
}

// New builds a Watchdog. debounce is the one-tick delay before re-checking
// an upper-threshold recovery (spec §4.6); actionCmd is exec'd as
// "<actionCmd> <vip> <upper|lower>" (spec §6).
func New(index VSGroupIndex, actionCmd string, debounce time.Duration, log *logging.Logger) *Watchdog {
	if log == nil {
		log = logging.Default()
	}
	return &Watchdog{
		clock:    realClock{},
		index:    index,
		action:   actionCmd,
		debounce: debounce,
		log:      log.WithComponent("watchdog"),
		timers:   make(map[string]Timer),
	}
}

// WithRecorder attaches a metrics Recorder, returning the same Watchdog for chaining.
func (w *Watchdog) WithRecorder(rec Recorder) *Watchdog {
	w.rec = rec
	return w
}

// OnRSTransition recomputes vs's alive ratio after an RS went up or down
// and applies the debounce/coordination rules of spec §4.6.
func (w *Watchdog) OnRSTransition(vs *laddrtype.VirtualServer, rsWentUp bool) {
	r := vs.AliveRatio()

	if rsWentUp {
		if r >= vs.UpperLimit && vs.RatioFlags.ReachedLower {
			w.scheduleDebounce(vs)
		}
		return
	}

	// rs went down
	if r <= vs.LowerLimit {
		vs.RatioFlags.ReachedLower = true
		if w.allSiblingsReachedLower(vs) {
			w.invoke(vs, "lower")
		}
	}
	if r < vs.UpperLimit {
		w.cancelDebounce(vs)
	}
}

func (w *Watchdog) scheduleDebounce(vs *laddrtype.VirtualServer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if vs.RatioFlags.DebouncePending {
		return
	}
	vs.RatioFlags.DebouncePending = true
	w.timers[vs.ID] = w.clock.AfterFunc(w.debounce, func() { w.fireDebounce(vs) })
}

func (w *Watchdog) fireDebounce(vs *laddrtype.VirtualServer) {
	w.mu.Lock()
	delete(w.timers, vs.ID)
	vs.RatioFlags.DebouncePending = false
	w.mu.Unlock()

	if vs.AliveRatio() >= vs.UpperLimit {
		vs.RatioFlags.ReachedLower = false
		w.invoke(vs, "upper")
	}
}

func (w *Watchdog) cancelDebounce(vs *laddrtype.VirtualServer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[vs.ID]; ok {
		t.Stop()
		delete(w.timers, vs.ID)
	}
	vs.RatioFlags.DebouncePending = false
}

func (w *Watchdog) allSiblingsReachedLower(vs *laddrtype.VirtualServer) bool {
	if w.index == nil {
		return true
	}
	for _, sib := range w.index.Siblings(vs) {
		if !sib.RatioFlags.ReachedLower {
			return false
		}
	}
	return true
}

func (w *Watchdog) invoke(vs *laddrtype.VirtualServer, arg string) {
	if w.rec != nil {
		w.rec.WatchdogTrigger(vs.ID, arg)
	}
	if w.action == "" {
		return
	}
	vip := ""
	if vs.Identity.VAddr != nil {
		vip = vs.Identity.VAddr.String()
	}
	cmd := exec.Command(w.action, vip, arg)
	if err := cmd.Run(); err != nil {
		w.log.Warn("alive-ratio hook failed", "vs", vs.ID, "arg", arg, "err", err)
	}
}
