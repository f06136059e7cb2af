// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package notify multiplexes VS/RS state-change notifications to the
// sinks named in spec §4.4 and §6: an external script, a FIFO line
// protocol, SMTP, and an always-on SNMP trap. It follows the dispatch
// shape of the teacher's internal/notification and internal/alerting
// packages (fan-out to configured channels, with no rate limiting or
// cooldown).
package notify

import (
	"bytes"
	"fmt"
	"net/smtp"
	"os"
	"os/exec"
	"sync"

	"grimm.is/laddrd/internal/logging"
)

// VSEvent describes a VS-level quorum transition.
type VSEvent struct {
	VSID       string
	Up         bool
	Inequality string // "Q ± H = threshold <=> W", spec §4.4
	Shutdown   bool
	OmegaFlag  bool
}

// RSEvent describes an RS-level alive/dead transition.
type RSEvent struct {
	RSID      string
	VSID      string
	Up        bool
	Shutdown  bool
	OmegaFlag bool
}

// SMTPConfig configures the optional alert-email sink.
type SMTPConfig struct {
	Enabled  bool
	Host     string
	Port     int
	From     string
	To       []string
	Username string
	Password string
}

// Config is the static notification configuration for one daemon instance.
type Config struct {
	ScriptPath string // exec'd as "<script> <event-line>"; empty disables
	VSFifoPath string
	RSFifoPath string
	SMTP       SMTPConfig
	SNMPEnable bool // SNMP traps always fire on transitions regardless of this; kept for parity with config surface
}

// Dispatcher fans VS/RS events out to every configured sink.
type Dispatcher struct {
	mu  sync.RWMutex
	cfg Config
	log *logging.Logger

	vsFifo *os.File
	rsFifo *os.File

	emailSender func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	snmpSend    func(event string) error
}

// New opens (best-effort) the configured FIFOs and returns a Dispatcher.
func New(cfg Config, log *logging.Logger) *Dispatcher {
	if log == nil {
		log = logging.Default()
	}
	d := &Dispatcher{
		cfg:         cfg,
		log:         log.WithComponent("notify"),
		emailSender: smtp.SendMail,
		snmpSend:    func(string) error { return nil }, // SNMP trap transport is external (spec §1 non-goals)
	}
	if cfg.VSFifoPath != "" {
		if f, err := os.OpenFile(cfg.VSFifoPath, os.O_WRONLY|os.O_NONBLOCK, 0); err == nil {
			d.vsFifo = f
		} else {
			d.log.Warn("vs fifo open failed", "path", cfg.VSFifoPath, "err", err)
		}
	}
	if cfg.RSFifoPath != "" {
		if f, err := os.OpenFile(cfg.RSFifoPath, os.O_WRONLY|os.O_NONBLOCK, 0); err == nil {
			d.rsFifo = f
		} else {
			d.log.Warn("rs fifo open failed", "path", cfg.RSFifoPath, "err", err)
		}
	}
	return d
}

// UpdateConfig swaps the live configuration, matching the teacher's
// reload-preserving-state pattern in internal/notification.
func (d *Dispatcher) UpdateConfig(cfg Config) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg = cfg
}

// VSStateChange emits a VS UP/DOWN transition. SNMP always fires, including
// during orderly shutdown; the other sinks are suppressed during shutdown
// unless the VS carries the omega flag (spec §4.4, §9).
func (d *Dispatcher) VSStateChange(ev VSEvent) {
	d.mu.RLock()
	cfg := d.cfg
	d.mu.RUnlock()

	state := "DOWN"
	if ev.Up {
		state = "UP"
	}
	line := fmt.Sprintf("VS %s %s", ev.VSID, state)

	if err := d.snmpSend(line); err != nil {
		d.log.Warn("snmp trap failed", "err", err)
	}

	if ev.Shutdown && !ev.OmegaFlag {
		return
	}

	d.writeFifo(d.vsFifo, line+"\n")
	d.runScript(cfg.ScriptPath, line)
	d.sendSMTP(cfg.SMTP, fmt.Sprintf("VS %s is %s", ev.VSID, state),
		fmt.Sprintf("%s\nthreshold: %s", line, ev.Inequality))
}

// RSStateChange emits an RS UP/DOWN transition, subject to the same
// shutdown/omega gating as VSStateChange.
func (d *Dispatcher) RSStateChange(ev RSEvent) {
	d.mu.RLock()
	cfg := d.cfg
	d.mu.RUnlock()

	state := "DOWN"
	if ev.Up {
		state = "UP"
	}
	line := fmt.Sprintf("RS %s %s %s", ev.RSID, ev.VSID, state)

	if err := d.snmpSend(line); err != nil {
		d.log.Warn("snmp trap failed", "err", err)
	}

	if ev.Shutdown && !ev.OmegaFlag {
		return
	}

	d.writeFifo(d.rsFifo, line+"\n")
	d.runScript(cfg.ScriptPath, line)
	d.sendSMTP(cfg.SMTP, fmt.Sprintf("RS %s on %s is %s", ev.RSID, ev.VSID, state), line)
}

// writeFifo is a best-effort write; errors are logged and ignored (spec §6).
func (d *Dispatcher) writeFifo(f *os.File, line string) {
	if f == nil {
		return
	}
	if _, err := f.WriteString(line); err != nil {
		d.log.Debug("fifo write failed", "err", err)
	}
}

func (d *Dispatcher) runScript(path, line string) {
	if path == "" {
		return
	}
	cmd := exec.Command(path, line)
	if err := cmd.Run(); err != nil {
		d.log.Warn("notification script failed", "path", path, "err", err)
	}
}

func (d *Dispatcher) sendSMTP(cfg SMTPConfig, subject, body string) {
	if !cfg.Enabled || len(cfg.To) == 0 {
		return
	}
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "Subject: %s\r\n\r\n%s\r\n", subject, body)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	if err := d.emailSender(addr, auth, cfg.From, cfg.To, msg.Bytes()); err != nil {
		d.log.Warn("smtp send failed", "err", err)
	}
}

// Close releases any open FIFO handles.
func (d *Dispatcher) Close() {
	if d.vsFifo != nil {
		_ = d.vsFifo.Close()
	}
	if d.rsFifo != nil {
		_ = d.rsFifo.Close()
	}
}
