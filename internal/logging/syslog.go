// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"fmt"
	"log/syslog"
)

// SyslogConfig configures an optional remote syslog sink for the daemon log.
type SyslogConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Protocol string // "udp" or "tcp"
	Tag      string
	Facility syslog.Priority
}

// DefaultSyslogConfig returns the disabled default, matching the UDP/514
// conventions used by the rest of the fleet.
func DefaultSyslogConfig() SyslogConfig {
	return SyslogConfig{
		Enabled:  false,
		Port:     514,
		Protocol: "udp",
		Tag:      "laddrd",
		Facility: syslog.LOG_LOCAL0,
	}
}

// NewSyslogWriter dials the configured syslog host and returns a writer
// suitable for logging.New. Missing Host is rejected; Port/Protocol/Tag fall
// back to their defaults when zero.
func NewSyslogWriter(cfg SyslogConfig) (*syslog.Writer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("logging: syslog host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 514
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "udp"
	}
	if cfg.Tag == "" {
		cfg.Tag = "laddrd"
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return syslog.Dial(cfg.Protocol, addr, cfg.Facility, cfg.Tag)
}
