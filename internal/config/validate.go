// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError is one field-level configuration problem.
type ValidationError struct {
	Field    string
	Message  string
	Severity string // "error" (default), "warning"
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of ValidationError.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e ValidationErrors) HasErrors() bool {
	for _, err := range e {
		if err.Severity != "warning" {
			return true
		}
	}
	return false
}

// Validate checks field-level well-formedness: addresses parse, ports are
// in range, quorum/hysteresis are non-negative, pool parameters are sane.
// It does not check cross-references between blocks; use DeepValidate for that.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, c.validatePool()...)
	errs = append(errs, c.validateVirtualServers()...)
	errs = append(errs, c.validateVSGroups()...)
	errs = append(errs, c.validateTunnelGroups()...)
	errs = append(errs, c.validateWatchdog()...)

	return errs
}

func (c *Config) validatePool() ValidationErrors {
	var errs ValidationErrors
	switch c.Pool.Mode {
	case "", "lport", "laddr":
	default:
		errs = append(errs, ValidationError{Field: "pool.mode", Message: fmt.Sprintf("unknown mode %q, want lport or laddr", c.Pool.Mode)})
	}
	if c.Pool.WorkerBits < 0 || c.Pool.WorkerBits > 8 {
		errs = append(errs, ValidationError{Field: "pool.worker_bits", Message: "must be between 0 and 8"})
	}
	if c.Pool.NumWorkers < 0 {
		errs = append(errs, ValidationError{Field: "pool.num_workers", Message: "must not be negative"})
	}
	return errs
}

func (c *Config) validateVirtualServers() ValidationErrors {
	var errs ValidationErrors
	seen := make(map[string]bool)

	for i, vs := range c.VirtualServers {
		field := fmt.Sprintf("virtual_server[%s]", vs.ID)
		if vs.ID == "" {
			field = fmt.Sprintf("virtual_server[%d]", i)
			errs = append(errs, ValidationError{Field: field, Message: "id must not be empty"})
		} else if seen[vs.ID] {
			errs = append(errs, ValidationError{Field: field, Message: "duplicate virtual_server id"})
		}
		seen[vs.ID] = true

		if !vs.HasMark && vs.VAddr == "" {
			errs = append(errs, ValidationError{Field: field + ".vaddr", Message: "must be set unless has_mark"})
		}
		if vs.VAddr != "" && net.ParseIP(vs.VAddr) == nil {
			errs = append(errs, ValidationError{Field: field + ".vaddr", Message: fmt.Sprintf("invalid address %q", vs.VAddr)})
		}
		if !vs.HasMark && (vs.VPort < 0 || vs.VPort > 65535) {
			errs = append(errs, ValidationError{Field: field + ".vport", Message: "must be between 0 and 65535"})
		}
		switch strings.ToLower(vs.Proto) {
		case "", "tcp", "udp":
		default:
			errs = append(errs, ValidationError{Field: field + ".proto", Message: fmt.Sprintf("unknown protocol %q", vs.Proto)})
		}
		if vs.Quorum < 0 {
			errs = append(errs, ValidationError{Field: field + ".quorum", Message: "must not be negative"})
		}
		if vs.Hysteresis < 0 {
			errs = append(errs, ValidationError{Field: field + ".hysteresis", Message: "must not be negative"})
		}
		if vs.UpperLimit != 0 && (vs.UpperLimit < 0 || vs.UpperLimit > 100) {
			errs = append(errs, ValidationError{Field: field + ".alive_upper_limit", Message: "must be between 0 and 100"})
		}
		if vs.LowerLimit < 0 || vs.LowerLimit > 100 {
			errs = append(errs, ValidationError{Field: field + ".alive_lower_limit", Message: "must be between 0 and 100"})
		}
		if vs.LowerLimit > 0 && vs.UpperLimit > 0 && vs.LowerLimit >= vs.UpperLimit {
			errs = append(errs, ValidationError{
				Field:    field + ".alive_lower_limit",
				Message:  "lower limit should be strictly less than upper limit or the watchdog will oscillate",
				Severity: "warning",
			})
		}

		rsSeen := make(map[string]bool)
		for j, rs := range vs.RealServers {
			rfield := fmt.Sprintf("%s.real_server[%s]", field, rs.Addr)
			if rs.Addr == "" {
				rfield = fmt.Sprintf("%s.real_server[%d]", field, j)
				errs = append(errs, ValidationError{Field: rfield, Message: "addr must not be empty"})
			} else if net.ParseIP(rs.Addr) == nil {
				errs = append(errs, ValidationError{Field: rfield + ".addr", Message: fmt.Sprintf("invalid address %q", rs.Addr)})
			}
			key := fmt.Sprintf("%s:%d", rs.Addr, rs.Port)
			if rsSeen[key] {
				errs = append(errs, ValidationError{Field: rfield, Message: "duplicate real_server addr:port"})
			}
			rsSeen[key] = true
			if rs.Port <= 0 || rs.Port > 65535 {
				errs = append(errs, ValidationError{Field: rfield + ".port", Message: "must be between 1 and 65535"})
			}
			if rs.Weight < 0 {
				errs = append(errs, ValidationError{Field: rfield + ".weight", Message: "must not be negative"})
			}
		}

		if vs.SorryServer != nil {
			if net.ParseIP(vs.SorryServer.Addr) == nil {
				errs = append(errs, ValidationError{Field: field + ".sorry_server.addr", Message: fmt.Sprintf("invalid address %q", vs.SorryServer.Addr)})
			}
			if vs.SorryServer.Port <= 0 || vs.SorryServer.Port > 65535 {
				errs = append(errs, ValidationError{Field: field + ".sorry_server.port", Message: "must be between 1 and 65535"})
			}
		}

		for j, la := range vs.LocalAddresses {
			lfield := fmt.Sprintf("%s.local_address[%d]", field, j)
			if la.Addr == "" || net.ParseIP(la.Addr) == nil {
				errs = append(errs, ValidationError{Field: lfield + ".addr", Message: fmt.Sprintf("invalid address %q", la.Addr)})
			}
			if la.Iface == "" {
				errs = append(errs, ValidationError{Field: lfield + ".iface", Message: "must not be empty"})
			}
		}
	}
	return errs
}

func (c *Config) validateVSGroups() ValidationErrors {
	var errs ValidationErrors
	seen := make(map[string]bool)
	for i, g := range c.VSGroups {
		field := fmt.Sprintf("vs_group[%s]", g.Name)
		if g.Name == "" {
			field = fmt.Sprintf("vs_group[%d]", i)
		} else if seen[g.Name] {
			errs = append(errs, ValidationError{Field: field, Message: "duplicate vs_group name"})
		}
		seen[g.Name] = true

		for j, e := range g.Entries {
			efield := fmt.Sprintf("%s.entry[%d]", field, j)
			if e.FWMark != 0 {
				continue
			}
			if e.RangeLo == "" || net.ParseIP(e.RangeLo) == nil {
				errs = append(errs, ValidationError{Field: efield + ".range_lo", Message: fmt.Sprintf("invalid address %q", e.RangeLo)})
			}
			if e.RangeHi == "" || net.ParseIP(e.RangeHi) == nil {
				errs = append(errs, ValidationError{Field: efield + ".range_hi", Message: fmt.Sprintf("invalid address %q", e.RangeHi)})
			}
		}
	}
	return errs
}

func (c *Config) validateTunnelGroups() ValidationErrors {
	var errs ValidationErrors
	for i, g := range c.TunnelGroups {
		field := fmt.Sprintf("tunnel_group[%s]", g.Name)
		if g.Name == "" {
			field = fmt.Sprintf("tunnel_group[%d]", i)
		}
		seen := make(map[string]bool)
		for j, tn := range g.Tunnels {
			key := strings.Join([]string{tn.IfName, tn.Link, tn.Kind, tn.Local, tn.Remote}, "|")
			tfield := fmt.Sprintf("%s.tunnel[%d]", field, j)
			if tn.IfName == "" {
				errs = append(errs, ValidationError{Field: tfield + ".ifname", Message: "must not be empty"})
			}
			if seen[key] {
				errs = append(errs, ValidationError{Field: tfield, Message: "duplicate tunnel (ifname, link, kind, local, remote)"})
			}
			seen[key] = true
		}
	}
	return errs
}

func (c *Config) validateWatchdog() ValidationErrors {
	var errs ValidationErrors
	if c.Watchdog.DebounceMS < 0 {
		errs = append(errs, ValidationError{Field: "watchdog.debounce_ms", Message: "must not be negative"})
	}
	return errs
}
