// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config loads and validates the HCL configuration file describing
// pool mode, virtual servers, real servers, VSGroups, sorry servers,
// laddr-groups, and tunnel groups (spec §3, §4.7).
package config

// SecureString is a string that hides its value in JSON output. Used for
// SMTP credentials and control-socket auth tokens.
type SecureString string

func (s SecureString) String() string {
	if s == "" {
		return ""
	}
	return "(hidden)"
}

func (s SecureString) GoString() string { return "(hidden)" }

func (s SecureString) MarshalJSON() ([]byte, error) {
	if s == "" {
		return []byte(`""`), nil
	}
	return []byte(`"(hidden)"`), nil
}

func (s *SecureString) UnmarshalText(text []byte) error {
	*s = SecureString(string(text))
	return nil
}

// Config is the root of an on-disk laddrd configuration.
type Config struct {
	SchemaVersion string `hcl:"schema_version,optional" json:"schema_version,omitempty"`

	Pool          PoolConfig           `hcl:"pool,block" json:"pool"`
	VirtualServers []VirtualServer     `hcl:"virtual_server,block" json:"virtual_server,omitempty"`
	VSGroups      []VSGroup            `hcl:"vs_group,block" json:"vs_group,omitempty"`
	TunnelGroups  []TunnelGroup        `hcl:"tunnel_group,block" json:"tunnel_group,omitempty"`
	Notifications NotificationsConfig  `hcl:"notifications,block" json:"notifications"`
	Watchdog      WatchdogConfig       `hcl:"watchdog,block" json:"watchdog"`
}

// PoolConfig carries the process-wide port-pool mode constants of spec §4.1/§6.
type PoolConfig struct {
	Mode       string `hcl:"mode,optional" json:"mode,omitempty"` // "lport" | "laddr"
	WorkerBits int    `hcl:"worker_bits,optional" json:"worker_bits,omitempty"`
	NumWorkers int    `hcl:"num_workers,optional" json:"num_workers,omitempty"`
	EnableMask uint64 `hcl:"enable_mask,optional" json:"enable_mask,omitempty"`
}

// LocalAddressConfig is one laddr entry for a VS (spec §4.2 add()).
type LocalAddressConfig struct {
	AF     string `hcl:"af,optional" json:"af,omitempty"`
	Addr   string `hcl:"addr,label" json:"addr"`
	Iface  string `hcl:"iface" json:"iface"`
}

// RealServerConfig describes one backend target of a VS.
type RealServerConfig struct {
	Addr    string `hcl:"addr,label" json:"addr"`
	Port    int    `hcl:"port" json:"port"`
	Weight  int    `hcl:"weight,optional" json:"weight,omitempty"`
	Inhibit bool   `hcl:"inhibit,optional" json:"inhibit,omitempty"`
}

// SorryServerConfig is the stand-in backend installed when quorum is lost.
type SorryServerConfig struct {
	Addr string `hcl:"addr" json:"addr"`
	Port int    `hcl:"port" json:"port"`
}

// VirtualServer is one VS block (spec §3 "VirtualServer").
type VirtualServer struct {
	ID    string `hcl:"id,label" json:"id"`
	AF    string `hcl:"af,optional" json:"af,omitempty"`
	Proto string `hcl:"proto,optional" json:"proto,omitempty"`
	VAddr string `hcl:"vaddr,optional" json:"vaddr,omitempty"`
	VPort int    `hcl:"vport,optional" json:"vport,omitempty"`

	FWMark    uint32 `hcl:"fwmark,optional" json:"fwmark,omitempty"`
	HasMark   bool   `hcl:"has_mark,optional" json:"has_mark,omitempty"`
	GroupRef  string `hcl:"group,optional" json:"group,omitempty"`

	Scheduler       string `hcl:"scheduler,optional" json:"scheduler,omitempty"`
	Quorum          int    `hcl:"quorum,optional" json:"quorum,omitempty"`
	Hysteresis      int    `hcl:"hysteresis,optional" json:"hysteresis,omitempty"`
	Omega           bool   `hcl:"omega,optional" json:"omega,omitempty"`
	UpperLimit      int    `hcl:"alive_upper_limit,optional" json:"alive_upper_limit,omitempty"`
	LowerLimit      int    `hcl:"alive_lower_limit,optional" json:"alive_lower_limit,omitempty"`
	PersistTimeout  int    `hcl:"persistence_timeout,optional" json:"persistence_timeout,omitempty"`
	PersistGranularity string `hcl:"persistence_granularity,optional" json:"persistence_granularity,omitempty"`

	LocalAddresses []LocalAddressConfig `hcl:"local_address,block" json:"local_address,omitempty"`
	RealServers    []RealServerConfig   `hcl:"real_server,block" json:"real_server,omitempty"`
	SorryServer    *SorryServerConfig   `hcl:"sorry_server,block" json:"sorry_server,omitempty"`
}

// VSGroup is a named set of address-ranges/fwmarks sharing one config (spec §3).
type VSGroup struct {
	Name    string          `hcl:"name,label" json:"name"`
	Entries []VSGroupEntry  `hcl:"entry,block" json:"entry,omitempty"`
}

type VSGroupEntry struct {
	AF      string `hcl:"af,optional" json:"af,omitempty"`
	RangeLo string `hcl:"range_lo,optional" json:"range_lo,omitempty"`
	RangeHi string `hcl:"range_hi,optional" json:"range_hi,omitempty"`
	FWMark  uint32 `hcl:"fwmark,optional" json:"fwmark,omitempty"`
}

// TunnelGroup is diffed by (ifname, link, kind, local, remote) quintuple
// equality on reload (spec §4.7 step 3).
type TunnelGroup struct {
	Name    string         `hcl:"name,label" json:"name"`
	Tunnels []TunnelConfig `hcl:"tunnel,block" json:"tunnel,omitempty"`
}

type TunnelConfig struct {
	IfName string `hcl:"ifname" json:"ifname"`
	Link   string `hcl:"link,optional" json:"link,omitempty"`
	Kind   string `hcl:"kind,optional" json:"kind,omitempty"`
	Local  string `hcl:"local,optional" json:"local,omitempty"`
	Remote string `hcl:"remote,optional" json:"remote,omitempty"`
}

// NotificationChannel names one notification sink the way a VSGroup names
// one VS selector: a reusable, named config block.
type NotificationChannel struct {
	Name string `hcl:"name,label" json:"name"`
	Type string `hcl:"type" json:"type"` // "script" | "fifo" | "smtp"
}

type NotificationsConfig struct {
	Enabled    bool     `hcl:"enabled,optional" json:"enabled,omitempty"`
	ScriptPath string   `hcl:"script_path,optional" json:"script_path,omitempty"`
	VSFifoPath string   `hcl:"vs_fifo_path,optional" json:"vs_fifo_path,omitempty"`
	RSFifoPath string   `hcl:"rs_fifo_path,optional" json:"rs_fifo_path,omitempty"`
	SMTPHost   string   `hcl:"smtp_host,optional" json:"smtp_host,omitempty"`
	SMTPPort   int      `hcl:"smtp_port,optional" json:"smtp_port,omitempty"`
	SMTPFrom   string   `hcl:"smtp_from,optional" json:"smtp_from,omitempty"`
	SMTPTo     []string `hcl:"smtp_to,optional" json:"smtp_to,omitempty"`
	SMTPUser   string        `hcl:"smtp_user,optional" json:"smtp_user,omitempty"`
	SMTPPass   SecureString  `hcl:"smtp_pass,optional" json:"smtp_pass,omitempty"`
}

// WatchdogConfig configures the operator hook for the alive-ratio watchdog
// (spec §4.6, §6).
type WatchdogConfig struct {
	ActionCmd     string `hcl:"action_cmd,optional" json:"action_cmd,omitempty"`
	DebounceMS    int    `hcl:"debounce_ms,optional" json:"debounce_ms,omitempty"`
}
