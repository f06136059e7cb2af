// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/hashicorp/hcl/v2/hclwrite"

	laddrerrors "grimm.is/laddrd/internal/errors"
)

// ConfigFile is a loaded config together with its original HCL source and a
// JSON snapshot of the as-loaded struct, so a reload can be diffed against
// the new file before it is decoded and applied (spec §4.7).
type ConfigFile struct {
	Path         string
	Config       *Config
	hclFile      *hclwrite.File
	original     []byte
	originalJSON []byte
}

// LoadConfigFile reads and decodes path into a ConfigFile.
func LoadConfigFile(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, laddrerrors.Wrap(err, laddrerrors.KindInternal, "config: failed to read file")
	}
	return LoadConfigFromBytes(path, data)
}

// LoadConfigFromBytes decodes data as HCL, keeping the parsed write-form
// alongside the decoded struct so Diff/DiffStructured can compare against a
// later reload (spec §4.7).
func LoadConfigFromBytes(filename string, data []byte) (*ConfigFile, error) {
	hclFile, diags := hclwrite.ParseConfig(data, filename, hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, laddrerrors.Errorf(laddrerrors.KindValidation, "config: failed to parse HCL: %s", diags.Error())
	}

	var cfg Config
	if err := hclsimple.Decode(filename, data, nil, &cfg); err != nil {
		return nil, laddrerrors.Wrap(err, laddrerrors.KindValidation, "config: failed to decode")
	}
	applyDefaults(&cfg)

	snapshot, err := json.Marshal(&cfg)
	if err != nil {
		return nil, laddrerrors.Wrap(err, laddrerrors.KindInternal, "config: snapshot")
	}

	return &ConfigFile{Path: filename, Config: &cfg, hclFile: hclFile, original: data, originalJSON: snapshot}, nil
}

// HasChanges reports whether Config has been mutated since loading.
func (cf *ConfigFile) HasChanges() bool {
	current, err := json.Marshal(cf.Config)
	if err != nil {
		return true
	}
	return !bytes.Equal(cf.originalJSON, current)
}

// Reload discards in-memory changes and re-reads Path from disk.
func (cf *ConfigFile) Reload() error {
	fresh, err := LoadConfigFile(cf.Path)
	if err != nil {
		return err
	}
	*cf = *fresh
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = "1.0"
	}
	if cfg.Pool.Mode == "" {
		cfg.Pool.Mode = "lport"
	}
	if cfg.Pool.WorkerBits == 0 {
		cfg.Pool.WorkerBits = 2
	}
	if cfg.Watchdog.DebounceMS == 0 {
		cfg.Watchdog.DebounceMS = 1000
	}
	for i := range cfg.VirtualServers {
		vs := &cfg.VirtualServers[i]
		if vs.Scheduler == "" {
			vs.Scheduler = "rr"
		}
		if vs.UpperLimit == 0 {
			vs.UpperLimit = 100
		}
	}
}
