// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	laddrerrors "grimm.is/laddrd/internal/errors"
)

// CurrentSchemaVersion is the schema version applyDefaults stamps onto a
// config that omits schema_version.
const CurrentSchemaVersion = "1.0"

// SchemaVersion is a "major.minor" config schema version.
type SchemaVersion struct {
	Major, Minor int
}

func (v SchemaVersion) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than other.
func (v SchemaVersion) Compare(other SchemaVersion) int {
	if v.Major != other.Major {
		if v.Major < other.Major {
			return -1
		}
		return 1
	}
	if v.Minor != other.Minor {
		if v.Minor < other.Minor {
			return -1
		}
		return 1
	}
	return 0
}

// ParseVersion parses a "major.minor" string.
func ParseVersion(s string) (SchemaVersion, error) {
	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 {
		return SchemaVersion{}, laddrerrors.Errorf(laddrerrors.KindValidation, "config: malformed schema version %q", s)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return SchemaVersion{}, laddrerrors.Wrapf(err, laddrerrors.KindValidation, "config: malformed schema version %q", s)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return SchemaVersion{}, laddrerrors.Wrapf(err, laddrerrors.KindValidation, "config: malformed schema version %q", s)
	}
	return SchemaVersion{Major: major, Minor: minor}, nil
}

// MustParseVersion parses a version string or panics; used only for
// registering migrations at init time with version literals.
func MustParseVersion(s string) SchemaVersion {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Migration describes one schema transition applied in place to a decoded Config.
type Migration struct {
	FromVersion SchemaVersion
	ToVersion   SchemaVersion
	Description string
	Migrate     func(*Config) error
}

// MigrationRegistry orders and applies a sequence of Migrations.
type MigrationRegistry struct {
	migrations []Migration
}

// DefaultMigrations is the process-wide registry. This package registers
// no migrations into it; it starts empty.
var DefaultMigrations = &MigrationRegistry{}

func (r *MigrationRegistry) Register(m Migration) {
	r.migrations = append(r.migrations, m)
}

// GetMigrationPath returns the ordered migrations needed to move a config
// from "from" to "to", upgrading or downgrading as required.
func (r *MigrationRegistry) GetMigrationPath(from, to SchemaVersion) ([]Migration, error) {
	cmp := from.Compare(to)
	if cmp == 0 {
		return nil, nil
	}
	upgrade := cmp < 0

	var applicable []Migration
	for _, m := range r.migrations {
		mUpgrade := m.FromVersion.Compare(m.ToVersion) < 0
		switch {
		case upgrade && mUpgrade && m.FromVersion.Compare(from) >= 0 && m.ToVersion.Compare(to) <= 0:
			applicable = append(applicable, m)
		case !upgrade && !mUpgrade && m.FromVersion.Compare(from) <= 0 && m.ToVersion.Compare(to) >= 0:
			applicable = append(applicable, m)
		}
	}

	if upgrade {
		sort.Slice(applicable, func(i, j int) bool {
			return applicable[i].FromVersion.Compare(applicable[j].FromVersion) < 0
		})
	} else {
		sort.Slice(applicable, func(i, j int) bool {
			return applicable[i].FromVersion.Compare(applicable[j].FromVersion) > 0
		})
	}
	return applicable, nil
}

// MigrateConfig brings cfg up (or down) to targetVersion using the default registry.
func MigrateConfig(cfg *Config, targetVersion SchemaVersion) error {
	return DefaultMigrations.MigrateConfig(cfg, targetVersion)
}

func (r *MigrationRegistry) MigrateConfig(cfg *Config, targetVersion SchemaVersion) error {
	current, err := ParseVersion(cfg.SchemaVersion)
	if err != nil {
		return err
	}
	if current.Compare(targetVersion) == 0 {
		cfg.SchemaVersion = targetVersion.String()
		return nil
	}

	path, err := r.GetMigrationPath(current, targetVersion)
	if err != nil {
		return err
	}
	for _, m := range path {
		if err := m.Migrate(cfg); err != nil {
			return laddrerrors.Wrapf(err, laddrerrors.KindInternal, "config: migration %s -> %s failed", m.FromVersion, m.ToVersion)
		}
		cfg.SchemaVersion = m.ToVersion.String()
	}
	cfg.SchemaVersion = targetVersion.String()
	Canonicalize(cfg)
	return nil
}

// MigrateToLatest migrates cfg to CurrentSchemaVersion.
func MigrateToLatest(cfg *Config) error {
	target, err := ParseVersion(CurrentSchemaVersion)
	if err != nil {
		return err
	}
	return MigrateConfig(cfg, target)
}

// Canonicalize normalizes fields that accept more than one on-disk spelling,
// independent of schema version (scheduler aliases, AF case, proto case).
func Canonicalize(cfg *Config) {
	if cfg.Pool.Mode != "" {
		cfg.Pool.Mode = strings.ToLower(cfg.Pool.Mode)
	}
	for i := range cfg.VirtualServers {
		vs := &cfg.VirtualServers[i]
		vs.AF = strings.ToLower(vs.AF)
		vs.Proto = strings.ToLower(vs.Proto)
		vs.Scheduler = strings.ToLower(vs.Scheduler)
		switch vs.Scheduler {
		case "roundrobin", "round-robin":
			vs.Scheduler = "rr"
		case "weighted-rr", "weighted_rr":
			vs.Scheduler = "wrr"
		}
		for j := range vs.LocalAddresses {
			vs.LocalAddresses[j].AF = strings.ToLower(vs.LocalAddresses[j].AF)
		}
	}
	for i := range cfg.VSGroups {
		for j := range cfg.VSGroups[i].Entries {
			cfg.VSGroups[i].Entries[j].AF = strings.ToLower(cfg.VSGroups[i].Entries[j].AF)
		}
	}
}
