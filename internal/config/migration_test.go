// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalizeLowersSchedulerAndAliases(t *testing.T) {
	cfg := &Config{
		SchemaVersion: "1.0",
		VirtualServers: []VirtualServer{
			{ID: "web", AF: "INET", Proto: "TCP", Scheduler: "Round-Robin"},
			{ID: "api", Scheduler: "WEIGHTED_RR"},
		},
	}
	Canonicalize(cfg)

	require.Equal(t, "inet", cfg.VirtualServers[0].AF)
	require.Equal(t, "tcp", cfg.VirtualServers[0].Proto)
	require.Equal(t, "rr", cfg.VirtualServers[0].Scheduler)
	require.Equal(t, "wrr", cfg.VirtualServers[1].Scheduler)
}

func TestMigrationPathJumpsMultipleVersions(t *testing.T) {
	registry := &MigrationRegistry{}
	var applied []string

	registry.Register(Migration{
		FromVersion: MustParseVersion("1.0"),
		ToVersion:   MustParseVersion("1.1"),
		Migrate: func(cfg *Config) error {
			applied = append(applied, "1.0->1.1")
			return nil
		},
	})
	registry.Register(Migration{
		FromVersion: MustParseVersion("1.1"),
		ToVersion:   MustParseVersion("1.2"),
		Migrate: func(cfg *Config) error {
			applied = append(applied, "1.1->1.2")
			return nil
		},
	})

	cfg := &Config{SchemaVersion: "1.0"}
	err := registry.MigrateConfig(cfg, MustParseVersion("1.2"))
	require.NoError(t, err)
	require.Equal(t, []string{"1.0->1.1", "1.1->1.2"}, applied)
	require.Equal(t, "1.2", cfg.SchemaVersion)
}

func TestMigrateConfigNoopWhenAlreadyAtTarget(t *testing.T) {
	cfg := &Config{SchemaVersion: "1.0"}
	err := MigrateConfig(cfg, MustParseVersion("1.0"))
	require.NoError(t, err)
	require.Equal(t, "1.0", cfg.SchemaVersion)
}

func TestSchemaVersionCompare(t *testing.T) {
	require.Equal(t, -1, MustParseVersion("1.0").Compare(MustParseVersion("1.1")))
	require.Equal(t, 0, MustParseVersion("1.2").Compare(MustParseVersion("1.2")))
	require.Equal(t, 1, MustParseVersion("2.0").Compare(MustParseVersion("1.9")))
}
