// Copyright (C) 2025 quiet-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package config holds the quiet daemon's configuration: which storage
// backend (store.EventStore/SecretStore and projection.Store) to use, the
// Postgres connection parameters when that backend is selected, logging,
// metrics, and the daemon's listen address. Loading cascades an
// environment-specific YAML file over defaults, applies ${VAR:default}
// substitution and environment-variable overrides, then runs a validation
// pass with error/warning severities.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the quiet daemon's top-level configuration.
type Config struct {
	Environment string          `yaml:"environment" json:"environment"`
	Identity    *IdentityConfig `yaml:"identity" json:"identity"`
	Storage     *StorageConfig  `yaml:"storage" json:"storage"`
	Transport   *TransportConfig `yaml:"transport" json:"transport"`
	Logging     *LoggingConfig  `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig  `yaml:"metrics" json:"metrics"`
}

// IdentityConfig names the local identity this daemon process runs as.
// The identity event itself, and its private key, live in the secret
// store; this only says which identity id to load at startup.
type IdentityConfig struct {
	IdentityID string `yaml:"identity_id" json:"identity_id"`
	DataDir    string `yaml:"data_dir" json:"data_dir"`
}

// StorageConfig picks the event store / secret store / projection store
// backend: "memory" (single-process, non-durable, used by the CLI demos
// and tests) or "postgres" (durable, multi-process).
type StorageConfig struct {
	Backend  string          `yaml:"backend" json:"backend"`
	Postgres *PostgresConfig `yaml:"postgres" json:"postgres"`
}

// PostgresConfig mirrors store/postgres.Config and projection/postgres's
// connection-string constructor.
type PostgresConfig struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	User            string        `yaml:"user" json:"user"`
	Password        string        `yaml:"password" json:"password"`
	Database        string        `yaml:"database" json:"database"`
	SSLMode         string        `yaml:"ssl_mode" json:"ssl_mode"`
	MaxConns        int32         `yaml:"max_conns" json:"max_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// TransportConfig configures the daemon's listen address for incoming
// transit-layer datagrams. RetryInterval is given a default but is not
// read anywhere: outgoing datagrams are sent once and never re-tried.
// The pipeline itself never reads these.
type TransportConfig struct {
	ListenAddress string        `yaml:"listen_address" json:"listen_address"`
	RetryInterval time.Duration `yaml:"retry_interval" json:"retry_interval"`
}

// LoggingConfig configures internal/logger's structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Output string `yaml:"output" json:"output"`
	Pretty bool   `yaml:"pretty" json:"pretty"`
}

// MetricsConfig configures internal/metrics' Prometheus HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
	Path    string `yaml:"path" json:"path"`
}

// LoadFromFile loads configuration from a YAML (or, failing that, JSON)
// file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("config: parse %s (tried YAML and JSON): %w", path, err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile writes cfg back out, choosing YAML unless path ends in .json.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error
	if len(path) >= 5 && path[len(path)-5:] == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// setDefaults fills in every field a zero-value Config leaves empty so
// that a daemon started with no config file at all still runs against an
// in-memory store.
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Identity == nil {
		cfg.Identity = &IdentityConfig{}
	}
	if cfg.Identity.DataDir == "" {
		cfg.Identity.DataDir = ".quiet"
	}

	if cfg.Storage == nil {
		cfg.Storage = &StorageConfig{}
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
	if cfg.Storage.Backend == "postgres" {
		if cfg.Storage.Postgres == nil {
			cfg.Storage.Postgres = &PostgresConfig{}
		}
		p := cfg.Storage.Postgres
		if p.Host == "" {
			p.Host = "localhost"
		}
		if p.Port == 0 {
			p.Port = 5432
		}
		if p.Database == "" {
			p.Database = "quiet"
		}
		if p.SSLMode == "" {
			p.SSLMode = "disable"
		}
		if p.MaxConns == 0 {
			p.MaxConns = 10
		}
		if p.ConnMaxLifetime == 0 {
			p.ConnMaxLifetime = time.Hour
		}
	}

	if cfg.Transport == nil {
		cfg.Transport = &TransportConfig{}
	}
	if cfg.Transport.ListenAddress == "" {
		cfg.Transport.ListenAddress = "0.0.0.0:7913"
	}
	if cfg.Transport.RetryInterval == 0 {
		cfg.Transport.RetryInterval = 30 * time.Second
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = "127.0.0.1:9913"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}
