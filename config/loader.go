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

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// LoaderOptions configures the configuration loader.
type LoaderOptions struct {
	// ConfigDir is the directory containing config files (default: ./config).
	ConfigDir string
	// Environment overrides automatic environment detection.
	Environment string
	// SkipEnvSubstitution disables ${VAR} environment variable substitution.
	SkipEnvSubstitution bool
	// SkipValidation disables the post-load validation pass.
	SkipValidation bool
}

// DefaultLoaderOptions returns the loader options Load uses when none are
// given: config files under ./config, environment auto-detected from
// QUIET_ENV, substitution and validation both on.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{ConfigDir: "config"}
}

// Load loads the daemon's configuration: try <env>.yaml, then
// default.yaml, then config.yaml under ConfigDir, falling back to an
// all-defaults Config (in-memory storage, no postgres) if none exist —
// the CLI demos and tests run this way with zero setup. Environment
// variable overrides always apply last, taking priority over file content.
func Load(opts ...LoaderOptions) (*Config, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	cfg, err := loadConfigFile(filepath.Join(options.ConfigDir, fmt.Sprintf("%s.yaml", env)))
	if err != nil {
		cfg, err = loadConfigFile(filepath.Join(options.ConfigDir, "default.yaml"))
		if err != nil {
			cfg, err = loadConfigFile(filepath.Join(options.ConfigDir, "config.yaml"))
			if err != nil {
				cfg = &Config{}
			}
		}
	}

	if cfg.Environment == "" {
		cfg.Environment = env
	}
	setDefaults(cfg)

	if !options.SkipEnvSubstitution {
		SubstituteEnvVarsInConfig(cfg)
	}
	applyEnvironmentOverrides(cfg)

	if !options.SkipValidation {
		for _, e := range ValidateConfiguration(cfg) {
			if e.Level == "error" {
				return nil, fmt.Errorf("config: validation failed: %s - %s", e.Field, e.Message)
			}
		}
	}

	return cfg, nil
}

func loadConfigFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config: file not found: %s", path)
	}
	return LoadFromFile(path)
}

// applyEnvironmentOverrides layers environment variables over whatever the
// config file set, at the highest precedence.
func applyEnvironmentOverrides(cfg *Config) {
	if backend := os.Getenv("QUIET_STORAGE_BACKEND"); backend != "" && cfg.Storage != nil {
		cfg.Storage.Backend = backend
	}
	if cfg.Storage != nil && cfg.Storage.Postgres != nil {
		p := cfg.Storage.Postgres
		if v := os.Getenv("QUIET_PG_HOST"); v != "" {
			p.Host = v
		}
		if v := os.Getenv("QUIET_PG_DATABASE"); v != "" {
			p.Database = v
		}
		if v := os.Getenv("QUIET_PG_USER"); v != "" {
			p.User = v
		}
		if v := os.Getenv("QUIET_PG_PASSWORD"); v != "" {
			p.Password = v
		}
	}

	if addr := os.Getenv("QUIET_LISTEN_ADDRESS"); addr != "" && cfg.Transport != nil {
		cfg.Transport.ListenAddress = addr
	}

	if level := os.Getenv("QUIET_LOG_LEVEL"); level != "" && cfg.Logging != nil {
		cfg.Logging.Level = level
	}

	if os.Getenv("QUIET_METRICS_ENABLED") == "true" && cfg.Metrics != nil {
		cfg.Metrics.Enabled = true
	}
	if os.Getenv("QUIET_METRICS_ENABLED") == "false" && cfg.Metrics != nil {
		cfg.Metrics.Enabled = false
	}
}

// LoadForEnvironment loads configuration for a named environment, ignoring
// QUIET_ENV.
func LoadForEnvironment(environment string) (*Config, error) {
	return Load(LoaderOptions{ConfigDir: "config", Environment: environment})
}

// MustLoad loads configuration or panics, for callers (cmd/quietd's main)
// that have nothing sensible to do on a bad config besides exit.
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("config: failed to load: %v", err))
	}
	return cfg
}
