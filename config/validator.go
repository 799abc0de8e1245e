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

import "fmt"

// ValidationError is one configuration problem found by
// ValidateConfiguration. Level is "error" (Load fails) or "warning"
// (logged but non-fatal).
type ValidationError struct {
	Field   string
	Message string
	Level   string
}

// ValidateConfiguration checks cfg for problems Load should refuse to run
// with (an unknown storage backend, a postgres backend with no database
// name) versus ones worth only a warning (listening on all interfaces).
func ValidateConfiguration(cfg *Config) []ValidationError {
	var errs []ValidationError

	errs = append(errs, validateStorage(cfg.Storage)...)
	errs = append(errs, validateTransport(cfg.Transport)...)
	errs = append(errs, validateLogging(cfg.Logging)...)

	return errs
}

func validateStorage(cfg *StorageConfig) []ValidationError {
	var errs []ValidationError
	if cfg == nil {
		return errs
	}

	switch cfg.Backend {
	case "memory", "postgres":
	default:
		errs = append(errs, ValidationError{
			Field:   "Storage.Backend",
			Message: fmt.Sprintf("unknown storage backend %q (want memory or postgres)", cfg.Backend),
			Level:   "error",
		})
	}

	if cfg.Backend == "postgres" {
		if cfg.Postgres == nil {
			errs = append(errs, ValidationError{
				Field:   "Storage.Postgres",
				Message: "postgres backend selected but no postgres config given",
				Level:   "error",
			})
			return errs
		}
		if cfg.Postgres.Database == "" {
			errs = append(errs, ValidationError{
				Field:   "Storage.Postgres.Database",
				Message: "database name is required",
				Level:   "error",
			})
		}
		if cfg.Postgres.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "Storage.Postgres.Host",
				Message: "host is required",
				Level:   "error",
			})
		}
		if cfg.Postgres.Password == "" {
			errs = append(errs, ValidationError{
				Field:   "Storage.Postgres.Password",
				Message: "no password configured; relying on trust/peer auth",
				Level:   "warning",
			})
		}
	}

	return errs
}

func validateTransport(cfg *TransportConfig) []ValidationError {
	var errs []ValidationError
	if cfg == nil {
		return errs
	}
	if cfg.ListenAddress == "0.0.0.0:7913" {
		errs = append(errs, ValidationError{
			Field:   "Transport.ListenAddress",
			Message: "listening on all interfaces by default",
			Level:   "warning",
		})
	}
	return errs
}

func validateLogging(cfg *LoggingConfig) []ValidationError {
	var errs []ValidationError
	if cfg == nil {
		return errs
	}
	switch cfg.Level {
	case "debug", "info", "warn", "error", "fatal":
	default:
		errs = append(errs, ValidationError{
			Field:   "Logging.Level",
			Message: fmt.Sprintf("unknown log level %q", cfg.Level),
			Level:   "error",
		})
	}
	return errs
}
