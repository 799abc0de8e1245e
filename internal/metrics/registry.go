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

// Package metrics exposes Prometheus instrumentation for the envelope
// pipeline: handler throughput, event store / projection activity, and
// the crypto operations the crypto handler performs. Every metric in this
// package is registered against Registry rather than the global default
// registerer, so a daemon process and its test suite never collide over
// the same process-wide prometheus.DefaultRegisterer.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// namespace prefixes every metric name this package registers
// (quiet_pipeline_*, quiet_crypto_*, ...).
const namespace = "quiet"

// Registry is the Prometheus registerer every metric in this package
// registers against. Exported so cmd/quietd's metrics server (internal/
// metrics.Handler/StartServer) and tests can share it explicitly instead
// of relying on a package-level global.
var Registry = prometheus.NewRegistry()
