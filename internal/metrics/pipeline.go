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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EnvelopesProcessed tracks envelopes a pipeline.Handler has handled,
	// labeled by handler name and outcome.
	EnvelopesProcessed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "envelopes_processed_total",
			Help:      "Total number of envelopes processed by each handler",
		},
		[]string{"handler", "outcome"}, // outcome: handled/error
	)

	// EnvelopesBlocked tracks envelopes the dependency resolver parked in
	// the blocked queue.
	EnvelopesBlocked = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "envelopes_blocked_total",
			Help:      "Total number of envelopes parked in the blocked queue awaiting a dependency",
		},
	)

	// EnvelopesReadmitted tracks envelopes the resolver pulled back out of
	// the blocked queue once their last missing dependency arrived.
	EnvelopesReadmitted = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "envelopes_readmitted_total",
			Help:      "Total number of envelopes re-admitted to the pipeline after their dependencies arrived",
		},
	)

	// RunIterations tracks how many fixpoint iterations a single drain
	// took; one pipeline.Runner.Run call observes it once per drain (twice
	// when the batch carries placeholder envelopes).
	RunIterations = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_iterations",
			Help:      "Number of fixpoint iterations a single pipeline drain took",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		},
	)

	// HandlerDuration tracks the wall-clock time a single handler's
	// Process call took.
	HandlerDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "handler_duration_seconds",
			Help:      "Handler Process duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		},
		[]string{"handler"},
	)
)
