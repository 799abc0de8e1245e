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
	// EventsStored tracks events the projector handler has durably
	// stored, labeled by event type.
	EventsStored = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "events_stored_total",
			Help:      "Total number of events stored, by event type",
		},
		[]string{"event_type"},
	)

	// EventsDuplicate tracks Put calls that found the event already
	// present (idempotent no-op, not an error).
	EventsDuplicate = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "events_duplicate_total",
			Help:      "Total number of Put calls that were idempotent no-ops",
		},
	)

	// ProjectionApplyDuration tracks how long a projection.Store.Apply
	// call took.
	ProjectionApplyDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "projection_apply_duration_seconds",
			Help:      "Duration of projection.Store.Apply calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		},
	)

	// BlockedQueueDepth reports the current number of envelopes parked
	// in the blocked queue.
	BlockedQueueDepth = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "blocked_queue_depth",
			Help:      "Current number of envelopes parked in the blocked queue",
		},
	)
)
