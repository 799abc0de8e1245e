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
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegistration(t *testing.T) {
	if EnvelopesProcessed == nil {
		t.Error("EnvelopesProcessed metric is nil")
	}
	if EnvelopesBlocked == nil {
		t.Error("EnvelopesBlocked metric is nil")
	}
	if EnvelopesReadmitted == nil {
		t.Error("EnvelopesReadmitted metric is nil")
	}
	if RunIterations == nil {
		t.Error("RunIterations metric is nil")
	}
	if HandlerDuration == nil {
		t.Error("HandlerDuration metric is nil")
	}

	if EventsStored == nil {
		t.Error("EventsStored metric is nil")
	}
	if EventsDuplicate == nil {
		t.Error("EventsDuplicate metric is nil")
	}
	if BlockedQueueDepth == nil {
		t.Error("BlockedQueueDepth metric is nil")
	}

	if CryptoOperations == nil {
		t.Error("CryptoOperations metric is nil")
	}
}

func TestMetricsIncrement(t *testing.T) {
	EnvelopesProcessed.WithLabelValues("resolver", "emitted").Inc()
	EnvelopesBlocked.Inc()
	EnvelopesReadmitted.Inc()
	RunIterations.Observe(3)
	HandlerDuration.WithLabelValues("projector").Observe(0.001)

	EventsStored.WithLabelValues("message").Inc()
	EventsDuplicate.Inc()
	BlockedQueueDepth.Set(2)

	CryptoOperations.WithLabelValues("sign", "ed25519").Inc()
	CryptoOperations.WithLabelValues("transit_encrypt", "xchacha20poly1305").Inc()

	if count := testutil.CollectAndCount(EnvelopesProcessed); count == 0 {
		t.Error("EnvelopesProcessed has no metrics collected")
	}
	if count := testutil.CollectAndCount(EventsStored); count == 0 {
		t.Error("EventsStored has no metrics collected")
	}
	if count := testutil.CollectAndCount(CryptoOperations); count == 0 {
		t.Error("CryptoOperations has no metrics collected")
	}
}

func TestMetricsGatherable(t *testing.T) {
	if _, err := testutil.GatherAndCount(Registry); err != nil {
		t.Fatalf("Registry.Gather returned an error: %v", err)
	}
}
