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

package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/quietprotocol/quiet/envelope"
	"github.com/quietprotocol/quiet/events"
	"github.com/quietprotocol/quiet/pipeline"
	"github.com/quietprotocol/quiet/pipelineerr"
	"github.com/quietprotocol/quiet/store"
)

// ProjectorHandler is the pipeline's final stage for an inbound or freshly
// created event: it persists the event to the durable store, then applies
// the relational deltas events.Project describes for it. A sync_request is
// the one kind that never reaches storage — it is answered in-flight and
// discarded (see events.Project's nil return for that kind).
type ProjectorHandler struct{}

func NewProjectorHandler() *ProjectorHandler { return &ProjectorHandler{} }

func (h *ProjectorHandler) Name() string { return "projector" }

// Filter additionally waits for the event id and ciphertext: a validated
// self-created envelope has neither until the crypto handler's encrypt
// phase has run, and the stored row carries both.
func (h *ProjectorHandler) Filter(env *envelope.Envelope) bool {
	return env.Validated != nil && *env.Validated && !env.Stored &&
		env.EventID != "" && len(env.EventCiphertext) > 0
}

func (h *ProjectorHandler) Process(ctx context.Context, env *envelope.Envelope, st pipeline.Stores) ([]*envelope.Envelope, error) {
	fields := env.EventPlaintext
	kind := events.TypeOf(fields)

	if kind == events.KindSyncRequest {
		env.Stored = true
		env.Projected = boolPtr(true)
		return nil, nil
	}

	se := &store.StoredEvent{
		EventID:    env.EventID,
		EventType:  env.EventType,
		Ciphertext: env.EventCiphertext,
		NetworkID:  env.NetworkID,
		Deps:       env.Deps,
		RequestID:  env.RequestID,
		CreatedAt:  time.Now(),
	}

	if err := st.Events.Put(ctx, se); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// Already stored (and already projected, by the same
			// invariant) by an earlier delivery of this event: mark it
			// done without re-running the delta application, so a
			// membership grant or message insert never double-applies.
			env.Stored = true
			env.Projected = boolPtr(true)
			return nil, nil
		}
		return nil, pipelineerr.Wrap(pipelineerr.KindInternal, "store event", err)
	}

	deltas, err := events.Project(env.EventID, fields)
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.KindMalformed, "project event", err)
	}
	if err := st.Projection.Apply(ctx, env.EventID, deltas); err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.KindInternal, "apply projection", err)
	}

	env.Stored = true
	env.Projected = boolPtr(true)
	return nil, nil
}
