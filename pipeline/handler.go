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

// Package pipeline runs envelopes through a registry of handlers to a
// fixpoint, then resolves and runs any batch that still carries a
// generated-id placeholder. It owns the Handler contract rather than
// package envelope, since a handler's Process method needs store.EventStore
// and envelope must stay a dependency-free leaf package.
package pipeline

import (
	"context"

	"github.com/quietprotocol/quiet/envelope"
	"github.com/quietprotocol/quiet/projection"
	"github.com/quietprotocol/quiet/store"
)

// Stores bundles the three storage surfaces a handler may need. Handlers
// take this one struct rather than three separate parameters so that
// adding a new storage concern later doesn't change every Handler's
// signature.
type Stores struct {
	Events     store.EventStore
	Secrets    store.SecretStore
	Projection projection.Store
}

// GroupKeyDep is the synthetic blocked-queue key an envelope waits under
// when the symmetric key for its group has not been installed in the
// secret store yet. It lives alongside the ordinary "type:id" dependency
// keys; the Runner satisfies it whenever a key event for that group is
// processed.
func GroupKeyDep(groupID string) string { return "group-key:" + groupID }

// Handler is one stage of the pipeline: decrypt, resolve dependencies,
// verify a signature, check membership, project into storage, or prepare an
// outgoing datagram. A Runner holds an ordered slice of Handlers and offers
// every queued envelope to each one in turn.
type Handler interface {
	// Name identifies the handler for logging and metrics.
	Name() string

	// Filter reports whether this handler applies to env. A handler
	// whose Filter returns false is skipped for that envelope.
	Filter(env *envelope.Envelope) bool

	// Process runs the handler's logic against env, mutating it in
	// place, and returns any new envelopes it emits (e.g. a decrypted
	// inner event, a re-encrypted outgoing datagram). Process itself may
	// read and write through st, but must not block on another
	// envelope's future state: dependency blocking is the resolver
	// handler's job, mediated by the Runner's BlockedQueue.
	Process(ctx context.Context, env *envelope.Envelope, st Stores) ([]*envelope.Envelope, error)
}
