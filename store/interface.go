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

package store

import "context"

// EventStore persists validated, projected events and answers the
// dependency-satisfaction queries the pipeline's resolver handler needs.
type EventStore interface {
	// Put stores an event. Put must be idempotent on EventID: storing the
	// same id twice is not an error, and returns ErrDuplicate so callers
	// can distinguish a no-op store from a fresh one.
	Put(ctx context.Context, ev *StoredEvent) error

	// Get retrieves an event by its content-addressed id.
	Get(ctx context.Context, eventID string) (*StoredEvent, error)

	// Has reports whether an event id is already stored, without
	// fetching the full record.
	Has(ctx context.Context, eventID string) (bool, error)

	// MissingDeps filters deps down to the ones not yet present in the
	// store, preserving order.
	MissingDeps(ctx context.Context, deps []string) ([]string, error)

	// ListByType returns every stored event of a given type, ordered by
	// insertion.
	ListByType(ctx context.Context, eventType string) ([]*StoredEvent, error)

	// Close releases any underlying resources (connection pool, etc).
	Close() error
}

// SecretStore persists local-only keys that never appear on the wire:
// identity private keys, group event keys, and transit keys.
type SecretStore interface {
	PutSecret(ctx context.Context, s *Secret) error
	GetSecret(ctx context.Context, secretID string) (*Secret, error)
	Close() error
}
