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

// Package store defines the durable event record, the dependency-blocked
// work queue, and the storage interfaces the pipeline runner and
// orchestrator read and write through.
package store

import "time"

// StoredEvent is the durable row persisted once an envelope's event has
// passed validation, membership, and projection. EventID is the
// content-addressed BLAKE2b-128 id; Deps lists the "type:id" dependency
// strings the event declared.
type StoredEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	Ciphertext []byte    `json:"ciphertext"`
	NetworkID  string    `json:"network_id"`
	Deps       []string  `json:"deps"`
	RequestID  string    `json:"request_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Secret is a local-only symmetric or private key never placed on the wire.
// SecretStore is a single flat namespace keyed only by SecretID, so callers
// prefix SecretID by kind to keep the secret kinds from colliding:
// "identity:<identity_id>" for the Ed25519 private key (Kind="identity_key"),
// "group:<group_id>" for a group's current symmetric key (Kind="event_key"),
// "transit:<hex transit_key_id>" for a transit secret looked up by key id
// on receive (Kind="transit_key"), and "transit-peer:<peer_id>" for the
// same secret looked up by link peer on send.
type Secret struct {
	SecretID  string    `json:"secret_id"`
	Kind      string    `json:"kind"`
	Value     []byte    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// DepKey formats the "type:id" dependency reference used in both
// StoredEvent.Deps and Envelope.Deps.
func DepKey(eventType, eventID string) string {
	return eventType + ":" + eventID
}
