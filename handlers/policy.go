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

// Package handlers implements the pipeline.Handler stages: crypto
// (transit + event layer), signature check/self-sign, group membership,
// dependency resolution, projection, and outgoing preparation.
package handlers

import "github.com/quietprotocol/quiet/events"

// EncryptionPolicy names how an event kind's plaintext is protected once it
// leaves the transit layer.
type EncryptionPolicy int

const (
	// PolicyPlaintext means the event's fields travel as plain canonical
	// JSON once past the transit layer: bootstrap/metadata events that
	// must be readable by anyone holding the transit key, or (for
	// identity/peer) never travel encrypted at all since their id scheme
	// depends on the plaintext public key being visible.
	PolicyPlaintext EncryptionPolicy = iota
	// PolicyGroupKey means the event is encrypted under the current
	// symmetric key for the group it belongs to.
	PolicyGroupKey
	// PolicySealed means the event is sealed to one recipient's Ed25519
	// identity key via the anonymous KEM, readable only by that peer.
	PolicySealed
)

// policyForKind returns the encryption policy for an event kind:
// channel/member/message
// are the group-scoped kinds that get a shared group key; key and
// sync_request are inherently single-recipient and get sealed; everything
// else is bootstrap/identity metadata that rides in the clear once past
// the transit layer.
func policyForKind(kind events.Kind) EncryptionPolicy {
	switch kind {
	case events.KindChannel, events.KindMember, events.KindMessage:
		return PolicyGroupKey
	case events.KindKey, events.KindSyncRequest:
		return PolicySealed
	default:
		return PolicyPlaintext
	}
}

// bypassesContentHash reports whether kind assigns its own event id instead
// of taking BLAKE2b-128(ciphertext): identity and peer events both derive
// their id from the plaintext public key they carry, so that the id is
// knowable (and, for peer, directly usable as a verification key) before
// any ciphertext exists.
func bypassesContentHash(kind events.Kind) bool {
	return kind == events.KindIdentity || kind == events.KindPeer
}
