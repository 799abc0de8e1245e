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

package quietcrypto

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// idHash returns a 128-bit BLAKE2b digest, hex-encoded.
func idHash(data []byte) (string, error) {
	h, err := blake2b.New(16, nil)
	if err != nil {
		return "", fmt.Errorf("blake2b-128: %w", err)
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// EventID derives a content-addressed event id from the event's wire
// ciphertext: BLAKE2b-128(ciphertext).
func EventID(ciphertext []byte) (string, error) {
	return idHash(ciphertext)
}

// IdentityID derives a local-only identity id from a raw public key:
// BLAKE2b-128(public_key). Identity events never travel on the wire, so
// this id is never derived from ciphertext.
func IdentityID(publicKey []byte) (string, error) {
	return idHash(publicKey)
}

// PeerID is the hex-encoded raw Ed25519 public key itself, used directly as
// both the peer event's event_id (so "peer:<peer_id>" dependency references
// resolve against the event store without a separate lookup table) and its
// own Ed25519 verification key, mirroring the bypass IdentityID gets.
func PeerID(publicKey []byte) string {
	return hex.EncodeToString(publicKey)
}

// InviteSignature proves possession of an invite secret:
// BLAKE2b-128(invite_secret || joiner_public_key || network_id),
// hex-encoded. Carried in the joining user event alongside the invite's
// KDF-derived pubkey.
func InviteSignature(inviteSecret, joinerPublicKey []byte, networkID string) (string, error) {
	data := make([]byte, 0, len(inviteSecret)+len(joinerPublicKey)+len(networkID))
	data = append(data, inviteSecret...)
	data = append(data, joinerPublicKey...)
	data = append(data, networkID...)
	return idHash(data)
}

// TransitKeyIDFromSecret derives the id a transit secret is looked up by:
// BLAKE2b-128(secret). Unlike event ids, this is never a content hash of
// ciphertext — transit secrets are local-only and never appear on the wire
// themselves, only their id does (see SealTransit).
func TransitKeyIDFromSecret(secret []byte) ([16]byte, error) {
	var id [16]byte
	h, err := idHash(secret)
	if err != nil {
		return id, err
	}
	raw, err := hex.DecodeString(h)
	if err != nil {
		return id, err
	}
	copy(id[:], raw)
	return id, nil
}
