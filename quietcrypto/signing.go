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
	"crypto/ed25519"
	"crypto/rand"
	"errors"
)

// ErrInvalidSignature is returned when a signature fails verification.
var ErrInvalidSignature = errors.New("quietcrypto: invalid signature")

// GenerateIdentityKeyPair creates a new Ed25519 identity key pair.
func GenerateIdentityKeyPair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// Sign signs canonical event bytes with an Ed25519 private key.
func Sign(priv ed25519.PrivateKey, canonical []byte) []byte {
	return ed25519.Sign(priv, canonical)
}

// Verify checks a signature over canonical event bytes.
func Verify(pub ed25519.PublicKey, canonical, signature []byte) error {
	if !ed25519.Verify(pub, canonical, signature) {
		return ErrInvalidSignature
	}
	return nil
}
