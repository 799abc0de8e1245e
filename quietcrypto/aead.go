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
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// SymmetricKeySize is the key size, in bytes, for both the transit and the
// event AEAD layers.
const SymmetricKeySize = chacha20poly1305.KeySize

// GenerateSymmetricKey returns a fresh random XChaCha20-Poly1305 key, used
// for group event keys and for the transit layer between two peers.
func GenerateSymmetricKey() ([]byte, error) {
	key := make([]byte, SymmetricKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate symmetric key: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext with XChaCha20-Poly1305 under key, returning
// nonce||ciphertext. Used for both the transit layer (outer envelope) and
// the event layer (group-keyed inner payload).
func Seal(key, plaintext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("new xchacha20poly1305: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, aad)
	out := make([]byte, len(nonce)+len(ciphertext))
	copy(out, nonce)
	copy(out[len(nonce):], ciphertext)
	return out, nil
}

// Open decrypts data produced by Seal.
func Open(key, data, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("new xchacha20poly1305: %w", err)
	}
	if len(data) < aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce := data[:aead.NonceSize()]
	ciphertext := data[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	return plaintext, nil
}

// SealTransit encrypts a raw datagram for the transit layer between two
// directly-connected peers. Wire format: transit_key_id(16B) ||
// transit_nonce(24B) || ciphertext. keyID is the BLAKE2b-128 id of key.
func SealTransit(keyID [16]byte, key, plaintext []byte) ([]byte, error) {
	sealed, err := Seal(key, plaintext, nil)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 16+len(sealed))
	copy(out, keyID[:])
	copy(out[16:], sealed)
	return out, nil
}

// OpenTransit splits a transit datagram into its key id and reveals the
// plaintext given the matching transit key.
func OpenTransit(key, datagram []byte) ([]byte, error) {
	if len(datagram) < 16 {
		return nil, fmt.Errorf("transit datagram too short")
	}
	return Open(key, datagram[16:], nil)
}

// TransitKeyID extracts the 16-byte transit_key_id prefix from a datagram
// without needing the key itself.
func TransitKeyID(datagram []byte) ([16]byte, error) {
	var id [16]byte
	if len(datagram) < 16 {
		return id, fmt.Errorf("transit datagram too short")
	}
	copy(id[:], datagram[:16])
	return id, nil
}
