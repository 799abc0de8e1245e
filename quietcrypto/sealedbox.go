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

// Package quietcrypto implements the cryptographic primitives the envelope
// pipeline relies on: content-addressed event ids, Ed25519 signing, the
// XChaCha20-Poly1305 AEAD used for both the transit and event layers, and
// an anonymous sealed-box KEM that lets one peer seal a payload to another
// peer's Ed25519 identity key without a prior handshake.
package quietcrypto

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"fmt"
	"io"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/hkdf"
)

const sealedBoxEphemeralPubLen = 32

// SealToEd25519 anonymously seals plaintext to a recipient's Ed25519
// identity public key. It generates an ephemeral X25519 key pair, converts
// the recipient's Ed25519 key to its X25519 Montgomery form, performs ECDH,
// derives an XChaCha20-Poly1305 key with HKDF-SHA256, and encrypts.
//
// Wire format: ephemeral_pubkey(32B) || nonce(24B) || ciphertext.
func SealToEd25519(recipientPub ed25519.PublicKey, plaintext []byte) ([]byte, error) {
	ephPriv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", err)
	}
	ephPub := ephPriv.PublicKey()

	recipientX, err := ed25519PubToX25519(recipientPub)
	if err != nil {
		return nil, err
	}
	recipientXPub, err := ecdh.X25519().NewPublicKey(recipientX)
	if err != nil {
		return nil, fmt.Errorf("parse recipient x25519 key: %w", err)
	}

	raw, err := ephPriv.ECDH(recipientXPub)
	if err != nil {
		return nil, fmt.Errorf("ecdh: %w", err)
	}
	if err := checkNotIdentity(raw); err != nil {
		return nil, err
	}

	transcript := concat(ephPub.Bytes(), recipientX)
	key, err := sealedBoxKDF(raw, transcript)
	if err != nil {
		return nil, err
	}

	sealed, err := Seal(key, plaintext, transcript)
	if err != nil {
		return nil, err
	}

	out := make([]byte, sealedBoxEphemeralPubLen+len(sealed))
	copy(out, ephPub.Bytes())
	copy(out[sealedBoxEphemeralPubLen:], sealed)
	return out, nil
}

// UnsealFromEd25519 reverses SealToEd25519 using the recipient's Ed25519
// private key.
func UnsealFromEd25519(recipientPriv ed25519.PrivateKey, packet []byte) ([]byte, error) {
	if len(packet) < sealedBoxEphemeralPubLen {
		return nil, fmt.Errorf("sealed packet too short")
	}
	ephPubBytes := packet[:sealedBoxEphemeralPubLen]
	rest := packet[sealedBoxEphemeralPubLen:]

	ephPub, err := ecdh.X25519().NewPublicKey(ephPubBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid ephemeral public key: %w", err)
	}

	selfXPrivBytes, err := ed25519PrivToX25519(recipientPriv)
	if err != nil {
		return nil, err
	}
	selfXPriv, err := ecdh.X25519().NewPrivateKey(selfXPrivBytes)
	if err != nil {
		return nil, fmt.Errorf("derive x25519 private key: %w", err)
	}

	raw, err := selfXPriv.ECDH(ephPub)
	if err != nil {
		return nil, fmt.Errorf("ecdh: %w", err)
	}
	if err := checkNotIdentity(raw); err != nil {
		return nil, err
	}

	selfXPub := selfXPriv.PublicKey()
	transcript := concat(ephPubBytes, selfXPub.Bytes())
	key, err := sealedBoxKDF(raw, transcript)
	if err != nil {
		return nil, err
	}

	return Open(key, rest, transcript)
}

// sealedBoxKDF derives a 32-byte XChaCha20-Poly1305 key from the raw ECDH
// output, salted and bound to the transcript via HKDF-SHA256.
func sealedBoxKDF(raw, transcript []byte) ([]byte, error) {
	h := hkdf.New(sha256.New, raw, transcript, []byte("quiet sealed-box v1"))
	key := make([]byte, SymmetricKeySize)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return key, nil
}

// checkNotIdentity rejects a low-order/identity ECDH result in constant time.
func checkNotIdentity(dh []byte) error {
	var zero [32]byte
	if subtle.ConstantTimeCompare(dh, zero[:]) == 1 {
		return fmt.Errorf("x25519: low-order or identity point")
	}
	return nil
}

// ed25519PrivToX25519 converts an Ed25519 private key into the X25519
// scalar via the RFC 8032 §5.1.5 clamping of its SHA-512 seed hash.
func ed25519PrivToX25519(priv ed25519.PrivateKey) ([]byte, error) {
	if l := len(priv); l != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("bad ed25519 private key length: %d", l)
	}
	seed := priv.Seed()
	h := sha512.Sum512(seed)
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64

	var xPriv [32]byte
	copy(xPriv[:], h[:32])
	return xPriv[:], nil
}

// ed25519PubToX25519 converts an Ed25519 public key to its X25519
// Montgomery-form equivalent by decompressing the Edwards point.
func ed25519PubToX25519(pub ed25519.PublicKey) ([]byte, error) {
	if l := len(pub); l != ed25519.PublicKeySize {
		return nil, fmt.Errorf("bad ed25519 public key length: %d", l)
	}
	p, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return nil, fmt.Errorf("invalid ed25519 public key: %w", err)
	}
	return p.BytesMontgomery(), nil
}

func concat(parts ...[]byte) []byte {
	var total int
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
