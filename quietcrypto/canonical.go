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
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// CanonicalizeEvent produces the deterministic byte representation a
// signature is computed over: the event fields as a JSON object with the
// "signature" key removed, keys sorted lexicographically. encoding/json
// already sorts map[string]interface{} keys, so a plain Marshal over the
// stripped copy is sufficient.
func CanonicalizeEvent(fields map[string]interface{}) ([]byte, error) {
	stripped := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if k == "signature" {
			continue
		}
		stripped[k] = v
	}
	out, err := json.Marshal(stripped)
	if err != nil {
		return nil, fmt.Errorf("canonicalize event: %w", err)
	}
	return out, nil
}

// KDF derives outLen bytes from secret using a BLAKE2b keyed hash, salted
// with salt. Used to derive invite_pubkey from an invite_secret.
func KDF(secret, salt []byte, outLen int) ([]byte, error) {
	if len(salt) > 16 {
		salt = salt[:16]
	}
	h, err := blake2b.New(outLen, secret)
	if err != nil {
		return nil, fmt.Errorf("kdf: %w", err)
	}
	h.Write(salt)
	return h.Sum(nil), nil
}
