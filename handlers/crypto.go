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
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"

	"github.com/quietprotocol/quiet/envelope"
	"github.com/quietprotocol/quiet/events"
	"github.com/quietprotocol/quiet/pipeline"
	"github.com/quietprotocol/quiet/pipelineerr"
	"github.com/quietprotocol/quiet/quietcrypto"
	"github.com/quietprotocol/quiet/store"
)

// CryptoHandler is the single pipeline stage covering both the transit and
// the event encryption layers: one handler, five cases (transit decrypt,
// transit encrypt, event decrypt/unseal, event encrypt, and the sealed-box
// variant of each event case), run in the same order every time an
// envelope passes through, all backed by quietcrypto's
// XChaCha20-Poly1305/Ed25519-KEM primitives.
//
// localIdentityID names the identity whose private key this node holds, so
// CryptoHandler can unseal PolicySealed events addressed to it.
type CryptoHandler struct {
	localIdentityID string
}

// NewCryptoHandler builds the handler bound to the daemon's own identity.
func NewCryptoHandler(localIdentityID string) *CryptoHandler {
	return &CryptoHandler{localIdentityID: localIdentityID}
}

func (h *CryptoHandler) Name() string { return "crypto" }

// Filter matches the four envelope shapes this handler dispatches on: an
// envelope still missing transit plaintext, one ready to go back out over
// transit, one still missing event plaintext, or a self-created one still
// missing event ciphertext.
func (h *CryptoHandler) Filter(env *envelope.Envelope) bool {
	return needsTransitDecrypt(env) || needsTransitEncrypt(env) ||
		needsEventDecrypt(env) || needsEventEncrypt(env)
}

func needsTransitDecrypt(env *envelope.Envelope) bool {
	return len(env.RawData) > 0 && env.TransitPlaintext == nil
}

func needsTransitEncrypt(env *envelope.Envelope) bool {
	return env.Outgoing != nil && *env.Outgoing && len(env.TransitPlaintext) > 0 && len(env.RawData) == 0
}

func needsEventDecrypt(env *envelope.Envelope) bool {
	return len(env.EventCiphertext) > 0 && env.EventPlaintext == nil
}

// needsEventEncrypt waits for the signature handler to have signed the
// plaintext: the signature travels inside the encrypted event, so
// encrypting before signing would freeze an unsigned ciphertext.
func needsEventEncrypt(env *envelope.Envelope) bool {
	return env.SelfCreated != nil && *env.SelfCreated && env.EventPlaintext != nil &&
		len(env.EventCiphertext) == 0 && env.SigChecked != nil && *env.SigChecked
}

// Process runs whichever phases currently apply, in the fixed order
// decrypt-transit, decrypt-event, encrypt-event, encrypt-transit, so an
// envelope that needs several steps (e.g. a freshly composed outgoing
// event needing both event encryption and transit encryption) advances
// through all of them as it recirculates through the runner's fixpoint
// loop.
func (h *CryptoHandler) Process(ctx context.Context, env *envelope.Envelope, st pipeline.Stores) ([]*envelope.Envelope, error) {
	if needsTransitDecrypt(env) {
		if err := h.decryptTransit(ctx, env, st); err != nil {
			return nil, err
		}
	}
	if needsEventDecrypt(env) {
		if err := h.decryptEvent(ctx, env, st); err != nil {
			return nil, err
		}
	}
	if needsEventEncrypt(env) {
		if err := h.encryptEvent(ctx, env, st); err != nil {
			return nil, err
		}
	}
	if needsTransitEncrypt(env) {
		if err := h.encryptTransit(ctx, env, st); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (h *CryptoHandler) decryptTransit(ctx context.Context, env *envelope.Envelope, st pipeline.Stores) error {
	keyID, err := quietcrypto.TransitKeyID(env.RawData)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.KindMalformed, "transit datagram too short", err)
	}
	secret, err := st.Secrets.GetSecret(ctx, "transit:"+hex.EncodeToString(keyID[:]))
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.KindAuth, "no transit key for datagram", err)
	}
	plaintext, err := quietcrypto.OpenTransit(secret.Value, env.RawData)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.KindInvalidSignature, "transit decrypt failed", err)
	}

	var p transitPayload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return pipelineerr.Wrap(pipelineerr.KindMalformed, "transit payload is not valid JSON", err)
	}
	env.TransitKeyID = keyID
	env.TransitPlaintext = plaintext
	env.EventCiphertext = p.Ciphertext
	env.EventType = p.EventType
	env.EventKeyID = p.KeyRef
	env.NetworkID = p.NetworkID
	env.Deps = p.Deps

	// The sender's claimed event_id is only trusted for the bypass kinds,
	// whose id is a public-key derivation rather than a content hash;
	// everything else gets its id recomputed from the ciphertext actually
	// received, so a relayed datagram can't smuggle a mismatched id.
	if bypassesContentHash(events.Kind(p.EventType)) {
		env.EventID = p.EventID
	} else {
		id, err := quietcrypto.EventID(p.Ciphertext)
		if err != nil {
			return pipelineerr.Wrap(pipelineerr.KindInternal, "derive event id", err)
		}
		env.EventID = id
	}
	return nil
}

func (h *CryptoHandler) encryptTransit(ctx context.Context, env *envelope.Envelope, st pipeline.Stores) error {
	secret, err := st.Secrets.GetSecret(ctx, "transit:"+hex.EncodeToString(env.TransitKeyID[:]))
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.KindInternal, "no transit key for outgoing envelope", err)
	}
	datagram, err := quietcrypto.SealTransit(env.TransitKeyID, secret.Value, env.TransitPlaintext)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.KindInternal, "transit encrypt failed", err)
	}
	env.RawData = datagram
	return nil
}

func (h *CryptoHandler) decryptEvent(ctx context.Context, env *envelope.Envelope, st pipeline.Stores) error {
	kind := events.Kind(env.EventType)
	var plaintextBytes []byte

	switch policyForKind(kind) {
	case PolicyPlaintext:
		plaintextBytes = env.EventCiphertext
	case PolicyGroupKey:
		secret, err := st.Secrets.GetSecret(ctx, "group:"+env.EventKeyID)
		if err != nil {
			env.MissingDeps = []string{pipeline.GroupKeyDep(env.EventKeyID)}
			return pipelineerr.Wrap(pipelineerr.KindMissingDep, "no group key available yet", err)
		}
		out, err := quietcrypto.Open(secret.Value, env.EventCiphertext, nil)
		if err != nil {
			return pipelineerr.Wrap(pipelineerr.KindInvalidSignature, "event decrypt failed", err)
		}
		plaintextBytes = out
	case PolicySealed:
		secret, err := st.Secrets.GetSecret(ctx, "identity:"+h.localIdentityID)
		if err != nil {
			return pipelineerr.Wrap(pipelineerr.KindInternal, "no local identity key to unseal with", err)
		}
		out, err := quietcrypto.UnsealFromEd25519(ed25519.PrivateKey(secret.Value), env.EventCiphertext)
		if err != nil {
			return pipelineerr.Wrap(pipelineerr.KindInvalidSignature, "unseal failed", err)
		}
		plaintextBytes = out
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(plaintextBytes, &fields); err != nil {
		return pipelineerr.Wrap(pipelineerr.KindMalformed, "event plaintext is not valid JSON", err)
	}
	env.EventPlaintext = fields
	env.EventType = string(events.TypeOf(fields))

	// A key event addressed to this peer carries the group's symmetric key
	// sealed to our identity; install it so group-encrypted traffic (often
	// parked behind a group-key dependency already) becomes decryptable.
	if events.TypeOf(fields) == events.KindKey {
		if err := h.installGroupKey(ctx, fields, st); err != nil {
			return err
		}
	}
	return nil
}

// installGroupKey unseals a received key event's sealed_secret with the
// local identity key and stores it as the group's active symmetric key.
func (h *CryptoHandler) installGroupKey(ctx context.Context, fields map[string]interface{}, st pipeline.Stores) error {
	sealedHex, _ := fields["sealed_secret"].(string)
	groupID, _ := fields["group_id"].(string)
	if sealedHex == "" || groupID == "" {
		return pipelineerr.New(pipelineerr.KindMalformed, "key event is missing sealed_secret or group_id")
	}
	sealed, err := hex.DecodeString(sealedHex)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.KindMalformed, "sealed_secret is not valid hex", err)
	}
	identity, err := st.Secrets.GetSecret(ctx, "identity:"+h.localIdentityID)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.KindInternal, "no local identity key to unseal group key with", err)
	}
	raw, err := quietcrypto.UnsealFromEd25519(ed25519.PrivateKey(identity.Value), sealed)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.KindInvalidSignature, "group key unseal failed", err)
	}
	return st.Secrets.PutSecret(ctx, &store.Secret{
		SecretID: "group:" + groupID,
		Kind:     "event_key",
		Value:    raw,
	})
}

func (h *CryptoHandler) encryptEvent(ctx context.Context, env *envelope.Envelope, st pipeline.Stores) error {
	kind := events.TypeOf(env.EventPlaintext)
	plaintextBytes, err := json.Marshal(env.EventPlaintext)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.KindInternal, "marshal event plaintext", err)
	}

	var ciphertext []byte
	switch policyForKind(kind) {
	case PolicyPlaintext:
		ciphertext = plaintextBytes
	case PolicyGroupKey:
		secret, err := st.Secrets.GetSecret(ctx, "group:"+env.EventKeyID)
		if err != nil {
			return pipelineerr.Wrap(pipelineerr.KindInternal, "no group key to encrypt with", err)
		}
		out, err := quietcrypto.Seal(secret.Value, plaintextBytes, nil)
		if err != nil {
			return pipelineerr.Wrap(pipelineerr.KindInternal, "event encrypt failed", err)
		}
		ciphertext = out
	case PolicySealed:
		recipient, err := st.Projection.PeerByID(ctx, env.PeerID)
		if err != nil || recipient == nil {
			env.MissingDeps = []string{"peer:" + env.PeerID}
			return pipelineerr.Wrap(pipelineerr.KindMissingDep, "recipient peer not yet known", err)
		}
		pub, err := hex.DecodeString(recipient.PublicKey)
		if err != nil {
			return pipelineerr.Wrap(pipelineerr.KindMalformed, "recipient public key is not valid hex", err)
		}
		out, err := quietcrypto.SealToEd25519(ed25519.PublicKey(pub), plaintextBytes)
		if err != nil {
			return pipelineerr.Wrap(pipelineerr.KindInternal, "seal failed", err)
		}
		ciphertext = out
	}

	env.EventCiphertext = ciphertext
	if !bypassesContentHash(kind) {
		id, err := quietcrypto.EventID(ciphertext)
		if err != nil {
			return pipelineerr.Wrap(pipelineerr.KindInternal, "derive event id", err)
		}
		env.EventID = id
	}
	return nil
}
