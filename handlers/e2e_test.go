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

package handlers_test

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quietprotocol/quiet/envelope"
	"github.com/quietprotocol/quiet/handlers"
	"github.com/quietprotocol/quiet/pipeline"
	projectionmemory "github.com/quietprotocol/quiet/projection/memory"
	"github.com/quietprotocol/quiet/quietcrypto"
	"github.com/quietprotocol/quiet/store"
	storememory "github.com/quietprotocol/quiet/store/memory"
)

// remotePeer is a test stand-in for another node: an Ed25519 identity whose
// signed events arrive at the local pipeline over a shared transit secret.
type remotePeer struct {
	pub    ed25519.PublicKey
	priv   ed25519.PrivateKey
	peerID string
}

func newRemotePeer(t *testing.T) *remotePeer {
	t.Helper()
	pub, priv, err := quietcrypto.GenerateIdentityKeyPair()
	require.NoError(t, err)
	return &remotePeer{pub: pub, priv: priv, peerID: quietcrypto.PeerID(pub)}
}

// signedFields canonicalizes fields, signs them with the remote peer's key,
// and writes the signature back in, the way any sending node would before
// encrypting for the wire.
func (p *remotePeer) signedFields(t *testing.T, fields map[string]interface{}) map[string]interface{} {
	t.Helper()
	canonical, err := quietcrypto.CanonicalizeEvent(fields)
	require.NoError(t, err)
	fields["signature"] = hex.EncodeToString(quietcrypto.Sign(p.priv, canonical))
	return fields
}

// transitDatagram wraps an already-encrypted event in the transit layer:
// the inner payload JSON sealed under the shared link secret.
func transitDatagram(t *testing.T, secret []byte, payload map[string]interface{}) []byte {
	t.Helper()
	plaintext, err := json.Marshal(payload)
	require.NoError(t, err)
	keyID, err := quietcrypto.TransitKeyIDFromSecret(secret)
	require.NoError(t, err)
	datagram, err := quietcrypto.SealTransit(keyID, secret, plaintext)
	require.NoError(t, err)
	return datagram
}

// newReceivingPipeline builds the full handler chain over fresh in-memory
// stores with the shared transit secret already established, the state a
// node is in once a peer link handshake has completed.
func newReceivingPipeline(t *testing.T, secret []byte) (*pipeline.Runner, pipeline.Stores) {
	t.Helper()
	ms := storememory.New()
	ps := projectionmemory.New()

	keyID, err := quietcrypto.TransitKeyIDFromSecret(secret)
	require.NoError(t, err)
	require.NoError(t, ms.PutSecret(context.Background(), &store.Secret{
		SecretID: "transit:" + hex.EncodeToString(keyID[:]),
		Kind:     "transit_key",
		Value:    secret,
	}))

	chain := []pipeline.Handler{
		handlers.NewDependencyResolver(),
		handlers.NewCryptoHandler(""),
		handlers.NewSignatureHandler(),
		handlers.NewMembershipHandler(),
		handlers.NewProjectorHandler(),
		handlers.NewOutgoingHandler(),
	}
	return pipeline.New(chain, store.NewBlockedQueue()), pipeline.Stores{Events: ms, Secrets: ms, Projection: ps}
}

// peerDatagram builds the wire form of the remote peer's own peer event.
// Peer events ride in the clear past the transit layer and carry a
// public-key-derived id rather than a content hash.
func (p *remotePeer) peerDatagram(t *testing.T, secret []byte) []byte {
	t.Helper()
	identityID, err := quietcrypto.IdentityID(p.pub)
	require.NoError(t, err)
	fields := p.signedFields(t, map[string]interface{}{
		"type":        "peer",
		"peer_id":     p.peerID,
		"public_key":  hex.EncodeToString(p.pub),
		"identity_id": identityID,
		"username":    "alice",
		"created_at":  int64(1),
	})
	ciphertext, err := json.Marshal(fields)
	require.NoError(t, err)
	return transitDatagram(t, secret, map[string]interface{}{
		"event_id":   p.peerID,
		"event_type": "peer",
		"ciphertext": ciphertext,
		"deps":       []string{},
	})
}

func TestReceiveStoresRemoteSignedEvent(t *testing.T) {
	secret, err := quietcrypto.GenerateSymmetricKey()
	require.NoError(t, err)
	runner, stores := newReceivingPipeline(t, secret)
	alice := newRemotePeer(t)

	env := &envelope.Envelope{RawData: alice.peerDatagram(t, secret)}
	result, err := runner.Run(context.Background(), []*envelope.Envelope{env}, stores)
	require.NoError(t, err)
	require.Equal(t, alice.peerID, result.StoredIDs["peer"])

	has, err := stores.Events.Has(context.Background(), alice.peerID)
	require.NoError(t, err)
	require.True(t, has)

	peer, err := stores.Projection.PeerByID(context.Background(), alice.peerID)
	require.NoError(t, err)
	require.NotNil(t, peer)
	require.Equal(t, hex.EncodeToString(alice.pub), peer.PublicKey)
}

func TestReceiveBlocksOnMissingDepThenReleases(t *testing.T) {
	secret, err := quietcrypto.GenerateSymmetricKey()
	require.NoError(t, err)
	runner, stores := newReceivingPipeline(t, secret)
	alice := newRemotePeer(t)

	networkFields := alice.signedFields(t, map[string]interface{}{
		"type":       "network",
		"network_id": "net-1",
		"name":       "N",
		"creator_id": alice.peerID,
		"peer_id":    alice.peerID,
		"created_at": int64(2),
	})
	networkCipher, err := json.Marshal(networkFields)
	require.NoError(t, err)
	networkEventID, err := quietcrypto.EventID(networkCipher)
	require.NoError(t, err)
	networkDatagram := transitDatagram(t, secret, map[string]interface{}{
		"event_id":   networkEventID,
		"event_type": "network",
		"ciphertext": networkCipher,
		"network_id": "net-1",
		"deps":       []string{"peer:" + alice.peerID},
	})

	// Network arrives before the peer event it depends on: parked, not stored.
	result, err := runner.Run(context.Background(), []*envelope.Envelope{{RawData: networkDatagram}}, stores)
	require.NoError(t, err)
	require.Empty(t, result.StoredIDs)
	has, err := stores.Events.Has(context.Background(), networkEventID)
	require.NoError(t, err)
	require.False(t, has)

	// The peer event landing must pull the parked network event through in
	// the same invocation.
	result, err = runner.Run(context.Background(), []*envelope.Envelope{{RawData: alice.peerDatagram(t, secret)}}, stores)
	require.NoError(t, err)
	require.Equal(t, alice.peerID, result.StoredIDs["peer"])
	require.Equal(t, networkEventID, result.StoredIDs["network"])

	has, err = stores.Events.Has(context.Background(), networkEventID)
	require.NoError(t, err)
	require.True(t, has)
}

func TestReceiveDropsTamperedSignature(t *testing.T) {
	secret, err := quietcrypto.GenerateSymmetricKey()
	require.NoError(t, err)
	runner, stores := newReceivingPipeline(t, secret)
	alice := newRemotePeer(t)

	fields := alice.signedFields(t, map[string]interface{}{
		"type":        "peer",
		"peer_id":     alice.peerID,
		"public_key":  hex.EncodeToString(alice.pub),
		"identity_id": "whatever",
		"username":    "alice",
		"created_at":  int64(3),
	})
	fields["username"] = "mallory" // mutate after signing
	ciphertext, err := json.Marshal(fields)
	require.NoError(t, err)
	datagram := transitDatagram(t, secret, map[string]interface{}{
		"event_id":   alice.peerID,
		"event_type": "peer",
		"ciphertext": ciphertext,
		"deps":       []string{},
	})

	env := &envelope.Envelope{RawData: datagram}
	result, err := runner.Run(context.Background(), []*envelope.Envelope{env}, stores)
	require.NoError(t, err, "a bad signature drops the envelope, it does not fail the batch")
	require.Empty(t, result.StoredIDs)
	require.NotEmpty(t, env.Error)

	has, err := stores.Events.Has(context.Background(), alice.peerID)
	require.NoError(t, err)
	require.False(t, has)
}

func TestReceiveDropsPeerBindingForgery(t *testing.T) {
	secret, err := quietcrypto.GenerateSymmetricKey()
	require.NoError(t, err)
	runner, stores := newReceivingPipeline(t, secret)
	mallory := newRemotePeer(t)
	alice := newRemotePeer(t)

	// Signed under mallory's own key (so the signature verifies against
	// peer_id), but claiming to bind alice's public key.
	fields := mallory.signedFields(t, map[string]interface{}{
		"type":        "peer",
		"peer_id":     mallory.peerID,
		"public_key":  hex.EncodeToString(alice.pub),
		"identity_id": "whatever",
		"username":    "mallory",
		"created_at":  int64(9),
	})
	ciphertext, err := json.Marshal(fields)
	require.NoError(t, err)
	datagram := transitDatagram(t, secret, map[string]interface{}{
		"event_id":   mallory.peerID,
		"event_type": "peer",
		"ciphertext": ciphertext,
		"deps":       []string{},
	})

	env := &envelope.Envelope{RawData: datagram}
	result, err := runner.Run(context.Background(), []*envelope.Envelope{env}, stores)
	require.NoError(t, err)
	require.Empty(t, result.StoredIDs)
	require.NotEmpty(t, env.Error)

	has, err := stores.Events.Has(context.Background(), mallory.peerID)
	require.NoError(t, err)
	require.False(t, has)
}

// userDatagram builds the wire form of a user event asserting peerID in
// networkID, signed by the asserting peer.
func (p *remotePeer) userDatagram(t *testing.T, secret []byte, networkID string) (datagram []byte, eventID string) {
	t.Helper()
	fields := p.signedFields(t, map[string]interface{}{
		"type":       "user",
		"user_id":    "u-" + p.peerID[:8],
		"peer_id":    p.peerID,
		"network_id": networkID,
		"group_id":   "",
		"name":       "alice",
		"created_at": int64(4),
	})
	ciphertext, err := json.Marshal(fields)
	require.NoError(t, err)
	eventID, err = quietcrypto.EventID(ciphertext)
	require.NoError(t, err)
	return transitDatagram(t, secret, map[string]interface{}{
		"event_id":   eventID,
		"event_type": "user",
		"ciphertext": ciphertext,
		"network_id": networkID,
		"deps":       []string{},
	}), eventID
}

func TestReceiveUserBlocksUntilAssertedPeerArrives(t *testing.T) {
	secret, err := quietcrypto.GenerateSymmetricKey()
	require.NoError(t, err)
	runner, stores := newReceivingPipeline(t, secret)
	alice := newRemotePeer(t)

	userDatagram, userEventID := alice.userDatagram(t, secret, "net-1")

	// The user event asserts a peer this node has never heard of: parked.
	result, err := runner.Run(context.Background(), []*envelope.Envelope{{RawData: userDatagram}}, stores)
	require.NoError(t, err)
	require.Empty(t, result.StoredIDs)
	has, err := stores.Events.Has(context.Background(), userEventID)
	require.NoError(t, err)
	require.False(t, has)

	// The peer event landing releases it.
	result, err = runner.Run(context.Background(), []*envelope.Envelope{{RawData: alice.peerDatagram(t, secret)}}, stores)
	require.NoError(t, err)
	require.Equal(t, userEventID, result.StoredIDs["user"])
}

func TestReceiveDropsUserAssertingPeerOfAnotherNetwork(t *testing.T) {
	secret, err := quietcrypto.GenerateSymmetricKey()
	require.NoError(t, err)
	runner, stores := newReceivingPipeline(t, secret)
	alice := newRemotePeer(t)

	// Alice's peer event binds her to net-A explicitly.
	identityID, err := quietcrypto.IdentityID(alice.pub)
	require.NoError(t, err)
	peerFields := alice.signedFields(t, map[string]interface{}{
		"type":        "peer",
		"peer_id":     alice.peerID,
		"public_key":  hex.EncodeToString(alice.pub),
		"identity_id": identityID,
		"network_id":  "net-A",
		"username":    "alice",
		"created_at":  int64(1),
	})
	peerCipher, err := json.Marshal(peerFields)
	require.NoError(t, err)
	peerDatagram := transitDatagram(t, secret, map[string]interface{}{
		"event_id":   alice.peerID,
		"event_type": "peer",
		"ciphertext": peerCipher,
		"network_id": "net-A",
		"deps":       []string{},
	})
	_, err = runner.Run(context.Background(), []*envelope.Envelope{{RawData: peerDatagram}}, stores)
	require.NoError(t, err)

	// A user event claiming that same peer inside a different network is
	// an authorization failure, not a missing dependency.
	userDatagram, userEventID := alice.userDatagram(t, secret, "net-B")
	env := &envelope.Envelope{RawData: userDatagram}
	result, err := runner.Run(context.Background(), []*envelope.Envelope{env}, stores)
	require.NoError(t, err)
	require.Empty(t, result.StoredIDs)
	require.NotEmpty(t, env.Error)

	has, err := stores.Events.Has(context.Background(), userEventID)
	require.NoError(t, err)
	require.False(t, has)
}

func TestReceiveDuplicateDatagramIsSilentlyIdempotent(t *testing.T) {
	secret, err := quietcrypto.GenerateSymmetricKey()
	require.NoError(t, err)
	runner, stores := newReceivingPipeline(t, secret)
	alice := newRemotePeer(t)
	datagram := alice.peerDatagram(t, secret)

	_, err = runner.Run(context.Background(), []*envelope.Envelope{{RawData: datagram}}, stores)
	require.NoError(t, err)
	_, err = runner.Run(context.Background(), []*envelope.Envelope{{RawData: datagram}}, stores)
	require.NoError(t, err, "replaying an already-stored event is a silent no-op")

	has, err := stores.Events.Has(context.Background(), alice.peerID)
	require.NoError(t, err)
	require.True(t, has)
}
