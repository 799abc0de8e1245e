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

package orchestrator

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"github.com/quietprotocol/quiet/quietcrypto"
)

// IdentityCreateAsUser bootstraps a brand new local identity plus an
// initial network/group/user/channel, emitted in the order
// identity -> peer -> network -> group -> user -> channel.
// The network and user events depend on the peer, the channel on the
// group; identity, peer and group declare no deps. The private key never leaves the secret
// store; only the public half ever reaches an emitted event.
//
// Params: name (required), network_name, group_name, channel_name
// (all optional, default "My Network" / "General" / "general").
func IdentityCreateAsUser(fc *FlowCtx, params map[string]interface{}) (Result, error) {
	name, err := requireStrParam(params, "name")
	if err != nil {
		return Result{}, err
	}
	networkName := strParam(params, "network_name", "My Network")
	groupName := strParam(params, "group_name", "General")
	channelName := strParam(params, "channel_name", "general")

	identityID, peerID, pubHex, err := fc.createIdentity(name)
	if err != nil {
		return Result{}, err
	}

	networkID, err := fc.createNetwork(networkName, peerID)
	if err != nil {
		return Result{}, err
	}

	groupID, err := fc.createGroup(groupName, networkID, peerID)
	if err != nil {
		return Result{}, err
	}

	userID, err := fc.emitEvent("user", map[string]interface{}{
		"user_id":    uuid.NewString(),
		"peer_id":    peerID,
		"network_id": networkID,
		"group_id":   groupID,
		"name":       name,
		"created_at": nowMS(),
	}, emitOptions{by: peerID, deps: []string{"peer:" + peerID}, networkID: networkID})
	if err != nil {
		return Result{}, fmt.Errorf("identity.create_as_user: emit user: %w", err)
	}

	channelID, err := fc.createChannel(channelName, groupID, networkID, peerID)
	if err != nil {
		return Result{}, err
	}

	return Result{
		IDs: map[string]string{
			"identity": identityID,
			"peer":     peerID,
			"network":  networkID,
			"group":    groupID,
			"user":     userID,
			"channel":  channelID,
		},
		Data: map[string]interface{}{
			"name":         name,
			"network_name": networkName,
			"group_name":   groupName,
			"channel_name": channelName,
			"public_key":   pubHex,
		},
	}, nil
}

// createIdentity generates a fresh Ed25519 keypair, stores the private half
// under the secret store, and emits the identity and self-attested peer
// events for it. Both are bypass kinds:
// their ids are derived from the public key itself, so this is the one
// place in the orchestrator that must compute an event id before calling
// emitEvent rather than trusting the pipeline to assign one.
func (fc *FlowCtx) createIdentity(name string) (identityID, peerID, pubHex string, err error) {
	pub, priv, err := quietcrypto.GenerateIdentityKeyPair()
	if err != nil {
		return "", "", "", fmt.Errorf("generate identity keypair: %w", err)
	}
	identityID, err = quietcrypto.IdentityID(pub)
	if err != nil {
		return "", "", "", fmt.Errorf("derive identity id: %w", err)
	}
	if err := fc.putSecret("identity_key", "identity:"+identityID, []byte(priv)); err != nil {
		return "", "", "", fmt.Errorf("store identity key: %w", err)
	}

	if _, err := fc.emitEvent("identity", map[string]interface{}{
		"identity_id": identityID,
		"name":        name,
		"public_key":  hex.EncodeToString(pub),
		"created_at":  nowMS(),
	}, emitOptions{eventID: identityID}); err != nil {
		return "", "", "", fmt.Errorf("emit identity: %w", err)
	}

	peerID = quietcrypto.PeerID(pub)
	if _, err := fc.emitEvent("peer", map[string]interface{}{
		"peer_id":     peerID,
		"public_key":  hex.EncodeToString(pub),
		"identity_id": identityID,
		"username":    name,
		"created_at":  nowMS(),
	}, emitOptions{by: identityID, eventID: peerID}); err != nil {
		return "", "", "", fmt.Errorf("emit peer: %w", err)
	}

	return identityID, peerID, hex.EncodeToString(pub), nil
}
