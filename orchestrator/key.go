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

// rotateGroupKey mints a fresh symmetric key for a group, installs it as
// the active "group:<group_id>" secret every future channel/member/message
// event will be encrypted under, and reseals it to every peer currently a
// member of the group, one key event each, so every member can decrypt
// traffic encrypted under the new key without a separate distribution
// step.
//
// byPeerID is both the signer of record for the minted key events and, on
// the first call for a brand new group, the sole current member (the
// creator) they get sealed to.
func (fc *FlowCtx) rotateGroupKey(groupID, networkID, byPeerID string) ([]string, error) {
	secret, err := quietcrypto.GenerateSymmetricKey()
	if err != nil {
		return nil, fmt.Errorf("generate group key: %w", err)
	}
	if err := fc.putSecret("event_key", "group:"+groupID, secret); err != nil {
		return nil, fmt.Errorf("store group key: %w", err)
	}

	members, err := fc.Stores().Projection.Members(fc.ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}

	keyIDs := make([]string, 0, len(members))
	for _, m := range members {
		recipient, err := fc.Stores().Projection.PeerByID(fc.ctx, m.PeerID)
		if err != nil {
			return nil, fmt.Errorf("look up member %s: %w", m.PeerID, err)
		}
		if recipient == nil {
			// A member the projector knows about but whose peer event
			// hasn't landed yet (shouldn't happen in practice, since
			// membership is only ever granted alongside or after a peer
			// event, but skip rather than fail the whole rotation).
			continue
		}
		pub, err := hex.DecodeString(recipient.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("member %s public key is not valid hex: %w", m.PeerID, err)
		}
		sealed, err := quietcrypto.SealToEd25519(pub, secret)
		if err != nil {
			return nil, fmt.Errorf("seal group key to %s: %w", m.PeerID, err)
		}

		keyID, err := fc.emitEvent("key", map[string]interface{}{
			"key_id":            uuid.NewString(),
			"group_id":          groupID,
			"sealed_secret":     hex.EncodeToString(sealed),
			"sealed_to_peer_id": m.PeerID,
			"network_id":        networkID,
			"created_at":        nowMS(),
		}, emitOptions{by: byPeerID, networkID: networkID, sealTo: m.PeerID})
		if err != nil {
			return nil, fmt.Errorf("emit key for %s: %w", m.PeerID, err)
		}
		keyIDs = append(keyIDs, keyID)
	}
	return keyIDs, nil
}

// KeyRotate is the key.rotate flow: mint a new group key and reseal it to
// every current member, e.g. after a member.remove so the removed member's
// old copy of the key can no longer decrypt future messages. Params:
// group_id, network_id, peer_id (the rotating member, required).
func KeyRotate(fc *FlowCtx, params map[string]interface{}) (Result, error) {
	groupID, err := requireStrParam(params, "group_id")
	if err != nil {
		return Result{}, fmt.Errorf("key.rotate: %w", err)
	}
	networkID, err := requireStrParam(params, "network_id")
	if err != nil {
		return Result{}, fmt.Errorf("key.rotate: %w", err)
	}
	peerID, err := requireStrParam(params, "peer_id")
	if err != nil {
		return Result{}, fmt.Errorf("key.rotate: %w", err)
	}

	keyIDs, err := fc.rotateGroupKey(groupID, networkID, peerID)
	if err != nil {
		return Result{}, fmt.Errorf("key.rotate: %w", err)
	}

	ids := map[string]string{}
	if len(keyIDs) == 1 {
		ids["key"] = keyIDs[0]
	}
	return Result{
		IDs: ids,
		Data: map[string]interface{}{
			"group_id":   groupID,
			"key_events": keyIDs,
			"resealed":   len(keyIDs),
		},
	}, nil
}
