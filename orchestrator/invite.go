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
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/quietprotocol/quiet/quietcrypto"
)

// inviteKDFSalt is the fixed salt every invite's pubkey is derived under,
// truncated to its first 16 bytes by the KDF.
var inviteKDFSalt = []byte("quiet_invite_kdf_v1")

// inviteData is the JSON payload carried inside a quiet://invite/ link.
type inviteData struct {
	InviteSecret string `json:"invite_secret"`
	NetworkID    string `json:"network_id"`
	GroupID      string `json:"group_id"`
}

// InviteCreate is the invite.create flow: mint a
// random invite secret, derive and publish only its KDF-derived pubkey (the
// secret itself never appears in the emitted event - only inside the link
// handed to the joiner out of band), and hand back a quiet://invite/ link.
// Params: network_id, group_id, peer_id (all required).
func InviteCreate(fc *FlowCtx, params map[string]interface{}) (Result, error) {
	networkID, err := requireStrParam(params, "network_id")
	if err != nil {
		return Result{}, fmt.Errorf("invite.create: %w", err)
	}
	groupID, err := requireStrParam(params, "group_id")
	if err != nil {
		return Result{}, fmt.Errorf("invite.create: %w", err)
	}
	peerID, err := requireStrParam(params, "peer_id")
	if err != nil {
		return Result{}, fmt.Errorf("invite.create: %w", err)
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return Result{}, fmt.Errorf("invite.create: generate invite secret: %w", err)
	}
	inviteSecret := base64.RawURLEncoding.EncodeToString(secretBytes)

	invitePubkey, err := quietcrypto.KDF([]byte(inviteSecret), inviteKDFSalt, 32)
	if err != nil {
		return Result{}, fmt.Errorf("invite.create: derive invite pubkey: %w", err)
	}

	inviteID, err := fc.emitEvent("invite", map[string]interface{}{
		"invite_id":       uuid.NewString(),
		"invite_pubkey":   hex.EncodeToString(invitePubkey),
		"network_id":      networkID,
		"group_id":        groupID,
		"inviter_peer_id": peerID,
		"created_at":      nowMS(),
	}, emitOptions{by: peerID, deps: []string{"group:" + groupID}, networkID: networkID})
	if err != nil {
		return Result{}, fmt.Errorf("invite.create: %w", err)
	}

	payload, err := json.Marshal(inviteData{
		InviteSecret: inviteSecret,
		NetworkID:    networkID,
		GroupID:      groupID,
	})
	if err != nil {
		return Result{}, fmt.Errorf("invite.create: encode invite payload: %w", err)
	}
	inviteCode := base64.StdEncoding.EncodeToString(payload)
	inviteLink := "quiet://invite/" + inviteCode

	return Result{
		IDs: map[string]string{"invite": inviteID},
		Data: map[string]interface{}{
			"invite_link": inviteLink,
			"invite_code": inviteCode,
			"invite_id":   inviteID,
			"network_id":  networkID,
			"group_id":    groupID,
		},
	}, nil
}
