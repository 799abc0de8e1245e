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
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/quietprotocol/quiet/quietcrypto"
)

const inviteLinkPrefix = "quiet://invite/"

// UserJoinAsUser is the user.join_as_user flow:
// decode the invite link, create a fresh identity and peer the same way
// identity.create_as_user does, then emit a user event carrying the proof
// of invite possession (invite_pubkey/invite_signature). The projector
// (events.projectUser) grants group membership to any user event whose
// invite_pubkey is non-empty; neither the invite_pubkey nor the
// invite_signature is verified anywhere in the pipeline.
//
// Params: invite_link, name (both required).
func UserJoinAsUser(fc *FlowCtx, params map[string]interface{}) (Result, error) {
	inviteLink, err := requireStrParam(params, "invite_link")
	if err != nil {
		return Result{}, fmt.Errorf("user.join_as_user: %w", err)
	}
	name, err := requireStrParam(params, "name")
	if err != nil {
		return Result{}, fmt.Errorf("user.join_as_user: %w", err)
	}

	if !strings.HasPrefix(inviteLink, inviteLinkPrefix) {
		return Result{}, fmt.Errorf("user.join_as_user: invalid invite link format")
	}
	payload, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(inviteLink, inviteLinkPrefix))
	if err != nil {
		return Result{}, fmt.Errorf("user.join_as_user: invalid invite link encoding: %w", err)
	}
	var invite inviteData
	if err := json.Unmarshal(payload, &invite); err != nil {
		return Result{}, fmt.Errorf("user.join_as_user: invalid invite link encoding: %w", err)
	}
	if invite.InviteSecret == "" || invite.NetworkID == "" || invite.GroupID == "" {
		return Result{}, fmt.Errorf("user.join_as_user: invite data is missing required fields")
	}

	identityID, peerID, pubHex, err := fc.createIdentity(name)
	if err != nil {
		return Result{}, fmt.Errorf("user.join_as_user: %w", err)
	}

	invitePubkey, err := quietcrypto.KDF([]byte(invite.InviteSecret), inviteKDFSalt, 32)
	if err != nil {
		return Result{}, fmt.Errorf("user.join_as_user: derive invite pubkey: %w", err)
	}
	joinerPub, err := hex.DecodeString(pubHex)
	if err != nil {
		return Result{}, fmt.Errorf("user.join_as_user: decode joiner public key: %w", err)
	}
	inviteSignature, err := quietcrypto.InviteSignature([]byte(invite.InviteSecret), joinerPub, invite.NetworkID)
	if err != nil {
		return Result{}, fmt.Errorf("user.join_as_user: derive invite signature: %w", err)
	}

	userID, err := fc.emitEvent("user", map[string]interface{}{
		"user_id":          uuid.NewString(),
		"peer_id":          peerID,
		"network_id":       invite.NetworkID,
		"group_id":         invite.GroupID,
		"name":             name,
		"invite_pubkey":    hex.EncodeToString(invitePubkey),
		"invite_signature": inviteSignature,
		"created_at":       nowMS(),
	}, emitOptions{by: peerID, deps: []string{"peer:" + peerID}, networkID: invite.NetworkID})
	if err != nil {
		return Result{}, fmt.Errorf("user.join_as_user: %w", err)
	}

	return Result{
		IDs: map[string]string{
			"identity": identityID,
			"peer":     peerID,
			"user":     userID,
		},
		Data: map[string]interface{}{
			"name":   name,
			"joined": true,
		},
	}, nil
}
