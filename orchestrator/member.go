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
	"fmt"

	"github.com/google/uuid"

	"github.com/quietprotocol/quiet/events"
)

// emitMember is shared by MemberAdd and MemberRemove.
// Params common to both: group_id, user_id, peer_id (the acting member),
// network_id.
func (fc *FlowCtx) emitMember(action events.MemberAction, params map[string]interface{}) (Result, error) {
	groupID, err := requireStrParam(params, "group_id")
	if err != nil {
		return Result{}, err
	}
	userID, err := requireStrParam(params, "user_id")
	if err != nil {
		return Result{}, err
	}
	peerID, err := requireStrParam(params, "peer_id")
	if err != nil {
		return Result{}, err
	}
	networkID, err := requireStrParam(params, "network_id")
	if err != nil {
		return Result{}, err
	}

	memberID, err := fc.emitEvent("member", map[string]interface{}{
		"member_id":  uuid.NewString(),
		"group_id":   groupID,
		"user_id":    userID,
		"action":     string(action),
		"by_peer_id": peerID,
		"network_id": networkID,
		"created_at": nowMS(),
	}, emitOptions{
		by:         peerID,
		deps:       []string{"group:" + groupID, "user:" + userID},
		networkID:  networkID,
		eventKeyID: groupID,
	})
	if err != nil {
		return Result{}, err
	}

	if action == events.MemberRemove {
		if _, err := fc.rotateGroupKey(groupID, networkID, peerID); err != nil {
			return Result{}, fmt.Errorf("rotate group key after removal: %w", err)
		}
	}

	members, err := fc.Stores().Projection.Members(fc.ctx, groupID)
	if err != nil {
		return Result{}, fmt.Errorf("read back members: %w", err)
	}

	return Result{
		IDs: map[string]string{"member": memberID},
		Data: map[string]interface{}{
			"group_id":     groupID,
			"members":      members,
			"member_count": len(members),
		},
	}, nil
}

// MemberAdd is the member.add flow: grant userID group membership.
func MemberAdd(fc *FlowCtx, params map[string]interface{}) (Result, error) {
	result, err := fc.emitMember(events.MemberAdd, params)
	if err != nil {
		return Result{}, fmt.Errorf("member.add: %w", err)
	}
	return result, nil
}

// MemberRemove is the member.remove flow: revoke userID's group membership
// and immediately rotate the group's symmetric key so the removed member's
// existing copy can no longer decrypt anything posted afterward.
func MemberRemove(fc *FlowCtx, params map[string]interface{}) (Result, error) {
	result, err := fc.emitMember(events.MemberRemove, params)
	if err != nil {
		return Result{}, fmt.Errorf("member.remove: %w", err)
	}
	return result, nil
}
