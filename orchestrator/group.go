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
)

// createGroup emits a group event and mints the group's first symmetric
// key. The creator becomes an implicit member the moment the projector
// applies the group event (events.projectGroup), so rotateGroupKey finds
// exactly one member - the creator - to seal the new key to. Without this,
// the very next channel, member, or message event in the group would have
// nothing under "group:<group_id>" to encrypt against (handlers/policy.go's
// PolicyGroupKey).
func (fc *FlowCtx) createGroup(name, networkID, peerID string) (string, error) {
	groupID := uuid.NewString()
	if _, err := fc.emitEvent("group", map[string]interface{}{
		"group_id":   groupID,
		"name":       name,
		"network_id": networkID,
		"creator_id": peerID,
		"created_at": nowMS(),
	}, emitOptions{by: peerID, networkID: networkID}); err != nil {
		return "", err
	}
	if _, err := fc.rotateGroupKey(groupID, networkID, peerID); err != nil {
		return "", fmt.Errorf("mint initial group key: %w", err)
	}
	return groupID, nil
}

// GroupCreate is the group.create flow: emit the group, then read back
// every group in the network ordered oldest first.
// Params: network_id, peer_id, name (all required).
func GroupCreate(fc *FlowCtx, params map[string]interface{}) (Result, error) {
	networkID, err := requireStrParam(params, "network_id")
	if err != nil {
		return Result{}, fmt.Errorf("group.create: %w", err)
	}
	peerID, err := requireStrParam(params, "peer_id")
	if err != nil {
		return Result{}, fmt.Errorf("group.create: %w", err)
	}
	name := strParam(params, "name", "")

	groupID, err := fc.createGroup(name, networkID, peerID)
	if err != nil {
		return Result{}, fmt.Errorf("group.create: %w", err)
	}

	groups, err := fc.Stores().Projection.Groups(fc.ctx, networkID)
	if err != nil {
		return Result{}, fmt.Errorf("group.create: read back groups: %w", err)
	}

	return Result{
		IDs: map[string]string{"group": groupID},
		Data: map[string]interface{}{
			"group_id":   groupID,
			"name":       name,
			"network_id": networkID,
			"creator_id": peerID,
			"groups":     groups,
		},
	}, nil
}
