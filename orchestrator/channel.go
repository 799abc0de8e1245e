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

// createChannel emits a channel event scoped to an existing group. Unlike
// group creation, channel creation depends on the group event it belongs
// to (deps: ["group:<group_id>"]), since a channel with no group to anchor
// it would fail the membership handler's group-scoped check the moment
// anyone posts to it.
func (fc *FlowCtx) createChannel(name, groupID, networkID, peerID string) (string, error) {
	channelID := uuid.NewString()
	if _, err := fc.emitEvent("channel", map[string]interface{}{
		"channel_id": channelID,
		"group_id":   groupID,
		"name":       name,
		"network_id": networkID,
		"creator_id": peerID,
		"created_at": nowMS(),
	}, emitOptions{
		by:         peerID,
		deps:       []string{"group:" + groupID},
		networkID:  networkID,
		eventKeyID: groupID,
	}); err != nil {
		return "", err
	}
	return channelID, nil
}

// ChannelCreate is the channel.create flow: emit the channel, then read
// back every channel in the group oldest first.
// Params: group_id, peer_id (required), name, network_id (optional).
func ChannelCreate(fc *FlowCtx, params map[string]interface{}) (Result, error) {
	groupID, err := requireStrParam(params, "group_id")
	if err != nil {
		return Result{}, fmt.Errorf("channel.create: %w", err)
	}
	peerID, err := requireStrParam(params, "peer_id")
	if err != nil {
		return Result{}, fmt.Errorf("channel.create: %w", err)
	}
	name := strParam(params, "name", "")
	networkID := strParam(params, "network_id", "")

	channelID, err := fc.createChannel(name, groupID, networkID, peerID)
	if err != nil {
		return Result{}, fmt.Errorf("channel.create: %w", err)
	}

	channels, err := fc.Stores().Projection.Channels(fc.ctx, groupID)
	if err != nil {
		return Result{}, fmt.Errorf("channel.create: read back channels: %w", err)
	}

	return Result{
		IDs: map[string]string{"channel": channelID},
		Data: map[string]interface{}{
			"channel_id": channelID,
			"name":       name,
			"group_id":   groupID,
			"channels":   channels,
		},
	}, nil
}
