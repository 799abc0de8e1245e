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

const recentMessageLimit = 50

// MessageSend is the message.send flow: emit the message and read back the
// most recent messages in the channel. The dependency resolver never
// mutates event fields (see handlers/resolver.go), so the caller passes
// the channel's group_id and network_id and the flow stamps them into the
// event before it is ever signed; it does not check that the channel
// belongs to that group.
//
// Params: channel_id, group_id, network_id, peer_id (all required), body.
func MessageSend(fc *FlowCtx, params map[string]interface{}) (Result, error) {
	channelID, err := requireStrParam(params, "channel_id")
	if err != nil {
		return Result{}, fmt.Errorf("message.send: %w", err)
	}
	groupID, err := requireStrParam(params, "group_id")
	if err != nil {
		return Result{}, fmt.Errorf("message.send: %w", err)
	}
	networkID, err := requireStrParam(params, "network_id")
	if err != nil {
		return Result{}, fmt.Errorf("message.send: %w", err)
	}
	peerID, err := requireStrParam(params, "peer_id")
	if err != nil {
		return Result{}, fmt.Errorf("message.send: %w", err)
	}
	body := strParam(params, "body", "")

	messageID, err := fc.emitEvent("message", map[string]interface{}{
		"message_id": uuid.NewString(),
		"channel_id": channelID,
		"group_id":   groupID,
		"network_id": networkID,
		"peer_id":    peerID,
		"body":       body,
		"sent_at":    nowMS(),
	}, emitOptions{
		by:         peerID,
		deps:       []string{"channel:" + channelID, "peer:" + peerID},
		networkID:  networkID,
		eventKeyID: groupID,
	})
	if err != nil {
		return Result{}, fmt.Errorf("message.send: %w", err)
	}

	messages, err := fc.Stores().Projection.Messages(fc.ctx, channelID, recentMessageLimit)
	if err != nil {
		return Result{}, fmt.Errorf("message.send: read back messages: %w", err)
	}

	return Result{
		IDs: map[string]string{"message": messageID},
		Data: map[string]interface{}{
			"message_id": messageID,
			"channel_id": channelID,
			"body":       body,
			"messages":   messages,
		},
	}, nil
}
