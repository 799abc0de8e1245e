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

// createNetwork emits a network event anchored by a known peer. The
// network's own id is a fresh uuid, not content-derived: unlike identity
// and peer, there is nothing inherent in a network's fields to hash before
// creation, so it gets the same random-id treatment every other non-bypass
// kind does (group, channel, user, member, invite, key, message, address).
func (fc *FlowCtx) createNetwork(name, peerID string) (string, error) {
	networkID := uuid.NewString()
	if _, err := fc.emitEvent("network", map[string]interface{}{
		"network_id": networkID,
		"name":       name,
		"creator_id": peerID,
		"created_at": nowMS(),
	}, emitOptions{by: peerID, deps: []string{"peer:" + peerID}, networkID: networkID}); err != nil {
		return "", err
	}
	return networkID, nil
}

// NetworkCreate is the network.create flow: create a network anchored by an
// already-existing peer. Params: name (required), peer_id (required).
func NetworkCreate(fc *FlowCtx, params map[string]interface{}) (Result, error) {
	name, err := requireStrParam(params, "name")
	if err != nil {
		return Result{}, err
	}
	peerID, err := requireStrParam(params, "peer_id")
	if err != nil {
		return Result{}, fmt.Errorf("network.create: %w (create a peer first)", err)
	}

	networkID, err := fc.createNetwork(name, peerID)
	if err != nil {
		return Result{}, fmt.Errorf("network.create: %w", err)
	}

	return Result{
		IDs:  map[string]string{"network": networkID},
		Data: map[string]interface{}{"network_id": networkID, "name": name},
	}, nil
}
