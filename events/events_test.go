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

package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToFieldsFromFieldsRoundTrip(t *testing.T) {
	peer := Peer{
		Type:        KindPeer,
		PeerID:      "abc123",
		PublicKey:   "abc123",
		IdentityID:  "id1",
		NetworkID:   "net1",
		Username:    "alice",
		CreatedAtMS: 1000,
	}

	fields, err := ToFields(peer)
	require.NoError(t, err)
	assert.Equal(t, "peer", fields["type"])
	assert.Equal(t, "abc123", fields["peer_id"])
	assert.Equal(t, KindPeer, TypeOf(fields))

	var back Peer
	require.NoError(t, FromFields(fields, &back))
	assert.Equal(t, peer, back)
}

func TestProjectGroupGrantsCreatorMembership(t *testing.T) {
	fields, err := ToFields(Group{
		Type:        KindGroup,
		GroupID:     "g1",
		NetworkID:   "n1",
		Name:        "general",
		CreatorID:   "peer-creator",
		CreatedAtMS: 42,
	})
	require.NoError(t, err)

	deltas, err := Project("event-1", fields)
	require.NoError(t, err)
	require.Len(t, deltas, 2)

	assert.Equal(t, "groups", deltas[0].Table)
	assert.Equal(t, OpInsert, deltas[0].Op)

	assert.Equal(t, "group_members", deltas[1].Table)
	assert.Equal(t, "peer-creator", deltas[1].Data["peer_id"])
}

func TestProjectUserWithInviteGrantsMembership(t *testing.T) {
	fields, err := ToFields(User{
		Type:         KindUser,
		UserID:       "u1",
		PeerID:       "peer-bob",
		NetworkID:    "n1",
		GroupID:      "g1",
		Name:         "bob",
		InvitePubkey: "invite-pub",
		CreatedAtMS:  100,
	})
	require.NoError(t, err)

	deltas, err := Project("event-2", fields)
	require.NoError(t, err)
	require.Len(t, deltas, 2)
	assert.Equal(t, "users", deltas[0].Table)
	assert.Equal(t, "group_members", deltas[1].Table)
	assert.Equal(t, "peer-bob", deltas[1].Data["peer_id"])
}

func TestProjectUserWithoutInviteGrantsNoMembership(t *testing.T) {
	fields, err := ToFields(User{
		Type:        KindUser,
		UserID:      "u2",
		PeerID:      "peer-carol",
		NetworkID:   "n1",
		GroupID:     "g1",
		Name:        "carol",
		CreatedAtMS: 100,
	})
	require.NoError(t, err)

	deltas, err := Project("event-3", fields)
	require.NoError(t, err)
	require.Len(t, deltas, 1)
	assert.Equal(t, "users", deltas[0].Table)
}

func TestProjectMemberRemoveDeletesMembership(t *testing.T) {
	fields, err := ToFields(Member{
		Type:        KindMember,
		MemberID:    "m1",
		GroupID:     "g1",
		UserID:      "u1",
		Action:      MemberRemove,
		ByPeerID:    "peer-admin",
		NetworkID:   "n1",
		CreatedAtMS: 200,
	})
	require.NoError(t, err)

	deltas, err := Project("event-4", fields)
	require.NoError(t, err)
	require.Len(t, deltas, 2)
	assert.Equal(t, OpDelete, deltas[1].Op)
	assert.Equal(t, "g1", deltas[1].Where["group_id"])
}

func TestProjectSyncRequestAndTransitSecretAreNoops(t *testing.T) {
	fields, err := ToFields(SyncRequest{Type: KindSyncRequest, RequesterPeerID: "p1"})
	require.NoError(t, err)
	deltas, err := Project("event-5", fields)
	require.NoError(t, err)
	assert.Nil(t, deltas)

	fields, err = ToFields(TransitSecret{Type: KindTransitSecret, PeerID: "p1", NetworkID: "n1"})
	require.NoError(t, err)
	deltas, err = Project("event-6", fields)
	require.NoError(t, err)
	assert.Nil(t, deltas)
}

func TestProjectUnknownKindErrors(t *testing.T) {
	_, err := Project("event-7", map[string]interface{}{"type": "bogus"})
	assert.Error(t, err)
}
