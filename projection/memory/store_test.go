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

package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietprotocol/quiet/events"
)

func TestApplyGroupGrantsCreatorMembership(t *testing.T) {
	ctx := context.Background()
	s := New()

	fields, err := events.ToFields(events.Group{
		Type: events.KindGroup, GroupID: "g1", NetworkID: "n1",
		Name: "general", CreatorID: "peer-a", CreatedAtMS: 1,
	})
	require.NoError(t, err)
	deltas, err := events.Project("ev-1", fields)
	require.NoError(t, err)

	require.NoError(t, s.Apply(ctx, "ev-1", deltas))

	groups, err := s.Groups(ctx, "n1")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "g1", groups[0].GroupID)

	isMember, err := s.IsMember(ctx, "g1", "peer-a")
	require.NoError(t, err)
	assert.True(t, isMember)
}

func TestApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()

	fields, err := events.ToFields(events.Message{
		Type: events.KindMessage, MessageID: "m1", ChannelID: "c1",
		GroupID: "g1", NetworkID: "n1", PeerID: "p1", Body: "hi", SentAtMS: 5,
	})
	require.NoError(t, err)
	deltas, err := events.Project("ev-2", fields)
	require.NoError(t, err)

	require.NoError(t, s.Apply(ctx, "ev-2", deltas))
	require.NoError(t, s.Apply(ctx, "ev-2", deltas))

	msgs, err := s.Messages(ctx, "c1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestMemberAddThenRemove(t *testing.T) {
	ctx := context.Background()
	s := New()

	userFields, err := events.ToFields(events.User{
		Type: events.KindUser, UserID: "u1", PeerID: "peer-bob",
		NetworkID: "n1", GroupID: "g1", Name: "bob", CreatedAtMS: 1,
	})
	require.NoError(t, err)
	userDeltas, err := events.Project("ev-user", userFields)
	require.NoError(t, err)
	require.NoError(t, s.Apply(ctx, "ev-user", userDeltas))

	addFields, err := events.ToFields(events.Member{
		Type: events.KindMember, MemberID: "mem1", GroupID: "g1", UserID: "u1",
		Action: events.MemberAdd, ByPeerID: "peer-admin", NetworkID: "n1", CreatedAtMS: 2,
	})
	require.NoError(t, err)
	addDeltas, err := events.Project("ev-add", addFields)
	require.NoError(t, err)
	require.NoError(t, s.Apply(ctx, "ev-add", addDeltas))

	isMember, err := s.IsMember(ctx, "g1", "peer-bob")
	require.NoError(t, err)
	assert.True(t, isMember)

	removeFields, err := events.ToFields(events.Member{
		Type: events.KindMember, MemberID: "mem2", GroupID: "g1", UserID: "u1",
		Action: events.MemberRemove, ByPeerID: "peer-admin", NetworkID: "n1", CreatedAtMS: 3,
	})
	require.NoError(t, err)
	removeDeltas, err := events.Project("ev-remove", removeFields)
	require.NoError(t, err)
	require.NoError(t, s.Apply(ctx, "ev-remove", removeDeltas))

	isMember, err = s.IsMember(ctx, "g1", "peer-bob")
	require.NoError(t, err)
	assert.False(t, isMember)
}
