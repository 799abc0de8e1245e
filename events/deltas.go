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

import "fmt"

// Op names the kind of relational change a Delta describes.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Delta is one relational change produced by projecting a validated event.
// A projector never writes to storage directly, it only describes the
// write, so the projection store stays the one place that knows how
// deltas become rows.
type Delta struct {
	Op    Op
	Table string
	Data  map[string]interface{}
	// Where narrows Update/Delete to the rows matching these column
	// equalities; Insert ignores it.
	Where map[string]interface{}
}

// Project turns one validated, stored event into the relational deltas its
// projection needs. eventID is the content-addressed id already assigned to
// the event; fields is its plaintext field map. The returned deltas are
// applied atomically by the caller (see projection.Store.Apply); a
// Project call itself performs no storage I/O.
func Project(eventID string, fields map[string]interface{}) ([]Delta, error) {
	kind := TypeOf(fields)
	switch kind {
	case KindIdentity:
		return projectIdentity(eventID, fields)
	case KindPeer:
		return projectPeer(eventID, fields)
	case KindNetwork:
		return projectNetwork(eventID, fields)
	case KindGroup:
		return projectGroup(eventID, fields)
	case KindChannel:
		return projectChannel(eventID, fields)
	case KindUser:
		return projectUser(eventID, fields)
	case KindMember:
		return projectMember(eventID, fields)
	case KindInvite:
		return projectInvite(eventID, fields)
	case KindKey:
		return projectKey(eventID, fields)
	case KindMessage:
		return projectMessage(eventID, fields)
	case KindAddress:
		return projectAddress(eventID, fields)
	case KindTransitSecret:
		// Local-only; never projected into shared relational state.
		return nil, nil
	case KindSyncRequest:
		// Never stored or projected; handled entirely in-flight.
		return nil, nil
	default:
		return nil, fmt.Errorf("events: unknown event type %q", kind)
	}
}

func projectIdentity(eventID string, f map[string]interface{}) ([]Delta, error) {
	var ev Identity
	if err := FromFields(f, &ev); err != nil {
		return nil, err
	}
	return []Delta{{
		Op:    OpInsert,
		Table: "identities",
		Data: map[string]interface{}{
			"identity_id": ev.IdentityID,
			"event_id":    eventID,
			"name":        ev.Name,
			"public_key":  ev.PublicKey,
			"created_at":  ev.CreatedAtMS,
		},
	}}, nil
}

func projectPeer(eventID string, f map[string]interface{}) ([]Delta, error) {
	var ev Peer
	if err := FromFields(f, &ev); err != nil {
		return nil, err
	}
	return []Delta{{
		Op:    OpInsert,
		Table: "peers",
		Data: map[string]interface{}{
			"peer_id":     ev.PeerID,
			"event_id":    eventID,
			"public_key":  ev.PublicKey,
			"identity_id": ev.IdentityID,
			"network_id":  ev.NetworkID,
			"username":    ev.Username,
			"created_at":  ev.CreatedAtMS,
		},
	}}, nil
}

func projectNetwork(eventID string, f map[string]interface{}) ([]Delta, error) {
	var ev Network
	if err := FromFields(f, &ev); err != nil {
		return nil, err
	}
	return []Delta{{
		Op:    OpInsert,
		Table: "networks",
		Data: map[string]interface{}{
			"network_id": ev.NetworkID,
			"event_id":   eventID,
			"name":       ev.Name,
			"creator_id": ev.CreatorID,
			"created_at": ev.CreatedAtMS,
		},
	}}, nil
}

// projectGroup inserts the group row and, per the creator-implicit-member
// rule, a group_members row for the creator so a freshly created group
// reads back with one member without requiring a separate member event.
func projectGroup(eventID string, f map[string]interface{}) ([]Delta, error) {
	var ev Group
	if err := FromFields(f, &ev); err != nil {
		return nil, err
	}
	return []Delta{
		{
			Op:    OpInsert,
			Table: "groups",
			Data: map[string]interface{}{
				"group_id":   ev.GroupID,
				"event_id":   eventID,
				"network_id": ev.NetworkID,
				"name":       ev.Name,
				"creator_id": ev.CreatorID,
				"created_at": ev.CreatedAtMS,
			},
		},
		{
			Op:    OpInsert,
			Table: "group_members",
			Data: map[string]interface{}{
				"group_id": ev.GroupID,
				"peer_id":  ev.CreatorID,
				"added_by": ev.CreatorID,
			},
		},
	}, nil
}

func projectChannel(eventID string, f map[string]interface{}) ([]Delta, error) {
	var ev Channel
	if err := FromFields(f, &ev); err != nil {
		return nil, err
	}
	return []Delta{{
		Op:    OpInsert,
		Table: "channels",
		Data: map[string]interface{}{
			"channel_id": ev.ChannelID,
			"event_id":   eventID,
			"group_id":   ev.GroupID,
			"network_id": ev.NetworkID,
			"name":       ev.Name,
			"creator_id": ev.CreatorID,
			"created_at": ev.CreatedAtMS,
		},
	}}, nil
}

// projectUser inserts the user row and, when the user joined through an
// invite (InvitePubkey set), also grants group membership directly: an
// invite-carrying user event is itself the proof of membership, with no
// separate member event required.
func projectUser(eventID string, f map[string]interface{}) ([]Delta, error) {
	var ev User
	if err := FromFields(f, &ev); err != nil {
		return nil, err
	}
	deltas := []Delta{{
		Op:    OpInsert,
		Table: "users",
		Data: map[string]interface{}{
			"user_id":    ev.UserID,
			"event_id":   eventID,
			"peer_id":    ev.PeerID,
			"network_id": ev.NetworkID,
			"group_id":   ev.GroupID,
			"name":       ev.Name,
			"created_at": ev.CreatedAtMS,
		},
	}}
	if ev.InvitePubkey != "" {
		deltas = append(deltas, Delta{
			Op:    OpInsert,
			Table: "group_members",
			Data: map[string]interface{}{
				"group_id": ev.GroupID,
				"peer_id":  ev.PeerID,
				"added_by": ev.InvitePubkey,
			},
		})
	}
	return deltas, nil
}

// projectMember applies an explicit membership grant or revocation. The
// group_members deltas it emits carry the event's user_id rather than a
// peer_id; the projection store resolves that user_id to the user's
// peer_id through its users table when it applies the delta.
func projectMember(eventID string, f map[string]interface{}) ([]Delta, error) {
	var ev Member
	if err := FromFields(f, &ev); err != nil {
		return nil, err
	}
	insert := Delta{
		Op:    OpInsert,
		Table: "members",
		Data: map[string]interface{}{
			"member_id":  ev.MemberID,
			"event_id":   eventID,
			"group_id":   ev.GroupID,
			"user_id":    ev.UserID,
			"action":     string(ev.Action),
			"by_peer_id": ev.ByPeerID,
			"network_id": ev.NetworkID,
			"created_at": ev.CreatedAtMS,
		},
	}
	switch ev.Action {
	case MemberAdd:
		return []Delta{insert, {
			Op:    OpInsert,
			Table: "group_members",
			Data: map[string]interface{}{
				"group_id": ev.GroupID,
				"user_id":  ev.UserID,
				"added_by": ev.ByPeerID,
			},
		}}, nil
	case MemberRemove:
		return []Delta{insert, {
			Op:    OpDelete,
			Table: "group_members",
			Where: map[string]interface{}{
				"group_id": ev.GroupID,
				"user_id":  ev.UserID,
			},
		}}, nil
	default:
		return nil, fmt.Errorf("events: member event with unknown action %q", ev.Action)
	}
}

// projectInvite inserts the invite row. invite_secret is deliberately never
// part of f: only the inviter holds it, inside the invite link they hand
// out of band.
func projectInvite(eventID string, f map[string]interface{}) ([]Delta, error) {
	var ev Invite
	if err := FromFields(f, &ev); err != nil {
		return nil, err
	}
	return []Delta{{
		Op:    OpInsert,
		Table: "invites",
		Data: map[string]interface{}{
			"invite_id":       ev.InviteID,
			"event_id":        eventID,
			"invite_pubkey":   ev.InvitePubkey,
			"network_id":      ev.NetworkID,
			"group_id":        ev.GroupID,
			"inviter_peer_id": ev.InviterPeerID,
			"created_at":      ev.CreatedAtMS,
		},
	}}, nil
}

// projectKey inserts the sealed-key row. Each member holds their own Key
// event sealed under their own peer_id, so the table's primary grouping is
// (group_id, sealed_to_peer_id), not key_id alone.
func projectKey(eventID string, f map[string]interface{}) ([]Delta, error) {
	var ev Key
	if err := FromFields(f, &ev); err != nil {
		return nil, err
	}
	return []Delta{{
		Op:    OpInsert,
		Table: "keys",
		Data: map[string]interface{}{
			"key_id":            ev.KeyID,
			"event_id":          eventID,
			"group_id":          ev.GroupID,
			"sealed_secret":     ev.SealedSecret,
			"sealed_to_peer_id": ev.SealedToPeerID,
			"network_id":        ev.NetworkID,
			"created_at":        ev.CreatedAtMS,
		},
	}}, nil
}

func projectMessage(eventID string, f map[string]interface{}) ([]Delta, error) {
	var ev Message
	if err := FromFields(f, &ev); err != nil {
		return nil, err
	}
	return []Delta{{
		Op:    OpInsert,
		Table: "messages",
		Data: map[string]interface{}{
			"message_id": ev.MessageID,
			"event_id":   eventID,
			"channel_id": ev.ChannelID,
			"group_id":   ev.GroupID,
			"network_id": ev.NetworkID,
			"peer_id":    ev.PeerID,
			"body":       ev.Body,
			"sent_at":    ev.SentAtMS,
		},
	}}, nil
}

func projectAddress(eventID string, f map[string]interface{}) ([]Delta, error) {
	var ev Address
	if err := FromFields(f, &ev); err != nil {
		return nil, err
	}
	switch ev.Action {
	case AddressAdd:
		return []Delta{{
			Op:    OpInsert,
			Table: "addresses",
			Data: map[string]interface{}{
				"address_id": ev.AddressID,
				"event_id":   eventID,
				"peer_id":    ev.PeerID,
				"network_id": ev.NetworkID,
				"transport":  ev.Transport,
				"addr":       ev.Addr,
				"created_at": ev.CreatedAtMS,
			},
		}}, nil
	case AddressRemove:
		return []Delta{{
			Op:    OpDelete,
			Table: "addresses",
			Where: map[string]interface{}{
				"peer_id":   ev.PeerID,
				"transport": ev.Transport,
				"addr":      ev.Addr,
			},
		}}, nil
	default:
		return nil, fmt.Errorf("events: address event with unknown action %q", ev.Action)
	}
}
