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

// Package projection applies events.Delta batches to queryable relational
// state (peers, groups, channels, messages, and the rest of the tables
// described in events.Project), and answers the read-side queries the
// orchestrator flows need after emitting an event. It intentionally stops
// at what events.Project needs to describe: the per-event-type SQL schema
// beyond that stays out of scope, same as it is for the event store itself.
package projection

import (
	"context"

	"github.com/quietprotocol/quiet/events"
)

// Store applies projection deltas and serves the read queries the
// orchestrator's flows need once an event has landed. Apply must be
// idempotent under at-least-once delivery: applying the same event's
// deltas twice must leave state unchanged, since a crash between
// projection and the event store recording "projected" must be safe to
// replay.
type Store interface {
	// Apply commits eventID's deltas atomically. eventID is passed
	// alongside the deltas so an implementation can use it to dedupe
	// re-application without relying on delta content alone.
	Apply(ctx context.Context, eventID string, deltas []Delta) error

	// Groups lists the groups projected for a network.
	Groups(ctx context.Context, networkID string) ([]Group, error)

	// Channels lists the channels projected for a group.
	Channels(ctx context.Context, groupID string) ([]Channel, error)

	// Members lists the current members of a group (post add/remove).
	Members(ctx context.Context, groupID string) ([]Member, error)

	// IsMember reports whether peerID currently belongs to groupID,
	// which the membership handler consults for every group-scoped event.
	IsMember(ctx context.Context, groupID, peerID string) (bool, error)

	// Messages returns up to limit of the most recent messages in a
	// channel, oldest first.
	Messages(ctx context.Context, channelID string, limit int) ([]Message, error)

	// PeerByID looks up a projected peer by its id (hex public key).
	PeerByID(ctx context.Context, peerID string) (*Peer, error)

	// IsPeerOfNetwork reports whether peerID is a known peer of networkID,
	// the authorization check network-scoped events must clear. A peer row
	// with no network binding (peer events are created before any network
	// exists to bind them to) counts as known to every network; a row
	// bound to a different network does not.
	IsPeerOfNetwork(ctx context.Context, networkID, peerID string) (bool, error)

	// UserByID looks up a projected user.
	UserByID(ctx context.Context, userID string) (*User, error)

	// AddressesByPeer lists the announced (and not withdrawn) addresses a
	// peer can currently be reached at, which the outgoing handler uses to
	// pick destinations for peer-targeted events.
	AddressesByPeer(ctx context.Context, peerID string) ([]Address, error)

	// AddressesByNetwork lists every announced address across a network,
	// for events that fan out to all known peers rather than one group or
	// one recipient.
	AddressesByNetwork(ctx context.Context, networkID string) ([]Address, error)

	Close() error
}

// Delta is a type alias so callers don't need a separate import of package
// events just to call Store.Apply; events.Project remains the only producer
// of Deltas.
type Delta = events.Delta

// Group, Channel, Member, Message, Peer, and User are the read-side
// projections the orchestrator's flow response shaping needs: group.create
// reads back the full groups list, channel.create reads back channels,
// message.send reads back the most recent messages.
type Group struct {
	GroupID   string
	NetworkID string
	Name      string
	CreatorID string
	CreatedAt int64
}

type Channel struct {
	ChannelID string
	GroupID   string
	NetworkID string
	Name      string
	CreatorID string
	CreatedAt int64
}

type Member struct {
	GroupID string
	PeerID  string
	AddedBy string
}

type Message struct {
	MessageID string
	ChannelID string
	GroupID   string
	NetworkID string
	PeerID    string
	Body      string
	SentAt    int64
}

type Peer struct {
	PeerID     string
	PublicKey  string
	IdentityID string
	NetworkID  string
	Username   string
	CreatedAt  int64
}

type User struct {
	UserID    string
	PeerID    string
	NetworkID string
	GroupID   string
	Name      string
	CreatedAt int64
}

type Address struct {
	AddressID string
	PeerID    string
	NetworkID string
	Transport string
	Addr      string
	CreatedAt int64
}
