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

// Package events defines the concrete fields of every event kind the
// pipeline carries, and how each kind turns into relational projection
// deltas. A kind's Go struct is the source of truth for its wire shape;
// envelope.Envelope.EventPlaintext only ever holds the map[string]interface{}
// form produced by ToFields, since the pipeline itself must stay
// type-agnostic about event content (see envelope package doc).
package events

import "encoding/json"

// Kind names the tagged union of event types the protocol carries.
type Kind string

const (
	KindIdentity      Kind = "identity"
	KindPeer          Kind = "peer"
	KindNetwork       Kind = "network"
	KindGroup         Kind = "group"
	KindChannel       Kind = "channel"
	KindUser          Kind = "user"
	KindMember        Kind = "member"
	KindInvite        Kind = "invite"
	KindKey           Kind = "key"
	KindMessage       Kind = "message"
	KindAddress       Kind = "address"
	KindSyncRequest   Kind = "sync_request"
	KindTransitSecret Kind = "transit_secret"
)

// Identity is a local secret never transmitted on the wire. Only the public
// fields below ever reach EventPlaintext/EventStore; the private key is
// held exclusively in the secret store (see orchestrator flow
// identity.create_as_user).
type Identity struct {
	Type        Kind   `json:"type"`
	IdentityID  string `json:"identity_id"`
	Name        string `json:"name"`
	PublicKey   string `json:"public_key"` // hex Ed25519 public key
	CreatedAtMS int64  `json:"created_at"`
}

// Peer binds an identity's public key to a device/instance within a
// network. PeerID equals the hex-encoded public key itself (see
// quietcrypto identity-style event id bypass in the crypto handler),
// which lets any event's peer_id field double as both a dependency
// reference and the Ed25519 verification key.
type Peer struct {
	Type        Kind   `json:"type"`
	PeerID      string `json:"peer_id"`
	PublicKey   string `json:"public_key"`
	IdentityID  string `json:"identity_id"`
	NetworkID   string `json:"network_id"`
	Username    string `json:"username"`
	CreatedAtMS int64  `json:"created_at"`
	Signature   string `json:"signature,omitempty"`
}

// Network is the root event a group messaging network is anchored to.
type Network struct {
	Type        Kind   `json:"type"`
	NetworkID   string `json:"network_id"`
	Name        string `json:"name"`
	CreatorID   string `json:"creator_id"`
	CreatedAtMS int64  `json:"created_at"`
	Signature   string `json:"signature,omitempty"`
}

// Group is a membership scope within a network. Its creator is an
// implicit member from the moment of projection.
type Group struct {
	Type        Kind   `json:"type"`
	GroupID     string `json:"group_id"`
	NetworkID   string `json:"network_id"`
	Name        string `json:"name"`
	CreatorID   string `json:"creator_id"`
	CreatedAtMS int64  `json:"created_at"`
	Signature   string `json:"signature,omitempty"`
}

// Channel is a message stream within a group.
type Channel struct {
	Type        Kind   `json:"type"`
	ChannelID   string `json:"channel_id"`
	GroupID     string `json:"group_id"`
	NetworkID   string `json:"network_id"`
	Name        string `json:"name"`
	CreatorID   string `json:"creator_id"`
	CreatedAtMS int64  `json:"created_at"`
	Signature   string `json:"signature,omitempty"`
}

// User binds a peer to a group under a display name. InvitePubkey and
// InviteSignature are populated only when the user joined through an
// invite link; a non-invite user.create still
// grants the caller no group membership until an explicit member event
// or an invite-carrying user event is projected.
type User struct {
	Type            Kind   `json:"type"`
	UserID          string `json:"user_id"`
	PeerID          string `json:"peer_id"`
	NetworkID       string `json:"network_id"`
	GroupID         string `json:"group_id"`
	Name            string `json:"name"`
	InvitePubkey    string `json:"invite_pubkey,omitempty"`
	InviteSignature string `json:"invite_signature,omitempty"`
	CreatedAtMS     int64  `json:"created_at"`
	Signature       string `json:"signature,omitempty"`
}

// MemberAction distinguishes a member event that grants membership from
// one that revokes it.
type MemberAction string

const (
	MemberAdd    MemberAction = "add"
	MemberRemove MemberAction = "remove"
)

// Member explicitly adds or removes a user's group membership, signed by
// an existing member (by_peer_id).
type Member struct {
	Type        Kind         `json:"type"`
	MemberID    string       `json:"member_id"`
	GroupID     string       `json:"group_id"`
	UserID      string       `json:"user_id"`
	Action      MemberAction `json:"action"`
	ByPeerID    string       `json:"by_peer_id"`
	NetworkID   string       `json:"network_id"`
	CreatedAtMS int64        `json:"created_at"`
	Signature   string       `json:"signature,omitempty"`
}

// Invite is an inviter-signed grant a joiner cites via the
// InvitePubkey/invite_signature carried in their User event; the
// pipeline does not check either value against this event. InviteSecret
// itself is never part of the stored event: it exists only inside the
// invite link handed to the joiner out of band.
type Invite struct {
	Type          Kind   `json:"type"`
	InviteID      string `json:"invite_id"`
	InvitePubkey  string `json:"invite_pubkey"`
	NetworkID     string `json:"network_id"`
	GroupID       string `json:"group_id"`
	InviterPeerID string `json:"inviter_peer_id"`
	CreatedAtMS   int64  `json:"created_at"`
	Signature     string `json:"signature,omitempty"`
}

// Key is a group symmetric key sealed to one member's public key via KEM.
// Every member of a group holds their own Key event for the same
// underlying secret, each sealed under their own peer_id.
type Key struct {
	Type           Kind   `json:"type"`
	KeyID          string `json:"key_id"`
	GroupID        string `json:"group_id"`
	SealedSecret   string `json:"sealed_secret"` // hex, output of SealToEd25519
	SealedToPeerID string `json:"sealed_to_peer_id"`
	NetworkID      string `json:"network_id"`
	CreatedAtMS    int64  `json:"created_at"`
}

// Message is a chat message posted to a channel.
type Message struct {
	Type        Kind   `json:"type"`
	MessageID   string `json:"message_id"`
	ChannelID   string `json:"channel_id"`
	GroupID     string `json:"group_id"`
	NetworkID   string `json:"network_id"`
	PeerID      string `json:"peer_id"`
	Body        string `json:"body"`
	SentAtMS    int64  `json:"sent_at"`
	Signature   string `json:"signature,omitempty"`
}

// AddressAction distinguishes announcing reachability from withdrawing it.
type AddressAction string

const (
	AddressAdd    AddressAction = "add"
	AddressRemove AddressAction = "remove"
)

// Address announces (or withdraws) a peer's reachability over some
// transport, so other peers know where to send outgoing envelopes.
type Address struct {
	Type        Kind          `json:"type"`
	AddressID   string        `json:"address_id"`
	PeerID      string        `json:"peer_id"`
	NetworkID   string        `json:"network_id"`
	Transport   string        `json:"transport"`
	Addr        string        `json:"addr"`
	Action      AddressAction `json:"action"`
	CreatedAtMS int64         `json:"created_at"`
	Signature   string        `json:"signature,omitempty"`
}

// SyncRequest asks a peer for events it may be missing. It is always
// sealed (one-way KEM, sender cannot open its own request) and is never
// stored: the projector marks a KindSyncRequest envelope stored without
// writing it to the event store.
type SyncRequest struct {
	Type            Kind     `json:"type"`
	RequesterPeerID string   `json:"requester_peer_id"`
	HaveEventIDs    []string `json:"have_event_ids"`
}

// TransitSecret is a local symmetric key for the transit layer between two
// directly-connected peers. Like Identity, it never crosses the wire; the
// raw secret lives in the secret store, keyed by TransitKeyID.
type TransitSecret struct {
	Type        Kind   `json:"type"`
	PeerID      string `json:"peer_id"` // the peer at the other end of the link
	NetworkID   string `json:"network_id"`
	CreatedAtMS int64  `json:"created_at"`
}

// ToFields round-trips v (one of the structs above) through JSON into the
// map[string]interface{} form envelope.Envelope.EventPlaintext and the
// canonicalizer operate on. A JSON round trip, rather than a hand-written
// field-by-field copy per kind, keeps every struct's json tags as the
// single source of truth for wire field names.
func ToFields(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// FromFields decodes a plaintext field map back into one of the typed
// structs above, via the same JSON round trip ToFields uses.
func FromFields(fields map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// TypeOf reads the "type" discriminator out of a plaintext field map.
func TypeOf(fields map[string]interface{}) Kind {
	t, _ := fields["type"].(string)
	return Kind(t)
}
