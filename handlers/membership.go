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

package handlers

import (
	"context"

	"github.com/quietprotocol/quiet/envelope"
	"github.com/quietprotocol/quiet/events"
	"github.com/quietprotocol/quiet/pipeline"
	"github.com/quietprotocol/quiet/pipelineerr"
)

// MembershipHandler is the authorization gate every event must clear
// before it is eligible for projection. Group-scoped kinds (channel,
// member, message) require the acting peer to already belong to the
// group; network-scoped kinds (peer, user, address) require the peer they
// assert to be a known peer of the event's network. The remaining kinds
// have no precondition here: network/group/invite events bootstrap the
// very structures these checks read, and identity/key/transit_secret/
// sync_request are either local-only or single-recipient.
type MembershipHandler struct{}

func NewMembershipHandler() *MembershipHandler { return &MembershipHandler{} }

func (h *MembershipHandler) Name() string { return "membership" }

// Filter waits for both the signature check and dependency resolution to
// land before judging membership, so the verdict (and the final Validated
// flip in finishValidation) is computed exactly once, against fully
// resolved state.
func (h *MembershipHandler) Filter(env *envelope.Envelope) bool {
	return env.DepsIncludedAndValid &&
		env.SigChecked != nil && *env.SigChecked && env.IsGroupMember == nil
}

func (h *MembershipHandler) Process(ctx context.Context, env *envelope.Envelope, st pipeline.Stores) ([]*envelope.Envelope, error) {
	fields := env.EventPlaintext
	kind := events.TypeOf(fields)

	groupID, actingPeerID := membershipSubject(kind, fields)
	if groupID == "" {
		if err := h.checkNetworkScope(ctx, kind, fields, env, st); err != nil {
			return nil, err
		}
		env.IsGroupMember = boolPtr(true)
		h.finishValidation(env)
		return nil, nil
	}

	ok, err := st.Projection.IsMember(ctx, groupID, actingPeerID)
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.KindInternal, "check group membership", err)
	}
	env.IsGroupMember = boolPtr(ok)
	if !ok {
		return nil, pipelineerr.New(pipelineerr.KindAuth, "acting peer is not a member of the group")
	}
	h.finishValidation(env)
	return nil, nil
}

// checkNetworkScope authorizes the network-scoped kinds. A peer event
// introduces its own id, so its check is self-consistency: the claimed
// peer_id must equal the public key it binds (the id scheme makes any
// mismatch a forgery). User and address events assert an already-existing
// peer: that peer must be known to the event's network — if it is missing
// entirely the envelope blocks on the peer event's arrival, if it belongs
// to a different network the envelope is dropped.
func (h *MembershipHandler) checkNetworkScope(ctx context.Context, kind events.Kind, fields map[string]interface{}, env *envelope.Envelope, st pipeline.Stores) error {
	switch kind {
	case events.KindPeer:
		if str(fields["peer_id"]) != str(fields["public_key"]) {
			return pipelineerr.New(pipelineerr.KindAuth, "peer event id does not match its public key")
		}
		return nil

	case events.KindUser, events.KindAddress:
		networkID := str(fields["network_id"])
		peerID := str(fields["peer_id"])
		if networkID == "" || peerID == "" {
			return nil
		}
		known, err := st.Projection.IsPeerOfNetwork(ctx, networkID, peerID)
		if err != nil {
			return pipelineerr.Wrap(pipelineerr.KindInternal, "check network peer", err)
		}
		if known {
			return nil
		}
		p, err := st.Projection.PeerByID(ctx, peerID)
		if err != nil {
			return pipelineerr.Wrap(pipelineerr.KindInternal, "look up peer", err)
		}
		if p == nil {
			env.MissingDeps = []string{"peer:" + peerID}
			return pipelineerr.New(pipelineerr.KindMissingDep, "asserted peer not yet known")
		}
		return pipelineerr.New(pipelineerr.KindAuth, "peer belongs to a different network")

	default:
		return nil
	}
}

// membershipSubject returns the group a kind is scoped to and the peer
// whose membership must already hold, or ("", "") if the kind has no such
// precondition. Channel creation checks the creator; message events
// check the sender; member add/remove checks the peer performing
// the action, since the target user may not be a member yet (that's the
// point of a member.add event).
func membershipSubject(kind events.Kind, fields map[string]interface{}) (groupID, peerID string) {
	switch kind {
	case events.KindChannel:
		return str(fields["group_id"]), str(fields["creator_id"])
	case events.KindMessage:
		return str(fields["group_id"]), str(fields["peer_id"])
	case events.KindMember:
		return str(fields["group_id"]), str(fields["by_peer_id"])
	default:
		return "", ""
	}
}

func (h *MembershipHandler) finishValidation(env *envelope.Envelope) {
	if env.DepsIncludedAndValid && env.SigChecked != nil && *env.SigChecked && env.IsGroupMember != nil && *env.IsGroupMember {
		env.MarkValidated(true)
	}
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}
