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
	"encoding/json"
	"errors"
	"time"

	"github.com/quietprotocol/quiet/envelope"
	"github.com/quietprotocol/quiet/events"
	"github.com/quietprotocol/quiet/pipeline"
	"github.com/quietprotocol/quiet/pipelineerr"
	"github.com/quietprotocol/quiet/projection"
	"github.com/quietprotocol/quiet/quietcrypto"
	"github.com/quietprotocol/quiet/store"
)

// transitPayload is the inner wire object the transit layer carries: the
// event's ciphertext plus the headers a receiving peer needs before it can
// decrypt (which key the event layer used, which network it belongs to,
// which events must land first). Ciphertext rides as base64 via the
// standard []byte JSON encoding.
type transitPayload struct {
	EventID    string   `json:"event_id"`
	EventType  string   `json:"event_type"`
	Ciphertext []byte   `json:"ciphertext"`
	KeyRef     string   `json:"key_ref,omitempty"`
	NetworkID  string   `json:"network_id,omitempty"`
	Deps       []string `json:"deps"`
}

// OutgoingHandler fans a stored, self-created event out to its recipients.
// It decides who should receive the event (group members for group-scoped
// kinds, exactly the sealed-to peer for key and sync_request, every known
// address in the network for the bootstrap kinds, nobody for local-only
// kinds), and emits one stripped clone per reachable address: only the
// ciphertext and its transit headers survive into the clone, never the
// plaintext or anything from the secret store. Each clone carries the
// transit key for its link, so the crypto handler's transit-encrypt phase
// can finish it into a RawData datagram the runner hands to the transport.
//
// A recipient with no established transit link (no "transit-peer:" secret)
// is skipped rather than failing the batch: outgoing delivery to a peer we
// have never linked with is the sync protocol's problem, not this event's.
type OutgoingHandler struct{}

func NewOutgoingHandler() *OutgoingHandler { return &OutgoingHandler{} }

func (h *OutgoingHandler) Name() string { return "outgoing" }

// Filter matches stored self-created events not yet fanned out, unless the
// envelope was explicitly marked non-outgoing (local-only emission).
func (h *OutgoingHandler) Filter(env *envelope.Envelope) bool {
	selfCreated := env.SelfCreated != nil && *env.SelfCreated
	allowed := env.Outgoing == nil || *env.Outgoing
	notChecked := env.OutgoingChecked == nil || !*env.OutgoingChecked
	return selfCreated && env.Stored && allowed && notChecked && len(env.EventCiphertext) > 0
}

func (h *OutgoingHandler) Process(ctx context.Context, env *envelope.Envelope, st pipeline.Stores) ([]*envelope.Envelope, error) {
	env.OutgoingChecked = boolPtr(true)

	addrs, err := h.recipients(ctx, env, st)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(transitPayload{
		EventID:    env.EventID,
		EventType:  env.EventType,
		Ciphertext: env.EventCiphertext,
		KeyRef:     env.EventKeyID,
		NetworkID:  env.NetworkID,
		Deps:       env.Deps,
	})
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.KindInternal, "marshal outgoing datagram", err)
	}

	now := time.Now().UnixMilli()
	var out []*envelope.Envelope
	for _, addr := range addrs {
		secret, err := st.Secrets.GetSecret(ctx, "transit-peer:"+addr.PeerID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, pipelineerr.Wrap(pipelineerr.KindInternal, "look up transit link", err)
		}
		keyID, err := quietcrypto.TransitKeyIDFromSecret(secret.Value)
		if err != nil {
			return nil, pipelineerr.Wrap(pipelineerr.KindInternal, "derive transit key id", err)
		}

		out = append(out, &envelope.Envelope{
			EventID:          env.EventID,
			EventType:        env.EventType,
			EventCiphertext:  env.EventCiphertext,
			EventKeyID:       env.EventKeyID,
			NetworkID:        env.NetworkID,
			Deps:             env.Deps,
			RequestID:        env.RequestID,
			TransitPlaintext: payload,
			TransitKeyID:     keyID,
			PeerID:           addr.PeerID,
			DestAddr:         addr.Addr,
			DueMS:            now,
			Stored:           true,
			Outgoing:         boolPtr(true),
			OutgoingChecked:  boolPtr(true),
			StrippedForSend:  boolPtr(true),
		})
	}
	return out, nil
}

// recipients resolves the set of addresses an event kind fans out to. The
// signer's own addresses are always excluded: an event never echoes back to
// the peer that created it.
func (h *OutgoingHandler) recipients(ctx context.Context, env *envelope.Envelope, st pipeline.Stores) ([]projection.Address, error) {
	kind := events.Kind(env.EventType)
	signer := str(env.EventPlaintext["peer_id"])

	switch kind {
	case events.KindIdentity, events.KindTransitSecret:
		return nil, nil

	case events.KindKey, events.KindSyncRequest:
		if env.PeerID == "" || env.PeerID == signer {
			return nil, nil
		}
		addrs, err := st.Projection.AddressesByPeer(ctx, env.PeerID)
		if err != nil {
			return nil, pipelineerr.Wrap(pipelineerr.KindInternal, "list recipient addresses", err)
		}
		return addrs, nil

	case events.KindChannel, events.KindMember, events.KindMessage:
		groupID := str(env.EventPlaintext["group_id"])
		members, err := st.Projection.Members(ctx, groupID)
		if err != nil {
			return nil, pipelineerr.Wrap(pipelineerr.KindInternal, "list group members", err)
		}
		var addrs []projection.Address
		for _, m := range members {
			if m.PeerID == signer {
				continue
			}
			more, err := st.Projection.AddressesByPeer(ctx, m.PeerID)
			if err != nil {
				return nil, pipelineerr.Wrap(pipelineerr.KindInternal, "list member addresses", err)
			}
			addrs = append(addrs, more...)
		}
		return addrs, nil

	default:
		// Bootstrap/metadata kinds (peer, network, group, user, invite,
		// address) fan out to every known address in the network.
		all, err := st.Projection.AddressesByNetwork(ctx, env.NetworkID)
		if err != nil {
			return nil, pipelineerr.Wrap(pipelineerr.KindInternal, "list network addresses", err)
		}
		addrs := all[:0]
		for _, a := range all {
			if a.PeerID != signer {
				addrs = append(addrs, a)
			}
		}
		return addrs, nil
	}
}
