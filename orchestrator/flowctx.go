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

// Package orchestrator turns one client request into a short sequence of
// emitted events plus a read-back response.
// A flow never touches storage directly: every write goes through
// FlowCtx.emitEvent and the pipeline.Runner it wraps, and every read goes
// through the same projection.Store the rest of the pipeline uses.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/quietprotocol/quiet/envelope"
	"github.com/quietprotocol/quiet/pipeline"
	"github.com/quietprotocol/quiet/store"
)

// FlowCtx is the context one orchestrator call runs under: a runner to
// drive events through, the storage surfaces a flow's response-shaping step
// reads back from, and the request id every envelope the flow emits carries
// for correlation. Flows are registered as func(ctx *FlowCtx, params
// map[string]any) (Result, error) rather than taking a context.Context
// parameter of their own, so FlowCtx carries one itself; every call site
// constructs a fresh FlowCtx per request, so this is no different in
// practice from threading ctx through an ordinary parameter.
type FlowCtx struct {
	ctx       context.Context
	runner    *pipeline.Runner
	stores    pipeline.Stores
	requestID string
}

// NewFlowCtx builds the context a single orchestrator call runs under.
func NewFlowCtx(ctx context.Context, runner *pipeline.Runner, stores pipeline.Stores, requestID string) *FlowCtx {
	return &FlowCtx{ctx: ctx, runner: runner, stores: stores, requestID: requestID}
}

// RequestID returns the id correlating every envelope this call emits.
func (fc *FlowCtx) RequestID() string { return fc.requestID }

// Stores exposes the read-only storage surfaces a flow's response-shaping
// step needs after emitting its events.
func (fc *FlowCtx) Stores() pipeline.Stores { return fc.stores }

// Result is what a flow hands back to its caller: the ids of the events it
// emitted, keyed by event type, and whatever read-back data the flow's
// response shaping step assembled.
type Result struct {
	IDs  map[string]string
	Data map[string]interface{}
}

// emitOptions carries the envelope-level fields emitEvent needs beyond the
// event's own plaintext content. Unexported: flows in this package call
// emitEvent directly rather than going through any public builder, since
// there is no caller of this package that constructs events itself.
type emitOptions struct {
	by         string   // acting peer_id; also copied into fields["peer_id"] for uniform signing
	deps       []string
	networkID  string
	outgoing   bool
	sealTo     string // recipient peer_id for PolicySealed kinds (key, sync_request)
	eventKeyID string // group id for PolicyGroupKey kinds (channel, member, message)
	eventID    string // pre-assigned id for bypass kinds (identity, peer)
}

// emitEvent builds a single self-created envelope from fields plus opts,
// drives it through the pipeline to a fixpoint, and returns the id the
// pipeline assigned to the stored event. fields is mutated in place (type
// and peer_id are injected) since every caller constructs it fresh for
// this one call.
//
// Two bypass kinds need eventID set ahead of time: identity and peer derive
// their event id from their own public key rather than from ciphertext
// (handlers treats them as content-hash bypass kinds), so the crypto handler never assigns one
// on their behalf. Every other kind leaves eventID empty and lets the
// pipeline's crypto handler derive it from the sealed/encrypted ciphertext.
func (fc *FlowCtx) emitEvent(eventType string, fields map[string]interface{}, opts emitOptions) (string, error) {
	fields["type"] = eventType
	// Only inject peer_id when the event's own data doesn't already carry
	// one: kinds like peer/user/message/key/address set their own peer_id
	// as a real data field (sometimes to a different identity than the
	// signer, as with peer's own freshly-minted id), and must not have it
	// clobbered by the acting signer's id. Kinds with no peer_id field of
	// their own (network, group, channel, member, invite) get one injected
	// here purely so the signature handler's uniform fields["peer_id"]
	// lookup has a verification key to check, regardless of what that
	// kind's own domain field for the signer happens to be named
	// (creator_id, by_peer_id, inviter_peer_id).
	if opts.by != "" {
		if _, exists := fields["peer_id"]; !exists {
			fields["peer_id"] = opts.by
		}
	}
	if _, ok := fields["signature"]; !ok {
		fields["signature"] = ""
	}

	deps := opts.deps
	if deps == nil {
		deps = []string{}
	}

	env := &envelope.Envelope{
		EventType:      eventType,
		EventPlaintext: fields,
		Deps:           deps,
		NetworkID:      opts.networkID,
		SelfCreated:    boolPtr(true),
		RequestID:      fc.requestID,
		EventKeyID:     opts.eventKeyID,
		PeerID:         opts.sealTo,
		EventID:        opts.eventID,
	}
	if opts.outgoing {
		env.Outgoing = boolPtr(true)
	}

	result, err := fc.runner.Run(fc.ctx, []*envelope.Envelope{env}, fc.stores)
	if err != nil {
		return "", fmt.Errorf("orchestrator: emit %s: %w", eventType, err)
	}
	if id, ok := result.StoredIDs[eventType]; ok {
		return id, nil
	}
	if env.EventID != "" {
		return env.EventID, nil
	}
	return "", fmt.Errorf("orchestrator: emit %s: pipeline produced no stored id", eventType)
}

// putSecret writes a local-only secret through to the secret store, used by
// flows that mint a fresh identity key or group key (the only two places an
// orchestrator flow ever needs to write outside the event pipeline itself).
func (fc *FlowCtx) putSecret(kind, secretID string, value []byte) error {
	return fc.stores.Secrets.PutSecret(fc.ctx, &store.Secret{
		SecretID:  secretID,
		Kind:      kind,
		Value:     value,
		CreatedAt: time.Now(),
	})
}

func boolPtr(b bool) *bool { return &b }
