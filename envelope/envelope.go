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

// Package envelope defines the mutable record that flows through the
// pipeline's handler chain. The Handler contract each stage implements
// lives in package pipeline, which depends on both envelope and store.
package envelope

// Envelope carries event-related data through the pipeline. Handlers read
// and mutate an Envelope in place as it moves from the wire to storage (or
// from a command to the wire).
type Envelope struct {
	// Raw data as received from the network.
	OriginAddr string
	ReceivedAt int64
	RawData    []byte

	// After transit-layer decryption.
	TransitKeyID      [16]byte
	TransitCiphertext []byte
	TransitPlaintext  []byte
	NetworkID         string

	// Event layer: a group symmetric key, or a seal to a peer's identity key.
	EventKeyID      string
	EventCiphertext []byte
	EventPlaintext  map[string]interface{}
	EventID         string // BLAKE2b-128 of EventCiphertext
	EventType       string

	// Causal dependencies, as "type:id" strings (or "@generated:type:index"
	// placeholders before resolution).
	Deps                 []string
	DepsIncludedAndValid bool
	MissingDeps          []string
	IncludedDeps         map[string]*Envelope
	Unblocked            bool

	// Validation states. Pointers distinguish "not yet checked" (nil) from
	// an explicit pass/fail verdict.
	ShouldRemove  *bool
	SigChecked    *bool
	IsGroupMember *bool
	Prevalidated  *bool
	Validated     *bool
	Projected     *bool
	Stored        bool

	// Set when this envelope originates locally rather than from the wire.
	SelfCreated *bool
	SelfSigned  *bool

	// Outgoing path: signed/encrypted event headed back out to a peer.
	Outgoing        *bool
	DueMS           int64
	AddressID       string
	UserID          string
	PeerID          string
	KeyID           string
	DestAddr        string
	OutgoingChecked *bool
	StrippedForSend *bool

	// Correlates every envelope produced by one orchestrator flow call.
	RequestID string

	Error      string
	RetryCount int
}

// HasPlaceholders reports whether any @generated:type:index sentinel
// remains in EventPlaintext or Deps. The runner drains all placeholder-free
// envelopes to a fixpoint before touching envelopes that still carry one.
func (e *Envelope) HasPlaceholders() bool {
	if containsPlaceholder(e.EventPlaintext) {
		return true
	}
	for _, d := range e.Deps {
		if isPlaceholder(d) {
			return true
		}
	}
	return false
}

func isPlaceholder(s string) bool {
	return len(s) > len(placeholderPrefix) && s[:len(placeholderPrefix)] == placeholderPrefix
}

const placeholderPrefix = "@generated:"

func containsPlaceholder(v interface{}) bool {
	switch val := v.(type) {
	case string:
		return isPlaceholder(val)
	case map[string]interface{}:
		for _, inner := range val {
			if containsPlaceholder(inner) {
				return true
			}
		}
		return false
	case []interface{}:
		for _, inner := range val {
			if containsPlaceholder(inner) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// boolPtr is a small convenience constructor used by handlers to set the
// Optional[bool]-style fields above.
func boolPtr(b bool) *bool { return &b }

// SetShouldRemove marks the envelope as one the runner must drop from the
// queue without emitting it further (wire format reject, stale replay, etc).
func (e *Envelope) SetShouldRemove(remove bool) { e.ShouldRemove = boolPtr(remove) }

// MarkValidated records a definitive pass/fail validation verdict.
func (e *Envelope) MarkValidated(ok bool) { e.Validated = boolPtr(ok) }
