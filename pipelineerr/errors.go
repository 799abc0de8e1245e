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

// Package pipelineerr classifies the ways a handler can reject an envelope,
// so callers can decide whether to drop it, retry it, or surface it to an
// operator without string-matching error text.
package pipelineerr

import "fmt"

// Kind classifies why a handler rejected an envelope.
type Kind int

const (
	// KindMissingDep means one or more declared dependencies are not yet
	// stored; the envelope belongs in the blocked queue, not discarded.
	KindMissingDep Kind = iota
	// KindInvalidSignature means the Ed25519 signature over the
	// canonicalized event did not verify.
	KindInvalidSignature
	// KindMalformed means the event failed to decode, or is missing a
	// required field for its declared type.
	KindMalformed
	// KindAuth means the sender is not a current member of the group the
	// event claims to belong to.
	KindAuth
	// KindDuplicate means the event's content-addressed id is already
	// stored.
	KindDuplicate
	// KindInternal means a handler failed for a reason unrelated to the
	// envelope's own content (storage unavailable, crypto primitive
	// failure, etc).
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindMissingDep:
		return "missing_dep"
	case KindInvalidSignature:
		return "invalid_signature"
	case KindMalformed:
		return "malformed"
	case KindAuth:
		return "auth"
	case KindDuplicate:
		return "duplicate"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error wraps a Kind, a human-readable message, and an optional underlying
// cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error carrying cause as its Unwrap target.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}
