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

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quietprotocol/quiet/envelope"
)

func TestBlockedQueueReleasesOnlyFullySatisfiedEnvelopes(t *testing.T) {
	q := NewBlockedQueue()

	one := &envelope.Envelope{EventID: "one"}
	two := &envelope.Envelope{EventID: "two"}
	q.Block(one, []string{"peer:a", "channel:b"})
	q.Block(two, []string{"peer:a"})
	assert.Equal(t, 2, q.Len())

	released := q.Satisfy("peer:a")
	assert.Equal(t, []*envelope.Envelope{two}, released)
	assert.Equal(t, 1, q.Len())

	released = q.Satisfy("channel:b")
	assert.Equal(t, []*envelope.Envelope{one}, released)
	assert.Equal(t, 0, q.Len())
}

func TestBlockedQueueSatisfyUnknownDepReleasesNothing(t *testing.T) {
	q := NewBlockedQueue()
	q.Block(&envelope.Envelope{EventID: "one"}, []string{"peer:a"})

	assert.Empty(t, q.Satisfy("peer:unrelated"))
	assert.Equal(t, 1, q.Len())
}

func TestBlockedQueueReblockReplacesWaitSet(t *testing.T) {
	q := NewBlockedQueue()
	env := &envelope.Envelope{EventID: "one"}

	q.Block(env, []string{"peer:a"})
	q.Block(env, []string{"channel:b"})

	assert.Empty(t, q.Satisfy("peer:a"), "stale dep must not release after re-block")
	released := q.Satisfy("channel:b")
	assert.Equal(t, []*envelope.Envelope{env}, released)
}

func TestBlockedQueueRemoveDropsAllIndexEntries(t *testing.T) {
	q := NewBlockedQueue()
	env := &envelope.Envelope{EventID: "one"}

	q.Block(env, []string{"peer:a", "channel:b"})
	q.Remove(env)

	assert.Equal(t, 0, q.Len())
	assert.Empty(t, q.Satisfy("peer:a"))
	assert.Empty(t, q.Satisfy("channel:b"))
}
