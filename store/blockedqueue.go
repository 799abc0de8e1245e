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
	"sync"

	"github.com/quietprotocol/quiet/envelope"
)

// BlockedQueue holds envelopes the resolver handler could not admit because
// one or more of their declared dependencies are not yet stored. It is
// indexed two ways: by the envelope's own identity, and by each missing
// dependency key, so that storing a single event can cheaply find every
// envelope it unblocks.
//
// BlockedQueue owns its map and mutex outright and is always built through
// NewBlockedQueue, mirroring the manager-owns-its-map shape used for session tracking:
// no package-level state, no singleton.
type BlockedQueue struct {
	mu sync.RWMutex

	// waiting maps a missing dependency key ("type:id") to every envelope
	// still blocked on it.
	waiting map[string][]*envelope.Envelope

	// depsOf maps an envelope to the set of dependency keys it is still
	// waiting on, so a partially-satisfied envelope isn't re-admitted
	// until all of its deps have cleared.
	depsOf map[*envelope.Envelope]map[string]bool
}

// NewBlockedQueue constructs an empty queue.
func NewBlockedQueue() *BlockedQueue {
	return &BlockedQueue{
		waiting: make(map[string][]*envelope.Envelope),
		depsOf:  make(map[*envelope.Envelope]map[string]bool),
	}
}

// Block registers env as waiting on missingDeps. Calling Block again for an
// envelope already tracked replaces its prior wait set.
func (q *BlockedQueue) Block(env *envelope.Envelope, missingDeps []string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.unlockedRemove(env)

	set := make(map[string]bool, len(missingDeps))
	for _, dep := range missingDeps {
		set[dep] = true
		q.waiting[dep] = append(q.waiting[dep], env)
	}
	q.depsOf[env] = set
}

// Satisfy records that depKey is now available and returns every envelope
// that is now fully unblocked (all of its dependencies satisfied), removing
// them from the queue. Envelopes still waiting on other deps remain tracked
// under those deps only.
func (q *BlockedQueue) Satisfy(depKey string) []*envelope.Envelope {
	q.mu.Lock()
	defer q.mu.Unlock()

	waiters := q.waiting[depKey]
	delete(q.waiting, depKey)

	var unblocked []*envelope.Envelope
	for _, env := range waiters {
		set := q.depsOf[env]
		if set == nil {
			continue
		}
		delete(set, depKey)
		if len(set) == 0 {
			delete(q.depsOf, env)
			unblocked = append(unblocked, env)
		}
	}
	return unblocked
}

// Len reports how many distinct envelopes are currently blocked.
func (q *BlockedQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.depsOf)
}

// Remove drops env from the queue entirely, e.g. when the runner decides to
// discard it (ShouldRemove) instead of waiting further.
func (q *BlockedQueue) Remove(env *envelope.Envelope) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.unlockedRemove(env)
}

func (q *BlockedQueue) unlockedRemove(env *envelope.Envelope) {
	set, ok := q.depsOf[env]
	if !ok {
		return
	}
	for dep := range set {
		q.waiting[dep] = removeEnvelope(q.waiting[dep], env)
		if len(q.waiting[dep]) == 0 {
			delete(q.waiting, dep)
		}
	}
	delete(q.depsOf, env)
}

func removeEnvelope(list []*envelope.Envelope, target *envelope.Envelope) []*envelope.Envelope {
	out := list[:0]
	for _, e := range list {
		if e != target {
			out = append(out, e)
		}
	}
	return out
}
