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

// Package memory is an in-process EventStore/SecretStore backed by maps
// guarded by a mutex, for tests and for single-process daemon runs that
// don't need Postgres.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/quietprotocol/quiet/internal/metrics"
	"github.com/quietprotocol/quiet/store"
)

// Store implements store.EventStore and store.SecretStore with copy-on-write
// map access: every Get/List returns a defensive copy so callers can't
// mutate state behind the mutex's back.
type Store struct {
	eventsMu sync.RWMutex
	events   map[string]*store.StoredEvent
	byType   map[string][]string // event type -> ordered event ids

	secretsMu sync.RWMutex
	secrets   map[string]*store.Secret
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		events:  make(map[string]*store.StoredEvent),
		byType:  make(map[string][]string),
		secrets: make(map[string]*store.Secret),
	}
}

// Put implements store.EventStore.
func (s *Store) Put(_ context.Context, ev *store.StoredEvent) error {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()

	if _, exists := s.events[ev.EventID]; exists {
		metrics.EventsDuplicate.Inc()
		return store.ErrDuplicate
	}

	cp := *ev
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.events[ev.EventID] = &cp
	s.byType[ev.EventType] = append(s.byType[ev.EventType], ev.EventID)
	metrics.EventsStored.WithLabelValues(ev.EventType).Inc()
	return nil
}

// Get implements store.EventStore.
func (s *Store) Get(_ context.Context, eventID string) (*store.StoredEvent, error) {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()

	ev, ok := s.events[eventID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

// Has implements store.EventStore.
func (s *Store) Has(_ context.Context, eventID string) (bool, error) {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	_, ok := s.events[eventID]
	return ok, nil
}

// MissingDeps implements store.EventStore.
func (s *Store) MissingDeps(_ context.Context, deps []string) ([]string, error) {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()

	var missing []string
	for _, dep := range deps {
		_, eventID := splitDepKey(dep)
		if _, ok := s.events[eventID]; !ok {
			missing = append(missing, dep)
		}
	}
	return missing, nil
}

// ListByType implements store.EventStore.
func (s *Store) ListByType(_ context.Context, eventType string) ([]*store.StoredEvent, error) {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()

	ids := s.byType[eventType]
	out := make([]*store.StoredEvent, 0, len(ids))
	for _, id := range ids {
		cp := *s.events[id]
		out = append(out, &cp)
	}
	return out, nil
}

// PutSecret implements store.SecretStore.
func (s *Store) PutSecret(_ context.Context, secret *store.Secret) error {
	s.secretsMu.Lock()
	defer s.secretsMu.Unlock()

	cp := *secret
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.secrets[secret.SecretID] = &cp
	return nil
}

// GetSecret implements store.SecretStore.
func (s *Store) GetSecret(_ context.Context, secretID string) (*store.Secret, error) {
	s.secretsMu.RLock()
	defer s.secretsMu.RUnlock()

	secret, ok := s.secrets[secretID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *secret
	return &cp, nil
}

// Close is a no-op for the in-memory backend.
func (s *Store) Close() error { return nil }

// splitDepKey splits a "type:id" dependency key. The type half is unused
// since event ids are globally unique; the Postgres backend likewise looks
// dependencies up by event id alone.
func splitDepKey(dep string) (eventType, eventID string) {
	for i := 0; i < len(dep); i++ {
		if dep[i] == ':' {
			return dep[:i], dep[i+1:]
		}
	}
	return "", dep
}
