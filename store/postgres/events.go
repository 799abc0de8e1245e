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

package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quietprotocol/quiet/internal/metrics"
	"github.com/quietprotocol/quiet/store"
)

// Put implements store.EventStore.
func (s *Store) Put(ctx context.Context, ev *store.StoredEvent) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO events (event_id, event_type, ciphertext, network_id, deps, request_id)
VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.EventID, ev.EventType, ev.Ciphertext, ev.NetworkID, ev.Deps, ev.RequestID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			metrics.EventsDuplicate.Inc()
			return store.ErrDuplicate
		}
		return err
	}
	metrics.EventsStored.WithLabelValues(ev.EventType).Inc()
	return nil
}

// Get implements store.EventStore.
func (s *Store) Get(ctx context.Context, eventID string) (*store.StoredEvent, error) {
	row := s.pool.QueryRow(ctx, `
SELECT event_id, event_type, ciphertext, network_id, deps, request_id, created_at
FROM events WHERE event_id = $1`, eventID)

	ev := &store.StoredEvent{}
	if err := row.Scan(&ev.EventID, &ev.EventType, &ev.Ciphertext, &ev.NetworkID, &ev.Deps, &ev.RequestID, &ev.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return ev, nil
}

// Has implements store.EventStore.
func (s *Store) Has(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM events WHERE event_id = $1)`, eventID).Scan(&exists)
	return exists, err
}

// MissingDeps implements store.EventStore.
func (s *Store) MissingDeps(ctx context.Context, deps []string) ([]string, error) {
	var missing []string
	for _, dep := range deps {
		_, eventID := splitDepKey(dep)
		ok, err := s.Has(ctx, eventID)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, dep)
		}
	}
	return missing, nil
}

// ListByType implements store.EventStore.
func (s *Store) ListByType(ctx context.Context, eventType string) ([]*store.StoredEvent, error) {
	rows, err := s.pool.Query(ctx, `
SELECT event_id, event_type, ciphertext, network_id, deps, request_id, created_at
FROM events WHERE event_type = $1 ORDER BY created_at ASC`, eventType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*store.StoredEvent
	for rows.Next() {
		ev := &store.StoredEvent{}
		if err := rows.Scan(&ev.EventID, &ev.EventType, &ev.Ciphertext, &ev.NetworkID, &ev.Deps, &ev.RequestID, &ev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func splitDepKey(dep string) (eventType, eventID string) {
	idx := strings.IndexByte(dep, ':')
	if idx < 0 {
		return "", dep
	}
	return dep[:idx], dep[idx+1:]
}
