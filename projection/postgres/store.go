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

// Package postgres is the pgx-backed projection.Store implementation, for
// deployments that also run store/postgres as their event store.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quietprotocol/quiet/events"
	"github.com/quietprotocol/quiet/internal/metrics"
)

// Store wraps a pgx connection pool holding the projection tables.
type Store struct {
	pool *pgxpool.Pool
}

// New opens a connection pool (or reuses one handed in by the caller) and
// runs the projection schema migration. It is deliberately symmetric with
// store/postgres.New rather than sharing a pool automatically, since a
// deployment may want the event log and the projections on separate
// databases.
func New(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS applied_events (
	event_id TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS identities (
	identity_id TEXT PRIMARY KEY,
	event_id    TEXT NOT NULL,
	name        TEXT NOT NULL,
	public_key  TEXT NOT NULL,
	created_at  BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS peers (
	peer_id     TEXT PRIMARY KEY,
	event_id    TEXT NOT NULL,
	public_key  TEXT NOT NULL,
	identity_id TEXT NOT NULL DEFAULT '',
	network_id  TEXT NOT NULL,
	username    TEXT NOT NULL DEFAULT '',
	created_at  BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS networks (
	network_id TEXT PRIMARY KEY,
	event_id   TEXT NOT NULL,
	name       TEXT NOT NULL,
	creator_id TEXT NOT NULL,
	created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS groups (
	group_id   TEXT PRIMARY KEY,
	event_id   TEXT NOT NULL,
	network_id TEXT NOT NULL,
	name       TEXT NOT NULL,
	creator_id TEXT NOT NULL,
	created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS groups_network_idx ON groups (network_id, created_at);

CREATE TABLE IF NOT EXISTS channels (
	channel_id TEXT PRIMARY KEY,
	event_id   TEXT NOT NULL,
	group_id   TEXT NOT NULL,
	network_id TEXT NOT NULL,
	name       TEXT NOT NULL,
	creator_id TEXT NOT NULL,
	created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS channels_group_idx ON channels (group_id, created_at);

CREATE TABLE IF NOT EXISTS users (
	user_id    TEXT PRIMARY KEY,
	event_id   TEXT NOT NULL,
	peer_id    TEXT NOT NULL,
	network_id TEXT NOT NULL,
	group_id   TEXT NOT NULL,
	name       TEXT NOT NULL,
	created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS members (
	member_id  TEXT PRIMARY KEY,
	event_id   TEXT NOT NULL,
	group_id   TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	action     TEXT NOT NULL,
	by_peer_id TEXT NOT NULL,
	network_id TEXT NOT NULL,
	created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS group_members (
	group_id TEXT NOT NULL,
	peer_id  TEXT NOT NULL,
	added_by TEXT NOT NULL,
	PRIMARY KEY (group_id, peer_id)
);

CREATE TABLE IF NOT EXISTS invites (
	invite_id       TEXT PRIMARY KEY,
	event_id        TEXT NOT NULL,
	invite_pubkey   TEXT NOT NULL,
	network_id      TEXT NOT NULL,
	group_id        TEXT NOT NULL,
	inviter_peer_id TEXT NOT NULL,
	created_at      BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS keys (
	key_id            TEXT PRIMARY KEY,
	event_id          TEXT NOT NULL,
	group_id          TEXT NOT NULL,
	sealed_secret     TEXT NOT NULL,
	sealed_to_peer_id TEXT NOT NULL,
	network_id        TEXT NOT NULL,
	created_at        BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	message_id TEXT PRIMARY KEY,
	event_id   TEXT NOT NULL,
	channel_id TEXT NOT NULL,
	group_id   TEXT NOT NULL,
	network_id TEXT NOT NULL,
	peer_id    TEXT NOT NULL,
	body       TEXT NOT NULL,
	sent_at    BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_channel_idx ON messages (channel_id, sent_at);

CREATE TABLE IF NOT EXISTS addresses (
	address_id TEXT PRIMARY KEY,
	event_id   TEXT NOT NULL,
	peer_id    TEXT NOT NULL,
	network_id TEXT NOT NULL,
	transport  TEXT NOT NULL,
	addr       TEXT NOT NULL,
	created_at BIGINT NOT NULL
);
`)
	return err
}

// Apply implements projection.Store.
func (s *Store) Apply(ctx context.Context, eventID string, deltas []events.Delta) error {
	start := time.Now()
	defer func() { metrics.ProjectionApplyDuration.Observe(time.Since(start).Seconds()) }()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin projection tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var already bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM applied_events WHERE event_id = $1)`, eventID).Scan(&already); err != nil {
		return fmt.Errorf("check applied: %w", err)
	}
	if already {
		return nil
	}

	for _, d := range deltas {
		if err := applyDelta(ctx, tx, d); err != nil {
			return fmt.Errorf("apply delta on %s: %w", d.Table, err)
		}
	}

	if _, err := tx.Exec(ctx, `INSERT INTO applied_events (event_id) VALUES ($1)`, eventID); err != nil {
		return fmt.Errorf("mark applied: %w", err)
	}
	return tx.Commit(ctx)
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
