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
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/quietprotocol/quiet/events"
	"github.com/quietprotocol/quiet/projection"
)

// applyDelta dispatches one events.Delta to the table-specific SQL it
// implies. Tables events.Project never emits a delta for (sync_request,
// transit_secret) simply never reach here.
func applyDelta(ctx context.Context, tx pgx.Tx, d events.Delta) error {
	switch d.Table {
	case "identities":
		_, err := tx.Exec(ctx, `
INSERT INTO identities (identity_id, event_id, name, public_key, created_at)
VALUES ($1,$2,$3,$4,$5) ON CONFLICT (identity_id) DO NOTHING`,
			d.Data["identity_id"], d.Data["event_id"], d.Data["name"], d.Data["public_key"], d.Data["created_at"])
		return err
	case "peers":
		_, err := tx.Exec(ctx, `
INSERT INTO peers (peer_id, event_id, public_key, identity_id, network_id, username, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) ON CONFLICT (peer_id) DO NOTHING`,
			d.Data["peer_id"], d.Data["event_id"], d.Data["public_key"], d.Data["identity_id"],
			d.Data["network_id"], d.Data["username"], d.Data["created_at"])
		return err
	case "networks":
		_, err := tx.Exec(ctx, `
INSERT INTO networks (network_id, event_id, name, creator_id, created_at)
VALUES ($1,$2,$3,$4,$5) ON CONFLICT (network_id) DO NOTHING`,
			d.Data["network_id"], d.Data["event_id"], d.Data["name"], d.Data["creator_id"], d.Data["created_at"])
		return err
	case "groups":
		_, err := tx.Exec(ctx, `
INSERT INTO groups (group_id, event_id, network_id, name, creator_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (group_id) DO NOTHING`,
			d.Data["group_id"], d.Data["event_id"], d.Data["network_id"], d.Data["name"],
			d.Data["creator_id"], d.Data["created_at"])
		return err
	case "channels":
		_, err := tx.Exec(ctx, `
INSERT INTO channels (channel_id, event_id, group_id, network_id, name, creator_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) ON CONFLICT (channel_id) DO NOTHING`,
			d.Data["channel_id"], d.Data["event_id"], d.Data["group_id"], d.Data["network_id"],
			d.Data["name"], d.Data["creator_id"], d.Data["created_at"])
		return err
	case "users":
		_, err := tx.Exec(ctx, `
INSERT INTO users (user_id, event_id, peer_id, network_id, group_id, name, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) ON CONFLICT (user_id) DO NOTHING`,
			d.Data["user_id"], d.Data["event_id"], d.Data["peer_id"], d.Data["network_id"],
			d.Data["group_id"], d.Data["name"], d.Data["created_at"])
		return err
	case "members":
		_, err := tx.Exec(ctx, `
INSERT INTO members (member_id, event_id, group_id, user_id, action, by_peer_id, network_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) ON CONFLICT (member_id) DO NOTHING`,
			d.Data["member_id"], d.Data["event_id"], d.Data["group_id"], d.Data["user_id"],
			d.Data["action"], d.Data["by_peer_id"], d.Data["network_id"], d.Data["created_at"])
		return err
	case "group_members":
		return applyGroupMembersDelta(ctx, tx, d)
	case "invites":
		_, err := tx.Exec(ctx, `
INSERT INTO invites (invite_id, event_id, invite_pubkey, network_id, group_id, inviter_peer_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) ON CONFLICT (invite_id) DO NOTHING`,
			d.Data["invite_id"], d.Data["event_id"], d.Data["invite_pubkey"], d.Data["network_id"],
			d.Data["group_id"], d.Data["inviter_peer_id"], d.Data["created_at"])
		return err
	case "keys":
		_, err := tx.Exec(ctx, `
INSERT INTO keys (key_id, event_id, group_id, sealed_secret, sealed_to_peer_id, network_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) ON CONFLICT (key_id) DO NOTHING`,
			d.Data["key_id"], d.Data["event_id"], d.Data["group_id"], d.Data["sealed_secret"],
			d.Data["sealed_to_peer_id"], d.Data["network_id"], d.Data["created_at"])
		return err
	case "messages":
		_, err := tx.Exec(ctx, `
INSERT INTO messages (message_id, event_id, channel_id, group_id, network_id, peer_id, body, sent_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) ON CONFLICT (message_id) DO NOTHING`,
			d.Data["message_id"], d.Data["event_id"], d.Data["channel_id"], d.Data["group_id"],
			d.Data["network_id"], d.Data["peer_id"], d.Data["body"], d.Data["sent_at"])
		return err
	case "addresses":
		return applyAddressesDelta(ctx, tx, d)
	default:
		return fmt.Errorf("unknown projection table %q", d.Table)
	}
}

func applyGroupMembersDelta(ctx context.Context, tx pgx.Tx, d events.Delta) error {
	switch d.Op {
	case events.OpInsert:
		peerID, _ := d.Data["peer_id"].(string)
		if peerID == "" {
			if userID, ok := d.Data["user_id"].(string); ok {
				if err := tx.QueryRow(ctx, `SELECT peer_id FROM users WHERE user_id = $1`, userID).Scan(&peerID); err != nil {
					return fmt.Errorf("resolve user_id to peer_id: %w", err)
				}
			}
		}
		_, err := tx.Exec(ctx, `
INSERT INTO group_members (group_id, peer_id, added_by) VALUES ($1,$2,$3)
ON CONFLICT (group_id, peer_id) DO NOTHING`,
			d.Data["group_id"], peerID, d.Data["added_by"])
		return err
	case events.OpDelete:
		peerID, _ := d.Where["peer_id"].(string)
		if peerID == "" {
			if userID, ok := d.Where["user_id"].(string); ok {
				if err := tx.QueryRow(ctx, `SELECT peer_id FROM users WHERE user_id = $1`, userID).Scan(&peerID); err != nil {
					return fmt.Errorf("resolve user_id to peer_id: %w", err)
				}
			}
		}
		_, err := tx.Exec(ctx, `DELETE FROM group_members WHERE group_id = $1 AND peer_id = $2`,
			d.Where["group_id"], peerID)
		return err
	default:
		return fmt.Errorf("unsupported op %q on group_members", d.Op)
	}
}

func applyAddressesDelta(ctx context.Context, tx pgx.Tx, d events.Delta) error {
	switch d.Op {
	case events.OpInsert:
		_, err := tx.Exec(ctx, `
INSERT INTO addresses (address_id, event_id, peer_id, network_id, transport, addr, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) ON CONFLICT (address_id) DO NOTHING`,
			d.Data["address_id"], d.Data["event_id"], d.Data["peer_id"], d.Data["network_id"],
			d.Data["transport"], d.Data["addr"], d.Data["created_at"])
		return err
	case events.OpDelete:
		_, err := tx.Exec(ctx, `
DELETE FROM addresses WHERE peer_id = $1 AND transport = $2 AND addr = $3`,
			d.Where["peer_id"], d.Where["transport"], d.Where["addr"])
		return err
	default:
		return fmt.Errorf("unsupported op %q on addresses", d.Op)
	}
}

// Groups implements projection.Store.
func (s *Store) Groups(ctx context.Context, networkID string) ([]projection.Group, error) {
	rows, err := s.pool.Query(ctx, `
SELECT group_id, network_id, name, creator_id, created_at FROM groups
WHERE network_id = $1 ORDER BY created_at ASC`, networkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []projection.Group
	for rows.Next() {
		var g projection.Group
		if err := rows.Scan(&g.GroupID, &g.NetworkID, &g.Name, &g.CreatorID, &g.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Channels implements projection.Store.
func (s *Store) Channels(ctx context.Context, groupID string) ([]projection.Channel, error) {
	rows, err := s.pool.Query(ctx, `
SELECT channel_id, group_id, network_id, name, creator_id, created_at FROM channels
WHERE group_id = $1 ORDER BY created_at ASC`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []projection.Channel
	for rows.Next() {
		var c projection.Channel
		if err := rows.Scan(&c.ChannelID, &c.GroupID, &c.NetworkID, &c.Name, &c.CreatorID, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Members implements projection.Store.
func (s *Store) Members(ctx context.Context, groupID string) ([]projection.Member, error) {
	rows, err := s.pool.Query(ctx, `
SELECT group_id, peer_id, added_by FROM group_members WHERE group_id = $1 ORDER BY peer_id ASC`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []projection.Member
	for rows.Next() {
		var m projection.Member
		if err := rows.Scan(&m.GroupID, &m.PeerID, &m.AddedBy); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// IsMember implements projection.Store.
func (s *Store) IsMember(ctx context.Context, groupID, peerID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id = $1 AND peer_id = $2)`,
		groupID, peerID).Scan(&exists)
	return exists, err
}

// Messages implements projection.Store.
func (s *Store) Messages(ctx context.Context, channelID string, limit int) ([]projection.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
SELECT message_id, channel_id, group_id, network_id, peer_id, body, sent_at FROM (
	SELECT * FROM messages WHERE channel_id = $1 ORDER BY sent_at DESC LIMIT $2
) recent ORDER BY sent_at ASC`, channelID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []projection.Message
	for rows.Next() {
		var m projection.Message
		if err := rows.Scan(&m.MessageID, &m.ChannelID, &m.GroupID, &m.NetworkID, &m.PeerID, &m.Body, &m.SentAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// PeerByID implements projection.Store.
func (s *Store) PeerByID(ctx context.Context, peerID string) (*projection.Peer, error) {
	var p projection.Peer
	err := s.pool.QueryRow(ctx, `
SELECT peer_id, public_key, identity_id, network_id, username, created_at FROM peers WHERE peer_id = $1`,
		peerID).Scan(&p.PeerID, &p.PublicKey, &p.IdentityID, &p.NetworkID, &p.Username, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// IsPeerOfNetwork implements projection.Store.
func (s *Store) IsPeerOfNetwork(ctx context.Context, networkID, peerID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM peers WHERE peer_id = $1 AND (network_id = '' OR network_id = $2))`,
		peerID, networkID).Scan(&exists)
	return exists, err
}

// AddressesByPeer implements projection.Store.
func (s *Store) AddressesByPeer(ctx context.Context, peerID string) ([]projection.Address, error) {
	rows, err := s.pool.Query(ctx, `
SELECT address_id, peer_id, network_id, transport, addr, created_at FROM addresses
WHERE peer_id = $1 ORDER BY created_at ASC`, peerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAddresses(rows)
}

// AddressesByNetwork implements projection.Store.
func (s *Store) AddressesByNetwork(ctx context.Context, networkID string) ([]projection.Address, error) {
	rows, err := s.pool.Query(ctx, `
SELECT address_id, peer_id, network_id, transport, addr, created_at FROM addresses
WHERE network_id = $1 ORDER BY address_id ASC`, networkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAddresses(rows)
}

func scanAddresses(rows pgx.Rows) ([]projection.Address, error) {
	var out []projection.Address
	for rows.Next() {
		var a projection.Address
		if err := rows.Scan(&a.AddressID, &a.PeerID, &a.NetworkID, &a.Transport, &a.Addr, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UserByID implements projection.Store.
func (s *Store) UserByID(ctx context.Context, userID string) (*projection.User, error) {
	var u projection.User
	err := s.pool.QueryRow(ctx, `
SELECT user_id, peer_id, network_id, group_id, name, created_at FROM users WHERE user_id = $1`,
		userID).Scan(&u.UserID, &u.PeerID, &u.NetworkID, &u.GroupID, &u.Name, &u.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
