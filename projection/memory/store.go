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

// Package memory is an in-process projection.Store backed by maps guarded
// by a mutex, mirroring store/memory's copy-on-write style: every read
// returns a defensive copy so callers can't mutate projected state behind
// the mutex's back.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quietprotocol/quiet/events"
	"github.com/quietprotocol/quiet/internal/metrics"
	"github.com/quietprotocol/quiet/projection"
)

// Store implements projection.Store with plain Go maps. It keeps one table
// per entity plus small secondary indexes, and tracks applied event ids so
// Apply is idempotent under redelivery.
type Store struct {
	mu sync.RWMutex

	applied map[string]bool

	peers    map[string]*projection.Peer
	users    map[string]*projection.User
	groups   map[string]*projection.Group
	channels map[string]*projection.Channel

	// groupMembers indexes group_members rows by group id, each entry a
	// peer id currently in the group.
	groupMembers map[string]map[string]bool

	// channelsByGroup and messagesByChannel preserve insertion order for
	// stable listing.
	channelsByGroup   map[string][]string
	messagesByChannel map[string][]*projection.Message
	groupsByNetwork   map[string][]string

	// addressesByPeer holds each peer's currently announced addresses, in
	// announcement order, withdrawn entries removed.
	addressesByPeer map[string][]*projection.Address
}

// New constructs an empty in-memory projection store.
func New() *Store {
	return &Store{
		applied:           make(map[string]bool),
		peers:             make(map[string]*projection.Peer),
		users:             make(map[string]*projection.User),
		groups:            make(map[string]*projection.Group),
		channels:          make(map[string]*projection.Channel),
		groupMembers:      make(map[string]map[string]bool),
		channelsByGroup:   make(map[string][]string),
		messagesByChannel: make(map[string][]*projection.Message),
		groupsByNetwork:   make(map[string][]string),
		addressesByPeer:   make(map[string][]*projection.Address),
	}
}

// Apply implements projection.Store.
func (s *Store) Apply(_ context.Context, eventID string, deltas []events.Delta) error {
	start := time.Now()
	defer func() { metrics.ProjectionApplyDuration.Observe(time.Since(start).Seconds()) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.applied[eventID] {
		return nil
	}
	for _, d := range deltas {
		if err := s.applyOne(d); err != nil {
			return err
		}
	}
	s.applied[eventID] = true
	return nil
}

func (s *Store) applyOne(d events.Delta) error {
	switch d.Table {
	case "peers":
		if d.Op == events.OpInsert {
			p := &projection.Peer{
				PeerID:     str(d.Data["peer_id"]),
				PublicKey:  str(d.Data["public_key"]),
				IdentityID: str(d.Data["identity_id"]),
				NetworkID:  str(d.Data["network_id"]),
				Username:   str(d.Data["username"]),
				CreatedAt:  i64(d.Data["created_at"]),
			}
			s.peers[p.PeerID] = p
		}
	case "users":
		if d.Op == events.OpInsert {
			u := &projection.User{
				UserID:    str(d.Data["user_id"]),
				PeerID:    str(d.Data["peer_id"]),
				NetworkID: str(d.Data["network_id"]),
				GroupID:   str(d.Data["group_id"]),
				Name:      str(d.Data["name"]),
				CreatedAt: i64(d.Data["created_at"]),
			}
			s.users[u.UserID] = u
		}
	case "groups":
		if d.Op == events.OpInsert {
			g := &projection.Group{
				GroupID:   str(d.Data["group_id"]),
				NetworkID: str(d.Data["network_id"]),
				Name:      str(d.Data["name"]),
				CreatorID: str(d.Data["creator_id"]),
				CreatedAt: i64(d.Data["created_at"]),
			}
			s.groups[g.GroupID] = g
			s.groupsByNetwork[g.NetworkID] = append(s.groupsByNetwork[g.NetworkID], g.GroupID)
		}
	case "channels":
		if d.Op == events.OpInsert {
			c := &projection.Channel{
				ChannelID: str(d.Data["channel_id"]),
				GroupID:   str(d.Data["group_id"]),
				NetworkID: str(d.Data["network_id"]),
				Name:      str(d.Data["name"]),
				CreatorID: str(d.Data["creator_id"]),
				CreatedAt: i64(d.Data["created_at"]),
			}
			s.channels[c.ChannelID] = c
			s.channelsByGroup[c.GroupID] = append(s.channelsByGroup[c.GroupID], c.ChannelID)
		}
	case "group_members":
		switch d.Op {
		case events.OpInsert:
			groupID := str(d.Data["group_id"])
			peerID := str(d.Data["peer_id"])
			if peerID == "" {
				// member.create path resolves via user_id; look up the
				// user's peer_id since group_members indexes by peer.
				if u, ok := s.users[str(d.Data["user_id"])]; ok {
					peerID = u.PeerID
				}
			}
			if s.groupMembers[groupID] == nil {
				s.groupMembers[groupID] = make(map[string]bool)
			}
			s.groupMembers[groupID][peerID] = true
		case events.OpDelete:
			groupID := str(d.Where["group_id"])
			peerID := str(d.Where["peer_id"])
			if peerID == "" {
				if u, ok := s.users[str(d.Where["user_id"])]; ok {
					peerID = u.PeerID
				}
			}
			delete(s.groupMembers[groupID], peerID)
		}
	case "messages":
		if d.Op == events.OpInsert {
			m := &projection.Message{
				MessageID: str(d.Data["message_id"]),
				ChannelID: str(d.Data["channel_id"]),
				GroupID:   str(d.Data["group_id"]),
				NetworkID: str(d.Data["network_id"]),
				PeerID:    str(d.Data["peer_id"]),
				Body:      str(d.Data["body"]),
				SentAt:    i64(d.Data["sent_at"]),
			}
			s.messagesByChannel[m.ChannelID] = append(s.messagesByChannel[m.ChannelID], m)
		}
	case "addresses":
		switch d.Op {
		case events.OpInsert:
			a := &projection.Address{
				AddressID: str(d.Data["address_id"]),
				PeerID:    str(d.Data["peer_id"]),
				NetworkID: str(d.Data["network_id"]),
				Transport: str(d.Data["transport"]),
				Addr:      str(d.Data["addr"]),
				CreatedAt: i64(d.Data["created_at"]),
			}
			s.addressesByPeer[a.PeerID] = append(s.addressesByPeer[a.PeerID], a)
		case events.OpDelete:
			peerID := str(d.Where["peer_id"])
			kept := s.addressesByPeer[peerID][:0]
			for _, a := range s.addressesByPeer[peerID] {
				if a.Transport != str(d.Where["transport"]) || a.Addr != str(d.Where["addr"]) {
					kept = append(kept, a)
				}
			}
			s.addressesByPeer[peerID] = kept
		}
	case "invites", "keys", "members", "identities":
		// These tables are write-only from the orchestrator's point of
		// view today: no flow response_handler reads them back yet, so
		// there is nothing for the in-memory store to index beyond
		// having already recorded the event itself in the event store.
	}
	return nil
}

// Groups implements projection.Store.
func (s *Store) Groups(_ context.Context, networkID string) ([]projection.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.groupsByNetwork[networkID]
	out := make([]projection.Group, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.groups[id])
	}
	return out, nil
}

// Channels implements projection.Store.
func (s *Store) Channels(_ context.Context, groupID string) ([]projection.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.channelsByGroup[groupID]
	out := make([]projection.Channel, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.channels[id])
	}
	return out, nil
}

// Members implements projection.Store.
func (s *Store) Members(_ context.Context, groupID string) ([]projection.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	peers := s.groupMembers[groupID]
	out := make([]projection.Member, 0, len(peers))
	for peerID := range peers {
		out = append(out, projection.Member{GroupID: groupID, PeerID: peerID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeerID < out[j].PeerID })
	return out, nil
}

// IsMember implements projection.Store.
func (s *Store) IsMember(_ context.Context, groupID, peerID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groupMembers[groupID][peerID], nil
}

// Messages implements projection.Store.
func (s *Store) Messages(_ context.Context, channelID string, limit int) ([]projection.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.messagesByChannel[channelID]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	start := len(all) - limit
	out := make([]projection.Message, limit)
	for i, m := range all[start:] {
		out[i] = *m
	}
	return out, nil
}

// PeerByID implements projection.Store.
func (s *Store) PeerByID(_ context.Context, peerID string) (*projection.Peer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peers[peerID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// UserByID implements projection.Store.
func (s *Store) UserByID(_ context.Context, userID string) (*projection.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// IsPeerOfNetwork implements projection.Store.
func (s *Store) IsPeerOfNetwork(_ context.Context, networkID, peerID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.peers[peerID]
	if !ok {
		return false, nil
	}
	return p.NetworkID == "" || p.NetworkID == networkID, nil
}

// AddressesByPeer implements projection.Store.
func (s *Store) AddressesByPeer(_ context.Context, peerID string) ([]projection.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addrs := s.addressesByPeer[peerID]
	out := make([]projection.Address, len(addrs))
	for i, a := range addrs {
		out[i] = *a
	}
	return out, nil
}

// AddressesByNetwork implements projection.Store.
func (s *Store) AddressesByNetwork(_ context.Context, networkID string) ([]projection.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []projection.Address
	for _, addrs := range s.addressesByPeer {
		for _, a := range addrs {
			if a.NetworkID == networkID {
				out = append(out, *a)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddressID < out[j].AddressID })
	return out, nil
}

// Close is a no-op for the in-memory backend.
func (s *Store) Close() error { return nil }

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

func i64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
