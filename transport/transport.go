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

// Package transport names the boundary the pipeline keeps outside itself:
// the physical peer link is an external collaborator, not
// something this pipeline's handlers implement. This package carries only
// the interface the pipeline needs from it; concrete adapters (see
// transport/websocket) are peer-link implementations of that interface,
// not part of the envelope pipeline itself.
package transport

import "context"

// RawDatagram is one transit-layer datagram as it arrives off the wire,
// before anything in the pipeline has looked at it: just the bytes and
// where they came from. daemon.Daemon.Ingest turns one of these into an
// envelope.Envelope with OriginAddr/ReceivedAt/RawData set.
type RawDatagram struct {
	OriginAddr string
	Data       []byte
}

// Transport is a peer-link send/receive primitive the daemon drives, not
// a thing the pipeline's handlers know about. Handlers
// only ever see envelope.Envelope.RawData; whatever put it there (or will
// carry it out) implements Transport.
type Transport interface {
	// Send delivers raw bytes to dest, however the concrete transport
	// addresses a peer (a websocket URL, a host:port pair, an onion
	// address). The caller is the outgoing handler's consumer, already
	// holding transit-encrypted bytes; Transport never sees plaintext.
	Send(ctx context.Context, dest string, raw []byte) error

	// Recv returns the channel of datagrams arriving from any connected
	// peer. The channel is closed when the transport shuts down.
	Recv() <-chan RawDatagram

	// Close releases whatever connections or listeners Recv's channel
	// depends on.
	Close() error
}
