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

// Package websocket is one concrete transport.Transport: a peer-link that
// both accepts inbound WebSocket connections (for peers that dialed us)
// and dials outbound ones lazily (for peers we address first), framing
// each transit datagram as a single binary WebSocket message. A transit
// datagram is already an opaque, self-describing binary blob
// (transit_key_id, then transit_nonce, then ciphertext), so there is no
// request/response wire object to marshal, only bytes to relay.
package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quietprotocol/quiet/transport"
)

// Adapter implements transport.Transport over WebSocket connections. It
// owns its connection map outright (manager-owns-its-map, same as every
// other stateful type in this repo), built only through New.
type Adapter struct {
	upgrader websocket.Upgrader
	dialer   websocket.Dialer

	readTimeout  time.Duration
	writeTimeout time.Duration

	mu    sync.Mutex
	conns map[string]*websocket.Conn // dest address -> live connection

	recv   chan transport.RawDatagram
	closed chan struct{}
	once   sync.Once
}

// New builds an Adapter with the given handshake/read/write timeouts.
func New(handshakeTimeout, readTimeout, writeTimeout time.Duration) *Adapter {
	return &Adapter{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		dialer:       websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		conns:        make(map[string]*websocket.Conn),
		recv:         make(chan transport.RawDatagram, 256),
		closed:       make(chan struct{}),
	}
}

// Handler returns the http.Handler to mount for inbound peer connections
// (e.g. at "/quiet" on quietd's listen address).
func (a *Adapter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := a.upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, fmt.Sprintf("websocket upgrade failed: %v", err), http.StatusBadRequest)
			return
		}
		origin := r.RemoteAddr
		a.track(origin, conn)
		defer a.untrack(origin)
		a.readLoop(origin, conn)
	})
}

// Send delivers raw to dest, dialing a connection if one isn't already
// open and reusing it afterwards.
func (a *Adapter) Send(ctx context.Context, dest string, raw []byte) error {
	conn, err := a.connFor(ctx, dest)
	if err != nil {
		return err
	}
	if a.writeTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(a.writeTimeout))
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, raw); err != nil {
		a.untrack(dest)
		return fmt.Errorf("websocket send to %s: %w", dest, err)
	}
	return nil
}

func (a *Adapter) connFor(ctx context.Context, dest string) (*websocket.Conn, error) {
	a.mu.Lock()
	if conn, ok := a.conns[dest]; ok {
		a.mu.Unlock()
		return conn, nil
	}
	a.mu.Unlock()

	conn, resp, err := a.dialer.DialContext(ctx, dest, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial %s failed (HTTP %d): %w", dest, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial %s failed: %w", dest, err)
	}
	a.track(dest, conn)
	go a.readLoop(dest, conn)
	return conn, nil
}

func (a *Adapter) track(addr string, conn *websocket.Conn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conns[addr] = conn
}

func (a *Adapter) untrack(addr string) {
	a.mu.Lock()
	conn, ok := a.conns[addr]
	delete(a.conns, addr)
	a.mu.Unlock()
	if ok {
		_ = conn.Close()
	}
}

// readLoop relays every binary message on conn into a.recv as a
// transport.RawDatagram tagged with the peer's address, until the
// connection errors or closes.
func (a *Adapter) readLoop(origin string, conn *websocket.Conn) {
	for {
		if a.readTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(a.readTimeout))
		}
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			a.untrack(origin)
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		select {
		case a.recv <- transport.RawDatagram{OriginAddr: origin, Data: data}:
		case <-a.closed:
			return
		}
	}
}

// Recv implements transport.Transport.
func (a *Adapter) Recv() <-chan transport.RawDatagram { return a.recv }

// Close implements transport.Transport, closing every tracked connection.
func (a *Adapter) Close() error {
	a.once.Do(func() { close(a.closed) })
	a.mu.Lock()
	defer a.mu.Unlock()
	for addr, conn := range a.conns {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
		delete(a.conns, addr)
	}
	close(a.recv)
	return nil
}
