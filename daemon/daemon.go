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

// Package daemon wires the envelope pipeline, its storage backend, and the
// command/flow orchestrator into one handle both cmd/quietd (a long-running
// process) and cmd/quietctl (a one-shot CLI, talking to its own in-process
// copy of the same stack) construct the same way. Kept out of cmd/ itself
// so both binaries share the exact wiring instead of two drifting copies.
package daemon

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"

	"github.com/quietprotocol/quiet/config"
	"github.com/quietprotocol/quiet/envelope"
	"github.com/quietprotocol/quiet/handlers"
	"github.com/quietprotocol/quiet/orchestrator"
	"github.com/quietprotocol/quiet/pipeline"
	"github.com/quietprotocol/quiet/projection"
	projmemory "github.com/quietprotocol/quiet/projection/memory"
	projpostgres "github.com/quietprotocol/quiet/projection/postgres"
	"github.com/quietprotocol/quiet/quietcrypto"
	"github.com/quietprotocol/quiet/store"
	storememory "github.com/quietprotocol/quiet/store/memory"
	storepostgres "github.com/quietprotocol/quiet/store/postgres"
)

// Daemon is one running copy of the pipeline: its storage backend, the
// handler-composed runner sitting on top of it, and the flow registry
// client commands execute against.
type Daemon struct {
	Stores  pipeline.Stores
	Runner  *pipeline.Runner
	Flows   *orchestrator.FlowRegistry
	closers []func() error

	// ingest collapses concurrent Ingest calls carrying the exact same
	// datagram onto one runner pass. A gossiping transport can hand this
	// daemon the same rebroadcast datagram from several connections at
	// once; without collapsing those, each would independently race the
	// resolver/projector through a full runner pass for what is, once
	// decrypted, the identical event (harmless, projection is idempotent,
	// but wasted work).
	ingest singleflight.Group
}

// New builds a Daemon from cfg, choosing the memory or postgres storage
// backend per cfg.Storage.Backend, and wiring the handler chain in
// processing order: resolve deps, decrypt/unseal,
// verify signature, check membership, project, prepare outgoing, encrypt
// for transit. localIdentityID is the identity the crypto handler uses to
// look up this process's own private keys (sign self-created events,
// unseal events addressed to this peer).
func New(ctx context.Context, cfg *config.Config, localIdentityID string) (*Daemon, error) {
	var events store.EventStore
	var secrets store.SecretStore
	var proj projection.Store
	var closers []func() error

	switch cfg.Storage.Backend {
	case "postgres":
		pgCfg := storepostgres.Config{
			Host:            cfg.Storage.Postgres.Host,
			Port:            cfg.Storage.Postgres.Port,
			User:            cfg.Storage.Postgres.User,
			Password:        cfg.Storage.Postgres.Password,
			Database:        cfg.Storage.Postgres.Database,
			SSLMode:         cfg.Storage.Postgres.SSLMode,
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		}
		pgStore, err := storepostgres.New(ctx, pgCfg)
		if err != nil {
			return nil, fmt.Errorf("daemon: open postgres event store: %w", err)
		}
		events = pgStore
		secrets = pgStore
		closers = append(closers, pgStore.Close)

		connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			cfg.Storage.Postgres.User, cfg.Storage.Postgres.Password,
			cfg.Storage.Postgres.Host, cfg.Storage.Postgres.Port,
			cfg.Storage.Postgres.Database, cfg.Storage.Postgres.SSLMode)
		pgProj, err := projpostgres.New(ctx, connString)
		if err != nil {
			return nil, fmt.Errorf("daemon: open postgres projection store: %w", err)
		}
		proj = pgProj
		closers = append(closers, pgProj.Close)

	case "memory", "":
		ms := storememory.New()
		events = ms
		secrets = ms
		proj = projmemory.New()

	default:
		return nil, fmt.Errorf("daemon: unknown storage backend %q", cfg.Storage.Backend)
	}

	stores := pipeline.Stores{Events: events, Secrets: secrets, Projection: proj}

	chain := []pipeline.Handler{
		handlers.NewDependencyResolver(),
		handlers.NewCryptoHandler(localIdentityID),
		handlers.NewSignatureHandler(),
		handlers.NewMembershipHandler(),
		handlers.NewProjectorHandler(),
		handlers.NewOutgoingHandler(),
	}
	runner := pipeline.New(chain, store.NewBlockedQueue())

	return &Daemon{
		Stores:  stores,
		Runner:  runner,
		Flows:   orchestrator.DefaultRegistry(),
		closers: closers,
	}, nil
}

// Execute runs opID through the Daemon's flow registry, building a fresh
// FlowCtx for the call under requestID; every envelope the command emits
// carries that same request_id for correlation.
func (d *Daemon) Execute(ctx context.Context, opID, requestID string, params map[string]interface{}) (orchestrator.Result, error) {
	fc := orchestrator.NewFlowCtx(ctx, d.Runner, d.Stores, requestID)
	return d.Flows.Execute(opID, fc, params)
}

// Ingest feeds one raw datagram off a transport.Transport's Recv channel
// into the pipeline: it builds a seed envelope with only
// OriginAddr/ReceivedAt/RawData set and runs it to a fixpoint. The
// result's Outgoing envelopes are what the caller's transport loop should
// hand back to Transport.Send.
func (d *Daemon) Ingest(ctx context.Context, originAddr string, raw []byte) (*pipeline.Result, error) {
	key := ingestKey(raw)
	v, err, _ := d.ingest.Do(key, func() (interface{}, error) {
		env := &envelope.Envelope{
			OriginAddr: originAddr,
			ReceivedAt: time.Now().Unix(),
			RawData:    raw,
		}
		return d.Runner.Run(ctx, []*envelope.Envelope{env}, d.Stores)
	})
	if err != nil {
		return nil, err
	}
	return v.(*pipeline.Result), nil
}

// ingestKey hashes the datagram's bytes so singleflight collapses
// byte-identical rebroadcasts regardless of which connection they arrived
// on; keying on originAddr instead would never collide across the
// distinct connections a gossiping transport relays the same datagram
// through.
func ingestKey(raw []byte) string {
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// EstablishTransit records the symmetric transit secret shared with one
// directly-connected peer, under both lookup keys the pipeline uses: by
// peer id for the outgoing handler's per-link fan-out, and by derived key
// id for decrypting datagrams that arrive carrying it.
func (d *Daemon) EstablishTransit(ctx context.Context, peerID string, secret []byte) error {
	keyID, err := quietcrypto.TransitKeyIDFromSecret(secret)
	if err != nil {
		return fmt.Errorf("daemon: derive transit key id: %w", err)
	}
	now := time.Now()
	if err := d.Stores.Secrets.PutSecret(ctx, &store.Secret{
		SecretID:  "transit:" + hex.EncodeToString(keyID[:]),
		Kind:      "transit_key",
		Value:     secret,
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("daemon: store transit secret: %w", err)
	}
	if err := d.Stores.Secrets.PutSecret(ctx, &store.Secret{
		SecretID:  "transit-peer:" + peerID,
		Kind:      "transit_key",
		Value:     secret,
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("daemon: store transit link: %w", err)
	}
	return nil
}

// Close releases whatever storage resources New opened (no-op for the
// in-memory backend).
func (d *Daemon) Close() error {
	var firstErr error
	for _, c := range d.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
