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

package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietprotocol/quiet/envelope"
	"github.com/quietprotocol/quiet/pipeline"
	"github.com/quietprotocol/quiet/pipelineerr"
	"github.com/quietprotocol/quiet/store"
	memorystore "github.com/quietprotocol/quiet/store/memory"
)

// storeOnceHandler is a minimal Handler stub that persists an envelope the
// first time it sees it, so runner_test can exercise the fixpoint loop and
// generated-id bookkeeping without pulling in the full handlers package
// (which itself depends on this one).
type storeOnceHandler struct{}

func (storeOnceHandler) Name() string { return "store_once" }
func (storeOnceHandler) Filter(env *envelope.Envelope) bool {
	return !env.Stored && env.EventID != ""
}
func (storeOnceHandler) Process(ctx context.Context, env *envelope.Envelope, st pipeline.Stores) ([]*envelope.Envelope, error) {
	err := st.Events.Put(ctx, &store.StoredEvent{EventID: env.EventID, EventType: env.EventType})
	if err != nil && !errors.Is(err, store.ErrDuplicate) {
		return nil, err
	}
	env.Stored = true
	return nil, nil
}

// needsDepHandler mimics the dependency resolver: it refuses to pass an
// envelope through until every declared dep is present in the event store.
type needsDepHandler struct{}

func (needsDepHandler) Name() string { return "needs_dep" }
func (needsDepHandler) Filter(env *envelope.Envelope) bool {
	return len(env.Deps) > 0 && !env.DepsIncludedAndValid
}
func (needsDepHandler) Process(ctx context.Context, env *envelope.Envelope, st pipeline.Stores) ([]*envelope.Envelope, error) {
	missing, err := st.Events.MissingDeps(ctx, env.Deps)
	if err != nil {
		return nil, err
	}
	env.MissingDeps = missing
	if len(missing) > 0 {
		return nil, pipelineerr.New(pipelineerr.KindMissingDep, "event depends on unstored events")
	}
	env.DepsIncludedAndValid = true
	return nil, nil
}

// rejectHandler refuses every envelope with a fixed pipeline error kind,
// for exercising the runner's drop-vs-fatal routing.
type rejectHandler struct{ kind pipelineerr.Kind }

func (rejectHandler) Name() string                               { return "reject" }
func (rejectHandler) Filter(env *envelope.Envelope) bool         { return !env.Stored }
func (h rejectHandler) Process(_ context.Context, _ *envelope.Envelope, _ pipeline.Stores) ([]*envelope.Envelope, error) {
	return nil, pipelineerr.New(h.kind, "rejected")
}

// spinHandler always reports progress without ever finishing an envelope,
// the shape of handler bug the iteration cap exists to catch.
type spinHandler struct{}

func (spinHandler) Name() string                       { return "spin" }
func (spinHandler) Filter(_ *envelope.Envelope) bool   { return true }
func (spinHandler) Process(_ context.Context, _ *envelope.Envelope, _ pipeline.Stores) ([]*envelope.Envelope, error) {
	return nil, nil
}

func newStores() pipeline.Stores {
	ms := memorystore.New()
	return pipeline.Stores{Events: ms, Secrets: ms}
}

func TestRunnerStoresSimpleEnvelope(t *testing.T) {
	r := pipeline.New([]pipeline.Handler{storeOnceHandler{}}, store.NewBlockedQueue())

	env := &envelope.Envelope{EventID: "e1", EventType: "peer"}
	result, err := r.Run(context.Background(), []*envelope.Envelope{env}, newStores())
	require.NoError(t, err)
	assert.True(t, env.Stored)
	assert.Equal(t, "e1", result.StoredIDs["peer"])
}

func TestRunnerResolvesPlaceholderAfterFirstEnvelopeStores(t *testing.T) {
	r := pipeline.New([]pipeline.Handler{storeOnceHandler{}}, store.NewBlockedQueue())

	peerEnv := &envelope.Envelope{EventID: "peer-1", EventType: "peer"}
	userEnv := &envelope.Envelope{
		EventType:      "user",
		EventPlaintext: map[string]interface{}{"peer_id": "@generated:peer:0"},
		Deps:           []string{"@generated:peer:0"},
	}

	result, err := r.Run(context.Background(), []*envelope.Envelope{peerEnv, userEnv}, newStores())
	require.NoError(t, err)
	assert.Equal(t, "peer-1", result.StoredIDs["peer"])
	assert.Equal(t, "peer-1", userEnv.EventPlaintext["peer_id"])
	assert.Equal(t, []string{"peer-1"}, userEnv.Deps)
}

func TestRunnerPlaceholderOutOfRangeDropsOnlyThatEnvelope(t *testing.T) {
	r := pipeline.New([]pipeline.Handler{storeOnceHandler{}}, store.NewBlockedQueue())

	good := &envelope.Envelope{EventID: "peer-1", EventType: "peer"}
	bad := &envelope.Envelope{
		EventType: "user",
		Deps:      []string{"@generated:peer:3"},
	}
	result, err := r.Run(context.Background(), []*envelope.Envelope{good, bad}, newStores())
	require.NoError(t, err, "one bad placeholder must not fail the batch")
	assert.Equal(t, "peer-1", result.StoredIDs["peer"])
	assert.True(t, good.Stored)

	assert.False(t, bad.Stored)
	require.NotNil(t, bad.ShouldRemove)
	assert.True(t, *bad.ShouldRemove)
	assert.Contains(t, bad.Error, "ungenerated")
}

func TestRunnerDropsEnvelopeOnDataError(t *testing.T) {
	r := pipeline.New([]pipeline.Handler{rejectHandler{kind: pipelineerr.KindInvalidSignature}}, store.NewBlockedQueue())

	bad := &envelope.Envelope{EventID: "e1", EventType: "message"}
	result, err := r.Run(context.Background(), []*envelope.Envelope{bad}, newStores())
	require.NoError(t, err, "a data-level rejection must not fail the batch")
	assert.Empty(t, result.StoredIDs)
	require.NotNil(t, bad.ShouldRemove)
	assert.True(t, *bad.ShouldRemove)
	assert.NotEmpty(t, bad.Error)
}

func TestRunnerInternalErrorIsFatal(t *testing.T) {
	r := pipeline.New([]pipeline.Handler{rejectHandler{kind: pipelineerr.KindInternal}}, store.NewBlockedQueue())

	_, err := r.Run(context.Background(), []*envelope.Envelope{{EventID: "e1"}}, newStores())
	require.Error(t, err)
}

func TestRunnerIterationCapAborts(t *testing.T) {
	r := pipeline.New([]pipeline.Handler{spinHandler{}}, store.NewBlockedQueue())

	_, err := r.Run(context.Background(), []*envelope.Envelope{{EventID: "e1"}}, newStores())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "iterations")
}

func TestRunnerBlocksOnMissingDepAndReleasesWhenItStores(t *testing.T) {
	r := pipeline.New([]pipeline.Handler{needsDepHandler{}, storeOnceHandler{}}, store.NewBlockedQueue())
	stores := newStores()

	blocked := &envelope.Envelope{EventID: "msg-1", EventType: "message", Deps: []string{"channel:c1"}}
	result, err := r.Run(context.Background(), []*envelope.Envelope{blocked}, stores)
	require.NoError(t, err)
	assert.Empty(t, result.StoredIDs)
	assert.False(t, blocked.Stored)

	// The awaited channel event arriving on a later invocation of the same
	// runner must pull the parked message back through to storage.
	channel := &envelope.Envelope{EventID: "c1", EventType: "channel"}
	result, err = r.Run(context.Background(), []*envelope.Envelope{channel}, stores)
	require.NoError(t, err)
	assert.Equal(t, "c1", result.StoredIDs["channel"])
	assert.Equal(t, "msg-1", result.StoredIDs["message"])
	assert.True(t, blocked.Stored)
	assert.True(t, blocked.Unblocked)
}
