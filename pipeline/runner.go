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

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/quietprotocol/quiet/envelope"
	"github.com/quietprotocol/quiet/internal/logger"
	"github.com/quietprotocol/quiet/internal/metrics"
	"github.com/quietprotocol/quiet/pipelineerr"
	"github.com/quietprotocol/quiet/store"
)

// maxIterations bounds the fixpoint loop against a misbehaving handler
// chain cycling forever.
const maxIterations = 1000

// Runner drives a batch of envelopes through an ordered handler chain to a
// fixpoint, then resolves any envelope that still carries a
// "@generated:type:index" placeholder once the batch's other events have
// been assigned real ids. It owns the dependency-blocked queue outright,
// mirroring the manager-owns-its-map convention the rest of this repo
// follows: no package-level state, always constructed through New.
type Runner struct {
	handlers []Handler
	blocked  *store.BlockedQueue
	log      logger.Logger
}

// New constructs a Runner over an ordered handler chain. Order matters:
// handlers run in the sequence given for every envelope still pending in
// the current iteration. Logging defaults to internal/logger's package
// default; override with SetLogger.
func New(handlers []Handler, blocked *store.BlockedQueue) *Runner {
	return &Runner{handlers: handlers, blocked: blocked, log: logger.GetDefaultLogger()}
}

// SetLogger overrides the logger this Runner reports blocked envelopes,
// handler errors, and iteration-cap aborts to. Nothing in this repository
// calls it: cmd/quietd installs its configured logger with
// logger.SetDefaultLogger before daemon.New builds the Runner, so New
// already picks that logger up.
func (r *Runner) SetLogger(l logger.Logger) { r.log = l }

// Result is what Run reports back about one batch: the ids assigned to
// freshly stored events (by type, only for types that produced exactly one
// stored event in this batch, matching the contract FlowCtx.emitEvent
// relies on to recover a single generated id) and any envelopes the batch
// produced that are now ready to go out over transport.
type Result struct {
	StoredIDs map[string]string
	Outgoing  []*envelope.Envelope
}

// Run processes input to a fixpoint against st, then resolves and
// processes any placeholder-carrying envelopes once the non-placeholder
// batch has assigned its ids.
func (r *Runner) Run(ctx context.Context, input []*envelope.Envelope, st Stores) (*Result, error) {
	generated := make(map[string][]string) // event type -> ids, in emission order

	var withPlaceholders, withoutPlaceholders []*envelope.Envelope
	for _, env := range input {
		if env.HasPlaceholders() {
			withPlaceholders = append(withPlaceholders, env)
		} else {
			withoutPlaceholders = append(withoutPlaceholders, env)
		}
	}

	outgoing, err := r.drain(ctx, withoutPlaceholders, st, generated)
	if err != nil {
		return nil, err
	}

	if len(withPlaceholders) > 0 {
		resolved := make([]*envelope.Envelope, 0, len(withPlaceholders))
		for _, env := range withPlaceholders {
			if err := resolvePlaceholders(env, generated); err != nil {
				// An unresolvable placeholder condemns only this envelope;
				// the rest of the batch keeps draining.
				env.Error = err.Error()
				env.SetShouldRemove(true)
				r.log.Warn("envelope dropped: unresolvable placeholder",
					logger.RequestID(env.RequestID), logger.EventType(env.EventType),
					logger.Error(err))
				continue
			}
			resolved = append(resolved, env)
		}
		more, err := r.drain(ctx, resolved, st, generated)
		if err != nil {
			return nil, err
		}
		outgoing = append(outgoing, more...)
	}

	stored := make(map[string]string, len(generated))
	for eventType, ids := range generated {
		if len(ids) == 1 {
			stored[eventType] = ids[0]
		}
	}
	return &Result{StoredIDs: stored, Outgoing: outgoing}, nil
}

// drain runs queue through the handler chain to a fixpoint: every pass
// offers each remaining envelope to every handler whose Filter matches, in
// order, collecting any newly emitted envelopes into the next pass. An
// envelope a handler rejects with KindMissingDep moves to the blocked
// queue instead of being retried forever; everything else either
// progresses (a handler changed something a later Filter will notice) or
// has nothing left to do and drops out of the loop on its own.
func (r *Runner) drain(ctx context.Context, queue []*envelope.Envelope, st Stores, generated map[string][]string) ([]*envelope.Envelope, error) {
	var outgoing []*envelope.Envelope
	iteration := 0
	defer func() { metrics.RunIterations.Observe(float64(iteration)) }()

	for ; len(queue) > 0; iteration++ {
		if iteration >= maxIterations {
			r.log.Error("pipeline: iteration cap reached, aborting run",
				logger.Iteration(iteration), logger.Any("queue_depth", len(queue)))
			return nil, fmt.Errorf("pipeline: exceeded %d iterations without reaching a fixpoint", maxIterations)
		}

		var next []*envelope.Envelope
		var keyReady []string
		progressed := false

		for _, env := range queue {
			if env.ShouldRemove != nil && *env.ShouldRemove {
				r.blocked.Remove(env)
				continue
			}

			emitted, handled, err := r.processOnce(ctx, env, st)
			if err != nil {
				var perr *pipelineerr.Error
				if errors.As(err, &perr) {
					switch perr.Kind {
					case pipelineerr.KindMissingDep:
						r.blocked.Block(env, env.MissingDeps)
						metrics.EnvelopesBlocked.Inc()
						metrics.BlockedQueueDepth.Set(float64(r.blocked.Len()))
						r.log.Debug("envelope blocked on missing dependency",
							logger.RequestID(env.RequestID), logger.EventType(env.EventType),
							logger.Any("missing_deps", env.MissingDeps))
						continue
					case pipelineerr.KindInternal:
						// fall through to the fatal return below
					default:
						// Data-level rejection (bad signature, malformed
						// event, unauthorized sender): drop this envelope
						// and keep the batch going.
						env.Error = perr.Error()
						env.SetShouldRemove(true)
						r.blocked.Remove(env)
						r.log.Warn("envelope dropped",
							logger.RequestID(env.RequestID), logger.EventType(env.EventType),
							logger.Error(err))
						continue
					}
				}
				r.log.Error("handler chain returned a fatal error",
					logger.RequestID(env.RequestID), logger.EventType(env.EventType),
					logger.Error(err))
				return nil, err
			}

			if handled {
				progressed = true
				if env.Stored {
					recordGenerated(generated, env)
					if env.EventType == "key" {
						if gid, ok := env.EventPlaintext["group_id"].(string); ok && gid != "" {
							keyReady = append(keyReady, GroupKeyDep(gid))
						}
					}
				}
			}

			if env.Outgoing != nil && *env.Outgoing && len(env.RawData) > 0 {
				outgoing = append(outgoing, env)
			} else if !isDone(env) {
				next = append(next, env)
			}

			next = append(next, emitted...)
		}

		unblocked := r.drainSatisfied(generated)
		for _, dep := range keyReady {
			for _, env := range r.blocked.Satisfy(dep) {
				env.Unblocked = true
				unblocked = append(unblocked, env)
			}
		}
		if len(unblocked) > 0 {
			metrics.EnvelopesReadmitted.Add(float64(len(unblocked)))
			metrics.BlockedQueueDepth.Set(float64(r.blocked.Len()))
		}
		next = append(next, unblocked...)

		queue = next
		if !progressed && len(unblocked) == 0 {
			// Nothing left that any handler's Filter still matches, and
			// nothing newly unblocked: every remaining envelope is either
			// done or permanently blocked on a dependency from outside
			// this batch.
			break
		}
	}

	return outgoing, nil
}

// processOnce offers env to every handler in order, running each one
// whose Filter currently matches. handled reports whether any handler ran,
// so the caller can tell "nothing applied" (fixpoint reached for this
// envelope) from "ran but didn't flip to done yet".
func (r *Runner) processOnce(ctx context.Context, env *envelope.Envelope, st Stores) (emitted []*envelope.Envelope, handled bool, err error) {
	for _, h := range r.handlers {
		if !h.Filter(env) {
			continue
		}
		start := time.Now()
		out, err := h.Process(ctx, env, st)
		metrics.HandlerDuration.WithLabelValues(h.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.EnvelopesProcessed.WithLabelValues(h.Name(), "error").Inc()
			r.log.Debug("handler returned an error",
				logger.HandlerName(h.Name()), logger.RequestID(env.RequestID),
				logger.EventType(env.EventType), logger.Error(err))
			return nil, handled, err
		}
		metrics.EnvelopesProcessed.WithLabelValues(h.Name(), "handled").Inc()
		handled = true
		emitted = append(emitted, out...)
	}
	return emitted, handled, nil
}

// drainSatisfied re-admits every envelope the blocked queue can release
// now that generated has grown, covering the intra-batch case where one
// envelope's dependency is satisfied by another envelope processed earlier
// in the very same batch rather than by a previously stored event.
func (r *Runner) drainSatisfied(generated map[string][]string) []*envelope.Envelope {
	var unblocked []*envelope.Envelope
	for eventType, ids := range generated {
		for _, id := range ids {
			for _, env := range r.blocked.Satisfy(eventType + ":" + id) {
				env.Unblocked = true
				unblocked = append(unblocked, env)
			}
		}
	}
	return unblocked
}

func isDone(env *envelope.Envelope) bool {
	return env.Stored && (env.Outgoing == nil || !*env.Outgoing || len(env.RawData) > 0)
}

func recordGenerated(generated map[string][]string, env *envelope.Envelope) {
	for _, id := range generated[env.EventType] {
		if id == env.EventID {
			return
		}
	}
	generated[env.EventType] = append(generated[env.EventType], env.EventID)
}

// resolvePlaceholders substitutes every "@generated:type:index" sentinel in
// env's plaintext fields and deps with the real id generated earlier in
// this batch, mirroring _resolve_placeholders's recursive walk over both
// event_plaintext and deps.
func resolvePlaceholders(env *envelope.Envelope, generated map[string][]string) error {
	resolvedDeps := make([]string, len(env.Deps))
	for i, dep := range env.Deps {
		resolved, err := resolvePlaceholderString(dep, generated)
		if err != nil {
			return err
		}
		resolvedDeps[i] = resolved
	}
	env.Deps = resolvedDeps

	resolved, err := resolvePlaceholderValue(env.EventPlaintext, generated)
	if err != nil {
		return err
	}
	env.EventPlaintext, _ = resolved.(map[string]interface{})
	return nil
}

func resolvePlaceholderValue(v interface{}, generated map[string][]string) (interface{}, error) {
	switch val := v.(type) {
	case string:
		return resolvePlaceholderString(val, generated)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			resolved, err := resolvePlaceholderValue(inner, generated)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			resolved, err := resolvePlaceholderValue(inner, generated)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

const placeholderPrefix = "@generated:"

func resolvePlaceholderString(s string, generated map[string][]string) (string, error) {
	if !strings.HasPrefix(s, placeholderPrefix) {
		return s, nil
	}
	rest := strings.TrimPrefix(s, placeholderPrefix)

	// A dependency reference carries its own "type:" prefix ahead of the
	// placeholder's own type:index pair (e.g. "peer:@generated:peer:0" is
	// never produced; deps themselves are the whole placeholder string),
	// so parse straight from rest.
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("pipeline: malformed placeholder %q", s)
	}
	eventType, idxStr := parts[0], parts[1]
	idx, err := strconv.Atoi(idxStr)
	if err != nil {
		return "", fmt.Errorf("pipeline: malformed placeholder index in %q: %w", s, err)
	}
	ids := generated[eventType]
	if idx < 0 || idx >= len(ids) {
		return "", fmt.Errorf("pipeline: placeholder %q refers to an ungenerated %s event", s, eventType)
	}
	return ids[idx], nil
}
