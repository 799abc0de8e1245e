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

package handlers

import (
	"context"

	"github.com/quietprotocol/quiet/envelope"
	"github.com/quietprotocol/quiet/pipeline"
	"github.com/quietprotocol/quiet/pipelineerr"
)

// DependencyResolver checks an event's declared dependencies against the
// event store and records which, if any, are still missing. It never
// blocks the envelope itself: actually parking an envelope until its
// dependencies clear is the Runner's job, mediated by store.BlockedQueue,
// so this handler only ever reports what it found.
type DependencyResolver struct{}

func NewDependencyResolver() *DependencyResolver { return &DependencyResolver{} }

func (h *DependencyResolver) Name() string { return "dependency_resolver" }

func (h *DependencyResolver) Filter(env *envelope.Envelope) bool {
	return env.EventPlaintext != nil && !env.DepsIncludedAndValid && !env.HasPlaceholders()
}

func (h *DependencyResolver) Process(ctx context.Context, env *envelope.Envelope, st pipeline.Stores) ([]*envelope.Envelope, error) {
	missing, err := st.Events.MissingDeps(ctx, env.Deps)
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.KindInternal, "check dependencies", err)
	}
	env.MissingDeps = missing
	if len(missing) == 0 {
		env.DepsIncludedAndValid = true
		return nil, nil
	}
	return nil, pipelineerr.New(pipelineerr.KindMissingDep, "event depends on unstored events")
}
