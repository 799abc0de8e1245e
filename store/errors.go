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

package store

import "errors"

// ErrDuplicate is returned by Put when an event with the same EventID is
// already stored. It is not a failure: content-addressed ids make replay
// and re-delivery detectable this way instead of through a separate
// nonce/dedupe subsystem.
var ErrDuplicate = errors.New("store: event already exists")

// ErrNotFound is returned by Get/GetSecret when the requested id is absent.
var ErrNotFound = errors.New("store: not found")
