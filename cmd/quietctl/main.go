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

// Command quietctl is a one-shot CLI driving the same command/flow
// orchestrator a running quietd uses internally. Each invocation opens its
// own daemon.Daemon against the configured storage backend, executes one
// flow, prints the result, and exits — so against the in-memory backend it
// only talks to itself, but against postgres it reads and writes the same
// event log a live quietd is serving.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quietctl",
	Short: "quietctl drives protocol commands against a quiet node's storage",
	Long: `quietctl translates one client operation - create a network, post a
message, rotate a key - into the same event-emitting flow the daemon's
orchestrator runs internally, against whatever storage backend the
local configuration points at.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Subcommands register themselves in their own files:
	// - identity.go: identity create
	// - network.go:  network create
	// - group.go:    group create
	// - channel.go:  channel create
	// - invite.go:   invite create
	// - user.go:     user join
	// - message.go:  message send
	// - member.go:   member add / member remove
	// - key.go:      key rotate
}
