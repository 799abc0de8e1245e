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

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/quietprotocol/quiet/config"
	"github.com/quietprotocol/quiet/daemon"
	"github.com/quietprotocol/quiet/orchestrator"
)

// openDaemon loads local configuration and builds a Daemon against it, the
// way every subcommand's RunE does as its first step. identityOverride, if
// non-empty, stands in for the configured identity.id - useful for
// exercising a flow as a different peer than the one cfg.Identity.IdentityID
// names without editing config for it.
func openDaemon(ctx context.Context, identityOverride string) (*daemon.Daemon, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	localIdentityID := cfg.Identity.IdentityID
	if identityOverride != "" {
		localIdentityID = identityOverride
	}

	return daemon.New(ctx, cfg, localIdentityID)
}

// runFlow executes opID against a freshly opened daemon under a new random
// request id, then prints the result as indented JSON to stdout.
func runFlow(opID, identityOverride string, params map[string]interface{}) error {
	ctx := context.Background()

	d, err := openDaemon(ctx, identityOverride)
	if err != nil {
		return err
	}
	defer d.Close()

	result, err := d.Execute(ctx, opID, uuid.NewString(), params)
	if err != nil {
		return fmt.Errorf("%s: %w", opID, err)
	}
	return printResult(result)
}

func printResult(result orchestrator.Result) error {
	out := struct {
		IDs  map[string]string      `json:"ids"`
		Data map[string]interface{} `json:"data,omitempty"`
	}{IDs: result.IDs, Data: result.Data}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}
