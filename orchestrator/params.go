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

package orchestrator

import (
	"fmt"
	"time"
)

// strParam reads an optional string param, defaulting to def when absent or
// not a string.
func strParam(params map[string]interface{}, key, def string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

// requireStrParam reads a required string param, erroring when it is absent
// or empty.
func requireStrParam(params map[string]interface{}, key string) (string, error) {
	v, _ := params[key].(string)
	if v == "" {
		return "", fmt.Errorf("orchestrator: %s is required", key)
	}
	return v, nil
}

// nowMS returns the current time in epoch milliseconds, the resolution
// every created_at field carries.
func nowMS() int64 {
	return time.Now().UnixMilli()
}
