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

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/quietprotocol/quiet/store"
)

// PutSecret implements store.SecretStore. Secrets are upserted since key
// rotation legitimately replaces an existing value under the same id.
func (s *Store) PutSecret(ctx context.Context, secret *store.Secret) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO secrets (secret_id, kind, value)
VALUES ($1, $2, $3)
ON CONFLICT (secret_id) DO UPDATE SET kind = EXCLUDED.kind, value = EXCLUDED.value`,
		secret.SecretID, secret.Kind, secret.Value)
	return err
}

// GetSecret implements store.SecretStore.
func (s *Store) GetSecret(ctx context.Context, secretID string) (*store.Secret, error) {
	row := s.pool.QueryRow(ctx, `
SELECT secret_id, kind, value, created_at FROM secrets WHERE secret_id = $1`, secretID)

	secret := &store.Secret{}
	if err := row.Scan(&secret.SecretID, &secret.Kind, &secret.Value, &secret.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return secret, nil
}
