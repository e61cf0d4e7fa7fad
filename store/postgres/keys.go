package postgres

import (
	"context"
	"fmt"
)

// PutKey registers an API key for the given account email.
func (s *Store) PutKey(ctx context.Context, key, email string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO runway_api_keys (api_key, email)
		VALUES ($1, $2)
		ON CONFLICT (api_key) DO UPDATE SET email = EXCLUDED.email`,
		key, email,
	)
	if err != nil {
		return fmt.Errorf("runway/postgres: put key: %w", err)
	}
	return nil
}

// HasKey reports whether the key has been issued.
func (s *Store) HasKey(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM runway_api_keys WHERE api_key = $1)`,
		key,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("runway/postgres: has key: %w", err)
	}
	return exists, nil
}
