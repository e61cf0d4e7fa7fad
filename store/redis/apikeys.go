package redis

import (
	"context"
	"fmt"
)

// PutKey registers an API key for the given account email.
func (s *Store) PutKey(ctx context.Context, key, email string) error {
	if err := s.client.HSet(ctx, apiKeysKey, key, email).Err(); err != nil {
		return fmt.Errorf("runway/redis: put key: %w", err)
	}
	return nil
}

// HasKey reports whether the key has been issued.
func (s *Store) HasKey(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.HExists(ctx, apiKeysKey, key).Result()
	if err != nil {
		return false, fmt.Errorf("runway/redis: has key: %w", err)
	}
	return ok, nil
}
