// Package auth provides the authorization gate that scopes every job
// operation, and the persistence contract for issued API keys.
package auth

import (
	"context"
	"sync"
)

// Gate maps a caller credential to an authorized/unauthorized decision.
// Implementations must be pure predicates: no side effects, safe for
// concurrent use. The error return is for backend failures only, never
// for a rejected credential.
type Gate interface {
	Authorize(ctx context.Context, credential string) (bool, error)
}

// KeyStore persists issued API keys. Backends under store/ implement it
// alongside the job store.
type KeyStore interface {
	// PutKey registers an API key for the given account email.
	PutKey(ctx context.Context, key, email string) error

	// HasKey reports whether the key has been issued.
	HasKey(ctx context.Context, key string) (bool, error)
}

// ── Static gate ─────────────────────────────────────

// StaticGate authorizes against a fixed key set. Use for development and
// tests.
type StaticGate struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

// NewStaticGate creates a gate accepting exactly the given credentials.
func NewStaticGate(credentials ...string) *StaticGate {
	keys := make(map[string]struct{}, len(credentials))
	for _, c := range credentials {
		keys[c] = struct{}{}
	}
	return &StaticGate{keys: keys}
}

// Add registers an additional credential.
func (g *StaticGate) Add(credential string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.keys[credential] = struct{}{}
}

func (g *StaticGate) Authorize(_ context.Context, credential string) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.keys[credential]
	return ok, nil
}

// ── Key store gate ──────────────────────────────────

// KeyGate authorizes against persisted API keys.
type KeyGate struct {
	keys KeyStore
}

// NewKeyGate creates a gate backed by a KeyStore.
func NewKeyGate(keys KeyStore) *KeyGate {
	return &KeyGate{keys: keys}
}

func (g *KeyGate) Authorize(ctx context.Context, credential string) (bool, error) {
	if credential == "" {
		return false, nil
	}
	return g.keys.HasKey(ctx, credential)
}
