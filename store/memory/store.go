// Package memory provides a fully in-memory store implementation.
// Safe for concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"sync"

	"github.com/inferent/runway"
	"github.com/inferent/runway/auth"
	"github.com/inferent/runway/job"
)

// Compile-time interface checks.
var (
	_ job.Store     = (*Store)(nil)
	_ auth.KeyStore = (*Store)(nil)
)

// Store keeps records and API keys in maps guarded by a RWMutex. Records
// are copied on both write and read so callers can never race with the
// store through a shared pointer.
type Store struct {
	mu     sync.RWMutex
	closed bool

	// records is keyed by caller id, then job id, preserving the
	// per-caller scoping of every lookup.
	records map[string]map[string]*job.Record

	// keys maps issued API keys to account emails.
	keys map[string]string
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		records: make(map[string]map[string]*job.Record),
		keys:    make(map[string]string),
	}
}

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping succeeds until the store is closed.
func (m *Store) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return runway.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed; every subsequent operation returns
// ErrStoreClosed. Closing twice is fine.
func (m *Store) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// Job Store
// ──────────────────────────────────────────────────

// PutRecord upserts a record by (CallerID, JobID).
func (m *Store) PutRecord(_ context.Context, rec *job.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return runway.ErrStoreClosed
	}

	byJob, ok := m.records[rec.CallerID]
	if !ok {
		byJob = make(map[string]*job.Record)
		m.records[rec.CallerID] = byJob
	}
	cp := *rec
	byJob[rec.JobID] = &cp
	return nil
}

// GetRecord retrieves one record by key.
func (m *Store) GetRecord(_ context.Context, callerID, jobID string) (*job.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, runway.ErrStoreClosed
	}

	rec, ok := m.records[callerID][jobID]
	if !ok {
		return nil, runway.ErrJobNotFound
	}
	cp := *rec
	return &cp, nil
}

// ListRecords returns every record scoped to the caller.
func (m *Store) ListRecords(_ context.Context, callerID string) ([]*job.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, runway.ErrStoreClosed
	}

	byJob := m.records[callerID]
	out := make([]*job.Record, 0, len(byJob))
	for _, rec := range byJob {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// Key Store
// ──────────────────────────────────────────────────

// PutKey registers an API key for the given account email.
func (m *Store) PutKey(_ context.Context, key, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return runway.ErrStoreClosed
	}
	m.keys[key] = email
	return nil
}

// HasKey reports whether the key has been issued.
func (m *Store) HasKey(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, runway.ErrStoreClosed
	}
	_, ok := m.keys[key]
	return ok, nil
}
