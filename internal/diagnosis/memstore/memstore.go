// Package memstore provides an in-memory implementation of diagnosis.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/verdict/internal/diagnosis"
)

// Store holds diagnosis records in memory. Suitable for dev/testing.
type Store struct {
	mu      sync.RWMutex
	records map[string]*diagnosis.Record // diagnosis ID -> record
	seen    map[string]string            // incident fingerprint -> latest diagnosis ID
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		records: make(map[string]*diagnosis.Record),
		seen:    make(map[string]string),
	}
}

// Get retrieves a diagnosis record by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*diagnosis.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

// GetByFingerprint retrieves the latest diagnosis record for an incident
// fingerprint. Returns a copy.
func (s *Store) GetByFingerprint(_ context.Context, fp string) (*diagnosis.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.seen[fp]
	if !ok {
		return nil, false, nil
	}
	r := s.records[id]
	cp := *r
	return &cp, true, nil
}

// Put stores a copy of the diagnosis record.
func (s *Store) Put(_ context.Context, r *diagnosis.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.records[r.ID] = &cp
	s.seen[r.Fingerprint] = r.ID
	return nil
}
