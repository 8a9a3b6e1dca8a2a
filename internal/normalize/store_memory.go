package normalize

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/anatoliahealth/medtour-crm/internal/canonical"
)

// MemoryStore is a process-local CanonicalStore for development and tests.
// Records are deep-copied through JSON so callers never share state.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

// Put stores a copy of the record.
func (s *MemoryStore) Put(ctx context.Context, orgID string, record *canonical.Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.records[canonicalPK(orgID, record.LeadID)] = payload
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the stored record.
func (s *MemoryStore) Get(ctx context.Context, orgID, leadID string) (*canonical.Record, error) {
	s.mu.RLock()
	payload, ok := s.records[canonicalPK(orgID, leadID)]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrCanonicalNotFound
	}
	var record canonical.Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

var _ CanonicalStore = (*MemoryStore)(nil)
