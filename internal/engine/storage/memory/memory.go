// Package memory provides an in-memory store used as the runtime cache and
// by tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/audit"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/entity"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/storage"
)

// Store keeps entities and audit entries in process memory.
type Store struct {
	mu       sync.RWMutex
	entities map[string]*entity.Entity
	audits   map[string][]audit.Entry
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		entities: map[string]*entity.Entity{},
		audits:   map[string][]audit.Entry{},
	}
}

// GetEntity loads a deep copy so callers cannot mutate stored state in place.
func (s *Store) GetEntity(_ context.Context, id string) (*entity.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return e.Clone(), nil
}

// PutEntity stores a deep copy of the entity.
func (s *Store) PutEntity(_ context.Context, e *entity.Entity) error {
	if e == nil || e.ID == "" {
		return fmt.Errorf("entity id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[e.ID] = e.Clone()
	return nil
}

// ListEntityIDs returns every stored id, sorted.
func (s *Store) ListEntityIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// AppendAudit persists an audit entry.
func (s *Store) AppendAudit(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits[entry.EntityID] = append(s.audits[entry.EntityID], entry)
	return nil
}

// ListAudit returns up to limit entries for the entity, oldest first.
func (s *Store) ListAudit(_ context.Context, entityID string, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.audits[entityID]
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return append([]audit.Entry(nil), entries...), nil
}

// ClearAudit removes all persisted entries for the entity.
func (s *Store) ClearAudit(_ context.Context, entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.audits, entityID)
	return nil
}

var (
	_ storage.EntityStore = (*Store)(nil)
	_ storage.AuditStore  = (*Store)(nil)
)
