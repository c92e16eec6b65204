// Package storage defines the persistence interfaces for entity records and
// audit history.
//
// The engine treats persistence as an idempotent flush after an apply
// succeeds; no partially-applied state is ever written.
package storage

import (
	"context"
	"errors"

	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/audit"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/entity"
)

// ErrNotFound indicates the addressed record does not exist.
var ErrNotFound = errors.New("not found")

// EntityStore persists entity records.
type EntityStore interface {
	// GetEntity loads an entity by id, returning ErrNotFound when absent.
	GetEntity(ctx context.Context, id string) (*entity.Entity, error)
	// PutEntity writes the full entity record. Writes are idempotent.
	PutEntity(ctx context.Context, e *entity.Entity) error
	// ListEntityIDs returns every stored entity id, sorted.
	ListEntityIDs(ctx context.Context) ([]string, error)
}

// AuditStore persists audit entries alongside the in-memory trail.
type AuditStore interface {
	audit.Sink
	// ListAudit returns up to limit persisted entries for the entity, oldest
	// first. limit <= 0 means no limit.
	ListAudit(ctx context.Context, entityID string, limit int) ([]audit.Entry, error)
	// ClearAudit removes every persisted entry for the entity.
	ClearAudit(ctx context.Context, entityID string) error
}
