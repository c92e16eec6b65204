// Package sqlite provides the durable SQLite-backed store for entity records
// and audit history.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/audit"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/entity"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/policy"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/storage"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/storage/sqlite/migrations"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/violation"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/platform/storage/sqlitemigrate"
)

// Store implements storage.EntityStore and storage.AuditStore on SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (or creates) the engine database at the given path and applies
// embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(ctx, sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying database. Nil-safe so callers can defer it in
// all startup paths.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// GetEntity loads an entity record by id.
func (s *Store) GetEntity(ctx context.Context, id string) (*entity.Entity, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, base_fields, components, derived, derived_at, mode, strict
FROM entities WHERE id = ?`, id)

	var (
		baseFieldsJSON string
		componentsJSON string
		derivedJSON    string
		derivedAt      int64
		mode           string
		strict         int
	)
	e := &entity.Entity{}
	err := row.Scan(&e.ID, &baseFieldsJSON, &componentsJSON, &derivedJSON, &derivedAt, &mode, &strict)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load entity %s: %w", id, err)
	}

	if err := json.Unmarshal([]byte(baseFieldsJSON), &e.BaseFields); err != nil {
		return nil, fmt.Errorf("decode entity %s base fields: %w", id, err)
	}
	if err := json.Unmarshal([]byte(componentsJSON), &e.Components); err != nil {
		return nil, fmt.Errorf("decode entity %s components: %w", id, err)
	}
	if err := json.Unmarshal([]byte(derivedJSON), &e.Derived.Fields); err != nil {
		return nil, fmt.Errorf("decode entity %s derived: %w", id, err)
	}
	e.Derived.ComputedAt = derivedAt
	parsedMode, ok := entity.ParseMode(mode)
	if !ok {
		return nil, fmt.Errorf("entity %s has invalid mode %q", id, mode)
	}
	e.Mode = parsedMode
	e.Strict = strict != 0
	normalizeBaseFields(e.BaseFields)
	return e, nil
}

// PutEntity writes the full entity record, replacing any previous row.
func (s *Store) PutEntity(ctx context.Context, e *entity.Entity) error {
	if e == nil || strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("entity id is required")
	}
	baseFieldsJSON, err := json.Marshal(e.BaseFields)
	if err != nil {
		return fmt.Errorf("encode entity %s base fields: %w", e.ID, err)
	}
	components := e.Components
	if components == nil {
		components = []entity.Component{}
	}
	componentsJSON, err := json.Marshal(components)
	if err != nil {
		return fmt.Errorf("encode entity %s components: %w", e.ID, err)
	}
	derivedFields := e.Derived.Fields
	if derivedFields == nil {
		derivedFields = map[string]int{}
	}
	derivedJSON, err := json.Marshal(derivedFields)
	if err != nil {
		return fmt.Errorf("encode entity %s derived: %w", e.ID, err)
	}
	strict := 0
	if e.Strict {
		strict = 1
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO entities (id, base_fields, components, derived, derived_at, mode, strict, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    base_fields = excluded.base_fields,
    components = excluded.components,
    derived = excluded.derived,
    derived_at = excluded.derived_at,
    mode = excluded.mode,
    strict = excluded.strict,
    updated_at = excluded.updated_at`,
		e.ID, string(baseFieldsJSON), string(componentsJSON), string(derivedJSON),
		e.Derived.ComputedAt, string(e.Mode), strict, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("put entity %s: %w", e.ID, err)
	}
	return nil
}

// ListEntityIDs returns every stored entity id, sorted.
func (s *Store) ListEntityIDs(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id FROM entities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan entity id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read entity ids: %w", err)
	}
	return ids, nil
}

// AppendAudit persists one audit entry.
func (s *Store) AppendAudit(ctx context.Context, entry audit.Entry) error {
	violations := entry.Violations
	if violations == nil {
		violations = []violation.Violation{}
	}
	violationsJSON, err := json.Marshal(violations)
	if err != nil {
		return fmt.Errorf("encode audit violations: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT OR IGNORE INTO audit_entries (id, entity_id, ts, kind, summary, outcome, severity, mode, violations)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.EntityID, entry.Time.UTC().UnixMilli(), string(entry.Kind),
		entry.Summary, string(entry.Outcome), int(entry.Severity), string(entry.Mode),
		string(violationsJSON))
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListAudit returns up to limit persisted entries for the entity, oldest
// first.
func (s *Store) ListAudit(ctx context.Context, entityID string, limit int) ([]audit.Entry, error) {
	query := `
SELECT id, entity_id, ts, kind, summary, outcome, severity, mode, violations
FROM audit_entries WHERE entity_id = ? ORDER BY ts ASC, id ASC`
	args := []any{entityID}
	if limit > 0 {
		// Keep the newest entries when limiting, still returned oldest first.
		query = `
SELECT id, entity_id, ts, kind, summary, outcome, severity, mode, violations FROM (
    SELECT id, entity_id, ts, kind, summary, outcome, severity, mode, violations
    FROM audit_entries WHERE entity_id = ? ORDER BY ts DESC, id DESC LIMIT ?
) ORDER BY ts ASC, id ASC`
		args = append(args, limit)
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			entry          audit.Entry
			ts             int64
			kind           string
			outcome        string
			severity       int
			mode           string
			violationsJSON string
		)
		if err := rows.Scan(&entry.ID, &entry.EntityID, &ts, &kind, &entry.Summary,
			&outcome, &severity, &mode, &violationsJSON); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Time = time.UnixMilli(ts).UTC()
		entry.Kind = audit.Kind(kind)
		entry.Outcome = policy.Outcome(outcome)
		entry.Severity = violation.Severity(severity)
		entry.Mode = entity.Mode(mode)
		if err := json.Unmarshal([]byte(violationsJSON), &entry.Violations); err != nil {
			return nil, fmt.Errorf("decode audit violations: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read audit entries: %w", err)
	}
	return entries, nil
}

// ClearAudit removes every persisted entry for the entity.
func (s *Store) ClearAudit(ctx context.Context, entityID string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM audit_entries WHERE entity_id = ?`, entityID); err != nil {
		return fmt.Errorf("clear audit entries: %w", err)
	}
	return nil
}

// normalizeBaseFields rewrites JSON-decoded numbers into the scalar kinds the
// engine accepts, so round-tripped entities compare equal.
func normalizeBaseFields(fields map[string]any) {
	for key, value := range fields {
		if number, ok := value.(float64); ok && number == float64(int64(number)) {
			fields[key] = int(number)
		}
	}
}

var (
	_ storage.EntityStore = (*Store)(nil)
	_ storage.AuditStore  = (*Store)(nil)
)
