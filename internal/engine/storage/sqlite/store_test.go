package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/audit"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/entity"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/policy"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/storage"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/violation"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestEntityRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	original := entity.New("char-1")
	original.BaseFields["level"] = 4
	original.BaseFields["species"] = "human"
	original.BaseFields["skills.use_the_force.trained"] = true
	original.AttachComponent(entity.Component{
		ID:            "c1",
		ContentID:     "feat.force_sensitivity",
		Type:          entity.ContentTypeFeat,
		GrantsDomains: []string{"force"},
		Provenance:    entity.ProvenanceChosen,
		Bonuses:       map[string]int{"derived.force_points": 1},
	})
	original.Derived = entity.Snapshot{Fields: map[string]int{"derived.half_level": 2}, ComputedAt: 1700000000000}
	original.Mode = entity.ModeOverride
	original.Strict = true

	if err := store.PutEntity(ctx, original); err != nil {
		t.Fatalf("put: %v", err)
	}

	loaded, err := store.GetEntity(ctx, "char-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Level() != 4 {
		t.Fatalf("expected level 4 after round trip, got %d", loaded.Level())
	}
	if loaded.StringField("species", "") != "human" {
		t.Fatalf("expected species preserved, got %v", loaded.BaseFields["species"])
	}
	if !loaded.SkillTrained("use_the_force") {
		t.Fatal("expected trained skill preserved")
	}
	if len(loaded.Components) != 1 || loaded.Components[0].ContentID != "feat.force_sensitivity" {
		t.Fatalf("expected component preserved, got %v", loaded.Components)
	}
	if loaded.Derived.Fields["derived.half_level"] != 2 || loaded.Derived.ComputedAt != 1700000000000 {
		t.Fatalf("expected derived snapshot preserved, got %+v", loaded.Derived)
	}
	if loaded.Mode != entity.ModeOverride || !loaded.Strict {
		t.Fatalf("expected mode/strict preserved, got %s/%t", loaded.Mode, loaded.Strict)
	}
}

func TestPutEntityUpserts(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	e := entity.New("char-1")
	e.BaseFields["level"] = 1
	if err := store.PutEntity(ctx, e); err != nil {
		t.Fatalf("first put: %v", err)
	}
	e.BaseFields["level"] = 2
	if err := store.PutEntity(ctx, e); err != nil {
		t.Fatalf("second put: %v", err)
	}

	loaded, err := store.GetEntity(ctx, "char-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Level() != 2 {
		t.Fatalf("expected upserted level 2, got %d", loaded.Level())
	}

	ids, err := store.ListEntityIDs(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected single row after upsert, got %v", ids)
	}
}

func TestGetEntityNotFound(t *testing.T) {
	store := openStore(t)
	_, err := store.GetEntity(context.Background(), "char-missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAuditRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		entry := audit.Entry{
			ID:       string(rune('a' + i)),
			Time:     base.Add(time.Duration(i) * time.Minute),
			EntityID: "char-1",
			Kind:     audit.KindVerdict,
			Summary:  "component_add:talent.telekinesis",
			Outcome:  policy.OutcomeBlock,
			Severity: violation.SeverityError,
			Mode:     entity.ModeNormal,
			Violations: []violation.Violation{
				violation.DomainLocked("talent.telekinesis", "force"),
			},
		}
		if err := store.AppendAudit(ctx, entry); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	entries, err := store.ListAudit(ctx, "char-1", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected newest 2 entries, got %d", len(entries))
	}
	if entries[0].ID != "c" || entries[1].ID != "d" {
		t.Fatalf("expected oldest-first ordering of the newest entries, got %s,%s", entries[0].ID, entries[1].ID)
	}
	got := entries[0]
	if got.Outcome != policy.OutcomeBlock || got.Severity != violation.SeverityError {
		t.Fatalf("expected outcome/severity preserved, got %s/%s", got.Outcome, got.Severity)
	}
	if len(got.Violations) != 1 || got.Violations[0].Kind != violation.KindDomainLocked {
		t.Fatalf("expected violations preserved, got %v", got.Violations)
	}
	if !got.Time.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("expected timestamp preserved, got %v", got.Time)
	}

	if err := store.ClearAudit(ctx, "char-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, _ = store.ListAudit(ctx, "char-1", 0)
	if len(entries) != 0 {
		t.Fatalf("expected cleared audit, got %v", entries)
	}
}
