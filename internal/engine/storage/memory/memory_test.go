package memory

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/audit"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/entity"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/storage"
)

func TestGetEntityNotFound(t *testing.T) {
	store := NewStore()
	_, err := store.GetEntity(context.Background(), "char-missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutEntityRequiresID(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	if err := store.PutEntity(ctx, nil); err == nil || errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected invalid-argument error, got %v", err)
	}
	if err := store.PutEntity(ctx, &entity.Entity{}); err == nil {
		t.Fatal("expected empty id rejected")
	}
}

func TestPutGetIsolatesCallers(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	original := entity.New("char-1")
	original.BaseFields["level"] = 3
	if err := store.PutEntity(ctx, original); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Mutating the caller's copy after Put must not affect stored state.
	original.BaseFields["level"] = 99

	loaded, err := store.GetEntity(ctx, "char-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Level() != 3 {
		t.Fatalf("expected stored level 3, got %d", loaded.Level())
	}

	// Mutating the loaded copy must not affect the store either.
	loaded.BaseFields["level"] = 50
	again, _ := store.GetEntity(ctx, "char-1")
	if again.Level() != 3 {
		t.Fatalf("expected store isolated from loaded copy, got %d", again.Level())
	}
}

func TestListEntityIDsSorted(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	for _, id := range []string{"char-c", "char-a", "char-b"} {
		if err := store.PutEntity(ctx, entity.New(id)); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}

	ids, err := store.ListEntityIDs(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"char-a", "char-b", "char-c"}) {
		t.Fatalf("expected sorted ids, got %v", ids)
	}
}

func TestAuditAppendListClear(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		entry := audit.Entry{ID: string(rune('a' + i)), EntityID: "char-1", Kind: audit.KindApply}
		if err := store.AppendAudit(ctx, entry); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	entries, err := store.ListAudit(ctx, "char-1", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "c" || entries[1].ID != "d" {
		t.Fatalf("expected newest 2 oldest-first, got %v", entries)
	}

	if err := store.ClearAudit(ctx, "char-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, _ = store.ListAudit(ctx, "char-1", 0)
	if len(entries) != 0 {
		t.Fatalf("expected cleared trail, got %v", entries)
	}
}
